package rules

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const cacheTTL = 5 * time.Minute

// cachedRepo decorates a Repository with a Redis read-through cache on
// GetByKey. Rules change rarely but are consulted on every schedule write,
// so key lookups are the only cached path. Writes invalidate the affected
// key. Cache failures fall back to the underlying repository.
type cachedRepo struct {
	next   Repository
	client *redis.Client
	logger zerolog.Logger
}

// NewCachedRepo wraps next with a Redis cache.
func NewCachedRepo(next Repository, client *redis.Client, logger zerolog.Logger) Repository {
	return &cachedRepo{next: next, client: client, logger: logger}
}

func cacheKey(key string) string { return "platform_rules:key:" + key }

func (c *cachedRepo) GetByKey(ctx context.Context, key string) (*Rule, error) {
	raw, err := c.client.Get(ctx, cacheKey(key)).Bytes()
	if err == nil {
		var ru Rule
		if err := json.Unmarshal(raw, &ru); err == nil {
			return &ru, nil
		}
	} else if err != redis.Nil {
		c.logger.Warn().Err(err).Str("rule_key", key).Msg("rules cache read failed")
	}

	ru, err := c.next.GetByKey(ctx, key)
	if err != nil || ru == nil {
		return ru, err
	}

	if raw, err := json.Marshal(ru); err == nil {
		if err := c.client.Set(ctx, cacheKey(key), raw, cacheTTL).Err(); err != nil {
			c.logger.Warn().Err(err).Str("rule_key", key).Msg("rules cache write failed")
		}
	}
	return ru, nil
}

func (c *cachedRepo) invalidate(ctx context.Context, key string) {
	if err := c.client.Del(ctx, cacheKey(key)).Err(); err != nil {
		c.logger.Warn().Err(err).Str("rule_key", key).Msg("rules cache invalidation failed")
	}
}

func (c *cachedRepo) Create(ctx context.Context, ru *Rule) error {
	if err := c.next.Create(ctx, ru); err != nil {
		return err
	}
	c.invalidate(ctx, ru.Key)
	return nil
}

func (c *cachedRepo) Update(ctx context.Context, ru *Rule) error {
	if err := c.next.Update(ctx, ru); err != nil {
		return err
	}
	c.invalidate(ctx, ru.Key)
	return nil
}

func (c *cachedRepo) Delete(ctx context.Context, id int64) error {
	ru, err := c.next.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if err := c.next.Delete(ctx, id); err != nil {
		return err
	}
	c.invalidate(ctx, ru.Key)
	return nil
}

func (c *cachedRepo) GetByID(ctx context.Context, id int64) (*Rule, error) {
	return c.next.GetByID(ctx, id)
}

func (c *cachedRepo) List(ctx context.Context, keyFilter string, limit, offset int) ([]*Rule, int, error) {
	return c.next.List(ctx, keyFilter, limit, offset)
}
