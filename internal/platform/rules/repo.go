package rules

import "context"

// Repository provides access to stored platform rules.
type Repository interface {
	Create(ctx context.Context, r *Rule) error
	Update(ctx context.Context, r *Rule) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*Rule, error)
	// GetByKey returns nil without error when no rule carries the key.
	GetByKey(ctx context.Context, key string) (*Rule, error)
	List(ctx context.Context, keyFilter string, limit, offset int) ([]*Rule, int, error)
}
