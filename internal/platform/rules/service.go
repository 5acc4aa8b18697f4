package rules

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

var ErrRuleNotFound = errors.New("platform rule not found")

// Service manages platform rules and exposes typed accessors for the rules
// the scheduling engine consumes.
type Service struct {
	repo   Repository
	logger zerolog.Logger
}

func NewService(repo Repository, logger zerolog.Logger) *Service {
	return &Service{repo: repo, logger: logger}
}

type CreateInput struct {
	Key         string          `json:"key"`
	Data        json.RawMessage `json:"rule_data"`
	Description *string         `json:"description"`
}

func (s *Service) Create(ctx context.Context, in CreateInput) (*Rule, error) {
	if err := ValidateData(in.Key, in.Data); err != nil {
		return nil, err
	}
	ru := &Rule{Key: in.Key, Data: in.Data, Description: in.Description}
	if err := s.repo.Create(ctx, ru); err != nil {
		return nil, err
	}
	return ru, nil
}

func (s *Service) Update(ctx context.Context, id int64, in CreateInput) (*Rule, error) {
	if err := ValidateData(in.Key, in.Data); err != nil {
		return nil, err
	}

	ru, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}

	ru.Key = in.Key
	ru.Data = in.Data
	ru.Description = in.Description
	if err := s.repo.Update(ctx, ru); err != nil {
		return nil, err
	}
	return ru, nil
}

func (s *Service) Delete(ctx context.Context, id int64) error {
	if _, err := s.repo.GetByID(ctx, id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrRuleNotFound
		}
		return err
	}
	return s.repo.Delete(ctx, id)
}

func (s *Service) Get(ctx context.Context, id int64) (*Rule, error) {
	ru, err := s.repo.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrRuleNotFound
		}
		return nil, err
	}
	return ru, nil
}

func (s *Service) List(ctx context.Context, keyFilter string, limit, offset int) ([]*Rule, int, error) {
	return s.repo.List(ctx, keyFilter, limit, offset)
}

// MaxSchedulePeriodDays returns the maximum allowed schedule period in days.
// An absent rule, an unreadable payload, or a non-positive value all fall
// back to the default with a warning.
func (s *Service) MaxSchedulePeriodDays(ctx context.Context) int {
	ru, err := s.repo.GetByKey(ctx, KeyMaxSchedulePeriod)
	if err != nil {
		s.logger.Warn().Err(err).
			Int("default", DefaultMaxSchedulePeriodDays).
			Msg("failed to load MAX_SCHEDULE_PERIOD rule, using default")
		return DefaultMaxSchedulePeriodDays
	}
	if ru == nil {
		return DefaultMaxSchedulePeriodDays
	}

	var d MaxSchedulePeriodData
	if err := json.Unmarshal(ru.Data, &d); err != nil {
		s.logger.Warn().Err(err).
			Int("default", DefaultMaxSchedulePeriodDays).
			Msg("MAX_SCHEDULE_PERIOD rule has invalid format, using default")
		return DefaultMaxSchedulePeriodDays
	}
	if d.Value <= 0 {
		s.logger.Warn().
			Int("value", d.Value).
			Int("default", DefaultMaxSchedulePeriodDays).
			Msg("MAX_SCHEDULE_PERIOD rule has non-positive value, using default")
		return DefaultMaxSchedulePeriodDays
	}
	return d.Value
}

// ReducedDays returns the date-specific working hour overrides, or nil when
// the REDUCED_DAYS rule is absent or unreadable. Entries with malformed
// dates are dropped.
func (s *Service) ReducedDays(ctx context.Context) []ReducedDay {
	ru, err := s.repo.GetByKey(ctx, KeyReducedDays)
	if err != nil {
		s.logger.Warn().Err(err).Msg("failed to load REDUCED_DAYS rule, ignoring")
		return nil
	}
	if ru == nil {
		return nil
	}

	var d ReducedDaysData
	if err := json.Unmarshal(ru.Data, &d); err != nil {
		s.logger.Warn().Err(err).Msg("REDUCED_DAYS rule has invalid format, ignoring")
		return nil
	}

	days := d.Days[:0]
	for _, day := range d.Days {
		if _, err := time.Parse("2006-01-02", day.Date); err != nil {
			s.logger.Warn().Str("date", day.Date).Msg("REDUCED_DAYS entry has bad date, dropping")
			continue
		}
		days = append(days, day)
	}
	return days
}
