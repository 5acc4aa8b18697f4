package rules

import (
	"encoding/json"
	"fmt"
	"time"
)

// Rule keys understood by the registry. Rules are managed from the admin
// panel and stored as a single-key JSONB object per row.
const (
	KeyMaxSchedulePeriod = "MAX_SCHEDULE_PERIOD"
	KeyReducedDays       = "REDUCED_DAYS"
)

// DefaultMaxSchedulePeriodDays is used when the MAX_SCHEDULE_PERIOD rule is
// absent or holds an invalid value.
const DefaultMaxSchedulePeriodDays = 30

// Rule is a platform-wide configuration record.
type Rule struct {
	ID          int64           `json:"id"`
	Key         string          `json:"key"`
	Data        json.RawMessage `json:"rule_data"`
	Description *string         `json:"description,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	ChangedAt   time.Time       `json:"changed_at"`
}

// MaxSchedulePeriodData is the payload of the MAX_SCHEDULE_PERIOD rule.
type MaxSchedulePeriodData struct {
	Value int `json:"value"`
}

// ReducedDay is one date-specific working hours override carried by the
// REDUCED_DAYS rule. Times are "HH:MM" strings and are only required when
// the day stays active.
type ReducedDay struct {
	Date           string  `json:"date"`
	IsActive       bool    `json:"is_active"`
	WorkStartTime  *string `json:"work_start_time,omitempty"`
	WorkEndTime    *string `json:"work_end_time,omitempty"`
	BreakStartTime *string `json:"break_start_time,omitempty"`
	BreakEndTime   *string `json:"break_end_time,omitempty"`
}

// ReducedDaysData is the payload of the REDUCED_DAYS rule.
type ReducedDaysData struct {
	Days []ReducedDay `json:"days"`
}

// ValidateData checks that data is a well-formed payload for the given rule
// key. Unknown keys are rejected.
func ValidateData(key string, data json.RawMessage) error {
	switch key {
	case KeyMaxSchedulePeriod:
		var d MaxSchedulePeriodData
		if err := strictUnmarshal(data, &d); err != nil {
			return fmt.Errorf("invalid data for rule %s: %w", key, err)
		}
		if d.Value <= 0 {
			return fmt.Errorf("invalid data for rule %s: value must be positive", key)
		}
		return nil
	case KeyReducedDays:
		var d ReducedDaysData
		if err := strictUnmarshal(data, &d); err != nil {
			return fmt.Errorf("invalid data for rule %s: %w", key, err)
		}
		for _, day := range d.Days {
			if _, err := time.Parse("2006-01-02", day.Date); err != nil {
				return fmt.Errorf("invalid data for rule %s: bad date %q", key, day.Date)
			}
			if day.IsActive && (day.WorkStartTime == nil || day.WorkEndTime == nil) {
				return fmt.Errorf("invalid data for rule %s: active day %s requires both work_start_time and work_end_time", key, day.Date)
			}
		}
		return nil
	default:
		return fmt.Errorf("unsupported rule key: %s", key)
	}
}

func strictUnmarshal(data json.RawMessage, v interface{}) error {
	if len(data) == 0 {
		return fmt.Errorf("empty payload")
	}
	return json.Unmarshal(data, v)
}
