package scheduling

import (
	"github.com/google/uuid"

	"github.com/clinreg/clinreg/internal/platform/rules"
)

// dayOverride is a parsed platform-wide reduced day.
type dayOverride struct {
	isActive   bool
	workStart  *TimeOfDay
	workEnd    *TimeOfDay
	breakStart *TimeOfDay
	breakEnd   *TimeOfDay
}

func parseOverrides(reduced []rules.ReducedDay) map[string]dayOverride {
	out := make(map[string]dayOverride, len(reduced))
	for _, rd := range reduced {
		out[rd.Date] = dayOverride{
			isActive:   rd.IsActive,
			workStart:  parseOptionalTime(rd.WorkStartTime),
			workEnd:    parseOptionalTime(rd.WorkEndTime),
			breakStart: parseOptionalTime(rd.BreakStartTime),
			breakEnd:   parseOptionalTime(rd.BreakEndTime),
		}
	}
	return out
}

func parseOptionalTime(s *string) *TimeOfDay {
	if s == nil {
		return nil
	}
	t, err := ParseTimeOfDay(*s)
	if err != nil {
		return nil
	}
	return &t
}

// GenerateDays materializes one ScheduleDay per date of the schedule
// period. Each weekday takes its hours from the template, falling back to
// the default working day, and platform-wide reduced days override
// individual dates. A reduced day marked inactive produces a closed day
// with default hours regardless of the template.
func GenerateDays(scheduleID uuid.UUID, periodStart, periodEnd Date, tmpl WeekTemplate, reduced []rules.ReducedDay) []*ScheduleDay {
	overrides := parseOverrides(reduced)
	var days []*ScheduleDay
	for d := periodStart; !d.After(periodEnd.Time); d = d.AddDays(1) {
		days = append(days, generateDay(scheduleID, d, &tmpl, overrides))
	}
	return days
}

// GenerateDay materializes a single date using the same rules as
// GenerateDays. Used when an edited period grows by individual dates.
func GenerateDay(scheduleID uuid.UUID, date Date, tmpl WeekTemplate, reduced []rules.ReducedDay) *ScheduleDay {
	return generateDay(scheduleID, date, &tmpl, parseOverrides(reduced))
}

func generateDay(scheduleID uuid.UUID, date Date, tmpl *WeekTemplate, overrides map[string]dayOverride) *ScheduleDay {
	weekday := ISOWeekday(date.Time)
	def := DefaultPattern()

	day := &ScheduleDay{
		ID:         uuid.New(),
		ScheduleID: scheduleID,
		Date:       date,
		DayOfWeek:  weekday,
	}

	override, overridden := overrides[date.String()]
	if overridden && !override.isActive {
		day.IsActive = false
		day.WorkStart = def.WorkStart
		day.WorkEnd = def.WorkEnd
		day.BreakStart = def.BreakStart
		day.BreakEnd = def.BreakEnd
		day.DropInvalidBreak()
		return day
	}

	base := tmpl.Pattern(weekday)
	if base == nil {
		base = &def
	}
	day.IsActive = base.IsActive
	day.WorkStart = base.WorkStart
	day.WorkEnd = base.WorkEnd
	day.BreakStart = base.BreakStart
	day.BreakEnd = base.BreakEnd

	if overridden {
		if override.workStart != nil {
			day.WorkStart = *override.workStart
		}
		if override.workEnd != nil {
			day.WorkEnd = *override.workEnd
		}
		if override.breakStart != nil {
			day.BreakStart = override.breakStart
		}
		if override.breakEnd != nil {
			day.BreakEnd = override.breakEnd
		}
	}

	day.DropInvalidBreak()
	return day
}
