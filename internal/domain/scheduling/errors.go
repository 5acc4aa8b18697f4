package scheduling

import (
	"errors"
	"fmt"
)

var (
	ErrScheduleNotFound    = errors.New("schedule not found")
	ErrDayNotFound         = errors.New("schedule day not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
	ErrNameTaken           = errors.New("schedule name already used for this doctor")
	ErrInvalidPeriod       = errors.New("period end precedes period start")
	ErrRoleNotSchedulable  = errors.New("doctor role cannot hold schedules")
	ErrOverlapping         = errors.New("appointment overlaps an existing one")
	ErrScheduleInactive    = errors.New("schedule is not active")
	ErrDayInactive         = errors.New("schedule day is not active")
)

// PeriodTooLongError reports a schedule period exceeding the platform limit.
type PeriodTooLongError struct {
	MaxDays int
}

func (e *PeriodTooLongError) Error() string {
	return fmt.Sprintf("schedule period exceeds the maximum of %d days", e.MaxDays)
}

// ValidationError reports a field-level constraint violation.
type ValidationError struct {
	Message string
}

func (e *ValidationError) Error() string { return e.Message }

func validationErrorf(format string, args ...any) error {
	return &ValidationError{Message: fmt.Sprintf(format, args...)}
}

// InvalidTimeError reports an appointment slot outside the day's bookable
// time, either beyond working hours or intersecting the break.
type InvalidTimeError struct {
	Start           TimeOfDay
	IntervalMinutes int
	Reason          string
}

func (e *InvalidTimeError) Error() string {
	return fmt.Sprintf("appointment at %s for %d minutes is not bookable: %s",
		e.Start, e.IntervalMinutes, e.Reason)
}

// CapabilityError reports a booking attribute the doctor does not serve.
type CapabilityError struct {
	Capability string
	Value      string
}

func (e *CapabilityError) Error() string {
	return fmt.Sprintf("doctor does not serve %s %q", e.Capability, e.Value)
}

// InvalidStatusError reports an inconsistent status and patient combination.
type InvalidStatusError struct {
	Message string
}

func (e *InvalidStatusError) Error() string { return e.Message }
