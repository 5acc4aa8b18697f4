package scheduling

import (
	"context"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// DayService manages individual schedule days after generation.
type DayService struct {
	days         ScheduleDayRepository
	schedules    ScheduleRepository
	appointments AppointmentRepository
	inTx         TxRunner
	logger       zerolog.Logger
}

func NewDayService(
	days ScheduleDayRepository,
	schedules ScheduleRepository,
	appointments AppointmentRepository,
	inTx TxRunner,
	logger zerolog.Logger,
) *DayService {
	return &DayService{
		days:         days,
		schedules:    schedules,
		appointments: appointments,
		inTx:         inTx,
		logger:       logger.With().Str("component", "day_service").Logger(),
	}
}

// UpdateDayInput is a patch for one schedule day. The break fields
// distinguish absent keys from explicit nulls: an absent break keeps the
// existing one clipped to the new hours, an explicit null removes it, and
// supplied values replace it.
type UpdateDayInput struct {
	IsActive   *bool        `json:"is_active"`
	WorkStart  *TimeOfDay   `json:"work_start_time"`
	WorkEnd    *TimeOfDay   `json:"work_end_time"`
	BreakStart OptionalTime `json:"break_start_time"`
	BreakEnd   OptionalTime `json:"break_end_time"`
}

func (d *DayService) Get(ctx context.Context, id uuid.UUID) (*ScheduleDay, error) {
	return d.days.GetByID(ctx, id)
}

// Update applies the patch. Booked appointments that no longer fit are
// cancelled: all of them when the day is deactivated, the ones pushed
// outside shrunk working hours, and the ones inside the break window when
// a new break is supplied.
func (d *DayService) Update(ctx context.Context, id uuid.UUID, in UpdateDayInput) (*ScheduleDay, error) {
	day, err := d.days.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	schedule, err := d.schedules.GetByDayID(ctx, id)
	if err != nil {
		return nil, err
	}

	newStart := day.WorkStart
	newEnd := day.WorkEnd
	if in.WorkStart != nil {
		newStart = *in.WorkStart
	}
	if in.WorkEnd != nil {
		newEnd = *in.WorkEnd
	}
	if newStart >= newEnd {
		return nil, validationErrorf("work start %s must precede work end %s", newStart, newEnd)
	}

	breakStart, breakEnd, breakReplaced, err := effectiveBreak(day, in, newStart, newEnd)
	if err != nil {
		return nil, err
	}

	deactivating := in.IsActive != nil && !*in.IsActive && day.IsActive
	hoursChanged := newStart != day.WorkStart || newEnd != day.WorkEnd

	day.WorkStart = newStart
	day.WorkEnd = newEnd
	day.BreakStart = breakStart
	day.BreakEnd = breakEnd
	if in.IsActive != nil {
		day.IsActive = *in.IsActive
	}

	interval := schedule.AppointmentInterval
	err = d.inTx(ctx, func(ctx context.Context) error {
		switch {
		case deactivating:
			if err := d.cancelBooked(ctx, day.ID, func(a *Appointment) bool { return true }); err != nil {
				return err
			}
		default:
			if hoursChanged {
				err := d.cancelBooked(ctx, day.ID, func(a *Appointment) bool {
					return a.Time < newStart || a.EndTime(interval) > newEnd
				})
				if err != nil {
					return err
				}
			}
			if breakReplaced && day.HasBreak() {
				bs, be := *day.BreakStart, *day.BreakEnd
				err := d.cancelBooked(ctx, day.ID, func(a *Appointment) bool {
					return rangesOverlap(a.Time, a.EndTime(interval), bs, be)
				})
				if err != nil {
					return err
				}
			}
		}
		return d.days.Update(ctx, day)
	})
	if err != nil {
		return nil, err
	}
	return day, nil
}

// Delete cancels the day's booked appointments and removes the day. The
// appointment rows cascade in storage.
func (d *DayService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := d.days.GetByID(ctx, id); err != nil {
		return err
	}
	return d.inTx(ctx, func(ctx context.Context) error {
		if err := d.cancelBooked(ctx, id, func(a *Appointment) bool { return true }); err != nil {
			return err
		}
		return d.days.Delete(ctx, id)
	})
}

// cancelBooked cancels the booked appointments of the day selected by the
// predicate.
func (d *DayService) cancelBooked(ctx context.Context, dayID uuid.UUID, affected func(*Appointment) bool) error {
	appts, err := d.appointments.ListByDay(ctx, dayID)
	if err != nil {
		return err
	}
	for _, a := range appts {
		if a.Status != StatusBooked || !affected(a) {
			continue
		}
		a.Cancel()
		if err := d.appointments.Update(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// effectiveBreak resolves the break of the updated day. When the patch
// does not mention the break, the existing one is clipped to the new
// working hours and dropped once empty. An explicit null on either bound
// removes the break. Supplied values replace it and must fit the new
// hours; breakReplaced is true only in that case.
func effectiveBreak(day *ScheduleDay, in UpdateDayInput, newStart, newEnd TimeOfDay) (bs, be *TimeOfDay, breakReplaced bool, err error) {
	clearedStart := in.BreakStart.Set && in.BreakStart.Value == nil
	clearedEnd := in.BreakEnd.Set && in.BreakEnd.Value == nil
	if clearedStart || clearedEnd {
		return nil, nil, false, nil
	}

	if !in.BreakStart.Set && !in.BreakEnd.Set {
		if !day.HasBreak() {
			return nil, nil, false, nil
		}
		start := maxTime(*day.BreakStart, newStart)
		end := minTime(*day.BreakEnd, newEnd)
		if start >= end {
			return nil, nil, false, nil
		}
		return &start, &end, false, nil
	}

	start := day.BreakStart
	end := day.BreakEnd
	if in.BreakStart.Set {
		start = in.BreakStart.Value
	}
	if in.BreakEnd.Set {
		end = in.BreakEnd.Value
	}
	if start == nil || end == nil {
		return nil, nil, false, validationErrorf("break start and break end must be set together")
	}
	if *start >= *end {
		return nil, nil, false, validationErrorf("break start %s must precede break end %s", *start, *end)
	}
	if *start < newStart || *end > newEnd {
		return nil, nil, false, validationErrorf("break must fit within working hours")
	}
	return start, end, true, nil
}

func rangesOverlap(aStart, aEnd, bStart, bEnd TimeOfDay) bool {
	return aStart < bEnd && bStart < aEnd
}

func maxTime(a, b TimeOfDay) TimeOfDay {
	if a > b {
		return a
	}
	return b
}

func minTime(a, b TimeOfDay) TimeOfDay {
	if a < b {
		return a
	}
	return b
}
