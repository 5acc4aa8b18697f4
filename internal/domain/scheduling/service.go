package scheduling

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rs/zerolog"

	"github.com/clinreg/clinreg/internal/domain/patients"
	"github.com/clinreg/clinreg/internal/domain/staff"
	"github.com/clinreg/clinreg/internal/platform/db"
	"github.com/clinreg/clinreg/internal/platform/rules"
)

// DoctorDirectory resolves doctors mirrored from the auth service.
type DoctorDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*staff.Doctor, error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*staff.Doctor, error)
}

// PatientDirectory resolves patient records.
type PatientDirectory interface {
	Get(ctx context.Context, id uuid.UUID) (*patients.Patient, error)
	GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*patients.Patient, error)
}

// RuleSource supplies the platform-wide scheduling rules.
type RuleSource interface {
	MaxSchedulePeriodDays(ctx context.Context) int
	ReducedDays(ctx context.Context) []rules.ReducedDay
}

// TxRunner executes fn within a storage transaction so that multi-row
// cascades commit or roll back as one unit.
type TxRunner func(ctx context.Context, fn func(ctx context.Context) error) error

// PoolTxRunner builds a TxRunner over a connection pool.
func PoolTxRunner(pool *pgxpool.Pool) TxRunner {
	return func(ctx context.Context, fn func(ctx context.Context) error) error {
		return db.WithTx(ctx, pool, fn)
	}
}

// ScheduleService manages doctor schedules and their materialized day
// grids.
type ScheduleService struct {
	schedules        ScheduleRepository
	days             ScheduleDayRepository
	appointments     AppointmentRepository
	doctors          DoctorDirectory
	rules            RuleSource
	inTx             TxRunner
	schedulableRoles []string
	logger           zerolog.Logger
}

func NewScheduleService(
	schedules ScheduleRepository,
	days ScheduleDayRepository,
	appointments AppointmentRepository,
	doctors DoctorDirectory,
	ruleSource RuleSource,
	inTx TxRunner,
	schedulableRoles []string,
	logger zerolog.Logger,
) *ScheduleService {
	return &ScheduleService{
		schedules:        schedules,
		days:             days,
		appointments:     appointments,
		doctors:          doctors,
		rules:            ruleSource,
		inTx:             inTx,
		schedulableRoles: schedulableRoles,
		logger:           logger.With().Str("component", "schedule_service").Logger(),
	}
}

// CreateScheduleInput carries the fields of a new schedule. Weekdays
// missing from the template get the default working day.
type CreateScheduleInput struct {
	Name                string       `json:"schedule_name"`
	Description         *string      `json:"description"`
	AppointmentInterval int          `json:"appointment_interval"`
	PeriodStart         Date         `json:"period_start_date"`
	PeriodEnd           Date         `json:"period_end_date"`
	WeekTemplate        WeekTemplate `json:"week_days"`
}

// UpdateScheduleInput is a nil-skipping patch for an existing schedule.
type UpdateScheduleInput struct {
	Name                *string `json:"schedule_name"`
	Description         *string `json:"description"`
	IsActive            *bool   `json:"is_active"`
	AppointmentInterval *int    `json:"appointment_interval"`
	PeriodStart         *Date   `json:"period_start_date"`
	PeriodEnd           *Date   `json:"period_end_date"`
}

// RegenerateDaysInput carries the weekly template the day grid is rebuilt
// from. Weekdays missing from the template get the default working day.
type RegenerateDaysInput struct {
	WeekTemplate WeekTemplate `json:"week_days"`
}

// ScheduleDetails pairs a schedule with its doctor.
type ScheduleDetails struct {
	Schedule *Schedule     `json:"schedule"`
	Doctor   *staff.Doctor `json:"doctor,omitempty"`
}

// Create validates the doctor, the name and the period against the
// platform limit, then persists the schedule together with its generated
// days in one transaction.
func (s *ScheduleService) Create(ctx context.Context, doctorID uuid.UUID, in CreateScheduleInput) (*Schedule, error) {
	doctor, err := s.doctors.Get(ctx, doctorID)
	if err != nil {
		return nil, err
	}
	if !doctor.HasAnyRole(s.schedulableRoles) {
		return nil, ErrRoleNotSchedulable
	}
	if err := in.WeekTemplate.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureNameFree(ctx, doctorID, in.Name, uuid.Nil); err != nil {
		return nil, err
	}

	sched, err := NewSchedule(doctorID, in.Name, in.Description, in.AppointmentInterval, in.PeriodStart, in.PeriodEnd)
	if err != nil {
		return nil, err
	}
	if err := s.checkPeriodLength(ctx, sched.PeriodStart, sched.PeriodEnd); err != nil {
		return nil, err
	}

	reduced := s.rules.ReducedDays(ctx)
	days := GenerateDays(sched.ID, sched.PeriodStart, sched.PeriodEnd, in.WeekTemplate, reduced)

	err = s.inTx(ctx, func(ctx context.Context) error {
		if err := s.schedules.Create(ctx, sched); err != nil {
			return err
		}
		return s.days.CreateBatch(ctx, days)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("schedule_id", sched.ID.String()).
		Str("doctor_id", doctorID.String()).
		Int("days", len(days)).
		Msg("schedule created")
	return sched, nil
}

// Update applies the patch. Deactivation cancels every booked slot on the
// schedule. When the period changes, days that fall out of the new range
// are removed with their booked slots cancelled first, and new dates are
// generated using the hours of an existing day with the same weekday.
func (s *ScheduleService) Update(ctx context.Context, id uuid.UUID, in UpdateScheduleInput) (*Schedule, error) {
	sched, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if in.Name != nil && *in.Name != sched.Name {
		if err := s.ensureNameFree(ctx, sched.DoctorID, *in.Name, sched.ID); err != nil {
			return nil, err
		}
	}

	newStart := sched.PeriodStart
	newEnd := sched.PeriodEnd
	if in.PeriodStart != nil {
		newStart = NewDate(in.PeriodStart.Time)
	}
	if in.PeriodEnd != nil {
		newEnd = NewDate(in.PeriodEnd.Time)
	}
	if newEnd.Before(newStart.Time) {
		return nil, ErrInvalidPeriod
	}
	periodChanged := !newStart.Equal(sched.PeriodStart.Time) || !newEnd.Equal(sched.PeriodEnd.Time)
	if periodChanged {
		if err := s.checkPeriodLength(ctx, newStart, newEnd); err != nil {
			return nil, err
		}
	}

	deactivating := in.IsActive != nil && !*in.IsActive && sched.IsActive
	if err := sched.UpdateBasicInfo(in.Name, in.Description, in.AppointmentInterval); err != nil {
		return nil, err
	}
	if in.IsActive != nil {
		sched.IsActive = *in.IsActive
	}
	sched.PeriodStart = newStart
	sched.PeriodEnd = newEnd

	existing, err := s.days.ListBySchedule(ctx, id)
	if err != nil {
		return nil, err
	}

	var toAdd []*ScheduleDay
	var toDelete []*ScheduleDay
	if periodChanged {
		toAdd, toDelete = s.diffDays(ctx, sched, existing, newStart, newEnd)
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		if deactivating {
			for _, day := range existing {
				if err := s.cancelBookedOnDay(ctx, day.ID); err != nil {
					return err
				}
			}
		}
		if err := s.schedules.Update(ctx, sched); err != nil {
			return err
		}
		if err := s.days.CreateBatch(ctx, toAdd); err != nil {
			return err
		}
		for _, day := range toDelete {
			if err := s.cancelBookedOnDay(ctx, day.ID); err != nil {
				return err
			}
			if err := s.days.Delete(ctx, day.ID); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return sched, nil
}

// Delete cancels every booked slot of the schedule, then removes it. Days
// and appointments cascade in storage.
func (s *ScheduleService) Delete(ctx context.Context, id uuid.UUID) error {
	if _, err := s.schedules.GetByID(ctx, id); err != nil {
		return err
	}
	days, err := s.days.ListBySchedule(ctx, id)
	if err != nil {
		return err
	}
	return s.inTx(ctx, func(ctx context.Context) error {
		for _, day := range days {
			if err := s.cancelBookedOnDay(ctx, day.ID); err != nil {
				return err
			}
		}
		return s.schedules.Delete(ctx, id)
	})
}

// RegenerateDays rebuilds the schedule's day grid over its current
// period. Existing days go away with their booked slots cancelled first,
// then the generation algorithm runs again with the supplied template and
// the current reduced-day calendar. The whole swap is one transaction.
func (s *ScheduleService) RegenerateDays(ctx context.Context, id uuid.UUID, in RegenerateDaysInput) ([]*ScheduleDay, error) {
	sched, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := in.WeekTemplate.Validate(); err != nil {
		return nil, err
	}
	existing, err := s.days.ListBySchedule(ctx, id)
	if err != nil {
		return nil, err
	}

	reduced := s.rules.ReducedDays(ctx)
	days := GenerateDays(sched.ID, sched.PeriodStart, sched.PeriodEnd, in.WeekTemplate, reduced)

	err = s.inTx(ctx, func(ctx context.Context) error {
		for _, day := range existing {
			if err := s.cancelBookedOnDay(ctx, day.ID); err != nil {
				return err
			}
			if err := s.days.Delete(ctx, day.ID); err != nil {
				return err
			}
		}
		return s.days.CreateBatch(ctx, days)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Str("schedule_id", sched.ID.String()).
		Int("days", len(days)).
		Msg("schedule days regenerated")
	return days, nil
}

// Get returns the schedule together with its doctor. A doctor missing
// from the mirror leaves the doctor field empty rather than failing.
func (s *ScheduleService) Get(ctx context.Context, id uuid.UUID) (*ScheduleDetails, error) {
	sched, err := s.schedules.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	doctors, err := s.doctors.GetMany(ctx, []uuid.UUID{sched.DoctorID})
	if err != nil {
		return nil, err
	}
	return &ScheduleDetails{Schedule: sched, Doctor: doctors[sched.DoctorID]}, nil
}

// List returns a page of schedules with their doctors attached.
func (s *ScheduleService) List(ctx context.Context, filter ScheduleListFilter, limit, offset int) ([]*ScheduleDetails, int, error) {
	schedules, total, err := s.schedules.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	ids := make([]uuid.UUID, 0, len(schedules))
	seen := make(map[uuid.UUID]bool, len(schedules))
	for _, sched := range schedules {
		if !seen[sched.DoctorID] {
			seen[sched.DoctorID] = true
			ids = append(ids, sched.DoctorID)
		}
	}
	doctors, err := s.doctors.GetMany(ctx, ids)
	if err != nil {
		return nil, 0, err
	}
	out := make([]*ScheduleDetails, 0, len(schedules))
	for _, sched := range schedules {
		out = append(out, &ScheduleDetails{Schedule: sched, Doctor: doctors[sched.DoctorID]})
	}
	return out, total, nil
}

// ListDays returns the full day grid of the schedule ordered by date.
func (s *ScheduleService) ListDays(ctx context.Context, scheduleID uuid.UUID) ([]*ScheduleDay, error) {
	if _, err := s.schedules.GetByID(ctx, scheduleID); err != nil {
		return nil, err
	}
	return s.days.ListBySchedule(ctx, scheduleID)
}

func (s *ScheduleService) ensureNameFree(ctx context.Context, doctorID uuid.UUID, name string, selfID uuid.UUID) error {
	existing, err := s.schedules.GetByDoctorAndName(ctx, doctorID, name)
	if err != nil {
		return err
	}
	if existing != nil && existing.ID != selfID {
		return ErrNameTaken
	}
	return nil
}

func (s *ScheduleService) checkPeriodLength(ctx context.Context, start, end Date) error {
	maxDays := s.rules.MaxSchedulePeriodDays(ctx)
	if DaysBetween(start.Time, end.Time) > maxDays {
		return &PeriodTooLongError{MaxDays: maxDays}
	}
	return nil
}

// diffDays computes the day rows to create and delete when the period
// moves. Added dates copy the hours of an already materialized day with
// the same weekday, so a schedule extended by a week keeps its shape.
func (s *ScheduleService) diffDays(ctx context.Context, sched *Schedule, existing []*ScheduleDay, newStart, newEnd Date) (toAdd, toDelete []*ScheduleDay) {
	byDate := make(map[string]*ScheduleDay, len(existing))
	tmpl := WeekTemplate{}
	for _, day := range existing {
		byDate[day.Date.String()] = day
		if tmpl.Pattern(day.DayOfWeek) == nil {
			tmpl.SetPattern(day.DayOfWeek, &DayPattern{
				IsActive:   day.IsActive,
				WorkStart:  day.WorkStart,
				WorkEnd:    day.WorkEnd,
				BreakStart: day.BreakStart,
				BreakEnd:   day.BreakEnd,
			})
		}
	}

	reduced := s.rules.ReducedDays(ctx)
	overrides := parseOverrides(reduced)
	for d := newStart; !d.After(newEnd.Time); d = d.AddDays(1) {
		if _, ok := byDate[d.String()]; !ok {
			toAdd = append(toAdd, generateDay(sched.ID, d, &tmpl, overrides))
		}
	}
	for _, day := range existing {
		if day.Date.Before(newStart.Time) || day.Date.After(newEnd.Time) {
			toDelete = append(toDelete, day)
		}
	}
	return toAdd, toDelete
}

// cancelBookedOnDay cancels every booked appointment of the day.
func (s *ScheduleService) cancelBookedOnDay(ctx context.Context, dayID uuid.UUID) error {
	appts, err := s.appointments.ListByDay(ctx, dayID)
	if err != nil {
		return err
	}
	for _, a := range appts {
		if a.Status != StatusBooked {
			continue
		}
		a.Cancel()
		if err := s.appointments.Update(ctx, a); err != nil {
			return err
		}
	}
	return nil
}

// IsNotFound reports whether err is one of the package's missing-entity
// sentinels.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrScheduleNotFound) ||
		errors.Is(err, ErrDayNotFound) ||
		errors.Is(err, ErrAppointmentNotFound)
}
