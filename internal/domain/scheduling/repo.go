package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// ScheduleListFilter narrows schedule listings at the storage level.
type ScheduleListFilter struct {
	DoctorID *uuid.UUID
	Name     string
	IsActive *bool
}

// AppointmentListFilter narrows appointment listings at the storage level.
// Attributes that live on related aggregates (patient name, doctor
// specialization) are filtered in the service after batch loading.
type AppointmentListFilter struct {
	ScheduleDayID *uuid.UUID
	DoctorID      *uuid.UUID
	PatientID     *uuid.UUID
	Status        string
	DateFrom      *time.Time
	DateTo        *time.Time
}

// ScheduleRepository persists schedules.
type ScheduleRepository interface {
	Create(ctx context.Context, s *Schedule) error
	Update(ctx context.Context, s *Schedule) error
	// Delete removes the schedule; days and appointments cascade in storage.
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error)
	// GetByDayID resolves the schedule owning the given day.
	GetByDayID(ctx context.Context, dayID uuid.UUID) (*Schedule, error)
	GetByDoctorAndName(ctx context.Context, doctorID uuid.UUID, name string) (*Schedule, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Schedule, error)
	List(ctx context.Context, filter ScheduleListFilter, limit, offset int) ([]*Schedule, int, error)
}

// ScheduleDayRepository persists the materialized day grid.
type ScheduleDayRepository interface {
	CreateBatch(ctx context.Context, days []*ScheduleDay) error
	Update(ctx context.Context, d *ScheduleDay) error
	// Delete removes the day; its appointments cascade in storage.
	Delete(ctx context.Context, id uuid.UUID) error
	GetByID(ctx context.Context, id uuid.UUID) (*ScheduleDay, error)
	GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*ScheduleDay, error)
	ListBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]*ScheduleDay, error)
}

// AppointmentRepository persists appointment slots.
type AppointmentRepository interface {
	Create(ctx context.Context, a *Appointment) error
	Update(ctx context.Context, a *Appointment) error
	Delete(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*Appointment, error)
	ListByDay(ctx context.Context, dayID uuid.UUID) ([]*Appointment, error)
	List(ctx context.Context, filter AppointmentListFilter, limit, offset int) ([]*Appointment, int, error)
}
