package scheduling

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"

	"github.com/clinreg/clinreg/internal/domain/staff"
	"github.com/clinreg/clinreg/internal/platform/rules"
)

func validCreateInput() CreateScheduleInput {
	return CreateScheduleInput{
		Name:                "therapy",
		AppointmentInterval: 30,
		PeriodStart:         mustDate("2026-09-07"),
		PeriodEnd:           mustDate("2026-09-13"),
	}
}

func TestScheduleService_Create(t *testing.T) {
	f := newFixture()
	doctor := f.addDoctor()
	svc := f.scheduleService()

	sched, err := svc.Create(context.Background(), doctor.ID, validCreateInput())
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if sched.DoctorID != doctor.ID {
		t.Errorf("doctor id mismatch")
	}
	if len(f.store.days) != 7 {
		t.Fatalf("expected 7 generated days, got %d", len(f.store.days))
	}
	for _, d := range f.store.days {
		if d.ScheduleID != sched.ID {
			t.Error("generated day bound to wrong schedule")
		}
	}
}

func TestScheduleService_Create_DoctorNotFound(t *testing.T) {
	f := newFixture()
	svc := f.scheduleService()

	_, err := svc.Create(context.Background(), uuid.New(), validCreateInput())
	if !errors.Is(err, staff.ErrDoctorNotFound) {
		t.Fatalf("expected ErrDoctorNotFound, got %v", err)
	}
}

func TestScheduleService_Create_RoleNotSchedulable(t *testing.T) {
	f := newFixture()
	doctor := f.addDoctor("receptionist")
	svc := f.scheduleService()

	_, err := svc.Create(context.Background(), doctor.ID, validCreateInput())
	if !errors.Is(err, ErrRoleNotSchedulable) {
		t.Fatalf("expected ErrRoleNotSchedulable, got %v", err)
	}
}

func TestScheduleService_Create_NameTaken(t *testing.T) {
	f := newFixture()
	doctor := f.addDoctor()
	svc := f.scheduleService()

	if _, err := svc.Create(context.Background(), doctor.ID, validCreateInput()); err != nil {
		t.Fatal(err)
	}
	_, err := svc.Create(context.Background(), doctor.ID, validCreateInput())
	if !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
}

func TestScheduleService_Create_PeriodTooLong(t *testing.T) {
	f := newFixture()
	doctor := f.addDoctor()
	f.rules.maxDays = 30
	svc := f.scheduleService()

	in := validCreateInput()
	in.PeriodStart = mustDate("2026-09-01")
	in.PeriodEnd = mustDate("2026-10-11") // 40 days
	_, err := svc.Create(context.Background(), doctor.ID, in)

	var tooLong *PeriodTooLongError
	if !errors.As(err, &tooLong) {
		t.Fatalf("expected PeriodTooLongError, got %v", err)
	}
	if tooLong.MaxDays != 30 {
		t.Errorf("max days = %d, want 30", tooLong.MaxDays)
	}

	// Exactly at the limit is accepted.
	in.PeriodEnd = mustDate("2026-10-01")
	if _, err := svc.Create(context.Background(), doctor.ID, in); err != nil {
		t.Fatalf("30-day period should pass: %v", err)
	}
}

func TestScheduleService_Update_DeactivateCancelsBooked(t *testing.T) {
	f := newFixture()
	doctor := f.addDoctor()
	sched, day := f.scheduleWith(doctor.ID, 30, "09:00", "17:00")
	booked := &Appointment{ID: 1, ScheduleDayID: day.ID, Time: MustTimeOfDay("10:00"), Status: StatusBooked}
	free := &Appointment{ID: 2, ScheduleDayID: day.ID, Time: MustTimeOfDay("11:00"), Status: StatusFree}
	f.store.appts[1] = booked
	f.store.appts[2] = free
	f.store.nextApptID = 2
	svc := f.scheduleService()

	inactive := false
	updated, err := svc.Update(context.Background(), sched.ID, UpdateScheduleInput{IsActive: &inactive})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.IsActive {
		t.Error("schedule should be inactive")
	}
	if got := f.store.appts[1]; got.Status != StatusCancelled || got.CancelledAt == nil {
		t.Errorf("booked appointment should be cancelled with timestamp, got %s", got.Status)
	}
	if got := f.store.appts[2]; got.Status != StatusFree {
		t.Errorf("free appointment must stay untouched, got %s", got.Status)
	}
}

func TestScheduleService_Update_ShrinkPeriodRemovesDays(t *testing.T) {
	f := newFixture()
	doctor := f.addDoctor()
	svc := f.scheduleService()
	sched, err := svc.Create(context.Background(), doctor.ID, validCreateInput())
	if err != nil {
		t.Fatal(err)
	}

	newEnd := mustDate("2026-09-09")
	if _, err := svc.Update(context.Background(), sched.ID, UpdateScheduleInput{PeriodEnd: &newEnd}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(f.store.days) != 3 {
		t.Fatalf("expected 3 remaining days, got %d", len(f.store.days))
	}
	for _, d := range f.store.days {
		if d.Date.After(newEnd.Time) {
			t.Errorf("day %s survived outside the period", d.Date)
		}
	}
}

func TestScheduleService_Update_ExtendPeriodKeepsWeekdayShape(t *testing.T) {
	f := newFixture()
	doctor := f.addDoctor()
	svc := f.scheduleService()

	in := validCreateInput()
	in.WeekTemplate = WeekTemplate{
		Monday: &DayPattern{IsActive: true, WorkStart: MustTimeOfDay("10:00"), WorkEnd: MustTimeOfDay("15:00")},
	}
	sched, err := svc.Create(context.Background(), doctor.ID, in)
	if err != nil {
		t.Fatal(err)
	}

	newEnd := mustDate("2026-09-20")
	if _, err := svc.Update(context.Background(), sched.ID, UpdateScheduleInput{PeriodEnd: &newEnd}); err != nil {
		t.Fatalf("update: %v", err)
	}
	if len(f.store.days) != 14 {
		t.Fatalf("expected 14 days, got %d", len(f.store.days))
	}
	for _, d := range f.store.days {
		if d.Date.String() == "2026-09-14" { // the added Monday
			if d.WorkStart.String() != "10:00" || d.WorkEnd.String() != "15:00" {
				t.Errorf("added Monday hours %s-%s, want 10:00-15:00", d.WorkStart, d.WorkEnd)
			}
		}
	}
}

func TestScheduleService_Update_InvalidPeriod(t *testing.T) {
	f := newFixture()
	doctor := f.addDoctor()
	svc := f.scheduleService()
	sched, err := svc.Create(context.Background(), doctor.ID, validCreateInput())
	if err != nil {
		t.Fatal(err)
	}

	badEnd := mustDate("2026-09-01")
	_, err = svc.Update(context.Background(), sched.ID, UpdateScheduleInput{PeriodEnd: &badEnd})
	if !errors.Is(err, ErrInvalidPeriod) {
		t.Fatalf("expected ErrInvalidPeriod, got %v", err)
	}
}

func TestScheduleService_Update_NameTaken(t *testing.T) {
	f := newFixture()
	doctor := f.addDoctor()
	svc := f.scheduleService()

	first, err := svc.Create(context.Background(), doctor.ID, validCreateInput())
	if err != nil {
		t.Fatal(err)
	}
	second := validCreateInput()
	second.Name = "evening"
	other, err := svc.Create(context.Background(), doctor.ID, second)
	if err != nil {
		t.Fatal(err)
	}

	name := first.Name
	_, err = svc.Update(context.Background(), other.ID, UpdateScheduleInput{Name: &name})
	if !errors.Is(err, ErrNameTaken) {
		t.Fatalf("expected ErrNameTaken, got %v", err)
	}
}

func TestScheduleService_RegenerateDays_ReplacesGrid(t *testing.T) {
	f := newFixture()
	doctor := f.addDoctor()
	svc := f.scheduleService()
	sched, err := svc.Create(context.Background(), doctor.ID, validCreateInput())
	if err != nil {
		t.Fatal(err)
	}
	oldIDs := make(map[uuid.UUID]bool, len(f.store.days))
	var monday *ScheduleDay
	for id, d := range f.store.days {
		oldIDs[id] = true
		if d.Date.String() == "2026-09-07" {
			monday = d
		}
	}
	f.store.appts[1] = &Appointment{ID: 1, ScheduleDayID: monday.ID, Time: MustTimeOfDay("10:00"), Status: StatusBooked}
	f.store.nextApptID = 1

	days, err := svc.RegenerateDays(context.Background(), sched.ID, RegenerateDaysInput{
		WeekTemplate: WeekTemplate{
			Monday: &DayPattern{IsActive: true, WorkStart: MustTimeOfDay("10:00"), WorkEnd: MustTimeOfDay("14:00")},
		},
	})
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	if len(days) != 7 || len(f.store.days) != 7 {
		t.Fatalf("expected 7 regenerated days, got %d returned and %d stored", len(days), len(f.store.days))
	}
	for id := range f.store.days {
		if oldIDs[id] {
			t.Fatal("old day rows should be replaced, not kept")
		}
	}
	for _, d := range days {
		if d.Date.String() == "2026-09-07" {
			if d.WorkStart.String() != "10:00" || d.WorkEnd.String() != "14:00" {
				t.Errorf("regenerated Monday hours %s-%s, want 10:00-14:00", d.WorkStart, d.WorkEnd)
			}
		}
	}
	if len(f.store.appts) != 0 {
		t.Error("booked slots on the old grid should be cancelled and removed with their days")
	}
}

func TestScheduleService_RegenerateDays_AppliesReducedDays(t *testing.T) {
	f := newFixture()
	doctor := f.addDoctor()
	svc := f.scheduleService()
	sched, err := svc.Create(context.Background(), doctor.ID, validCreateInput())
	if err != nil {
		t.Fatal(err)
	}

	f.rules.reduced = []rules.ReducedDay{{Date: "2026-09-09", IsActive: false}}
	days, err := svc.RegenerateDays(context.Background(), sched.ID, RegenerateDaysInput{})
	if err != nil {
		t.Fatalf("regenerate: %v", err)
	}
	for _, d := range days {
		if d.Date.String() == "2026-09-09" && d.IsActive {
			t.Error("reduced day should come out inactive")
		}
	}
}

func TestScheduleService_RegenerateDays_InvalidTemplate(t *testing.T) {
	f := newFixture()
	doctor := f.addDoctor()
	svc := f.scheduleService()
	sched, err := svc.Create(context.Background(), doctor.ID, validCreateInput())
	if err != nil {
		t.Fatal(err)
	}

	_, err = svc.RegenerateDays(context.Background(), sched.ID, RegenerateDaysInput{
		WeekTemplate: WeekTemplate{
			Monday: &DayPattern{IsActive: true, WorkStart: MustTimeOfDay("15:00"), WorkEnd: MustTimeOfDay("09:00")},
		},
	})
	var validationErr *ValidationError
	if !errors.As(err, &validationErr) {
		t.Fatalf("expected ValidationError for inverted hours, got %v", err)
	}
	if len(f.store.days) != 7 {
		t.Errorf("grid must stay untouched on validation failure, got %d days", len(f.store.days))
	}
}

func TestScheduleService_RegenerateDays_NotFound(t *testing.T) {
	f := newFixture()
	svc := f.scheduleService()

	_, err := svc.RegenerateDays(context.Background(), uuid.New(), RegenerateDaysInput{})
	if !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("expected ErrScheduleNotFound, got %v", err)
	}
}

func TestScheduleService_Delete_CancelsAndCascades(t *testing.T) {
	f := newFixture()
	doctor := f.addDoctor()
	sched, day := f.scheduleWith(doctor.ID, 30, "09:00", "17:00")
	f.store.appts[1] = &Appointment{ID: 1, ScheduleDayID: day.ID, Time: MustTimeOfDay("10:00"), Status: StatusBooked}
	f.store.nextApptID = 1
	svc := f.scheduleService()

	if err := svc.Delete(context.Background(), sched.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if len(f.store.schedules) != 0 || len(f.store.days) != 0 || len(f.store.appts) != 0 {
		t.Error("schedule, days and appointments should all be gone")
	}
}

func TestScheduleService_Delete_NotFound(t *testing.T) {
	f := newFixture()
	svc := f.scheduleService()

	err := svc.Delete(context.Background(), uuid.New())
	if !errors.Is(err, ErrScheduleNotFound) {
		t.Fatalf("expected ErrScheduleNotFound, got %v", err)
	}
}

func TestScheduleService_Get(t *testing.T) {
	f := newFixture()
	doctor := f.addDoctor()
	sched, _ := f.scheduleWith(doctor.ID, 30, "09:00", "17:00")
	svc := f.scheduleService()

	details, err := svc.Get(context.Background(), sched.ID)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if details.Doctor == nil || details.Doctor.ID != doctor.ID {
		t.Error("doctor should be resolved")
	}
	if details.Schedule.ID != sched.ID {
		t.Error("wrong schedule")
	}
}
