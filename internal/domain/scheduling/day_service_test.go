package scheduling

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
)

func timePtr(s string) *TimeOfDay {
	t := MustTimeOfDay(s)
	return &t
}

func TestDayService_Update_ShrinkHoursCancelsDisplacedBooked(t *testing.T) {
	f := newFixture()
	doctor := f.addDoctor()
	_, day := f.scheduleWith(doctor.ID, 30, "09:00", "17:00")
	f.store.appts[1] = &Appointment{ID: 1, ScheduleDayID: day.ID, Time: MustTimeOfDay("14:00"), Status: StatusBooked}
	f.store.appts[2] = &Appointment{ID: 2, ScheduleDayID: day.ID, Time: MustTimeOfDay("10:00"), Status: StatusBooked}
	f.store.nextApptID = 2
	svc := f.dayService()

	updated, err := svc.Update(context.Background(), day.ID, UpdateDayInput{WorkEnd: timePtr("13:00")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.WorkEnd.String() != "13:00" {
		t.Errorf("work end = %s, want 13:00", updated.WorkEnd)
	}
	if got := f.store.appts[1]; got.Status != StatusCancelled || got.CancelledAt == nil {
		t.Errorf("14:00 booking should be cancelled, got %s", got.Status)
	}
	if got := f.store.appts[2]; got.Status != StatusBooked {
		t.Errorf("10:00 booking should survive, got %s", got.Status)
	}
}

func TestDayService_Update_AbsentBreakIsReclipped(t *testing.T) {
	f := newFixture()
	doctor := f.addDoctor()
	_, day := f.scheduleWith(doctor.ID, 30, "08:00", "17:00", "13:00", "14:00")
	svc := f.dayService()

	updated, err := svc.Update(context.Background(), day.ID, UpdateDayInput{WorkEnd: timePtr("13:30")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.HasBreak() || updated.BreakStart.String() != "13:00" || updated.BreakEnd.String() != "13:30" {
		t.Errorf("break should be clipped to 13:00-13:30, got %v-%v", updated.BreakStart, updated.BreakEnd)
	}

	// Shrinking past the whole break drops it.
	updated, err = svc.Update(context.Background(), day.ID, UpdateDayInput{WorkEnd: timePtr("12:00")})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.HasBreak() {
		t.Errorf("break should be dropped, got %v-%v", updated.BreakStart, updated.BreakEnd)
	}
}

func TestDayService_Update_ExplicitNullClearsBreak(t *testing.T) {
	f := newFixture()
	doctor := f.addDoctor()
	_, day := f.scheduleWith(doctor.ID, 30, "08:00", "17:00", "13:00", "14:00")
	svc := f.dayService()

	var in UpdateDayInput
	if err := json.Unmarshal([]byte(`{"break_start_time": null, "break_end_time": null}`), &in); err != nil {
		t.Fatal(err)
	}
	updated, err := svc.Update(context.Background(), day.ID, in)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.HasBreak() {
		t.Error("explicit null should clear the break")
	}
}

func TestDayService_Update_NewBreakCancelsOverlappingBooked(t *testing.T) {
	f := newFixture()
	doctor := f.addDoctor()
	_, day := f.scheduleWith(doctor.ID, 30, "08:00", "17:00")
	f.store.appts[1] = &Appointment{ID: 1, ScheduleDayID: day.ID, Time: MustTimeOfDay("12:30"), Status: StatusBooked}
	f.store.appts[2] = &Appointment{ID: 2, ScheduleDayID: day.ID, Time: MustTimeOfDay("09:00"), Status: StatusBooked}
	f.store.nextApptID = 2
	svc := f.dayService()

	in := UpdateDayInput{
		BreakStart: OptionalTime{Set: true, Value: timePtr("12:00")},
		BreakEnd:   OptionalTime{Set: true, Value: timePtr("13:00")},
	}
	updated, err := svc.Update(context.Background(), day.ID, in)
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if !updated.HasBreak() || updated.BreakStart.String() != "12:00" {
		t.Error("break should be replaced")
	}
	if got := f.store.appts[1]; got.Status != StatusCancelled {
		t.Errorf("12:30 booking overlaps the break and should be cancelled, got %s", got.Status)
	}
	if got := f.store.appts[2]; got.Status != StatusBooked {
		t.Errorf("09:00 booking should survive, got %s", got.Status)
	}
}

func TestDayService_Update_BreakOutsideHoursRejected(t *testing.T) {
	f := newFixture()
	doctor := f.addDoctor()
	_, day := f.scheduleWith(doctor.ID, 30, "08:00", "17:00")
	svc := f.dayService()

	in := UpdateDayInput{
		BreakStart: OptionalTime{Set: true, Value: timePtr("07:00")},
		BreakEnd:   OptionalTime{Set: true, Value: timePtr("09:00")},
	}
	_, err := svc.Update(context.Background(), day.ID, in)
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestDayService_Update_DeactivateCancelsAllBooked(t *testing.T) {
	f := newFixture()
	doctor := f.addDoctor()
	_, day := f.scheduleWith(doctor.ID, 30, "08:00", "17:00")
	f.store.appts[1] = &Appointment{ID: 1, ScheduleDayID: day.ID, Time: MustTimeOfDay("09:00"), Status: StatusBooked}
	f.store.nextApptID = 1
	svc := f.dayService()

	inactive := false
	updated, err := svc.Update(context.Background(), day.ID, UpdateDayInput{IsActive: &inactive})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if updated.IsActive {
		t.Error("day should be inactive")
	}
	if got := f.store.appts[1]; got.Status != StatusCancelled {
		t.Errorf("booked appointment should be cancelled, got %s", got.Status)
	}
}

func TestDayService_Update_InvertedHoursRejected(t *testing.T) {
	f := newFixture()
	doctor := f.addDoctor()
	_, day := f.scheduleWith(doctor.ID, 30, "08:00", "17:00")
	svc := f.dayService()

	_, err := svc.Update(context.Background(), day.ID, UpdateDayInput{WorkStart: timePtr("18:00")})
	var vErr *ValidationError
	if !errors.As(err, &vErr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
}

func TestDayService_Delete_CancelsBookedThenRemoves(t *testing.T) {
	f := newFixture()
	doctor := f.addDoctor()
	_, day := f.scheduleWith(doctor.ID, 30, "08:00", "17:00")
	f.store.appts[1] = &Appointment{ID: 1, ScheduleDayID: day.ID, Time: MustTimeOfDay("09:00"), Status: StatusBooked}
	f.store.nextApptID = 1
	svc := f.dayService()

	if err := svc.Delete(context.Background(), day.ID); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, ok := f.store.days[day.ID]; ok {
		t.Error("day should be removed")
	}
	if _, ok := f.store.appts[1]; ok {
		t.Error("appointments cascade with the day")
	}
}

func TestDayService_NotFound(t *testing.T) {
	f := newFixture()
	svc := f.dayService()

	if _, err := svc.Get(context.Background(), uuid.New()); !errors.Is(err, ErrDayNotFound) {
		t.Fatalf("expected ErrDayNotFound, got %v", err)
	}
	if err := svc.Delete(context.Background(), uuid.New()); !errors.Is(err, ErrDayNotFound) {
		t.Fatalf("expected ErrDayNotFound, got %v", err)
	}
}
