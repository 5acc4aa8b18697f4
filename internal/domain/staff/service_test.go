package staff

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
)

type mockDoctorRepo struct {
	doctors map[uuid.UUID]*Doctor
}

func newMockDoctorRepo() *mockDoctorRepo {
	return &mockDoctorRepo{doctors: make(map[uuid.UUID]*Doctor)}
}

func (m *mockDoctorRepo) Upsert(ctx context.Context, d *Doctor) error {
	m.doctors[d.ID] = d
	return nil
}

func (m *mockDoctorRepo) Delete(ctx context.Context, id uuid.UUID) error {
	delete(m.doctors, id)
	return nil
}

func (m *mockDoctorRepo) GetByID(ctx context.Context, id uuid.UUID) (*Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, pgx.ErrNoRows
	}
	return d, nil
}

func (m *mockDoctorRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Doctor, error) {
	out := make(map[uuid.UUID]*Doctor)
	for _, id := range ids {
		if d, ok := m.doctors[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

func (m *mockDoctorRepo) List(ctx context.Context, filter ListFilter, limit, offset int) ([]*Doctor, int, error) {
	var items []*Doctor
	for _, d := range m.doctors {
		if filter.FullName != "" && !strings.Contains(strings.ToLower(d.FullName()), strings.ToLower(filter.FullName)) {
			continue
		}
		if filter.OnlyEnabled && !d.Enabled {
			continue
		}
		items = append(items, d)
	}
	return items, len(items), nil
}

func validDoctor() *Doctor {
	return &Doctor{
		ID:                 uuid.New(),
		FirstName:          "Aigerim",
		LastName:           "Bekova",
		IIN:                "880101300123",
		DateOfBirth:        time.Date(1988, 1, 1, 0, 0, 0, 0, time.UTC),
		ClientRoles:        []string{"doctor"},
		Enabled:            true,
		ServedPatientTypes: []string{"adult"},
	}
}

func TestApply_ValidDoctor(t *testing.T) {
	repo := newMockDoctorRepo()
	svc := NewService(repo, zerolog.Nop())

	d := validDoctor()
	if err := svc.Apply(context.Background(), d); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := repo.doctors[d.ID]; !ok {
		t.Error("expected doctor to be stored")
	}
}

func TestApply_RejectsInvalid(t *testing.T) {
	svc := NewService(newMockDoctorRepo(), zerolog.Nop())

	tests := []struct {
		name   string
		mutate func(*Doctor)
	}{
		{"missing id", func(d *Doctor) { d.ID = uuid.Nil }},
		{"blank first name", func(d *Doctor) { d.FirstName = "  " }},
		{"blank last name", func(d *Doctor) { d.LastName = "" }},
		{"short iin", func(d *Doctor) { d.IIN = "12345" }},
		{"non-numeric iin", func(d *Doctor) { d.IIN = "88010130012x" }},
		{"zero birth date", func(d *Doctor) { d.DateOfBirth = time.Time{} }},
		{"future birth date", func(d *Doctor) { d.DateOfBirth = time.Now().Add(24 * time.Hour) }},
		{"blank specialization", func(d *Doctor) { d.Specializations = []Specialization{{Name: " "}} }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := validDoctor()
			tt.mutate(d)
			if err := svc.Apply(context.Background(), d); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestGet_NotFound(t *testing.T) {
	svc := NewService(newMockDoctorRepo(), zerolog.Nop())

	_, err := svc.Get(context.Background(), uuid.New())
	if err != ErrDoctorNotFound {
		t.Errorf("expected ErrDoctorNotFound, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	repo := newMockDoctorRepo()
	svc := NewService(repo, zerolog.Nop())

	d := validDoctor()
	repo.doctors[d.ID] = d

	if err := svc.Remove(context.Background(), d.ID); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if _, ok := repo.doctors[d.ID]; ok {
		t.Error("expected doctor to be removed")
	}
}

func TestFullName(t *testing.T) {
	middle := "Serikovna"
	d := &Doctor{FirstName: "Aigerim", LastName: "Bekova", MiddleName: &middle}
	if got := d.FullName(); got != "Bekova Aigerim Serikovna" {
		t.Errorf("unexpected full name: %q", got)
	}

	d.MiddleName = nil
	if got := d.FullName(); got != "Bekova Aigerim" {
		t.Errorf("unexpected full name without middle: %q", got)
	}
}

func TestHasAnyRole(t *testing.T) {
	d := &Doctor{ClientRoles: []string{"doctor", "therapist"}}

	if !d.HasAnyRole([]string{"admin", "doctor"}) {
		t.Error("expected role match")
	}
	if d.HasAnyRole([]string{"admin", "nurse"}) {
		t.Error("expected no role match")
	}
	if d.HasAnyRole(nil) {
		t.Error("expected no match against empty list")
	}
}

func TestCapabilityChecks(t *testing.T) {
	d := &Doctor{
		ServedPatientTypes:    []string{"adult"},
		ServedReferralTypes:   []string{"with_referral"},
		ServedReferralOrigins: []string{"self_registration"},
		ServedPaymentTypes:    []string{"OSMS", "Paid"},
	}

	if !d.ServesPatientType("adult") || d.ServesPatientType("child") {
		t.Error("patient type check failed")
	}
	if !d.ServesReferralType("with_referral") || d.ServesReferralType("without_referral") {
		t.Error("referral type check failed")
	}
	if !d.ServesReferralOrigin("self_registration") || d.ServesReferralOrigin("from_external_organization") {
		t.Error("referral origin check failed")
	}
	if !d.ServesPaymentType("Paid") || d.ServesPaymentType("DMS") {
		t.Error("payment type check failed")
	}
}

func TestAreaNumber(t *testing.T) {
	d := &Doctor{}
	if d.AreaNumber() != 0 {
		t.Error("expected 0 for missing attachment data")
	}

	n := 12
	d.AttachmentData = &AttachmentData{AreaNumber: &n}
	if d.AreaNumber() != 12 {
		t.Errorf("expected 12, got %d", d.AreaNumber())
	}
}
