package scheduling

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinreg/clinreg/internal/domain/patients"
	"github.com/clinreg/clinreg/internal/domain/staff"
	"github.com/clinreg/clinreg/internal/platform/rules"
)

// memStore backs the mock repositories with cascades mirroring the
// storage foreign keys.
type memStore struct {
	schedules  map[uuid.UUID]*Schedule
	days       map[uuid.UUID]*ScheduleDay
	appts      map[int64]*Appointment
	nextApptID int64
}

func newMemStore() *memStore {
	return &memStore{
		schedules: make(map[uuid.UUID]*Schedule),
		days:      make(map[uuid.UUID]*ScheduleDay),
		appts:     make(map[int64]*Appointment),
	}
}

type mockScheduleRepo struct {
	store *memStore
}

func (m *mockScheduleRepo) Create(ctx context.Context, s *Schedule) error {
	for _, other := range m.store.schedules {
		if other.DoctorID == s.DoctorID && other.Name == s.Name {
			return ErrNameTaken
		}
	}
	cp := *s
	m.store.schedules[s.ID] = &cp
	return nil
}

func (m *mockScheduleRepo) Update(ctx context.Context, s *Schedule) error {
	if _, ok := m.store.schedules[s.ID]; !ok {
		return ErrScheduleNotFound
	}
	cp := *s
	m.store.schedules[s.ID] = &cp
	return nil
}

func (m *mockScheduleRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.store.schedules[id]; !ok {
		return ErrScheduleNotFound
	}
	delete(m.store.schedules, id)
	for dayID, day := range m.store.days {
		if day.ScheduleID == id {
			m.deleteDayCascade(dayID)
		}
	}
	return nil
}

func (m *mockScheduleRepo) deleteDayCascade(dayID uuid.UUID) {
	delete(m.store.days, dayID)
	for apptID, a := range m.store.appts {
		if a.ScheduleDayID == dayID {
			delete(m.store.appts, apptID)
		}
	}
}

func (m *mockScheduleRepo) GetByID(ctx context.Context, id uuid.UUID) (*Schedule, error) {
	s, ok := m.store.schedules[id]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *mockScheduleRepo) GetByDayID(ctx context.Context, dayID uuid.UUID) (*Schedule, error) {
	day, ok := m.store.days[dayID]
	if !ok {
		return nil, ErrScheduleNotFound
	}
	return m.GetByID(ctx, day.ScheduleID)
}

func (m *mockScheduleRepo) GetByDoctorAndName(ctx context.Context, doctorID uuid.UUID, name string) (*Schedule, error) {
	for _, s := range m.store.schedules {
		if s.DoctorID == doctorID && s.Name == name {
			cp := *s
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *mockScheduleRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*Schedule, error) {
	out := make(map[uuid.UUID]*Schedule)
	for _, id := range ids {
		if s, ok := m.store.schedules[id]; ok {
			cp := *s
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *mockScheduleRepo) List(ctx context.Context, filter ScheduleListFilter, limit, offset int) ([]*Schedule, int, error) {
	var all []*Schedule
	for _, s := range m.store.schedules {
		if filter.DoctorID != nil && s.DoctorID != *filter.DoctorID {
			continue
		}
		if filter.IsActive != nil && s.IsActive != *filter.IsActive {
			continue
		}
		cp := *s
		all = append(all, &cp)
	}
	return all, len(all), nil
}

type mockDayRepo struct {
	store *memStore
}

func (m *mockDayRepo) CreateBatch(ctx context.Context, days []*ScheduleDay) error {
	for _, d := range days {
		cp := *d
		m.store.days[d.ID] = &cp
	}
	return nil
}

func (m *mockDayRepo) Update(ctx context.Context, d *ScheduleDay) error {
	if _, ok := m.store.days[d.ID]; !ok {
		return ErrDayNotFound
	}
	cp := *d
	m.store.days[d.ID] = &cp
	return nil
}

func (m *mockDayRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if _, ok := m.store.days[id]; !ok {
		return ErrDayNotFound
	}
	delete(m.store.days, id)
	for apptID, a := range m.store.appts {
		if a.ScheduleDayID == id {
			delete(m.store.appts, apptID)
		}
	}
	return nil
}

func (m *mockDayRepo) GetByID(ctx context.Context, id uuid.UUID) (*ScheduleDay, error) {
	d, ok := m.store.days[id]
	if !ok {
		return nil, ErrDayNotFound
	}
	cp := *d
	return &cp, nil
}

func (m *mockDayRepo) GetByIDs(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*ScheduleDay, error) {
	out := make(map[uuid.UUID]*ScheduleDay)
	for _, id := range ids {
		if d, ok := m.store.days[id]; ok {
			cp := *d
			out[id] = &cp
		}
	}
	return out, nil
}

func (m *mockDayRepo) ListBySchedule(ctx context.Context, scheduleID uuid.UUID) ([]*ScheduleDay, error) {
	var out []*ScheduleDay
	for _, d := range m.store.days {
		if d.ScheduleID == scheduleID {
			cp := *d
			out = append(out, &cp)
		}
	}
	return out, nil
}

type mockApptRepo struct {
	store *memStore
}

// Create mirrors the partial unique index over live slots.
func (m *mockApptRepo) Create(ctx context.Context, a *Appointment) error {
	for _, other := range m.store.appts {
		if other.ScheduleDayID == a.ScheduleDayID && other.Time == a.Time && other.Status != StatusCancelled && a.Status != StatusCancelled {
			return ErrOverlapping
		}
	}
	m.store.nextApptID++
	a.ID = m.store.nextApptID
	cp := *a
	m.store.appts[a.ID] = &cp
	return nil
}

func (m *mockApptRepo) Update(ctx context.Context, a *Appointment) error {
	if _, ok := m.store.appts[a.ID]; !ok {
		return ErrAppointmentNotFound
	}
	for _, other := range m.store.appts {
		if other.ID != a.ID && other.ScheduleDayID == a.ScheduleDayID &&
			other.Time == a.Time && other.Status != StatusCancelled && a.Status != StatusCancelled {
			return ErrOverlapping
		}
	}
	cp := *a
	m.store.appts[a.ID] = &cp
	return nil
}

func (m *mockApptRepo) Delete(ctx context.Context, id int64) error {
	if _, ok := m.store.appts[id]; !ok {
		return ErrAppointmentNotFound
	}
	delete(m.store.appts, id)
	return nil
}

func (m *mockApptRepo) GetByID(ctx context.Context, id int64) (*Appointment, error) {
	a, ok := m.store.appts[id]
	if !ok {
		return nil, ErrAppointmentNotFound
	}
	cp := *a
	return &cp, nil
}

func (m *mockApptRepo) ListByDay(ctx context.Context, dayID uuid.UUID) ([]*Appointment, error) {
	var out []*Appointment
	for _, a := range m.store.appts {
		if a.ScheduleDayID == dayID {
			cp := *a
			out = append(out, &cp)
		}
	}
	return out, nil
}

func (m *mockApptRepo) List(ctx context.Context, filter AppointmentListFilter, limit, offset int) ([]*Appointment, int, error) {
	var out []*Appointment
	for _, a := range m.store.appts {
		if filter.ScheduleDayID != nil && a.ScheduleDayID != *filter.ScheduleDayID {
			continue
		}
		if filter.PatientID != nil && (a.PatientID == nil || *a.PatientID != *filter.PatientID) {
			continue
		}
		if filter.Status != "" && a.Status != filter.Status {
			continue
		}
		cp := *a
		out = append(out, &cp)
	}
	return out, len(out), nil
}

type mockDoctorDir struct {
	doctors map[uuid.UUID]*staff.Doctor
}

func (m *mockDoctorDir) Get(ctx context.Context, id uuid.UUID) (*staff.Doctor, error) {
	d, ok := m.doctors[id]
	if !ok {
		return nil, staff.ErrDoctorNotFound
	}
	return d, nil
}

func (m *mockDoctorDir) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*staff.Doctor, error) {
	out := make(map[uuid.UUID]*staff.Doctor)
	for _, id := range ids {
		if d, ok := m.doctors[id]; ok {
			out[id] = d
		}
	}
	return out, nil
}

type mockPatientDir struct {
	patients map[uuid.UUID]*patients.Patient
}

func (m *mockPatientDir) Get(ctx context.Context, id uuid.UUID) (*patients.Patient, error) {
	p, ok := m.patients[id]
	if !ok {
		return nil, patients.ErrPatientNotFound
	}
	return p, nil
}

func (m *mockPatientDir) GetMany(ctx context.Context, ids []uuid.UUID) (map[uuid.UUID]*patients.Patient, error) {
	out := make(map[uuid.UUID]*patients.Patient)
	for _, id := range ids {
		if p, ok := m.patients[id]; ok {
			out[id] = p
		}
	}
	return out, nil
}

type mockRules struct {
	maxDays int
	reduced []rules.ReducedDay
}

func (m *mockRules) MaxSchedulePeriodDays(ctx context.Context) int {
	if m.maxDays == 0 {
		return rules.DefaultMaxSchedulePeriodDays
	}
	return m.maxDays
}

func (m *mockRules) ReducedDays(ctx context.Context) []rules.ReducedDay {
	return m.reduced
}

func passTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

// fixture bundles the mocks and the services under test.
type fixture struct {
	store    *memStore
	doctors  *mockDoctorDir
	patients *mockPatientDir
	rules    *mockRules
}

func newFixture() *fixture {
	return &fixture{
		store:    newMemStore(),
		doctors:  &mockDoctorDir{doctors: make(map[uuid.UUID]*staff.Doctor)},
		patients: &mockPatientDir{patients: make(map[uuid.UUID]*patients.Patient)},
		rules:    &mockRules{},
	}
}

func (f *fixture) scheduleService() *ScheduleService {
	return NewScheduleService(
		&mockScheduleRepo{store: f.store},
		&mockDayRepo{store: f.store},
		&mockApptRepo{store: f.store},
		f.doctors, f.rules, passTx,
		[]string{"doctor", "admin"},
		zerolog.Nop(),
	)
}

func (f *fixture) dayService() *DayService {
	return NewDayService(
		&mockDayRepo{store: f.store},
		&mockScheduleRepo{store: f.store},
		&mockApptRepo{store: f.store},
		passTx, zerolog.Nop(),
	)
}

func (f *fixture) appointmentService() *AppointmentService {
	return NewAppointmentService(
		&mockApptRepo{store: f.store},
		&mockDayRepo{store: f.store},
		&mockScheduleRepo{store: f.store},
		f.doctors, f.patients, passTx, zerolog.Nop(),
	)
}

func (f *fixture) addDoctor(roles ...string) *staff.Doctor {
	if len(roles) == 0 {
		roles = []string{"doctor"}
	}
	d := &staff.Doctor{
		ID:          uuid.New(),
		FirstName:   "Aigerim",
		LastName:    "Bekova",
		IIN:         "880101300123",
		ClientRoles: roles,
		Enabled:     true,
		Specializations: []staff.Specialization{
			{Name: "Therapist"},
		},
		ServedPatientTypes:    []string{PatientTypeAdult, PatientTypeChild},
		ServedReferralTypes:   []string{ReferralWith, ReferralWithout},
		ServedReferralOrigins: []string{OriginSelfRegistration, OriginExternalOrganization},
		ServedPaymentTypes:    []string{InsuranceGOBMP, InsuranceOSMS},
	}
	f.doctors.doctors[d.ID] = d
	return d
}

func (f *fixture) addPatient(adult bool) *patients.Patient {
	years := 30
	if !adult {
		years = 8
	}
	p := &patients.Patient{
		ID:          uuid.New(),
		IIN:         "950615400456",
		FirstName:   "Dana",
		LastName:    "Omarova",
		DateOfBirth: time.Now().UTC().AddDate(-years, 0, 0),
		Gender:      patients.GenderFemale,
	}
	f.patients.patients[p.ID] = p
	return p
}

// scheduleWith creates a schedule with a single active day and returns
// both, bypassing the service-level checks.
func (f *fixture) scheduleWith(doctorID uuid.UUID, interval int, workStart, workEnd string, breakWindow ...string) (*Schedule, *ScheduleDay) {
	start := mustDate("2026-09-07")
	sched := &Schedule{
		ID:                  uuid.New(),
		DoctorID:            doctorID,
		Name:                "main",
		IsActive:            true,
		AppointmentInterval: interval,
		PeriodStart:         start,
		PeriodEnd:           start,
	}
	f.store.schedules[sched.ID] = sched

	day := &ScheduleDay{
		ID:         uuid.New(),
		ScheduleID: sched.ID,
		Date:       start,
		DayOfWeek:  ISOWeekday(start.Time),
		IsActive:   true,
		WorkStart:  MustTimeOfDay(workStart),
		WorkEnd:    MustTimeOfDay(workEnd),
	}
	if len(breakWindow) == 2 {
		bs := MustTimeOfDay(breakWindow[0])
		be := MustTimeOfDay(breakWindow[1])
		day.BreakStart = &bs
		day.BreakEnd = &be
	}
	f.store.days[day.ID] = day
	return sched, day
}

func mustDate(s string) Date {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}
