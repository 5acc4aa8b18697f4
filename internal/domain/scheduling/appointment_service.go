package scheduling

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/clinreg/clinreg/internal/domain/patients"
	"github.com/clinreg/clinreg/internal/domain/staff"
)

// AppointmentService books, edits and lists appointment slots.
type AppointmentService struct {
	appointments AppointmentRepository
	days         ScheduleDayRepository
	schedules    ScheduleRepository
	doctors      DoctorDirectory
	patients     PatientDirectory
	inTx         TxRunner
	logger       zerolog.Logger
}

func NewAppointmentService(
	appointments AppointmentRepository,
	days ScheduleDayRepository,
	schedules ScheduleRepository,
	doctors DoctorDirectory,
	patientDir PatientDirectory,
	inTx TxRunner,
	logger zerolog.Logger,
) *AppointmentService {
	return &AppointmentService{
		appointments: appointments,
		days:         days,
		schedules:    schedules,
		doctors:      doctors,
		patients:     patientDir,
		inTx:         inTx,
		logger:       logger.With().Str("component", "appointment_service").Logger(),
	}
}

// CreateAppointmentInput carries the fields of a new slot. An empty
// status books the slot.
type CreateAppointmentInput struct {
	Time               TimeOfDay           `json:"time"`
	PatientID          *uuid.UUID          `json:"patient_id"`
	Status             string              `json:"status"`
	Type               *string             `json:"type"`
	PhoneNumber        *string             `json:"phone_number"`
	Address            *string             `json:"address"`
	ReferralType       *string             `json:"referral_type"`
	ReferralOrigin     *string             `json:"referral_origin"`
	InsuranceType      *string             `json:"insurance_type"`
	Reason             *string             `json:"reason"`
	OfficeNumber       *int                `json:"office_number"`
	AdditionalServices []AdditionalService `json:"additional_services"`
}

// OptionalUUID distinguishes an absent patient reference from an explicit
// null that detaches the patient.
type OptionalUUID struct {
	Set   bool
	Value *uuid.UUID
}

func (o *OptionalUUID) UnmarshalJSON(data []byte) error {
	o.Set = true
	if string(data) == "null" {
		o.Value = nil
		return nil
	}
	var id uuid.UUID
	if err := json.Unmarshal(data, &id); err != nil {
		return err
	}
	o.Value = &id
	return nil
}

// UpdateAppointmentInput is a nil-skipping patch for a slot.
type UpdateAppointmentInput struct {
	Time               *TimeOfDay           `json:"time"`
	PatientID          OptionalUUID         `json:"patient_id"`
	Status             *string              `json:"status"`
	Type               *string              `json:"type"`
	PhoneNumber        *string              `json:"phone_number"`
	Address            *string              `json:"address"`
	ReferralType       *string              `json:"referral_type"`
	ReferralOrigin     *string              `json:"referral_origin"`
	InsuranceType      *string              `json:"insurance_type"`
	Reason             *string              `json:"reason"`
	OfficeNumber       *int                 `json:"office_number"`
	AdditionalServices *[]AdditionalService `json:"additional_services"`
}

// AppointmentDetails is a slot with its calendar position and the related
// records resolved.
type AppointmentDetails struct {
	Appointment *Appointment      `json:"appointment"`
	Date        Date              `json:"date"`
	EndTime     TimeOfDay         `json:"end_time"`
	Doctor      *staff.Doctor     `json:"doctor,omitempty"`
	Patient     *patients.Patient `json:"patient,omitempty"`
}

// AppointmentQuery filters listings on attributes of related records.
// Applied in memory after batch loading the page's patients and doctors.
type AppointmentQuery struct {
	PatientIIN           string
	PatientFullName      string
	DoctorSpecialization string
	AttachedAreaNumber   *int
}

// Create books a slot on the day after checking that the schedule and day
// are active, the doctor serves the booking attributes, the slot fits the
// working hours outside the break, and no live slot overlaps it. The
// storage unique constraint backs the overlap rule against concurrent
// writers.
func (s *AppointmentService) Create(ctx context.Context, dayID uuid.UUID, in CreateAppointmentInput) (*AppointmentDetails, error) {
	day, err := s.days.GetByID(ctx, dayID)
	if err != nil {
		return nil, err
	}
	schedule, err := s.schedules.GetByDayID(ctx, dayID)
	if err != nil {
		return nil, err
	}
	if !schedule.IsActive {
		return nil, ErrScheduleInactive
	}
	if !day.IsActive {
		return nil, ErrDayInactive
	}
	doctor, err := s.doctors.Get(ctx, schedule.DoctorID)
	if err != nil {
		return nil, err
	}

	var patient *patients.Patient
	if in.PatientID != nil {
		patient, err = s.patients.Get(ctx, *in.PatientID)
		if err != nil {
			return nil, err
		}
	}
	if err := checkCapabilities(doctor, patient, in.ReferralType, in.ReferralOrigin, in.InsuranceType); err != nil {
		return nil, err
	}
	if err := checkSlotTime(day, in.Time, schedule.AppointmentInterval); err != nil {
		return nil, err
	}
	if err := s.checkOverlap(ctx, dayID, in.Time, schedule.AppointmentInterval, 0); err != nil {
		return nil, err
	}

	a := &Appointment{
		ScheduleDayID:      dayID,
		Time:               in.Time,
		PatientID:          in.PatientID,
		Status:             in.Status,
		Type:               in.Type,
		PhoneNumber:        in.PhoneNumber,
		Address:            in.Address,
		ReferralType:       in.ReferralType,
		ReferralOrigin:     in.ReferralOrigin,
		InsuranceType:      in.InsuranceType,
		Reason:             in.Reason,
		OfficeNumber:       in.OfficeNumber,
		AdditionalServices: in.AdditionalServices,
	}
	switch a.Status {
	case "", StatusBooked:
		if err := a.Book(schedule, day); err != nil {
			return nil, err
		}
	case StatusCancelled:
		return nil, &InvalidStatusError{Message: "cannot create a cancelled appointment"}
	}
	if err := a.ValidateStatus(); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		return s.appointments.Create(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	s.logger.Info().
		Int64("appointment_id", a.ID).
		Str("schedule_day_id", dayID.String()).
		Str("time", a.Time.String()).
		Msg("appointment created")
	return s.details(a, day, schedule, doctor, patient), nil
}

// Update applies the patch. A moved slot is re-validated against the
// day's hours and the live slots; booking and cancelling run through the
// status transitions so a revived slot loses its cancellation mark.
func (s *AppointmentService) Update(ctx context.Context, id int64, in UpdateAppointmentInput) (*AppointmentDetails, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	day, err := s.days.GetByID(ctx, a.ScheduleDayID)
	if err != nil {
		return nil, err
	}
	schedule, err := s.schedules.GetByDayID(ctx, a.ScheduleDayID)
	if err != nil {
		return nil, err
	}
	doctor, err := s.doctors.Get(ctx, schedule.DoctorID)
	if err != nil {
		return nil, err
	}

	if in.Time != nil && *in.Time != a.Time {
		if err := checkSlotTime(day, *in.Time, schedule.AppointmentInterval); err != nil {
			return nil, err
		}
		if err := s.checkOverlap(ctx, a.ScheduleDayID, *in.Time, schedule.AppointmentInterval, a.ID); err != nil {
			return nil, err
		}
		a.Time = *in.Time
	}

	if in.PatientID.Set {
		a.PatientID = in.PatientID.Value
	}
	var patient *patients.Patient
	if a.PatientID != nil {
		patient, err = s.patients.Get(ctx, *a.PatientID)
		if err != nil {
			return nil, err
		}
	}

	if in.ReferralType != nil {
		a.ReferralType = in.ReferralType
	}
	if in.ReferralOrigin != nil {
		a.ReferralOrigin = in.ReferralOrigin
	}
	if in.InsuranceType != nil {
		a.InsuranceType = in.InsuranceType
	}
	if err := checkCapabilities(doctor, patient, a.ReferralType, a.ReferralOrigin, a.InsuranceType); err != nil {
		return nil, err
	}

	if in.Type != nil {
		a.Type = in.Type
	}
	if in.PhoneNumber != nil {
		a.PhoneNumber = in.PhoneNumber
	}
	if in.Address != nil {
		a.Address = in.Address
	}
	if in.Reason != nil {
		a.Reason = in.Reason
	}
	if in.OfficeNumber != nil {
		a.OfficeNumber = in.OfficeNumber
	}
	if in.AdditionalServices != nil {
		a.AdditionalServices = *in.AdditionalServices
	}

	if in.Status != nil && *in.Status != a.Status {
		switch *in.Status {
		case StatusBooked:
			if err := a.Book(schedule, day); err != nil {
				return nil, err
			}
		case StatusCancelled:
			a.Cancel()
		default:
			a.Status = *in.Status
		}
	}
	if err := a.ValidateStatus(); err != nil {
		return nil, err
	}

	err = s.inTx(ctx, func(ctx context.Context) error {
		return s.appointments.Update(ctx, a)
	})
	if err != nil {
		return nil, err
	}
	return s.details(a, day, schedule, doctor, patient), nil
}

func (s *AppointmentService) Get(ctx context.Context, id int64) (*AppointmentDetails, error) {
	a, err := s.appointments.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	day, err := s.days.GetByID(ctx, a.ScheduleDayID)
	if err != nil {
		return nil, err
	}
	schedule, err := s.schedules.GetByDayID(ctx, a.ScheduleDayID)
	if err != nil {
		return nil, err
	}
	doctors, err := s.doctors.GetMany(ctx, []uuid.UUID{schedule.DoctorID})
	if err != nil {
		return nil, err
	}
	var patient *patients.Patient
	if a.PatientID != nil {
		loaded, err := s.patients.GetMany(ctx, []uuid.UUID{*a.PatientID})
		if err != nil {
			return nil, err
		}
		patient = loaded[*a.PatientID]
	}
	return s.details(a, day, schedule, doctors[schedule.DoctorID], patient), nil
}

func (s *AppointmentService) Delete(ctx context.Context, id int64) error {
	return s.appointments.Delete(ctx, id)
}

// List returns a page of slots with related records resolved in batches.
// Query attributes that live on those records filter the loaded page.
func (s *AppointmentService) List(ctx context.Context, filter AppointmentListFilter, query AppointmentQuery, limit, offset int) ([]*AppointmentDetails, int, error) {
	appts, total, err := s.appointments.List(ctx, filter, limit, offset)
	if err != nil {
		return nil, 0, err
	}

	dayIDs := make([]uuid.UUID, 0, len(appts))
	patientIDs := make([]uuid.UUID, 0, len(appts))
	seenDays := make(map[uuid.UUID]bool)
	seenPatients := make(map[uuid.UUID]bool)
	for _, a := range appts {
		if !seenDays[a.ScheduleDayID] {
			seenDays[a.ScheduleDayID] = true
			dayIDs = append(dayIDs, a.ScheduleDayID)
		}
		if a.PatientID != nil && !seenPatients[*a.PatientID] {
			seenPatients[*a.PatientID] = true
			patientIDs = append(patientIDs, *a.PatientID)
		}
	}

	days, err := s.days.GetByIDs(ctx, dayIDs)
	if err != nil {
		return nil, 0, err
	}
	scheduleIDs := make([]uuid.UUID, 0, len(days))
	seenSchedules := make(map[uuid.UUID]bool)
	for _, day := range days {
		if !seenSchedules[day.ScheduleID] {
			seenSchedules[day.ScheduleID] = true
			scheduleIDs = append(scheduleIDs, day.ScheduleID)
		}
	}
	schedules, err := s.schedules.GetByIDs(ctx, scheduleIDs)
	if err != nil {
		return nil, 0, err
	}
	doctorIDs := make([]uuid.UUID, 0, len(schedules))
	seenDoctors := make(map[uuid.UUID]bool)
	for _, sched := range schedules {
		if !seenDoctors[sched.DoctorID] {
			seenDoctors[sched.DoctorID] = true
			doctorIDs = append(doctorIDs, sched.DoctorID)
		}
	}
	doctors, err := s.doctors.GetMany(ctx, doctorIDs)
	if err != nil {
		return nil, 0, err
	}
	patientRecords, err := s.patients.GetMany(ctx, patientIDs)
	if err != nil {
		return nil, 0, err
	}

	out := make([]*AppointmentDetails, 0, len(appts))
	for _, a := range appts {
		day := days[a.ScheduleDayID]
		if day == nil {
			continue
		}
		schedule := schedules[day.ScheduleID]
		if schedule == nil {
			continue
		}
		doctor := doctors[schedule.DoctorID]
		var patient *patients.Patient
		if a.PatientID != nil {
			patient = patientRecords[*a.PatientID]
		}
		d := s.details(a, day, schedule, doctor, patient)
		if matchesQuery(d, query) {
			out = append(out, d)
		}
	}
	return out, total, nil
}

func (s *AppointmentService) details(a *Appointment, day *ScheduleDay, schedule *Schedule, doctor *staff.Doctor, patient *patients.Patient) *AppointmentDetails {
	return &AppointmentDetails{
		Appointment: a,
		Date:        day.Date,
		EndTime:     a.EndTime(schedule.AppointmentInterval),
		Doctor:      doctor,
		Patient:     patient,
	}
}

// checkOverlap rejects a slot intersecting any live slot of the day.
// selfID skips the appointment being moved.
func (s *AppointmentService) checkOverlap(ctx context.Context, dayID uuid.UUID, start TimeOfDay, intervalMinutes int, selfID int64) error {
	existing, err := s.appointments.ListByDay(ctx, dayID)
	if err != nil {
		return err
	}
	end := start.Add(intervalMinutes)
	for _, other := range existing {
		if other.ID == selfID || other.Status == StatusCancelled {
			continue
		}
		if rangesOverlap(start, end, other.Time, other.EndTime(intervalMinutes)) {
			return ErrOverlapping
		}
	}
	return nil
}

// checkSlotTime requires the whole slot inside the working hours and
// clear of the break.
func checkSlotTime(day *ScheduleDay, start TimeOfDay, intervalMinutes int) error {
	end := start.Add(intervalMinutes)
	if start < day.WorkStart || end > day.WorkEnd {
		return &InvalidTimeError{Start: start, IntervalMinutes: intervalMinutes, Reason: "outside working hours"}
	}
	if day.HasBreak() && rangesOverlap(start, end, *day.BreakStart, *day.BreakEnd) {
		return &InvalidTimeError{Start: start, IntervalMinutes: intervalMinutes, Reason: "intersects the break"}
	}
	return nil
}

// checkCapabilities verifies the doctor serves the patient category and
// the referral and payment attributes of the booking.
func checkCapabilities(doctor *staff.Doctor, patient *patients.Patient, referralType, referralOrigin, insuranceType *string) error {
	if patient != nil {
		category := PatientTypeChild
		if patient.IsAdult() {
			category = PatientTypeAdult
		}
		if !doctor.ServesPatientType(category) {
			return &CapabilityError{Capability: "patient type", Value: category}
		}
	}
	if referralType != nil && !doctor.ServesReferralType(*referralType) {
		return &CapabilityError{Capability: "referral type", Value: *referralType}
	}
	if referralOrigin != nil && !doctor.ServesReferralOrigin(*referralOrigin) {
		return &CapabilityError{Capability: "referral origin", Value: *referralOrigin}
	}
	if insuranceType != nil && !doctor.ServesPaymentType(*insuranceType) {
		return &CapabilityError{Capability: "insurance type", Value: *insuranceType}
	}
	return nil
}

func matchesQuery(d *AppointmentDetails, q AppointmentQuery) bool {
	if q.PatientIIN != "" {
		if d.Patient == nil || d.Patient.IIN != q.PatientIIN {
			return false
		}
	}
	if q.PatientFullName != "" {
		if d.Patient == nil || !strings.Contains(searchableName(d.Patient), strings.ToLower(q.PatientFullName)) {
			return false
		}
	}
	if q.DoctorSpecialization != "" {
		if d.Doctor == nil || !hasSpecialization(d.Doctor, q.DoctorSpecialization) {
			return false
		}
	}
	if q.AttachedAreaNumber != nil {
		if d.Patient == nil || patientAreaNumber(d.Patient) != *q.AttachedAreaNumber {
			return false
		}
	}
	return true
}

// searchableName is the lowercased "last first middle maiden" string the
// patient name filter matches against.
func searchableName(p *patients.Patient) string {
	parts := []string{p.LastName, p.FirstName}
	if p.MiddleName != nil {
		parts = append(parts, *p.MiddleName)
	}
	if p.MaidenName != nil {
		parts = append(parts, *p.MaidenName)
	}
	return strings.ToLower(strings.Join(parts, " "))
}

func hasSpecialization(d *staff.Doctor, name string) bool {
	for _, sp := range d.Specializations {
		if strings.EqualFold(sp.Name, name) {
			return true
		}
	}
	return false
}

func patientAreaNumber(p *patients.Patient) int {
	switch v := p.AttachmentData["area_number"].(type) {
	case float64:
		return int(v)
	case int:
		return v
	}
	return 0
}
