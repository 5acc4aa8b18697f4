package scheduling

import (
	"time"

	"github.com/google/uuid"
)

// Appointment statuses.
const (
	StatusFree        = "free"
	StatusBooked      = "booked"
	StatusCancelled   = "cancelled"
	StatusAppointment = "appointment"
)

// Appointment types.
const (
	TypeInitial      = "initial"
	TypeRevisit      = "revisit"
	TypeConsultation = "consultation"
)

// Patient categories a doctor may serve.
const (
	PatientTypeAdult = "adult"
	PatientTypeChild = "child"
)

// Referral types.
const (
	ReferralWith    = "with_referral"
	ReferralWithout = "without_referral"
)

// Referral origins.
const (
	OriginSelfRegistration     = "self_registration"
	OriginExternalOrganization = "from_external_organization"
)

// Insurance types.
const (
	InsuranceGOBMP = "GOBMP"
	InsuranceDMS   = "DMS"
	InsuranceOSMS  = "OSMS"
	InsurancePaid  = "paid"
)

const (
	scheduleNameMaxLen        = 20
	scheduleDescriptionMaxLen = 256
	intervalMinMinutes        = 5
	intervalMaxMinutes        = 60
)

// Schedule is a doctor's working calendar over a date period. Concrete
// days are materialized as ScheduleDay rows when the schedule is created.
type Schedule struct {
	ID                  uuid.UUID `json:"id"`
	DoctorID            uuid.UUID `json:"doctor_id"`
	Name                string    `json:"schedule_name"`
	Description         *string   `json:"description,omitempty"`
	IsActive            bool      `json:"is_active"`
	AppointmentInterval int       `json:"appointment_interval"`
	PeriodStart         Date      `json:"period_start_date"`
	PeriodEnd           Date      `json:"period_end_date"`
	CreatedAt           time.Time `json:"created_at"`
	ChangedAt           time.Time `json:"changed_at"`
}

// NewSchedule validates and builds a schedule for a doctor. The interval
// is required and bounded on creation; later edits may keep it unchanged.
func NewSchedule(doctorID uuid.UUID, name string, description *string, interval int, periodStart, periodEnd Date) (*Schedule, error) {
	if interval < intervalMinMinutes || interval > intervalMaxMinutes {
		return nil, validationErrorf("appointment interval must be between %d and %d minutes", intervalMinMinutes, intervalMaxMinutes)
	}
	s := &Schedule{
		ID:                  uuid.New(),
		DoctorID:            doctorID,
		IsActive:            true,
		AppointmentInterval: interval,
		PeriodStart:         NewDate(periodStart.Time),
		PeriodEnd:           NewDate(periodEnd.Time),
	}
	if s.PeriodEnd.Before(s.PeriodStart.Time) {
		return nil, ErrInvalidPeriod
	}
	if err := s.UpdateBasicInfo(&name, description, nil); err != nil {
		return nil, err
	}
	return s, nil
}

// UpdateBasicInfo applies the nil-skipping patch fields that do not touch
// the day grid.
func (s *Schedule) UpdateBasicInfo(name *string, description *string, interval *int) error {
	if name != nil {
		if *name == "" {
			return validationErrorf("schedule name must not be empty")
		}
		if len([]rune(*name)) > scheduleNameMaxLen {
			return validationErrorf("schedule name must not exceed %d characters", scheduleNameMaxLen)
		}
		s.Name = *name
	}
	if description != nil {
		if len([]rune(*description)) > scheduleDescriptionMaxLen {
			return validationErrorf("description must not exceed %d characters", scheduleDescriptionMaxLen)
		}
		s.Description = description
	}
	if interval != nil {
		if *interval < 0 || *interval > intervalMaxMinutes {
			return validationErrorf("appointment interval must be between 0 and %d minutes", intervalMaxMinutes)
		}
		s.AppointmentInterval = *interval
	}
	return nil
}

// ContainsDate reports whether d falls inside the schedule period.
func (s *Schedule) ContainsDate(d Date) bool {
	return !d.Before(s.PeriodStart.Time) && !d.After(s.PeriodEnd.Time)
}

// ScheduleDay is one calendar day of a schedule with its working hours and
// optional break window.
type ScheduleDay struct {
	ID         uuid.UUID  `json:"id"`
	ScheduleID uuid.UUID  `json:"schedule_id"`
	Date       Date       `json:"date"`
	DayOfWeek  int        `json:"day_of_week"`
	IsActive   bool       `json:"is_active"`
	WorkStart  TimeOfDay  `json:"work_start_time"`
	WorkEnd    TimeOfDay  `json:"work_end_time"`
	BreakStart *TimeOfDay `json:"break_start_time"`
	BreakEnd   *TimeOfDay `json:"break_end_time"`
}

// HasBreak reports whether both break bounds are present.
func (d *ScheduleDay) HasBreak() bool {
	return d.BreakStart != nil && d.BreakEnd != nil
}

// DropInvalidBreak clears the break when it is empty or reaches outside the
// working hours.
func (d *ScheduleDay) DropInvalidBreak() {
	if !d.HasBreak() {
		d.BreakStart = nil
		d.BreakEnd = nil
		return
	}
	if *d.BreakStart >= *d.BreakEnd || *d.BreakStart < d.WorkStart || *d.BreakEnd > d.WorkEnd {
		d.BreakStart = nil
		d.BreakEnd = nil
	}
}

// AdditionalService is an extra billed service attached to an appointment.
type AdditionalService struct {
	Name              string  `json:"name"`
	FinancingSourceID *int    `json:"financing_source_id,omitempty"`
	Price             float64 `json:"price"`
}

// Appointment is a slot on a schedule day. Its identity is numeric while
// all calendar entities use UUIDs.
type Appointment struct {
	ID                 int64               `json:"id"`
	ScheduleDayID      uuid.UUID           `json:"schedule_day_id"`
	Time               TimeOfDay           `json:"time"`
	PatientID          *uuid.UUID          `json:"patient_id"`
	Status             string              `json:"status"`
	Type               *string             `json:"type,omitempty"`
	PhoneNumber        *string             `json:"phone_number,omitempty"`
	Address            *string             `json:"address,omitempty"`
	ReferralType       *string             `json:"referral_type,omitempty"`
	ReferralOrigin     *string             `json:"referral_origin,omitempty"`
	InsuranceType      *string             `json:"insurance_type,omitempty"`
	Reason             *string             `json:"reason,omitempty"`
	OfficeNumber       *int                `json:"office_number,omitempty"`
	AdditionalServices []AdditionalService `json:"additional_services,omitempty"`
	CancelledAt        *time.Time          `json:"cancelled_at,omitempty"`
}

// Book marks the appointment booked on an active schedule and day. A
// previously cancelled appointment is revived with its cancellation mark
// cleared.
func (a *Appointment) Book(schedule *Schedule, day *ScheduleDay) error {
	if !schedule.IsActive {
		return ErrScheduleInactive
	}
	if !day.IsActive {
		return ErrDayInactive
	}
	if a.Status == StatusCancelled {
		a.CancelledAt = nil
	}
	a.Status = StatusBooked
	return nil
}

// Cancel marks the appointment cancelled, recording the moment. Cancelling
// twice keeps the original timestamp.
func (a *Appointment) Cancel() {
	if a.Status == StatusCancelled {
		return
	}
	now := time.Now().UTC()
	a.Status = StatusCancelled
	a.CancelledAt = &now
}

// ValidateStatus enforces the status and patient pairing rules: a visit in
// progress requires an attached patient, while a plain booking must not
// carry one.
func (a *Appointment) ValidateStatus() error {
	switch a.Status {
	case StatusAppointment:
		if a.PatientID == nil {
			return &InvalidStatusError{Message: "appointment status requires a patient"}
		}
	case StatusBooked:
		if a.PatientID != nil {
			return &InvalidStatusError{Message: "booked status must not carry a patient"}
		}
	case StatusFree, StatusCancelled:
	default:
		return &InvalidStatusError{Message: "unknown appointment status " + a.Status}
	}
	return nil
}

// EndTime is the slot end derived from the owning schedule's interval.
func (a *Appointment) EndTime(intervalMinutes int) TimeOfDay {
	return a.Time.Add(intervalMinutes)
}

// DayPattern is the working-hours template for one weekday.
type DayPattern struct {
	IsActive   bool       `json:"is_active"`
	WorkStart  TimeOfDay  `json:"work_start_time"`
	WorkEnd    TimeOfDay  `json:"work_end_time"`
	BreakStart *TimeOfDay `json:"break_start_time,omitempty"`
	BreakEnd   *TimeOfDay `json:"break_end_time,omitempty"`
}

// Validate rejects patterns with inverted hours or a break that is empty
// or reaches outside the working window.
func (p *DayPattern) Validate() error {
	if p.WorkStart >= p.WorkEnd {
		return validationErrorf("work start %s must precede work end %s", p.WorkStart, p.WorkEnd)
	}
	if (p.BreakStart == nil) != (p.BreakEnd == nil) {
		return validationErrorf("break start and break end must be set together")
	}
	if p.BreakStart != nil {
		if *p.BreakStart >= *p.BreakEnd {
			return validationErrorf("break start %s must precede break end %s", *p.BreakStart, *p.BreakEnd)
		}
		if *p.BreakStart < p.WorkStart || *p.BreakEnd > p.WorkEnd {
			return validationErrorf("break must fit within working hours")
		}
	}
	return nil
}

// DefaultPattern is the working day used when a weekday has no explicit
// template: 08:00 to 17:00 with a 13:00 to 14:00 break.
func DefaultPattern() DayPattern {
	bs := MustTimeOfDay("13:00")
	be := MustTimeOfDay("14:00")
	return DayPattern{
		IsActive:   true,
		WorkStart:  MustTimeOfDay("08:00"),
		WorkEnd:    MustTimeOfDay("17:00"),
		BreakStart: &bs,
		BreakEnd:   &be,
	}
}

// WeekTemplate assigns an optional pattern to each weekday. Missing days
// fall back to the default pattern during generation.
type WeekTemplate struct {
	Monday    *DayPattern `json:"monday,omitempty"`
	Tuesday   *DayPattern `json:"tuesday,omitempty"`
	Wednesday *DayPattern `json:"wednesday,omitempty"`
	Thursday  *DayPattern `json:"thursday,omitempty"`
	Friday    *DayPattern `json:"friday,omitempty"`
	Saturday  *DayPattern `json:"saturday,omitempty"`
	Sunday    *DayPattern `json:"sunday,omitempty"`
}

// Pattern returns the template for the ISO weekday (1=Monday .. 7=Sunday)
// or nil when none is set.
func (t *WeekTemplate) Pattern(weekday int) *DayPattern {
	switch weekday {
	case 1:
		return t.Monday
	case 2:
		return t.Tuesday
	case 3:
		return t.Wednesday
	case 4:
		return t.Thursday
	case 5:
		return t.Friday
	case 6:
		return t.Saturday
	case 7:
		return t.Sunday
	}
	return nil
}

// SetPattern assigns the pattern for the ISO weekday.
func (t *WeekTemplate) SetPattern(weekday int, p *DayPattern) {
	switch weekday {
	case 1:
		t.Monday = p
	case 2:
		t.Tuesday = p
	case 3:
		t.Wednesday = p
	case 4:
		t.Thursday = p
	case 5:
		t.Friday = p
	case 6:
		t.Saturday = p
	case 7:
		t.Sunday = p
	}
}

// Validate checks every weekday pattern that is present.
func (t *WeekTemplate) Validate() error {
	for wd := 1; wd <= 7; wd++ {
		if p := t.Pattern(wd); p != nil {
			if err := p.Validate(); err != nil {
				return err
			}
		}
	}
	return nil
}
