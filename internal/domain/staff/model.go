package staff

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Doctor is the registry's read model of a clinic employee. The record is
// owned by the auth service and mirrored here through Kafka events; the id
// is the auth service user id.
type Doctor struct {
	ID          uuid.UUID `json:"id"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	MiddleName  *string   `json:"middle_name,omitempty"`
	IIN         string    `json:"iin"`
	DateOfBirth time.Time `json:"date_of_birth"`
	ClientRoles []string  `json:"client_roles"`
	Enabled     bool      `json:"enabled"`

	Specializations []Specialization `json:"specializations"`
	AttachmentData  *AttachmentData  `json:"attachment_data,omitempty"`

	ServedPatientTypes    []string `json:"served_patient_types"`
	ServedReferralTypes   []string `json:"served_referral_types"`
	ServedReferralOrigins []string `json:"served_referral_origins"`
	ServedPaymentTypes    []string `json:"served_payment_types"`

	CreatedAt time.Time `json:"created_at"`
	ChangedAt time.Time `json:"changed_at"`
}

// Specialization is one named specialization, optionally carrying the
// reference id from the catalog it was picked from.
type Specialization struct {
	ID   *string `json:"id,omitempty"`
	Name string  `json:"name"`
}

// AttachmentData describes where the doctor serves.
type AttachmentData struct {
	AreaNumber       *int    `json:"area_number,omitempty"`
	OrganizationName *string `json:"organization_name,omitempty"`
	AttachmentDate   *string `json:"attachment_date,omitempty"`
	DetachmentDate   *string `json:"detachment_date,omitempty"`
	DepartmentName   *string `json:"department_name,omitempty"`
}

// FullName returns "Last First Middle" with the middle name omitted when
// absent.
func (d *Doctor) FullName() string {
	parts := []string{d.LastName, d.FirstName}
	if d.MiddleName != nil && *d.MiddleName != "" {
		parts = append(parts, *d.MiddleName)
	}
	return strings.Join(parts, " ")
}

// HasAnyRole reports whether the doctor holds at least one of the given
// roles.
func (d *Doctor) HasAnyRole(roles []string) bool {
	for _, want := range roles {
		for _, have := range d.ClientRoles {
			if have == want {
				return true
			}
		}
	}
	return false
}

func containsString(list []string, v string) bool {
	for _, item := range list {
		if item == v {
			return true
		}
	}
	return false
}

// ServesPatientType reports whether the doctor accepts the given patient
// type (e.g. "adult", "child").
func (d *Doctor) ServesPatientType(v string) bool {
	return containsString(d.ServedPatientTypes, v)
}

// ServesReferralType reports whether the doctor accepts the given referral
// type ("with_referral", "without_referral").
func (d *Doctor) ServesReferralType(v string) bool {
	return containsString(d.ServedReferralTypes, v)
}

// ServesReferralOrigin reports whether the doctor accepts the given referral
// origin ("from_external_organization", "self_registration").
func (d *Doctor) ServesReferralOrigin(v string) bool {
	return containsString(d.ServedReferralOrigins, v)
}

// ServesPaymentType reports whether the doctor accepts the given payment
// type ("GOBMP", "DMS", "OSMS", "Paid").
func (d *Doctor) ServesPaymentType(v string) bool {
	return containsString(d.ServedPaymentTypes, v)
}

// AreaNumber returns the doctor's serving area number, or 0 when unset.
func (d *Doctor) AreaNumber() int {
	if d.AttachmentData == nil || d.AttachmentData.AreaNumber == nil {
		return 0
	}
	return *d.AttachmentData.AreaNumber
}

var iinPattern = regexp.MustCompile(`^\d{12}$`)

// Validate checks the invariants the mirror enforces before persisting an
// incoming doctor record.
func (d *Doctor) Validate() error {
	if d.ID == uuid.Nil {
		return fmt.Errorf("doctor id is required")
	}
	if strings.TrimSpace(d.FirstName) == "" {
		return fmt.Errorf("first name must not be blank")
	}
	if strings.TrimSpace(d.LastName) == "" {
		return fmt.Errorf("last name must not be blank")
	}
	if !iinPattern.MatchString(d.IIN) {
		return fmt.Errorf("iin must be exactly 12 digits")
	}
	if d.DateOfBirth.IsZero() {
		return fmt.Errorf("date of birth is required")
	}
	if d.DateOfBirth.After(time.Now()) {
		return fmt.Errorf("date of birth must not be in the future")
	}
	for _, spec := range d.Specializations {
		if strings.TrimSpace(spec.Name) == "" {
			return fmt.Errorf("specialization name must not be blank")
		}
	}
	return nil
}
