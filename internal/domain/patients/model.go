package patients

import (
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Gender values.
const (
	GenderMale         = "male"
	GenderFemale       = "female"
	GenderNotSpecified = "not_specified"
)

// Profile statuses.
const (
	ProfileActive   = "active"
	ProfileArchived = "archived"
	ProfileInactive = "inactive"
)

// adulthoodAge is the age at which a patient counts as an adult for
// doctor capability checks.
const adulthoodAge = 18

// Patient is a clinic patient record.
type Patient struct {
	ID          uuid.UUID `json:"id"`
	IIN         string    `json:"iin"`
	FirstName   string    `json:"first_name"`
	LastName    string    `json:"last_name"`
	MiddleName  *string   `json:"middle_name,omitempty"`
	MaidenName  *string   `json:"maiden_name,omitempty"`
	DateOfBirth time.Time `json:"date_of_birth"`
	Gender      string    `json:"gender"`

	AttachmentData map[string]interface{} `json:"attachment_data,omitempty"`
	Relatives      []Relative             `json:"relatives,omitempty"`
	Addresses      []Address              `json:"addresses,omitempty"`
	ContactInfo    []Contact              `json:"contact_info,omitempty"`

	ProfileStatus string `json:"profile_status"`

	CreatedAt time.Time `json:"created_at"`
	ChangedAt time.Time `json:"changed_at"`
}

// Relative is one family relation entry.
type Relative struct {
	Type            string  `json:"type"`
	FullName        string  `json:"full_name"`
	IIN             *string `json:"iin,omitempty"`
	BirthDate       *string `json:"birth_date,omitempty"`
	Phone           *string `json:"phone,omitempty"`
	RelationComment *string `json:"relation_comment,omitempty"`
}

// Address is one patient address entry.
type Address struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	IsPrimary bool   `json:"is_primary"`
}

// Contact is one contact detail entry.
type Contact struct {
	Type      string `json:"type"`
	Value     string `json:"value"`
	IsPrimary bool   `json:"is_primary"`
}

// FullName returns "Last First Middle" with the middle name omitted when
// absent.
func (p *Patient) FullName() string {
	parts := []string{p.LastName, p.FirstName}
	if p.MiddleName != nil && *p.MiddleName != "" {
		parts = append(parts, *p.MiddleName)
	}
	return strings.Join(parts, " ")
}

// AgeAt returns the patient's full years at the given date.
func (p *Patient) AgeAt(at time.Time) int {
	years := at.Year() - p.DateOfBirth.Year()
	anniversary := p.DateOfBirth.AddDate(years, 0, 0)
	if anniversary.After(at) {
		years--
	}
	return years
}

// IsAdult reports whether the patient has reached adulthood.
func (p *Patient) IsAdult() bool {
	return p.AgeAt(time.Now()) >= adulthoodAge
}

// PrimaryPhone returns the primary phone contact, or the first phone entry,
// or empty.
func (p *Patient) PrimaryPhone() string {
	var first string
	for _, c := range p.ContactInfo {
		if c.Type != "phone_number" && c.Type != "mobile" {
			continue
		}
		if c.IsPrimary {
			return c.Value
		}
		if first == "" {
			first = c.Value
		}
	}
	return first
}

var iinPattern = regexp.MustCompile(`^\d{12}$`)

// Validate checks the record invariants.
func (p *Patient) Validate() error {
	if !iinPattern.MatchString(p.IIN) {
		return fmt.Errorf("iin must be exactly 12 digits")
	}
	if strings.TrimSpace(p.FirstName) == "" {
		return fmt.Errorf("first name must not be blank")
	}
	if strings.TrimSpace(p.LastName) == "" {
		return fmt.Errorf("last name must not be blank")
	}
	if p.DateOfBirth.IsZero() {
		return fmt.Errorf("date of birth is required")
	}
	if p.DateOfBirth.After(time.Now()) {
		return fmt.Errorf("date of birth must not be in the future")
	}
	switch p.Gender {
	case "", GenderMale, GenderFemale, GenderNotSpecified:
	default:
		return fmt.Errorf("unknown gender: %s", p.Gender)
	}
	switch p.ProfileStatus {
	case "", ProfileActive, ProfileArchived, ProfileInactive:
	default:
		return fmt.Errorf("unknown profile status: %s", p.ProfileStatus)
	}
	for _, r := range p.Relatives {
		if strings.TrimSpace(r.FullName) == "" {
			return fmt.Errorf("relative full name must not be blank")
		}
	}
	return nil
}
