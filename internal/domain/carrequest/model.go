package carrequest

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"carimport/internal/domain/sanitize"
)

// Status constants
const (
	StatusNew       = "new"
	StatusInReview  = "in_review"
	StatusOffered   = "offered"
	StatusAccepted  = "accepted"
	StatusClosed    = "closed"
	StatusRejected  = "rejected"
	StatusCancelled = "cancelled"
)

// Fuel and transmission preferences.
const (
	FuelAny      = "any"
	FuelPetrol   = "petrol"
	FuelDiesel   = "diesel"
	FuelHybrid   = "hybrid"
	FuelElectric = "electric"

	TransmissionAny       = "any"
	TransmissionManual    = "manual"
	TransmissionAutomatic = "automatic"
)

// Limits on user-supplied values.
const (
	MaxNameLength    = 120
	MaxModelLength   = 80
	MaxNotesLength   = 2000
	MinBudgetCents   = 1_000_00
	MaxBudgetCents   = 2_000_000_00
	MinYear          = 1950
	MaxMileageKm     = 1_000_000
	MaxAdminNotesLen = 4000
)

// AllStatuses lists statuses in workflow order.
var AllStatuses = []string{StatusNew, StatusInReview, StatusOffered, StatusAccepted, StatusClosed, StatusRejected, StatusCancelled}

// transitions maps a status to the statuses it may move to.
var transitions = map[string][]string{
	StatusNew:      {StatusInReview, StatusRejected, StatusCancelled},
	StatusInReview: {StatusOffered, StatusRejected, StatusCancelled},
	StatusOffered:  {StatusInReview, StatusAccepted, StatusRejected, StatusCancelled},
	StatusAccepted: {StatusClosed},
}

// Domain errors
var (
	ErrNameRequired      = errors.New("contact name is required")
	ErrInvalidEmail      = errors.New("a valid contact email is required")
	ErrInvalidPhone      = errors.New("phone number is not valid")
	ErrMakeRequired      = errors.New("car make is required")
	ErrInvalidYears      = errors.New("year range is not valid")
	ErrInvalidBudget     = errors.New("budget must be between 1,000 and 2,000,000 EUR")
	ErrInvalidFuel       = errors.New("fuel must be one of: any, petrol, diesel, hybrid, electric")
	ErrInvalidGearbox    = errors.New("transmission must be one of: any, manual, automatic")
	ErrInvalidMileage    = errors.New("maximum mileage is not valid")
	ErrNotesTooLong      = errors.New("notes cannot exceed 2000 characters")
	ErrFieldTooLong      = errors.New("field exceeds maximum length")
	ErrInvalidTransition = errors.New("status transition not allowed")
	ErrInvalidStatus     = errors.New("unknown request status")
	ErrNotOwner          = errors.New("request belongs to another account")
)

// CarRequest describes the car a customer wants imported.
type CarRequest struct {
	ID           string
	Reference    string
	AccountID    string // empty for anonymous submissions
	ContactName  string
	ContactEmail string
	ContactPhone string
	Country      string
	Make         string
	Model        string
	YearFrom     int
	YearTo       int
	BudgetCents  int64
	Fuel         string
	Transmission string
	MaxMileageKm int
	Color        string
	Notes        string
	Status       string
	AdminNotes   string
	AssignedTo   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Normalize trims and cleans user-supplied fields in place and applies defaults.
func (c *CarRequest) Normalize() {
	c.ContactName = sanitize.Line(c.ContactName)
	c.ContactEmail = strings.ToLower(sanitize.Line(c.ContactEmail))
	c.ContactPhone = sanitize.Line(c.ContactPhone)
	c.Country = strings.ToUpper(sanitize.Line(c.Country))
	c.Make = sanitize.Line(c.Make)
	c.Model = sanitize.Line(c.Model)
	c.Color = sanitize.Line(c.Color)
	c.Notes = sanitize.Text(c.Notes)
	c.Fuel = strings.ToLower(sanitize.Line(c.Fuel))
	c.Transmission = strings.ToLower(sanitize.Line(c.Transmission))
	if c.Fuel == "" {
		c.Fuel = FuelAny
	}
	if c.Transmission == "" {
		c.Transmission = TransmissionAny
	}
}

// Validate checks intake rules.
// PRE: Normalize has been called
// POST: Returns the first violated rule, nil if valid
func (c *CarRequest) Validate(now time.Time) error {
	if c.ContactName == "" {
		return ErrNameRequired
	}
	if utf8.RuneCountInString(c.ContactName) > MaxNameLength || utf8.RuneCountInString(c.Make) > MaxModelLength ||
		utf8.RuneCountInString(c.Model) > MaxModelLength || utf8.RuneCountInString(c.Color) > MaxModelLength || len(c.Country) > 2 {
		return ErrFieldTooLong
	}
	if !sanitize.IsEmail(c.ContactEmail) {
		return ErrInvalidEmail
	}
	if c.ContactPhone != "" && !sanitize.IsPhone(c.ContactPhone) {
		return ErrInvalidPhone
	}
	if c.Make == "" {
		return ErrMakeRequired
	}
	maxYear := now.Year() + 1
	if c.YearFrom != 0 && (c.YearFrom < MinYear || c.YearFrom > maxYear) {
		return ErrInvalidYears
	}
	if c.YearTo != 0 && (c.YearTo < MinYear || c.YearTo > maxYear) {
		return ErrInvalidYears
	}
	if c.YearFrom != 0 && c.YearTo != 0 && c.YearFrom > c.YearTo {
		return ErrInvalidYears
	}
	if c.BudgetCents < MinBudgetCents || c.BudgetCents > MaxBudgetCents {
		return ErrInvalidBudget
	}
	switch c.Fuel {
	case FuelAny, FuelPetrol, FuelDiesel, FuelHybrid, FuelElectric:
	default:
		return ErrInvalidFuel
	}
	switch c.Transmission {
	case TransmissionAny, TransmissionManual, TransmissionAutomatic:
	default:
		return ErrInvalidGearbox
	}
	if c.MaxMileageKm < 0 || c.MaxMileageKm > MaxMileageKm {
		return ErrInvalidMileage
	}
	if utf8.RuneCountInString(c.Notes) > MaxNotesLength {
		return ErrNotesTooLong
	}
	if utf8.RuneCountInString(c.AdminNotes) > MaxAdminNotesLen {
		return ErrFieldTooLong
	}
	return nil
}

// CanTransition reports whether the request may move to the target status.
func (c *CarRequest) CanTransition(to string) bool {
	for _, s := range transitions[c.Status] {
		if s == to {
			return true
		}
	}
	return false
}

// TransitionTo moves the request to a new status.
// PRE: to is a known status
// POST: Status and UpdatedAt updated, or ErrInvalidTransition
func (c *CarRequest) TransitionTo(to string, now time.Time) error {
	if !IsValidStatus(to) {
		return ErrInvalidStatus
	}
	if !c.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, to)
	}
	c.Status = to
	c.UpdatedAt = now
	return nil
}

// IsOpen reports whether staff can still act on the request.
func (c *CarRequest) IsOpen() bool {
	return c.Status == StatusNew || c.Status == StatusInReview || c.Status == StatusOffered
}

// OwnedBy reports whether the account submitted this request.
func (c *CarRequest) OwnedBy(accountID string) bool {
	return accountID != "" && c.AccountID == accountID
}

// NewReference builds a human-friendly reference like CR-20260312-4F9A1C.
func NewReference(now time.Time, id string) string {
	suffix := strings.ToUpper(strings.ReplaceAll(id, "-", ""))
	if len(suffix) > 6 {
		suffix = suffix[:6]
	}
	return fmt.Sprintf("CR-%s-%s", now.UTC().Format("20060102"), suffix)
}

// IsValidStatus reports whether s is a known status.
func IsValidStatus(s string) bool {
	for _, st := range AllStatuses {
		if st == s {
			return true
		}
	}
	return false
}
