package contract

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"carimport/internal/domain/sanitize"
)

// Status constants
const (
	StatusDraft     = "draft"
	StatusSent      = "sent"
	StatusSigned    = "signed"
	StatusCancelled = "cancelled"
)

// MaxVehicleDescription bounds the free-text vehicle description.
const MaxVehicleDescription = 300

// VIN characters exclude I, O and Q.
var vinRegex = regexp.MustCompile(`^[A-HJ-NPR-Z0-9]{17}$`)

var transitions = map[string][]string{
	StatusDraft: {StatusSent, StatusCancelled},
	StatusSent:  {StatusSigned, StatusCancelled},
}

// Domain errors
var (
	ErrEmptyRequestID    = errors.New("request ID is required")
	ErrEmptyAccountID    = errors.New("contract must belong to a customer account")
	ErrEmptyDescription  = errors.New("vehicle description is required")
	ErrDescriptionLong   = errors.New("vehicle description cannot exceed 300 characters")
	ErrInvalidVIN        = errors.New("VIN must be 17 characters (no I, O or Q)")
	ErrInvalidPrice      = errors.New("contract price must be positive")
	ErrInvalidDeposit    = errors.New("deposit must be between zero and the price")
	ErrInvalidTransition = errors.New("contract status transition not allowed")
	ErrInvalidStatus     = errors.New("unknown contract status")
)

// Contract is the purchase agreement for an accepted car request.
type Contract struct {
	ID                 string
	Number             string
	RequestID          string
	AccountID          string
	VehicleDescription string
	VIN                string
	PriceCents         int64
	DepositCents       int64
	Status             string
	CreatedAt          time.Time
	SentAt             time.Time
	SignedAt           time.Time
	CancelledAt        time.Time
}

// FormatNumber renders the contract number for a year and per-year sequence.
func FormatNumber(year, seq int) string {
	return fmt.Sprintf("CI-%04d-%06d", year, seq)
}

// NormalizeVIN uppercases and strips spaces.
func NormalizeVIN(vin string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(vin), " ", ""))
}

// IsValidVIN reports whether vin is a well-formed 17 character VIN.
func IsValidVIN(vin string) bool {
	return vinRegex.MatchString(vin)
}

// Validate checks the contract data.
// PRE: Contract struct is populated
// POST: Returns nil if valid, error otherwise
func (c *Contract) Validate() error {
	c.VehicleDescription = sanitize.Line(c.VehicleDescription)
	c.VIN = NormalizeVIN(c.VIN)
	if c.RequestID == "" {
		return ErrEmptyRequestID
	}
	if c.AccountID == "" {
		return ErrEmptyAccountID
	}
	if c.VehicleDescription == "" {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(c.VehicleDescription) > MaxVehicleDescription {
		return ErrDescriptionLong
	}
	if c.VIN != "" && !IsValidVIN(c.VIN) {
		return ErrInvalidVIN
	}
	if c.PriceCents <= 0 {
		return ErrInvalidPrice
	}
	if c.DepositCents < 0 || c.DepositCents > c.PriceCents {
		return ErrInvalidDeposit
	}
	return nil
}

// TransitionTo moves the contract forward and stamps the matching timestamp.
// PRE: to is a known status
// POST: Status updated with SentAt/SignedAt/CancelledAt, or ErrInvalidTransition
func (c *Contract) TransitionTo(to string, now time.Time) error {
	switch to {
	case StatusDraft, StatusSent, StatusSigned, StatusCancelled:
	default:
		return ErrInvalidStatus
	}
	allowed := false
	for _, s := range transitions[c.Status] {
		if s == to {
			allowed = true
			break
		}
	}
	if !allowed {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, c.Status, to)
	}
	if to == StatusSent && c.VIN == "" {
		return ErrInvalidVIN
	}
	c.Status = to
	switch to {
	case StatusSent:
		c.SentAt = now
	case StatusSigned:
		c.SignedAt = now
	case StatusCancelled:
		c.CancelledAt = now
	}
	return nil
}

// BalanceCents is what remains payable after the deposit.
func (c *Contract) BalanceCents() int64 {
	return c.PriceCents - c.DepositCents
}
