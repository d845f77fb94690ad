package account

import (
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/crypto/bcrypt"

	"carimport/internal/domain/sanitize"
)

// Max length constants for user-editable fields.
const (
	MaxEmailLength = 254
	MaxNameLength  = 120
	MinPassword    = 12
)

// Role constants
const (
	RoleAdmin    = "admin"
	RoleStaff    = "staff"
	RoleCustomer = "customer"
)

// Account status constants
const (
	StatusActive   = "active"
	StatusDisabled = "disabled"
)

// Lockout policy.
const (
	MaxFailedLogins = 5
	LockoutDuration = 15 * time.Minute
)

// ValidRoles contains all valid role values.
var ValidRoles = []string{RoleAdmin, RoleStaff, RoleCustomer}

// Domain errors
var (
	ErrInvalidEmail     = errors.New("email must contain '@'")
	ErrEmptyEmail       = errors.New("email cannot be empty")
	ErrEmailTooLong     = errors.New("email cannot exceed 254 characters")
	ErrNameTooLong      = errors.New("name cannot exceed 120 characters")
	ErrInvalidPhone     = errors.New("phone number is not valid")
	ErrInvalidRole      = errors.New("role must be one of: admin, staff, customer")
	ErrInvalidStatus    = errors.New("status must be 'active' or 'disabled'")
	ErrEmptyPassword    = errors.New("password cannot be empty")
	ErrPasswordTooShort = errors.New("password must be at least 12 characters")
	ErrWrongPassword    = errors.New("incorrect password")
	ErrAlreadyDisabled  = errors.New("account is already disabled")
	ErrAlreadyActive    = errors.New("account is already active")
)

// Account is a login identity: back-office staff or a customer.
type Account struct {
	ID           string
	Email        string
	Name         string
	Phone        string
	PasswordHash string
	Role         string
	Status       string
	CreatedAt    time.Time
	FailedLogins int
	LockedUntil  time.Time
}

// NormalizeEmail lowercases and trims an email address.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Validate checks if the Account has valid data.
// PRE: Account struct is populated
// POST: Returns nil if valid, error otherwise
func (a *Account) Validate() error {
	if strings.TrimSpace(a.Email) == "" {
		return ErrEmptyEmail
	}
	if len(a.Email) > MaxEmailLength {
		return ErrEmailTooLong
	}
	if !strings.Contains(a.Email, "@") {
		return ErrInvalidEmail
	}
	if utf8.RuneCountInString(a.Name) > MaxNameLength {
		return ErrNameTooLong
	}
	if a.Phone != "" && !sanitize.IsPhone(a.Phone) {
		return ErrInvalidPhone
	}
	if !IsValidRole(a.Role) {
		return ErrInvalidRole
	}
	if a.Status != StatusActive && a.Status != StatusDisabled {
		return ErrInvalidStatus
	}
	return nil
}

// SetPassword hashes and stores a password using bcrypt with cost 12.
// PRE: plaintext is non-empty and >= 12 characters
// POST: PasswordHash is set to bcrypt hash
func (a *Account) SetPassword(plaintext string) error {
	if plaintext == "" {
		return ErrEmptyPassword
	}
	if len(plaintext) < MinPassword {
		return ErrPasswordTooShort
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(plaintext), 12)
	if err != nil {
		return err
	}
	a.PasswordHash = string(hash)
	return nil
}

// CheckPassword verifies a plaintext password against the stored hash.
// INVARIANT: Account fields are not mutated
func (a *Account) CheckPassword(plaintext string) error {
	if a.PasswordHash == "" {
		return ErrWrongPassword
	}
	if err := bcrypt.CompareHashAndPassword([]byte(a.PasswordHash), []byte(plaintext)); err != nil {
		return ErrWrongPassword
	}
	return nil
}

// IsLocked returns true if the account is currently locked out.
func (a *Account) IsLocked(now time.Time) bool {
	if a.LockedUntil.IsZero() {
		return false
	}
	return now.Before(a.LockedUntil)
}

// RecordFailedLogin increments the failed login counter and locks the account
// after MaxFailedLogins failures.
// POST: FailedLogins incremented; LockedUntil set if >= MaxFailedLogins
func (a *Account) RecordFailedLogin(now time.Time) {
	a.FailedLogins++
	if a.FailedLogins >= MaxFailedLogins {
		a.LockedUntil = now.Add(LockoutDuration)
	}
}

// ResetFailedLogins clears the failed login counter and lock.
func (a *Account) ResetFailedLogins() {
	a.FailedLogins = 0
	a.LockedUntil = time.Time{}
}

// IsAdmin returns true if the account has admin role.
func (a *Account) IsAdmin() bool {
	return a.Role == RoleAdmin
}

// IsStaffOrAdmin returns true for back-office roles.
func (a *Account) IsStaffOrAdmin() bool {
	return a.Role == RoleAdmin || a.Role == RoleStaff
}

// IsDisabled returns true if the account may not log in.
func (a *Account) IsDisabled() bool {
	return a.Status == StatusDisabled
}

// Disable blocks further logins.
// PRE: Account is active
// POST: Status is disabled
func (a *Account) Disable() error {
	if a.Status == StatusDisabled {
		return ErrAlreadyDisabled
	}
	a.Status = StatusDisabled
	return nil
}

// Enable re-activates a disabled account.
// PRE: Account is disabled
// POST: Status is active, lockout cleared
func (a *Account) Enable() error {
	if a.Status == StatusActive {
		return ErrAlreadyActive
	}
	a.Status = StatusActive
	a.ResetFailedLogins()
	return nil
}

// IsValidRole reports whether role is a known role.
func IsValidRole(role string) bool {
	for _, r := range ValidRoles {
		if r == role {
			return true
		}
	}
	return false
}
