package offer

import (
	"errors"
	"net/url"
	"time"
	"unicode/utf8"

	"carimport/internal/domain/sanitize"
)

// Status constants
const (
	StatusSent     = "sent"
	StatusAccepted = "accepted"
	StatusDeclined = "declined"
	StatusExpired  = "expired"
)

// Offer validity and field limits.
const (
	DefaultValidity       = 7 * 24 * time.Hour
	MaxVehicleDescription = 300
	MaxMessageLength      = 4000
	MaxListingURLLength   = 2000
)

// Domain errors
var (
	ErrEmptyRequestID   = errors.New("request ID is required")
	ErrEmptyDescription = errors.New("vehicle description is required")
	ErrDescriptionLong  = errors.New("vehicle description cannot exceed 300 characters")
	ErrInvalidPrice     = errors.New("offer price must be positive")
	ErrInvalidURL       = errors.New("listing URL must be an absolute http(s) URL")
	ErrMessageTooLong   = errors.New("message cannot exceed 4000 characters")
	ErrNotPending       = errors.New("offer has already been answered")
	ErrOfferExpired     = errors.New("offer has expired")
)

// Offer is a concrete vehicle proposal sent to the customer for a car request.
type Offer struct {
	ID                 string
	RequestID          string
	VehicleDescription string
	PriceCents         int64
	ListingURL         string
	Message            string
	Status             string
	ExpiresAt          time.Time
	CreatedBy          string
	CreatedAt          time.Time
	RespondedAt        time.Time
}

// Normalize trims free-text fields.
func (o *Offer) Normalize() {
	o.VehicleDescription = sanitize.Line(o.VehicleDescription)
	o.ListingURL = sanitize.Line(o.ListingURL)
	o.Message = sanitize.Text(o.Message)
}

// Validate checks the offer before it is sent.
// PRE: Normalize has been called
// POST: Returns nil if valid, error otherwise
func (o *Offer) Validate() error {
	if o.RequestID == "" {
		return ErrEmptyRequestID
	}
	if o.VehicleDescription == "" {
		return ErrEmptyDescription
	}
	if utf8.RuneCountInString(o.VehicleDescription) > MaxVehicleDescription {
		return ErrDescriptionLong
	}
	if o.PriceCents <= 0 {
		return ErrInvalidPrice
	}
	if o.ListingURL != "" {
		if len(o.ListingURL) > MaxListingURLLength {
			return ErrInvalidURL
		}
		u, err := url.Parse(o.ListingURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			return ErrInvalidURL
		}
	}
	if utf8.RuneCountInString(o.Message) > MaxMessageLength {
		return ErrMessageTooLong
	}
	return nil
}

// IsExpired reports whether a sent offer is past its expiry.
func (o *Offer) IsExpired(now time.Time) bool {
	if o.Status == StatusExpired {
		return true
	}
	return o.Status == StatusSent && !o.ExpiresAt.IsZero() && !now.Before(o.ExpiresAt)
}

// Accept records the customer's acceptance.
// PRE: Offer is sent and not expired
// POST: Status is accepted, RespondedAt set
func (o *Offer) Accept(now time.Time) error {
	if err := o.checkAnswerable(now); err != nil {
		return err
	}
	o.Status = StatusAccepted
	o.RespondedAt = now
	return nil
}

// Decline records the customer's refusal.
// PRE: Offer is sent and not expired
// POST: Status is declined, RespondedAt set
func (o *Offer) Decline(now time.Time) error {
	if err := o.checkAnswerable(now); err != nil {
		return err
	}
	o.Status = StatusDeclined
	o.RespondedAt = now
	return nil
}

func (o *Offer) checkAnswerable(now time.Time) error {
	if o.IsExpired(now) {
		o.Status = StatusExpired
		return ErrOfferExpired
	}
	if o.Status != StatusSent {
		return ErrNotPending
	}
	return nil
}
