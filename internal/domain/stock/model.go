package stock

import (
	"errors"
	"time"
	"unicode/utf8"

	"carimport/internal/domain/sanitize"
)

// Status constants
const (
	StatusAvailable = "available"
	StatusReserved  = "reserved"
	StatusSold      = "sold"
)

// Limits
const (
	MaxImages            = 20
	MaxDescriptionLength = 5000
	MaxShortField        = 80
	MinYear              = 1950
)

// Domain errors
var (
	ErrMakeRequired    = errors.New("make is required")
	ErrModelRequired   = errors.New("model is required")
	ErrInvalidYear     = errors.New("year is not valid")
	ErrInvalidMileage  = errors.New("mileage cannot be negative")
	ErrInvalidPrice    = errors.New("price must be positive")
	ErrInvalidFuel     = errors.New("fuel must be one of: petrol, diesel, hybrid, electric, lpg")
	ErrInvalidGearbox  = errors.New("transmission must be manual or automatic")
	ErrInvalidStatus   = errors.New("status must be available, reserved or sold")
	ErrTooManyImages   = errors.New("a car can have at most 20 images")
	ErrDescriptionLong = errors.New("description cannot exceed 5000 characters")
	ErrFieldTooLong    = errors.New("field exceeds maximum length")
	ErrImageNotFound   = errors.New("image is not attached to this car")
)

// ValidFuels lists accepted fuel values for stock cars.
var ValidFuels = []string{"petrol", "diesel", "hybrid", "electric", "lpg"}

// Car is a vehicle the broker has in stock and shows on the public site.
type Car struct {
	ID           string
	Make         string
	Model        string
	Year         int
	MileageKm    int
	Fuel         string
	Transmission string
	PriceCents   int64
	Color        string
	Description  string
	Images       []string // blob keys, first is the cover
	Status       string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Normalize cleans text inputs and defaults the status.
func (c *Car) Normalize() {
	c.Make = sanitize.Line(c.Make)
	c.Model = sanitize.Line(c.Model)
	c.Color = sanitize.Line(c.Color)
	c.Fuel = sanitize.Line(c.Fuel)
	c.Transmission = sanitize.Line(c.Transmission)
	c.Description = sanitize.Text(c.Description)
	if c.Status == "" {
		c.Status = StatusAvailable
	}
}

// Validate checks a stock car listing.
// PRE: Normalize has been called
// POST: Returns nil if valid, error otherwise
func (c *Car) Validate(now time.Time) error {
	if c.Make == "" {
		return ErrMakeRequired
	}
	if c.Model == "" {
		return ErrModelRequired
	}
	if utf8.RuneCountInString(c.Make) > MaxShortField || utf8.RuneCountInString(c.Model) > MaxShortField || utf8.RuneCountInString(c.Color) > MaxShortField {
		return ErrFieldTooLong
	}
	if c.Year < MinYear || c.Year > now.Year()+1 {
		return ErrInvalidYear
	}
	if c.MileageKm < 0 {
		return ErrInvalidMileage
	}
	if c.PriceCents <= 0 {
		return ErrInvalidPrice
	}
	if !isValidFuel(c.Fuel) {
		return ErrInvalidFuel
	}
	if c.Transmission != "manual" && c.Transmission != "automatic" {
		return ErrInvalidGearbox
	}
	if !IsValidStatus(c.Status) {
		return ErrInvalidStatus
	}
	if len(c.Images) > MaxImages {
		return ErrTooManyImages
	}
	if utf8.RuneCountInString(c.Description) > MaxDescriptionLength {
		return ErrDescriptionLong
	}
	return nil
}

// AddImage appends a blob key.
// PRE: key is a stored blob
// POST: Images grows by one, or ErrTooManyImages
func (c *Car) AddImage(key string, now time.Time) error {
	if len(c.Images) >= MaxImages {
		return ErrTooManyImages
	}
	c.Images = append(c.Images, key)
	c.UpdatedAt = now
	return nil
}

// RemoveImage detaches a blob key.
func (c *Car) RemoveImage(key string, now time.Time) error {
	for i, k := range c.Images {
		if k == key {
			c.Images = append(c.Images[:i], c.Images[i+1:]...)
			c.UpdatedAt = now
			return nil
		}
	}
	return ErrImageNotFound
}

// CoverImage returns the first image key, or "".
func (c *Car) CoverImage() string {
	if len(c.Images) == 0 {
		return ""
	}
	return c.Images[0]
}

// IsValidStatus reports whether s is a stock status.
func IsValidStatus(s string) bool {
	return s == StatusAvailable || s == StatusReserved || s == StatusSold
}

func isValidFuel(f string) bool {
	for _, v := range ValidFuels {
		if v == f {
			return true
		}
	}
	return false
}
