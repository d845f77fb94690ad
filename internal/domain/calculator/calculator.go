// Package calculator estimates the landed cost of importing a car.
package calculator

import (
	_ "embed"
	"errors"
	"fmt"
	"math"
	"sort"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed rates.yaml
var defaultRatesYAML []byte

// Domain errors
var (
	ErrUnknownCountry      = errors.New("country is not supported")
	ErrInvalidPrice        = errors.New("price must be positive")
	ErrInvalidCO2          = errors.New("CO2 emissions cannot be negative")
	ErrInvalidEngine       = errors.New("engine size cannot be negative")
	ErrInvalidFuel         = errors.New("fuel must be one of: petrol, diesel, hybrid, electric")
	ErrInvalidRegistration = errors.New("first registration must be YYYY-MM and not in the future")
)

// DefaultDestination is used when the input names none.
const DefaultDestination = "HR"

// Input describes the car being priced.
type Input struct {
	PriceCents        int64  `json:"price_cents"`
	OriginCountry     string `json:"origin_country"`
	Destination       string `json:"destination"`
	EngineCC          int    `json:"engine_cc"`
	CO2               int    `json:"co2"`
	Fuel              string `json:"fuel"`
	FirstRegistration string `json:"first_registration"`
}

// Breakdown is the cost estimate in cents.
type Breakdown struct {
	VehiclePriceCents    int64   `json:"vehicle_price_cents"`
	TransportCents       int64   `json:"transport_cents"`
	CustomsDutyCents     int64   `json:"customs_duty_cents"`
	VATCents             int64   `json:"vat_cents"`
	RegistrationTaxCents int64   `json:"registration_tax_cents"`
	BrokerFeeCents       int64   `json:"broker_fee_cents"`
	TotalCents           int64   `json:"total_cents"`
	AgeYears             int     `json:"age_years"`
	RegistrationTaxRate  float64 `json:"registration_tax_rate"`
	EUOrigin             bool    `json:"eu_origin"`
}

// Rates is the rate table.
type Rates struct {
	BrokerFee struct {
		Percent      float64 `yaml:"percent"`
		MinimumCents int64   `yaml:"minimum_cents"`
	} `yaml:"broker_fee"`
	CustomsDutyPercent     float64                `yaml:"customs_duty_percent"`
	NewVehicleMaxAgeMonths int                    `yaml:"new_vehicle_max_age_months"`
	EUCountries            []string               `yaml:"eu_countries"`
	Origins                map[string]Origin      `yaml:"origins"`
	Destinations           map[string]Destination `yaml:"destinations"`
}

// Origin holds per-origin transport cost.
type Origin struct {
	TransportCents int64 `yaml:"transport_cents"`
}

// Destination holds the tax rules of the registering country.
type Destination struct {
	VATPercent      float64         `yaml:"vat_percent"`
	RegistrationTax RegistrationTax `yaml:"registration_tax"`
}

// RegistrationTax is a CO2 band table with an age reduction.
type RegistrationTax struct {
	ElectricExempt             bool    `yaml:"electric_exempt"`
	AgeReductionPercentPerYear float64 `yaml:"age_reduction_percent_per_year"`
	AgeReductionMaxPercent     float64 `yaml:"age_reduction_max_percent"`
	Bands                      []Band  `yaml:"bands"`
	EngineSurcharge            struct {
		AboveCC int     `yaml:"above_cc"`
		Percent float64 `yaml:"percent"`
	} `yaml:"engine_surcharge"`
}

// Band applies Percent up to MaxCO2 g/km. MaxCO2 of 0 means no upper bound.
type Band struct {
	MaxCO2  int     `yaml:"max_co2"`
	Percent float64 `yaml:"percent"`
}

// ParseRates decodes a YAML rate table.
// PRE: data is a YAML document in the rates.yaml layout
// POST: Returns rates with at least one origin and destination, or an error
func ParseRates(data []byte) (*Rates, error) {
	var r Rates
	if err := yaml.Unmarshal(data, &r); err != nil {
		return nil, fmt.Errorf("parse rates: %w", err)
	}
	if len(r.Origins) == 0 || len(r.Destinations) == 0 {
		return nil, errors.New("parse rates: origins and destinations are required")
	}
	for code, d := range r.Destinations {
		if len(d.RegistrationTax.Bands) == 0 {
			return nil, fmt.Errorf("parse rates: destination %s has no CO2 bands", code)
		}
	}
	return &r, nil
}

// DefaultRates returns the embedded rate table.
func DefaultRates() *Rates {
	r, err := ParseRates(defaultRatesYAML)
	if err != nil {
		panic(err)
	}
	return r
}

// Countries lists supported origin codes.
func (r *Rates) Countries() []string {
	out := make([]string, 0, len(r.Origins))
	for code := range r.Origins {
		out = append(out, code)
	}
	sort.Strings(out)
	return out
}

func (r *Rates) isEU(code string) bool {
	for _, c := range r.EUCountries {
		if c == code {
			return true
		}
	}
	return false
}

// Calculate prices an import.
// PRE: rates loaded, now is the evaluation date
// POST: Returns the breakdown with TotalCents equal to the sum of its parts
func (r *Rates) Calculate(in Input, now time.Time) (Breakdown, error) {
	origin := strings.ToUpper(strings.TrimSpace(in.OriginCountry))
	dest := strings.ToUpper(strings.TrimSpace(in.Destination))
	if dest == "" {
		dest = DefaultDestination
	}
	fuel := strings.ToLower(strings.TrimSpace(in.Fuel))

	if in.PriceCents <= 0 {
		return Breakdown{}, ErrInvalidPrice
	}
	if in.CO2 < 0 {
		return Breakdown{}, ErrInvalidCO2
	}
	if in.EngineCC < 0 {
		return Breakdown{}, ErrInvalidEngine
	}
	switch fuel {
	case "petrol", "diesel", "hybrid", "electric":
	default:
		return Breakdown{}, ErrInvalidFuel
	}
	o, ok := r.Origins[origin]
	if !ok {
		return Breakdown{}, fmt.Errorf("%w: %q", ErrUnknownCountry, in.OriginCountry)
	}
	d, ok := r.Destinations[dest]
	if !ok {
		return Breakdown{}, fmt.Errorf("%w: %q", ErrUnknownCountry, in.Destination)
	}
	ageMonths, err := ageInMonths(in.FirstRegistration, now)
	if err != nil {
		return Breakdown{}, err
	}

	b := Breakdown{
		VehiclePriceCents: in.PriceCents,
		TransportCents:    o.TransportCents,
		AgeYears:          ageMonths / 12,
		EUOrigin:          r.isEU(origin),
	}

	if !b.EUOrigin {
		b.CustomsDutyCents = percentOf(in.PriceCents+o.TransportCents, r.CustomsDutyPercent)
	}

	isNew := ageMonths < r.NewVehicleMaxAgeMonths
	if !b.EUOrigin || isNew {
		base := in.PriceCents + o.TransportCents + b.CustomsDutyCents
		b.VATCents = percentOf(base, d.VATPercent)
	}

	b.RegistrationTaxRate = d.RegistrationTax.rate(fuel, in.CO2, in.EngineCC, b.AgeYears)
	b.RegistrationTaxCents = percentOf(in.PriceCents, b.RegistrationTaxRate)

	b.BrokerFeeCents = percentOf(in.PriceCents, r.BrokerFee.Percent)
	if b.BrokerFeeCents < r.BrokerFee.MinimumCents {
		b.BrokerFeeCents = r.BrokerFee.MinimumCents
	}

	b.TotalCents = b.VehiclePriceCents + b.TransportCents + b.CustomsDutyCents +
		b.VATCents + b.RegistrationTaxCents + b.BrokerFeeCents
	return b, nil
}

// rate returns the effective registration tax percentage.
func (t RegistrationTax) rate(fuel string, co2, engineCC, ageYears int) float64 {
	if fuel == "electric" && t.ElectricExempt {
		return 0
	}
	var pct float64
	for _, band := range t.Bands {
		if band.MaxCO2 == 0 || co2 <= band.MaxCO2 {
			pct = band.Percent
			break
		}
	}
	if t.EngineSurcharge.AboveCC > 0 && engineCC > t.EngineSurcharge.AboveCC {
		pct += t.EngineSurcharge.Percent
	}
	reduction := float64(ageYears) * t.AgeReductionPercentPerYear
	if reduction > t.AgeReductionMaxPercent {
		reduction = t.AgeReductionMaxPercent
	}
	return math.Round(pct*(100-reduction)) / 100
}

func ageInMonths(firstRegistration string, now time.Time) (int, error) {
	if strings.TrimSpace(firstRegistration) == "" {
		return 0, nil
	}
	t, err := time.Parse("2006-01", strings.TrimSpace(firstRegistration))
	if err != nil {
		return 0, ErrInvalidRegistration
	}
	months := (now.Year()-t.Year())*12 + int(now.Month()) - int(t.Month())
	if months < 0 {
		return 0, ErrInvalidRegistration
	}
	return months, nil
}

func percentOf(cents int64, pct float64) int64 {
	return int64(math.Round(float64(cents) * pct / 100))
}
