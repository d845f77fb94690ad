package orchestrators

import (
	"context"
	"strconv"
	"time"

	"carimport/internal/adapters/analytics"
	"carimport/internal/domain/calculator"
)

// CalculateDeps holds dependencies for the import cost calculator.
type CalculateDeps struct {
	Rates   *calculator.Rates
	Tracker analytics.Tracker // optional
	Now     func() time.Time
}

// CalculateInput is the calculator form plus request metadata.
type CalculateInput struct {
	calculator.Input
	PageURL   string
	UserAgent string
	IP        string
}

// ExecuteCalculate estimates the landed cost of a car and records the usage.
// PRE: Rates is loaded
// POST: Returns the breakdown or a calculator validation error
func ExecuteCalculate(ctx context.Context, input CalculateInput, deps CalculateDeps) (calculator.Breakdown, error) {
	rates := deps.Rates
	if rates == nil {
		rates = calculator.DefaultRates()
	}
	b, err := rates.Calculate(input.Input, nowFrom(deps.Now))
	if err != nil {
		return calculator.Breakdown{}, err
	}
	if deps.Tracker != nil {
		deps.Tracker.Track(ctx, analytics.Event{
			Name:      analytics.EventCalculatorUsed,
			URL:       input.PageURL,
			UserAgent: input.UserAgent,
			IP:        input.IP,
			Props: map[string]string{
				"origin":   input.OriginCountry,
				"fuel":     input.Fuel,
				"eu":       strconv.FormatBool(b.EUOrigin),
				"age_year": strconv.Itoa(b.AgeYears),
			},
		})
	}
	return b, nil
}
