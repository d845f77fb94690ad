package carrequest_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"carimport/internal/domain/carrequest"
)

var now = time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)

func validRequest() carrequest.CarRequest {
	return carrequest.CarRequest{
		ContactName:  "Ana Petrović",
		ContactEmail: "ana@example.com",
		ContactPhone: "+385 91 123 4567",
		Country:      "hr",
		Make:         "BMW",
		Model:        "330e",
		YearFrom:     2019,
		YearTo:       2022,
		BudgetCents:  32_000_00,
		Fuel:         "Hybrid",
		Transmission: "automatic",
		MaxMileageKm: 80000,
	}
}

// TestCarRequest_Validate covers intake rules.
func TestCarRequest_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *carrequest.CarRequest)
		wantErr error
	}{
		{name: "valid request", mutate: func(c *carrequest.CarRequest) {}},
		{name: "missing name", mutate: func(c *carrequest.CarRequest) { c.ContactName = "   " }, wantErr: carrequest.ErrNameRequired},
		{name: "bad email", mutate: func(c *carrequest.CarRequest) { c.ContactEmail = "ana@" }, wantErr: carrequest.ErrInvalidEmail},
		{name: "bad phone", mutate: func(c *carrequest.CarRequest) { c.ContactPhone = "call me" }, wantErr: carrequest.ErrInvalidPhone},
		{name: "empty phone allowed", mutate: func(c *carrequest.CarRequest) { c.ContactPhone = "" }},
		{name: "missing make", mutate: func(c *carrequest.CarRequest) { c.Make = "" }, wantErr: carrequest.ErrMakeRequired},
		{name: "year range inverted", mutate: func(c *carrequest.CarRequest) { c.YearFrom, c.YearTo = 2023, 2020 }, wantErr: carrequest.ErrInvalidYears},
		{name: "year in future", mutate: func(c *carrequest.CarRequest) { c.YearTo = 2030 }, wantErr: carrequest.ErrInvalidYears},
		{name: "year too old", mutate: func(c *carrequest.CarRequest) { c.YearFrom = 1900 }, wantErr: carrequest.ErrInvalidYears},
		{name: "budget too low", mutate: func(c *carrequest.CarRequest) { c.BudgetCents = 500_00 }, wantErr: carrequest.ErrInvalidBudget},
		{name: "budget too high", mutate: func(c *carrequest.CarRequest) { c.BudgetCents = 3_000_000_00 }, wantErr: carrequest.ErrInvalidBudget},
		{name: "unknown fuel", mutate: func(c *carrequest.CarRequest) { c.Fuel = "steam" }, wantErr: carrequest.ErrInvalidFuel},
		{name: "unknown gearbox", mutate: func(c *carrequest.CarRequest) { c.Transmission = "cvt" }, wantErr: carrequest.ErrInvalidGearbox},
		{name: "negative mileage", mutate: func(c *carrequest.CarRequest) { c.MaxMileageKm = -1 }, wantErr: carrequest.ErrInvalidMileage},
		{name: "notes too long", mutate: func(c *carrequest.CarRequest) { c.Notes = strings.Repeat("x", 2001) }, wantErr: carrequest.ErrNotesTooLong},
		{name: "notes at limit in diacritics", mutate: func(c *carrequest.CarRequest) { c.Notes = strings.Repeat("ș", 2000) }},
		{name: "diacritic notes over limit", mutate: func(c *carrequest.CarRequest) { c.Notes = strings.Repeat("ș", 2001) }, wantErr: carrequest.ErrNotesTooLong},
		{name: "country too long", mutate: func(c *carrequest.CarRequest) { c.Country = "Croatia" }, wantErr: carrequest.ErrFieldTooLong},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validRequest()
			tt.mutate(&c)
			c.Normalize()
			err := c.Validate(now)
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestCarRequest_Normalize checks cleaning and defaults.
func TestCarRequest_Normalize(t *testing.T) {
	c := carrequest.CarRequest{
		ContactName:  "  Ana \t Petrović ",
		ContactEmail: " ANA@Example.com ",
		Country:      "de",
		Notes:        "line one\x00\nline two",
	}
	c.Normalize()
	if c.ContactName != "Ana Petrović" {
		t.Errorf("ContactName = %q", c.ContactName)
	}
	if c.ContactEmail != "ana@example.com" {
		t.Errorf("ContactEmail = %q", c.ContactEmail)
	}
	if c.Country != "DE" {
		t.Errorf("Country = %q", c.Country)
	}
	if c.Notes != "line one\nline two" {
		t.Errorf("Notes = %q", c.Notes)
	}
	if c.Fuel != carrequest.FuelAny || c.Transmission != carrequest.TransmissionAny {
		t.Errorf("defaults not applied: fuel=%q transmission=%q", c.Fuel, c.Transmission)
	}
}

// TestCarRequest_TransitionTo walks the status machine.
func TestCarRequest_TransitionTo(t *testing.T) {
	tests := []struct {
		from    string
		to      string
		allowed bool
	}{
		{carrequest.StatusNew, carrequest.StatusInReview, true},
		{carrequest.StatusNew, carrequest.StatusOffered, false},
		{carrequest.StatusInReview, carrequest.StatusOffered, true},
		{carrequest.StatusOffered, carrequest.StatusAccepted, true},
		{carrequest.StatusOffered, carrequest.StatusInReview, true},
		{carrequest.StatusAccepted, carrequest.StatusClosed, true},
		{carrequest.StatusAccepted, carrequest.StatusCancelled, false},
		{carrequest.StatusRejected, carrequest.StatusInReview, false},
		{carrequest.StatusClosed, carrequest.StatusNew, false},
		{carrequest.StatusInReview, carrequest.StatusCancelled, true},
	}
	for _, tt := range tests {
		t.Run(tt.from+"->"+tt.to, func(t *testing.T) {
			c := carrequest.CarRequest{Status: tt.from}
			err := c.TransitionTo(tt.to, now)
			if tt.allowed && err != nil {
				t.Fatalf("TransitionTo() = %v, want nil", err)
			}
			if !tt.allowed && !errors.Is(err, carrequest.ErrInvalidTransition) {
				t.Fatalf("TransitionTo() = %v, want ErrInvalidTransition", err)
			}
			if tt.allowed && (c.Status != tt.to || !c.UpdatedAt.Equal(now)) {
				t.Errorf("status=%q updated=%v", c.Status, c.UpdatedAt)
			}
		})
	}

	c := carrequest.CarRequest{Status: carrequest.StatusNew}
	if err := c.TransitionTo("archived", now); err != carrequest.ErrInvalidStatus {
		t.Errorf("unknown target = %v, want ErrInvalidStatus", err)
	}
}

func TestNewReference(t *testing.T) {
	ref := carrequest.NewReference(now, "4f9a1c2d-0000-0000-0000-000000000000")
	if ref != "CR-20260510-4F9A1C" {
		t.Errorf("NewReference = %q", ref)
	}
}

func TestCarRequest_OwnedBy(t *testing.T) {
	c := carrequest.CarRequest{AccountID: "acct-1"}
	if !c.OwnedBy("acct-1") || c.OwnedBy("acct-2") || c.OwnedBy("") {
		t.Error("OwnedBy mismatch")
	}
	anon := carrequest.CarRequest{}
	if anon.OwnedBy("") {
		t.Error("anonymous request must not be owned by the empty account")
	}
}
