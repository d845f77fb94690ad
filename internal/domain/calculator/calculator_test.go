package calculator_test

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"carimport/internal/domain/calculator"
)

var now = time.Date(2026, 5, 15, 0, 0, 0, 0, time.UTC)

func TestCalculate(t *testing.T) {
	rates := calculator.DefaultRates()

	tests := []struct {
		name string
		in   calculator.Input
		want calculator.Breakdown
	}{
		{
			name: "used diesel from Germany",
			in: calculator.Input{PriceCents: 2_000_000, OriginCountry: "de", EngineCC: 1968, CO2: 140,
				Fuel: "diesel", FirstRegistration: "2021-03"},
			want: calculator.Breakdown{
				VehiclePriceCents: 2_000_000, TransportCents: 90_000, RegistrationTaxCents: 72_000,
				BrokerFeeCents: 60_000, TotalCents: 2_222_000, AgeYears: 5, RegistrationTaxRate: 3.6, EUOrigin: true,
			},
		},
		{
			name: "large petrol from the US",
			in: calculator.Input{PriceCents: 3_000_000, OriginCountry: "US", Destination: "hr", EngineCC: 3000, CO2: 210,
				Fuel: "petrol", FirstRegistration: "2025-01"},
			want: calculator.Breakdown{
				VehiclePriceCents: 3_000_000, TransportCents: 320_000, CustomsDutyCents: 332_000, VATCents: 913_000,
				RegistrationTaxCents: 469_200, BrokerFeeCents: 90_000, TotalCents: 5_124_200, AgeYears: 1,
				RegistrationTaxRate: 15.64,
			},
		},
		{
			name: "new electric from Germany pays VAT but no registration tax",
			in: calculator.Input{PriceCents: 4_000_000, OriginCountry: "DE", CO2: 0, Fuel: "electric",
				FirstRegistration: "2026-03"},
			want: calculator.Breakdown{
				VehiclePriceCents: 4_000_000, TransportCents: 90_000, VATCents: 1_022_500,
				BrokerFeeCents: 120_000, TotalCents: 5_232_500, EUOrigin: true,
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := rates.Calculate(tt.in, now)
			if err != nil {
				t.Fatalf("Calculate() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got); diff != "" {
				t.Errorf("Calculate() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCalculate_MinimumBrokerFee(t *testing.T) {
	got, err := calculator.DefaultRates().Calculate(calculator.Input{
		PriceCents: 500_000, OriginCountry: "AT", Fuel: "petrol", CO2: 95, FirstRegistration: "2015-06",
	}, now)
	if err != nil {
		t.Fatalf("Calculate() error = %v", err)
	}
	if got.BrokerFeeCents != 50_000 {
		t.Errorf("BrokerFeeCents = %d, want minimum 50000", got.BrokerFeeCents)
	}
	sum := got.VehiclePriceCents + got.TransportCents + got.CustomsDutyCents + got.VATCents +
		got.RegistrationTaxCents + got.BrokerFeeCents
	if got.TotalCents != sum {
		t.Errorf("TotalCents = %d, parts sum to %d", got.TotalCents, sum)
	}
}

func TestCalculate_Errors(t *testing.T) {
	rates := calculator.DefaultRates()
	valid := calculator.Input{PriceCents: 1_000_000, OriginCountry: "DE", Fuel: "diesel", CO2: 120}
	tests := []struct {
		name    string
		mutate  func(in *calculator.Input)
		wantErr error
	}{
		{"unknown origin", func(in *calculator.Input) { in.OriginCountry = "XX" }, calculator.ErrUnknownCountry},
		{"unknown destination", func(in *calculator.Input) { in.Destination = "DE" }, calculator.ErrUnknownCountry},
		{"zero price", func(in *calculator.Input) { in.PriceCents = 0 }, calculator.ErrInvalidPrice},
		{"negative co2", func(in *calculator.Input) { in.CO2 = -1 }, calculator.ErrInvalidCO2},
		{"bad fuel", func(in *calculator.Input) { in.Fuel = "lpg" }, calculator.ErrInvalidFuel},
		{"future registration", func(in *calculator.Input) { in.FirstRegistration = "2027-01" }, calculator.ErrInvalidRegistration},
		{"bad registration format", func(in *calculator.Input) { in.FirstRegistration = "03/2020" }, calculator.ErrInvalidRegistration},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := valid
			tt.mutate(&in)
			if _, err := rates.Calculate(in, now); !errors.Is(err, tt.wantErr) {
				t.Errorf("Calculate() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestParseRates_Invalid(t *testing.T) {
	if _, err := calculator.ParseRates([]byte("origins: {}\n")); err == nil {
		t.Error("expected error for empty table")
	}
	if _, err := calculator.ParseRates([]byte("origins: [")); err == nil {
		t.Error("expected YAML error")
	}
}
