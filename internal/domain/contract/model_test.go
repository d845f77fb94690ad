package contract_test

import (
	"errors"
	"strings"
	"testing"
	"time"

	"carimport/internal/domain/contract"
)

func TestIsValidVIN(t *testing.T) {
	tests := []struct {
		vin  string
		want bool
	}{
		{"WVWZZZ1JZXW000001", true},
		{"WBA8E9G50GNT12345", true},
		{"WVWZZZ1JZXW00000", false},  // 16 chars
		{"WVWZZZ1JZXW0000011", false}, // 18 chars
		{"WVWZZZ1JZXWO00001", false},  // contains O
		{"wvwzzz1jzxw000001", false},  // lowercase before normalization
	}
	for _, tt := range tests {
		if got := contract.IsValidVIN(tt.vin); got != tt.want {
			t.Errorf("IsValidVIN(%q) = %v, want %v", tt.vin, got, tt.want)
		}
	}
	if got := contract.NormalizeVIN(" wvwzzz1jz xw000001 "); got != "WVWZZZ1JZXW000001" {
		t.Errorf("NormalizeVIN = %q", got)
	}
}

// TestContract_Validate tests validation of Contract.
func TestContract_Validate(t *testing.T) {
	base := contract.Contract{
		RequestID:          "req-1",
		AccountID:          "acct-1",
		VehicleDescription: "2020 Škoda Octavia Combi",
		VIN:                "TMBJJ7NE5L0123456",
		PriceCents:         21_000_00,
		DepositCents:       2_000_00,
	}
	tests := []struct {
		name    string
		mutate  func(c *contract.Contract)
		wantErr error
	}{
		{"valid", func(c *contract.Contract) {}, nil},
		{"vin optional in draft", func(c *contract.Contract) { c.VIN = "" }, nil},
		{"bad vin", func(c *contract.Contract) { c.VIN = "123" }, contract.ErrInvalidVIN},
		{"no account", func(c *contract.Contract) { c.AccountID = "" }, contract.ErrEmptyAccountID},
		{"deposit above price", func(c *contract.Contract) { c.DepositCents = 22_000_00 }, contract.ErrInvalidDeposit},
		{"negative deposit", func(c *contract.Contract) { c.DepositCents = -1 }, contract.ErrInvalidDeposit},
		{"zero price", func(c *contract.Contract) { c.PriceCents = 0 }, contract.ErrInvalidPrice},
		{"description counts characters", func(c *contract.Contract) {
			c.VehicleDescription = strings.Repeat("Š", contract.MaxVehicleDescription)
		}, nil},
		{"description too long", func(c *contract.Contract) {
			c.VehicleDescription = strings.Repeat("Š", contract.MaxVehicleDescription+1)
		}, contract.ErrDescriptionLong},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := base
			tt.mutate(&c)
			if err := c.Validate(); err != tt.wantErr {
				t.Errorf("Validate() = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

// TestContract_TransitionTo walks the contract lifecycle.
func TestContract_TransitionTo(t *testing.T) {
	now := time.Date(2026, 6, 1, 8, 0, 0, 0, time.UTC)
	c := contract.Contract{Status: contract.StatusDraft, VIN: "TMBJJ7NE5L0123456"}

	if err := c.TransitionTo(contract.StatusSigned, now); !errors.Is(err, contract.ErrInvalidTransition) {
		t.Fatalf("draft->signed = %v, want ErrInvalidTransition", err)
	}
	if err := c.TransitionTo(contract.StatusSent, now); err != nil {
		t.Fatalf("draft->sent = %v", err)
	}
	if !c.SentAt.Equal(now) {
		t.Error("SentAt not stamped")
	}
	if err := c.TransitionTo(contract.StatusSigned, now); err != nil {
		t.Fatalf("sent->signed = %v", err)
	}
	if err := c.TransitionTo(contract.StatusCancelled, now); !errors.Is(err, contract.ErrInvalidTransition) {
		t.Fatalf("signed->cancelled = %v, want ErrInvalidTransition", err)
	}

	noVIN := contract.Contract{Status: contract.StatusDraft}
	if err := noVIN.TransitionTo(contract.StatusSent, now); err != contract.ErrInvalidVIN {
		t.Errorf("sending without VIN = %v, want ErrInvalidVIN", err)
	}
}

func TestFormatNumber(t *testing.T) {
	if got := contract.FormatNumber(2026, 42); got != "CI-2026-000042" {
		t.Errorf("FormatNumber = %q", got)
	}
	c := contract.Contract{PriceCents: 1000, DepositCents: 250}
	if c.BalanceCents() != 750 {
		t.Errorf("BalanceCents = %d", c.BalanceCents())
	}
}
