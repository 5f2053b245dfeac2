package config

import (
	"time"

	"github.com/shopspring/decimal"
)

// LedgerConfig holds the fixed financial constants of the marketplace.
// Built once at startup and passed to every service; never read from env.
type LedgerConfig struct {
	VATRate              decimal.Decimal // percent
	CorporateTaxRate     decimal.Decimal // percent
	TaxFreeThreshold     decimal.Decimal
	EligibilityWindow    time.Duration
	PayoutDays           []int // days of month
	DiscrepancyTolerance decimal.Decimal
}

// DefaultLedger returns the production ledger constants
func DefaultLedger() LedgerConfig {
	return LedgerConfig{
		VATRate:              decimal.NewFromInt(5),
		CorporateTaxRate:     decimal.NewFromInt(9),
		TaxFreeThreshold:     decimal.NewFromInt(375000),
		EligibilityWindow:    15 * 24 * time.Hour,
		PayoutDays:           []int{1, 8, 15, 22},
		DiscrepancyTolerance: decimal.RequireFromString("0.01"),
	}
}

// IsPayoutDay reports whether the UTC calendar day of t is a payout day
func (c LedgerConfig) IsPayoutDay(t time.Time) bool {
	day := t.UTC().Day()
	for _, d := range c.PayoutDays {
		if d == day {
			return true
		}
	}
	return false
}

// EligibilityDays returns the eligibility window in whole days
func (c LedgerConfig) EligibilityDays() int {
	return int(c.EligibilityWindow / (24 * time.Hour))
}
