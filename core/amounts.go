package core

import (
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// TinybarPerHbar is the ledger's native sub-unit ratio.
const TinybarPerHbar = 100_000_000

// Tokens are minted at half the contributed native amount. Fixed policy
// constant, not configurable per event.
var mintDivisor = decimal.NewFromInt(2)

// MintAmount converts a contribution in native units into the token amount
// to mint: half the contribution, rounded half-away-from-zero to two decimal
// places. The same value must be used for the mint submission and the
// persisted donation record.
func MintAmount(contribution decimal.Decimal) decimal.Decimal {
	return contribution.Div(mintDivisor).Round(2)
}

// ParseContribution validates and normalizes a raw contribution amount.
func ParseContribution(raw string) (decimal.Decimal, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return decimal.Zero, fmt.Errorf("core: contribution amount is required")
	}
	amount, err := decimal.NewFromString(trimmed)
	if err != nil {
		return decimal.Zero, fmt.Errorf("core: contribution amount %q is invalid", trimmed)
	}
	if !amount.IsPositive() {
		return decimal.Zero, fmt.Errorf("core: contribution amount must be positive")
	}
	if amount.Exponent() < -8 {
		return decimal.Zero, fmt.Errorf("core: contribution amount has more than 8 decimal places")
	}
	if MintAmount(amount).IsZero() {
		// Anything below 0.01 rounds to a zero mint, which the ledger would
		// reject long after the donation row exists. Refuse it up front.
		return decimal.Zero, fmt.Errorf("core: contribution amount must be at least 0.01")
	}
	return amount, nil
}

// HbarFromTinybar converts a raw tinybar balance into whole native units.
func HbarFromTinybar(tinybar int64) decimal.Decimal {
	return decimal.NewFromInt(tinybar).Div(decimal.NewFromInt(TinybarPerHbar))
}
