package valuation

import (
	"math/big"

	"github.com/shopspring/decimal"

	"github.com/quantumauth-io/nexuslend-client/internal/constants"
	"github.com/quantumauth-io/nexuslend-client/internal/fixedpoint"
)

var (
	loanToValue       = decimal.RequireFromString(constants.LoanToValue)
	negligibleBorrow  = decimal.RequireFromString(constants.NegligibleBorrowUSD)
	healthCeiling     = decimal.RequireFromString(constants.HealthFactorCeiling)
	healthFloor       = decimal.RequireFromString(constants.HealthFactorFloor)
	ledgerHealthCap   = decimal.RequireFromString(constants.LedgerHealthFactorCap)
	bandSafe          = decimal.NewFromInt(2)
	bandModerate      = decimal.RequireFromString("1.5")
	bandRisky         = decimal.NewFromInt(1)
	displayFracDigits = int32(2)
)

// Band is a coarse risk classification of a health factor.
type Band string

const (
	BandSafe         Band = "safe"
	BandModerate     Band = "moderate"
	BandRisky        Band = "risky"
	BandLiquidatable Band = "liquidatable"
)

// HealthFactor is a health factor plus its rendering sentinels. Value holds the
// computed ratio whenever one exists, even if it renders as infinite.
type HealthFactor struct {
	Value         decimal.Decimal
	Infinite      bool
	CriticallyLow bool
}

// ComputeHealthFactor derives the account health factor from aggregate USD
// values: totalSupplied * LTV / totalBorrowed.
func ComputeHealthFactor(totalSupplied, totalBorrowed decimal.Decimal) HealthFactor {
	if totalBorrowed.LessThan(negligibleBorrow) {
		return HealthFactor{Infinite: true}
	}
	v := totalSupplied.Mul(loanToValue).Div(totalBorrowed)
	return HealthFactor{
		Value:         v,
		Infinite:      v.GreaterThan(healthCeiling),
		CriticallyLow: v.LessThan(healthFloor),
	}
}

// LedgerHealthFactor interprets the pool's own RAY-scaled health factor. An
// unloaded or zero value means the account has no debt.
func LedgerHealthFactor(raw *big.Int, loaded bool) HealthFactor {
	if !loaded || raw == nil || raw.Sign() == 0 {
		return HealthFactor{Infinite: true}
	}
	v := fixedpoint.RayToDecimal(raw)
	return HealthFactor{
		Value:         v,
		Infinite:      v.GreaterThan(ledgerHealthCap),
		CriticallyLow: v.LessThan(healthFloor),
	}
}

// Display renders "∞", "< 0.01" or the value with two decimals.
func (h HealthFactor) Display() string {
	switch {
	case h.Infinite:
		return "∞"
	case h.CriticallyLow:
		return "< 0.01"
	default:
		return h.Value.StringFixed(displayFracDigits)
	}
}

func (h HealthFactor) Band() Band {
	switch {
	case h.Infinite, h.Value.GreaterThanOrEqual(bandSafe):
		return BandSafe
	case h.Value.GreaterThanOrEqual(bandModerate):
		return BandModerate
	case h.Value.GreaterThanOrEqual(bandRisky):
		return BandRisky
	default:
		return BandLiquidatable
	}
}
