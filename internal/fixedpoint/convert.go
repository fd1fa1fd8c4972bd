// Package fixedpoint converts integer ledger quantities into decimal values.
//
// Every conversion is total: a nil raw value is treated as zero. Arithmetic on
// the raw integer is exact (shopspring/decimal keeps the big.Int coefficient),
// floats only appear in the presentation helpers in format.go.
package fixedpoint

import (
	"math/big"
	"strings"

	"github.com/cockroachdb/errors"
	"github.com/holiman/uint256"
	"github.com/shopspring/decimal"

	"github.com/quantumauth-io/nexuslend-client/internal/constants"
)

var (
	ErrEmptyAmount       = errors.New("amount is empty")
	ErrMalformedAmount   = errors.New("amount is not a decimal number")
	ErrNonPositiveAmount = errors.New("amount must be greater than zero")
	ErrTooPrecise        = errors.New("amount has more fractional digits than the asset supports")
	ErrAmountOverflow    = errors.New("amount does not fit in uint256")
)

var hundred = decimal.NewFromInt(100)

// ToDecimal divides raw by 10^scale.
func ToDecimal(raw *big.Int, scale int32) decimal.Decimal {
	if raw == nil {
		return decimal.Zero
	}
	return decimal.NewFromBigInt(raw, -scale)
}

// ToUSD multiplies a decimal token amount by its USD price.
func ToUSD(amount, price decimal.Decimal) decimal.Decimal {
	return amount.Mul(price)
}

// RateToPercent converts a RAY-scaled rate into a percentage.
func RateToPercent(raw *big.Int) decimal.Decimal {
	return ToDecimal(raw, constants.RayDecimals).Mul(hundred)
}

// PriceToDecimal converts an oracle price (1e18 scale) into USD.
func PriceToDecimal(raw *big.Int) decimal.Decimal {
	return ToDecimal(raw, constants.WadDecimals)
}

// RayToDecimal converts a RAY-scaled ratio (e.g. the ledger health factor).
func RayToDecimal(raw *big.Int) decimal.Decimal {
	return ToDecimal(raw, constants.RayDecimals)
}

// MustRay parses a RAY-scaled integer literal. It panics on malformed input and
// is only meant for package level constants.
func MustRay(s string) *big.Int {
	v, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("fixedpoint: malformed integer literal " + s)
	}
	return v
}

// ParseUnits parses a user-entered decimal string into the asset's integer
// scale. The result is strictly positive and fits in uint256.
func ParseUnits(amount string, decimals uint8) (*big.Int, error) {
	s := strings.TrimSpace(amount)
	if s == "" {
		return nil, ErrEmptyAmount
	}
	if strings.ContainsAny(s, "eE") {
		return nil, errors.Wrapf(ErrMalformedAmount, "%q", amount)
	}

	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, errors.Wrapf(ErrMalformedAmount, "%q", amount)
	}
	if !d.IsPositive() {
		return nil, ErrNonPositiveAmount
	}

	shifted := d.Shift(int32(decimals))
	if !shifted.Equal(shifted.Truncate(0)) {
		return nil, errors.Wrapf(ErrTooPrecise, "max %d fractional digits", decimals)
	}

	raw := shifted.BigInt()
	if raw.Sign() <= 0 {
		return nil, ErrNonPositiveAmount
	}
	if _, overflow := uint256.FromBig(raw); overflow {
		return nil, ErrAmountOverflow
	}
	return raw, nil
}

// FormatUnits renders raw at full precision, the inverse of ParseUnits.
func FormatUnits(raw *big.Int, decimals uint8) string {
	return ToDecimal(raw, int32(decimals)).String()
}
