package fixedpoint

import (
	"math/big"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestFormatUnitsTrim(t *testing.T) {
	assert.Equal(t, "1.2345", FormatUnitsTrim(MustRay("1234500000000000000"), 18, 6))
	assert.Equal(t, "1", FormatUnitsTrim(MustRay("1000000000000000000"), 18, 6))
	assert.Equal(t, "0.000000000000000001", FormatUnitsTrim(big.NewInt(1), 18, 18))
	assert.Equal(t, "0", FormatUnitsTrim(nil, 18, 4))
}

func TestFormatBalance(t *testing.T) {
	assert.Equal(t, "0.00", FormatBalance(nil, 6))
	assert.Equal(t, "1,234.50", FormatBalance(big.NewInt(1_234_500_000), 6))
	assert.Equal(t, "0.1235", FormatBalance(big.NewInt(123_456), 6))
}

func TestFormatUSD(t *testing.T) {
	assert.Equal(t, "$0.00", FormatUSD(decimal.Zero))
	assert.Equal(t, "$1,234.50", FormatUSD(decimal.RequireFromString("1234.5")))
}

func TestFormatCompactUSD(t *testing.T) {
	assert.Equal(t, "$1.23M", FormatCompactUSD(decimal.NewFromInt(1_234_567)))
	assert.Equal(t, "$1.5K", FormatCompactUSD(decimal.NewFromInt(1_500)))
	assert.Equal(t, "$12.34", FormatCompactUSD(decimal.RequireFromString("12.34")))
}

func TestFormatNumber(t *testing.T) {
	assert.Equal(t, "0", FormatNumber(decimal.Zero, 2))
	assert.Equal(t, "<0.01", FormatNumber(decimal.RequireFromString("0.005"), 2))
	assert.Equal(t, "12.5", FormatNumber(decimal.RequireFromString("12.5"), 2))
}
