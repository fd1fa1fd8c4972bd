package fixedpoint

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var (
	printer     = message.NewPrinter(language.English)
	thousand    = decimal.NewFromInt(1_000)
	million     = decimal.NewFromInt(1_000_000)
	displayDust = decimal.RequireFromString("0.01")
)

// FormatUnitsTrim converts a token balance to a human string:
// - divides by 10^decimals
// - trims to maxFrac decimal places
// - removes trailing zeros
//
// Examples:
//
//	balance=1234500000000000000, decimals=18 -> "1.2345"
//	balance=1000000000000000000, decimals=18 -> "1"
//	balance=1, decimals=18 -> "0.000000000000000001"
func FormatUnitsTrim(amount *big.Int, decimals uint8, maxFrac int) string {
	if amount == nil || amount.Sign() == 0 {
		return "0"
	}

	ten := big.NewInt(10)
	base := new(big.Int).Exp(ten, big.NewInt(int64(decimals)), nil)

	intPart := new(big.Int).Div(amount, base)
	fracPart := new(big.Int).Mod(amount, base)

	if fracPart.Sign() == 0 || maxFrac <= 0 {
		return intPart.String()
	}

	fracStr := fracPart.String()
	if len(fracStr) < int(decimals) {
		fracStr = strings.Repeat("0", int(decimals)-len(fracStr)) + fracStr
	}
	if len(fracStr) > maxFrac {
		fracStr = fracStr[:maxFrac]
	}

	fracStr = strings.TrimRight(fracStr, "0")
	if fracStr == "" {
		return intPart.String()
	}
	return intPart.String() + "." + fracStr
}

// FormatGrouped renders v with thousands separators and between minFrac and
// maxFrac fractional digits.
func FormatGrouped(v decimal.Decimal, minFrac, maxFrac int) string {
	if maxFrac < minFrac {
		maxFrac = minFrac
	}
	s := printer.Sprintf(fmt.Sprintf("%%.%df", maxFrac), v.Round(int32(maxFrac)).InexactFloat64())
	dot := strings.LastIndexByte(s, '.')
	if dot < 0 {
		return s
	}
	keep := dot + 1 + minFrac
	end := len(s)
	for end > keep && s[end-1] == '0' {
		end--
	}
	if end == dot+1 {
		end = dot
	}
	return s[:end]
}

// FormatBalance renders a raw token balance with 2 to 4 fractional digits.
func FormatBalance(raw *big.Int, decimals uint8) string {
	if raw == nil || raw.Sign() == 0 {
		return "0.00"
	}
	return FormatGrouped(ToDecimal(raw, int32(decimals)), 2, 4)
}

// FormatUSD renders "$1,234.56".
func FormatUSD(v decimal.Decimal) string {
	if v.IsNegative() {
		return "-$" + FormatGrouped(v.Neg(), 2, 2)
	}
	return "$" + FormatGrouped(v, 2, 2)
}

// FormatCompactUSD renders "$1.23M", "$4.5K" or "$12.34".
func FormatCompactUSD(v decimal.Decimal) string {
	switch {
	case v.GreaterThanOrEqual(million):
		return "$" + v.Div(million).StringFixed(2) + "M"
	case v.GreaterThanOrEqual(thousand):
		return "$" + v.Div(thousand).StringFixed(1) + "K"
	default:
		return "$" + v.StringFixed(2)
	}
}

// FormatPrice renders an oracle price, grouping large values.
func FormatPrice(v decimal.Decimal) string {
	if v.GreaterThanOrEqual(thousand) {
		return "$" + FormatGrouped(v, 0, 3)
	}
	return "$" + v.StringFixed(2)
}

// FormatNumber renders v with up to maxFrac digits, "<0.01" for dust.
func FormatNumber(v decimal.Decimal, maxFrac int) string {
	if v.IsZero() {
		return "0"
	}
	if v.LessThan(displayDust) {
		return "<0.01"
	}
	return FormatGrouped(v, 0, maxFrac)
}

// FormatPercent renders a percentage with two fractional digits.
func FormatPercent(v decimal.Decimal) string {
	return v.StringFixed(2) + "%"
}
