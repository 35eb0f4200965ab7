package pricing

import (
	"strings"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// Symbol is the display symbol used in descriptions and emails.
func (c Currency) Symbol() string {
	switch c {
	case CurrencyAOA:
		return "Kz"
	case CurrencyUSD:
		return "$"
	default:
		return string(c)
	}
}

// ProviderCode is the lowercase ISO code payment providers expect.
func (c Currency) ProviderCode() string {
	return strings.ToLower(string(c))
}

// ToMinorUnits converts a major-unit amount to integer minor units
// (centimos, cents), rounding half away from zero.
func ToMinorUnits(amount decimal.Decimal) int64 {
	return amount.Mul(hundred).Round(0).IntPart()
}

// FormatAmount renders "Kz 750.00".
func FormatAmount(c Currency, amount decimal.Decimal) string {
	return c.Symbol() + " " + amount.StringFixed(2)
}
