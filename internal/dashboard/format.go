package dashboard

import (
	"math"

	"github.com/guregu/null/v5"
	"github.com/shopspring/decimal"
)

// NotAvailable replaces values that are absent or not finite.
const NotAvailable = "N/A"

// FormatFixed renders v with two decimals, rounding half away from zero, or
// NotAvailable when v is absent or not finite.
func FormatFixed(v null.Float) string {
	if !Finite(v) {
		return NotAvailable
	}
	return decimal.NewFromFloat(v.Float64).StringFixed(2)
}

// Finite reports whether v holds a finite number.
func Finite(v null.Float) bool {
	return v.Valid && !math.IsNaN(v.Float64) && !math.IsInf(v.Float64, 0)
}

// PriceTooltip is the tooltip line for a stock_1 value.
func PriceTooltip(v null.Float) string {
	return "Stock 1: $" + FormatFixed(v)
}

// ChangeTooltip is the tooltip line for a stock_3 day-on-day value.
func ChangeTooltip(v null.Float) string {
	return "Stock 3 DoD: " + FormatFixed(v) + " %"
}

// Values flattens v into a float series, using NaN for gaps.
func Values(v []null.Float) []float64 {
	out := make([]float64, len(v))
	for i, f := range v {
		if Finite(f) {
			out[i] = f.Float64
		} else {
			out[i] = math.NaN()
		}
	}
	return out
}
