package stocks

import (
	"fmt"
	"strings"

	"github.com/guregu/null/v5"
)

// ZeroBasePolicy decides the day-on-day value when the previous price is 0.
type ZeroBasePolicy string

const (
	// PropagateNonFinite keeps the IEEE result of dividing by zero
	// (+Inf, -Inf or NaN).
	PropagateNonFinite ZeroBasePolicy = "propagate"
	// ClampZero reports 0 instead of a non-finite change.
	ClampZero ZeroBasePolicy = "zero"
)

// ParseZeroBasePolicy maps a configuration value to a policy.
func ParseZeroBasePolicy(value string) (ZeroBasePolicy, error) {
	switch ZeroBasePolicy(strings.ToLower(strings.TrimSpace(value))) {
	case "", PropagateNonFinite:
		return PropagateNonFinite, nil
	case ClampZero:
		return ClampZero, nil
	default:
		return "", fmt.Errorf("stocks: unknown zero base policy %q", value)
	}
}

// DayOnDay derives the formatted date and the stock_3 day-on-day change for
// every record. The first record always carries a change of 0.
func DayOnDay(records []StockRecord, policy ZeroBasePolicy) ([]ProcessedRecord, error) {
	out := make([]ProcessedRecord, len(records))
	for i, rec := range records {
		day, err := ParseDate(rec.Date)
		if err != nil {
			return nil, fmt.Errorf("stocks: record %d: %w", i, err)
		}
		out[i] = ProcessedRecord{
			StockRecord:   rec,
			Day:           day,
			FormattedDate: day.Format(DisplayLayout),
		}
		if i == 0 {
			out[i].Stock3DoD = null.FloatFrom(0)
			continue
		}
		out[i].Stock3DoD = percentChange(records[i-1].Stock3, rec.Stock3, policy)
	}
	return out, nil
}

func percentChange(prev, cur null.Float, policy ZeroBasePolicy) null.Float {
	if !prev.Valid || !cur.Valid {
		return null.Float{}
	}
	if prev.Float64 == 0 && policy == ClampZero {
		return null.FloatFrom(0)
	}
	return null.FloatFrom((cur.Float64 - prev.Float64) / prev.Float64 * 100)
}
