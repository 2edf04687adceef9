package export

import (
	"encoding/csv"
	"io"

	"github.com/stockpulse/stockpulse/internal/dashboard"
	"github.com/stockpulse/stockpulse/internal/stocks"
)

// WriteSeriesCSV emits the processed series as CSV, one row per record.
func WriteSeriesCSV(w io.Writer, records []stocks.ProcessedRecord) error {
	writer := csv.NewWriter(w)
	defer writer.Flush()
	if err := writer.Write([]string{"Date", "Stock 1", "Stock 3", "Stock 3 DoD (%)"}); err != nil {
		return err
	}
	for _, r := range records {
		if err := writer.Write([]string{
			r.Day.Format(stocks.DateLayout),
			dashboard.FormatFixed(r.Stock1),
			dashboard.FormatFixed(r.Stock3),
			dashboard.FormatFixed(r.Stock3DoD),
		}); err != nil {
			return err
		}
	}
	writer.Flush()
	return writer.Error()
}
