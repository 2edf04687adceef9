package dashboard

import (
	"html/template"
	"strings"

	"github.com/guregu/null/v5"

	"github.com/stockpulse/stockpulse/internal/dashboard/svg"
	"github.com/stockpulse/stockpulse/internal/stocks"
)

// Series labels shared by the SVG chart, the PNG snapshot and the CSV export.
const (
	PriceSeriesLabel  = "Stock 1 Price"
	ChangeSeriesLabel = "Stock 3 DoD Change"
	ChangeAxisLabel   = "Stock 3 DoD Change (%)"
)

// Tooltip is the hover text for one category.
func Tooltip(r stocks.ProcessedRecord) string {
	return strings.Join([]string{r.FormattedDate, PriceTooltip(r.Stock1), ChangeTooltip(r.Stock3DoD)}, "\n")
}

// RenderChart draws the dual-axis SVG chart for records.
func RenderChart(records []stocks.ProcessedRecord) (template.HTML, error) {
	labels := make([]string, len(records))
	prices := make([]null.Float, len(records))
	changes := make([]null.Float, len(records))
	tooltips := make([]string, len(records))
	for i, r := range records {
		labels[i] = r.FormattedDate
		prices[i] = r.Stock1
		changes[i] = r.Stock3DoD
		tooltips[i] = Tooltip(r)
	}
	return svg.Composed(svg.DefaultWidth, svg.DefaultHeight, labels, Values(prices), Values(changes), tooltips, svg.ComposedOpts{
		Title:          "Stock Performance Analysis",
		Description:    "Stock 1 price against the day-on-day change of Stock 3",
		LineLabel:      PriceSeriesLabel,
		BarLabel:       ChangeSeriesLabel,
		LeftAxisLabel:  PriceSeriesLabel,
		RightAxisLabel: ChangeAxisLabel,
		EmptyText:      "No data for the selected range",
	})
}
