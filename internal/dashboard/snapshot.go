package dashboard

import (
	"errors"
	"io"
	"math"
	"time"

	"github.com/wcharczuk/go-chart/v2"
	"github.com/wcharczuk/go-chart/v2/drawing"

	"github.com/stockpulse/stockpulse/internal/stocks"
)

// ErrInsufficientData is returned when a snapshot has fewer than two finite
// prices on distinct days.
var ErrInsufficientData = errors.New("dashboard: at least two priced days are required for a snapshot")

// Snapshot dimensions in pixels.
const (
	SnapshotWidth  = 1024
	SnapshotHeight = 480
)

var (
	priceColor  = drawing.ColorFromHex("2563eb")
	changeColor = drawing.ColorFromHex("22c55e")
)

// RenderSnapshot draws records as a PNG with the stock_1 price on the
// primary axis and the stock_3 day-on-day change as points on the secondary
// axis.
func RenderSnapshot(w io.Writer, records []stocks.ProcessedRecord) error {
	priceX, priceY := finitePoints(records, func(r stocks.ProcessedRecord) float64 { return r.Stock1.Float64 }, func(r stocks.ProcessedRecord) bool { return Finite(r.Stock1) })
	if !spansDays(priceX) {
		return ErrInsufficientData
	}
	changeX, changeY := finitePoints(records, func(r stocks.ProcessedRecord) float64 { return r.Stock3DoD.Float64 }, func(r stocks.ProcessedRecord) bool { return Finite(r.Stock3DoD) })

	graph := chart.Chart{
		Title:      "Stock Performance Analysis",
		Width:      SnapshotWidth,
		Height:     SnapshotHeight,
		Background: chart.Style{Padding: chart.Box{Top: 40, Left: 20, Right: 20, Bottom: 20}},
		XAxis: chart.XAxis{
			ValueFormatter: chart.TimeValueFormatterWithFormat(stocks.DisplayLayout),
		},
		YAxis: chart.YAxis{
			Name:  PriceSeriesLabel,
			Range: paddedRange(priceY),
		},
		Series: []chart.Series{
			chart.TimeSeries{
				Name:    PriceSeriesLabel,
				XValues: priceX,
				YValues: priceY,
				Style:   chart.Style{StrokeColor: priceColor, StrokeWidth: 2},
			},
		},
	}
	if len(changeX) > 0 {
		graph.YAxisSecondary = chart.YAxis{
			Name:  ChangeAxisLabel,
			Range: paddedRange(changeY),
		}
		graph.Series = append(graph.Series, chart.TimeSeries{
			Name:    ChangeSeriesLabel,
			YAxis:   chart.YAxisSecondary,
			XValues: changeX,
			YValues: changeY,
			Style: chart.Style{
				StrokeWidth: chart.Disabled,
				DotWidth:    4,
				DotColor:    changeColor,
			},
		})
	}
	graph.Elements = []chart.Renderable{chart.Legend(&graph)}

	return graph.Render(chart.PNG, w)
}

func finitePoints(records []stocks.ProcessedRecord, value func(stocks.ProcessedRecord) float64, ok func(stocks.ProcessedRecord) bool) ([]time.Time, []float64) {
	xs := make([]time.Time, 0, len(records))
	ys := make([]float64, 0, len(records))
	for _, r := range records {
		if !ok(r) {
			continue
		}
		xs = append(xs, r.Day)
		ys = append(ys, value(r))
	}
	return xs, ys
}

func spansDays(days []time.Time) bool {
	for _, d := range days[min(1, len(days)):] {
		if !d.Equal(days[0]) {
			return true
		}
	}
	return false
}

// paddedRange widens the value span by 5% so flat series still get a
// non-empty axis.
func paddedRange(values []float64) *chart.ContinuousRange {
	lo, hi := math.Inf(1), math.Inf(-1)
	for _, v := range values {
		lo = math.Min(lo, v)
		hi = math.Max(hi, v)
	}
	pad := (hi - lo) * 0.05
	if pad == 0 {
		pad = math.Max(math.Abs(hi)*0.05, 1)
	}
	return &chart.ContinuousRange{Min: lo - pad, Max: hi + pad}
}
