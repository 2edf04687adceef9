package svg

import (
	"fmt"
	"html/template"
	"math"
	"strings"

	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

var tickPrinter = message.NewPrinter(language.English)

// Composed renders a line series against the left axis and a bar series
// against the right axis over shared categories. NaN and infinite values
// leave a gap. tooltips, when given, hold one hover text per category.
// An empty category list renders an empty chart with opts.EmptyText.
func Composed(width, height int, labels []string, line, bars []float64, tooltips []string, opts ComposedOpts) (template.HTML, error) {
	if len(line) != len(labels) {
		return "", fmt.Errorf("svg: line length must match labels")
	}
	if len(bars) != len(labels) {
		return "", fmt.Errorf("svg: bars length must match labels")
	}
	if len(tooltips) > 0 && len(tooltips) != len(labels) {
		return "", fmt.Errorf("svg: tooltips length must match labels")
	}
	if width <= 0 {
		width = DefaultWidth
	}
	if height <= 0 {
		height = DefaultHeight
	}
	padding := opts.Padding
	if padding <= 0 {
		padding = DefaultPadding
	}
	tickCount := opts.TickCount
	if tickCount <= 0 {
		tickCount = DefaultTicks
	}

	lineColor := fallback(opts.LineColor, "#2563eb")
	barColor := fallback(opts.BarColor, "#22c55e")
	axisColor := fallback(opts.AxisColor, "#475569")
	gridColor := fallback(opts.GridColor, "#cbd5f5")
	lineLabel := fallback(opts.LineLabel, "Series A")
	barLabel := fallback(opts.BarLabel, "Series B")

	left := padding + axisGutter
	right := float64(width) - padding - axisGutter
	top := padding + 16
	bottom := float64(height) - padding - 20
	chartWidth := right - left
	chartHeight := bottom - top
	if chartWidth <= 0 || chartHeight <= 0 {
		return "", fmt.Errorf("svg: viewport too small")
	}

	leftAxis := newAxis(line, top, chartHeight)
	rightAxis := newAxis(bars, top, chartHeight)

	titleID := makeID(opts.Title, "composed-title")
	descID := makeID(opts.Title, "composed-desc")

	var b strings.Builder
	b.WriteString(fmt.Sprintf("<svg xmlns=\"http://www.w3.org/2000/svg\" viewBox=\"0 0 %d %d\" role=\"img\" aria-labelledby=\"%s %s\">", width, height, titleID, descID))
	b.WriteString(fmt.Sprintf("<title id=\"%s\">%s</title>", titleID, template.HTMLEscapeString(fallback(opts.Title, "Composed chart"))))
	b.WriteString(fmt.Sprintf("<desc id=\"%s\">%s</desc>", descID, template.HTMLEscapeString(fallback(opts.Description, "Line and bar comparison"))))

	// Grid lines and ticks for both value axes
	for i := 0; i <= tickCount; i++ {
		ratio := float64(i) / float64(tickCount)
		y := bottom - ratio*chartHeight
		b.WriteString(fmt.Sprintf("<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke=\"%s\" stroke-width=\"0.5\" stroke-dasharray=\"3,3\" aria-hidden=\"true\"></line>", left, y, right, y, gridColor))
		b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"end\">%s</text>", left-6, y+4, axisColor, template.HTMLEscapeString(formatTick(leftAxis.valueAt(ratio)))))
		b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"start\">%s</text>", right+6, y+4, axisColor, template.HTMLEscapeString(formatTick(rightAxis.valueAt(ratio)))))
	}

	// Axes
	b.WriteString(fmt.Sprintf("<g stroke=\"%s\" aria-label=\"Axes\">", axisColor))
	b.WriteString(fmt.Sprintf("<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke-width=\"1\"></line>", left, top, left, bottom))
	b.WriteString(fmt.Sprintf("<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke-width=\"1\"></line>", right, top, right, bottom))
	b.WriteString(fmt.Sprintf("<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke-width=\"1\"></line>", left, bottom, right, bottom))
	b.WriteString("</g>")

	if opts.LeftAxisLabel != "" {
		x, y := padding, top+chartHeight/2
		b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"11\" text-anchor=\"middle\" transform=\"rotate(-90 %.2f %.2f)\">%s</text>", x, y, axisColor, x, y, template.HTMLEscapeString(opts.LeftAxisLabel)))
	}
	if opts.RightAxisLabel != "" {
		x, y := float64(width)-padding, top+chartHeight/2
		b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"11\" text-anchor=\"middle\" transform=\"rotate(90 %.2f %.2f)\">%s</text>", x, y, axisColor, x, y, template.HTMLEscapeString(opts.RightAxisLabel)))
	}

	if len(labels) == 0 {
		b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"14\" text-anchor=\"middle\">%s</text>", left+chartWidth/2, top+chartHeight/2, axisColor, template.HTMLEscapeString(fallback(opts.EmptyText, "No data"))))
	}

	groupWidth := 0.0
	if len(labels) > 0 {
		groupWidth = chartWidth / float64(len(labels))
	}
	center := func(i int) float64 { return left + (float64(i)+0.5)*groupWidth }

	// Bars hang from the zero line of the right axis
	zeroY := rightAxis.y(0)
	barWidth := groupWidth * 0.6
	for i, value := range bars {
		if !finite(value) {
			continue
		}
		y, h := barPosition(rightAxis.y(value), zeroY)
		b.WriteString(fmt.Sprintf("<rect x=\"%.2f\" y=\"%.2f\" width=\"%.2f\" height=\"%.2f\" fill=\"%s\" fill-opacity=\"0.8\" aria-label=\"%s %s\"></rect>", center(i)-barWidth/2, y, barWidth, h, barColor, template.HTMLEscapeString(barLabel), template.HTMLEscapeString(labels[i])))
	}

	// Line segments break at gaps; isolated points get a dot
	var path strings.Builder
	segment := 0
	for i, value := range line {
		if !finite(value) {
			if segment == 1 {
				writeDot(&b, center(i-1), leftAxis.y(line[i-1]), lineColor)
			}
			segment = 0
			continue
		}
		x, y := center(i), leftAxis.y(value)
		if segment == 0 {
			path.WriteString(fmt.Sprintf("M%.2f %.2f ", x, y))
		} else {
			path.WriteString(fmt.Sprintf("L%.2f %.2f ", x, y))
		}
		segment++
	}
	if segment == 1 {
		last := len(line) - 1
		writeDot(&b, center(last), leftAxis.y(line[last]), lineColor)
	}
	if path.Len() > 0 {
		b.WriteString(fmt.Sprintf("<path d=\"%s\" fill=\"none\" stroke=\"%s\" stroke-width=\"2\" stroke-linejoin=\"round\" stroke-linecap=\"round\"></path>", strings.TrimSpace(path.String()), lineColor))
	}

	// Category labels, thinned when they would overlap
	every := 1
	if groupWidth > 0 && groupWidth < minLabelSpacing {
		every = int(math.Ceil(minLabelSpacing / groupWidth))
	}
	for i, label := range labels {
		if i%every != 0 {
			continue
		}
		b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"middle\">%s</text>", center(i), bottom+14, axisColor, template.HTMLEscapeString(label)))
	}

	// Hover targets carrying the tooltips
	for i, tip := range tooltips {
		b.WriteString(fmt.Sprintf("<rect class=\"hover-target\" x=\"%.2f\" y=\"%.2f\" width=\"%.2f\" height=\"%.2f\" fill=\"transparent\"><title>%s</title></rect>", left+float64(i)*groupWidth, top, groupWidth, chartHeight, template.HTMLEscapeString(tip)))
	}

	// Legend
	legendY := top - 8
	legendX := left
	b.WriteString(fmt.Sprintf("<line x1=\"%.2f\" y1=\"%.2f\" x2=\"%.2f\" y2=\"%.2f\" stroke=\"%s\" stroke-width=\"2\"></line>", legendX, legendY-4, legendX+12, legendY-4, lineColor))
	b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"start\">%s</text>", legendX+16, legendY, axisColor, template.HTMLEscapeString(lineLabel)))
	legendX += 130
	b.WriteString(fmt.Sprintf("<rect x=\"%.2f\" y=\"%.2f\" width=\"10\" height=\"10\" fill=\"%s\"></rect>", legendX, legendY-9, barColor))
	b.WriteString(fmt.Sprintf("<text x=\"%.2f\" y=\"%.2f\" fill=\"%s\" font-size=\"10\" text-anchor=\"start\">%s</text>", legendX+14, legendY, axisColor, template.HTMLEscapeString(barLabel)))

	b.WriteString("</svg>")
	return template.HTML(b.String()), nil
}

// axis maps values of one series onto the shared vertical extent.
type axis struct {
	min, max float64
	top      float64
	height   float64
}

func newAxis(series []float64, top, height float64) axis {
	minVal, maxVal, ok := bounds(series)
	if !ok {
		minVal, maxVal = 0, 1
	}
	if minVal > 0 {
		minVal = 0
	}
	if maxVal < 0 {
		maxVal = 0
	}
	if almostEqual(maxVal, minVal) {
		maxVal = minVal + 1
	}
	return axis{min: minVal, max: maxVal, top: top, height: height}
}

func (a axis) y(value float64) float64 {
	return a.top + a.height - (value-a.min)/(a.max-a.min)*a.height
}

func (a axis) valueAt(ratio float64) float64 {
	return a.min + (a.max-a.min)*ratio
}

func writeDot(b *strings.Builder, x, y float64, color string) {
	b.WriteString(fmt.Sprintf("<circle cx=\"%.2f\" cy=\"%.2f\" r=\"3\" fill=\"%s\"></circle>", x, y, color))
}

func barPosition(valueY, zeroY float64) (float64, float64) {
	if valueY <= zeroY {
		return valueY, zeroY - valueY
	}
	return zeroY, valueY - zeroY
}

func fallback(value, defaultValue string) string {
	if strings.TrimSpace(value) == "" {
		return defaultValue
	}
	return value
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// bounds returns the extent of the finite values in series.
func bounds(series []float64) (float64, float64, bool) {
	minVal, maxVal := math.Inf(1), math.Inf(-1)
	for _, v := range series {
		if !finite(v) {
			continue
		}
		minVal = math.Min(minVal, v)
		maxVal = math.Max(maxVal, v)
	}
	return minVal, maxVal, !math.IsInf(minVal, 1)
}

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func makeID(base, suffix string) string {
	cleaned := strings.Map(func(r rune) rune {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			return r
		}
		if r == '-' || r == '_' {
			return r
		}
		return '-'
	}, strings.ToLower(strings.TrimSpace(base)))
	cleaned = strings.Trim(cleaned, "-")
	if cleaned == "" {
		cleaned = "chart"
	}
	return fmt.Sprintf("%s-%s", cleaned, suffix)
}

func formatTick(v float64) string {
	abs := math.Abs(v)
	switch {
	case abs >= 1_000_000_000:
		return tickPrinter.Sprintf("%.1fB", v/1_000_000_000)
	case abs >= 1_000_000:
		return tickPrinter.Sprintf("%.1fM", v/1_000_000)
	case abs >= 10_000:
		return tickPrinter.Sprintf("%.1fk", v/1_000)
	default:
		if almostEqual(v, math.Round(v)) {
			return tickPrinter.Sprintf("%.0f", v)
		}
		return tickPrinter.Sprintf("%.2f", v)
	}
}
