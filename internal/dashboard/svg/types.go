package svg

// ComposedOpts customises the dual-axis chart renderer.
type ComposedOpts struct {
	Title          string
	Description    string
	LineLabel      string
	BarLabel       string
	LeftAxisLabel  string
	RightAxisLabel string
	LineColor      string
	BarColor       string
	AxisColor      string
	GridColor      string
	EmptyText      string
	Padding        float64
	TickCount      int
}

// Defaults for the stock chart.
const (
	DefaultWidth   = 960
	DefaultHeight  = 420
	DefaultPadding = 24.0
	DefaultTicks   = 6
)

// axisGutter is the extra room reserved beside each value axis for tick
// labels and the rotated axis title.
const axisGutter = 44.0

// minLabelSpacing is the narrowest horizontal distance between two category
// labels before labels are thinned out.
const minLabelSpacing = 48.0
