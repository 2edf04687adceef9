package dashboard

import (
	"math"
	"strings"
	"testing"

	"github.com/guregu/null/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockpulse/stockpulse/internal/stocks"
)

func TestTooltipSubstitutesNA(t *testing.T) {
	r := processed(2, null.Float{}, null.FloatFrom(math.NaN()))
	assert.Equal(t, "Jan 02\nStock 1: $N/A\nStock 3 DoD: N/A %", Tooltip(r))

	r = processed(3, null.FloatFrom(101.456), null.FloatFrom(-3.333))
	assert.Equal(t, "Jan 03\nStock 1: $101.46\nStock 3 DoD: -3.33 %", Tooltip(r))
}

func TestRenderChart(t *testing.T) {
	html, err := RenderChart([]stocks.ProcessedRecord{
		processed(1, null.FloatFrom(100), null.FloatFrom(0)),
		processed(2, null.FloatFrom(110), null.FloatFrom(5)),
	})
	require.NoError(t, err)
	out := string(html)
	assert.True(t, strings.HasPrefix(out, "<svg"))
	assert.Contains(t, out, "Stock 3 DoD Change (%)")
	assert.Contains(t, out, "Stock 1: $110.00")

	html, err = RenderChart(nil)
	require.NoError(t, err)
	assert.Contains(t, string(html), "No data for the selected range")
}
