// Package dashboard fetches the stock series once per process and derives
// everything the chart page needs from it.
package dashboard

import "github.com/stockpulse/stockpulse/internal/stocks"

// State is the renderer's view of the single data fetch. The only
// implementations are Loading, Failed and Loaded.
type State interface {
	isState()
}

// Loading means the fetch is still outstanding.
type Loading struct{}

// Failed carries the message of a fetch or transform failure.
type Failed struct {
	Message string
}

// Loaded carries the processed series.
type Loaded struct {
	Records []stocks.ProcessedRecord
}

func (Loading) isState() {}
func (Failed) isState()  {}
func (Loaded) isState()  {}
