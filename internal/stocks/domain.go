package stocks

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/guregu/null/v5"
)

// Column names the stock table must expose.
const (
	ColumnDate   = "date"
	ColumnStock1 = "stock_1"
	ColumnStock3 = "stock_3"
)

// DateLayout is the wire format of StockRecord.Date.
const DateLayout = "2006-01-02"

// DisplayLayout renders the abbreviated month and zero-padded day.
const DisplayLayout = "Jan 02"

var (
	// ErrQueryFailed wraps every failure of the fixed stock query.
	ErrQueryFailed = errors.New("stocks: query failed")
	// ErrMalformedTable indicates the result set lacks a required column.
	ErrMalformedTable = errors.New("stocks: malformed table")
	// ErrInvalidDate is returned when a record date cannot be parsed.
	ErrInvalidDate = errors.New("stocks: invalid date")
)

// Column is an additional table column carried through untouched.
type Column struct {
	Name  string
	Value any
}

// StockRecord is one row of the stock table.
type StockRecord struct {
	Date   string     `json:"date"`
	Stock1 null.Float `json:"stock_1"`
	Stock3 null.Float `json:"stock_3"`
	Extra  []Column   `json:"-"`
}

// MarshalJSON writes the known fields first followed by extra columns in
// table order.
func (r StockRecord) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if err := writeField(&buf, ColumnDate, r.Date, true); err != nil {
		return nil, err
	}
	if err := writeField(&buf, ColumnStock1, r.Stock1, false); err != nil {
		return nil, err
	}
	if err := writeField(&buf, ColumnStock3, r.Stock3, false); err != nil {
		return nil, err
	}
	for _, col := range r.Extra {
		if err := writeField(&buf, col.Name, col.Value, false); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func writeField(buf *bytes.Buffer, name string, value any, first bool) error {
	if !first {
		buf.WriteByte(',')
	}
	key, err := json.Marshal(name)
	if err != nil {
		return err
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("stocks: encode %s: %w", name, err)
	}
	buf.Write(key)
	buf.WriteByte(':')
	buf.Write(raw)
	return nil
}

// ProcessedRecord is a StockRecord enriched for charting.
type ProcessedRecord struct {
	StockRecord
	Day           time.Time
	FormattedDate string
	Stock3DoD     null.Float
}

// DateRange bounds a filter on calendar dates, both ends inclusive.
type DateRange struct {
	Start time.Time
	End   time.Time
}

// NewDateRange truncates both bounds to their calendar date.
func NewDateRange(start, end time.Time) DateRange {
	return DateRange{Start: CalendarDate(start), End: CalendarDate(end)}
}

// Contains reports whether day falls within the range.
func (r DateRange) Contains(day time.Time) bool {
	d := CalendarDate(day)
	return !d.Before(r.Start) && !d.After(r.End)
}

// CalendarDate returns t's calendar date at UTC midnight, keeping t's own
// year, month and day.
func CalendarDate(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a record date. Plain calendar dates are preferred;
// RFC 3339 timestamps reduce to the date written in the string.
func ParseDate(value string) (time.Time, error) {
	value = strings.TrimSpace(value)
	if t, err := time.Parse(DateLayout, value); err == nil {
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339Nano, value); err == nil {
		return CalendarDate(t), nil
	}
	return time.Time{}, fmt.Errorf("%w: %q", ErrInvalidDate, value)
}
