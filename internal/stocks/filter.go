package stocks

// FilterRange keeps the records whose date lies inside r, preserving order.
// The result is never nil.
func FilterRange(records []ProcessedRecord, r DateRange) []ProcessedRecord {
	out := make([]ProcessedRecord, 0, len(records))
	for _, rec := range records {
		if r.Contains(rec.Day) {
			out = append(out, rec)
		}
	}
	return out
}
