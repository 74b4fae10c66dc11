package dataprocessing

import (
	"clamser/pkg/contracts/domain"
)

// ApplyWindow restricts the table to the records whose timestamp falls
// inside the window, both bounds inclusive. A preset window resolves
// its end against the latest timestamp of the whole table, not per
// subject, so "last 24h" covers the same wall-clock range for every
// animal; a subject whose recording ended earlier simply contributes
// fewer or zero rows.
//
// An empty result is a valid terminal state: downstream aggregation
// yields empty summaries, never an error. Applying the same window
// twice yields the same table as applying it once.
func ApplyWindow(table domain.MeasurementTable, window domain.TimeWindow) (domain.MeasurementTable, error) {
	if err := window.Validate(); err != nil {
		return domain.MeasurementTable{}, err
	}
	if table.IsEmpty() {
		return table, nil
	}

	maxTS, _ := table.MaxTimestamp()
	start, end := window.Resolve(maxTS)

	records := table.Records()
	kept := records[:0]
	for _, m := range records {
		if window.Contains(m.Timestamp, start, end) {
			kept = append(kept, m)
		}
	}
	return domain.NewMeasurementTable(kept), nil
}
