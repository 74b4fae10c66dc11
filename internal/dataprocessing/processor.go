package dataprocessing

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/stat"

	"clamser/pkg/contracts/domain"
)

// AnnotateLightCycle marks every record as belonging to the light or
// dark phase of the housing cycle. A record is Light when
// lightStart <= hour < lightEnd on the instrument clock; a wrapping
// cycle (lightStart > lightEnd, lights on across midnight) is
// supported. Hours are 0-23.
func AnnotateLightCycle(table domain.MeasurementTable, lightStart, lightEnd int) (domain.MeasurementTable, error) {
	if lightStart < 0 || lightStart > 23 || lightEnd < 0 || lightEnd > 23 {
		return domain.MeasurementTable{}, fmt.Errorf("light cycle hours must be 0-23, got start=%d end=%d", lightStart, lightEnd)
	}
	if lightStart == lightEnd {
		return domain.MeasurementTable{}, fmt.Errorf("light cycle start and end are both %d; cycle is ambiguous", lightStart)
	}

	records := table.Records()
	for i := range records {
		h := records[i].Timestamp.Hour()
		if lightStart < lightEnd {
			if lightStart <= h && h < lightEnd {
				records[i].Period = domain.PeriodLight
			} else {
				records[i].Period = domain.PeriodDark
			}
		} else {
			if lightEnd <= h && h < lightStart {
				records[i].Period = domain.PeriodDark
			} else {
				records[i].Period = domain.PeriodLight
			}
		}
	}
	return domain.NewMeasurementTable(records), nil
}

// ToIntervalValues converts accumulative channels (cumulative food and
// water totals) to per-interval deltas by differencing consecutive
// readings per subject. The first reading of each series is dropped
// because it has no predecessor; negative deltas are clamped to zero
// (hopper refills reset the counter). A delta involving a missing
// reading is itself missing. Non-accumulative channels pass through
// unchanged.
func ToIntervalValues(table domain.MeasurementTable) domain.MeasurementTable {
	records := table.Records()
	out := make([]domain.Measurement, 0, len(records))

	type seriesKey struct {
		subject string
		channel domain.Channel
	}
	prev := make(map[seriesKey]*float64)
	started := make(map[seriesKey]bool)

	// Records() is ordered by (subject, channel, timestamp), so each
	// series arrives contiguously and chronologically.
	for _, m := range records {
		if !m.Channel.Accumulative() {
			out = append(out, m)
			continue
		}
		key := seriesKey{m.SubjectID, m.Channel}
		if !started[key] {
			started[key] = true
			prev[key] = m.Value
			continue
		}
		p := prev[key]
		prev[key] = m.Value
		if p == nil || m.Value == nil {
			m.Value = nil
		} else {
			delta := *m.Value - *p
			if delta < 0 {
				delta = 0
			}
			m.Value = &delta
		}
		out = append(out, m)
	}
	return domain.NewMeasurementTable(out)
}

// FlagOutliers marks records whose value deviates from the owning
// subject's own mean by more than sdThreshold standard deviations,
// computed per (subject, channel) over non-missing values. Flagged
// records are reported downstream, never removed: exclusion is a
// scientific decision left to the caller. A threshold <= 0 disables
// flagging; series with fewer than two values or zero variance are
// never flagged.
func FlagOutliers(table domain.MeasurementTable, sdThreshold float64) domain.MeasurementTable {
	records := table.Records()
	if sdThreshold <= 0 {
		for i := range records {
			records[i].Outlier = false
		}
		return domain.NewMeasurementTable(records)
	}

	type seriesKey struct {
		subject string
		channel domain.Channel
	}
	values := make(map[seriesKey][]float64)
	for _, m := range records {
		if m.Value != nil {
			key := seriesKey{m.SubjectID, m.Channel}
			values[key] = append(values[key], *m.Value)
		}
	}

	type seriesStats struct {
		mean, std float64
	}
	stats := make(map[seriesKey]seriesStats, len(values))
	for key, vs := range values {
		if len(vs) < 2 {
			continue
		}
		std := stat.StdDev(vs, nil)
		if std == 0 || math.IsNaN(std) {
			continue
		}
		stats[key] = seriesStats{mean: stat.Mean(vs, nil), std: std}
	}

	for i := range records {
		m := &records[i]
		m.Outlier = false
		if m.Value == nil {
			continue
		}
		if st, ok := stats[seriesKey{m.SubjectID, m.Channel}]; ok {
			z := (*m.Value - st.mean) / st.std
			m.Outlier = math.Abs(z) > sdThreshold
		}
	}
	return domain.NewMeasurementTable(records)
}
