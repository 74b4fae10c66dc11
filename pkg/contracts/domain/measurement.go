package domain

import (
	"sort"
	"time"
)

// Channel identifies one measured physiological quantity from the
// instrument export. The set is open: each CLAMS file declares its own
// parameter name, so unknown channels are carried through unchanged.
type Channel string

const (
	ChannelVO2      Channel = "VO2"      // Oxygen consumption
	ChannelVCO2     Channel = "VCO2"     // Carbon dioxide production
	ChannelRER      Channel = "RER"      // Respiratory exchange ratio
	ChannelHeat     Channel = "HEAT"     // Heat production
	ChannelXTot     Channel = "XTOT"     // Total activity counts
	ChannelXAmb     Channel = "XAMB"     // Ambulatory activity counts
	ChannelFeed     Channel = "FEED"     // Cumulative food intake
	ChannelDrink    Channel = "DRINK"    // Cumulative water intake
	ChannelBodyMass Channel = "BODYMASS" // In-cage body mass reading
)

// KnownChannels lists the channels the CLAMS instrument commonly exports.
var KnownChannels = []Channel{
	ChannelVO2, ChannelVCO2, ChannelRER, ChannelHeat,
	ChannelXTot, ChannelXAmb, ChannelFeed, ChannelDrink, ChannelBodyMass,
}

// Accumulative reports whether the channel records a running total that
// must be differenced to obtain per-interval values.
func (c Channel) Accumulative() bool {
	return c == ChannelFeed || c == ChannelDrink
}

// PeriodKind marks a record as belonging to the light or dark phase of
// the housing light cycle. PeriodUnset means no annotation was applied.
type PeriodKind string

const (
	PeriodUnset PeriodKind = ""
	PeriodLight PeriodKind = "LIGHT"
	PeriodDark  PeriodKind = "DARK"
)

// Measurement is one row of the canonical long-form table: a single
// channel reading for a single animal at a single instrument timestamp.
type Measurement struct {
	SubjectID string     `json:"subject_id"`         // Instrument-assigned animal/cage code
	Timestamp time.Time  `json:"timestamp"`          // Instrument local clock
	Channel   Channel    `json:"channel"`            // Measured quantity
	Value     *float64   `json:"value,omitempty"`    // nil if the instrument reported no usable value
	Source    string     `json:"source,omitempty"`   // Identifier of the originating file
	Group     string     `json:"group,omitempty"`    // Experimental group label, set by the assigner
	Period    PeriodKind `json:"period,omitempty"`   // Light/dark annotation, optional
	Outlier   bool       `json:"outlier,omitempty"`  // Flagged by the outlier screen, never auto-removed
}

// Key identifies a measurement within a merged table. The triple must be
// unique across all files of one session.
type Key struct {
	SubjectID string    `json:"subject_id"`
	Timestamp time.Time `json:"timestamp"`
	Channel   Channel   `json:"channel"`
}

// Key returns the identity triple of the measurement.
func (m Measurement) Key() Key {
	return Key{SubjectID: m.SubjectID, Timestamp: m.Timestamp, Channel: m.Channel}
}

// MeasurementTable is the single source of truth for a processing
// session: an immutable, deterministically ordered collection of
// measurements merged across all uploaded files. Every downstream stage
// (windowing, normalization, grouping, aggregation) derives a new table
// and leaves its input untouched.
type MeasurementTable struct {
	records []Measurement
}

// NewMeasurementTable builds a table from the given records. The input
// slice is copied and sorted by (subject, channel, timestamp) so that
// downstream stages are deterministic regardless of input order.
func NewMeasurementTable(records []Measurement) MeasurementTable {
	rs := make([]Measurement, len(records))
	copy(rs, records)
	sort.SliceStable(rs, func(i, j int) bool {
		if rs[i].SubjectID != rs[j].SubjectID {
			return rs[i].SubjectID < rs[j].SubjectID
		}
		if rs[i].Channel != rs[j].Channel {
			return rs[i].Channel < rs[j].Channel
		}
		return rs[i].Timestamp.Before(rs[j].Timestamp)
	})
	return MeasurementTable{records: rs}
}

// Records returns a copy of the table rows in canonical order.
func (t MeasurementTable) Records() []Measurement {
	rs := make([]Measurement, len(t.records))
	copy(rs, t.records)
	return rs
}

// Len returns the number of rows in the table.
func (t MeasurementTable) Len() int { return len(t.records) }

// IsEmpty reports whether the table holds no rows. An empty table is a
// valid terminal state, not an error.
func (t MeasurementTable) IsEmpty() bool { return len(t.records) == 0 }

// Subjects returns the distinct subject identifiers, sorted.
func (t MeasurementTable) Subjects() []string {
	seen := make(map[string]struct{})
	var out []string
	for _, m := range t.records {
		if _, ok := seen[m.SubjectID]; !ok {
			seen[m.SubjectID] = struct{}{}
			out = append(out, m.SubjectID)
		}
	}
	sort.Strings(out)
	return out
}

// Channels returns the distinct channels present in the table, sorted.
func (t MeasurementTable) Channels() []Channel {
	seen := make(map[Channel]struct{})
	var out []Channel
	for _, m := range t.records {
		if _, ok := seen[m.Channel]; !ok {
			seen[m.Channel] = struct{}{}
			out = append(out, m.Channel)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// MaxTimestamp returns the latest timestamp across the whole table.
// The second return is false for an empty table.
func (t MeasurementTable) MaxTimestamp() (time.Time, bool) {
	if len(t.records) == 0 {
		return time.Time{}, false
	}
	max := t.records[0].Timestamp
	for _, m := range t.records[1:] {
		if m.Timestamp.After(max) {
			max = m.Timestamp
		}
	}
	return max, true
}

// MinTimestamp returns the earliest timestamp across the whole table.
// The second return is false for an empty table.
func (t MeasurementTable) MinTimestamp() (time.Time, bool) {
	if len(t.records) == 0 {
		return time.Time{}, false
	}
	min := t.records[0].Timestamp
	for _, m := range t.records[1:] {
		if m.Timestamp.Before(min) {
			min = m.Timestamp
		}
	}
	return min, true
}

// Float64Ptr returns a pointer to v. Convenience for building
// measurement values and fixtures.
func Float64Ptr(v float64) *float64 { return &v }
