package domain

import (
	"fmt"
	"time"
)

// WindowKind distinguishes the two ways a time window can be specified.
type WindowKind string

const (
	WindowPreset WindowKind = "preset" // trailing N hours relative to the table's latest timestamp
	WindowCustom WindowKind = "custom" // explicit inclusive start/end on the instrument clock
)

// PresetHours lists the trailing-window presets the instrument UI offers.
var PresetHours = []int{24, 48, 72}

// TimeWindow restricts analysis to a time range: either a trailing
// preset ("last N hours", resolved against the latest timestamp of the
// whole table, not per subject) or an explicit inclusive start/end pair
// on the instrument clock.
type TimeWindow struct {
	Kind  WindowKind `json:"kind"`
	Hours int        `json:"hours,omitempty"` // preset only
	Start time.Time  `json:"start,omitempty"` // custom only
	End   time.Time  `json:"end,omitempty"`   // custom only
}

// LastHours builds a preset trailing window.
func LastHours(hours int) TimeWindow {
	return TimeWindow{Kind: WindowPreset, Hours: hours}
}

// Between builds a custom window. Both bounds are inclusive.
func Between(start, end time.Time) TimeWindow {
	return TimeWindow{Kind: WindowCustom, Start: start, End: end}
}

// Validate checks the window invariants: preset hours must be one of
// the supported presets, and a custom window must satisfy start <= end.
func (w TimeWindow) Validate() error {
	switch w.Kind {
	case WindowPreset:
		for _, h := range PresetHours {
			if w.Hours == h {
				return nil
			}
		}
		return fmt.Errorf("unsupported preset window %dh (want one of %v)", w.Hours, PresetHours)
	case WindowCustom:
		if w.End.Before(w.Start) {
			return fmt.Errorf("custom window start %s is after end %s", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
		}
		return nil
	default:
		return fmt.Errorf("unknown window kind %q", w.Kind)
	}
}

// Resolve turns the window into concrete inclusive bounds. For presets,
// end is the latest timestamp over the whole table and start trails it
// by the preset duration, so "last 24h" is comparable across subjects
// sharing one experiment clock.
func (w TimeWindow) Resolve(maxTimestamp time.Time) (start, end time.Time) {
	if w.Kind == WindowPreset {
		end = maxTimestamp
		start = end.Add(-time.Duration(w.Hours) * time.Hour)
		return start, end
	}
	return w.Start, w.End
}

// Contains reports whether ts falls inside the resolved bounds. Both
// the lower and upper bound are inclusive.
func (w TimeWindow) Contains(ts, start, end time.Time) bool {
	return !ts.Before(start) && !ts.After(end)
}

// String renders the window for logs.
func (w TimeWindow) String() string {
	if w.Kind == WindowPreset {
		return fmt.Sprintf("last %dh", w.Hours)
	}
	return fmt.Sprintf("%s..%s", w.Start.Format(time.RFC3339), w.End.Format(time.RFC3339))
}

// BucketGranularity is the fixed bucket width used to align timestamps
// for summary aggregation. BucketNative keeps the table's own sampling
// instants; any other value truncates timestamps to that duration.
type BucketGranularity time.Duration

const (
	BucketNative BucketGranularity = 0
	BucketHourly BucketGranularity = BucketGranularity(time.Hour)
)

// ParseBucket maps a configuration string ("native", "hourly" or a
// Go duration such as "30m") to a BucketGranularity.
func ParseBucket(s string) (BucketGranularity, error) {
	switch s {
	case "", "native":
		return BucketNative, nil
	case "hourly":
		return BucketHourly, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid bucket granularity %q: %w", s, err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("bucket granularity must be positive, got %s", d)
	}
	return BucketGranularity(d), nil
}

// Truncate aligns ts to the bucket boundary. Native granularity returns
// ts unchanged.
func (b BucketGranularity) Truncate(ts time.Time) time.Time {
	if b == BucketNative {
		return ts
	}
	return ts.Truncate(time.Duration(b))
}

// String renders the granularity for logs and exports.
func (b BucketGranularity) String() string {
	switch b {
	case BucketNative:
		return "native"
	case BucketHourly:
		return "hourly"
	default:
		return time.Duration(b).String()
	}
}
