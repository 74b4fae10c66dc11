package domain

import "time"

// SummaryRow is the pipeline's terminal artifact: one aggregated row per
// (group, channel, time bucket), plus one overall row per (group,
// channel) covering the entire window. Rows exist only for keys with at
// least one contributing non-missing value; absence means "no data",
// which callers must keep distinct from an explicit zero.
type SummaryRow struct {
	Group   string    `json:"group"`
	Channel Channel   `json:"channel"`
	Bucket  time.Time `json:"bucket,omitempty"` // zero for the overall row
	Overall bool      `json:"overall"`          // true for the whole-window row
	Mean    float64   `json:"mean"`
	N       int       `json:"n"`
	// StdDev is the sample standard deviation (n-1 denominator),
	// populated on overall rows when N > 1; nil otherwise. Never zero
	// as a stand-in for "undefined".
	StdDev *float64 `json:"stddev,omitempty"`
	// SEM is the standard error of the mean, populated alongside StdDev.
	SEM *float64 `json:"sem,omitempty"`
}

// AnimalSummary aggregates one subject's windowed data: light-phase,
// dark-phase and total means plus the number of records flagged by the
// outlier screen. Phase means are nil when the subject contributed no
// non-missing values in that phase.
type AnimalSummary struct {
	SubjectID    string   `json:"subject_id"`
	Group        string   `json:"group"`
	Channel      Channel  `json:"channel"`
	LightMean    *float64 `json:"light_mean,omitempty"`
	DarkMean     *float64 `json:"dark_mean,omitempty"`
	TotalMean    *float64 `json:"total_mean,omitempty"`
	OutlierCount int      `json:"outlier_count"`
}

// GroupPeriodSummary aggregates one experimental group within one light
// cycle phase: mean, standard error of the mean and sample count.
type GroupPeriodSummary struct {
	Group   string     `json:"group"`
	Channel Channel    `json:"channel"`
	Period  PeriodKind `json:"period"`
	Mean    float64    `json:"mean"`
	SEM     *float64   `json:"sem,omitempty"` // nil when N < 2
	N       int        `json:"n"`
}
