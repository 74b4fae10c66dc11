package dataprocessing

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"gonum.org/v1/gonum/stat"

	"clamser/pkg/contracts/domain"
)

// Summarizer computes the pipeline's terminal summary tables from a
// windowed, normalized, grouped measurement table.
type Summarizer struct {
	logger      *slog.Logger
	granularity domain.BucketGranularity
}

// SummarizerConfig holds configuration options for the Summarizer.
type SummarizerConfig struct {
	// Granularity is the bucket width for the time-bucketed summary.
	// BucketNative keeps the table's own sampling instants.
	Granularity domain.BucketGranularity
}

// DefaultSummarizerConfig returns the configuration used when the
// caller requests no coarser bucketing.
func DefaultSummarizerConfig() SummarizerConfig {
	return SummarizerConfig{Granularity: domain.BucketNative}
}

// NewSummarizer creates a summarizer. A nil logger falls back to
// slog.Default.
func NewSummarizer(logger *slog.Logger, config SummarizerConfig) *Summarizer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Summarizer{logger: logger, granularity: config.Granularity}
}

// Summarize computes one row per (group, channel, bucket) with mean
// and sample count over all non-missing values from all subjects of
// the group, plus one overall row per (group, channel) covering the
// entire window with mean, n, sample standard deviation (n-1
// denominator, nil when n < 2) and standard error of the mean.
//
// Missing values are excluded from mean and n, never counted as zero.
// Keys with no contributing values produce no row at all: the output
// is sparse, and callers must treat absence as "no data". An empty
// table yields zero rows and no error.
//
// Rows are sorted by group, then channel, then buckets in time order
// with the overall row last, which is also the export layout.
func (s *Summarizer) Summarize(ctx context.Context, table domain.MeasurementTable) ([]domain.SummaryRow, error) {
	type bucketKey struct {
		group   string
		channel domain.Channel
		bucket  time.Time
	}
	type overallKey struct {
		group   string
		channel domain.Channel
	}

	buckets := make(map[bucketKey][]float64)
	overall := make(map[overallKey][]float64)
	for _, m := range table.Records() {
		if m.Value == nil {
			continue
		}
		bk := bucketKey{m.Group, m.Channel, s.granularity.Truncate(m.Timestamp)}
		buckets[bk] = append(buckets[bk], *m.Value)
		ok := overallKey{m.Group, m.Channel}
		overall[ok] = append(overall[ok], *m.Value)
	}

	rows := make([]domain.SummaryRow, 0, len(buckets)+len(overall))
	for bk, vs := range buckets {
		rows = append(rows, domain.SummaryRow{
			Group:   bk.group,
			Channel: bk.channel,
			Bucket:  bk.bucket,
			Mean:    stat.Mean(vs, nil),
			N:       len(vs),
		})
	}
	for ok, vs := range overall {
		row := domain.SummaryRow{
			Group:   ok.group,
			Channel: ok.channel,
			Overall: true,
			Mean:    stat.Mean(vs, nil),
			N:       len(vs),
		}
		if len(vs) > 1 {
			std := stat.StdDev(vs, nil)
			sem := std / math.Sqrt(float64(len(vs)))
			row.StdDev = &std
			row.SEM = &sem
		}
		rows = append(rows, row)
	}

	sort.Slice(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		if a.Channel != b.Channel {
			return a.Channel < b.Channel
		}
		if a.Overall != b.Overall {
			return !a.Overall
		}
		return a.Bucket.Before(b.Bucket)
	})

	s.logger.InfoContext(ctx, "computed group summary",
		slog.String("granularity", s.granularity.String()),
		slog.Int("input_rows", table.Len()),
		slog.Int("summary_rows", len(rows)))

	return rows, nil
}

// SummarizePerAnimal computes one row per (subject, channel) with the
// subject's light-phase, dark-phase and total means plus the number of
// records the outlier screen flagged. Phase means require the table to
// have been annotated with AnnotateLightCycle; without annotation only
// the total mean is populated.
func (s *Summarizer) SummarizePerAnimal(ctx context.Context, table domain.MeasurementTable) ([]domain.AnimalSummary, error) {
	type animalKey struct {
		subject string
		channel domain.Channel
	}
	type animalAgg struct {
		group    string
		light    []float64
		dark     []float64
		total    []float64
		outliers int
	}

	aggs := make(map[animalKey]*animalAgg)
	var order []animalKey
	for _, m := range table.Records() {
		key := animalKey{m.SubjectID, m.Channel}
		agg, ok := aggs[key]
		if !ok {
			agg = &animalAgg{group: m.Group}
			aggs[key] = agg
			order = append(order, key)
		}
		if m.Outlier {
			agg.outliers++
		}
		if m.Value == nil {
			continue
		}
		agg.total = append(agg.total, *m.Value)
		switch m.Period {
		case domain.PeriodLight:
			agg.light = append(agg.light, *m.Value)
		case domain.PeriodDark:
			agg.dark = append(agg.dark, *m.Value)
		}
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].subject != order[j].subject {
			return order[i].subject < order[j].subject
		}
		return order[i].channel < order[j].channel
	})

	out := make([]domain.AnimalSummary, 0, len(order))
	for _, key := range order {
		agg := aggs[key]
		out = append(out, domain.AnimalSummary{
			SubjectID:    key.subject,
			Group:        agg.group,
			Channel:      key.channel,
			LightMean:    meanOrNil(agg.light),
			DarkMean:     meanOrNil(agg.dark),
			TotalMean:    meanOrNil(agg.total),
			OutlierCount: agg.outliers,
		})
	}

	s.logger.InfoContext(ctx, "computed per-animal summary",
		slog.Int("animals", len(out)))

	return out, nil
}

// SummarizePerGroupPeriod computes one row per (group, channel, light
// cycle phase) with mean, standard error of the mean and sample count.
// Records without a phase annotation are skipped, so the table should
// pass through AnnotateLightCycle first.
func (s *Summarizer) SummarizePerGroupPeriod(ctx context.Context, table domain.MeasurementTable) ([]domain.GroupPeriodSummary, error) {
	type periodKey struct {
		group   string
		channel domain.Channel
		period  domain.PeriodKind
	}

	values := make(map[periodKey][]float64)
	for _, m := range table.Records() {
		if m.Value == nil || m.Period == domain.PeriodUnset {
			continue
		}
		key := periodKey{m.Group, m.Channel, m.Period}
		values[key] = append(values[key], *m.Value)
	}

	out := make([]domain.GroupPeriodSummary, 0, len(values))
	for key, vs := range values {
		row := domain.GroupPeriodSummary{
			Group:   key.group,
			Channel: key.channel,
			Period:  key.period,
			Mean:    stat.Mean(vs, nil),
			N:       len(vs),
		}
		if len(vs) > 1 {
			sem := stat.StdDev(vs, nil) / math.Sqrt(float64(len(vs)))
			row.SEM = &sem
		}
		out = append(out, row)
	}

	sort.Slice(out, func(i, j int) bool {
		a, b := out[i], out[j]
		if a.Group != b.Group {
			return a.Group < b.Group
		}
		if a.Channel != b.Channel {
			return a.Channel < b.Channel
		}
		return a.Period < b.Period
	})

	s.logger.InfoContext(ctx, "computed group/period summary",
		slog.Int("rows", len(out)))

	return out, nil
}

func meanOrNil(vs []float64) *float64 {
	if len(vs) == 0 {
		return nil
	}
	m := stat.Mean(vs, nil)
	return &m
}
