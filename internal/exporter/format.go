package exporter

import (
	"strconv"
	"time"

	"clamser/pkg/contracts/domain"
)

// OverallBucket is the bucket column value marking the whole-window
// summary row.
const OverallBucket = "OVERALL"

// timestampLayout is the export spelling for timestamps and buckets.
const timestampLayout = "2006-01-02 15:04:05"

// formatFloat renders a float with full precision; statistics tools do
// their own rounding.
func formatFloat(f float64) string {
	return strconv.FormatFloat(f, 'g', -1, 64)
}

// formatOptFloat renders a nullable float; absence stays an empty
// cell, never a zero.
func formatOptFloat(f *float64) string {
	if f == nil {
		return ""
	}
	return formatFloat(*f)
}

func formatTimestamp(ts time.Time) string {
	return ts.Format(timestampLayout)
}

// SummaryHeaders is the column layout of the summary export.
var SummaryHeaders = []string{"group", "channel", "bucket", "mean", "n", "stddev", "sem"}

// FormatSummaryRows renders summary rows in their canonical order:
// group and channel as leading sort keys, time buckets ascending, the
// overall row marked OVERALL last.
func FormatSummaryRows(rows []domain.SummaryRow) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		bucket := OverallBucket
		if !r.Overall {
			bucket = formatTimestamp(r.Bucket)
		}
		out = append(out, []string{
			r.Group,
			string(r.Channel),
			bucket,
			formatFloat(r.Mean),
			strconv.Itoa(r.N),
			formatOptFloat(r.StdDev),
			formatOptFloat(r.SEM),
		})
	}
	return out
}

// AnimalSummaryHeaders is the column layout of the per-animal export.
var AnimalSummaryHeaders = []string{"subject_id", "group", "channel", "light_mean", "dark_mean", "total_mean", "outlier_count"}

// FormatAnimalSummaries renders per-animal summary rows.
func FormatAnimalSummaries(rows []domain.AnimalSummary) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.SubjectID,
			r.Group,
			string(r.Channel),
			formatOptFloat(r.LightMean),
			formatOptFloat(r.DarkMean),
			formatOptFloat(r.TotalMean),
			strconv.Itoa(r.OutlierCount),
		})
	}
	return out
}

// GroupPeriodHeaders is the column layout of the group/period export.
var GroupPeriodHeaders = []string{"group", "channel", "period", "mean", "sem", "n"}

// FormatGroupPeriodSummaries renders group/light-cycle-period rows.
func FormatGroupPeriodSummaries(rows []domain.GroupPeriodSummary) [][]string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{
			r.Group,
			string(r.Channel),
			string(r.Period),
			formatFloat(r.Mean),
			formatOptFloat(r.SEM),
			strconv.Itoa(r.N),
		})
	}
	return out
}

// MeasurementHeaders is the column layout of the long-form table
// export consumed by charting and manual validation in external tools.
var MeasurementHeaders = []string{"subject_id", "group", "channel", "timestamp", "period", "value", "outlier"}

// FormatMeasurements renders the measurement table in long form.
// Missing values export as empty cells.
func FormatMeasurements(table domain.MeasurementTable) [][]string {
	records := table.Records()
	out := make([][]string, 0, len(records))
	for _, m := range records {
		out = append(out, []string{
			m.SubjectID,
			m.Group,
			string(m.Channel),
			formatTimestamp(m.Timestamp),
			string(m.Period),
			formatOptFloat(m.Value),
			strconv.FormatBool(m.Outlier),
		})
	}
	return out
}
