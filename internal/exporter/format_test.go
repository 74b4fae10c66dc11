package exporter

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"clamser/pkg/contracts/domain"
)

func TestFormatSummaryRows(t *testing.T) {
	std := 2.5
	sem := 1.25
	rows := []domain.SummaryRow{
		{
			Group:   "Control",
			Channel: domain.ChannelVO2,
			Bucket:  time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
			Mean:    12.5,
			N:       2,
		},
		{
			Group:   "Control",
			Channel: domain.ChannelVO2,
			Overall: true,
			Mean:    13,
			N:       4,
			StdDev:  &std,
			SEM:     &sem,
		},
	}

	records := FormatSummaryRows(rows)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"Control", "VO2", "2024-01-15 10:00:00", "12.5", "2", "", ""}, records[0])
	assert.Equal(t, []string{"Control", "VO2", "OVERALL", "13", "4", "2.5", "1.25"}, records[1])
}

func TestFormatSummaryRows_NilStdDevStaysEmpty(t *testing.T) {
	records := FormatSummaryRows([]domain.SummaryRow{
		{Group: "G", Channel: domain.ChannelRER, Overall: true, Mean: 0.9, N: 1},
	})
	require.Len(t, records, 1)
	// n=1: stddev and sem are empty cells, never "0".
	assert.Equal(t, "", records[0][5])
	assert.Equal(t, "", records[0][6])
}

func TestFormatMeasurements(t *testing.T) {
	table := domain.NewMeasurementTable([]domain.Measurement{
		{
			SubjectID: "M101",
			Timestamp: time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC),
			Channel:   domain.ChannelVO2,
			Value:     domain.Float64Ptr(3012.5),
			Group:     "Control",
			Period:    domain.PeriodLight,
		},
		{
			SubjectID: "M101",
			Timestamp: time.Date(2024, 1, 15, 11, 0, 0, 0, time.UTC),
			Channel:   domain.ChannelVO2,
			Group:     "Control",
			Period:    domain.PeriodLight,
		},
	})

	records := FormatMeasurements(table)
	require.Len(t, records, 2)
	assert.Equal(t, []string{"M101", "Control", "VO2", "2024-01-15 10:00:00", "LIGHT", "3012.5", "false"}, records[0])
	// Missing value exports as an empty cell.
	assert.Equal(t, "", records[1][5])
}

func TestFormatAnimalSummaries(t *testing.T) {
	records := FormatAnimalSummaries([]domain.AnimalSummary{
		{
			SubjectID:    "M101",
			Group:        "Control",
			Channel:      domain.ChannelVO2,
			LightMean:    domain.Float64Ptr(10),
			TotalMean:    domain.Float64Ptr(15),
			OutlierCount: 2,
		},
	})
	require.Len(t, records, 1)
	assert.Equal(t, []string{"M101", "Control", "VO2", "10", "", "15", "2"}, records[0])
}
