package dataprocessing

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "clamser/internal/errors"
	"clamser/pkg/contracts/domain"
)

func mk(subject string, ts time.Time, channel domain.Channel, value float64, source string) domain.Measurement {
	return domain.Measurement{
		SubjectID: subject,
		Timestamp: ts,
		Channel:   channel,
		Value:     domain.Float64Ptr(value),
		Source:    source,
	}
}

func mkMissing(subject string, ts time.Time, channel domain.Channel, source string) domain.Measurement {
	return domain.Measurement{SubjectID: subject, Timestamp: ts, Channel: channel, Source: source}
}

var t0 = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestBuildTable_MergesAcrossFiles(t *testing.T) {
	day1 := []domain.Measurement{
		mk("S1", t0, domain.ChannelVO2, 10, "day1.csv"),
		mk("S1", t0.Add(time.Hour), domain.ChannelVO2, 11, "day1.csv"),
	}
	day2 := []domain.Measurement{
		mk("S1", t0.Add(24*time.Hour), domain.ChannelVO2, 12, "day2.csv"),
		mk("S2", t0.Add(24*time.Hour), domain.ChannelVO2, 20, "day2.csv"),
	}

	table, err := BuildTable(day1, day2)
	require.NoError(t, err)

	assert.Equal(t, 4, table.Len())
	assert.Equal(t, []string{"S1", "S2"}, table.Subjects())

	// Chronological per subject regardless of file boundaries.
	records := table.Records()
	assert.Equal(t, 10.0, *records[0].Value)
	assert.Equal(t, 11.0, *records[1].Value)
	assert.Equal(t, 12.0, *records[2].Value)
}

func TestBuildTable_OrderIndependent(t *testing.T) {
	a := []domain.Measurement{
		mk("S2", t0.Add(time.Hour), domain.ChannelRER, 0.9, "a.csv"),
		mk("S1", t0, domain.ChannelVO2, 10, "a.csv"),
	}
	b := []domain.Measurement{
		mk("S1", t0.Add(time.Hour), domain.ChannelVO2, 11, "b.csv"),
	}

	t1, err := BuildTable(a, b)
	require.NoError(t, err)
	t2, err := BuildTable(b, a)
	require.NoError(t, err)

	assert.Equal(t, t1.Records(), t2.Records())
}

func TestBuildTable_DuplicateAcrossFiles(t *testing.T) {
	// Scenario: two files both claim (S1, 2024-01-01T00:00, VO2) with
	// different values; the pipeline must refuse to pick one.
	fileA := []domain.Measurement{mk("S1", t0, domain.ChannelVO2, 10.0, "a.csv")}
	fileB := []domain.Measurement{mk("S1", t0, domain.ChannelVO2, 12.0, "b.csv")}

	_, err := BuildTable(fileA, fileB)
	var dup *apperrors.DuplicateMeasurementError
	require.ErrorAs(t, err, &dup)
	assert.Equal(t, "S1", dup.Key.SubjectID)
	assert.Equal(t, domain.ChannelVO2, dup.Key.Channel)
	assert.Equal(t, "a.csv", dup.SourceA)
	assert.Equal(t, "b.csv", dup.SourceB)
}

func TestBuildTable_EqualValuesStillConflict(t *testing.T) {
	fileA := []domain.Measurement{mk("S1", t0, domain.ChannelVO2, 10.0, "a.csv")}
	fileB := []domain.Measurement{mk("S1", t0, domain.ChannelVO2, 10.0, "b.csv")}

	_, err := BuildTable(fileA, fileB)
	var dup *apperrors.DuplicateMeasurementError
	require.ErrorAs(t, err, &dup)
}

func TestBuildTable_AbsentCombinationsStayAbsent(t *testing.T) {
	// S2 has no VO2 data; the merged table must not zero-fill it.
	table, err := BuildTable(
		[]domain.Measurement{mk("S1", t0, domain.ChannelVO2, 10, "a.csv")},
		[]domain.Measurement{mk("S2", t0, domain.ChannelRER, 0.8, "b.csv")},
	)
	require.NoError(t, err)
	assert.Equal(t, 2, table.Len())
}

func TestBuildTable_Empty(t *testing.T) {
	table, err := BuildTable()
	require.NoError(t, err)
	assert.True(t, table.IsEmpty())
}
