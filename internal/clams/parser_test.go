package clams

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "clamser/internal/errors"
	"clamser/pkg/contracts/domain"
)

const sampleExport = `PARAMTER,VO2 (ml/kg/hr)
CSV FILE CREATION,01/16/2024 08:15:02 AM
EXPERIMENT START,01/15/2024 10:00:00 AM
GROUP/CAGE,0001
SUBJECT ID,M101
SUBJECT BODY MASS,27.4
GROUP/CAGE,0002
SUBJECT ID,M102
SUBJECT BODY MASS,24.9
:DATA
========================
INTERVAL,TIME,CAGE 0001,TIME,CAGE 0002
1,01/15/2024 10:00:00 AM,3012.5,01/15/2024 10:00:12 AM,2899.1
2,01/15/2024 11:00:00 AM,2988.0,01/15/2024 11:00:12 AM,2903.6
3,01/15/2024 12:00:00 PM,.,01/15/2024 12:00:12 PM,2910.2
:EVENTS
`

func TestParser_Parse(t *testing.T) {
	p := NewParser(nil, Limits{})

	pf, err := p.Parse(strings.NewReader(sampleExport), "vo2.csv")
	require.NoError(t, err)

	assert.Equal(t, domain.Channel("VO2"), pf.Channel)
	assert.Equal(t, map[string]string{"CAGE 0001": "M101", "CAGE 0002": "M102"}, pf.SubjectByCage)
	require.Len(t, pf.Measurements, 6)

	first := pf.Measurements[0]
	assert.Equal(t, "M101", first.SubjectID)
	assert.Equal(t, time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC), first.Timestamp)
	require.NotNil(t, first.Value)
	assert.Equal(t, 3012.5, *first.Value)
	assert.Equal(t, "vo2.csv", first.Source)

	// The "." sentinel at interval 3 for cage 1 must become a missing
	// value, not zero and not a dropped row.
	var m101Third *domain.Measurement
	for i := range pf.Measurements {
		m := &pf.Measurements[i]
		if m.SubjectID == "M101" && m.Timestamp.Hour() == 12 {
			m101Third = m
		}
	}
	require.NotNil(t, m101Third)
	assert.Nil(t, m101Third.Value)
}

func TestParser_ParseTabDelimited24h(t *testing.T) {
	export := strings.Join([]string{
		"PARAMETER\tRER",
		"GROUP/CAGE\t0003",
		"SUBJECT ID\tF7",
		":DATA",
		"INTERVAL\tTIME\tCAGE 0003",
		"1\t01/15/2024 22:00:00\t0.87",
		"2\t01/15/2024 23:00:00\t0.91",
	}, "\n")

	p := NewParser(nil, Limits{})
	pf, err := p.Parse(strings.NewReader(export), "rer.txt")
	require.NoError(t, err)

	assert.Equal(t, domain.Channel("RER"), pf.Channel)
	require.Len(t, pf.Measurements, 2)
	assert.Equal(t, "F7", pf.Measurements[0].SubjectID)
	assert.Equal(t, 22, pf.Measurements[0].Timestamp.Hour())
}

func TestParser_ParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		source   string
		limits   Limits
		errCheck func(t *testing.T, err error)
	}{
		{
			name:   "missing :DATA marker",
			input:  "PARAMTER,VO2\nGROUP/CAGE,0001\nSUBJECT ID,M1\n",
			source: "nodata.csv",
			errCheck: func(t *testing.T, err error) {
				var target *apperrors.MalformedInputError
				require.ErrorAs(t, err, &target)
				assert.Equal(t, "nodata.csv", target.File)
				assert.Contains(t, target.Reason, ":DATA")
			},
		},
		{
			name:   "missing PARAMTER line",
			input:  "GROUP/CAGE,0001\nSUBJECT ID,M1\n:DATA\nINTERVAL,TIME,CAGE 0001\n",
			source: "noparam.csv",
			errCheck: func(t *testing.T, err error) {
				var target *apperrors.MalformedInputError
				require.ErrorAs(t, err, &target)
				assert.Contains(t, target.Reason, "PARAMTER")
			},
		},
		{
			name:   "missing INTERVAL anchor",
			input:  "PARAMTER,VO2\n:DATA\nSOMETHING,TIME,CAGE 0001\n",
			source: "noanchor.csv",
			errCheck: func(t *testing.T, err error) {
				var target *apperrors.MalformedInputError
				require.ErrorAs(t, err, &target)
				assert.Equal(t, "INTERVAL", target.Column)
				assert.Equal(t, 3, target.Line)
			},
		},
		{
			name: "unparseable timestamp",
			input: "PARAMTER,VO2\n:DATA\nINTERVAL,TIME,CAGE 0001\n" +
				"1,not-a-time,3000.1\n",
			source: "badtime.csv",
			errCheck: func(t *testing.T, err error) {
				var target *apperrors.TimestampParseError
				require.ErrorAs(t, err, &target)
				assert.Equal(t, "not-a-time", target.Raw)
				assert.Equal(t, 4, target.Line)
				assert.Equal(t, "badtime.csv", target.File)
			},
		},
		{
			name: "duplicate row within one file",
			input: "PARAMTER,VO2\n:DATA\nINTERVAL,TIME,CAGE 0001\n" +
				"1,01/15/2024 10:00:00 AM,3000.1\n" +
				"1,01/15/2024 10:00:00 AM,3000.1\n",
			source: "dup.csv",
			errCheck: func(t *testing.T, err error) {
				var target *apperrors.DuplicateMeasurementError
				require.ErrorAs(t, err, &target)
				assert.Equal(t, "dup.csv", target.SourceA)
				assert.Equal(t, "dup.csv", target.SourceB)
			},
		},
		{
			name: "row limit exceeded",
			input: "PARAMTER,VO2\n:DATA\nINTERVAL,TIME,CAGE 0001\n" +
				"1,01/15/2024 10:00:00 AM,3000.1\n" +
				"2,01/15/2024 11:00:00 AM,3001.0\n",
			source: "big.csv",
			limits: Limits{MaxRows: 1},
			errCheck: func(t *testing.T, err error) {
				var target *apperrors.MalformedInputError
				require.ErrorAs(t, err, &target)
				assert.Contains(t, target.Reason, "row limit")
			},
		},
		{
			name:   "file size limit exceeded",
			input:  sampleExport,
			source: "huge.csv",
			limits: Limits{MaxBytes: 16},
			errCheck: func(t *testing.T, err error) {
				var target *apperrors.MalformedInputError
				require.ErrorAs(t, err, &target)
				assert.Contains(t, target.Reason, "size limit")
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := NewParser(nil, tt.limits)
			_, err := p.Parse(strings.NewReader(tt.input), tt.source)
			require.Error(t, err)
			tt.errCheck(t, err)
		})
	}
}

func TestParser_UnpairedCageFallsBackToCageName(t *testing.T) {
	export := "PARAMTER,HEAT\n:DATA\nINTERVAL,TIME,CAGE 0009\n" +
		"1,01/15/2024 10:00:00 AM,0.41\n"

	p := NewParser(nil, Limits{})
	pf, err := p.Parse(strings.NewReader(export), "heat.csv")
	require.NoError(t, err)
	require.Len(t, pf.Measurements, 1)
	assert.Equal(t, "CAGE 0009", pf.Measurements[0].SubjectID)
}

func TestParser_SkipsTrailerAndBlankCells(t *testing.T) {
	export := "PARAMTER,XTOT\n:DATA\nINTERVAL,TIME,CAGE 0001,TIME,CAGE 0002\n" +
		"1,01/15/2024 10:00:00 AM,120,01/15/2024 10:00:10 AM,88\n" +
		"2,01/15/2024 11:00:00 AM,131,,\n" +
		"SUMMARY,,,\n"

	p := NewParser(nil, Limits{})
	pf, err := p.Parse(strings.NewReader(export), "xtot.csv")
	require.NoError(t, err)

	// Cage 2 stopped recording at interval 2: fewer rows, not an error.
	assert.Len(t, pf.Measurements, 3)
}

func TestParser_KeepsExplicitZeroValues(t *testing.T) {
	export := "PARAMTER,XAMB\n:DATA\nINTERVAL,TIME,CAGE 0001\n" +
		"1,01/15/2024 10:00:00 AM,0\n"

	p := NewParser(nil, Limits{})
	pf, err := p.Parse(strings.NewReader(export), "xamb.csv")
	require.NoError(t, err)
	require.Len(t, pf.Measurements, 1)
	require.NotNil(t, pf.Measurements[0].Value)
	assert.Equal(t, 0.0, *pf.Measurements[0].Value)
}
