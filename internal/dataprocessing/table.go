package dataprocessing

import (
	apperrors "clamser/internal/errors"
	"clamser/pkg/contracts/domain"
)

// BuildTable merges measurement sequences from multiple parsed files
// into one canonical table. Files may cover different subjects,
// different days or different channels; absent (subject, channel)
// combinations stay absent rather than being zero-filled.
//
// The merged (subject, timestamp, channel) key must be unique. Any
// collision, equal values included, is a DuplicateMeasurementError
// naming the key and both source files: the pipeline never silently
// picks one of two claims about the same reading.
//
// The result is sorted by (subject, channel, timestamp), so the merge
// is order-independent: permuting the input sequences yields an
// identical table.
func BuildTable(sequences ...[]domain.Measurement) (domain.MeasurementTable, error) {
	total := 0
	for _, seq := range sequences {
		total += len(seq)
	}

	seen := make(map[domain.Key]string, total)
	merged := make([]domain.Measurement, 0, total)
	for _, seq := range sequences {
		for _, m := range seq {
			key := m.Key()
			if prev, dup := seen[key]; dup {
				return domain.MeasurementTable{}, &apperrors.DuplicateMeasurementError{
					Key:     key,
					SourceA: prev,
					SourceB: m.Source,
				}
			}
			seen[key] = m.Source
			merged = append(merged, m)
		}
	}
	return domain.NewMeasurementTable(merged), nil
}
