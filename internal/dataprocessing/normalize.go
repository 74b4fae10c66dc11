package dataprocessing

import (
	apperrors "clamser/internal/errors"
	"clamser/pkg/contracts/domain"
)

// Normalize produces the requested view of the table. ViewAbsolute is
// the identity transform and needs no covariates. ViewBodyWeight and
// ViewLeanMass divide every non-missing value by the subject's
// covariate scalar; missing values stay missing.
//
// Normalization is channel-agnostic: every channel is divided by the
// same per-subject scalar. Callers are responsible for requesting it
// only on channels where that is physiologically meaningful.
//
// Every subject present in the table must carry a positive covariate
// for the selected view: an absent covariate is a
// MissingCovariateError, a zero or negative one an
// InvalidCovariateError. Subjects are checked in sorted order so the
// reported subject is deterministic.
func Normalize(table domain.MeasurementTable, view domain.NormalizationView, covariates domain.Covariates) (domain.MeasurementTable, error) {
	if !view.RequiresCovariate() {
		return table, nil
	}

	scalars := make(map[string]float64)
	for _, subject := range table.Subjects() {
		c, ok := covariates.For(view, subject)
		if !ok {
			return domain.MeasurementTable{}, &apperrors.MissingCovariateError{SubjectID: subject, View: view}
		}
		if c <= 0 {
			return domain.MeasurementTable{}, &apperrors.InvalidCovariateError{SubjectID: subject, View: view, Value: c}
		}
		scalars[subject] = c
	}

	records := table.Records()
	for i := range records {
		if records[i].Value == nil {
			continue
		}
		v := *records[i].Value / scalars[records[i].SubjectID]
		records[i].Value = &v
	}
	return domain.NewMeasurementTable(records), nil
}
