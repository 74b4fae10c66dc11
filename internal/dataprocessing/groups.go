package dataprocessing

import (
	apperrors "clamser/internal/errors"
	"clamser/pkg/contracts/domain"
)

// AssignOptions configures group assignment behavior.
type AssignOptions struct {
	// AllowUnassigned buckets subjects without a mapping into the
	// explicit domain.UnassignedGroup instead of rejecting the run.
	AllowUnassigned bool
}

// AssignGroups attaches an experimental group label to every record.
//
// By default every distinct subject in the table must resolve through
// the mapping; all unmapped subjects are collected and reported in a
// single UnassignedSubjectError so the caller can fix the mapping in
// one pass. With AllowUnassigned they are kept under the explicit
// "Unassigned" label instead — never silently.
//
// One-group-per-subject is enforced when the GroupMap is built, so no
// membership conflict can surface here.
func AssignGroups(table domain.MeasurementTable, groups *domain.GroupMap, opts AssignOptions) (domain.MeasurementTable, error) {
	var unmapped []string
	for _, subject := range table.Subjects() {
		if _, ok := groups.Lookup(subject); !ok {
			unmapped = append(unmapped, subject)
		}
	}
	if len(unmapped) > 0 && !opts.AllowUnassigned {
		return domain.MeasurementTable{}, apperrors.NewUnassignedSubjectError(unmapped)
	}

	records := table.Records()
	for i := range records {
		if g, ok := groups.Lookup(records[i].SubjectID); ok {
			records[i].Group = g
		} else {
			records[i].Group = domain.UnassignedGroup
		}
	}
	return domain.NewMeasurementTable(records), nil
}
