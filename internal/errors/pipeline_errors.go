package errors

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"clamser/pkg/contracts/domain"
)

// The pipeline surfaces structural input problems as one of the typed
// errors below. Every error carries enough context (file identifier,
// line number, subject id) for the caller to fix the input without
// re-running with extra diagnostics. All of them abort the session run;
// only per-record missing values are recovered locally, by exclusion
// from aggregation.

// MalformedInputError reports a structurally invalid raw export: a
// missing data marker, a missing header anchor, a broken row, or an
// input exceeding the configured size guards.
type MalformedInputError struct {
	File   string // source file identifier
	Line   int    // 1-based line number, 0 when not line-specific
	Column string // offending column name, optional
	Reason string
}

func (e *MalformedInputError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s: malformed input", e.File)
	if e.Line > 0 {
		fmt.Fprintf(&b, " at line %d", e.Line)
	}
	if e.Column != "" {
		fmt.Fprintf(&b, " (column %s)", e.Column)
	}
	fmt.Fprintf(&b, ": %s", e.Reason)
	return b.String()
}

// TimestampParseError reports an unparseable timestamp cell. The row is
// never silently dropped; the raw string and line number are preserved.
type TimestampParseError struct {
	File string
	Line int
	Raw  string
}

func (e *TimestampParseError) Error() string {
	return fmt.Sprintf("%s: cannot parse timestamp %q at line %d", e.File, e.Raw, e.Line)
}

// DuplicateMeasurementError reports two rows claiming the same
// (subject, timestamp, channel) key. The pipeline never silently picks
// one; both source files are named. For a duplicate within a single
// file both sources are that file.
type DuplicateMeasurementError struct {
	Key     domain.Key
	SourceA string
	SourceB string
}

func (e *DuplicateMeasurementError) Error() string {
	return fmt.Sprintf("duplicate measurement (%s, %s, %s) supplied by %s and %s",
		e.Key.SubjectID, e.Key.Timestamp.Format(time.RFC3339), e.Key.Channel, e.SourceA, e.SourceB)
}

// MissingCovariateError reports a subject present in the table without
// the covariate required by the requested normalization view.
type MissingCovariateError struct {
	SubjectID string
	View      domain.NormalizationView
}

func (e *MissingCovariateError) Error() string {
	return fmt.Sprintf("subject %s has no %s covariate required for the %s view",
		e.SubjectID, covariateName(e.View), e.View)
}

// InvalidCovariateError reports a zero or negative covariate; dividing
// by it is meaningless.
type InvalidCovariateError struct {
	SubjectID string
	View      domain.NormalizationView
	Value     float64
}

func (e *InvalidCovariateError) Error() string {
	return fmt.Sprintf("subject %s has invalid %s covariate %g (must be positive)",
		e.SubjectID, covariateName(e.View), e.Value)
}

// UnassignedSubjectError lists every subject in the table that the
// group map does not cover. All missing identifiers are reported at
// once so the caller can fix the mapping in one pass.
type UnassignedSubjectError struct {
	SubjectIDs []string
}

func NewUnassignedSubjectError(subjectIDs []string) *UnassignedSubjectError {
	ids := make([]string, len(subjectIDs))
	copy(ids, subjectIDs)
	sort.Strings(ids)
	return &UnassignedSubjectError{SubjectIDs: ids}
}

func (e *UnassignedSubjectError) Error() string {
	return fmt.Sprintf("subjects without a group assignment: %s", strings.Join(e.SubjectIDs, ", "))
}

func covariateName(view domain.NormalizationView) string {
	switch view {
	case domain.ViewBodyWeight:
		return "body weight"
	case domain.ViewLeanMass:
		return "lean mass"
	default:
		return "normalization"
	}
}
