// Package dataprocessing implements the normalization and aggregation
// pipeline between the raw CLAMS parser and the export layer.
//
// # Architecture
//
// The pipeline is a chain of side-effect-free transformations over an
// immutable measurement table:
//
//	Parsed files → BuildTable → ApplyWindow → Normalize → AssignGroups
//	             → (AnnotateLightCycle, ToIntervalValues, FlagOutliers)
//	             → Summarizer → SummaryRows
//
// Every stage derives a new table and leaves its input untouched, so
// the whole chain is safe to run concurrently across independent
// sessions with no shared state.
//
// # Missing values
//
// A measurement whose instrument cell was blank or a non-numeric
// sentinel carries a nil value. Such records flow through every stage
// unchanged and are excluded from means and counts during aggregation;
// they are never treated as zero.
//
// # Error handling
//
// Structural problems (duplicate measurement keys, missing or invalid
// covariates, unmapped subjects) abort the run with typed errors from
// internal/errors that name the offending key, file or subject. An
// empty table is a valid state at every stage and produces empty
// summaries, not an error.
package dataprocessing
