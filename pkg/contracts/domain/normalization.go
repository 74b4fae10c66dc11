package domain

import "fmt"

// NormalizationView selects how raw values are rescaled before
// aggregation. The set is closed: the instrument domain defines exactly
// these three parallel views of one measurement table.
type NormalizationView string

const (
	// ViewAbsolute leaves values unchanged; covariates are not required.
	ViewAbsolute NormalizationView = "absolute"
	// ViewBodyWeight divides every value by the subject's body weight.
	ViewBodyWeight NormalizationView = "bodyweight"
	// ViewLeanMass divides every value by the subject's lean mass.
	ViewLeanMass NormalizationView = "leanmass"
)

// ParseView maps a configuration string to a NormalizationView.
func ParseView(s string) (NormalizationView, error) {
	switch NormalizationView(s) {
	case ViewAbsolute, ViewBodyWeight, ViewLeanMass:
		return NormalizationView(s), nil
	default:
		return "", fmt.Errorf("unknown normalization view %q (want absolute, bodyweight or leanmass)", s)
	}
}

// RequiresCovariate reports whether the view divides by a per-subject
// covariate scalar.
func (v NormalizationView) RequiresCovariate() bool {
	return v == ViewBodyWeight || v == ViewLeanMass
}

// String returns the configuration spelling of the view.
func (v NormalizationView) String() string { return string(v) }

// Covariate holds the externally measured per-subject scalars used for
// normalization. Neither field is derived from the raw channel stream.
// A nil field means the covariate was not supplied for this subject.
type Covariate struct {
	BodyWeight *float64 `json:"body_weight,omitempty"` // grams
	LeanMass   *float64 `json:"lean_mass,omitempty"`   // grams
}

// Covariates maps subject identifiers to their covariate scalars.
type Covariates map[string]Covariate

// For returns the covariate scalar the view divides by, and whether it
// was supplied for the subject. ViewAbsolute always returns (0, false).
func (c Covariates) For(view NormalizationView, subjectID string) (float64, bool) {
	cov, ok := c[subjectID]
	if !ok {
		return 0, false
	}
	switch view {
	case ViewBodyWeight:
		if cov.BodyWeight == nil {
			return 0, false
		}
		return *cov.BodyWeight, true
	case ViewLeanMass:
		if cov.LeanMass == nil {
			return 0, false
		}
		return *cov.LeanMass, true
	default:
		return 0, false
	}
}
