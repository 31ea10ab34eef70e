package models

import "github.com/inferloop/privsynth/pkg/constants"

// Measurement is one noised marginal release. Measurements are appended
// to a run's log and never mutated or removed.
type Measurement struct {
	// Operator tags the weighting operator applied to the marginal.
	// Marginal measurements always use the identity operator.
	Operator string `json:"operator"`

	// Values is the noisy marginal vector, flattened in clique attribute
	// order.
	Values []float64 `json:"values"`

	// Weight is the measurement weight passed to the estimator. Marginal
	// measurements carry unit weight.
	Weight float64 `json:"weight"`

	// Clique identifies the measured marginal.
	Clique Clique `json:"clique"`
}

// NewIdentityMeasurement creates a unit-weight identity measurement for
// the given clique.
func NewIdentityMeasurement(values []float64, cl Clique) Measurement {
	return Measurement{
		Operator: constants.OperatorIdentity,
		Values:   values,
		Weight:   1.0,
		Clique:   cl,
	}
}
