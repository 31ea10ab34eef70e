package privacy

import (
	"fmt"
	"math"

	"github.com/inferloop/privsynth/pkg/errors"
)

// Accountant converts an (ε, δ) differential-privacy budget into the
// zero-concentrated-DP budget ρ spent by the mechanisms, and supplies the
// per-record sensitivity constants for the chosen privacy definition.
type Accountant struct {
	epsilon float64
	delta   float64
	bounded bool
	rho     float64
}

// NewAccountant creates an accountant for the given (ε, δ) budget.
// bounded selects bounded DP (neighboring datasets differ by one changed
// record) rather than unbounded DP (one added/removed record).
func NewAccountant(epsilon, delta float64, bounded bool) (*Accountant, error) {
	if epsilon <= 0 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidEpsilon,
			fmt.Sprintf("epsilon must be positive, got %g", epsilon))
	}
	if delta < 0 || delta >= 1 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidDelta,
			fmt.Sprintf("delta must be in [0, 1), got %g", delta))
	}

	var rho float64
	if delta == 0 {
		rho = 0.5 * epsilon * epsilon
	} else {
		rho = cdpRho(epsilon, delta)
	}

	return &Accountant{
		epsilon: epsilon,
		delta:   delta,
		bounded: bounded,
		rho:     rho,
	}, nil
}

// Epsilon returns the ε of the (ε, δ) budget.
func (a *Accountant) Epsilon() float64 { return a.epsilon }

// Delta returns the δ of the (ε, δ) budget.
func (a *Accountant) Delta() float64 { return a.delta }

// Bounded reports whether the bounded-DP definition is in force.
func (a *Accountant) Bounded() bool { return a.bounded }

// Rho returns the zCDP budget ρ equivalent to the (ε, δ) budget.
func (a *Accountant) Rho() float64 { return a.rho }

// Sensitivity returns the per-record L1 sensitivity used to calibrate the
// exponential-mechanism selection strength.
func (a *Accountant) Sensitivity() float64 {
	if a.bounded {
		return 2.0
	}
	return 1.0
}

// MarginalSensitivity returns the per-record L2 sensitivity of a marginal
// vector, the multiplier on the Gaussian measurement noise scale.
func (a *Accountant) MarginalSensitivity() float64 {
	if a.bounded {
		return math.Sqrt2
	}
	return 1.0
}

// cdpDelta returns the smallest δ for which ρ-zCDP implies (ε, δ)-DP,
// following the standard zCDP-to-approximate-DP conversion. The optimal
// Rényi order α is located by bisection on the derivative of the bound.
func cdpDelta(rho, eps float64) float64 {
	if rho < 0 || eps < 0 {
		return 1.0
	}
	if rho == 0 {
		return 0.0
	}

	amin := 1.01
	amax := (eps+1)/(2*rho) + 2
	var alpha float64
	for i := 0; i < 1000; i++ {
		alpha = (amin + amax) / 2
		derivative := (2*alpha-1)*rho - eps + math.Log1p(-1.0/alpha)
		if derivative < 0 {
			amin = alpha
		} else {
			amax = alpha
		}
	}

	delta := math.Exp((alpha-1)*(alpha*rho-eps)+alpha*math.Log1p(-1/alpha)) / (alpha - 1.0)
	return math.Min(delta, 1.0)
}

// cdpRho returns the largest ρ such that ρ-zCDP implies (ε, δ)-DP, found
// by bisection on cdpDelta.
func cdpRho(eps, delta float64) float64 {
	if delta >= 1 {
		return 0.0
	}

	rhomin := 0.0
	rhomax := eps + 1
	for i := 0; i < 1000; i++ {
		rho := (rhomin + rhomax) / 2
		if cdpDelta(rho, eps) <= delta {
			rhomin = rho
		} else {
			rhomax = rho
		}
	}
	return rhomin
}
