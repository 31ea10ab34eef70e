package mechanisms

import (
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/privsynth/internal/privacy"
	"github.com/inferloop/privsynth/pkg/constants"
	"github.com/inferloop/privsynth/pkg/errors"
)

// Hyperparameters configure a mechanism run.
type Hyperparameters struct {
	// Epsilon and Delta form the (ε, δ) privacy budget, converted to a
	// zCDP budget by the accountant.
	Epsilon float64 `json:"epsilon"`
	Delta   float64 `json:"delta"`

	// Degree is the maximum clique arity. It is enforced by the workload
	// builder, not by the mechanism; it is carried here so callers can
	// build the workload from the same configuration.
	Degree int `json:"degree"`

	// Rounds is the upper bound on the number of rounds; the effective
	// round count is min(rounds, workload length).
	Rounds int `json:"rounds"`

	// DataInit is an initialization hint forwarded to particle-family
	// engines.
	DataInit bool `json:"data_init"`

	// MaxModelSize caps the model memory cost, in the same MiB units as
	// the engine's size accounting. Only meaningful for size-aware
	// engines.
	MaxModelSize float64 `json:"max_model_size"`
}

// Validate checks the hyperparameters common to all mechanisms.
func (hp *Hyperparameters) Validate() error {
	if hp.Epsilon <= 0 {
		return errors.NewConfigurationError(errors.CodeInvalidEpsilon,
			fmt.Sprintf("epsilon must be positive, got %g", hp.Epsilon))
	}
	if hp.Delta < 0 || hp.Delta >= 1 {
		return errors.NewConfigurationError(errors.CodeInvalidDelta,
			fmt.Sprintf("delta must be in [0, 1), got %g", hp.Delta))
	}
	if hp.Rounds <= 0 {
		return errors.NewConfigurationError(errors.CodeInvalidRounds,
			fmt.Sprintf("rounds must be positive, got %d", hp.Rounds))
	}
	return nil
}

// Mechanism is the shared base of privacy mechanisms: the accountant, the
// privacy definition, and the single logical random stream all sampling
// draws come from.
type Mechanism struct {
	accountant *privacy.Accountant
	bounded    bool
	rand       *rand.Rand
	logger     *logrus.Logger
}

// NewMechanism creates the mechanism base. The seed fixes the shared
// random stream; two runs with the same seed and inputs are reproducible.
func NewMechanism(epsilon, delta float64, bounded bool, seed int64, logger *logrus.Logger) (*Mechanism, error) {
	accountant, err := privacy.NewAccountant(epsilon, delta, bounded)
	if err != nil {
		return nil, err
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &Mechanism{
		accountant: accountant,
		bounded:    bounded,
		rand:       rand.New(rand.NewSource(seed)),
		logger:     logger,
	}, nil
}

// Accountant returns the privacy accountant.
func (m *Mechanism) Accountant() *privacy.Accountant {
	return m.accountant
}

// Bounded reports the privacy definition in force.
func (m *Mechanism) Bounded() bool {
	return m.bounded
}

// sampleIndex draws one index from a categorical distribution using the
// mechanism's shared random stream.
func (m *Mechanism) sampleIndex(probabilities []float64) int {
	u := m.rand.Float64()
	cumulative := 0.0
	for i, p := range probabilities {
		cumulative += p
		if u <= cumulative {
			return i
		}
	}
	return len(probabilities) - 1
}

// defaultAlpha returns the measurement/selection split fraction, applying
// the package default when unset.
func defaultAlpha(alpha float64) float64 {
	if alpha == 0 {
		return constants.DefaultAlpha
	}
	return alpha
}
