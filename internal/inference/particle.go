package inference

import (
	"context"
	"fmt"
	"math/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/inferloop/privsynth/pkg/constants"
	"github.com/inferloop/privsynth/pkg/errors"
	"github.com/inferloop/privsynth/pkg/interfaces"
	"github.com/inferloop/privsynth/pkg/models"
)

// ParticleConfig configures the particle estimator engine.
type ParticleConfig struct {
	// Particles is the population size.
	Particles int `json:"particles"`

	// DataInit selects stratified initialization of the particle columns
	// (even coverage of every attribute value) instead of uniform random
	// draws.
	DataInit bool `json:"data_init"`

	// Seed fixes the random source for reproducible refits and synthesis.
	Seed int64 `json:"seed"`
}

// ParticleEngine represents the model as a fixed population of particle
// records. Refitting regenerates the measured cliques' columns from the
// noisy marginals, in measurement order. Particle models have no
// explicit per-clique memory cost, so the engine does not implement size
// accounting.
type ParticleEngine struct {
	domain *models.Domain
	config *ParticleConfig
	logger *logrus.Logger
	rand   *rand.Rand
}

// NewParticleEngine creates a particle engine over a fixed domain.
func NewParticleEngine(domain *models.Domain, config *ParticleConfig, logger *logrus.Logger) (*ParticleEngine, error) {
	if domain == nil {
		return nil, errors.NewValidationError(errors.CodeInvalidDomain, "domain cannot be nil")
	}
	if config == nil {
		config = &ParticleConfig{}
	}
	if config.Particles <= 0 {
		config.Particles = constants.DefaultParticleCount
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &ParticleEngine{
		domain: domain,
		config: config,
		logger: logger,
		rand:   rand.New(rand.NewSource(config.Seed)),
	}, nil
}

// GetType returns the engine type name.
func (e *ParticleEngine) GetType() string {
	return constants.EngineTypeParticle
}

// Estimate refits the particle population from the full measurement log.
// An empty log yields the initial uninformed population. The returned
// loss is the mean L1 distance between the population's marginals and the
// measurements.
func (e *ParticleEngine) Estimate(ctx context.Context, measurements []models.Measurement, total *int) (interfaces.Model, float64, error) {
	columns := e.initColumns()

	for i, m := range measurements {
		select {
		case <-ctx.Done():
			return nil, 0, ctx.Err()
		default:
		}

		if err := e.domain.Check(m.Clique); err != nil {
			return nil, 0, errors.WrapError(err, errors.ErrorTypeEstimation, errors.CodeEstimationFailed,
				fmt.Sprintf("measurement %d clique %s outside domain", i, m.Clique))
		}
		size := e.domain.Size(m.Clique)
		if len(m.Values) != size {
			return nil, 0, errors.NewEstimationError(errors.CodeEstimationFailed,
				fmt.Sprintf("measurement %d has %d values, clique %s needs %d", i, len(m.Values), m.Clique, size))
		}

		// Clip negatives from the noise before treating the marginal as a
		// distribution.
		weights := make([]float64, size)
		for k, v := range m.Values {
			if v > 0 {
				weights[k] = v
			}
		}
		cum := cumulative(weights)

		for p := 0; p < e.config.Particles; p++ {
			cell := sampleCumulative(e.rand, cum)
			for j := len(m.Clique) - 1; j >= 0; j-- {
				card := e.domain.Cardinality(m.Clique[j])
				columns[m.Clique[j]][p] = cell % card
				cell /= card
			}
		}
	}

	model := &ParticleModel{
		domain:  e.domain,
		columns: columns,
		count:   e.config.Particles,
		total:   total,
		rand:    e.rand,
	}

	loss := 0.0
	if len(measurements) > 0 {
		for _, m := range measurements {
			mu, err := model.Project(m.Clique)
			if err != nil {
				return nil, 0, err
			}
			scale := floats.Sum(m.Values) / float64(model.count)
			if scale <= 0 {
				scale = 1
			}
			floats.Scale(scale, mu)
			loss += floats.Distance(mu, m.Values, 1)
		}
		loss /= float64(len(measurements))
	}

	e.logger.WithFields(logrus.Fields{
		"engine":       e.GetType(),
		"measurements": len(measurements),
		"particles":    e.config.Particles,
		"loss":         loss,
	}).Debug("Refit particle model")

	return model, loss, nil
}

// initColumns builds the initial particle columns per the DataInit hint.
func (e *ParticleEngine) initColumns() map[string][]int {
	columns := make(map[string][]int, len(e.domain.Attributes()))
	for _, attr := range e.domain.Attributes() {
		col := make([]int, e.config.Particles)
		card := e.domain.Cardinality(attr)
		if e.config.DataInit {
			for p := range col {
				col[p] = p % card
			}
		} else {
			for p := range col {
				col[p] = e.rand.Intn(card)
			}
		}
		columns[attr] = col
	}
	return columns
}

// ParticleModel is a fitted particle population.
type ParticleModel struct {
	domain  *models.Domain
	columns map[string][]int
	count   int
	total   *int
	rand    *rand.Rand
}

// Project returns the population's marginal counts for the clique.
func (m *ParticleModel) Project(cl models.Clique) ([]float64, error) {
	if err := m.domain.Check(cl); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeEstimation, errors.CodeProjectionFailed,
			fmt.Sprintf("cannot project onto %s", cl))
	}

	out := make([]float64, m.domain.Size(cl))
	for p := 0; p < m.count; p++ {
		k := 0
		for _, attr := range cl {
			k = k*m.domain.Cardinality(attr) + m.columns[attr][p]
		}
		out[k]++
	}
	return out, nil
}

// SyntheticData emits records drawn from the particle population. When
// records is nil the count is the tracked total if known, otherwise the
// population size.
func (m *ParticleModel) SyntheticData(records *int) (*models.Dataset, error) {
	count := m.count
	if m.total != nil && *m.total > 0 {
		count = *m.total
	}
	if records != nil {
		count = *records
	}
	if count < 0 {
		return nil, errors.NewValidationError(errors.CodeSynthesisFailed,
			fmt.Sprintf("record count cannot be negative, got %d", count))
	}

	attrs := m.domain.Attributes()
	columns := make(map[string][]int, len(attrs))
	for _, attr := range attrs {
		columns[attr] = make([]int, count)
	}
	for i := 0; i < count; i++ {
		p := m.rand.Intn(m.count)
		for _, attr := range attrs {
			columns[attr][i] = m.columns[attr][p]
		}
	}

	return models.NewDataset(m.domain, columns)
}
