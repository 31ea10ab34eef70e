package inference

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/inferloop/privsynth/pkg/constants"
	"github.com/inferloop/privsynth/pkg/errors"
	"github.com/inferloop/privsynth/pkg/interfaces"
	"github.com/inferloop/privsynth/pkg/models"
)

// FactoredConfig configures the factored estimator engine.
type FactoredConfig struct {
	// Iterations is the number of multiplicative-weights passes over the
	// measurement log per refit.
	Iterations int `json:"iterations"`

	// Damping scales the multiplicative update step.
	Damping float64 `json:"damping"`

	// Seed fixes the random source for reproducible synthesis.
	Seed int64 `json:"seed"`
}

// FactoredEngine fits a dense joint distribution over the full domain by
// multiplicative-weights updates from the measurement log. It tracks an
// explicit per-clique parameter cost and therefore implements the
// size-accounting capability. Suitable for domains of modest total size.
type FactoredEngine struct {
	domain *models.Domain
	config *FactoredConfig
	logger *logrus.Logger
	rand   *rand.Rand
}

// NewFactoredEngine creates a factored engine over a fixed domain.
func NewFactoredEngine(domain *models.Domain, config *FactoredConfig, logger *logrus.Logger) (*FactoredEngine, error) {
	if domain == nil {
		return nil, errors.NewValidationError(errors.CodeInvalidDomain, "domain cannot be nil")
	}
	if config == nil {
		config = &FactoredConfig{}
	}
	if config.Iterations <= 0 {
		config.Iterations = constants.DefaultEstimationIters
	}
	if config.Damping <= 0 {
		config.Damping = constants.DefaultStepDamping
	}
	if logger == nil {
		logger = logrus.New()
	}

	return &FactoredEngine{
		domain: domain,
		config: config,
		logger: logger,
		rand:   rand.New(rand.NewSource(config.Seed)),
	}, nil
}

// GetType returns the engine type name.
func (e *FactoredEngine) GetType() string {
	return constants.EngineTypeFactored
}

// ModelSize estimates the memory cost, in MiB, of a model over the given
// cliques: 8 bytes per marginal cell, duplicate cliques charged once.
func (e *FactoredEngine) ModelSize(domain *models.Domain, cliques []models.Clique) float64 {
	seen := make(map[string]bool, len(cliques))
	cells := 0
	for _, cl := range cliques {
		key := cl.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		cells += domain.Size(cl)
	}
	return float64(cells) * 8 / (1 << 20)
}

// Estimate refits the joint distribution from the full measurement log.
// An empty log yields the uniform model. The returned loss is the mean L1
// distance between fitted marginals and their measurements.
func (e *FactoredEngine) Estimate(ctx context.Context, measurements []models.Measurement, total *int) (interfaces.Model, float64, error) {
	n := e.domain.TotalSize()
	mass := e.totalMass(measurements, total)

	joint := make([]float64, n)
	for i := range joint {
		joint[i] = mass / float64(n)
	}

	cliques := make([]models.Clique, 0, len(measurements))
	indexers := make([][]int, len(measurements))
	for i, m := range measurements {
		if err := e.domain.Check(m.Clique); err != nil {
			return nil, 0, errors.WrapError(err, errors.ErrorTypeEstimation, errors.CodeEstimationFailed,
				fmt.Sprintf("measurement %d clique %s outside domain", i, m.Clique))
		}
		if len(m.Values) != e.domain.Size(m.Clique) {
			return nil, 0, errors.NewEstimationError(errors.CodeEstimationFailed,
				fmt.Sprintf("measurement %d has %d values, clique %s needs %d",
					i, len(m.Values), m.Clique, e.domain.Size(m.Clique)))
		}
		cliques = append(cliques, m.Clique)
		indexers[i] = cliqueCells(e.domain, m.Clique)
	}

	if len(measurements) > 0 {
		for iter := 0; iter < e.config.Iterations; iter++ {
			select {
			case <-ctx.Done():
				return nil, 0, ctx.Err()
			default:
			}
			for mi, m := range measurements {
				mu := marginalOf(joint, indexers[mi], len(m.Values))
				step := e.config.Damping / (2 * mass)
				for i := range joint {
					k := indexers[mi][i]
					joint[i] *= math.Exp(step * (m.Values[k] - mu[k]))
				}
				rescale(joint, mass)
			}
		}
	}

	loss := 0.0
	if len(measurements) > 0 {
		for mi, m := range measurements {
			mu := marginalOf(joint, indexers[mi], len(m.Values))
			loss += floats.Distance(mu, m.Values, 1)
		}
		loss /= float64(len(measurements))
	}

	model := &FactoredModel{
		domain:  e.domain,
		joint:   joint,
		mass:    mass,
		cliques: cliques,
		rand:    e.rand,
	}

	e.logger.WithFields(logrus.Fields{
		"engine":       e.GetType(),
		"measurements": len(measurements),
		"loss":         loss,
		"model_mib":    model.Size(),
	}).Debug("Refit factored model")

	return model, loss, nil
}

// totalMass picks the fitted distribution's total count: the tracked
// record count when known, otherwise the mean clipped measurement mass.
func (e *FactoredEngine) totalMass(measurements []models.Measurement, total *int) float64 {
	if total != nil && *total > 0 {
		return float64(*total)
	}
	if len(measurements) == 0 {
		return 1.0
	}
	sum := 0.0
	for _, m := range measurements {
		for _, v := range m.Values {
			if v > 0 {
				sum += v
			}
		}
	}
	mass := sum / float64(len(measurements))
	if mass < 1 {
		mass = 1
	}
	return mass
}

// FactoredModel is a fitted dense joint distribution.
type FactoredModel struct {
	domain  *models.Domain
	joint   []float64
	mass    float64
	cliques []models.Clique
	rand    *rand.Rand
}

// Project marginalizes the joint onto the clique.
func (m *FactoredModel) Project(cl models.Clique) ([]float64, error) {
	if err := m.domain.Check(cl); err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeEstimation, errors.CodeProjectionFailed,
			fmt.Sprintf("cannot project onto %s", cl))
	}
	cells := cliqueCells(m.domain, cl)
	return marginalOf(m.joint, cells, m.domain.Size(cl)), nil
}

// Size returns the model's memory cost in MiB: 8 bytes per cell of each
// distinct measured clique.
func (m *FactoredModel) Size() float64 {
	seen := make(map[string]bool, len(m.cliques))
	cells := 0
	for _, cl := range m.cliques {
		key := cl.Key()
		if seen[key] {
			continue
		}
		seen[key] = true
		cells += m.domain.Size(cl)
	}
	return float64(cells) * 8 / (1 << 20)
}

// SyntheticData samples records i.i.d. from the fitted joint. When
// records is nil the count is the rounded tracked mass.
func (m *FactoredModel) SyntheticData(records *int) (*models.Dataset, error) {
	count := int(math.Round(m.mass))
	if records != nil {
		count = *records
	}
	if count < 0 {
		return nil, errors.NewValidationError(errors.CodeSynthesisFailed,
			fmt.Sprintf("record count cannot be negative, got %d", count))
	}

	cum := cumulative(m.joint)
	attrs := m.domain.Attributes()
	columns := make(map[string][]int, len(attrs))
	for _, attr := range attrs {
		columns[attr] = make([]int, count)
	}

	for i := 0; i < count; i++ {
		idx := sampleCumulative(m.rand, cum)
		for j := len(attrs) - 1; j >= 0; j-- {
			card := m.domain.Cardinality(attrs[j])
			columns[attrs[j]][i] = idx % card
			idx /= card
		}
	}

	return models.NewDataset(m.domain, columns)
}

// cliqueCells maps every joint cell to its cell within the clique's
// marginal, row-major in clique attribute order.
func cliqueCells(domain *models.Domain, cl models.Clique) []int {
	attrs := domain.Attributes()
	strides := make(map[string]int, len(attrs))
	stride := 1
	for i := len(attrs) - 1; i >= 0; i-- {
		strides[attrs[i]] = stride
		stride *= domain.Cardinality(attrs[i])
	}

	n := domain.TotalSize()
	cells := make([]int, n)
	for idx := 0; idx < n; idx++ {
		k := 0
		for _, attr := range cl {
			card := domain.Cardinality(attr)
			k = k*card + (idx/strides[attr])%card
		}
		cells[idx] = k
	}
	return cells
}

func marginalOf(joint []float64, cells []int, size int) []float64 {
	out := make([]float64, size)
	for i, p := range joint {
		out[cells[i]] += p
	}
	return out
}

func rescale(vec []float64, mass float64) {
	sum := floats.Sum(vec)
	if sum <= 0 {
		return
	}
	floats.Scale(mass/sum, vec)
}

func cumulative(weights []float64) []float64 {
	cum := make([]float64, len(weights))
	run := 0.0
	for i, w := range weights {
		if w > 0 {
			run += w
		}
		cum[i] = run
	}
	return cum
}

func sampleCumulative(r *rand.Rand, cum []float64) int {
	total := cum[len(cum)-1]
	if total <= 0 {
		return r.Intn(len(cum))
	}
	u := r.Float64() * total
	lo, hi := 0, len(cum)-1
	for lo < hi {
		mid := (lo + hi) / 2
		if cum[mid] <= u {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	return lo
}
