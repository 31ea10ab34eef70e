package interfaces

import (
	"context"

	"github.com/inferloop/privsynth/pkg/models"
)

// Estimator fits a probability model from noisy marginal measurements.
// Implementations must be deterministic given a fixed random seed and
// measurement sequence, and must accept an empty measurement sequence to
// produce an initial uninformed model.
type Estimator interface {
	// GetType returns the engine type name.
	GetType() string

	// Estimate refits a model from the full measurement log. total, when
	// non-nil, is the known total record count of the private dataset.
	Estimate(ctx context.Context, measurements []models.Measurement, total *int) (Model, float64, error)
}

// Model is a fitted probability model over a fixed domain.
type Model interface {
	// Project returns the model's current belief about the clique's
	// marginal. The returned vector's length equals the product of the
	// clique's attribute cardinalities.
	Project(cl models.Clique) ([]float64, error)

	// SyntheticData emits a synthetic dataset. When records is non-nil the
	// dataset has exactly that many records; otherwise the count is
	// model-determined.
	SyntheticData(records *int) (*models.Dataset, error)
}

// SizeAccountant is the optional size-accounting capability of estimator
// engines whose models have an explicit memory cost. Engines without a
// meaningful memory-cost notion simply do not implement it.
type SizeAccountant interface {
	// ModelSize estimates, in MiB, the memory cost of a model over the
	// given cliques.
	ModelSize(domain *models.Domain, cliques []models.Clique) float64
}

// SizedModel is implemented by models that track their own memory cost.
type SizedModel interface {
	Model

	// Size returns the model's memory cost in MiB.
	Size() float64
}
