package mechanisms

import (
	"context"
	stderrors "errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/inferloop/privsynth/internal/inference"
	"github.com/inferloop/privsynth/pkg/errors"
	"github.com/inferloop/privsynth/pkg/models"
)

func testDomain(t *testing.T) *models.Domain {
	t.Helper()
	domain, err := models.NewDomain([]string{"a", "b"}, []int{2, 3})
	require.NoError(t, err)
	return domain
}

func testDataset(t *testing.T) *models.Dataset {
	t.Helper()
	domain := testDomain(t)

	colA := make([]int, 60)
	colB := make([]int, 60)
	for i := range colA {
		if i%3 == 0 {
			colA[i] = 1
		}
		colB[i] = i % 3
	}
	dataset, err := models.NewDataset(domain, map[string][]int{"a": colA, "b": colB})
	require.NoError(t, err)
	return dataset
}

func testWorkload(t *testing.T, domain *models.Domain) models.Workload {
	t.Helper()
	workload, err := models.AllCliques(domain, 2)
	require.NoError(t, err)
	return workload
}

func testHyperparameters() Hyperparameters {
	return Hyperparameters{
		Epsilon:      1.0,
		Delta:        1e-6,
		Degree:       2,
		Rounds:       2,
		MaxModelSize: 80.0,
	}
}

func newTestEngine(t *testing.T, domain *models.Domain, seed int64) *inference.FactoredEngine {
	t.Helper()
	engine, err := inference.NewFactoredEngine(domain, &inference.FactoredConfig{Seed: seed}, nil)
	require.NoError(t, err)
	return engine
}

func TestHyperparametersValidate(t *testing.T) {
	hp := testHyperparameters()
	assert.NoError(t, hp.Validate())

	bad := hp
	bad.Epsilon = 0
	assert.Error(t, bad.Validate())

	bad = hp
	bad.Delta = 1.0
	assert.Error(t, bad.Validate())

	bad = hp
	bad.Rounds = 0
	assert.Error(t, bad.Validate())
}

func TestSplitBudgetPartition(t *testing.T) {
	rho := 0.125
	split, err := splitBudget(rho, 5, 0.9)
	require.NoError(t, err)

	// Per-round shares reassemble exactly into the global budget.
	perRound := 0.9*split.rhoPerRound + 0.1*split.rhoPerRound
	assert.InDelta(t, rho, 5*perRound, 1e-9)

	assert.InDelta(t, math.Sqrt(0.5/(0.9*split.rhoPerRound)), split.sigma, 1e-12)
	assert.InDelta(t, math.Sqrt(8*0.1*split.rhoPerRound), split.selectionEps, 1e-12)
}

func TestSplitBudgetAlphaTradeoff(t *testing.T) {
	low, err := splitBudget(0.5, 4, 0.5)
	require.NoError(t, err)
	high, err := splitBudget(0.5, 4, 0.95)
	require.NoError(t, err)

	// More alpha means less measurement noise but a weaker selector.
	assert.Less(t, high.sigma, low.sigma)
	assert.Less(t, high.selectionEps, low.selectionEps)
}

func TestSplitBudgetValidation(t *testing.T) {
	_, err := splitBudget(0.5, 0, 0.9)
	assert.Error(t, err)

	_, err = splitBudget(0, 3, 0.9)
	assert.Error(t, err)

	_, err = splitBudget(0.5, 3, 0)
	assert.Error(t, err)

	_, err = splitBudget(0.5, 3, 1)
	assert.Error(t, err)
}

func TestSelectionProbabilitiesUniformAtZeroStrength(t *testing.T) {
	probs, err := selectionProbabilities([]float64{10, 20, 30}, 0, 2.0)
	require.NoError(t, err)
	for _, p := range probs {
		assert.InDelta(t, 1.0/3, p, 1e-12)
	}
}

func TestSelectionProbabilitiesConcentration(t *testing.T) {
	probs, err := selectionProbabilities([]float64{1, 2, 10}, 1e10, 2.0)
	require.NoError(t, err)
	assert.InDelta(t, 1.0, probs[2], 1e-9, "extreme strength selects the max almost surely")
}

func TestSelectionProbabilitiesEqualScores(t *testing.T) {
	probs, err := selectionProbabilities([]float64{7, 7, 7, 7}, 1e10, 2.0)
	require.NoError(t, err)
	sum := 0.0
	for _, p := range probs {
		assert.False(t, math.IsNaN(p))
		assert.InDelta(t, 0.25, p, 1e-12)
		sum += p
	}
	assert.InDelta(t, 1.0, sum, 1e-12)
}

func TestSelectionProbabilitiesErrors(t *testing.T) {
	_, err := selectionProbabilities(nil, 1.0, 2.0)
	assert.Error(t, err)

	_, err = selectionProbabilities([]float64{1, 2}, 1.0, 0)
	assert.Error(t, err)
}

func TestMWEMRun(t *testing.T) {
	dataset := testDataset(t)
	domain := dataset.Domain()
	workload := testWorkload(t, domain)

	mechanism, err := NewMWEM(testHyperparameters(), true, 42, nil)
	require.NoError(t, err)

	result, err := mechanism.Run(context.Background(), dataset, workload, newTestEngine(t, domain, 42), nil)
	require.NoError(t, err)

	assert.NotEmpty(t, result.RunID)
	assert.Equal(t, 2, result.Rounds, "rounds are clamped to min(configured, workload)")
	require.Len(t, result.Measurements, 2, "one measurement per round")
	require.Len(t, result.Selected, 2)

	for _, m := range result.Measurements {
		assert.Equal(t, "identity", m.Operator)
		assert.Equal(t, 1.0, m.Weight)
		assert.Contains(t, []int{2, 3, 6}, len(m.Values))
		assert.Equal(t, domain.Size(m.Clique), len(m.Values))
	}

	// Bounded DP with no explicit count: the synthetic dataset matches the
	// private record count.
	assert.Equal(t, 60, result.Synthetic.Records())

	// The whole budget is spent, no more, no less.
	require.NotNil(t, result.Budget)
	assert.InDelta(t, result.Budget.Total, result.Budget.Spent, 1e-9)
	assert.Equal(t, 4, result.Budget.TransactionCount, "selection and measurement per round")
}

func TestMWEMRunExplicitRecords(t *testing.T) {
	dataset := testDataset(t)
	workload := testWorkload(t, dataset.Domain())

	mechanism, err := NewMWEM(testHyperparameters(), true, 7, nil)
	require.NoError(t, err)

	n := 25
	result, err := mechanism.Run(context.Background(), dataset, workload,
		newTestEngine(t, dataset.Domain(), 7), &RunOptions{Records: &n})
	require.NoError(t, err)
	assert.Equal(t, 25, result.Synthetic.Records())
}

func TestMWEMRunDeterminism(t *testing.T) {
	dataset := testDataset(t)
	domain := dataset.Domain()
	workload := testWorkload(t, domain)

	runOnce := func() *RunResult {
		mechanism, err := NewMWEM(testHyperparameters(), true, 1234, nil)
		require.NoError(t, err)
		result, err := mechanism.Run(context.Background(), dataset, workload, newTestEngine(t, domain, 1234), nil)
		require.NoError(t, err)
		return result
	}

	first := runOnce()
	second := runOnce()

	require.Len(t, second.Selected, len(first.Selected))
	for i := range first.Selected {
		assert.True(t, first.Selected[i].Equal(second.Selected[i]))
	}
	for _, attr := range domain.Attributes() {
		assert.Equal(t, first.Synthetic.Column(attr), second.Synthetic.Column(attr))
	}
}

func TestMWEMRunParticleEngine(t *testing.T) {
	dataset := testDataset(t)
	domain := dataset.Domain()
	workload := testWorkload(t, domain)

	engine, err := inference.NewParticleEngine(domain, &inference.ParticleConfig{Particles: 500, Seed: 9}, nil)
	require.NoError(t, err)

	// Size-agnostic engines run without a model size cap.
	hp := testHyperparameters()
	hp.MaxModelSize = 0

	mechanism, err := NewMWEM(hp, true, 9, nil)
	require.NoError(t, err)

	result, err := mechanism.Run(context.Background(), dataset, workload, engine, nil)
	require.NoError(t, err)
	assert.Equal(t, 60, result.Synthetic.Records())
	assert.Len(t, result.Measurements, 2)
}

func TestMWEMRunValidation(t *testing.T) {
	dataset := testDataset(t)
	domain := dataset.Domain()
	workload := testWorkload(t, domain)
	engine := newTestEngine(t, domain, 1)

	mechanism, err := NewMWEM(testHyperparameters(), true, 1, nil)
	require.NoError(t, err)

	_, err = mechanism.Run(context.Background(), nil, workload, engine, nil)
	assert.Error(t, err, "nil dataset")

	_, err = mechanism.Run(context.Background(), dataset, models.Workload{}, engine, nil)
	assert.Error(t, err, "empty workload")

	_, err = mechanism.Run(context.Background(), dataset, workload, nil, nil)
	assert.Error(t, err, "nil engine")
}

func TestMWEMRunRequiresSizeCapForSizeAwareEngine(t *testing.T) {
	dataset := testDataset(t)
	workload := testWorkload(t, dataset.Domain())

	hp := testHyperparameters()
	hp.MaxModelSize = 0

	mechanism, err := NewMWEM(hp, true, 1, nil)
	require.NoError(t, err)

	_, err = mechanism.Run(context.Background(), dataset, workload, newTestEngine(t, dataset.Domain(), 1), nil)
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, errors.CodeInvalidModelSize, appErr.Code)
}

func TestMWEMRunCandidateExhaustion(t *testing.T) {
	dataset := testDataset(t)
	workload := testWorkload(t, dataset.Domain())

	// A cap below the smallest marginal's cost leaves round one with no
	// admissible candidate.
	hp := testHyperparameters()
	hp.MaxModelSize = 1e-9

	mechanism, err := NewMWEM(hp, true, 1, nil)
	require.NoError(t, err)

	_, err = mechanism.Run(context.Background(), dataset, workload, newTestEngine(t, dataset.Domain(), 1), nil)
	require.Error(t, err)

	var appErr *errors.AppError
	require.True(t, stderrors.As(err, &appErr))
	assert.Equal(t, errors.CodeCandidateExhausted, appErr.Code)
}

func TestMWEMRunCancellation(t *testing.T) {
	dataset := testDataset(t)
	workload := testWorkload(t, dataset.Domain())

	mechanism, err := NewMWEM(testHyperparameters(), true, 1, nil)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = mechanism.Run(ctx, dataset, workload, newTestEngine(t, dataset.Domain(), 1), nil)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestMWEMRoundsClampedToWorkload(t *testing.T) {
	dataset := testDataset(t)
	domain := dataset.Domain()

	hp := testHyperparameters()
	hp.Rounds = 10

	mechanism, err := NewMWEM(hp, true, 3, nil)
	require.NoError(t, err)

	// A two-query workload caps the run at two rounds.
	workload := models.Workload{models.Clique{"a"}, models.Clique{"b"}}
	result, err := mechanism.Run(context.Background(), dataset, workload, newTestEngine(t, domain, 3), nil)
	require.NoError(t, err)
	assert.Equal(t, 2, result.Rounds)
	assert.Len(t, result.Measurements, 2)
}

func TestGrowingSizeCapAdmitsMoreCandidates(t *testing.T) {
	dataset := testDataset(t)
	domain := dataset.Domain()
	workload := testWorkload(t, domain)
	engine := newTestEngine(t, domain, 1)

	// Cap sized so the pair marginal (6 cells) only fits in the final
	// round: round caps are cap*r/R.
	hp := testHyperparameters()
	hp.MaxModelSize = float64(domain.TotalSize()+5) * 8 / (1 << 20)

	mechanism, err := NewMWEM(hp, true, 1, nil)
	require.NoError(t, err)

	candidatesAt := func(round int) []models.Clique {
		candidates, _, err := mechanism.admissibleCandidates(engine, domain, workload, nil, round, 2)
		require.NoError(t, err)
		return candidates
	}

	early := candidatesAt(1)
	late := candidatesAt(2)
	assert.GreaterOrEqual(t, len(late), len(early))
	assert.Less(t, len(early), len(workload), "early cap excludes the largest marginal")
	assert.Len(t, late, len(workload))
}
