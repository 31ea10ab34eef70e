package mechanisms

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"gonum.org/v1/gonum/floats"

	"github.com/inferloop/privsynth/internal/privacy"
	"github.com/inferloop/privsynth/pkg/errors"
	"github.com/inferloop/privsynth/pkg/interfaces"
	"github.com/inferloop/privsynth/pkg/models"
)

// MWEM is the adaptive select-measure-reestimate mechanism: each round it
// privately selects the workload query the current model approximates
// worst, measures that marginal with calibrated Gaussian noise, and
// refits the model from every measurement taken so far.
type MWEM struct {
	*Mechanism
	hp Hyperparameters
}

// RunOptions are the per-run parameters of MWEM.
type RunOptions struct {
	// Alpha splits each round's budget between measurement noise (alpha)
	// and selection (1-alpha). Zero means the default 0.9.
	Alpha float64 `json:"alpha"`

	// Records sets the synthetic output size. Nil means the private
	// record count under bounded DP, model-determined otherwise.
	Records *int `json:"records,omitempty"`
}

// RunResult is the outcome of a completed run.
type RunResult struct {
	RunID        string                `json:"run_id"`
	Synthetic    *models.Dataset       `json:"-"`
	Loss         float64               `json:"loss"`
	Rounds       int                   `json:"rounds"`
	Selected     []models.Clique       `json:"selected"`
	Measurements []models.Measurement  `json:"-"`
	Budget       *privacy.LedgerStatus `json:"budget"`
}

// budgetSplit is the per-round budget partition computed once at setup.
type budgetSplit struct {
	rounds       int
	rhoPerRound  float64
	sigma        float64
	selectionEps float64
	alpha        float64
}

// NewMWEM creates an MWEM mechanism.
func NewMWEM(hp Hyperparameters, bounded bool, seed int64, logger *logrus.Logger) (*MWEM, error) {
	if err := hp.Validate(); err != nil {
		return nil, err
	}
	base, err := NewMechanism(hp.Epsilon, hp.Delta, bounded, seed, logger)
	if err != nil {
		return nil, err
	}

	return &MWEM{
		Mechanism: base,
		hp:        hp,
	}, nil
}

// splitBudget partitions the global zCDP budget across rounds and, within
// a round, between measurement and selection. Sigma shrinks as alpha
// grows while the selection strength weakens, since the two draw from
// complementary shares of the same per-round budget.
func splitBudget(rho float64, rounds int, alpha float64) (*budgetSplit, error) {
	if rounds <= 0 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidRounds,
			fmt.Sprintf("rounds must be positive, got %d", rounds))
	}
	if rho <= 0 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidEpsilon,
			fmt.Sprintf("rho budget must be positive, got %g", rho))
	}
	if alpha <= 0 || alpha >= 1 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidAlpha,
			fmt.Sprintf("alpha must be in (0, 1), got %g", alpha))
	}

	rhoPerRound := rho / float64(rounds)
	return &budgetSplit{
		rounds:       rounds,
		rhoPerRound:  rhoPerRound,
		sigma:        math.Sqrt(0.5 / (alpha * rhoPerRound)),
		selectionEps: math.Sqrt(8 * (1 - alpha) * rhoPerRound),
		alpha:        alpha,
	}, nil
}

// selectionProbabilities turns candidate utility scores into the
// exponential-mechanism categorical distribution. It is a pure function:
// the sampling draw happens separately. The max score is subtracted
// before exponentiating so equal or extreme scores still yield a finite,
// normalized distribution.
func selectionProbabilities(scores []float64, strength, sensitivity float64) ([]float64, error) {
	if len(scores) == 0 {
		return nil, errors.NewSelectionError(errors.CodeEmptyCandidates, "candidate set cannot be empty")
	}
	if sensitivity <= 0 {
		return nil, errors.NewConfigurationError(errors.CodeZeroSensitivity,
			fmt.Sprintf("sensitivity must be positive, got %g", sensitivity))
	}

	maxScore := floats.Max(scores)
	probabilities := make([]float64, len(scores))
	var sum float64
	for i, score := range scores {
		p := math.Exp(0.5 * strength / sensitivity * (score - maxScore))
		probabilities[i] = p
		sum += p
	}
	for i := range probabilities {
		probabilities[i] /= sum
	}
	return probabilities, nil
}

// worstApproximated selects, via the exponential mechanism, the candidate
// whose true marginal the model currently approximates worst. With
// penalty set, each candidate's error is discounted by its domain size so
// cheap marginals win over equally-wrong expensive ones. This sampling
// draw is the only release of the underlying error values.
func (m *MWEM) worstApproximated(
	answers map[string][]float64,
	model interfaces.Model,
	candidates []models.Clique,
	domain *models.Domain,
	strength float64,
	penalty bool,
) (models.Clique, error) {
	if len(candidates) == 0 {
		return nil, errors.NewSelectionError(errors.CodeEmptyCandidates, "candidate set cannot be empty")
	}

	scores := make([]float64, len(candidates))
	for i, cl := range candidates {
		truth, ok := answers[cl.Key()]
		if !ok {
			return nil, errors.NewInternalError(fmt.Sprintf("no true marginal cached for %s", cl))
		}
		estimate, err := model.Project(cl)
		if err != nil {
			return nil, err
		}
		if len(estimate) != len(truth) {
			return nil, errors.NewEstimationError(errors.CodeProjectionFailed,
				fmt.Sprintf("model projection for %s has %d cells, expected %d", cl, len(estimate), len(truth)))
		}

		bias := 0.0
		if penalty {
			bias = float64(domain.Size(cl))
		}
		scores[i] = floats.Distance(truth, estimate, 1) - bias
	}

	probabilities, err := selectionProbabilities(scores, strength, m.accountant.Sensitivity())
	if err != nil {
		return nil, err
	}

	return candidates[m.sampleIndex(probabilities)], nil
}

// admissibleCandidates restricts the workload to cliques that keep the
// estimated model size under this round's linearly growing cap.
func (m *MWEM) admissibleCandidates(
	accountant interfaces.SizeAccountant,
	domain *models.Domain,
	workload models.Workload,
	selected []models.Clique,
	round, rounds int,
) ([]models.Clique, float64, error) {
	sizeCap := m.hp.MaxModelSize * float64(round) / float64(rounds)

	candidates := make([]models.Clique, 0, len(workload))
	for _, cl := range workload {
		trial := append(append([]models.Clique(nil), selected...), cl)
		if accountant.ModelSize(domain, trial) <= sizeCap {
			candidates = append(candidates, cl)
		}
	}

	if len(candidates) == 0 {
		return nil, sizeCap, errors.NewConfigurationError(errors.CodeCandidateExhausted,
			fmt.Sprintf("no candidate satisfies the model size cap %.4f MiB in round %d", sizeCap, round)).
			WithContext("round", round).
			WithContext("cap_mib", sizeCap)
	}
	return candidates, sizeCap, nil
}

// measure noises the exact marginal with per-cell Gaussian noise of scale
// marginalSensitivity*sigma and returns the identity measurement. This is
// the only noise-adding release of the private dataset.
func (m *MWEM) measure(data *models.Dataset, cl models.Clique, sigma float64) (models.Measurement, error) {
	projected, err := data.Project(cl)
	if err != nil {
		return models.Measurement{}, err
	}

	x := projected.DataVector()
	scale := m.accountant.MarginalSensitivity() * sigma
	y := make([]float64, len(x))
	for k := range x {
		y[k] = x[k] + m.rand.NormFloat64()*scale
	}

	return models.NewIdentityMeasurement(y, cl), nil
}

// Run executes the full mechanism: INIT, then R strictly sequential
// select-measure-reestimate rounds over the growing measurement log, then
// synthesis from the final model. Rounds cannot be skipped or reordered;
// the context is checked between rounds for cooperative cancellation.
func (m *MWEM) Run(
	ctx context.Context,
	data *models.Dataset,
	workload models.Workload,
	engine interfaces.Estimator,
	opts *RunOptions,
) (*RunResult, error) {
	if data == nil || data.Records() == 0 {
		return nil, errors.NewValidationError(errors.CodeEmptyDataset, "private dataset cannot be empty")
	}
	domain := data.Domain()
	if err := workload.Validate(domain); err != nil {
		return nil, err
	}
	if engine == nil {
		return nil, errors.NewConfigurationError(errors.CodeUnknownEngine, "estimator engine cannot be nil")
	}
	if opts == nil {
		opts = &RunOptions{}
	}
	alpha := defaultAlpha(opts.Alpha)

	rounds := m.hp.Rounds
	if len(workload) < rounds {
		rounds = len(workload)
	}

	split, err := splitBudget(m.accountant.Rho(), rounds, alpha)
	if err != nil {
		return nil, err
	}
	ledger, err := privacy.NewRhoLedger(m.accountant.Rho(), m.logger)
	if err != nil {
		return nil, err
	}

	sizeAccountant, sizeAware := engine.(interfaces.SizeAccountant)
	if sizeAware && m.hp.MaxModelSize <= 0 {
		return nil, errors.NewConfigurationError(errors.CodeInvalidModelSize,
			fmt.Sprintf("max model size must be positive for size-aware engines, got %g", m.hp.MaxModelSize))
	}

	var total *int
	if m.bounded {
		records := data.Records()
		total = &records
	}

	runID := uuid.New().String()
	m.logger.WithFields(logrus.Fields{
		"run_id":  runID,
		"rounds":  rounds,
		"rho":     m.accountant.Rho(),
		"sigma":   split.sigma,
		"exp_eps": split.selectionEps,
		"engine":  engine.GetType(),
	}).Info("Starting MWEM run")

	// True marginals for the whole workload, computed once and reused
	// every round. These touch private data but are only ever released
	// through the selection draw and the noised measurements.
	answers := make(map[string][]float64, len(workload))
	for _, cl := range workload {
		projected, err := data.Project(cl)
		if err != nil {
			return nil, err
		}
		answers[cl.Key()] = projected.DataVector()
	}

	model, _, err := engine.Estimate(ctx, nil, total)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeEstimation, errors.CodeEstimationFailed,
			"initial estimation failed")
	}

	measurements := make([]models.Measurement, 0, rounds)
	selected := make([]models.Clique, 0, rounds)
	var loss float64

	for round := 1; round <= rounds; round++ {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		candidates := []models.Clique(workload)
		if sizeAware {
			var capMiB float64
			candidates, capMiB, err = m.admissibleCandidates(sizeAccountant, domain, workload, selected, round, rounds)
			if err != nil {
				return nil, err
			}
			m.logger.WithFields(logrus.Fields{
				"run_id":     runID,
				"round":      round,
				"cap_mib":    capMiB,
				"candidates": len(candidates),
			}).Debug("Restricted candidate set")
		}

		chosen, err := m.worstApproximated(answers, model, candidates, domain, split.selectionEps, true)
		if err != nil {
			return nil, err
		}
		if err := ledger.Spend(round, privacy.PurposeSelection, (1-alpha)*split.rhoPerRound); err != nil {
			return nil, err
		}

		measurement, err := m.measure(data, chosen, split.sigma)
		if err != nil {
			return nil, err
		}
		measurements = append(measurements, measurement)
		if err := ledger.Spend(round, privacy.PurposeMeasurement, alpha*split.rhoPerRound); err != nil {
			return nil, err
		}

		model, loss, err = engine.Estimate(ctx, measurements, total)
		if err != nil {
			return nil, errors.WrapError(err, errors.ErrorTypeEstimation, errors.CodeEstimationFailed,
				fmt.Sprintf("re-estimation failed in round %d", round))
		}
		selected = append(selected, chosen)

		fields := logrus.Fields{
			"run_id":   runID,
			"round":    round,
			"selected": chosen.String(),
			"loss":     loss,
		}
		if sized, ok := model.(interfaces.SizedModel); ok {
			fields["model_mib"] = sized.Size()
		}
		m.logger.WithFields(fields).Info("Completed round")
	}

	synthetic, err := model.SyntheticData(opts.Records)
	if err != nil {
		return nil, errors.WrapError(err, errors.ErrorTypeEstimation, errors.CodeSynthesisFailed,
			"synthetic data generation failed")
	}

	m.logger.WithFields(logrus.Fields{
		"run_id":  runID,
		"records": synthetic.Records(),
		"loss":    loss,
	}).Info("Generated synthetic data")

	return &RunResult{
		RunID:        runID,
		Synthetic:    synthetic,
		Loss:         loss,
		Rounds:       rounds,
		Selected:     selected,
		Measurements: measurements,
		Budget:       ledger.Status(),
	}, nil
}
