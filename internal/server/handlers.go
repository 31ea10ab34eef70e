package server

import (
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/privsynth/internal/inference"
	"github.com/inferloop/privsynth/internal/mechanisms"
	"github.com/inferloop/privsynth/internal/observability/metrics"
	"github.com/inferloop/privsynth/internal/storage"
	"github.com/inferloop/privsynth/pkg/constants"
	"github.com/inferloop/privsynth/pkg/errors"
	"github.com/inferloop/privsynth/pkg/models"
)

// Handlers serves the synthesis API over one loaded private dataset.
type Handlers struct {
	dataset *models.Dataset
	codec   storage.Codec
	factory *inference.Factory
	metrics *metrics.MechanismMetrics
	logger  *logrus.Logger
}

// NewHandlers creates the API handlers.
func NewHandlers(dataset *models.Dataset, codec storage.Codec, mm *metrics.MechanismMetrics, logger *logrus.Logger) *Handlers {
	if logger == nil {
		logger = logrus.New()
	}
	return &Handlers{
		dataset: dataset,
		codec:   codec,
		factory: inference.NewFactory(logger),
		metrics: mm,
		logger:  logger,
	}
}

// SynthesizeRequest is the body of POST /api/v1/synthesize.
type SynthesizeRequest struct {
	Epsilon      float64    `json:"epsilon"`
	Delta        float64    `json:"delta"`
	Rounds       int        `json:"rounds"`
	Degree       int        `json:"degree"`
	Alpha        float64    `json:"alpha"`
	MaxModelSize float64    `json:"max_model_size"`
	Engine       string     `json:"engine"`
	Bounded      bool       `json:"bounded"`
	DataInit     bool       `json:"data_init"`
	Seed         int64      `json:"seed"`
	Records      *int       `json:"records,omitempty"`
	Workload     [][]string `json:"workload,omitempty"`
}

// SynthesizeResponse is the body of a successful synthesis.
type SynthesizeResponse struct {
	RunID    string             `json:"run_id"`
	Loss     float64            `json:"loss"`
	Rounds   int                `json:"rounds"`
	Selected []models.Clique    `json:"selected"`
	Budget   *privacyLedgerView `json:"budget"`
	Columns  []string           `json:"columns"`
	Rows     [][]string         `json:"rows"`
}

type privacyLedgerView struct {
	Total     float64 `json:"total_rho"`
	Spent     float64 `json:"spent_rho"`
	Remaining float64 `json:"remaining_rho"`
}

// Health handles GET /health.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":  "healthy",
		"service": constants.AppName,
		"records": h.dataset.Records(),
	})
}

// Version handles GET /version.
func (h *Handlers) Version(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{
		"service": constants.AppName,
		"version": constants.AppVersion,
	})
}

// GetDomain handles GET /api/v1/domain. It exposes only the schema, never
// the data.
func (h *Handlers) GetDomain(w http.ResponseWriter, r *http.Request) {
	domain := h.dataset.Domain()
	attrs := domain.Attributes()
	shape := make(map[string]int, len(attrs))
	for _, attr := range attrs {
		shape[attr] = domain.Cardinality(attr)
	}
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"attributes": attrs,
		"shape":      shape,
		"total_size": domain.TotalSize(),
	})
}

// ListEngines handles GET /api/v1/engines.
func (h *Handlers) ListEngines(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]interface{}{
		"engines": h.factory.AvailableEngines(),
	})
}

// Synthesize handles POST /api/v1/synthesize: one full mechanism run
// against the loaded dataset.
func (h *Handlers) Synthesize(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	var req SynthesizeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, errors.NewValidationError(errors.CodeInternalError, "invalid JSON body"))
		return
	}
	applyRequestDefaults(&req)

	domain := h.dataset.Domain()
	workload, err := h.buildWorkload(domain, &req)
	if err != nil {
		h.writeError(w, err)
		return
	}

	engine, err := h.factory.CreateEngine(domain, engineConfig(&req))
	if err != nil {
		h.writeError(w, err)
		return
	}

	mechanism, err := mechanisms.NewMWEM(mechanisms.Hyperparameters{
		Epsilon:      req.Epsilon,
		Delta:        req.Delta,
		Degree:       req.Degree,
		Rounds:       req.Rounds,
		DataInit:     req.DataInit,
		MaxModelSize: req.MaxModelSize,
	}, req.Bounded, req.Seed, h.logger)
	if err != nil {
		h.writeError(w, err)
		return
	}

	result, err := mechanism.Run(r.Context(), h.dataset, workload, engine, &mechanisms.RunOptions{
		Alpha:   req.Alpha,
		Records: req.Records,
	})
	if err != nil {
		h.metrics.RecordRun(req.Engine, "error", 0, 0, 0, time.Since(start))
		h.writeError(w, err)
		return
	}

	rows, err := h.decodeRows(result.Synthetic)
	if err != nil {
		h.writeError(w, err)
		return
	}

	h.metrics.RecordRun(req.Engine, "success", result.Rounds, result.Synthetic.Records(), result.Loss, time.Since(start))
	h.metrics.RecordBudget(result.Budget.Total, result.Budget.Spent)

	h.writeJSON(w, http.StatusOK, &SynthesizeResponse{
		RunID:    result.RunID,
		Loss:     result.Loss,
		Rounds:   result.Rounds,
		Selected: result.Selected,
		Budget: &privacyLedgerView{
			Total:     result.Budget.Total,
			Spent:     result.Budget.Spent,
			Remaining: result.Budget.Remaining,
		},
		Columns: domain.Attributes(),
		Rows:    rows,
	})
}

// NotFound handles unmatched routes.
func (h *Handlers) NotFound(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusNotFound, map[string]interface{}{
		"error": map[string]string{
			"code":    "NOT_FOUND",
			"message": "route not found",
		},
	})
}

func (h *Handlers) buildWorkload(domain *models.Domain, req *SynthesizeRequest) (models.Workload, error) {
	if len(req.Workload) == 0 {
		return models.AllCliques(domain, req.Degree)
	}

	workload := make(models.Workload, len(req.Workload))
	for i, attrs := range req.Workload {
		workload[i] = models.Clique(attrs)
	}
	if err := workload.Validate(domain); err != nil {
		return nil, err
	}
	return workload, nil
}

func (h *Handlers) decodeRows(dataset *models.Dataset) ([][]string, error) {
	attrs := dataset.Domain().Attributes()
	rows := make([][]string, dataset.Records())
	for i := range rows {
		row := make([]string, len(attrs))
		for j, attr := range attrs {
			code := dataset.Column(attr)[i]
			if h.codec == nil {
				row[j] = strconv.Itoa(code)
				continue
			}
			label, err := h.codec.Decode(attr, code)
			if err != nil {
				return nil, err
			}
			row[j] = label
		}
		rows[i] = row
	}
	return rows, nil
}

func (h *Handlers) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		h.logger.Errorf("Failed to encode response: %v", err)
	}
}

func (h *Handlers) writeError(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	code := errors.CodeInternalError
	message := err.Error()

	var appErr *errors.AppError
	if stderrors.As(err, &appErr) {
		status = appErr.HTTPStatus
		code = appErr.Code
		message = appErr.Message
	}

	h.writeJSON(w, status, map[string]interface{}{
		"error": map[string]string{
			"code":    code,
			"message": message,
		},
	})
}

func applyRequestDefaults(req *SynthesizeRequest) {
	if req.Rounds == 0 {
		req.Rounds = constants.DefaultRounds
	}
	if req.Degree == 0 {
		req.Degree = constants.DefaultDegree
	}
	if req.Engine == "" {
		req.Engine = constants.EngineTypeFactored
	}
	if req.MaxModelSize == 0 {
		req.MaxModelSize = constants.DefaultMaxModelSize
	}
}

func engineConfig(req *SynthesizeRequest) *inference.EngineConfig {
	return &inference.EngineConfig{
		Type: req.Engine,
		Factored: &inference.FactoredConfig{
			Seed: req.Seed,
		},
		Particle: &inference.ParticleConfig{
			DataInit: req.DataInit,
			Seed:     req.Seed,
		},
	}
}
