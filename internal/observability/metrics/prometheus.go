package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
)

// MechanismMetrics collects Prometheus metrics for synthesis runs. It is
// recorded by the callers that drive the mechanism (server handlers, CLI),
// not by the mechanism itself.
type MechanismMetrics struct {
	logger   *logrus.Logger
	registry *prometheus.Registry

	runsTotal          *prometheus.CounterVec
	runDuration        *prometheus.HistogramVec
	roundsTotal        *prometheus.CounterVec
	syntheticRowsTotal *prometheus.CounterVec
	budgetRho          *prometheus.GaugeVec
	modelLoss          *prometheus.GaugeVec
	httpRequestsTotal  *prometheus.CounterVec
	httpDuration       *prometheus.HistogramVec
}

// NewMechanismMetrics creates the metric set on a fresh registry.
func NewMechanismMetrics(logger *logrus.Logger) *MechanismMetrics {
	if logger == nil {
		logger = logrus.New()
	}

	mm := &MechanismMetrics{
		logger:   logger,
		registry: prometheus.NewRegistry(),

		runsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "privsynth",
				Name:      "runs_total",
				Help:      "Total synthesis runs by engine and status",
			},
			[]string{"engine", "status"},
		),
		runDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "privsynth",
				Name:      "run_duration_seconds",
				Help:      "Synthesis run duration in seconds",
				Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
			},
			[]string{"engine"},
		),
		roundsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "privsynth",
				Name:      "rounds_total",
				Help:      "Total mechanism rounds executed by engine",
			},
			[]string{"engine"},
		),
		syntheticRowsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "privsynth",
				Name:      "synthetic_rows_total",
				Help:      "Total synthetic records produced by engine",
			},
			[]string{"engine"},
		),
		budgetRho: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "privsynth",
				Name:      "budget_rho",
				Help:      "zCDP budget of the last run by ledger side",
			},
			[]string{"side"},
		),
		modelLoss: prometheus.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "privsynth",
				Name:      "model_loss",
				Help:      "Final estimation loss of the last run by engine",
			},
			[]string{"engine"},
		),
		httpRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "privsynth",
				Name:      "http_requests_total",
				Help:      "Total HTTP requests by method, path, and status",
			},
			[]string{"method", "path", "status"},
		),
		httpDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "privsynth",
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),
	}

	mm.registry.MustRegister(
		mm.runsTotal,
		mm.runDuration,
		mm.roundsTotal,
		mm.syntheticRowsTotal,
		mm.budgetRho,
		mm.modelLoss,
		mm.httpRequestsTotal,
		mm.httpDuration,
	)

	return mm
}

// Handler returns the scrape endpoint for the metric registry.
func (mm *MechanismMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(mm.registry, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
	})
}

// RecordRun records the outcome of one synthesis run.
func (mm *MechanismMetrics) RecordRun(engine, status string, rounds, rows int, loss float64, duration time.Duration) {
	mm.runsTotal.WithLabelValues(engine, status).Inc()
	mm.runDuration.WithLabelValues(engine).Observe(duration.Seconds())
	mm.roundsTotal.WithLabelValues(engine).Add(float64(rounds))
	if status == "success" {
		mm.syntheticRowsTotal.WithLabelValues(engine).Add(float64(rows))
		mm.modelLoss.WithLabelValues(engine).Set(loss)
	}
}

// RecordBudget records the ledger state of the last run.
func (mm *MechanismMetrics) RecordBudget(total, spent float64) {
	mm.budgetRho.WithLabelValues("total").Set(total)
	mm.budgetRho.WithLabelValues("spent").Set(spent)
}

// RecordHTTPRequest records one handled HTTP request.
func (mm *MechanismMetrics) RecordHTTPRequest(method, path string, status int, duration time.Duration) {
	mm.httpRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	mm.httpDuration.WithLabelValues(method, path).Observe(duration.Seconds())
}
