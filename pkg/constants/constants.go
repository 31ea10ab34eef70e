package constants

import "time"

// Application constants
const (
	AppName    = "privsynth"
	AppVersion = "0.1.0"
)

// Estimator engine types
const (
	EngineTypeFactored = "factored"
	EngineTypeParticle = "particle"
)

// Measurement operator tags
const (
	OperatorIdentity = "identity"
)

// Mechanism defaults
const (
	DefaultAlpha        = 0.9
	DefaultRounds       = 10
	DefaultDegree       = 2
	DefaultDelta        = 1e-9
	DefaultMaxModelSize = 80.0 // MiB
	DefaultDataInit     = false
)

// Inference defaults
const (
	DefaultEstimationIters = 1000
	DefaultParticleCount   = 10000
	DefaultStepDamping     = 1.0
)

// Budget accounting
const (
	// BudgetTolerance is the floating tolerance when checking that the
	// per-round partition sums back to the global budget.
	BudgetTolerance = 1e-9
)

// Server defaults
const (
	DefaultServerPort    = 8080
	DefaultMetricsPath   = "/metrics"
	DefaultReadTimeout   = 30 * time.Second
	DefaultWriteTimeout  = 10 * time.Minute
	DefaultRequestLimit  = 1 << 20 // 1 MiB request bodies
)

// Environment variable prefixes
const (
	EnvPrefix = "PRIVSYNTH"
)
