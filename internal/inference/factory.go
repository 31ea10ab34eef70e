package inference

import (
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/privsynth/pkg/constants"
	"github.com/inferloop/privsynth/pkg/errors"
	"github.com/inferloop/privsynth/pkg/interfaces"
	"github.com/inferloop/privsynth/pkg/models"
)

// EngineConfig selects and configures an estimator engine.
type EngineConfig struct {
	Type     string          `json:"type"`
	Factored *FactoredConfig `json:"factored,omitempty"`
	Particle *ParticleConfig `json:"particle,omitempty"`
}

// EngineCreateFunc builds an engine instance for a domain.
type EngineCreateFunc func(domain *models.Domain, config *EngineConfig, logger *logrus.Logger) (interfaces.Estimator, error)

// Factory creates estimator engine instances by type name.
type Factory struct {
	creators map[string]EngineCreateFunc
	mu       sync.RWMutex
	logger   *logrus.Logger
}

// NewFactory creates an engine factory with the default engine types
// registered.
func NewFactory(logger *logrus.Logger) *Factory {
	if logger == nil {
		logger = logrus.New()
	}

	factory := &Factory{
		creators: make(map[string]EngineCreateFunc),
		logger:   logger,
	}
	factory.registerDefaults()
	return factory
}

// CreateEngine creates an engine instance for the given domain.
func (f *Factory) CreateEngine(domain *models.Domain, config *EngineConfig) (interfaces.Estimator, error) {
	if config == nil {
		config = &EngineConfig{Type: constants.EngineTypeFactored}
	}

	f.mu.RLock()
	create, exists := f.creators[config.Type]
	f.mu.RUnlock()

	if !exists {
		return nil, errors.NewConfigurationError(errors.CodeUnknownEngine,
			fmt.Sprintf("engine type %q is not supported", config.Type))
	}

	engine, err := create(domain, config, f.logger)
	if err != nil {
		return nil, err
	}

	f.logger.WithFields(logrus.Fields{
		"engine_type": config.Type,
	}).Info("Created estimator engine")

	return engine, nil
}

// RegisterEngine registers a new engine type.
func (f *Factory) RegisterEngine(engineType string, create EngineCreateFunc) error {
	if engineType == "" {
		return errors.NewValidationError(errors.CodeUnknownEngine, "engine type cannot be empty")
	}
	if create == nil {
		return errors.NewValidationError(errors.CodeUnknownEngine, "engine create function cannot be nil")
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	f.creators[engineType] = create
	return nil
}

// IsSupported checks if an engine type is registered.
func (f *Factory) IsSupported(engineType string) bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	_, exists := f.creators[engineType]
	return exists
}

// AvailableEngines returns the registered engine type names.
func (f *Factory) AvailableEngines() []string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	types := make([]string, 0, len(f.creators))
	for engineType := range f.creators {
		types = append(types, engineType)
	}
	return types
}

func (f *Factory) registerDefaults() {
	f.RegisterEngine(constants.EngineTypeFactored, func(domain *models.Domain, config *EngineConfig, logger *logrus.Logger) (interfaces.Estimator, error) {
		return NewFactoredEngine(domain, config.Factored, logger)
	})
	f.RegisterEngine(constants.EngineTypeParticle, func(domain *models.Domain, config *EngineConfig, logger *logrus.Logger) (interfaces.Estimator, error) {
		return NewParticleEngine(domain, config.Particle, logger)
	})
}
