package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/sirupsen/logrus"

	"github.com/inferloop/privsynth/internal/observability/metrics"
	"github.com/inferloop/privsynth/internal/storage"
	"github.com/inferloop/privsynth/pkg/constants"
	"github.com/inferloop/privsynth/pkg/models"
)

// Server exposes a loaded private dataset over a synthesis HTTP API. The
// dataset is fixed at startup; each request runs the mechanism against it
// with request-supplied privacy parameters.
type Server struct {
	httpServer *http.Server
	router     *mux.Router
	logger     *logrus.Logger
	config     *Config
	handlers   *Handlers
	metrics    *metrics.MechanismMetrics
}

// Config contains server configuration.
type Config struct {
	Host            string        `yaml:"host" json:"host"`
	Port            int           `yaml:"port" json:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout" json:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" json:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" json:"shutdown_timeout"`
	MaxRequestSize  int64         `yaml:"max_request_size" json:"max_request_size"`
}

// NewServer creates the HTTP server around a loaded dataset.
func NewServer(config *Config, dataset *models.Dataset, codec storage.Codec, logger *logrus.Logger) (*Server, error) {
	if config == nil {
		config = getDefaultConfig()
	}
	applyConfigDefaults(config)
	if logger == nil {
		logger = logrus.New()
	}
	if dataset == nil || dataset.Records() == 0 {
		return nil, fmt.Errorf("server needs a non-empty dataset")
	}

	mm := metrics.NewMechanismMetrics(logger)
	handlers := NewHandlers(dataset, codec, mm, logger)

	server := &Server{
		router:   mux.NewRouter(),
		logger:   logger,
		config:   config,
		handlers: handlers,
		metrics:  mm,
	}

	server.setupMiddleware()
	server.setupRoutes()

	server.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", config.Host, config.Port),
		Handler:      server.router,
		ReadTimeout:  config.ReadTimeout,
		WriteTimeout: config.WriteTimeout,
		IdleTimeout:  config.IdleTimeout,
	}

	return server, nil
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start(ctx context.Context) error {
	s.logger.WithFields(logrus.Fields{
		"host": s.config.Host,
		"port": s.config.Port,
	}).Info("Starting HTTP server")

	return s.httpServer.ListenAndServe()
}

// Stop gracefully stops the HTTP server.
func (s *Server) Stop(ctx context.Context) error {
	s.logger.Info("Shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(ctx, s.config.ShutdownTimeout)
	defer cancel()

	if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
		s.logger.Errorf("Error shutting down HTTP server: %v", err)
		return err
	}

	s.logger.Info("HTTP server stopped")
	return nil
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/health", s.handlers.Health).Methods("GET")
	s.router.HandleFunc("/version", s.handlers.Version).Methods("GET")
	s.router.Handle(constants.DefaultMetricsPath, s.metrics.Handler()).Methods("GET")

	apiRouter := s.router.PathPrefix("/api/v1").Subrouter()
	apiRouter.HandleFunc("/domain", s.handlers.GetDomain).Methods("GET")
	apiRouter.HandleFunc("/engines", s.handlers.ListEngines).Methods("GET")
	apiRouter.HandleFunc("/synthesize", s.handlers.Synthesize).Methods("POST")

	s.router.NotFoundHandler = http.HandlerFunc(s.handlers.NotFound)
}

func (s *Server) setupMiddleware() {
	s.router.Use(s.requestIDMiddleware)
	s.router.Use(s.loggingMiddleware)
	s.router.Use(s.recoveryMiddleware)
	s.router.Use(s.requestSizeLimitMiddleware)
}

// GetRouter returns the HTTP router.
func (s *Server) GetRouter() *mux.Router {
	return s.router
}

func applyConfigDefaults(config *Config) {
	defaults := getDefaultConfig()
	if config.Host == "" {
		config.Host = defaults.Host
	}
	if config.Port == 0 {
		config.Port = defaults.Port
	}
	if config.ReadTimeout == 0 {
		config.ReadTimeout = defaults.ReadTimeout
	}
	if config.WriteTimeout == 0 {
		config.WriteTimeout = defaults.WriteTimeout
	}
	if config.IdleTimeout == 0 {
		config.IdleTimeout = defaults.IdleTimeout
	}
	if config.ShutdownTimeout == 0 {
		config.ShutdownTimeout = defaults.ShutdownTimeout
	}
	if config.MaxRequestSize == 0 {
		config.MaxRequestSize = defaults.MaxRequestSize
	}
}

func getDefaultConfig() *Config {
	return &Config{
		Host:            "0.0.0.0",
		Port:            constants.DefaultServerPort,
		ReadTimeout:     constants.DefaultReadTimeout,
		WriteTimeout:    constants.DefaultWriteTimeout,
		IdleTimeout:     60 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		MaxRequestSize:  constants.DefaultRequestLimit,
	}
}
