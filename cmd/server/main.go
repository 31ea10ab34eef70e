package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/inferloop/privsynth/internal/server"
	"github.com/inferloop/privsynth/internal/storage"
	"github.com/inferloop/privsynth/pkg/models"
)

func main() {
	config := ParseFlags()

	logger := setupLogger(config.LogLevel, config.LogFormat)

	logger.WithFields(logrus.Fields{
		"version":   Version,
		"commit":    GitCommit,
		"buildDate": BuildDate,
	}).Info("Starting Differentially Private Synthesis Server")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	dataset, codec, err := loadDataset(ctx, config, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to load dataset")
	}

	srv, err := server.NewServer(&server.Config{
		Host: config.Host,
		Port: config.Port,
	}, dataset, codec, logger)
	if err != nil {
		logger.WithError(err).Fatal("Failed to create server")
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		if err := srv.Start(ctx); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("Server failed to start")
		}
	}()

	<-sigChan
	logger.Info("Shutdown signal received")

	if err := srv.Stop(context.Background()); err != nil {
		logger.WithError(err).Error("Server shutdown failed")
	}

	logger.Info("Server stopped")
}

func loadDataset(ctx context.Context, config *Config, logger *logrus.Logger) (*models.Dataset, storage.Codec, error) {
	if config.PostgresDSN != "" {
		return storage.LoadPostgres(ctx, &storage.PostgresConfig{
			DSN:     config.PostgresDSN,
			Table:   config.Table,
			Columns: config.ColumnList(),
		}, logger)
	}
	return storage.LoadCSV(config.InputFile, logger)
}

func setupLogger(level, format string) *logrus.Logger {
	logger := logrus.New()

	logLevel, err := logrus.ParseLevel(level)
	if err != nil {
		logLevel = logrus.InfoLevel
	}
	logger.SetLevel(logLevel)

	if format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}
