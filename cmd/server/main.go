package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"

	"github.com/medipatient-api-server/internal/api"
	"github.com/medipatient-api-server/internal/config"
	"github.com/medipatient-api-server/internal/domain"
	"github.com/medipatient-api-server/internal/history"
	"github.com/medipatient-api-server/internal/service"
	"github.com/medipatient-api-server/pkg/model"
	"github.com/medipatient-api-server/pkg/reviewer"
)

func main() {
	// Load configuration
	configManager, err := config.NewManager()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Validate configuration
	if err := configManager.Validate(); err != nil {
		log.Fatalf("Configuration validation failed: %v", err)
	}

	cfg := configManager.GetConfig()
	logger := newLogger(cfg.Logging)

	logger.WithFields(logrus.Fields{
		"host":        cfg.Server.Host,
		"port":        cfg.Server.Port,
		"environment": cfg.Server.Environment,
	}).Info("Starting MediPatient API server")

	// Load classifier artifacts. Without them the pipeline still runs in
	// a degraded, vitals-only mode unless the deployment requires them.
	var handle domain.ModelHandle
	var schema []string
	var labels map[int]string
	artifacts, err := model.NewStore(cfg.Model, logger).Load()
	if err != nil {
		if cfg.Model.RequireArtifact {
			logger.WithError(err).Fatal("Classifier artifacts are required but could not be loaded")
		}
		logger.WithError(err).Warn("Classifier artifacts unavailable, serving degraded diagnoses")
	} else {
		handle = artifacts.Handle
		schema = artifacts.Schema
		labels = artifacts.Labels
	}

	// Clinical reviewer is optional; without an API key the orchestrator
	// produces classifier-only diagnoses.
	var clinicalReviewer domain.ClinicalReviewer
	client := reviewer.NewClient(cfg.Reviewer, logger)
	if client.Available() {
		resilient, err := reviewer.NewResilient(client, cfg.Cache, logger)
		if err != nil {
			logger.WithError(err).Fatal("Failed to initialize reviewer client")
		}
		defer resilient.Close()
		clinicalReviewer = resilient
	} else {
		logger.Warn("Reviewer API key not configured, running without clinical review")
	}

	store := openHistoryStore(cfg.Database, logger)
	if store != nil {
		defer store.Close()
	}

	classifier := service.NewClassifierAdapter(logger, handle, schema, labels)
	orchestrator := service.NewOrchestrator(logger, classifier, clinicalReviewer)

	server := api.NewServer(configManager, logger, orchestrator, store)

	// Setup graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info("Shutdown signal received, gracefully shutting down...")
		cancel()
	}()

	if err := server.Start(ctx); err != nil {
		logger.WithError(err).Fatal("Server failed")
	}

	logger.Info("Server stopped")
}

func newLogger(cfg domain.LoggingConfig) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Format == "text" {
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
	return logger
}

// openHistoryStore builds the configured diagnosis history backend. An
// empty driver disables persistence entirely.
func openHistoryStore(cfg domain.DatabaseConfig, logger *logrus.Logger) history.Store {
	switch cfg.Driver {
	case "sqlite":
		store, err := history.NewSQLiteStore(cfg.SQLitePath)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open SQLite history store")
		}
		logger.WithField("path", cfg.SQLitePath).Info("Diagnosis history enabled (sqlite)")
		return store
	case "postgres":
		store, err := history.NewPostgresStoreFromURL(cfg.PostgresURL)
		if err != nil {
			logger.WithError(err).Fatal("Failed to open PostgreSQL history store")
		}
		logger.Info("Diagnosis history enabled (postgres)")
		return store
	default:
		logger.Info("Diagnosis history disabled")
		return nil
	}
}
