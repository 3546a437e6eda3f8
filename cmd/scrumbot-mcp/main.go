// Package main provides the entry point for the scrumbot MCP server.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/raphaelgruber/scrumbot/internal/config"
	"github.com/raphaelgruber/scrumbot/internal/db"
	"github.com/raphaelgruber/scrumbot/internal/intent"
	"github.com/raphaelgruber/scrumbot/internal/llm"
	"github.com/raphaelgruber/scrumbot/internal/metrics"
	"github.com/raphaelgruber/scrumbot/internal/ner"
	"github.com/raphaelgruber/scrumbot/internal/server"
	"github.com/raphaelgruber/scrumbot/internal/service"
	"github.com/raphaelgruber/scrumbot/internal/tools"
)

const version = "0.1.0"

func main() {
	cfg := config.Load()

	// Setup logger (dual output: stderr text + file JSON)
	logger, cleanup := config.SetupLogger(cfg.LogFile, cfg.LogLevel)
	defer cleanup()

	logger.Info("scrumbot-mcp starting",
		"version", version,
		"surrealdb_url", cfg.SurrealDBURL,
		"llm_provider", cfg.LLMProvider,
		"ner_model", cfg.NERModelDir,
		"intent_model", cfg.IntentModelDir,
	)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGTERM, syscall.SIGINT)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	collector := metrics.NewCollector()
	deps := &tools.Dependencies{Logger: logger}

	// Models are required; a missing artifact is a startup error.
	pipeline, err := ner.Load(cfg.NERModelDir, ner.Options{
		Concurrency: cfg.InferenceConcurrency,
		Logger:      logger,
		Metrics:     collector,
	})
	if err != nil {
		logger.Error("failed to load field extractor", "error", err)
		os.Exit(1)
	}
	classifier, err := intent.Load(cfg.IntentModelDir, intent.Options{Logger: logger, Metrics: collector})
	if err != nil {
		logger.Error("failed to load intent classifier", "error", err)
		os.Exit(1)
	}
	deps.Extractor = pipeline
	deps.Classifier = classifier
	deps.Standups = service.NewStandupService(classifier, pipeline, nil)

	// The store and the LLM are optional; their tools report "not configured".
	dbClient, err := db.NewClient(ctx, db.ConfigFrom(cfg), logger, collector)
	if err != nil {
		logger.Warn("database unavailable, store tools disabled", "error", err)
	} else {
		defer func() {
			logger.Info("closing database connection")
			_ = dbClient.Close(context.Background())
		}()
		if err := dbClient.InitSchema(ctx); err != nil {
			logger.Error("failed to initialize database schema", "error", err)
			os.Exit(1)
		}
		deps.Store = dbClient
		deps.Standups = service.NewStandupService(classifier, pipeline, dbClient)
	}

	model, err := llm.NewModel(ctx, cfg, collector)
	if err != nil {
		logger.Warn("LLM unavailable, generation tools disabled", "error", err)
	} else if dbClient != nil {
		logger.Info("LLM initialized", "model", model.Model())
		deps.Sprints = service.NewSprintService(dbClient, model, cfg.DefaultProject)
		deps.Reports = service.NewReportService(dbClient, model, cfg.DefaultProject)
	}

	srv := server.New(version, logger, collector)
	srv.Setup()
	tools.RegisterAll(srv.MCPServer(), deps)
	logger.Info("tools registered", "count", tools.ToolCount)

	logger.Info("server ready, awaiting connections")

	// Run server (blocks until disconnect or context cancelled)
	if err := srv.Run(ctx); err != nil && ctx.Err() == nil {
		logger.Error("server error", "error", err)
		os.Exit(1)
	}

	snap := collector.Snapshot()
	logger.Info("shutdown complete", "uptime_seconds", snap.UptimeSeconds)
}
