// Package cli provides the command-line interface for scrumbot.
package cli

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/scrumbot/internal/config"
	"github.com/raphaelgruber/scrumbot/internal/db"
	"github.com/raphaelgruber/scrumbot/internal/llm"
	"github.com/raphaelgruber/scrumbot/internal/metrics"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	verbose   bool
	jsonOut   bool
	showStats bool

	cfg       config.Config
	logger    *slog.Logger
	collector *metrics.Collector
	closeLog  func() error

	// Lazy-initialized store and LLM
	dbClient *db.Client
	llmModel *llm.Model
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "scrumbot",
	Short: "Standup field extraction and scrum assistant",
	Long: `Scrumbot trains and serves a token classifier that pulls structured fields
(yesterday, today, blockers, report, date) out of free-text standup updates,
plus an intent classifier, and stores standups, sprints and reports in SurrealDB.

LLM-backed commands generate sprint plans and written reports.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		cfg = config.Load()
		level := cfg.LogLevel
		if verbose {
			level = slog.LevelDebug
		}
		logger, closeLog = config.SetupLogger(cfg.LogFile, level)
		slog.SetDefault(logger)
		collector = metrics.NewCollector()
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if showStats && collector != nil {
			printStats(collector.Snapshot())
		}
		if dbClient != nil {
			if err := dbClient.Close(context.Background()); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: failed to close database: %v\n", err)
			}
			dbClient = nil
		}
		if closeLog != nil {
			_ = closeLog()
		}
	},
}

// openDB connects to SurrealDB on first use and initializes the schema.
func openDB(ctx context.Context) (*db.Client, error) {
	if dbClient != nil {
		return dbClient, nil
	}
	c, err := db.NewClient(ctx, db.ConfigFrom(cfg), logger, collector)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}
	if err := c.InitSchema(ctx); err != nil {
		_ = c.Close(ctx)
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	dbClient = c
	return dbClient, nil
}

// openLLM creates the configured chat model on first use.
func openLLM(ctx context.Context) (*llm.Model, error) {
	if llmModel != nil {
		return llmModel, nil
	}
	m, err := llm.NewModel(ctx, cfg, collector)
	if err != nil {
		return nil, fmt.Errorf("init model: %w", err)
	}
	llmModel = m
	return llmModel, nil
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
	rootCmd.PersistentFlags().BoolVar(&jsonOut, "json", false, "print results as JSON")
	rootCmd.PersistentFlags().BoolVar(&showStats, "stats", false, "print runtime statistics after the command")

	rootCmd.AddCommand(trainCmd)
	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(classifyCmd)
	rootCmd.AddCommand(standupCmd)
	rootCmd.AddCommand(sprintCmd)
	rootCmd.AddCommand(reportCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(runsCmd)
}
