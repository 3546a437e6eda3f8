// Package tools provides MCP tool handlers and registration.
package tools

import (
	"context"
	"log/slog"

	"github.com/raphaelgruber/scrumbot/internal/intent"
	"github.com/raphaelgruber/scrumbot/internal/models"
	"github.com/raphaelgruber/scrumbot/internal/ner"
	"github.com/raphaelgruber/scrumbot/internal/service"
)

// Extractor runs the field extractor over several texts.
type Extractor interface {
	ExtractBatch(ctx context.Context, texts []string) []ner.Result
}

// Classifier predicts message intents.
type Classifier interface {
	Classify(ctx context.Context, text string) (intent.Prediction, error)
}

// StandupProcessor runs the standup pipeline.
type StandupProcessor interface {
	Process(ctx context.Context, in service.StandupInput) (*service.StandupResult, error)
}

// SprintGenerator plans and stores sprints.
type SprintGenerator interface {
	Generate(ctx context.Context, projectID, name, description string) (*service.SprintResult, error)
}

// ReportGenerator writes and stores reports.
type ReportGenerator interface {
	Generate(ctx context.Context, kind, id string) (string, error)
}

// SprintLister lists stored sprints.
type SprintLister interface {
	ListSprints(ctx context.Context) ([]models.SprintRow, error)
}

// Dependencies holds shared services for tool handlers.
// Passed to handler factories via closure capture. A nil field disables
// the tools that need it.
type Dependencies struct {
	Extractor  Extractor
	Classifier Classifier
	Standups   StandupProcessor
	Sprints    SprintGenerator
	Reports    ReportGenerator
	Store      SprintLister
	Logger     *slog.Logger
}

func (d *Dependencies) logger() *slog.Logger {
	if d == nil || d.Logger == nil {
		return slog.Default()
	}
	return d.Logger
}
