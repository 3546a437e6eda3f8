package models

import (
	"time"

	surrealmodels "github.com/surrealdb/surrealdb.go/pkg/models"
)

// Training run states.
const (
	RunRunning   = "running"
	RunCompleted = "completed"
	RunCancelled = "cancelled"
	RunFailed    = "failed"
)

// TrainingRun is a persisted record of one training invocation.
type TrainingRun struct {
	ID          surrealmodels.RecordID `json:"id"`
	Kind        string                 `json:"kind"` // "ner" or "intent"
	Status      string                 `json:"status"`
	Dataset     string                 `json:"dataset"`
	OutputDir   string                 `json:"output_dir"`
	Config      map[string]any         `json:"config,omitempty"`
	TotalSteps  int                    `json:"total_steps"`
	Step        int                    `json:"step"`
	Loss        *float64               `json:"loss,omitempty"`
	Metrics     map[string]float64     `json:"metrics,omitempty"`
	Error       *string                `json:"error,omitempty"`
	StartedAt   time.Time              `json:"started_at"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
}
