package service

import (
	"context"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/scrumbot/internal/models"
	"github.com/raphaelgruber/scrumbot/internal/train"
)

// RunStore persists training run state.
type RunStore interface {
	CreateTrainingRun(ctx context.Context, id, kind, dataset, outputDir string, cfg map[string]any, totalSteps int) error
	UpdateTrainingRunProgress(ctx context.Context, id string, step, totalSteps int, loss float64) error
	CompleteTrainingRun(ctx context.Context, id, status string, metrics map[string]float64) error
	FailTrainingRun(ctx context.Context, id, errMsg string) error
}

// Run is one tracked training invocation. It implements train.Observer.
type Run struct {
	ID          string
	Kind        string // "ner" or "intent"
	Status      string
	Dataset     string
	OutputDir   string
	Step        int
	TotalSteps  int
	Loss        float64
	Metrics     map[string]float64
	Error       string
	StartedAt   time.Time
	CompletedAt *time.Time

	mu              sync.RWMutex
	lastPersist     time.Time
	persistInterval time.Duration
	tracker         *RunTracker
}

// RunTracker tracks training runs in memory and, when a store is set,
// persists them with debounced progress writes.
type RunTracker struct {
	runs  map[string]*Run
	mu    sync.RWMutex
	store RunStore
	// ctx outlives cancellation of the training itself so the final state
	// is still written after Ctrl+C.
	ctx context.Context
}

// NewRunTracker creates a tracker. store may be nil.
func NewRunTracker(ctx context.Context, store RunStore) *RunTracker {
	return &RunTracker{
		runs:  make(map[string]*Run),
		store: store,
		ctx:   context.WithoutCancel(ctx),
	}
}

// Start registers a running run and persists it.
func (t *RunTracker) Start(kind, dataset, outputDir string, cfg map[string]any) (*Run, error) {
	run := &Run{
		ID:              uuid.New().String()[:8],
		Kind:            kind,
		Status:          models.RunRunning,
		Dataset:         dataset,
		OutputDir:       outputDir,
		StartedAt:       time.Now(),
		persistInterval: 5 * time.Second,
		tracker:         t,
	}

	if t.store != nil {
		if err := t.store.CreateTrainingRun(t.ctx, run.ID, kind, dataset, outputDir, cfg, 0); err != nil {
			return nil, err
		}
	}

	t.mu.Lock()
	t.runs[run.ID] = run
	t.mu.Unlock()

	slog.Info("training run created", "run_id", run.ID, "kind", kind, "dataset", dataset)
	return run, nil
}

// Get returns the run with id, or nil.
func (t *RunTracker) Get(id string) *Run {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.runs[id]
}

// List returns all runs, most recent first.
func (t *RunTracker) List() []*Run {
	t.mu.RLock()
	defer t.mu.RUnlock()

	runs := make([]*Run, 0, len(t.runs))
	for _, r := range t.runs {
		runs = append(runs, r)
	}
	slices.SortFunc(runs, func(a, b *Run) int {
		return b.StartedAt.Compare(a.StartedAt)
	})
	return runs
}

// OnStart records the planned number of steps.
func (r *Run) OnStart(totalSteps int) {
	r.mu.Lock()
	r.TotalSteps = totalSteps
	r.mu.Unlock()
}

// OnStep updates progress. The store is written at most every five seconds,
// every tenth step and on the last step.
func (r *Run) OnStep(p train.Progress) {
	r.mu.Lock()
	r.Step = p.Step
	r.TotalSteps = p.TotalSteps
	r.Loss = p.Loss

	store := r.tracker.store
	shouldPersist := store != nil && (time.Since(r.lastPersist) > r.persistInterval ||
		p.Step%10 == 0 || p.Step == p.TotalSteps)
	if shouldPersist {
		r.lastPersist = time.Now()
	}
	r.mu.Unlock()

	if shouldPersist {
		if err := store.UpdateTrainingRunProgress(r.tracker.ctx, r.ID, p.Step, p.TotalSteps, p.Loss); err != nil {
			slog.Warn("failed to persist run progress", "run_id", r.ID, "error", err)
		}
	}
}

// OnEvaluate keeps the latest evaluation metrics.
func (r *Run) OnEvaluate(ev train.Evaluation) {
	r.mu.Lock()
	r.Metrics = ev.Metrics
	r.mu.Unlock()
}

// OnCheckpoint logs the checkpoint directory.
func (r *Run) OnCheckpoint(dir string) {
	slog.Debug("checkpoint written", "run_id", r.ID, "dir", dir)
}

// Finish records the outcome of train.Loop.Run.
func (r *Run) Finish(res *train.Result, err error) {
	now := time.Now()
	r.mu.Lock()
	r.CompletedAt = &now
	switch {
	case err != nil:
		r.Status = models.RunFailed
		r.Error = err.Error()
	case res != nil && res.Cancelled:
		r.Status = models.RunCancelled
	default:
		r.Status = models.RunCompleted
	}
	if res != nil && res.Best != nil {
		r.Metrics = res.Best.Metrics
	}
	status, metrics := r.Status, r.Metrics
	r.mu.Unlock()

	store := r.tracker.store
	if status == models.RunFailed {
		if store != nil {
			if dbErr := store.FailTrainingRun(r.tracker.ctx, r.ID, err.Error()); dbErr != nil {
				slog.Warn("failed to persist run failure", "run_id", r.ID, "error", dbErr)
			}
		}
		slog.Error("training run failed", "run_id", r.ID, "error", err)
		return
	}

	if store != nil {
		if dbErr := store.CompleteTrainingRun(r.tracker.ctx, r.ID, status, metrics); dbErr != nil {
			slog.Warn("failed to persist run completion", "run_id", r.ID, "error", dbErr)
		}
	}
	slog.Info("training run finished", "run_id", r.ID, "status", status)
}

// Snapshot returns a thread-safe copy of run state.
func (r *Run) Snapshot() Run {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return Run{
		ID:          r.ID,
		Kind:        r.Kind,
		Status:      r.Status,
		Dataset:     r.Dataset,
		OutputDir:   r.OutputDir,
		Step:        r.Step,
		TotalSteps:  r.TotalSteps,
		Loss:        r.Loss,
		Metrics:     r.Metrics,
		Error:       r.Error,
		StartedAt:   r.StartedAt,
		CompletedAt: r.CompletedAt,
	}
}

var _ train.Observer = (*Run)(nil)
