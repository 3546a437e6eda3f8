// Package train runs mini-batch optimization of the models in package model,
// scores them on held-out data and persists checkpoints and final artifacts.
package train

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/raphaelgruber/scrumbot/internal/metrics"
	"github.com/raphaelgruber/scrumbot/internal/optim"
)

// Task is a model bound to its training and validation data.
type Task interface {
	NumExamples() int
	NumValidation() int

	// Params returns the live parameter matrix; Cols is its row width.
	Params() []float64
	Cols() int
	NoDecayRows() []int

	// Gradient adds the summed loss gradient of training example i to g and
	// returns the summed loss and the number of labelled positions. It is
	// called concurrently for different examples.
	Gradient(i int, g *optim.Grad) (loss float64, n int, err error)

	// Evaluate scores the current parameters on the validation data.
	Evaluate(ctx context.Context, tc *Context) (Evaluation, error)

	// Save writes the current parameters as an artifact to dir.
	Save(dir string, info SaveInfo) error
}

// ExampleNamer is implemented by tasks that know where their training
// examples came from. Gradient errors are prefixed with ExampleName(i)
// instead of the position i in the shuffled split.
type ExampleNamer interface {
	ExampleName(i int) string
}

func exampleName(task Task, i int) string {
	if n, ok := task.(ExampleNamer); ok {
		return n.ExampleName(i)
	}
	return fmt.Sprintf("example %d", i)
}

// SaveInfo is passed to Task.Save.
type SaveInfo struct {
	RunID      string
	Step       int
	Evaluation *Evaluation
}

// Evaluation is the outcome of one validation pass.
type Evaluation struct {
	Step  int
	Epoch int
	Loss  float64
	// Score selects the best checkpoint; higher is better.
	Score   float64
	Metrics map[string]float64
}

// Result summarizes a run.
type Result struct {
	RunID          string
	Steps          int
	Epochs         int
	TrainLoss      float64
	Evaluations    []Evaluation
	Best           *Evaluation
	BestCheckpoint string
	Checkpoints    []string
	// ArtifactDir is where the final parameters were written, empty when
	// the config has no output directory.
	ArtifactDir string
	Cancelled   bool
}

// Loop drives a Task through the configured epochs.
type Loop struct {
	cfg      Config
	logger   *slog.Logger
	observer Observer
	metrics  *metrics.Collector
}

// Option configures a Loop or Trainer.
type Option func(*Loop)

// WithLogger sets the logger; the default is slog.Default().
func WithLogger(l *slog.Logger) Option { return func(lp *Loop) { lp.logger = l } }

// WithObserver registers a progress observer.
func WithObserver(o Observer) Option { return func(lp *Loop) { lp.observer = o } }

// WithMetrics records step and evaluation timings.
func WithMetrics(c *metrics.Collector) Option { return func(lp *Loop) { lp.metrics = c } }

// NewLoop returns a loop for cfg.
func NewLoop(cfg Config, opts ...Option) *Loop {
	l := &Loop{cfg: cfg, logger: slog.Default(), observer: NopObserver{}}
	for _, o := range opts {
		o(l)
	}
	if l.logger == nil {
		l.logger = slog.Default()
	}
	if l.observer == nil {
		l.observer = NopObserver{}
	}
	return l
}

// Config returns the loop configuration.
func (l *Loop) Config() Config { return l.cfg }

type runState struct {
	res        *Result
	bestParams []float64
}

// Run trains task. Cancelling ctx stops the run between batches; the best
// evaluated parameters (or the current ones when nothing was evaluated)
// are then written and Run returns a cancelled Result with a nil error.
func (l *Loop) Run(ctx context.Context, tc *Context, task Task) (*Result, error) {
	if err := tc.Err(); err != nil {
		return nil, err
	}
	cfg := l.cfg
	if err := cfg.Validate(); err != nil {
		return nil, &TrainingError{Err: err}
	}
	if cfg.RunID == "" {
		cfg.RunID = uuid.New().String()
	}

	n := task.NumExamples()
	if n == 0 {
		return nil, &TrainingError{Err: ErrNoTrainingData}
	}
	if cfg.EvalStrategy != EvalNo && task.NumValidation() == 0 {
		return nil, &TrainingError{Err: ErrEmptyValidation}
	}

	params := task.Params()
	adamCfg := optim.DefaultAdamW(cfg.WeightDecay)
	adamCfg.NoDecay = task.NoDecayRows()
	opt, err := optim.NewAdamW(len(params), task.Cols(), adamCfg)
	if err != nil {
		return nil, &TrainingError{Err: err}
	}

	batches := (n + cfg.BatchSize - 1) / cfg.BatchSize
	total := batches * cfg.Epochs
	sched := optim.LinearSchedule{Base: cfg.LearningRate, Total: total}
	rng := rand.New(rand.NewPCG(cfg.Seed, cfg.Seed^0xda3e39cb94b95bdb))

	st := &runState{res: &Result{RunID: cfg.RunID}}
	logEvery := cfg.LoggingSteps
	if logEvery <= 0 {
		logEvery = batches
	}

	l.logger.Info("training started",
		"run_id", cfg.RunID,
		"device", tc.Device(),
		"workers", tc.Workers(),
		"examples", n,
		"validation", task.NumValidation(),
		"epochs", cfg.Epochs,
		"batch_size", cfg.BatchSize,
		"steps", total)
	l.observer.OnStart(total)

	step := 0
	var windowLoss float64
	var windowSteps int
	for epoch := 1; epoch <= cfg.Epochs; epoch++ {
		perm := rng.Perm(n)
		for b := 0; b < batches; b++ {
			if ctx.Err() != nil {
				return l.finishCancelled(cfg, task, st, step)
			}

			idx := perm[b*cfg.BatchSize : min((b+1)*cfg.BatchSize, n)]
			start := time.Now()
			grad, loss, count, err := l.batchGradient(ctx, tc, task, idx)
			if err != nil {
				if ctx.Err() != nil {
					return l.finishCancelled(cfg, task, st, step)
				}
				return nil, &TrainingError{Epoch: epoch, Batch: b, Err: err}
			}
			if count == 0 {
				return nil, &TrainingError{Epoch: epoch, Batch: b, Err: ErrDegenerateBatch}
			}

			grad.Scale(1 / float64(count))
			lr := sched.Rate(step)
			if err := opt.Step(params, grad, lr); err != nil {
				return nil, &TrainingError{Epoch: epoch, Batch: b, Err: err}
			}
			step++
			l.metrics.Since(metrics.OpTrainStep, start)

			mean := loss / float64(count)
			st.res.TrainLoss = mean
			windowLoss += mean
			windowSteps++
			l.observer.OnStep(Progress{
				Step: step, TotalSteps: total,
				Epoch: epoch, Epochs: cfg.Epochs,
				Loss: mean, LearningRate: lr,
			})
			if step%logEvery == 0 {
				l.logger.Info("train step", "step", step, "epoch", epoch, "loss", windowLoss/float64(windowSteps), "lr", lr)
				windowLoss, windowSteps = 0, 0
			}

			if cfg.EvalStrategy == EvalSteps && step%cfg.EvalSteps == 0 {
				if err := l.evaluate(ctx, tc, cfg, task, st, step, epoch); err != nil {
					if ctx.Err() != nil {
						return l.finishCancelled(cfg, task, st, step)
					}
					return nil, &TrainingError{Epoch: epoch, Batch: b, Err: err}
				}
			}
		}
		st.res.Epochs = epoch
		if cfg.EvalStrategy == EvalEpoch {
			if err := l.evaluate(ctx, tc, cfg, task, st, step, epoch); err != nil {
				if ctx.Err() != nil {
					return l.finishCancelled(cfg, task, st, step)
				}
				return nil, &TrainingError{Epoch: epoch, Batch: batches - 1, Err: err}
			}
		}
	}
	st.res.Steps = step

	if cfg.LoadBestAtEnd && st.bestParams != nil {
		copy(params, st.bestParams)
		l.logger.Info("loaded best parameters", "step", st.res.Best.Step, "score", st.res.Best.Score)
	}
	final := st.res.Best
	if !cfg.LoadBestAtEnd && len(st.res.Evaluations) > 0 {
		final = &st.res.Evaluations[len(st.res.Evaluations)-1]
	}
	if err := l.saveFinal(cfg, task, st, step, final); err != nil {
		return nil, &TrainingError{Err: err}
	}
	l.logger.Info("training finished", "run_id", cfg.RunID, "steps", step, "train_loss", st.res.TrainLoss)
	return st.res, nil
}

func (l *Loop) batchGradient(ctx context.Context, tc *Context, task Task, idx []int) (*optim.Grad, float64, int, error) {
	grads := make([]*optim.Grad, len(idx))
	losses := make([]float64, len(idx))
	counts := make([]int, len(idx))

	g, gctx := tc.Group(ctx)
	for j, i := range idx {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			gr := optim.NewGrad(task.Cols())
			loss, n, err := task.Gradient(i, gr)
			if err != nil {
				return fmt.Errorf("%s: %w", exampleName(task, i), err)
			}
			grads[j], losses[j], counts[j] = gr, loss, n
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, 0, err
	}

	// Merge in batch order so the sum does not depend on scheduling.
	total := optim.NewGrad(task.Cols())
	var loss float64
	var count int
	for j := range idx {
		total.Add(grads[j])
		loss += losses[j]
		count += counts[j]
	}
	return total, loss, count, nil
}

func (l *Loop) evaluate(ctx context.Context, tc *Context, cfg Config, task Task, st *runState, step, epoch int) error {
	start := time.Now()
	ev, err := task.Evaluate(ctx, tc)
	if err != nil {
		return fmt.Errorf("evaluate: %w", err)
	}
	l.metrics.Since(metrics.OpEvaluate, start)
	ev.Step, ev.Epoch = step, epoch
	st.res.Evaluations = append(st.res.Evaluations, ev)

	attrs := []any{"step", step, "epoch", epoch, "loss", ev.Loss, "score", ev.Score}
	for k, v := range ev.Metrics {
		attrs = append(attrs, k, v)
	}
	l.logger.Info("evaluation", attrs...)
	l.observer.OnEvaluate(ev)

	improved := st.res.Best == nil || ev.Score > st.res.Best.Score
	if improved {
		best := ev
		st.res.Best = &best
		params := task.Params()
		if st.bestParams == nil {
			st.bestParams = make([]float64, len(params))
		}
		copy(st.bestParams, params)
	}

	if cfg.SaveCheckpoints {
		dir := filepath.Join(cfg.OutputDir, fmt.Sprintf("checkpoint-%d", step))
		if err := task.Save(dir, SaveInfo{RunID: cfg.RunID, Step: step, Evaluation: &ev}); err != nil {
			return fmt.Errorf("save checkpoint: %w", err)
		}
		st.res.Checkpoints = append(st.res.Checkpoints, dir)
		if improved {
			st.res.BestCheckpoint = dir
		}
		l.logger.Info("checkpoint saved", "dir", dir, "best", improved)
		l.observer.OnCheckpoint(dir)
	}
	return nil
}

func (l *Loop) finishCancelled(cfg Config, task Task, st *runState, step int) (*Result, error) {
	st.res.Steps = step
	st.res.Cancelled = true
	if st.bestParams != nil {
		copy(task.Params(), st.bestParams)
	}
	l.logger.Warn("training cancelled", "run_id", cfg.RunID, "step", step, "restored_best", st.bestParams != nil)
	if err := l.saveFinal(cfg, task, st, step, st.res.Best); err != nil {
		return nil, &TrainingError{Err: errors.Join(context.Canceled, err)}
	}
	return st.res, nil
}

func (l *Loop) saveFinal(cfg Config, task Task, st *runState, step int, ev *Evaluation) error {
	if cfg.OutputDir == "" {
		return nil
	}
	if err := task.Save(cfg.OutputDir, SaveInfo{RunID: cfg.RunID, Step: step, Evaluation: ev}); err != nil {
		return fmt.Errorf("save artifact: %w", err)
	}
	st.res.ArtifactDir = cfg.OutputDir
	l.logger.Info("artifact saved", "dir", cfg.OutputDir)
	return nil
}
