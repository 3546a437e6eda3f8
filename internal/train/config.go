package train

import (
	"fmt"
)

// EvalStrategy selects when the validation set is scored.
type EvalStrategy string

const (
	EvalEpoch EvalStrategy = "epoch"
	EvalSteps EvalStrategy = "steps"
	EvalNo    EvalStrategy = "no"
)

// Config holds the hyperparameters of a run.
type Config struct {
	Epochs       int
	BatchSize    int
	LearningRate float64
	WeightDecay  float64

	EvalStrategy EvalStrategy
	// EvalSteps is the step interval for EvalSteps.
	EvalSteps int
	Seed      uint64

	// OutputDir receives checkpoints and the final artifact. Empty disables
	// all writes.
	OutputDir       string
	SaveCheckpoints bool
	LoadBestAtEnd   bool

	// LoggingSteps is the interval of loss log lines; 0 logs once per epoch.
	LoggingSteps int
	// RunID names the run in artifacts; a UUID is generated when empty.
	RunID string
}

// DefaultConfig mirrors the reference run: 5 epochs, batch 8, weight decay
// 0.01, evaluation and checkpoint every epoch, best model kept.
func DefaultConfig() Config {
	return Config{
		Epochs:          5,
		BatchSize:       8,
		LearningRate:    0.05,
		WeightDecay:     0.01,
		EvalStrategy:    EvalEpoch,
		Seed:            42,
		SaveCheckpoints: true,
		LoadBestAtEnd:   true,
		LoggingSteps:    50,
	}
}

// Validate reports the first invalid setting.
func (c Config) Validate() error {
	switch {
	case c.Epochs < 1:
		return fmt.Errorf("epochs must be at least 1, got %d", c.Epochs)
	case c.BatchSize < 1:
		return fmt.Errorf("batch size must be at least 1, got %d", c.BatchSize)
	case c.LearningRate <= 0:
		return fmt.Errorf("learning rate must be positive, got %v", c.LearningRate)
	case c.WeightDecay < 0:
		return fmt.Errorf("weight decay must not be negative, got %v", c.WeightDecay)
	}
	switch c.EvalStrategy {
	case EvalEpoch, EvalNo:
	case EvalSteps:
		if c.EvalSteps < 1 {
			return fmt.Errorf("eval steps must be at least 1 with the %q strategy", EvalSteps)
		}
	default:
		return fmt.Errorf("unknown evaluation strategy %q", c.EvalStrategy)
	}
	if c.SaveCheckpoints && c.OutputDir == "" {
		return fmt.Errorf("checkpoints need an output directory")
	}
	if c.LoadBestAtEnd && c.EvalStrategy == EvalNo {
		return fmt.Errorf("loading the best model needs evaluation")
	}
	return nil
}
