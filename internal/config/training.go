package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"gopkg.in/yaml.v3"
)

// Training holds the hyperparameters of a training run as read from YAML.
// Zero values in the file keep the defaults.
type Training struct {
	Epochs             int     `yaml:"epochs"`
	BatchSize          int     `yaml:"batch_size"`
	LearningRate       float64 `yaml:"learning_rate"`
	WeightDecay        float64 `yaml:"weight_decay"`
	EvalStrategy       string  `yaml:"eval_strategy"`
	EvalSteps          int     `yaml:"eval_steps"`
	SaveCheckpoints    *bool   `yaml:"save_checkpoints"`
	LoadBestAtEnd      *bool   `yaml:"load_best_model_at_end"`
	LoggingSteps       int     `yaml:"logging_steps"`
	Seed               uint64  `yaml:"seed"`
	MaxLength          int     `yaml:"max_length"`
	ValidationFraction float64 `yaml:"validation_fraction"`
	Workers            int     `yaml:"workers"`
	VocabSize          int     `yaml:"vocab_size"`
	MinFrequency       int     `yaml:"min_frequency"`
	Context            int     `yaml:"context"`
}

// DefaultTraining returns the settings of the reference NER run.
func DefaultTraining() Training {
	yes := true
	return Training{
		Epochs:             5,
		BatchSize:          8,
		LearningRate:       0.05,
		WeightDecay:        0.01,
		EvalStrategy:       "epoch",
		SaveCheckpoints:    &yes,
		LoadBestAtEnd:      &yes,
		LoggingSteps:       50,
		Seed:               42,
		MaxLength:          128,
		ValidationFraction: 0.1,
		VocabSize:          8000,
		MinFrequency:       1,
		Context:            8,
	}
}

// IntentTraining returns the settings of the reference intent run: 6 epochs,
// batch 4 and an 80/20 split.
func IntentTraining() Training {
	t := DefaultTraining()
	t.Epochs = 6
	t.BatchSize = 4
	t.LoggingSteps = 10
	t.ValidationFraction = 0.2
	return t
}

// LoadTraining reads overrides from the YAML file at path on top of
// DefaultTraining. An empty path returns the defaults.
func LoadTraining(path string) (Training, error) {
	return LoadTrainingOver(DefaultTraining(), path)
}

// LoadTrainingOver is LoadTraining with a different base.
func LoadTrainingOver(t Training, path string) (Training, error) {
	if path == "" {
		return t, nil
	}
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		return t, fmt.Errorf("training config %s not found", path)
	}
	if err != nil {
		return t, fmt.Errorf("read training config: %w", err)
	}

	var file Training
	if err := yaml.Unmarshal(data, &file); err != nil {
		return t, fmt.Errorf("parse training config: %w", err)
	}
	t.merge(file)
	return t, t.Validate()
}

func (t *Training) merge(o Training) {
	if o.Epochs != 0 {
		t.Epochs = o.Epochs
	}
	if o.BatchSize != 0 {
		t.BatchSize = o.BatchSize
	}
	if o.LearningRate != 0 {
		t.LearningRate = o.LearningRate
	}
	if o.WeightDecay != 0 {
		t.WeightDecay = o.WeightDecay
	}
	if o.EvalStrategy != "" {
		t.EvalStrategy = o.EvalStrategy
	}
	if o.EvalSteps != 0 {
		t.EvalSteps = o.EvalSteps
	}
	if o.SaveCheckpoints != nil {
		t.SaveCheckpoints = o.SaveCheckpoints
	}
	if o.LoadBestAtEnd != nil {
		t.LoadBestAtEnd = o.LoadBestAtEnd
	}
	if o.LoggingSteps != 0 {
		t.LoggingSteps = o.LoggingSteps
	}
	if o.Seed != 0 {
		t.Seed = o.Seed
	}
	if o.MaxLength != 0 {
		t.MaxLength = o.MaxLength
	}
	if o.ValidationFraction != 0 {
		t.ValidationFraction = o.ValidationFraction
	}
	if o.Workers != 0 {
		t.Workers = o.Workers
	}
	if o.VocabSize != 0 {
		t.VocabSize = o.VocabSize
	}
	if o.MinFrequency != 0 {
		t.MinFrequency = o.MinFrequency
	}
	if o.Context != 0 {
		t.Context = o.Context
	}
}

// Validate checks the values the trainer does not validate itself.
func (t Training) Validate() error {
	switch {
	case t.MaxLength < 1:
		return fmt.Errorf("max_length must be at least 1, got %d", t.MaxLength)
	case t.ValidationFraction <= 0 || t.ValidationFraction >= 1:
		return fmt.Errorf("validation_fraction must be in (0,1), got %v", t.ValidationFraction)
	case t.VocabSize < 0:
		return fmt.Errorf("vocab_size must not be negative, got %d", t.VocabSize)
	}
	return nil
}

// Bool dereferences an optional flag.
func Bool(b *bool) bool { return b != nil && *b }
