package cli

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/raphaelgruber/scrumbot/internal/align"
	"github.com/raphaelgruber/scrumbot/internal/config"
	"github.com/raphaelgruber/scrumbot/internal/dataset"
	"github.com/raphaelgruber/scrumbot/internal/intent"
	"github.com/raphaelgruber/scrumbot/internal/labels"
	"github.com/raphaelgruber/scrumbot/internal/metrics"
	"github.com/raphaelgruber/scrumbot/internal/model"
	"github.com/raphaelgruber/scrumbot/internal/tokenizer"
	"github.com/raphaelgruber/scrumbot/internal/train"
)

// trainJob describes one training invocation.
type trainJob struct {
	Data        string
	OutputDir   string
	RunID       string
	Settings    config.Training
	SkipInvalid bool

	Logger   *slog.Logger
	Observer train.Observer
	Metrics  *metrics.Collector
}

// loopConfig maps file settings onto the trainer configuration.
func loopConfig(s config.Training, outputDir, runID string) train.Config {
	return train.Config{
		Epochs:          s.Epochs,
		BatchSize:       s.BatchSize,
		LearningRate:    s.LearningRate,
		WeightDecay:     s.WeightDecay,
		EvalStrategy:    train.EvalStrategy(s.EvalStrategy),
		EvalSteps:       s.EvalSteps,
		Seed:            s.Seed,
		OutputDir:       outputDir,
		SaveCheckpoints: config.Bool(s.SaveCheckpoints) && outputDir != "",
		LoadBestAtEnd:   config.Bool(s.LoadBestAtEnd) && s.EvalStrategy != string(train.EvalNo),
		LoggingSteps:    s.LoggingSteps,
		RunID:           runID,
	}
}

func (j trainJob) options() []train.Option {
	opts := []train.Option{train.WithMetrics(j.Metrics)}
	if j.Logger != nil {
		opts = append(opts, train.WithLogger(j.Logger))
	}
	if j.Observer != nil {
		opts = append(opts, train.WithObserver(j.Observer))
	}
	return opts
}

// runNERTraining loads a tagged dataset, builds a vocabulary from the
// training split and fits a window tagger.
func runNERTraining(ctx context.Context, j trainJob) (*train.Result, error) {
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := j.Settings

	examples, report, err := dataset.LoadFile(j.Data, dataset.LoadOptions{SkipInvalid: j.SkipInvalid, Logger: logger})
	if err != nil {
		return nil, err
	}
	if len(report.Rejected) > 0 {
		logger.Warn("skipped invalid examples", "rejected", len(report.Rejected), "accepted", report.Accepted)
	}

	trainSet, validation, err := dataset.Split(examples, s.ValidationFraction, s.Seed)
	if err != nil {
		return nil, fmt.Errorf("split dataset: %w", err)
	}

	words := make([][]string, len(trainSet))
	for i, ex := range trainSet {
		words[i] = ex.Tokens
	}
	tok, err := tokenizer.New(tokenizer.BuildVocab(words, tokenizer.VocabOptions{MaxSize: s.VocabSize, MinFrequency: s.MinFrequency}))
	if err != nil {
		return nil, fmt.Errorf("build tokenizer: %w", err)
	}

	scheme := labels.Default()
	aligner, err := align.New(tok, scheme, s.MaxLength)
	if err != nil {
		return nil, err
	}
	mapOpts := align.MapOptions{SkipInvalid: j.SkipInvalid, Logger: logger}
	alignedTrain, trainReport, err := aligner.MapWith(trainSet, mapOpts)
	if err != nil {
		return nil, fmt.Errorf("align training split: %w", err)
	}
	alignedVal, valReport, err := aligner.MapWith(validation, mapOpts)
	if err != nil {
		return nil, fmt.Errorf("align validation split: %w", err)
	}
	if n := len(trainReport.Rejected) + len(valReport.Rejected); n > 0 {
		logger.Warn("skipped unalignable examples", "rejected", n)
	}

	m, err := model.NewWindowTagger(tok.VocabSize(), scheme.Len(), model.WithContext(s.Context))
	if err != nil {
		return nil, err
	}

	tc, err := train.Acquire(train.DeviceCPU, s.Workers)
	if err != nil {
		return nil, err
	}
	defer tc.Release()

	tr, err := train.NewTrainer(loopConfig(s, j.OutputDir, j.RunID), m, tok, scheme, s.MaxLength, j.options()...)
	if err != nil {
		return nil, err
	}
	logger.Info("ner dataset ready", "train", len(alignedTrain), "validation", len(alignedVal), "vocab", tok.VocabSize())
	return tr.Run(ctx, tc, alignedTrain, alignedVal)
}

// runIntentTraining loads a text,label CSV and fits a bag classifier.
func runIntentTraining(ctx context.Context, j trainJob) (*train.Result, error) {
	logger := j.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s := j.Settings

	examples, err := intent.LoadCSVFile(j.Data)
	if err != nil {
		return nil, err
	}
	trainSet, validation, err := dataset.Split(examples, s.ValidationFraction, s.Seed)
	if err != nil {
		return nil, fmt.Errorf("split dataset: %w", err)
	}

	corpus := make([][]string, len(trainSet))
	for i, ex := range trainSet {
		corpus[i], _ = tokenizer.Words(ex.Text)
	}
	tok, err := tokenizer.New(tokenizer.BuildVocab(corpus, tokenizer.VocabOptions{MaxSize: s.VocabSize, MinFrequency: s.MinFrequency}))
	if err != nil {
		return nil, fmt.Errorf("build tokenizer: %w", err)
	}

	m, err := model.NewBagClassifier(tok.VocabSize(), len(intent.Labels()))
	if err != nil {
		return nil, err
	}

	tc, err := train.Acquire(train.DeviceCPU, s.Workers)
	if err != nil {
		return nil, err
	}
	defer tc.Release()

	tr, err := intent.NewTrainer(loopConfig(s, j.OutputDir, j.RunID), m, tok, s.MaxLength, j.options()...)
	if err != nil {
		return nil, err
	}
	logger.Info("intent dataset ready", "train", len(trainSet), "validation", len(validation), "vocab", tok.VocabSize())
	return tr.Run(ctx, tc, trainSet, validation)
}
