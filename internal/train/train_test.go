package train

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/raphaelgruber/scrumbot/internal/align"
	"github.com/raphaelgruber/scrumbot/internal/artifact"
	"github.com/raphaelgruber/scrumbot/internal/dataset"
	"github.com/raphaelgruber/scrumbot/internal/labels"
	"github.com/raphaelgruber/scrumbot/internal/metrics"
	"github.com/raphaelgruber/scrumbot/internal/model"
	"github.com/raphaelgruber/scrumbot/internal/tokenizer"
)

var corpus = []dataset.Example{
	{Tokens: []string{"yesterday", "fixed", "bug"}, Labels: []string{"O", "B-YESTERDAY", "I-YESTERDAY"}},
	{Tokens: []string{"today", "write", "tests"}, Labels: []string{"O", "B-TODAY", "I-TODAY"}},
	{Tokens: []string{"blocked", "by", "ci"}, Labels: []string{"B-BLOCKERS", "I-BLOCKERS", "I-BLOCKERS"}},
	{Tokens: []string{"on", "monday"}, Labels: []string{"O", "B-DATE"}},
	{Tokens: []string{"report", "sent"}, Labels: []string{"B-REPORT", "I-REPORT"}},
	{Tokens: []string{"yesterday", "reviewed", "code"}, Labels: []string{"O", "B-YESTERDAY", "I-YESTERDAY"}},
}

type fixture struct {
	tok     *tokenizer.Tokenizer
	scheme  *labels.Scheme
	aligned []align.Example
}

func newFixture(t *testing.T) fixture {
	t.Helper()
	words := make([][]string, len(corpus))
	for i, ex := range corpus {
		words[i] = ex.Tokens
	}
	tok, err := tokenizer.New(tokenizer.BuildVocab(words, tokenizer.VocabOptions{}))
	require.NoError(t, err)

	scheme := labels.Default()
	a, err := align.New(tok, scheme, 16)
	require.NoError(t, err)
	aligned, err := a.Map(corpus)
	require.NoError(t, err)
	return fixture{tok: tok, scheme: scheme, aligned: aligned}
}

func (f fixture) trainer(t *testing.T, cfg Config, opts ...Option) (*Trainer, *model.WindowTagger) {
	t.Helper()
	m, err := model.NewWindowTagger(f.tok.VocabSize(), f.scheme.Len())
	require.NoError(t, err)
	opts = append([]Option{WithLogger(quietLogger())}, opts...)
	tr, err := NewTrainer(cfg, m, f.tok, f.scheme, 16, opts...)
	require.NoError(t, err)
	return tr, m
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testConfig(dir string) Config {
	cfg := DefaultConfig()
	cfg.Epochs = 25
	cfg.BatchSize = 2
	cfg.LearningRate = 0.1
	cfg.OutputDir = dir
	cfg.LoggingSteps = 0
	return cfg
}

func acquire(t *testing.T) *Context {
	t.Helper()
	tc, err := Acquire(DeviceCPU, 4)
	require.NoError(t, err)
	t.Cleanup(tc.Release)
	return tc
}

func TestTrainerLearnsAndSaves(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	collector := metrics.NewCollector()
	tr, m := f.trainer(t, testConfig(dir), WithMetrics(collector))

	res, err := tr.Run(context.Background(), acquire(t), f.aligned, f.aligned)
	require.NoError(t, err)
	assert.False(t, res.Cancelled)
	assert.Equal(t, 25, res.Epochs)
	assert.Equal(t, 25*3, res.Steps)
	assert.Len(t, res.Evaluations, 25)
	require.NotNil(t, res.Best)
	assert.Greater(t, res.Best.Score, 0.9)
	assert.Equal(t, dir, res.ArtifactDir)
	assert.Len(t, res.Checkpoints, 25)
	assert.DirExists(t, res.BestCheckpoint)
	assert.Equal(t, filepath.Join(dir, "checkpoint-3"), res.Checkpoints[0])

	snap := collector.Snapshot()
	require.NotNil(t, snap.TrainStep)
	assert.Equal(t, int64(75), snap.TrainStep.Count)
	require.NotNil(t, snap.Evaluate)
	assert.Equal(t, int64(25), snap.Evaluate.Count)

	// The saved artifact reproduces the in-memory model.
	a, cfg, err := artifact.Load(dir)
	require.NoError(t, err)
	assert.Equal(t, res.RunID, cfg.RunID)
	assert.Equal(t, res.Best.Metrics["f1"], cfg.Metrics["f1"])
	loaded, err := model.NewWindowTaggerFromState(a.Model)
	require.NoError(t, err)
	for _, ex := range f.aligned {
		assert.Equal(t, m.Forward(ex.InputIDs, ex.AttentionMask), loaded.Forward(ex.InputIDs, ex.AttentionMask))
	}

	metricsAfter, _, err := Evaluate(context.Background(), acquire(t), loaded, f.scheme, f.aligned)
	require.NoError(t, err)
	assert.Equal(t, res.Best.Score, metricsAfter.F1)
}

func TestTrainerIsDeterministic(t *testing.T) {
	f := newFixture(t)
	cfg := testConfig("")
	cfg.Epochs = 3
	cfg.SaveCheckpoints = false

	run := func(workers int) []float64 {
		tr, m := f.trainer(t, cfg)
		tc, err := Acquire(DeviceCPU, workers)
		require.NoError(t, err)
		defer tc.Release()
		_, err = tr.Run(context.Background(), tc, f.aligned, f.aligned)
		require.NoError(t, err)
		return m.Params()
	}
	assert.Equal(t, run(4), run(1))
}

func TestDegenerateBatch(t *testing.T) {
	f := newFixture(t)
	cfg := testConfig("")
	cfg.SaveCheckpoints = false
	cfg.BatchSize = 1
	tr, _ := f.trainer(t, cfg)

	ignored := align.Example{
		InputIDs:      []int{tokenizer.ClsID, tokenizer.SepID},
		AttentionMask: []int{1, 1},
		LabelIDs:      []int{align.IgnoreIndex, align.IgnoreIndex},
		WordIDs:       []int{align.NoWord, align.NoWord},
	}
	_, err := tr.Run(context.Background(), acquire(t), []align.Example{ignored}, f.aligned)

	var te *TrainingError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.True(t, errors.Is(err, ErrDegenerateBatch))
	assert.Equal(t, 1, te.Epoch)
	assert.Equal(t, 0, te.Batch)
	assert.Contains(t, err.Error(), "epoch 1, batch 0")
}

func TestGradientErrorNamesSourceExample(t *testing.T) {
	f := newFixture(t)
	cfg := testConfig("")
	cfg.SaveCheckpoints = false
	cfg.BatchSize = 1
	tr, _ := f.trainer(t, cfg)

	broken := align.Example{
		InputIDs:      []int{tokenizer.ClsID, 5, tokenizer.SepID},
		AttentionMask: []int{1, 1, 1},
		LabelIDs:      []int{align.IgnoreIndex, 999, align.IgnoreIndex},
		WordIDs:       []int{align.NoWord, 0, align.NoWord},
		Source:        41,
	}
	_, err := tr.Run(context.Background(), acquire(t), []align.Example{broken}, f.aligned)

	var te *TrainingError
	require.True(t, errors.As(err, &te), "got %v", err)
	assert.Contains(t, err.Error(), "example 41: position 1: label 999 out of range")
}

func TestEmptyValidation(t *testing.T) {
	f := newFixture(t)
	tr, _ := f.trainer(t, testConfig(t.TempDir()))

	_, err := tr.Run(context.Background(), acquire(t), f.aligned, nil)
	var te *TrainingError
	require.True(t, errors.As(err, &te))
	assert.True(t, errors.Is(err, ErrEmptyValidation))
}

func TestNoEvaluationRun(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()
	cfg := testConfig(dir)
	cfg.Epochs = 2
	cfg.EvalStrategy = EvalNo
	cfg.SaveCheckpoints = false
	cfg.LoadBestAtEnd = false
	tr, _ := f.trainer(t, cfg)

	res, err := tr.Run(context.Background(), acquire(t), f.aligned, nil)
	require.NoError(t, err)
	assert.Nil(t, res.Best)
	assert.Empty(t, res.Evaluations)
	assert.FileExists(t, filepath.Join(dir, artifact.ConfigFile))
}

func TestEvalSteps(t *testing.T) {
	f := newFixture(t)
	cfg := testConfig(t.TempDir())
	cfg.Epochs = 2
	cfg.EvalStrategy = EvalSteps
	cfg.EvalSteps = 2
	tr, _ := f.trainer(t, cfg)

	res, err := tr.Run(context.Background(), acquire(t), f.aligned, f.aligned)
	require.NoError(t, err)
	require.Len(t, res.Evaluations, 3)
	assert.Equal(t, []int{2, 4, 6}, []int{res.Evaluations[0].Step, res.Evaluations[1].Step, res.Evaluations[2].Step})
}

type cancelAfter struct {
	NopObserver
	steps  int
	cancel context.CancelFunc
	evals  []Evaluation
}

func (c *cancelAfter) OnStep(p Progress) {
	if p.Step == c.steps {
		c.cancel()
	}
}

func (c *cancelAfter) OnEvaluate(ev Evaluation) { c.evals = append(c.evals, ev) }

func TestCancellationPersistsBest(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	obs := &cancelAfter{steps: 8, cancel: cancel}
	tr, _ := f.trainer(t, testConfig(dir), WithObserver(obs))

	res, err := tr.Run(ctx, acquire(t), f.aligned, f.aligned)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Equal(t, 8, res.Steps)
	require.Len(t, obs.evals, 2)
	require.NotNil(t, res.Best)

	a, _, err := artifact.Load(dir)
	require.NoError(t, err)
	loaded, err := model.NewWindowTaggerFromState(a.Model)
	require.NoError(t, err)
	m, _, err := Evaluate(context.Background(), acquire(t), loaded, f.scheme, f.aligned)
	require.NoError(t, err)

	for _, ev := range obs.evals {
		assert.GreaterOrEqual(t, m.F1, ev.Score)
	}
	assert.Equal(t, res.Best.Score, m.F1)
}

func TestCancellationBeforeEvaluation(t *testing.T) {
	f := newFixture(t)
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	tr, _ := f.trainer(t, testConfig(dir))

	res, err := tr.Run(ctx, acquire(t), f.aligned, f.aligned)
	require.NoError(t, err)
	assert.True(t, res.Cancelled)
	assert.Nil(t, res.Best)
	assert.Equal(t, 0, res.Steps)
	_, err = os.Stat(filepath.Join(dir, artifact.WeightsFile))
	assert.NoError(t, err)
}

func TestReleasedContext(t *testing.T) {
	f := newFixture(t)
	tr, _ := f.trainer(t, testConfig(t.TempDir()))
	tc, err := Acquire(DeviceCPU, 2)
	require.NoError(t, err)
	tc.Release()
	tc.Release()

	_, err = tr.Run(context.Background(), tc, f.aligned, f.aligned)
	assert.True(t, errors.Is(err, ErrReleased))
}

func TestAcquire(t *testing.T) {
	tc, err := Acquire("", 0)
	require.NoError(t, err)
	defer tc.Release()
	assert.Equal(t, DeviceCPU, tc.Device())
	assert.Greater(t, tc.Workers(), 0)
	assert.NoError(t, tc.Err())

	_, err = Acquire("cuda:0", 1)
	assert.Error(t, err)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
		ok     bool
	}{
		{"default with dir", func(c *Config) { c.OutputDir = "out" }, true},
		{"checkpoints without dir", func(c *Config) {}, false},
		{"zero epochs", func(c *Config) { c.OutputDir = "out"; c.Epochs = 0 }, false},
		{"zero batch", func(c *Config) { c.OutputDir = "out"; c.BatchSize = 0 }, false},
		{"zero lr", func(c *Config) { c.OutputDir = "out"; c.LearningRate = 0 }, false},
		{"negative decay", func(c *Config) { c.OutputDir = "out"; c.WeightDecay = -1 }, false},
		{"steps without interval", func(c *Config) { c.OutputDir = "out"; c.EvalStrategy = EvalSteps }, false},
		{"unknown strategy", func(c *Config) { c.OutputDir = "out"; c.EvalStrategy = "hourly" }, false},
		{"best without eval", func(c *Config) { c.OutputDir = "out"; c.EvalStrategy = EvalNo }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if tt.ok {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestNewTrainerChecksDimensions(t *testing.T) {
	f := newFixture(t)
	m, err := model.NewWindowTagger(f.tok.VocabSize(), 3)
	require.NoError(t, err)
	_, err = NewTrainer(DefaultConfig(), m, f.tok, f.scheme, 16)
	assert.Error(t, err)

	m, err = model.NewWindowTagger(f.tok.VocabSize()+1, f.scheme.Len())
	require.NoError(t, err)
	_, err = NewTrainer(DefaultConfig(), m, f.tok, f.scheme, 16)
	assert.Error(t, err)
}
