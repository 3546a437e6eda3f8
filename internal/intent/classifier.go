package intent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/raphaelgruber/scrumbot/internal/artifact"
	"github.com/raphaelgruber/scrumbot/internal/metrics"
	"github.com/raphaelgruber/scrumbot/internal/model"
	"github.com/raphaelgruber/scrumbot/internal/tokenizer"
)

// DefaultMaxLength is used when the artifact does not set one.
const DefaultMaxLength = 128

// Prediction is the most likely intent with its probability.
type Prediction struct {
	Label  Label              `json:"label"`
	Score  float64            `json:"score"`
	Scores map[string]float64 `json:"scores"`
}

// Options configures a Classifier.
type Options struct {
	Logger  *slog.Logger
	Metrics *metrics.Collector
}

// Classifier is safe for concurrent use.
type Classifier struct {
	tok     *tokenizer.Tokenizer
	model   *model.BagClassifier
	labels  []Label
	maxLen  int
	runID   string
	logger  *slog.Logger
	metrics *metrics.Collector
}

// New wraps a trained model whose outputs are in Labels() order.
func New(tok *tokenizer.Tokenizer, m *model.BagClassifier, maxLen int, opts Options) (*Classifier, error) {
	if tok == nil || m == nil {
		return nil, errors.New("classifier needs a tokenizer and a model")
	}
	if m.NumLabels() != len(labelNames) {
		return nil, fmt.Errorf("model has %d outputs, there are %d intents", m.NumLabels(), len(labelNames))
	}
	return newClassifier(tok, m, Labels(), maxLen, opts), nil
}

func newClassifier(tok *tokenizer.Tokenizer, m *model.BagClassifier, labels []Label, maxLen int, opts Options) *Classifier {
	if maxLen <= 0 {
		maxLen = DefaultMaxLength
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Classifier{tok: tok, model: m, labels: labels, maxLen: maxLen, logger: logger, metrics: opts.Metrics}
}

// Load reads a classifier artifact from dir.
func Load(dir string, opts Options) (*Classifier, error) {
	a, cfg, err := artifact.Load(dir)
	if err != nil {
		return nil, err
	}
	if cfg.ModelType != model.TypeBagClassifier {
		return nil, &artifact.LoadError{Path: dir, Err: fmt.Errorf("model type %q is not an intent classifier", cfg.ModelType)}
	}
	labels := make([]Label, len(a.Labels))
	for id, name := range a.Labels {
		l, err := ParseLabel(name)
		if err != nil {
			return nil, &artifact.LoadError{Path: dir, Err: err}
		}
		labels[id] = l
	}
	m, err := model.NewBagClassifierFromState(a.Model)
	if err != nil {
		return nil, &artifact.LoadError{Path: dir, Err: err}
	}
	c := newClassifier(a.Tokenizer, m, labels, a.MaxLength, opts)
	c.runID = a.RunID
	c.logger.Info("intent model loaded", "dir", dir, "run_id", a.RunID, "accuracy", a.Metrics["accuracy"])
	return c, nil
}

// RunID returns the training run that produced the loaded artifact.
func (c *Classifier) RunID() string { return c.runID }

// Classify returns the most likely intent of text.
func (c *Classifier) Classify(ctx context.Context, text string) (Prediction, error) {
	if err := ctx.Err(); err != nil {
		return Prediction{}, err
	}
	start := time.Now()
	defer c.metrics.Since(metrics.OpClassify, start)

	ids, err := encode(c.tok, text, c.maxLen)
	if err != nil {
		return Prediction{}, fmt.Errorf("classify: %w", err)
	}
	p := c.model.Predict(ids)
	best := model.Argmax(p)

	pred := Prediction{Label: c.labels[best], Score: p[best], Scores: make(map[string]float64, len(p))}
	for i, v := range p {
		pred.Scores[c.labels[i].String()] = v
	}
	return pred, nil
}
