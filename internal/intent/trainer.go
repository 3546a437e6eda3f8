package intent

import (
	"context"
	"fmt"
	"math"

	"github.com/raphaelgruber/scrumbot/internal/artifact"
	"github.com/raphaelgruber/scrumbot/internal/model"
	"github.com/raphaelgruber/scrumbot/internal/optim"
	"github.com/raphaelgruber/scrumbot/internal/tokenizer"
	"github.com/raphaelgruber/scrumbot/internal/train"
)

// DefaultConfig is train.DefaultConfig with the intent run's epochs and
// batch size.
func DefaultConfig() train.Config {
	cfg := train.DefaultConfig()
	cfg.Epochs = 6
	cfg.BatchSize = 4
	cfg.LoggingSteps = 10
	return cfg
}

// Trainer fits a bag classifier on labelled messages.
type Trainer struct {
	loop   *train.Loop
	model  *model.BagClassifier
	tok    *tokenizer.Tokenizer
	maxLen int
}

// NewTrainer returns a trainer for m. Messages are cut to maxLen pieces.
func NewTrainer(cfg train.Config, m *model.BagClassifier, tok *tokenizer.Tokenizer, maxLen int, opts ...train.Option) (*Trainer, error) {
	if m.NumLabels() != len(labelNames) {
		return nil, fmt.Errorf("model has %d outputs, there are %d intents", m.NumLabels(), len(labelNames))
	}
	if m.VocabSize() != tok.VocabSize() {
		return nil, fmt.Errorf("model expects %d ids, tokenizer has %d", m.VocabSize(), tok.VocabSize())
	}
	if maxLen < 1 {
		return nil, fmt.Errorf("max length must be at least 1, got %d", maxLen)
	}
	return &Trainer{loop: train.NewLoop(cfg, opts...), model: m, tok: tok, maxLen: maxLen}, nil
}

type encoded struct {
	ids   []int
	label int
	name  string
}

func encodeAll(tok *tokenizer.Tokenizer, examples []Example, maxLen int) ([]encoded, error) {
	out := make([]encoded, len(examples))
	for i, ex := range examples {
		ids, err := encode(tok, ex.Text, maxLen)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", ex.name(i), err)
		}
		out[i] = encoded{ids: ids, label: int(ex.Label), name: ex.name(i)}
	}
	return out, nil
}

func encode(tok *tokenizer.Tokenizer, text string, maxLen int) ([]int, error) {
	enc, err := tok.Encode(text)
	if err != nil {
		return nil, err
	}
	ids := enc.IDs
	if len(ids) > maxLen {
		ids = ids[:maxLen]
	}
	return ids, nil
}

// Run trains on trainSet and reports accuracy on validation.
func (t *Trainer) Run(ctx context.Context, tc *train.Context, trainSet, validation []Example) (*train.Result, error) {
	tr, err := encodeAll(t.tok, trainSet, t.maxLen)
	if err != nil {
		return nil, &train.TrainingError{Err: err}
	}
	val, err := encodeAll(t.tok, validation, t.maxLen)
	if err != nil {
		return nil, &train.TrainingError{Err: err}
	}
	return t.loop.Run(ctx, tc, &classifierTask{t: t, train: tr, validation: val})
}

type classifierTask struct {
	t          *Trainer
	train      []encoded
	validation []encoded
}

func (k *classifierTask) NumExamples() int   { return len(k.train) }
func (k *classifierTask) NumValidation() int { return len(k.validation) }
func (k *classifierTask) Params() []float64  { return k.t.model.Params() }
func (k *classifierTask) Cols() int          { return k.t.model.Cols() }
func (k *classifierTask) NoDecayRows() []int { return []int{k.t.model.BiasRow()} }

// ExampleName names training example i by its CSV line.
func (k *classifierTask) ExampleName(i int) string { return k.train[i].name }

func (k *classifierTask) Gradient(i int, g *optim.Grad) (float64, int, error) {
	ex := k.train[i]
	loss, err := k.t.model.Gradient(ex.ids, ex.label, g)
	if err != nil {
		return 0, 0, err
	}
	return loss, 1, nil
}

func (k *classifierTask) Evaluate(ctx context.Context, tc *train.Context) (train.Evaluation, error) {
	if len(k.validation) == 0 {
		return train.Evaluation{}, train.ErrEmptyValidation
	}
	correct := make([]bool, len(k.validation))
	losses := make([]float64, len(k.validation))
	g, gctx := tc.Group(ctx)
	for i, ex := range k.validation {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			p := k.t.model.Predict(ex.ids)
			correct[i] = model.Argmax(p) == ex.label
			losses[i] = -math.Log(math.Max(p[ex.label], 1e-12))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return train.Evaluation{}, err
	}

	var hits int
	var loss float64
	for i := range k.validation {
		if correct[i] {
			hits++
		}
		loss += losses[i]
	}
	n := float64(len(k.validation))
	acc := float64(hits) / n
	loss /= n
	return train.Evaluation{
		Loss:    loss,
		Score:   acc,
		Metrics: map[string]float64{"accuracy": acc, "loss": loss},
	}, nil
}

func (k *classifierTask) Save(dir string, info train.SaveInfo) error {
	a := artifact.Artifact{
		Labels:    Names(),
		Tokenizer: k.t.tok,
		Model:     k.t.model.State(),
		MaxLength: k.t.maxLen,
		RunID:     info.RunID,
	}
	if info.Evaluation != nil {
		a.Metrics = info.Evaluation.Metrics
	}
	return artifact.Save(dir, a)
}
