package train

import (
	"context"
	"fmt"
	"math"

	"github.com/raphaelgruber/scrumbot/internal/align"
	"github.com/raphaelgruber/scrumbot/internal/artifact"
	"github.com/raphaelgruber/scrumbot/internal/labels"
	"github.com/raphaelgruber/scrumbot/internal/model"
	"github.com/raphaelgruber/scrumbot/internal/optim"
	"github.com/raphaelgruber/scrumbot/internal/seqeval"
	"github.com/raphaelgruber/scrumbot/internal/tokenizer"
)

// Trainer fits a window tagger on subword-aligned examples.
type Trainer struct {
	loop   *Loop
	model  *model.WindowTagger
	tok    *tokenizer.Tokenizer
	scheme *labels.Scheme
	maxLen int
}

// NewTrainer returns a trainer that writes artifacts bundling m, tok and
// scheme.
func NewTrainer(cfg Config, m *model.WindowTagger, tok *tokenizer.Tokenizer, scheme *labels.Scheme, maxLen int, opts ...Option) (*Trainer, error) {
	if m.NumLabels() != scheme.Len() {
		return nil, fmt.Errorf("model has %d outputs, scheme has %d tags", m.NumLabels(), scheme.Len())
	}
	if m.VocabSize() != tok.VocabSize() {
		return nil, fmt.Errorf("model expects %d ids, tokenizer has %d", m.VocabSize(), tok.VocabSize())
	}
	return &Trainer{
		loop:   NewLoop(cfg, opts...),
		model:  m,
		tok:    tok,
		scheme: scheme,
		maxLen: maxLen,
	}, nil
}

// Run trains on trainSet and scores on validation at every evaluation point.
func (t *Trainer) Run(ctx context.Context, tc *Context, trainSet, validation []align.Example) (*Result, error) {
	return t.loop.Run(ctx, tc, &taggerTask{t: t, train: trainSet, validation: validation})
}

type taggerTask struct {
	t          *Trainer
	train      []align.Example
	validation []align.Example
}

func (k *taggerTask) NumExamples() int   { return len(k.train) }
func (k *taggerTask) NumValidation() int { return len(k.validation) }
func (k *taggerTask) Params() []float64  { return k.t.model.Params() }
func (k *taggerTask) Cols() int          { return k.t.model.Cols() }
func (k *taggerTask) NoDecayRows() []int { return []int{k.t.model.BiasRow()} }

func (k *taggerTask) Gradient(i int, g *optim.Grad) (float64, int, error) {
	ex := k.train[i]
	return k.t.model.Gradient(ex.InputIDs, ex.AttentionMask, ex.LabelIDs, g)
}

// ExampleName names training example i by its dataset index.
func (k *taggerTask) ExampleName(i int) string {
	return fmt.Sprintf("example %d", k.train[i].Source)
}

func (k *taggerTask) Evaluate(ctx context.Context, tc *Context) (Evaluation, error) {
	m, loss, err := Evaluate(ctx, tc, k.t.model, k.t.scheme, k.validation)
	if err != nil {
		return Evaluation{}, err
	}
	return Evaluation{Loss: loss, Score: m.F1, Metrics: MetricsMap(m, loss)}, nil
}

func (k *taggerTask) Save(dir string, info SaveInfo) error {
	a := artifact.Artifact{
		Labels:    labelNames(k.t.scheme),
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

func labelNames(s *labels.Scheme) []string {
	tags := s.Tags()
	out := make([]string, len(tags))
	for i, t := range tags {
		out[i] = t.String()
	}
	return out
}

// MetricsMap flattens span metrics for logs and artifacts.
func MetricsMap(m seqeval.Metrics, loss float64) map[string]float64 {
	out := map[string]float64{
		"precision": m.Precision,
		"recall":    m.Recall,
		"f1":        m.F1,
		"accuracy":  m.Accuracy,
		"loss":      loss,
	}
	for f, s := range m.Fields {
		out[f+"_f1"] = s.F1
	}
	return out
}

// Evaluate runs m over examples and scores the predictions at span level.
// Ignored positions are dropped from both sequences before scoring; the
// returned loss is the mean cross-entropy over labelled positions.
func Evaluate(ctx context.Context, tc *Context, m model.TokenClassifier, scheme *labels.Scheme, examples []align.Example) (seqeval.Metrics, float64, error) {
	if len(examples) == 0 {
		return seqeval.Metrics{}, 0, ErrEmptyValidation
	}
	if err := tc.Err(); err != nil {
		return seqeval.Metrics{}, 0, err
	}

	gold := make([][]string, len(examples))
	pred := make([][]string, len(examples))
	losses := make([]float64, len(examples))
	counts := make([]int, len(examples))

	g, gctx := tc.Group(ctx)
	for i, ex := range examples {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			probs := m.Forward(ex.InputIDs, ex.AttentionMask)
			for pos, y := range ex.LabelIDs {
				if y == align.IgnoreIndex {
					continue
				}
				row := probs[pos]
				if row == nil {
					return fmt.Errorf("example %d: no prediction at labelled position %d", i, pos)
				}
				goldTag, err := scheme.Tag(y)
				if err != nil {
					return fmt.Errorf("example %d: %w", i, err)
				}
				predTag, err := scheme.Tag(model.Argmax(row))
				if err != nil {
					return fmt.Errorf("example %d: %w", i, err)
				}
				gold[i] = append(gold[i], goldTag.String())
				pred[i] = append(pred[i], predTag.String())
				losses[i] += -math.Log(math.Max(row[y], 1e-12))
				counts[i]++
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return seqeval.Metrics{}, 0, err
	}

	var loss float64
	var n int
	for i := range examples {
		loss += losses[i]
		n += counts[i]
	}
	if n > 0 {
		loss /= float64(n)
	}
	metrics, err := seqeval.Evaluate(gold, pred)
	if err != nil {
		return seqeval.Metrics{}, 0, err
	}
	return metrics, loss, nil
}
