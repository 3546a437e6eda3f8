// Package ner extracts standup fields from free text with a trained token
// classifier.
package ner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/raphaelgruber/scrumbot/internal/align"
	"github.com/raphaelgruber/scrumbot/internal/artifact"
	"github.com/raphaelgruber/scrumbot/internal/labels"
	"github.com/raphaelgruber/scrumbot/internal/metrics"
	"github.com/raphaelgruber/scrumbot/internal/model"
	"github.com/raphaelgruber/scrumbot/internal/tokenizer"
)

// DefaultMaxLength is used when neither the options nor the artifact set one.
const DefaultMaxLength = 128

// Span is one extracted field. Start and End are byte offsets into the
// input, Text is input[Start:End].
type Span struct {
	Field labels.Field `json:"field"`
	Text  string       `json:"text"`
	Start int          `json:"start"`
	End   int          `json:"end"`
	Score float64      `json:"score"`
}

// InferenceError reports a request that could not be processed.
type InferenceError struct {
	// Request is the index in ExtractBatch, or -1 for Extract.
	Request int
	Err     error
}

func (e *InferenceError) Error() string {
	if e.Request < 0 {
		return fmt.Sprintf("extract: %v", e.Err)
	}
	return fmt.Sprintf("extract request %d: %v", e.Request, e.Err)
}

func (e *InferenceError) Unwrap() error { return e.Err }

// Encoder tokenizes raw text with byte offsets.
type Encoder interface {
	Encode(text string) (tokenizer.Encoding, error)
}

// Options configures a Pipeline.
type Options struct {
	// MaxLength caps the framed sequence; longer inputs are truncated.
	MaxLength int
	// Concurrency bounds ExtractBatch; 0 means 4.
	Concurrency int
	Logger      *slog.Logger
	Metrics     *metrics.Collector
}

// Pipeline is immutable after construction and safe for concurrent use.
type Pipeline struct {
	enc         Encoder
	model       model.TokenClassifier
	scheme      *labels.Scheme
	maxLen      int
	concurrency int
	logger      *slog.Logger
	metrics     *metrics.Collector
	runID       string
}

// New assembles a pipeline from its parts.
func New(enc Encoder, m model.TokenClassifier, scheme *labels.Scheme, opts Options) (*Pipeline, error) {
	if enc == nil || m == nil || scheme == nil {
		return nil, errors.New("pipeline needs an encoder, a model and a label scheme")
	}
	if m.NumLabels() != scheme.Len() {
		return nil, fmt.Errorf("model has %d outputs, scheme has %d tags", m.NumLabels(), scheme.Len())
	}
	p := &Pipeline{
		enc:         enc,
		model:       m,
		scheme:      scheme,
		maxLen:      opts.MaxLength,
		concurrency: opts.Concurrency,
		logger:      opts.Logger,
		metrics:     opts.Metrics,
	}
	if p.maxLen <= 0 {
		p.maxLen = DefaultMaxLength
	}
	if p.concurrency <= 0 {
		p.concurrency = 4
	}
	if p.logger == nil {
		p.logger = slog.Default()
	}
	return p, nil
}

// Load builds a pipeline from the artifact in dir. A zero MaxLength in opts
// takes the artifact's.
func Load(dir string, opts Options) (*Pipeline, error) {
	a, cfg, err := artifact.Load(dir)
	if err != nil {
		return nil, err
	}
	if cfg.ModelType != model.TypeWindowTagger {
		return nil, &artifact.LoadError{Path: dir, Err: fmt.Errorf("model type %q cannot tag tokens", cfg.ModelType)}
	}
	id2label := make(map[int]string, len(a.Labels))
	for id, l := range a.Labels {
		id2label[id] = l
	}
	scheme, err := labels.FromID2Label(id2label)
	if err != nil {
		return nil, &artifact.LoadError{Path: dir, Err: err}
	}
	m, err := model.NewWindowTaggerFromState(a.Model)
	if err != nil {
		return nil, &artifact.LoadError{Path: dir, Err: err}
	}
	if opts.MaxLength <= 0 {
		opts.MaxLength = a.MaxLength
	}
	p, err := New(a.Tokenizer, m, scheme, opts)
	if err != nil {
		return nil, err
	}
	p.runID = a.RunID
	p.logger.Info("ner model loaded", "dir", dir, "run_id", a.RunID, "max_length", p.maxLen, "f1", a.Metrics["f1"])
	return p, nil
}

// RunID returns the training run that produced the loaded artifact.
func (p *Pipeline) RunID() string { return p.runID }

// Scheme returns the label scheme.
func (p *Pipeline) Scheme() *labels.Scheme { return p.scheme }

// Extract returns the fields found in text in document order. Text without
// fields yields an empty slice.
func (p *Pipeline) Extract(ctx context.Context, text string) ([]Span, error) {
	return p.extract(ctx, -1, text)
}

func (p *Pipeline) extract(ctx context.Context, request int, text string) ([]Span, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	start := time.Now()
	defer p.metrics.Since(metrics.OpExtract, start)

	enc, err := p.enc.Encode(text)
	if err != nil {
		return nil, &InferenceError{Request: request, Err: err}
	}
	if len(enc.Offsets) != len(enc.IDs) {
		return nil, &InferenceError{Request: request, Err: errors.New("encoder returned no offsets")}
	}

	ids, wordIDs := align.Frame(enc.IDs, enc.WordIDs, p.maxLen)
	mask := make([]int, len(ids))
	for i, id := range ids {
		if id != tokenizer.PadID {
			mask[i] = 1
		}
	}
	probs := p.model.Forward(ids, mask)
	if len(probs) != len(ids) {
		return nil, &InferenceError{Request: request, Err: fmt.Errorf("model returned %d rows for %d positions", len(probs), len(ids))}
	}

	spans := []Span{}
	var cur *Span
	var scoreSum float64
	var pieces int
	closeSpan := func() {
		if cur == nil {
			return
		}
		cur.Text = text[cur.Start:cur.End]
		cur.Score = scoreSum / float64(pieces)
		spans = append(spans, *cur)
		cur = nil
	}

	// Framed position i > 0 holds piece i-1 while its word id is set.
	for i := 1; i < len(ids); i++ {
		if wordIDs[i] == align.NoWord {
			continue
		}
		piece := i - 1
		row := probs[i]
		if row == nil {
			closeSpan()
			continue
		}
		best := model.Argmax(row)
		tag, err := p.scheme.Tag(best)
		if err != nil {
			return nil, &InferenceError{Request: request, Err: err}
		}
		off := enc.Offsets[piece]

		switch {
		case tag.IsOutside():
			closeSpan()
		case cur == nil || tag.IsBegin() || cur.Field != tag.Field:
			closeSpan()
			cur = &Span{Field: tag.Field, Start: off.Start, End: off.End}
			scoreSum, pieces = row[best], 1
		default:
			if off.End > cur.End {
				cur.End = off.End
			}
			scoreSum += row[best]
			pieces++
		}
	}
	closeSpan()
	return spans, nil
}

// Result is the outcome of one ExtractBatch request.
type Result struct {
	Spans []Span
	Err   error
}

// ExtractBatch runs Extract for every text with bounded concurrency. A
// failing request does not affect the others.
func (p *Pipeline) ExtractBatch(ctx context.Context, texts []string) []Result {
	results := make([]Result, len(texts))
	var g errgroup.Group
	g.SetLimit(p.concurrency)
	for i, text := range texts {
		g.Go(func() error {
			spans, err := p.extract(ctx, i, text)
			results[i] = Result{Spans: spans, Err: err}
			return nil
		})
	}
	_ = g.Wait()

	failed := 0
	for _, r := range results {
		if r.Err != nil {
			failed++
		}
	}
	if failed > 0 {
		p.logger.Warn("extract batch had failures", "requests", len(texts), "failed", failed)
	}
	return results
}

// Fields joins the text of all spans of each field with single spaces.
func Fields(spans []Span) map[labels.Field]string {
	out := map[labels.Field]string{}
	for _, s := range spans {
		if prev, ok := out[s.Field]; ok {
			out[s.Field] = prev + " " + s.Text
		} else {
			out[s.Field] = s.Text
		}
	}
	return out
}

// FieldNames is Fields keyed by lower-case field names.
func FieldNames(spans []Span) map[string]string {
	out := map[string]string{}
	for f, text := range Fields(spans) {
		out[strings.ToLower(f.String())] = text
	}
	return out
}
