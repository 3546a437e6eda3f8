package ner

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/raphaelgruber/scrumbot/internal/align"
	"github.com/raphaelgruber/scrumbot/internal/dataset"
	"github.com/raphaelgruber/scrumbot/internal/metrics"
	"github.com/raphaelgruber/scrumbot/internal/seqeval"
	"github.com/raphaelgruber/scrumbot/internal/train"
)

// ErrNoWordEncoder is returned by Evaluate when the pipeline's encoder
// cannot encode pre-split words.
var ErrNoWordEncoder = errors.New("encoder cannot encode pre-split words")

// Evaluate aligns tagged examples the way training does and scores the
// pipeline's model on them. It returns span metrics and the mean loss.
func (p *Pipeline) Evaluate(ctx context.Context, tc *train.Context, examples []dataset.Example) (seqeval.Metrics, float64, error) {
	we, ok := p.enc.(align.WordEncoder)
	if !ok {
		return seqeval.Metrics{}, 0, fmt.Errorf("evaluate: %w", ErrNoWordEncoder)
	}
	a, err := align.New(we, p.scheme, p.maxLen)
	if err != nil {
		return seqeval.Metrics{}, 0, fmt.Errorf("evaluate: %w", err)
	}
	aligned, err := a.Map(examples)
	if err != nil {
		return seqeval.Metrics{}, 0, fmt.Errorf("evaluate: %w", err)
	}

	start := time.Now()
	m, loss, err := train.Evaluate(ctx, tc, p.model, p.scheme, aligned)
	p.metrics.Since(metrics.OpEvaluate, start)
	if err != nil {
		return seqeval.Metrics{}, 0, fmt.Errorf("evaluate: %w", err)
	}
	p.logger.Info("evaluation finished", "examples", len(examples), "f1", m.F1, "loss", loss)
	return m, loss, nil
}
