package model

import (
	"fmt"

	"github.com/raphaelgruber/scrumbot/internal/optim"
)

// IgnoreLabel marks positions excluded from the loss.
const IgnoreLabel = -100

// padID is the id used for neighbours outside the sequence.
const padID = 0

// Feature blocks of the window tagger, each vocabSize rows wide.
const (
	blockCurrent = iota
	blockPrev1
	blockNext1
	blockPrev2
	blockNext2
	blockLeft
	numBlocks
)

// WindowTagger scores each position from the token itself, two neighbours on
// each side and an exponentially decayed bag of preceding tokens.
// Forward is safe for concurrent use; Params exposes the weights for the
// optimizer, which must not run concurrently with Forward.
type WindowTagger struct {
	vocab   int
	labels  int
	context int
	decay   float64
	w       []float64
}

// NewWindowTagger returns a tagger for the given vocabulary and label counts.
func NewWindowTagger(vocabSize, numLabels int, opts ...Option) (*WindowTagger, error) {
	if err := checkDims(vocabSize, numLabels); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	if o.context < 0 {
		return nil, fmt.Errorf("context must not be negative, got %d", o.context)
	}
	m := &WindowTagger{
		vocab:   vocabSize,
		labels:  numLabels,
		context: o.context,
		decay:   o.decay,
		w:       make([]float64, (numBlocks*vocabSize+1)*numLabels),
	}
	initWeights(m.w, o)
	return m, nil
}

// NewWindowTaggerFromState restores a tagger saved with State.
func NewWindowTaggerFromState(s State) (*WindowTagger, error) {
	if s.Type != TypeWindowTagger {
		return nil, fmt.Errorf("model type %q is not %q", s.Type, TypeWindowTagger)
	}
	m, err := NewWindowTagger(s.VocabSize, s.NumLabels, WithContext(s.Context), WithDecay(s.Decay))
	if err != nil {
		return nil, err
	}
	if len(s.Weights) != len(m.w) {
		return nil, fmt.Errorf("weights have %d values, want %d", len(s.Weights), len(m.w))
	}
	copy(m.w, s.Weights)
	return m, nil
}

// NumLabels returns the number of output classes.
func (m *WindowTagger) NumLabels() int { return m.labels }

// VocabSize returns the number of input ids.
func (m *WindowTagger) VocabSize() int { return m.vocab }

// Params returns the live weight matrix.
func (m *WindowTagger) Params() []float64 { return m.w }

// Cols returns the row width of Params.
func (m *WindowTagger) Cols() int { return m.labels }

// BiasRow returns the index of the bias row.
func (m *WindowTagger) BiasRow() int { return numBlocks * m.vocab }

// State returns a snapshot of the model.
func (m *WindowTagger) State() State {
	w := make([]float64, len(m.w))
	copy(w, m.w)
	return State{
		Type:      TypeWindowTagger,
		VocabSize: m.vocab,
		NumLabels: m.labels,
		Context:   m.context,
		Decay:     m.decay,
		Weights:   w,
	}
}

func (m *WindowTagger) id(ids, mask []int, pos int) int {
	if pos < 0 || pos >= len(ids) || (mask != nil && mask[pos] == 0) {
		return padID
	}
	id := ids[pos]
	if id < 0 || id >= m.vocab {
		return 1 // unknown
	}
	return id
}

func (m *WindowTagger) features(ids, mask []int, pos int, buf []feature) []feature {
	buf = buf[:0]
	add := func(block, id int, v float64) {
		buf = append(buf, feature{row: block*m.vocab + id, value: v})
	}
	add(blockCurrent, m.id(ids, mask, pos), 1)
	add(blockPrev1, m.id(ids, mask, pos-1), 1)
	add(blockNext1, m.id(ids, mask, pos+1), 1)
	add(blockPrev2, m.id(ids, mask, pos-2), 1)
	add(blockNext2, m.id(ids, mask, pos+2), 1)
	v := 1.0
	for d := 1; d <= m.context && pos-d >= 0; d++ {
		add(blockLeft, m.id(ids, mask, pos-d), v)
		v *= m.decay
	}
	buf = append(buf, feature{row: m.BiasRow(), value: 1})
	return buf
}

// Forward returns one probability row per position; masked positions get nil.
func (m *WindowTagger) Forward(inputIDs, mask []int) [][]float64 {
	out := make([][]float64, len(inputIDs))
	var buf []feature
	for i := range inputIDs {
		if mask != nil && mask[i] == 0 {
			continue
		}
		buf = m.features(inputIDs, mask, i, buf)
		out[i] = score(m.w, m.labels, buf)
	}
	return out
}

// Gradient adds the summed cross-entropy gradient of one sequence to g and
// returns the summed loss and the number of labelled positions.
func (m *WindowTagger) Gradient(inputIDs, mask, labelIDs []int, g *optim.Grad) (loss float64, n int, err error) {
	if len(labelIDs) != len(inputIDs) {
		return 0, 0, fmt.Errorf("%d labels for %d positions", len(labelIDs), len(inputIDs))
	}
	var buf []feature
	for i, y := range labelIDs {
		if y == IgnoreLabel || (mask != nil && mask[i] == 0) {
			continue
		}
		if y < 0 || y >= m.labels {
			return 0, 0, fmt.Errorf("position %d: label %d out of range", i, y)
		}
		buf = m.features(inputIDs, mask, i, buf)
		p := score(m.w, m.labels, buf)
		loss += nll(p[y])
		n++
		p[y] -= 1
		for _, f := range buf {
			row := g.Row(f.row)
			for k, d := range p {
				row[k] += f.value * d
			}
		}
	}
	return loss, n, nil
}
