package model

import (
	"fmt"

	"github.com/raphaelgruber/scrumbot/internal/optim"
)

// BagClassifier assigns one label to a whole subword sequence from the
// normalized counts of its ids.
type BagClassifier struct {
	vocab  int
	labels int
	w      []float64
}

// NewBagClassifier returns a classifier for the given vocabulary and label counts.
func NewBagClassifier(vocabSize, numLabels int, opts ...Option) (*BagClassifier, error) {
	if err := checkDims(vocabSize, numLabels); err != nil {
		return nil, err
	}
	o := buildOptions(opts)
	m := &BagClassifier{
		vocab:  vocabSize,
		labels: numLabels,
		w:      make([]float64, (vocabSize+1)*numLabels),
	}
	initWeights(m.w, o)
	return m, nil
}

// NewBagClassifierFromState restores a classifier saved with State.
func NewBagClassifierFromState(s State) (*BagClassifier, error) {
	if s.Type != TypeBagClassifier {
		return nil, fmt.Errorf("model type %q is not %q", s.Type, TypeBagClassifier)
	}
	m, err := NewBagClassifier(s.VocabSize, s.NumLabels)
	if err != nil {
		return nil, err
	}
	if len(s.Weights) != len(m.w) {
		return nil, fmt.Errorf("weights have %d values, want %d", len(s.Weights), len(m.w))
	}
	copy(m.w, s.Weights)
	return m, nil
}

func (m *BagClassifier) NumLabels() int { return m.labels }
func (m *BagClassifier) VocabSize() int { return m.vocab }
func (m *BagClassifier) Params() []float64 { return m.w }
func (m *BagClassifier) Cols() int { return m.labels }
func (m *BagClassifier) BiasRow() int { return m.vocab }

// State returns a snapshot of the model.
func (m *BagClassifier) State() State {
	w := make([]float64, len(m.w))
	copy(w, m.w)
	return State{Type: TypeBagClassifier, VocabSize: m.vocab, NumLabels: m.labels, Weights: w}
}

func (m *BagClassifier) features(ids []int) []feature {
	counts := map[int]int{}
	order := make([]int, 0, len(ids))
	total := 0
	for _, id := range ids {
		if id < 0 || id >= m.vocab {
			id = 1
		}
		if _, ok := counts[id]; !ok {
			order = append(order, id)
		}
		counts[id]++
		total++
	}
	feats := make([]feature, 0, len(order)+1)
	for _, id := range order {
		feats = append(feats, feature{row: id, value: float64(counts[id]) / float64(total)})
	}
	return append(feats, feature{row: m.BiasRow(), value: 1})
}

// Predict returns the label distribution of a subword sequence. Special
// tokens should be removed by the caller.
func (m *BagClassifier) Predict(ids []int) []float64 {
	return score(m.w, m.labels, m.features(ids))
}

// Gradient adds the cross-entropy gradient of one labelled sequence to g and
// returns its loss.
func (m *BagClassifier) Gradient(ids []int, label int, g *optim.Grad) (float64, error) {
	if label < 0 || label >= m.labels {
		return 0, fmt.Errorf("label %d out of range", label)
	}
	feats := m.features(ids)
	p := score(m.w, m.labels, feats)
	loss := nll(p[label])
	p[label] -= 1
	for _, f := range feats {
		row := g.Row(f.row)
		for k, d := range p {
			row[k] += f.value * d
		}
	}
	return loss, nil
}
