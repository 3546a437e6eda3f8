// Package model implements the trainable token and sequence classifiers.
//
// Both models are linear over sparse features of subword ids followed by a
// softmax. Parameters are a flat row-major matrix with one row per feature
// and one column per label; the last row is the bias.
package model

import (
	"fmt"
	"math"
	"math/rand/v2"
)

// Model types recorded in artifacts.
const (
	TypeWindowTagger  = "window-tagger"
	TypeBagClassifier = "bow-classifier"
)

// TokenClassifier maps a subword sequence to one label distribution per
// position. Rows of masked-out positions are nil.
type TokenClassifier interface {
	NumLabels() int
	Forward(inputIDs, mask []int) [][]float64
}

// State is the serializable form of a model.
type State struct {
	Type      string    `cbor:"type" json:"type"`
	VocabSize int       `cbor:"vocab_size" json:"vocab_size"`
	NumLabels int       `cbor:"num_labels" json:"num_labels"`
	Context   int       `cbor:"context,omitempty" json:"context,omitempty"`
	Decay     float64   `cbor:"decay,omitempty" json:"decay,omitempty"`
	Weights   []float64 `cbor:"weights" json:"-"`
}

type feature struct {
	row   int
	value float64
}

// Option configures a model at construction.
type Option func(*options)

type options struct {
	context int
	decay   float64
	seed    uint64
	scale   float64
}

// WithContext sets how many preceding tokens feed the left context feature.
func WithContext(n int) Option { return func(o *options) { o.context = n } }

// WithDecay sets the per-step weight decay of the left context feature.
func WithDecay(d float64) Option { return func(o *options) { o.decay = d } }

// WithRandomInit draws initial weights uniformly from [-scale, scale].
// Without it weights start at zero.
func WithRandomInit(seed uint64, scale float64) Option {
	return func(o *options) { o.seed, o.scale = seed, scale }
}

func buildOptions(opts []Option) options {
	o := options{context: 8, decay: 0.7}
	for _, fn := range opts {
		fn(&o)
	}
	return o
}

func initWeights(w []float64, o options) {
	if o.scale == 0 {
		return
	}
	rng := rand.New(rand.NewPCG(o.seed, o.seed^0x5851f42d4c957f2d))
	for i := range w {
		w[i] = (rng.Float64()*2 - 1) * o.scale
	}
}

// softmax overwrites logits with probabilities.
func softmax(logits []float64) {
	maxv := math.Inf(-1)
	for _, v := range logits {
		if v > maxv {
			maxv = v
		}
	}
	var sum float64
	for i, v := range logits {
		e := math.Exp(v - maxv)
		logits[i] = e
		sum += e
	}
	for i := range logits {
		logits[i] /= sum
	}
}

func nll(p float64) float64 {
	return -math.Log(math.Max(p, 1e-12))
}

// score computes the label distribution for one feature set.
func score(w []float64, cols int, feats []feature) []float64 {
	out := make([]float64, cols)
	for _, f := range feats {
		row := w[f.row*cols : (f.row+1)*cols]
		for k, v := range row {
			out[k] += f.value * v
		}
	}
	softmax(out)
	return out
}

// Argmax returns the index of the largest value, the first on ties.
func Argmax(p []float64) int {
	best := 0
	for i, v := range p {
		if v > p[best] {
			best = i
		}
	}
	return best
}

func checkDims(vocab, labels int) error {
	if vocab <= 0 {
		return fmt.Errorf("vocabulary size must be positive, got %d", vocab)
	}
	if labels < 2 {
		return fmt.Errorf("need at least 2 labels, got %d", labels)
	}
	return nil
}
