// Package optim holds sparse row gradients, a lazy AdamW optimizer and
// learning-rate schedules for the row-major linear models in package model.
package optim

import (
	"fmt"
	"math"
	"sort"
)

// Grad is a sparse gradient over the rows of a rows×cols parameter matrix.
// A Grad is not safe for concurrent use; give each worker its own.
type Grad struct {
	cols int
	rows map[int][]float64
}

// NewGrad returns an empty gradient for matrices with cols columns.
func NewGrad(cols int) *Grad {
	return &Grad{cols: cols, rows: map[int][]float64{}}
}

// Cols returns the row width.
func (g *Grad) Cols() int { return g.cols }

// Row returns the gradient row r, allocating it on first use.
func (g *Grad) Row(r int) []float64 {
	row, ok := g.rows[r]
	if !ok {
		row = make([]float64, g.cols)
		g.rows[r] = row
	}
	return row
}

// Len returns the number of touched rows.
func (g *Grad) Len() int { return len(g.rows) }

// Rows returns the touched row indices in ascending order.
func (g *Grad) Rows() []int {
	out := make([]int, 0, len(g.rows))
	for r := range g.rows {
		out = append(out, r)
	}
	sort.Ints(out)
	return out
}

// Add accumulates o into g.
func (g *Grad) Add(o *Grad) {
	for _, r := range o.Rows() {
		dst := g.Row(r)
		for k, v := range o.rows[r] {
			dst[k] += v
		}
	}
}

// Scale multiplies every entry by s.
func (g *Grad) Scale(s float64) {
	for _, row := range g.rows {
		for k := range row {
			row[k] *= s
		}
	}
}

// Norm returns the L2 norm.
func (g *Grad) Norm() float64 {
	var sum float64
	for _, row := range g.rows {
		for _, v := range row {
			sum += v * v
		}
	}
	return math.Sqrt(sum)
}

// AdamWConfig holds optimizer hyperparameters.
type AdamWConfig struct {
	Beta1       float64
	Beta2       float64
	Epsilon     float64
	WeightDecay float64
	// NoDecay lists rows excluded from weight decay, typically the bias.
	NoDecay []int
}

// DefaultAdamW returns the usual betas and epsilon with the given decay.
func DefaultAdamW(weightDecay float64) AdamWConfig {
	return AdamWConfig{Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8, WeightDecay: weightDecay}
}

// AdamW is Adam with decoupled weight decay. Moments of rows without a
// gradient are left untouched (lazy update).
type AdamW struct {
	cfg     AdamWConfig
	cols    int
	m, v    []float64
	step    int
	noDecay map[int]bool
}

// NewAdamW returns an optimizer for a parameter vector of length size laid
// out as rows of cols.
func NewAdamW(size, cols int, cfg AdamWConfig) (*AdamW, error) {
	if cols <= 0 || size%cols != 0 {
		return nil, fmt.Errorf("parameter size %d is not a multiple of %d columns", size, cols)
	}
	o := &AdamW{
		cfg:     cfg,
		cols:    cols,
		m:       make([]float64, size),
		v:       make([]float64, size),
		noDecay: map[int]bool{},
	}
	for _, r := range cfg.NoDecay {
		o.noDecay[r] = true
	}
	return o, nil
}

// Steps returns how many updates have been applied.
func (o *AdamW) Steps() int { return o.step }

// Step applies one update with learning rate lr.
func (o *AdamW) Step(params []float64, g *Grad, lr float64) error {
	if len(params) != len(o.m) {
		return fmt.Errorf("parameter size %d, optimizer built for %d", len(params), len(o.m))
	}
	if g.cols != o.cols {
		return fmt.Errorf("gradient has %d columns, optimizer built for %d", g.cols, o.cols)
	}
	o.step++
	b1, b2 := o.cfg.Beta1, o.cfg.Beta2
	c1 := 1 - math.Pow(b1, float64(o.step))
	c2 := 1 - math.Pow(b2, float64(o.step))

	for _, r := range g.Rows() {
		base := r * o.cols
		if base < 0 || base+o.cols > len(params) {
			return fmt.Errorf("gradient row %d out of range", r)
		}
		decay := o.cfg.WeightDecay > 0 && !o.noDecay[r]
		for k, gv := range g.rows[r] {
			i := base + k
			if decay {
				params[i] -= lr * o.cfg.WeightDecay * params[i]
			}
			o.m[i] = b1*o.m[i] + (1-b1)*gv
			o.v[i] = b2*o.v[i] + (1-b2)*gv*gv
			mh := o.m[i] / c1
			vh := o.v[i] / c2
			params[i] -= lr * mh / (math.Sqrt(vh) + o.cfg.Epsilon)
		}
	}
	return nil
}

// LinearSchedule decays the learning rate linearly from Base to zero over
// Total steps.
type LinearSchedule struct {
	Base  float64
	Total int
}

// Rate returns the learning rate for the zero-based step.
func (s LinearSchedule) Rate(step int) float64 {
	if s.Total <= 0 {
		return s.Base
	}
	if step >= s.Total {
		return 0
	}
	return s.Base * float64(s.Total-step) / float64(s.Total)
}
