package optim

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGradAddScale(t *testing.T) {
	a := NewGrad(2)
	a.Row(3)[0] = 1
	a.Row(1)[1] = 2

	b := NewGrad(2)
	b.Row(3)[0] = 0.5
	b.Row(5)[1] = -1

	a.Add(b)
	a.Scale(2)

	assert.Equal(t, []int{1, 3, 5}, a.Rows())
	assert.Equal(t, []float64{0, 4}, a.Row(1))
	assert.Equal(t, []float64{3, 0}, a.Row(3))
	assert.Equal(t, []float64{0, -2}, a.Row(5))
	assert.InDelta(t, math.Sqrt(16+9+4), a.Norm(), 1e-12)
}

func TestAdamWFirstStep(t *testing.T) {
	params := []float64{1, 1, 1, 1}
	opt, err := NewAdamW(len(params), 2, AdamWConfig{Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8})
	require.NoError(t, err)

	g := NewGrad(2)
	g.Row(0)[0] = 0.5
	g.Row(0)[1] = -2
	require.NoError(t, opt.Step(params, g, 0.1))

	// The first bias-corrected Adam step moves each touched entry by lr
	// against the gradient sign.
	assert.InDelta(t, 0.9, params[0], 1e-6)
	assert.InDelta(t, 1.1, params[1], 1e-6)
	assert.Equal(t, []float64{1, 1}, params[2:])
	assert.Equal(t, 1, opt.Steps())
}

func TestAdamWWeightDecay(t *testing.T) {
	params := []float64{2, 2}
	opt, err := NewAdamW(len(params), 1, AdamWConfig{Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8, WeightDecay: 0.5, NoDecay: []int{1}})
	require.NoError(t, err)

	g := NewGrad(1)
	g.Row(0)[0] = 0
	g.Row(1)[0] = 0
	require.NoError(t, opt.Step(params, g, 0.1))

	assert.InDelta(t, 2-0.1*0.5*2, params[0], 1e-12)
	assert.Equal(t, 2.0, params[1])
}

func TestAdamWErrors(t *testing.T) {
	_, err := NewAdamW(5, 2, DefaultAdamW(0))
	assert.Error(t, err)

	opt, err := NewAdamW(4, 2, DefaultAdamW(0))
	require.NoError(t, err)
	assert.Error(t, opt.Step(make([]float64, 2), NewGrad(2), 0.1))
	assert.Error(t, opt.Step(make([]float64, 4), NewGrad(3), 0.1))

	g := NewGrad(2)
	g.Row(7)[0] = 1
	assert.Error(t, opt.Step(make([]float64, 4), g, 0.1))
}

func TestAdamWMinimizesQuadratic(t *testing.T) {
	params := []float64{5}
	opt, err := NewAdamW(1, 1, DefaultAdamW(0))
	require.NoError(t, err)

	for i := 0; i < 2000; i++ {
		g := NewGrad(1)
		g.Row(0)[0] = 2 * (params[0] - 3)
		require.NoError(t, opt.Step(params, g, 0.05))
	}
	assert.InDelta(t, 3, params[0], 0.15)
}

func TestLinearSchedule(t *testing.T) {
	s := LinearSchedule{Base: 1, Total: 4}
	assert.Equal(t, 1.0, s.Rate(0))
	assert.Equal(t, 0.5, s.Rate(2))
	assert.Equal(t, 0.25, s.Rate(3))
	assert.Equal(t, 0.0, s.Rate(4))
	assert.Equal(t, 0.0, s.Rate(10))
	assert.Equal(t, 2.0, LinearSchedule{Base: 2}.Rate(100))
}
