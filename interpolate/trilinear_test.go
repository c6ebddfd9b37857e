package interpolate

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func value(x, y, z float64) float64 {
	return 2*x + 3*y + 5*z
}

func linearGrid(x0, step float64, n int) []float64 {
	vals := make([]float64, n*n*n)
	idx := 0
	for i := 0; i < n; i++ {
		for j := 0; j < n; j++ {
			for k := 0; k < n; k++ {
				vals[idx] = value(
					x0+float64(i)*step, x0+float64(j)*step, x0+float64(k)*step,
				)
				idx++
			}
		}
	}
	return vals
}

func TestUniformTriLinear(t *testing.T) {
	minVal := 0.0
	n := 11
	step := 0.1
	interp := NewUniformTriLinear(
		minVal, step, n,
		minVal, step, n,
		minVal, step, n,
		linearGrid(minVal, step, n),
	)
	eps := 1e-10
	// points on the grid should work
	assert.InDelta(t, value(0.5, 0.5, 0.5), interp.Eval(0.5, 0.5, 0.5), eps, "on grid")
	// points just off the grid should also work
	assert.InDelta(t, value(0.51, 0.50, 0.50), interp.Eval(0.51, 0.50, 0.50), eps, "nearby x")
	assert.InDelta(t, value(0.50, 0.51, 0.50), interp.Eval(0.50, 0.51, 0.50), eps, "nearby y")
	assert.InDelta(t, value(0.50, 0.50, 0.51), interp.Eval(0.50, 0.50, 0.51), eps, "nearby z")
	// points on the edge of the grid should work
	assert.InDelta(t, value(0, 0, 0), interp.Eval(0, 0, 0), eps, "grid edge")
	assert.InDelta(t, value(0.01, 0, 0), interp.Eval(0.01, 0, 0), eps, "grid edge nearby x")
	assert.InDelta(t, value(1, 1, 1), interp.Eval(1, 1, 1), eps, "upper grid edge")
}

func TestUniformTriLinearClamp(t *testing.T) {
	n := 5
	interp := NewUniformTriLinear(
		0, 1, n,
		0, 1, n,
		0, 1, n,
		linearGrid(0, 1, n),
	)

	tests := []struct {
		x, y, z float64
		want    float64
	}{
		{-1, 2, 2, value(0, 2, 2)},
		{10, 2, 2, value(4, 2, 2)},
		{2, -3, 2, value(2, 0, 2)},
		{2, 2, 4.5, value(2, 2, 4)},
		{100, 100, 100, value(4, 4, 4)},
	}

	for i, test := range tests {
		got := interp.Eval(test.x, test.y, test.z)
		if !almostEq(got, test.want, 1e-10) {
			t.Errorf("%d) Eval(%g, %g, %g) = %g, not %g",
				i+1, test.x, test.y, test.z, got, test.want)
		}
	}
}

func TestCell(t *testing.T) {
	interp := NewUniformTriLinear(
		-2, 1, 5,
		0, 2, 3,
		0, 0.5, 3,
		make([]float64, 5*3*3),
	)

	c := interp.Cell(0.25, 3, 2)
	assert.Equal(t, 2, c.I, "x index")
	assert.InDelta(t, 0.25, c.Wx, 1e-12, "x weight")
	assert.Equal(t, 1, c.J, "y index")
	assert.InDelta(t, 0.5, c.Wy, 1e-12, "y weight")
	assert.Equal(t, 1, c.K, "z index clamped to N-2")
	assert.InDelta(t, 1.0, c.Wz, 1e-12, "z weight clamped to 1")

	x, y, z := interp.Node(4, 2, 2)
	assert.Equal(t, []float64{2, 4, 1}, []float64{x, y, z}, "last node")
}

func TestDegenerateAxis(t *testing.T) {
	// A single node along z: every query uses that node.
	vals := []float64{1, 2, 3, 4}
	interp := NewUniformTriLinear(
		0, 1, 2,
		0, 1, 2,
		7, 0, 1,
		vals,
	)
	assert.InDelta(t, 2.5, interp.Eval(0.5, 0.5, -100), 1e-12)
	assert.InDelta(t, 4.0, interp.Eval(1, 1, 100), 1e-12)
}

func TestEvalAll(t *testing.T) {
	n := 4
	interp := NewUniformTriLinear(
		0, 1, n,
		0, 1, n,
		0, 1, n,
		linearGrid(0, 1, n),
	)
	xs := []float64{0.5, 1.5, 2.5}
	ys := []float64{0.25, 1, 2}
	zs := []float64{0, 0.5, 3}

	out := make([]float64, 3)
	res := interp.EvalAll(xs, ys, zs, out)
	assert.Equal(t, out, res)
	for i := range xs {
		assert.InDelta(t, value(xs[i], ys[i], zs[i]), out[i], 1e-10)
	}
	assert.Equal(t, out, interp.EvalAll(xs, ys, zs))
}

func TestNewUniformTriLinearPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewUniformTriLinear(0, 1, 2, 0, 1, 2, 0, 1, 2, make([]float64, 7))
	})
}

func almostEq(x, y, eps float64) bool {
	return x+eps > y && x-eps < y
}
