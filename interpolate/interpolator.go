package interpolate

type TriInterpolator interface {
	Eval(x, y, z float64) float64
	EvalAll(xs, ys, zs []float64, out ...[]float64) []float64
}

var (
	_ TriInterpolator = &TriLinear{}
)
