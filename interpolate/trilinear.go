package interpolate

import (
	"fmt"
	"math"
)

// axis is a uniformly spaced sequence of nodes.
type axis struct {
	x0, dx float64
	n      int
}

func (ax *axis) init(x0, dx float64, n int) {
	ax.x0, ax.dx, ax.n = x0, dx, n
}

// search returns the index of the lower node of the cell containing x and
// the fractional position of x within that cell. The index is clamped to
// [0, n-2] and the weight to [0, 1], so points on or slightly outside the
// boundary are pinned to the edge cell instead of extrapolated.
func (ax *axis) search(x float64) (i int, w float64) {
	if ax.n < 2 || ax.dx == 0 {
		return 0, 0
	}
	f := (x - ax.x0) / ax.dx
	i = int(math.Floor(f))
	if i > ax.n-2 {
		i = ax.n - 2
	}
	if i < 0 {
		i = 0
	}
	w = f - float64(i)
	if w < 0 {
		w = 0
	} else if w > 1 {
		w = 1
	}
	return i, w
}

// val returns the position of the ith node.
func (ax *axis) val(i int) float64 { return ax.x0 + float64(i)*ax.dx }

// Cell is the lower corner of a grid cell along with the interpolation
// weights of a point inside of it. Computing a Cell once lets several arrays
// which share a grid be interpolated at the same point.
type Cell struct {
	I, J, K    int
	Wx, Wy, Wz float64
}

// TriLinear is a tri-linear interpolator over a uniform grid. Values are
// stored with x as the slowest-varying index.
type TriLinear struct {
	xs, ys, zs axis
	vals       []float64
	nx, ny, nz int
}

// NewUniformTriLinear creates a tri-linear interpolator over a grid of
// nx x ny x nz nodes starting at (x0, y0, z0) with spacings dx, dy, dz.
// vals[ix*ny*nz + iy*nz + iz] is the value at node (ix, iy, iz).
//
// Lookups will be O(1).
func NewUniformTriLinear(
	x0, dx float64, nx int,
	y0, dy float64, ny int,
	z0, dz float64, nz int,
	vals []float64,
) *TriLinear {
	if nx*ny*nz != len(vals) {
		panic(fmt.Sprintf(
			"len(vals) = %d, but nx = %d, ny = %d, and nz = %d",
			len(vals), nx, ny, nz,
		))
	}

	tri := &TriLinear{}
	tri.xs.init(x0, dx, nx)
	tri.ys.init(y0, dy, ny)
	tri.zs.init(z0, dz, nz)
	tri.nx, tri.ny, tri.nz = nx, ny, nz
	tri.vals = vals

	return tri
}

// Cell returns the cell containing (x, y, z) and the point's weights.
func (tri *TriLinear) Cell(x, y, z float64) Cell {
	c := Cell{}
	c.I, c.Wx = tri.xs.search(x)
	c.J, c.Wy = tri.ys.search(y)
	c.K, c.Wz = tri.zs.search(z)
	return c
}

// EvalCell interpolates the grid at a precomputed cell. Nodes past the end
// of a degenerate (single node) axis contribute nothing.
func (tri *TriLinear) EvalCell(c Cell) float64 {
	return EvalCell(tri.vals, tri.nx, tri.ny, tri.nz, c)
}

// Eval returns the interpolated value at (x, y, z).
func (tri *TriLinear) Eval(x, y, z float64) float64 {
	return tri.EvalCell(tri.Cell(x, y, z))
}

// EvalAll evaluates the interpolator at all the given points. If an output
// array is given, the output is written to that array (the array is still
// returned as a convenience).
//
// If more than one output array is provided, only the first is used.
func (tri *TriLinear) EvalAll(xs, ys, zs []float64, out ...[]float64) []float64 {
	if len(out) == 0 {
		out = [][]float64{make([]float64, len(xs))}
	}
	for i := range xs {
		out[0][i] = tri.Eval(xs[i], ys[i], zs[i])
	}
	return out[0]
}

// Node returns the position of the node (i, j, k).
func (tri *TriLinear) Node(i, j, k int) (x, y, z float64) {
	return tri.xs.val(i), tri.ys.val(j), tri.zs.val(k)
}

// EvalCell interpolates vals, an x-major nx x ny x nz grid, at cell c.
func EvalCell(vals []float64, nx, ny, nz int, c Cell) float64 {
	wxs := [2]float64{1 - c.Wx, c.Wx}
	wys := [2]float64{1 - c.Wy, c.Wy}
	wzs := [2]float64{1 - c.Wz, c.Wz}

	sum := 0.0
	for i := 0; i < 2 && c.I+i < nx; i++ {
		for j := 0; j < 2 && c.J+j < ny; j++ {
			for k := 0; k < 2 && c.K+k < nz; k++ {
				idx := (c.I+i)*ny*nz + (c.J+j)*nz + (c.K + k)
				sum += wxs[i] * wys[j] * wzs[k] * vals[idx]
			}
		}
	}
	return sum
}
