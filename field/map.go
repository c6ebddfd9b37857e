// Package field loads tabulated dipole field maps and answers lab-frame field
// queries by trilinear interpolation.
//
// Field tables only cover the x >= 0, z >= 0 quadrant of the magnet frame. The
// rest of space is reconstructed by mirror symmetry: reflecting x flips Bx and
// reflecting z flips Bz, while By is unchanged under both.
package field

import (
	"errors"
	"fmt"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/smtrack/geom"
	"github.com/phil-mansfield/smtrack/interpolate"
	"github.com/phil-mansfield/smtrack/io"
)

// DefaultRotation is the magnet rotation about the vertical axis, in degrees,
// used by maps which haven't been given one.
const DefaultRotation = 30.0

var (
	// ErrNoData is returned when a map has no samples to work with.
	ErrNoData = errors.New("field map has no data")
	// ErrBadHeader is returned when the dimension line of a field table
	// can't be parsed.
	ErrBadHeader = errors.New("malformed field table header")
)

var log = io.NamedLogger("field")

// Map is a regular grid of magnetic field samples. Positions are in mm and
// fields in T.
//
// A Map is safe for concurrent queries once it has been loaded, but SetRotation
// and the Load methods must not be called concurrently with queries.
type Map struct {
	grid           geom.Grid
	min, max, step [3]float64
	points         int

	bx, by, bz []float64
	interps    [3]*interpolate.TriLinear

	rot  geom.Rotation
	file string
}

// New returns an empty map with the default rotation.
func New() *Map {
	m := &Map{}
	m.SetRotation(DefaultRotation)
	return m
}

// NewUniform returns a map of n[0] x n[1] x n[2] nodes spanning [min, max]
// with the same field, b, at every node. It uses the default rotation.
func NewUniform(n [3]int, min, max, b r3.Vec) *Map {
	m := New()
	total := n[0] * n[1] * n[2]
	bx, by, bz := make([]float64, total), make([]float64, total), make([]float64, total)
	for i := 0; i < total; i++ {
		bx[i], by[i], bz[i] = b.X, b.Y, b.Z
	}
	m.set(n, [3]float64{min.X, min.Y, min.Z}, [3]float64{max.X, max.Y, max.Z},
		total, bx, by, bz)
	m.file = "uniform"
	return m
}

// NewFromSamples returns a map built from node values stored in x-major order.
// It panics if the slice lengths don't match n.
func NewFromSamples(n [3]int, min, max r3.Vec, bx, by, bz []float64) *Map {
	total := n[0] * n[1] * n[2]
	if len(bx) != total || len(by) != total || len(bz) != total {
		panic(fmt.Sprintf(
			"len(bx) = %d, len(by) = %d, len(bz) = %d, but grid has %d nodes",
			len(bx), len(by), len(bz), total,
		))
	}
	m := New()
	m.set(n, [3]float64{min.X, min.Y, min.Z}, [3]float64{max.X, max.Y, max.Z},
		total, bx, by, bz)
	return m
}

// set replaces the map's contents.
func (m *Map) set(
	n [3]int, min, max [3]float64, points int, bx, by, bz []float64,
) {
	m.grid.Init(n[0], n[1], n[2])
	m.min, m.max = min, max
	for i := 0; i < 3; i++ {
		if n[i] > 1 {
			m.step[i] = (max[i] - min[i]) / float64(n[i]-1)
		} else {
			m.step[i] = 0
		}
	}
	m.points = points
	m.bx, m.by, m.bz = bx, by, bz

	for i, vals := range [][]float64{bx, by, bz} {
		m.interps[i] = interpolate.NewUniformTriLinear(
			min[0], m.step[0], n[0],
			min[1], m.step[1], n[1],
			min[2], m.step[2], n[2],
			vals,
		)
	}
}

// Empty returns true if the map holds no samples.
func (m *Map) Empty() bool { return m.points == 0 }

// SetRotation sets the rotation of the magnet about the vertical axis in
// degrees. A positive angle turns the magnet's +z axis toward the lab's -x
// axis.
func (m *Map) SetRotation(angle float64) {
	m.rot = geom.RotationY(angle)
	log.Debugf("Set magnet rotation to %g degrees.", angle)
}

// Rotation returns the magnet rotation in degrees.
func (m *Map) Rotation() float64 { return m.rot.Angle }

// FieldAt returns the field at a lab-frame position. Positions whose folded
// magnet-frame coordinates fall outside of the table return a zero field.
func (m *Map) FieldAt(pos r3.Vec) r3.Vec {
	if m.Empty() {
		return r3.Vec{}
	}
	b := m.FieldRaw(m.rot.ToLocal(pos))
	return m.rot.ToLab(b)
}

// FieldRaw returns the field at a magnet-frame position, in the magnet frame.
func (m *Map) FieldRaw(pos r3.Vec) r3.Vec {
	if m.Empty() {
		return r3.Vec{}
	}

	flipX, flipZ := pos.X < 0, pos.Z < 0
	if flipX {
		pos.X = -pos.X
	}
	if flipZ {
		pos.Z = -pos.Z
	}

	if !m.InRange(pos) {
		return r3.Vec{}
	}

	c := m.interps[0].Cell(pos.X, pos.Y, pos.Z)
	b := r3.Vec{
		X: m.interps[0].EvalCell(c),
		Y: m.interps[1].EvalCell(c),
		Z: m.interps[2].EvalCell(c),
	}

	if flipX {
		b.X = -b.X
	}
	if flipZ {
		b.Z = -b.Z
	}
	return b
}

// InRange returns true if a magnet-frame position lies inside the table's
// bounds. No folding is applied.
func (m *Map) InRange(pos r3.Vec) bool {
	return pos.X >= m.min[0] && pos.X <= m.max[0] &&
		pos.Y >= m.min[1] && pos.Y <= m.max[1] &&
		pos.Z >= m.min[2] && pos.Z <= m.max[2]
}

// NodePosition returns the magnet-frame position of the node (ix, iy, iz).
func (m *Map) NodePosition(ix, iy, iz int) r3.Vec {
	return r3.Vec{
		X: m.min[0] + float64(ix)*m.step[0],
		Y: m.min[1] + float64(iy)*m.step[1],
		Z: m.min[2] + float64(iz)*m.step[2],
	}
}

// Node returns the stored, magnet-frame field at node (ix, iy, iz) and false
// if the node doesn't exist.
func (m *Map) Node(ix, iy, iz int) (r3.Vec, bool) {
	idx, ok := m.grid.IdxCheck(ix, iy, iz)
	if !ok || idx >= len(m.bx) {
		return r3.Vec{}, false
	}
	return r3.Vec{X: m.bx[idx], Y: m.by[idx], Z: m.bz[idx]}, true
}

// Info summarizes a field map.
type Info struct {
	File           string
	N              [3]int
	Points         int
	Min, Max, Step r3.Vec
	BMin, BMax     r3.Vec
	Rotation       float64
}

func (info Info) String() string {
	return fmt.Sprintf(
		"%s: %d x %d x %d grid (%d points), rotation %g deg\n"+
			"  X range: [%g, %g] mm, step: %g mm\n"+
			"  Y range: [%g, %g] mm, step: %g mm\n"+
			"  Z range: [%g, %g] mm, step: %g mm\n"+
			"  Bx range: [%g, %g] T\n"+
			"  By range: [%g, %g] T\n"+
			"  Bz range: [%g, %g] T",
		info.File, info.N[0], info.N[1], info.N[2], info.Points, info.Rotation,
		info.Min.X, info.Max.X, info.Step.X,
		info.Min.Y, info.Max.Y, info.Step.Y,
		info.Min.Z, info.Max.Z, info.Step.Z,
		info.BMin.X, info.BMax.X,
		info.BMin.Y, info.BMax.Y,
		info.BMin.Z, info.BMax.Z,
	)
}

// Info returns a summary of the map.
func (m *Map) Info() Info {
	info := Info{
		File:     m.file,
		N:        m.grid.N,
		Points:   m.points,
		Min:      r3.Vec{X: m.min[0], Y: m.min[1], Z: m.min[2]},
		Max:      r3.Vec{X: m.max[0], Y: m.max[1], Z: m.max[2]},
		Step:     r3.Vec{X: m.step[0], Y: m.step[1], Z: m.step[2]},
		Rotation: m.rot.Angle,
	}
	if len(m.bx) > 0 {
		info.BMin = r3.Vec{X: floats.Min(m.bx), Y: floats.Min(m.by), Z: floats.Min(m.bz)}
		info.BMax = r3.Vec{X: floats.Max(m.bx), Y: floats.Max(m.by), Z: floats.Max(m.bz)}
	}
	return info
}

// Scale returns a copy of the map with every field value multiplied by f.
func (m *Map) Scale(f float64) *Map {
	out := New()
	out.SetRotation(m.rot.Angle)
	if m.Empty() {
		return out
	}

	bx := append([]float64{}, m.bx...)
	by := append([]float64{}, m.by...)
	bz := append([]float64{}, m.bz...)
	floats.Scale(f, bx)
	floats.Scale(f, by)
	floats.Scale(f, bz)

	out.set(m.grid.N, m.min, m.max, m.points, bx, by, bz)
	out.file = m.file
	return out
}
