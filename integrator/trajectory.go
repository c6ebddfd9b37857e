package integrator

import (
	"math"

	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/spatial/r3"
)

// FourMomentum returns the four-momentum of a particle with three-momentum p
// and the given mass.
func FourMomentum(p r3.Vec, mass float64) fmom.PxPyPzE {
	e := math.Sqrt(r3.Norm2(p) + mass*mass)
	return fmom.NewPxPyPzE(p.X, p.Y, p.Z, e)
}

// Beta returns |p| / E for a four-momentum.
func Beta(p4 fmom.PxPyPzE) float64 {
	e := p4.E()
	if e <= 0 {
		return 0
	}
	return p4.P() / e
}

// Energy returns the total energy of a state for a particle of the given
// mass.
func Energy(s State, mass float64) float64 {
	return math.Sqrt(r3.Norm2(s.Momentum) + mass*mass)
}

// Positions splits the positions of a trajectory into coordinate slices.
func Positions(traj []State) (xs, ys, zs []float64) {
	xs = make([]float64, len(traj))
	ys = make([]float64, len(traj))
	zs = make([]float64, len(traj))
	for i := range traj {
		xs[i] = traj[i].Position.X
		ys[i] = traj[i].Position.Y
		zs[i] = traj[i].Position.Z
	}
	return xs, ys, zs
}

// Length returns the path length of a trajectory.
func Length(traj []State) float64 {
	sum := 0.0
	for i := 1; i < len(traj); i++ {
		sum += r3.Norm(r3.Sub(traj[i].Position, traj[i-1].Position))
	}
	return sum
}

// Closest returns the index of the trajectory point closest to pos and its
// distance. An empty trajectory returns -1 and +Inf.
func Closest(traj []State, pos r3.Vec) (idx int, dist float64) {
	idx, dist2 := -1, math.Inf(1)
	for i := range traj {
		d2 := r3.Norm2(r3.Sub(traj[i].Position, pos))
		if d2 < dist2 {
			idx, dist2 = i, d2
		}
	}
	return idx, math.Sqrt(dist2)
}
