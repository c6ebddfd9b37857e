package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// parallelEps is the smallest |dir . normal| for which a ray is considered
// to cross a plane.
const parallelEps = 1e-6

// Plane is a finite rectangular plane. Its local frame is
//
//	X: horizontal and perpendicular to Normal,
//	Y: Normal x X (close to vertical),
//	Z: Normal.
type Plane struct {
	Center, Normal r3.Vec
	Width, Height  float64
}

// Axes returns the local X and Y axes of the plane. If the normal is vertical
// the local X axis falls back to the lab x axis.
func (p *Plane) Axes() (x, y r3.Vec) {
	x = r3.Vec{X: -p.Normal.Z, Y: 0, Z: p.Normal.X}
	if r3.Norm(x) < parallelEps {
		x = r3.Vec{X: 1}
	}
	x = r3.Unit(x)
	y = r3.Unit(r3.Cross(p.Normal, x))
	return x, y
}

// SignedDistance returns the distance from the plane to pos along the
// plane's normal.
func (p *Plane) SignedDistance(pos r3.Vec) float64 {
	return r3.Dot(r3.Sub(pos, p.Center), p.Normal)
}

// Local returns the in-plane coordinates of pos.
func (p *Plane) Local(pos r3.Vec) (u, v float64) {
	x, y := p.Axes()
	d := r3.Sub(pos, p.Center)
	return r3.Dot(d, x), r3.Dot(d, y)
}

// Contains returns true if the projection of pos onto the plane falls
// strictly inside the plane's rectangle.
func (p *Plane) Contains(pos r3.Vec) bool {
	u, v := p.Local(pos)
	return math.Abs(u) < p.Width/2 && math.Abs(v) < p.Height/2
}

// IntersectRay returns the point where the ray starting at origin with
// direction dir crosses the infinite plane and the ray parameter t, measured
// in units of |dir|. ok is false for rays that are parallel to the plane or
// that point away from it.
func (p *Plane) IntersectRay(origin, dir r3.Vec) (hit r3.Vec, t float64, ok bool) {
	denom := r3.Dot(dir, p.Normal)
	if math.Abs(denom) < parallelEps {
		return r3.Vec{}, math.Inf(1), false
	}
	t = r3.Dot(r3.Sub(p.Center, origin), p.Normal) / denom
	if t < 0 {
		return r3.Vec{}, t, false
	}
	return r3.Add(origin, r3.Scale(t, dir)), t, true
}

// Corners returns the four corners of the plane in the order
// (+X,+Y), (-X,+Y), (-X,-Y), (+X,-Y).
func (p *Plane) Corners() [4]r3.Vec {
	x, y := p.Axes()
	hx, hy := r3.Scale(p.Width/2, x), r3.Scale(p.Height/2, y)
	return [4]r3.Vec{
		r3.Add(p.Center, r3.Add(hx, hy)),
		r3.Add(p.Center, r3.Sub(hy, hx)),
		r3.Sub(p.Center, r3.Add(hx, hy)),
		r3.Add(p.Center, r3.Sub(hx, hy)),
	}
}
