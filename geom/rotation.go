package geom

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"
)

// Rotation is a rotation about the vertical (y) axis. The sine and cosine are
// cached since rotations are applied at every field query.
//
// A positive angle turns the rotated frame's +z axis toward the lab's -x axis
// when looking down from +y.
type Rotation struct {
	Angle    float64 // degrees
	Cos, Sin float64
}

// RotationY creates a rotation about the y axis by angle degrees.
func RotationY(angle float64) Rotation {
	rad := angle * math.Pi / 180
	return Rotation{Angle: angle, Cos: math.Cos(rad), Sin: math.Sin(rad)}
}

// ToLocal transforms a lab-frame vector into the rotated frame.
func (r Rotation) ToLocal(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: v.X*r.Cos + v.Z*r.Sin,
		Y: v.Y,
		Z: -v.X*r.Sin + v.Z*r.Cos,
	}
}

// ToLab transforms a rotated-frame vector back into the lab frame.
func (r Rotation) ToLab(v r3.Vec) r3.Vec {
	return r3.Vec{
		X: v.X*r.Cos - v.Z*r.Sin,
		Y: v.Y,
		Z: v.X*r.Sin + v.Z*r.Cos,
	}
}

// Deg returns the angle of a direction in the xz-plane, measured from +z
// toward +x, in degrees.
func Deg(dir r3.Vec) float64 {
	return math.Atan2(dir.X, dir.Z) * 180 / math.Pi
}

// Angle returns the angle between u and v in degrees. The cosine is clamped
// so that floating point drift can't produce NaNs for parallel vectors.
func Angle(u, v r3.Vec) float64 {
	c := r3.Dot(r3.Unit(u), r3.Unit(v))
	c = math.Max(-1, math.Min(1, c))
	return math.Acos(c) * 180 / math.Pi
}

// Lerp linearly interpolates between a and b.
func Lerp(a, b r3.Vec, t float64) r3.Vec {
	return r3.Add(r3.Scale(1-t, a), r3.Scale(t, b))
}
