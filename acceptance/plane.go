package acceptance

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/smtrack/geom"
	"github.com/phil-mansfield/smtrack/io"
)

// Dimensions of the tracking plane's sensitive area and enclosure, in mm.
const (
	DefaultPlaneWidth  = 1680.0
	DefaultPlaneHeight = 780.0
	DefaultPlaneDepth  = 380.0
	DefaultPxRange     = 100.0 // MeV/c
)

// PlaneConfig is a tracking plane and the window of local transverse
// momentum it accepts.
type PlaneConfig struct {
	geom.Plane
	Depth        float64 // mm
	PxMin, PxMax float64 // MeV/c
	// RotationAngle is the angle of the normal in the xz-plane, in degrees.
	RotationAngle float64
	// Optimal is set for planes placed by SynthesizePlacement and Fixed for
	// planes at user-given positions.
	Optimal, Fixed bool
}

// DefaultPlane returns a plane at the origin facing +z.
func DefaultPlane() PlaneConfig {
	return PlaneConfig{
		Plane: geom.Plane{
			Normal: r3.Vec{Z: 1},
			Width:  DefaultPlaneWidth,
			Height: DefaultPlaneHeight,
		},
		Depth: DefaultPlaneDepth,
		PxMin: -DefaultPxRange,
		PxMax: DefaultPxRange,
	}
}

// FixedPlane returns a plane centered at pos whose normal is turned rot
// degrees from +z toward +x.
func FixedPlane(pos r3.Vec, rot, pxMin, pxMax float64) PlaneConfig {
	pc := DefaultPlane()
	rad := rot * math.Pi / 180
	pc.Center = pos
	pc.Normal = r3.Vec{X: math.Sin(rad), Y: 0, Z: math.Cos(rad)}
	pc.RotationAngle = rot
	pc.PxMin, pc.PxMax = pxMin, pxMax
	pc.Fixed = true
	return pc
}

// PlaneFromConfig converts a [Plane "name"] config section. CheckInit should
// have been called on it already.
func PlaneFromConfig(con *io.PlaneConfig) PlaneConfig {
	pc := FixedPlane(r3.Vec{X: con.X, Y: con.Y, Z: con.Z},
		con.Angle, con.PxMin, con.PxMax)
	pc.SetWidth(con.Width)
	pc.SetHeight(con.Height)
	return pc
}

func (pc *PlaneConfig) SetWidth(w float64)  { pc.Width = w }
func (pc *PlaneConfig) SetHeight(h float64) { pc.Height = h }

// SetPxWindow sets the range of accepted local transverse momenta.
func (pc *PlaneConfig) SetPxWindow(min, max float64) {
	pc.PxMin, pc.PxMax = min, max
}

// AcceptsPx returns true if px falls in the plane's momentum window.
func (pc *PlaneConfig) AcceptsPx(px float64) bool {
	return px >= pc.PxMin && px <= pc.PxMax
}

// Corners returns the four corners of a plane, for logging.
func Corners(pc *PlaneConfig) [4]r3.Vec {
	return pc.Plane.Corners()
}

// FixedDetector is a box-shaped detector which doesn't move with the target.
// Particles are tested against its front face as straight lines.
type FixedDetector struct {
	Center               r3.Vec // mm
	Width, Height, Depth float64
}

// DefaultFixedDetector returns the neutron wall, 3600 x 1800 x 600 mm,
// centered 5 m downstream.
func DefaultFixedDetector() FixedDetector {
	return FixedDetector{
		Center: r3.Vec{Z: 5000}, Width: 3600, Height: 1800, Depth: 600,
	}
}

// FrontZ returns the z coordinate of the detector's front face.
func (d *FixedDetector) FrontZ() float64 { return d.Center.Z - d.Depth/2 }

// Hit intersects the ray from vertex along dir with the front face.
func (d *FixedDetector) Hit(vertex, dir r3.Vec) (r3.Vec, bool) {
	face := geom.Plane{
		Center: r3.Vec{X: d.Center.X, Y: d.Center.Y, Z: d.FrontZ()},
		Normal: r3.Vec{Z: 1},
		Width:  d.Width,
		Height: d.Height,
	}
	hit, _, ok := face.IntersectRay(vertex, r3.Unit(dir))
	if !ok {
		return r3.Vec{}, false
	}
	local := r3.Sub(hit, d.Center)
	return hit, math.Abs(local.X) < d.Width/2 && math.Abs(local.Y) < d.Height/2
}
