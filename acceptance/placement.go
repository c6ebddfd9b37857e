package acceptance

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/smtrack/geom"
	"github.com/phil-mansfield/smtrack/integrator"
)

const (
	// ReferencePz is the longitudinal momentum, in MeV/c and in the target
	// frame, of the proton that defines the center of the tracking plane.
	ReferencePz = 627.0
	// scanStartZ is the smallest z, in mm, at which the plane may be placed.
	// It keeps the plane out of the magnet gap.
	scanStartZ = 500.0
	// minTracePoints is the shortest reference trace that can be scanned.
	minTracePoints = 10
)

// SynthesizePlacement places a tracking plane for a target at target rotated
// by rot degrees.
//
// A reference proton with no transverse momentum and an edge proton with
// px = +pxRange, both in the target frame, are traced through the field. The
// plane is centered on the reference trajectory, facing along it, at the point
// where the edge proton crosses the plane half a plane width away. If the
// traces are too short to scan, the default plane is returned.
func (e *Engine) SynthesizePlacement(target r3.Vec, rot, pxRange float64) PlaneConfig {
	log.Infof("Placing tracking plane for target at %v, rotation %.2f deg, "+
		"Px range +/-%.1f MeV/c.", target, rot, pxRange)

	halfWidth := e.PlaneWidth / 2
	pc := DefaultPlane()
	pc.SetWidth(e.PlaneWidth)
	pc.SetHeight(e.PlaneHeight)
	pc.Depth = e.PlaneDepth

	r := targetRotation(rot)
	refP := r.ToLab(r3.Vec{Z: ReferencePz})
	edgeP := r.ToLab(r3.Vec{X: pxRange, Z: ReferencePz})

	ref := e.Tracker.Trajectory(target,
		integrator.FourMomentum(refP, ProtonMass), 1, ProtonMass)
	edge := e.Tracker.Trajectory(target,
		integrator.FourMomentum(edgeP, ProtonMass), 1, ProtonMass)
	if len(ref) < minTracePoints || len(edge) < minTracePoints {
		log.Errorf("Reference traces are too short (%d and %d points); "+
			"using the default plane.", len(ref), len(edge))
		return pc
	}

	start := 0
	for i := range ref {
		if ref[i].Position.Z > scanStartZ {
			start = i
			break
		}
	}

	best, bestDiff, bestSep := start, math.Inf(1), 0.0
	for i := start; i < len(ref); i++ {
		trial := geom.Plane{
			Center: ref[i].Position, Normal: r3.Unit(ref[i].Momentum),
		}
		localX, _ := trial.Axes()

		// The edge proton's crossing is approximated by its closest point
		// to the trial plane.
		minDist, crossing := math.Inf(1), r3.Vec{}
		for j := range edge {
			d := math.Abs(trial.SignedDistance(edge[j].Position))
			if d < minDist {
				minDist, crossing = d, edge[j].Position
			}
		}

		sep := math.Abs(r3.Dot(r3.Sub(crossing, trial.Center), localX))
		if diff := math.Abs(sep - halfWidth); diff < bestDiff {
			best, bestDiff, bestSep = i, diff, sep
		}
	}

	pc.Center = ref[best].Position
	pc.Normal = r3.Unit(ref[best].Momentum)
	pc.RotationAngle = geom.Deg(pc.Normal)
	pc.SetPxWindow(-pxRange, pxRange)
	pc.Optimal = true

	log.Infof("Plane at %v, rotation %.2f deg, edge separation %.1f mm "+
		"(wanted %.1f mm).", pc.Center, pc.RotationAngle, bestSep, halfWidth)
	for i, c := range Corners(&pc) {
		log.Debugf("Corner %d: %v", i, c)
	}
	return pc
}

// ForTarget computes the acceptance of particles, given in the target frame,
// for a target at target rotated by rot degrees. If synthesize is set the
// tracking plane is placed with SynthesizePlacement first.
func (e *Engine) ForTarget(
	ps []ParticleInfo, target r3.Vec, rot, pxRange float64, synthesize bool,
) Result {
	if synthesize {
		e.Plane = e.SynthesizePlacement(target, rot, pxRange)
	}
	return e.ComputeAcceptance(ToLab(ps, target, rot))
}
