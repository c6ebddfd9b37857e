package beam

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/smtrack/geom"
	"github.com/phil-mansfield/smtrack/integrator"
	"github.com/phil-mansfield/smtrack/io"
)

const (
	// zeroAngle is the largest requested deflection, in degrees, which is
	// answered without tracing the beam.
	zeroAngle = 0.01
	// minTracePoints is the shortest beam trace which can be searched.
	minTracePoints = 10
	// flatAngle is the smallest angle change, in degrees, between two trace
	// points that is interpolated across.
	flatAngle = 0.001
)

var log = io.NamedLogger("beam")

// Target is the point along the beam trajectory at which the beam has been
// deflected by Angle degrees.
type Target struct {
	Angle     float64 // requested deflection, degrees
	Position  r3.Vec  // mm
	Direction r3.Vec  // unit vector along the beam at Position
	// RotationAngle is the beam direction's angle in the x-z plane, measured
	// from +z toward +x, in degrees.
	RotationAngle float64
	// Exact is true if a trace point was found within the angle tolerance.
	Exact bool
	// AngleError is the difference between the requested angle and the
	// closest traced angle, in degrees.
	AngleError float64
}

// Deflector traces a reference beam through a field.
type Deflector struct {
	Tracker        *integrator.Tracker
	Beam           Beam
	Entry          r3.Vec  // mm
	Direction      r3.Vec  // initial beam direction
	AngleTolerance float64 // degrees
}

// DefaultTracking returns the integration parameters used for beam traces:
// 1 mm steps for up to 200 ns or 10 m.
func DefaultTracking() integrator.Config {
	return integrator.Config{
		StepSize: 1, MaxTime: 200, MaxDistance: 10000, MinMomentum: 1,
	}
}

// NewDeflector returns a Deflector for a deuteron beam entering at
// (0, 0, -4000) mm along +z.
func NewDeflector(f integrator.Field) *Deflector {
	return &Deflector{
		Tracker:        integrator.New(f, DefaultTracking()),
		Beam:           Deuteron(),
		Entry:          r3.Vec{X: 0, Y: 0, Z: -4000},
		Direction:      r3.Vec{X: 0, Y: 0, Z: 1},
		AngleTolerance: 0.5,
	}
}

// FromConfig creates a Deflector from a [Deflection] config section.
func FromConfig(
	f integrator.Field, con *io.DeflectionConfig, tr *io.TrackingConfig,
) *Deflector {
	d := NewDeflector(f)
	d.Tracker.Config = integrator.ConfigFromTracking(tr)
	d.Beam = Beam{
		Mass:              con.BeamMass,
		Charge:            con.BeamCharge,
		Nucleons:          con.Nucleons,
		KineticPerNucleon: con.KineticPerNucleon,
	}
	d.Entry = r3.Vec{X: con.EntryX, Y: con.EntryY, Z: con.EntryZ}
	d.Direction = r3.Vec{X: con.DirectionX, Y: con.DirectionY, Z: con.DirectionZ}
	d.AngleTolerance = con.AngleTolerance
	return d
}

// Deflection returns the angle in degrees between p and the initial beam
// direction.
func (d *Deflector) Deflection(p r3.Vec) float64 {
	return geom.Angle(p, d.Direction)
}

// FullTrajectory traces the beam from its entry point.
func (d *Deflector) FullTrajectory() []integrator.State {
	return d.Tracker.Trajectory(
		d.Entry, d.Beam.FourMomentum(d.Direction), d.Beam.Charge, d.Beam.Mass,
	)
}

// TargetPosition finds where the beam has been deflected by angle degrees.
// The closest traced point is refined by interpolating toward whichever
// neighbor brackets the requested angle. If no point comes within the angle
// tolerance the closest one is still used and Exact is false.
func (d *Deflector) TargetPosition(angle float64) Target {
	dir := r3.Unit(d.Direction)
	res := Target{Angle: angle, Position: d.Entry, Direction: dir}
	res.RotationAngle = geom.Deg(dir)

	if math.Abs(angle) < zeroAngle {
		res.Exact = true
		log.Infof("%g deg deflection: target at beam entry point %v",
			angle, d.Entry)
		return res
	}

	traj := d.FullTrajectory()
	if len(traj) < minTracePoints {
		log.Errorf("Beam trace has only %d points; can't find %g deg deflection.",
			len(traj), angle)
		return res
	}

	angles := make([]float64, len(traj))
	for i := range traj {
		angles[i] = d.Deflection(traj[i].Momentum)
	}

	best, minDiff := 0, math.Inf(1)
	for i := 1; i < len(traj); i++ {
		diff := math.Abs(angles[i] - angle)
		if diff < minDiff {
			best, minDiff = i, diff
		}
		if i%100 == 0 {
			log.Debugf("Point %d: pos = %v, angle = %.2f deg",
				i, traj[i].Position, angles[i])
		}
	}

	res.Exact = minDiff < d.AngleTolerance
	res.AngleError = minDiff
	if !res.Exact {
		log.Warnf("Deflection of %g deg not reached; using closest point, "+
			"%.2f deg away.", angle, minDiff)
	}

	res.Position = traj[best].Position
	res.Direction = r3.Unit(traj[best].Momentum)

	if best > 0 && best < len(traj)-1 {
		i1, i2 := bracket(angles, best, angle)
		a1, a2 := angles[i1], angles[i2]
		if math.Abs(a2-a1) > flatAngle {
			t := (angle - a1) / (a2 - a1)
			t = math.Max(0, math.Min(1, t))
			res.Position = geom.Lerp(traj[i1].Position, traj[i2].Position, t)
			res.Direction = r3.Unit(
				geom.Lerp(traj[i1].Momentum, traj[i2].Momentum, t),
			)
		}
	}

	res.RotationAngle = geom.Deg(res.Direction)
	log.Infof("Target for %g deg deflection: position %v, direction %v, "+
		"rotation %.2f deg", angle, res.Position, res.Direction,
		res.RotationAngle)
	return res
}

// bracket picks the pair of neighboring trace points around index i to
// interpolate between.
func bracket(angles []float64, i int, target float64) (i1, i2 int) {
	prev := math.Abs(angles[i-1] - target)
	cur := math.Abs(angles[i] - target)
	next := math.Abs(angles[i+1] - target)

	switch {
	case cur < prev && cur < next:
		if prev < next {
			return i - 1, i
		}
		return i, i + 1
	case (target-angles[i-1])*(target-angles[i]) <= 0:
		return i - 1, i
	default:
		return i, i + 1
	}
}

// TargetPositions calls TargetPosition for every angle.
func (d *Deflector) TargetPositions(angles []float64) []Target {
	out := make([]Target, len(angles))
	for i := range angles {
		out[i] = d.TargetPosition(angles[i])
	}
	return out
}
