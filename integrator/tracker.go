// Package integrator traces relativistic charged particles through static
// magnetic fields with fixed-step fourth order Runge-Kutta integration.
//
// Units are mm, ns, MeV/c (momentum), MeV (energy and mass), T and e.
package integrator

import (
	"math"

	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/smtrack/io"
)

const (
	// SpeedOfLight is c in mm/ns.
	SpeedOfLight = 299.792458
	// ForceConstant converts q (p x B) / E, with q in e, p in MeV/c, B in T
	// and E in MeV, into dp/dt in MeV/c per ns. It is c[mm/ns]^2 / 1000:
	// one factor of c turns p/E into a velocity, the other (with 1e-15 from
	// the SI prefixes of m/s, MeV and ns) turns e v B into MeV/c per ns.
	ForceConstant = SpeedOfLight * SpeedOfLight * 1e-3
	// NeutralCharge is the largest |charge| treated as neutral.
	NeutralCharge = 1e-6
)

var log = io.NamedLogger("integrator")

// Field is a static magnetic field. *field.Map satisfies it.
type Field interface {
	FieldAt(pos r3.Vec) r3.Vec
}

// State is a single point along a trajectory.
type State struct {
	Position r3.Vec  // mm
	Momentum r3.Vec  // MeV/c
	Time     float64 // ns
	Field    r3.Vec  // T
}

// Config holds the integration parameters. Steps are StepSize mm long at the
// initial speed, and a trajectory ends once it has run for MaxTime ns, left
// the sphere of radius MaxDistance mm around the origin or slowed below
// MinMomentum MeV/c.
type Config struct {
	StepSize    float64
	MaxTime     float64
	MaxDistance float64
	MinMomentum float64
}

// DefaultConfig returns the default integration parameters.
func DefaultConfig() Config {
	return Config{StepSize: 1, MaxTime: 100, MaxDistance: 5000, MinMomentum: 1}
}

// ConfigFromTracking converts a [Tracking] config section into a Config.
func ConfigFromTracking(con *io.TrackingConfig) Config {
	return Config{
		StepSize:    con.StepSize,
		MaxTime:     con.MaxTime,
		MaxDistance: con.MaxDistance,
		MinMomentum: con.MinMomentum,
	}
}

// Tracker traces particles through a field. Its Config can be changed between
// calls to Trajectory; a single Tracker with a fixed Config may be shared
// between goroutines.
type Tracker struct {
	Field  Field
	Config Config
}

// New returns a Tracker over the given field.
func New(f Field, con Config) *Tracker {
	return &Tracker{Field: f, Config: con}
}

// Trajectory traces a particle with charge q (e) and mass m (MeV/c^2)
// starting at pos with four-momentum p4. The first State is the starting
// point. The last State is the first one which broke one of the Config
// limits, or the last one computed before the step budget of
// MaxTime / dt ran out.
//
// Neutral particles move in a straight line and their trajectories have
// exactly two points: the start and a point MaxDistance away along the
// initial momentum. A nil slice is returned if the Tracker has no field.
func (tr *Tracker) Trajectory(
	pos r3.Vec, p4 fmom.PxPyPzE, charge, mass float64,
) []State {
	if tr.Field == nil {
		log.Error("Trajectory requested from a Tracker with no field.")
		return nil
	}

	p := r3.Vec{X: p4.Px(), Y: p4.Py(), Z: p4.Pz()}
	beta := Beta(p4)

	if math.Abs(charge) < NeutralCharge {
		return tr.straightLine(pos, p, beta)
	}

	con := &tr.Config
	cur := State{Position: pos, Momentum: p, Field: tr.Field.FieldAt(pos)}
	traj := []State{cur}

	if beta <= 0 || con.StepSize <= 0 {
		log.Warnf("Can't step a particle with beta = %g and step size %g.",
			beta, con.StepSize)
		return traj
	}

	dt := con.StepSize / (beta * SpeedOfLight)
	maxSteps := int(con.MaxTime / dt)

	log.Debugf("Tracing q = %g, m = %g from %v with p = %v (%d steps of %g ns)",
		charge, mass, pos, p, maxSteps, dt)

	for step := 0; step < maxSteps && tr.valid(&cur); step++ {
		cur = tr.rk4(&cur, charge, mass, dt)
		cur.Field = tr.Field.FieldAt(cur.Position)
		traj = append(traj, cur)
	}

	return traj
}

func (tr *Tracker) straightLine(pos, p r3.Vec, beta float64) []State {
	dir := unit(p)
	d := tr.Config.MaxDistance
	end := State{
		Position: r3.Add(pos, r3.Scale(d, dir)),
		Momentum: p,
		Time:     math.Inf(1),
	}
	if beta > 0 {
		end.Time = d / (beta * SpeedOfLight)
	}
	return []State{{Position: pos, Momentum: p}, end}
}

// valid returns true if s is within all of the Config limits.
func (tr *Tracker) valid(s *State) bool {
	con := &tr.Config
	return s.Time <= con.MaxTime &&
		r3.Norm(s.Position) <= con.MaxDistance &&
		r3.Norm(s.Momentum) >= con.MinMomentum
}

// derivs returns dx/dt and dp/dt at the given position and momentum.
func (tr *Tracker) derivs(x, p r3.Vec, charge, mass float64) (dx, dp r3.Vec) {
	e := math.Sqrt(r3.Norm2(p) + mass*mass)
	dx = r3.Scale(SpeedOfLight/e, p)
	if r3.Norm(p) < 1e-6 {
		return dx, r3.Vec{}
	}
	b := tr.Field.FieldAt(x)
	dp = r3.Scale(charge*ForceConstant/e, r3.Cross(p, b))
	return dx, dp
}

// rk4 advances s by a single Runge-Kutta step of length dt.
func (tr *Tracker) rk4(s *State, charge, mass, dt float64) State {
	x0, p0 := s.Position, s.Momentum

	k1x, k1p := tr.derivs(x0, p0, charge, mass)
	k2x, k2p := tr.derivs(
		r3.Add(x0, r3.Scale(dt/2, k1x)), r3.Add(p0, r3.Scale(dt/2, k1p)),
		charge, mass,
	)
	k3x, k3p := tr.derivs(
		r3.Add(x0, r3.Scale(dt/2, k2x)), r3.Add(p0, r3.Scale(dt/2, k2p)),
		charge, mass,
	)
	k4x, k4p := tr.derivs(
		r3.Add(x0, r3.Scale(dt, k3x)), r3.Add(p0, r3.Scale(dt, k3p)),
		charge, mass,
	)

	return State{
		Position: r3.Add(x0, r3.Scale(dt/6, sum4(k1x, k2x, k3x, k4x))),
		Momentum: r3.Add(p0, r3.Scale(dt/6, sum4(k1p, k2p, k3p, k4p))),
		Time:     s.Time + dt,
	}
}

// sum4 returns k1 + 2 k2 + 2 k3 + k4.
func sum4(k1, k2, k3, k4 r3.Vec) r3.Vec {
	return r3.Add(r3.Add(k1, k4), r3.Scale(2, r3.Add(k2, k3)))
}

// unit returns the unit vector along v, or the zero vector if v is zero.
func unit(v r3.Vec) r3.Vec {
	n := r3.Norm(v)
	if n == 0 {
		return r3.Vec{}
	}
	return r3.Scale(1/n, v)
}
