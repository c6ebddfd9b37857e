// Package acceptance estimates how many reaction products reach a tracking
// plane behind the magnet and a fixed neutron wall further downstream.
package acceptance

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/smtrack/geom"
	"github.com/phil-mansfield/smtrack/integrator"
	"github.com/phil-mansfield/smtrack/io"
)

// neutralCharge is the largest |charge| treated as neutral.
const neutralCharge = 0.5

var log = io.NamedLogger("acceptance")

// Engine classifies particles against the detectors.
type Engine struct {
	Tracker *integrator.Tracker

	Plane, SecondPlane PlaneConfig
	// UsePair tests particles against both planes. RequireBoth decides
	// whether a particle must cross both of them or either one.
	UsePair, RequireBoth bool

	Fixed FixedDetector

	// PlaneWidth, PlaneHeight and PlaneDepth size synthesized planes.
	PlaneWidth, PlaneHeight, PlaneDepth float64

	ThetaBins int
	ThetaMax  float64 // degrees
	Workers   int
}

// DefaultTracking returns 5 mm steps for up to 500 ns or 10 m.
func DefaultTracking() integrator.Config {
	return integrator.Config{
		StepSize: 5, MaxTime: 500, MaxDistance: 10000, MinMomentum: 1,
	}
}

// New returns an Engine with the default plane and neutron wall.
func New(f integrator.Field) *Engine {
	return &Engine{
		Tracker:     integrator.New(f, DefaultTracking()),
		Plane:       DefaultPlane(),
		RequireBoth: true,
		Fixed:       DefaultFixedDetector(),
		PlaneWidth:  DefaultPlaneWidth,
		PlaneHeight: DefaultPlaneHeight,
		PlaneDepth:  DefaultPlaneDepth,
		ThetaBins:   90,
		ThetaMax:    90,
		Workers:     1,
	}
}

// FromConfig creates an Engine from an [Acceptance] section and the [Plane]
// sections it names. CheckPlanes should have been called on w already.
func FromConfig(f integrator.Field, w *io.AcceptanceWrapper) (*Engine, error) {
	con := &w.Acceptance
	e := New(f)
	e.Tracker.Config = integrator.ConfigFromTracking(&w.Tracking)
	e.Fixed = FixedDetector{
		Center: r3.Vec{X: con.NeutronX, Y: con.NeutronY, Z: con.NeutronZ},
		Width:  con.NeutronWidth,
		Height: con.NeutronHeight,
		Depth:  con.NeutronDepth,
	}
	e.PlaneWidth, e.PlaneHeight = con.PlaneWidth, con.PlaneHeight
	e.PlaneDepth = con.PlaneDepth
	e.ThetaBins, e.ThetaMax = con.ThetaBins, con.ThetaMax
	e.Workers = con.Workers

	if con.UsePlane != "" {
		plane, ok := w.Plane[con.UsePlane]
		if !ok {
			return nil, fmt.Errorf("No [Plane \"%s\"] section was given.", con.UsePlane)
		}
		e.SetPlane(PlaneFromConfig(plane))
	}
	if con.SecondPlane != "" {
		plane, ok := w.Plane[con.SecondPlane]
		if !ok {
			return nil, fmt.Errorf("No [Plane \"%s\"] section was given.", con.SecondPlane)
		}
		e.SetPlanePair(e.Plane, PlaneFromConfig(plane), con.RequireBoth)
	}
	return e, nil
}

// SetPlane uses a single tracking plane.
func (e *Engine) SetPlane(pc PlaneConfig) {
	e.Plane = pc
	e.UsePair, e.RequireBoth = false, true
}

// SetPlanePair uses two tracking planes.
func (e *Engine) SetPlanePair(first, second PlaneConfig, requireBoth bool) {
	e.Plane, e.SecondPlane = first, second
	e.UsePair, e.RequireBoth = true, requireBoth
}

// CheckPlaneHit returns where p crosses pc and whether that crossing is
// accepted. Neutral particles are intersected as straight lines. Charged
// particles are traced through the field and must also fall inside the
// plane's momentum window at the crossing.
func (e *Engine) CheckPlaneHit(p *ParticleInfo, pc *PlaneConfig) (r3.Vec, bool) {
	if math.Abs(p.Charge) < neutralCharge {
		return straightHit(p, pc)
	}
	return traceHit(e.trace(p), pc)
}

// CheckPlanes tests p against the configured plane or pair of planes. The
// returned position is the crossing of the first plane that was hit.
func (e *Engine) CheckPlanes(p *ParticleInfo) (r3.Vec, bool) {
	if !e.UsePair {
		return e.CheckPlaneHit(p, &e.Plane)
	}

	var pos1, pos2 r3.Vec
	var hit1, hit2 bool
	if math.Abs(p.Charge) < neutralCharge {
		pos1, hit1 = straightHit(p, &e.Plane)
		pos2, hit2 = straightHit(p, &e.SecondPlane)
	} else {
		traj := e.trace(p)
		pos1, hit1 = traceHit(traj, &e.Plane)
		pos2, hit2 = traceHit(traj, &e.SecondPlane)
	}

	switch {
	case e.RequireBoth:
		return pos1, hit1 && hit2
	case hit1:
		return pos1, true
	case hit2:
		return pos2, true
	}
	return r3.Vec{}, false
}

// CheckFixedHit returns where p, as a straight line, reaches the front face
// of the fixed detector and whether it is inside it.
func (e *Engine) CheckFixedHit(p *ParticleInfo) (r3.Vec, bool) {
	dir := p.P3()
	if r3.Norm(dir) == 0 {
		return r3.Vec{}, false
	}
	return e.Fixed.Hit(p.Vertex, dir)
}

func (e *Engine) trace(p *ParticleInfo) []integrator.State {
	return e.Tracker.Trajectory(p.Vertex, p.Momentum, p.Charge, p.Mass)
}

func straightHit(p *ParticleInfo, pc *PlaneConfig) (r3.Vec, bool) {
	dir := p.P3()
	if r3.Norm(dir) == 0 {
		return r3.Vec{}, false
	}
	hit, _, ok := pc.IntersectRay(p.Vertex, r3.Unit(dir))
	if !ok {
		return r3.Vec{}, false
	}
	return hit, pc.Contains(hit)
}

// traceHit looks for the first crossing of pc along a trajectory that lands
// inside the plane with an accepted local transverse momentum.
func traceHit(traj []integrator.State, pc *PlaneConfig) (r3.Vec, bool) {
	if len(traj) < 2 {
		return r3.Vec{}, false
	}
	localX, _ := pc.Axes()

	prev := pc.SignedDistance(traj[0].Position)
	for i := 1; i < len(traj); i++ {
		cur := pc.SignedDistance(traj[i].Position)
		if prev*cur > 0 {
			prev = cur
			continue
		}

		t := 0.0
		if sum := math.Abs(prev) + math.Abs(cur); sum > 0 {
			t = math.Abs(prev) / sum
		}
		hit := geom.Lerp(traj[i-1].Position, traj[i].Position, t)
		if pc.Contains(hit) {
			mom := geom.Lerp(traj[i-1].Momentum, traj[i].Momentum, t)
			if pc.AcceptsPx(r3.Dot(mom, localX)) {
				return hit, true
			}
		}
		prev = cur
	}
	return r3.Vec{}, false
}
