// Package reco reconstructs the momentum a charged particle had at its
// production point from two hits on downstream tracking planes.
//
// The hits fix a straight track segment. A trial momentum magnitude is
// propagated backward from the farther hit with the charge inverted, and the
// closest approach of that trace to the target point is the residual which
// the solvers drive toward zero.
package reco

import (
	"fmt"
	"math"
	"strings"

	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/smtrack/integrator"
	"github.com/phil-mansfield/smtrack/io"
)

const (
	// ProtonMass in MeV/c^2.
	ProtonMass = 938.272
	// MinP and MaxP bound the momentum magnitudes, in MeV/c, that iterative
	// solvers may try.
	MinP = 50.0
	MaxP = 5000.0

	// minTrackLength is the shortest track, in mm, that defines a direction.
	minTrackLength = 1e-6
	// missResidual is the residual of a trace with no points.
	missResidual = 1e6
)

var log = io.NamedLogger("reco")

// Track is a pair of hits on the tracking planes, in mm.
type Track struct {
	Start, End r3.Vec
}

// Problem is everything needed to evaluate a trial momentum. It is passed
// to solvers explicitly, so any number of reconstructions may run at once.
type Problem struct {
	Tracker *integrator.Tracker
	Track   Track
	Target  r3.Vec

	// Origin is the hit the backward trace starts from and Direction is the
	// unit vector from it toward the other hit.
	Origin, Direction r3.Vec
	// Charge is the charge used for the backward trace, the negative of the
	// particle's charge.
	Charge float64
	Mass   float64
}

// NewProblem sets up the backward trace for a track. It returns false if the
// two hits are too close together to define a direction.
func NewProblem(
	tr *integrator.Tracker, track Track, target r3.Vec, charge, mass float64,
) (*Problem, bool) {
	origin, other := track.Start, track.End
	if r3.Norm(r3.Sub(track.End, target)) > r3.Norm(r3.Sub(track.Start, target)) {
		origin, other = track.End, track.Start
	}

	dir := r3.Sub(other, origin)
	if r3.Norm(dir) < minTrackLength {
		log.Warnf("Track from %v to %v has zero length.", track.Start, track.End)
		return nil, false
	}

	return &Problem{
		Tracker:   tr,
		Track:     track,
		Target:    target,
		Origin:    origin,
		Direction: r3.Unit(dir),
		Charge:    -charge,
		Mass:      mass,
	}, true
}

// Trace propagates a momentum of magnitude p backward from the origin hit.
func (pr *Problem) Trace(p float64) []integrator.State {
	p3 := r3.Scale(p, pr.Direction)
	return pr.Tracker.Trajectory(
		pr.Origin, integrator.FourMomentum(p3, pr.Mass), pr.Charge, pr.Mass,
	)
}

// Residual returns the closest approach, in mm, of the backward trace with
// momentum magnitude p to the target.
func (pr *Problem) Residual(p float64) float64 {
	_, d := integrator.Closest(pr.Trace(p), pr.Target)
	if math.IsInf(d, 1) {
		return missResidual
	}
	return d
}

// Momentum returns the particle's four-momentum at the point of a backward
// trace closest to the target, along with that point's distance. The
// momentum is negated to undo the time reversal.
func (pr *Problem) Momentum(traj []integrator.State) (fmom.PxPyPzE, float64) {
	i, d := integrator.Closest(traj, pr.Target)
	if i < 0 {
		return fmom.PxPyPzE{}, math.Inf(1)
	}
	p := r3.Scale(-1, traj[i].Momentum)
	return integrator.FourMomentum(p, pr.Mass), d
}

// Options are shared by every solver.
type Options struct {
	// Tolerance is the residual, in mm, below which a fit succeeds.
	Tolerance float64
	// SaveTrajectories keeps every trial trace in the Result.
	SaveTrajectories bool
}

// DefaultOptions returns a 1 mm tolerance with no saved traces.
func DefaultOptions() Options {
	return Options{Tolerance: 1}
}

// Result is the outcome of a reconstruction. When a solver doesn't converge
// the best point it found is still reported, with Success set to false.
type Result struct {
	Momentum fmom.PxPyPzE // at the production point
	// P is the momentum magnitude of the best backward trace.
	P        float64
	Distance float64 // closest approach to the target, mm
	Success  bool
	Status   string

	Iterations int

	// Vertex and Chi2 are only set by ThreePointFit.
	Vertex r3.Vec
	Chi2   float64

	TrialMomenta      []float64
	Distances         []float64
	TrialTrajectories [][]integrator.State
	BestTrajectory    []integrator.State
}

func failed(status string) Result {
	return Result{Distance: math.Inf(1), Status: status}
}

// record adds a trial to the result's diagnostics.
func (res *Result) record(
	opt Options, p, dist float64, traj []integrator.State,
) {
	if !opt.SaveTrajectories {
		return
	}
	res.TrialMomenta = append(res.TrialMomenta, p)
	res.Distances = append(res.Distances, dist)
	res.TrialTrajectories = append(res.TrialTrajectories, traj)
}

// finish fills in the momentum of the best trace for magnitude p.
func (res *Result) finish(pr *Problem, opt Options, p float64) {
	traj := pr.Trace(p)
	res.P = p
	res.Momentum, res.Distance = pr.Momentum(traj)
	res.Success = res.Distance <= opt.Tolerance
	if opt.SaveTrajectories {
		res.BestTrajectory = traj
	}
}

// Solver is a reconstruction strategy.
type Solver interface {
	Solve(pr *Problem, opt Options) Result
}

var (
	_ Solver = &GridSearch{}
	_ Solver = &GradientDescent{}
	_ Solver = &Minimizer{}
	_ Solver = &ThreePointFit{}
)

// Reconstructor holds the field and particle hypothesis for a series of
// reconstructions.
type Reconstructor struct {
	Tracker *integrator.Tracker
	Charge  float64 // e
	Mass    float64 // MeV/c^2
	Options Options
}

// New returns a proton Reconstructor.
func New(f integrator.Field, con integrator.Config) *Reconstructor {
	return &Reconstructor{
		Tracker: integrator.New(f, con),
		Charge:  1,
		Mass:    ProtonMass,
		Options: DefaultOptions(),
	}
}

// ReconstructAtTarget finds the momentum at target of the particle which
// left track.
func (r *Reconstructor) ReconstructAtTarget(
	track Track, target r3.Vec, s Solver,
) Result {
	pr, ok := NewProblem(r.Tracker, track, target, r.Charge, r.Mass)
	if !ok {
		return failed("zero-length track")
	}
	log.Infof("Reconstructing from %v toward target %v.", pr.Origin, target)

	res := s.Solve(pr, r.Options)
	if res.Success {
		log.Infof("Converged: |p| = %.2f MeV/c, distance %.3f mm.",
			res.Momentum.P(), res.Distance)
	} else {
		log.Warnf("Did not converge (%s): |p| = %.2f MeV/c, distance %.3f mm.",
			res.Status, res.Momentum.P(), res.Distance)
	}
	return res
}

// FromConfig builds a Reconstructor and the solver named by the config's
// Method.
func FromConfig(
	f integrator.Field, con *io.ReconstructConfig, tr *io.TrackingConfig,
) (*Reconstructor, Solver, error) {
	r := New(f, integrator.ConfigFromTracking(tr))
	r.Charge, r.Mass = con.Charge, con.Mass
	r.Options = Options{
		Tolerance:        con.Tolerance,
		SaveTrajectories: con.SaveTrajectories,
	}

	switch strings.ToLower(con.Method) {
	case "grid":
		return r, &GridSearch{
			PMin: con.PMin, PMax: con.PMax, MaxRounds: con.MaxRounds,
		}, nil
	case "gradient":
		return r, &GradientDescent{
			PInit: con.PInit, LearningRate: con.LearningRate,
			MaxIterations: con.MaxIterations,
		}, nil
	case "minimize":
		return r, &Minimizer{
			PInit: con.PInit, PMin: con.PMin, PMax: con.PMax,
			MaxIterations: con.MaxIterations,
		}, nil
	case "threepoint":
		return r, &ThreePointFit{
			Momentum:      r3.Vec{X: con.MomentumX, Y: con.MomentumY, Z: con.MomentumZ},
			SigmaTarget:   con.SigmaTarget,
			SigmaStart:    con.SigmaStart,
			SigmaEnd:      con.SigmaEnd,
			MaxIterations: con.MaxIterations,
		}, nil
	}
	return nil, nil, fmt.Errorf("Unrecognized Method '%s'.", con.Method)
}

func clamp(x, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, x))
}
