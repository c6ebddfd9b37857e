package reco

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/smtrack/integrator"
)

const (
	minMomentum    = 1e-6
	vertexDiffStep = 1e-3 // mm
)

// ThreePointFit holds the momentum fixed and fits the production point
// instead. The trace from a trial vertex is scored against the target and
// both hits:
//
//	chi^2 = (d_target/SigmaTarget)^2 + (d_start/SigmaStart)^2 + (d_end/SigmaEnd)^2
//
// where each d is the distance from the point to the traced path.
type ThreePointFit struct {
	Momentum                          r3.Vec  // MeV/c, at the production point
	SigmaTarget, SigmaStart, SigmaEnd float64 // mm
	MaxIterations                     int

	// Guess is the first trial vertex. The target is used if it's nil.
	Guess *r3.Vec
}

// residuals traces the particle forward from vertex and returns the distance
// of its path from the target and both hits.
func (t *ThreePointFit) residuals(
	pr *Problem, vertex r3.Vec,
) (dt, ds, de float64, traj []integrator.State) {
	// The problem's charge is set up for backward traces.
	traj = pr.Tracker.Trajectory(
		vertex, integrator.FourMomentum(t.Momentum, pr.Mass), -pr.Charge, pr.Mass,
	)
	dt = PathDistance(traj, pr.Target)
	ds = PathDistance(traj, pr.Track.Start)
	de = PathDistance(traj, pr.Track.End)
	return dt, ds, de, traj
}

func (t *ThreePointFit) chi2(dt, ds, de float64) float64 {
	xt, xs, xe := dt/t.SigmaTarget, ds/t.SigmaStart, de/t.SigmaEnd
	return xt*xt + xs*xs + xe*xe
}

func (t *ThreePointFit) Solve(pr *Problem, opt Options) Result {
	if t.SigmaTarget <= 0 || t.SigmaStart <= 0 || t.SigmaEnd <= 0 {
		log.Warnf("Non-positive sigma: target = %g, start = %g, end = %g.",
			t.SigmaTarget, t.SigmaStart, t.SigmaEnd)
		return failed("non-positive sigma")
	}
	if r3.Norm(t.Momentum) < minMomentum {
		log.Warnf("Fixed momentum %v is too small to trace.", t.Momentum)
		return failed("zero momentum")
	}

	res := Result{}
	vec := func(x []float64) r3.Vec { return r3.Vec{X: x[0], Y: x[1], Z: x[2]} }
	chi2 := func(x []float64) float64 {
		dt, ds, de, _ := t.residuals(pr, vec(x))
		return t.chi2(dt, ds, de)
	}

	problem := optimize.Problem{
		Func: chi2,
		Grad: func(grad, x []float64) {
			fd.Gradient(grad, chi2, x, &fd.Settings{
				Formula: fd.Central, Step: vertexDiffStep,
			})
		},
	}
	settings := func() *optimize.Settings {
		return &optimize.Settings{
			MajorIterations: t.MaxIterations,
			Converger: &optimize.FunctionConverge{
				Absolute: 1e-8, Iterations: 10,
			},
		}
	}

	guess := pr.Target
	if t.Guess != nil {
		guess = *t.Guess
	}
	best := []float64{guess.X, guess.Y, guess.Z}
	bestF := chi2(best)

	bfgs, err := optimize.Minimize(problem, best, settings(), &optimize.BFGS{})
	if bfgs != nil {
		res.Iterations += bfgs.MajorIterations
		if bfgs.F < bestF {
			best, bestF = bfgs.X, bfgs.F
		}
	}

	if converged(bfgs, err) {
		res.Status = "BFGS: " + bfgs.Status.String()
	} else {
		log.Infof("BFGS did not converge, trying Nelder-Mead.")
		nm, err := optimize.Minimize(problem, best, settings(), &optimize.NelderMead{})
		if nm != nil {
			res.Iterations += nm.MajorIterations
			if nm.F < bestF {
				best, bestF = nm.X, nm.F
			}
		}
		switch {
		case err != nil:
			res.Status = fmt.Sprintf("Nelder-Mead: %s", err.Error())
		case nm != nil:
			res.Status = "Nelder-Mead: " + nm.Status.String()
		}
	}

	dt, ds, de, traj := t.residuals(pr, vec(best))
	res.Vertex = vec(best)
	res.Chi2 = t.chi2(dt, ds, de)
	res.Distance = math.Max(dt, math.Max(ds, de))
	res.Success = res.Distance <= opt.Tolerance
	res.P = r3.Norm(t.Momentum)
	res.Momentum = integrator.FourMomentum(t.Momentum, pr.Mass)
	if opt.SaveTrajectories {
		res.BestTrajectory = traj
	}

	log.Debugf("Vertex %v: chi^2 = %.4g, distances %.3f, %.3f, %.3f mm",
		res.Vertex, res.Chi2, dt, ds, de)
	return res
}

// PathDistance returns the distance from pt to the polyline through a
// trajectory's positions.
func PathDistance(traj []integrator.State, pt r3.Vec) float64 {
	switch len(traj) {
	case 0:
		return missResidual
	case 1:
		return r3.Norm(r3.Sub(pt, traj[0].Position))
	}

	best := math.Inf(1)
	for i := 1; i < len(traj); i++ {
		a, b := traj[i-1].Position, traj[i].Position
		ab := r3.Sub(b, a)
		t := 0.0
		if l2 := r3.Norm2(ab); l2 > 0 {
			t = clamp(r3.Dot(r3.Sub(pt, a), ab)/l2, 0, 1)
		}
		d := r3.Norm(r3.Sub(pt, r3.Add(a, r3.Scale(t, ab))))
		if d < best {
			best = d
		}
	}
	return best
}
