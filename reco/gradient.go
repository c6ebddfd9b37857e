package reco

import (
	"math"
)

const (
	minDiffStep   = 10.0
	relDiffStep   = 0.01
	minGradient   = 1e-6
	minRate       = 0.1
	rateDecay     = 0.95
	decayAfter    = 10
	rateBacktrack = 0.5
)

// GradientDescent walks a single momentum magnitude downhill along a central
// difference estimate of the residual's slope.
type GradientDescent struct {
	PInit float64 // MeV/c
	// LearningRate is in (MeV/c)^2 / mm.
	LearningRate  float64
	MaxIterations int
}

// DefaultGradientDescent starts at 500 MeV/c with a learning rate of 50.
func DefaultGradientDescent() *GradientDescent {
	return &GradientDescent{PInit: 500, LearningRate: 50, MaxIterations: 100}
}

func (g *GradientDescent) Solve(pr *Problem, opt Options) Result {
	res := Result{Status: "iteration limit reached"}
	if g.LearningRate <= 0 {
		return failed("non-positive learning rate")
	}

	eval := func(p float64) float64 {
		traj := pr.Trace(p)
		_, dist := pr.Momentum(traj)
		res.record(opt, p, dist, traj)
		return dist
	}

	p := clamp(g.PInit, MinP, MaxP)
	dist := eval(p)
	rate := g.LearningRate

	for it := 0; it < g.MaxIterations; it++ {
		res.Iterations = it + 1
		if dist <= opt.Tolerance {
			res.Status = "converged"
			break
		}

		dp := math.Max(minDiffStep, relDiffStep*p)
		grad := (pr.Residual(p+dp) - pr.Residual(p-dp)) / (2 * dp)
		if math.Abs(grad) < minGradient {
			res.Status = "gradient vanished"
			break
		}

		if it > decayAfter {
			rate *= rateDecay
		}

		next := clamp(p-rate*grad, MinP, MaxP)
		nextDist := eval(next)
		if nextDist >= dist {
			rate *= rateBacktrack
			next = clamp(p-rate*grad, MinP, MaxP)
			nextDist = eval(next)
		}
		if nextDist < dist {
			p, dist = next, nextDist
		}

		log.Debugf("Iteration %d: p = %.3f MeV/c, distance = %.3f mm, "+
			"gradient = %.4g, rate = %.3g", it, p, dist, grad, rate)

		if rate < minRate {
			res.Status = "learning rate vanished"
			break
		}
	}
	if dist <= opt.Tolerance {
		res.Status = "converged"
	}

	res.finish(pr, opt, p)
	return res
}
