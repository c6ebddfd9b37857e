package reco

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/diff/fd"
	"gonum.org/v1/gonum/optimize"
)

// maxBoundedStep is the largest finite difference step, in the transformed
// parameter, used for gradients.
const maxBoundedStep = 0.1

// Minimizer hands the residual to a quasi-Newton minimizer, BFGS, and retries
// with Nelder-Mead if BFGS stops without converging.
//
// The momentum is bounded to [PMin, PMax] by minimizing over u with
// p = PMin + (PMax - PMin) (sin u + 1) / 2, so neither method needs to know
// about the bounds.
type Minimizer struct {
	PInit, PMin, PMax float64 // MeV/c
	MaxIterations     int
}

// DefaultMinimizer starts at 500 MeV/c inside [50, 5000] MeV/c.
func DefaultMinimizer() *Minimizer {
	return &Minimizer{PInit: 500, PMin: MinP, PMax: MaxP, MaxIterations: 100}
}

func (m *Minimizer) toP(u float64) float64 {
	return m.PMin + (m.PMax-m.PMin)*(math.Sin(u)+1)/2
}

func (m *Minimizer) toU(p float64) float64 {
	s := 2*(clamp(p, m.PMin, m.PMax)-m.PMin)/(m.PMax-m.PMin) - 1
	return math.Asin(clamp(s, -1, 1))
}

func (m *Minimizer) Solve(pr *Problem, opt Options) Result {
	if m.PMin <= 0 || m.PMax <= m.PMin {
		log.Warnf("Invalid momentum window [%g, %g].", m.PMin, m.PMax)
		return failed("invalid momentum window")
	}

	res := Result{}
	f := func(u float64) float64 {
		p := m.toP(u)
		if !opt.SaveTrajectories {
			return pr.Residual(p)
		}
		traj := pr.Trace(p)
		_, dist := pr.Momentum(traj)
		res.record(opt, p, dist, traj)
		return dist
	}

	resid := func(u float64) float64 { return pr.Residual(m.toP(u)) }
	problem := optimize.Problem{
		Func: func(x []float64) float64 { return f(x[0]) },
		Grad: func(grad, x []float64) {
			u := x[0]
			p := m.toP(u)
			dpdu := math.Abs((m.PMax - m.PMin) / 2 * math.Cos(u))
			h := maxBoundedStep
			if dpdu > 0 {
				h = math.Min(h, math.Max(minDiffStep, relDiffStep*p)/dpdu)
			}
			grad[0] = fd.Derivative(resid, u, &fd.Settings{
				Formula: fd.Central, Step: h,
			})
		},
	}

	settings := func() *optimize.Settings {
		return &optimize.Settings{
			MajorIterations: m.MaxIterations,
			FuncEvaluations: 20 * m.MaxIterations,
			Converger: &optimize.FunctionConverge{
				Absolute: 1e-3, Iterations: 20,
			},
		}
	}

	u0 := m.toU(m.PInit)
	bestU, bestF := u0, math.Inf(1)

	bfgs, err := optimize.Minimize(problem, []float64{u0}, settings(), &optimize.BFGS{})
	if bfgs != nil {
		res.Iterations += bfgs.MajorIterations
		if bfgs.F < bestF {
			bestU, bestF = bfgs.X[0], bfgs.F
		}
	}

	if converged(bfgs, err) && bestF <= opt.Tolerance {
		res.Status = "BFGS: " + bfgs.Status.String()
	} else {
		if err != nil {
			log.Debugf("BFGS failed: %s", err.Error())
		}
		log.Infof("BFGS did not converge, trying Nelder-Mead.")

		nm, err := optimize.Minimize(problem, []float64{bestU}, settings(), &optimize.NelderMead{})
		if nm != nil {
			res.Iterations += nm.MajorIterations
			if nm.F < bestF {
				bestU, bestF = nm.X[0], nm.F
			}
		}
		switch {
		case err != nil:
			res.Status = fmt.Sprintf("Nelder-Mead: %s", err.Error())
		case nm != nil:
			res.Status = "Nelder-Mead: " + nm.Status.String()
		}
	}

	log.Debugf("Minimizer finished at p = %.3f MeV/c, residual %.3f mm.",
		m.toP(bestU), bestF)
	res.finish(pr, opt, m.toP(bestU))
	return res
}

func converged(res *optimize.Result, err error) bool {
	if err != nil || res == nil {
		return false
	}
	switch res.Status {
	case optimize.GradientThreshold, optimize.FunctionConvergence,
		optimize.StepConvergence, optimize.MethodConverge:
		return true
	}
	return false
}
