package reco

import (
	"math"
)

const (
	gridSamples = 25
	// gridNarrowing is the half-width of the next round's window as a
	// fraction of the current window's width.
	gridNarrowing = 0.3
)

// GridSearch samples evenly spaced momentum magnitudes and narrows the window
// around the best sample each round.
type GridSearch struct {
	PMin, PMax float64 // MeV/c
	MaxRounds  int
}

// DefaultGridSearch searches [50, 5000] MeV/c for up to 10 rounds.
func DefaultGridSearch() *GridSearch {
	return &GridSearch{PMin: MinP, PMax: MaxP, MaxRounds: 10}
}

func (g *GridSearch) Solve(pr *Problem, opt Options) Result {
	res := Result{Distance: math.Inf(1), Status: "round limit reached"}
	if g.PMin <= 0 || g.PMax <= g.PMin {
		log.Warnf("Invalid momentum window [%g, %g].", g.PMin, g.PMax)
		return failed("invalid momentum window")
	}

	lo, hi := g.PMin, g.PMax
	bestP, bestDist := (g.PMin+g.PMax)/2, math.Inf(1)

	for round := 0; round < g.MaxRounds; round++ {
		res.Iterations = round + 1
		roundP, roundDist := bestP, math.Inf(1)

		dp := (hi - lo) / (gridSamples - 1)
		for i := 0; i < gridSamples; i++ {
			p := lo + float64(i)*dp
			traj := pr.Trace(p)
			_, dist := pr.Momentum(traj)
			res.record(opt, p, dist, traj)

			if dist < roundDist {
				roundP, roundDist = p, dist
			}
		}

		if roundDist < bestDist {
			bestP, bestDist = roundP, roundDist
		}
		log.Debugf("Round %d: [%.2f, %.2f] MeV/c, best p = %.3f, "+
			"distance = %.3f mm", round, lo, hi, bestP, bestDist)

		if bestDist <= opt.Tolerance {
			res.Status = "converged"
			break
		}

		width := (hi - lo) * gridNarrowing
		lo = math.Max(g.PMin, bestP-width)
		hi = math.Min(g.PMax, bestP+width)
	}

	res.finish(pr, opt, bestP)
	return res
}
