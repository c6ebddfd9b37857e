package acceptance

import (
	"fmt"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Result summarizes the classification of a particle sample. Acceptances are
// percentages of Total.
type Result struct {
	Total                            int
	PlaneHits, FixedHits, BothHits   int
	PlaneAcceptance, FixedAcceptance float64
	Coincidence                      float64

	// Polar angles, in degrees, of the particles hitting each detector, in
	// input order.
	PlaneThetas, FixedThetas []float64

	// ThetaEdges holds the bin edges of the angle histograms. Angles at or
	// beyond the last edge are counted in the overflow fields instead.
	ThetaEdges                   []float64
	PlaneHist, FixedHist         []float64
	PlaneOverflow, FixedOverflow int

	MeanPlaneTheta, MeanFixedTheta float64
}

func (res *Result) String() string {
	return fmt.Sprintf(
		"%d particles: plane %d (%.2f%%), fixed %d (%.2f%%), both %d (%.2f%%)",
		res.Total, res.PlaneHits, res.PlaneAcceptance,
		res.FixedHits, res.FixedAcceptance, res.BothHits, res.Coincidence,
	)
}

// classification is the outcome for one particle.
type classification struct {
	plane, fixed bool
	theta        float64
}

// ComputeAcceptance classifies every particle against the tracking plane(s)
// and the fixed detector. Particles should already be in the lab frame.
func (e *Engine) ComputeAcceptance(ps []ParticleInfo) Result {
	res := Result{Total: len(ps)}
	if len(ps) == 0 {
		log.Warnf("No particles to analyze.")
		return res
	}

	cls := e.classify(ps)
	for i := range cls {
		c := &cls[i]
		if c.plane {
			res.PlaneHits++
			res.PlaneThetas = append(res.PlaneThetas, c.theta)
		}
		if c.fixed {
			res.FixedHits++
			res.FixedThetas = append(res.FixedThetas, c.theta)
		}
		if c.plane && c.fixed {
			res.BothHits++
		}
	}

	total := float64(res.Total)
	res.PlaneAcceptance = 100 * float64(res.PlaneHits) / total
	res.FixedAcceptance = 100 * float64(res.FixedHits) / total
	res.Coincidence = 100 * float64(res.BothHits) / total

	if e.ThetaBins > 0 && e.ThetaMax > 0 {
		res.ThetaEdges = floats.Span(make([]float64, e.ThetaBins+1), 0, e.ThetaMax)
		res.PlaneHist, res.PlaneOverflow = histogram(res.ThetaEdges, res.PlaneThetas)
		res.FixedHist, res.FixedOverflow = histogram(res.ThetaEdges, res.FixedThetas)
	}
	if len(res.PlaneThetas) > 0 {
		res.MeanPlaneTheta = stat.Mean(res.PlaneThetas, nil)
	}
	if len(res.FixedThetas) > 0 {
		res.MeanFixedTheta = stat.Mean(res.FixedThetas, nil)
	}

	log.Infof("Acceptance: %s", res.String())
	return res
}

// classify tests every particle. Work is split across e.Workers goroutines,
// each of which handles every Workers-th particle.
func (e *Engine) classify(ps []ParticleInfo) []classification {
	out := make([]classification, len(ps))
	workers := e.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(ps) {
		workers = len(ps)
	}

	done := make(chan int, workers)
	for id := 0; id < workers-1; id++ {
		go e.chanClassify(id, workers, ps, out, done)
	}
	e.chanClassify(workers-1, workers, ps, out, done)

	for i := 0; i < workers; i++ {
		<-done
	}
	return out
}

func (e *Engine) chanClassify(
	id, stride int, ps []ParticleInfo, out []classification, done chan<- int,
) {
	for i := id; i < len(ps); i += stride {
		p := &ps[i]
		_, out[i].plane = e.CheckPlanes(p)
		_, out[i].fixed = e.CheckFixedHit(p)
		out[i].theta = p.Theta()
	}
	done <- id
}

// histogram bins thetas by edges. Values outside of the edges are counted
// separately since stat.Histogram requires every value to be binned.
func histogram(edges, thetas []float64) (counts []float64, overflow int) {
	lo, hi := edges[0], edges[len(edges)-1]
	in := make([]float64, 0, len(thetas))
	for _, th := range thetas {
		if th >= lo && th < hi {
			in = append(in, th)
		} else {
			overflow++
		}
	}
	sort.Float64s(in)
	counts = stat.Histogram(nil, edges, in, nil)
	return counts, overflow
}
