package reco

import (
	"bytes"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/smtrack/field"
	"github.com/phil-mansfield/smtrack/integrator"
	"github.com/phil-mansfield/smtrack/io"
)

func init() {
	io.SetLogOutput(&bytes.Buffer{})
}

// magnet returns a 1 T field along +y filling |z| <= 1000 mm and empty
// beyond it, so that tracks leave the field on straight lines.
func magnet() *field.Map {
	m := field.NewUniform([3]int{3, 3, 3},
		r3.Vec{X: 0, Y: -500, Z: 0}, r3.Vec{X: 3000, Y: 500, Z: 1000},
		r3.Vec{Y: 1})
	m.SetRotation(0)
	return m
}

// syntheticTrack traces p forward from target and returns the trajectory
// points closest to z = z1 and z = z2.
func syntheticTrack(
	t *testing.T, f integrator.Field, target, p r3.Vec, z1, z2 float64,
) Track {
	tr := integrator.New(f, integrator.DefaultConfig())
	traj := tr.Trajectory(target, integrator.FourMomentum(p, ProtonMass),
		1, ProtonMass)

	pick := func(z float64) r3.Vec {
		best, pos := math.Inf(1), r3.Vec{}
		for _, s := range traj {
			if d := math.Abs(s.Position.Z - z); d < best {
				best, pos = d, s.Position
			}
		}
		require.Less(t, best, 1.0, "trajectory reaches z = %g", z)
		return pos
	}
	return Track{Start: pick(z1), End: pick(z2)}
}

func TestNewProblem(t *testing.T) {
	tr := integrator.New(magnet(), integrator.DefaultConfig())
	track := Track{Start: r3.Vec{Z: 2000}, End: r3.Vec{X: 100, Z: 3000}}

	pr, ok := NewProblem(tr, track, r3.Vec{}, 1, ProtonMass)
	require.True(t, ok)
	assert.Equal(t, track.End, pr.Origin, "starts from the farther hit")
	assert.InDelta(t, 1, r3.Norm(pr.Direction), 1e-12)
	assert.Less(t, pr.Direction.Z, 0.0, "points toward the nearer hit")
	assert.Equal(t, -1.0, pr.Charge)

	// Swapping the hits doesn't change the problem.
	swapped, ok := NewProblem(tr, Track{Start: track.End, End: track.Start},
		r3.Vec{}, 1, ProtonMass)
	require.True(t, ok)
	assert.Equal(t, pr.Origin, swapped.Origin)
	assert.Equal(t, pr.Direction, swapped.Direction)

	_, ok = NewProblem(tr, Track{Start: r3.Vec{Z: 5}, End: r3.Vec{Z: 5}},
		r3.Vec{}, 1, ProtonMass)
	assert.False(t, ok)
}

func TestRoundTrip(t *testing.T) {
	f := magnet()
	truth := r3.Vec{Z: 1000}
	track := syntheticTrack(t, f, r3.Vec{}, truth, 2000, 3000)

	solvers := []struct {
		name string
		s    Solver
	}{
		{"grid", DefaultGridSearch()},
		{"gradient", &GradientDescent{PInit: 900, LearningRate: 50, MaxIterations: 200}},
		{"minimize", &Minimizer{PInit: 900, PMin: MinP, PMax: MaxP, MaxIterations: 100}},
	}

	r := New(f, integrator.DefaultConfig())
	for i, test := range solvers {
		res := r.ReconstructAtTarget(track, r3.Vec{}, test.s)
		if !res.Success {
			t.Errorf("%d) %s: no convergence (%s), distance %g mm, p = %g",
				i, test.name, res.Status, res.Distance, res.P)
			continue
		}
		assert.LessOrEqual(t, res.Distance, r.Options.Tolerance, test.name)
		assert.InDelta(t, truth.Z, res.Momentum.Pz(), 20, test.name)
		assert.InDelta(t, 0, res.Momentum.Px(), 20, test.name)
		assert.InDelta(t, 0, res.Momentum.Py(), 1e-6, test.name)
		assert.InDelta(t, 1000, res.Momentum.P(), 20, test.name)

		e := math.Sqrt(res.Momentum.P()*res.Momentum.P() + ProtonMass*ProtonMass)
		assert.InDelta(t, e, res.Momentum.E(), 1e-6, test.name)
		assert.Greater(t, res.Iterations, 0, test.name)
	}
}

func TestGridDiagnostics(t *testing.T) {
	f := magnet()
	track := syntheticTrack(t, f, r3.Vec{}, r3.Vec{Z: 1000}, 2000, 3000)

	r := New(f, integrator.DefaultConfig())
	r.Options.SaveTrajectories = true
	res := r.ReconstructAtTarget(track, r3.Vec{}, DefaultGridSearch())

	require.True(t, res.Success)
	assert.Len(t, res.TrialMomenta, gridSamples*res.Iterations)
	assert.Len(t, res.Distances, len(res.TrialMomenta))
	assert.Len(t, res.TrialTrajectories, len(res.TrialMomenta))
	assert.NotEmpty(t, res.BestTrajectory)
	assert.Equal(t, MinP, res.TrialMomenta[0])
	assert.Equal(t, MaxP, res.TrialMomenta[gridSamples-1])

	minDist := math.Inf(1)
	for _, d := range res.Distances {
		minDist = math.Min(minDist, d)
	}
	assert.Equal(t, minDist, res.Distance, "best trial is reported")
}

func TestNonConvergenceKeepsBest(t *testing.T) {
	f := magnet()
	track := syntheticTrack(t, f, r3.Vec{}, r3.Vec{Z: 1000}, 2000, 3000)

	r := New(f, integrator.DefaultConfig())
	r.Options.Tolerance = 1e-9
	res := r.ReconstructAtTarget(track, r3.Vec{},
		&GridSearch{PMin: MinP, PMax: MaxP, MaxRounds: 1})

	assert.False(t, res.Success)
	assert.Equal(t, "round limit reached", res.Status)
	assert.False(t, math.IsInf(res.Distance, 1))
	assert.InDelta(t, 1000, res.P, (MaxP-MinP)/(gridSamples-1))
	assert.Greater(t, res.Momentum.P(), 0.0)
}

func TestDegenerateInput(t *testing.T) {
	f := magnet()
	r := New(f, integrator.DefaultConfig())

	res := r.ReconstructAtTarget(
		Track{Start: r3.Vec{Z: 2000}, End: r3.Vec{Z: 2000}}, r3.Vec{},
		DefaultGridSearch(),
	)
	assert.False(t, res.Success)
	assert.Equal(t, "zero-length track", res.Status)
	assert.True(t, math.IsInf(res.Distance, 1))

	track := Track{Start: r3.Vec{Z: 2000}, End: r3.Vec{Z: 3000}}
	tests := []struct {
		s      Solver
		status string
	}{
		{&ThreePointFit{Momentum: r3.Vec{Z: 1000}, SigmaTarget: 0, SigmaStart: 1, SigmaEnd: 1}, "non-positive sigma"},
		{&ThreePointFit{Momentum: r3.Vec{Z: 1000}, SigmaTarget: 1, SigmaStart: -1, SigmaEnd: 1}, "non-positive sigma"},
		{&ThreePointFit{SigmaTarget: 1, SigmaStart: 1, SigmaEnd: 1}, "zero momentum"},
		{&GridSearch{PMin: 100, PMax: 50, MaxRounds: 3}, "invalid momentum window"},
		{&Minimizer{PInit: 500, PMin: 0, PMax: 50, MaxIterations: 3}, "invalid momentum window"},
		{&GradientDescent{PInit: 500, MaxIterations: 3}, "non-positive learning rate"},
	}
	for i, test := range tests {
		res := r.ReconstructAtTarget(track, r3.Vec{}, test.s)
		assert.False(t, res.Success, "%d)", i)
		assert.Equal(t, test.status, res.Status, "%d)", i)
		assert.Equal(t, 0.0, res.Momentum.P(), "%d)", i)
	}
}

func TestThreePointFit(t *testing.T) {
	// A field with no edges along the path, so that moving the vertex only
	// translates the trajectory.
	f := field.NewUniform([3]int{3, 3, 3},
		r3.Vec{X: 0, Y: -500, Z: 0}, r3.Vec{X: 6000, Y: 500, Z: 6000},
		r3.Vec{Y: 1})
	f.SetRotation(0)

	p := r3.Vec{X: 100, Z: 1000}
	track := syntheticTrack(t, f, r3.Vec{}, p, 1500, 2500)

	guess := r3.Vec{X: 3, Y: 2, Z: -4}
	fit := &ThreePointFit{
		Momentum:    p,
		SigmaTarget: 1, SigmaStart: 0.5, SigmaEnd: 0.5,
		MaxIterations: 200,
		Guess:         &guess,
	}

	r := New(f, integrator.DefaultConfig())
	r.Options.SaveTrajectories = true
	res := r.ReconstructAtTarget(track, r3.Vec{}, fit)

	require.True(t, res.Success, "status: %s, distance %g", res.Status, res.Distance)
	assert.InDelta(t, 0, res.Vertex.X, 0.5)
	assert.InDelta(t, 0, res.Vertex.Y, 0.5)
	assert.InDelta(t, 0, res.Vertex.Z, 0.5)
	assert.Less(t, res.Chi2, 1.0)
	assert.InDelta(t, r3.Norm(p), res.P, 1e-9)
	assert.InDelta(t, p.X, res.Momentum.Px(), 1e-9)
	assert.NotEmpty(t, res.BestTrajectory)
}

func TestPathDistance(t *testing.T) {
	traj := []integrator.State{
		{Position: r3.Vec{}}, {Position: r3.Vec{X: 10}},
		{Position: r3.Vec{X: 10, Y: 10}},
	}
	tests := []struct {
		pt   r3.Vec
		dist float64
	}{
		{r3.Vec{X: 5, Y: 3}, 3},
		{r3.Vec{X: -4, Y: 3}, 5},
		{r3.Vec{X: 12, Y: 5}, 2},
		{r3.Vec{X: 10, Y: 5}, 0},
	}
	for i, test := range tests {
		assert.InDelta(t, test.dist, PathDistance(traj, test.pt), 1e-12,
			"%d) %v", i, test.pt)
	}
	assert.Equal(t, missResidual, PathDistance(nil, r3.Vec{}))
	assert.Equal(t, 5.0, PathDistance(traj[:1], r3.Vec{X: 3, Y: 4}))
}

func TestFromConfig(t *testing.T) {
	w := io.DefaultReconstructWrapper()
	tests := []struct {
		method string
		check  func(Solver) bool
	}{
		{"Grid", func(s Solver) bool { _, ok := s.(*GridSearch); return ok }},
		{"gradient", func(s Solver) bool { _, ok := s.(*GradientDescent); return ok }},
		{"MINIMIZE", func(s Solver) bool { _, ok := s.(*Minimizer); return ok }},
		{"ThreePoint", func(s Solver) bool { _, ok := s.(*ThreePointFit); return ok }},
	}
	for i, test := range tests {
		w.Reconstruct.Method = test.method
		r, s, err := FromConfig(magnet(), &w.Reconstruct, &w.Tracking)
		require.NoError(t, err, "%d)", i)
		assert.True(t, test.check(s), "%d) %s", i, test.method)
		assert.Equal(t, ProtonMass, r.Mass)
		assert.Equal(t, 1.0, r.Options.Tolerance)
	}

	w.Reconstruct.Method = "Newton"
	_, _, err := FromConfig(magnet(), &w.Reconstruct, &w.Tracking)
	assert.Error(t, err)
}
