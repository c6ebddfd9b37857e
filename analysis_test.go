package smtrack

import (
	"bytes"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/smtrack/acceptance"
	"github.com/phil-mansfield/smtrack/beam"
	"github.com/phil-mansfield/smtrack/field"
	"github.com/phil-mansfield/smtrack/io"
)

func init() {
	io.SetLogOutput(&bytes.Buffer{})
}

// magnet is a 1 T dipole filling |x| < 3 m and |z| < 1 m.
func magnet() *field.Map {
	m := field.NewUniform([3]int{3, 3, 3},
		r3.Vec{X: 0, Y: -500, Z: 0}, r3.Vec{X: 3000, Y: 500, Z: 1000},
		r3.Vec{Y: 1})
	m.SetRotation(0)
	return m
}

func particles() []acceptance.ParticleInfo {
	return []acceptance.ParticleInfo{
		acceptance.Proton(0, r3.Vec{Z: 627}),
		acceptance.Proton(1, r3.Vec{X: 50, Z: 627}),
		acceptance.Neutron(0, r3.Vec{Z: 600}),
		acceptance.Neutron(1, r3.Vec{X: 30, Y: -20, Z: 600}),
		acceptance.Neutron(2, r3.Vec{X: 600, Z: 100}),
	}
}

func TestStrengthFromName(t *testing.T) {
	tests := []struct {
		file string
		b    float64
	}{
		{"180626-1,20T-3000.table", 1.2},
		{"/maps/141114-0,8T-3000.table", 0.8},
		{"field_1.60T.table", 1.6},
		{"dir_2,00T/field.table", DefaultStrength},
		{"field.table", DefaultStrength},
	}
	for i, test := range tests {
		assert.InDelta(t, test.b, StrengthFromName(test.file), 1e-12,
			"%d) %s", i, test.file)
	}
}

func TestRunField(t *testing.T) {
	ps := particles()
	a := NewAnalysis(nil, []float64{0, 5}, ps)
	spec := FieldSpec{File: "magnet.table", Strength: 1}

	res := a.RunField(magnet(), spec)
	require.Len(t, res, 2)

	for i, r := range res {
		assert.Equal(t, a.Angles[i], r.Angle)
		assert.Equal(t, 1.0, r.Strength)
		assert.Equal(t, "magnet.table", r.FieldFile)
		assert.True(t, r.Target.Exact, "%g deg", r.Angle)
		assert.Equal(t, len(ps), r.Acceptance.Total)
		assert.True(t, r.Plane.Optimal, "%g deg", r.Angle)
		assert.False(t, r.Plane.Fixed)
		assert.Equal(t, -a.PxRange, r.Plane.PxMin)
		assert.Greater(t, r.Acceptance.PlaneHits, 0)
	}

	assert.Equal(t, r3.Vec{Z: -4000}, res[0].Target.Position)
	assert.InDelta(t, 0, res[0].Target.RotationAngle, 1e-12)

	// The deuteron beam bends toward -x.
	assert.Less(t, res[1].Target.Position.X, 0.0)
	assert.InDelta(t, -5, res[1].Target.RotationAngle, 0.1)
	assert.Greater(t, res[1].Target.Position.Z, -1000.0)

	// The reference proton defines the plane, so it is always accepted.
	for _, r := range res {
		e := acceptance.New(magnet())
		lab := acceptance.ToLab(ps[:1], r.Target.Position, r.Target.RotationAngle)
		_, hit := e.CheckPlaneHit(&lab[0], &r.Plane)
		assert.True(t, hit, "%g deg", r.Angle)
	}
}

func TestRunFieldFixedPlane(t *testing.T) {
	pc := acceptance.FixedPlane(r3.Vec{X: -2000, Z: 2500}, -40, -150, 150)
	a := NewAnalysis(nil, []float64{5}, particles())
	a.FixedPlane = &pc

	res := a.RunField(magnet(), FieldSpec{File: "magnet.table", Strength: 1})
	require.Len(t, res, 1)
	assert.Equal(t, pc, res[0].Plane)
	assert.True(t, res[0].Plane.Fixed)
}

func TestRun(t *testing.T) {
	dir := t.TempDir()
	m := magnet()
	require.NoError(t, m.Save(filepath.Join(dir, "180626-1,00T-3000.bin")))
	require.NoError(t, m.Save(filepath.Join(dir, "other.bin")))

	fields := []FieldSpec{
		// Only the container exists, so it is read instead.
		{File: filepath.Join(dir, "180626-1,00T-3000.table"), Strength: 1},
		{File: filepath.Join(dir, "missing.table"), Strength: 1.2},
		{File: filepath.Join(dir, "other.bin"), Strength: 1.4},
	}
	a := NewAnalysis(fields, []float64{0, 4}, particles())
	a.RotationAngle = 0
	a.Workers = 2

	res, err := a.Run()
	assert.Error(t, err, "missing field map")
	require.Len(t, res, 4)
	assert.Equal(t, fields[0].File, res[0].FieldFile)
	assert.Equal(t, 1.4, res[3].Strength)
	assert.Equal(t, res[1].Acceptance, res[3].Acceptance)

	single := NewAnalysis(fields[:1], []float64{0, 4}, particles())
	single.RotationAngle = 0
	want := single.RunField(magnet(), fields[0])
	assert.InDelta(t, want[1].Target.Position.X, res[1].Target.Position.X, 1e-9)
	assert.Equal(t, want[1].Acceptance, res[1].Acceptance)
}

func TestFromConfig(t *testing.T) {
	dir := t.TempDir()
	input := filepath.Join(dir, "particles.txt")
	require.NoError(t, io.WriteParticles(input, acceptance.ToTable(particles())))

	w := io.DefaultAnalysisWrapper()
	w.Analysis.FieldFile = []string{"141114-0,8T-3000.table", "180626-1,20T-3000.table"}
	w.Analysis.Angle = []float64{0, 5}
	w.Analysis.Input = input
	w.Analysis.Workers = 3
	w.Plane = map[string]*io.PlaneConfig{"pdc": {X: -1000, Z: 3000, Angle: -30}}
	require.NoError(t, w.CheckPlanes())

	a, err := FromConfig(w)
	require.NoError(t, err)
	assert.Equal(t, []FieldSpec{
		{"141114-0,8T-3000.table", 0.8}, {"180626-1,20T-3000.table", 1.2},
	}, a.Fields)
	assert.Len(t, a.Particles, 5)
	assert.Equal(t, 3, a.Workers)
	assert.Equal(t, 30.0, a.RotationAngle)
	assert.Equal(t, 5.0, a.Tracking.StepSize)
	assert.Nil(t, a.FixedPlane)

	w.Analysis.Strength = []float64{0.9, 1.3}
	w.Analysis.UsePlane = "pdc"
	a, err = FromConfig(w)
	require.NoError(t, err)
	assert.Equal(t, 1.3, a.Fields[1].Strength)
	require.NotNil(t, a.FixedPlane)
	assert.Equal(t, -30.0, a.FixedPlane.RotationAngle)

	w.Analysis.Input = filepath.Join(dir, "missing.txt")
	_, err = FromConfig(w)
	assert.Error(t, err)
}

func TestWriteReport(t *testing.T) {
	a := NewAnalysis(nil, []float64{0, 5}, particles())
	res := a.RunField(magnet(), FieldSpec{File: "magnet.table", Strength: 1.2})

	buf := &bytes.Buffer{}
	require.NoError(t, WriteReport(buf, res))
	out := buf.String()

	assert.Contains(t, out, "Configurations: 2")
	assert.Contains(t, out, "Field: magnet.table (1.20 T)")
	assert.Contains(t, out, "Deflection Angle: 5.00 deg")
	assert.Contains(t, out, "Tracking Plane (placed):")
	assert.Contains(t, out, "Total Events: 5")
	assert.Equal(t, 2, strings.Count(out, "Coincidence:"))

	lines := strings.Split(strings.TrimSpace(out), "\n")
	assert.True(t, strings.HasPrefix(strings.TrimSpace(lines[len(lines)-1]), "1.20"))
}

func TestSetupMacro(t *testing.T) {
	target := beam.Target{
		Angle:         5,
		Position:      r3.Vec{X: -80, Y: 0, Z: -650},
		RotationAngle: -5,
		Exact:         true,
	}

	buf := &bytes.Buffer{}
	require.NoError(t, SetupMacro(buf, target, 1.2, "180626-1,20T-3000.table",
		[]float64{100, 150}))

	s, err := ReadSetup(buf.String())
	require.NoError(t, err)
	assert.Equal(t, "180626-1,20T-3000.table", s.Setup.FieldFile)
	assert.Equal(t, 1.2, s.Setup.Strength)
	assert.Equal(t, 5.0, s.Setup.DeflectionAngle)
	assert.Equal(t, -80.0, s.Setup.TargetX)
	assert.Equal(t, -5.0, s.Setup.TargetAngle)

	// Beam, center proton, two pairs of edge protons and a neutron.
	require.Len(t, s.Shot, 7)
	bm := s.Shot["1"]
	assert.Equal(t, "deuteron", bm.Particle)
	assert.Equal(t, -4000.0, bm.Z)
	assert.Equal(t, 0.0, bm.AngleY)
	assert.InDelta(t, 380, bm.Energy, 0.01)

	rot := -5 * math.Pi / 180
	center := s.Shot["2"]
	assert.Equal(t, "proton", center.Particle)
	assert.Equal(t, -650.0, center.Z)
	assert.InDelta(t, rot, center.AngleY, 1e-6)
	kinetic := math.Sqrt(627*627+acceptance.ProtonMass*acceptance.ProtonMass) -
		acceptance.ProtonMass
	assert.InDelta(t, kinetic, center.Energy, 0.01)

	plus, minus := s.Shot["3"], s.Shot["4"]
	assert.InDelta(t, rot+math.Atan2(100, 627), plus.AngleY, 1e-6)
	assert.InDelta(t, rot-math.Atan2(100, 627), minus.AngleY, 1e-6)
	assert.InDelta(t, plus.Energy, minus.Energy, 1e-9)
	assert.Greater(t, plus.Energy, center.Energy)

	n := s.Shot["7"]
	assert.Equal(t, "neutron", n.Particle)
	assert.InDelta(t, rot, n.AngleY, 1e-6)
}

func TestWriteSetups(t *testing.T) {
	assert.Equal(t, "setup_B120T_deg5.0.cfg", SetupName(1.2, 5))
	assert.Equal(t, "setup_B80T_deg0.0.cfg", SetupName(0.8, 0))

	a := NewAnalysis(nil, []float64{0, 5}, particles())
	res := a.RunField(magnet(), FieldSpec{File: "/maps/magnet.table", Strength: 1})

	dir := filepath.Join(t.TempDir(), "setups")
	require.NoError(t, WriteSetups(dir, res, []float64{100}))

	for _, r := range res {
		b, err := os.ReadFile(filepath.Join(dir, SetupName(r.Strength, r.Angle)))
		require.NoError(t, err)
		s, err := ReadSetup(string(b))
		require.NoError(t, err)
		assert.Equal(t, "magnet.table", s.Setup.FieldFile)
		assert.Len(t, s.Shot, 5)
		assert.InDelta(t, r.Target.Position.Z, s.Setup.TargetZ, 1e-4)
	}
}
