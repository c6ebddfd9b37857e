package io

import (
	"bytes"
	"encoding/binary"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGridRoundTrip(t *testing.T) {
	h := &GridHeader{
		N:      [3]int64{2, 3, 1},
		Min:    [3]float64{-1, -2, 0},
		Max:    [3]float64{1, 2, 0},
		Blocks: 2,
	}
	bx := []float64{1, 2, 3, 4, 5, 6}
	by := []float64{-1, -2, -3, -4, -5, -6.5}

	file := filepath.Join(t.TempDir(), "grid.dat")
	require.NoError(t, WriteGrid(file, h, bx, by))

	hd := &GridHeader{}
	require.NoError(t, ReadGridHeader(file, hd))
	assert.Equal(t, *h, *hd, "header")

	hd, blocks, err := ReadGrid(file)
	require.NoError(t, err)
	assert.Equal(t, *h, *hd)
	assert.Equal(t, [][]float64{bx, by}, blocks)
}

func TestWriteGridChecksLengths(t *testing.T) {
	h := &GridHeader{N: [3]int64{2, 2, 2}, Blocks: 1}
	buf := &bytes.Buffer{}
	assert.Error(t, WriteGridTo(buf, h, make([]float64, 7)), "short block")
	assert.Error(t, WriteGridTo(buf, h), "missing block")
}

func TestReadGridBigEndian(t *testing.T) {
	h := GridHeader{N: [3]int64{1, 1, 2}, Blocks: 1}
	buf := &bytes.Buffer{}
	binary.Write(buf, binary.BigEndian, int32(-1))
	binary.Write(buf, binary.BigEndian, int32(binary.Size(h)))
	binary.Write(buf, binary.BigEndian, h)
	binary.Write(buf, binary.BigEndian, []float64{3.5, -7})

	hd, blocks, err := ReadGridFrom(buf)
	require.NoError(t, err)
	assert.Equal(t, h, *hd)
	assert.Equal(t, []float64{3.5, -7}, blocks[0])
}

func TestReadGridErrors(t *testing.T) {
	h := &GridHeader{N: [3]int64{2, 2, 2}, Blocks: 1}
	buf := &bytes.Buffer{}
	require.NoError(t, WriteGridTo(buf, h, make([]float64, 8)))
	data := buf.Bytes()

	tests := []struct {
		name string
		data []byte
	}{
		{"empty", nil},
		{"truncated header", data[:12]},
		{"truncated block", data[:len(data)-3]},
		{"bad flag", append([]byte{7, 0, 0, 0}, data[4:]...)},
		{"bad header size", append(append([]byte{}, data[:4]...),
			append([]byte{1, 0, 0, 0}, data[8:]...)...)},
	}

	for i, test := range tests {
		_, _, err := ReadGridFrom(bytes.NewReader(test.data))
		if !errors.Is(err, ErrBadContainer) {
			t.Errorf("%d) %s: expected ErrBadContainer, got %v",
				i+1, test.name, err)
		}
	}
}

func TestParticleTableRoundTrip(t *testing.T) {
	pt := &ParticleTable{}
	pt.Append(1, 10, -20, 627, 0, 0, 0, 2212, 1, 938.272)
	pt.Append(1, -5, 3, 600, 0.5, 0, -1, 2112, 0, 939.565)
	pt.Append(2, 0, 0, 100, 0, 0, 0, 2212, 1, 938.272)

	file := filepath.Join(t.TempDir(), "particles.txt")
	require.NoError(t, WriteParticles(file, pt))

	got, err := ReadParticles(file)
	require.NoError(t, err)
	assert.Equal(t, 3, got.Len())
	assert.Equal(t, pt.Event, got.Event)
	assert.Equal(t, pt.PDG, got.PDG)
	assert.Equal(t, pt.Pz, got.Pz)
	assert.Equal(t, pt.Vx, got.Vx)
	assert.Equal(t, pt.Charge, got.Charge)
	assert.Equal(t, pt.Mass, got.Mass)
}

func TestReadParticlesMissingFile(t *testing.T) {
	_, err := ReadParticles(filepath.Join(t.TempDir(), "nope.txt"))
	assert.Error(t, err)
}

func TestExampleConfigs(t *testing.T) {
	dw := DefaultDeflectionWrapper()
	require.NoError(t, ReadConfigString(dw, ExampleDeflectionFile))
	assert.Equal(t, []float64{0, 5, 10}, dw.Deflection.Angle)
	assert.Equal(t, -4000.0, dw.Deflection.EntryZ, "default kept")
	assert.Equal(t, "path/to/field_map.table", dw.Field.FieldFile)
	assert.Equal(t, 30.0, dw.Field.RotationAngle)
	assert.Equal(t, 200.0, dw.Tracking.MaxTime)
	assert.True(t, dw.Deflection.ValidAngle())
	assert.True(t, dw.Deflection.ValidDirection())
	assert.NoError(t, dw.Tracking.Check())

	rw := DefaultReconstructWrapper()
	require.NoError(t, ReadConfigString(rw, ExampleReconstructFile))
	assert.True(t, rw.Reconstruct.ValidMethod())
	assert.True(t, rw.Reconstruct.ValidTrack())
	assert.True(t, rw.Reconstruct.ValidPRange())
	assert.Equal(t, 5000.0, rw.Reconstruct.EndZ)

	aw := DefaultAcceptanceWrapper()
	require.NoError(t, ReadConfigString(aw, ExampleAcceptanceFile))
	require.NoError(t, aw.CheckPlanes())
	require.Contains(t, aw.Plane, "pdc1")
	pdc := aw.Plane["pdc1"]
	assert.Equal(t, "pdc1", pdc.Name)
	assert.Equal(t, 1680.0, pdc.Width, "default width")
	assert.Equal(t, -100.0, pdc.PxMin, "default window")
	assert.Equal(t, 20.0, pdc.Angle)
	assert.Equal(t, 5.0, aw.Acceptance.TargetAngle)

	nw := DefaultAnalysisWrapper()
	require.NoError(t, ReadConfigString(nw, ExampleAnalysisFile))
	assert.Len(t, nw.Analysis.FieldFile, 2)
	assert.True(t, nw.Analysis.ValidStrength())
	assert.Equal(t, []float64{1.0, 1.2}, nw.Analysis.Strength)
	require.NoError(t, nw.CheckPlanes())

	nw.Analysis.Strength = nil
	assert.True(t, nw.Analysis.ValidStrength(), "strengths from file names")
	nw.Analysis.Strength = []float64{1}
	assert.False(t, nw.Analysis.ValidStrength())
	nw.Analysis.UsePlane = "pdc1"
	assert.Error(t, nw.CheckPlanes())
}

func TestValidators(t *testing.T) {
	con := &ReconstructConfig{Method: "gradient", PMin: 100, PMax: 50}
	assert.True(t, con.ValidMethod(), "case insensitive method")
	assert.False(t, con.ValidPRange())
	assert.False(t, con.ValidTrack(), "zero-length track")

	con.Method = "Simplex"
	assert.False(t, con.ValidMethod())

	shared := &SharedConfig{LogLevel: "loud"}
	assert.False(t, shared.ValidLogLevel())

	plane := &PlaneConfig{Angle: 95}
	assert.Error(t, plane.CheckInit("steep"))
	plane = &PlaneConfig{PxMin: 10, PxMax: -10}
	assert.Error(t, plane.CheckInit("inverted"))

	aw := DefaultAcceptanceWrapper()
	aw.Acceptance.Synthesize = false
	assert.Error(t, aw.CheckPlanes(), "no plane to use")
	aw.Acceptance.UsePlane = "missing"
	assert.Error(t, aw.CheckPlanes(), "unknown plane")
}

func TestSetLogLevel(t *testing.T) {
	buf := &bytes.Buffer{}
	SetLogOutput(buf)
	defer SetLogOutput(nopWriter{})

	require.NoError(t, SetLogLevel("warn"))
	log := NamedLogger("test")
	log.Info("hidden")
	log.Warn("shown")
	assert.NotContains(t, buf.String(), "hidden")
	assert.Contains(t, buf.String(), "shown")
	assert.Contains(t, buf.String(), "pkg=test")

	assert.Error(t, SetLogLevel("loud"))
	require.NoError(t, SetLogLevel("info"))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }
