// Package smtrack scans spectrometer configurations. For every field map and
// beam deflection angle it places the target, positions the tracking plane
// and computes the acceptance of a sample of reaction products.
package smtrack

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strconv"
	"strings"

	"github.com/phil-mansfield/smtrack/acceptance"
	"github.com/phil-mansfield/smtrack/beam"
	"github.com/phil-mansfield/smtrack/field"
	"github.com/phil-mansfield/smtrack/integrator"
	"github.com/phil-mansfield/smtrack/io"
)

// DefaultStrength is used for field maps whose strength can't be parsed from
// their file name.
const DefaultStrength = 1.0

var log = io.NamedLogger("smtrack")

// FieldSpec is a field map file and the field strength it was generated for.
type FieldSpec struct {
	File     string
	Strength float64 // T
}

// ConfigurationResult is the outcome for one field map and deflection angle.
type ConfigurationResult struct {
	Strength   float64
	FieldFile  string
	Angle      float64
	Target     beam.Target
	Plane      acceptance.PlaneConfig
	Acceptance acceptance.Result
}

// Analysis holds the parameters of a configuration scan.
type Analysis struct {
	Fields []FieldSpec
	Angles []float64 // degrees

	PxRange       float64 // MeV/c
	RotationAngle float64 // magnet rotation, degrees
	Workers       int

	// FixedPlane, if non-nil, is used for every configuration instead of a
	// plane placed for each target.
	FixedPlane *acceptance.PlaneConfig

	Particles []acceptance.ParticleInfo

	Tracking     integrator.Config
	BeamTracking integrator.Config
}

// NewAnalysis returns an Analysis with the default momentum window and
// tracking parameters.
func NewAnalysis(
	fields []FieldSpec, angles []float64, ps []acceptance.ParticleInfo,
) *Analysis {
	return &Analysis{
		Fields:        fields,
		Angles:        angles,
		PxRange:       acceptance.DefaultPxRange,
		RotationAngle: 30,
		Workers:       1,
		Particles:     ps,
		Tracking:      acceptance.DefaultTracking(),
		BeamTracking:  beam.DefaultTracking(),
	}
}

// FromConfig creates an Analysis from an [Analysis] config section and reads
// its particle table. CheckPlanes should have been called on w already.
func FromConfig(w *io.AnalysisWrapper) (*Analysis, error) {
	con := &w.Analysis
	ps, err := acceptance.ReadParticles(con.Input)
	if err != nil {
		return nil, err
	}

	fields := make([]FieldSpec, len(con.FieldFile))
	for i, file := range con.FieldFile {
		fields[i].File = file
		if len(con.Strength) > 0 {
			fields[i].Strength = con.Strength[i]
		} else {
			fields[i].Strength = StrengthFromName(file)
		}
	}

	a := NewAnalysis(fields, con.Angle, ps)
	a.PxRange = con.PxRange
	a.RotationAngle = con.RotationAngle
	a.Workers = con.Workers
	a.Tracking = integrator.ConfigFromTracking(&w.Tracking)

	if con.UsePlane != "" {
		plane, ok := w.Plane[con.UsePlane]
		if !ok {
			return nil, fmt.Errorf("No [Plane \"%s\"] section was given.", con.UsePlane)
		}
		pc := acceptance.PlaneFromConfig(plane)
		a.FixedPlane = &pc
	}
	return a, nil
}

var strengthPattern = regexp.MustCompile(`(\d+)[,.](\d+)T`)

// StrengthFromName reads the field strength from names like
// "180626-1,20T-3000.table" or "field_0.8T.table". DefaultStrength is
// returned if there is no strength in the name.
func StrengthFromName(file string) float64 {
	m := strengthPattern.FindStringSubmatch(filepath.Base(file))
	if m == nil {
		log.Warnf("Could not read a field strength from %s; using %g T.",
			file, DefaultStrength)
		return DefaultStrength
	}
	b, err := strconv.ParseFloat(m[1]+"."+m[2], 64)
	if err != nil {
		return DefaultStrength
	}
	return b
}

// LoadField reads a field table. If the table doesn't exist but a binary
// container with the same name and a .bin extension does, the container is
// read instead.
func LoadField(file string, rot float64) (*field.Map, error) {
	m := field.New()
	m.SetRotation(rot)

	bin := strings.TrimSuffix(file, filepath.Ext(file)) + ".bin"
	if _, err := os.Stat(file); os.IsNotExist(err) && bin != file {
		if _, err := os.Stat(bin); err == nil {
			log.Infof("%s doesn't exist; reading %s.", file, bin)
			return m, m.LoadContainer(bin)
		}
	}
	if strings.HasSuffix(file, ".bin") {
		return m, m.LoadContainer(file)
	}
	return m, m.Load(file)
}

// Run loads each field map in turn and analyzes every deflection angle in
// it. Maps which can't be loaded are skipped with an error logged, and the
// first load error is returned with the results of the other maps.
func (a *Analysis) Run() ([]ConfigurationResult, error) {
	var out []ConfigurationResult
	var firstErr error
	for i, spec := range a.Fields {
		log.Infof("Field map %d of %d: %s (%.2f T)",
			i+1, len(a.Fields), spec.File, spec.Strength)
		m, err := LoadField(spec.File, a.RotationAngle)
		if err != nil {
			log.Errorf("Skipping %s: %v", spec.File, err)
			if firstErr == nil {
				firstErr = err
			}
			continue
		}
		out = append(out, a.RunField(m, spec)...)
	}
	return out, firstErr
}

// RunField analyzes every deflection angle in a single field.
func (a *Analysis) RunField(f integrator.Field, spec FieldSpec) []ConfigurationResult {
	d := beam.NewDeflector(f)
	d.Tracker.Config = a.BeamTracking

	e := acceptance.New(f)
	e.Tracker.Config = a.Tracking
	e.Workers = a.Workers
	if a.FixedPlane != nil {
		e.SetPlane(*a.FixedPlane)
	}

	out := make([]ConfigurationResult, len(a.Angles))
	for i, angle := range a.Angles {
		t := d.TargetPosition(angle)
		acc := e.ForTarget(a.Particles, t.Position, t.RotationAngle,
			a.PxRange, a.FixedPlane == nil)

		out[i] = ConfigurationResult{
			Strength:   spec.Strength,
			FieldFile:  spec.File,
			Angle:      angle,
			Target:     t,
			Plane:      e.Plane,
			Acceptance: acc,
		}
		log.Infof("%.2f T, %g deg: %s", spec.Strength, angle, acc.String())
	}
	return out
}
