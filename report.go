package smtrack

import (
	"fmt"
	stdio "io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/smtrack/acceptance"
	"github.com/phil-mansfield/smtrack/beam"
	"github.com/phil-mansfield/smtrack/io"
)

// WriteReport writes a plain text summary of a configuration scan: one block
// per configuration followed by a table of every configuration.
func WriteReport(w stdio.Writer, results []ConfigurationResult) error {
	b := &strings.Builder{}
	rule := strings.Repeat("=", 47)
	fmt.Fprintf(b, "%s\n  Acceptance Analysis Report\n%s\n\n", rule, rule)
	fmt.Fprintf(b, "Configurations: %d\n\n", len(results))

	for i := range results {
		r := &results[i]
		t, pc, acc := &r.Target, &r.Plane, &r.Acceptance

		fmt.Fprintf(b, "%s\n", strings.Repeat("-", 47))
		fmt.Fprintf(b, "Field: %s (%.2f T)\n", r.FieldFile, r.Strength)
		fmt.Fprintf(b, "Deflection Angle: %.2f deg\n\n", r.Angle)

		fmt.Fprintf(b, "Target Position:\n")
		fmt.Fprintf(b, "  X = %.2f mm\n  Y = %.2f mm\n  Z = %.2f mm\n",
			t.Position.X, t.Position.Y, t.Position.Z)
		fmt.Fprintf(b, "  Rotation Angle = %.2f deg\n", t.RotationAngle)
		if !t.Exact {
			fmt.Fprintf(b, "  (closest point, %.2f deg from the requested angle)\n",
				t.AngleError)
		}
		fmt.Fprintf(b, "\n")

		mode := "placed"
		if pc.Fixed {
			mode = "fixed"
		} else if !pc.Optimal {
			mode = "default"
		}
		fmt.Fprintf(b, "Tracking Plane (%s):\n", mode)
		fmt.Fprintf(b, "  Position: (%.2f, %.2f, %.2f) mm\n",
			pc.Center.X, pc.Center.Y, pc.Center.Z)
		fmt.Fprintf(b, "  Rotation: %.2f deg\n", pc.RotationAngle)
		fmt.Fprintf(b, "  Px range: [%.1f, %.1f] MeV/c\n\n", pc.PxMin, pc.PxMax)

		fmt.Fprintf(b, "Acceptance:\n")
		fmt.Fprintf(b, "  Total Events: %d\n", acc.Total)
		fmt.Fprintf(b, "  Tracking Plane: %.2f %% (%d hits, mean theta %.2f deg)\n",
			acc.PlaneAcceptance, acc.PlaneHits, acc.MeanPlaneTheta)
		fmt.Fprintf(b, "  Neutron Wall: %.2f %% (%d hits, mean theta %.2f deg)\n",
			acc.FixedAcceptance, acc.FixedHits, acc.MeanFixedTheta)
		fmt.Fprintf(b, "  Coincidence: %.2f %% (%d hits)\n\n",
			acc.Coincidence, acc.BothHits)
	}

	fmt.Fprintf(b, "%s\n", rule)
	fmt.Fprintf(b, "%6s %6s %28s %7s %8s %8s %8s\n", "Field", "Angle",
		"Target (mm)", "TRot", "Plane%", "Wall%", "Both%")
	for i := range results {
		r := &results[i]
		p := r.Target.Position
		fmt.Fprintf(b, "%6.2f %6.2f (%8.1f, %6.1f, %8.1f) %7.2f %8.2f %8.2f %8.2f\n",
			r.Strength, r.Angle, p.X, p.Y, p.Z, r.Target.RotationAngle,
			r.Acceptance.PlaneAcceptance, r.Acceptance.FixedAcceptance,
			r.Acceptance.Coincidence)
	}

	_, err := stdio.WriteString(w, b.String())
	return err
}

// Setup describes a detector setup and the reference particles which can be
// shot through it to check it. It is written by SetupMacro in the same
// format as the config files and can be read back with ReadSetup.
type Setup struct {
	Setup struct {
		FieldFile       string
		Strength        float64
		DeflectionAngle float64
		TargetX         float64
		TargetY         float64
		TargetZ         float64
		TargetAngle     float64
	}
	Shot map[string]*Shot
}

// Shot is a single reference particle. AngleY is the angle of its momentum
// in the xz-plane, from +z toward +x, in radians, and Energy is its kinetic
// energy in MeV.
type Shot struct {
	Particle string
	X, Y, Z  float64
	AngleY   float64
	Energy   float64
}

// SetupMacro writes the setup for a target found in a field of the given
// strength. The shots are the unrotated beam from its entry point, followed
// by protons from the target with pz = acceptance.ReferencePz and px = 0 and
// +/-px for each of pxValues, and a neutron along the target axis.
func SetupMacro(
	w stdio.Writer, target beam.Target, strength float64,
	fieldFile string, pxValues []float64,
) error {
	b := &strings.Builder{}
	pos := target.Position

	fmt.Fprintf(b, "# Field: %.2f T, Deflection: %.1f deg\n", strength, target.Angle)
	fmt.Fprintf(b, "# Target: (%.4f, %.4f, %.4f) mm, Angle: %.2f deg\n\n",
		pos.X, pos.Y, pos.Z, target.RotationAngle)

	fmt.Fprintf(b, "[Setup]\n")
	fmt.Fprintf(b, "FieldFile = \"%s\"\n", fieldFile)
	fmt.Fprintf(b, "Strength = %g\n", strength)
	fmt.Fprintf(b, "DeflectionAngle = %g\n", target.Angle)
	fmt.Fprintf(b, "TargetX = %.4f\nTargetY = %.4f\nTargetZ = %.4f\n",
		pos.X, pos.Y, pos.Z)
	fmt.Fprintf(b, "TargetAngle = %.4f\n", target.RotationAngle)

	shot := 1
	write := func(label, name string, start, p r3.Vec, kinetic float64) {
		fmt.Fprintf(b, "\n# %s\n[Shot \"%d\"]\n", label, shot)
		fmt.Fprintf(b, "Particle = %s\n", name)
		fmt.Fprintf(b, "X = %.4f\nY = %.4f\nZ = %.4f\n", start.X, start.Y, start.Z)
		fmt.Fprintf(b, "AngleY = %.6f\n", math.Atan2(p.X, p.Z))
		fmt.Fprintf(b, "Energy = %.2f\n", kinetic)
		shot++
	}

	bm := beam.Deuteron()
	write("Beam", "deuteron", r3.Vec{Z: -4000}, r3.Vec{Z: 1}, bm.Kinetic())

	ref := []acceptance.ParticleInfo{acceptance.Proton(0, r3.Vec{Z: acceptance.ReferencePz})}
	labels := []string{"Center proton"}
	for _, px := range pxValues {
		ref = append(ref,
			acceptance.Proton(0, r3.Vec{X: px, Z: acceptance.ReferencePz}),
			acceptance.Proton(0, r3.Vec{X: -px, Z: acceptance.ReferencePz}),
		)
		labels = append(labels,
			fmt.Sprintf("Proton Px=+%g", px), fmt.Sprintf("Proton Px=-%g", px))
	}
	ref = append(ref, acceptance.Neutron(0, r3.Vec{Z: acceptance.ReferencePz}))
	labels = append(labels, "Neutron")

	lab := acceptance.ToLab(ref, pos, target.RotationAngle)
	for i := range lab {
		p := &lab[i]
		name := "proton"
		if p.PDG == acceptance.NeutronPDG {
			name = "neutron"
		}
		write(labels[i], name, p.Vertex, p.P3(), p.Momentum.E()-p.Mass)
	}

	_, err := stdio.WriteString(w, b.String())
	return err
}

// ReadSetup parses a setup written by SetupMacro.
func ReadSetup(str string) (*Setup, error) {
	s := &Setup{}
	if err := io.ReadConfigString(s, str); err != nil {
		return nil, err
	}
	return s, nil
}

// SetupName returns the file name used for a configuration's setup, for
// example "setup_B120T_deg5.0.cfg".
func SetupName(strength, angle float64) string {
	return fmt.Sprintf("setup_B%dT_deg%.1f.cfg", int(math.Round(strength*100)), angle)
}

// WriteSetups writes a setup file for every configuration into dir.
func WriteSetups(dir string, results []ConfigurationResult, pxValues []float64) error {
	if err := os.MkdirAll(dir, 0777); err != nil {
		return err
	}
	for i := range results {
		r := &results[i]
		name := filepath.Join(dir, SetupName(r.Strength, r.Angle))
		f, err := os.Create(name)
		if err != nil {
			return err
		}
		err = SetupMacro(f, r.Target, r.Strength, filepath.Base(r.FieldFile), pxValues)
		if cerr := f.Close(); err == nil {
			err = cerr
		}
		if err != nil {
			return fmt.Errorf("writing %s: %w", name, err)
		}
		log.Infof("Wrote %s", name)
	}
	return nil
}
