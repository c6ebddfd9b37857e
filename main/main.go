package main

import (
	"flag"
	"fmt"
	stdio "io"
	"os"
	"strings"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/smtrack"
	"github.com/phil-mansfield/smtrack/acceptance"
	"github.com/phil-mansfield/smtrack/beam"
	"github.com/phil-mansfield/smtrack/field"
	"github.com/phil-mansfield/smtrack/integrator"
	"github.com/phil-mansfield/smtrack/io"
	"github.com/phil-mansfield/smtrack/reco"
)

var log = io.NamedLogger("main")

// FileGroup holds the files opened for a run.
type FileGroup struct {
	log, out *os.File
}

func (fg *FileGroup) Close() {
	if fg.out != nil {
		if err := fg.out.Close(); err != nil {
			log.Fatal(err.Error())
		}
	}
	if fg.log != nil {
		io.SetLogOutput(os.Stderr)
		if err := fg.log.Close(); err != nil {
			log.Fatal(err.Error())
		}
	}
}

// Output returns the writer results should go to.
func (fg *FileGroup) Output() stdio.Writer {
	if fg.out != nil {
		return fg.out
	}
	return os.Stdout
}

// openFiles applies the shared log settings and opens the output file.
func openFiles(con *io.SharedConfig) *FileGroup {
	if !con.ValidLogLevel() {
		log.Fatalf("Invalid 'LogLevel' value, '%s'.", con.LogLevel)
	} else if con.LogLevel != "" {
		if err := io.SetLogLevel(con.LogLevel); err != nil {
			log.Fatal(err.Error())
		}
	}

	fg := &FileGroup{}
	var err error
	if con.ValidLogFile() {
		fg.log, err = os.Create(con.LogFile)
		if err != nil {
			log.Fatal(err.Error())
		}
		io.SetLogOutput(fg.log)
	}
	if con.ValidOutput() {
		fg.out, err = os.Create(con.Output)
		if err != nil {
			log.Fatal(err.Error())
		}
	}
	return fg
}

func main() {
	var (
		deflection, reconstruct, acceptanceCfg, analysis string
		exampleConfig                                    string
	)
	vars := map[string]*string{
		"Deflection":    &deflection,
		"Reconstruct":   &reconstruct,
		"Acceptance":    &acceptanceCfg,
		"Analysis":      &analysis,
		"ExampleConfig": &exampleConfig,
	}

	flag.StringVar(
		&deflection, "Deflection", "",
		"Configuration file for [Deflection] mode.",
	)
	flag.StringVar(
		&reconstruct, "Reconstruct", "",
		"Configuration file for [Reconstruct] mode.",
	)
	flag.StringVar(
		&acceptanceCfg, "Acceptance", "",
		"Configuration file for [Acceptance] mode.",
	)
	flag.StringVar(
		&analysis, "Analysis", "",
		"Configuration file for [Analysis] mode.",
	)
	flag.StringVar(
		&exampleConfig,
		"ExampleConfig", "", "Prints an example configuration file of the "+
			"specified type to stdout. Accepted arguments are 'Deflection', "+
			"'Reconstruct', 'Acceptance', and 'Analysis'.",
	)

	flag.Parse()

	modeName, err := getModeName(vars)
	if err != nil {
		log.Fatal(err.Error())
	}

	switch modeName {
	case "Deflection":
		wrap := io.DefaultDeflectionWrapper()
		if err := io.ReadConfig(wrap, deflection); err != nil {
			log.Fatal(err.Error())
		}
		con := &wrap.Deflection

		if !con.ValidAngle() {
			log.Fatal("Invalid/non-existent 'Angle' value.")
		} else if !con.ValidDirection() {
			log.Fatal("'DirectionX', 'DirectionY' and 'DirectionZ' are all zero.")
		} else if !con.ValidAngleTolerance() {
			log.Fatal("Invalid 'AngleTolerance' value.")
		} else if !con.ValidBeamMass() {
			log.Fatal("Invalid 'BeamMass' value.")
		} else if !con.ValidNucleons() {
			log.Fatal("Invalid 'Nucleons' value.")
		} else if !con.ValidKineticPerNucleon() {
			log.Fatal("Invalid 'KineticPerNucleon' value.")
		}
		checkField(&wrap.Field, &wrap.Tracking)

		fg := openFiles(&con.SharedConfig)
		defer fg.Close()
		deflectionMain(wrap, fg.Output())

	case "Reconstruct":
		wrap := io.DefaultReconstructWrapper()
		if err := io.ReadConfig(wrap, reconstruct); err != nil {
			log.Fatal(err.Error())
		}
		con := &wrap.Reconstruct

		if !con.ValidMethod() {
			log.Fatalf("Invalid/non-existent 'Method' value. The only accepted "+
				"methods are: %s.", strings.Join(io.ReconstructMethods, ", "))
		} else if !con.ValidTrack() {
			log.Fatal("The Start and End points of the track are the same.")
		} else if !con.ValidMass() {
			log.Fatal("Invalid 'Mass' value.")
		} else if !con.ValidPRange() {
			log.Fatal("Invalid 'PMin'/'PMax' values.")
		} else if !con.ValidPInit() {
			log.Fatal("Invalid 'PInit' value.")
		} else if !con.ValidTolerance() {
			log.Fatal("Invalid 'Tolerance' value.")
		} else if !con.ValidMaxRounds() {
			log.Fatal("Invalid 'MaxRounds' value.")
		} else if !con.ValidMaxIterations() {
			log.Fatal("Invalid 'MaxIterations' value.")
		} else if !con.ValidLearningRate() {
			log.Fatal("Invalid 'LearningRate' value.")
		} else if !con.ValidSigmas() {
			log.Fatal("Invalid 'SigmaTarget'/'SigmaStart'/'SigmaEnd' values.")
		}
		checkField(&wrap.Field, &wrap.Tracking)

		fg := openFiles(&con.SharedConfig)
		defer fg.Close()
		reconstructMain(wrap, fg.Output())

	case "Acceptance":
		wrap := io.DefaultAcceptanceWrapper()
		if err := io.ReadConfig(wrap, acceptanceCfg); err != nil {
			log.Fatal(err.Error())
		}
		con := &wrap.Acceptance

		if !con.ValidInput() {
			log.Fatal("Invalid/non-existent 'Input' value.")
		} else if !con.ValidPxRange() {
			log.Fatal("Invalid 'PxRange' value.")
		} else if !con.ValidPlaneSize() {
			log.Fatal("Invalid 'PlaneWidth'/'PlaneHeight'/'PlaneDepth' values.")
		} else if !con.ValidNeutronSize() {
			log.Fatal("Invalid 'NeutronWidth'/'NeutronHeight'/'NeutronDepth' values.")
		} else if !con.ValidThetaBins() {
			log.Fatal("Invalid 'ThetaBins'/'ThetaMax' values.")
		} else if !con.ValidWorkers() {
			log.Fatal("Invalid 'Workers' value.")
		}
		if err := wrap.CheckPlanes(); err != nil {
			log.Fatal(err.Error())
		}
		checkField(&wrap.Field, &wrap.Tracking)

		fg := openFiles(&con.SharedConfig)
		defer fg.Close()
		acceptanceMain(wrap, fg.Output())

	case "Analysis":
		wrap := io.DefaultAnalysisWrapper()
		if err := io.ReadConfig(wrap, analysis); err != nil {
			log.Fatal(err.Error())
		}
		con := &wrap.Analysis

		if !con.ValidFieldFile() {
			log.Fatal("Invalid/non-existent 'FieldFile' value.")
		} else if !con.ValidStrength() {
			log.Fatalf("%d 'Strength' values were given for %d field files.",
				len(con.Strength), len(con.FieldFile))
		} else if !con.ValidAngle() {
			log.Fatal("Invalid/non-existent 'Angle' value.")
		} else if !con.ValidInput() {
			log.Fatal("Invalid/non-existent 'Input' value.")
		} else if !con.ValidPxRange() {
			log.Fatal("Invalid 'PxRange' value.")
		} else if !con.ValidWorkers() {
			log.Fatal("Invalid 'Workers' value.")
		}
		if err := wrap.CheckPlanes(); err != nil {
			log.Fatal(err.Error())
		} else if err := wrap.Tracking.Check(); err != nil {
			log.Fatal(err.Error())
		}

		fg := openFiles(&con.SharedConfig)
		defer fg.Close()
		analysisMain(wrap, fg.Output())

	case "ExampleConfig":
		switch exampleConfig {
		case "Deflection":
			fmt.Println(io.ExampleDeflectionFile)
		case "Reconstruct":
			fmt.Println(io.ExampleReconstructFile)
		case "Acceptance":
			fmt.Println(io.ExampleAcceptanceFile)
		case "Analysis":
			fmt.Println(io.ExampleAnalysisFile)
		default:
			log.Fatal(
				"Unrecognized 'ExampleConfig' argument. Only recognized " +
					"arguments are 'Deflection', 'Reconstruct', 'Acceptance', " +
					"and 'Analysis'.",
			)
		}
	default:
		panic("Impossible")
	}
}

func getModeName(vars map[string]*string) (string, error) {
	setNames := []string{}

	for name, varPtr := range vars {
		if *varPtr != "" {
			setNames = append(setNames, name)
		}
	}

	if len(setNames) == 0 {
		return "", fmt.Errorf("No flags have been set.")
	}

	if len(setNames) > 1 {
		return "", fmt.Errorf(
			"The following flags were set: %s, but smtrack "+
				"only accepts one flag at a time.",
			strings.Join(setNames, ", "),
		)
	}

	return setNames[0], nil
}

func checkField(con *io.FieldConfig, tr *io.TrackingConfig) {
	if !con.ValidFieldFile() {
		log.Fatal("Invalid/non-existent 'FieldFile' value.")
	} else if !con.ValidRotationAngle() {
		log.Fatal("Invalid 'RotationAngle' value.")
	} else if err := tr.Check(); err != nil {
		log.Fatal(err.Error())
	}
}

func loadField(con *io.FieldConfig) *field.Map {
	m, err := smtrack.LoadField(con.FieldFile, con.RotationAngle)
	if err != nil {
		log.Fatal(err.Error())
	}
	log.Info(m.Info())
	return m
}

func deflectionMain(wrap *io.DeflectionWrapper, out stdio.Writer) {
	con := &wrap.Deflection
	d := beam.FromConfig(loadField(&wrap.Field), con, &wrap.Tracking)

	log.Infof("Beam: p = %.2f MeV/c, E = %.2f MeV, beta = %.4f",
		d.Beam.Momentum(), d.Beam.Energy(), d.Beam.Beta())

	fmt.Fprintf(out, "# %8s %10s %10s %10s %10s %10s %5s\n",
		"Angle", "X", "Y", "Z", "Rotation", "Error", "Exact")
	for _, t := range d.TargetPositions(con.Angle) {
		fmt.Fprintf(out, "%10.3f %10.3f %10.3f %10.3f %10.3f %10.4f %5t\n",
			t.Angle, t.Position.X, t.Position.Y, t.Position.Z,
			t.RotationAngle, t.AngleError, t.Exact)
	}
}

func reconstructMain(wrap *io.ReconstructWrapper, out stdio.Writer) {
	con := &wrap.Reconstruct
	r, s, err := reco.FromConfig(loadField(&wrap.Field), con, &wrap.Tracking)
	if err != nil {
		log.Fatal(err.Error())
	}

	track := reco.Track{
		Start: r3.Vec{X: con.StartX, Y: con.StartY, Z: con.StartZ},
		End:   r3.Vec{X: con.EndX, Y: con.EndY, Z: con.EndZ},
	}
	target := r3.Vec{X: con.TargetX, Y: con.TargetY, Z: con.TargetZ}
	res := r.ReconstructAtTarget(track, target, s)

	fmt.Fprintf(out, "Method:     %s\n", con.Method)
	fmt.Fprintf(out, "Status:     %s\n", res.Status)
	fmt.Fprintf(out, "Success:    %t\n", res.Success)
	fmt.Fprintf(out, "Iterations: %d\n", res.Iterations)
	fmt.Fprintf(out, "Momentum:   (%.3f, %.3f, %.3f) MeV/c, |p| = %.3f MeV/c\n",
		res.Momentum.Px(), res.Momentum.Py(), res.Momentum.Pz(), res.Momentum.P())
	fmt.Fprintf(out, "Distance:   %.4f mm\n", res.Distance)
	if strings.EqualFold(con.Method, "ThreePoint") {
		fmt.Fprintf(out, "Vertex:     (%.3f, %.3f, %.3f) mm\n",
			res.Vertex.X, res.Vertex.Y, res.Vertex.Z)
		fmt.Fprintf(out, "Chi2:       %.4g\n", res.Chi2)
	}

	if !con.SaveTrajectories {
		return
	}
	fmt.Fprintf(out, "\n# %8s %12s\n", "P", "Distance")
	for i := range res.TrialMomenta {
		fmt.Fprintf(out, "%10.3f %12.4f\n", res.TrialMomenta[i], res.Distances[i])
	}
	fmt.Fprintf(out, "\n# Best trajectory: %d points, %.1f mm\n",
		len(res.BestTrajectory), integrator.Length(res.BestTrajectory))
	xs, ys, zs := integrator.Positions(res.BestTrajectory)
	for i := range xs {
		fmt.Fprintf(out, "%10.3f %10.3f %10.3f\n", xs[i], ys[i], zs[i])
	}
}

func acceptanceMain(wrap *io.AcceptanceWrapper, out stdio.Writer) {
	con := &wrap.Acceptance
	ps, err := acceptance.ReadParticles(con.Input)
	if err != nil {
		log.Fatal(err.Error())
	}
	e, err := acceptance.FromConfig(loadField(&wrap.Field), wrap)
	if err != nil {
		log.Fatal(err.Error())
	}

	target := r3.Vec{X: con.TargetX, Y: con.TargetY, Z: con.TargetZ}
	synthesize := con.Synthesize && con.UsePlane == ""
	res := e.ForTarget(ps, target, con.TargetAngle, con.PxRange, synthesize)

	pc := &e.Plane
	fmt.Fprintf(out, "Target:       (%.2f, %.2f, %.2f) mm, %.2f deg\n",
		target.X, target.Y, target.Z, con.TargetAngle)
	fmt.Fprintf(out, "Plane:        (%.2f, %.2f, %.2f) mm, %.2f deg, "+
		"Px in [%.1f, %.1f] MeV/c\n", pc.Center.X, pc.Center.Y, pc.Center.Z,
		pc.RotationAngle, pc.PxMin, pc.PxMax)
	fmt.Fprintf(out, "Particles:    %d\n", res.Total)
	fmt.Fprintf(out, "Plane:        %.2f %% (%d)\n", res.PlaneAcceptance, res.PlaneHits)
	fmt.Fprintf(out, "Neutron wall: %.2f %% (%d)\n", res.FixedAcceptance, res.FixedHits)
	fmt.Fprintf(out, "Coincidence:  %.2f %% (%d)\n", res.Coincidence, res.BothHits)

	if len(res.ThetaEdges) == 0 {
		return
	}
	fmt.Fprintf(out, "\n# %8s %10s %10s %10s\n", "ThetaLow", "ThetaHigh", "Plane", "Wall")
	for i := range res.PlaneHist {
		fmt.Fprintf(out, "%10.2f %10.2f %10.0f %10.0f\n", res.ThetaEdges[i],
			res.ThetaEdges[i+1], res.PlaneHist[i], res.FixedHist[i])
	}
	fmt.Fprintf(out, "# Overflow: plane %d, wall %d\n",
		res.PlaneOverflow, res.FixedOverflow)
}

func analysisMain(wrap *io.AnalysisWrapper, out stdio.Writer) {
	con := &wrap.Analysis
	a, err := smtrack.FromConfig(wrap)
	if err != nil {
		log.Fatal(err.Error())
	}

	results, err := a.Run()
	if err != nil {
		log.Error(err.Error())
	}
	if len(results) == 0 {
		log.Fatal("No field maps could be analyzed.")
	}

	if err := smtrack.WriteReport(out, results); err != nil {
		log.Fatal(err.Error())
	}
	if con.ValidSetupDir() {
		err := smtrack.WriteSetups(con.SetupDir, results, []float64{con.PxRange})
		if err != nil {
			log.Fatal(err.Error())
		}
	}
}
