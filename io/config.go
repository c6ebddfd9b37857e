package io

import (
	"fmt"
	"math"
	"strings"

	"gopkg.in/gcfg.v1"
)

const (
	ExampleDeflectionFile = `[Deflection]

#######################
# Required Parameters #
#######################

# Deflection angles, in degrees, at which the beam should leave the target.
# List one Angle line per angle.
Angle = 0
Angle = 5
Angle = 10

#######################
# Optional Parameters #
#######################

# Point where the beam enters the tracking volume (mm) and its direction.
# EntryX = 0
# EntryY = 0
# EntryZ = -4000
# DirectionX = 0
# DirectionY = 0
# DirectionZ = 1

# Angles within AngleTolerance degrees of the requested angle are reported as
# exact.
# AngleTolerance = 0.5

# The reference particle. Defaults describe a 190 MeV/u deuteron beam.
# BeamMass = 1875.612928
# BeamCharge = 1
# Nucleons = 2
# KineticPerNucleon = 190

# Output = deflection.txt
# LogFile = log.out
# LogLevel = info

[Field]
# Field table written by the magnet simulation.
FieldFile = path/to/field_map.table
# Magnet rotation about the vertical axis, in degrees.
# RotationAngle = 30

[Tracking]
# StepSize = 1
# MaxTime = 200
# MaxDistance = 10000
# MinMomentum = 1`

	ExampleReconstructFile = `[Reconstruct]

#######################
# Required Parameters #
#######################

# Method can be set to one of:
# [ Grid | Gradient | Minimize | ThreePoint ]
Method = Grid

# Hits on the two tracking planes (mm).
StartX = 300
StartY = 0
StartZ = 4000
EndX = 400
EndY = 0
EndZ = 5000

# Production point the track should be traced back to (mm).
TargetX = 0
TargetY = 0
TargetZ = 0

#######################
# Optional Parameters #
#######################

# Particle hypothesis. Defaults are a proton.
# Charge = 1
# Mass = 938.272

# Momentum magnitude search window and starting point (MeV/c).
# PMin = 50
# PMax = 5000
# PInit = 500

# Distance of closest approach (mm) counted as success.
# Tolerance = 1

# Grid: refinement rounds. Gradient and Minimize: iteration limit.
# MaxRounds = 10
# MaxIterations = 100
# LearningRate = 50

# ThreePoint only: fixed momentum and position uncertainties (mm).
# MomentumX = 0
# MomentumY = 0
# MomentumZ = 600
# SigmaTarget = 1
# SigmaStart = 0.5
# SigmaEnd = 0.5

# SaveTrajectories = false
# Output = reconstruct.txt
# LogFile = log.out
# LogLevel = info

[Field]
FieldFile = path/to/field_map.table
# RotationAngle = 30

[Tracking]
# StepSize = 1
# MaxTime = 100
# MaxDistance = 5000
# MinMomentum = 1`

	ExampleAcceptanceFile = `[Acceptance]

#######################
# Required Parameters #
#######################

# Particle table with columns: event px py pz vx vy vz pdg charge mass.
# Momenta are given in the target frame.
Input = path/to/particles.txt

# Target position in the lab (mm) and target rotation (degrees).
TargetX = 0
TargetY = 0
TargetZ = 0
TargetAngle = 5

#######################
# Optional Parameters #
#######################

# Transverse momentum window of the tracking plane (MeV/c). If Synthesize is
# set, the tracking plane is placed from reference protons traced through the
# field. Otherwise the plane named by UsePlane is used.
# PxRange = 100
# Synthesize = true
# UsePlane = pdc1
# SecondPlane = pdc2
# RequireBoth = true

# Tracking plane size (mm).
# PlaneWidth = 1680
# PlaneHeight = 780
# PlaneDepth = 380

# Neutron wall front face center and size (mm).
# NeutronX = 0
# NeutronY = 0
# NeutronZ = 5000
# NeutronWidth = 3600
# NeutronHeight = 1800
# NeutronDepth = 600

# Polar angle histograms.
# ThetaBins = 90
# ThetaMax = 90

# Workers = 4
# Output = acceptance.txt
# LogFile = log.out
# LogLevel = info

[Plane "pdc1"]
X = 0
Y = 0
Z = 4000
Angle = 20
# Width = 1680
# Height = 780
# PxMin = -100
# PxMax = 100

[Field]
FieldFile = path/to/field_map.table
# RotationAngle = 30

[Tracking]
# StepSize = 5
# MaxTime = 500
# MaxDistance = 10000
# MinMomentum = 1`

	ExampleAnalysisFile = `[Analysis]

#######################
# Required Parameters #
#######################

# Field maps to scan and the field strength (T) each one corresponds to. List
# one FieldFile and one Strength line per map, in the same order. If no
# Strength lines are given, strengths are read from file names such as
# 180626-1,20T-3000.table.
FieldFile = path/to/field_1.0T.table
Strength = 1.0
FieldFile = path/to/field_1.2T.table
Strength = 1.2

# Target deflection angles (degrees).
Angle = 0
Angle = 5
Angle = 10

# Particle table in the target frame.
Input = path/to/particles.txt

#######################
# Optional Parameters #
#######################

# PxRange = 100
# RotationAngle = 30
# Workers = 4

# Use the named [Plane] section for every configuration instead of placing
# a tracking plane for each target.
# UsePlane = pdc1

# Write a setup file for every configuration into this directory.
# SetupDir = setups

# Output = analysis.txt
# LogFile = log.out
# LogLevel = info

[Tracking]
# StepSize = 5
# MaxTime = 500
# MaxDistance = 10000
# MinMomentum = 1`
)

// SharedConfig holds the parameters every mode accepts.
type SharedConfig struct {
	// Optional
	Output, LogFile, LogLevel string
}

func (con *SharedConfig) ValidOutput() bool {
	return con.Output != ""
}
func (con *SharedConfig) ValidLogFile() bool {
	return con.LogFile != ""
}
func (con *SharedConfig) ValidLogLevel() bool {
	switch strings.ToLower(con.LogLevel) {
	case "", "debug", "info", "warn", "warning", "error":
		return true
	}
	return false
}

type FieldConfig struct {
	// Required
	FieldFile string

	// Optional
	RotationAngle float64
}

func DefaultFieldConfig() FieldConfig {
	return FieldConfig{RotationAngle: 30}
}

func (con *FieldConfig) ValidFieldFile() bool {
	return con.FieldFile != ""
}
func (con *FieldConfig) ValidRotationAngle() bool {
	return !math.IsNaN(con.RotationAngle) && math.Abs(con.RotationAngle) <= 360
}

type TrackingConfig struct {
	StepSize, MaxTime, MaxDistance, MinMomentum float64
}

func DefaultTrackingConfig() TrackingConfig {
	return TrackingConfig{
		StepSize: 1, MaxTime: 100, MaxDistance: 5000, MinMomentum: 1,
	}
}

// acceptanceTracking is the coarser tracking used when many particles are
// traced to the detectors.
func acceptanceTracking() TrackingConfig {
	return TrackingConfig{
		StepSize: 5, MaxTime: 500, MaxDistance: 10000, MinMomentum: 1,
	}
}

func (con *TrackingConfig) ValidStepSize() bool {
	return con.StepSize > 0
}
func (con *TrackingConfig) ValidMaxTime() bool {
	return con.MaxTime > 0
}
func (con *TrackingConfig) ValidMaxDistance() bool {
	return con.MaxDistance > 0
}
func (con *TrackingConfig) ValidMinMomentum() bool {
	return con.MinMomentum >= 0
}

// Check returns an error describing the first invalid tracking parameter.
func (con *TrackingConfig) Check() error {
	if !con.ValidStepSize() {
		return fmt.Errorf("Invalid 'StepSize' value, %g.", con.StepSize)
	} else if !con.ValidMaxTime() {
		return fmt.Errorf("Invalid 'MaxTime' value, %g.", con.MaxTime)
	} else if !con.ValidMaxDistance() {
		return fmt.Errorf("Invalid 'MaxDistance' value, %g.", con.MaxDistance)
	} else if !con.ValidMinMomentum() {
		return fmt.Errorf("Invalid 'MinMomentum' value, %g.", con.MinMomentum)
	}
	return nil
}

type DeflectionConfig struct {
	SharedConfig

	// Required
	Angle []float64

	// Optional
	EntryX, EntryY, EntryZ             float64
	DirectionX, DirectionY, DirectionZ float64
	AngleTolerance                     float64
	BeamMass, BeamCharge               float64
	Nucleons                           int
	KineticPerNucleon                  float64
}

type DeflectionWrapper struct {
	Deflection DeflectionConfig
	Field      FieldConfig
	Tracking   TrackingConfig
}

func DefaultDeflectionWrapper() *DeflectionWrapper {
	con := DeflectionConfig{}
	con.EntryZ = -4000
	con.DirectionZ = 1
	con.AngleTolerance = 0.5
	con.BeamMass = 1875.612928
	con.BeamCharge = 1
	con.Nucleons = 2
	con.KineticPerNucleon = 190

	tr := DefaultTrackingConfig()
	tr.MaxTime, tr.MaxDistance = 200, 10000

	return &DeflectionWrapper{con, DefaultFieldConfig(), tr}
}

func (con *DeflectionConfig) ValidAngle() bool {
	return len(con.Angle) > 0
}
func (con *DeflectionConfig) ValidDirection() bool {
	return con.DirectionX != 0 || con.DirectionY != 0 || con.DirectionZ != 0
}
func (con *DeflectionConfig) ValidAngleTolerance() bool {
	return con.AngleTolerance > 0
}
func (con *DeflectionConfig) ValidBeamMass() bool {
	return con.BeamMass > 0
}
func (con *DeflectionConfig) ValidNucleons() bool {
	return con.Nucleons > 0
}
func (con *DeflectionConfig) ValidKineticPerNucleon() bool {
	return con.KineticPerNucleon > 0
}

type ReconstructConfig struct {
	SharedConfig

	// Required
	Method                 string
	StartX, StartY, StartZ float64
	EndX, EndY, EndZ       float64
	TargetX, TargetY       float64
	TargetZ                float64

	// Optional
	Charge, Mass                      float64
	PMin, PMax, PInit                 float64
	Tolerance                         float64
	MaxRounds, MaxIterations          int
	LearningRate                      float64
	MomentumX, MomentumY, MomentumZ   float64
	SigmaTarget, SigmaStart, SigmaEnd float64
	SaveTrajectories                  bool
}

type ReconstructWrapper struct {
	Reconstruct ReconstructConfig
	Field       FieldConfig
	Tracking    TrackingConfig
}

func DefaultReconstructWrapper() *ReconstructWrapper {
	con := ReconstructConfig{}
	con.Charge = 1
	con.Mass = 938.272
	con.PMin, con.PMax, con.PInit = 50, 5000, 500
	con.Tolerance = 1
	con.MaxRounds, con.MaxIterations = 10, 100
	con.LearningRate = 50
	con.SigmaTarget, con.SigmaStart, con.SigmaEnd = 1, 0.5, 0.5
	return &ReconstructWrapper{
		con, DefaultFieldConfig(), DefaultTrackingConfig(),
	}
}

// ReconstructMethods lists the accepted values of the Method parameter.
var ReconstructMethods = []string{"Grid", "Gradient", "Minimize", "ThreePoint"}

func (con *ReconstructConfig) ValidMethod() bool {
	for _, m := range ReconstructMethods {
		if strings.EqualFold(m, con.Method) {
			return true
		}
	}
	return false
}
func (con *ReconstructConfig) ValidTrack() bool {
	return con.StartX != con.EndX || con.StartY != con.EndY ||
		con.StartZ != con.EndZ
}
func (con *ReconstructConfig) ValidMass() bool {
	return con.Mass > 0
}
func (con *ReconstructConfig) ValidPRange() bool {
	return con.PMin > 0 && con.PMin < con.PMax
}
func (con *ReconstructConfig) ValidPInit() bool {
	return con.PInit > 0
}
func (con *ReconstructConfig) ValidTolerance() bool {
	return con.Tolerance > 0
}
func (con *ReconstructConfig) ValidMaxRounds() bool {
	return con.MaxRounds > 0
}
func (con *ReconstructConfig) ValidMaxIterations() bool {
	return con.MaxIterations > 0
}
func (con *ReconstructConfig) ValidLearningRate() bool {
	return con.LearningRate > 0
}
func (con *ReconstructConfig) ValidSigmas() bool {
	return con.SigmaTarget > 0 && con.SigmaStart > 0 && con.SigmaEnd > 0
}

// PlaneConfig describes a fixed tracking plane.
type PlaneConfig struct {
	// Required
	X, Y, Z float64
	Angle   float64

	// Optional
	Width, Height float64
	PxMin, PxMax  float64

	// Optional, "undocumented"
	Name string
}

func (plane *PlaneConfig) CheckInit(name string) error {
	if plane.Width == 0 {
		plane.Width = 1680
	}
	if plane.Height == 0 {
		plane.Height = 780
	}
	if plane.PxMin == 0 && plane.PxMax == 0 {
		plane.PxMin, plane.PxMax = -100, 100
	}

	if plane.Width < 0 {
		return fmt.Errorf(
			"Need to specify a positive Width for Plane '%s'", name,
		)
	} else if plane.Height < 0 {
		return fmt.Errorf(
			"Need to specify a positive Height for Plane '%s'", name,
		)
	} else if plane.PxMin > plane.PxMax {
		return fmt.Errorf(
			"PxMin of Plane '%s' is larger than PxMax: %g > %g",
			name, plane.PxMin, plane.PxMax,
		)
	} else if math.Abs(plane.Angle) >= 90 {
		return fmt.Errorf(
			"Angle of Plane '%s' must be in range (-90, 90), but is %g",
			name, plane.Angle,
		)
	}

	plane.Name = name

	return nil
}

type AcceptanceConfig struct {
	SharedConfig

	// Required
	Input                     string
	TargetX, TargetY, TargetZ float64
	TargetAngle               float64

	// Optional
	PxRange                      float64
	Synthesize                   bool
	UsePlane, SecondPlane        string
	RequireBoth                  bool
	PlaneWidth, PlaneHeight      float64
	PlaneDepth                   float64
	NeutronX, NeutronY, NeutronZ float64
	NeutronWidth, NeutronHeight  float64
	NeutronDepth                 float64
	ThetaBins                    int
	ThetaMax                     float64
	Workers                      int
}

type AcceptanceWrapper struct {
	Acceptance AcceptanceConfig
	Plane      map[string]*PlaneConfig
	Field      FieldConfig
	Tracking   TrackingConfig
}

func DefaultAcceptanceWrapper() *AcceptanceWrapper {
	con := AcceptanceConfig{}
	con.PxRange = 100
	con.Synthesize = true
	con.RequireBoth = true
	con.PlaneWidth, con.PlaneHeight, con.PlaneDepth = 1680, 780, 380
	con.NeutronZ = 5000
	con.NeutronWidth, con.NeutronHeight, con.NeutronDepth = 3600, 1800, 600
	con.ThetaBins, con.ThetaMax = 90, 90
	con.Workers = 1
	return &AcceptanceWrapper{
		Acceptance: con,
		Field:      DefaultFieldConfig(),
		Tracking:   acceptanceTracking(),
	}
}

func (con *AcceptanceConfig) ValidInput() bool {
	return con.Input != ""
}
func (con *AcceptanceConfig) ValidPxRange() bool {
	return con.PxRange > 0
}
func (con *AcceptanceConfig) ValidPlaneSize() bool {
	return con.PlaneWidth > 0 && con.PlaneHeight > 0 && con.PlaneDepth >= 0
}
func (con *AcceptanceConfig) ValidNeutronSize() bool {
	return con.NeutronWidth > 0 && con.NeutronHeight > 0 &&
		con.NeutronDepth >= 0
}
func (con *AcceptanceConfig) ValidThetaBins() bool {
	return con.ThetaBins > 0 && con.ThetaMax > 0
}
func (con *AcceptanceConfig) ValidWorkers() bool {
	return con.Workers > 0
}

// CheckPlanes initializes the named planes and checks that the planes the
// config refers to exist.
func (w *AcceptanceWrapper) CheckPlanes() error {
	for name, plane := range w.Plane {
		if err := plane.CheckInit(name); err != nil {
			return err
		}
	}

	con := &w.Acceptance
	for _, name := range []string{con.UsePlane, con.SecondPlane} {
		if name == "" {
			continue
		}
		if _, ok := w.Plane[name]; !ok {
			return fmt.Errorf("No [Plane \"%s\"] section was given.", name)
		}
	}
	if !con.Synthesize && con.UsePlane == "" {
		return fmt.Errorf("Either 'Synthesize' or 'UsePlane' must be set.")
	}
	return nil
}

type AnalysisConfig struct {
	SharedConfig

	// Required
	FieldFile []string
	Strength  []float64
	Angle     []float64
	Input     string

	// Optional
	PxRange       float64
	RotationAngle float64
	Workers       int
	UsePlane      string
	SetupDir      string
}

type AnalysisWrapper struct {
	Analysis AnalysisConfig
	Plane    map[string]*PlaneConfig
	Tracking TrackingConfig
}

func DefaultAnalysisWrapper() *AnalysisWrapper {
	con := AnalysisConfig{}
	con.PxRange = 100
	con.RotationAngle = 30
	con.Workers = 1
	return &AnalysisWrapper{Analysis: con, Tracking: acceptanceTracking()}
}

func (con *AnalysisConfig) ValidFieldFile() bool {
	return len(con.FieldFile) > 0
}
func (con *AnalysisConfig) ValidStrength() bool {
	return len(con.Strength) == 0 || len(con.Strength) == len(con.FieldFile)
}
func (con *AnalysisConfig) ValidAngle() bool {
	return len(con.Angle) > 0
}
func (con *AnalysisConfig) ValidInput() bool {
	return con.Input != ""
}
func (con *AnalysisConfig) ValidPxRange() bool {
	return con.PxRange > 0
}
func (con *AnalysisConfig) ValidWorkers() bool {
	return con.Workers > 0
}
func (con *AnalysisConfig) ValidSetupDir() bool {
	return con.SetupDir != ""
}

// CheckPlanes initializes the named planes and checks that UsePlane, if set,
// names one of them.
func (w *AnalysisWrapper) CheckPlanes() error {
	for name, plane := range w.Plane {
		if err := plane.CheckInit(name); err != nil {
			return err
		}
	}
	if name := w.Analysis.UsePlane; name != "" {
		if _, ok := w.Plane[name]; !ok {
			return fmt.Errorf("No [Plane \"%s\"] section was given.", name)
		}
	}
	return nil
}

// ReadConfig reads the gcfg file fname into wrapper, which should be one of
// the DefaultXxxWrapper values.
func ReadConfig(wrapper interface{}, fname string) error {
	if err := gcfg.ReadFileInto(wrapper, fname); err != nil {
		return fmt.Errorf("reading config %s: %w", fname, err)
	}
	return nil
}

// ReadConfigString parses a gcfg config from a string.
func ReadConfigString(wrapper interface{}, str string) error {
	return gcfg.ReadStringInto(wrapper, str)
}
