// Package beam finds where a reference beam particle, traced through a
// spectrometer magnet, has been bent by a requested angle. Those points are
// where the reaction target must sit so that the beam reaches it at that
// angle.
package beam

import (
	"math"

	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/spatial/r3"
)

// Beam is a reference beam particle with a fixed kinetic energy per nucleon.
type Beam struct {
	Mass              float64 // MeV/c^2
	Charge            float64 // e
	Nucleons          int
	KineticPerNucleon float64 // MeV/u
}

// Deuteron returns a 190 MeV/u deuteron beam.
func Deuteron() Beam {
	return Beam{
		Mass: 1875.612928, Charge: 1, Nucleons: 2, KineticPerNucleon: 190,
	}
}

// Kinetic returns the total kinetic energy of the beam particle in MeV.
func (b Beam) Kinetic() float64 {
	return b.KineticPerNucleon * float64(b.Nucleons)
}

// Energy returns the total energy of the beam particle in MeV.
func (b Beam) Energy() float64 { return b.Kinetic() + b.Mass }

// Momentum returns the magnitude of the beam particle's momentum in MeV/c.
func (b Beam) Momentum() float64 {
	e := b.Energy()
	return math.Sqrt(e*e - b.Mass*b.Mass)
}

// Beta returns v/c for the beam particle.
func (b Beam) Beta() float64 { return b.Momentum() / b.Energy() }

// Gamma returns the Lorentz factor of the beam particle.
func (b Beam) Gamma() float64 { return b.Energy() / b.Mass }

// FourMomentum returns the four-momentum of a beam particle moving along dir.
func (b Beam) FourMomentum(dir r3.Vec) fmom.PxPyPzE {
	p := r3.Scale(b.Momentum(), r3.Unit(dir))
	return fmom.NewPxPyPzE(p.X, p.Y, p.Z, b.Energy())
}
