package acceptance

import (
	"math"

	"go-hep.org/x/hep/fmom"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/phil-mansfield/smtrack/geom"
	"github.com/phil-mansfield/smtrack/integrator"
	"github.com/phil-mansfield/smtrack/io"
)

const (
	ProtonMass  = 938.272 // MeV/c^2
	NeutronMass = 939.565 // MeV/c^2

	ProtonPDG  = 2212
	NeutronPDG = 2112
)

// ParticleInfo is one reaction product.
type ParticleInfo struct {
	EventID  int
	Momentum fmom.PxPyPzE // MeV
	Vertex   r3.Vec       // mm
	PDG      int
	Charge   float64 // e
	Mass     float64 // MeV/c^2
}

// Proton returns a proton produced at the origin with momentum p.
func Proton(event int, p r3.Vec) ParticleInfo {
	return ParticleInfo{
		EventID: event, Momentum: integrator.FourMomentum(p, ProtonMass),
		PDG: ProtonPDG, Charge: 1, Mass: ProtonMass,
	}
}

// Neutron returns a neutron produced at the origin with momentum p.
func Neutron(event int, p r3.Vec) ParticleInfo {
	return ParticleInfo{
		EventID: event, Momentum: integrator.FourMomentum(p, NeutronMass),
		PDG: NeutronPDG, Charge: 0, Mass: NeutronMass,
	}
}

// P3 returns the particle's three-momentum.
func (p *ParticleInfo) P3() r3.Vec {
	return r3.Vec{X: p.Momentum.Px(), Y: p.Momentum.Py(), Z: p.Momentum.Pz()}
}

// Theta returns the polar angle of the particle's momentum relative to +z in
// degrees.
func (p *ParticleInfo) Theta() float64 {
	v := p.P3()
	return math.Atan2(math.Hypot(v.X, v.Y), v.Z) * 180 / math.Pi
}

// FromTable converts the rows of a particle table. Energies are computed
// from the masses.
func FromTable(pt *io.ParticleTable) []ParticleInfo {
	out := make([]ParticleInfo, pt.Len())
	for i := range out {
		p := r3.Vec{X: pt.Px[i], Y: pt.Py[i], Z: pt.Pz[i]}
		out[i] = ParticleInfo{
			EventID:  pt.Event[i],
			Momentum: integrator.FourMomentum(p, pt.Mass[i]),
			Vertex:   r3.Vec{X: pt.Vx[i], Y: pt.Vy[i], Z: pt.Vz[i]},
			PDG:      pt.PDG[i],
			Charge:   pt.Charge[i],
			Mass:     pt.Mass[i],
		}
	}
	return out
}

// ToTable is the inverse of FromTable.
func ToTable(ps []ParticleInfo) *io.ParticleTable {
	pt := &io.ParticleTable{}
	for i := range ps {
		p := &ps[i]
		pt.Append(p.EventID, p.Momentum.Px(), p.Momentum.Py(), p.Momentum.Pz(),
			p.Vertex.X, p.Vertex.Y, p.Vertex.Z, p.PDG, p.Charge, p.Mass)
	}
	return pt
}

// ReadParticles reads a particle table file.
func ReadParticles(file string) ([]ParticleInfo, error) {
	pt, err := io.ReadParticles(file)
	if err != nil {
		return nil, err
	}
	ps := FromTable(pt)
	log.Infof("Read %d particles from %s.", len(ps), file)
	return ps, nil
}

// targetRotation is the rotation from the target frame into the lab for a
// target turned by rot degrees.
func targetRotation(rot float64) geom.Rotation {
	return geom.RotationY(-rot)
}

// ToLab places every particle at target and rotates its momentum from the
// target frame into the lab frame:
//
//	px_lab = px cos(rot) + pz sin(rot)
//	pz_lab = -px sin(rot) + pz cos(rot)
//
// The input is left unchanged.
func ToLab(ps []ParticleInfo, target r3.Vec, rot float64) []ParticleInfo {
	r := targetRotation(rot)
	out := make([]ParticleInfo, len(ps))
	for i := range ps {
		out[i] = ps[i]
		out[i].Vertex = target
		out[i].Momentum = integrator.FourMomentum(r.ToLab(ps[i].P3()), ps[i].Mass)
	}
	return out
}
