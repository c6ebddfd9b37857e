package io

import (
	"bufio"
	"fmt"
	"io"
	"os"

	"github.com/phil-mansfield/table"
)

// Column layout of particle tables.
const (
	EventCol = iota
	PxCol
	PyCol
	PzCol
	VxCol
	VyCol
	VzCol
	PDGCol
	ChargeCol
	MassCol
	particleCols
)

// ParticleTable holds the columns of a particle table. Momenta are in MeV/c,
// vertices in mm, charges in e and masses in MeV/c^2.
type ParticleTable struct {
	Event        []int
	Px, Py, Pz   []float64
	Vx, Vy, Vz   []float64
	PDG          []int
	Charge, Mass []float64
}

// Len returns the number of rows in the table.
func (pt *ParticleTable) Len() int { return len(pt.Px) }

// Append adds a row to the table.
func (pt *ParticleTable) Append(
	event int, px, py, pz, vx, vy, vz float64, pdg int, charge, mass float64,
) {
	pt.Event = append(pt.Event, event)
	pt.Px, pt.Py, pt.Pz = append(pt.Px, px), append(pt.Py, py), append(pt.Pz, pz)
	pt.Vx, pt.Vy, pt.Vz = append(pt.Vx, vx), append(pt.Vy, vy), append(pt.Vz, vz)
	pt.PDG = append(pt.PDG, pdg)
	pt.Charge = append(pt.Charge, charge)
	pt.Mass = append(pt.Mass, mass)
}

// ReadParticles reads a whitespace-separated particle table with the columns
//
//	event px py pz vx vy vz pdg charge mass
func ReadParticles(file string) (*ParticleTable, error) {
	colIdxs := make([]int, particleCols)
	for i := range colIdxs {
		colIdxs[i] = i
	}

	cols, err := table.ReadTable(file, colIdxs, nil)
	if err != nil {
		return nil, fmt.Errorf("reading particle table %s: %w", file, err)
	}

	pt := &ParticleTable{
		Px: cols[PxCol], Py: cols[PyCol], Pz: cols[PzCol],
		Vx: cols[VxCol], Vy: cols[VyCol], Vz: cols[VzCol],
		Charge: cols[ChargeCol], Mass: cols[MassCol],
	}
	pt.Event = make([]int, len(cols[EventCol]))
	pt.PDG = make([]int, len(cols[PDGCol]))
	for i := range pt.Event {
		pt.Event[i] = int(cols[EventCol][i])
		pt.PDG[i] = int(cols[PDGCol][i])
	}

	return pt, nil
}

// WriteParticlesTo writes pt to w in the format read by ReadParticles.
func WriteParticlesTo(w io.Writer, pt *ParticleTable) error {
	bw := bufio.NewWriter(w)
	for i := 0; i < pt.Len(); i++ {
		fmt.Fprintf(bw, "%d %.8g %.8g %.8g %.8g %.8g %.8g %d %g %.10g\n",
			pt.Event[i], pt.Px[i], pt.Py[i], pt.Pz[i],
			pt.Vx[i], pt.Vy[i], pt.Vz[i],
			pt.PDG[i], pt.Charge[i], pt.Mass[i])
	}
	return bw.Flush()
}

// WriteParticles writes pt to the given file.
func WriteParticles(file string, pt *ParticleTable) error {
	f, err := os.Create(file)
	if err != nil {
		return err
	}
	if err = WriteParticlesTo(f, pt); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}
