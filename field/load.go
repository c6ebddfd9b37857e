package field

import (
	"bufio"
	"fmt"
	stdio "io"
	"os"
	"strconv"
	"strings"

	"github.com/phil-mansfield/smtrack/io"
)

// headerLines is the number of column title and separator lines which follow
// the dimension line of a field table.
const headerLines = 7

// Open creates a map from the field table at the given path.
func Open(path string) (*Map, error) {
	m := New()
	if err := m.Load(path); err != nil {
		return nil, err
	}
	return m, nil
}

// Load reads a field table. The first line of the table gives the grid
// dimensions, "Nx Ny Nz NFields", and is followed by seven header lines which
// are ignored. Every later line holds one sample, "x y z Bx By Bz", with x as
// the slowest-varying index.
//
// If the table can't be read the map keeps its previous contents. A table
// with fewer samples than declared is accepted with a warning and the missing
// nodes are zero.
func (m *Map) Load(path string) error {
	f, err := os.Open(path)
	if err != nil {
		log.Errorf("Could not open field table %s: %v", path, err)
		return err
	}
	defer f.Close()

	log.Infof("Loading field table %s", path)
	if err := m.LoadReader(f); err != nil {
		log.Errorf("Could not load field table %s: %v", path, err)
		return fmt.Errorf("loading %s: %w", path, err)
	}
	m.file = path
	return nil
}

// LoadReader reads a field table from r. See Load.
func (m *Map) LoadReader(r stdio.Reader) error {
	rd := bufio.NewReader(r)

	line, err := rd.ReadString('\n')
	if err != nil && line == "" {
		return fmt.Errorf("%w: %v", ErrBadHeader, err)
	}
	n, err := parseDims(line)
	if err != nil {
		return err
	}
	total := n[0] * n[1] * n[2]
	log.Infof("Grid dimensions: %d x %d x %d = %d points",
		n[0], n[1], n[2], total)

	for i := 0; i < headerLines; i++ {
		if _, err := rd.ReadString('\n'); err != nil {
			break
		}
	}

	bx, by, bz := make([]float64, total), make([]float64, total), make([]float64, total)
	var min, max [3]float64

	sc := bufio.NewScanner(rd)
	sc.Split(bufio.ScanWords)
	rec := make([]float64, 6)

	points := 0
records:
	for points < total {
		for j := range rec {
			if !sc.Scan() {
				break records
			}
			v, err := strconv.ParseFloat(sc.Text(), 64)
			if err != nil {
				break records
			}
			rec[j] = v
		}

		for k := 0; k < 3; k++ {
			if points == 0 || rec[k] < min[k] {
				min[k] = rec[k]
			}
			if points == 0 || rec[k] > max[k] {
				max[k] = rec[k]
			}
		}
		bx[points], by[points], bz[points] = rec[3], rec[4], rec[5]

		points++
		if points%100000 == 0 {
			log.Debugf("Read %d/%d points...", points, total)
		}
	}

	if points == 0 {
		return ErrNoData
	}
	if points != total {
		log.Warnf("Read %d points, but the header declares %d.", points, total)
	}

	m.set(n, min, max, points, bx, by, bz)
	log.Info(m.Info())
	return nil
}

// parseDims reads the grid dimensions from the first line of a field table.
func parseDims(line string) ([3]int, error) {
	var n [3]int
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return n, fmt.Errorf("%w: expected 'Nx Ny Nz NFields', found %q",
			ErrBadHeader, strings.TrimSpace(line))
	}
	for i := 0; i < 4; i++ {
		v, err := strconv.Atoi(fields[i])
		if err != nil {
			return n, fmt.Errorf("%w: %v", ErrBadHeader, err)
		}
		if i < 3 {
			if v <= 0 {
				return n, fmt.Errorf("%w: non-positive dimension %d",
					ErrBadHeader, v)
			}
			n[i] = v
		}
	}
	return n, nil
}

// Save writes the map to a binary grid container.
func (m *Map) Save(path string) error {
	if m.Empty() {
		return ErrNoData
	}
	h := &io.GridHeader{Min: m.min, Max: m.max, Blocks: 3}
	for i := range h.N {
		h.N[i] = int64(m.grid.N[i])
	}
	if err := io.WriteGrid(path, h, m.bx, m.by, m.bz); err != nil {
		return fmt.Errorf("saving %s: %w", path, err)
	}
	log.Infof("Saved field map to %s", path)
	return nil
}

// LoadContainer reads a map written by Save. The rotation isn't stored, so
// the map keeps its current rotation.
func (m *Map) LoadContainer(path string) error {
	h, blocks, err := io.ReadGrid(path)
	if err != nil {
		log.Errorf("Could not load field container %s: %v", path, err)
		return fmt.Errorf("loading %s: %w", path, err)
	}
	if h.Blocks != 3 {
		return fmt.Errorf("loading %s: %w: expected 3 field components, found %d",
			path, io.ErrBadContainer, h.Blocks)
	}

	n := [3]int{int(h.N[0]), int(h.N[1]), int(h.N[2])}
	m.set(n, h.Min, h.Max, int(h.Count()), blocks[0], blocks[1], blocks[2])
	m.file = path
	log.Info(m.Info())
	return nil
}
