package geom

// Grid provides an interface for reasoning over a 1D slice as if it were a
// 3D grid. Unlike most of the grids you'll run into, x is the slowest-varying
// index: that's the order field tables are written in.
type Grid struct {
	N [3]int
	Length, Area, Volume int
}

// NewGrid returns a new Grid instance.
func NewGrid(nx, ny, nz int) *Grid {
	g := &Grid{}
	g.Init(nx, ny, nz)
	return g
}

// Init initializes a Grid instance.
func (g *Grid) Init(nx, ny, nz int) {
	g.N = [3]int{nx, ny, nz}

	g.Length = nz
	g.Area = ny * nz
	g.Volume = nx * ny * nz
}

// Idx returns the grid index corresponding to a set of coordinates.
func (g *Grid) Idx(x, y, z int) int {
	return x*g.Area + y*g.Length + z
}

// IdxCheck returns an index and true if the given coordinate are valid and
// false otherwise.
func (g *Grid) IdxCheck(x, y, z int) (idx int, ok bool) {
	if !g.BoundsCheck(x, y, z) {
		return -1, false
	}

	return g.Idx(x, y, z), true
}

// BoundsCheck returns true if the given coordinates are within the Grid and
// false otherwise.
func (g *Grid) BoundsCheck(x, y, z int) bool {
	return (0 <= x && 0 <= y && 0 <= z) &&
		(x < g.N[0] && y < g.N[1] && z < g.N[2])
}

// Coords returns the x, y, z coordinates of a point from its grid index.
func (g *Grid) Coords(idx int) (x, y, z int) {
	x = idx / g.Area
	y = (idx % g.Area) / g.Length
	z = idx % g.Length
	return x, y, z
}
