package neighbors

import (
	"math"

	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbfsim/internal/dynamo"
)

// cell is the integer coordinate of a grid cell.
type cell [3]int

// Grid is a spatial hash with cubic cells of edge h anchored at origin, so
// every neighbor of a particle lies in the 3x3x3 block around its cell.
// Only occupied cells are stored, so memory follows the particle count and
// not the extent of the domain.
type Grid struct {
	H       float64
	Workers int

	origin float64
	cells  map[cell][]int // bucket slices are reused between rebuilds
	lists  [][]int
}

// NewGrid returns an empty grid with cells of edge h starting at origin.
func NewGrid(origin, h float64) *Grid {
	return &Grid{
		H:       h,
		Workers: dynamo.DefaultWorkers,
		origin:  origin,
		cells:   make(map[cell][]int),
	}
}

// Cells returns the number of cells occupied after the last Rebuild.
func (g *Grid) Cells() int { return len(g.cells) }

func (g *Grid) Rebuild(positions []r3.Vec) {
	n := len(positions)
	for c, bucket := range g.cells {
		g.cells[c] = bucket[:0]
	}

	// particles are inserted in index order, so each bucket is sorted
	for i, p := range positions {
		c := g.key(p)
		g.cells[c] = append(g.cells[c], i)
	}
	// drop cells vacated since the last rebuild
	for c, bucket := range g.cells {
		if len(bucket) == 0 {
			delete(g.cells, c)
		}
	}

	g.lists = resize(g.lists, n)
	h2 := g.H * g.H

	dynamo.ParallelFor(g.Workers, n, 64, func(start, end int) {
		for i := start; i < end; i++ {
			g.lists[i] = g.query(positions, i, h2, g.lists[i][:0])
		}
	})
}

func (g *Grid) query(positions []r3.Vec, i int, h2 float64, out []int) []int {
	p := positions[i]
	c := g.key(p)

	for dz := -1; dz <= 1; dz++ {
		for dy := -1; dy <= 1; dy++ {
			for dx := -1; dx <= 1; dx++ {
				for _, j := range g.cells[cell{c[0] + dx, c[1] + dy, c[2] + dz}] {
					if within(p, positions[j], h2) {
						out = append(out, j)
					}
				}
			}
		}
	}

	sortList(out)
	return out
}

func (g *Grid) Neighbors(i int) []int { return g.lists[i] }
func (g *Grid) Len() int              { return len(g.lists) }

func (g *Grid) key(p r3.Vec) cell {
	return cell{g.axis(p.X), g.axis(p.Y), g.axis(p.Z)}
}

// maxCell bounds cell coordinates so far-away or non-finite positions still
// map to a valid key.
const maxCell = 1 << 40

func (g *Grid) axis(v float64) int {
	c := math.Floor((v - g.origin) / g.H)
	switch {
	case math.IsNaN(c):
		return 0
	case c < -maxCell:
		return -maxCell
	case c > maxCell:
		return maxCell
	}
	return int(c)
}
