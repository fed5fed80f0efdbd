// Package neighbors answers fixed-radius neighbor queries over particle
// positions.
//
// An [Index] is rebuilt from a full position buffer and then queried per
// particle. Neighbor lists include the particle itself and are sorted by
// index, so two rebuilds over the same positions return identical lists.
package neighbors

import (
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

type Index interface {
	// Rebuild recomputes every particle's neighbor set from positions.
	Rebuild(positions []r3.Vec)
	// Neighbors returns the indices within the radius of particle i,
	// including i. The slice is owned by the index until the next Rebuild.
	Neighbors(i int) []int
	// Len returns the number of particles seen by the last Rebuild.
	Len() int
}

// within reports whether p and q are no further apart than the radius.
func within(p, q r3.Vec, h2 float64) bool {
	return r3.Norm2(r3.Sub(p, q)) <= h2
}

func resize(lists [][]int, n int) [][]int {
	if cap(lists) < n {
		grown := make([][]int, n)
		copy(grown, lists)
		return grown
	}
	return lists[:n]
}

func sortList(l []int) {
	if !sort.IntsAreSorted(l) {
		sort.Ints(l)
	}
}
