package neighbors

import (
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbfsim/internal/dynamo"
)

// BruteForce compares every pair of particles. It is O(n^2) and serves as
// the reference the grid is tested against.
type BruteForce struct {
	H       float64
	Workers int
	lists   [][]int
}

func NewBruteForce(h float64) *BruteForce {
	return &BruteForce{H: h, Workers: 1}
}

func (b *BruteForce) Rebuild(positions []r3.Vec) {
	n := len(positions)
	h2 := b.H * b.H
	b.lists = resize(b.lists, n)

	dynamo.ParallelFor(b.Workers, n, 64, func(start, end int) {
		for i := start; i < end; i++ {
			l := b.lists[i][:0]
			for j := 0; j < n; j++ {
				if within(positions[i], positions[j], h2) {
					l = append(l, j)
				}
			}
			b.lists[i] = l
		}
	})
}

func (b *BruteForce) Neighbors(i int) []int { return b.lists[i] }
func (b *BruteForce) Len() int              { return len(b.lists) }
