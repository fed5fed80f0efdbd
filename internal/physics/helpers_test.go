package physics

import (
	"math/rand"

	"github.com/san-kum/pbfsim/internal/neighbors"
	"gonum.org/v1/gonum/spatial/r3"
)

// block lays out nx*ny*nz particles on a lattice starting at origin.
func block(nx, ny, nz int, origin r3.Vec, spacing float64) []r3.Vec {
	ps := make([]r3.Vec, 0, nx*ny*nz)
	for k := 0; k < nz; k++ {
		for j := 0; j < ny; j++ {
			for i := 0; i < nx; i++ {
				ps = append(ps, r3.Vec{
					X: origin.X + float64(i)*spacing,
					Y: origin.Y + float64(j)*spacing,
					Z: origin.Z + float64(k)*spacing,
				})
			}
		}
	}
	return ps
}

// centeredBlock returns an n^3 lattice centered in the default unit box.
func centeredBlock(n int, spacing float64) []r3.Vec {
	half := float64(n-1) * spacing / 2
	return block(n, n, n, r3.Vec{X: 0.5 - half, Y: 0.5 - half, Z: 0.5 - half}, spacing)
}

func jitter(ps []r3.Vec, amount float64, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for i := range ps {
		ps[i].X += (rng.Float64()*2 - 1) * amount
		ps[i].Y += (rng.Float64()*2 - 1) * amount
		ps[i].Z += (rng.Float64()*2 - 1) * amount
	}
}

func configFor(n int) Config {
	cfg := DefaultConfig()
	cfg.Particles = n
	return cfg
}

func mustFluid(cfg Config, idx neighbors.Index, positions []r3.Vec) *Fluid {
	f, err := New(cfg, idx)
	if err != nil {
		panic(err)
	}
	if err := f.InitState(positions); err != nil {
		panic(err)
	}
	return f
}

func momentum(f *Fluid) r3.Vec {
	var p r3.Vec
	for _, v := range f.State().Velocity {
		p = r3.Add(p, r3.Scale(f.Config().Mass, v))
	}
	return p
}

// emptyIndex reports no neighbors at all, not even the particle itself.
type emptyIndex struct{ n int }

func (e *emptyIndex) Rebuild(ps []r3.Vec)   { e.n = len(ps) }
func (e *emptyIndex) Neighbors(i int) []int { return nil }
func (e *emptyIndex) Len() int              { return e.n }

// countingIndex records how often the wrapped index is rebuilt.
type countingIndex struct {
	neighbors.Index
	rebuilds int
}

func (c *countingIndex) Rebuild(ps []r3.Vec) {
	c.rebuilds++
	c.Index.Rebuild(ps)
}
