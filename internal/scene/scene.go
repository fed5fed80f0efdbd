// Package scene builds initial particle layouts inside a cubic box.
package scene

import (
	"fmt"
	"math"
	"math/rand"
	"sort"

	"github.com/san-kum/pbfsim/internal/dynamo"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/spatial/r3"
)

// Box is the cube [Lower, Upper]^3 particles are placed in.
type Box struct {
	Lower, Upper float64
}

func (b Box) Size() float64 { return b.Upper - b.Lower }

// Block lays out n particles on a lattice starting at origin, filling X
// first, then Z, then Y. nx and nz are the row lengths.
func Block(n, nx, nz int, origin r3.Vec, spacing float64) []r3.Vec {
	if n <= 0 {
		return nil
	}
	ny := (n + nx*nz - 1) / (nx * nz)
	xs := axis(nx, origin.X, spacing)
	ys := axis(ny, origin.Y, spacing)
	zs := axis(nz, origin.Z, spacing)

	ps := make([]r3.Vec, 0, n)
	for j := 0; j < ny; j++ {
		for k := 0; k < nz; k++ {
			for i := 0; i < nx; i++ {
				if len(ps) == n {
					return ps
				}
				ps = append(ps, r3.Vec{X: xs[i], Y: ys[j], Z: zs[k]})
			}
		}
	}
	return ps
}

func axis(n int, start, spacing float64) []float64 {
	coords := make([]float64, n)
	if n == 1 {
		coords[0] = start
		return coords
	}
	floats.Span(coords, start, start+float64(n-1)*spacing)
	return coords
}

// slots is the number of lattice sites that fit along one box edge with
// half a spacing of clearance at each wall.
func slots(b Box, spacing float64) int {
	return int(math.Floor(b.Size()/spacing + 1e-9))
}

// cubeSide is the smallest edge length of a cube holding n sites.
func cubeSide(n int) int {
	side := int(math.Round(math.Cbrt(float64(n))))
	for side*side*side < n {
		side++
	}
	return side
}

// DamBreak packs n particles into a column in the lower corner of the box.
// The column's footprint covers at most half the floor along X and Z.
func DamBreak(n int, b Box, spacing float64) ([]r3.Vec, error) {
	max := slots(b, spacing)
	base := cubeSide(n)
	if half := max / 2; base > half {
		base = half
	}
	if base < 1 {
		base = 1
	}
	layers := (n + base*base - 1) / (base * base)
	if layers > max {
		return nil, fmt.Errorf("%w: %d particles at spacing %g do not fit a %g box", dynamo.ErrShapeMismatch, n, spacing, b.Size())
	}
	o := b.Lower + spacing/2
	return Block(n, base, base, r3.Vec{X: o, Y: o, Z: o}, spacing), nil
}

// Centered places a cube of n particles in the middle of the box.
func Centered(n int, b Box, spacing float64) ([]r3.Vec, error) {
	side := cubeSide(n)
	if side > slots(b, spacing) {
		return nil, fmt.Errorf("%w: %d particles at spacing %g do not fit a %g box", dynamo.ErrShapeMismatch, n, spacing, b.Size())
	}
	mid := (b.Lower + b.Upper) / 2
	o := mid - float64(side-1)*spacing/2
	return Block(n, side, side, r3.Vec{X: o, Y: o, Z: o}, spacing), nil
}

// Drop places a cube of n particles near the top of the box.
func Drop(n int, b Box, spacing float64) ([]r3.Vec, error) {
	ps, err := Centered(n, b, spacing)
	if err != nil {
		return nil, err
	}
	top := ps[0].Y
	for _, p := range ps {
		top = math.Max(top, p.Y)
	}
	lift := b.Upper - spacing/2 - top
	for i := range ps {
		ps[i].Y += lift
	}
	return ps, nil
}

// Pair returns two particles spacing apart along X around center.
func Pair(center r3.Vec, spacing float64) []r3.Vec {
	d := r3.Vec{X: spacing / 2}
	return []r3.Vec{r3.Sub(center, d), r3.Add(center, d)}
}

// Jitter displaces every coordinate by a uniform amount in [-amount, amount].
func Jitter(ps []r3.Vec, amount float64, seed int64) {
	rng := rand.New(rand.NewSource(seed))
	for i := range ps {
		ps[i].X += (rng.Float64()*2 - 1) * amount
		ps[i].Y += (rng.Float64()*2 - 1) * amount
		ps[i].Z += (rng.Float64()*2 - 1) * amount
	}
}

// twoParticles is the pair scene: two particles spacing apart in the middle
// of the box, the smallest layout with a neighbor interaction.
func twoParticles(n int, b Box, spacing float64) ([]r3.Vec, error) {
	if n != 2 {
		return nil, fmt.Errorf("%w: pair scene holds 2 particles, got %d", dynamo.ErrShapeMismatch, n)
	}
	mid := (b.Lower + b.Upper) / 2
	return Pair(r3.Vec{X: mid, Y: mid, Z: mid}, spacing), nil
}

type builder func(n int, b Box, spacing float64) ([]r3.Vec, error)

var scenes = map[string]builder{
	"dam_break": DamBreak,
	"block":     Centered,
	"drop":      Drop,
	"pair":      twoParticles,
}

// Build constructs the named scene and applies jitter of a tenth of the
// spacing when seed is non-zero.
func Build(name string, n int, b Box, spacing float64, seed int64) ([]r3.Vec, error) {
	fn, ok := scenes[name]
	if !ok {
		return nil, fmt.Errorf("unknown scene: %s (available: %v)", name, Names())
	}
	ps, err := fn(n, b, spacing)
	if err != nil {
		return nil, err
	}
	if seed != 0 {
		Jitter(ps, spacing/10, seed)
	}
	return ps, nil
}

func Names() []string {
	names := make([]string, 0, len(scenes))
	for name := range scenes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
