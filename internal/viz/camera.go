package viz

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/spatial/r3"
)

// Camera orbits the simulation box. With no rotation it looks down -Z, so
// X is screen right and Y is screen up.
type Camera struct {
	Distance   float64
	RotX, RotY float64
	Zoom       float64
	// Center and Extent normalize world coordinates so the box spans [-1, 1].
	Center r3.Vec
	Extent float64
}

// NewCamera frames the cube [lower, upper]^3.
func NewCamera(lower, upper float64) *Camera {
	mid := (lower + upper) / 2
	return &Camera{
		Distance: 8,
		Zoom:     1.0,
		Center:   r3.Vec{X: mid, Y: mid, Z: mid},
		Extent:   (upper - lower) / 2,
	}
}

func (c *Camera) RotateX(a float64) { c.RotX += a }
func (c *Camera) RotateY(a float64) { c.RotY += a }
func (c *Camera) ZoomIn()           { c.Zoom = math.Min(10, c.Zoom*1.2) }
func (c *Camera) ZoomOut()          { c.Zoom = math.Max(0.1, c.Zoom/1.2) }
func (c *Camera) ResetView()        { c.RotX, c.RotY, c.Zoom = 0, 0, 1 }

// rotate maps a world point into camera space.
func (c *Camera) rotate(p r3.Vec) r3.Vec {
	p = r3.Scale(1/c.Extent, r3.Sub(p, c.Center))
	cx, sx := math.Cos(c.RotX), math.Sin(c.RotX)
	p.Y, p.Z = p.Y*cx-p.Z*sx, p.Y*sx+p.Z*cx
	cy, sy := math.Cos(c.RotY), math.Sin(c.RotY)
	p.X, p.Z = p.X*cy+p.Z*sy, -p.X*sy+p.Z*cy
	return r3.Scale(c.Zoom, p)
}

// Project converts a world point to sub-pixel coordinates on a sw x sh
// canvas. It returns x, y, depth and visibility.
func (c *Camera) Project(p r3.Vec, sw, sh int) (int, int, float64, bool) {
	rot := c.rotate(p)
	if rot.Z >= c.Distance-0.1 {
		return 0, 0, 0, false
	}
	scale := c.Distance / (c.Distance - rot.Z)
	pScale := float64(min(sw, sh)) / 3.0
	sx := int(rot.X*scale*pScale) + sw/2
	sy := int(-rot.Y*scale*pScale) + sh/2
	return sx, sy, rot.Z, sx >= 0 && sx < sw && sy >= 0 && sy < sh
}

type Edge struct {
	Start, End r3.Vec
}

type Wireframe struct{ Edges []Edge }

// BoxWireframe outlines the cube [lower, upper]^3.
func BoxWireframe(lower, upper float64) *Wireframe {
	l, u := lower, upper
	v := []r3.Vec{{X: l, Y: l, Z: l}, {X: u, Y: l, Z: l}, {X: u, Y: u, Z: l}, {X: l, Y: u, Z: l}, {X: l, Y: l, Z: u}, {X: u, Y: l, Z: u}, {X: u, Y: u, Z: u}, {X: l, Y: u, Z: u}}
	ei := [][2]int{{0, 1}, {1, 2}, {2, 3}, {3, 0}, {4, 5}, {5, 6}, {6, 7}, {7, 4}, {0, 4}, {1, 5}, {2, 6}, {3, 7}}
	w := &Wireframe{Edges: make([]Edge, 0, len(ei))}
	for _, e := range ei {
		w.Edges = append(w.Edges, Edge{v[e[0]], v[e[1]]})
	}
	return w
}

// DrawWireframe draws every edge with at least one visible endpoint.
func DrawWireframe(c *Canvas, w *Wireframe, cam *Camera) {
	sw, sh := c.PixelSize()
	for _, e := range w.Edges {
		x1, y1, _, v1 := cam.Project(e.Start, sw, sh)
		x2, y2, _, v2 := cam.Project(e.End, sw, sh)
		if v1 || v2 {
			c.DrawLine(x1, y1, x2, y2)
		}
	}
}

// DrawParticles plots particles far to near, shading each with its value.
// values may be nil.
func DrawParticles(c *Canvas, ps []r3.Vec, values []float64, cam *Camera) {
	type dot struct {
		x, y  int
		depth float64
		v     float64
	}
	sw, sh := c.PixelSize()
	dots := make([]dot, 0, len(ps))
	for i, p := range ps {
		x, y, d, ok := cam.Project(p, sw, sh)
		if !ok {
			continue
		}
		v := 0.0
		if i < len(values) {
			v = values[i]
		}
		dots = append(dots, dot{x, y, d, v})
	}
	sort.Slice(dots, func(i, j int) bool { return dots[i].depth < dots[j].depth })
	for _, d := range dots {
		c.Plot(d.x, d.y, d.v)
	}
}
