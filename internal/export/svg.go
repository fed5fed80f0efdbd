package export

import (
	"fmt"
	"strings"

	"github.com/mazznoer/colorgrad"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbfsim/internal/viz"
)

const (
	background = "#0a0a0a"
	lineColor  = "#666688"
)

// CanvasToSVG converts a braille canvas to SVG, one circle per lit dot.
// Shaded cells take their color from cm.
func CanvasToSVG(canvas *viz.Canvas, cm *viz.ColorMap, scale float64) string {
	if canvas == nil {
		return ""
	}

	width := float64(canvas.Width) * scale * 2
	height := float64(canvas.Height) * scale * 4

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%.0f" height="%.0f" viewBox="0 0 %.0f %.0f">
<rect width="100%%" height="100%%" fill="%s"/>
`, width, height, width, height, background)

	pixelMap := [4][2]int{
		{0x01, 0x08},
		{0x02, 0x10},
		{0x04, 0x20},
		{0x40, 0x80},
	}
	dotRadius := scale * 0.4

	for row := 0; row < canvas.Height; row++ {
		for col := 0; col < canvas.Width; col++ {
			pattern := int(canvas.Grid[row][col] - 0x2800)
			if pattern <= 0 {
				continue
			}
			fill := lineColor
			if shade := canvas.Shade[row][col]; shade >= 0 && cm != nil {
				fill = cm.Hex(shade)
			}

			baseX := float64(col) * scale * 2
			baseY := float64(row) * scale * 4
			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					if pattern&pixelMap[dy][dx] == 0 {
						continue
					}
					cx := baseX + float64(dx)*scale + scale/2
					cy := baseY + float64(dy)*scale + scale/2
					fmt.Fprintf(&sb, "<circle cx=\"%.1f\" cy=\"%.1f\" r=\"%.1f\" fill=\"%s\"/>\n", cx, cy, dotRadius, fill)
				}
			}
		}
	}

	sb.WriteString("</svg>")
	return sb.String()
}

// SnapshotToSVG draws particle positions inside the box [lower, upper]^3,
// front view, colored by height.
func SnapshotToSVG(ps []r3.Vec, lower, upper float64, width, height int, scale float64) string {
	canvas := viz.NewCanvas(width, height)
	cam := viz.NewCamera(lower, upper)
	viz.DrawWireframe(canvas, viz.BoxWireframe(lower, upper), cam)

	heights := make([]float64, len(ps))
	for i, p := range ps {
		heights[i] = p.Y
	}
	viz.DrawParticles(canvas, ps, heights, cam)

	return CanvasToSVG(canvas, viz.NewColorMap(colorgrad.Viridis(), lower, upper), scale)
}

// SeriesToSVG plots values against their index as a polyline.
func SeriesToSVG(values []float64, width, height int, strokeColor string) string {
	if len(values) < 2 {
		return ""
	}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}

	rangeY := hi - lo
	if rangeY == 0 {
		rangeY = 1
	}
	lo -= rangeY * 0.1
	hi += rangeY * 0.1
	rangeY = hi - lo
	rangeX := float64(len(values) - 1)

	var sb strings.Builder
	fmt.Fprintf(&sb, `<?xml version="1.0" encoding="UTF-8"?>
<svg xmlns="http://www.w3.org/2000/svg" width="%d" height="%d" viewBox="0 0 %d %d">
<rect width="100%%" height="100%%" fill="%s"/>
<path fill="none" stroke="%s" stroke-width="1.5" d="M`,
		width, height, width, height, background, strokeColor)

	for i, v := range values {
		x := float64(i) / rangeX * float64(width)
		y := float64(height) - (v-lo)/rangeY*float64(height)

		if i == 0 {
			fmt.Fprintf(&sb, "%.1f,%.1f", x, y)
		} else {
			fmt.Fprintf(&sb, " L%.1f,%.1f", x, y)
		}
	}

	sb.WriteString(`"/>
</svg>`)
	return sb.String()
}
