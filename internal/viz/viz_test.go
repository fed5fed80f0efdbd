package viz

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/mazznoer/colorgrad"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbfsim/internal/config"
	"github.com/san-kum/pbfsim/internal/dynamo"
	"github.com/san-kum/pbfsim/internal/sim"
)

func TestCanvasSetAndClear(t *testing.T) {
	c := NewCanvas(4, 2)
	w, h := c.PixelSize()
	assert.Equal(t, 8, w)
	assert.Equal(t, 8, h)

	c.Set(0, 0)
	c.Set(1, 3)
	assert.Equal(t, rune(blank|0x1|0x80), c.Grid[0][0])

	c.Set(-1, 0)
	c.Set(100, 100)
	assert.Equal(t, rune(blank), c.Grid[1][3])

	c.Clear()
	assert.Equal(t, strings.Repeat(strings.Repeat(string(rune(blank)), 4)+"\n", 2), c.String())
}

func TestCanvasPlotKeepsLargestShade(t *testing.T) {
	c := NewCanvas(2, 2)
	c.Plot(0, 0, 0.3)
	c.Plot(1, 1, 0.7)
	c.Plot(0, 2, 0.5)
	assert.Equal(t, 0.7, c.Shade[0][0])

	c.Set(2, 0)
	assert.Less(t, c.Shade[0][1], 0.0, "Set should not shade a cell")
}

func TestCanvasDrawLine(t *testing.T) {
	c := NewCanvas(4, 1)
	c.DrawLine(0, 0, 7, 0)
	for col := 0; col < 4; col++ {
		assert.Equal(t, rune(blank|0x1|0x8), c.Grid[0][col])
	}
}

func TestColorMapClamps(t *testing.T) {
	cm := NewColorMap(colorgrad.Viridis(), 0, 2)
	assert.Equal(t, cm.Color(-5), cm.Color(0))
	assert.Equal(t, cm.Color(9), cm.Color(2))
	assert.NotEqual(t, cm.Color(0), cm.Color(2))
	assert.Len(t, cm.Hex(1), 7)

	degenerate := NewColorMap(colorgrad.Viridis(), 1, 1)
	assert.Equal(t, degenerate.Color(0), degenerate.Color(5))
}

func TestDensityColorMapPaint(t *testing.T) {
	cm := NewDensityColorMap(colorgrad.Plasma(), 100)
	assert.Equal(t, 200.0, cm.Hi)

	out := make([]dynamo.Color, 2)
	cm.Paint([]float64{0, 100, 200}, out)
	assert.Equal(t, cm.Color(0), out[0])
	assert.Equal(t, cm.Color(100), out[1])
	for _, ch := range out[1] {
		assert.True(t, ch >= 0 && ch <= 1)
	}
}

func TestCameraProjectsBoxCenter(t *testing.T) {
	cam := NewCamera(0, 1)
	x, y, _, ok := cam.Project(r3.Vec{X: 0.5, Y: 0.5, Z: 0.5}, 100, 80)
	require.True(t, ok)
	assert.Equal(t, 50, x)
	assert.Equal(t, 40, y)

	// Up is up on screen, right is right.
	xr, _, _, _ := cam.Project(r3.Vec{X: 1, Y: 0.5, Z: 0.5}, 100, 80)
	_, yu, _, _ := cam.Project(r3.Vec{X: 0.5, Y: 1, Z: 0.5}, 100, 80)
	assert.Greater(t, xr, x)
	assert.Less(t, yu, y)
}

func TestCameraKeepsBoxVisible(t *testing.T) {
	cam := NewCamera(0, 1)
	cam.RotateX(0.2)
	cam.RotateY(0.2)
	for _, e := range BoxWireframe(0, 1).Edges {
		_, _, _, ok := cam.Project(e.Start, 120, 96)
		assert.True(t, ok, "corner %v should be visible", e.Start)
	}
	cam.ResetView()
	assert.Zero(t, cam.RotX)
	assert.Equal(t, 1.0, cam.Zoom)
}

func TestDrawParticles(t *testing.T) {
	c := NewCanvas(20, 10)
	cam := NewCamera(0, 1)
	DrawParticles(c, []r3.Vec{{X: 0.5, Y: 0.5, Z: 0.5}}, []float64{3}, cam)

	shaded := 0
	for i := range c.Shade {
		for j := range c.Shade[i] {
			if c.Shade[i][j] == 3 {
				shaded++
			}
		}
	}
	assert.Equal(t, 1, shaded)
	assert.NotEmpty(t, c.Render(NewColorMap(colorgrad.Viridis(), 0, 4), ThemeDeep.Muted))
}

func TestNextThemeWraps(t *testing.T) {
	last := Themes[len(Themes)-1]
	assert.Equal(t, Themes[0].Name, NextTheme(last.Name).Name)
	assert.Equal(t, Themes[1].Name, NextTheme(Themes[0].Name).Name)
	assert.Equal(t, Themes[0].Name, GetTheme("missing").Name)
	assert.Len(t, ThemeNames(), len(Themes))
}

func TestSparklineWidth(t *testing.T) {
	assert.Equal(t, strings.Repeat("─", 5), SparklineChart(nil, 5))
	assert.NotEmpty(t, SparklineChart([]float64{1, 2, 3, 2, 1, 0, 5}, 4))
	assert.Empty(t, GradientText("", colorgrad.Viridis()))
}

func newTestModel(t *testing.T) Model {
	t.Helper()
	cfg := config.GetPreset("quick")
	cfg.Workers = 1
	fluid, positions, err := sim.Build(cfg, 0)
	require.NoError(t, err)
	return NewModel(fluid, positions, "quick")
}

func key(s string) tea.KeyMsg {
	switch s {
	case " ":
		return tea.KeyMsg{Type: tea.KeySpace, Runes: []rune(" ")}
	case "left":
		return tea.KeyMsg{Type: tea.KeyLeft}
	}
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)}
}

func update(m Model, msg tea.Msg) Model {
	next, _ := m.Update(msg)
	return next.(Model)
}

func TestModelTickSteps(t *testing.T) {
	m := newTestModel(t)
	m = update(m, TickMsg(time.Now()))
	m = update(m, TickMsg(time.Now()))

	assert.Equal(t, 2, m.fluid.Frame())
	assert.Len(t, m.history, 2)
	assert.Len(t, m.errors, 2)
	assert.NoError(t, m.err)
	assert.Contains(t, m.View(), "Particles")
}

func TestModelPauseAndReset(t *testing.T) {
	m := newTestModel(t)
	initial := m.positions[0]

	m = update(m, TickMsg(time.Now()))
	m = update(m, key(" "))
	assert.False(t, m.running)
	m = update(m, TickMsg(time.Now()))
	assert.Equal(t, 1, m.fluid.Frame(), "paused model should not step")

	m = update(m, key("r"))
	assert.Equal(t, 0, m.fluid.Frame())
	assert.Equal(t, initial, m.positions[0])
	assert.Empty(t, m.history)
}

func TestModelScrub(t *testing.T) {
	m := newTestModel(t)
	for i := 0; i < 3; i++ {
		m = update(m, TickMsg(time.Now()))
	}
	m = update(m, key("["))
	assert.Equal(t, 1, m.playHead)
	assert.False(t, m.running)
	assert.Contains(t, m.View(), "REPLAY")

	m = update(m, key("]"))
	m = update(m, key("]"))
	assert.Equal(t, -1, m.playHead)
}

func TestModelPushAndTheme(t *testing.T) {
	m := newTestModel(t)
	m = update(m, key("left"))
	m = update(m, TickMsg(time.Now()))
	assert.NoError(t, m.err)

	before := m.theme.Name
	m = update(m, key("t"))
	assert.NotEqual(t, before, m.theme.Name)
}

func TestModelQuit(t *testing.T) {
	m := newTestModel(t)
	_, cmd := m.Update(key("q"))
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}

func TestInteractiveMenu(t *testing.T) {
	app := NewInteractiveApp()
	assert.Equal(t, config.ListPresets(), app.presets)

	next, _ := app.Update(key("j"))
	m := next.(model)
	assert.Equal(t, 1, m.cursor)

	next, _ = m.Update(tea.KeyMsg{Type: tea.KeyEnter})
	m = next.(model)
	assert.Equal(t, stateConfig, m.state)
	assert.Contains(t, m.View(), presetInfo[m.selected])
}
