package viz

import (
	"fmt"
	"image"
	"image/color"
	"image/gif"
	"math"
	"os"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/spatial/r3"

	"github.com/san-kum/pbfsim/internal/dynamo"
	"github.com/san-kum/pbfsim/internal/physics"
)

const (
	width           = 60
	height          = 24
	historyCapacity = 300
	gifPath         = "pbfsim.gif"
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

// Model steps a fluid on every tick and renders it with a stats panel.
type Model struct {
	fluid     *physics.Fluid
	positions []r3.Vec
	initial   []r3.Vec
	name      string

	canvas *Canvas
	camera *Camera
	box    *Wireframe
	theme  Theme
	colors *ColorMap

	running   bool
	showHelp  bool
	err       error
	lastStep  time.Duration
	errors    []float64
	energy    []float64
	history   []dynamo.Snapshot
	playHead  int
	recording bool
	frames    []*image.Paletted
}

// NewModel takes ownership of positions, which must already be loaded into
// fluid with InitState.
func NewModel(fluid *physics.Fluid, positions []r3.Vec, name string) Model {
	cfg := fluid.Config()
	theme := Themes[0]
	return Model{
		fluid:     fluid,
		positions: positions,
		initial:   dynamo.ClonePositions(positions),
		name:      name,
		canvas:    NewCanvas(width, height),
		camera:    NewCamera(cfg.Lower, cfg.Upper),
		box:       BoxWireframe(cfg.Lower, cfg.Upper),
		theme:     theme,
		colors:    NewDensityColorMap(theme.Gradient(), cfg.RestDensity),
		running:   true,
		errors:    make([]float64, 0, historyCapacity),
		energy:    make([]float64, 0, historyCapacity),
		history:   make([]dynamo.Snapshot, 0, historyCapacity),
		playHead:  -1,
	}
}

func (m Model) Init() tea.Cmd {
	return tick()
}

// Update handles input events and steps the simulation.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			if m.recording {
				m.saveGIF()
			}
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			m.reset()
		case "p", "up":
			m.fluid.Push(r3.Vec{Y: 1})
		case "left":
			m.fluid.Push(r3.Vec{X: -1})
		case "right":
			m.fluid.Push(r3.Vec{X: 1})
		case "down":
			m.fluid.Push(r3.Vec{Y: -1})
		case "[":
			m.scrub(-1)
		case "]":
			m.scrub(1)
		case "x":
			m.camera.RotateX(0.1)
		case "X":
			m.camera.RotateX(-0.1)
		case "y":
			m.camera.RotateY(0.1)
		case "Y":
			m.camera.RotateY(-0.1)
		case "+", "=":
			m.camera.ZoomIn()
		case "-", "_":
			m.camera.ZoomOut()
		case "0":
			m.camera.ResetView()
		case "t":
			m.theme = NextTheme(m.theme.Name)
			m.colors = NewDensityColorMap(m.theme.Gradient(), m.fluid.Config().RestDensity)
		case "g":
			if m.recording {
				m.saveGIF()
				m.recording = false
				m.frames = nil
			} else {
				m.recording = true
				m.frames = make([]*image.Paletted, 0)
			}
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running && m.err == nil {
			if m.playHead == -1 {
				m.step()
			} else {
				m.playHead++
				if m.playHead >= len(m.history) {
					m.playHead = -1
				}
			}
		}
		m.draw()
		if m.recording {
			m.captureFrame()
		}
		return m, tick()
	}
	return m, nil
}

// step advances the fluid one frame and records the density error and
// kinetic energy of the result.
func (m *Model) step() {
	start := time.Now()
	if err := m.fluid.Step(m.positions, nil); err != nil {
		m.err = err
		return
	}
	m.lastStep = time.Since(start)
	if !dynamo.ValidPositions(m.positions) {
		m.err = &dynamo.SimError{Step: m.fluid.Frame(), Time: m.fluid.Time(), Wrapped: dynamo.ErrUnstable}
		return
	}

	s := m.fluid.State()
	worst := 0.0
	for _, c := range s.Constraint {
		worst = math.Max(worst, math.Abs(c))
	}
	m.errors = appendCapped(m.errors, worst)

	ke := 0.0
	for _, v := range s.Velocity {
		ke += 0.5 * m.fluid.Config().Mass * r3.Norm2(v)
	}
	m.energy = appendCapped(m.energy, ke)

	snap := dynamo.Snapshot{Step: m.fluid.Frame(), Time: m.fluid.Time(), Positions: dynamo.ClonePositions(m.positions)}
	m.history = append(m.history, snap)
	if len(m.history) > historyCapacity {
		m.history = m.history[1:]
	}
}

func appendCapped(xs []float64, v float64) []float64 {
	xs = append(xs, v)
	if len(xs) > historyCapacity {
		xs = xs[1:]
	}
	return xs
}

// scrub changes the playback position in history.
func (m *Model) scrub(dir int) {
	if m.playHead == -1 {
		if len(m.history) == 0 {
			return
		}
		m.playHead = len(m.history) - 1
		m.running = false
	}
	m.playHead += dir
	if m.playHead < 0 {
		m.playHead = 0
	}
	if m.playHead >= len(m.history) {
		m.playHead = -1
	}
}

// reset restores the initial positions and clears all history.
func (m *Model) reset() {
	copy(m.positions, m.initial)
	m.err = m.fluid.InitState(m.positions)
	m.errors = m.errors[:0]
	m.energy = m.energy[:0]
	m.history = m.history[:0]
	m.playHead = -1
}

// draw renders either the live particles or the replayed snapshot. Live
// particles are shaded by density; replayed ones are not.
func (m *Model) draw() {
	m.canvas.Clear()
	DrawWireframe(m.canvas, m.box, m.camera)
	if m.playHead != -1 && m.playHead < len(m.history) {
		DrawParticles(m.canvas, m.history[m.playHead].Positions, nil, m.camera)
		return
	}
	DrawParticles(m.canvas, m.positions, m.fluid.State().Density, m.camera)
}

// View renders the TUI interface.
func (m Model) View() string {
	canvasView := lipgloss.NewStyle().Padding(1, 2).Render(m.canvas.Render(m.colors, m.theme.Muted))

	var s strings.Builder
	s.WriteString(HeaderStyle.Render(GradientText(strings.ToUpper(m.name), m.theme.Gradient())) + "\n\n")

	status := StatusRunning.Render("RUNNING")
	switch {
	case m.err != nil:
		status = StatusRecording.Render("FAILED")
	case m.playHead != -1:
		status = StatusPaused.Render(fmt.Sprintf("REPLAY %d/%d", m.playHead+1, len(m.history)))
	case !m.running:
		status = StatusPaused.Render("PAUSED")
	}
	if m.recording {
		status += " " + StatusRecording.Render("● REC")
	}
	s.WriteString(status + "\n\n")

	if len(m.errors) > 1 {
		chart := asciigraph.Plot(m.errors, asciigraph.Height(5), asciigraph.Width(30), asciigraph.Caption("density error"))
		s.WriteString(lipgloss.NewStyle().Foreground(m.theme.Primary).Render(chart) + "\n\n")
	}

	cfg := m.fluid.Config()
	row := func(label, value string) {
		s.WriteString(MetricLabel.Render(label) + MetricValue.Render(value) + "\n")
	}
	row("Frame", fmt.Sprintf("%d", m.fluid.Frame()))
	row("Time", fmt.Sprintf("%.2fs", m.fluid.Time()))
	row("Particles", fmt.Sprintf("%d", cfg.Particles))
	row("Iterations", fmt.Sprintf("%d", cfg.Iterations))
	row("Step", m.lastStep.Round(time.Microsecond).String())
	if len(m.errors) > 0 {
		row("Density err", fmt.Sprintf("%.4f", m.errors[len(m.errors)-1]))
	}
	s.WriteString(MetricLabel.Render("Energy") + SparklineChart(m.energy, 20) + "\n")
	s.WriteString(MetricLabel.Render("Theme") + lipgloss.NewStyle().Foreground(m.theme.Accent).Render(m.theme.Name) + "\n")
	if m.err != nil {
		s.WriteString("\n" + lipgloss.NewStyle().Foreground(m.theme.Warning).Render(m.err.Error()) + "\n")
	}

	s.WriteString("\n" + KeyHint.Render("SP:Pause R:Reset Q:Quit\n←↑→↓/P:Push T:Theme ?:Help"))
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, GlassPanel.Render(s.String()))
	if m.showHelp {
		return helpText + "\n" + mainView
	}
	return mainView
}

const helpText = `
  Space      pause or resume
  R          reset to the initial scene
  P, arrows  push the fluid
  [ ]        step through recorded frames
  x/X y/Y    rotate the view, 0 resets it
  + -        zoom
  T          cycle color themes
  G          toggle GIF recording (` + gifPath + `)
  Q          quit
`

// captureFrame rasterizes the braille canvas into a two-color image.
func (m *Model) captureFrame() {
	charW, charH := 8, 16
	imgW, imgH := m.canvas.Width*charW, m.canvas.Height*charH
	img := image.NewPaletted(image.Rect(0, 0, imgW, imgH), color.Palette{color.Black, color.White})
	dotW, dotH := charW/2, charH/4
	for row := 0; row < m.canvas.Height; row++ {
		for col := 0; col < m.canvas.Width; col++ {
			pattern := int(m.canvas.Grid[row][col] - blank)
			if pattern <= 0 {
				continue
			}
			for dy := 0; dy < 4; dy++ {
				for dx := 0; dx < 2; dx++ {
					if pattern&pixelMap[dy][dx] == 0 {
						continue
					}
					baseX, baseY := col*charW+dx*dotW, row*charH+dy*dotH
					for py := 0; py < dotH; py++ {
						for px := 0; px < dotW; px++ {
							img.SetColorIndex(baseX+px, baseY+py, 1)
						}
					}
				}
			}
		}
	}
	m.frames = append(m.frames, img)
}

func (m *Model) saveGIF() {
	if len(m.frames) == 0 {
		return
	}
	anim := gif.GIF{LoopCount: 0}
	for _, frame := range m.frames {
		anim.Image = append(anim.Image, frame)
		anim.Delay = append(anim.Delay, 3)
	}
	f, err := os.Create(gifPath)
	if err != nil {
		m.err = err
		return
	}
	defer f.Close()
	if err := gif.EncodeAll(f, &anim); err != nil {
		m.err = err
	}
}

// Run starts the live view in the alternate screen.
func Run(fluid *physics.Fluid, positions []r3.Vec, name string) error {
	_, err := tea.NewProgram(NewModel(fluid, positions, name), tea.WithAltScreen()).Run()
	return err
}
