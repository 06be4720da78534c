package viz

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/nbody/internal/metrics"
	"github.com/san-kum/nbody/internal/physics"
)

const (
	width           = 80
	height          = 24
	historyCapacity = 600
	trailLength     = 60
	// energy is O(N²) per frame; larger systems skip it
	maxEnergyBodies = 2000
	maxTrailBodies  = 16
)

type TickMsg time.Time

type point struct{ x, y int }

// Model drives a BodiesSystem from the bubbletea event loop and draws a
// projection of the bodies on a braille canvas.
type Model struct {
	system        *physics.BodiesSystem
	dt            float32
	stepsPerFrame int
	title         string
	initial       physics.Bodies

	t        float64
	steps    int
	lastStep time.Duration
	err      error

	canvas        *Canvas
	camera        *Camera
	trails        [][]point
	energyHistory []float64

	running    bool
	showHelp   bool
	showEnergy bool
	theme      Theme
	styles     Styles
}

func NewModel(system *physics.BodiesSystem, dt float32, title string) Model {
	n := system.NumBodies()
	camera := NewCamera()
	camera.Fit(system.Bodies(), n)

	return Model{
		system:        system,
		dt:            dt,
		stepsPerFrame: 1,
		title:         title,
		initial:       system.Bodies().Clone(),
		canvas:        NewCanvas(width, height),
		camera:        camera,
		trails:        make([][]point, min(n, maxTrailBodies)),
		energyHistory: make([]float64, 0, historyCapacity),
		running:       true,
		showEnergy:    n <= maxEnergyBodies,
		theme:         ThemeCyberpunk,
		styles:        NewStyles(ThemeCyberpunk),
	}
}

// WithStepsPerFrame advances k steps per tick.
func (m Model) WithStepsPerFrame(k int) Model {
	m.stepsPerFrame = max(1, k)
	return m
}

func (m Model) WithTheme(name string) Model {
	m.theme = GetTheme(name)
	m.styles = NewStyles(m.theme)
	return m
}

func (m Model) Steps() int   { return m.steps }
func (m Model) Time() float64 { return m.t }
func (m Model) Err() error    { return m.err }

func tick() tea.Cmd {
	return tea.Tick(time.Second/30, func(t time.Time) tea.Msg { return TickMsg(t) })
}

func (m Model) Init() tea.Cmd {
	return tick()
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			if m.err == nil {
				m.running = !m.running
			}
		case "n":
			if !m.running && m.err == nil {
				m.step()
			}
		case "r":
			m.reset()
		case "f":
			m.camera.Fit(m.system.Bodies(), m.system.NumBodies())
		case "0":
			m.camera.ResetView()
		case "up", "k":
			m.camera.RotateX(0.1)
		case "down", "j":
			m.camera.RotateX(-0.1)
		case "left", "h":
			m.camera.RotateY(0.1)
		case "right", "l":
			m.camera.RotateY(-0.1)
		case "z":
			m.camera.RotateZ(0.1)
		case "Z":
			m.camera.RotateZ(-0.1)
		case "+", "=":
			m.camera.ZoomIn()
		case "-", "_":
			m.camera.ZoomOut()
		case "e":
			m.showEnergy = !m.showEnergy && m.system.NumBodies() <= maxEnergyBodies
		case "t":
			m.theme = NextTheme(m.theme)
			m.styles = NewStyles(m.theme)
		case "?":
			m.showHelp = !m.showHelp
		}
	case TickMsg:
		if m.running && m.err == nil {
			for i := 0; i < m.stepsPerFrame && m.err == nil; i++ {
				m.step()
			}
		}
		return m, tick()
	}
	return m, nil
}

func (m *Model) step() {
	impl := m.system.Implementation()
	start := time.Now()
	err := m.system.Update(m.dt)
	m.lastStep = time.Since(start)
	metrics.ObserveStep(impl, m.lastStep, err)
	if err != nil {
		m.err = err
		m.running = false
		return
	}
	m.t += float64(m.dt)
	m.steps++

	if m.showEnergy {
		e := metrics.TotalEnergy(m.system.Bodies(), m.system.NumBodies(), float64(m.system.SquaredSoftening()))
		m.energyHistory = append(m.energyHistory, e)
		if len(m.energyHistory) > historyCapacity {
			m.energyHistory = m.energyHistory[1:]
		}
	}

	sw, sh := m.canvas.PixelSize()
	b := m.system.Bodies()
	for i := range m.trails {
		p, ok := position(b, i)
		if !ok {
			continue
		}
		x, y, _, visible := m.camera.Project(p, sw, sh)
		if !visible {
			continue
		}
		m.trails[i] = append(m.trails[i], point{x, y})
		if len(m.trails[i]) > trailLength {
			m.trails[i] = m.trails[i][1:]
		}
	}
}

// reset copies the initial state back into the system's own buffers.
func (m *Model) reset() {
	b := m.system.Bodies()
	copy(b.Masses, m.initial.Masses)
	copy(b.Positions, m.initial.Positions)
	copy(b.Velocities, m.initial.Velocities)

	m.t, m.steps, m.err = 0, 0, nil
	m.energyHistory = m.energyHistory[:0]
	for i := range m.trails {
		m.trails[i] = m.trails[i][:0]
	}
	m.camera.Fit(b, m.system.NumBodies())
}

func (m *Model) draw() {
	m.canvas.Clear()
	sw, sh := m.canvas.PixelSize()

	for _, trail := range m.trails {
		for _, pt := range trail {
			m.canvas.Set(pt.x, pt.y)
		}
	}

	n := m.system.NumBodies()
	radius := 0
	if n <= maxTrailBodies {
		radius = 1
	}
	b := m.system.Bodies()
	for i := 0; i < n; i++ {
		p, ok := position(b, i)
		if !ok {
			continue
		}
		if x, y, _, visible := m.camera.Project(p, sw, sh); visible {
			m.canvas.Dot(x, y, radius)
		}
	}
}

func (m Model) status() string {
	switch {
	case m.err != nil:
		return m.styles.Error.Render("FAILED")
	case m.running:
		return m.styles.Running.Render("RUNNING")
	default:
		return m.styles.Paused.Render("PAUSED")
	}
}

func (m Model) View() string {
	m.draw()
	st := m.styles
	canvasView := st.Canvas.Render(m.canvas.String())

	var s strings.Builder
	s.WriteString(st.Header.Render(strings.ToUpper(m.title)) + "\n")
	s.WriteString(m.status() + "\n\n")

	if m.showEnergy && len(m.energyHistory) > 1 {
		chart := asciigraph.Plot(m.energyHistory, asciigraph.Height(4), asciigraph.Width(30), asciigraph.Caption("Total energy"))
		s.WriteString(st.Graph.Render(chart) + "\n\n")
	}

	row := func(label, value string) {
		s.WriteString(st.Label.Render(label) + st.Value.Render(value) + "\n")
	}
	row("Strategy", m.system.Implementation())
	row("Bodies", fmt.Sprintf("%d", m.system.NumBodies()))
	row("Time", fmt.Sprintf("%.3gs", m.t))
	row("Steps", fmt.Sprintf("%d", m.steps))
	row("Step time", m.lastStep.Round(time.Microsecond).String())
	if len(m.energyHistory) > 0 {
		first, last := m.energyHistory[0], m.energyHistory[len(m.energyHistory)-1]
		row("Energy", fmt.Sprintf("%.4g", last))
		if first != 0 {
			row("Drift", fmt.Sprintf("%.2e", (last-first)/first))
		}
	}
	row("Zoom", fmt.Sprintf("%.2fx", m.camera.Zoom))
	if m.err != nil {
		s.WriteString("\n" + st.Error.Render(wrap(m.err.Error(), 38)) + "\n")
	}

	s.WriteString(st.Help.Render("SP:Pause N:Step R:Reset Q:Quit\nArrows:Rotate +/-:Zoom F:Fit\nE:Energy T:Theme ?:Help"))
	mainView := lipgloss.JoinHorizontal(lipgloss.Top, canvasView, st.Panel.Render(s.String()))

	if m.showHelp {
		return helpText + "\n" + mainView
	}
	return mainView
}

const helpText = `
  Space      pause / resume
  N          single step while paused
  R          restore the initial bodies
  F          refit the view to the bodies
  0          reset rotation and zoom
  Arrows/hjkl rotate about x and y, z/Z about z
  + / -      zoom
  E          toggle the energy chart
  T          cycle themes
  Q          quit
`

func wrap(text string, w int) string {
	var lines []string
	for len(text) > w {
		cut := strings.LastIndex(text[:w], " ")
		if cut <= 0 {
			cut = w
		}
		lines = append(lines, text[:cut])
		text = strings.TrimLeft(text[cut:], " ")
	}
	return strings.Join(append(lines, text), "\n")
}
