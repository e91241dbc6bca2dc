package viz

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/san-kum/reactornet/internal/config"
	"github.com/san-kum/reactornet/internal/experiment"
	"github.com/san-kum/reactornet/internal/network"
)

const (
	historyCapacity = 600
	chartWidth      = 60
	chartHeight     = 12
	frameRate       = time.Second / 30
	defaultFrames   = 200
)

type TickMsg time.Time

func tick() tea.Cmd {
	return tea.Tick(frameRate, func(t time.Time) tea.Msg { return TickMsg(t) })
}

type thermoState interface {
	Name() string
	Temperature() float64
	Pressure() float64
}

type switchable interface {
	Name() string
	Enabled() bool
	SetEnabled(bool)
}

// Model advances a reactor network one sampling interval per frame and
// charts the reactor temperatures.
type Model struct {
	reg      *experiment.Registry
	cfg      *config.Config
	model    *experiment.Model
	reactors []thermoState
	devices  []switchable

	interval float64
	end      float64
	times    []float64
	temps    [][]float64

	selected int
	running  bool
	done     bool
	showHelp bool
	err      error
	width    int
}

// NewModel builds the network described by cfg. A non-positive sampling
// interval is replaced by a fixed number of frames over the duration.
func NewModel(reg *experiment.Registry, cfg *config.Config) (Model, error) {
	m := Model{reg: reg, cfg: cfg, running: true, width: chartWidth}
	if err := m.reset(); err != nil {
		return Model{}, err
	}
	return m, nil
}

func (m *Model) reset() error {
	model, err := m.reg.Build(m.cfg.Clone())
	if err != nil {
		return err
	}
	net := model.Network

	m.model = model
	m.reactors = m.reactors[:0]
	for _, r := range net.Reactors() {
		if ts, ok := r.(thermoState); ok {
			m.reactors = append(m.reactors, ts)
		}
	}
	m.devices = m.devices[:0]
	for _, w := range m.cfg.Walls {
		if d, ok := model.Wall(w.Name); ok {
			m.devices = append(m.devices, d)
		}
	}
	for _, f := range m.cfg.Flows {
		if d, ok := model.Flow(f.Name); ok {
			m.devices = append(m.devices, d)
		}
	}
	if m.selected >= len(m.devices) {
		m.selected = 0
	}

	m.interval = m.cfg.Interval
	if m.interval <= 0 {
		m.interval = m.cfg.Duration / defaultFrames
	}
	m.end = net.Time() + m.cfg.Duration
	m.times = m.times[:0]
	m.temps = make([][]float64, len(m.reactors))
	m.done, m.err = false, nil
	m.record()
	return nil
}

func (m Model) Init() tea.Cmd { return tick() }

// Network is the network being shown.
func (m Model) Network() *network.Network { return m.model.Network }

func (m Model) Done() bool { return m.done }

func (m Model) Err() error { return m.err }

// Update handles input events and advances the network.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit
		case " ":
			m.running = !m.running
		case "r":
			if err := m.reset(); err != nil {
				m.err = err
			}
		case "tab":
			if len(m.devices) > 0 {
				m.selected = (m.selected + 1) % len(m.devices)
			}
		case "e":
			m.toggle()
		case "+", "=":
			m.interval *= 2
		case "-", "_":
			m.interval /= 2
		case "t":
			nextTheme()
		case "?":
			m.showHelp = !m.showHelp
		}
	case tea.WindowSizeMsg:
		m.width = max(20, min(msg.Width-50, 2*chartWidth))
	case TickMsg:
		if m.running && !m.done && m.err == nil {
			m.step()
		}
		return m, tick()
	}
	return m, nil
}

// step advances to the next sampling point.
func (m *Model) step() {
	net := m.model.Network
	target := math.Min(net.Time()+m.interval, m.end)
	for net.Time() < target {
		if _, err := net.Advance(context.Background(), target); err != nil {
			m.err = err
			return
		}
	}
	m.record()
	if net.Time() >= m.end {
		m.done = true
	}
}

// toggle switches the selected wall or flow device at the next sampling
// point, where the solver restarts.
func (m *Model) toggle() {
	if len(m.devices) == 0 || m.done {
		return
	}
	net := m.model.Network
	d := m.devices[m.selected]
	at := math.Min(net.Time()+m.interval, m.end)
	ev := network.AtTime("toggle "+d.Name(), at, func(*network.Network) error {
		d.SetEnabled(!d.Enabled())
		return nil
	})
	if err := net.AddEvent(ev); err != nil {
		m.err = err
	}
}

func (m *Model) record() {
	m.times = append(m.times, m.model.Network.Time())
	if len(m.times) > historyCapacity {
		m.times = m.times[1:]
	}
	for i, r := range m.reactors {
		m.temps[i] = append(m.temps[i], r.Temperature())
		if len(m.temps[i]) > historyCapacity {
			m.temps[i] = m.temps[i][1:]
		}
	}
}

// View renders the chart next to the status panel.
func (m Model) View() string {
	net := m.model.Network

	var chart strings.Builder
	chart.WriteString(headerStyle.Render(strings.ToUpper(m.cfg.Name)) + "\n")
	if len(m.times) > 1 && len(m.temps) > 0 {
		legends := make([]string, len(m.reactors))
		for i, r := range m.reactors {
			legends[i] = r.Name()
		}
		chart.WriteString(graphStyle.Render(plotSeries(m.temps, legends, m.width, chartHeight, "temperature [K]")))
	} else {
		chart.WriteString(mutedStyle.Render("waiting for samples"))
	}

	var s strings.Builder
	status := "RUNNING"
	switch {
	case m.err != nil:
		status = "FAILED"
	case m.done:
		status = "DONE"
	case !m.running:
		status = "PAUSED"
	}
	s.WriteString(activeStyle.Render(status) + "\n\n")

	progress := 1.0
	if m.cfg.Duration > 0 {
		progress = 1 - (m.end-net.Time())/m.cfg.Duration
	}
	s.WriteString(ProgressBar(progress, 24) + "\n\n")

	stats := net.Stats()
	s.WriteString(labelStyle.Render(net.IndependentVariable()) + valueStyle.Render(fmt.Sprintf("%.4g", net.Time())) + "\n")
	s.WriteString(labelStyle.Render("interval") + valueStyle.Render(fmt.Sprintf("%.3g", m.interval)) + "\n")
	s.WriteString(labelStyle.Render("steps") + valueStyle.Render(fmt.Sprintf("%d", stats.Solver.Steps)) + "\n")
	s.WriteString(labelStyle.Render("step size") + valueStyle.Render(fmt.Sprintf("%.3g", stats.Solver.LastStep)) + "\n")
	s.WriteString(labelStyle.Render("events") + valueStyle.Render(fmt.Sprintf("%d", stats.Events)) + "\n")

	s.WriteString("\n" + Separator(30) + "\n")
	for i, r := range m.reactors {
		s.WriteString(labelStyle.Render(r.Name()) + valueStyle.Render(fmt.Sprintf("%7.1f K %9.4g Pa", r.Temperature(), r.Pressure())) + "\n")
		s.WriteString(strings.Repeat(" ", 14) + Sparkline(m.temps[i], 24) + "\n")
	}

	if len(m.devices) > 0 {
		s.WriteString("\n" + Separator(30) + "\n")
		for i, d := range m.devices {
			state := "off"
			if d.Enabled() {
				state = "on"
			}
			line := fmt.Sprintf("%-14s %s", d.Name(), state)
			if i == m.selected {
				s.WriteString(activeStyle.Render("> "+line) + "\n")
			} else {
				s.WriteString("  " + mutedStyle.Render(line) + "\n")
			}
		}
	}

	if m.err != nil {
		s.WriteString("\n" + errorStyle.Render(m.err.Error()) + "\n")
	}
	s.WriteString(mutedStyle.Render("\nSP:Pause R:Reset Q:Quit\nTAB:Device E:Toggle +/-:Speed ?:Help"))

	main := lipgloss.JoinHorizontal(lipgloss.Top, chart.String(), panelStyle.Render(s.String()))
	if m.showHelp {
		return helpText + "\n\n" + main
	}
	return main
}

const helpText = `
╔══════════════════════════════════════╗
║           KEYBOARD SHORTCUTS         ║
╠══════════════════════════════════════╣
║  Space    - Pause/Resume             ║
║  R        - Rebuild and restart      ║
║  Q        - Quit                     ║
║  Tab      - Select wall or flow      ║
║  E        - Toggle selected device   ║
║  + / -    - Double/halve interval    ║
║  T        - Cycle themes             ║
║  ?        - Toggle this help         ║
╚══════════════════════════════════════╝`

// RunLive shows cfg in the terminal until the user quits.
func RunLive(reg *experiment.Registry, cfg *config.Config) error {
	m, err := NewModel(reg, cfg)
	if err != nil {
		return err
	}
	_, err = tea.NewProgram(m, tea.WithAltScreen()).Run()
	return err
}
