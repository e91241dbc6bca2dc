package viz

import (
	"fmt"
	"strings"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/san-kum/reactornet/internal/config"
	"github.com/san-kum/reactornet/internal/experiment"
)

const (
	stateMenu = iota
	stateSim
)

type presetEntry struct {
	category, name string
}

// App lets the user pick a preset network and watch it run.
type App struct {
	reg     *experiment.Registry
	entries []presetEntry
	cursor  int
	state   int
	live    Model
	err     error
}

func NewApp(reg *experiment.Registry) *App {
	a := &App{reg: reg}
	for _, c := range config.Categories() {
		for _, p := range config.ListPresets(c) {
			a.entries = append(a.entries, presetEntry{c, p})
		}
	}
	return a
}

func (a *App) Init() tea.Cmd { return nil }

func (a *App) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	if a.state == stateSim {
		if k, ok := msg.(tea.KeyMsg); ok && k.String() == "esc" {
			a.state = stateMenu
			return a, nil
		}
		next, cmd := a.live.Update(msg)
		a.live = next.(Model)
		return a, cmd
	}

	k, ok := msg.(tea.KeyMsg)
	if !ok {
		return a, nil
	}
	switch k.String() {
	case "q", "ctrl+c":
		return a, tea.Quit
	case "up", "k":
		if a.cursor > 0 {
			a.cursor--
		}
	case "down", "j":
		if a.cursor < len(a.entries)-1 {
			a.cursor++
		}
	case "enter", " ":
		return a, a.start()
	}
	return a, nil
}

func (a *App) start() tea.Cmd {
	if len(a.entries) == 0 {
		return nil
	}
	e := a.entries[a.cursor]
	live, err := NewModel(a.reg, config.GetPreset(e.category, e.name))
	if err != nil {
		a.err = err
		return nil
	}
	a.live, a.err, a.state = live, nil, stateSim
	return a.live.Init()
}

func (a *App) View() string {
	if a.state == stateSim {
		return a.live.View()
	}

	var b strings.Builder
	b.WriteString("\n\n    " + headerStyle.Render("REACTORNET") + "\n")
	b.WriteString("    " + mutedStyle.Render("reactor network simulator") + "\n")
	b.WriteString("    " + Separator(26) + "\n\n")
	last := ""
	for i, e := range a.entries {
		if e.category != last {
			b.WriteString("    " + labelStyle.Render(e.category) + "\n")
			last = e.category
		}
		desc := ""
		if cfg := config.GetPreset(e.category, e.name); cfg != nil {
			desc = cfg.Description
		}
		if len(desc) > 40 {
			desc = desc[:37] + "..."
		}
		if i == a.cursor {
			b.WriteString(fmt.Sprintf("    %s %s  %s\n", activeStyle.Render("▸"), valueStyle.Bold(true).Render(fmt.Sprintf("%-16s", e.name)), activeStyle.Render(desc)))
		} else {
			b.WriteString(fmt.Sprintf("      %s  %s\n", mutedStyle.Render(fmt.Sprintf("%-16s", e.name)), mutedStyle.Render(desc)))
		}
	}
	if a.err != nil {
		b.WriteString("\n    " + errorStyle.Render(a.err.Error()) + "\n")
	}
	b.WriteString("\n    " + mutedStyle.Render("j/k navigate  enter run  esc back  q quit") + "\n")
	return b.String()
}

func RunInteractive(reg *experiment.Registry) error {
	_, err := tea.NewProgram(NewApp(reg), tea.WithAltScreen()).Run()
	return err
}
