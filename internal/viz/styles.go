package viz

import (
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Theme is the color scheme of the terminal views.
type Theme struct {
	Name    string
	Primary lipgloss.Color
	Accent  lipgloss.Color
	Text    lipgloss.Color
	Muted   lipgloss.Color
	Hot     lipgloss.Color
	Warm    lipgloss.Color
	Cold    lipgloss.Color
}

var (
	ThemeFlame = Theme{
		Name:    "flame",
		Primary: lipgloss.Color("#ff8800"),
		Accent:  lipgloss.Color("#ffcc00"),
		Text:    lipgloss.Color("#ffffff"),
		Muted:   lipgloss.Color("#666688"),
		Hot:     lipgloss.Color("#ff4444"),
		Warm:    lipgloss.Color("#ffcc00"),
		Cold:    lipgloss.Color("#00ccff"),
	}

	ThemeLab = Theme{
		Name:    "lab",
		Primary: lipgloss.Color("#00cccc"),
		Accent:  lipgloss.Color("#ff88ff"),
		Text:    lipgloss.Color("#e0f0ff"),
		Muted:   lipgloss.Color("#4488aa"),
		Hot:     lipgloss.Color("#ff4757"),
		Warm:    lipgloss.Color("#feca57"),
		Cold:    lipgloss.Color("#00a8cc"),
	}

	ThemeMono = Theme{
		Name:    "mono",
		Primary: lipgloss.Color("#ffffff"),
		Accent:  lipgloss.Color("#0088ff"),
		Text:    lipgloss.Color("#ffffff"),
		Muted:   lipgloss.Color("#888888"),
		Hot:     lipgloss.Color("#ffffff"),
		Warm:    lipgloss.Color("#cccccc"),
		Cold:    lipgloss.Color("#888888"),
	}

	Themes = []Theme{ThemeFlame, ThemeLab, ThemeMono}

	CurrentTheme = ThemeFlame
)

var (
	headerStyle lipgloss.Style
	labelStyle  lipgloss.Style
	valueStyle  lipgloss.Style
	activeStyle lipgloss.Style
	mutedStyle  lipgloss.Style
	errorStyle  lipgloss.Style
	graphStyle  lipgloss.Style
	panelStyle  lipgloss.Style
	hotStyle    lipgloss.Style
	warmStyle   lipgloss.Style
	coldStyle   lipgloss.Style
)

func init() { applyTheme(CurrentTheme) }

func applyTheme(t Theme) {
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(t.Primary).MarginBottom(1)
	labelStyle = lipgloss.NewStyle().Foreground(t.Muted).Width(14)
	valueStyle = lipgloss.NewStyle().Foreground(t.Text)
	activeStyle = lipgloss.NewStyle().Bold(true).Foreground(t.Accent)
	mutedStyle = lipgloss.NewStyle().Foreground(t.Muted)
	errorStyle = lipgloss.NewStyle().Bold(true).Foreground(t.Hot)
	graphStyle = lipgloss.NewStyle().Foreground(t.Primary).Padding(1, 0)
	panelStyle = lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(t.Muted).
		Padding(1, 2)
	hotStyle = lipgloss.NewStyle().Foreground(t.Hot)
	warmStyle = lipgloss.NewStyle().Foreground(t.Warm)
	coldStyle = lipgloss.NewStyle().Foreground(t.Cold)
}

// GetTheme returns a theme by name, or the default one.
func GetTheme(name string) Theme {
	for _, t := range Themes {
		if t.Name == name {
			return t
		}
	}
	return ThemeFlame
}

func SetTheme(name string) {
	CurrentTheme = GetTheme(name)
	applyTheme(CurrentTheme)
}

func ThemeNames() []string {
	names := make([]string, len(Themes))
	for i, t := range Themes {
		names[i] = t.Name
	}
	return names
}

func nextTheme() {
	names := ThemeNames()
	for i, name := range names {
		if name == CurrentTheme.Name {
			SetTheme(names[(i+1)%len(names)])
			return
		}
	}
}

// ProgressBar renders fraction in [0, 1] as a bar of the given width.
func ProgressBar(fraction float64, width int) string {
	filled := int(fraction * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return activeStyle.Render(bar)
}

// Sparkline renders values as a one-line chart, colored from cold to hot.
func Sparkline(values []float64, width int) string {
	if len(values) == 0 || width <= 0 {
		return strings.Repeat("─", max(width, 0))
	}
	chars := []rune{'▁', '▂', '▃', '▄', '▅', '▆', '▇', '█'}

	lo, hi := values[0], values[0]
	for _, v := range values {
		lo = min(lo, v)
		hi = max(hi, v)
	}
	rng := hi - lo
	if rng == 0 {
		rng = 1
	}

	step := len(values) / width
	if step < 1 {
		step = 1
	}

	var b strings.Builder
	for i := 0; i < width && i*step < len(values); i++ {
		norm := (values[i*step] - lo) / rng
		c := string(chars[min(int(norm*float64(len(chars)-1)), len(chars)-1)])
		switch {
		case norm > 0.7:
			b.WriteString(hotStyle.Render(c))
		case norm > 0.3:
			b.WriteString(warmStyle.Render(c))
		default:
			b.WriteString(coldStyle.Render(c))
		}
	}
	return b.String()
}

func Separator(width int) string {
	mid := width / 2
	if mid < 3 {
		return mutedStyle.Render(strings.Repeat("─", max(width, 0)))
	}
	return mutedStyle.Render(strings.Repeat("─", mid-3) + " ◆ " + strings.Repeat("─", width-mid-3))
}
