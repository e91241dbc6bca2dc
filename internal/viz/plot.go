package viz

import (
	"fmt"
	"strings"

	"github.com/guptarohit/asciigraph"

	"github.com/san-kum/reactornet/internal/experiment"
)

var seriesColors = []asciigraph.AnsiColor{
	asciigraph.Red,
	asciigraph.Yellow,
	asciigraph.DodgerBlue,
	asciigraph.Green,
	asciigraph.Magenta,
	asciigraph.Cyan,
}

// Plot draws the named columns of a run on one chart. With no columns
// it draws every reactor temperature.
func Plot(res *experiment.Result, columns []string, width, height int) (string, error) {
	if len(res.Times) < 2 {
		return "", fmt.Errorf("need at least 2 samples to plot, got %d", len(res.Times))
	}
	if len(columns) == 0 {
		columns = TemperatureColumns(res)
	}
	if len(columns) == 0 {
		return "", fmt.Errorf("nothing to plot")
	}

	data := make([][]float64, 0, len(columns))
	for _, name := range columns {
		col, err := res.Column(name)
		if err != nil {
			return "", err
		}
		data = append(data, col)
	}

	caption := fmt.Sprintf("%s, %s %g to %g", strings.Join(columns, ", "), res.Variable, res.Times[0], res.Times[len(res.Times)-1])
	return plotSeries(data, columns, width, height, caption), nil
}

func plotSeries(data [][]float64, legends []string, width, height int, caption string) string {
	colors := make([]asciigraph.AnsiColor, len(data))
	for i := range colors {
		colors[i] = seriesColors[i%len(seriesColors)]
	}
	opts := []asciigraph.Option{
		asciigraph.Height(height),
		asciigraph.Width(width),
		asciigraph.Caption(caption),
		asciigraph.SeriesColors(colors...),
	}
	if len(data) > 1 {
		opts = append(opts, asciigraph.SeriesLegends(legends...))
	}
	return asciigraph.PlotMany(data, opts...)
}

// TemperatureColumns lists the "<reactor>.T" columns of a run.
func TemperatureColumns(res *experiment.Result) []string {
	var out []string
	for _, c := range res.Columns {
		if strings.HasSuffix(c, ".T") {
			out = append(out, c)
		}
	}
	return out
}
