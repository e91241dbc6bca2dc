package storage

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"os"
	"strconv"

	"github.com/san-kum/reactornet/internal/experiment"
)

type ExportData struct {
	Name     string             `json:"name"`
	Variable string             `json:"variable"`
	Columns  []string           `json:"columns"`
	Samples  int                `json:"samples"`
	Steps    int                `json:"steps"`
	Events   int                `json:"events"`
	Times    []float64          `json:"times"`
	States   [][]float64        `json:"states"`
	Metrics  map[string]float64 `json:"metrics"`
}

func exportData(result *experiment.Result) ExportData {
	return ExportData{
		Name:     result.Name,
		Variable: result.Variable,
		Columns:  result.Columns,
		Samples:  len(result.Times),
		Steps:    result.Stats.Solver.Steps,
		Events:   result.Stats.Events,
		Times:    result.Times,
		States:   result.States,
		Metrics:  result.Metrics,
	}
}

// WriteJSON encodes a run as indented JSON.
func WriteJSON(w io.Writer, result *experiment.Result) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(exportData(result))
}

func ExportJSON(path string, result *experiment.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteJSON(file, result); err != nil {
		return err
	}
	return file.Close()
}

// WriteCSV writes one row per sample with the independent variable first.
func WriteCSV(w io.Writer, result *experiment.Result) error {
	variable := result.Variable
	if variable == "" {
		variable = "time"
	}
	cw := csv.NewWriter(w)
	if err := cw.Write(append([]string{variable}, result.Columns...)); err != nil {
		return err
	}

	for i, state := range result.States {
		row := make([]string, 0, len(state)+1)
		row = append(row, strconv.FormatFloat(result.Times[i], 'g', -1, 64))
		for _, v := range state {
			row = append(row, strconv.FormatFloat(v, 'g', -1, 64))
		}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func ExportCSV(path string, result *experiment.Result) error {
	file, err := os.Create(path)
	if err != nil {
		return err
	}
	defer file.Close()

	if err := WriteCSV(file, result); err != nil {
		return err
	}
	return file.Close()
}
