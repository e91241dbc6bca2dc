package storage

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"time"

	"github.com/san-kum/reactornet/internal/config"
	"github.com/san-kum/reactornet/internal/experiment"
)

const (
	metadataFile = "metadata.json"
	statesFile   = "states.csv"
	configFile   = "config.yaml"
)

// Store keeps one directory per run under baseDir.
type Store struct {
	baseDir string
}

func New(baseDir string) *Store {
	return &Store{baseDir: baseDir}
}

func (s *Store) Init() error {
	return os.MkdirAll(s.baseDir, 0755)
}

type RunMetadata struct {
	ID          string             `json:"id"`
	Name        string             `json:"name"`
	Timestamp   time.Time          `json:"timestamp"`
	Mechanism   string             `json:"mechanism"`
	Variable    string             `json:"variable"`
	Duration    float64            `json:"duration"`
	Interval    float64            `json:"interval"`
	Method      string             `json:"method"`
	RelTol      float64            `json:"rtol"`
	AbsTol      float64            `json:"atol"`
	Reactors    int                `json:"reactors"`
	Columns     []string           `json:"columns"`
	Samples     int                `json:"samples"`
	Steps       int                `json:"steps"`
	Rejected    int                `json:"rejected"`
	RHSEvals    int                `json:"rhs_evals"`
	JacEvals    int                `json:"jac_evals"`
	Events      int                `json:"events"`
	ClipEvents  int                `json:"clip_events"`
	ElapsedSecs float64            `json:"elapsed_seconds"`
	Metrics     map[string]float64 `json:"metrics"`
}

// Save writes metadata.json, states.csv and the network description into
// a new run directory and returns the run id.
func (s *Store) Save(cfg *config.Config, result *experiment.Result) (string, error) {
	now := time.Now()
	runID := fmt.Sprintf("%s_%d", cfg.Name, now.UnixNano())
	runDir := filepath.Join(s.baseDir, runID)

	if err := os.MkdirAll(runDir, 0755); err != nil {
		return "", err
	}

	meta := RunMetadata{
		ID:          runID,
		Name:        cfg.Name,
		Timestamp:   now,
		Mechanism:   cfg.Mechanism,
		Variable:    result.Variable,
		Duration:    cfg.Duration,
		Interval:    cfg.Interval,
		Method:      cfg.Solver.Method,
		RelTol:      cfg.Solver.RelTol,
		AbsTol:      cfg.Solver.AbsTol,
		Reactors:    len(cfg.Reactors),
		Columns:     result.Columns,
		Samples:     len(result.Times),
		Steps:       result.Stats.Solver.Steps,
		Rejected:    result.Stats.Solver.Rejected,
		RHSEvals:    result.Stats.Solver.RHSEvals,
		JacEvals:    result.Stats.Solver.JacEvals,
		Events:      result.Stats.Events,
		ClipEvents:  result.Stats.ClipEvents,
		ElapsedSecs: result.Elapsed.Seconds(),
		Metrics:     result.Metrics,
	}

	if err := writeJSON(filepath.Join(runDir, metadataFile), meta); err != nil {
		return "", err
	}
	if err := config.Save(filepath.Join(runDir, configFile), cfg); err != nil {
		return "", err
	}

	csvFile, err := os.Create(filepath.Join(runDir, statesFile))
	if err != nil {
		return "", err
	}
	defer csvFile.Close()
	if err := WriteCSV(csvFile, result); err != nil {
		return "", err
	}
	return runID, csvFile.Close()
}

func writeJSON(path string, v any) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()

	enc := json.NewEncoder(f)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return err
	}
	return f.Close()
}

// List returns the stored runs, oldest first.
func (s *Store) List() ([]RunMetadata, error) {
	entries, err := os.ReadDir(s.baseDir)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunMetadata{}, nil
		}
		return nil, err
	}

	runs := make([]RunMetadata, 0)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		meta, err := s.Load(entry.Name())
		if err != nil {
			continue
		}
		runs = append(runs, *meta)
	}
	sort.Slice(runs, func(i, j int) bool { return runs[i].Timestamp.Before(runs[j].Timestamp) })
	return runs, nil
}

func (s *Store) Load(runID string) (*RunMetadata, error) {
	data, err := os.ReadFile(filepath.Join(s.baseDir, runID, metadataFile))
	if err != nil {
		return nil, err
	}

	var meta RunMetadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// LoadConfig reads the network description a run was made from.
func (s *Store) LoadConfig(runID string) (*config.Config, error) {
	return config.Load(filepath.Join(s.baseDir, runID, configFile))
}

// LoadStates reads states.csv back into samples and their times.
func (s *Store) LoadStates(runID string) ([][]float64, []float64, error) {
	file, err := os.Open(filepath.Join(s.baseDir, runID, statesFile))
	if err != nil {
		return nil, nil, err
	}
	defer file.Close()

	r := csv.NewReader(file)
	records, err := r.ReadAll()
	if err != nil {
		return nil, nil, err
	}

	if len(records) < 2 {
		return [][]float64{}, []float64{}, nil
	}

	times := make([]float64, 0, len(records)-1)
	states := make([][]float64, 0, len(records)-1)
	for i, record := range records[1:] {
		t, err := strconv.ParseFloat(record[0], 64)
		if err != nil {
			return nil, nil, fmt.Errorf("%s line %d: %w", statesFile, i+2, err)
		}
		state := make([]float64, len(record)-1)
		for j := range state {
			if state[j], err = strconv.ParseFloat(record[j+1], 64); err != nil {
				return nil, nil, fmt.Errorf("%s line %d: %w", statesFile, i+2, err)
			}
		}
		times = append(times, t)
		states = append(states, state)
	}
	return states, times, nil
}

// LoadResult rebuilds a run's samples and metrics.
func (s *Store) LoadResult(runID string) (*experiment.Result, error) {
	meta, err := s.Load(runID)
	if err != nil {
		return nil, err
	}
	states, times, err := s.LoadStates(runID)
	if err != nil {
		return nil, err
	}
	res := &experiment.Result{
		Name:     meta.Name,
		Variable: meta.Variable,
		Columns:  meta.Columns,
		Times:    times,
		States:   states,
		Metrics:  meta.Metrics,
		Elapsed:  time.Duration(meta.ElapsedSecs * float64(time.Second)),
	}
	res.Stats.Solver.Steps = meta.Steps
	res.Stats.Solver.Rejected = meta.Rejected
	res.Stats.Solver.RHSEvals = meta.RHSEvals
	res.Stats.Solver.JacEvals = meta.JacEvals
	res.Stats.Events = meta.Events
	res.Stats.ClipEvents = meta.ClipEvents
	return res, nil
}
