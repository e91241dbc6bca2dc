package config

import "sort"

func ptr[T any](v T) *T { return &v }

// Presets holds ready-made networks by category. Each entry builds a fresh
// Config.
var Presets = map[string]map[string]func() *Config{
	"ignition": {
		"h2-air": DefaultConfig,
		"h2-air-volume": func() *Config {
			return &Config{
				Name: "h2-air-volume", Description: "constant volume hydrogen ignition",
				Mechanism: "h2o2", Duration: 0.05, Interval: 5e-4,
				Solver: DefaultSolver(),
				Reactors: []ReactorConfig{{
					Name: "bomb", Kind: "IdealGasReactor", Temperature: 1100, Pressure: DefaultPressure,
					Composition: "H2:2, O2:1, N2:3.76", Volume: 1e-3,
				}},
				Sensitivity: &SensitivityConfig{Reactor: "bomb", Target: "bomb.temperature", Time: 2e-4},
			}
		},
		"h2-o2-moles": func() *Config {
			return &Config{
				Name: "h2-o2-moles", Description: "mole-based ignition with a temperature limit",
				Mechanism: "h2o2", Duration: 0.02, Interval: 2e-4,
				Solver: DefaultSolver(),
				Reactors: []ReactorConfig{{
					Name: "reactor", Kind: "IdealGasConstPressureMoleReactor", Temperature: 1200,
					Pressure: DefaultPressure, Composition: "H2:2, O2:1, AR:7",
					Limits: map[string]float64{"temperature": 50},
				}},
			}
		},
	},
	"exchange": {
		"hot-cold": func() *Config {
			return &Config{
				Name: "hot-cold", Description: "two gases exchanging heat through a wall",
				Mechanism: "air", Duration: 20, Interval: 0.1,
				Solver: DefaultSolver(),
				Reactors: []ReactorConfig{
					{Name: "hot", Kind: "IdealGasConstPressureReactor", Temperature: 1200, Pressure: DefaultPressure, Composition: "O2:1, N2:3.76"},
					{Name: "cold", Kind: "IdealGasConstPressureReactor", Temperature: 300, Pressure: DefaultPressure, Composition: "O2:1, N2:3.76"},
				},
				Walls: []WallConfig{{Name: "wall", Left: "hot", Right: "cold", Area: 1, U: 100, Emissivity: 0.5}},
			}
		},
		"piston": func() *Config {
			return &Config{
				Name: "piston", Description: "a moving wall equalizing pressure",
				Mechanism: "air", Duration: 2, Interval: 0.01,
				Solver: DefaultSolver(),
				Reactors: []ReactorConfig{
					{Name: "high", Kind: "IdealGasReactor", Temperature: 300, Pressure: 5 * DefaultPressure, Composition: "O2:1, N2:3.76"},
					{Name: "low", Kind: "IdealGasReactor", Temperature: 300, Pressure: DefaultPressure, Composition: "O2:1, N2:3.76"},
				},
				Walls: []WallConfig{{Name: "piston", Left: "high", Right: "low", Area: 1, K: 1e-6, U: 10}},
			}
		},
	},
	"flow": {
		"valve-drain": func() *Config {
			return &Config{
				Name: "valve-drain", Description: "a tank vented through a valve at t=1",
				Mechanism: "air", Duration: 5, Interval: 0.05,
				Solver: DefaultSolver(),
				Reactors: []ReactorConfig{
					{Name: "tank", Kind: "Reactor", Temperature: 300, Pressure: 3 * DefaultPressure, Composition: "O2:1, N2:3.76"},
					{Name: "ambient", Kind: "Reservoir", Temperature: 300, Pressure: DefaultPressure, Composition: "O2:1, N2:3.76"},
				},
				Flows: []FlowConfig{{Name: "valve", Type: Valve, Upstream: "tank", Downstream: "ambient", Coeff: 1e-5, Disabled: true}},
				Events: []EventConfig{{Name: "open", At: ptr(1.0), Target: "valve", Enabled: ptr(true)}},
			}
		},
		"stirred": func() *Config {
			return &Config{
				Name: "stirred", Description: "well stirred combustor fed by a reservoir",
				Mechanism: "h2o2", Duration: 1, Interval: 0.01,
				Solver: DefaultSolver(),
				Reactors: []ReactorConfig{
					{Name: "feed", Kind: "Reservoir", Temperature: 900, Pressure: DefaultPressure, Composition: "H2:2, O2:1, N2:4"},
					{Name: "combustor", Kind: "IdealGasReactor", Temperature: 2000, Pressure: DefaultPressure, Composition: "H2O:2, N2:4", Volume: 1e-3},
					{Name: "exhaust", Kind: "Reservoir", Temperature: 300, Pressure: DefaultPressure, Composition: "N2:1"},
				},
				Flows: []FlowConfig{
					{Name: "inlet", Type: MassFlowController, Upstream: "feed", Downstream: "combustor", MassFlowRate: 1e-3},
					{Name: "outlet", Type: PressureController, Upstream: "combustor", Downstream: "exhaust", Primary: "inlet", Coeff: 1e-5},
				},
			}
		},
		"plug-flow": func() *Config {
			return &Config{
				Name: "plug-flow", Description: "steady plug flow ignition",
				Mechanism: "h2o2", Duration: 0.5, Interval: 5e-3,
				Solver: DefaultSolver(),
				Reactors: []ReactorConfig{{
					Name: "pfr", Kind: "FlowReactor", Temperature: 1200, Pressure: DefaultPressure,
					Composition: "H2:2, O2:1, N2:4", MassFlowRate: 0.1, Area: 1e-3,
				}},
			}
		},
	},
	"surface": {
		"pt-h2": func() *Config {
			return &Config{
				Name: "pt-h2", Description: "hydrogen oxidation on platinum",
				Mechanism: "h2o2", Duration: 1, Interval: 0.01,
				Solver: DefaultSolver(),
				Reactors: []ReactorConfig{{
					Name: "reactor", Kind: "IdealGasReactor", Temperature: 800, Pressure: DefaultPressure,
					Composition: "H2:0.1, O2:0.1, N2:0.8", Volume: 1e-3,
					Surfaces: []SurfaceConfig{{Name: "pt", Mechanism: "pt-h2", Area: 0.01}},
				}},
			}
		},
	},
}

// GetPreset returns a fresh copy of a preset, or nil.
func GetPreset(category, preset string) *Config {
	presets, ok := Presets[category]
	if !ok {
		return nil
	}
	build, ok := presets[preset]
	if !ok {
		return nil
	}
	return build()
}

// ListPresets returns the sorted preset names of category.
func ListPresets(category string) []string {
	presets, ok := Presets[category]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Categories returns the sorted preset categories.
func Categories() []string {
	names := make([]string, 0, len(Presets))
	for name := range Presets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
