package config

import (
	"os"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/reactornet/internal/simerr"
)

const (
	DefaultMechanism   = "h2o2"
	DefaultMethod      = "bdf"
	DefaultDuration    = 0.1
	DefaultInterval    = 1e-3
	DefaultTemperature = 1001.0
	DefaultPressure    = 101325.0
	DefaultRelTol      = 1e-9
	DefaultAbsTol      = 1e-15
	DefaultMaxSteps    = 50000
	DefaultMaxClipping = 1e-3
)

// Flow device types accepted in FlowConfig.Type.
const (
	MassFlowController = "mass-flow-controller"
	Valve              = "valve"
	PressureController = "pressure-controller"
)

// Config describes a reactor network and how to run it. Duration is the
// end of the independent variable: seconds for vessels, metres for a plug
// flow reactor.
type Config struct {
	Name        string             `yaml:"name"`
	Description string             `yaml:"description,omitempty"`
	Mechanism   string             `yaml:"mechanism"`
	Duration    float64            `yaml:"duration"`
	Interval    float64            `yaml:"interval"`
	Solver      SolverConfig       `yaml:"solver"`
	Reactors    []ReactorConfig    `yaml:"reactors"`
	Walls       []WallConfig       `yaml:"walls,omitempty"`
	Flows       []FlowConfig       `yaml:"flows,omitempty"`
	Events      []EventConfig      `yaml:"events,omitempty"`
	Sensitivity *SensitivityConfig `yaml:"sensitivity,omitempty"`
}

type SolverConfig struct {
	Method          string             `yaml:"method"`
	RelTol          float64            `yaml:"rtol"`
	AbsTol          float64            `yaml:"atol"`
	ComponentAbsTol map[string]float64 `yaml:"component_atol,omitempty"`
	MaxStep         float64            `yaml:"max_step,omitempty"`
	MaxOrder        int                `yaml:"max_order,omitempty"`
	MaxSteps        int                `yaml:"max_steps"`
	MaxClipping     float64            `yaml:"max_clipping"`
}

// ReactorConfig builds one node. Kind is a reactor kind name such as
// "IdealGasConstPressureReactor" or "Reservoir".
type ReactorConfig struct {
	Name          string             `yaml:"name"`
	Kind          string             `yaml:"kind"`
	Mechanism     string             `yaml:"mechanism,omitempty"`
	Temperature   float64            `yaml:"temperature"`
	Pressure      float64            `yaml:"pressure"`
	Composition   string             `yaml:"composition"`
	Volume        float64            `yaml:"volume,omitempty"`
	Energy        *bool              `yaml:"energy,omitempty"`
	Chemistry     *bool              `yaml:"chemistry,omitempty"`
	MassFlowRate  float64            `yaml:"mass_flow_rate,omitempty"`
	Area          float64            `yaml:"area,omitempty"`
	ClipTolerance float64            `yaml:"clip_tolerance,omitempty"`
	Limits        map[string]float64 `yaml:"limits,omitempty"`
	Surfaces      []SurfaceConfig    `yaml:"surfaces,omitempty"`
}

type SurfaceConfig struct {
	Name      string  `yaml:"name"`
	Mechanism string  `yaml:"mechanism"`
	Area      float64 `yaml:"area"`
	Coverages string  `yaml:"coverages,omitempty"`
}

type WallConfig struct {
	Name       string      `yaml:"name"`
	Left       string      `yaml:"left"`
	Right      string      `yaml:"right"`
	Area       float64     `yaml:"area,omitempty"`
	U          float64     `yaml:"u,omitempty"`
	K          float64     `yaml:"k,omitempty"`
	Emissivity float64     `yaml:"emissivity,omitempty"`
	Velocity   *FuncConfig `yaml:"velocity,omitempty"`
	HeatFlux   *FuncConfig `yaml:"heat_flux,omitempty"`
}

type FlowConfig struct {
	Name         string      `yaml:"name"`
	Type         string      `yaml:"type"`
	Upstream     string      `yaml:"upstream"`
	Downstream   string      `yaml:"downstream"`
	MassFlowRate float64     `yaml:"mass_flow_rate,omitempty"`
	Coeff        float64     `yaml:"coeff,omitempty"`
	Primary      string      `yaml:"primary,omitempty"`
	Time         *FuncConfig `yaml:"time_function,omitempty"`
	Pressure     *FuncConfig `yaml:"pressure_function,omitempty"`
	Disabled     bool        `yaml:"disabled,omitempty"`
}

// FuncConfig selects a scalar function by Type and carries the union of
// their parameters.
type FuncConfig struct {
	Type      string    `yaml:"type"`
	Value     float64   `yaml:"value,omitempty"`
	At        float64   `yaml:"at,omitempty"`
	Before    float64   `yaml:"before,omitempty"`
	After     float64   `yaml:"after,omitempty"`
	Start     float64   `yaml:"start,omitempty"`
	Width     float64   `yaml:"width,omitempty"`
	Amplitude float64   `yaml:"amplitude,omitempty"`
	Omega     float64   `yaml:"omega,omitempty"`
	Phase     float64   `yaml:"phase,omitempty"`
	Center    float64   `yaml:"center,omitempty"`
	FWHM      float64   `yaml:"fwhm,omitempty"`
	Coeffs    []float64 `yaml:"coeffs,omitempty"`
	X         []float64 `yaml:"x,omitempty"`
	Y         []float64 `yaml:"y,omitempty"`
	Previous  bool      `yaml:"previous,omitempty"`
}

// EventConfig changes a connector when the network reaches At, or when
// Component first crosses Threshold. Target names a wall or flow device.
type EventConfig struct {
	Name         string   `yaml:"name"`
	At           *float64 `yaml:"at,omitempty"`
	Component    string   `yaml:"component,omitempty"`
	Threshold    float64  `yaml:"threshold,omitempty"`
	Target       string   `yaml:"target"`
	Enabled      *bool    `yaml:"enabled,omitempty"`
	MassFlowRate *float64 `yaml:"mass_flow_rate,omitempty"`
	Coeff        *float64 `yaml:"coeff,omitempty"`
}

// SensitivityConfig selects reaction multipliers of Reactor to perturb and
// the component observed at Time.
type SensitivityConfig struct {
	Reactor      string  `yaml:"reactor"`
	Reactions    []int   `yaml:"reactions,omitempty"`
	Target       string  `yaml:"target"`
	Time         float64 `yaml:"time,omitempty"`
	Perturbation float64 `yaml:"perturbation,omitempty"`
	Workers      int     `yaml:"workers,omitempty"`
}

// DefaultConfig is a stoichiometric hydrogen-air mixture igniting at
// constant pressure.
func DefaultConfig() *Config {
	return &Config{
		Name:        "ignition",
		Description: "constant pressure hydrogen ignition",
		Mechanism:   DefaultMechanism,
		Duration:    DefaultDuration,
		Interval:    DefaultInterval,
		Solver:      DefaultSolver(),
		Reactors: []ReactorConfig{{
			Name:        "reactor",
			Kind:        "IdealGasConstPressureReactor",
			Temperature: DefaultTemperature,
			Pressure:    DefaultPressure,
			Composition: "H2:2, O2:1, N2:4",
		}},
	}
}

func DefaultSolver() SolverConfig {
	return SolverConfig{
		Method:      DefaultMethod,
		RelTol:      DefaultRelTol,
		AbsTol:      DefaultAbsTol,
		MaxSteps:    DefaultMaxSteps,
		MaxClipping: DefaultMaxClipping,
	}
}

// Load reads a YAML file over DefaultSolver settings and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data)
}

func Parse(data []byte) (*Config, error) {
	cfg := &Config{Mechanism: DefaultMechanism, Interval: DefaultInterval, Solver: DefaultSolver()}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, simerr.Configf("config.Parse", "%w: %v", simerr.ErrInvalidParameter, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Clone returns a deep copy.
func (c *Config) Clone() *Config {
	data, err := yaml.Marshal(c)
	if err != nil {
		panic(err)
	}
	out := &Config{}
	if err := yaml.Unmarshal(data, out); err != nil {
		panic(err)
	}
	return out
}

// Reactor returns the reactor entry called name.
func (c *Config) Reactor(name string) (*ReactorConfig, bool) {
	for i := range c.Reactors {
		if c.Reactors[i].Name == name {
			return &c.Reactors[i], true
		}
	}
	return nil, false
}

// Validate checks names and references. Kinds, mechanisms and function
// types are resolved when the network is built.
func (c *Config) Validate() error {
	const op = "config.Validate"
	bad := func(format string, args ...any) error {
		return simerr.Configf(op, "%w: "+format, append([]any{simerr.ErrInvalidParameter}, args...)...)
	}
	if !(c.Duration > 0) {
		return bad("duration %g must be positive", c.Duration)
	}
	if c.Interval < 0 {
		return bad("interval %g is negative", c.Interval)
	}
	if len(c.Reactors) == 0 {
		return bad("no reactors")
	}

	nodes := map[string]bool{}
	for _, r := range c.Reactors {
		if r.Name == "" {
			return bad("reactor without a name")
		}
		if nodes[r.Name] {
			return bad("duplicate name %q", r.Name)
		}
		nodes[r.Name] = true
		if !(r.Temperature > 0) || !(r.Pressure > 0) {
			return bad("reactor %q needs positive temperature and pressure", r.Name)
		}
		if r.Composition == "" {
			return bad("reactor %q has no composition", r.Name)
		}
	}

	connectors := map[string]bool{}
	claim := func(name string) error {
		if name == "" {
			return bad("connector without a name")
		}
		if nodes[name] || connectors[name] {
			return bad("duplicate name %q", name)
		}
		connectors[name] = true
		return nil
	}
	for _, w := range c.Walls {
		if err := claim(w.Name); err != nil {
			return err
		}
		if !nodes[w.Left] || !nodes[w.Right] {
			return bad("wall %q joins unknown reactors %q and %q", w.Name, w.Left, w.Right)
		}
	}
	devices := map[string]string{}
	for _, f := range c.Flows {
		if err := claim(f.Name); err != nil {
			return err
		}
		if !nodes[f.Upstream] || !nodes[f.Downstream] {
			return bad("flow %q joins unknown reactors %q and %q", f.Name, f.Upstream, f.Downstream)
		}
		switch f.Type {
		case MassFlowController, Valve, PressureController:
		default:
			return bad("flow %q has unknown type %q", f.Name, f.Type)
		}
		devices[f.Name] = f.Type
	}
	for _, f := range c.Flows {
		if f.Type != PressureController {
			continue
		}
		if t, ok := devices[f.Primary]; !ok || t == PressureController {
			return bad("pressure controller %q needs a primary flow device, got %q", f.Name, f.Primary)
		}
	}

	for _, e := range c.Events {
		if !connectors[e.Target] {
			return bad("event %q targets unknown connector %q", e.Name, e.Target)
		}
		switch {
		case e.At != nil && e.Component != "":
			return bad("event %q sets both a time and a component", e.Name)
		case e.At != nil && *e.At < 0:
			return bad("event %q at negative time %g", e.Name, *e.At)
		case e.At == nil && e.Component == "":
			return bad("event %q has no trigger", e.Name)
		}
	}

	if s := c.Sensitivity; s != nil {
		if !nodes[s.Reactor] {
			return bad("sensitivity reactor %q not found", s.Reactor)
		}
		if s.Target == "" {
			return bad("sensitivity needs a target component")
		}
		if s.Time < 0 || s.Time > c.Duration {
			return bad("sensitivity time %g outside [0, %g]", s.Time, c.Duration)
		}
		if s.Perturbation < 0 {
			return bad("sensitivity perturbation %g is negative", s.Perturbation)
		}
	}
	return nil
}
