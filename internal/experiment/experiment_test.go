package experiment

import (
	"context"
	"errors"
	"math"
	"reflect"
	"strings"
	"testing"

	"github.com/san-kum/reactornet/internal/config"
	"github.com/san-kum/reactornet/internal/integrators"
	"github.com/san-kum/reactornet/internal/simerr"
)

func TestRegistryLists(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		name string
		got  []string
		want []string
	}{
		{"mechanisms", reg.ListMechanisms(), []string{"air", "h2o2"}},
		{"surfaces", reg.ListSurfaces(), []string{"pt-h2"}},
		{"integrators", reg.ListIntegrators(), []string{"bdf", "rk45"}},
		{"functions", reg.ListFunctions(), []string{"const", "gaussian", "poly", "pulse", "sin", "step", "tabulated"}},
	}
	for _, tt := range tests {
		if !reflect.DeepEqual(tt.got, tt.want) {
			t.Errorf("%s = %v, want %v", tt.name, tt.got, tt.want)
		}
	}
	if len(reg.ListKinds()) != 10 {
		t.Errorf("expected 10 kinds, got %v", reg.ListKinds())
	}
}

func TestGetFunc(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		cfg  config.FuncConfig
		x    float64
		want float64
	}{
		{config.FuncConfig{Type: "const", Value: 2}, 5, 2},
		{config.FuncConfig{Type: "step", At: 1, Before: 0, After: 3}, 1, 3},
		{config.FuncConfig{Type: "pulse", Start: 1, Width: 2, Amplitude: 4}, 2, 4},
		{config.FuncConfig{Type: "sin", Amplitude: 2, Omega: math.Pi / 2}, 1, 2},
		{config.FuncConfig{Type: "gaussian", Amplitude: 1, Center: 3, FWHM: 2}, 3, 1},
		{config.FuncConfig{Type: "poly", Coeffs: []float64{1, 2, 3}}, 2, 17},
		{config.FuncConfig{Type: "tabulated", X: []float64{0, 1}, Y: []float64{0, 10}}, 0.25, 2.5},
	}
	for _, tt := range tests {
		t.Run(tt.cfg.Type, func(t *testing.T) {
			f, err := reg.GetFunc(&tt.cfg)
			if err != nil {
				t.Fatal(err)
			}
			if got := f.Eval(tt.x); math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("f(%g) = %g, want %g", tt.x, got, tt.want)
			}
		})
	}

	if f, err := reg.GetFunc(nil); f != nil || err != nil {
		t.Errorf("nil config gave %v, %v", f, err)
	}
	for _, bad := range []config.FuncConfig{
		{Type: "square"},
		{Type: "gaussian"},
		{Type: "pulse", Width: -1},
		{Type: "tabulated", X: []float64{1, 0}, Y: []float64{0, 1}},
	} {
		if _, err := reg.GetFunc(&bad); err == nil {
			t.Errorf("%+v: expected error", bad)
		}
	}
}

func TestRegistryUnknownNames(t *testing.T) {
	reg := NewRegistry()

	tests := []struct {
		name string
		err  error
		want error
	}{
		{"mechanism", second(reg.GetMechanism("gri30")), simerr.ErrUnknownComponent},
		{"surface", second(reg.GetSurfaceMechanism("ni-ch4")), simerr.ErrUnknownComponent},
		{"integrator", second(reg.GetIntegrator("euler", integrators.Options{})), simerr.ErrInvalidParameter},
		{"function", second(reg.GetFunc(&config.FuncConfig{Type: "square"})), simerr.ErrUnknownComponent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if !simerr.Is(tt.err, simerr.Configuration) {
				t.Errorf("expected configuration error, got %v", tt.err)
			}
			if !errors.Is(tt.err, tt.want) {
				t.Errorf("expected %v, got %v", tt.want, tt.err)
			}
		})
	}
}

func second[T any](_ T, err error) error { return err }

func TestBuildPresets(t *testing.T) {
	reg := NewRegistry()
	for _, category := range config.Categories() {
		for _, name := range config.ListPresets(category) {
			t.Run(category+"/"+name, func(t *testing.T) {
				m, err := reg.Build(config.GetPreset(category, name))
				if err != nil {
					t.Fatal(err)
				}
				if !m.Network.Initialized() || m.Network.NEq() == 0 {
					t.Error("expected an initialized network")
				}
			})
		}
	}
}

func TestBuildParts(t *testing.T) {
	reg := NewRegistry()
	m, err := reg.Build(config.GetPreset("flow", "stirred"))
	if err != nil {
		t.Fatal(err)
	}
	if len(m.Network.Reactors()) != 1 {
		t.Errorf("reservoirs should stay outside the network, got %d reactors", len(m.Network.Reactors()))
	}
	if _, ok := m.Node("feed"); !ok {
		t.Error("feed reservoir missing")
	}
	inlet, ok := m.Flow("inlet")
	if !ok {
		t.Fatal("inlet missing")
	}
	outlet, _ := m.Flow("outlet")
	if outlet.Primary() != inlet {
		t.Error("outlet should follow the inlet controller")
	}
	if got := inlet.MassFlowRate(0); got != 1e-3 {
		t.Errorf("inlet rate = %g", got)
	}
}

func TestBuildErrors(t *testing.T) {
	reg := NewRegistry()
	tests := []struct {
		name   string
		preset [2]string
		mutate func(c *config.Config)
	}{
		{"unknown kind", [2]string{"flow", "valve-drain"}, func(c *config.Config) { c.Reactors[0].Kind = "Boiler" }},
		{"unknown mechanism", [2]string{"flow", "valve-drain"}, func(c *config.Config) { c.Mechanism = "gri30" }},
		{"unknown species", [2]string{"flow", "valve-drain"}, func(c *config.Config) { c.Reactors[0].Composition = "XE:1" }},
		{"unknown integrator", [2]string{"flow", "valve-drain"}, func(c *config.Config) { c.Solver.Method = "euler" }},
		{"only reservoirs", [2]string{"flow", "valve-drain"}, func(c *config.Config) { c.Reactors[0].Kind = "Reservoir" }},
		{"limit on a reservoir", [2]string{"flow", "valve-drain"}, func(c *config.Config) {
			c.Reactors[1].Limits = map[string]float64{"temperature": 1}
		}},
		{"surface on a reservoir", [2]string{"flow", "valve-drain"}, func(c *config.Config) {
			c.Reactors[1].Surfaces = []config.SurfaceConfig{{Name: "pt", Mechanism: "pt-h2", Area: 1}}
		}},
		{"surface on the wrong gas", [2]string{"surface", "pt-h2"}, func(c *config.Config) {
			c.Mechanism = "air"
			c.Reactors[0].Composition = "O2:1, N2:3.76"
		}},
		{"unknown coverage species", [2]string{"surface", "pt-h2"}, func(c *config.Config) {
			c.Reactors[0].Surfaces[0].Coverages = "RH(S):1"
		}},
		{"mass flow rate on a valve", [2]string{"flow", "valve-drain"}, func(c *config.Config) {
			rate := 1.0
			c.Events[0].MassFlowRate = &rate
		}},
		{"unknown function", [2]string{"flow", "valve-drain"}, func(c *config.Config) {
			c.Flows[0].Time = &config.FuncConfig{Type: "square"}
		}},
		{"unknown event component", [2]string{"flow", "valve-drain"}, func(c *config.Config) {
			c.Events[0].At = nil
			c.Events[0].Component = "tank.temperature"
		}},
		{"plug flow beside a vessel", [2]string{"flow", "plug-flow"}, func(c *config.Config) {
			c.Reactors = append(c.Reactors, config.ReactorConfig{
				Name: "tank", Kind: "IdealGasReactor", Temperature: 300, Pressure: 101325, Composition: "N2:1",
			})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.GetPreset(tt.preset[0], tt.preset[1])
			tt.mutate(cfg)
			_, err := reg.Build(cfg)
			if !simerr.Is(err, simerr.Configuration) {
				t.Errorf("expected configuration error, got %v", err)
			}
		})
	}
}

func run(t *testing.T, cfg *config.Config) *Result {
	t.Helper()
	e := New(cfg)
	if err := e.Setup(NewRegistry()); err != nil {
		t.Fatal(err)
	}
	res, err := e.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	return res
}

func TestRunSchedule(t *testing.T) {
	cfg := config.GetPreset("flow", "valve-drain")
	cfg.Duration, cfg.Interval = 2, 0.5
	res := run(t, cfg)

	want := []float64{0, 0.5, 1, 1.5, 2}
	if !reflect.DeepEqual(res.Times, want) {
		t.Fatalf("times = %v, want %v", res.Times, want)
	}
	if res.Variable != "time" {
		t.Errorf("variable = %s", res.Variable)
	}
	mass, err := res.Column("tank.mass")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(mass[2]-mass[0]) > 1e-12*mass[0] {
		t.Errorf("tank drained before the valve opened: %v", mass)
	}
	if !(mass[4] < mass[2]) {
		t.Errorf("tank did not drain after the valve opened: %v", mass)
	}
	p, err := res.Last("tank.P")
	if err != nil {
		t.Fatal(err)
	}
	if !(p < 3*config.DefaultPressure) {
		t.Errorf("final pressure = %g", p)
	}
	if res.Stats.Events != 1 {
		t.Errorf("events = %d", res.Stats.Events)
	}
	if _, err := res.Column("tank.X"); err == nil {
		t.Error("expected unknown column error")
	}
}

func TestRunEveryStep(t *testing.T) {
	cfg := config.GetPreset("exchange", "piston")
	cfg.Interval = 0
	cfg.Duration = 0.5
	res := run(t, cfg)

	if len(res.Times) < 3 {
		t.Fatalf("expected a sample per step, got %d", len(res.Times))
	}
	for i := 1; i < len(res.Times); i++ {
		if !(res.Times[i] > res.Times[i-1]) {
			t.Fatalf("times not increasing at %d: %v", i, res.Times[i-1:i+1])
		}
	}
	if res.Times[len(res.Times)-1] != 0.5 {
		t.Errorf("last time = %g", res.Times[len(res.Times)-1])
	}
	if len(res.States[0]) != len(res.Columns) {
		t.Errorf("row has %d values for %d columns", len(res.States[0]), len(res.Columns))
	}
	high, _ := res.Column("high.volume")
	low, _ := res.Column("low.volume")
	for i := range high {
		if math.Abs(high[i]+low[i]-2) > 1e-8 {
			t.Fatalf("total volume %g at %g", high[i]+low[i], res.Times[i])
		}
	}
}

func TestRunIgnition(t *testing.T) {
	res := run(t, config.DefaultConfig())

	if peak := res.Metrics["peak:reactor.temperature"]; peak < 2000 {
		t.Errorf("peak temperature = %g", peak)
	}
	if drift := res.Metrics["mass_drift"]; drift > 1e-9 {
		t.Errorf("mass drift = %g", drift)
	}
	temp, _ := res.Column("reactor.T")
	for i := 1; i < len(temp); i++ {
		if temp[i] < temp[i-1]*(1-1e-6) {
			t.Fatalf("temperature fell at t=%g: %g -> %g", res.Times[i], temp[i-1], temp[i])
		}
	}
}

func TestComponentEvent(t *testing.T) {
	cfg := config.GetPreset("exchange", "hot-cold")
	cfg.Events = []config.EventConfig{{
		Name:      "insulate",
		Component: "hot.temperature",
		Threshold: 1000,
		Target:    "wall",
		Enabled:   new(bool),
	}}
	res := run(t, cfg)

	hot, err := res.Last("hot.T")
	if err != nil {
		t.Fatal(err)
	}
	if math.Abs(hot-1000) > 1e-3 {
		t.Errorf("hot reactor should hold 1000 K after the wall was disabled, got %g", hot)
	}
	if res.Stats.Events != 1 {
		t.Errorf("events = %d", res.Stats.Events)
	}
}

func TestRunNotSetup(t *testing.T) {
	if _, err := New(config.DefaultConfig()).Run(context.Background()); err == nil {
		t.Error("expected error")
	}
}

func TestRunCancelled(t *testing.T) {
	e := New(config.DefaultConfig())
	if err := e.Setup(NewRegistry()); err != nil {
		t.Fatal(err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	res, err := e.Run(ctx)
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation, got %v", err)
	}
	if len(res.Times) != 1 {
		t.Errorf("expected only the initial sample, got %d", len(res.Times))
	}
}

func TestSensitivities(t *testing.T) {
	cfg := config.GetPreset("ignition", "h2-air-volume")
	cfg.Sensitivity.Reactions = []int{0, 1}
	cfg.Sensitivity.Workers = 2

	s, err := NewRegistry().Sensitivities(context.Background(), cfg)
	if err != nil {
		t.Fatal(err)
	}
	if len(s.Values) != 2 || len(s.Parameters) != 2 {
		t.Fatalf("got %d values for %d parameters", len(s.Values), len(s.Parameters))
	}
	for i, name := range s.Parameters {
		if !strings.HasPrefix(name, "bomb: ") {
			t.Errorf("parameter name %q", name)
		}
		if math.IsNaN(s.Values[i]) || math.IsInf(s.Values[i], 0) {
			t.Errorf("%s: sensitivity %g", name, s.Values[i])
		}
	}
	if s.Base < 1099 {
		t.Errorf("base temperature %g below the initial state", s.Base)
	}

	if _, err := NewRegistry().Sensitivities(context.Background(), config.DefaultConfig()); err == nil {
		t.Error("expected error without a sensitivity section")
	}
}

func TestSweep(t *testing.T) {
	cfg := config.GetPreset("exchange", "hot-cold")
	cfg.Duration, cfg.Interval = 0.5, 0.25

	sw, err := NewSweep([]string{"hot.temperature", "wall.u"}, [][]float64{{1000, 1200, -5}, {0, 100}})
	if err != nil {
		t.Fatal(err)
	}
	points, err := sw.Run(context.Background(), NewRegistry(), cfg)
	if err != nil {
		t.Fatalf("sweep failed: %v", err)
	}
	if len(points) != 6 {
		t.Fatalf("expected 6 points, got %d", len(points))
	}
	if points[1].Values["hot.temperature"] != 1000 || points[1].Values["wall.u"] != 100 {
		t.Errorf("unexpected grid order: %v", points[1].Values)
	}
	for _, p := range points[4:] {
		if !simerr.Is(p.Err, simerr.Configuration) {
			t.Errorf("negative temperature should fail, got %v", p.Err)
		}
	}

	best, ok := Best(points, "peak:hot.temperature", true)
	if !ok {
		t.Fatal("no best point")
	}
	if best.Values["hot.temperature"] != 1200 {
		t.Errorf("expected hottest start to win, got %v", best.Values)
	}
	if got := best.Metrics["peak:hot.temperature"]; math.Abs(got-1200) > 1e-6 {
		t.Errorf("peak = %g, want 1200", got)
	}
	if _, ok := Best(points, "missing", false); ok {
		t.Error("unknown metric should have no best point")
	}
}

func TestSweepErrors(t *testing.T) {
	if _, err := NewSweep([]string{"hot.temperature"}, nil); err == nil {
		t.Error("expected error for mismatched ranges")
	}
	if _, err := NewSweep([]string{"hot.temperature"}, [][]float64{{}}); err == nil {
		t.Error("expected error for empty range")
	}

	cfg := config.GetPreset("exchange", "hot-cold")
	for _, p := range []string{"nobody.temperature", "hot.color", "wall.speed", "temperature"} {
		sw, err := NewSweep([]string{p}, [][]float64{{1}})
		if err != nil {
			t.Fatal(err)
		}
		if _, err := sw.Run(context.Background(), NewRegistry(), cfg); !simerr.Is(err, simerr.Configuration) {
			t.Errorf("%s: expected configuration error, got %v", p, err)
		}
	}
}
