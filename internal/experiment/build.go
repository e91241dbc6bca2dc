package experiment

import (
	"github.com/san-kum/reactornet/internal/config"
	"github.com/san-kum/reactornet/internal/connector"
	"github.com/san-kum/reactornet/internal/integrators"
	"github.com/san-kum/reactornet/internal/kinetics"
	"github.com/san-kum/reactornet/internal/network"
	"github.com/san-kum/reactornet/internal/reactor"
	"github.com/san-kum/reactornet/internal/simerr"
	"github.com/san-kum/reactornet/internal/thermo"
)

// Model is a network built from a description, with its parts by name.
type Model struct {
	Config  *config.Config
	Network *network.Network

	nodes map[string]reactor.Node
	walls map[string]*connector.Wall
	flows map[string]*connector.FlowDevice
}

func (m *Model) Node(name string) (reactor.Node, bool) {
	n, ok := m.nodes[name]
	return n, ok
}

func (m *Model) Wall(name string) (*connector.Wall, bool) {
	w, ok := m.walls[name]
	return w, ok
}

func (m *Model) Flow(name string) (*connector.FlowDevice, bool) {
	f, ok := m.flows[name]
	return f, ok
}

type advanceLimiter interface {
	SetAdvanceLimit(component string, limit float64)
}

// Build creates and initializes the network described by cfg. Every
// reactor gets its own phase objects.
func (r *Registry) Build(cfg *config.Config) (*Model, error) {
	const op = "experiment.Build"
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if _, err := r.GetIntegrator(cfg.Solver.Method, integrators.Options{}); err != nil {
		return nil, err
	}

	m := &Model{
		Config: cfg,
		nodes:  make(map[string]reactor.Node),
		walls:  make(map[string]*connector.Wall),
		flows:  make(map[string]*connector.FlowDevice),
	}
	var members []reactor.Reactor
	for i := range cfg.Reactors {
		rc := &cfg.Reactors[i]
		node, err := r.buildReactor(cfg, rc)
		if err != nil {
			return nil, err
		}
		m.nodes[rc.Name] = node
		if _, external := node.(*reactor.Reservoir); !external {
			members = append(members, node)
		}
	}

	for _, wc := range cfg.Walls {
		w, err := r.buildWall(m, wc)
		if err != nil {
			return nil, err
		}
		m.walls[wc.Name] = w
	}
	// primaries first so pressure controllers can refer to them
	for _, pass := range []bool{false, true} {
		for _, fc := range cfg.Flows {
			if (fc.Type == config.PressureController) != pass {
				continue
			}
			d, err := r.buildFlow(m, fc)
			if err != nil {
				return nil, err
			}
			m.flows[fc.Name] = d
		}
	}

	if len(members) == 0 {
		return nil, simerr.Configf(op, "%w: network %q has only reservoirs", simerr.ErrDimensionMismatch, cfg.Name)
	}
	net := network.New(members...)
	net.SetOptions(options(cfg.Solver))
	m.Network = net
	if err := net.Initialize(); err != nil {
		return nil, err
	}
	for _, ec := range cfg.Events {
		ev, err := m.event(ec)
		if err != nil {
			return nil, err
		}
		if err := net.AddEvent(ev); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func options(sc config.SolverConfig) network.Options {
	o := network.DefaultOptions()
	if sc.Method != "" {
		o.Method = sc.Method
	}
	if sc.RelTol > 0 {
		o.RelTol = sc.RelTol
	}
	if sc.AbsTol > 0 {
		o.AbsTol = sc.AbsTol
	}
	if sc.MaxSteps > 0 {
		o.MaxSteps = sc.MaxSteps
	}
	if sc.MaxClipping > 0 {
		o.MaxClipping = sc.MaxClipping
	}
	o.ComponentAbsTol = sc.ComponentAbsTol
	o.MaxStep = sc.MaxStep
	o.MaxOrder = sc.MaxOrder
	return o
}

func (r *Registry) buildReactor(cfg *config.Config, rc *config.ReactorConfig) (reactor.Reactor, error) {
	const op = "experiment.Build"
	kind, err := r.GetKind(rc.Kind)
	if err != nil {
		return nil, simerr.Configf(op, "%w: reactor %q: %v", simerr.ErrInvalidParameter, rc.Name, err)
	}
	mechName := rc.Mechanism
	if mechName == "" {
		mechName = cfg.Mechanism
	}
	mech, err := r.GetMechanism(mechName)
	if err != nil {
		return nil, simerr.Configf(op, "%w: reactor %q: %v", simerr.ErrInvalidParameter, rc.Name, err)
	}
	gas, err := mech.NewGas()
	if err != nil {
		return nil, err
	}
	if err := thermo.SetStateTPString(gas, rc.Temperature, rc.Pressure, rc.Composition); err != nil {
		return nil, simerr.Configf(op, "%w: reactor %q: %v", simerr.ErrThermoState, rc.Name, err)
	}

	node, err := reactor.New(kind, rc.Name, gas)
	if err != nil {
		return nil, err
	}
	var kin *kinetics.MassAction
	if len(mech.Reactions) > 0 {
		if kin, err = mech.NewKinetics(gas); err != nil {
			return nil, err
		}
	}

	switch x := node.(type) {
	case *reactor.GasReactor:
		if rc.Volume > 0 {
			if err := x.SetVolume(rc.Volume); err != nil {
				return nil, err
			}
		}
		if kin != nil {
			x.SetKinetics(kin)
		}
		if rc.Energy != nil {
			x.SetEnergyEnabled(*rc.Energy)
		}
		if rc.Chemistry != nil {
			x.SetChemistryEnabled(*rc.Chemistry)
		}
		if rc.ClipTolerance > 0 {
			x.SetClipTolerance(rc.ClipTolerance)
		}
		for _, sc := range rc.Surfaces {
			if err := r.addSurface(x, mechName, gas, sc); err != nil {
				return nil, err
			}
		}
	case *reactor.FlowReactor:
		if err := x.SetMassFlowRate(rc.MassFlowRate); err != nil {
			return nil, err
		}
		if err := x.SetArea(rc.Area); err != nil {
			return nil, err
		}
		if kin != nil {
			x.SetKinetics(kin)
		}
		if rc.Energy != nil {
			x.SetEnergyEnabled(*rc.Energy)
		}
		if rc.Chemistry != nil {
			x.SetChemistryEnabled(*rc.Chemistry)
		}
		if rc.ClipTolerance > 0 {
			x.SetClipTolerance(rc.ClipTolerance)
		}
	}
	if len(rc.Surfaces) > 0 {
		if _, ok := node.(*reactor.GasReactor); !ok {
			return nil, simerr.Configf(op, "%w: %s %q cannot hold surfaces", simerr.ErrInvalidParameter, kind, rc.Name)
		}
	}
	if len(rc.Limits) > 0 {
		lim, ok := node.(advanceLimiter)
		if !ok || kind == reactor.KindReservoir {
			return nil, simerr.Configf(op, "%w: %s %q takes no advance limits", simerr.ErrInvalidParameter, kind, rc.Name)
		}
		for component, v := range rc.Limits {
			lim.SetAdvanceLimit(component, v)
		}
	}
	return node, nil
}

func (r *Registry) addSurface(host *reactor.GasReactor, mechName string, gas *thermo.IdealGas, sc config.SurfaceConfig) error {
	const op = "experiment.Build"
	smech, err := r.GetSurfaceMechanism(sc.Mechanism)
	if err != nil {
		return simerr.Configf(op, "%w: surface %q: %v", simerr.ErrInvalidParameter, sc.Name, err)
	}
	if smech.Gas != mechName {
		return simerr.Configf(op, "%w: surface %q needs gas mechanism %q, reactor uses %q",
			simerr.ErrInvalidParameter, sc.Name, smech.Gas, mechName)
	}
	phase, err := smech.NewSurface()
	if err != nil {
		return err
	}
	if sc.Coverages != "" {
		theta, err := coverages(phase, sc.Coverages)
		if err != nil {
			return simerr.Configf(op, "%w: surface %q: %v", simerr.ErrInvalidParameter, sc.Name, err)
		}
		if err := phase.SetCoverages(theta); err != nil {
			return err
		}
	}
	kin, err := smech.NewKinetics(gas, phase)
	if err != nil {
		return err
	}
	s, err := reactor.NewSurface(sc.Name, phase, kin, sc.Area)
	if err != nil {
		return err
	}
	return host.AddSurface(s)
}

func coverages(phase *thermo.Surface, spec string) ([]float64, error) {
	comp, err := thermo.ParseComposition(spec)
	if err != nil {
		return nil, err
	}
	theta := make([]float64, phase.NSpecies())
	for name, v := range comp {
		k := phase.SpeciesIndex(name)
		if k < 0 {
			return nil, simerr.Configf("experiment.coverages", "%w: unknown surface species %q", simerr.ErrInvalidParameter, name)
		}
		theta[k] = v
	}
	return theta, nil
}

func (r *Registry) buildWall(m *Model, wc config.WallConfig) (*connector.Wall, error) {
	w, err := connector.NewWall(wc.Name, m.nodes[wc.Left], m.nodes[wc.Right])
	if err != nil {
		return nil, err
	}
	if wc.Area > 0 {
		if err := w.SetArea(wc.Area); err != nil {
			return nil, err
		}
	}
	for _, set := range []func() error{
		func() error { return w.SetHeatTransferCoeff(wc.U) },
		func() error { return w.SetExpansionRateCoeff(wc.K) },
		func() error { return w.SetEmissivity(wc.Emissivity) },
	} {
		if err := set(); err != nil {
			return nil, err
		}
	}
	velocity, err := r.GetFunc(wc.Velocity)
	if err != nil {
		return nil, simerr.Configf("experiment.Build", "%w: wall %q velocity: %v", simerr.ErrInvalidParameter, wc.Name, err)
	}
	heatFlux, err := r.GetFunc(wc.HeatFlux)
	if err != nil {
		return nil, simerr.Configf("experiment.Build", "%w: wall %q heat flux: %v", simerr.ErrInvalidParameter, wc.Name, err)
	}
	if velocity != nil {
		w.SetVelocity(velocity)
	}
	if heatFlux != nil {
		w.SetHeatFlux(heatFlux)
	}
	return w, nil
}

func (r *Registry) buildFlow(m *Model, fc config.FlowConfig) (*connector.FlowDevice, error) {
	const op = "experiment.Build"
	up, down := m.nodes[fc.Upstream], m.nodes[fc.Downstream]
	var (
		d   *connector.FlowDevice
		err error
	)
	switch fc.Type {
	case config.MassFlowController:
		if d, err = connector.NewMassFlowController(fc.Name, up, down); err == nil {
			err = d.SetMassFlowRate(fc.MassFlowRate)
		}
	case config.Valve:
		if d, err = connector.NewValve(fc.Name, up, down); err == nil {
			err = d.SetCoeff(fc.Coeff)
		}
	case config.PressureController:
		if d, err = connector.NewPressureController(fc.Name, up, down, m.flows[fc.Primary]); err == nil {
			err = d.SetCoeff(fc.Coeff)
		}
	}
	if err != nil {
		return nil, err
	}

	timeFn, err := r.GetFunc(fc.Time)
	if err != nil {
		return nil, simerr.Configf(op, "%w: flow %q time function: %v", simerr.ErrInvalidParameter, fc.Name, err)
	}
	pressFn, err := r.GetFunc(fc.Pressure)
	if err != nil {
		return nil, simerr.Configf(op, "%w: flow %q pressure function: %v", simerr.ErrInvalidParameter, fc.Name, err)
	}
	if timeFn != nil {
		d.SetTimeFunction(timeFn)
	}
	if pressFn != nil {
		d.SetPressureFunction(pressFn)
	}
	d.SetEnabled(!fc.Disabled)
	return d, nil
}

// event turns a connector change into a network event.
func (m *Model) event(ec config.EventConfig) (*network.Event, error) {
	const op = "experiment.Build"
	var action func(*network.Network) error
	if w, ok := m.walls[ec.Target]; ok {
		if ec.MassFlowRate != nil || ec.Coeff != nil {
			return nil, simerr.Configf(op, "%w: event %q can only enable or disable wall %q", simerr.ErrInvalidParameter, ec.Name, ec.Target)
		}
		action = func(*network.Network) error {
			if ec.Enabled != nil {
				w.SetEnabled(*ec.Enabled)
			}
			return nil
		}
	} else {
		d := m.flows[ec.Target]
		if ec.MassFlowRate != nil && d.Kind() != connector.MassFlowController {
			return nil, simerr.Configf(op, "%w: event %q sets a mass flow rate on %s %q", simerr.ErrInvalidParameter, ec.Name, d.Kind(), ec.Target)
		}
		action = func(*network.Network) error {
			if ec.Enabled != nil {
				d.SetEnabled(*ec.Enabled)
			}
			if ec.MassFlowRate != nil {
				if err := d.SetMassFlowRate(*ec.MassFlowRate); err != nil {
					return err
				}
			}
			if ec.Coeff != nil {
				return d.SetCoeff(*ec.Coeff)
			}
			return nil
		}
	}

	if ec.At != nil {
		return network.AtTime(ec.Name, *ec.At, action), nil
	}
	i, err := m.Network.ComponentIndex(ec.Component)
	if err != nil {
		return nil, err
	}
	threshold := ec.Threshold
	return &network.Event{
		Name:      ec.Name,
		Condition: func(_ float64, y []float64) float64 { return y[i] - threshold },
		Action:    action,
		Once:      true,
	}, nil
}
