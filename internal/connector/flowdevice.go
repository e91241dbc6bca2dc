package connector

import (
	"math"

	"github.com/san-kum/reactornet/internal/funcs"
	"github.com/san-kum/reactornet/internal/reactor"
	"github.com/san-kum/reactornet/internal/simerr"
)

// DeviceKind selects the flow law of a FlowDevice.
type DeviceKind int

const (
	MassFlowController DeviceKind = iota + 1
	Valve
	PressureController
)

func (k DeviceKind) String() string {
	switch k {
	case MassFlowController:
		return "MassFlowController"
	case Valve:
		return "Valve"
	case PressureController:
		return "PressureController"
	}
	return "unknown"
}

// FlowDevice moves mass from an upstream to a downstream node. Flow is
// one-directional: computed rates are clamped at zero.
//
//	MassFlowController  ṁ = c·g(t)
//	Valve               ṁ = c·g(t)·f(ΔP), f(ΔP) = ΔP by default
//	PressureController  ṁ = ṁ_primary + c·f(ΔP)
type FlowDevice struct {
	name     string
	kind     DeviceKind
	up, down reactor.Node
	enabled  bool

	coeff   float64
	timeFn  funcs.Func1
	pressFn funcs.Func1
	primary *FlowDevice

	// mapping[k] is the downstream index of upstream species k, or -1.
	mapping []int
	yUp     []float64
}

func newFlowDevice(kind DeviceKind, name string, up, down reactor.Node) (*FlowDevice, error) {
	if err := checkEndpoints("connector.New"+kind.String(), name, up, down); err != nil {
		return nil, err
	}
	d := &FlowDevice{name: name, kind: kind, up: up, down: down, enabled: true}
	up.Attach(reactor.Attachment{Role: reactor.Outlet, Conn: d})
	down.Attach(reactor.Attachment{Role: reactor.Inlet, Conn: d})
	return d, nil
}

// NewMassFlowController attaches a controller with zero flow; set the
// rate with SetMassFlowCoeff.
func NewMassFlowController(name string, up, down reactor.Node) (*FlowDevice, error) {
	return newFlowDevice(MassFlowController, name, up, down)
}

// NewValve attaches a valve with flow proportional to the pressure drop.
func NewValve(name string, up, down reactor.Node) (*FlowDevice, error) {
	return newFlowDevice(Valve, name, up, down)
}

// NewPressureController attaches a device that follows primary and adds a
// pressure-driven correction.
func NewPressureController(name string, up, down reactor.Node, primary *FlowDevice) (*FlowDevice, error) {
	d, err := newFlowDevice(PressureController, name, up, down)
	if err != nil {
		return nil, err
	}
	d.primary = primary
	return d, nil
}

func (d *FlowDevice) Name() string                      { return d.name }
func (d *FlowDevice) Kind() DeviceKind                  { return d.kind }
func (d *FlowDevice) Left() reactor.Node                { return d.up }
func (d *FlowDevice) Right() reactor.Node               { return d.down }
func (d *FlowDevice) Upstream() reactor.Node            { return d.up }
func (d *FlowDevice) Downstream() reactor.Node          { return d.down }
func (d *FlowDevice) Enabled() bool                     { return d.enabled }
func (d *FlowDevice) SetEnabled(on bool)                { d.enabled = on }
func (d *FlowDevice) Coeff() float64                    { return d.coeff }
func (d *FlowDevice) Primary() *FlowDevice              { return d.primary }
func (d *FlowDevice) SetTimeFunction(f funcs.Func1)     { d.timeFn = f }
func (d *FlowDevice) SetPressureFunction(f funcs.Func1) { d.pressFn = f }
func (d *FlowDevice) SetPrimary(p *FlowDevice)          { d.primary = p }

// SetCoeff sets c: kg/s for a controller, kg/s/Pa for a valve or
// pressure controller with the default pressure law.
func (d *FlowDevice) SetCoeff(c float64) error {
	if !(c >= 0) || math.IsInf(c, 0) {
		return invalid("connector.FlowDevice.SetCoeff", d.name, "coefficient", c)
	}
	d.coeff = c
	return nil
}

// SetMassFlowRate sets a constant controller rate, kg/s.
func (d *FlowDevice) SetMassFlowRate(mdot float64) error {
	if d.kind != MassFlowController {
		return simerr.Configf("connector.FlowDevice.SetMassFlowRate", "%w: %q is a %s", simerr.ErrInvalidParameter, d.name, d.kind)
	}
	d.timeFn = nil
	return d.SetCoeff(mdot)
}

// Validate checks the device against its endpoints and builds the species
// mapping. The network calls it during initialization.
func (d *FlowDevice) Validate() error {
	const op = "connector.FlowDevice.Validate"
	if d.kind == PressureController {
		if d.primary == nil {
			return simerr.Configf(op, "%w: pressure controller %q has no primary device", simerr.ErrInvalidParameter, d.name)
		}
		for p, depth := d.primary, 0; p != nil; p, depth = p.primary, depth+1 {
			if p == d || depth > 64 {
				return simerr.Configf(op, "%w: pressure controller %q follows itself", simerr.ErrInvalidParameter, d.name)
			}
		}
	}
	upPhase, downPhase := d.up.Phase(), d.down.Phase()
	d.mapping = make([]int, upPhase.NSpecies())
	d.yUp = make([]float64, upPhase.NSpecies())
	for k := range d.mapping {
		d.mapping[k] = downPhase.SpeciesIndex(upPhase.SpeciesName(k))
	}
	return nil
}

func (d *FlowDevice) deltaP() float64 {
	return d.up.TrialPhase().Pressure() - d.down.TrialPhase().Pressure()
}

func (d *FlowDevice) pressureLaw(dp float64) float64 {
	if d.pressFn != nil {
		return d.pressFn.Eval(dp)
	}
	return dp
}

// MassFlowRate evaluates the flow law at t from the endpoints' trial
// states, kg/s.
func (d *FlowDevice) MassFlowRate(t float64) float64 {
	if !d.enabled {
		return 0
	}
	var mdot float64
	switch d.kind {
	case MassFlowController:
		mdot = d.coeff
		if d.timeFn != nil {
			mdot *= d.timeFn.Eval(t)
		}
	case Valve:
		mdot = d.coeff * d.pressureLaw(d.deltaP())
		if d.timeFn != nil {
			mdot *= d.timeFn.Eval(t)
		}
	case PressureController:
		if d.primary != nil {
			mdot = d.primary.MassFlowRate(t)
		}
		mdot += d.coeff * d.pressureLaw(d.deltaP())
	}
	if !(mdot > 0) {
		return 0
	}
	return mdot
}

// OutletEnthalpy is the specific enthalpy carried by the stream, J/kg.
func (d *FlowDevice) OutletEnthalpy() float64 {
	return d.up.TrialPhase().EnthalpyMass()
}

// OutletMassFractions writes upstream mass fractions into dst in the
// downstream species order. Upstream species unknown downstream are
// dropped.
func (d *FlowDevice) OutletMassFractions(dst []float64) {
	for k := range dst {
		dst[k] = 0
	}
	d.up.TrialPhase().GetMassFractions(d.yUp)
	for k, j := range d.mapping {
		if j >= 0 {
			dst[j] += d.yUp[k]
		}
	}
}

// Remove detaches the device from both endpoints.
func (d *FlowDevice) Remove() {
	d.up.Detach(d)
	d.down.Detach(d)
}
