package reactor

import (
	"fmt"
	"math"

	"github.com/san-kum/reactornet/internal/kinetics"
	"github.com/san-kum/reactornet/internal/simerr"
	"github.com/san-kum/reactornet/internal/thermo"
)

// FlowReactor is steady, isobaric, adiabatic plug flow of an ideal gas
// through a duct of constant cross section. The independent variable is
// distance along the duct. State: speed, temperature, Y_k. The speed row is
// the algebraic continuity constraint ṁ = ρ·u·A.
type FlowReactor struct {
	base
	kin       kinetics.Kinetics
	mdot      float64
	area      float64
	pressure  float64
	energy    bool
	chemistry bool
	clipTol   float64

	names      []string
	nsp        int
	trialSpeed float64

	wdot, partial, ys []float64
}

func NewFlowReactor(name string, gas thermo.Phase) (*FlowReactor, error) {
	b, err := newBase(name, gas)
	if err != nil {
		return nil, err
	}
	return &FlowReactor{
		base:      b,
		area:      1,
		energy:    true,
		chemistry: true,
		clipTol:   DefaultClipTolerance,
	}, nil
}

func (r *FlowReactor) Kind() Kind                      { return KindFlowReactor }
func (r *FlowReactor) IndependentVariable() string     { return "distance" }
func (r *FlowReactor) NEq() int                        { return len(r.names) }
func (r *FlowReactor) Kinetics() kinetics.Kinetics     { return r.kin }
func (r *FlowReactor) MassFlowRate() float64           { return r.mdot }
func (r *FlowReactor) Area() float64                   { return r.area }
func (r *FlowReactor) Temperature() float64            { return r.gas.Temperature() }
func (r *FlowReactor) Pressure() float64               { return r.gas.Pressure() }
func (r *FlowReactor) Density() float64                { return r.gas.Density() }
func (r *FlowReactor) SetKinetics(k kinetics.Kinetics) { r.kin = k }
func (r *FlowReactor) SetEnergyEnabled(on bool)        { r.energy = on }
func (r *FlowReactor) SetChemistryEnabled(on bool)     { r.chemistry = on }
func (r *FlowReactor) SetClipTolerance(tol float64)    { r.clipTol = tol }

// Speed is the committed gas velocity, m/s.
func (r *FlowReactor) Speed() float64 {
	return r.mdot / (r.area * r.gas.Density())
}

func (r *FlowReactor) SetMassFlowRate(mdot float64) error {
	if !(mdot > 0) || math.IsInf(mdot, 0) {
		return simerr.Configf("reactor.FlowReactor.SetMassFlowRate", "%w: %g", simerr.ErrInvalidParameter, mdot)
	}
	r.mdot = mdot
	return nil
}

func (r *FlowReactor) SetArea(a float64) error {
	if !(a > 0) || math.IsInf(a, 0) {
		return simerr.Configf("reactor.FlowReactor.SetArea", "%w: %g", simerr.ErrInvalidParameter, a)
	}
	r.area = a
	return nil
}

func (r *FlowReactor) Validate() error {
	const op = "reactor.Validate"
	if r.gas.NSpecies() == 0 {
		return simerr.Configf(op, "%w: flow reactor %q", simerr.ErrNoSpecies, r.name)
	}
	if !(r.mdot > 0) {
		return simerr.Configf(op, "%w: flow reactor %q needs a positive mass flow rate", simerr.ErrInvalidParameter, r.name)
	}
	if len(r.attachments) > 0 {
		return simerr.Configf(op, "%w: flow reactor %q cannot have walls or flow devices", simerr.ErrInvalidParameter, r.name)
	}
	if r.kin != nil {
		rates := make([]float64, r.gas.NSpecies())
		if err := r.kin.NetProductionRates(r.gas, rates); err != nil {
			return simerr.Configf(op, "%w: flow reactor %q kinetics do not match phase: %v", simerr.ErrDimensionMismatch, r.name, err)
		}
	}
	return nil
}

func (r *FlowReactor) Initialize() error {
	if err := r.Validate(); err != nil {
		return err
	}
	r.trial = r.gas.Clone()
	r.pressure = r.gas.Pressure()
	r.nsp = r.gas.NSpecies()
	r.names = append(r.names[:0], "speed", "temperature")
	for k := 0; k < r.nsp; k++ {
		r.names = append(r.names, r.gas.SpeciesName(k))
	}
	r.wdot = make([]float64, r.nsp)
	r.partial = make([]float64, r.nsp)
	r.ys = make([]float64, r.nsp)
	r.trialSpeed = r.Speed()
	r.initialized = true
	return nil
}

func (r *FlowReactor) ComponentIndex(name string) int {
	for i, n := range r.names {
		if n == name {
			return i
		}
	}
	return -1
}

func (r *FlowReactor) ComponentName(i int) string {
	if i < 0 || i >= len(r.names) {
		return ""
	}
	return r.names[i]
}

func (r *FlowReactor) GetState(y []float64) error {
	if !r.initialized {
		return simerr.Configf("reactor.GetState", "%w: flow reactor %q", simerr.ErrUninitialized, r.name)
	}
	if len(y) != len(r.names) {
		return simerr.Configf("reactor.GetState", "%w: %d for %d components", simerr.ErrDimensionMismatch, len(y), len(r.names))
	}
	y[0] = r.Speed()
	y[1] = r.gas.Temperature()
	r.gas.GetMassFractions(y[2:])
	return nil
}

func (r *FlowReactor) load(y []float64, ph thermo.Phase) (float64, error) {
	clipped := 0.0
	for k, x := range y[2:] {
		if x < 0 {
			clipped -= x
			x = 0
		}
		r.ys[k] = x
	}
	if err := ph.SetStateTPY(y[1], r.pressure, r.ys); err != nil {
		return clipped, thermoError(r.name, err)
	}
	return clipped, nil
}

func (r *FlowReactor) UpdateState(y []float64) (float64, error) {
	if len(y) != len(r.names) {
		return 0, simerr.Configf("reactor.UpdateState", "%w: %d for %d components", simerr.ErrDimensionMismatch, len(y), len(r.names))
	}
	clipped, err := r.load(y, r.trial)
	if err != nil {
		return clipped, err
	}
	r.trialSpeed = y[0]
	if _, err := r.load(y, r.gas); err != nil {
		return clipped, err
	}
	if clipped > r.clipTol {
		return clipped, clippingError(r.name, clipped, r.clipTol)
	}
	return clipped, nil
}

func (r *FlowReactor) SetTrialState(y []float64) error {
	if !(y[0] > 0) {
		return fmt.Errorf("%w: flow reactor %q speed %g", simerr.ErrThermoState, r.name, y[0])
	}
	r.trialSpeed = y[0]
	_, err := r.load(y, r.trial)
	return err
}

// Eval writes, per unit distance,
//
//	0         = ṁ/(ρA) − u
//	ρ·u·cp·T' = −Σ h_k ω̇_k
//	ρ·u·Y_k'  = ω̇_k W_k
func (r *FlowReactor) Eval(z float64, _ *Exchange, lhs, rhs []float64) error {
	g := r.trial
	u := r.trialSpeed
	rho := g.Density()
	for k := range r.wdot {
		r.wdot[k] = 0
	}
	if r.chemistry && r.kin != nil {
		if err := r.kin.NetProductionRates(g, r.wdot); err != nil {
			return err
		}
	}

	lhs[0] = 0
	rhs[0] = r.mdot/(rho*r.area) - u

	lhs[1], rhs[1] = 1, 0
	if r.energy {
		g.GetPartialMolarEnthalpies(r.partial)
		q := 0.0
		for k, w := range r.wdot {
			q -= r.partial[k] * w
		}
		lhs[1] = rho * u * g.CpMass()
		rhs[1] = q
	}
	for k, w := range r.wdot {
		lhs[2+k] = rho * u
		rhs[2+k] = w * g.MolecularWeight(k)
	}
	return nil
}
