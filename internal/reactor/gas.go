package reactor

import (
	"fmt"
	"math"

	"github.com/san-kum/reactornet/internal/kinetics"
	"github.com/san-kum/reactornet/internal/simerr"
	"github.com/san-kum/reactornet/internal/thermo"
)

// DefaultClipTolerance is the clipped amount (mass fraction or coverage)
// tolerated per UpdateState before a Clipping error is reported.
const DefaultClipTolerance = 1e-6

// GasReactor is a well-mixed vessel holding one gas phase. Its kind selects
// the state variables:
//
//	Reactor                          mass, volume, int_energy, Y_k
//	ConstPressureReactor             mass, enthalpy, Y_k
//	IdealGasReactor                  mass, volume, temperature, Y_k
//	IdealGasConstPressureReactor     mass, temperature, Y_k
//	MoleReactor                      int_energy, volume, n_k
//	ConstPressureMoleReactor         enthalpy, n_k
//	IdealGasMoleReactor              temperature, volume, n_k
//	IdealGasConstPressureMoleReactor temperature, n_k
//
// followed by the coverages of each surface.
type GasReactor struct {
	base
	kind      Kind
	form      formulation
	kin       kinetics.Kinetics
	surfaces  []*Surface
	energy    bool
	chemistry bool
	clipTol   float64

	mass     float64
	pressure float64

	names    []string
	index    map[string]int
	iMass    int
	iVol     int
	iEnergy  int
	iSpecies int
	iSurf    []int
	nsp      int
	neq      int

	trialMass, trialVol float64

	wdot, prod, partial, ys []float64
}

// NewGasReactor builds one of the eight gas formulations with a volume of
// 1 m^3 and energy and chemistry enabled.
func NewGasReactor(kind Kind, name string, gas thermo.Phase) (*GasReactor, error) {
	form, ok := formulations[kind]
	if !ok {
		return nil, simerr.Configf("reactor.NewGasReactor", "%w: %s is not a gas reactor kind", simerr.ErrInvalidParameter, kind)
	}
	b, err := newBase(name, gas)
	if err != nil {
		return nil, err
	}
	return &GasReactor{
		base:      b,
		kind:      kind,
		form:      form,
		energy:    true,
		chemistry: true,
		clipTol:   DefaultClipTolerance,
	}, nil
}

func (r *GasReactor) Kind() Kind                      { return r.kind }
func (r *GasReactor) IndependentVariable() string     { return "time" }
func (r *GasReactor) NEq() int                        { return r.neq }
func (r *GasReactor) Kinetics() kinetics.Kinetics     { return r.kin }
func (r *GasReactor) Surfaces() []*Surface            { return append([]*Surface(nil), r.surfaces...) }
func (r *GasReactor) PressureHeld() bool              { return r.form.pressureHeld }
func (r *GasReactor) EnergyEnabled() bool             { return r.energy }
func (r *GasReactor) ChemistryEnabled() bool          { return r.chemistry }
func (r *GasReactor) Mass() float64                   { return r.mass }
func (r *GasReactor) Temperature() float64            { return r.gas.Temperature() }
func (r *GasReactor) Pressure() float64               { return r.gas.Pressure() }
func (r *GasReactor) Density() float64                { return r.gas.Density() }
func (r *GasReactor) MassFractions(dst []float64)     { r.gas.GetMassFractions(dst) }
func (r *GasReactor) SetClipTolerance(tol float64)    { r.clipTol = tol }
func (r *GasReactor) SetEnergyEnabled(on bool)        { r.energy = on }
func (r *GasReactor) SetChemistryEnabled(on bool)     { r.chemistry = on }
func (r *GasReactor) SetKinetics(k kinetics.Kinetics) { r.kin = k }

// SetVolume sets the initial volume. Re-initialize afterwards.
func (r *GasReactor) SetVolume(v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return simerr.Configf("reactor.SetVolume", "%w: reactor %q volume %g", simerr.ErrInvalidParameter, r.name, v)
	}
	r.volume = v
	return nil
}

// AddSurface installs s; its coverages are appended to the state.
func (r *GasReactor) AddSurface(s *Surface) error {
	if s.host != nil {
		return simerr.Configf("reactor.AddSurface", "%w: surface %q already installed in %q", simerr.ErrAliasedPhase, s.name, s.host.name)
	}
	s.host = r
	r.surfaces = append(r.surfaces, s)
	r.topology++
	return nil
}

func (r *GasReactor) TotalEnergy() float64 {
	if r.form.pressureHeld {
		return r.mass * r.gas.EnthalpyMass()
	}
	return r.mass * r.gas.IntEnergyMass()
}

func (r *GasReactor) owned() []any {
	out := []any{r.gas}
	for _, s := range r.surfaces {
		out = append(out, s.phase)
	}
	return out
}

func (r *GasReactor) Validate() error {
	const op = "reactor.Validate"
	if r.gas.NSpecies() == 0 {
		return simerr.Configf(op, "%w: reactor %q", simerr.ErrNoSpecies, r.name)
	}
	if !(r.volume > 0) {
		return simerr.Configf(op, "%w: reactor %q volume %g", simerr.ErrInvalidParameter, r.name, r.volume)
	}
	if !(r.clipTol >= 0) {
		return simerr.Configf(op, "%w: reactor %q clip tolerance %g", simerr.ErrInvalidParameter, r.name, r.clipTol)
	}
	if r.kin != nil {
		rates := make([]float64, r.gas.NSpecies())
		if err := r.kin.NetProductionRates(r.gas, rates); err != nil {
			return simerr.Configf(op, "%w: reactor %q kinetics do not match phase: %v", simerr.ErrDimensionMismatch, r.name, err)
		}
	}
	for _, s := range r.surfaces {
		if err := s.validate(r.gas); err != nil {
			return err
		}
	}
	return nil
}

// Initialize syncs the reactor with its phase and builds the layout.
func (r *GasReactor) Initialize() error {
	if err := r.Validate(); err != nil {
		return err
	}
	r.trial = r.gas.Clone()
	if r.form.pressureHeld {
		r.pressure = r.gas.Pressure()
	}
	r.mass = r.gas.Density() * r.volume
	r.trialMass, r.trialVol = r.mass, r.volume
	r.buildLayout()
	r.initialized = true
	return nil
}

func (r *GasReactor) buildLayout() {
	nsp := r.gas.NSpecies()
	r.nsp = nsp
	r.names = r.names[:0]
	r.iMass, r.iVol, r.iEnergy = -1, -1, -1

	energyName := "int_energy"
	switch {
	case r.form.temperature:
		energyName = "temperature"
	case r.form.pressureHeld:
		energyName = "enthalpy"
	}
	add := func(name string) int {
		r.names = append(r.names, name)
		return len(r.names) - 1
	}
	if r.form.moles {
		r.iEnergy = add(energyName)
		if !r.form.pressureHeld {
			r.iVol = add("volume")
		}
	} else {
		r.iMass = add("mass")
		if !r.form.pressureHeld {
			r.iVol = add("volume")
		}
		r.iEnergy = add(energyName)
	}
	r.iSpecies = len(r.names)
	for k := 0; k < nsp; k++ {
		add(r.gas.SpeciesName(k))
	}
	r.iSurf = r.iSurf[:0]
	r.index = make(map[string]int, len(r.names))
	for i, n := range r.names {
		r.index[n] = i
	}
	for _, s := range r.surfaces {
		r.iSurf = append(r.iSurf, len(r.names))
		for k := 0; k < s.NSpecies(); k++ {
			name := s.SpeciesName(k)
			if _, dup := r.index[name]; dup {
				name = s.name + ":" + name
			}
			r.index[name] = add(name)
		}
	}
	r.neq = len(r.names)

	maxSurf := 0
	for _, s := range r.surfaces {
		maxSurf = max(maxSurf, s.NSpecies())
	}
	r.wdot = make([]float64, nsp)
	r.prod = make([]float64, nsp)
	r.partial = make([]float64, nsp)
	r.ys = make([]float64, max(nsp, maxSurf))
}

func (r *GasReactor) ComponentIndex(name string) int {
	if i, ok := r.index[name]; ok {
		return i
	}
	return -1
}

func (r *GasReactor) ComponentName(i int) string {
	if i < 0 || i >= len(r.names) {
		return ""
	}
	return r.names[i]
}

func (r *GasReactor) GetState(y []float64) error {
	if !r.initialized {
		return simerr.Configf("reactor.GetState", "%w: reactor %q", simerr.ErrUninitialized, r.name)
	}
	if len(y) != r.neq {
		return simerr.Configf("reactor.GetState", "%w: %d for %d components", simerr.ErrDimensionMismatch, len(y), r.neq)
	}
	g := r.gas
	if r.iMass >= 0 {
		y[r.iMass] = r.mass
	}
	if r.iVol >= 0 {
		y[r.iVol] = r.volume
	}
	switch {
	case r.form.temperature:
		y[r.iEnergy] = g.Temperature()
	case r.form.pressureHeld:
		y[r.iEnergy] = r.mass * g.EnthalpyMass()
	default:
		y[r.iEnergy] = r.mass * g.IntEnergyMass()
	}
	sp := y[r.iSpecies : r.iSpecies+r.nsp]
	g.GetMassFractions(sp)
	if r.form.moles {
		for k := range sp {
			sp[k] *= r.mass / g.MolecularWeight(k)
		}
	}
	for j, s := range r.surfaces {
		off := r.iSurf[j]
		s.getState(y[off : off+s.NSpecies()])
	}
	return nil
}

// load reconstructs ph from y and returns the mass, the volume and the
// clipped amount.
func (r *GasReactor) load(y []float64, ph thermo.Phase) (m, v, clipped float64, err error) {
	ys := r.ys[:r.nsp]
	sp := y[r.iSpecies : r.iSpecies+r.nsp]
	if r.form.moles {
		neg := 0.0
		for k, n := range sp {
			w := ph.MolecularWeight(k)
			if n < 0 {
				neg -= n * w
				n = 0
			}
			ys[k] = n * w
			m += ys[k]
		}
		if m > 0 {
			clipped = neg / m
		}
	} else {
		m = y[r.iMass]
		for k, x := range sp {
			if x < 0 {
				clipped -= x
				x = 0
			}
			ys[k] = x
		}
	}
	if !(m > 0) || math.IsInf(m, 0) {
		return m, 0, clipped, fmt.Errorf("%w: reactor %q mass %g", simerr.ErrThermoState, r.name, m)
	}
	if r.iVol >= 0 {
		v = y[r.iVol]
		if !(v > 0) || math.IsInf(v, 0) {
			return m, v, clipped, fmt.Errorf("%w: reactor %q volume %g", simerr.ErrThermoState, r.name, v)
		}
	}

	e := y[r.iEnergy]
	switch {
	case r.form.temperature && r.form.pressureHeld:
		err = ph.SetStateTPY(e, r.pressure, ys)
	case r.form.temperature:
		err = ph.SetStateTDY(e, m/v, ys)
	case r.form.pressureHeld:
		err = ph.SetStateHP(e/m, r.pressure, ys)
	default:
		err = ph.SetStateUV(e/m, v/m, ys)
	}
	if err != nil {
		return m, v, clipped, thermoError(r.name, err)
	}
	if r.form.pressureHeld {
		v = m / ph.Density()
	}
	return m, v, clipped, nil
}

func (r *GasReactor) UpdateState(y []float64) (float64, error) {
	if len(y) != r.neq {
		return 0, simerr.Configf("reactor.UpdateState", "%w: %d for %d components", simerr.ErrDimensionMismatch, len(y), r.neq)
	}
	// The trial phases take y first; the owned state is only touched
	// once every load has succeeded there.
	m, v, clipped, err := r.load(y, r.trial)
	if err != nil {
		return clipped, err
	}
	r.trialMass, r.trialVol = m, v
	for j, s := range r.surfaces {
		off := r.iSurf[j]
		if _, err := s.load(y[off:off+s.NSpecies()], false, r.ys); err != nil {
			return clipped, thermoError(r.name, err)
		}
	}
	if _, _, _, err := r.load(y, r.gas); err != nil {
		return clipped, err
	}
	for j, s := range r.surfaces {
		off := r.iSurf[j]
		c, err := s.load(y[off:off+s.NSpecies()], true, r.ys)
		if err != nil {
			return clipped, thermoError(r.name, err)
		}
		clipped += c
	}
	r.mass, r.volume = m, v
	if clipped > r.clipTol {
		return clipped, clippingError(r.name, clipped, r.clipTol)
	}
	return clipped, nil
}

func (r *GasReactor) SetTrialState(y []float64) error {
	m, v, _, err := r.load(y, r.trial)
	if err != nil {
		return err
	}
	r.trialMass, r.trialVol = m, v
	for j, s := range r.surfaces {
		off := r.iSurf[j]
		if _, err := s.load(y[off:off+s.NSpecies()], false, r.ys); err != nil {
			return thermoError(r.name, err)
		}
	}
	return nil
}

// Eval fills the reactor rows from the trial state loaded by the last
// SetTrialState.
func (r *GasReactor) Eval(t float64, ex *Exchange, lhs, rhs []float64) error {
	g := r.trial
	m, v := r.trialMass, r.trialVol
	for i := range lhs {
		lhs[i] = 1
		rhs[i] = 0
	}

	// prod holds species production in kmol/s from gas and surfaces.
	prod := r.prod
	for k := range prod {
		prod[k] = 0
	}
	if r.chemistry && r.kin != nil {
		if err := r.kin.NetProductionRates(g, r.wdot); err != nil {
			return err
		}
		for k, w := range r.wdot {
			prod[k] = w * v
		}
	}
	mdotSurf := 0.0
	for j, s := range r.surfaces {
		off := r.iSurf[j]
		md, err := s.eval(g, prod, rhs[off:off+s.NSpecies()])
		if err != nil {
			return err
		}
		mdotSurf += md
	}

	mdotIn := ex.InflowMass()
	mdotOut := ex.OutflowMass
	if r.iMass >= 0 {
		rhs[r.iMass] = mdotIn - mdotOut + mdotSurf
	}
	if r.iVol >= 0 {
		rhs[r.iVol] = ex.Vdot
	}

	sp := r.iSpecies
	for k := 0; k < r.nsp; k++ {
		w := g.MolecularWeight(k)
		yk := g.MassFraction(k)
		if r.form.moles {
			s := prod[k] - mdotOut*yk/w
			for _, in := range ex.Inflows {
				s += in.Mdot * in.Y[k] / w
			}
			rhs[sp+k] = s
			continue
		}
		s := prod[k]*w - yk*mdotSurf
		for _, in := range ex.Inflows {
			s += in.Mdot * (in.Y[k] - yk)
		}
		lhs[sp+k] = m
		rhs[sp+k] = s
	}

	if !r.energy {
		return nil
	}
	p := g.Pressure()
	ie := r.iEnergy
	switch {
	case !r.form.temperature:
		e := ex.Qdot - mdotOut*g.EnthalpyMass()
		for _, in := range ex.Inflows {
			e += in.Mdot * in.Enthalpy
		}
		if !r.form.pressureHeld {
			e -= p * ex.Vdot
		}
		rhs[ie] = e
	case r.form.pressureHeld:
		g.GetPartialMolarEnthalpies(r.partial)
		rhs[ie] = ex.Qdot + r.sensible(ex, prod)
		lhs[ie] = m * g.CpMass()
	default:
		g.GetPartialMolarIntEnergies(r.partial)
		rhs[ie] = ex.Qdot - p*ex.Vdot - mdotOut*p/g.Density() + r.sensible(ex, prod)
		lhs[ie] = m * g.CvMass()
	}
	return nil
}

// sensible returns Σ in.Mdot·(h_in − Σ e_k Y_in,k/W_k) − Σ e_k prod_k with
// e_k the partial molar energies in r.partial.
func (r *GasReactor) sensible(ex *Exchange, prod []float64) float64 {
	g := r.trial
	s := 0.0
	for k, e := range r.partial {
		s -= e * prod[k]
	}
	for _, in := range ex.Inflows {
		if in.Mdot == 0 {
			continue
		}
		carried := 0.0
		for k, e := range r.partial {
			carried += e * in.Y[k] / g.MolecularWeight(k)
		}
		s += in.Mdot * (in.Enthalpy - carried)
	}
	return s
}
