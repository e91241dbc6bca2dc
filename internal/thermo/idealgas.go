package thermo

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
)

// IdealGas is a mixture of ideal gases with NASA-7 species properties.
type IdealGas struct {
	name     string
	species  []Species
	index    map[string]int
	elements []string
	mw       []float64

	t, rho float64
	y      []float64
	meanMW float64

	cpR, hRT, sR []float64
}

// NewIdealGas builds a mixture at 300 K and one atmosphere, composed of
// the first species. A mixture without species is allowed; reactors
// refuse it.
func NewIdealGas(name string, species []Species) (*IdealGas, error) {
	n := len(species)
	g := &IdealGas{
		name:    name,
		species: make([]Species, n),
		index:   make(map[string]int, n),
		mw:      make([]float64, n),
		y:       make([]float64, n),
		cpR:     make([]float64, n),
		hRT:     make([]float64, n),
		sR:      make([]float64, n),
		t:       300,
	}
	copy(g.species, species)
	seen := map[string]bool{}
	for k, s := range species {
		if _, dup := g.index[s.Name]; dup {
			return nil, fmt.Errorf("thermo: duplicate species %q", s.Name)
		}
		g.index[s.Name] = k
		w, err := s.MolecularWeight()
		if err != nil {
			return nil, err
		}
		g.mw[k] = w
		for el := range s.Composition {
			if !seen[el] {
				seen[el] = true
				g.elements = append(g.elements, el)
			}
		}
	}
	sort.Strings(g.elements)
	if n > 0 {
		g.y[0] = 1
		g.updateMeanMW()
		g.updateThermo()
		g.rho = OneAtm * g.meanMW / (GasConstant * g.t)
	}
	return g, nil
}

// NewIdealGasFromNames builds a mixture from database species.
func NewIdealGasFromNames(name string, names ...string) (*IdealGas, error) {
	sp, err := SpeciesSet(names...)
	if err != nil {
		return nil, err
	}
	return NewIdealGas(name, sp)
}

func (g *IdealGas) Name() string                  { return g.name }
func (g *IdealGas) NSpecies() int                 { return len(g.species) }
func (g *IdealGas) SpeciesName(k int) string      { return g.species[k].Name }
func (g *IdealGas) MolecularWeight(k int) float64 { return g.mw[k] }
func (g *IdealGas) Temperature() float64          { return g.t }
func (g *IdealGas) Density() float64              { return g.rho }
func (g *IdealGas) MeanMolecularWeight() float64  { return g.meanMW }
func (g *IdealGas) MassFraction(k int) float64    { return g.y[k] }

func (g *IdealGas) SpeciesNames() []string {
	out := make([]string, len(g.species))
	for k, s := range g.species {
		out[k] = s.Name
	}
	return out
}

func (g *IdealGas) SpeciesIndex(name string) int {
	if k, ok := g.index[name]; ok {
		return k
	}
	return -1
}

func (g *IdealGas) ElementNames() []string {
	out := make([]string, len(g.elements))
	copy(out, g.elements)
	return out
}

func (g *IdealGas) NAtoms(k int, element string) float64 {
	return g.species[k].Composition[element]
}

func (g *IdealGas) Pressure() float64 {
	return g.rho * GasConstant * g.t / g.meanMW
}

func (g *IdealGas) GetMassFractions(dst []float64) {
	copy(dst, g.y)
}

func (g *IdealGas) GetMoleFractions(dst []float64) {
	for k := range g.y {
		dst[k] = g.y[k] * g.meanMW / g.mw[k]
	}
}

func (g *IdealGas) GetConcentrations(dst []float64) {
	for k := range g.y {
		dst[k] = g.rho * g.y[k] / g.mw[k]
	}
}

func (g *IdealGas) EnthalpyMass() float64 {
	h := 0.0
	for k := range g.y {
		h += g.y[k] * g.hRT[k] / g.mw[k]
	}
	return h * GasConstant * g.t
}

func (g *IdealGas) IntEnergyMass() float64 {
	return g.EnthalpyMass() - GasConstant*g.t/g.meanMW
}

func (g *IdealGas) CpMass() float64 {
	cp := 0.0
	for k := range g.y {
		cp += g.y[k] * g.cpR[k] / g.mw[k]
	}
	return cp * GasConstant
}

func (g *IdealGas) CvMass() float64 {
	return g.CpMass() - GasConstant/g.meanMW
}

func (g *IdealGas) GetPartialMolarEnthalpies(dst []float64) {
	rt := GasConstant * g.t
	for k := range g.hRT {
		dst[k] = rt * g.hRT[k]
	}
}

func (g *IdealGas) GetPartialMolarIntEnergies(dst []float64) {
	rt := GasConstant * g.t
	for k := range g.hRT {
		dst[k] = rt * (g.hRT[k] - 1)
	}
}

func (g *IdealGas) GetStandardGibbsRT(dst []float64) {
	for k := range g.hRT {
		dst[k] = g.hRT[k] - g.sR[k]
	}
}

func (g *IdealGas) SetStateTDY(t, rho float64, y []float64) error {
	if err := checkTemperature(t); err != nil {
		return err
	}
	if !(rho > 0) || math.IsInf(rho, 0) {
		return fmt.Errorf("%w: density %g", ErrInvalidState, rho)
	}
	if err := g.setMassFractions(y); err != nil {
		return err
	}
	g.t = t
	g.rho = rho
	g.updateThermo()
	return nil
}

func (g *IdealGas) SetStateTPY(t, p float64, y []float64) error {
	if err := checkTemperature(t); err != nil {
		return err
	}
	if !(p > 0) || math.IsInf(p, 0) {
		return fmt.Errorf("%w: pressure %g", ErrInvalidState, p)
	}
	if err := g.setMassFractions(y); err != nil {
		return err
	}
	g.t = t
	g.rho = p * g.meanMW / (GasConstant * t)
	g.updateThermo()
	return nil
}

func (g *IdealGas) SetStateTPX(t, p float64, x []float64) error {
	if len(x) != len(g.y) {
		return fmt.Errorf("%w: %d mole fractions for %d species", ErrInvalidState, len(x), len(g.y))
	}
	y := make([]float64, len(x))
	for k := range x {
		y[k] = x[k] * g.mw[k]
	}
	return g.SetStateTPY(t, p, y)
}

func (g *IdealGas) SetStateUV(u, v float64, y []float64) error {
	if !(v > 0) || math.IsInf(v, 0) || math.IsNaN(u) {
		return fmt.Errorf("%w: u=%g v=%g", ErrInvalidState, u, v)
	}
	saved := g.save()
	if err := g.setMassFractions(y); err != nil {
		return err
	}
	g.rho = 1 / v
	if err := g.solveTemperature(u, false); err != nil {
		g.restore(saved)
		return err
	}
	return nil
}

func (g *IdealGas) SetStateHP(h, p float64, y []float64) error {
	if !(p > 0) || math.IsInf(p, 0) || math.IsNaN(h) {
		return fmt.Errorf("%w: h=%g p=%g", ErrInvalidState, h, p)
	}
	saved := g.save()
	if err := g.setMassFractions(y); err != nil {
		return err
	}
	if err := g.solveTemperature(h, true); err != nil {
		g.restore(saved)
		return err
	}
	g.rho = p * g.meanMW / (GasConstant * g.t)
	return nil
}

func (g *IdealGas) Clone() Phase {
	c := *g
	c.y = append([]float64(nil), g.y...)
	c.cpR = append([]float64(nil), g.cpR...)
	c.hRT = append([]float64(nil), g.hRT...)
	c.sR = append([]float64(nil), g.sR...)
	return &c
}

func checkTemperature(t float64) error {
	if !(t > 0) || math.IsInf(t, 0) {
		return fmt.Errorf("%w: temperature %g", ErrInvalidState, t)
	}
	return nil
}

func (g *IdealGas) setMassFractions(y []float64) error {
	if len(y) != len(g.y) {
		return fmt.Errorf("%w: %d mass fractions for %d species", ErrInvalidState, len(y), len(g.y))
	}
	for k, v := range y {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: mass fraction %d is %g", ErrInvalidState, k, v)
		}
	}
	sum := floats.Sum(y)
	if !(sum > 0) {
		return fmt.Errorf("%w: mass fractions sum to %g", ErrInvalidState, sum)
	}
	copy(g.y, y)
	floats.Scale(1/sum, g.y)
	g.updateMeanMW()
	return nil
}

func (g *IdealGas) updateMeanMW() {
	s := 0.0
	for k := range g.y {
		s += g.y[k] / g.mw[k]
	}
	g.meanMW = 1 / s
}

func (g *IdealGas) updateThermo() {
	for k := range g.species {
		g.cpR[k], g.hRT[k], g.sR[k] = g.species[k].Thermo.Eval(g.t)
	}
}

// solveTemperature finds T so that h (enthalpy) or u matches target at the
// current composition, starting from the current temperature.
func (g *IdealGas) solveTemperature(target float64, enthalpy bool) error {
	t := g.t
	if t < minTemperature || t > maxTemperature {
		t = 300
	}
	for i := 0; i < 100; i++ {
		g.t = t
		g.updateThermo()
		var f, df float64
		if enthalpy {
			f, df = g.EnthalpyMass()-target, g.CpMass()
		} else {
			f, df = g.IntEnergyMass()-target, g.CvMass()
		}
		dt := -f / df
		if lim := 0.5 * t; math.Abs(dt) > lim {
			dt = math.Copysign(lim, dt)
		}
		t = math.Min(math.Max(t+dt, minTemperature), maxTemperature)
		if math.Abs(dt) <= 1e-12*t {
			g.t = t
			g.updateThermo()
			return nil
		}
	}
	return fmt.Errorf("%w: target %g", ErrTemperatureSolve, target)
}

type savedState struct {
	t, rho, meanMW float64
	y              []float64
}

func (g *IdealGas) save() savedState {
	return savedState{t: g.t, rho: g.rho, meanMW: g.meanMW, y: append([]float64(nil), g.y...)}
}

func (g *IdealGas) restore(s savedState) {
	g.t, g.rho, g.meanMW = s.t, s.rho, s.meanMW
	copy(g.y, s.y)
	g.updateThermo()
}
