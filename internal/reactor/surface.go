package reactor

import (
	"github.com/san-kum/reactornet/internal/simerr"
	"github.com/san-kum/reactornet/internal/thermo"
)

// SurfaceKinetics evaluates rates on a catalytic surface. Rates are
// kmol/m^2/s.
type SurfaceKinetics interface {
	NReactions() int
	ReactionEquation(i int) string
	Multiplier(i int) float64
	SetMultiplier(i int, m float64)
	NetProductionRates(gas thermo.View, surf *thermo.Surface, gasRates, surfRates []float64) error
}

// Surface is a catalytic wall inside a reactor. Its coverages are part of
// the reactor state.
type Surface struct {
	name  string
	area  float64
	phase *thermo.Surface
	trial *thermo.Surface
	kin   SurfaceKinetics
	host  *GasReactor

	sdotGas, sdotSurf []float64
}

// NewSurface binds surface kinetics to a coverage phase with the given
// area in m^2.
func NewSurface(name string, phase *thermo.Surface, kin SurfaceKinetics, area float64) (*Surface, error) {
	const op = "reactor.NewSurface"
	if phase == nil {
		return nil, simerr.Configf(op, "%w: surface %q has no phase", simerr.ErrInvalidParameter, name)
	}
	if !(area > 0) {
		return nil, simerr.Configf(op, "%w: surface %q area %g", simerr.ErrInvalidParameter, name, area)
	}
	return &Surface{
		name:     name,
		area:     area,
		phase:    phase,
		trial:    phase.Clone(),
		kin:      kin,
		sdotSurf: make([]float64, phase.NSpecies()),
	}, nil
}

func (s *Surface) Name() string              { return s.name }
func (s *Surface) Area() float64             { return s.area }
func (s *Surface) NSpecies() int             { return s.phase.NSpecies() }
func (s *Surface) SpeciesName(k int) string  { return s.phase.SpeciesName(k) }
func (s *Surface) Coverages(dst []float64)   { s.phase.GetCoverages(dst) }
func (s *Surface) Kinetics() SurfaceKinetics { return s.kin }

// SetArea changes the area; it takes effect at the next evaluation.
func (s *Surface) SetArea(a float64) error {
	if !(a > 0) {
		return simerr.Configf("reactor.Surface.SetArea", "%w: area %g", simerr.ErrInvalidParameter, a)
	}
	s.area = a
	return nil
}

// SetCoverages sets the committed coverages. Re-initialize the network
// afterwards.
func (s *Surface) SetCoverages(theta []float64) error {
	if err := s.phase.SetCoverages(theta); err != nil {
		return simerr.Configf("reactor.Surface.SetCoverages", "%w: %v", simerr.ErrInvalidParameter, err)
	}
	return s.trial.SetCoverages(theta)
}

func (s *Surface) validate(gas thermo.View) error {
	if s.kin == nil {
		return nil
	}
	s.sdotGas = make([]float64, gas.NSpecies())
	if err := s.kin.NetProductionRates(gas, s.phase, s.sdotGas, s.sdotSurf); err != nil {
		return simerr.Configf("reactor.Surface", "%w: surface %q kinetics do not match reactor phase: %v", simerr.ErrDimensionMismatch, s.name, err)
	}
	return nil
}

// load clips negative coverages and sets the committed or trial phase.
func (s *Surface) load(theta []float64, committed bool, scratch []float64) (float64, error) {
	clipped := 0.0
	scratch = scratch[:len(theta)]
	for k, v := range theta {
		if v < 0 {
			clipped -= v
			v = 0
		}
		scratch[k] = v
	}
	dst := s.trial
	if committed {
		dst = s.phase
	}
	if err := dst.SetCoverages(scratch); err != nil {
		return clipped, err
	}
	return clipped, nil
}

// eval adds the gas production of this surface (kmol/s) to prod, writes the
// coverage rows into rhs and returns the net mass produced into the gas.
func (s *Surface) eval(gas thermo.View, prod, rhs []float64) (float64, error) {
	for k := range rhs {
		rhs[k] = 0
	}
	if s.kin == nil {
		return 0, nil
	}
	if err := s.kin.NetProductionRates(gas, s.trial, s.sdotGas, s.sdotSurf); err != nil {
		return 0, err
	}
	mdot := 0.0
	for k, r := range s.sdotGas {
		prod[k] += s.area * r
		mdot += s.area * r * gas.MolecularWeight(k)
	}
	gamma := s.trial.SiteDensity()
	sum := 0.0
	for k := 1; k < len(rhs); k++ {
		rhs[k] = s.sdotSurf[k] * s.trial.Size(k) / gamma
		sum += rhs[k]
	}
	rhs[0] = -sum
	return mdot, nil
}

func (s *Surface) getState(dst []float64) { s.phase.GetCoverages(dst) }
