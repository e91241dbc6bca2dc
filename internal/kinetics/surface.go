package kinetics

import (
	"fmt"
	"math"

	"github.com/san-kum/reactornet/internal/thermo"
)

type surfTerm struct {
	k       int
	nu      float64
	surface bool
}

type surfReaction struct {
	equation  string
	reactants []surfTerm
	products  []surfTerm
	rate      Arrhenius
}

// Interface is irreversible mass-action kinetics on a catalytic surface.
// Gas concentrations are in kmol/m^3, surface concentrations in kmol/m^2,
// and rates in kmol/m^2/s.
type Interface struct {
	ngas, nsurf int
	rxns        []surfReaction
	mult        []float64

	gasConc, surfConc []float64
}

// NewInterface compiles surface reactions against a gas and a surface phase.
// Names are looked up on the surface first. Every reaction must conserve
// sites.
func NewInterface(gas thermo.View, surf *thermo.Surface, reactions []Reaction) (*Interface, error) {
	s := &Interface{
		ngas:     gas.NSpecies(),
		nsurf:    surf.NSpecies(),
		mult:     make([]float64, len(reactions)),
		gasConc:  make([]float64, gas.NSpecies()),
		surfConc: make([]float64, surf.NSpecies()),
	}
	for i, r := range reactions {
		p, err := parseEquation(r.Equation)
		if err != nil {
			return nil, err
		}
		if p.reversible || p.thirdBody {
			return nil, fmt.Errorf("kinetics: surface reaction %q must be irreversible without third body", r.Equation)
		}
		sr := surfReaction{equation: r.Equation, rate: r.Rate}
		if sr.reactants, err = resolveSurface(gas, surf, r.Equation, p.reactants); err != nil {
			return nil, err
		}
		if sr.products, err = resolveSurface(gas, surf, r.Equation, p.products); err != nil {
			return nil, err
		}
		sites := 0.0
		for _, t := range sr.products {
			if t.surface {
				sites += t.nu * surf.Size(t.k)
			}
		}
		for _, t := range sr.reactants {
			if t.surface {
				sites -= t.nu * surf.Size(t.k)
			}
		}
		if math.Abs(sites) > 1e-9 {
			return nil, fmt.Errorf("kinetics: surface reaction %q does not conserve sites", r.Equation)
		}
		s.rxns = append(s.rxns, sr)
		s.mult[i] = 1
	}
	return s, nil
}

func resolveSurface(gas thermo.View, surf *thermo.Surface, eq string, terms []term) ([]surfTerm, error) {
	out := make([]surfTerm, len(terms))
	for i, t := range terms {
		if k := surf.SpeciesIndex(t.name); k >= 0 {
			out[i] = surfTerm{k: k, nu: t.nu, surface: true}
			continue
		}
		k := gas.SpeciesIndex(t.name)
		if k < 0 {
			return nil, fmt.Errorf("kinetics: surface reaction %q: %w: %q", eq, thermo.ErrUnknownSpecies, t.name)
		}
		out[i] = surfTerm{k: k, nu: t.nu}
	}
	return out, nil
}

func (s *Interface) NReactions() int                { return len(s.rxns) }
func (s *Interface) ReactionEquation(i int) string  { return s.rxns[i].equation }
func (s *Interface) Multiplier(i int) float64       { return s.mult[i] }
func (s *Interface) SetMultiplier(i int, v float64) { s.mult[i] = v }

// NetProductionRates writes gas and surface species production rates per
// unit area.
func (s *Interface) NetProductionRates(gas thermo.View, surf *thermo.Surface, gasRates, surfRates []float64) error {
	if gas.NSpecies() != s.ngas || surf.NSpecies() != s.nsurf || len(gasRates) != s.ngas || len(surfRates) != s.nsurf {
		return fmt.Errorf("kinetics: surface evaluator dimension mismatch")
	}
	for k := range gasRates {
		gasRates[k] = 0
	}
	for k := range surfRates {
		surfRates[k] = 0
	}
	t := gas.Temperature()
	gas.GetConcentrations(s.gasConc)
	surf.GetConcentrations(s.surfConc)
	for i := range s.rxns {
		r := &s.rxns[i]
		q := r.rate.Rate(t) * s.mult[i]
		for _, tm := range r.reactants {
			c := s.gasConc[tm.k]
			if tm.surface {
				c = s.surfConc[tm.k]
			}
			q *= powNu(c, tm.nu)
		}
		if q == 0 {
			continue
		}
		for _, tm := range r.reactants {
			if tm.surface {
				surfRates[tm.k] -= tm.nu * q
			} else {
				gasRates[tm.k] -= tm.nu * q
			}
		}
		for _, tm := range r.products {
			if tm.surface {
				surfRates[tm.k] += tm.nu * q
			} else {
				gasRates[tm.k] += tm.nu * q
			}
		}
	}
	return nil
}
