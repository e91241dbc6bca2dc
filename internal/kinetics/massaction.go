package kinetics

import (
	"fmt"
	"math"

	"github.com/san-kum/reactornet/internal/thermo"
)

// Kinetics evaluates net molar production rates for a gas state. It only
// reads the state, so one evaluator may serve several reactors.
type Kinetics interface {
	NReactions() int
	ReactionEquation(i int) string
	// NetProductionRates writes kmol/m^3/s for every species of gas.
	NetProductionRates(gas thermo.View, wdot []float64) error
	Multiplier(i int) float64
	SetMultiplier(i int, m float64)
}

type stoich struct {
	k  int
	nu float64
}

type gasReaction struct {
	equation   string
	reactants  []stoich
	products   []stoich
	dnu        float64
	rate       Arrhenius
	reversible bool
	thirdBody  bool
	eff        []float64
}

// MassAction is reversible mass-action kinetics with Arrhenius rate
// constants. Reverse rates follow from the equilibrium constant of the
// bound species thermo.
type MassAction struct {
	nsp   int
	names []string
	rxns  []gasReaction
	mult  []float64

	conc, g0 []float64
}

// NewMassAction compiles reactions against the species of gas and checks
// element balance.
func NewMassAction(gas thermo.View, reactions []Reaction) (*MassAction, error) {
	nsp := gas.NSpecies()
	m := &MassAction{
		nsp:   nsp,
		names: gas.SpeciesNames(),
		rxns:  make([]gasReaction, 0, len(reactions)),
		mult:  make([]float64, len(reactions)),
		conc:  make([]float64, nsp),
		g0:    make([]float64, nsp),
	}
	for i, r := range reactions {
		p, err := parseEquation(r.Equation)
		if err != nil {
			return nil, err
		}
		gr := gasReaction{equation: r.Equation, rate: r.Rate, reversible: p.reversible, thirdBody: p.thirdBody}
		if gr.reactants, err = resolve(gas, r.Equation, p.reactants); err != nil {
			return nil, err
		}
		if gr.products, err = resolve(gas, r.Equation, p.products); err != nil {
			return nil, err
		}
		for _, s := range gr.products {
			gr.dnu += s.nu
		}
		for _, s := range gr.reactants {
			gr.dnu -= s.nu
		}
		if err := checkBalance(gas, r.Equation, gr.reactants, gr.products); err != nil {
			return nil, err
		}
		if gr.thirdBody {
			gr.eff = make([]float64, nsp)
			for k := range gr.eff {
				gr.eff[k] = 1
			}
			for name, e := range r.Efficiencies {
				if k := gas.SpeciesIndex(name); k >= 0 {
					gr.eff[k] = e
				}
			}
		}
		m.rxns = append(m.rxns, gr)
		m.mult[i] = 1
	}
	return m, nil
}

func resolve(gas thermo.View, eq string, terms []term) ([]stoich, error) {
	out := make([]stoich, len(terms))
	for i, t := range terms {
		k := gas.SpeciesIndex(t.name)
		if k < 0 {
			return nil, fmt.Errorf("kinetics: reaction %q: %w: %q", eq, thermo.ErrUnknownSpecies, t.name)
		}
		out[i] = stoich{k: k, nu: t.nu}
	}
	return out, nil
}

func checkBalance(gas thermo.View, eq string, reac, prod []stoich) error {
	for _, el := range gas.ElementNames() {
		n := 0.0
		for _, s := range prod {
			n += s.nu * gas.NAtoms(s.k, el)
		}
		for _, s := range reac {
			n -= s.nu * gas.NAtoms(s.k, el)
		}
		if math.Abs(n) > 1e-9 {
			return fmt.Errorf("kinetics: reaction %q does not balance element %s", eq, el)
		}
	}
	return nil
}

func (m *MassAction) NReactions() int                { return len(m.rxns) }
func (m *MassAction) ReactionEquation(i int) string  { return m.rxns[i].equation }
func (m *MassAction) Multiplier(i int) float64       { return m.mult[i] }
func (m *MassAction) SetMultiplier(i int, v float64) { m.mult[i] = v }

// SpeciesNames returns the species the evaluator was compiled against.
func (m *MassAction) SpeciesNames() []string {
	return append([]string(nil), m.names...)
}

func (m *MassAction) NetProductionRates(gas thermo.View, wdot []float64) error {
	if gas.NSpecies() != m.nsp || len(wdot) != m.nsp {
		return fmt.Errorf("kinetics: evaluator compiled for %d species, got phase with %d and output of %d",
			m.nsp, gas.NSpecies(), len(wdot))
	}
	for k := range wdot {
		wdot[k] = 0
	}
	if len(m.rxns) == 0 {
		return nil
	}
	t := gas.Temperature()
	gas.GetConcentrations(m.conc)
	gas.GetStandardGibbsRT(m.g0)
	logC0 := math.Log(thermo.RefPressure / (thermo.GasConstant * t))

	for i := range m.rxns {
		r := &m.rxns[i]
		kf := r.rate.Rate(t) * m.mult[i]
		if kf == 0 {
			continue
		}
		q := kf
		for _, s := range r.reactants {
			q *= powNu(m.conc[s.k], s.nu)
		}
		if r.reversible {
			rev := 1.0
			for _, s := range r.products {
				rev *= powNu(m.conc[s.k], s.nu)
			}
			if rev > 0 {
				// kr = kf / Kc with ln Kc = -dG0/RT + dnu ln(P0/RT).
				dg := 0.0
				for _, s := range r.products {
					dg += s.nu * m.g0[s.k]
				}
				for _, s := range r.reactants {
					dg -= s.nu * m.g0[s.k]
				}
				q -= kf * rev * math.Exp(math.Min(dg-r.dnu*logC0, 700))
			}
		}
		if r.thirdBody {
			cm := 0.0
			for k, e := range r.eff {
				cm += e * m.conc[k]
			}
			q *= cm
		}
		for _, s := range r.reactants {
			wdot[s.k] -= s.nu * q
		}
		for _, s := range r.products {
			wdot[s.k] += s.nu * q
		}
	}
	return nil
}
