package kinetics

import (
	"fmt"
	"sort"

	"github.com/san-kum/reactornet/internal/thermo"
)

// Mechanism is a named gas species set with its reactions.
type Mechanism struct {
	Name      string
	Species   []string
	Reactions []Reaction
}

// NewGas builds an ideal gas over the mechanism species.
func (m Mechanism) NewGas() (*thermo.IdealGas, error) {
	return thermo.NewIdealGasFromNames(m.Name, m.Species...)
}

// NewKinetics compiles the reactions against gas.
func (m Mechanism) NewKinetics(gas thermo.View) (*MassAction, error) {
	return NewMassAction(gas, m.Reactions)
}

// SurfaceMechanism is a catalytic surface bound to a gas mechanism.
type SurfaceMechanism struct {
	Name        string
	Gas         string
	SiteDensity float64
	Species     []string
	Sizes       []float64
	Reactions   []Reaction
}

// NewSurface builds the surface phase with all sites vacant.
func (m SurfaceMechanism) NewSurface() (*thermo.Surface, error) {
	return thermo.NewSurface(m.Name, m.SiteDensity, m.Species, m.Sizes)
}

// NewKinetics compiles the surface reactions.
func (m SurfaceMechanism) NewKinetics(gas thermo.View, surf *thermo.Surface) (*Interface, error) {
	return NewInterface(gas, surf, m.Reactions)
}

var mechanisms = map[string]func() Mechanism{
	"h2o2": H2O2,
	"air":  Air,
}

var surfaceMechanisms = map[string]func() SurfaceMechanism{
	"pt-h2": PtH2,
}

// Lookup returns a built-in gas mechanism.
func Lookup(name string) (Mechanism, error) {
	f, ok := mechanisms[name]
	if !ok {
		return Mechanism{}, fmt.Errorf("kinetics: unknown mechanism %q", name)
	}
	return f(), nil
}

// LookupSurface returns a built-in surface mechanism.
func LookupSurface(name string) (SurfaceMechanism, error) {
	f, ok := surfaceMechanisms[name]
	if !ok {
		return SurfaceMechanism{}, fmt.Errorf("kinetics: unknown surface mechanism %q", name)
	}
	return f(), nil
}

// Names lists built-in gas mechanisms.
func Names() []string {
	out := make([]string, 0, len(mechanisms))
	for n := range mechanisms {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

const cal = thermo.CalPerMol

// H2O2 is a reduced reversible hydrogen-oxygen mechanism with N2 and AR as
// inert colliders.
func H2O2() Mechanism {
	return Mechanism{
		Name:    "h2o2",
		Species: []string{"H2", "H", "O", "O2", "OH", "H2O", "HO2", "H2O2", "AR", "N2"},
		Reactions: []Reaction{
			{Equation: "2 O + M <=> O2 + M", Rate: Arrhenius{A: 1.2e11, B: -1.0},
				Efficiencies: map[string]float64{"AR": 0.83, "H2": 2.4, "H2O": 15.4}},
			{Equation: "O + H + M <=> OH + M", Rate: Arrhenius{A: 5.0e11, B: -1.0},
				Efficiencies: map[string]float64{"AR": 0.7, "H2": 2.0, "H2O": 6.0}},
			{Equation: "O + H2 <=> H + OH", Rate: Arrhenius{A: 38.7, B: 2.7, Ea: 6260 * cal}},
			{Equation: "O + HO2 <=> OH + O2", Rate: Arrhenius{A: 2.0e10}},
			{Equation: "O + H2O2 <=> OH + HO2", Rate: Arrhenius{A: 9.63e3, B: 2.0, Ea: 4000 * cal}},
			{Equation: "H + O2 + M <=> HO2 + M", Rate: Arrhenius{A: 6.366e14, B: -1.72, Ea: 524.8 * cal},
				Efficiencies: map[string]float64{"H2": 2.0, "H2O": 11.0, "O2": 0.78, "AR": 0.67}},
			{Equation: "H + O2 <=> O + OH", Rate: Arrhenius{A: 3.547e12, B: -0.406, Ea: 16599 * cal}},
			{Equation: "2 H + M <=> H2 + M", Rate: Arrhenius{A: 1.0e12, B: -1.0},
				Efficiencies: map[string]float64{"AR": 0.63}},
			{Equation: "H + OH + M <=> H2O + M", Rate: Arrhenius{A: 2.2e16, B: -2.0},
				Efficiencies: map[string]float64{"AR": 0.38, "H2": 0.73, "H2O": 3.65}},
			{Equation: "H + HO2 <=> O + H2O", Rate: Arrhenius{A: 3.97e9, Ea: 671 * cal}},
			{Equation: "H + HO2 <=> O2 + H2", Rate: Arrhenius{A: 4.48e10, Ea: 1068 * cal}},
			{Equation: "H + HO2 <=> 2 OH", Rate: Arrhenius{A: 8.4e10, Ea: 635 * cal}},
			{Equation: "H + H2O2 <=> HO2 + H2", Rate: Arrhenius{A: 1.21e4, B: 2.0, Ea: 5200 * cal}},
			{Equation: "H + H2O2 <=> OH + H2O", Rate: Arrhenius{A: 1.0e10, Ea: 3600 * cal}},
			{Equation: "OH + H2 <=> H + H2O", Rate: Arrhenius{A: 2.16e5, B: 1.51, Ea: 3430 * cal}},
			{Equation: "2 OH <=> O + H2O", Rate: Arrhenius{A: 35.7, B: 2.4, Ea: -2110 * cal}},
			{Equation: "OH + HO2 <=> O2 + H2O", Rate: Arrhenius{A: 1.45e10, Ea: -500 * cal}},
			{Equation: "2 HO2 <=> O2 + H2O2", Rate: Arrhenius{A: 1.3e8, Ea: -1630 * cal}},
			{Equation: "OH + H2O2 <=> HO2 + H2O", Rate: Arrhenius{A: 2.0e9, Ea: 427 * cal}},
			{Equation: "2 OH + M <=> H2O2 + M", Rate: Arrhenius{A: 2.3e12, B: -0.9, Ea: -1700 * cal},
				Efficiencies: map[string]float64{"AR": 0.7, "H2": 2.0, "H2O": 6.0}},
		},
	}
}

// Air is an inert O2/N2/AR mixture.
func Air() Mechanism {
	return Mechanism{Name: "air", Species: []string{"O2", "N2", "AR"}}
}

// PtH2 is a small hydrogen oxidation model on platinum over the h2o2 gas.
func PtH2() SurfaceMechanism {
	return SurfaceMechanism{
		Name:        "pt-h2",
		Gas:         "h2o2",
		SiteDensity: 2.7063e-8,
		Species:     []string{"PT(S)", "H(S)", "O(S)", "OH(S)"},
		Reactions: []Reaction{
			{Equation: "H2 + 2 PT(S) => 2 H(S)", Rate: Arrhenius{A: 4.6e13}},
			{Equation: "2 H(S) => H2 + 2 PT(S)", Rate: Arrhenius{A: 3.7e17, Ea: 6.74e7}},
			{Equation: "O2 + 2 PT(S) => 2 O(S)", Rate: Arrhenius{A: 1.8e13}},
			{Equation: "H(S) + O(S) => OH(S) + PT(S)", Rate: Arrhenius{A: 3.7e17, Ea: 1.15e7}},
			{Equation: "H(S) + OH(S) => H2O + 2 PT(S)", Rate: Arrhenius{A: 3.7e17, Ea: 1.74e7}},
		},
	}
}
