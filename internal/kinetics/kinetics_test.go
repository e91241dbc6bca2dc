package kinetics

import (
	"errors"
	"math"
	"testing"

	"github.com/san-kum/reactornet/internal/thermo"
)

func TestParseEquation(t *testing.T) {
	tests := []struct {
		eq         string
		nReac      int
		nProd      int
		reversible bool
		third      bool
		wantErr    bool
	}{
		{"H + O2 <=> O + OH", 2, 2, true, false, false},
		{"2 O + M <=> O2 + M", 1, 1, true, true, false},
		{"H2 + 2 PT(S) => 2 H(S)", 2, 1, false, false, false},
		{"OH + OH <=> O + H2O", 1, 2, true, false, false},
		{"H + O2 + M <=> HO2", 0, 0, false, false, true},
		{"H + O2 -> HO2", 0, 0, false, false, true},
		{"x H <=> H2", 0, 0, false, false, true},
	}

	for _, tt := range tests {
		t.Run(tt.eq, func(t *testing.T) {
			p, err := parseEquation(tt.eq)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseEquation() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}
			if len(p.reactants) != tt.nReac || len(p.products) != tt.nProd {
				t.Errorf("got %d reactants, %d products, want %d, %d", len(p.reactants), len(p.products), tt.nReac, tt.nProd)
			}
			if p.reversible != tt.reversible || p.thirdBody != tt.third {
				t.Errorf("reversible=%v third=%v, want %v %v", p.reversible, p.thirdBody, tt.reversible, tt.third)
			}
		})
	}
}

func radicalPool(t *testing.T) (*thermo.IdealGas, *MassAction) {
	t.Helper()
	mech := H2O2()
	gas, err := mech.NewGas()
	if err != nil {
		t.Fatal(err)
	}
	kin, err := mech.NewKinetics(gas)
	if err != nil {
		t.Fatal(err)
	}
	if err := thermo.SetStateTPString(gas, 1500, thermo.OneAtm,
		"H2:2, O2:1, N2:4, H:0.01, O:0.01, OH:0.02, HO2:0.001, H2O2:0.001, H2O:0.1, AR:0.1"); err != nil {
		t.Fatal(err)
	}
	return gas, kin
}

func TestMassActionConservesElements(t *testing.T) {
	gas, kin := radicalPool(t)
	wdot := make([]float64, gas.NSpecies())
	if err := kin.NetProductionRates(gas, wdot); err != nil {
		t.Fatal(err)
	}

	mass, scale := 0.0, 0.0
	for k, w := range wdot {
		mass += w * gas.MolecularWeight(k)
		scale += math.Abs(w * gas.MolecularWeight(k))
	}
	if scale == 0 {
		t.Fatal("all production rates are zero")
	}
	if math.Abs(mass) > 1e-10*scale {
		t.Errorf("net mass production = %v (scale %v), want 0", mass, scale)
	}
	for _, el := range gas.ElementNames() {
		n := 0.0
		for k, w := range wdot {
			n += w * gas.NAtoms(k, el)
		}
		if math.Abs(n) > 1e-10*scale {
			t.Errorf("element %s production = %v, want 0", el, n)
		}
	}
}

func TestMassActionDetailedBalance(t *testing.T) {
	gas, err := thermo.NewIdealGasFromNames("gas", "O", "H2", "H", "OH")
	if err != nil {
		t.Fatal(err)
	}
	kin, err := NewMassAction(gas, []Reaction{
		{Equation: "O + H2 <=> H + OH", Rate: Arrhenius{A: 38.7, B: 2.7, Ea: 6260 * cal}},
	})
	if err != nil {
		t.Fatal(err)
	}
	if err := gas.SetStateTPX(2000, thermo.OneAtm, []float64{0.25, 0.25, 0.25, 0.25}); err != nil {
		t.Fatal(err)
	}
	g0 := make([]float64, 4)
	gas.GetStandardGibbsRT(g0)
	kp := math.Exp(-(g0[2] + g0[3] - g0[0] - g0[1]))
	if err := gas.SetStateTPX(2000, thermo.OneAtm, []float64{0.25, 0.25, 0.25, 0.25 * kp}); err != nil {
		t.Fatal(err)
	}

	wdot := make([]float64, 4)
	if err := kin.NetProductionRates(gas, wdot); err != nil {
		t.Fatal(err)
	}
	c := make([]float64, 4)
	gas.GetConcentrations(c)
	fwd := Arrhenius{A: 38.7, B: 2.7, Ea: 6260 * cal}.Rate(2000) * c[0] * c[1]
	if math.Abs(wdot[0]) > 1e-9*fwd {
		t.Errorf("net rate at equilibrium = %v, forward rate %v", wdot[0], fwd)
	}
}

func TestMultipliers(t *testing.T) {
	gas, kin := radicalPool(t)
	for i := 0; i < kin.NReactions(); i++ {
		kin.SetMultiplier(i, 0)
	}
	wdot := make([]float64, gas.NSpecies())
	if err := kin.NetProductionRates(gas, wdot); err != nil {
		t.Fatal(err)
	}
	for k, w := range wdot {
		if w != 0 {
			t.Errorf("wdot[%s] = %v with zero multipliers, want 0", gas.SpeciesName(k), w)
		}
	}
	if kin.Multiplier(3) != 0 {
		t.Errorf("Multiplier(3) = %v, want 0", kin.Multiplier(3))
	}
}

func TestNewMassActionErrors(t *testing.T) {
	gas, err := thermo.NewIdealGasFromNames("gas", "H2", "O2", "H2O")
	if err != nil {
		t.Fatal(err)
	}
	tests := []struct {
		name string
		eq   string
		want error
	}{
		{"unknown species", "H + O2 <=> HO2", thermo.ErrUnknownSpecies},
		{"unbalanced", "H2 + O2 <=> H2O", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewMassAction(gas, []Reaction{{Equation: tt.eq}})
			if err == nil {
				t.Fatal("expected error")
			}
			if tt.want != nil && !errors.Is(err, tt.want) {
				t.Errorf("error = %v, want %v", err, tt.want)
			}
		})
	}
}

func h2o2Kinetics(t *testing.T) *MassAction {
	t.Helper()
	_, k := radicalPool(t)
	return k
}

func TestEvaluatorRejectsForeignPhase(t *testing.T) {
	gas, err := thermo.NewIdealGasFromNames("gas", "H2", "O2", "H2O")
	if err != nil {
		t.Fatal(err)
	}
	if err := h2o2Kinetics(t).NetProductionRates(gas, make([]float64, 3)); err == nil {
		t.Error("expected dimension error for a phase with a different species set")
	}
}

func TestSurfaceKinetics(t *testing.T) {
	mech := PtH2()
	gasMech, err := Lookup(mech.Gas)
	if err != nil {
		t.Fatal(err)
	}
	gas, err := gasMech.NewGas()
	if err != nil {
		t.Fatal(err)
	}
	if err := thermo.SetStateTPString(gas, 900, thermo.OneAtm, "H2:0.1, O2:0.1, N2:0.8"); err != nil {
		t.Fatal(err)
	}
	surf, err := mech.NewSurface()
	if err != nil {
		t.Fatal(err)
	}
	if err := surf.SetCoverages([]float64{0.97, 0.01, 0.01, 0.01}); err != nil {
		t.Fatal(err)
	}
	iface, err := mech.NewKinetics(gas, surf)
	if err != nil {
		t.Fatal(err)
	}
	gasRates := make([]float64, gas.NSpecies())
	surfRates := make([]float64, surf.NSpecies())
	if err := iface.NetProductionRates(gas, surf, gasRates, surfRates); err != nil {
		t.Fatal(err)
	}

	sites, scale := 0.0, 0.0
	for k, r := range surfRates {
		sites += r * surf.Size(k)
		scale += math.Abs(r)
	}
	if scale == 0 {
		t.Fatal("surface rates are all zero")
	}
	if math.Abs(sites) > 1e-12*scale {
		t.Errorf("net site production = %v, want 0", sites)
	}
	if h2 := gasRates[gas.SpeciesIndex("H2")]; h2 >= 0 {
		t.Errorf("H2 rate = %v, want consumption on a mostly vacant surface", h2)
	}

	if _, err := NewInterface(gas, surf, []Reaction{{Equation: "H2 + PT(S) => 2 H(S)"}}); err == nil {
		t.Error("expected site conservation error")
	}
	if _, err := NewInterface(gas, surf, []Reaction{{Equation: "H(S) + O(S) <=> OH(S) + PT(S)"}}); err == nil {
		t.Error("expected error for reversible surface reaction")
	}
}
