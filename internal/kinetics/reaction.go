package kinetics

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"github.com/san-kum/reactornet/internal/thermo"
)

// Arrhenius is k = A * T^B * exp(-Ea / RT) with Ea in J/kmol and A in
// kmol, m, s units.
type Arrhenius struct {
	A, B, Ea float64
}

// Rate evaluates the rate constant at temperature t.
func (a Arrhenius) Rate(t float64) float64 {
	k := a.A
	if a.B != 0 {
		k *= math.Pow(t, a.B)
	}
	if a.Ea != 0 {
		k *= math.Exp(-a.Ea / (thermo.GasConstant * t))
	}
	return k
}

// Reaction is an elementary reaction written as an equation such as
// "H + O2 + M <=> HO2 + M". "<=>" marks a reversible reaction, "=>" an
// irreversible one, and "M" a third body.
type Reaction struct {
	Equation     string
	Rate         Arrhenius
	Efficiencies map[string]float64
}

type term struct {
	name string
	nu   float64
}

type parsedReaction struct {
	reactants  []term
	products   []term
	reversible bool
	thirdBody  bool
}

func parseEquation(eq string) (parsedReaction, error) {
	var p parsedReaction
	var lhs, rhs string
	if l, r, ok := strings.Cut(eq, "<=>"); ok {
		lhs, rhs, p.reversible = l, r, true
	} else if l, r, ok := strings.Cut(eq, "=>"); ok {
		lhs, rhs = l, r
	} else {
		return p, fmt.Errorf("kinetics: reaction %q: missing '=>' or '<=>'", eq)
	}
	var mL, mR bool
	var err error
	if p.reactants, mL, err = parseSide(lhs); err != nil {
		return p, fmt.Errorf("kinetics: reaction %q: %w", eq, err)
	}
	if p.products, mR, err = parseSide(rhs); err != nil {
		return p, fmt.Errorf("kinetics: reaction %q: %w", eq, err)
	}
	if mL != mR {
		return p, fmt.Errorf("kinetics: reaction %q: third body on one side only", eq)
	}
	p.thirdBody = mL
	if len(p.reactants) == 0 || len(p.products) == 0 {
		return p, fmt.Errorf("kinetics: reaction %q: empty side", eq)
	}
	return p, nil
}

func parseSide(s string) ([]term, bool, error) {
	var out []term
	third := false
	for _, tok := range strings.Split(s, " + ") {
		tok = strings.TrimSpace(tok)
		if tok == "" {
			return nil, false, fmt.Errorf("empty term")
		}
		if tok == "M" {
			third = true
			continue
		}
		nu := 1.0
		name := tok
		if c, n, ok := strings.Cut(tok, " "); ok {
			v, err := strconv.ParseFloat(c, 64)
			if err != nil {
				return nil, false, fmt.Errorf("bad coefficient in %q", tok)
			}
			nu, name = v, strings.TrimSpace(n)
		}
		merged := false
		for i := range out {
			if out[i].name == name {
				out[i].nu += nu
				merged = true
			}
		}
		if !merged {
			out = append(out, term{name: name, nu: nu})
		}
	}
	return out, third, nil
}

// powNu raises c to a stoichiometric coefficient.
func powNu(c, nu float64) float64 {
	switch nu {
	case 1:
		return c
	case 2:
		return c * c
	case 3:
		return c * c * c
	}
	return math.Pow(c, nu)
}
