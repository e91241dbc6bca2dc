package thermo

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseComposition parses "H2:2, O2:1, N2:3.76" into a name -> amount map.
func ParseComposition(s string) (map[string]float64, error) {
	out := map[string]float64{}
	for _, item := range strings.Split(s, ",") {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		name, val, ok := strings.Cut(item, ":")
		if !ok {
			return nil, fmt.Errorf("thermo: composition item %q: missing ':'", item)
		}
		v, err := strconv.ParseFloat(strings.TrimSpace(val), 64)
		if err != nil {
			return nil, fmt.Errorf("thermo: composition item %q: %w", item, err)
		}
		if v < 0 {
			return nil, fmt.Errorf("thermo: composition item %q: negative amount", item)
		}
		out[strings.TrimSpace(name)] += v
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("thermo: empty composition %q", s)
	}
	return out, nil
}

// MassFractions converts a named composition into a normalized mass
// fraction vector for v. When moles is true the amounts are mole-based.
func MassFractions(v View, comp map[string]float64, moles bool) ([]float64, error) {
	y := make([]float64, v.NSpecies())
	total := 0.0
	for name, amt := range comp {
		k := v.SpeciesIndex(name)
		if k < 0 {
			return nil, fmt.Errorf("%w: %q in phase %q", ErrUnknownSpecies, name, v.Name())
		}
		if moles {
			amt *= v.MolecularWeight(k)
		}
		y[k] += amt
		total += amt
	}
	if !(total > 0) {
		return nil, fmt.Errorf("%w: composition has zero total", ErrInvalidState)
	}
	for k := range y {
		y[k] /= total
	}
	return y, nil
}

// SetStateTPString sets p from temperature, pressure and a mole-based
// composition string.
func SetStateTPString(p Phase, t, pressure float64, composition string) error {
	comp, err := ParseComposition(composition)
	if err != nil {
		return err
	}
	y, err := MassFractions(p, comp, true)
	if err != nil {
		return err
	}
	return p.SetStateTPY(t, pressure, y)
}
