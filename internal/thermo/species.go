package thermo

import (
	"fmt"
	"math"
	"sort"
)

// atomicWeights in kg/kmol.
var atomicWeights = map[string]float64{
	"H":  1.008,
	"C":  12.011,
	"N":  14.007,
	"O":  15.999,
	"Ar": 39.95,
	"Pt": 195.084,
}

// NASA7 is a two-range 7-coefficient polynomial fit of cp, h and s.
type NASA7 struct {
	TMin, TMid, TMax float64
	Low, High        [7]float64
}

// Eval returns cp/R, h/RT and s/R at temperature t (standard pressure).
// Outside [TMin, TMax] the nearer range is extrapolated.
func (n NASA7) Eval(t float64) (cpR, hRT, sR float64) {
	a := &n.High
	if t < n.TMid {
		a = &n.Low
	}
	t2 := t * t
	t3 := t2 * t
	t4 := t3 * t
	cpR = a[0] + a[1]*t + a[2]*t2 + a[3]*t3 + a[4]*t4
	hRT = a[0] + a[1]*t/2 + a[2]*t2/3 + a[3]*t3/4 + a[4]*t4/5 + a[5]/t
	sR = a[0]*math.Log(t) + a[1]*t + a[2]*t2/2 + a[3]*t3/3 + a[4]*t4/4 + a[6]
	return cpR, hRT, sR
}

// Species describes one gas-phase species.
type Species struct {
	Name        string
	Composition map[string]float64
	Thermo      NASA7
}

// MolecularWeight returns the molar mass in kg/kmol.
func (s Species) MolecularWeight() (float64, error) {
	w := 0.0
	for el, n := range s.Composition {
		aw, ok := atomicWeights[el]
		if !ok {
			return 0, fmt.Errorf("thermo: species %q: unknown element %q", s.Name, el)
		}
		w += aw * n
	}
	if w <= 0 {
		return 0, fmt.Errorf("thermo: species %q: empty composition", s.Name)
	}
	return w, nil
}

// LookupSpecies returns the database entry for name.
func LookupSpecies(name string) (Species, bool) {
	s, ok := speciesDB[name]
	return s, ok
}

// SpeciesSet returns database entries for names, in order.
func SpeciesSet(names ...string) ([]Species, error) {
	out := make([]Species, 0, len(names))
	for _, n := range names {
		s, ok := speciesDB[n]
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownSpecies, n)
		}
		out = append(out, s)
	}
	return out, nil
}

// KnownSpecies lists the database in sorted order.
func KnownSpecies() []string {
	names := make([]string, 0, len(speciesDB))
	for n := range speciesDB {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

func nasa(low, high [7]float64) NASA7 {
	return NASA7{TMin: 200, TMid: 1000, TMax: 3500, Low: low, High: high}
}

// GRI-Mech 3.0 fits.
var speciesDB = map[string]Species{
	"H2": {
		Name:        "H2",
		Composition: map[string]float64{"H": 2},
		Thermo: nasa(
			[7]float64{2.34433112, 7.98052075e-03, -1.9478151e-05, 2.01572094e-08, -7.37611761e-12, -917.935173, 0.683010238},
			[7]float64{3.3372792, -4.94024731e-05, 4.99456778e-07, -1.79566394e-10, 2.00255376e-14, -950.158922, -3.20502331},
		),
	},
	"H": {
		Name:        "H",
		Composition: map[string]float64{"H": 1},
		Thermo: nasa(
			[7]float64{2.5, 7.05332819e-13, -1.99591964e-15, 2.30081632e-18, -9.27732332e-22, 25473.6599, -0.446682853},
			[7]float64{2.50000001, -2.30842973e-11, 1.61561948e-14, -4.73515235e-18, 4.98197357e-22, 25473.6599, -0.446682914},
		),
	},
	"O": {
		Name:        "O",
		Composition: map[string]float64{"O": 1},
		Thermo: nasa(
			[7]float64{3.1682671, -3.27931884e-03, 6.64306396e-06, -6.12806624e-09, 2.11265971e-12, 29122.2592, 2.05193346},
			[7]float64{2.56942078, -8.59741137e-05, 4.19484589e-08, -1.00177799e-11, 1.22833691e-15, 29217.5791, 4.78433864},
		),
	},
	"O2": {
		Name:        "O2",
		Composition: map[string]float64{"O": 2},
		Thermo: nasa(
			[7]float64{3.78245636, -2.99673416e-03, 9.84730201e-06, -9.68129509e-09, 3.24372837e-12, -1063.94356, 3.65767573},
			[7]float64{3.28253784, 1.48308754e-03, -7.57966669e-07, 2.09470555e-10, -2.16717794e-14, -1088.45772, 5.45323129},
		),
	},
	"OH": {
		Name:        "OH",
		Composition: map[string]float64{"O": 1, "H": 1},
		Thermo: nasa(
			[7]float64{3.99201543, -2.40131752e-03, 4.61793841e-06, -3.88113333e-09, 1.3641147e-12, 3615.08056, -0.103925458},
			[7]float64{3.09288767, 5.48429716e-04, 1.26505228e-07, -8.79461556e-11, 1.17412376e-14, 3858.657, 4.4766961},
		),
	},
	"H2O": {
		Name:        "H2O",
		Composition: map[string]float64{"H": 2, "O": 1},
		Thermo: nasa(
			[7]float64{4.19864056, -2.0364341e-03, 6.52040211e-06, -5.48797062e-09, 1.77197817e-12, -30293.7267, -0.849032208},
			[7]float64{3.03399249, 2.17691804e-03, -1.64072518e-07, -9.7041987e-11, 1.68200992e-14, -30004.2971, 4.9667701},
		),
	},
	"HO2": {
		Name:        "HO2",
		Composition: map[string]float64{"H": 1, "O": 2},
		Thermo: nasa(
			[7]float64{4.30179801, -4.74912051e-03, 2.11582891e-05, -2.42763894e-08, 9.29225124e-12, 294.80804, 3.71666245},
			[7]float64{4.0172109, 2.23982013e-03, -6.3365815e-07, 1.1424637e-10, -1.07908535e-14, 111.856713, 3.78510215},
		),
	},
	"H2O2": {
		Name:        "H2O2",
		Composition: map[string]float64{"H": 2, "O": 2},
		Thermo: nasa(
			[7]float64{4.27611269, -5.42822417e-04, 1.67335701e-05, -2.15770813e-08, 8.62454363e-12, -17702.5821, 3.43505074},
			[7]float64{4.16500285, 4.90831694e-03, -1.90139225e-06, 3.71185986e-10, -2.87908305e-14, -17861.7877, 2.91615662},
		),
	},
	"N2": {
		Name:        "N2",
		Composition: map[string]float64{"N": 2},
		Thermo: nasa(
			[7]float64{3.298677, 1.4082404e-03, -3.963222e-06, 5.641515e-09, -2.444854e-12, -1020.8999, 3.950372},
			[7]float64{2.92664, 1.4879768e-03, -5.68476e-07, 1.0097038e-10, -6.753351e-15, -922.7977, 5.980528},
		),
	},
	"AR": {
		Name:        "AR",
		Composition: map[string]float64{"Ar": 1},
		Thermo: nasa(
			[7]float64{2.5, 0, 0, 0, 0, -745.375, 4.366},
			[7]float64{2.5, 0, 0, 0, 0, -745.375, 4.366},
		),
	},
}
