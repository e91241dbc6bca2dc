package thermo

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Surface holds site coverages of an adsorbed phase.
type Surface struct {
	name        string
	siteDensity float64
	species     []string
	sizes       []float64
	coverages   []float64
}

// NewSurface builds a surface phase with all sites in the first species.
// siteDensity is in kmol/m^2; sizes may be nil (one site each).
func NewSurface(name string, siteDensity float64, species []string, sizes []float64) (*Surface, error) {
	if len(species) == 0 {
		return nil, fmt.Errorf("thermo: surface %q has no species", name)
	}
	if !(siteDensity > 0) {
		return nil, fmt.Errorf("%w: surface %q site density %g", ErrInvalidState, name, siteDensity)
	}
	if sizes == nil {
		sizes = make([]float64, len(species))
		for k := range sizes {
			sizes[k] = 1
		}
	}
	if len(sizes) != len(species) {
		return nil, fmt.Errorf("thermo: surface %q: %d sizes for %d species", name, len(sizes), len(species))
	}
	s := &Surface{
		name:        name,
		siteDensity: siteDensity,
		species:     append([]string(nil), species...),
		sizes:       append([]float64(nil), sizes...),
		coverages:   make([]float64, len(species)),
	}
	s.coverages[0] = 1
	return s, nil
}

func (s *Surface) Name() string               { return s.name }
func (s *Surface) NSpecies() int              { return len(s.species) }
func (s *Surface) SpeciesName(k int) string   { return s.species[k] }
func (s *Surface) SiteDensity() float64       { return s.siteDensity }
func (s *Surface) Size(k int) float64         { return s.sizes[k] }
func (s *Surface) Coverage(k int) float64     { return s.coverages[k] }
func (s *Surface) GetCoverages(dst []float64) { copy(dst, s.coverages) }

func (s *Surface) SpeciesIndex(name string) int {
	for k, n := range s.species {
		if n == name {
			return k
		}
	}
	return -1
}

// SetCoverages replaces the coverages, normalized to sum to one.
func (s *Surface) SetCoverages(theta []float64) error {
	if len(theta) != len(s.coverages) {
		return fmt.Errorf("%w: %d coverages for %d surface species", ErrInvalidState, len(theta), len(s.coverages))
	}
	for k, v := range theta {
		if v < 0 || math.IsNaN(v) || math.IsInf(v, 0) {
			return fmt.Errorf("%w: coverage %d is %g", ErrInvalidState, k, v)
		}
	}
	sum := floats.Sum(theta)
	if !(sum > 0) {
		return fmt.Errorf("%w: coverages sum to %g", ErrInvalidState, sum)
	}
	copy(s.coverages, theta)
	floats.Scale(1/sum, s.coverages)
	return nil
}

// GetConcentrations writes surface concentrations in kmol/m^2.
func (s *Surface) GetConcentrations(dst []float64) {
	for k := range s.coverages {
		dst[k] = s.siteDensity * s.coverages[k] / s.sizes[k]
	}
}

func (s *Surface) Clone() *Surface {
	c := *s
	c.coverages = append([]float64(nil), s.coverages...)
	return &c
}
