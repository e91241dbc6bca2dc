package thermo

// View is read-only access to a phase state.
type View interface {
	Name() string
	NSpecies() int
	SpeciesName(k int) string
	SpeciesNames() []string
	// SpeciesIndex returns -1 when name is absent.
	SpeciesIndex(name string) int
	MolecularWeight(k int) float64
	ElementNames() []string
	NAtoms(k int, element string) float64

	Temperature() float64
	Density() float64
	Pressure() float64
	MeanMolecularWeight() float64
	MassFraction(k int) float64
	GetMassFractions(dst []float64)
	GetMoleFractions(dst []float64)
	// GetConcentrations writes molar concentrations in kmol/m^3.
	GetConcentrations(dst []float64)

	EnthalpyMass() float64
	IntEnergyMass() float64
	CpMass() float64
	CvMass() float64
	// GetPartialMolarEnthalpies writes J/kmol.
	GetPartialMolarEnthalpies(dst []float64)
	GetPartialMolarIntEnergies(dst []float64)
	// GetStandardGibbsRT writes g0_k/RT at the reference pressure.
	GetStandardGibbsRT(dst []float64)
}

// Phase is a View that can be set and copied. Every setter replaces the
// full state or leaves it untouched on error.
type Phase interface {
	View
	SetStateTDY(t, rho float64, y []float64) error
	SetStateTPY(t, p float64, y []float64) error
	SetStateTPX(t, p float64, x []float64) error
	// SetStateUV takes specific internal energy (J/kg) and specific volume (m^3/kg).
	SetStateUV(u, v float64, y []float64) error
	// SetStateHP takes specific enthalpy (J/kg) and pressure (Pa).
	SetStateHP(h, p float64, y []float64) error
	Clone() Phase
}

type readOnly struct {
	View
}

// ReadOnly hides the setters of p.
func ReadOnly(p View) View {
	if r, ok := p.(readOnly); ok {
		return r
	}
	return readOnly{View: p}
}
