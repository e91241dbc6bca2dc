package thermo

import "errors"

const (
	// GasConstant is the universal gas constant in J/kmol/K.
	GasConstant = 8314.46261815324
	// OneAtm is one standard atmosphere in Pa.
	OneAtm = 101325.0
	// RefPressure is the standard-state pressure of the polynomial fits in Pa.
	RefPressure = 1.0e5
	// StefanBoltzmann is the radiation constant in W/m^2/K^4.
	StefanBoltzmann = 5.670374419e-8
	// CalPerMol converts cal/mol to J/kmol.
	CalPerMol = 4184.0
)

// Temperature bounds for the caloric inversions.
const (
	minTemperature = 10.0
	maxTemperature = 2.0e4
)

var (
	// ErrInvalidState indicates a state that cannot be represented
	// (non-positive temperature or density, wrong length, negative amounts).
	ErrInvalidState = errors.New("thermo: invalid state")

	// ErrTemperatureSolve indicates the caloric inversion did not converge.
	ErrTemperatureSolve = errors.New("thermo: temperature iteration did not converge")

	// ErrUnknownSpecies indicates a species name absent from the phase or database.
	ErrUnknownSpecies = errors.New("thermo: unknown species")
)
