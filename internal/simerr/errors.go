package simerr

import (
	"errors"
	"fmt"
)

// Kind classifies a failure so callers can react without string matching.
type Kind int

const (
	// Configuration marks topology or parameter problems detected before or
	// between integration steps.
	Configuration Kind = iota + 1
	// Numerical marks integrator or state-provider failures during Advance.
	Numerical
	// Clipping marks negative species amounts that were reset to zero.
	Clipping
)

func (k Kind) String() string {
	switch k {
	case Configuration:
		return "configuration error"
	case Numerical:
		return "numerical error"
	case Clipping:
		return "state clipping"
	default:
		return "unknown error"
	}
}

// Causes, wrapped by Error.
var (
	// ErrUninitialized indicates Advance or Step before Initialize.
	ErrUninitialized = errors.New("reactornet: network not initialized")

	// ErrTopologyChanged indicates a reactor or connector was attached or
	// detached after the last Initialize.
	ErrTopologyChanged = errors.New("reactornet: topology changed since initialization")

	// ErrUnknownReactor indicates a connector endpoint that is not part of the network.
	ErrUnknownReactor = errors.New("reactornet: connector references unknown reactor")

	// ErrUnknownComponent indicates a component name or index outside the layout.
	ErrUnknownComponent = errors.New("reactornet: unknown component")

	// ErrNoSpecies indicates a reactor whose phase has no species.
	ErrNoSpecies = errors.New("reactornet: phase has no species")

	// ErrAliasedPhase indicates two nodes owning the same phase object.
	ErrAliasedPhase = errors.New("reactornet: phase shared between reactors")

	// ErrInvalidParameter indicates a parameter outside its valid range.
	ErrInvalidParameter = errors.New("reactornet: parameter out of valid bounds")

	// ErrDimensionMismatch indicates a slice of the wrong length.
	ErrDimensionMismatch = errors.New("reactornet: dimension mismatch")

	// ErrStepTooSmall indicates the step size fell below the minimum.
	ErrStepTooSmall = errors.New("reactornet: step size below minimum")

	// ErrConvergence indicates repeated corrector failures.
	ErrConvergence = errors.New("reactornet: corrector failed to converge")

	// ErrTooManySteps indicates the per-call step budget was exhausted.
	ErrTooManySteps = errors.New("reactornet: maximum number of steps exceeded")

	// ErrNonFinite indicates NaN or Inf in the state or right-hand side.
	ErrNonFinite = errors.New("reactornet: non-finite value (NaN or Inf detected)")

	// ErrSingularMatrix indicates the iteration matrix could not be factored.
	ErrSingularMatrix = errors.New("reactornet: singular iteration matrix")

	// ErrThermoState indicates the state provider rejected a state.
	ErrThermoState = errors.New("reactornet: state provider cannot represent state")

	// ErrNegativeAmount indicates negative species amounts were clipped.
	ErrNegativeAmount = errors.New("reactornet: negative species amounts clipped")

	// ErrExcessiveClipping indicates accumulated clipping beyond the limit.
	ErrExcessiveClipping = errors.New("reactornet: accumulated clipping exceeds limit")
)

// Error carries the kind, the failing operation and, for numerical
// failures, the time and state at which the failure occurred.
type Error struct {
	Kind  Kind
	Op    string
	Time  float64
	State []float64
	Err   error
}

func (e *Error) Error() string {
	if e.Kind == Numerical || e.Kind == Clipping {
		return fmt.Sprintf("%s: %s at t=%g: %v", e.Op, e.Kind, e.Time, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Configf returns a Configuration error for op.
func Configf(op, format string, args ...any) error {
	return &Error{Kind: Configuration, Op: op, Err: fmt.Errorf(format, args...)}
}

// NumericalAt wraps err as a Numerical error at time t. The state is copied.
func NumericalAt(op string, t float64, y []float64, err error) error {
	return &Error{Kind: Numerical, Op: op, Time: t, State: clone(y), Err: err}
}

// ClippingAt reports clipped species amounts at time t.
func ClippingAt(op string, t, amount float64) error {
	return &Error{Kind: Clipping, Op: op, Time: t, Err: fmt.Errorf("%w: total %g", ErrNegativeAmount, amount)}
}

// Is reports whether err is an *Error of the given kind.
func Is(err error, k Kind) bool {
	return KindOf(err) == k
}

// KindOf returns the kind of the outermost *Error in err's chain, or 0.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return 0
}

func clone(y []float64) []float64 {
	if y == nil {
		return nil
	}
	out := make([]float64, len(y))
	copy(out, y)
	return out
}
