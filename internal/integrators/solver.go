package integrators

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/reactornet/internal/simerr"
)

// System is a problem in the factored form lhs ⊙ dy/dt = rhs. Rows whose
// lhs is zero are algebraic constraints rhs = 0.
type System interface {
	NEq() int
	Eval(t float64, y, lhs, rhs []float64) error
}

// JacobianFunc writes ∂F/∂y into jac, where F_i = rhs_i/lhs_i for
// differential rows and F_i = rhs_i for algebraic rows.
type JacobianFunc func(t float64, y []float64, jac *mat.Dense) error

// Options configures a solver. Zero values select defaults.
type Options struct {
	RelTol float64
	AbsTol float64
	// AbsTols overrides AbsTol per component when non-nil.
	AbsTols []float64

	MaxOrder    int
	MaxStep     float64
	MinStep     float64
	InitialStep float64

	MaxNonlinIters  int
	MaxErrTestFails int
	MaxConvFails    int
}

// DefaultOptions returns tight tolerances suited to stiff chemistry.
func DefaultOptions() Options {
	return Options{
		RelTol:          1e-9,
		AbsTol:          1e-15,
		MaxOrder:        5,
		MaxNonlinIters:  4,
		MaxErrTestFails: 10,
		MaxConvFails:    10,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.RelTol == 0 {
		o.RelTol = d.RelTol
	}
	if o.AbsTol == 0 && o.AbsTols == nil {
		o.AbsTol = d.AbsTol
	}
	if o.MaxOrder == 0 {
		o.MaxOrder = d.MaxOrder
	}
	if o.MaxNonlinIters == 0 {
		o.MaxNonlinIters = d.MaxNonlinIters
	}
	if o.MaxErrTestFails == 0 {
		o.MaxErrTestFails = d.MaxErrTestFails
	}
	if o.MaxConvFails == 0 {
		o.MaxConvFails = d.MaxConvFails
	}
	return o
}

func (o Options) validate(n int) error {
	const op = "integrators.Options"
	if !(o.RelTol > 0) {
		return simerr.Configf(op, "%w: relative tolerance %g", simerr.ErrInvalidParameter, o.RelTol)
	}
	if o.AbsTol < 0 {
		return simerr.Configf(op, "%w: absolute tolerance %g", simerr.ErrInvalidParameter, o.AbsTol)
	}
	if o.AbsTols != nil {
		if len(o.AbsTols) != n {
			return simerr.Configf(op, "%w: %d absolute tolerances for %d components", simerr.ErrDimensionMismatch, len(o.AbsTols), n)
		}
		for i, a := range o.AbsTols {
			if !(a >= 0) {
				return simerr.Configf(op, "%w: absolute tolerance %d is %g", simerr.ErrInvalidParameter, i, a)
			}
		}
	}
	if o.MaxOrder < 1 || o.MaxOrder > 5 {
		return simerr.Configf(op, "%w: max order %d not in [1, 5]", simerr.ErrInvalidParameter, o.MaxOrder)
	}
	if o.MaxStep < 0 || o.MinStep < 0 || o.InitialStep < 0 {
		return simerr.Configf(op, "%w: negative step limit", simerr.ErrInvalidParameter)
	}
	return nil
}

func (o Options) atol(i int) float64 {
	if o.AbsTols != nil {
		return o.AbsTols[i]
	}
	return o.AbsTol
}

// Stats reports solver work since Initialize.
type Stats struct {
	Steps          int
	Rejected       int
	RHSEvals       int
	JacEvals       int
	Factorizations int
	NonlinFailures int
	LastStep       float64
	NextStep       float64
	Order          int
}

// Solver advances a System one internal step at a time.
type Solver interface {
	Name() string
	Initialize(sys System, t0 float64, y0 []float64) error
	// Step takes one accepted step and never passes tStop.
	Step(tStop float64) (float64, error)
	Time() float64
	// State returns the current solution. The slice is owned by the solver.
	State() []float64
	// Interpolate evaluates the dense output of the last step.
	Interpolate(t float64, dst []float64) error
	SetJacobian(fn JacobianFunc)
	Options() Options
	SetOptions(o Options)
	Stats() Stats
}

var solvers = map[string]func(Options) Solver{
	"bdf":  func(o Options) Solver { return NewBDF(o) },
	"rk45": func(o Options) Solver { return NewRK45(o) },
}

// New returns the named solver.
func New(name string, o Options) (Solver, error) {
	f, ok := solvers[name]
	if !ok {
		return nil, simerr.Configf("integrators.New", "%w: unknown integrator %q", simerr.ErrInvalidParameter, name)
	}
	return f(o), nil
}

// Names lists the available solvers.
func Names() []string {
	out := make([]string, 0, len(solvers))
	for n := range solvers {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// errorWeights fills w with 1/(rtol|y| + atol).
func errorWeights(o Options, y, w []float64) {
	for i := range y {
		w[i] = 1 / (o.RelTol*math.Abs(y[i]) + o.atol(i))
	}
}

// wrms is the weighted root-mean-square norm over the rows selected by
// mask (all rows when mask is nil).
func wrms(v, w []float64, mask []bool) float64 {
	s, n := 0.0, 0
	for i := range v {
		if mask != nil && !mask[i] {
			continue
		}
		x := v[i] * w[i]
		s += x * x
		n++
	}
	if n == 0 {
		return 0
	}
	return math.Sqrt(s / float64(n))
}

func finite(v []float64) bool {
	for _, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return false
		}
	}
	return true
}

func checkDims(op string, sys System, y0 []float64) (int, error) {
	if sys == nil {
		return 0, simerr.Configf(op, "%w: nil system", simerr.ErrInvalidParameter)
	}
	n := sys.NEq()
	if n == 0 {
		return 0, simerr.Configf(op, "%w: system has no equations", simerr.ErrDimensionMismatch)
	}
	if len(y0) != n {
		return 0, simerr.Configf(op, "%w: initial state has %d components, system %d", simerr.ErrDimensionMismatch, len(y0), n)
	}
	if !finite(y0) {
		return 0, simerr.Configf(op, "%w: initial state", simerr.ErrNonFinite)
	}
	return n, nil
}

func stepError(op string, t float64, y []float64, format string, args ...any) error {
	return simerr.NumericalAt(op, t, y, fmt.Errorf(format, args...))
}
