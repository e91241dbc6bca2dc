package experiment

import (
	"sort"

	"github.com/san-kum/reactornet/internal/config"
	"github.com/san-kum/reactornet/internal/funcs"
	"github.com/san-kum/reactornet/internal/integrators"
	"github.com/san-kum/reactornet/internal/kinetics"
	"github.com/san-kum/reactornet/internal/reactor"
	"github.com/san-kum/reactornet/internal/simerr"
)

// Registry resolves the names used in network descriptions.
type Registry struct {
	mechanisms  map[string]func() kinetics.Mechanism
	surfaces    map[string]func() kinetics.SurfaceMechanism
	integrators map[string]func(integrators.Options) (integrators.Solver, error)
	functions   map[string]func(*config.FuncConfig) (funcs.Func1, error)
}

func NewRegistry() *Registry {
	r := &Registry{
		mechanisms:  make(map[string]func() kinetics.Mechanism),
		surfaces:    make(map[string]func() kinetics.SurfaceMechanism),
		integrators: make(map[string]func(integrators.Options) (integrators.Solver, error)),
		functions:   make(map[string]func(*config.FuncConfig) (funcs.Func1, error)),
	}

	r.mechanisms["h2o2"] = kinetics.H2O2
	r.mechanisms["air"] = kinetics.Air
	r.surfaces["pt-h2"] = kinetics.PtH2

	for _, name := range integrators.Names() {
		r.integrators[name] = func(o integrators.Options) (integrators.Solver, error) {
			return integrators.New(name, o)
		}
	}

	r.functions["const"] = func(c *config.FuncConfig) (funcs.Func1, error) {
		return funcs.Const(c.Value), nil
	}
	r.functions["step"] = func(c *config.FuncConfig) (funcs.Func1, error) {
		return funcs.Step{At: c.At, Before: c.Before, After: c.After}, nil
	}
	r.functions["pulse"] = func(c *config.FuncConfig) (funcs.Func1, error) {
		if c.Width < 0 {
			return nil, simerr.Configf("experiment.GetFunc", "%w: pulse width %g is negative", simerr.ErrInvalidParameter, c.Width)
		}
		return funcs.Pulse{Start: c.Start, Width: c.Width, Amplitude: c.Amplitude}, nil
	}
	r.functions["sin"] = func(c *config.FuncConfig) (funcs.Func1, error) {
		return funcs.Sin{Amplitude: c.Amplitude, Omega: c.Omega, Phase: c.Phase}, nil
	}
	r.functions["gaussian"] = func(c *config.FuncConfig) (funcs.Func1, error) {
		if !(c.FWHM > 0) {
			return nil, simerr.Configf("experiment.GetFunc", "%w: gaussian fwhm %g must be positive", simerr.ErrInvalidParameter, c.FWHM)
		}
		return funcs.Gaussian{Amplitude: c.Amplitude, Center: c.Center, FWHM: c.FWHM}, nil
	}
	r.functions["poly"] = func(c *config.FuncConfig) (funcs.Func1, error) {
		return funcs.Poly(append([]float64(nil), c.Coeffs...)), nil
	}
	r.functions["tabulated"] = func(c *config.FuncConfig) (funcs.Func1, error) {
		return funcs.NewTabulated(c.X, c.Y, c.Previous)
	}

	return r
}

func (r *Registry) GetMechanism(name string) (kinetics.Mechanism, error) {
	fn, ok := r.mechanisms[name]
	if !ok {
		return kinetics.Mechanism{}, simerr.Configf("experiment.GetMechanism", "%w: unknown mechanism %q", simerr.ErrUnknownComponent, name)
	}
	return fn(), nil
}

func (r *Registry) GetSurfaceMechanism(name string) (kinetics.SurfaceMechanism, error) {
	fn, ok := r.surfaces[name]
	if !ok {
		return kinetics.SurfaceMechanism{}, simerr.Configf("experiment.GetSurfaceMechanism", "%w: unknown surface mechanism %q", simerr.ErrUnknownComponent, name)
	}
	return fn(), nil
}

func (r *Registry) GetIntegrator(name string, o integrators.Options) (integrators.Solver, error) {
	fn, ok := r.integrators[name]
	if !ok {
		return nil, simerr.Configf("experiment.GetIntegrator", "%w: unknown integrator %q", simerr.ErrInvalidParameter, name)
	}
	return fn(o)
}

func (r *Registry) GetKind(name string) (reactor.Kind, error) {
	return reactor.ParseKind(name)
}

// GetFunc builds the function described by c. A nil c yields nil.
func (r *Registry) GetFunc(c *config.FuncConfig) (funcs.Func1, error) {
	if c == nil {
		return nil, nil
	}
	fn, ok := r.functions[c.Type]
	if !ok {
		return nil, simerr.Configf("experiment.GetFunc", "%w: unknown function %q", simerr.ErrUnknownComponent, c.Type)
	}
	return fn(c)
}

func (r *Registry) ListMechanisms() []string  { return sortedKeys(r.mechanisms) }
func (r *Registry) ListSurfaces() []string    { return sortedKeys(r.surfaces) }
func (r *Registry) ListIntegrators() []string { return sortedKeys(r.integrators) }
func (r *Registry) ListFunctions() []string   { return sortedKeys(r.functions) }
func (r *Registry) ListKinds() []string       { return reactor.Kinds() }

func sortedKeys[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
