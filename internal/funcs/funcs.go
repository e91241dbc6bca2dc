// Package funcs provides pure scalar functions of one variable used to
// modulate connector rates (time-dependent wall velocity, heat flux, mass
// flow, or valve pressure response).
//
// Implementations must be pure: the same argument always yields the same
// value, with no observable side effects. The network may evaluate a
// function at trial times that are later rejected.
package funcs

import (
	"fmt"
	"math"
	"sort"
)

// Func1 is a scalar function of one variable.
type Func1 interface {
	Eval(x float64) float64
}

// Func adapts an ordinary function.
type Func func(float64) float64

func (f Func) Eval(x float64) float64 { return f(x) }

// Const is a constant function.
type Const float64

func (c Const) Eval(float64) float64 { return float64(c) }

// Step is Before for x < At and After otherwise.
type Step struct {
	At, Before, After float64
}

func (s Step) Eval(x float64) float64 {
	if x < s.At {
		return s.Before
	}
	return s.After
}

// Pulse is Amplitude on [Start, Start+Width) and zero elsewhere.
type Pulse struct {
	Start, Width, Amplitude float64
}

func (p Pulse) Eval(x float64) float64 {
	if x >= p.Start && x < p.Start+p.Width {
		return p.Amplitude
	}
	return 0
}

// Sin is Amplitude * sin(Omega*x + Phase).
type Sin struct {
	Amplitude, Omega, Phase float64
}

func (s Sin) Eval(x float64) float64 {
	return s.Amplitude * math.Sin(s.Omega*x+s.Phase)
}

// Gaussian is a peak of height Amplitude centred on Center with full
// width at half maximum FWHM.
type Gaussian struct {
	Amplitude, Center, FWHM float64
}

func (g Gaussian) Eval(x float64) float64 {
	tau := g.FWHM / (2 * math.Sqrt(math.Ln2))
	d := (x - g.Center) / tau
	return g.Amplitude * math.Exp(-d*d)
}

// Poly evaluates c[0] + c[1] x + c[2] x^2 + ...
type Poly []float64

func (p Poly) Eval(x float64) float64 {
	v := 0.0
	for i := len(p) - 1; i >= 0; i-- {
		v = v*x + p[i]
	}
	return v
}

// Tabulated interpolates between points. Outside the table the end values
// are held.
type Tabulated struct {
	x, y     []float64
	previous bool
}

// NewTabulated builds a table from strictly increasing x. With previous set
// the value of the last point at or before x is returned instead of
// interpolating.
func NewTabulated(x, y []float64, previous bool) (*Tabulated, error) {
	if len(x) == 0 || len(x) != len(y) {
		return nil, fmt.Errorf("funcs: tabulated function needs equal, non-empty x and y (got %d, %d)", len(x), len(y))
	}
	for i := 1; i < len(x); i++ {
		if !(x[i] > x[i-1]) {
			return nil, fmt.Errorf("funcs: tabulated x must increase strictly at index %d", i)
		}
	}
	return &Tabulated{
		x:        append([]float64(nil), x...),
		y:        append([]float64(nil), y...),
		previous: previous,
	}, nil
}

func (t *Tabulated) Eval(x float64) float64 {
	n := len(t.x)
	if x <= t.x[0] {
		return t.y[0]
	}
	if x >= t.x[n-1] {
		return t.y[n-1]
	}
	i := sort.SearchFloat64s(t.x, x)
	if t.x[i] == x {
		return t.y[i]
	}
	if t.previous {
		return t.y[i-1]
	}
	f := (x - t.x[i-1]) / (t.x[i] - t.x[i-1])
	return t.y[i-1] + f*(t.y[i]-t.y[i-1])
}

// Sum is the pointwise sum of its terms.
type Sum []Func1

func (s Sum) Eval(x float64) float64 {
	v := 0.0
	for _, f := range s {
		v += f.Eval(x)
	}
	return v
}

// Product is the pointwise product of its factors.
type Product []Func1

func (p Product) Eval(x float64) float64 {
	v := 1.0
	for _, f := range p {
		v *= f.Eval(x)
	}
	return v
}

// Scaled multiplies F by Factor.
type Scaled struct {
	F      Func1
	Factor float64
}

func (s Scaled) Eval(x float64) float64 { return s.Factor * s.F.Eval(x) }

// Shifted evaluates F at x - Delay.
type Shifted struct {
	F     Func1
	Delay float64
}

func (s Shifted) Eval(x float64) float64 { return s.F.Eval(x - s.Delay) }
