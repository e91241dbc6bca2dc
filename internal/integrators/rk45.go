package integrators

import (
	"math"

	"github.com/san-kum/reactornet/internal/simerr"
)

// Dormand-Prince coefficients (RK45)
var (
	a2 = 1.0 / 5.0
	a3 = 3.0 / 10.0
	a4 = 4.0 / 5.0
	a5 = 8.0 / 9.0

	b21 = 1.0 / 5.0
	b31 = 3.0 / 40.0
	b32 = 9.0 / 40.0
	b41 = 44.0 / 45.0
	b42 = -56.0 / 15.0
	b43 = 32.0 / 9.0
	b51 = 19372.0 / 6561.0
	b52 = -25360.0 / 2187.0
	b53 = 64448.0 / 6561.0
	b54 = -212.0 / 729.0
	b61 = 9017.0 / 3168.0
	b62 = -355.0 / 33.0
	b63 = 46732.0 / 5247.0
	b64 = 49.0 / 176.0
	b65 = -5103.0 / 18656.0

	c1 = 35.0 / 384.0
	c3 = 500.0 / 1113.0
	c4 = 125.0 / 192.0
	c5 = -2187.0 / 6784.0
	c6 = 11.0 / 84.0

	dc1 = c1 - 5179.0/57600.0
	dc3 = c3 - 7571.0/16695.0
	dc4 = c4 - 393.0/640.0
	dc5 = c5 - -92097.0/339200.0
	dc6 = c6 - 187.0/2100.0
	dc7 = -1.0 / 40.0
)

// RK45 is the explicit Dormand-Prince pair with FSAL and cubic Hermite
// dense output. It only handles purely differential systems and is meant
// for non-stiff networks (inert mixing, heat exchange).
type RK45 struct {
	opts Options
	sys  System
	n    int

	safety   float64
	minScale float64
	maxScale float64

	t, h        float64
	y, yPrev    []float64
	tPrev       float64
	fPrev       []float64
	k           [7][]float64
	ytmp, ynew  []float64
	lhs, rhs    []float64
	errv, ewt   []float64
	stats       Stats
	initialized bool
}

func NewRK45(o Options) *RK45 {
	return &RK45{
		opts:     o.withDefaults(),
		safety:   0.9,
		minScale: 0.2,
		maxScale: 10.0,
	}
}

func (r *RK45) Name() string     { return "rk45" }
func (r *RK45) Time() float64    { return r.t }
func (r *RK45) State() []float64 { return r.y }
func (r *RK45) Stats() Stats     { return r.stats }
func (r *RK45) Options() Options { return r.opts }
func (r *RK45) SetJacobian(JacobianFunc) {}

func (r *RK45) SetOptions(o Options) {
	r.opts = o.withDefaults()
	r.initialized = false
}

func (r *RK45) Initialize(sys System, t0 float64, y0 []float64) error {
	const op = "integrators.RK45.Initialize"
	n, err := checkDims(op, sys, y0)
	if err != nil {
		return err
	}
	if err := r.opts.validate(n); err != nil {
		return err
	}
	if r.n != n || r.y == nil {
		r.n = n
		for _, p := range []*[]float64{&r.y, &r.yPrev, &r.fPrev, &r.ytmp, &r.ynew, &r.lhs, &r.rhs, &r.errv, &r.ewt} {
			*p = make([]float64, n)
		}
		for i := range r.k {
			r.k[i] = make([]float64, n)
		}
	}
	r.sys = sys
	r.t, r.tPrev = t0, t0
	r.stats = Stats{}
	copy(r.y, y0)
	copy(r.yPrev, y0)
	if err := r.derive(t0, r.y, r.k[0]); err != nil {
		return err
	}
	copy(r.fPrev, r.k[0])

	h := r.opts.InitialStep
	if h == 0 {
		errorWeights(r.opts, r.y, r.ewt)
		d0, d1 := wrms(r.y, r.ewt, nil), wrms(r.k[0], r.ewt, nil)
		if d0 < 1e-5 || d1 < 1e-5 {
			h = 1e-6
		} else {
			h = 0.01 * d0 / d1
		}
	}
	if r.opts.MaxStep > 0 {
		h = math.Min(h, r.opts.MaxStep)
	}
	r.h = h
	r.initialized = true
	return nil
}

// derive evaluates dy/dt = rhs/lhs and rejects algebraic rows.
func (r *RK45) derive(t float64, y, dst []float64) error {
	r.stats.RHSEvals++
	if err := r.sys.Eval(t, y, r.lhs, r.rhs); err != nil {
		return simerr.NumericalAt("integrators.RK45", t, y, err)
	}
	for i := range dst {
		if r.lhs[i] == 0 {
			return simerr.Configf("integrators.RK45", "%w: component %d is algebraic; use an implicit method", simerr.ErrInvalidParameter, i)
		}
		dst[i] = r.rhs[i] / r.lhs[i]
	}
	if !finite(dst) {
		return simerr.NumericalAt("integrators.RK45", t, y, simerr.ErrNonFinite)
	}
	return nil
}

func (r *RK45) stage(dst []float64, dt float64, coef ...float64) {
	for i := 0; i < r.n; i++ {
		s := 0.0
		for j, c := range coef {
			s += c * r.k[j][i]
		}
		dst[i] = r.y[i] + dt*s
	}
}

func (r *RK45) Step(tStop float64) (float64, error) {
	const op = "integrators.RK45.Step"
	if !r.initialized {
		return r.t, simerr.Configf(op, "%w: solver", simerr.ErrUninitialized)
	}
	if tStop < r.t {
		return r.t, simerr.Configf(op, "%w: stop time %g before current time %g", simerr.ErrInvalidParameter, tStop, r.t)
	}
	if tStop == r.t {
		return r.t, nil
	}
	for fails := 0; ; fails++ {
		dt := math.Min(r.h, tStop-r.t)
		clamped := dt == tStop-r.t
		minStep := math.Max(r.opts.MinStep, 16*unitRoundoff*math.Max(math.Abs(r.t), math.Abs(r.t+dt)))
		if clamped && dt < minStep {
			r.t = tStop
			return r.t, nil
		}
		if dt < minStep || fails > r.opts.MaxErrTestFails {
			return r.t, stepError(op, r.t, r.y, "%w: h=%g", simerr.ErrStepTooSmall, dt)
		}
		t := r.t
		k := &r.k

		r.stage(r.ytmp, dt, b21)
		if err := r.derive(t+a2*dt, r.ytmp, k[1]); err != nil {
			return r.t, err
		}
		r.stage(r.ytmp, dt, b31, b32)
		if err := r.derive(t+a3*dt, r.ytmp, k[2]); err != nil {
			return r.t, err
		}
		r.stage(r.ytmp, dt, b41, b42, b43)
		if err := r.derive(t+a4*dt, r.ytmp, k[3]); err != nil {
			return r.t, err
		}
		r.stage(r.ytmp, dt, b51, b52, b53, b54)
		if err := r.derive(t+a5*dt, r.ytmp, k[4]); err != nil {
			return r.t, err
		}
		r.stage(r.ytmp, dt, b61, b62, b63, b64, b65)
		if err := r.derive(t+dt, r.ytmp, k[5]); err != nil {
			return r.t, err
		}
		r.stage(r.ynew, dt, c1, 0, c3, c4, c5, c6)
		if err := r.derive(t+dt, r.ynew, k[6]); err != nil {
			return r.t, err
		}

		for i := 0; i < r.n; i++ {
			r.errv[i] = dt * (dc1*k[0][i] + dc3*k[2][i] + dc4*k[3][i] + dc5*k[4][i] + dc6*k[5][i] + dc7*k[6][i])
			r.ewt[i] = 1 / (r.opts.RelTol*math.Max(math.Abs(r.y[i]), math.Abs(r.ynew[i])) + r.opts.atol(i))
		}
		errRatio := wrms(r.errv, r.ewt, nil)

		if errRatio > 1 {
			r.stats.Rejected++
			r.h = dt * math.Max(r.minScale, r.safety*math.Pow(errRatio, -0.25))
			continue
		}

		r.tPrev = r.t
		copy(r.yPrev, r.y)
		copy(r.fPrev, k[0])
		r.t = t + dt
		if clamped {
			r.t = tStop
		}
		copy(r.y, r.ynew)
		copy(k[0], k[6])

		hNext := dt * r.maxScale
		if errRatio > 0 {
			hNext = dt * math.Min(r.maxScale, r.safety*math.Pow(errRatio, -0.2))
		}
		if clamped && hNext < r.h {
			hNext = r.h
		}
		if r.opts.MaxStep > 0 {
			hNext = math.Min(hNext, r.opts.MaxStep)
		}
		r.h = hNext
		r.stats.Steps++
		r.stats.LastStep = dt
		r.stats.NextStep = hNext
		r.stats.Order = 5
		return r.t, nil
	}
}

// Interpolate uses the cubic Hermite polynomial over the last step.
func (r *RK45) Interpolate(t float64, dst []float64) error {
	if !r.initialized {
		return simerr.Configf("integrators.RK45.Interpolate", "%w: solver", simerr.ErrUninitialized)
	}
	h := r.t - r.tPrev
	if h == 0 {
		copy(dst, r.y)
		return nil
	}
	s := (t - r.tPrev) / h
	h00 := 2*s*s*s - 3*s*s + 1
	h10 := s*s*s - 2*s*s + s
	h01 := -2*s*s*s + 3*s*s
	h11 := s*s*s - s*s
	for i := range dst {
		dst[i] = h00*r.yPrev[i] + h10*h*r.fPrev[i] + h01*r.y[i] + h11*h*r.k[0][i]
	}
	return nil
}
