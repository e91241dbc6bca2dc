package integrators

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/san-kum/reactornet/internal/simerr"
)

const (
	bdfSafety     = 0.9
	bdfMinScale   = 0.2
	bdfMaxScale   = 5.0
	newtonTol     = 0.33
	maxJacAge     = 20
	unitRoundoff  = 2.220446049250313e-16
	sqrtRoundoff  = 1.4901161193847656e-08
	orderUpMargin = 1.2
)

// BDF is a variable-order, variable-step backward differentiation formula
// solver for lhs ⊙ y' = rhs with a diagonal lhs that may contain zeros.
// Coefficients are recomputed from the actual step history, and the
// corrector is solved by modified Newton iteration with an LU-factored
// iteration matrix.
type BDF struct {
	opts  Options
	sys   System
	jacFn JacobianFunc
	n     int

	t     float64
	h     float64
	order int

	// hist[0] is the current solution; hist[j] is j accepted steps back.
	// When ghost is set, hist[nReal] is a synthetic point behind the
	// initial state built from the initial slope.
	hist  [][]float64
	tHist []float64
	nReal int
	ghost bool

	algebraic    []bool
	mask         []bool
	stepsAtOrder int

	jac      *mat.Dense
	jacAge   int
	jacFresh bool
	iter     *mat.Dense
	lu       mat.LU
	crate    float64

	lhs, rhs, f, f0, ytmp []float64
	ypred, ynew, corr     []float64
	resid, delta, ewt     []float64
	residVec, deltaVec    *mat.VecDense
	nodes, coef           []float64

	stats       Stats
	initialized bool
}

// NewBDF returns an uninitialized BDF solver.
func NewBDF(o Options) *BDF {
	return &BDF{opts: o.withDefaults()}
}

func (b *BDF) Name() string                { return "bdf" }
func (b *BDF) Time() float64               { return b.t }
func (b *BDF) State() []float64            { return b.hist[0] }
func (b *BDF) Stats() Stats                { return b.stats }
func (b *BDF) Options() Options            { return b.opts }
func (b *BDF) SetJacobian(fn JacobianFunc) { b.jacFn = fn }

// SetOptions replaces the options. Call Initialize afterwards.
func (b *BDF) SetOptions(o Options) {
	b.opts = o.withDefaults()
	b.initialized = false
}

func (b *BDF) Initialize(sys System, t0 float64, y0 []float64) error {
	const op = "integrators.BDF.Initialize"
	n, err := checkDims(op, sys, y0)
	if err != nil {
		return err
	}
	if err := b.opts.validate(n); err != nil {
		return err
	}
	if b.n != n || len(b.hist) != b.opts.MaxOrder+3 {
		b.allocate(n)
	}
	b.sys = sys
	b.t = t0
	b.stats = Stats{}
	copy(b.hist[0], y0)
	b.tHist[0] = t0
	b.nReal = 1
	b.order = 1
	b.stepsAtOrder = 0
	b.jacAge = math.MaxInt32
	b.jacFresh = false
	b.crate = 1

	if err := b.sys.Eval(t0, y0, b.lhs, b.rhs); err != nil {
		return simerr.NumericalAt(op, t0, y0, err)
	}
	b.stats.RHSEvals++
	for i := range b.lhs {
		b.algebraic[i] = b.lhs[i] == 0
		b.mask[i] = !b.algebraic[i]
	}
	b.slopes(b.f0)
	if !finite(b.f0) {
		return simerr.NumericalAt(op, t0, y0, simerr.ErrNonFinite)
	}

	errorWeights(b.opts, y0, b.ewt)
	h := b.opts.InitialStep
	if h == 0 {
		d0 := wrms(y0, b.ewt, nil)
		d1 := wrms(b.f0, b.ewt, b.mask)
		if d0 < 1e-5 || d1 < 1e-5 {
			h = 1e-6
		} else {
			h = 0.01 * d0 / d1
		}
	}
	if b.opts.MaxStep > 0 {
		h = math.Min(h, b.opts.MaxStep)
	}
	b.h = h
	b.resetGhost()
	b.initialized = true
	return nil
}

func (b *BDF) allocate(n int) {
	b.n = n
	npts := b.opts.MaxOrder + 3
	b.hist = make([][]float64, npts)
	for i := range b.hist {
		b.hist[i] = make([]float64, n)
	}
	b.tHist = make([]float64, npts)
	b.algebraic = make([]bool, n)
	b.mask = make([]bool, n)
	b.jac = mat.NewDense(n, n, nil)
	b.iter = mat.NewDense(n, n, nil)
	for _, p := range []*[]float64{&b.lhs, &b.rhs, &b.f, &b.f0, &b.ytmp, &b.ypred, &b.ynew, &b.corr, &b.resid, &b.delta, &b.ewt} {
		*p = make([]float64, n)
	}
	b.residVec = mat.NewVecDense(n, b.resid)
	b.deltaVec = mat.NewVecDense(n, b.delta)
	b.nodes = make([]float64, npts)
	b.coef = make([]float64, npts)
}

// resetGhost places a synthetic point one step behind the current state
// along the slope in f0.
func (b *BDF) resetGhost() {
	g := b.hist[b.nReal]
	for i := range g {
		g[i] = b.hist[0][i]
		if !b.algebraic[i] {
			g[i] -= b.h * b.f0[i]
		}
	}
	b.tHist[b.nReal] = b.t - b.h
	b.ghost = true
}

// slopes converts lhs/rhs into F: rhs/lhs on differential rows, rhs on
// algebraic rows.
func (b *BDF) slopes(dst []float64) {
	for i := range dst {
		if b.algebraic[i] {
			dst[i] = b.rhs[i]
		} else {
			dst[i] = b.rhs[i] / b.lhs[i]
		}
	}
}

func (b *BDF) evalF(t float64, y, dst []float64) error {
	b.stats.RHSEvals++
	if err := b.sys.Eval(t, y, b.lhs, b.rhs); err != nil {
		return err
	}
	b.slopes(dst)
	if !finite(dst) {
		return simerr.ErrNonFinite
	}
	return nil
}

func (b *BDF) Step(tStop float64) (float64, error) {
	const op = "integrators.BDF.Step"
	if !b.initialized {
		return b.t, simerr.Configf(op, "%w: solver", simerr.ErrUninitialized)
	}
	if tStop < b.t {
		return b.t, simerr.Configf(op, "%w: stop time %g before current time %g", simerr.ErrInvalidParameter, tStop, b.t)
	}
	if tStop == b.t {
		return b.t, nil
	}

	errorWeights(b.opts, b.hist[0], b.ewt)
	diff := b.mask
	hProposed := b.h
	errFails, convFails := 0, 0
	failed := false

	for {
		remaining := tStop - b.t
		hStep := b.h
		clamped := false
		switch {
		case hStep >= remaining:
			hStep, clamped = remaining, true
		case hStep < remaining && remaining < 2*hStep:
			hStep = remaining / 2
		}
		minStep := math.Max(b.opts.MinStep, 16*unitRoundoff*math.Max(math.Abs(b.t), math.Abs(b.t+hStep)))
		if clamped && hStep < minStep {
			// Below resolution of t: move the current point onto tStop.
			b.t = tStop
			b.tHist[0] = tStop
			return b.t, nil
		}
		if hStep < minStep {
			return b.t, stepError(op, b.t, b.hist[0], "%w: h=%g", simerr.ErrStepTooSmall, hStep)
		}
		tNew := b.t + hStep
		if clamped {
			tNew = tStop
		}

		k := b.order
		if k > b.nReal {
			k = b.nReal
		}
		b.predict(tNew, k, b.ypred)

		// Corrector coefficients over tNew and the k most recent real points.
		b.nodes[0] = tNew
		copy(b.nodes[1:k+1], b.tHist[:k])
		bdfCoefficients(b.nodes[:k+1], b.coef[:k+1])
		alpha0 := b.coef[0]
		combine(b.corr, b.coef[1:k+1], b.hist[:k])

		ok, err := b.solveCorrector(tNew, alpha0)
		if err != nil {
			return b.t, simerr.NumericalAt(op, b.t, b.hist[0], err)
		}
		if !ok {
			b.stats.NonlinFailures++
			convFails++
			failed = true
			if convFails > b.opts.MaxConvFails {
				return b.t, stepError(op, b.t, b.hist[0], "%w after %d attempts at h=%g", simerr.ErrConvergence, convFails, hStep)
			}
			if !b.jacFresh {
				b.jacAge = math.MaxInt32
			} else {
				b.h = 0.25 * hStep
			}
			continue
		}

		for i := range b.delta {
			b.delta[i] = b.ynew[i] - b.ypred[i]
		}
		errNorm := wrms(b.delta, b.ewt, diff) / float64(k+1)
		if errNorm > 1 {
			b.stats.Rejected++
			errFails++
			failed = true
			if errFails > b.opts.MaxErrTestFails {
				return b.t, stepError(op, b.t, b.hist[0], "%w: %d error test failures at h=%g", simerr.ErrStepTooSmall, errFails, hStep)
			}
			fac := math.Max(bdfMinScale, bdfSafety*math.Pow(errNorm, -1/float64(k+1)))
			if errFails >= 2 {
				fac = math.Min(fac, 0.25)
				b.order = 1
				b.stepsAtOrder = 0
			}
			b.h = hStep * fac
			continue
		}

		fac, newOrder := b.chooseNext(tNew, k, errNorm, diff)
		b.accept(tNew, hStep, k)
		if newOrder != k {
			b.stepsAtOrder = 0
		}
		b.order = newOrder
		if failed {
			fac = math.Min(fac, 1)
		}
		b.h = hStep * fac
		if clamped && !failed && b.h < hProposed {
			b.h = hProposed
		}
		if b.opts.MaxStep > 0 {
			b.h = math.Min(b.h, b.opts.MaxStep)
		}
		b.stats.NextStep = b.h
		return b.t, nil
	}
}

// predict extrapolates the polynomial through the k+1 most recent points
// (real or ghost) to t.
func (b *BDF) predict(t float64, k int, dst []float64) {
	w := b.coef[:k+1]
	lagrangeWeights(b.tHist[:k+1], t, w)
	combine(dst, w, b.hist[:k+1])
}

// solveCorrector runs modified Newton on alpha0*y + corr - F(y) = 0 for
// differential rows and F(y) = 0 for algebraic rows, starting from ypred.
// It reports false on a recoverable convergence failure.
func (b *BDF) solveCorrector(tNew, alpha0 float64) (bool, error) {
	b.jacFresh = b.jacAge >= maxJacAge
	if b.jacFresh {
		copy(b.ytmp, b.ypred)
		if err := b.computeJacobian(tNew, b.ytmp, alpha0); err != nil {
			if errors.Is(err, errFatal) {
				return false, err
			}
			return false, nil
		}
		b.jacAge = 0
	}
	b.factorize(alpha0)
	b.crate = 1

	copy(b.ynew, b.ypred)
	prev := 0.0
	for m := 0; m < b.opts.MaxNonlinIters; m++ {
		if err := b.evalF(tNew, b.ynew, b.f); err != nil {
			return false, nil
		}
		for i := range b.resid {
			if b.algebraic[i] {
				b.resid[i] = b.f[i]
			} else {
				b.resid[i] = b.f[i] - alpha0*b.ynew[i] - b.corr[i]
			}
		}
		if err := b.solve(); err != nil {
			return false, nil
		}
		for i := range b.ynew {
			b.ynew[i] += b.delta[i]
		}
		dnorm := wrms(b.delta, b.ewt, nil)
		if m > 0 {
			b.crate = math.Max(0.3*b.crate, dnorm/prev)
			if b.crate > 0.9 && dnorm > newtonTol {
				return false, nil
			}
		}
		if dnorm*math.Min(1, b.crate) <= newtonTol {
			return true, nil
		}
		prev = dnorm
	}
	return false, nil
}

var errFatal = errors.New("integrators: jacobian callback failed")

// computeJacobian fills b.jac with ∂F/∂y at (t, y), by finite differences
// unless a callback is set. y is used as scratch and restored.
func (b *BDF) computeJacobian(t float64, y []float64, alpha0 float64) error {
	b.stats.JacEvals++
	if b.jacFn != nil {
		if err := b.jacFn(t, y, b.jac); err != nil {
			return errors.Join(errFatal, err)
		}
		return nil
	}
	if err := b.evalF(t, y, b.f0); err != nil {
		return err
	}
	fnorm := wrms(b.f0, b.ewt, nil)
	minInc := 1.0
	if fnorm != 0 {
		minInc = 1000 * math.Abs(1/alpha0) * unitRoundoff * float64(b.n) * fnorm
	}
	for j := 0; j < b.n; j++ {
		yj := y[j]
		inc := math.Max(sqrtRoundoff*math.Abs(yj), minInc/b.ewt[j])
		y[j] = yj + inc
		inc = y[j] - yj
		err := b.evalF(t, y, b.f)
		y[j] = yj
		if err != nil {
			return err
		}
		for i := 0; i < b.n; i++ {
			b.jac.Set(i, j, (b.f[i]-b.f0[i])/inc)
		}
	}
	return nil
}

// factorize builds alpha0*D - J, where D selects differential rows.
func (b *BDF) factorize(alpha0 float64) {
	b.iter.Scale(-1, b.jac)
	for i := 0; i < b.n; i++ {
		if !b.algebraic[i] {
			b.iter.Set(i, i, b.iter.At(i, i)+alpha0)
		}
	}
	b.lu.Factorize(b.iter)
	b.stats.Factorizations++
}

// solve computes delta from iter·delta = resid.
func (b *BDF) solve() error {
	err := b.lu.SolveVecTo(b.deltaVec, false, b.residVec)
	if err != nil {
		var c mat.Condition
		if !errors.As(err, &c) || !finite(b.delta) {
			return simerr.ErrSingularMatrix
		}
	}
	if !finite(b.delta) {
		return simerr.ErrSingularMatrix
	}
	return nil
}

// chooseNext returns the step-size factor and order for the next step.
func (b *BDF) chooseNext(tNew float64, k int, errNorm float64, diff []bool) (float64, int) {
	fac := stepFactor(errNorm, k)
	order := k
	if b.stepsAtOrder+1 < k+1 {
		return fac, order
	}
	if k > 1 {
		b.predict(tNew, k-1, b.ytmp)
		for i := range b.ytmp {
			b.ytmp[i] = b.ynew[i] - b.ytmp[i]
		}
		e := wrms(b.ytmp, b.ewt, diff) / float64(k)
		if f := stepFactor(e, k-1); f > fac {
			fac, order = f, k-1
		}
	}
	if k < b.opts.MaxOrder && b.nReal >= k+2 {
		b.predict(tNew, k+1, b.ytmp)
		for i := range b.ytmp {
			b.ytmp[i] = b.ynew[i] - b.ytmp[i]
		}
		e := wrms(b.ytmp, b.ewt, diff) / float64(k+2)
		if f := stepFactor(e, k+1); f > orderUpMargin*fac {
			fac, order = f, k+1
		}
	}
	return fac, order
}

func stepFactor(errNorm float64, k int) float64 {
	if errNorm == 0 {
		return bdfMaxScale
	}
	f := bdfSafety * math.Pow(errNorm, -1/float64(k+1))
	return math.Min(bdfMaxScale, math.Max(bdfMinScale, f))
}

// accept shifts the history and records ynew at tNew.
func (b *BDF) accept(tNew, hStep float64, k int) {
	last := len(b.hist) - 1
	recycled := b.hist[last]
	copy(b.hist[1:], b.hist[:last])
	copy(b.tHist[1:], b.tHist[:last])
	b.hist[0] = recycled
	copy(b.hist[0], b.ynew)
	b.tHist[0] = tNew
	if b.nReal < len(b.hist) {
		b.nReal++
	}
	if b.nReal >= len(b.hist) {
		b.ghost = false
	}
	b.t = tNew
	b.jacAge++
	b.stepsAtOrder++
	b.stats.Steps++
	b.stats.LastStep = hStep
	b.stats.Order = k
}

// Interpolate evaluates the polynomial through the most recent points of
// the current order at t. It is accurate within the last step.
func (b *BDF) Interpolate(t float64, dst []float64) error {
	if !b.initialized {
		return simerr.Configf("integrators.BDF.Interpolate", "%w: solver", simerr.ErrUninitialized)
	}
	if len(dst) != b.n {
		return simerr.Configf("integrators.BDF.Interpolate", "%w: %d for %d", simerr.ErrDimensionMismatch, len(dst), b.n)
	}
	k := b.stats.Order
	if k < 1 {
		k = 1
	}
	if k+1 > b.nReal {
		k = b.nReal - 1
	}
	if k < 1 {
		copy(dst, b.hist[0])
		return nil
	}
	w := make([]float64, k+1)
	lagrangeWeights(b.tHist[:k+1], t, w)
	combine(dst, w, b.hist[:k+1])
	return nil
}
