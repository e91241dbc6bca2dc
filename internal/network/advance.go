package network

import (
	"context"
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/reactornet/internal/simerr"
)

// Advance integrates until t and returns the time reached. The result is
// earlier than t when an event fired or an advance limit was hit; call
// Advance again to continue. Cancellation is checked between steps.
func (n *Network) Advance(ctx context.Context, t float64) (float64, error) {
	const op = "network.Advance"
	if err := n.ready(op); err != nil {
		return n.t, err
	}
	if t < n.t {
		return n.t, simerr.Configf(op, "%w: target %g before current time %g", simerr.ErrInvalidParameter, t, n.t)
	}
	n.stats.Clipped = 0
	copy(n.yStart, n.y)
	limits := n.advanceLimits()

	for steps := 0; n.t < t; steps++ {
		if err := ctx.Err(); err != nil {
			return n.t, err
		}
		if steps >= n.opts.MaxSteps {
			err := simerr.NumericalAt(op, n.t, n.y, fmt.Errorf("%w: %d steps", simerr.ErrTooManySteps, steps))
			n.fail(err)
			return n.t, err
		}
		stopped, err := n.step(op, n.nextStop(t), limits)
		if err != nil {
			return n.t, err
		}
		if stopped {
			return n.t, nil
		}
	}
	return n.t, nil
}

// Step takes one solver step and returns the new time. Time events still
// bound the step; advance limits do not apply.
func (n *Network) Step(ctx context.Context) (float64, error) {
	const op = "network.Step"
	if err := n.ready(op); err != nil {
		return n.t, err
	}
	if err := ctx.Err(); err != nil {
		return n.t, err
	}
	n.stats.Clipped = 0
	_, err := n.step(op, n.nextStop(math.Inf(1)), nil)
	return n.t, err
}

// nextStop is the earliest pending time event before t, or t.
func (n *Network) nextStop(t float64) float64 {
	for _, e := range n.events {
		if e.timed && e.at > n.t && e.at < t {
			t = e.at
		}
	}
	return t
}

// step takes one solver step toward stop, locates any root crossed by the
// step and commits the state. It reports whether the step was cut short by
// an event or a limit.
func (n *Network) step(op string, stop float64, limits []limit) (bool, error) {
	tNew, err := n.solver.Step(stop)
	if err != nil {
		n.restoreTrial()
		n.fail(err)
		return false, err
	}
	yNew := n.solver.State()

	root, ev, lim, err := n.firstRoot(tNew, yNew, limits)
	if err == nil && !math.IsNaN(root) {
		err = n.solver.Interpolate(root, n.scratch)
	}
	if err != nil {
		err = simerr.NumericalAt(op, n.t, n.y, fmt.Errorf("dense output: %w", err))
		n.restoreTrial()
		n.fail(err)
		return false, err
	}

	if math.IsNaN(root) {
		if err := n.commit(op, tNew, yNew); err != nil {
			return false, err
		}
		for _, e := range n.events {
			e.last = e.Condition(n.t, n.y)
		}
		n.notify()
		return false, nil
	}

	if err := n.commit(op, root, n.scratch); err != nil {
		return false, err
	}
	n.notify()
	if ev == nil {
		n.log.WithFields(logrus.Fields{
			"time":      root,
			"component": n.ComponentName(lim.index),
			"limit":     lim.value,
		}).Debug("advance limit reached")
		return true, n.restart()
	}
	g := ev.Condition(n.t, n.y)
	if err := n.fire(ev); err != nil {
		return true, err
	}
	if err := n.restart(); err != nil {
		return true, err
	}
	// Keep the event on the far side of the root it just fired on.
	ev.last = g
	return true, nil
}

// commit pushes y into every reactor. Clipping below the network limit is
// recovered; beyond it, or on any other failure, the step is fatal and every
// reactor is reloaded from the committed state.
func (n *Network) commit(op string, t float64, y []float64) error {
	clipped, clipEvents := n.stats.Clipped, n.stats.ClipEvents
	fail := func(upto int, err error) error {
		n.rollback(upto)
		n.stats.Clipped, n.stats.ClipEvents = clipped, clipEvents
		n.fail(err)
		return err
	}

	for i, r := range n.reactors {
		lo, hi := n.layout.Span(i)
		if lo == hi {
			continue
		}
		amount, err := r.UpdateState(y[lo:hi])
		n.stats.Clipped += amount
		if err == nil {
			continue
		}
		var se *simerr.Error
		if errors.As(err, &se) && se.Kind == simerr.Clipping {
			se.Time = t
			n.stats.ClipEvents++
			n.log.WithFields(logrus.Fields{"time": t, "reactor": r.Name(), "clipped": amount}).Warn(se.Error())
			continue
		}
		return fail(i+1, simerr.NumericalAt(op, t, y, fmt.Errorf("reactor %q: %w", r.Name(), err)))
	}
	if n.stats.Clipped > n.opts.MaxClipping {
		err := simerr.NumericalAt(op, t, y, fmt.Errorf("%w: %g exceeds %g", simerr.ErrExcessiveClipping, n.stats.Clipped, n.opts.MaxClipping))
		return fail(len(n.reactors), err)
	}
	copy(n.y, y)
	n.t = t
	return nil
}

// rollback reloads the committed state into the first upto reactors.
func (n *Network) rollback(upto int) {
	for i, r := range n.reactors[:upto] {
		lo, hi := n.layout.Span(i)
		if lo < hi {
			_, _ = r.UpdateState(n.y[lo:hi])
		}
	}
	n.restoreTrial()
}

// restoreTrial reloads the committed state into the trial phases after a
// failed step left them at a rejected trial point.
func (n *Network) restoreTrial() {
	for i, r := range n.reactors {
		lo, hi := n.layout.Span(i)
		if lo < hi {
			_ = r.SetTrialState(n.y[lo:hi])
		}
	}
}

// restart re-initializes the solver from the reactors at the current time,
// keeping the counters.
func (n *Network) restart() error {
	stats, carried := n.stats, n.solverStats()
	if err := n.Initialize(); err != nil {
		return err
	}
	n.stats, n.carried = stats, carried
	return nil
}

func (n *Network) fail(err error) {
	f := logrus.Fields{"time": n.t}
	var se *simerr.Error
	if errors.As(err, &se) {
		f["time"] = se.Time
		f["kind"] = se.Kind.String()
	}
	n.log.WithFields(f).WithError(err).Error("integration failed")
}

func (n *Network) notify() {
	if len(n.observers) == 0 {
		return
	}
	stats := n.solverStats()
	for _, o := range n.observers {
		o.OnStep(n.t, n.y, stats)
	}
}
