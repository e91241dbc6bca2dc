package network

import (
	"math"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/reactornet/internal/simerr"
)

// Event runs Action when Condition changes sign across an accepted step.
// A value of zero counts as positive. The crossing is located on the
// solver's dense output, the network state is moved there, the action
// runs and the solver restarts from the new state.
type Event struct {
	Name      string
	Condition func(t float64, y []float64) float64
	// Action may change connector parameters or reactor contents. A nil
	// Action only stops Advance at the crossing.
	Action func(n *Network) error
	// Once removes the event after it fires.
	Once bool

	timed bool
	at    float64
	last  float64
	fired int
}

// Fired counts how often the event has run.
func (e *Event) Fired() int { return e.fired }

// AtTime returns an event that fires once when the network reaches at.
// Steps are cut to land on at exactly.
func AtTime(name string, at float64, action func(n *Network) error) *Event {
	return &Event{
		Name:      name,
		Condition: func(t float64, _ []float64) float64 { return t - at },
		Action:    action,
		Once:      true,
		timed:     true,
		at:        at,
	}
}

// AddEvent registers e. It is armed from the current state.
func (n *Network) AddEvent(e *Event) error {
	if e == nil || e.Condition == nil {
		return simerr.Configf("network.AddEvent", "%w: event without condition", simerr.ErrInvalidParameter)
	}
	if n.y != nil {
		e.last = e.Condition(n.t, n.y)
	}
	n.events = append(n.events, e)
	return nil
}

// RemoveEvent unregisters e.
func (n *Network) RemoveEvent(e *Event) {
	kept := n.events[:0]
	for _, x := range n.events {
		if x != e {
			kept = append(kept, x)
		}
	}
	n.events = kept
}

func (n *Network) Events() []*Event { return append([]*Event(nil), n.events...) }

func (n *Network) fire(e *Event) error {
	e.fired++
	n.stats.Events++
	n.log.WithFields(logrus.Fields{"time": n.t, "event": e.Name}).Info("event")
	if e.Once {
		n.RemoveEvent(e)
	}
	if e.Action == nil {
		return nil
	}
	if err := e.Action(n); err != nil {
		return simerr.NumericalAt("network.Event", n.t, n.y, err)
	}
	return nil
}

type limit struct {
	index int
	value float64
}

// advanceLimits collects the per-component limits of every reactor in
// global indices.
func (n *Network) advanceLimits() []limit {
	var out []limit
	for i, r := range n.reactors {
		for name, v := range r.AdvanceLimits() {
			k := r.ComponentIndex(name)
			if k < 0 || k >= n.layout.Sizes[i] {
				n.log.WithFields(logrus.Fields{"reactor": r.Name(), "component": name}).Warn("advance limit on unknown component ignored")
				continue
			}
			out = append(out, limit{index: n.layout.Offsets[i] + k, value: v})
		}
	}
	return out
}

func positive(g float64) bool { return g >= 0 }

// firstRoot returns the earliest crossing in (n.t, tNew] among events and
// limits, or NaN when none was crossed.
func (n *Network) firstRoot(tNew float64, yNew []float64, limits []limit) (float64, *Event, limit, error) {
	root := math.NaN()
	var ev *Event
	var lim limit
	for _, e := range n.events {
		if positive(e.Condition(tNew, yNew)) == positive(e.last) {
			continue
		}
		t, err := n.bisect(e.Condition, tNew, positive(e.last))
		if err != nil {
			return 0, nil, lim, err
		}
		if !(t >= root) {
			root, ev = t, e
		}
	}
	for _, l := range limits {
		g := func(_ float64, y []float64) float64 { return l.value - math.Abs(y[l.index]-n.yStart[l.index]) }
		if positive(g(tNew, yNew)) {
			continue
		}
		t, err := n.bisect(g, tNew, true)
		if err != nil {
			return 0, nil, lim, err
		}
		if !(t >= root) {
			root, ev, lim = t, nil, l
		}
	}
	return root, ev, lim, nil
}

// bisect locates the first sign change of g on (n.t, tHi] using the dense
// output. It returns the right end of the final bracket, where g already
// has its new sign.
func (n *Network) bisect(g func(float64, []float64) float64, tHi float64, startPositive bool) (float64, error) {
	lo, hi := n.t, tHi
	tol := 4 * 2.220446049250313e-16 * math.Max(1, math.Max(math.Abs(lo), math.Abs(hi)))
	for i := 0; i < 200 && hi-lo > tol; i++ {
		mid := lo + (hi-lo)/2
		if err := n.solver.Interpolate(mid, n.scratch); err != nil {
			return 0, err
		}
		if positive(g(mid, n.scratch)) == startPositive {
			lo = mid
		} else {
			hi = mid
		}
	}
	return hi, nil
}
