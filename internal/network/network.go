// Package network couples reactors and connectors into one integrable
// system.
//
// A Network owns an ordered list of reactors. Initialize discovers the
// walls and flow devices attached to them, validates the graph and fixes a
// Layout: each reactor's local state occupies a contiguous span of the
// global vector, in insertion order. The network is itself an
// integrators.System: every right-hand-side call loads the trial state of
// each reactor, evaluates every connector once, and lets each reactor fill
// its own rows. After each accepted solver step the new state is pushed
// back into the reactors' owned phases.
package network

import (
	"fmt"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/reactornet/internal/connector"
	"github.com/san-kum/reactornet/internal/integrators"
	"github.com/san-kum/reactornet/internal/reactor"
	"github.com/san-kum/reactornet/internal/simerr"
)

// Options configures the integration. Zero values select defaults.
type Options struct {
	// Method names the solver: "bdf" or "rk45".
	Method string
	RelTol float64
	AbsTol float64
	// ComponentAbsTol overrides AbsTol for global component names such as
	// "r1.temperature".
	ComponentAbsTol map[string]float64

	MaxStep     float64
	MaxOrder    int
	InitialStep float64
	// MaxSteps bounds the solver steps of one Advance call.
	MaxSteps int
	// MaxClipping bounds the species amount clipped during one Advance
	// call before the clipping is treated as a numerical failure.
	MaxClipping float64
	// MaxNonlinIters bounds the corrector iterations per attempt.
	MaxNonlinIters  int
	MaxErrTestFails int
}

// DefaultOptions returns tolerances suited to stiff combustion chemistry.
func DefaultOptions() Options {
	return Options{
		Method:      "bdf",
		RelTol:      1e-9,
		AbsTol:      1e-15,
		MaxSteps:    50000,
		MaxClipping: 1e-3,
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Method == "" {
		o.Method = d.Method
	}
	if o.RelTol == 0 {
		o.RelTol = d.RelTol
	}
	if o.AbsTol == 0 {
		o.AbsTol = d.AbsTol
	}
	if o.MaxSteps == 0 {
		o.MaxSteps = d.MaxSteps
	}
	if o.MaxClipping == 0 {
		o.MaxClipping = d.MaxClipping
	}
	return o
}

// Layout places each reactor's local state in the global vector.
type Layout struct {
	Offsets []int
	Sizes   []int
	// Names holds reactor names in layout order.
	Names []string
	Size  int
}

// Span returns the half-open range of reactor i.
func (l Layout) Span(i int) (lo, hi int) {
	return l.Offsets[i], l.Offsets[i] + l.Sizes[i]
}

type wallLink struct {
	wall        *connector.Wall
	left, right int
}

type flowLink struct {
	dev      *connector.FlowDevice
	up, down int
	slot     int
}

// Stats summarizes the work done since Initialize.
type Stats struct {
	Solver     integrators.Stats
	Events     int
	ClipEvents int
	// Clipped is the amount clipped during the last Advance or Step.
	Clipped float64
}

// Network is a set of coupled reactors advanced by one solver.
type Network struct {
	reactors []reactor.Reactor
	opts     Options
	solver   integrators.Solver
	jacobian integrators.JacobianFunc
	log      logrus.FieldLogger

	layout   Layout
	index    map[reactor.Node]int
	nodes    []reactor.Node
	topology []uint64
	walls    []wallLink
	flows    []flowLink
	ex       []reactor.Exchange
	indep    string

	t           float64
	y           []float64
	yStart      []float64
	scratch     []float64
	initialized bool

	events    []*Event
	params    []Parameter
	observers []Observer
	stats     Stats
	// solver counters from before the last restart
	carried   integrators.Stats
}

// New returns an uninitialized network over reactors, in layout order.
func New(reactors ...reactor.Reactor) *Network {
	return &Network{
		reactors: append([]reactor.Reactor(nil), reactors...),
		opts:     DefaultOptions(),
		log:      logrus.StandardLogger(),
	}
}

// AddReactor appends r. The network must be initialized again.
func (n *Network) AddReactor(r reactor.Reactor) {
	n.reactors = append(n.reactors, r)
	n.initialized = false
}

func (n *Network) Reactors() []reactor.Reactor    { return append([]reactor.Reactor(nil), n.reactors...) }
func (n *Network) Options() Options               { return n.opts }
func (n *Network) Time() float64                  { return n.t }
func (n *Network) Initialized() bool              { return n.initialized }
func (n *Network) Layout() Layout                 { return n.layout }
func (n *Network) NEq() int                       { return n.layout.Size }
func (n *Network) IndependentVariable() string    { return n.indep }
func (n *Network) Solver() integrators.Solver     { return n.solver }
func (n *Network) SetLogger(l logrus.FieldLogger) { n.log = l }

// SetOptions replaces the integration options. It takes effect at the
// next Initialize.
func (n *Network) SetOptions(o Options) {
	n.opts = o.withDefaults()
	n.initialized = false
}

// SetInitialTime sets the time Initialize starts from.
func (n *Network) SetInitialTime(t float64) {
	n.t = t
	n.initialized = false
}

// SetJacobian installs an analytic Jacobian for the global system.
func (n *Network) SetJacobian(fn integrators.JacobianFunc) {
	n.jacobian = fn
	if n.solver != nil {
		n.solver.SetJacobian(fn)
	}
}

// State returns a copy of the committed global state.
func (n *Network) State() []float64 {
	return append([]float64(nil), n.y...)
}

// Stats returns solver and network counters.
func (n *Network) Stats() Stats {
	s := n.stats
	if n.solver != nil {
		s.Solver = n.solverStats()
	}
	return s
}

// solverStats is the live solver state with the counters carried across
// restarts added in.
func (n *Network) solverStats() integrators.Stats {
	s := n.solver.Stats()
	s.Steps += n.carried.Steps
	s.Rejected += n.carried.Rejected
	s.RHSEvals += n.carried.RHSEvals
	s.JacEvals += n.carried.JacEvals
	s.Factorizations += n.carried.Factorizations
	s.NonlinFailures += n.carried.NonlinFailures
	return s
}

// Initialize validates the network, builds the layout and the initial
// state from the reactors, and starts the solver at the current time.
// Calling it again without changes reproduces the same layout and state.
func (n *Network) Initialize() error {
	const op = "network.Initialize"
	if len(n.reactors) == 0 {
		return simerr.Configf(op, "%w: network has no reactors", simerr.ErrDimensionMismatch)
	}
	n.opts = n.opts.withDefaults()
	n.initialized = false
	for _, r := range n.reactors {
		if err := r.Initialize(); err != nil {
			return err
		}
	}
	if err := n.discover(); err != nil {
		return err
	}
	n.buildLayout()
	if n.layout.Size == 0 {
		return simerr.Configf(op, "%w: network has no state components", simerr.ErrDimensionMismatch)
	}

	y := make([]float64, n.layout.Size)
	for i, r := range n.reactors {
		lo, hi := n.layout.Span(i)
		if err := r.GetState(y[lo:hi]); err != nil {
			return err
		}
	}
	n.y = y
	n.yStart = make([]float64, len(y))
	n.scratch = make([]float64, len(y))

	if err := n.startSolver(); err != nil {
		return err
	}
	for _, e := range n.events {
		e.last = e.Condition(n.t, n.y)
	}
	n.stats = Stats{}
	n.carried = integrators.Stats{}
	n.initialized = true
	n.log.WithFields(logrus.Fields{
		"reactors": len(n.reactors),
		"size":     n.layout.Size,
		"walls":    len(n.walls),
		"flows":    len(n.flows),
		"method":   n.solver.Name(),
	}).Debug("network initialized")
	return nil
}

func (n *Network) startSolver() error {
	opts := integrators.Options{
		RelTol:          n.opts.RelTol,
		AbsTol:          n.opts.AbsTol,
		MaxOrder:        n.opts.MaxOrder,
		MaxStep:         n.opts.MaxStep,
		InitialStep:     n.opts.InitialStep,
		MaxNonlinIters:  n.opts.MaxNonlinIters,
		MaxErrTestFails: n.opts.MaxErrTestFails,
	}
	if len(n.opts.ComponentAbsTol) > 0 {
		opts.AbsTols = make([]float64, n.layout.Size)
		for i := range opts.AbsTols {
			opts.AbsTols[i] = n.opts.AbsTol
		}
		for name, atol := range n.opts.ComponentAbsTol {
			i, err := n.ComponentIndex(name)
			if err != nil {
				return err
			}
			opts.AbsTols[i] = atol
		}
	}
	if n.solver == nil || n.solver.Name() != n.opts.Method {
		s, err := integrators.New(n.opts.Method, opts)
		if err != nil {
			return err
		}
		n.solver = s
	} else {
		n.solver.SetOptions(opts)
	}
	n.solver.SetJacobian(n.jacobian)
	return n.solver.Initialize(n, n.t, n.y)
}

// discover walks the attachments of every reactor, collects the
// connectors once each and checks the graph.
func (n *Network) discover() error {
	const op = "network.Initialize"
	n.index = make(map[reactor.Node]int, len(n.reactors))
	n.nodes = n.nodes[:0]
	n.indep = ""
	for i, r := range n.reactors {
		if _, dup := n.index[r]; dup {
			return simerr.Configf(op, "%w: reactor %q added twice", simerr.ErrAliasedPhase, r.Name())
		}
		n.index[r] = i
		n.nodes = append(n.nodes, r)
		if r.NEq() == 0 {
			continue
		}
		switch {
		case n.indep == "":
			n.indep = r.IndependentVariable()
		case n.indep != r.IndependentVariable():
			return simerr.Configf(op, "%w: reactor %q integrates over %s, network over %s",
				simerr.ErrInvalidParameter, r.Name(), r.IndependentVariable(), n.indep)
		}
	}

	n.walls = n.walls[:0]
	n.flows = n.flows[:0]
	seen := map[reactor.Connection]bool{}
	inflows := make([]int, len(n.reactors))
	external := map[reactor.Node]bool{}
	for _, r := range n.reactors {
		for _, a := range r.Attachments() {
			if seen[a.Conn] {
				continue
			}
			seen[a.Conn] = true
			left, err := n.endpoint(a.Conn, a.Conn.Left(), external)
			if err != nil {
				return err
			}
			right, err := n.endpoint(a.Conn, a.Conn.Right(), external)
			if err != nil {
				return err
			}
			switch c := a.Conn.(type) {
			case *connector.Wall:
				n.walls = append(n.walls, wallLink{wall: c, left: left, right: right})
			case *connector.FlowDevice:
				if err := c.Validate(); err != nil {
					return err
				}
				l := flowLink{dev: c, up: left, down: right, slot: -1}
				if right >= 0 {
					l.slot = inflows[right]
					inflows[right]++
				}
				n.flows = append(n.flows, l)
			default:
				return simerr.Configf(op, "%w: connector %q of type %T", simerr.ErrInvalidParameter, a.Conn.Name(), a.Conn)
			}
		}
	}

	for i, a := range n.nodes {
		for _, b := range n.nodes[i+1:] {
			if reactor.Aliased(a, b) {
				return simerr.Configf(op, "%w: %q and %q", simerr.ErrAliasedPhase, a.Name(), b.Name())
			}
		}
	}

	n.ex = make([]reactor.Exchange, len(n.reactors))
	for i, r := range n.reactors {
		nsp := r.Phase().NSpecies()
		n.ex[i].Inflows = make([]reactor.Inflow, inflows[i])
		for j := range n.ex[i].Inflows {
			n.ex[i].Inflows[j].Y = make([]float64, nsp)
		}
	}
	n.topology = n.topology[:0]
	for _, nd := range n.nodes {
		n.topology = append(n.topology, nd.Topology())
	}
	return nil
}

// endpoint returns the reactor index of node, or -1 for a reservoir that
// is not part of the network. Other foreign nodes are rejected.
func (n *Network) endpoint(c reactor.Connection, node reactor.Node, external map[reactor.Node]bool) (int, error) {
	if i, ok := n.index[node]; ok {
		return i, nil
	}
	res, ok := node.(*reactor.Reservoir)
	if !ok {
		return -1, simerr.Configf("network.Initialize", "%w: %q connects to %q", simerr.ErrUnknownReactor, c.Name(), node.Name())
	}
	if !external[node] {
		if err := res.Validate(); err != nil {
			return -1, err
		}
		external[node] = true
		n.nodes = append(n.nodes, node)
	}
	return -1, nil
}

func (n *Network) buildLayout() {
	l := Layout{
		Offsets: make([]int, len(n.reactors)),
		Sizes:   make([]int, len(n.reactors)),
		Names:   make([]string, len(n.reactors)),
	}
	for i, r := range n.reactors {
		l.Offsets[i] = l.Size
		l.Sizes[i] = r.NEq()
		l.Names[i] = r.Name()
		l.Size += l.Sizes[i]
	}
	n.layout = l
}

// ready reports whether the network may integrate.
func (n *Network) ready(op string) error {
	if !n.initialized {
		return simerr.Configf(op, "%w", simerr.ErrUninitialized)
	}
	for i, nd := range n.nodes {
		if nd.Topology() != n.topology[i] {
			return simerr.Configf(op, "%w: %q", simerr.ErrTopologyChanged, nd.Name())
		}
	}
	return nil
}

// ComponentName returns the global name of component i, "reactor.component".
func (n *Network) ComponentName(i int) string {
	for j, r := range n.reactors {
		lo, hi := n.layout.Span(j)
		if i >= lo && i < hi {
			return r.Name() + "." + r.ComponentName(i-lo)
		}
	}
	return ""
}

// GlobalIndex locates a component of a named reactor in the global vector.
func (n *Network) GlobalIndex(reactorName, component string) (int, error) {
	for j, r := range n.reactors {
		if r.Name() != reactorName {
			continue
		}
		k := r.ComponentIndex(component)
		if k < 0 || k >= n.layout.Sizes[j] {
			break
		}
		return n.layout.Offsets[j] + k, nil
	}
	return -1, simerr.Configf("network.GlobalIndex", "%w: %s.%s", simerr.ErrUnknownComponent, reactorName, component)
}

// ComponentIndex resolves a "reactor.component" name to its global index.
func (n *Network) ComponentIndex(name string) (int, error) {
	for j, r := range n.reactors {
		prefix := r.Name() + "."
		if len(name) <= len(prefix) || name[:len(prefix)] != prefix {
			continue
		}
		if k := r.ComponentIndex(name[len(prefix):]); k >= 0 {
			return n.layout.Offsets[j] + k, nil
		}
	}
	return -1, simerr.Configf("network.ComponentIndex", "%w: %q", simerr.ErrUnknownComponent, name)
}

// TotalMass sums the mass of the reactors that track it, kg.
func (n *Network) TotalMass() float64 {
	m := 0.0
	for _, r := range n.reactors {
		if inv, ok := r.(reactor.Inventory); ok {
			m += inv.Mass()
		}
	}
	return m
}

// TotalEnergy sums m·u, or m·h for reactors at held pressure, J.
func (n *Network) TotalEnergy() float64 {
	e := 0.0
	for _, r := range n.reactors {
		if inv, ok := r.(reactor.Inventory); ok {
			e += inv.TotalEnergy()
		}
	}
	return e
}

// Eval assembles lhs ⊙ dy/dt = rhs for the whole network. Only the trial
// phases of the reactors are touched.
func (n *Network) Eval(t float64, y, lhs, rhs []float64) error {
	for i, r := range n.reactors {
		lo, hi := n.layout.Span(i)
		if lo == hi {
			continue
		}
		if err := r.SetTrialState(y[lo:hi]); err != nil {
			return err
		}
	}
	n.exchange(t)
	for i, r := range n.reactors {
		lo, hi := n.layout.Span(i)
		if lo == hi {
			continue
		}
		if err := r.Eval(t, &n.ex[i], lhs[lo:hi], rhs[lo:hi]); err != nil {
			return fmt.Errorf("reactor %q: %w", r.Name(), err)
		}
	}
	return nil
}

// exchange evaluates every connector once and distributes the rates to
// both endpoints with opposite signs.
func (n *Network) exchange(t float64) {
	for i := range n.ex {
		n.ex[i].Reset()
	}
	for _, l := range n.walls {
		q, v := l.wall.HeatRate(t), l.wall.ExpansionRate(t)
		if l.left >= 0 {
			n.ex[l.left].Qdot -= q
			n.ex[l.left].Vdot += v
		}
		if l.right >= 0 {
			n.ex[l.right].Qdot += q
			n.ex[l.right].Vdot -= v
		}
	}
	for _, l := range n.flows {
		m := l.dev.MassFlowRate(t)
		if l.up >= 0 {
			n.ex[l.up].OutflowMass += m
		}
		if l.down < 0 {
			continue
		}
		in := &n.ex[l.down].Inflows[l.slot]
		in.Mdot = m
		if m > 0 {
			in.Enthalpy = l.dev.OutletEnthalpy()
			l.dev.OutletMassFractions(in.Y)
		}
	}
}
