package reactor

import (
	"fmt"
	"math"
	"reflect"

	"github.com/san-kum/reactornet/internal/simerr"
	"github.com/san-kum/reactornet/internal/thermo"
)

// Role tags how a connector is attached to a node.
type Role int

const (
	Inlet Role = iota + 1
	Outlet
	WallLeft
	WallRight
)

func (r Role) String() string {
	switch r {
	case Inlet:
		return "inlet"
	case Outlet:
		return "outlet"
	case WallLeft:
		return "wall-left"
	case WallRight:
		return "wall-right"
	}
	return "unknown"
}

// Connection is the part of a connector visible to its endpoints.
type Connection interface {
	Name() string
	Left() Node
	Right() Node
}

// Attachment records one connector attached to a node.
type Attachment struct {
	Role Role
	Conn Connection
}

// Node is anything a connector can bind: a reactor or a reservoir.
type Node interface {
	Name() string
	Kind() Kind
	// Phase is the committed state.
	Phase() thermo.View
	// TrialPhase is the state loaded by the last SetTrialState. Outside
	// right-hand-side evaluation it equals Phase.
	TrialPhase() thermo.View
	Volume() float64

	Attach(a Attachment)
	Detach(c Connection)
	Attachments() []Attachment
	// Topology increments on every change that affects the layout or the
	// connector graph.
	Topology() uint64
}

// Reactor is a node with a block of governing equations.
type Reactor interface {
	Node

	// Initialize captures the phase and volume as the initial state and
	// fixes the component layout.
	Initialize() error
	Validate() error
	NEq() int
	ComponentIndex(name string) int
	ComponentName(i int) string
	// IndependentVariable is "time" for vessels and "distance" for plug flow.
	IndependentVariable() string

	GetState(y []float64) error
	// UpdateState loads y into the owned phase. It returns the amount of
	// negative species or coverage clipped to zero, and a Clipping error
	// when that exceeds the clip tolerance.
	UpdateState(y []float64) (float64, error)
	SetTrialState(y []float64) error
	Eval(t float64, ex *Exchange, lhs, rhs []float64) error

	AdvanceLimits() map[string]float64
}

// Inventory is implemented by reactors that hold a finite amount of matter.
type Inventory interface {
	Mass() float64
	// TotalEnergy is m·h when pressure is held and m·u otherwise.
	TotalEnergy() float64
}

// Inflow is one stream entering a reactor.
type Inflow struct {
	Mdot float64
	// Enthalpy is the upstream specific enthalpy, J/kg.
	Enthalpy float64
	// Y holds upstream mass fractions mapped onto this reactor's species.
	Y []float64
}

// Exchange collects the connector terms acting on one reactor during a
// right-hand-side evaluation.
type Exchange struct {
	Qdot        float64
	Vdot        float64
	Inflows     []Inflow
	OutflowMass float64
}

// Reset zeroes the rates and keeps the inflow buffers.
func (e *Exchange) Reset() {
	e.Qdot, e.Vdot, e.OutflowMass = 0, 0, 0
	for i := range e.Inflows {
		e.Inflows[i].Mdot = 0
		e.Inflows[i].Enthalpy = 0
	}
}

// InflowMass is the total mass entering, kg/s.
func (e *Exchange) InflowMass() float64 {
	s := 0.0
	for _, in := range e.Inflows {
		s += in.Mdot
	}
	return s
}

// base holds what every node shares: a name, the owned phase, the private
// trial copy and the connector attachments.
type base struct {
	name        string
	gas         thermo.Phase
	trial       thermo.Phase
	volume      float64
	attachments []Attachment
	topology    uint64
	limits      map[string]float64
	initialized bool
}

func newBase(name string, gas thermo.Phase) (base, error) {
	if gas == nil {
		return base{}, simerr.Configf("reactor.New", "%w: reactor %q has no phase", simerr.ErrInvalidParameter, name)
	}
	return base{name: name, gas: gas, trial: gas.Clone(), volume: 1}, nil
}

func (b *base) Name() string            { return b.name }
func (b *base) Phase() thermo.View      { return thermo.ReadOnly(b.gas) }
func (b *base) TrialPhase() thermo.View { return thermo.ReadOnly(b.trial) }
func (b *base) Volume() float64         { return b.volume }
func (b *base) Topology() uint64        { return b.topology }

func (b *base) Attach(a Attachment) {
	b.attachments = append(b.attachments, a)
	b.topology++
}

func (b *base) Attachments() []Attachment {
	return append([]Attachment(nil), b.attachments...)
}

func (b *base) Detach(c Connection) {
	kept := b.attachments[:0]
	for _, a := range b.attachments {
		if a.Conn != c {
			kept = append(kept, a)
		}
	}
	if len(kept) != len(b.attachments) {
		b.topology++
	}
	b.attachments = kept
}

// SetAdvanceLimit bounds how far the named component may move during one
// Advance call. A non-positive limit removes it.
func (b *base) SetAdvanceLimit(component string, limit float64) {
	if b.limits == nil {
		b.limits = map[string]float64{}
	}
	if limit > 0 && !math.IsInf(limit, 1) {
		b.limits[component] = limit
	} else {
		delete(b.limits, component)
	}
}

func (b *base) AdvanceLimits() map[string]float64 {
	out := make(map[string]float64, len(b.limits))
	for k, v := range b.limits {
		out[k] = v
	}
	return out
}

func (b *base) owned() []any { return []any{b.gas} }

type owner interface {
	owned() []any
}

// Aliased reports whether a and b own a common phase object.
func Aliased(a, b Node) bool {
	oa, ok1 := a.(owner)
	ob, ok2 := b.(owner)
	if !ok1 || !ok2 {
		return false
	}
	for _, x := range oa.owned() {
		for _, y := range ob.owned() {
			if samePointer(x, y) {
				return true
			}
		}
	}
	return false
}

func samePointer(x, y any) bool {
	vx, vy := reflect.ValueOf(x), reflect.ValueOf(y)
	if vx.Kind() != reflect.Pointer || vy.Kind() != reflect.Pointer {
		return false
	}
	return vx.Pointer() == vy.Pointer() && vx.Type() == vy.Type()
}

// New builds a reactor of the given kind around gas.
func New(kind Kind, name string, gas thermo.Phase) (Reactor, error) {
	switch kind {
	case KindReservoir:
		return NewReservoir(name, gas)
	case KindFlowReactor:
		return NewFlowReactor(name, gas)
	}
	return NewGasReactor(kind, name, gas)
}

func thermoError(name string, err error) error {
	return fmt.Errorf("%w: reactor %q: %v", simerr.ErrThermoState, name, err)
}

func clippingError(name string, amount, tol float64) error {
	return &simerr.Error{
		Kind: simerr.Clipping,
		Op:   "reactor.UpdateState",
		Err:  fmt.Errorf("%w: reactor %q clipped %g (tolerance %g)", simerr.ErrNegativeAmount, name, amount, tol),
	}
}
