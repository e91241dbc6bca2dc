// Package connector implements walls and flow devices between reactors.
//
// Connectors hold parameters only. Every rate is recomputed from the
// endpoints' trial phases on each call, so the integrator may evaluate them
// at arbitrary trial times. Rates are positive from the left (upstream)
// endpoint to the right (downstream) one.
package connector

import (
	"math"

	"github.com/san-kum/reactornet/internal/funcs"
	"github.com/san-kum/reactornet/internal/reactor"
	"github.com/san-kum/reactornet/internal/simerr"
	"github.com/san-kum/reactornet/internal/thermo"
)

// Wall separates two nodes. It can move, changing both volumes, and
// conduct or radiate heat.
type Wall struct {
	name        string
	left, right reactor.Node
	enabled     bool

	area       float64
	expansion  float64 // K, m/s/Pa
	heatCoeff  float64 // U, W/m^2/K
	emissivity float64
	velocity   funcs.Func1 // m/s, positive moves into right
	heatFlux   funcs.Func1 // W/m^2, positive into right
}

// NewWall attaches a wall of area 1 m^2 between left and right.
func NewWall(name string, left, right reactor.Node) (*Wall, error) {
	if err := checkEndpoints("connector.NewWall", name, left, right); err != nil {
		return nil, err
	}
	w := &Wall{name: name, left: left, right: right, enabled: true, area: 1}
	left.Attach(reactor.Attachment{Role: reactor.WallLeft, Conn: w})
	right.Attach(reactor.Attachment{Role: reactor.WallRight, Conn: w})
	return w, nil
}

func (w *Wall) Name() string                { return w.name }
func (w *Wall) Left() reactor.Node          { return w.left }
func (w *Wall) Right() reactor.Node         { return w.right }
func (w *Wall) Enabled() bool               { return w.enabled }
func (w *Wall) SetEnabled(on bool)          { w.enabled = on }
func (w *Wall) Area() float64               { return w.area }
func (w *Wall) ExpansionRateCoeff() float64 { return w.expansion }
func (w *Wall) HeatTransferCoeff() float64  { return w.heatCoeff }
func (w *Wall) Emissivity() float64         { return w.emissivity }
func (w *Wall) SetVelocity(f funcs.Func1)   { w.velocity = f }
func (w *Wall) SetHeatFlux(f funcs.Func1)   { w.heatFlux = f }

func (w *Wall) SetArea(a float64) error {
	if !(a > 0) || math.IsInf(a, 0) {
		return invalid("connector.Wall.SetArea", w.name, "area", a)
	}
	w.area = a
	return nil
}

func (w *Wall) SetExpansionRateCoeff(k float64) error {
	if !(k >= 0) || math.IsInf(k, 0) {
		return invalid("connector.Wall.SetExpansionRateCoeff", w.name, "expansion coefficient", k)
	}
	w.expansion = k
	return nil
}

func (w *Wall) SetHeatTransferCoeff(u float64) error {
	if !(u >= 0) || math.IsInf(u, 0) {
		return invalid("connector.Wall.SetHeatTransferCoeff", w.name, "heat transfer coefficient", u)
	}
	w.heatCoeff = u
	return nil
}

func (w *Wall) SetEmissivity(e float64) error {
	if !(e >= 0 && e <= 1) {
		return invalid("connector.Wall.SetEmissivity", w.name, "emissivity", e)
	}
	w.emissivity = e
	return nil
}

// ExpansionRate is the rate of volume increase of the left node, m^3/s:
// K·A·(P_l − P_r) + A·v(t).
func (w *Wall) ExpansionRate(t float64) float64 {
	if !w.enabled {
		return 0
	}
	l, r := w.left.TrialPhase(), w.right.TrialPhase()
	rate := w.expansion * w.area * (l.Pressure() - r.Pressure())
	if w.velocity != nil {
		rate += w.area * w.velocity.Eval(t)
	}
	return rate
}

// HeatRate is the heat flow from left to right, W:
// U·A·(T_l − T_r) + ε·σ·A·(T_l⁴ − T_r⁴) + A·q(t).
func (w *Wall) HeatRate(t float64) float64 {
	if !w.enabled {
		return 0
	}
	tl, tr := w.left.TrialPhase().Temperature(), w.right.TrialPhase().Temperature()
	q := w.heatCoeff * w.area * (tl - tr)
	if w.emissivity > 0 {
		q += w.emissivity * thermo.StefanBoltzmann * w.area * (math.Pow(tl, 4) - math.Pow(tr, 4))
	}
	if w.heatFlux != nil {
		q += w.area * w.heatFlux.Eval(t)
	}
	return q
}

// Remove detaches the wall from both endpoints.
func (w *Wall) Remove() {
	w.left.Detach(w)
	w.right.Detach(w)
}

func checkEndpoints(op, name string, a, b reactor.Node) error {
	if a == nil || b == nil {
		return simerr.Configf(op, "%w: %q needs two endpoints", simerr.ErrInvalidParameter, name)
	}
	if a == b {
		return simerr.Configf(op, "%w: %q connects %q to itself", simerr.ErrInvalidParameter, name, a.Name())
	}
	return nil
}

func invalid(op, name, what string, v float64) error {
	return simerr.Configf(op, "%w: %q %s %g", simerr.ErrInvalidParameter, name, what, v)
}
