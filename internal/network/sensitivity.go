package network

import (
	"fmt"

	"github.com/san-kum/reactornet/internal/kinetics"
	"github.com/san-kum/reactornet/internal/reactor"
	"github.com/san-kum/reactornet/internal/simerr"
)

// Parameter is a reaction rate multiplier registered for sensitivity
// analysis.
type Parameter struct {
	Name     string
	Reactor  string
	Reaction int
	kin      kinetics.Kinetics
}

type kineticsHolder interface {
	Kinetics() kinetics.Kinetics
}

// AddSensitivityReaction registers the rate multiplier of reaction i in
// r's kinetics and returns the parameter index.
func (n *Network) AddSensitivityReaction(r reactor.Reactor, i int) (int, error) {
	const op = "network.AddSensitivityReaction"
	h, ok := r.(kineticsHolder)
	if !ok || h.Kinetics() == nil {
		return -1, simerr.Configf(op, "%w: reactor %q has no kinetics", simerr.ErrInvalidParameter, r.Name())
	}
	kin := h.Kinetics()
	if i < 0 || i >= kin.NReactions() {
		return -1, simerr.Configf(op, "%w: reaction %d of %d", simerr.ErrInvalidParameter, i, kin.NReactions())
	}
	n.params = append(n.params, Parameter{
		Name:     fmt.Sprintf("%s: %s", r.Name(), kin.ReactionEquation(i)),
		Reactor:  r.Name(),
		Reaction: i,
		kin:      kin,
	})
	return len(n.params) - 1, nil
}

func (n *Network) NParameters() int { return len(n.params) }

// Parameters returns the registered parameters in index order.
func (n *Network) Parameters() []Parameter { return append([]Parameter(nil), n.params...) }

// ParameterValue returns the current multiplier of parameter p.
func (n *Network) ParameterValue(p int) (float64, error) {
	if p < 0 || p >= len(n.params) {
		return 0, simerr.Configf("network.ParameterValue", "%w: parameter %d", simerr.ErrInvalidParameter, p)
	}
	prm := n.params[p]
	return prm.kin.Multiplier(prm.Reaction), nil
}

// SetParameter sets the multiplier of parameter p. Reactors sharing the
// kinetics object see the change too. Initialize before advancing again.
func (n *Network) SetParameter(p int, v float64) error {
	const op = "network.SetParameter"
	if p < 0 || p >= len(n.params) {
		return simerr.Configf(op, "%w: parameter %d", simerr.ErrInvalidParameter, p)
	}
	if !(v >= 0) {
		return simerr.Configf(op, "%w: multiplier %g", simerr.ErrInvalidParameter, v)
	}
	prm := n.params[p]
	prm.kin.SetMultiplier(prm.Reaction, v)
	n.initialized = false
	return nil
}
