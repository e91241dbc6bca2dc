package experiment

import (
	"context"
	"runtime"
	"sync"

	"github.com/san-kum/reactornet/internal/config"
	"github.com/san-kum/reactornet/internal/kinetics"
	"github.com/san-kum/reactornet/internal/reactor"
	"github.com/san-kum/reactornet/internal/simerr"
)

const DefaultPerturbation = 1e-2

// Sensitivity holds normalized sensitivities d ln q / d ln k of one
// component q to each perturbed rate multiplier k.
type Sensitivity struct {
	Target     string
	Time       float64
	Base       float64
	Parameters []string
	Values     []float64
}

// Sensitivities runs the base case and one perturbed case per reaction,
// up to Workers at a time. Every case builds its own network.
func (r *Registry) Sensitivities(ctx context.Context, cfg *config.Config) (*Sensitivity, error) {
	const op = "experiment.Sensitivities"
	sc := cfg.Sensitivity
	if sc == nil {
		return nil, simerr.Configf(op, "%w: no sensitivity section", simerr.ErrInvalidParameter)
	}
	at := sc.Time
	if at == 0 {
		at = cfg.Duration
	}
	eps := sc.Perturbation
	if eps == 0 {
		eps = DefaultPerturbation
	}
	workers := sc.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}

	base, err := r.Build(cfg.Clone())
	if err != nil {
		return nil, err
	}
	reactions, err := base.register(sc)
	if err != nil {
		return nil, err
	}
	q0, err := base.valueAt(ctx, sc.Target, at)
	if err != nil {
		return nil, err
	}
	if q0 == 0 {
		return nil, simerr.Configf(op, "%w: target %s is zero at %g", simerr.ErrInvalidParameter, sc.Target, at)
	}

	out := &Sensitivity{
		Target:     sc.Target,
		Time:       at,
		Base:       q0,
		Parameters: make([]string, len(reactions)),
		Values:     make([]float64, len(reactions)),
	}
	for p, prm := range base.Network.Parameters() {
		out.Parameters[p] = prm.Name
	}

	errs := make([]error, len(reactions))
	sem := make(chan struct{}, workers)
	var wg sync.WaitGroup
	for p := range reactions {
		wg.Add(1)
		go func(idx int) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			q, err := r.perturbed(ctx, cfg, idx, 1+eps, at)
			if err != nil {
				errs[idx] = err
				return
			}
			out.Values[idx] = (q - q0) / q0 / eps
		}(p)
	}
	wg.Wait()

	for _, err := range errs {
		if err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (r *Registry) perturbed(ctx context.Context, cfg *config.Config, p int, factor, at float64) (float64, error) {
	m, err := r.Build(cfg.Clone())
	if err != nil {
		return 0, err
	}
	if _, err := m.register(cfg.Sensitivity); err != nil {
		return 0, err
	}
	if err := m.Network.SetParameter(p, factor); err != nil {
		return 0, err
	}
	if err := m.Network.Initialize(); err != nil {
		return 0, err
	}
	return m.valueAt(ctx, cfg.Sensitivity.Target, at)
}

// register adds the selected reactions of the sensitivity reactor as
// network parameters, in order. An empty selection means every reaction.
func (m *Model) register(sc *config.SensitivityConfig) ([]int, error) {
	const op = "experiment.Sensitivities"
	node, _ := m.Node(sc.Reactor)
	r, ok := node.(reactor.Reactor)
	if !ok {
		return nil, simerr.Configf(op, "%w: %q is not integrated", simerr.ErrInvalidParameter, sc.Reactor)
	}
	reactions := sc.Reactions
	if len(reactions) == 0 {
		h, ok := r.(interface{ Kinetics() kinetics.Kinetics })
		if !ok || h.Kinetics() == nil {
			return nil, simerr.Configf(op, "%w: reactor %q has no kinetics", simerr.ErrInvalidParameter, sc.Reactor)
		}
		for i := 0; i < h.Kinetics().NReactions(); i++ {
			reactions = append(reactions, i)
		}
	}
	for _, i := range reactions {
		if _, err := m.Network.AddSensitivityReaction(r, i); err != nil {
			return nil, err
		}
	}
	return reactions, nil
}

// valueAt advances to at and reads a "reactor.component" value.
func (m *Model) valueAt(ctx context.Context, component string, at float64) (float64, error) {
	net := m.Network
	i, err := net.ComponentIndex(component)
	if err != nil {
		return 0, err
	}
	for net.Time() < at {
		if _, err := net.Advance(ctx, at); err != nil {
			return 0, err
		}
	}
	return net.State()[i], nil
}
