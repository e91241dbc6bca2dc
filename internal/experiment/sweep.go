package experiment

import (
	"context"
	"math"
	"strings"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/reactornet/internal/config"
	"github.com/san-kum/reactornet/internal/simerr"
)

// SweepPoint is one run of a sweep. Err holds a failed run; failures do
// not stop the sweep.
type SweepPoint struct {
	Values  map[string]float64
	Metrics map[string]float64
	Err     error
}

// Sweep runs a network over the full grid of parameter values. Parameters
// are "duration" or "<name>.<field>" where name is a reactor, wall or flow
// device of the network.
type Sweep struct {
	params []string
	ranges [][]float64
}

func NewSweep(params []string, ranges [][]float64) (*Sweep, error) {
	if len(params) == 0 || len(params) != len(ranges) {
		return nil, simerr.Configf("experiment.NewSweep", "%w: %d parameters for %d ranges", simerr.ErrInvalidParameter, len(params), len(ranges))
	}
	for i, r := range ranges {
		if len(r) == 0 {
			return nil, simerr.Configf("experiment.NewSweep", "%w: no values for %s", simerr.ErrInvalidParameter, params[i])
		}
	}
	return &Sweep{params: params, ranges: ranges}, nil
}

// Run executes every grid point in order, the last parameter varying
// fastest.
func (s *Sweep) Run(ctx context.Context, reg *Registry, base *config.Config) ([]SweepPoint, error) {
	// reject unknown parameters before the first run
	check := base.Clone()
	for i, p := range s.params {
		if err := applyParam(check, p, s.ranges[i][0]); err != nil {
			return nil, err
		}
	}

	var points []SweepPoint
	err := s.searchRecursive(ctx, 0, map[string]float64{}, func(values map[string]float64) {
		points = append(points, s.runPoint(ctx, reg, base, values))
	})
	return points, err
}

func (s *Sweep) searchRecursive(ctx context.Context, depth int, current map[string]float64, visit func(map[string]float64)) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if depth == len(s.params) {
		visit(current)
		return nil
	}
	for _, val := range s.ranges[depth] {
		next := make(map[string]float64, len(current)+1)
		for k, v := range current {
			next[k] = v
		}
		next[s.params[depth]] = val
		if err := s.searchRecursive(ctx, depth+1, next, visit); err != nil {
			return err
		}
	}
	return nil
}

func (s *Sweep) runPoint(ctx context.Context, reg *Registry, base *config.Config, values map[string]float64) SweepPoint {
	pt := SweepPoint{Values: values}
	cfg := base.Clone()
	for name, v := range values {
		if pt.Err = applyParam(cfg, name, v); pt.Err != nil {
			return pt
		}
	}

	exp := New(cfg)
	exp.SetLogger(logrus.WithField("sweep", values))
	if pt.Err = exp.Setup(reg); pt.Err != nil {
		return pt
	}
	res, err := exp.Run(ctx)
	pt.Err = err
	if res != nil {
		pt.Metrics = res.Metrics
	}
	return pt
}

// Best returns the successful point with the smallest value of metric,
// or the largest when maximize is set.
func Best(points []SweepPoint, metric string, maximize bool) (SweepPoint, bool) {
	best, found := SweepPoint{}, false
	bestVal := math.Inf(1)
	for _, p := range points {
		if p.Err != nil {
			continue
		}
		v, ok := p.Metrics[metric]
		if !ok {
			continue
		}
		if maximize {
			v = -v
		}
		if v < bestVal {
			best, bestVal, found = p, v, true
		}
	}
	return best, found
}

func applyParam(cfg *config.Config, name string, v float64) error {
	const op = "experiment.Sweep"
	if name == "duration" {
		cfg.Duration = v
		return nil
	}
	target, field, ok := strings.Cut(name, ".")
	if !ok {
		return simerr.Configf(op, "%w: parameter %q is not <name>.<field>", simerr.ErrInvalidParameter, name)
	}

	for i := range cfg.Reactors {
		rc := &cfg.Reactors[i]
		if rc.Name != target {
			continue
		}
		switch field {
		case "temperature":
			rc.Temperature = v
		case "pressure":
			rc.Pressure = v
		case "volume":
			rc.Volume = v
		case "mass_flow_rate":
			rc.MassFlowRate = v
		default:
			return simerr.Configf(op, "%w: reactor field %q", simerr.ErrUnknownComponent, field)
		}
		return nil
	}
	for i := range cfg.Walls {
		wc := &cfg.Walls[i]
		if wc.Name != target {
			continue
		}
		switch field {
		case "area":
			wc.Area = v
		case "u":
			wc.U = v
		case "k":
			wc.K = v
		case "emissivity":
			wc.Emissivity = v
		default:
			return simerr.Configf(op, "%w: wall field %q", simerr.ErrUnknownComponent, field)
		}
		return nil
	}
	for i := range cfg.Flows {
		fc := &cfg.Flows[i]
		if fc.Name != target {
			continue
		}
		switch field {
		case "mass_flow_rate":
			fc.MassFlowRate = v
		case "coeff":
			fc.Coeff = v
		default:
			return simerr.Configf(op, "%w: flow field %q", simerr.ErrUnknownComponent, field)
		}
		return nil
	}
	return simerr.Configf(op, "%w: %q", simerr.ErrUnknownComponent, target)
}
