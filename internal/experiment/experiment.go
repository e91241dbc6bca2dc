package experiment

import (
	"context"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/san-kum/reactornet/internal/config"
	"github.com/san-kum/reactornet/internal/integrators"
	"github.com/san-kum/reactornet/internal/metrics"
	"github.com/san-kum/reactornet/internal/network"
)

// Result is a sampled run. Columns names each entry of a state row: the
// network components followed by the temperature and pressure of every
// reactor.
type Result struct {
	Name     string
	Variable string
	Columns  []string
	Times    []float64
	States   [][]float64
	Stats    network.Stats
	Metrics  map[string]float64
	Elapsed  time.Duration
}

// Column returns the samples of one named column.
func (r *Result) Column(name string) ([]float64, error) {
	for j, c := range r.Columns {
		if c != name {
			continue
		}
		out := make([]float64, len(r.States))
		for i, row := range r.States {
			out[i] = row[j]
		}
		return out, nil
	}
	return nil, fmt.Errorf("unknown column: %s", name)
}

// Last returns the final sample of a column.
func (r *Result) Last(name string) (float64, error) {
	col, err := r.Column(name)
	if err != nil {
		return 0, err
	}
	if len(col) == 0 {
		return 0, fmt.Errorf("no samples")
	}
	return col[len(col)-1], nil
}

type thermoState interface {
	Name() string
	Temperature() float64
	Pressure() float64
}

// Experiment runs one network description on a sampling schedule.
type Experiment struct {
	cfg       *config.Config
	model     *Model
	metrics   []metrics.Metric
	observers []network.Observer
	log       logrus.FieldLogger
}

func New(cfg *config.Config) *Experiment {
	return &Experiment{cfg: cfg, log: logrus.StandardLogger()}
}

func (e *Experiment) SetLogger(l logrus.FieldLogger) { e.log = l }

// Setup builds the network and the default metrics: mass and energy
// drift, and the peak of every temperature component.
func (e *Experiment) Setup(reg *Registry) error {
	m, err := reg.Build(e.cfg)
	if err != nil {
		return err
	}
	m.Network.SetLogger(e.log)
	e.model = m

	net := m.Network
	e.metrics = []metrics.Metric{metrics.NewMassDrift(net), metrics.NewEnergyDrift(net)}
	for i := 0; i < net.NEq(); i++ {
		name := net.ComponentName(i)
		if strings.HasSuffix(name, ".temperature") {
			e.metrics = append(e.metrics, metrics.NewPeak("peak:"+name, i))
		}
	}
	return nil
}

// AddMetric adds a metric to the run summary.
func (e *Experiment) AddMetric(m metrics.Metric) { e.metrics = append(e.metrics, m) }

// AddObserver registers o on the network before Run starts.
func (e *Experiment) AddObserver(o network.Observer) { e.observers = append(e.observers, o) }

func (e *Experiment) Model() *Model { return e.model }

func (e *Experiment) Metrics() []metrics.Metric { return e.metrics }

// Run advances the network to its duration. With a positive interval the
// state is sampled on that grid; otherwise after every accepted step.
func (e *Experiment) Run(ctx context.Context) (*Result, error) {
	if e.model == nil {
		return nil, fmt.Errorf("experiment not setup")
	}
	net := e.model.Network
	start := time.Now()

	res := &Result{
		Name:     e.cfg.Name,
		Variable: net.IndependentVariable(),
		Columns:  columns(net),
	}
	record := func(t float64, y []float64) {
		res.Times = append(res.Times, t)
		res.States = append(res.States, sample(net, y))
	}
	record(net.Time(), net.State())

	for _, m := range e.metrics {
		m.Observe(net.Time(), net.State())
	}
	net.AddObserver(metrics.Observer(e.metrics...))
	for _, o := range e.observers {
		net.AddObserver(o)
	}
	if e.cfg.Interval <= 0 {
		net.AddObserver(network.ObserverFunc(func(t float64, y []float64, _ integrators.Stats) { record(t, y) }))
	}

	t0, end := net.Time(), net.Time()+e.cfg.Duration
	e.log.WithFields(logrus.Fields{
		"network":  e.cfg.Name,
		"size":     net.NEq(),
		"duration": e.cfg.Duration,
		"method":   net.Options().Method,
	}).Info("run started")

	var targets []float64
	if e.cfg.Interval > 0 {
		n := int(math.Ceil(e.cfg.Duration/e.cfg.Interval - 1e-9))
		for k := 1; k <= n; k++ {
			targets = append(targets, math.Min(t0+float64(k)*e.cfg.Interval, end))
		}
	} else {
		targets = []float64{end}
	}

	finish := func(err error) (*Result, error) {
		res.Stats = net.Stats()
		res.Metrics = metrics.Values(e.metrics...)
		res.Elapsed = time.Since(start)
		fields := logrus.Fields{
			"network": e.cfg.Name,
			"time":    net.Time(),
			"steps":   res.Stats.Solver.Steps,
			"elapsed": res.Elapsed,
		}
		if err != nil {
			e.log.WithFields(fields).WithError(err).Error("run failed")
			return res, err
		}
		e.log.WithFields(fields).Info("run finished")
		return res, nil
	}

	for _, target := range targets {
		for net.Time() < target {
			if _, err := net.Advance(ctx, target); err != nil {
				return finish(err)
			}
		}
		if e.cfg.Interval > 0 {
			record(net.Time(), net.State())
		}
	}
	return finish(nil)
}

func columns(net *network.Network) []string {
	out := make([]string, 0, net.NEq())
	for i := 0; i < net.NEq(); i++ {
		out = append(out, net.ComponentName(i))
	}
	for _, r := range net.Reactors() {
		if ts, ok := r.(thermoState); ok {
			out = append(out, ts.Name()+".T", ts.Name()+".P")
		}
	}
	return out
}

func sample(net *network.Network, y []float64) []float64 {
	row := append(make([]float64, 0, len(y)+2*len(net.Reactors())), y...)
	for _, r := range net.Reactors() {
		if ts, ok := r.(thermoState); ok {
			row = append(row, ts.Temperature(), ts.Pressure())
		}
	}
	return row
}
