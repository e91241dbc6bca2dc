package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/san-kum/reactornet/internal/integrators"
)

const namespace = "reactornet"

// Collector exports solver progress and metric values to Prometheus. It is
// a network.Observer; register it with AddObserver.
type Collector struct {
	time      prometheus.Gauge
	stepSize  prometheus.Gauge
	order     prometheus.Gauge
	steps     prometheus.Counter
	rejected  prometheus.Counter
	rhsEvals  prometheus.Counter
	jacEvals  prometheus.Counter
	factors   prometheus.Counter
	nonlinear prometheus.Counter
	values    *prometheus.GaugeVec

	metrics []Metric
	last    integrators.Stats
}

// NewCollector registers the collector's series on reg under a network
// label and feeds ms on every step.
func NewCollector(reg prometheus.Registerer, name string, ms ...Metric) (*Collector, error) {
	labels := prometheus.Labels{"network": name}
	gauge := func(metric, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: metric, Help: help, ConstLabels: labels,
		})
	}
	counter := func(metric, help string) prometheus.Counter {
		return prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Name: metric, Help: help, ConstLabels: labels,
		})
	}

	c := &Collector{
		time:      gauge("time", "Independent variable of the last accepted step."),
		stepSize:  gauge("step_size", "Size of the last accepted step."),
		order:     gauge("order", "Integration order of the last accepted step."),
		steps:     counter("steps_total", "Accepted integrator steps."),
		rejected:  counter("rejected_steps_total", "Rejected integrator steps."),
		rhsEvals:  counter("rhs_evals_total", "Right-hand side evaluations."),
		jacEvals:  counter("jacobian_evals_total", "Jacobian evaluations."),
		factors:   counter("factorizations_total", "Iteration matrix factorizations."),
		nonlinear: counter("nonlinear_failures_total", "Corrector convergence failures."),
		values: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Name: "metric", Help: "Run metric values.", ConstLabels: labels,
		}, []string{"metric"}),
		metrics: ms,
	}

	for _, col := range []prometheus.Collector{
		c.time, c.stepSize, c.order, c.steps, c.rejected,
		c.rhsEvals, c.jacEvals, c.factors, c.nonlinear, c.values,
	} {
		if err := reg.Register(col); err != nil {
			return nil, err
		}
	}
	return c, nil
}

func (c *Collector) OnStep(t float64, y []float64, s integrators.Stats) {
	c.time.Set(t)
	c.stepSize.Set(s.LastStep)
	c.order.Set(float64(s.Order))

	c.steps.Add(delta(s.Steps, c.last.Steps))
	c.rejected.Add(delta(s.Rejected, c.last.Rejected))
	c.rhsEvals.Add(delta(s.RHSEvals, c.last.RHSEvals))
	c.jacEvals.Add(delta(s.JacEvals, c.last.JacEvals))
	c.factors.Add(delta(s.Factorizations, c.last.Factorizations))
	c.nonlinear.Add(delta(s.NonlinFailures, c.last.NonlinFailures))
	c.last = s

	for _, m := range c.metrics {
		m.Observe(t, y)
		c.values.WithLabelValues(m.Name()).Set(m.Value())
	}
}

// delta is the increase of a cumulative count. Initializing the network
// again resets the counts, in which case the new value is the increase.
func delta(cur, prev int) float64 {
	if cur < prev {
		return float64(cur)
	}
	return float64(cur - prev)
}
