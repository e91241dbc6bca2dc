package metrics

import (
	"github.com/san-kum/reactornet/internal/integrators"
	"github.com/san-kum/reactornet/internal/network"
)

// Metric summarizes a run from the states seen after accepted steps.
type Metric interface {
	Name() string
	Observe(t float64, y []float64)
	Value() float64
	Reset()
}

// Observer feeds every accepted network step to ms.
func Observer(ms ...Metric) network.Observer {
	return network.ObserverFunc(func(t float64, y []float64, _ integrators.Stats) {
		for _, m := range ms {
			m.Observe(t, y)
		}
	})
}

// Values collects the current value of each metric by name.
func Values(ms ...Metric) map[string]float64 {
	out := make(map[string]float64, len(ms))
	for _, m := range ms {
		out[m.Name()] = m.Value()
	}
	return out
}
