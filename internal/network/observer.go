package network

import "github.com/san-kum/reactornet/internal/integrators"

// Observer is notified after every committed step. y is the network's
// buffer and must not be retained.
type Observer interface {
	OnStep(t float64, y []float64, stats integrators.Stats)
}

// ObserverFunc adapts a function to Observer.
type ObserverFunc func(t float64, y []float64, stats integrators.Stats)

func (f ObserverFunc) OnStep(t float64, y []float64, stats integrators.Stats) { f(t, y, stats) }

func (n *Network) AddObserver(o Observer) { n.observers = append(n.observers, o) }
