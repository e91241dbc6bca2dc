package metrics

import (
	"math"

	"github.com/san-kum/reactornet/internal/network"
)

// Drift tracks the largest relative departure of a network total from its
// first observed value.
type Drift struct {
	name     string
	total    func() float64
	initial  float64
	current  float64
	maxDrift float64
	samples  int
}

func NewDrift(name string, total func() float64) *Drift {
	return &Drift{name: name, total: total}
}

// NewMassDrift watches the mass held by the network's reactors. It stays
// near zero for closed networks.
func NewMassDrift(n *network.Network) *Drift { return NewDrift("mass_drift", n.TotalMass) }

// NewEnergyDrift watches m·u (m·h at held pressure) summed over reactors.
func NewEnergyDrift(n *network.Network) *Drift { return NewDrift("energy_drift", n.TotalEnergy) }

func (d *Drift) Name() string { return d.name }

func (d *Drift) Observe(float64, []float64) {
	v := d.total()
	if d.samples == 0 {
		d.initial = v
	}
	d.current = v
	d.samples++

	if d.initial != 0 {
		drift := math.Abs(v-d.initial) / math.Abs(d.initial)
		d.maxDrift = math.Max(d.maxDrift, drift)
	}
}

func (d *Drift) Value() float64 { return d.maxDrift }

// Current returns the last observed total.
func (d *Drift) Current() float64 { return d.current }

func (d *Drift) Reset() {
	d.initial = 0
	d.current = 0
	d.maxDrift = 0
	d.samples = 0
}
