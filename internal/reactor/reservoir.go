package reactor

import (
	"github.com/san-kum/reactornet/internal/simerr"
	"github.com/san-kum/reactornet/internal/thermo"
)

// Reservoir is an infinite source or sink whose state never changes during
// integration. It contributes no equations.
type Reservoir struct {
	base
}

func NewReservoir(name string, gas thermo.Phase) (*Reservoir, error) {
	b, err := newBase(name, gas)
	if err != nil {
		return nil, err
	}
	return &Reservoir{base: b}, nil
}

func (r *Reservoir) Kind() Kind                        { return KindReservoir }
func (r *Reservoir) IndependentVariable() string       { return "time" }
func (r *Reservoir) NEq() int                          { return 0 }
func (r *Reservoir) ComponentIndex(string) int         { return -1 }
func (r *Reservoir) ComponentName(int) string          { return "" }
func (r *Reservoir) TrialPhase() thermo.View           { return thermo.ReadOnly(r.gas) }
func (r *Reservoir) GetState([]float64) error          { return nil }
func (r *Reservoir) SetTrialState([]float64) error     { return nil }
func (r *Reservoir) AdvanceLimits() map[string]float64 { return nil }

func (r *Reservoir) UpdateState([]float64) (float64, error) { return 0, nil }

func (r *Reservoir) Eval(float64, *Exchange, []float64, []float64) error { return nil }

func (r *Reservoir) Validate() error {
	if r.gas.NSpecies() == 0 {
		return simerr.Configf("reactor.Validate", "%w: reservoir %q", simerr.ErrNoSpecies, r.name)
	}
	return nil
}

func (r *Reservoir) Initialize() error {
	if err := r.Validate(); err != nil {
		return err
	}
	r.initialized = true
	return nil
}

// SetState replaces the reservoir contents. The network must be
// re-initialized before the change is seen by its integrator history.
func (r *Reservoir) SetState(t, p float64, y []float64) error {
	if err := r.gas.SetStateTPY(t, p, y); err != nil {
		return simerr.Configf("reactor.Reservoir.SetState", "%w: %v", simerr.ErrInvalidParameter, err)
	}
	r.topology++
	return nil
}
