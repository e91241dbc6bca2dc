package metrics

import "math"

// Peak records the largest value of one state component and when it
// occurred.
type Peak struct {
	name    string
	index   int
	max     float64
	at      float64
	samples int
}

func NewPeak(name string, index int) *Peak {
	return &Peak{name: name, index: index, max: math.Inf(-1)}
}

func (p *Peak) Name() string { return p.name }

func (p *Peak) Observe(t float64, y []float64) {
	if p.index < 0 || p.index >= len(y) {
		return
	}
	p.samples++
	if y[p.index] > p.max {
		p.max, p.at = y[p.index], t
	}
}

func (p *Peak) Value() float64 {
	if p.samples == 0 {
		return 0
	}
	return p.max
}

// At returns the time of the peak.
func (p *Peak) At() float64 { return p.at }

func (p *Peak) Reset() {
	p.max = math.Inf(-1)
	p.at = 0
	p.samples = 0
}
