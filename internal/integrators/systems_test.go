package integrators

import (
	"errors"
	"math"
)

type decay struct{}

func (decay) NEq() int { return 1 }
func (decay) Eval(t float64, y, lhs, rhs []float64) error {
	lhs[0] = 1
	rhs[0] = -y[0]
	return nil
}

type harmonicOscillator struct{}

func (harmonicOscillator) NEq() int { return 2 }
func (harmonicOscillator) Eval(t float64, y, lhs, rhs []float64) error {
	lhs[0], lhs[1] = 1, 1
	rhs[0], rhs[1] = y[1], -y[0]
	return nil
}

func (harmonicOscillator) energy(y []float64) float64 {
	return 0.5 * (y[0]*y[0] + y[1]*y[1])
}

// robertson is the classic stiff chemical kinetics test problem.
type robertson struct{}

func (robertson) NEq() int { return 3 }
func (robertson) Eval(t float64, y, lhs, rhs []float64) error {
	lhs[0], lhs[1], lhs[2] = 1, 1, 1
	rhs[0] = -0.04*y[0] + 1e4*y[1]*y[2]
	rhs[2] = 3e7 * y[1] * y[1]
	rhs[1] = -rhs[0] - rhs[2]
	return nil
}

// scaledDecay has a non-unit lhs row and an algebraic row:
// 2 y' = -2 y and 0 = 2y - z.
type scaledDecay struct{}

func (scaledDecay) NEq() int { return 2 }
func (scaledDecay) Eval(t float64, y, lhs, rhs []float64) error {
	lhs[0], rhs[0] = 2, -2*y[0]
	lhs[1], rhs[1] = 0, 2*y[0]-y[1]
	return nil
}

var errOutOfRange = errors.New("state provider rejected state")

// failsAfter evaluates y' = 1 but rejects every time past limit.
type failsAfter struct{ limit float64 }

func (failsAfter) NEq() int { return 1 }
func (f failsAfter) Eval(t float64, y, lhs, rhs []float64) error {
	if t > f.limit {
		return errOutOfRange
	}
	lhs[0], rhs[0] = 1, 1
	return nil
}

type nanSystem struct{}

func (nanSystem) NEq() int { return 1 }
func (nanSystem) Eval(t float64, y, lhs, rhs []float64) error {
	lhs[0], rhs[0] = 1, math.NaN()
	return nil
}

func integrate(s Solver, tEnd float64, maxSteps int) (float64, error) {
	t := s.Time()
	for i := 0; i < maxSteps && t < tEnd; i++ {
		var err error
		if t, err = s.Step(tEnd); err != nil {
			return t, err
		}
	}
	return t, nil
}
