package integrators

import (
	"testing"
)

// benchChain is a linear chain of first-order reactions with widely spread
// rate constants.
type benchChain struct{ n int }

func (b benchChain) NEq() int { return b.n }
func (b benchChain) Eval(t float64, y, lhs, rhs []float64) error {
	k := 1.0
	for i := 0; i < b.n; i++ {
		lhs[i] = 1
		rhs[i] = 0
	}
	for i := 0; i < b.n-1; i++ {
		r := k * y[i]
		rhs[i] -= r
		rhs[i+1] += r
		k *= 10
	}
	return nil
}

func benchSolve(b *testing.B, s Solver, sys System, y0 []float64, tEnd float64) {
	b.ReportAllocs()
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		if err := s.Initialize(sys, 0, y0); err != nil {
			b.Fatal(err)
		}
		if _, err := integrate(s, tEnd, 1000000); err != nil {
			b.Fatal(err)
		}
	}
}

func BenchmarkRK45_Oscillator(b *testing.B) {
	benchSolve(b, NewRK45(Options{RelTol: 1e-8, AbsTol: 1e-12}), harmonicOscillator{}, []float64{1, 0}, 10)
}

func BenchmarkBDF_Oscillator(b *testing.B) {
	benchSolve(b, NewBDF(Options{RelTol: 1e-8, AbsTol: 1e-12}), harmonicOscillator{}, []float64{1, 0}, 10)
}

func BenchmarkBDF_Robertson(b *testing.B) {
	benchSolve(b, NewBDF(Options{RelTol: 1e-6, AbsTol: 1e-10}), robertson{}, []float64{1, 0, 0}, 40)
}

func BenchmarkBDF_StiffChain20(b *testing.B) {
	y0 := make([]float64, 20)
	y0[0] = 1
	benchSolve(b, NewBDF(Options{RelTol: 1e-6, AbsTol: 1e-12}), benchChain{n: 20}, y0, 1)
}
