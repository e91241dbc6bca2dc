package integrators

// lagrangeWeights fills w[j] with the j-th Lagrange basis polynomial over
// nodes evaluated at x.
func lagrangeWeights(nodes []float64, x float64, w []float64) {
	for j := range nodes {
		p := 1.0
		for m := range nodes {
			if m != j {
				p *= (x - nodes[m]) / (nodes[j] - nodes[m])
			}
		}
		w[j] = p
	}
}

// bdfCoefficients fills a[j] with the derivative of the j-th Lagrange basis
// polynomial over nodes, evaluated at nodes[0]. The BDF corrector is
// y'(t0) ≈ Σ a[j] y(nodes[j]).
func bdfCoefficients(nodes []float64, a []float64) {
	t0 := nodes[0]
	s := 0.0
	for m := 1; m < len(nodes); m++ {
		s += 1 / (t0 - nodes[m])
	}
	a[0] = s
	for j := 1; j < len(nodes); j++ {
		num, den := 1.0, 1.0
		for m := range nodes {
			if m == j {
				continue
			}
			den *= nodes[j] - nodes[m]
			if m != 0 {
				num *= t0 - nodes[m]
			}
		}
		a[j] = num / den
	}
}

// combine writes Σ w[j] ys[j] into dst.
func combine(dst []float64, w []float64, ys [][]float64) {
	for i := range dst {
		dst[i] = 0
	}
	for j, wj := range w {
		y := ys[j]
		for i := range dst {
			dst[i] += wj * y[i]
		}
	}
}
