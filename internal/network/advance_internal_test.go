package network

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/reactornet/internal/integrators"
	"github.com/san-kum/reactornet/internal/kinetics"
	"github.com/san-kum/reactornet/internal/reactor"
	"github.com/san-kum/reactornet/internal/simerr"
	"github.com/san-kum/reactornet/internal/thermo"
)

var errNoDenseOutput = errors.New("no dense output")

// blindSolver steps normally but cannot interpolate.
type blindSolver struct {
	integrators.Solver
}

func (blindSolver) Interpolate(float64, []float64) error { return errNoDenseOutput }

var _ = Describe("dense output", func() {
	It("reports a failed interpolation as a numerical error at the committed state", func() {
		gas, err := kinetics.Air().NewGas()
		Expect(err).NotTo(HaveOccurred())
		Expect(thermo.SetStateTPString(gas, 600, thermo.OneAtm, "O2:1, N2:3.76")).To(Succeed())
		r, err := reactor.NewGasReactor(reactor.KindIdealGasReactor, "r", gas)
		Expect(err).NotTo(HaveOccurred())

		net := New(r)
		Expect(net.Initialize()).To(Succeed())
		mark := AtTime("mark", 0.5, nil)
		Expect(net.AddEvent(mark)).To(Succeed())
		net.solver = blindSolver{net.solver}

		t, err := net.Advance(context.Background(), 1)
		Expect(simerr.Is(err, simerr.Numerical)).To(BeTrue(), "error: %v", err)
		Expect(err).To(MatchError(errNoDenseOutput))
		var se *simerr.Error
		Expect(errors.As(err, &se)).To(BeTrue())
		Expect(se.Time).To(Equal(t))
		Expect(se.State).To(Equal(net.State()))
		Expect(t).To(BeNumerically("<", 0.5))
		Expect(mark.Fired()).To(BeZero())
	})
})
