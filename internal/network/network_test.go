package network_test

import (
	"context"
	"fmt"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/reactornet/internal/connector"
	"github.com/san-kum/reactornet/internal/integrators"
	"github.com/san-kum/reactornet/internal/kinetics"
	"github.com/san-kum/reactornet/internal/network"
	"github.com/san-kum/reactornet/internal/reactor"
	"github.com/san-kum/reactornet/internal/simerr"
	"github.com/san-kum/reactornet/internal/thermo"
)

const airComposition = "O2:1, N2:3.76"

func newGas(mech kinetics.Mechanism, temp, p float64, comp string) *thermo.IdealGas {
	gas, err := mech.NewGas()
	Expect(err).NotTo(HaveOccurred())
	Expect(thermo.SetStateTPString(gas, temp, p, comp)).To(Succeed())
	return gas
}

func newReactor(kind reactor.Kind, name string, temp, p float64) *reactor.GasReactor {
	r, err := reactor.NewGasReactor(kind, name, newGas(kinetics.Air(), temp, p, airComposition))
	Expect(err).NotTo(HaveOccurred())
	return r
}

func newWall(left, right reactor.Node, u float64) *connector.Wall {
	w, err := connector.NewWall("wall", left, right)
	Expect(err).NotTo(HaveOccurred())
	Expect(w.SetHeatTransferCoeff(u)).To(Succeed())
	return w
}

func initialized(reactors ...reactor.Reactor) *network.Network {
	net := network.New(reactors...)
	Expect(net.Initialize()).To(Succeed())
	return net
}

// elementMoles returns kmol of each element per kg of mixture.
func elementMoles(v thermo.View) map[string]float64 {
	y := make([]float64, v.NSpecies())
	v.GetMassFractions(y)
	out := map[string]float64{}
	for _, e := range v.ElementNames() {
		for k, yk := range y {
			out[e] += yk * v.NAtoms(k, e) / v.MolecularWeight(k)
		}
	}
	return out
}

// drain is a one-component reactor whose amount falls at a constant rate
// and is clipped at zero.
type drain struct {
	*reactor.Reservoir
	amount float64
}

func newDrain() *drain {
	res, err := reactor.NewReservoir("drain", newGas(kinetics.Air(), 300, thermo.OneAtm, airComposition))
	Expect(err).NotTo(HaveOccurred())
	return &drain{Reservoir: res, amount: 1}
}

func (d *drain) Kind() reactor.Kind            { return reactor.KindReactor }
func (d *drain) NEq() int                      { return 1 }
func (d *drain) Initialize() error             { return nil }
func (d *drain) SetTrialState([]float64) error { return nil }
func (d *drain) ComponentName(i int) string    { return map[int]string{0: "amount"}[i] }

func (d *drain) ComponentIndex(name string) int {
	if name == "amount" {
		return 0
	}
	return -1
}

func (d *drain) GetState(y []float64) error {
	y[0] = d.amount
	return nil
}

func (d *drain) UpdateState(y []float64) (float64, error) {
	if y[0] >= 0 {
		d.amount = y[0]
		return 0, nil
	}
	d.amount = 0
	if -y[0] > 1e-6 {
		return -y[0], &simerr.Error{Kind: simerr.Clipping, Op: "drain.UpdateState", Err: simerr.ErrNegativeAmount}
	}
	return -y[0], nil
}

func (d *drain) Eval(_ float64, _ *reactor.Exchange, lhs, rhs []float64) error {
	lhs[0], rhs[0] = 1, -1
	return nil
}

// brittle is a drain that rejects amounts below floor.
type brittle struct {
	*drain
	floor float64
}

func (b *brittle) UpdateState(y []float64) (float64, error) {
	if y[0] < b.floor {
		return 0, fmt.Errorf("%w: amount %g below %g", simerr.ErrThermoState, y[0], b.floor)
	}
	return b.drain.UpdateState(y)
}

var _ = Describe("Network", func() {
	var ctx context.Context

	BeforeEach(func() {
		ctx = context.Background()
	})

	Describe("heat exchange through a wall", func() {
		It("keeps identical reactors identical and conserves energy", func() {
			a := newReactor(reactor.KindIdealGasConstPressureReactor, "a", 1000, thermo.OneAtm)
			b := newReactor(reactor.KindIdealGasConstPressureReactor, "b", 1000, thermo.OneAtm)
			newWall(a, b, 100)
			net := initialized(a, b)
			e0 := net.TotalEnergy()

			t, err := net.Advance(ctx, 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(t).To(Equal(100.0))
			Expect(math.Abs(a.Temperature() - b.Temperature())).To(BeNumerically("<", 1e-6))
			Expect(net.TotalEnergy()).To(BeNumerically("~", e0, 1e-8*math.Abs(e0)))
		})

		DescribeTable("conserves total enthalpy while temperatures equalize",
			func(u float64) {
				hot := newReactor(reactor.KindIdealGasConstPressureReactor, "hot", 1200, thermo.OneAtm)
				cold := newReactor(reactor.KindIdealGasConstPressureReactor, "cold", 1000, thermo.OneAtm)
				newWall(hot, cold, u)
				net := initialized(hot, cold)
				e0 := net.TotalEnergy()

				// 400 s is over forty time constants m·cp/(2UA) of the weak wall.
				for _, t := range []float64{0.01, 0.1, 1, 10, 100, 400} {
					_, err := net.Advance(ctx, t)
					Expect(err).NotTo(HaveOccurred())
					Expect(net.TotalEnergy()).To(BeNumerically("~", e0, 1e-7*math.Abs(e0)))
					Expect(hot.Temperature()).To(BeNumerically(">=", cold.Temperature()-1e-6))
				}
				if u > 0 {
					Expect(hot.Temperature()).To(BeNumerically("~", cold.Temperature(), 1e-4))
				} else {
					Expect(hot.Temperature()).To(BeNumerically("~", 1200, 1e-6))
				}
			},
			Entry("adiabatic wall", 0.0),
			Entry("weak coupling", 20.0),
			Entry("strong coupling", 500.0),
		)

		It("moves a wall toward the lower pressure and keeps total volume", func() {
			hi := newReactor(reactor.KindIdealGasReactor, "hi", 300, 2*thermo.OneAtm)
			lo := newReactor(reactor.KindIdealGasReactor, "lo", 300, thermo.OneAtm)
			w := newWall(hi, lo, 0)
			Expect(w.SetExpansionRateCoeff(1e-7)).To(Succeed())
			net := initialized(hi, lo)

			_, err := net.Advance(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(hi.Volume()).To(BeNumerically(">", 1))
			Expect(hi.Volume() + lo.Volume()).To(BeNumerically("~", 2, 1e-8))
		})
	})

	DescribeTable("conserves mass in a closed network",
		func(kind reactor.Kind) {
			hi := newReactor(kind, "hi", 300, 2*thermo.OneAtm)
			lo := newReactor(kind, "lo", 400, thermo.OneAtm)
			v, err := connector.NewValve("valve", hi, lo)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.SetCoeff(1e-5)).To(Succeed())
			net := initialized(hi, lo)
			m0, mHi := net.TotalMass(), hi.Mass()

			for _, t := range []float64{0.1, 0.5, 2, 10} {
				_, err := net.Advance(ctx, t)
				Expect(err).NotTo(HaveOccurred())
				Expect(net.TotalMass()).To(BeNumerically("~", m0, 1e-8*m0))
			}
			Expect(hi.Mass()).To(BeNumerically("<", mHi))
			Expect(hi.Pressure()).To(BeNumerically("~", lo.Pressure(), 1e-3*thermo.OneAtm))
		},
		Entry("internal energy form", reactor.KindReactor),
		Entry("temperature form", reactor.KindIdealGasReactor),
		Entry("mole form", reactor.KindIdealGasMoleReactor),
	)

	Describe("initialization", func() {
		It("is idempotent", func() {
			a := newReactor(reactor.KindIdealGasReactor, "a", 900, thermo.OneAtm)
			b := newReactor(reactor.KindConstPressureReactor, "b", 500, thermo.OneAtm)
			newWall(a, b, 10)
			net := network.New(a, b)

			Expect(net.Initialize()).To(Succeed())
			layout, y := net.Layout(), net.State()
			Expect(net.Initialize()).To(Succeed())
			Expect(net.Layout()).To(Equal(layout))
			Expect(net.State()).To(Equal(y))
			Expect(layout.Size).To(Equal(a.NEq() + b.NEq()))
			Expect(layout.Offsets).To(Equal([]int{0, a.NEq()}))
		})

		It("names global components", func() {
			a := newReactor(reactor.KindIdealGasReactor, "a", 900, thermo.OneAtm)
			b := newReactor(reactor.KindIdealGasConstPressureReactor, "b", 500, thermo.OneAtm)
			net := initialized(a, b)

			i, err := net.GlobalIndex("b", "temperature")
			Expect(err).NotTo(HaveOccurred())
			Expect(i).To(Equal(a.NEq() + 1))
			Expect(net.ComponentName(i)).To(Equal("b.temperature"))
			Expect(net.ComponentName(0)).To(Equal("a.mass"))

			_, err = net.GlobalIndex("b", "volume")
			Expect(err).To(MatchError(simerr.ErrUnknownComponent))
		})

		It("accepts reservoirs outside the reactor list", func() {
			res, err := reactor.NewReservoir("inlet", newGas(kinetics.Air(), 300, thermo.OneAtm, airComposition))
			Expect(err).NotTo(HaveOccurred())
			r := newReactor(reactor.KindIdealGasConstPressureReactor, "r", 600, thermo.OneAtm)
			mfc, err := connector.NewMassFlowController("feed", res, r)
			Expect(err).NotTo(HaveOccurred())
			Expect(mfc.SetMassFlowRate(0.01)).To(Succeed())
			net := initialized(r)
			m0 := r.Mass()

			_, err = net.Advance(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(r.Mass()).To(BeNumerically("~", m0+0.01, 1e-8))
			Expect(r.Temperature()).To(BeNumerically("<", 600))
		})

		DescribeTable("rejects invalid networks",
			func(build func() *network.Network, cause error) {
				err := build().Initialize()
				Expect(simerr.Is(err, simerr.Configuration)).To(BeTrue(), "error: %v", err)
				Expect(err).To(MatchError(cause))
			},
			Entry("empty network", func() *network.Network {
				return network.New()
			}, simerr.ErrDimensionMismatch),
			Entry("phase without species", func() *network.Network {
				gas, err := thermo.NewIdealGas("empty", nil)
				Expect(err).NotTo(HaveOccurred())
				r, err := reactor.NewGasReactor(reactor.KindReactor, "r", gas)
				Expect(err).NotTo(HaveOccurred())
				return network.New(r)
			}, simerr.ErrNoSpecies),
			Entry("connector to a foreign reactor", func() *network.Network {
				a := newReactor(reactor.KindIdealGasReactor, "a", 300, thermo.OneAtm)
				b := newReactor(reactor.KindIdealGasReactor, "b", 300, thermo.OneAtm)
				newWall(a, b, 1)
				return network.New(a)
			}, simerr.ErrUnknownReactor),
			Entry("shared phase", func() *network.Network {
				gas := newGas(kinetics.Air(), 300, thermo.OneAtm, airComposition)
				a, err := reactor.NewGasReactor(reactor.KindIdealGasReactor, "a", gas)
				Expect(err).NotTo(HaveOccurred())
				b, err := reactor.NewGasReactor(reactor.KindIdealGasReactor, "b", gas)
				Expect(err).NotTo(HaveOccurred())
				return network.New(a, b)
			}, simerr.ErrAliasedPhase),
			Entry("reactor listed twice", func() *network.Network {
				a := newReactor(reactor.KindIdealGasReactor, "a", 300, thermo.OneAtm)
				return network.New(a, a)
			}, simerr.ErrAliasedPhase),
			Entry("plug flow next to a vessel", func() *network.Network {
				f, err := reactor.NewFlowReactor("pfr", newGas(kinetics.Air(), 300, thermo.OneAtm, airComposition))
				Expect(err).NotTo(HaveOccurred())
				Expect(f.SetMassFlowRate(1)).To(Succeed())
				return network.New(f, newReactor(reactor.KindIdealGasReactor, "a", 300, thermo.OneAtm))
			}, simerr.ErrInvalidParameter),
			Entry("pressure controller without primary", func() *network.Network {
				a := newReactor(reactor.KindIdealGasReactor, "a", 300, thermo.OneAtm)
				b := newReactor(reactor.KindIdealGasReactor, "b", 300, thermo.OneAtm)
				_, err := connector.NewPressureController("pc", a, b, nil)
				Expect(err).NotTo(HaveOccurred())
				return network.New(a, b)
			}, simerr.ErrInvalidParameter),
			Entry("unknown tolerance component", func() *network.Network {
				net := network.New(newReactor(reactor.KindIdealGasReactor, "a", 300, thermo.OneAtm))
				opts := network.DefaultOptions()
				opts.ComponentAbsTol = map[string]float64{"a.pressure": 1}
				net.SetOptions(opts)
				return net
			}, simerr.ErrUnknownComponent),
			Entry("unknown method", func() *network.Network {
				net := network.New(newReactor(reactor.KindIdealGasReactor, "a", 300, thermo.OneAtm))
				net.SetOptions(network.Options{Method: "euler"})
				return net
			}, simerr.ErrInvalidParameter),
		)

		It("refuses to advance before initialization or after a topology change", func() {
			a := newReactor(reactor.KindIdealGasReactor, "a", 300, thermo.OneAtm)
			b := newReactor(reactor.KindIdealGasReactor, "b", 400, thermo.OneAtm)
			net := network.New(a, b)

			_, err := net.Advance(ctx, 1)
			Expect(err).To(MatchError(simerr.ErrUninitialized))

			Expect(net.Initialize()).To(Succeed())
			newWall(a, b, 10)
			_, err = net.Advance(ctx, 1)
			Expect(err).To(MatchError(simerr.ErrTopologyChanged))
			Expect(simerr.Is(err, simerr.Configuration)).To(BeTrue())

			Expect(net.Initialize()).To(Succeed())
			_, err = net.Advance(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(a.Temperature()).To(BeNumerically(">", 300))
		})
	})

	Describe("time", func() {
		It("never decreases and reaches each target", func() {
			hot := newReactor(reactor.KindIdealGasReactor, "hot", 1200, thermo.OneAtm)
			cold := newReactor(reactor.KindIdealGasReactor, "cold", 300, thermo.OneAtm)
			newWall(hot, cold, 50)
			net := initialized(hot, cold)

			prev := net.Time()
			for _, t := range []float64{1e-6, 1e-3, 1e-3, 0.5, 3} {
				got, err := net.Advance(ctx, t)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(t))
				Expect(got).To(BeNumerically(">=", prev))
				prev = got
			}
			_, err := net.Advance(ctx, 1)
			Expect(simerr.Is(err, simerr.Configuration)).To(BeTrue())
			Expect(net.Time()).To(Equal(3.0))
		})

		It("takes single steps forward", func() {
			hot := newReactor(reactor.KindIdealGasReactor, "hot", 1200, thermo.OneAtm)
			cold := newReactor(reactor.KindIdealGasReactor, "cold", 300, thermo.OneAtm)
			newWall(hot, cold, 50)
			net := initialized(hot, cold)

			prev := net.Time()
			for i := 0; i < 20; i++ {
				t, err := net.Step(ctx)
				Expect(err).NotTo(HaveOccurred())
				Expect(t).To(BeNumerically(">", prev))
				prev = t
			}
			Expect(net.Stats().Solver.Steps).To(Equal(20))
		})

		It("stops at cancellation", func() {
			a := newReactor(reactor.KindIdealGasReactor, "a", 300, thermo.OneAtm)
			net := initialized(a)
			canceled, cancel := context.WithCancel(ctx)
			cancel()

			t, err := net.Advance(canceled, 1)
			Expect(err).To(MatchError(context.Canceled))
			Expect(t).To(Equal(0.0))
		})

		It("notifies observers after each committed step", func() {
			hot := newReactor(reactor.KindIdealGasReactor, "hot", 1200, thermo.OneAtm)
			cold := newReactor(reactor.KindIdealGasReactor, "cold", 300, thermo.OneAtm)
			newWall(hot, cold, 50)
			net := initialized(hot, cold)
			var times []float64
			net.AddObserver(network.ObserverFunc(func(t float64, _ []float64, _ integrators.Stats) {
				times = append(times, t)
			}))

			_, err := net.Advance(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(len(times)).To(BeNumerically(">=", net.Stats().Solver.Steps))
			Expect(times[len(times)-1]).To(Equal(1.0))
		})
	})

	Describe("ignition", func() {
		It("heats monotonically and conserves elements", func() {
			mech := kinetics.H2O2()
			gas := newGas(mech, 1001, thermo.OneAtm, "H2:2, O2:1, N2:4")
			kin, err := mech.NewKinetics(gas)
			Expect(err).NotTo(HaveOccurred())
			r, err := reactor.NewGasReactor(reactor.KindIdealGasConstPressureReactor, "igniter", gas)
			Expect(err).NotTo(HaveOccurred())
			r.SetKinetics(kin)
			net := initialized(r)
			e0 := elementMoles(r.Phase())
			m0 := r.Mass()

			idx, err := net.GlobalIndex("igniter", "temperature")
			Expect(err).NotTo(HaveOccurred())
			temps := []float64{r.Temperature()}
			net.AddObserver(network.ObserverFunc(func(_ float64, y []float64, _ integrators.Stats) {
				temps = append(temps, y[idx])
			}))

			_, err = net.Advance(ctx, 0.1)
			Expect(err).NotTo(HaveOccurred())
			for i := 1; i < len(temps); i++ {
				Expect(temps[i]).To(BeNumerically(">=", temps[i-1]-1e-6*temps[i-1]), "step %d", i)
			}
			Expect(r.Temperature()).To(BeNumerically(">", 2000))
			Expect(r.Mass()).To(BeNumerically("~", m0, 1e-10*m0))
			for e, n0 := range elementMoles(r.Phase()) {
				Expect(n0).To(BeNumerically("~", e0[e], 1e-6*e0[e]+1e-15), "element %s", e)
			}
		})
	})

	Describe("events", func() {
		It("opens a valve at a fixed time", func() {
			hi := newReactor(reactor.KindIdealGasReactor, "hi", 300, 2*thermo.OneAtm)
			lo := newReactor(reactor.KindIdealGasReactor, "lo", 300, thermo.OneAtm)
			v, err := connector.NewValve("valve", hi, lo)
			Expect(err).NotTo(HaveOccurred())
			Expect(v.SetCoeff(1e-5)).To(Succeed())
			v.SetEnabled(false)
			net := initialized(hi, lo)
			m0 := hi.Mass()
			open := network.AtTime("open", 0.5, func(*network.Network) error {
				v.SetEnabled(true)
				return nil
			})
			Expect(net.AddEvent(open)).To(Succeed())

			t, err := net.Advance(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(t).To(Equal(0.5))
			Expect(v.Enabled()).To(BeTrue())
			Expect(hi.Mass()).To(BeNumerically("~", m0, 1e-12*m0))

			t, err = net.Advance(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(t).To(Equal(1.0))
			Expect(hi.Mass()).To(BeNumerically("<", m0))
			Expect(open.Fired()).To(Equal(1))
			Expect(net.Events()).To(BeEmpty())
		})

		It("keeps solver counters across the restart after an event", func() {
			hot := newReactor(reactor.KindIdealGasReactor, "hot", 1200, thermo.OneAtm)
			cold := newReactor(reactor.KindIdealGasReactor, "cold", 300, thermo.OneAtm)
			newWall(hot, cold, 50)
			net := initialized(hot, cold)
			Expect(net.AddEvent(network.AtTime("mark", 0.5, nil))).To(Succeed())
			var seen []int
			net.AddObserver(network.ObserverFunc(func(_ float64, _ []float64, s integrators.Stats) {
				seen = append(seen, s.Steps)
			}))

			t, err := net.Advance(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(t).To(Equal(0.5))
			before := net.Stats().Solver
			Expect(before.Steps).To(BeNumerically(">", 0))

			t, err = net.Advance(ctx, 1)
			Expect(err).NotTo(HaveOccurred())
			Expect(t).To(Equal(1.0))
			after := net.Stats().Solver
			Expect(after.Steps).To(BeNumerically(">", before.Steps))
			Expect(after.RHSEvals).To(BeNumerically(">", before.RHSEvals))
			for i := 1; i < len(seen); i++ {
				Expect(seen[i]).To(BeNumerically(">=", seen[i-1]), "notification %d", i)
			}

			Expect(net.Initialize()).To(Succeed())
			Expect(net.Stats().Solver.Steps).To(BeZero())
		})

		It("locates a state condition", func() {
			hot := newReactor(reactor.KindIdealGasConstPressureReactor, "hot", 1200, thermo.OneAtm)
			cold := newReactor(reactor.KindIdealGasConstPressureReactor, "cold", 1000, thermo.OneAtm)
			newWall(hot, cold, 100)
			net := initialized(hot, cold)
			idx, err := net.GlobalIndex("hot", "temperature")
			Expect(err).NotTo(HaveOccurred())
			cooled := &network.Event{
				Name:      "cooled",
				Condition: func(_ float64, y []float64) float64 { return y[idx] - 1150 },
			}
			Expect(net.AddEvent(cooled)).To(Succeed())

			t, err := net.Advance(ctx, 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(t).To(BeNumerically("<", 100))
			Expect(hot.Temperature()).To(BeNumerically("~", 1150, 1e-3))

			t, err = net.Advance(ctx, 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(t).To(Equal(100.0))
			Expect(cooled.Fired()).To(Equal(1))
			Expect(net.Stats().Events).To(Equal(1))
		})

		It("stops at an advance limit", func() {
			hot := newReactor(reactor.KindIdealGasConstPressureReactor, "hot", 1200, thermo.OneAtm)
			cold := newReactor(reactor.KindIdealGasConstPressureReactor, "cold", 1000, thermo.OneAtm)
			newWall(hot, cold, 100)
			hot.SetAdvanceLimit("temperature", 5)
			net := initialized(hot, cold)

			t, err := net.Advance(ctx, 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(t).To(BeNumerically("<", 100))
			Expect(hot.Temperature()).To(BeNumerically("~", 1195, 1e-3))

			t, err = net.Advance(ctx, 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(t).To(BeNumerically("<", 100))
			Expect(hot.Temperature()).To(BeNumerically("~", 1190, 1e-3))

			hot.SetAdvanceLimit("temperature", 0)
			t, err = net.Advance(ctx, 100)
			Expect(err).NotTo(HaveOccurred())
			Expect(t).To(Equal(100.0))
		})
	})

	Describe("clipping", func() {
		It("recovers small clipping", func() {
			d := newDrain()
			net := network.New(d)
			opts := network.DefaultOptions()
			opts.MaxClipping = 10
			net.SetOptions(opts)
			Expect(net.Initialize()).To(Succeed())

			_, err := net.Advance(ctx, 1.5)
			Expect(err).NotTo(HaveOccurred())
			Expect(d.amount).To(Equal(0.0))
			Expect(net.Stats().ClipEvents).To(BeNumerically(">", 0))
		})

		It("escalates accumulated clipping to a numerical error", func() {
			d := newDrain()
			net := network.New(d)
			opts := network.DefaultOptions()
			opts.MaxClipping = 0.1
			net.SetOptions(opts)
			Expect(net.Initialize()).To(Succeed())

			_, err := net.Advance(ctx, 3)
			Expect(err).To(MatchError(simerr.ErrExcessiveClipping))
			Expect(simerr.Is(err, simerr.Numerical)).To(BeTrue())
			var se *simerr.Error
			Expect(err).To(BeAssignableToTypeOf(se))
			se = err.(*simerr.Error)
			Expect(se.Time).To(BeNumerically(">", 1))
			Expect(se.State).To(HaveLen(1))
		})
	})

	Describe("failed commits", func() {
		It("leaves every reactor at the committed state", func() {
			a := newDrain()
			b := &brittle{drain: newDrain(), floor: 0.5}
			net := initialized(a, b)

			t, err := net.Advance(ctx, 0.8)
			Expect(simerr.Is(err, simerr.Numerical)).To(BeTrue(), "error: %v", err)
			Expect(err).To(MatchError(simerr.ErrThermoState))
			Expect(t).To(BeNumerically("<", 0.5+1e-9))

			y := net.State()
			Expect(a.amount).To(Equal(y[0]))
			Expect(b.amount).To(Equal(y[1]))
			Expect(y[1]).To(BeNumerically(">=", 0.5))
			Expect(net.Stats().ClipEvents).To(BeZero())
		})
	})

	Describe("plug flow", func() {
		It("keeps the continuity constraint along the duct", func() {
			mech := kinetics.H2O2()
			gas := newGas(mech, 1200, thermo.OneAtm, "H2:2, O2:1, N2:4, OH:0.001")
			kin, err := mech.NewKinetics(gas)
			Expect(err).NotTo(HaveOccurred())
			f, err := reactor.NewFlowReactor("pfr", gas)
			Expect(err).NotTo(HaveOccurred())
			f.SetKinetics(kin)
			Expect(f.SetMassFlowRate(0.1)).To(Succeed())
			Expect(f.SetArea(1e-3)).To(Succeed())
			net := initialized(f)
			Expect(net.IndependentVariable()).To(Equal("distance"))
			iu, err := net.GlobalIndex("pfr", "speed")
			Expect(err).NotTo(HaveOccurred())
			t0 := f.Temperature()

			for _, z := range []float64{1e-3, 1e-2, 0.1} {
				got, err := net.Advance(ctx, z)
				Expect(err).NotTo(HaveOccurred())
				Expect(got).To(Equal(z))
				u := net.State()[iu]
				Expect(u).To(BeNumerically("~", 0.1/(f.Density()*1e-3), 1e-6*u))
			}
			Expect(f.Temperature()).To(BeNumerically(">=", t0))
		})
	})

	Describe("sensitivity registry", func() {
		It("exposes reaction multipliers as parameters", func() {
			mech := kinetics.H2O2()
			gas := newGas(mech, 1001, thermo.OneAtm, "H2:2, O2:1, N2:4")
			kin, err := mech.NewKinetics(gas)
			Expect(err).NotTo(HaveOccurred())
			r, err := reactor.NewGasReactor(reactor.KindIdealGasConstPressureReactor, "r", gas)
			Expect(err).NotTo(HaveOccurred())
			r.SetKinetics(kin)
			net := initialized(r)

			p, err := net.AddSensitivityReaction(r, 2)
			Expect(err).NotTo(HaveOccurred())
			Expect(net.NParameters()).To(Equal(1))
			Expect(net.Parameters()[p].Name).To(Equal("r: " + kin.ReactionEquation(2)))

			Expect(net.SetParameter(p, 2)).To(Succeed())
			Expect(kin.Multiplier(2)).To(Equal(2.0))
			v, err := net.ParameterValue(p)
			Expect(err).NotTo(HaveOccurred())
			Expect(v).To(Equal(2.0))
			Expect(net.Initialized()).To(BeFalse())

			Expect(net.SetParameter(p, -1)).To(MatchError(simerr.ErrInvalidParameter))
			_, err = net.AddSensitivityReaction(r, kin.NReactions())
			Expect(err).To(MatchError(simerr.ErrInvalidParameter))
			_, err = net.AddSensitivityReaction(newReactor(reactor.KindReactor, "inert", 300, thermo.OneAtm), 0)
			Expect(err).To(MatchError(simerr.ErrInvalidParameter))
		})
	})

	It("integrates non-stiff networks with rk45", func() {
		hot := newReactor(reactor.KindIdealGasConstPressureReactor, "hot", 1200, thermo.OneAtm)
		cold := newReactor(reactor.KindIdealGasConstPressureReactor, "cold", 1000, thermo.OneAtm)
		newWall(hot, cold, 100)
		net := network.New(hot, cold)
		net.SetOptions(network.Options{Method: "rk45", RelTol: 1e-8, AbsTol: 1e-12})
		Expect(net.Initialize()).To(Succeed())
		e0 := net.TotalEnergy()

		_, err := net.Advance(ctx, 50)
		Expect(err).NotTo(HaveOccurred())
		Expect(net.Solver().Name()).To(Equal("rk45"))
		Expect(hot.Temperature()).To(BeNumerically("~", cold.Temperature(), 1e-3))
		Expect(net.TotalEnergy()).To(BeNumerically("~", e0, 1e-6*math.Abs(e0)))
	})
})
