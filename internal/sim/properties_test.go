package sim_test

import (
	"context"
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"gonum.org/v1/gonum/stat"

	"github.com/san-kum/cstrsim/internal/dynamo"
	"github.com/san-kum/cstrsim/internal/integrators"
	"github.com/san-kum/cstrsim/internal/noise"
	"github.com/san-kum/cstrsim/internal/physics"
	"github.com/san-kum/cstrsim/internal/sim"
)

type fixedDelta float64

func (f fixedDelta) Compute(ideal, measured dynamo.State) float64 { return float64(f) }

func steadyState() dynamo.State {
	return dynamo.State{physics.SteadyCa, physics.SteadyT}
}

func flat(n int, v float64) []float64 {
	out := make([]float64, n)
	for i := range out {
		out[i] = v
	}
	return out
}

var _ = Describe("Batch simulation", func() {
	var s *sim.Simulator

	BeforeEach(func() {
		s = sim.New(physics.NewCSTR(), integrators.NewRK45())
	})

	It("holds the steady state under a constant 300 K coolant trace", func() {
		opts := sim.BatchOptions{TimeSteps: 5, Repetitions: 1, Init: steadyState()}
		ens, err := s.Simulate(context.Background(), flat(5, 300), opts)
		Expect(err).NotTo(HaveOccurred())

		Expect(ens.Ca[0]).To(HaveLen(5))
		Expect(ens.Ca[0][0]).To(Equal(physics.SteadyCa))
		Expect(ens.T[0][0]).To(Equal(physics.SteadyT))
		for i := 1; i < 5; i++ {
			Expect(ens.Ca[0][i]).To(BeNumerically("~", physics.SteadyCa, 1e-6))
			Expect(ens.T[0][i]).To(BeNumerically("~", physics.SteadyT, 1e-6))
		}
	})

	It("follows the reference trajectory for a 295 K coolant step", func() {
		golden := [][2]float64{
			{0.877252946081, 324.4754434316},
			{0.898407134486, 318.7456812783},
			{0.915997720036, 317.7886761006},
			{0.923190697962, 317.7065859997},
			{0.925659357620, 317.7221618026},
		}
		opts := sim.BatchOptions{TimeSteps: 5, Repetitions: 2, Init: steadyState()}
		ens, err := s.Simulate(context.Background(), flat(4, 295), opts)
		Expect(err).NotTo(HaveOccurred())

		for r := 0; r < 2; r++ {
			for i, g := range golden {
				Expect(ens.Ca[r][i]).To(BeNumerically("~", g[0], 1e-6))
				Expect(ens.T[r][i]).To(BeNumerically("~", g[1], 1e-4))
			}
		}
	})

	It("keeps noise within the channel bounds", func() {
		clean, err := s.Simulate(context.Background(), flat(10, 297), sim.BatchOptions{
			TimeSteps: 2, Repetitions: 1, Init: steadyState(),
		})
		Expect(err).NotTo(HaveOccurred())

		noisy, err := s.Simulate(context.Background(), flat(10, 297), sim.BatchOptions{
			TimeSteps: 2, Repetitions: 500, Noise: 0.4, Init: steadyState(), Seed: 3,
		})
		Expect(err).NotTo(HaveOccurred())

		for r := 0; r < noisy.Len(); r++ {
			Expect(math.Abs(noisy.Ca[r][1] - clean.Ca[0][1])).To(BeNumerically("<=", noise.Bound(0.4, noise.CaMultiplier)))
			Expect(math.Abs(noisy.T[r][1] - clean.T[0][1])).To(BeNumerically("<=", noise.Bound(0.4, noise.TMultiplier)))
		}
	})

	It("produces cross-repetition variance matching the uniform noise model", func() {
		opts := sim.BatchOptions{TimeSteps: 2, Repetitions: 2000, Noise: 0.1, Init: steadyState(), Seed: 11}
		ens, err := s.Simulate(context.Background(), flat(1, 300), opts)
		Expect(err).NotTo(HaveOccurred())

		varCa := stat.Variance(ens.Column(dynamo.Ca, 1), nil)
		varT := stat.Variance(ens.Column(dynamo.T, 1), nil)

		Expect(varCa).To(BeNumerically("~", noise.Variance(0.1, noise.CaMultiplier), 0.1*noise.Variance(0.1, noise.CaMultiplier)))
		Expect(varT).To(BeNumerically("~", noise.Variance(0.1, noise.TMultiplier), 0.1*noise.Variance(0.1, noise.TMultiplier)))

		meanT := stat.Mean(ens.Column(dynamo.T, 1), nil)
		Expect(meanT).To(BeNumerically("~", physics.SteadyT, 0.05))
	})
})

var _ = Describe("Closed-loop step", func() {
	var (
		s  *sim.Simulator
		in sim.StepInput
	)

	BeforeEach(func() {
		s = sim.New(physics.NewCSTR(), integrators.NewRK45())
		in = sim.DefaultStepInput()
	})

	DescribeTable("never drives the actuator past its limits",
		func(request float64) {
			out, err := s.Step(fixedDelta(request), in, noise.NewSource(5))
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Tc).To(BeNumerically(">=", in.LowerTc))
			Expect(out.Tc).To(BeNumerically("<=", in.UpperTc))
			Expect(out.Tc).To(Equal(in.Tc + out.Delta))
			Expect(out.RawDelta).To(Equal(request))
		},
		Entry("huge positive request", 1e6),
		Entry("huge negative request", -1e6),
		Entry("positive infinity", math.Inf(1)),
		Entry("small request", 0.25),
		Entry("zero", 0.0),
	)

	It("respects bounds from an off-centre operating point", func() {
		in.Tc = 303.7
		for _, req := range []float64{1e6, -1e6, 1.3, -8.7} {
			out, err := s.Step(fixedDelta(req), in, noise.NewSource(1))
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Tc).To(And(BeNumerically(">=", 295.0), BeNumerically("<=", 305.0)))
		}
	})

	It("adds bounded noise to the integrated state", func() {
		in.Noise = 0
		clean, err := s.Step(fixedDelta(1), in, noise.NewSource(1))
		Expect(err).NotTo(HaveOccurred())

		in.Noise = 0.2
		for seed := int64(0); seed < 200; seed++ {
			out, err := s.Step(fixedDelta(1), in, noise.NewSource(seed))
			Expect(err).NotTo(HaveOccurred())
			Expect(out.Tc).To(Equal(clean.Tc))
			Expect(math.Abs(out.State[dynamo.Ca] - clean.State[dynamo.Ca])).To(BeNumerically("<=", 0.2*noise.CaMultiplier))
			Expect(math.Abs(out.State[dynamo.T] - clean.State[dynamo.T])).To(BeNumerically("<=", 0.2*noise.TMultiplier))
		}
	})
})
