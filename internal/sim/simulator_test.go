package sim_test

import (
	"context"
	"errors"
	"math"
	"sync/atomic"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/nbody/internal/metrics"
	"github.com/san-kum/nbody/internal/physics"
	"github.com/san-kum/nbody/internal/scenario"
	"github.com/san-kum/nbody/internal/sim"
)

func ringSystem(n int) *physics.BodiesSystem {
	bodies, err := scenario.Ring(n, 1, 1e9)
	Expect(err).NotTo(HaveOccurred())
	system, err := physics.NewBodiesSystem(bodies, n,
		physics.NewParallelAccelerationCalculation(2), physics.NewEuler(2), 0.01)
	Expect(err).NotTo(HaveOccurred())
	return system
}

type brokenCalculation struct {
	failAt int
	calls  int
}

func (b *brokenCalculation) Name() string { return "broken" }
func (b *brokenCalculation) Close() error { return nil }

func (b *brokenCalculation) CalcAccelerations(_ physics.Bodies, n int, acc []float32, _ float32) error {
	b.calls++
	if b.calls == b.failAt {
		return errors.New("device lost")
	}
	clear(acc[:3*n])
	return nil
}

type blowUp struct{}

func (blowUp) Name() string { return "blow-up" }
func (blowUp) Close() error { return nil }

func (blowUp) CalcAccelerations(_ physics.Bodies, n int, acc []float32, _ float32) error {
	for i := range acc[:3*n] {
		acc[i] = float32(math.Inf(1))
	}
	return nil
}

type countingMetric struct {
	count int
}

func (c *countingMetric) Name() string                      { return "count" }
func (c *countingMetric) Observe(physics.Bodies, int, float64) { c.count++ }
func (c *countingMetric) Value() float64                    { return float64(c.count) }
func (c *countingMetric) Reset()                            { c.count = 0 }

var _ = Describe("Config", func() {
	DescribeTable("rejects unusable values",
		func(cfg sim.Config) {
			Expect(cfg.Validate()).To(MatchError(sim.ErrInvalidConfig))
		},
		Entry("zero dt", sim.Config{Dt: 0, Steps: 10}),
		Entry("negative dt", sim.Config{Dt: -0.1, Steps: 10}),
		Entry("zero steps", sim.Config{Dt: 0.1, Steps: 0}),
		Entry("negative snapshot interval", sim.Config{Dt: 0.1, Steps: 1, SnapshotEvery: -1}),
	)
})

var _ = Describe("Runner", func() {
	It("steps the system and records snapshots", func() {
		runner := sim.New(ringSystem(8), quiet)
		metric := &countingMetric{}
		runner.AddMetric(metric)

		var observed []int
		runner.AddObserver(sim.ObserverFunc(func(step int, _ float64, _ physics.Bodies, _ int) {
			observed = append(observed, step)
		}))

		result, err := runner.Run(context.Background(), sim.Config{Dt: 0.5, Steps: 10, SnapshotEvery: 5})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.StepsTaken).To(Equal(10))
		Expect(result.StepDurations).To(HaveLen(10))
		Expect(result.Implementation).To(Equal("parallel"))

		Expect(result.Snapshots).To(HaveLen(3))
		Expect(result.Snapshots[1].Step).To(Equal(5))
		Expect(result.Snapshots[2].Time).To(BeNumerically("~", 5.0, 1e-9))
		Expect(result.Snapshots[0].Bodies.Positions).NotTo(Equal(result.Snapshots[2].Bodies.Positions))

		Expect(observed).To(Equal([]int{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}))
		Expect(metric.count).To(Equal(11))
		Expect(result.Metrics).To(HaveKeyWithValue("count", 11.0))
	})

	It("keeps a ring's energy close to its initial value", func() {
		runner := sim.New(ringSystem(16), quiet)
		runner.AddMetric(metrics.NewEnergyDrift(float64(runner.System().SquaredSoftening())))

		result, err := runner.Run(context.Background(), sim.Config{Dt: 0.01, Steps: 50, TrackEnergy: true})
		Expect(err).NotTo(HaveOccurred())
		Expect(result.InitialEnergy).To(BeNumerically("<", 0))
		Expect(result.EnergyDrift).To(BeNumerically("<", 1e-2))
		Expect(result.Metrics["energy_drift"]).To(BeNumerically(">=", result.EnergyDrift*0.999))
	})

	It("stops at the first failing step", func() {
		calc := &brokenCalculation{failAt: 4}
		system, err := physics.NewBodiesSystem(physics.NewBodies(3), 3, calc, physics.NewEuler(1), 0)
		Expect(err).NotTo(HaveOccurred())

		result, err := sim.New(system, quiet).Run(context.Background(), sim.Config{Dt: 1, Steps: 10})
		Expect(err).To(HaveOccurred())

		var simErr *sim.SimulationError
		Expect(errors.As(err, &simErr)).To(BeTrue())
		Expect(simErr.Step).To(Equal(3))
		Expect(err.Error()).To(ContainSubstring("device lost"))
		Expect(result.StepsTaken).To(Equal(3))
	})

	It("reports non-finite state when validation is on", func() {
		bodies := physics.NewBodies(2)
		bodies.Masses[0], bodies.Masses[1] = 1, 1
		system, err := physics.NewBodiesSystem(bodies, 2, blowUp{}, physics.NewEuler(1), 0)
		Expect(err).NotTo(HaveOccurred())

		_, err = sim.New(system, quiet).Run(context.Background(), sim.Config{Dt: 1, Steps: 5, ValidateState: true})
		Expect(err).To(MatchError(sim.ErrInvalidState))

		var simErr *sim.SimulationError
		Expect(errors.As(err, &simErr)).To(BeTrue())
		Expect(simErr.Step).To(Equal(1))
	})

	It("checks the context between steps", func() {
		ctx, cancel := context.WithCancel(context.Background())
		runner := sim.New(ringSystem(4), quiet)
		runner.AddObserver(sim.ObserverFunc(func(step int, _ float64, _ physics.Bodies, _ int) {
			if step == 3 {
				cancel()
			}
		}))

		result, err := runner.Run(ctx, sim.Config{Dt: 0.1, Steps: 100})
		Expect(err).To(MatchError(context.Canceled))
		Expect(result.StepsTaken).To(Equal(3))
	})
})

var _ = Describe("Ensemble", func() {
	It("runs one independent member per seed", func() {
		var built atomic.Int32
		build := func(seed uint64) (*physics.BodiesSystem, func() error, error) {
			built.Add(1)
			bodies := scenario.Random(32, seed, 1)
			calc := physics.NewSequentialAccelerationCalculation()
			system, err := physics.NewBodiesSystem(bodies, 32, calc, physics.NewEuler(1), 0.1)
			return system, calc.Close, err
		}

		results, err := sim.NewEnsemble(build, 4, 100, quiet).Run(context.Background(), sim.Config{Dt: 0.01, Steps: 3})
		Expect(err).NotTo(HaveOccurred())
		Expect(results).To(HaveLen(4))
		Expect(built.Load()).To(Equal(int32(4)))
		for _, r := range results {
			Expect(r.StepsTaken).To(Equal(3))
		}
	})

	It("surfaces a failing member", func() {
		build := func(seed uint64) (*physics.BodiesSystem, func() error, error) {
			if seed == 2 {
				return nil, nil, errors.New("no device")
			}
			system, err := physics.NewBodiesSystem(physics.NewBodies(2), 2,
				physics.NewSequentialAccelerationCalculation(), physics.NewEuler(1), 0)
			return system, nil, err
		}

		_, err := sim.NewEnsemble(build, 3, 0, quiet).Run(context.Background(), sim.Config{Dt: 1, Steps: 1})
		Expect(err).To(MatchError(ContainSubstring("ensemble member 2: no device")))
	})

	It("rejects an empty ensemble", func() {
		_, err := sim.NewEnsemble(nil, 0, 0, quiet).Run(context.Background(), sim.Config{Dt: 1, Steps: 1})
		Expect(err).To(MatchError(sim.ErrInvalidConfig))
	})
})
