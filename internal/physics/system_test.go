package physics_test

import (
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/nbody/internal/physics"
	"github.com/san-kum/nbody/internal/scenario"
)

type failingCalculation struct {
	err   error
	calls int
}

func (f *failingCalculation) Name() string { return "failing" }
func (f *failingCalculation) Close() error { return nil }

func (f *failingCalculation) CalcAccelerations(physics.Bodies, int, []float32, float32) error {
	f.calls++
	return f.err
}

type recordingIntegrator struct {
	calls    int
	timeStep float32
}

func (r *recordingIntegrator) UpdatePositionAndVelocity(_ physics.Bodies, _ int, _ []float32, timeStep float32) {
	r.calls++
	r.timeStep = timeStep
}

type softeningProbe struct {
	squared float32
}

func (s *softeningProbe) Name() string { return "probe" }
func (s *softeningProbe) Close() error { return nil }

func (s *softeningProbe) CalcAccelerations(_ physics.Bodies, _ int, _ []float32, squared float32) error {
	s.squared = squared
	return nil
}

var _ = Describe("Euler", func() {
	It("leaves bodies unchanged for zero accelerations and zero time step", func() {
		bodies := scenario.Random(100, 1, 0)
		for i := range bodies.Velocities {
			bodies.Velocities[i] = float32(i)
		}
		before := bodies.Clone()

		physics.NewEuler(0).UpdatePositionAndVelocity(bodies, 100, make([]float32, 300), 0)
		Expect(bodies).To(Equal(before))
	})

	It("updates velocity before position", func() {
		bodies := physics.NewBodies(1)
		bodies.Masses[0] = 3
		acc := []float32{1, 2, -1}

		physics.NewEuler(1).UpdatePositionAndVelocity(bodies, 1, acc, 1)
		Expect(bodies.Velocities).To(Equal([]float32{1, 2, -1}))
		Expect(bodies.Positions).To(Equal([]float32{1, 2, -1}))
		Expect(bodies.Masses).To(Equal([]float32{3}))
		Expect(acc).To(Equal([]float32{1, 2, -1}))
	})

	It("gives the same result for any worker count", func() {
		ref := scenario.Random(1000, 2, 0)
		acc := make([]float32, 3000)
		for i := range acc {
			acc[i] = float32(i%7) - 3
		}
		physics.NewEuler(1).UpdatePositionAndVelocity(ref, 1000, acc, 0.1)

		for _, workers := range []int{2, 5, 0} {
			bodies := scenario.Random(1000, 2, 0)
			physics.NewEuler(workers).UpdatePositionAndVelocity(bodies, 1000, acc, 0.1)
			Expect(bodies).To(Equal(ref))
		}
	})
})

var _ = Describe("BodiesSystem", func() {
	It("stores the softening factor squared", func() {
		probe := &softeningProbe{}
		system, err := physics.NewBodiesSystem(physics.NewBodies(2), 2, probe, physics.NewEuler(0), 0.5)
		Expect(err).NotTo(HaveOccurred())
		Expect(system.SquaredSoftening()).To(Equal(float32(0.25)))

		Expect(system.Update(physics.DefaultTimeStep)).To(Succeed())
		Expect(probe.squared).To(Equal(float32(0.25)))
	})

	It("owns a 3N acceleration buffer", func() {
		system, err := physics.NewBodiesSystem(physics.NewBodies(7), 7,
			physics.NewSequentialAccelerationCalculation(), physics.NewEuler(0), 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(system.Accelerations()).To(HaveLen(21))
		Expect(system.NumBodies()).To(Equal(7))
		Expect(system.Implementation()).To(Equal("sequential"))
	})

	It("computes then integrates", func() {
		bodies, err := scenario.SolarBodies("sun", "venus")
		Expect(err).NotTo(HaveOccurred())
		integrator := &recordingIntegrator{}

		system, err := physics.NewBodiesSystem(bodies, 2, physics.NewSequentialAccelerationCalculation(), integrator, 0)
		Expect(err).NotTo(HaveOccurred())
		Expect(system.Update(60)).To(Succeed())

		Expect(integrator.calls).To(Equal(1))
		Expect(integrator.timeStep).To(Equal(float32(60)))
		Expect(norm(system.Accelerations()[3:6])).To(BeNumerically("~", 1.11916946e-11, 1e-16))
	})

	It("moves bodies toward each other", func() {
		bodies := physics.NewBodies(2)
		bodies.Masses[0], bodies.Masses[1] = 1e10, 1e10
		bodies.Positions[0], bodies.Positions[3] = -0.5, 0.5
		before := bodies.Clone()

		system, err := physics.NewBodiesSystem(bodies, 2, physics.NewParallelAccelerationCalculation(0), physics.NewEuler(0), 0.01)
		Expect(err).NotTo(HaveOccurred())
		for i := 0; i < 10; i++ {
			Expect(system.Update(physics.DefaultTimeStep)).To(Succeed())
		}

		gap := func(b physics.Bodies) float64 {
			return norm([]float32{
				b.Positions[3] - b.Positions[0],
				b.Positions[4] - b.Positions[1],
				b.Positions[5] - b.Positions[2],
			})
		}
		Expect(gap(system.Bodies())).To(BeNumerically("<", gap(before)))
	})

	It("aborts the step when the acceleration strategy fails", func() {
		bodies := scenario.Random(10, 4, 0)
		before := bodies.Clone()
		boom := errors.New("boom")
		calc := &failingCalculation{err: boom}
		integrator := &recordingIntegrator{}

		system, err := physics.NewBodiesSystem(bodies, 10, calc, integrator, 0.1)
		Expect(err).NotTo(HaveOccurred())

		err = system.Update(physics.DefaultTimeStep)
		Expect(err).To(MatchError(boom))
		Expect(err.Error()).To(ContainSubstring("failing"))
		Expect(calc.calls).To(Equal(1))
		Expect(integrator.calls).To(BeZero())
		Expect(bodies).To(Equal(before))
	})

	It("validates its arguments", func() {
		_, err := physics.NewBodiesSystem(physics.NewBodies(2), 3,
			physics.NewSequentialAccelerationCalculation(), physics.NewEuler(0), 0)
		Expect(err).To(MatchError(physics.ErrBodiesMismatch))

		_, err = physics.NewBodiesSystem(physics.NewBodies(2), 2, nil, physics.NewEuler(0), 0)
		Expect(err).To(HaveOccurred())
	})
})
