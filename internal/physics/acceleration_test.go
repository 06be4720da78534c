package physics_test

import (
	"math"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/nbody/internal/compute"
	"github.com/san-kum/nbody/internal/physics"
	"github.com/san-kum/nbody/internal/scenario"
)

type strategyFactory func() physics.AccelerationCalculation

func hostOptions() physics.Options {
	return physics.Options{
		Workers:         4,
		OpenCLPlatform:  newFakePlatform(),
		CUDAPlatform:    newFakePlatform(),
		HostPlatform:    compute.NewHostPlatform(physics.HostKernels(), compute.WithWorkers(4)),
		AllowHostDevice: true,
		Logger:          discardLogger,
	}
}

var strategies = map[string]strategyFactory{
	"sequential": func() physics.AccelerationCalculation {
		return physics.NewSequentialAccelerationCalculation()
	},
	"parallel": func() physics.AccelerationCalculation {
		return physics.NewParallelAccelerationCalculation(4)
	},
	"parallel single worker": func() physics.AccelerationCalculation {
		return physics.NewParallelAccelerationCalculation(1)
	},
	"opencl on host device": func() physics.AccelerationCalculation {
		calc, err := physics.NewOpenCLAccelerationCalculation(hostOptions())
		Expect(err).NotTo(HaveOccurred())
		return calc
	},
	"cuda on host device": func() physics.AccelerationCalculation {
		calc, err := physics.NewCUDAAccelerationCalculation(hostOptions())
		Expect(err).NotTo(HaveOccurred())
		return calc
	},
}

func strategyEntries() []TableEntry {
	var entries []TableEntry
	for _, name := range []string{"sequential", "parallel", "parallel single worker", "opencl on host device", "cuda on host device"} {
		entries = append(entries, Entry(name, strategies[name]))
	}
	return entries
}

var _ = Describe("AccelerationCalculation", func() {
	DescribeTable("leaves zeros for fewer than two bodies",
		func(newStrategy strategyFactory) {
			calc := newStrategy()
			defer calc.Close()

			for _, n := range []int{0, 1} {
				bodies := physics.NewBodies(n)
				if n == 1 {
					bodies.Masses[0] = 5
					bodies.Positions[0] = 3
				}
				acc := []float32{7, 7, 7, 7}
				Expect(calc.CalcAccelerations(bodies, n, acc, 0.01)).To(Succeed())
				Expect(acc[:3*n]).NotTo(ContainElement(Not(BeZero())))
			}
		},
		strategyEntries(),
	)

	DescribeTable("overwrites stale buffer contents",
		func(newStrategy strategyFactory) {
			calc := newStrategy()
			defer calc.Close()

			bodies := scenario.Random(50, 3, 1)
			want := make([]float32, 150)
			Expect(calc.CalcAccelerations(bodies, 50, want, 0.01)).To(Succeed())

			got := make([]float32, 150)
			for i := range got {
				got[i] = float32(math.NaN())
			}
			Expect(calc.CalcAccelerations(bodies, 50, got, 0.01)).To(Succeed())
			Expect(got).To(Equal(want))
		},
		strategyEntries(),
	)

	DescribeTable("rejects invalid arguments",
		func(newStrategy strategyFactory) {
			calc := newStrategy()
			defer calc.Close()

			bodies := physics.NewBodies(4)
			Expect(calc.CalcAccelerations(bodies, 4, make([]float32, 11), 0)).
				To(MatchError(physics.ErrBufferTooSmall))
			Expect(calc.CalcAccelerations(bodies, 5, make([]float32, 15), 0)).
				To(MatchError(physics.ErrBodiesMismatch))
		},
		strategyEntries(),
	)

	DescribeTable("reproduces the Sun/Venus/Mars reference accelerations",
		func(newStrategy strategyFactory) {
			calc := newStrategy()
			defer calc.Close()

			bodies, err := scenario.SolarBodies("sun", "venus")
			Expect(err).NotTo(HaveOccurred())
			acc := make([]float32, 6)
			Expect(calc.CalcAccelerations(bodies, 2, acc, 0)).To(Succeed())
			Expect(norm(body(acc, 0))).To(BeNumerically("~", 2.73954584e-17, 1e-21))
			Expect(norm(body(acc, 1))).To(BeNumerically("~", 1.11916946e-11, 1e-16))

			bodies, err = scenario.SolarBodies("sun", "mars")
			Expect(err).NotTo(HaveOccurred())
			Expect(calc.CalcAccelerations(bodies, 2, acc, 0)).To(Succeed())
			Expect(norm(body(acc, 0))).To(BeNumerically("~", 9.96733636e-19, 1e-23))
			Expect(norm(body(acc, 1))).To(BeNumerically("~", 3.0885821e-12, 1e-17))

			bodies, err = scenario.Solar(3)
			Expect(err).NotTo(HaveOccurred())
			acc = make([]float32, 9)
			Expect(calc.CalcAccelerations(bodies, 3, acc, 0)).To(Succeed())
			Expect(norm(body(acc, 0))).To(BeNumerically("~", 2.83921921e-17, 1e-19))
			Expect(norm(body(acc, 1))).To(BeNumerically("~", 1.11916987e-11, 1e-15))
			Expect(norm(body(acc, 2))).To(BeNumerically("~", 3.0886132e-12, 1e-17))
		},
		strategyEntries(),
	)

	Describe("two-body symmetry", func() {
		It("pulls both bodies toward each other with equal momentum change", func() {
			bodies, err := scenario.SolarBodies("sun", "venus")
			Expect(err).NotTo(HaveOccurred())
			acc := make([]float32, 6)
			Expect(physics.NewSequentialAccelerationCalculation().CalcAccelerations(bodies, 2, acc, 0)).To(Succeed())

			a, b := body(acc, 0), body(acc, 1)
			cos := dot(a, b) / (norm(a) * norm(b))
			Expect(cos).To(BeNumerically("~", -1, 1e-6))

			lhs := float64(bodies.Masses[0]) * norm(a)
			rhs := float64(bodies.Masses[1]) * norm(b)
			Expect(lhs / rhs).To(BeNumerically("~", 1, 1e-5))

			towardVenus := []float32{
				bodies.Positions[3] - bodies.Positions[0],
				bodies.Positions[4] - bodies.Positions[1],
				bodies.Positions[5] - bodies.Positions[2],
			}
			Expect(dot(a, towardVenus)).To(BeNumerically(">", 0))
		})

		It("adds the squared softening to the unsquared distance", func() {
			bodies := physics.NewBodies(2)
			bodies.Masses[0], bodies.Masses[1] = 1e10, 1e10
			bodies.Positions[3] = 2

			acc := make([]float32, 6)
			Expect(physics.NewSequentialAccelerationCalculation().CalcAccelerations(bodies, 2, acc, 0.5)).To(Succeed())

			// d = 2 + 0.5 and the direction is Δp/d, so |a| = G*m*2/d³
			want := physics.GravitationalConstant * 1e10 * 2 / (2.5 * 2.5 * 2.5)
			Expect(float64(acc[0])).To(BeNumerically("~", want, want*1e-6))
			Expect(float64(acc[3])).To(BeNumerically("~", -want, want*1e-6))
		})
	})

	Describe("cross-strategy equivalence", func() {
		It("agrees with the sequential reference for every body", func() {
			const n = 256
			bodies := scenario.Random(n, 11, 0)
			ref := make([]float32, 3*n)
			Expect(physics.NewSequentialAccelerationCalculation().CalcAccelerations(bodies, n, ref, 0.01)).To(Succeed())

			var maxNorm float64
			for i := 0; i < n; i++ {
				maxNorm = math.Max(maxNorm, norm(body(ref, i)))
			}

			for name, newStrategy := range strategies {
				calc := newStrategy()
				got := make([]float32, 3*n)
				Expect(calc.CalcAccelerations(bodies, n, got, 0.01)).To(Succeed(), name)
				Expect(calc.Close()).To(Succeed())

				for i := 0; i < n; i++ {
					diff := []float32{
						got[3*i] - ref[3*i],
						got[3*i+1] - ref[3*i+1],
						got[3*i+2] - ref[3*i+2],
					}
					tol := 1e-5*norm(body(ref, i)) + 1e-6*maxNorm
					Expect(norm(diff)).To(BeNumerically("<=", tol), "%s body %d", name, i)
				}
			}
		})
	})
})

var _ = Describe("MaxRelativeDifference", func() {
	It("is zero for identical buffers", func() {
		a := []float32{1, 2, 3, -4, 5, 6}
		Expect(physics.MaxRelativeDifference(a, a, 2)).To(BeZero())
	})

	It("reports the worst body relative to the reference norm", func() {
		ref := []float32{3, 4, 0, 1, 0, 0}
		got := []float32{3, 4, 0.5, 1, 0, 0.5}
		// body 0: 0.5/5, body 1: 0.5/1
		Expect(physics.MaxRelativeDifference(got, ref, 2)).To(BeNumerically("~", 0.5, 1e-12))
	})

	It("falls back to the absolute difference for a zero reference", func() {
		ref := []float32{0, 0, 0}
		got := []float32{0, 0.25, 0}
		Expect(physics.MaxRelativeDifference(got, ref, 1)).To(BeNumerically("~", 0.25, 1e-12))
	})
})
