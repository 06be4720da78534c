package physics_test

import (
	"reflect"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/nbody/internal/physics"
)

var _ = Describe("NewAccelerationCalculation", func() {
	It("builds a distinct concrete type for every selector", func() {
		seen := map[reflect.Type]physics.Implementation{}
		for _, impl := range physics.Implementations() {
			calc, err := physics.NewAccelerationCalculation(impl, hostOptions())
			Expect(err).NotTo(HaveOccurred(), impl.String())
			Expect(calc.Name()).To(Equal(impl.String()))

			typ := reflect.TypeOf(calc)
			Expect(seen).NotTo(HaveKey(typ))
			seen[typ] = impl
			Expect(calc.Close()).To(Succeed())
		}
		Expect(seen).To(HaveLen(4))
	})

	It("maps each selector to its strategy type", func() {
		want := map[physics.Implementation]any{
			physics.Sequential: &physics.SequentialAccelerationCalculation{},
			physics.Parallel:   &physics.ParallelAccelerationCalculation{},
			physics.OpenCL:     &physics.OpenCLAccelerationCalculation{},
			physics.CUDA:       &physics.CUDAAccelerationCalculation{},
		}
		for impl, typ := range want {
			calc, err := physics.NewAccelerationCalculation(impl, hostOptions())
			Expect(err).NotTo(HaveOccurred())
			Expect(calc).To(BeAssignableToTypeOf(typ))
			Expect(calc.Close()).To(Succeed())
		}
	})

	It("returns a fresh instance per call", func() {
		a, err := physics.NewAccelerationCalculation(physics.Parallel, physics.Options{})
		Expect(err).NotTo(HaveOccurred())
		b, err := physics.NewAccelerationCalculation(physics.Parallel, physics.Options{})
		Expect(err).NotTo(HaveOccurred())
		Expect(a).NotTo(BeIdenticalTo(b))
	})

	It("rejects an unknown selector", func() {
		calc, err := physics.NewAccelerationCalculation(physics.Implementation(42), physics.Options{})
		Expect(err).To(MatchError(physics.ErrUnknownImplementation))
		Expect(calc).To(BeNil())
	})

	It("returns a nil interface when device selection fails", func() {
		opts := hostOptions()
		opts.AllowHostDevice = false
		calc, err := physics.NewAccelerationCalculation(physics.CUDA, opts)
		Expect(err).To(MatchError(physics.ErrNoDevice))
		Expect(calc == nil).To(BeTrue())
	})
})

var _ = DescribeTable("ParseImplementation",
	func(name string, want physics.Implementation) {
		got, err := physics.ParseImplementation(name)
		Expect(err).NotTo(HaveOccurred())
		Expect(got).To(Equal(want))
		Expect(got.String()).To(Equal(want.String()))
	},
	Entry("sequential", "sequential", physics.Sequential),
	Entry("parallel", "parallel", physics.Parallel),
	Entry("cpu alias", "CPU", physics.Parallel),
	Entry("openmp alias", "openmp", physics.Parallel),
	Entry("opencl", " OpenCL ", physics.OpenCL),
	Entry("cuda", "cuda", physics.CUDA),
)

var _ = It("ParseImplementation rejects unknown names", func() {
	_, err := physics.ParseImplementation("vulkan")
	Expect(err).To(MatchError(physics.ErrUnknownImplementation))
	Expect(physics.Implementation(9).String()).To(Equal("Implementation(9)"))
})
