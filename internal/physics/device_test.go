package physics_test

import (
	"errors"
	"fmt"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"github.com/san-kum/nbody/internal/compute"
	"github.com/san-kum/nbody/internal/physics"
	"github.com/san-kum/nbody/internal/scenario"
)

var _ = Describe("offloaded strategies", func() {
	var (
		platform *fakePlatform
		host     *compute.HostPlatform
		opts     physics.Options
	)

	BeforeEach(func() {
		host = compute.NewHostPlatform(physics.HostKernels())
		platform = newFakePlatformWith(host,
			gpu("small", 8),
			gpu("large", 32),
			compute.DeviceInfo{Name: "default", Type: compute.DeviceTypeDefault, MaxComputeUnits: 64},
		)
		opts = physics.Options{
			OpenCLPlatform: platform,
			CUDAPlatform:   platform,
			HostPlatform:   compute.NewHostPlatform(physics.HostKernels()),
			Logger:         discardLogger,
		}
	})

	Describe("device selection", func() {
		It("prefers the GPU with the most compute units", func() {
			calc, err := physics.NewOpenCLAccelerationCalculation(opts)
			Expect(err).NotTo(HaveOccurred())
			defer calc.Close()
			Expect(calc.Device().Name).To(Equal("large"))
		})

		It("falls back to the platform default device", func() {
			opts.CUDAPlatform = newFakePlatformWith(host,
				compute.DeviceInfo{Name: "default", Type: compute.DeviceTypeDefault})
			calc, err := physics.NewCUDAAccelerationCalculation(opts)
			Expect(err).NotTo(HaveOccurred())
			defer calc.Close()
			Expect(calc.Device().Name).To(Equal("default"))
		})

		It("falls back to the host device when allowed", func() {
			opts.OpenCLPlatform = newFakePlatform()
			opts.AllowHostDevice = true
			calc, err := physics.NewOpenCLAccelerationCalculation(opts)
			Expect(err).NotTo(HaveOccurred())
			defer calc.Close()
			Expect(calc.Device().Name).To(Equal("host"))
			Expect(calc.Device().Type).To(Equal(compute.DeviceTypeDefault))
		})

		It("fails with a device listing when nothing is usable", func() {
			opts.OpenCLPlatform = newFakePlatform()
			_, err := physics.NewOpenCLAccelerationCalculation(opts)
			Expect(err).To(MatchError(physics.ErrNoDevice))

			var devErr *physics.DeviceError
			Expect(errors.As(err, &devErr)).To(BeTrue())
			Expect(devErr.Strategy).To(Equal("opencl"))
			Expect(devErr.Devices).To(ContainSubstring("platform fake: 0 device(s)"))
			Expect(devErr.Devices).To(ContainSubstring("platform host"))
		})

		It("reports why a native platform is unavailable", func() {
			opts.OpenCLPlatform = compute.NewOpenCLPlatform()
			if opts.OpenCLPlatform.Err() == nil {
				Skip("opencl support is built in")
			}
			_, err := physics.NewOpenCLAccelerationCalculation(opts)
			Expect(err).To(MatchError(physics.ErrNoDevice))
			Expect(err).To(MatchError(compute.ErrOpenCLNotBuilt))
		})
	})

	Describe("buffer lifecycle", func() {
		var (
			calc   *physics.OpenCLAccelerationCalculation
			bodies physics.Bodies
			acc    []float32
		)

		BeforeEach(func() {
			var err error
			calc, err = physics.NewOpenCLAccelerationCalculation(opts)
			Expect(err).NotTo(HaveOccurred())
			bodies = scenario.Random(16, 5, 1)
			acc = make([]float32, 48)
		})

		AfterEach(func() {
			Expect(calc.Close()).To(Succeed())
		})

		It("does not touch the device for fewer than two bodies", func() {
			Expect(calc.CalcAccelerations(bodies, 1, acc, 0.01)).To(Succeed())
			Expect(platform.buffers).To(BeZero())
			Expect(platform.writes).To(BeZero())
		})

		It("allocates and binds once for repeated calls", func() {
			for i := 0; i < 3; i++ {
				Expect(calc.CalcAccelerations(bodies, 16, acc, 0.01)).To(Succeed())
			}
			Expect(platform.buffers).To(Equal(3))
			Expect(platform.kernelArgs).To(Equal(5))
			Expect(platform.writes).To(Equal(6))
			Expect(platform.executes).To(Equal(3))
			Expect(platform.reads).To(Equal(3))
		})

		It("rebinds only the softening when it changes", func() {
			Expect(calc.CalcAccelerations(bodies, 16, acc, 0.01)).To(Succeed())
			Expect(calc.CalcAccelerations(bodies, 16, acc, 0.02)).To(Succeed())
			Expect(platform.buffers).To(Equal(3))
			Expect(platform.kernelArgs).To(Equal(6))
		})

		It("reallocates when the body count changes", func() {
			Expect(calc.CalcAccelerations(bodies, 16, acc, 0.01)).To(Succeed())
			Expect(calc.CalcAccelerations(bodies, 8, acc, 0.01)).To(Succeed())
			Expect(platform.buffers).To(Equal(6))
			Expect(platform.kernelArgs).To(Equal(10))
			Expect(host.MemoryInfo()).To(ContainSubstring("(3 buffers)"))
		})

		It("releases device memory on Close", func() {
			Expect(calc.CalcAccelerations(bodies, 16, acc, 0.01)).To(Succeed())
			Expect(calc.Close()).To(Succeed())
			Expect(host.MemoryInfo()).To(ContainSubstring("(0 buffers)"))
			Expect(calc.CalcAccelerations(bodies, 16, acc, 0.01)).To(MatchError(physics.ErrClosed))
		})
	})

	Describe("transfer failures", func() {
		DescribeTable("wrap the cause with a memory snapshot and stay closable",
			func(inject func(*fakePlatform, error), op string) {
				cause := fmt.Errorf("injected: %w", compute.ErrOutOfDeviceMemory)
				inject(platform, cause)

				calc, err := physics.NewOpenCLAccelerationCalculation(opts)
				Expect(err).NotTo(HaveOccurred())

				bodies := scenario.Random(16, 5, 1)
				err = calc.CalcAccelerations(bodies, 16, make([]float32, 48), 0.01)
				Expect(err).To(MatchError(compute.ErrOutOfDeviceMemory))

				var transferErr *physics.TransferError
				Expect(errors.As(err, &transferErr)).To(BeTrue())
				Expect(transferErr.Op).To(Equal(op))
				Expect(transferErr.MemoryInfo).To(ContainSubstring("host device"))
				Expect(transferErr.MemoryInfo).To(ContainSubstring("(3 buffers)"))

				Expect(calc.Close()).To(Succeed())
				Expect(host.MemoryInfo()).To(ContainSubstring("(0 buffers)"))
			},
			Entry("write", func(p *fakePlatform, err error) { p.failWrite = err }, "write masses"),
			Entry("execute", func(p *fakePlatform, err error) { p.failExecute = err }, "execute kernel"),
			Entry("read", func(p *fakePlatform, err error) { p.failRead = err }, "read accelerations"),
		)

		It("reports allocation beyond device capacity", func() {
			small := compute.NewHostPlatform(physics.HostKernels(), compute.WithMemoryCapacity(128))
			opts.OpenCLPlatform = newFakePlatformWith(small, gpu("tiny", 1))

			calc, err := physics.NewOpenCLAccelerationCalculation(opts)
			Expect(err).NotTo(HaveOccurred())

			bodies := scenario.Random(16, 5, 1)
			err = calc.CalcAccelerations(bodies, 16, make([]float32, 48), 0.01)
			Expect(err).To(MatchError(compute.ErrOutOfDeviceMemory))

			var transferErr *physics.TransferError
			Expect(errors.As(err, &transferErr)).To(BeTrue())
			Expect(transferErr.Op).To(Equal("allocate device buffers"))

			Expect(calc.Close()).To(Succeed())
			Expect(small.MemoryInfo()).To(ContainSubstring("(0 buffers)"))
		})
	})

	Describe("host kernel dispatch", func() {
		It("refuses to run the acceleration kernel with unbound arguments", func() {
			dev, err := host.DefaultDevice()
			Expect(err).NotTo(HaveOccurred())
			ctx, err := host.NewContext(dev)
			Expect(err).NotTo(HaveOccurred())
			defer ctx.Release()

			queue, err := ctx.NewCommandQueue()
			Expect(err).NotTo(HaveOccurred())
			prog, err := ctx.NewProgram(physics.OpenCLKernelSource, physics.KernelEntryPoint)
			Expect(err).NotTo(HaveOccurred())

			Expect(queue.Execute(prog, 2)).To(MatchError(compute.ErrKernelArg))

			acc, err := ctx.NewWriteOnlyBuffer(6 * 4)
			Expect(err).NotTo(HaveOccurred())
			for i, arg := range []any{acc, acc, acc, uint64(2)} {
				Expect(prog.SetKernelArg(i, arg)).To(Succeed())
			}
			Expect(queue.Execute(prog, 2)).To(MatchError(compute.ErrKernelArg))
		})
	})
})
