package physics

import (
	_ "embed"
	"fmt"

	"github.com/san-kum/nbody/internal/compute"
)

// KernelEntryPoint is the function name every device kernel must export.
const KernelEntryPoint = "calcAccelerations"

//go:embed kernels/calc_accelerations.cl
var OpenCLKernelSource string

//go:embed kernels/calc_accelerations.cu
var CUDAKernelSource string

// kernelArity is the number of arguments the device kernels take: masses,
// positions, accelerations, body count, squared softening.
const kernelArity = 5

// HostKernels registers the Go port of the device kernel for the host
// platform.
func HostKernels() map[string]compute.HostKernelSpec {
	return map[string]compute.HostKernelSpec{
		KernelEntryPoint: {Fn: hostCalcAccelerations, Arity: kernelArity},
	}
}

// hostCalcAccelerations takes the same arguments as the device kernels.
func hostCalcAccelerations(args compute.KernelArgs, start, end int) error {
	masses, err := args.Float32s(0)
	if err != nil {
		return err
	}
	positions, err := args.Float32s(1)
	if err != nil {
		return err
	}
	accelerations, err := args.Float32s(2)
	if err != nil {
		return err
	}
	count, err := args.Uint64(3)
	if err != nil {
		return err
	}
	softening, err := args.Float32(4)
	if err != nil {
		return err
	}

	n := int(count)
	if len(masses) < n || len(positions) < 3*n || len(accelerations) < 3*n {
		return fmt.Errorf("%w: buffers too small for %d bodies", compute.ErrKernelArg, n)
	}
	for i := start; i < end && i < n; i++ {
		ax, ay, az := bodyAcceleration(masses, positions, n, i, softening)
		accelerations[3*i] = ax
		accelerations[3*i+1] = ay
		accelerations[3*i+2] = az
	}
	return nil
}
