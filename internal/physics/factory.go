package physics

import (
	"fmt"
	"log/slog"
	"strings"

	"github.com/san-kum/nbody/internal/compute"
)

type Implementation int

const (
	Sequential Implementation = iota
	Parallel
	OpenCL
	CUDA
)

var implementationNames = map[Implementation]string{
	Sequential: "sequential",
	Parallel:   "parallel",
	OpenCL:     "opencl",
	CUDA:       "cuda",
}

func (i Implementation) String() string {
	if name, ok := implementationNames[i]; ok {
		return name
	}
	return fmt.Sprintf("Implementation(%d)", int(i))
}

// Implementations lists every selector in enum order.
func Implementations() []Implementation {
	return []Implementation{Sequential, Parallel, OpenCL, CUDA}
}

func ParseImplementation(name string) (Implementation, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "sequential", "seq":
		return Sequential, nil
	case "parallel", "cpu", "openmp":
		return Parallel, nil
	case "opencl", "cl":
		return OpenCL, nil
	case "cuda":
		return CUDA, nil
	default:
		return 0, fmt.Errorf("%w: %s", ErrUnknownImplementation, name)
	}
}

// Options configures the strategies built by NewAccelerationCalculation.
// The zero value uses every logical CPU, the native OpenCL and CUDA
// platforms, the embedded kernels and slog.Default.
type Options struct {
	Workers int

	OpenCLPlatform compute.Platform
	CUDAPlatform   compute.Platform
	HostPlatform   compute.Platform

	// AllowHostDevice lets the offloaded strategies fall back to the host
	// platform when the native one has no usable device.
	AllowHostDevice bool

	OpenCLKernelSource string
	CUDAKernelSource   string

	Logger *slog.Logger
}

func (o Options) withDefaults() Options {
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	if o.OpenCLPlatform == nil {
		o.OpenCLPlatform = compute.NewOpenCLPlatform()
	}
	if o.CUDAPlatform == nil {
		o.CUDAPlatform = compute.NewCUDAPlatform()
	}
	if o.HostPlatform == nil {
		o.HostPlatform = compute.NewHostPlatform(HostKernels(), compute.WithWorkers(o.Workers))
	}
	if o.OpenCLKernelSource == "" {
		o.OpenCLKernelSource = OpenCLKernelSource
	}
	if o.CUDAKernelSource == "" {
		o.CUDAKernelSource = CUDAKernelSource
	}
	return o
}

// NewAccelerationCalculation builds a fresh strategy for impl. The caller
// owns the result and must Close it.
func NewAccelerationCalculation(impl Implementation, opts Options) (AccelerationCalculation, error) {
	switch impl {
	case Sequential:
		return NewSequentialAccelerationCalculation(), nil
	case Parallel:
		return NewParallelAccelerationCalculation(opts.Workers), nil
	case OpenCL:
		calc, err := NewOpenCLAccelerationCalculation(opts)
		if err != nil {
			return nil, err
		}
		return calc, nil
	case CUDA:
		calc, err := NewCUDAAccelerationCalculation(opts)
		if err != nil {
			return nil, err
		}
		return calc, nil
	default:
		return nil, fmt.Errorf("%w: %s", ErrUnknownImplementation, impl)
	}
}
