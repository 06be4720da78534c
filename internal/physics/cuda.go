package physics

// CUDAAccelerationCalculation offloads the kernel to a CUDA device.
type CUDAAccelerationCalculation struct {
	deviceAccelerationCalculation
}

func NewCUDAAccelerationCalculation(opts Options) (*CUDAAccelerationCalculation, error) {
	opts = opts.withDefaults()
	d, err := newDeviceAccelerationCalculation(deviceConfig{
		name:      CUDA.String(),
		primary:   opts.CUDAPlatform,
		host:      opts.HostPlatform,
		allowHost: opts.AllowHostDevice,
		source:    opts.CUDAKernelSource,
		logger:    opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &CUDAAccelerationCalculation{deviceAccelerationCalculation: *d}, nil
}
