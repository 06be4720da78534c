package physics

// OpenCLAccelerationCalculation offloads the kernel to an OpenCL device.
type OpenCLAccelerationCalculation struct {
	deviceAccelerationCalculation
}

func NewOpenCLAccelerationCalculation(opts Options) (*OpenCLAccelerationCalculation, error) {
	opts = opts.withDefaults()
	d, err := newDeviceAccelerationCalculation(deviceConfig{
		name:      OpenCL.String(),
		primary:   opts.OpenCLPlatform,
		host:      opts.HostPlatform,
		allowHost: opts.AllowHostDevice,
		source:    opts.OpenCLKernelSource,
		logger:    opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	return &OpenCLAccelerationCalculation{deviceAccelerationCalculation: *d}, nil
}
