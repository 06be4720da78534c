//go:build !opencl

package compute

type OpenCLPlatform struct{}

func NewOpenCLPlatform() *OpenCLPlatform {
	return &OpenCLPlatform{}
}

func (p *OpenCLPlatform) Name() string                 { return "opencl" }
func (p *OpenCLPlatform) Devices() []Device            { return nil }
func (p *OpenCLPlatform) GPUAvailable() bool           { return false }
func (p *OpenCLPlatform) DefaultDeviceAvailable() bool { return false }
func (p *OpenCLPlatform) Err() error                   { return ErrOpenCLNotBuilt }

func (p *OpenCLPlatform) DeviceWithMostComputeUnits() (Device, error) {
	return nil, ErrOpenCLNotBuilt
}

func (p *OpenCLPlatform) DefaultDevice() (Device, error) {
	return nil, ErrOpenCLNotBuilt
}

func (p *OpenCLPlatform) NewContext(Device) (Context, error) {
	return nil, ErrOpenCLNotBuilt
}

func (p *OpenCLPlatform) DebugInfo() string {
	return debugInfo(p.Name(), nil, ErrOpenCLNotBuilt)
}
