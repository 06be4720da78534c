//go:build !cuda

package compute

type CUDAPlatform struct{}

func NewCUDAPlatform() *CUDAPlatform {
	return &CUDAPlatform{}
}

func (p *CUDAPlatform) Name() string                 { return "cuda" }
func (p *CUDAPlatform) Devices() []Device            { return nil }
func (p *CUDAPlatform) GPUAvailable() bool           { return false }
func (p *CUDAPlatform) DefaultDeviceAvailable() bool { return false }
func (p *CUDAPlatform) Err() error                   { return ErrCUDANotBuilt }

func (p *CUDAPlatform) DeviceWithMostComputeUnits() (Device, error) {
	return nil, ErrCUDANotBuilt
}

func (p *CUDAPlatform) DefaultDevice() (Device, error) {
	return nil, ErrCUDANotBuilt
}

func (p *CUDAPlatform) NewContext(Device) (Context, error) {
	return nil, ErrCUDANotBuilt
}

func (p *CUDAPlatform) DebugInfo() string {
	return debugInfo(p.Name(), nil, ErrCUDANotBuilt)
}
