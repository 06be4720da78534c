package physics_test

import (
	"fmt"

	"github.com/san-kum/nbody/internal/compute"
	"github.com/san-kum/nbody/internal/physics"
)

// fakePlatform advertises arbitrary devices but runs everything on a host
// platform underneath, counting the calls the strategies make.
type fakePlatform struct {
	host    *compute.HostPlatform
	devices []compute.Device

	buffers    int
	kernelArgs int
	writes     int
	executes   int
	reads      int

	failWrite   error
	failExecute error
	failRead    error
}

type fakeDevice struct {
	compute.Device
	info compute.DeviceInfo
}

func (d fakeDevice) Info() compute.DeviceInfo {
	return d.info
}

func newFakePlatform(infos ...compute.DeviceInfo) *fakePlatform {
	return newFakePlatformWith(compute.NewHostPlatform(physics.HostKernels()), infos...)
}

func newFakePlatformWith(host *compute.HostPlatform, infos ...compute.DeviceInfo) *fakePlatform {
	p := &fakePlatform{host: host}
	inner, _ := host.DefaultDevice()
	for _, info := range infos {
		p.devices = append(p.devices, fakeDevice{Device: inner, info: info})
	}
	return p
}

func gpu(name string, units uint32) compute.DeviceInfo {
	return compute.DeviceInfo{Name: name, Type: compute.DeviceTypeGPU, MaxComputeUnits: units}
}

func (p *fakePlatform) Name() string              { return "fake" }
func (p *fakePlatform) Devices() []compute.Device { return p.devices }
func (p *fakePlatform) Err() error                { return nil }
func (p *fakePlatform) GPUAvailable() bool        { return compute.HasType(p.devices, compute.DeviceTypeGPU) }

func (p *fakePlatform) DefaultDeviceAvailable() bool {
	return compute.HasType(p.devices, compute.DeviceTypeDefault)
}

func (p *fakePlatform) DeviceWithMostComputeUnits() (compute.Device, error) {
	return compute.MostComputeUnits(p.devices, compute.DeviceTypeGPU)
}

func (p *fakePlatform) DefaultDevice() (compute.Device, error) {
	return compute.MostComputeUnits(p.devices, compute.DeviceTypeDefault)
}

func (p *fakePlatform) DebugInfo() string {
	return fmt.Sprintf("platform fake: %d device(s)\n", len(p.devices))
}

func (p *fakePlatform) NewContext(d compute.Device) (compute.Context, error) {
	fd, ok := d.(fakeDevice)
	if !ok {
		return nil, compute.ErrForeignDevice
	}
	ctx, err := p.host.NewContext(fd.Device)
	if err != nil {
		return nil, err
	}
	return &fakeContext{Context: ctx, p: p}, nil
}

type fakeContext struct {
	compute.Context
	p *fakePlatform
}

func (c *fakeContext) NewReadOnlyBuffer(size int) (compute.Buffer, error) {
	c.p.buffers++
	return c.Context.NewReadOnlyBuffer(size)
}

func (c *fakeContext) NewWriteOnlyBuffer(size int) (compute.Buffer, error) {
	c.p.buffers++
	return c.Context.NewWriteOnlyBuffer(size)
}

func (c *fakeContext) NewCommandQueue() (compute.CommandQueue, error) {
	q, err := c.Context.NewCommandQueue()
	if err != nil {
		return nil, err
	}
	return &fakeQueue{CommandQueue: q, p: c.p}, nil
}

func (c *fakeContext) NewProgram(source, entryPoint string) (compute.Program, error) {
	prog, err := c.Context.NewProgram(source, entryPoint)
	if err != nil {
		return nil, err
	}
	return &fakeProgram{Program: prog, p: c.p}, nil
}

type fakeProgram struct {
	compute.Program
	p *fakePlatform
}

func (f *fakeProgram) SetKernelArg(index int, value any) error {
	f.p.kernelArgs++
	return f.Program.SetKernelArg(index, value)
}

type fakeQueue struct {
	compute.CommandQueue
	p *fakePlatform
}

func (q *fakeQueue) WriteBuffer(dst compute.Buffer, src []float32) error {
	q.p.writes++
	if q.p.failWrite != nil {
		return q.p.failWrite
	}
	return q.CommandQueue.WriteBuffer(dst, src)
}

func (q *fakeQueue) Execute(prog compute.Program, items int) error {
	q.p.executes++
	if q.p.failExecute != nil {
		return q.p.failExecute
	}
	return q.CommandQueue.Execute(prog.(*fakeProgram).Program, items)
}

func (q *fakeQueue) ReadBuffer(src compute.Buffer, dst []float32) error {
	q.p.reads++
	if q.p.failRead != nil {
		return q.p.failRead
	}
	return q.CommandQueue.ReadBuffer(src, dst)
}
