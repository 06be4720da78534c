package compute

import (
	"fmt"
	"runtime"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/nbody/internal/parallel"
)

const DefaultHostMemoryCapacity = 1 << 30

// HostKernel processes work-items [start, end). The host platform splits a
// dispatch into contiguous chunks and calls the kernel once per chunk.
type HostKernel func(args KernelArgs, start, end int) error

// HostKernelSpec registers a kernel with the number of positional
// arguments that must be bound before it can be dispatched.
type HostKernelSpec struct {
	Fn    HostKernel
	Arity int
}

// KernelArgs are the positional arguments bound through SetKernelArg.
// Buffer arguments are exposed as their float32 backing storage.
type KernelArgs struct {
	values []any
}

func (a KernelArgs) Len() int {
	return len(a.values)
}

func (a KernelArgs) Float32s(i int) ([]float32, error) {
	v, err := a.at(i)
	if err != nil {
		return nil, err
	}
	b, ok := v.(*hostBuffer)
	if !ok {
		return nil, argTypeError(i, "buffer", v)
	}
	return b.data, nil
}

func (a KernelArgs) Uint64(i int) (uint64, error) {
	v, err := a.at(i)
	if err != nil {
		return 0, err
	}
	u, ok := v.(uint64)
	if !ok {
		return 0, argTypeError(i, "uint64", v)
	}
	return u, nil
}

func (a KernelArgs) Float32(i int) (float32, error) {
	v, err := a.at(i)
	if err != nil {
		return 0, err
	}
	f, ok := v.(float32)
	if !ok {
		return 0, argTypeError(i, "float32", v)
	}
	return f, nil
}

func (a KernelArgs) at(i int) (any, error) {
	if i < 0 || i >= len(a.values) || a.values[i] == nil {
		return nil, fmt.Errorf("%w: index %d not set", ErrKernelArg, i)
	}
	return a.values[i], nil
}

func argTypeError(i int, want string, got any) error {
	return fmt.Errorf("%w: index %d is %T, want %s", ErrKernelArg, i, got, want)
}

type HostOption func(*HostPlatform)

// WithMemoryCapacity limits the bytes the host device may hand out.
func WithMemoryCapacity(bytes uint64) HostOption {
	return func(p *HostPlatform) {
		p.device.capacity = bytes
	}
}

// WithWorkers sets the dispatch worker count. Non-positive means NumCPU.
func WithWorkers(n int) HostOption {
	return func(p *HostPlatform) {
		p.workers = n
	}
}

// HostPlatform is a single default device backed by host memory. It runs
// Go kernels registered by entry point name and never reports a GPU.
type HostPlatform struct {
	kernels map[string]HostKernelSpec
	device  *hostDevice
	workers int
}

func NewHostPlatform(kernels map[string]HostKernelSpec, opts ...HostOption) *HostPlatform {
	p := &HostPlatform{
		kernels: make(map[string]HostKernelSpec, len(kernels)),
		device:  &hostDevice{capacity: DefaultHostMemoryCapacity},
	}
	for name, k := range kernels {
		p.kernels[name] = k
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *HostPlatform) Name() string {
	return "host"
}

func (p *HostPlatform) Devices() []Device {
	return []Device{p.device}
}

func (p *HostPlatform) GPUAvailable() bool {
	return false
}

func (p *HostPlatform) DefaultDeviceAvailable() bool {
	return true
}

func (p *HostPlatform) DeviceWithMostComputeUnits() (Device, error) {
	return MostComputeUnits(p.Devices(), DeviceTypeGPU)
}

func (p *HostPlatform) DefaultDevice() (Device, error) {
	return p.device, nil
}

func (p *HostPlatform) DebugInfo() string {
	return debugInfo(p.Name(), p.Devices(), nil)
}

func (p *HostPlatform) Err() error {
	return nil
}

func (p *HostPlatform) NewContext(d Device) (Context, error) {
	if d != Device(p.device) {
		return nil, ErrForeignDevice
	}
	return &hostContext{platform: p}, nil
}

// MemoryInfo snapshots the device allocation counters.
func (p *HostPlatform) MemoryInfo() string {
	return p.device.memoryInfo()
}

type hostDevice struct {
	mu       sync.Mutex
	capacity uint64
	used     uint64
	buffers  int
}

func (d *hostDevice) Info() DeviceInfo {
	d.mu.Lock()
	defer d.mu.Unlock()
	return DeviceInfo{
		Name:              "host",
		Vendor:            runtime.GOARCH,
		Version:           runtime.Version(),
		Type:              DeviceTypeDefault,
		MaxComputeUnits:   uint32(runtime.NumCPU()),
		GlobalMemoryBytes: d.capacity,
	}
}

func (d *hostDevice) reserve(size uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.used+size > d.capacity {
		return fmt.Errorf("%w: requested %d bytes with %d of %d in use",
			ErrOutOfDeviceMemory, size, d.used, d.capacity)
	}
	d.used += size
	d.buffers++
	return nil
}

func (d *hostDevice) free(size uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.used -= size
	d.buffers--
}

func (d *hostDevice) memoryInfo() string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return fmt.Sprintf("host device: %s used of %s (%d buffers)",
		FormatBytes(d.used), FormatBytes(d.capacity), d.buffers)
}

type hostContext struct {
	platform *HostPlatform
	released bool
}

func (c *hostContext) NewCommandQueue() (CommandQueue, error) {
	if c.released {
		return nil, ErrReleased
	}
	return &hostQueue{ctx: c}, nil
}

func (c *hostContext) NewProgram(source, entryPoint string) (Program, error) {
	if c.released {
		return nil, ErrReleased
	}
	spec, ok := c.platform.kernels[entryPoint]
	if !ok || spec.Fn == nil {
		return nil, fmt.Errorf("%w: %q", ErrUnknownKernel, entryPoint)
	}
	return &hostProgram{ctx: c, entryPoint: entryPoint, kernel: spec.Fn, arity: spec.Arity}, nil
}

func (c *hostContext) NewReadOnlyBuffer(size int) (Buffer, error) {
	return c.newBuffer(size, true)
}

func (c *hostContext) NewWriteOnlyBuffer(size int) (Buffer, error) {
	return c.newBuffer(size, false)
}

func (c *hostContext) newBuffer(size int, readOnly bool) (Buffer, error) {
	if c.released {
		return nil, ErrReleased
	}
	if size <= 0 || size%4 != 0 {
		return nil, fmt.Errorf("compute: invalid buffer size %d", size)
	}
	if err := c.platform.device.reserve(uint64(size)); err != nil {
		return nil, err
	}
	return &hostBuffer{
		ctx:      c,
		data:     make([]float32, size/4),
		readOnly: readOnly,
	}, nil
}

func (c *hostContext) Release() error {
	c.released = true
	return nil
}

type hostBuffer struct {
	ctx      *hostContext
	data     []float32
	readOnly bool
	released bool
}

func (b *hostBuffer) Size() int {
	return len(b.data) * 4
}

func (b *hostBuffer) Release() error {
	if b.released {
		return ErrReleased
	}
	b.released = true
	b.ctx.platform.device.free(uint64(b.Size()))
	b.data = nil
	return nil
}

func (c *hostContext) buffer(b Buffer) (*hostBuffer, error) {
	hb, ok := b.(*hostBuffer)
	if !ok || hb.ctx != c {
		return nil, ErrForeignBuffer
	}
	if hb.released {
		return nil, ErrReleased
	}
	return hb, nil
}

type hostProgram struct {
	ctx        *hostContext
	entryPoint string
	kernel     HostKernel
	arity      int
	args       []any
	released   bool
}

func (p *hostProgram) SetKernelArg(index int, value any) error {
	if p.released {
		return ErrReleased
	}
	if index < 0 {
		return fmt.Errorf("%w: index %d", ErrKernelArg, index)
	}
	switch v := value.(type) {
	case Buffer:
		hb, err := p.ctx.buffer(v)
		if err != nil {
			return fmt.Errorf("%w: index %d: %w", ErrKernelArg, index, err)
		}
		value = hb
	case uint64, float32:
	default:
		return fmt.Errorf("%w: index %d has unsupported type %T", ErrKernelArg, index, value)
	}
	for len(p.args) <= index {
		p.args = append(p.args, nil)
	}
	p.args[index] = value
	return nil
}

func (p *hostProgram) MemoryInfo() string {
	return p.ctx.platform.device.memoryInfo()
}

func (p *hostProgram) Release() error {
	p.released = true
	p.args = nil
	return nil
}

type hostQueue struct {
	ctx      *hostContext
	released bool
}

func (q *hostQueue) WriteBuffer(dst Buffer, src []float32) error {
	if q.released {
		return ErrReleased
	}
	hb, err := q.ctx.buffer(dst)
	if err != nil {
		return err
	}
	if len(src) > len(hb.data) {
		return fmt.Errorf("%w: %d > %d elements", ErrTransferSize, len(src), len(hb.data))
	}
	copy(hb.data, src)
	return nil
}

func (q *hostQueue) ReadBuffer(src Buffer, dst []float32) error {
	if q.released {
		return ErrReleased
	}
	hb, err := q.ctx.buffer(src)
	if err != nil {
		return err
	}
	if len(dst) > len(hb.data) {
		return fmt.Errorf("%w: %d > %d elements", ErrTransferSize, len(dst), len(hb.data))
	}
	copy(dst, hb.data)
	return nil
}

func (q *hostQueue) Execute(prog Program, items int) error {
	if q.released {
		return ErrReleased
	}
	p, ok := prog.(*hostProgram)
	if !ok || p.ctx != q.ctx {
		return fmt.Errorf("compute: program not built for this context")
	}
	if p.released {
		return ErrReleased
	}
	if len(p.args) < p.arity {
		return fmt.Errorf("%w: %s needs %d arguments, %d bound", ErrKernelArg, p.entryPoint, p.arity, len(p.args))
	}
	for i, arg := range p.args {
		if arg == nil {
			return fmt.Errorf("%w: index %d not set", ErrKernelArg, i)
		}
		if hb, ok := arg.(*hostBuffer); ok && hb.released {
			return fmt.Errorf("%w: index %d: %w", ErrKernelArg, i, ErrReleased)
		}
	}
	if items <= 0 {
		return nil
	}

	args := KernelArgs{values: p.args}
	workers := parallel.Workers(items, q.ctx.platform.workers)
	chunkSize := (items + workers - 1) / workers

	var g errgroup.Group
	for start := 0; start < items; start += chunkSize {
		end := min(start+chunkSize, items)
		g.Go(func() error {
			return p.kernel(args, start, end)
		})
	}
	return g.Wait()
}

func (q *hostQueue) Release() error {
	q.released = true
	return nil
}
