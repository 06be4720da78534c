//go:build opencl

package compute

/*
#cgo CFLAGS: -DCL_TARGET_OPENCL_VERSION=120
#cgo linux LDFLAGS: -lOpenCL
#cgo darwin LDFLAGS: -framework OpenCL
#ifdef __APPLE__
#include <OpenCL/opencl.h>
#else
#include <CL/cl.h>
#endif
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"strings"
	"unsafe"
)

// OpenCLPlatform wraps the first OpenCL platform exposing a GPU, or the
// first platform when none does.
type OpenCLPlatform struct {
	id      C.cl_platform_id
	name    string
	devices []Device
	err     error
}

func NewOpenCLPlatform() *OpenCLPlatform {
	p := &OpenCLPlatform{name: "opencl"}

	var count C.cl_uint
	if err := clError("clGetPlatformIDs", C.clGetPlatformIDs(0, nil, &count)); err != nil {
		p.err = err
		return p
	}
	if count == 0 {
		p.err = fmt.Errorf("%w: no opencl platforms", ErrDeviceNotFound)
		return p
	}
	ids := make([]C.cl_platform_id, count)
	if err := clError("clGetPlatformIDs", C.clGetPlatformIDs(count, &ids[0], nil)); err != nil {
		p.err = err
		return p
	}

	p.id = ids[0]
	for _, id := range ids {
		if HasType(clDevices(id, C.CL_DEVICE_TYPE_ALL), DeviceTypeGPU) {
			p.id = id
			break
		}
	}
	p.name = "opencl (" + platformString(p.id, C.CL_PLATFORM_NAME) + ")"
	p.devices = clDevices(p.id, C.CL_DEVICE_TYPE_ALL)
	return p
}

func (p *OpenCLPlatform) Name() string      { return p.name }
func (p *OpenCLPlatform) Devices() []Device { return p.devices }
func (p *OpenCLPlatform) Err() error        { return p.err }

func (p *OpenCLPlatform) GPUAvailable() bool {
	return HasType(p.devices, DeviceTypeGPU)
}

func (p *OpenCLPlatform) DefaultDeviceAvailable() bool {
	_, err := p.DefaultDevice()
	return err == nil
}

func (p *OpenCLPlatform) DeviceWithMostComputeUnits() (Device, error) {
	return MostComputeUnits(p.devices, DeviceTypeGPU)
}

func (p *OpenCLPlatform) DefaultDevice() (Device, error) {
	if p.err != nil {
		return nil, p.err
	}
	devices := clDevices(p.id, C.CL_DEVICE_TYPE_DEFAULT)
	if len(devices) == 0 {
		return nil, fmt.Errorf("%w: no default opencl device", ErrDeviceNotFound)
	}
	return devices[0], nil
}

func (p *OpenCLPlatform) DebugInfo() string {
	return debugInfo(p.Name(), p.devices, p.err)
}

func (p *OpenCLPlatform) NewContext(d Device) (Context, error) {
	dev, ok := d.(*openCLDevice)
	if !ok || dev.platform != p.id {
		return nil, ErrForeignDevice
	}

	props := []C.cl_context_properties{
		C.CL_CONTEXT_PLATFORM,
		C.cl_context_properties(uintptr(unsafe.Pointer(p.id))),
		0,
	}
	var status C.cl_int
	ctx := C.clCreateContext(&props[0], 1, &dev.id, nil, nil, &status)
	if err := clError("clCreateContext", status); err != nil {
		return nil, err
	}
	return &openCLContext{ctx: ctx, device: dev}, nil
}

type openCLDevice struct {
	id       C.cl_device_id
	platform C.cl_platform_id
	info     DeviceInfo
}

func (d *openCLDevice) Info() DeviceInfo {
	return d.info
}

func clDevices(platform C.cl_platform_id, typ C.cl_device_type) []Device {
	var count C.cl_uint
	if C.clGetDeviceIDs(platform, typ, 0, nil, &count) != C.CL_SUCCESS || count == 0 {
		return nil
	}
	ids := make([]C.cl_device_id, count)
	if C.clGetDeviceIDs(platform, typ, count, &ids[0], nil) != C.CL_SUCCESS {
		return nil
	}

	devices := make([]Device, 0, count)
	for _, id := range ids {
		var units C.cl_uint
		var memory C.cl_ulong
		var kind C.cl_device_type
		C.clGetDeviceInfo(id, C.CL_DEVICE_MAX_COMPUTE_UNITS, C.size_t(unsafe.Sizeof(units)), unsafe.Pointer(&units), nil)
		C.clGetDeviceInfo(id, C.CL_DEVICE_GLOBAL_MEM_SIZE, C.size_t(unsafe.Sizeof(memory)), unsafe.Pointer(&memory), nil)
		C.clGetDeviceInfo(id, C.CL_DEVICE_TYPE, C.size_t(unsafe.Sizeof(kind)), unsafe.Pointer(&kind), nil)

		devices = append(devices, &openCLDevice{
			id:       id,
			platform: platform,
			info: DeviceInfo{
				Name:              deviceString(id, C.CL_DEVICE_NAME),
				Vendor:            deviceString(id, C.CL_DEVICE_VENDOR),
				Version:           deviceString(id, C.CL_DEVICE_VERSION),
				Type:              clDeviceType(kind),
				MaxComputeUnits:   uint32(units),
				GlobalMemoryBytes: uint64(memory),
			},
		})
	}
	return devices
}

func clDeviceType(kind C.cl_device_type) DeviceType {
	switch {
	case kind&C.CL_DEVICE_TYPE_GPU != 0:
		return DeviceTypeGPU
	case kind&C.CL_DEVICE_TYPE_ACCELERATOR != 0:
		return DeviceTypeAccelerator
	case kind&C.CL_DEVICE_TYPE_CPU != 0:
		return DeviceTypeCPU
	default:
		return DeviceTypeDefault
	}
}

func deviceString(id C.cl_device_id, param C.cl_device_info) string {
	var size C.size_t
	if C.clGetDeviceInfo(id, param, 0, nil, &size) != C.CL_SUCCESS || size == 0 {
		return ""
	}
	buf := make([]byte, size)
	C.clGetDeviceInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	return strings.TrimRight(string(buf), "\x00")
}

func platformString(id C.cl_platform_id, param C.cl_platform_info) string {
	var size C.size_t
	if C.clGetPlatformInfo(id, param, 0, nil, &size) != C.CL_SUCCESS || size == 0 {
		return ""
	}
	buf := make([]byte, size)
	C.clGetPlatformInfo(id, param, size, unsafe.Pointer(&buf[0]), nil)
	return strings.TrimRight(string(buf), "\x00")
}

type openCLContext struct {
	ctx       C.cl_context
	device    *openCLDevice
	allocated uint64
	buffers   int
	released  bool
}

func (c *openCLContext) NewCommandQueue() (CommandQueue, error) {
	if c.released {
		return nil, ErrReleased
	}
	var status C.cl_int
	q := C.clCreateCommandQueue(c.ctx, c.device.id, 0, &status)
	if err := clError("clCreateCommandQueue", status); err != nil {
		return nil, err
	}
	return &openCLQueue{queue: q}, nil
}

func (c *openCLContext) NewProgram(source, entryPoint string) (Program, error) {
	if c.released {
		return nil, ErrReleased
	}
	csrc := C.CString(source)
	defer C.free(unsafe.Pointer(csrc))
	length := C.size_t(len(source))

	var status C.cl_int
	prog := C.clCreateProgramWithSource(c.ctx, 1, &csrc, &length, &status)
	if err := clError("clCreateProgramWithSource", status); err != nil {
		return nil, err
	}
	if status = C.clBuildProgram(prog, 1, &c.device.id, nil, nil, nil); status != C.CL_SUCCESS {
		log := c.buildLog(prog)
		C.clReleaseProgram(prog)
		return nil, fmt.Errorf("%w\n%s", clError("clBuildProgram", status), log)
	}

	cname := C.CString(entryPoint)
	defer C.free(unsafe.Pointer(cname))
	kernel := C.clCreateKernel(prog, cname, &status)
	if err := clError("clCreateKernel", status); err != nil {
		C.clReleaseProgram(prog)
		return nil, fmt.Errorf("%w: %q", err, entryPoint)
	}
	return &openCLProgram{ctx: c, program: prog, kernel: kernel}, nil
}

func (c *openCLContext) buildLog(prog C.cl_program) string {
	var size C.size_t
	C.clGetProgramBuildInfo(prog, c.device.id, C.CL_PROGRAM_BUILD_LOG, 0, nil, &size)
	if size == 0 {
		return ""
	}
	buf := make([]byte, size)
	C.clGetProgramBuildInfo(prog, c.device.id, C.CL_PROGRAM_BUILD_LOG, size, unsafe.Pointer(&buf[0]), nil)
	return strings.TrimRight(string(buf), "\x00")
}

func (c *openCLContext) NewReadOnlyBuffer(size int) (Buffer, error) {
	return c.newBuffer(size, C.CL_MEM_READ_ONLY)
}

func (c *openCLContext) NewWriteOnlyBuffer(size int) (Buffer, error) {
	return c.newBuffer(size, C.CL_MEM_WRITE_ONLY)
}

func (c *openCLContext) newBuffer(size int, flags C.cl_mem_flags) (Buffer, error) {
	if c.released {
		return nil, ErrReleased
	}
	var status C.cl_int
	mem := C.clCreateBuffer(c.ctx, flags, C.size_t(size), nil, &status)
	if err := clError("clCreateBuffer", status); err != nil {
		return nil, err
	}
	c.allocated += uint64(size)
	c.buffers++
	return &openCLBuffer{ctx: c, mem: mem, size: size}, nil
}

func (c *openCLContext) Release() error {
	if c.released {
		return nil
	}
	c.released = true
	return clError("clReleaseContext", C.clReleaseContext(c.ctx))
}

type openCLBuffer struct {
	ctx      *openCLContext
	mem      C.cl_mem
	size     int
	released bool
}

func (b *openCLBuffer) Size() int {
	return b.size
}

func (b *openCLBuffer) Release() error {
	if b.released {
		return ErrReleased
	}
	b.released = true
	b.ctx.allocated -= uint64(b.size)
	b.ctx.buffers--
	return clError("clReleaseMemObject", C.clReleaseMemObject(b.mem))
}

func asOpenCLBuffer(b Buffer) (*openCLBuffer, error) {
	ob, ok := b.(*openCLBuffer)
	if !ok {
		return nil, ErrForeignBuffer
	}
	if ob.released {
		return nil, ErrReleased
	}
	return ob, nil
}

type openCLProgram struct {
	ctx      *openCLContext
	program  C.cl_program
	kernel   C.cl_kernel
	released bool
}

func (p *openCLProgram) SetKernelArg(index int, value any) error {
	if p.released {
		return ErrReleased
	}
	var status C.cl_int
	switch v := value.(type) {
	case Buffer:
		b, err := asOpenCLBuffer(v)
		if err != nil {
			return fmt.Errorf("%w: index %d: %w", ErrKernelArg, index, err)
		}
		mem := b.mem
		status = C.clSetKernelArg(p.kernel, C.cl_uint(index), C.size_t(unsafe.Sizeof(mem)), unsafe.Pointer(&mem))
	case uint64:
		n := C.cl_ulong(v)
		status = C.clSetKernelArg(p.kernel, C.cl_uint(index), C.size_t(unsafe.Sizeof(n)), unsafe.Pointer(&n))
	case float32:
		f := C.cl_float(v)
		status = C.clSetKernelArg(p.kernel, C.cl_uint(index), C.size_t(unsafe.Sizeof(f)), unsafe.Pointer(&f))
	default:
		return fmt.Errorf("%w: index %d has unsupported type %T", ErrKernelArg, index, value)
	}
	return clError("clSetKernelArg", status)
}

func (p *openCLProgram) MemoryInfo() string {
	info := p.ctx.device.info
	return fmt.Sprintf("opencl device %s: %s allocated by this context of %s global memory (%d buffers)",
		info.Name, FormatBytes(p.ctx.allocated), FormatBytes(info.GlobalMemoryBytes), p.ctx.buffers)
}

func (p *openCLProgram) Release() error {
	if p.released {
		return nil
	}
	p.released = true
	errK := clError("clReleaseKernel", C.clReleaseKernel(p.kernel))
	errP := clError("clReleaseProgram", C.clReleaseProgram(p.program))
	if errK != nil {
		return errK
	}
	return errP
}

type openCLQueue struct {
	queue    C.cl_command_queue
	released bool
}

func (q *openCLQueue) WriteBuffer(dst Buffer, src []float32) error {
	if q.released {
		return ErrReleased
	}
	b, err := asOpenCLBuffer(dst)
	if err != nil {
		return err
	}
	size := len(src) * 4
	if size > b.size {
		return fmt.Errorf("%w: %d > %d bytes", ErrTransferSize, size, b.size)
	}
	if size == 0 {
		return nil
	}
	return clError("clEnqueueWriteBuffer", C.clEnqueueWriteBuffer(q.queue, b.mem, C.CL_TRUE, 0,
		C.size_t(size), unsafe.Pointer(&src[0]), 0, nil, nil))
}

func (q *openCLQueue) ReadBuffer(src Buffer, dst []float32) error {
	if q.released {
		return ErrReleased
	}
	b, err := asOpenCLBuffer(src)
	if err != nil {
		return err
	}
	size := len(dst) * 4
	if size > b.size {
		return fmt.Errorf("%w: %d > %d bytes", ErrTransferSize, size, b.size)
	}
	if size == 0 {
		return nil
	}
	return clError("clEnqueueReadBuffer", C.clEnqueueReadBuffer(q.queue, b.mem, C.CL_TRUE, 0,
		C.size_t(size), unsafe.Pointer(&dst[0]), 0, nil, nil))
}

func (q *openCLQueue) Execute(prog Program, items int) error {
	if q.released {
		return ErrReleased
	}
	p, ok := prog.(*openCLProgram)
	if !ok {
		return fmt.Errorf("compute: program not built by opencl")
	}
	if items <= 0 {
		return nil
	}
	global := C.size_t(items)
	if err := clError("clEnqueueNDRangeKernel",
		C.clEnqueueNDRangeKernel(q.queue, p.kernel, 1, nil, &global, nil, 0, nil, nil)); err != nil {
		return err
	}
	return clError("clFinish", C.clFinish(q.queue))
}

func (q *openCLQueue) Release() error {
	if q.released {
		return nil
	}
	q.released = true
	return clError("clReleaseCommandQueue", C.clReleaseCommandQueue(q.queue))
}

func clError(op string, status C.cl_int) error {
	if status == C.CL_SUCCESS {
		return nil
	}
	var wrapped error
	switch status {
	case C.CL_MEM_OBJECT_ALLOCATION_FAILURE, C.CL_OUT_OF_RESOURCES, C.CL_OUT_OF_HOST_MEMORY:
		wrapped = ErrOutOfDeviceMemory
	case C.CL_DEVICE_NOT_FOUND, C.CL_DEVICE_NOT_AVAILABLE:
		wrapped = ErrDeviceNotFound
	case C.CL_INVALID_KERNEL_NAME:
		wrapped = ErrUnknownKernel
	case C.CL_INVALID_ARG_INDEX, C.CL_INVALID_ARG_VALUE, C.CL_INVALID_ARG_SIZE, C.CL_INVALID_KERNEL_ARGS:
		wrapped = ErrKernelArg
	}
	return &StatusError{Op: op, Code: int(status), Wrapped: wrapped}
}
