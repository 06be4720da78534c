//go:build cuda

package compute

/*
#cgo CFLAGS: -I/opt/cuda/include
#cgo LDFLAGS: -L/opt/cuda/lib64 -lcuda -lnvrtc
#include <cuda.h>
#include <nvrtc.h>
#include <stdio.h>
#include <stdlib.h>

static int nbody_device_count(int *count) {
	CUresult r = cuInit(0);
	if (r != CUDA_SUCCESS) return r;
	return cuDeviceGetCount(count);
}

static int nbody_device_info(int ordinal, char *name, int nameLen, int *units, size_t *mem, int *major, int *minor) {
	CUdevice dev;
	CUresult r = cuDeviceGet(&dev, ordinal);
	if (r != CUDA_SUCCESS) return r;
	if ((r = cuDeviceGetName(name, nameLen, dev)) != CUDA_SUCCESS) return r;
	if ((r = cuDeviceGetAttribute(units, CU_DEVICE_ATTRIBUTE_MULTIPROCESSOR_COUNT, dev)) != CUDA_SUCCESS) return r;
	if ((r = cuDeviceGetAttribute(major, CU_DEVICE_ATTRIBUTE_COMPUTE_CAPABILITY_MAJOR, dev)) != CUDA_SUCCESS) return r;
	if ((r = cuDeviceGetAttribute(minor, CU_DEVICE_ATTRIBUTE_COMPUTE_CAPABILITY_MINOR, dev)) != CUDA_SUCCESS) return r;
	return cuDeviceTotalMem(mem, dev);
}

static int nbody_ctx_create(int ordinal, CUcontext *ctx) {
	CUdevice dev;
	CUresult r = cuDeviceGet(&dev, ordinal);
	if (r != CUDA_SUCCESS) return r;
	if ((r = cuCtxCreate(ctx, 0, dev)) != CUDA_SUCCESS) return r;
	return cuCtxPopCurrent(NULL);
}

static int nbody_ctx_destroy(CUcontext ctx) {
	return cuCtxDestroy(ctx);
}

static int nbody_alloc(CUcontext ctx, CUdeviceptr *ptr, size_t size) {
	CUresult r = cuCtxSetCurrent(ctx);
	if (r != CUDA_SUCCESS) return r;
	return cuMemAlloc(ptr, size);
}

static int nbody_free(CUcontext ctx, CUdeviceptr ptr) {
	CUresult r = cuCtxSetCurrent(ctx);
	if (r != CUDA_SUCCESS) return r;
	return cuMemFree(ptr);
}

static int nbody_htod(CUcontext ctx, CUdeviceptr dst, const void *src, size_t size) {
	CUresult r = cuCtxSetCurrent(ctx);
	if (r != CUDA_SUCCESS) return r;
	return cuMemcpyHtoD(dst, src, size);
}

static int nbody_dtoh(CUcontext ctx, void *dst, CUdeviceptr src, size_t size) {
	CUresult r = cuCtxSetCurrent(ctx);
	if (r != CUDA_SUCCESS) return r;
	return cuMemcpyDtoH(dst, src, size);
}

static int nbody_meminfo(CUcontext ctx, size_t *freeBytes, size_t *totalBytes) {
	CUresult r = cuCtxSetCurrent(ctx);
	if (r != CUDA_SUCCESS) return r;
	return cuMemGetInfo(freeBytes, totalBytes);
}

static int nbody_compile(const char *src, int major, int minor, char **ptx, char **log) {
	nvrtcProgram prog;
	char arch[64];
	const char *opts[1];
	size_t size = 0;
	nvrtcResult r;

	*ptx = NULL;
	*log = NULL;
	if ((r = nvrtcCreateProgram(&prog, src, "calc_accelerations.cu", 0, NULL, NULL)) != NVRTC_SUCCESS) return r;

	snprintf(arch, sizeof arch, "--gpu-architecture=compute_%d%d", major, minor);
	opts[0] = arch;
	r = nvrtcCompileProgram(prog, 1, opts);
	if (r != NVRTC_SUCCESS) {
		if (nvrtcGetProgramLogSize(prog, &size) == NVRTC_SUCCESS && size > 1) {
			*log = malloc(size);
			nvrtcGetProgramLog(prog, *log);
		}
		nvrtcDestroyProgram(&prog);
		return r;
	}
	if ((r = nvrtcGetPTXSize(prog, &size)) == NVRTC_SUCCESS) {
		*ptx = malloc(size);
		r = nvrtcGetPTX(prog, *ptx);
	}
	nvrtcDestroyProgram(&prog);
	return r;
}

static int nbody_module_load(CUcontext ctx, const char *ptx, const char *entry, CUmodule *mod, CUfunction *fn) {
	CUresult r = cuCtxSetCurrent(ctx);
	if (r != CUDA_SUCCESS) return r;
	if ((r = cuModuleLoadData(mod, ptx)) != CUDA_SUCCESS) return r;
	if ((r = cuModuleGetFunction(fn, *mod, entry)) != CUDA_SUCCESS) cuModuleUnload(*mod);
	return r;
}

static int nbody_module_unload(CUcontext ctx, CUmodule mod) {
	CUresult r = cuCtxSetCurrent(ctx);
	if (r != CUDA_SUCCESS) return r;
	return cuModuleUnload(mod);
}

static int nbody_launch(CUcontext ctx, CUfunction fn, unsigned int items, void **params) {
	const unsigned int block = 256;
	unsigned int grid = (items + block - 1) / block;
	CUresult r = cuCtxSetCurrent(ctx);
	if (r != CUDA_SUCCESS) return r;
	r = cuLaunchKernel(fn, grid, 1, 1, block, 1, 1, 0, NULL, params, NULL);
	if (r != CUDA_SUCCESS) return r;
	return cuCtxSynchronize();
}
*/
import "C"

import (
	"fmt"
	"unsafe"
)

// CUDAPlatform exposes every device visible to the CUDA driver.
type CUDAPlatform struct {
	devices []Device
	err     error
}

func NewCUDAPlatform() *CUDAPlatform {
	p := &CUDAPlatform{}
	var count C.int
	if err := cuError("cuDeviceGetCount", C.nbody_device_count(&count)); err != nil {
		p.err = err
		return p
	}
	for i := 0; i < int(count); i++ {
		var units, major, minor C.int
		var memory C.size_t
		name := make([]byte, 256)
		status := C.nbody_device_info(C.int(i), (*C.char)(unsafe.Pointer(&name[0])), C.int(len(name)),
			&units, &memory, &major, &minor)
		if err := cuError("cuDeviceGet", status); err != nil {
			p.err = err
			continue
		}
		p.devices = append(p.devices, &cudaDevice{
			ordinal: i,
			major:   int(major),
			minor:   int(minor),
			info: DeviceInfo{
				Name:              C.GoString((*C.char)(unsafe.Pointer(&name[0]))),
				Vendor:            "NVIDIA",
				Version:           fmt.Sprintf("compute %d.%d", major, minor),
				Type:              DeviceTypeGPU,
				MaxComputeUnits:   uint32(units),
				GlobalMemoryBytes: uint64(memory),
			},
		})
	}
	return p
}

func (p *CUDAPlatform) Name() string      { return "cuda" }
func (p *CUDAPlatform) Devices() []Device { return p.devices }
func (p *CUDAPlatform) Err() error        { return p.err }

func (p *CUDAPlatform) GPUAvailable() bool {
	return len(p.devices) > 0
}

func (p *CUDAPlatform) DefaultDeviceAvailable() bool {
	return len(p.devices) > 0
}

func (p *CUDAPlatform) DeviceWithMostComputeUnits() (Device, error) {
	return MostComputeUnits(p.devices, DeviceTypeGPU)
}

func (p *CUDAPlatform) DefaultDevice() (Device, error) {
	if len(p.devices) == 0 {
		return nil, fmt.Errorf("%w: no cuda device", ErrDeviceNotFound)
	}
	return p.devices[0], nil
}

func (p *CUDAPlatform) DebugInfo() string {
	return debugInfo(p.Name(), p.devices, p.err)
}

func (p *CUDAPlatform) NewContext(d Device) (Context, error) {
	dev, ok := d.(*cudaDevice)
	if !ok {
		return nil, ErrForeignDevice
	}
	var ctx C.CUcontext
	if err := cuError("cuCtxCreate", C.nbody_ctx_create(C.int(dev.ordinal), &ctx)); err != nil {
		return nil, err
	}
	return &cudaContext{ctx: ctx, device: dev}, nil
}

type cudaDevice struct {
	ordinal int
	major   int
	minor   int
	info    DeviceInfo
}

func (d *cudaDevice) Info() DeviceInfo {
	return d.info
}

type cudaContext struct {
	ctx      C.CUcontext
	device   *cudaDevice
	buffers  int
	released bool
}

func (c *cudaContext) NewCommandQueue() (CommandQueue, error) {
	if c.released {
		return nil, ErrReleased
	}
	return &cudaQueue{ctx: c}, nil
}

func (c *cudaContext) NewProgram(source, entryPoint string) (Program, error) {
	if c.released {
		return nil, ErrReleased
	}
	csrc := C.CString(source)
	defer C.free(unsafe.Pointer(csrc))

	var ptx, log *C.char
	status := C.nbody_compile(csrc, C.int(c.device.major), C.int(c.device.minor), &ptx, &log)
	defer C.free(unsafe.Pointer(ptx))
	defer C.free(unsafe.Pointer(log))
	if status != C.NVRTC_SUCCESS {
		err := &StatusError{Op: "nvrtcCompileProgram", Code: int(status)}
		if log != nil {
			return nil, fmt.Errorf("%w\n%s", err, C.GoString(log))
		}
		return nil, err
	}

	centry := C.CString(entryPoint)
	defer C.free(unsafe.Pointer(centry))
	var mod C.CUmodule
	var fn C.CUfunction
	if err := cuError("cuModuleGetFunction", C.nbody_module_load(c.ctx, ptx, centry, &mod, &fn)); err != nil {
		return nil, fmt.Errorf("%w: %q", err, entryPoint)
	}
	return &cudaProgram{ctx: c, module: mod, fn: fn}, nil
}

func (c *cudaContext) NewReadOnlyBuffer(size int) (Buffer, error) {
	return c.newBuffer(size)
}

func (c *cudaContext) NewWriteOnlyBuffer(size int) (Buffer, error) {
	return c.newBuffer(size)
}

func (c *cudaContext) newBuffer(size int) (Buffer, error) {
	if c.released {
		return nil, ErrReleased
	}
	var ptr C.CUdeviceptr
	if err := cuError("cuMemAlloc", C.nbody_alloc(c.ctx, &ptr, C.size_t(size))); err != nil {
		return nil, err
	}
	c.buffers++
	return &cudaBuffer{ctx: c, ptr: ptr, size: size}, nil
}

func (c *cudaContext) Release() error {
	if c.released {
		return nil
	}
	c.released = true
	return cuError("cuCtxDestroy", C.nbody_ctx_destroy(c.ctx))
}

type cudaBuffer struct {
	ctx      *cudaContext
	ptr      C.CUdeviceptr
	size     int
	released bool
}

func (b *cudaBuffer) Size() int {
	return b.size
}

func (b *cudaBuffer) Release() error {
	if b.released {
		return ErrReleased
	}
	b.released = true
	b.ctx.buffers--
	if b.ctx.released {
		return nil
	}
	return cuError("cuMemFree", C.nbody_free(b.ctx.ctx, b.ptr))
}

func asCUDABuffer(b Buffer) (*cudaBuffer, error) {
	cb, ok := b.(*cudaBuffer)
	if !ok {
		return nil, ErrForeignBuffer
	}
	if cb.released {
		return nil, ErrReleased
	}
	return cb, nil
}

// cudaProgram keeps every kernel parameter in its own C allocation so the
// launch parameter array never points into Go memory.
type cudaProgram struct {
	ctx      *cudaContext
	module   C.CUmodule
	fn       C.CUfunction
	slots    []unsafe.Pointer
	released bool
}

func (p *cudaProgram) slot(index int) unsafe.Pointer {
	for len(p.slots) <= index {
		p.slots = append(p.slots, nil)
	}
	if p.slots[index] == nil {
		p.slots[index] = C.malloc(8)
	}
	return p.slots[index]
}

func (p *cudaProgram) SetKernelArg(index int, value any) error {
	if p.released {
		return ErrReleased
	}
	if index < 0 {
		return fmt.Errorf("%w: index %d", ErrKernelArg, index)
	}
	switch v := value.(type) {
	case Buffer:
		b, err := asCUDABuffer(v)
		if err != nil {
			return fmt.Errorf("%w: index %d: %w", ErrKernelArg, index, err)
		}
		*(*C.CUdeviceptr)(p.slot(index)) = b.ptr
	case uint64:
		*(*C.ulonglong)(p.slot(index)) = C.ulonglong(v)
	case float32:
		*(*C.float)(p.slot(index)) = C.float(v)
	default:
		return fmt.Errorf("%w: index %d has unsupported type %T", ErrKernelArg, index, value)
	}
	return nil
}

func (p *cudaProgram) MemoryInfo() string {
	var free, total C.size_t
	if err := cuError("cuMemGetInfo", C.nbody_meminfo(p.ctx.ctx, &free, &total)); err != nil {
		return fmt.Sprintf("cuda device %s: memory info unavailable: %v", p.ctx.device.info.Name, err)
	}
	return fmt.Sprintf("cuda device %s: %s free of %s (%d buffers in this context)",
		p.ctx.device.info.Name, FormatBytes(uint64(free)), FormatBytes(uint64(total)), p.ctx.buffers)
}

func (p *cudaProgram) Release() error {
	if p.released {
		return nil
	}
	p.released = true
	for _, s := range p.slots {
		C.free(s)
	}
	p.slots = nil
	if p.ctx.released {
		return nil
	}
	return cuError("cuModuleUnload", C.nbody_module_unload(p.ctx.ctx, p.module))
}

type cudaQueue struct {
	ctx      *cudaContext
	released bool
}

func (q *cudaQueue) WriteBuffer(dst Buffer, src []float32) error {
	if q.released {
		return ErrReleased
	}
	b, err := asCUDABuffer(dst)
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
	return cuError("cuMemcpyHtoD", C.nbody_htod(q.ctx.ctx, b.ptr, unsafe.Pointer(&src[0]), C.size_t(size)))
}

func (q *cudaQueue) ReadBuffer(src Buffer, dst []float32) error {
	if q.released {
		return ErrReleased
	}
	b, err := asCUDABuffer(src)
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
	return cuError("cuMemcpyDtoH", C.nbody_dtoh(q.ctx.ctx, unsafe.Pointer(&dst[0]), b.ptr, C.size_t(size)))
}

func (q *cudaQueue) Execute(prog Program, items int) error {
	if q.released {
		return ErrReleased
	}
	p, ok := prog.(*cudaProgram)
	if !ok {
		return fmt.Errorf("compute: program not built by cuda")
	}
	if items <= 0 {
		return nil
	}
	for i, s := range p.slots {
		if s == nil {
			return fmt.Errorf("%w: index %d not set", ErrKernelArg, i)
		}
	}

	n := len(p.slots)
	params := C.malloc(C.size_t(n) * C.size_t(unsafe.Sizeof(uintptr(0))))
	defer C.free(params)
	copy(unsafe.Slice((*unsafe.Pointer)(params), n), p.slots)

	return cuError("cuLaunchKernel", C.nbody_launch(q.ctx.ctx, p.fn, C.uint(items), (*unsafe.Pointer)(params)))
}

func (q *cudaQueue) Release() error {
	q.released = true
	return nil
}

func cuError(op string, status C.int) error {
	if status == C.CUDA_SUCCESS {
		return nil
	}
	var wrapped error
	switch C.CUresult(status) {
	case C.CUDA_ERROR_OUT_OF_MEMORY:
		wrapped = ErrOutOfDeviceMemory
	case C.CUDA_ERROR_NO_DEVICE, C.CUDA_ERROR_INVALID_DEVICE:
		wrapped = ErrDeviceNotFound
	case C.CUDA_ERROR_NOT_FOUND:
		wrapped = ErrUnknownKernel
	case C.CUDA_ERROR_INVALID_VALUE:
		wrapped = ErrKernelArg
	}
	return &StatusError{Op: op, Code: int(status), Wrapped: wrapped}
}
