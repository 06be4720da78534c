package compute

import (
	"errors"
	"fmt"
)

var (
	ErrDeviceNotFound    = errors.New("compute: device not found")
	ErrForeignDevice     = errors.New("compute: device belongs to another platform")
	ErrForeignBuffer     = errors.New("compute: buffer belongs to another context")
	ErrReleased          = errors.New("compute: resource already released")
	ErrOutOfDeviceMemory = errors.New("compute: out of device memory")
	ErrTransferSize      = errors.New("compute: transfer larger than buffer")
	ErrUnknownKernel     = errors.New("compute: unknown kernel entry point")
	ErrKernelArg         = errors.New("compute: invalid kernel argument")
	ErrOpenCLNotBuilt    = errors.New("compute: opencl support requires building with -tags opencl")
	ErrCUDANotBuilt      = errors.New("compute: cuda support requires building with -tags cuda")
)

// StatusError carries a native toolkit status code.
type StatusError struct {
	Op      string
	Code    int
	Wrapped error
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("compute: %s failed with status %d", e.Op, e.Code)
}

func (e *StatusError) Unwrap() error {
	return e.Wrapped
}
