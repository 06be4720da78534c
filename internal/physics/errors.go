package physics

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownImplementation indicates a selector outside the Implementation enum.
	ErrUnknownImplementation = errors.New("physics: unknown acceleration implementation")

	// ErrNoDevice indicates no compute device could back an offloaded strategy.
	ErrNoDevice = errors.New("physics: no usable compute device")

	// ErrBufferTooSmall indicates an acceleration buffer shorter than 3N.
	ErrBufferTooSmall = errors.New("physics: acceleration buffer too small")

	// ErrBodiesMismatch indicates body arrays shorter than the body count.
	ErrBodiesMismatch = errors.New("physics: body arrays do not match body count")

	// ErrClosed indicates a call on a strategy after Close.
	ErrClosed = errors.New("physics: acceleration calculation closed")
)

// DeviceError is returned when device selection fails at construction.
// Devices holds the listing of every platform that was inspected.
type DeviceError struct {
	Strategy string
	Devices  string
	Err      error
}

func (e *DeviceError) Error() string {
	msg := fmt.Sprintf("physics: no usable compute device for %s", e.Strategy)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	if e.Devices != "" {
		msg += "\navailable devices:\n" + e.Devices
	}
	return msg
}

func (e *DeviceError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrNoDevice}
	}
	return []error{ErrNoDevice, e.Err}
}

// TransferError wraps a failed host/device copy or kernel dispatch together
// with the device memory state captured when it failed.
type TransferError struct {
	Op         string
	MemoryInfo string
	Err        error
}

func (e *TransferError) Error() string {
	return fmt.Sprintf("physics: %s failed: %v [%s]", e.Op, e.Err, e.MemoryInfo)
}

func (e *TransferError) Unwrap() error {
	return e.Err
}
