package compute

import (
	"fmt"
	"strings"
)

type DeviceType string

const (
	DeviceTypeGPU         DeviceType = "GPU"
	DeviceTypeCPU         DeviceType = "CPU"
	DeviceTypeAccelerator DeviceType = "Accelerator"
	DeviceTypeDefault     DeviceType = "Default"
)

type DeviceInfo struct {
	Name              string
	Vendor            string
	Version           string
	Type              DeviceType
	MaxComputeUnits   uint32
	GlobalMemoryBytes uint64
}

type Device interface {
	Info() DeviceInfo
}

type Platform interface {
	Name() string
	Devices() []Device
	GPUAvailable() bool
	DefaultDeviceAvailable() bool
	DeviceWithMostComputeUnits() (Device, error)
	DefaultDevice() (Device, error)
	NewContext(d Device) (Context, error)
	// DebugInfo lists the platform's devices in human readable form.
	DebugInfo() string
	// Err reports why enumeration found no devices, nil otherwise.
	Err() error
}

type Context interface {
	NewCommandQueue() (CommandQueue, error)
	NewProgram(source, entryPoint string) (Program, error)
	NewReadOnlyBuffer(size int) (Buffer, error)
	NewWriteOnlyBuffer(size int) (Buffer, error)
	Release() error
}

// Buffer sizes are in bytes.
type Buffer interface {
	Size() int
	Release() error
}

// Program is a compiled kernel. SetKernelArg accepts a Buffer, uint64 or
// float32 value; arguments stay bound across dispatches.
type Program interface {
	SetKernelArg(index int, value any) error
	MemoryInfo() string
	Release() error
}

// CommandQueue is in-order. Every method blocks until the device is done.
type CommandQueue interface {
	WriteBuffer(dst Buffer, src []float32) error
	ReadBuffer(src Buffer, dst []float32) error
	Execute(p Program, items int) error
	Release() error
}

// MostComputeUnits picks the device of the given type with the most
// parallel compute units. An empty type matches every device.
func MostComputeUnits(devices []Device, typ DeviceType) (Device, error) {
	var best Device
	var bestUnits uint32
	for _, d := range devices {
		info := d.Info()
		if typ != "" && info.Type != typ {
			continue
		}
		if best == nil || info.MaxComputeUnits > bestUnits {
			best = d
			bestUnits = info.MaxComputeUnits
		}
	}
	if best == nil {
		return nil, fmt.Errorf("%w: no %s device", ErrDeviceNotFound, strings.ToLower(string(typ)))
	}
	return best, nil
}

// HasType reports whether any device is of the given type.
func HasType(devices []Device, typ DeviceType) bool {
	for _, d := range devices {
		if d.Info().Type == typ {
			return true
		}
	}
	return false
}

// Describe concatenates DebugInfo of every non-nil platform.
func Describe(platforms ...Platform) string {
	var b strings.Builder
	for _, p := range platforms {
		if p == nil {
			continue
		}
		b.WriteString(p.DebugInfo())
	}
	return b.String()
}

func debugInfo(name string, devices []Device, err error) string {
	var b strings.Builder
	fmt.Fprintf(&b, "platform %s: %d device(s)\n", name, len(devices))
	if err != nil {
		fmt.Fprintf(&b, "  unavailable: %v\n", err)
	}
	for i, d := range devices {
		info := d.Info()
		fmt.Fprintf(&b, "  [%d] %s (%s, %s) type=%s compute_units=%d memory=%s\n",
			i, info.Name, info.Vendor, info.Version, info.Type, info.MaxComputeUnits, FormatBytes(info.GlobalMemoryBytes))
	}
	return b.String()
}

func FormatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
