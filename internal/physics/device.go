package physics

import (
	"errors"
	"log/slog"

	"github.com/san-kum/nbody/internal/compute"
)

// deviceAccelerationCalculation runs the acceleration kernel on a compute
// device. Context, queue and program are built once at construction;
// buffers are allocated and bound on the first call with more than one body
// and kept until the body count changes.
type deviceAccelerationCalculation struct {
	name     string
	logger   *slog.Logger
	platform compute.Platform
	device   compute.Device

	ctx     compute.Context
	queue   compute.CommandQueue
	program compute.Program

	allocated     bool
	numBodies     int
	softening     float32
	masses        compute.Buffer
	positions     compute.Buffer
	accelerations compute.Buffer

	closed bool
}

type deviceConfig struct {
	name      string
	primary   compute.Platform
	host      compute.Platform
	allowHost bool
	source    string
	logger    *slog.Logger
}

// selectDevice prefers the GPU with the most compute units, then the
// platform default device, then the host device when allowed.
func selectDevice(cfg deviceConfig) (compute.Platform, compute.Device, error) {
	var cause error
	if cfg.primary != nil {
		if cfg.primary.GPUAvailable() {
			if d, err := cfg.primary.DeviceWithMostComputeUnits(); err == nil {
				return cfg.primary, d, nil
			}
		}
		if cfg.primary.DefaultDeviceAvailable() {
			if d, err := cfg.primary.DefaultDevice(); err == nil {
				return cfg.primary, d, nil
			}
		}
		cause = cfg.primary.Err()
	}
	if cfg.allowHost && cfg.host != nil && cfg.host.DefaultDeviceAvailable() {
		if d, err := cfg.host.DefaultDevice(); err == nil {
			return cfg.host, d, nil
		}
	}

	var listed []compute.Platform
	if cfg.primary != nil {
		listed = append(listed, cfg.primary)
	}
	if cfg.host != nil {
		listed = append(listed, cfg.host)
	}
	return nil, nil, &DeviceError{
		Strategy: cfg.name,
		Devices:  compute.Describe(listed...),
		Err:      cause,
	}
}

func newDeviceAccelerationCalculation(cfg deviceConfig) (*deviceAccelerationCalculation, error) {
	platform, device, err := selectDevice(cfg)
	if err != nil {
		cfg.logger.Error("device selection failed", "strategy", cfg.name, "error", err)
		return nil, err
	}

	info := device.Info()
	log := cfg.logger.With("strategy", cfg.name, "platform", platform.Name(), "device", info.Name)
	if platform != cfg.primary {
		log.Warn("no device on primary platform, using host device")
	}
	log.Info("selected compute device", "type", info.Type, "compute_units", info.MaxComputeUnits,
		"memory", compute.FormatBytes(info.GlobalMemoryBytes))

	d := &deviceAccelerationCalculation{
		name:     cfg.name,
		logger:   log,
		platform: platform,
		device:   device,
	}
	if d.ctx, err = platform.NewContext(device); err != nil {
		return nil, err
	}
	if d.queue, err = d.ctx.NewCommandQueue(); err != nil {
		d.Close()
		return nil, err
	}
	if d.program, err = d.ctx.NewProgram(cfg.source, KernelEntryPoint); err != nil {
		d.Close()
		return nil, err
	}
	return d, nil
}

func (d *deviceAccelerationCalculation) Name() string {
	return d.name
}

func (d *deviceAccelerationCalculation) Device() compute.DeviceInfo {
	return d.device.Info()
}

func (d *deviceAccelerationCalculation) CalcAccelerations(bodies Bodies, numBodies int, accelerations []float32, squaredSofteningFactor float32) error {
	if d.closed {
		return ErrClosed
	}
	if err := checkArgs(bodies, numBodies, accelerations); err != nil {
		return err
	}
	if numBodies <= 1 {
		clear(accelerations[:3*numBodies])
		return nil
	}

	if err := d.ensureBuffers(numBodies, squaredSofteningFactor); err != nil {
		return d.fail("allocate device buffers", err)
	}
	if err := d.queue.WriteBuffer(d.masses, bodies.Masses[:numBodies]); err != nil {
		return d.fail("write masses", err)
	}
	if err := d.queue.WriteBuffer(d.positions, bodies.Positions[:3*numBodies]); err != nil {
		return d.fail("write positions", err)
	}
	if err := d.queue.Execute(d.program, numBodies); err != nil {
		return d.fail("execute kernel", err)
	}
	if err := d.queue.ReadBuffer(d.accelerations, accelerations[:3*numBodies]); err != nil {
		return d.fail("read accelerations", err)
	}
	return nil
}

func (d *deviceAccelerationCalculation) ensureBuffers(numBodies int, softening float32) error {
	if d.allocated && d.numBodies == numBodies {
		if softening != d.softening {
			if err := d.program.SetKernelArg(4, softening); err != nil {
				return err
			}
			d.softening = softening
		}
		return nil
	}
	if d.allocated {
		d.logger.Info("body count changed, reallocating device buffers", "from", d.numBodies, "to", numBodies)
		if err := d.releaseBuffers(); err != nil {
			return err
		}
	}

	var err error
	if d.masses, err = d.ctx.NewReadOnlyBuffer(4 * numBodies); err != nil {
		d.releaseBuffers()
		return err
	}
	if d.positions, err = d.ctx.NewReadOnlyBuffer(4 * 3 * numBodies); err != nil {
		d.releaseBuffers()
		return err
	}
	if d.accelerations, err = d.ctx.NewWriteOnlyBuffer(4 * 3 * numBodies); err != nil {
		d.releaseBuffers()
		return err
	}

	args := []any{d.masses, d.positions, d.accelerations, uint64(numBodies), softening}
	for i, arg := range args {
		if err := d.program.SetKernelArg(i, arg); err != nil {
			d.releaseBuffers()
			return err
		}
	}

	d.allocated = true
	d.numBodies = numBodies
	d.softening = softening
	return nil
}

func (d *deviceAccelerationCalculation) releaseBuffers() error {
	var errs []error
	for _, b := range []*compute.Buffer{&d.masses, &d.positions, &d.accelerations} {
		if *b == nil {
			continue
		}
		if err := (*b).Release(); err != nil {
			errs = append(errs, err)
		}
		*b = nil
	}
	d.allocated = false
	d.numBodies = 0
	return errors.Join(errs...)
}

func (d *deviceAccelerationCalculation) fail(op string, err error) error {
	memoryInfo := d.program.MemoryInfo()
	d.logger.Error("device operation failed", "op", op, "memory", memoryInfo, "error", err)
	return &TransferError{Op: op, MemoryInfo: memoryInfo, Err: err}
}

// Close releases every device resource. It is safe after failed calls and
// on a partially constructed value.
func (d *deviceAccelerationCalculation) Close() error {
	if d.closed {
		return nil
	}
	d.closed = true

	errs := []error{d.releaseBuffers()}
	if d.program != nil {
		errs = append(errs, d.program.Release())
	}
	if d.queue != nil {
		errs = append(errs, d.queue.Release())
	}
	if d.ctx != nil {
		errs = append(errs, d.ctx.Release())
	}
	return errors.Join(errs...)
}
