// Package compute is the device collaborator used by the offloaded
// acceleration strategies.
//
// It exposes a small toolkit shaped after OpenCL:
//
//   - [Platform]: device enumeration and selection
//   - [Context]: buffers and compiled programs bound to one device
//   - [CommandQueue]: blocking host/device copies and kernel dispatch
//   - [Program]: a compiled kernel entry point with positional arguments
//   - [Buffer]: a typed device allocation
//
// Three platforms are provided:
//
//   - [HostPlatform]: always available, runs Go kernels on the host CPU
//   - OpenCL: built with -tags opencl (cgo, links libOpenCL)
//   - CUDA: built with -tags cuda (cgo, links the driver API and NVRTC)
//
// Without the build tags the OpenCL and CUDA platforms report no devices and
// explain why through [Platform.Err].
//
// # Example
//
//	p := compute.NewOpenCLPlatform()
//	dev, err := p.DeviceWithMostComputeUnits()
//	ctx, err := p.NewContext(dev)
//	queue, err := ctx.NewCommandQueue()
//	prog, err := ctx.NewProgram(source, "calcAccelerations")
//
// # Thread Safety
//
// Contexts, queues and programs are single-writer: drive each one from one
// goroutine at a time.
package compute
