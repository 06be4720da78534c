// Package physics implements the gravitational N-body engine.
//
// Bodies are stored as a structure of arrays ([Bodies]) in float32 so the
// same slices can be copied to a compute device unchanged. The acceleration
// computation is a swappable strategy:
//
//   - [SequentialAccelerationCalculation]: unordered pairs, Newton's third law
//   - [ParallelAccelerationCalculation]: ordered pairs, one goroutine per chunk of bodies
//   - [OpenCLAccelerationCalculation]: offloaded to an OpenCL device
//   - [CUDAAccelerationCalculation]: offloaded to a CUDA device
//
// [NewAccelerationCalculation] maps an [Implementation] to a fresh strategy.
// [BodiesSystem] combines one strategy with an integrator ([Euler]) and
// advances the bodies one step at a time.
//
// # Softening
//
// The squared softening factor is added to the pairwise distance, not to
// its square:
//
//	distance := |pj - pi| + squaredSoftening
//	a_i += m_j / distance² * (pj - pi) / distance
//
// Every strategy reproduces this exactly so results agree across devices.
//
// # Example
//
//	bodies := scenario.Solar(3)
//	acc, err := physics.NewAccelerationCalculation(physics.Parallel, physics.Options{})
//	if err != nil {
//	    return err
//	}
//	defer acc.Close()
//	system, err := physics.NewBodiesSystem(bodies, bodies.Len(), acc, physics.NewEuler(0), 0.01)
//	for i := 0; i < steps; i++ {
//	    if err := system.Update(physics.DefaultTimeStep); err != nil {
//	        return err
//	    }
//	}
package physics
