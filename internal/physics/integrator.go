package physics

import "github.com/san-kum/nbody/internal/parallel"

// DefaultTimeStep is used by callers that do not pick their own.
const DefaultTimeStep float32 = 0.1

// PositionVelocityCalculation advances velocities and positions in place
// from precomputed accelerations.
type PositionVelocityCalculation interface {
	UpdatePositionAndVelocity(bodies Bodies, numBodies int, accelerations []float32, timeStep float32)
}

// Euler is the semi-implicit Euler step: the updated velocity feeds the
// position update of the same step.
type Euler struct {
	workers int
}

func NewEuler(workers int) *Euler {
	return &Euler{workers: workers}
}

func (e *Euler) UpdatePositionAndVelocity(bodies Bodies, numBodies int, accelerations []float32, timeStep float32) {
	if numBodies <= 0 {
		return
	}
	vel := bodies.Velocities
	pos := bodies.Positions
	parallel.For(numBodies, parallel.Workers(numBodies, e.workers), func(start, end int) {
		for k := 3 * start; k < 3*end; k++ {
			vel[k] += float32(accelerations[k] * timeStep)
			pos[k] += float32(vel[k] * timeStep)
		}
	})
}
