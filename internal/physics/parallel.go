package physics

import "github.com/san-kum/nbody/internal/parallel"

// ParallelAccelerationCalculation gives every body a private accumulator and
// splits the bodies across goroutines. Each pair is evaluated twice, once
// per direction, so no two goroutines ever write the same cell.
type ParallelAccelerationCalculation struct {
	workers int
}

// NewParallelAccelerationCalculation caps the goroutine count at workers.
// Non-positive means one per logical CPU.
func NewParallelAccelerationCalculation(workers int) *ParallelAccelerationCalculation {
	return &ParallelAccelerationCalculation{workers: workers}
}

func (p *ParallelAccelerationCalculation) Name() string {
	return Parallel.String()
}

func (p *ParallelAccelerationCalculation) CalcAccelerations(bodies Bodies, numBodies int, accelerations []float32, squaredSofteningFactor float32) error {
	if err := checkArgs(bodies, numBodies, accelerations); err != nil {
		return err
	}
	if numBodies <= 1 {
		clear(accelerations[:3*numBodies])
		return nil
	}

	masses := bodies.Masses
	pos := bodies.Positions
	parallel.For(numBodies, parallel.Workers(numBodies, p.workers), func(start, end int) {
		for i := start; i < end; i++ {
			ax, ay, az := bodyAcceleration(masses, pos, numBodies, i, squaredSofteningFactor)
			accelerations[3*i] = ax
			accelerations[3*i+1] = ay
			accelerations[3*i+2] = az
		}
	})
	return nil
}

func (p *ParallelAccelerationCalculation) Close() error {
	return nil
}
