package physics

import (
	"fmt"
	"math"
)

// GravitationalConstant in m³ kg⁻¹ s⁻².
const GravitationalConstant = 6.6743e-11

// AccelerationCalculation computes the net gravitational acceleration of
// every body. CalcAccelerations overwrites accelerations[:3*numBodies] and
// leaves bodies untouched. Implementations are not safe for concurrent use.
type AccelerationCalculation interface {
	Name() string
	CalcAccelerations(bodies Bodies, numBodies int, accelerations []float32, squaredSofteningFactor float32) error
	Close() error
}

func checkArgs(bodies Bodies, numBodies int, accelerations []float32) error {
	if err := bodies.Validate(numBodies); err != nil {
		return err
	}
	if len(accelerations) < 3*numBodies {
		return fmt.Errorf("%w: need %d, have %d", ErrBufferTooSmall, 3*numBodies, len(accelerations))
	}
	return nil
}

func distance(dx, dy, dz float32) float32 {
	return float32(math.Sqrt(float64(float32(dx*dx) + float32(dy*dy) + float32(dz*dz))))
}

// scaleByG multiplies in float64 and narrows back.
func scaleByG(a float32) float32 {
	return float32(float64(a) * GravitationalConstant)
}

// bodyAcceleration sums the pull of every other body on body i.
func bodyAcceleration(masses, positions []float32, numBodies, i int, squaredSoftening float32) (ax, ay, az float32) {
	xi, yi, zi := positions[3*i], positions[3*i+1], positions[3*i+2]
	for j := 0; j < numBodies; j++ {
		if j == i {
			continue
		}
		dx := positions[3*j] - xi
		dy := positions[3*j+1] - yi
		dz := positions[3*j+2] - zi

		dist := distance(dx, dy, dz) + squaredSoftening
		t := masses[j] / float32(dist*dist)

		ax += float32(t * (dx / dist))
		ay += float32(t * (dy / dist))
		az += float32(t * (dz / dist))
	}
	return scaleByG(ax), scaleByG(ay), scaleByG(az)
}
