package physics

import "fmt"

// BodiesSystem advances a body collection one step at a time. It owns the
// acceleration buffer and borrows everything else; the strategies must
// outlive it and are never closed by it. Not safe for concurrent use.
type BodiesSystem struct {
	bodies           Bodies
	numBodies        int
	accelerations    []float32
	squaredSoftening float32

	accelerationCalculation     AccelerationCalculation
	positionVelocityCalculation PositionVelocityCalculation
}

func NewBodiesSystem(bodies Bodies, numBodies int, acc AccelerationCalculation, pv PositionVelocityCalculation, softeningFactor float32) (*BodiesSystem, error) {
	if acc == nil || pv == nil {
		return nil, fmt.Errorf("physics: bodies system needs both an acceleration and an integration strategy")
	}
	if err := bodies.Validate(numBodies); err != nil {
		return nil, err
	}
	return &BodiesSystem{
		bodies:                      bodies,
		numBodies:                   numBodies,
		accelerations:               make([]float32, 3*numBodies),
		squaredSoftening:            softeningFactor * softeningFactor,
		accelerationCalculation:     acc,
		positionVelocityCalculation: pv,
	}, nil
}

// Update computes accelerations and then integrates. A failed acceleration
// step leaves positions and velocities untouched.
func (s *BodiesSystem) Update(timeStep float32) error {
	if err := s.accelerationCalculation.CalcAccelerations(s.bodies, s.numBodies, s.accelerations, s.squaredSoftening); err != nil {
		return fmt.Errorf("%s accelerations: %w", s.accelerationCalculation.Name(), err)
	}
	s.positionVelocityCalculation.UpdatePositionAndVelocity(s.bodies, s.numBodies, s.accelerations, timeStep)
	return nil
}

func (s *BodiesSystem) Bodies() Bodies {
	return s.bodies
}

func (s *BodiesSystem) NumBodies() int {
	return s.numBodies
}

// Accelerations returns the buffer filled by the last Update. Callers must
// not modify it.
func (s *BodiesSystem) Accelerations() []float32 {
	return s.accelerations
}

func (s *BodiesSystem) SquaredSoftening() float32 {
	return s.squaredSoftening
}

func (s *BodiesSystem) Implementation() string {
	return s.accelerationCalculation.Name()
}
