package physics

import "fmt"

// Bodies holds N point masses as parallel arrays. Positions and Velocities
// interleave x, y, z per body, so body i lives at [3*i : 3*i+3].
type Bodies struct {
	Masses     []float32
	Positions  []float32
	Velocities []float32
}

func NewBodies(n int) Bodies {
	return Bodies{
		Masses:     make([]float32, n),
		Positions:  make([]float32, 3*n),
		Velocities: make([]float32, 3*n),
	}
}

func (b Bodies) Len() int {
	return len(b.Masses)
}

// Validate reports whether every array is large enough for n bodies.
func (b Bodies) Validate(n int) error {
	if n < 0 {
		return fmt.Errorf("%w: negative body count %d", ErrBodiesMismatch, n)
	}
	if len(b.Masses) < n || len(b.Positions) < 3*n || len(b.Velocities) < 3*n {
		return fmt.Errorf("%w: %d bodies need %d masses and %d coordinates, have %d/%d/%d",
			ErrBodiesMismatch, n, n, 3*n, len(b.Masses), len(b.Positions), len(b.Velocities))
	}
	return nil
}

// Clone returns a deep copy.
func (b Bodies) Clone() Bodies {
	return Bodies{
		Masses:     append([]float32(nil), b.Masses...),
		Positions:  append([]float32(nil), b.Positions...),
		Velocities: append([]float32(nil), b.Velocities...),
	}
}

func (b Bodies) Position(i int) (x, y, z float32) {
	return b.Positions[3*i], b.Positions[3*i+1], b.Positions[3*i+2]
}

func (b Bodies) Velocity(i int) (x, y, z float32) {
	return b.Velocities[3*i], b.Velocities[3*i+1], b.Velocities[3*i+2]
}
