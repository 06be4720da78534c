package physics

// SequentialAccelerationCalculation visits each unordered pair once and
// applies the force to both bodies with opposite signs. Single goroutine only.
type SequentialAccelerationCalculation struct{}

func NewSequentialAccelerationCalculation() *SequentialAccelerationCalculation {
	return &SequentialAccelerationCalculation{}
}

func (s *SequentialAccelerationCalculation) Name() string {
	return Sequential.String()
}

func (s *SequentialAccelerationCalculation) CalcAccelerations(bodies Bodies, numBodies int, accelerations []float32, squaredSofteningFactor float32) error {
	if err := checkArgs(bodies, numBodies, accelerations); err != nil {
		return err
	}

	masses := bodies.Masses
	pos := bodies.Positions
	acc := accelerations[:3*numBodies]
	clear(acc)

	for i := 0; i < numBodies; i++ {
		xi, yi, zi := pos[3*i], pos[3*i+1], pos[3*i+2]

		for j := i + 1; j < numBodies; j++ {
			dx := pos[3*j] - xi
			dy := pos[3*j+1] - yi
			dz := pos[3*j+2] - zi

			dist := distance(dx, dy, dz) + squaredSofteningFactor
			d2 := float32(dist * dist)
			nx, ny, nz := dx/dist, dy/dist, dz/dist

			ti := masses[j] / d2
			acc[3*i] += float32(ti * nx)
			acc[3*i+1] += float32(ti * ny)
			acc[3*i+2] += float32(ti * nz)

			tj := masses[i] / d2
			acc[3*j] -= float32(tj * nx)
			acc[3*j+1] -= float32(tj * ny)
			acc[3*j+2] -= float32(tj * nz)
		}

		// row i is complete: every j < i already pushed its share
		acc[3*i] = scaleByG(acc[3*i])
		acc[3*i+1] = scaleByG(acc[3*i+1])
		acc[3*i+2] = scaleByG(acc[3*i+2])
	}
	return nil
}

func (s *SequentialAccelerationCalculation) Close() error {
	return nil
}
