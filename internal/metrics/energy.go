package metrics

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/san-kum/nbody/internal/physics"
)

func vec(s []float32, i int) mgl64.Vec3 {
	return mgl64.Vec3{float64(s[3*i]), float64(s[3*i+1]), float64(s[3*i+2])}
}

func KineticEnergy(b physics.Bodies, n int) float64 {
	var ke float64
	for i := 0; i < n; i++ {
		v := vec(b.Velocities, i)
		ke += 0.5 * float64(b.Masses[i]) * v.Dot(v)
	}
	return ke
}

// PotentialEnergy uses the same softened distance as the acceleration
// kernels: |pj - pi| + squaredSoftening.
func PotentialEnergy(b physics.Bodies, n int, squaredSoftening float64) float64 {
	var pe float64
	for i := 0; i < n; i++ {
		pi := vec(b.Positions, i)
		for j := i + 1; j < n; j++ {
			r := vec(b.Positions, j).Sub(pi).Len() + squaredSoftening
			if r == 0 {
				continue
			}
			pe -= float64(b.Masses[i]) * float64(b.Masses[j]) / r
		}
	}
	return physics.GravitationalConstant * pe
}

func TotalEnergy(b physics.Bodies, n int, squaredSoftening float64) float64 {
	return KineticEnergy(b, n) + PotentialEnergy(b, n, squaredSoftening)
}

func Momentum(b physics.Bodies, n int) mgl64.Vec3 {
	var p mgl64.Vec3
	for i := 0; i < n; i++ {
		p = p.Add(vec(b.Velocities, i).Mul(float64(b.Masses[i])))
	}
	return p
}

func CenterOfMass(b physics.Bodies, n int) mgl64.Vec3 {
	var com mgl64.Vec3
	var total float64
	for i := 0; i < n; i++ {
		m := float64(b.Masses[i])
		com = com.Add(vec(b.Positions, i).Mul(m))
		total += m
	}
	if total == 0 {
		return mgl64.Vec3{}
	}
	return com.Mul(1 / total)
}

// EnergyDrift tracks the largest relative deviation from the first
// observed total energy.
type EnergyDrift struct {
	name             string
	squaredSoftening float64
	initialEnergy    float64
	currentEnergy    float64
	maxDrift         float64
	samples          int
}

func NewEnergyDrift(squaredSoftening float64) *EnergyDrift {
	return &EnergyDrift{
		name:             "energy_drift",
		squaredSoftening: squaredSoftening,
	}
}

func (e *EnergyDrift) Name() string { return e.name }

func (e *EnergyDrift) Observe(b physics.Bodies, n int, t float64) {
	energy := TotalEnergy(b, n, e.squaredSoftening)
	if e.samples == 0 {
		e.initialEnergy = energy
	}
	e.currentEnergy = energy
	e.samples++

	if e.initialEnergy != 0 {
		drift := math.Abs(energy-e.initialEnergy) / math.Abs(e.initialEnergy)
		e.maxDrift = math.Max(e.maxDrift, drift)
	}
}

func (e *EnergyDrift) Value() float64 {
	return e.maxDrift
}

func (e *EnergyDrift) Current() float64 {
	return e.currentEnergy
}

func (e *EnergyDrift) Reset() {
	e.initialEnergy = 0
	e.currentEnergy = 0
	e.maxDrift = 0
	e.samples = 0
}

// MomentumDrift is the largest change of total linear momentum, relative
// to the sum of |m·v| at the first observation.
type MomentumDrift struct {
	initial  mgl64.Vec3
	scale    float64
	maxDrift float64
	samples  int
}

func NewMomentumDrift() *MomentumDrift {
	return &MomentumDrift{}
}

func (m *MomentumDrift) Name() string { return "momentum_drift" }

func (m *MomentumDrift) Observe(b physics.Bodies, n int, t float64) {
	p := Momentum(b, n)
	if m.samples == 0 {
		m.initial = p
		for i := 0; i < n; i++ {
			m.scale += float64(b.Masses[i]) * vec(b.Velocities, i).Len()
		}
	}
	m.samples++

	if m.scale > 0 {
		m.maxDrift = math.Max(m.maxDrift, p.Sub(m.initial).Len()/m.scale)
	}
}

func (m *MomentumDrift) Value() float64 {
	return m.maxDrift
}

func (m *MomentumDrift) Reset() {
	*m = MomentumDrift{}
}
