package sim

import (
	"fmt"
	"math"
	"time"

	"github.com/san-kum/nbody/internal/physics"
)

type Metric interface {
	Name() string
	Observe(b physics.Bodies, n int, t float64)
	Value() float64
	Reset()
}

type Observer interface {
	OnStep(step int, t float64, b physics.Bodies, n int)
}

type ObserverFunc func(step int, t float64, b physics.Bodies, n int)

func (f ObserverFunc) OnStep(step int, t float64, b physics.Bodies, n int) {
	f(step, t, b, n)
}

type Config struct {
	Dt    float32
	Steps int
	// SnapshotEvery copies the bodies every k steps; 0 disables snapshots.
	SnapshotEvery int
	ValidateState bool
	// TrackEnergy computes total energy before and after the run. O(N²).
	TrackEnergy bool
}

func (c Config) Validate() error {
	if c.Dt <= 0 || math.IsNaN(float64(c.Dt)) {
		return fmt.Errorf("%w: dt must be positive, got %g", ErrInvalidConfig, c.Dt)
	}
	if c.Steps <= 0 {
		return fmt.Errorf("%w: steps must be positive, got %d", ErrInvalidConfig, c.Steps)
	}
	if c.SnapshotEvery < 0 {
		return fmt.Errorf("%w: snapshot interval must not be negative, got %d", ErrInvalidConfig, c.SnapshotEvery)
	}
	return nil
}

type Snapshot struct {
	Step   int
	Time   float64
	Bodies physics.Bodies
}

type Result struct {
	Implementation string
	NumBodies      int
	Snapshots      []Snapshot
	StepsTaken     int
	StepDurations  []time.Duration
	Elapsed        time.Duration
	InitialEnergy  float64
	FinalEnergy    float64
	EnergyDrift    float64
	Metrics        map[string]float64
}

// MeanStep is the average wall time of a completed step.
func (r *Result) MeanStep() time.Duration {
	if len(r.StepDurations) == 0 {
		return 0
	}
	var total time.Duration
	for _, d := range r.StepDurations {
		total += d
	}
	return total / time.Duration(len(r.StepDurations))
}

func validState(b physics.Bodies, n int) bool {
	for _, s := range [][]float32{b.Positions[:3*n], b.Velocities[:3*n]} {
		for _, v := range s {
			f := float64(v)
			if math.IsNaN(f) || math.IsInf(f, 0) {
				return false
			}
		}
	}
	return true
}
