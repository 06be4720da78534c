package sim

import (
	"context"
	"log/slog"
	"math"
	"time"

	"github.com/san-kum/nbody/internal/metrics"
	"github.com/san-kum/nbody/internal/physics"
)

// Runner drives a BodiesSystem for a fixed number of steps.
type Runner struct {
	system    *physics.BodiesSystem
	metrics   []Metric
	observers []Observer
	logger    *slog.Logger
}

func New(system *physics.BodiesSystem, logger *slog.Logger) *Runner {
	if logger == nil {
		logger = slog.Default()
	}
	return &Runner{
		system:    system,
		metrics:   make([]Metric, 0),
		observers: make([]Observer, 0),
		logger:    logger.With("implementation", system.Implementation(), "bodies", system.NumBodies()),
	}
}

func (r *Runner) AddMetric(m Metric)     { r.metrics = append(r.metrics, m) }
func (r *Runner) AddObserver(o Observer) { r.observers = append(r.observers, o) }

func (r *Runner) System() *physics.BodiesSystem {
	return r.system
}

// Run returns the partial result alongside any error, including context
// cancellation, so callers can keep what was computed.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Result, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	sys := r.system
	n := sys.NumBodies()
	impl := sys.Implementation()
	squaredSoftening := float64(sys.SquaredSoftening())

	result := &Result{
		Implementation: impl,
		NumBodies:      n,
		StepDurations:  make([]time.Duration, 0, cfg.Steps),
		Metrics:        make(map[string]float64),
	}
	if cfg.SnapshotEvery > 0 {
		result.Snapshots = make([]Snapshot, 0, cfg.Steps/cfg.SnapshotEvery+1)
		result.Snapshots = append(result.Snapshots, Snapshot{Step: 0, Time: 0, Bodies: sys.Bodies().Clone()})
	}

	for _, m := range r.metrics {
		m.Reset()
		m.Observe(sys.Bodies(), n, 0)
	}
	if cfg.TrackEnergy {
		result.InitialEnergy = metrics.TotalEnergy(sys.Bodies(), n, squaredSoftening)
	}

	metrics.Bodies.WithLabelValues(impl).Set(float64(n))
	r.logger.Info("run started", "steps", cfg.Steps, "dt", cfg.Dt)

	start := time.Now()
	t := 0.0
	defer func() {
		result.Elapsed = time.Since(start)
		for _, m := range r.metrics {
			result.Metrics[m.Name()] = m.Value()
		}
	}()

	for i := 0; i < cfg.Steps; i++ {
		select {
		case <-ctx.Done():
			r.logger.Warn("run canceled", "step", i)
			return result, ctx.Err()
		default:
		}

		stepStart := time.Now()
		err := sys.Update(cfg.Dt)
		d := time.Since(stepStart)
		metrics.ObserveStep(impl, d, err)
		if err != nil {
			r.logger.Error("step failed", "step", i, "error", err)
			return result, &SimulationError{Step: i, Time: t, Wrapped: err}
		}

		t += float64(cfg.Dt)
		result.StepsTaken++
		result.StepDurations = append(result.StepDurations, d)

		if cfg.ValidateState && !validState(sys.Bodies(), n) {
			r.logger.Error("invalid state", "step", i+1)
			return result, &SimulationError{Step: i + 1, Time: t, Wrapped: ErrInvalidState}
		}

		for _, m := range r.metrics {
			m.Observe(sys.Bodies(), n, t)
		}
		for _, obs := range r.observers {
			obs.OnStep(i+1, t, sys.Bodies(), n)
		}

		if cfg.SnapshotEvery > 0 && result.StepsTaken%cfg.SnapshotEvery == 0 {
			result.Snapshots = append(result.Snapshots, Snapshot{
				Step:   result.StepsTaken,
				Time:   t,
				Bodies: sys.Bodies().Clone(),
			})
		}
	}

	if cfg.TrackEnergy {
		result.FinalEnergy = metrics.TotalEnergy(sys.Bodies(), n, squaredSoftening)
		if result.InitialEnergy != 0 {
			result.EnergyDrift = math.Abs(result.FinalEnergy-result.InitialEnergy) / math.Abs(result.InitialEnergy)
		}
		metrics.EnergyDriftGauge.WithLabelValues(impl).Set(result.EnergyDrift)
	}

	r.logger.Info("run finished", "steps", result.StepsTaken, "elapsed", time.Since(start),
		"energy_drift", result.EnergyDrift)
	return result, nil
}
