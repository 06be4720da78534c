package sim

import (
	"context"
	"fmt"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/san-kum/nbody/internal/physics"
)

// Builder creates an independent system for one ensemble member. Each
// member must own its own bodies and acceleration strategy.
type Builder func(seed uint64) (*physics.BodiesSystem, func() error, error)

// Ensemble runs the same configuration over consecutive seeds concurrently.
type Ensemble struct {
	build     Builder
	numRuns   int
	seedStart uint64
	logger    *slog.Logger
}

func NewEnsemble(build Builder, numRuns int, seedStart uint64, logger *slog.Logger) *Ensemble {
	if logger == nil {
		logger = slog.Default()
	}
	return &Ensemble{build: build, numRuns: numRuns, seedStart: seedStart, logger: logger}
}

// Run stops every member as soon as one fails.
func (e *Ensemble) Run(ctx context.Context, cfg Config) ([]*Result, error) {
	if e.numRuns <= 0 {
		return nil, fmt.Errorf("%w: ensemble needs at least one run, got %d", ErrInvalidConfig, e.numRuns)
	}
	results := make([]*Result, e.numRuns)

	g, ctx := errgroup.WithContext(ctx)
	for i := 0; i < e.numRuns; i++ {
		g.Go(func() error {
			seed := e.seedStart + uint64(i)
			system, release, err := e.build(seed)
			if err != nil {
				return fmt.Errorf("ensemble member %d: %w", i, err)
			}
			if release != nil {
				defer release()
			}

			res, err := New(system, e.logger.With("seed", seed)).Run(ctx, cfg)
			results[i] = res
			if err != nil {
				return fmt.Errorf("ensemble member %d: %w", i, err)
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return results, err
	}
	return results, nil
}
