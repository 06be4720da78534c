package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sort"
	"text/tabwriter"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/nbody/internal/config"
	"github.com/san-kum/nbody/internal/logger"
	"github.com/san-kum/nbody/internal/metrics"
	"github.com/san-kum/nbody/internal/physics"
	"github.com/san-kum/nbody/internal/sim"
	"github.com/san-kum/nbody/internal/storage"
	"github.com/san-kum/nbody/internal/viz"
)

const stabilityThreshold = 1e8

func newRunCmd() *cobra.Command {
	var (
		flags  simFlags
		noSave bool
		runs   int
		resume string
	)
	cmd := &cobra.Command{
		Use:   "run",
		Short: "run a simulation and store its snapshots",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, &flags, envLookup)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
			defer stop()

			if runs > 1 {
				if resume != "" {
					return fmt.Errorf("--resume and --runs cannot be combined")
				}
				return runEnsemble(ctx, cfg, runs)
			}
			return runSimulation(ctx, cfg, !noSave, resume)
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().BoolVar(&noSave, "no-save", false, "do not write the run to the store")
	cmd.Flags().IntVar(&runs, "runs", 1, "run an ensemble over consecutive seeds")
	cmd.Flags().StringVar(&resume, "resume", "", "continue from the final state of a stored run")
	return cmd
}

func simConfig(cfg *config.Config) sim.Config {
	return sim.Config{
		Dt:            cfg.Dt,
		Steps:         cfg.Steps,
		SnapshotEvery: cfg.SnapshotEvery,
		ValidateState: cfg.ValidateState,
		TrackEnergy:   cfg.TrackEnergy,
	}
}

func runSimulation(ctx context.Context, cfg *config.Config, save bool, resume string) error {
	log := logger.WithComponent("run")

	var (
		system *physics.BodiesSystem
		calc   physics.AccelerationCalculation
		err    error
	)
	if resume != "" {
		bodies, lerr := storage.New(cfg.OutputDir).LastBodies(resume)
		if lerr != nil {
			return lerr
		}
		log.Info("resuming run", "from", resume, "bodies", bodies.Len())
		system, calc, err = buildSystemFrom(cfg, bodies, logger.WithComponent("physics"))
	} else {
		system, calc, err = buildSystem(cfg, logger.WithComponent("physics"))
	}
	if err != nil {
		return err
	}
	defer calc.Close()

	runner := sim.New(system, log)
	if cfg.TrackEnergy {
		runner.AddMetric(metrics.NewEnergyDrift(float64(system.SquaredSoftening())))
	}
	runner.AddMetric(metrics.NewMomentumDrift())
	runner.AddMetric(metrics.NewStability(stabilityThreshold))

	fmt.Printf("running %s: %d bodies, %d steps of %gs on %s\n",
		cfg.Scenario, system.NumBodies(), cfg.Steps, cfg.Dt, system.Implementation())

	result, runErr := runner.Run(ctx, simConfig(cfg))
	if result == nil {
		return runErr
	}
	if len(result.Snapshots) == 0 || result.Snapshots[len(result.Snapshots)-1].Step != result.StepsTaken {
		result.Snapshots = append(result.Snapshots, sim.Snapshot{
			Step:   result.StepsTaken,
			Time:   float64(result.StepsTaken) * float64(cfg.Dt),
			Bodies: system.Bodies().Clone(),
		})
	}

	printResult(result)

	if save {
		st := storage.New(cfg.OutputDir)
		if err := st.Init(); err != nil {
			return err
		}
		meta := storage.MetadataFromResult(storage.RunMetadata{
			Scenario:  cfg.Scenario,
			Seed:      cfg.Seed,
			Dt:        float64(cfg.Dt),
			Softening: float64(cfg.Softening),
		}, result)
		runID, err := st.Save(meta, result.Snapshots)
		if err != nil {
			return err
		}
		logger.WithRun("run", runID).Info("run stored", "dir", cfg.OutputDir, "snapshots", len(result.Snapshots))
		fmt.Printf("run id: %s\n", runID)
	}
	return runErr
}

func printResult(result *sim.Result) {
	fmt.Printf("completed %d steps in %v (mean step %v)\n",
		result.StepsTaken, result.Elapsed.Round(time.Microsecond), result.MeanStep().Round(time.Microsecond))
	if result.InitialEnergy != 0 {
		fmt.Printf("energy: %.6g -> %.6g (drift %.3e)\n", result.InitialEnergy, result.FinalEnergy, result.EnergyDrift)
	}

	if len(result.StepDurations) > 1 {
		micros := make([]float64, len(result.StepDurations))
		for i, d := range result.StepDurations {
			micros[i] = float64(d) / float64(time.Microsecond)
		}
		fmt.Println()
		fmt.Println(asciigraph.Plot(micros,
			asciigraph.Height(8),
			asciigraph.Width(60),
			asciigraph.Caption("step time (µs)"),
		))
	}

	if len(result.Metrics) > 0 {
		fmt.Println("\nmetrics:")
		names := make([]string, 0, len(result.Metrics))
		for name := range result.Metrics {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			fmt.Printf("  %s: %.6g\n", name, result.Metrics[name])
		}
	}
}

func runEnsemble(ctx context.Context, cfg *config.Config, runs int) error {
	build := func(seed uint64) (*physics.BodiesSystem, func() error, error) {
		member := *cfg
		member.Seed = seed
		system, calc, err := buildSystem(&member, logger.WithComponent("physics"))
		if err != nil {
			return nil, nil, err
		}
		return system, calc.Close, nil
	}

	results, err := sim.NewEnsemble(build, runs, cfg.Seed, logger.WithComponent("ensemble")).Run(ctx, simConfig(cfg))

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SEED\tSTEPS\tELAPSED\tMEAN STEP\tENERGY DRIFT")
	for i, r := range results {
		if r == nil {
			fmt.Fprintf(w, "%d\t-\t-\t-\t-\n", cfg.Seed+uint64(i))
			continue
		}
		fmt.Fprintf(w, "%d\t%d\t%v\t%v\t%.3e\n", cfg.Seed+uint64(i), r.StepsTaken,
			r.Elapsed.Round(time.Microsecond), r.MeanStep().Round(time.Microsecond), r.EnergyDrift)
	}
	if ferr := w.Flush(); ferr != nil {
		return ferr
	}
	return err
}

func newLiveCmd() *cobra.Command {
	var (
		flags         simFlags
		stepsPerFrame int
		theme         string
	)
	cmd := &cobra.Command{
		Use:   "live",
		Short: "watch a simulation in the terminal",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := resolveConfig(cmd, &flags, envLookup)
			if err != nil {
				return err
			}
			// the alt screen owns stdout, keep logs quiet unless asked
			if !cmd.Flags().Changed("log-level") {
				logger.Init("error")
			}

			system, calc, err := buildSystem(cfg, logger.WithComponent("physics"))
			if err != nil {
				return err
			}
			defer calc.Close()

			title := fmt.Sprintf("%s / %d bodies", cfg.Scenario, system.NumBodies())
			m := viz.NewModel(system, cfg.Dt, title).WithStepsPerFrame(stepsPerFrame).WithTheme(theme)
			final, err := tea.NewProgram(m, tea.WithAltScreen()).Run()
			if err != nil {
				return err
			}
			if fm, ok := final.(viz.Model); ok && fm.Err() != nil {
				return fm.Err()
			}
			return nil
		},
	}
	flags.register(cmd.Flags())
	cmd.Flags().IntVar(&stepsPerFrame, "steps-per-frame", 1, "simulation steps per rendered frame")
	cmd.Flags().StringVar(&theme, "theme", viz.ThemeNames()[0], "color theme")
	return cmd
}
