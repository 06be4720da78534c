package main

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/san-kum/nbody/internal/config"
	"github.com/san-kum/nbody/internal/physics"
	"github.com/san-kum/nbody/internal/scenario"
)

const (
	defaultRingRadius = 1.0
	defaultRingMass   = 1e9
)

// simFlags are the flags shared by run and live. Only flags the user set
// override the resolved config.
type simFlags struct {
	implementation  string
	scenario        string
	bodies          int
	seed            uint64
	dt              float32
	steps           int
	softening       float32
	workers         int
	allowHostDevice bool
	kernelPath      string
	snapshotEvery   int
	validateState   bool
	trackEnergy     bool
	outputDir       string
}

func (f *simFlags) register(fs *pflag.FlagSet) {
	def := config.DefaultConfig()
	fs.StringVarP(&f.implementation, "impl", "i", def.Implementation, "acceleration strategy: sequential, parallel, opencl, cuda")
	fs.StringVarP(&f.scenario, "scenario", "s", def.Scenario, "initial bodies: "+strings.Join(scenario.List(), ", "))
	fs.IntVarP(&f.bodies, "bodies", "n", def.Bodies, "number of bodies")
	fs.Uint64Var(&f.seed, "seed", def.Seed, "random scenario seed")
	fs.Float32Var(&f.dt, "dt", def.Dt, "time step in seconds")
	fs.IntVar(&f.steps, "steps", def.Steps, "number of steps")
	fs.Float32Var(&f.softening, "softening", def.Softening, "softening factor (squared before use)")
	fs.IntVar(&f.workers, "workers", def.Workers, "cpu workers, 0 for all")
	fs.BoolVar(&f.allowHostDevice, "allow-host", def.AllowHostDevice, "let opencl/cuda fall back to the host device")
	fs.StringVar(&f.kernelPath, "kernel", def.KernelPath, "kernel source overriding the embedded one")
	fs.IntVar(&f.snapshotEvery, "snapshot-every", def.SnapshotEvery, "store the bodies every k steps, 0 stores only the final state")
	fs.BoolVar(&f.validateState, "validate", def.ValidateState, "stop on NaN or Inf positions and velocities")
	fs.BoolVar(&f.trackEnergy, "energy", def.TrackEnergy, "report total energy drift")
	fs.StringVar(&f.outputDir, "data", def.OutputDir, "run store directory")
}

func (f *simFlags) apply(fs *pflag.FlagSet, cfg *config.Config) {
	set := func(name string, apply func()) {
		if fs.Changed(name) {
			apply()
		}
	}
	set("impl", func() { cfg.Implementation = f.implementation })
	set("scenario", func() { cfg.Scenario = f.scenario })
	set("bodies", func() { cfg.Bodies = f.bodies })
	set("seed", func() { cfg.Seed = f.seed })
	set("dt", func() { cfg.Dt = f.dt })
	set("steps", func() { cfg.Steps = f.steps })
	set("softening", func() { cfg.Softening = f.softening })
	set("workers", func() { cfg.Workers = f.workers })
	set("allow-host", func() { cfg.AllowHostDevice = f.allowHostDevice })
	set("kernel", func() { cfg.KernelPath = f.kernelPath })
	set("snapshot-every", func() { cfg.SnapshotEvery = f.snapshotEvery })
	set("validate", func() { cfg.ValidateState = f.validateState })
	set("energy", func() { cfg.TrackEnergy = f.trackEnergy })
	set("data", func() { cfg.OutputDir = f.outputDir })
}

// resolveConfig layers defaults, preset, config file, environment and
// flags, in that order.
func resolveConfig(cmd *cobra.Command, flags *simFlags, lookup func(string) (string, bool)) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if preset != "" {
		scen, name, ok := strings.Cut(preset, "/")
		if !ok {
			return nil, fmt.Errorf("preset must be scenario/name, got %q", preset)
		}
		p := config.GetPreset(scen, name)
		if p == nil {
			return nil, fmt.Errorf("unknown preset: %s (available: %v)", preset, config.ListPresets(scen))
		}
		cfg = p
	}

	if configFile != "" {
		loaded, err := config.LoadOver(configFile, cfg)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}

	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}
	if flags != nil {
		flags.apply(cmd.Flags(), cfg)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func scenarioOptions(cfg *config.Config) scenario.Options {
	opts := scenario.Options{
		Seed:    cfg.Seed,
		Workers: cfg.Workers,
		Radius:  cfg.Radius,
		Mass:    cfg.Mass,
	}
	if opts.Radius == 0 {
		opts.Radius = defaultRingRadius
	}
	if opts.Mass == 0 {
		opts.Mass = defaultRingMass
	}
	return opts
}

func strategyOptions(cfg *config.Config, impl physics.Implementation, log *slog.Logger) (physics.Options, error) {
	opts := physics.Options{
		Workers:         cfg.Workers,
		AllowHostDevice: cfg.AllowHostDevice,
		Logger:          log,
	}
	src, err := cfg.KernelSource()
	if err != nil {
		return opts, err
	}
	switch impl {
	case physics.OpenCL:
		opts.OpenCLKernelSource = src
	case physics.CUDA:
		opts.CUDAKernelSource = src
	}
	return opts, nil
}

// buildSystem returns a ready system and the strategy the caller must close.
func buildSystem(cfg *config.Config, log *slog.Logger) (*physics.BodiesSystem, physics.AccelerationCalculation, error) {
	bodies, err := scenario.Generate(cfg.Scenario, cfg.Bodies, scenarioOptions(cfg))
	if err != nil {
		return nil, nil, err
	}
	return buildSystemFrom(cfg, bodies, log)
}

// buildSystemFrom wires the configured strategies around existing bodies.
func buildSystemFrom(cfg *config.Config, bodies physics.Bodies, log *slog.Logger) (*physics.BodiesSystem, physics.AccelerationCalculation, error) {
	impl, err := physics.ParseImplementation(cfg.Implementation)
	if err != nil {
		return nil, nil, err
	}

	opts, err := strategyOptions(cfg, impl, log)
	if err != nil {
		return nil, nil, err
	}
	calc, err := physics.NewAccelerationCalculation(impl, opts)
	if err != nil {
		return nil, nil, err
	}

	system, err := physics.NewBodiesSystem(bodies, bodies.Len(), calc, physics.NewEuler(cfg.Workers), cfg.Softening)
	if err != nil {
		calc.Close()
		return nil, nil, err
	}
	return system, calc, nil
}

func envLookup(key string) (string, bool) {
	return os.LookupEnv(key)
}
