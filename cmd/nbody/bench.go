package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/san-kum/nbody/internal/compute"
	"github.com/san-kum/nbody/internal/config"
	"github.com/san-kum/nbody/internal/logger"
	"github.com/san-kum/nbody/internal/physics"
	"github.com/san-kum/nbody/internal/scenario"
)

// squared softening used by the throughput measurements
const benchSquaredSoftening = 0.01

func newBenchCmd() *cobra.Command {
	var (
		sizes   []int
		impls   []string
		repeat  int
		seed    uint64
		workers int
		host    bool
	)
	cmd := &cobra.Command{
		Use:   "bench",
		Short: "time one acceleration pass per strategy over growing body counts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			selected, err := parseImplementations(impls)
			if err != nil {
				return err
			}
			log := logger.WithComponent("bench")

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STRATEGY\tN\tMEAN\tMIN\tINTERACTIONS/S")

			for _, impl := range selected {
				opts := physics.Options{Workers: workers, AllowHostDevice: host, Logger: log}
				calc, err := physics.NewAccelerationCalculation(impl, opts)
				if err != nil {
					fmt.Fprintf(w, "%s\t-\t-\t-\tunavailable: %v\n", impl, err)
					continue
				}

				for _, n := range sizes {
					bodies := scenario.Random(n, seed, workers)
					acc := make([]float32, 3*n)

					var total, best time.Duration
					for r := 0; r < repeat; r++ {
						start := time.Now()
						if err := calc.CalcAccelerations(bodies, n, acc, benchSquaredSoftening); err != nil {
							calc.Close()
							return fmt.Errorf("%s N=%d: %w", impl, n, err)
						}
						d := time.Since(start)
						total += d
						if r == 0 || d < best {
							best = d
						}
					}

					mean := total / time.Duration(repeat)
					rate := float64(n) * float64(n) / mean.Seconds()
					fmt.Fprintf(w, "%s\t%d\t%v\t%v\t%.3g\n", impl, n, mean.Round(time.Microsecond), best.Round(time.Microsecond), rate)
				}
				if err := calc.Close(); err != nil {
					log.Warn("close failed", "implementation", impl, "error", err)
				}
			}
			return w.Flush()
		},
	}
	cmd.Flags().IntSliceVar(&sizes, "sizes", []int{100, 1000, 10000}, "body counts")
	cmd.Flags().StringSliceVar(&impls, "impl", nil, "strategies to time (default all)")
	cmd.Flags().IntVar(&repeat, "repeat", 3, "passes per size")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "random scenario seed")
	cmd.Flags().IntVar(&workers, "workers", 0, "cpu workers, 0 for all")
	cmd.Flags().BoolVar(&host, "allow-host", false, "let opencl/cuda fall back to the host device")
	return cmd
}

func parseImplementations(names []string) ([]physics.Implementation, error) {
	if len(names) == 0 {
		return physics.Implementations(), nil
	}
	out := make([]physics.Implementation, 0, len(names))
	for _, name := range names {
		impl, err := physics.ParseImplementation(name)
		if err != nil {
			return nil, err
		}
		out = append(out, impl)
	}
	return out, nil
}

func newCompareCmd() *cobra.Command {
	var (
		n         int
		seed      uint64
		softening float32
		workers   int
		host      bool
		tolerance float64
	)
	cmd := &cobra.Command{
		Use:   "compare",
		Short: "check every strategy against the sequential reference",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log := logger.WithComponent("compare")
			bodies := scenario.Random(n, seed, workers)
			squared := softening * softening

			ref := make([]float32, 3*n)
			if err := physics.NewSequentialAccelerationCalculation().CalcAccelerations(bodies, n, ref, squared); err != nil {
				return err
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "STRATEGY\tMAX REL DIFF\tRESULT")

			failed := 0
			for _, impl := range physics.Implementations()[1:] {
				opts := physics.Options{Workers: workers, AllowHostDevice: host, Logger: log}
				calc, err := physics.NewAccelerationCalculation(impl, opts)
				if err != nil {
					fmt.Fprintf(w, "%s\t-\tunavailable: %v\n", impl, err)
					continue
				}
				got := make([]float32, 3*n)
				err = calc.CalcAccelerations(bodies, n, got, squared)
				calc.Close()
				if err != nil {
					failed++
					fmt.Fprintf(w, "%s\t-\tfailed: %v\n", impl, err)
					continue
				}

				diff := physics.MaxRelativeDifference(got, ref, n)
				verdict := "ok"
				if diff > tolerance {
					verdict = "MISMATCH"
					failed++
				}
				fmt.Fprintf(w, "%s\t%.3e\t%s\n", impl, diff, verdict)
			}
			if err := w.Flush(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d strategies disagree with the sequential reference", failed)
			}
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "bodies", "n", 1024, "number of bodies")
	cmd.Flags().Uint64Var(&seed, "seed", 42, "random scenario seed")
	cmd.Flags().Float32Var(&softening, "softening", config.DefaultSoftening, "softening factor")
	cmd.Flags().IntVar(&workers, "workers", 0, "cpu workers, 0 for all")
	cmd.Flags().BoolVar(&host, "allow-host", false, "let opencl/cuda fall back to the host device")
	cmd.Flags().Float64Var(&tolerance, "tolerance", 1e-4, "largest accepted relative difference")
	return cmd
}

func newDevicesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "devices",
		Short: "list the compute devices the offloaded strategies can use",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			host := compute.NewHostPlatform(physics.HostKernels())
			fmt.Print(compute.Describe(compute.NewOpenCLPlatform(), compute.NewCUDAPlatform(), host))
			return nil
		},
	}
}

func newPresetsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "presets [scenario]",
		Short: "list available presets",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			scenarios := make([]string, 0, len(config.Presets))
			if len(args) == 1 {
				scenarios = append(scenarios, args[0])
			} else {
				for name := range config.Presets {
					scenarios = append(scenarios, name)
				}
				sort.Strings(scenarios)
			}

			for _, scen := range scenarios {
				presets := config.ListPresets(scen)
				if len(presets) == 0 {
					fmt.Printf("no presets for scenario: %s\n", scen)
					continue
				}
				fmt.Printf("%s:\n", scen)
				for _, p := range presets {
					cfg := config.GetPreset(scen, p)
					fmt.Printf("  %s/%s\t%s, %d bodies, %d steps of %gs\n", scen, p, cfg.Implementation, cfg.Bodies, cfg.Steps, cfg.Dt)
				}
			}
			return nil
		},
	}
}
