package main

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/guptarohit/asciigraph"
	"github.com/spf13/cobra"

	"github.com/san-kum/nbody/internal/config"
	"github.com/san-kum/nbody/internal/metrics"
	"github.com/san-kum/nbody/internal/storage"
)

func newListCmd() *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "list stored runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			runs, err := storage.New(dataDir).List()
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Println("no runs found")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSCENARIO\tSTRATEGY\tTIME\tBODIES\tSTEPS\tDT\tMEAN STEP\tDRIFT")
			for _, run := range runs {
				fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%d\t%d\t%g\t%.1fµs\t%.2e\n",
					run.ID,
					run.Scenario,
					run.Implementation,
					run.Timestamp.Format("2006-01-02 15:04:05"),
					run.Bodies,
					run.Steps,
					run.Dt,
					run.MeanStepMicros,
					run.EnergyDrift,
				)
			}
			return w.Flush()
		},
	}
	cmd.Flags().StringVar(&dataDir, "data", config.DefaultOutputDir, "run store directory")
	return cmd
}

func newPlotCmd() *cobra.Command {
	var dataDir string
	cmd := &cobra.Command{
		Use:   "plot [run_id]",
		Short: "plot energy and momentum over the stored snapshots",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			snaps, err := st.LoadSnapshots(args[0])
			if err != nil {
				return err
			}
			if len(snaps) < 2 {
				return fmt.Errorf("run %s has %d snapshots, need at least 2 to plot", meta.ID, len(snaps))
			}

			fmt.Printf("run: %s\n", meta.ID)
			fmt.Printf("scenario: %s on %s, %d bodies\n", meta.Scenario, meta.Implementation, meta.Bodies)
			fmt.Printf("snapshots: %d\n\n", len(snaps))

			squared := meta.Softening * meta.Softening
			energy := make([]float64, len(snaps))
			momentum := make([]float64, len(snaps))
			for i, s := range snaps {
				n := s.Bodies.Len()
				energy[i] = metrics.TotalEnergy(s.Bodies, n, squared)
				momentum[i] = metrics.Momentum(s.Bodies, n).Len()
			}

			for _, series := range []struct {
				caption string
				data    []float64
			}{
				{"total energy", energy},
				{"momentum magnitude", momentum},
			} {
				fmt.Println(asciigraph.Plot(series.data,
					asciigraph.Height(10),
					asciigraph.Width(80),
					asciigraph.Caption(series.caption),
				))
				fmt.Println()
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data", config.DefaultOutputDir, "run store directory")
	return cmd
}

func newExportCmd() *cobra.Command {
	var (
		dataDir string
		format  string
		out     string
	)
	cmd := &cobra.Command{
		Use:   "export [run_id]",
		Short: "export a stored run as json or csv",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st := storage.New(dataDir)
			meta, err := st.Load(args[0])
			if err != nil {
				return err
			}
			snaps, err := st.LoadSnapshots(args[0])
			if err != nil {
				return err
			}

			switch strings.ToLower(format) {
			case "json":
				if out == "" {
					return storage.WriteJSON(os.Stdout, *meta, snaps)
				}
				if err := storage.ExportJSON(out, *meta, snaps); err != nil {
					return err
				}
			case "csv":
				if out == "" {
					return storage.WriteStates(os.Stdout, snaps)
				}
				f, err := os.Create(out)
				if err != nil {
					return err
				}
				if err := storage.WriteStates(f, snaps); err != nil {
					f.Close()
					return err
				}
				if err := f.Close(); err != nil {
					return err
				}
			default:
				return fmt.Errorf("unknown export format %q (json, csv)", format)
			}
			fmt.Fprintf(os.Stderr, "exported %s to %s\n", meta.ID, out)
			return nil
		},
	}
	cmd.Flags().StringVar(&dataDir, "data", config.DefaultOutputDir, "run store directory")
	cmd.Flags().StringVarP(&format, "format", "f", "json", "json or csv")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output file, stdout when empty")
	return cmd
}
