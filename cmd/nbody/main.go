package main

import (
	"errors"
	"io/fs"
	"net/http"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/san-kum/nbody/internal/config"
	"github.com/san-kum/nbody/internal/logger"
)

var (
	configFile  string
	preset      string
	logLevel    string
	metricsAddr string
	envFile     string
)

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:          "nbody",
		Short:        "gravitational n-body engine with swappable compute strategies",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if err := godotenv.Load(envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return err
			}
			level := logLevel
			if !cmd.Flags().Changed("log-level") {
				if v, ok := os.LookupEnv(config.EnvPrefix + "LOG_LEVEL"); ok {
					level = v
				}
			}
			logger.Init(level)
			if metricsAddr != "" {
				serveMetrics(metricsAddr)
			}
			return nil
		},
	}

	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configFile, "config", "", "config file path (yaml)")
	pf.StringVar(&preset, "preset", "", "preset as scenario/name, e.g. solar/three-body")
	pf.StringVar(&logLevel, "log-level", config.DefaultLogLevel, "debug, info, warn or error")
	pf.StringVar(&metricsAddr, "metrics-addr", "", "serve prometheus metrics on this address, e.g. :9090")
	pf.StringVar(&envFile, "env-file", ".env", "dotenv file loaded before NBODY_* variables are read")

	rootCmd.AddCommand(
		newRunCmd(),
		newLiveCmd(),
		newBenchCmd(),
		newCompareCmd(),
		newDevicesCmd(),
		newListCmd(),
		newPlotCmd(),
		newExportCmd(),
		newPresetsCmd(),
	)
	return rootCmd
}

func serveMetrics(addr string) {
	log := logger.WithComponent("metrics")
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		log.Info("serving metrics", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("metrics server stopped", "error", err)
		}
	}()
}
