package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/san-kum/nbody/internal/physics"
)

const (
	DefaultImplementation = "parallel"
	DefaultScenario       = "random"
	DefaultBodies         = 1000
	DefaultDt             = 0.1
	DefaultSteps          = 10
	DefaultSoftening      = 0.01
	DefaultOutputDir      = "runs"
	DefaultLogLevel       = "info"

	EnvPrefix = "NBODY_"
)

type Config struct {
	Implementation  string  `yaml:"implementation"`
	Scenario        string  `yaml:"scenario"`
	Bodies          int     `yaml:"bodies"`
	Seed            uint64  `yaml:"seed"`
	Radius          float64 `yaml:"radius,omitempty"`
	Mass            float64 `yaml:"mass,omitempty"`
	Dt              float32 `yaml:"dt"`
	Steps           int     `yaml:"steps"`
	Softening       float32 `yaml:"softening"`
	Workers         int     `yaml:"workers"`
	AllowHostDevice bool    `yaml:"allow_host_device"`
	KernelPath      string  `yaml:"kernel_path,omitempty"`
	SnapshotEvery   int     `yaml:"snapshot_every"`
	ValidateState   bool    `yaml:"validate_state"`
	TrackEnergy     bool    `yaml:"track_energy"`
	OutputDir       string  `yaml:"output_dir"`
	LogLevel        string  `yaml:"log_level"`
}

func DefaultConfig() *Config {
	return &Config{
		Implementation: DefaultImplementation,
		Scenario:       DefaultScenario,
		Bodies:         DefaultBodies,
		Dt:             DefaultDt,
		Steps:          DefaultSteps,
		Softening:      DefaultSoftening,
		TrackEnergy:    true,
		OutputDir:      DefaultOutputDir,
		LogLevel:       DefaultLogLevel,
	}
}

func Load(path string) (*Config, error) {
	return LoadOver(path, DefaultConfig())
}

// LoadOver reads path on top of a copy of base, so keys missing from the
// file keep base's values.
func LoadOver(path string, base *Config) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	cfg := *base
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse %s: %w", path, err)
	}
	return &cfg, nil
}

func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

func (c *Config) Validate() error {
	if _, err := physics.ParseImplementation(c.Implementation); err != nil {
		return err
	}
	if c.Bodies < 0 {
		return fmt.Errorf("config: bodies must not be negative, got %d", c.Bodies)
	}
	if c.Dt <= 0 {
		return fmt.Errorf("config: dt must be positive, got %g", c.Dt)
	}
	if c.Steps <= 0 {
		return fmt.Errorf("config: steps must be positive, got %d", c.Steps)
	}
	if c.SnapshotEvery < 0 {
		return fmt.Errorf("config: snapshot_every must not be negative, got %d", c.SnapshotEvery)
	}
	return nil
}

// KernelSource reads KernelPath, or returns "" when none is configured so
// the embedded kernels are used.
func (c *Config) KernelSource() (string, error) {
	if c.KernelPath == "" {
		return "", nil
	}
	data, err := os.ReadFile(c.KernelPath)
	if err != nil {
		return "", fmt.Errorf("config: kernel source: %w", err)
	}
	return string(data), nil
}

// ApplyEnv overrides fields from NBODY_* variables, e.g. NBODY_BODIES or
// NBODY_ALLOW_HOST_DEVICE. lookup is usually os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	strs := map[string]*string{
		"IMPLEMENTATION": &c.Implementation,
		"SCENARIO":       &c.Scenario,
		"KERNEL_PATH":    &c.KernelPath,
		"OUTPUT_DIR":     &c.OutputDir,
		"LOG_LEVEL":      &c.LogLevel,
	}
	ints := map[string]*int{
		"BODIES":         &c.Bodies,
		"STEPS":          &c.Steps,
		"WORKERS":        &c.Workers,
		"SNAPSHOT_EVERY": &c.SnapshotEvery,
	}
	floats := map[string]*float32{
		"DT":        &c.Dt,
		"SOFTENING": &c.Softening,
	}
	bools := map[string]*bool{
		"ALLOW_HOST_DEVICE": &c.AllowHostDevice,
		"VALIDATE_STATE":    &c.ValidateState,
		"TRACK_ENERGY":      &c.TrackEnergy,
	}

	for key, dst := range strs {
		if v, ok := lookup(EnvPrefix + key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	for key, dst := range ints {
		if v, ok := lookup(EnvPrefix + key); ok {
			n, err := strconv.Atoi(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
			}
			*dst = n
		}
	}
	for key, dst := range floats {
		if v, ok := lookup(EnvPrefix + key); ok {
			f, err := strconv.ParseFloat(strings.TrimSpace(v), 32)
			if err != nil {
				return fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
			}
			*dst = float32(f)
		}
	}
	for key, dst := range bools {
		if v, ok := lookup(EnvPrefix + key); ok {
			b, err := strconv.ParseBool(strings.TrimSpace(v))
			if err != nil {
				return fmt.Errorf("config: %s%s: %w", EnvPrefix, key, err)
			}
			*dst = b
		}
	}
	if v, ok := lookup(EnvPrefix + "SEED"); ok {
		seed, err := strconv.ParseUint(strings.TrimSpace(v), 10, 64)
		if err != nil {
			return fmt.Errorf("config: %sSEED: %w", EnvPrefix, err)
		}
		c.Seed = seed
	}
	return nil
}
