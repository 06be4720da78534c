package config

import "sort"

var Presets = map[string]map[string]*Config{
	"solar": {
		"two-body": {
			Implementation: "sequential", Scenario: "solar", Bodies: 2,
			Dt: 3600, Steps: 24 * 30, Softening: 0, SnapshotEvery: 24, TrackEnergy: true,
		},
		"three-body": {
			Implementation: "sequential", Scenario: "solar", Bodies: 3,
			Dt: 3600, Steps: 24 * 365, Softening: 0, SnapshotEvery: 24, TrackEnergy: true,
		},
	},
	"random": {
		"small": {
			Implementation: "parallel", Scenario: "random", Bodies: 1000,
			Dt: 0.1, Steps: 10, Softening: 0.01, TrackEnergy: true,
		},
		"large": {
			Implementation: "opencl", Scenario: "random", Bodies: 100000,
			Dt: 0.1, Steps: 10, Softening: 0.01, AllowHostDevice: true,
		},
	},
	"ring": {
		"orbit": {
			Implementation: "parallel", Scenario: "ring", Bodies: 64, Radius: 1, Mass: 1e9,
			Dt: 0.01, Steps: 2000, Softening: 0.01, SnapshotEvery: 20, TrackEnergy: true, ValidateState: true,
		},
	},
}

// GetPreset returns a copy of the preset with unset ambient fields taken
// from DefaultConfig, or nil when it does not exist.
func GetPreset(scenario, preset string) *Config {
	scenarioPresets, ok := Presets[scenario]
	if !ok {
		return nil
	}
	p, ok := scenarioPresets[preset]
	if !ok {
		return nil
	}
	cfg := *p
	def := DefaultConfig()
	if cfg.OutputDir == "" {
		cfg.OutputDir = def.OutputDir
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = def.LogLevel
	}
	return &cfg
}

func ListPresets(scenario string) []string {
	scenarioPresets, ok := Presets[scenario]
	if !ok {
		return nil
	}
	names := make([]string, 0, len(scenarioPresets))
	for name := range scenarioPresets {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
