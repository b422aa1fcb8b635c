// Package config provides unified configuration loading for migsim.
// It supports loading from YAML files and environment variables.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/nvandessel/migsim/internal/constants"
	"github.com/nvandessel/migsim/internal/logging"
	"github.com/nvandessel/migsim/internal/simulation"
	"gopkg.in/yaml.v3"
)

// MigsimConfig contains all migsim configuration settings.
type MigsimConfig struct {
	// Simulation holds the default run parameters.
	Simulation SimulationConfig `json:"simulation" yaml:"simulation"`

	// Output controls which files a run writes and where.
	Output OutputConfig `json:"output" yaml:"output"`

	// Store configures the run archive.
	Store StoreConfig `json:"store" yaml:"store"`

	// Logging contains settings for operational and generation logging.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// SimulationConfig holds run parameters.
type SimulationConfig struct {
	BirthRate            float64 `json:"birth_rate" yaml:"birth_rate"`
	MigrationProbability float64 `json:"migration_probability" yaml:"migration_probability"`
	Generations          int     `json:"generations" yaml:"generations"`
	Sites                int     `json:"sites" yaml:"sites"`
	Seed                 uint64  `json:"seed" yaml:"seed"`

	// RescaleIterations is the number of Sinkhorn-Knopp passes per
	// generation.
	RescaleIterations int `json:"rescale_iterations" yaml:"rescale_iterations"`
}

// Params converts the section into simulation parameters.
func (s SimulationConfig) Params() simulation.Params {
	return simulation.Params{
		BirthRate:            s.BirthRate,
		Generations:          s.Generations,
		Sites:                s.Sites,
		MigrationProbability: s.MigrationProbability,
		Seed:                 s.Seed,
		RescaleIterations:    s.RescaleIterations,
	}
}

// OutputConfig controls written artifacts.
type OutputConfig struct {
	// Prefix is prepended to every output file name.
	Prefix string `json:"prefix" yaml:"prefix"`

	// TSV also writes a tab-separated edge list.
	TSV bool `json:"tsv" yaml:"tsv"`

	// JSONTree also writes the nested tree as JSON.
	JSONTree bool `json:"json_tree" yaml:"json_tree"`

	// Graph writes the DOT migration graph and renders it with Graphviz.
	Graph bool `json:"graph" yaml:"graph"`

	// DotPath is the Graphviz executable.
	DotPath string `json:"dot_path" yaml:"dot_path"`

	// MetricsFile, when set, receives a Prometheus textfile of run metrics.
	MetricsFile string `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty"`
}

// StoreConfig configures the run archive.
type StoreConfig struct {
	// Path is the SQLite archive. Empty disables archiving.
	Path string `json:"path,omitempty" yaml:"path,omitempty"`
}

// LoggingConfig configures migsim's logging behavior.
type LoggingConfig struct {
	// Level sets the log verbosity: "info" (default), "debug", or "trace".
	// "debug" enables the generation trace in TraceDir.
	// "trace" additionally includes every generation's migration matrix.
	Level string `json:"level" yaml:"level"`

	// TraceDir receives generations.jsonl. Empty means the directory of the
	// output prefix.
	TraceDir string `json:"trace_dir,omitempty" yaml:"trace_dir,omitempty"`
}

// Default returns a MigsimConfig with the CLI defaults.
func Default() *MigsimConfig {
	return &MigsimConfig{
		Simulation: SimulationConfig{
			BirthRate:            constants.DefaultBirthRate,
			MigrationProbability: constants.DefaultMigrationProbability,
			Generations:          constants.DefaultGenerations,
			Sites:                constants.DefaultSites,
			Seed:                 constants.DefaultSeed,
			RescaleIterations:    constants.DefaultRescaleIterations,
		},
		Output: OutputConfig{
			Prefix:  constants.DefaultOutputPrefix,
			Graph:   true,
			DotPath: constants.DefaultDotPath,
		},
		Logging: LoggingConfig{
			Level: constants.DefaultLogLevel,
		},
	}
}

// DefaultPath returns ~/.migsim/config.yaml.
func DefaultPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(homeDir, ".migsim", "config.yaml"), nil
}

// Load loads configuration from the default location and environment variables.
// Order: defaults -> ~/.migsim/config.yaml -> environment variables
func Load() (*MigsimConfig, error) {
	config := Default()

	if configPath, err := DefaultPath(); err == nil {
		if _, statErr := os.Stat(configPath); statErr == nil {
			fileConfig, loadErr := LoadFromFile(configPath)
			if loadErr != nil {
				return nil, fmt.Errorf("loading config file: %w", loadErr)
			}
			config = fileConfig
		}
	}

	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// LoadWithFile loads path instead of the default file, then applies
// environment variables. An empty path behaves like Load.
func LoadWithFile(path string) (*MigsimConfig, error) {
	if path == "" {
		return Load()
	}
	config, err := LoadFromFile(path)
	if err != nil {
		return nil, err
	}
	if err := applyEnvOverrides(config); err != nil {
		return nil, err
	}
	return config, nil
}

// Save writes the configuration to path, creating its directory.
func (c *MigsimConfig) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// LoadFromFile loads configuration from a specific YAML file. Keys absent
// from the file keep their defaults.
func LoadFromFile(path string) (*MigsimConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	config.Store.Path = expandHome(config.Store.Path)
	config.Logging.TraceDir = expandHome(config.Logging.TraceDir)
	return config, nil
}

// Validate checks that the configuration is valid.
func (c *MigsimConfig) Validate() error {
	if err := c.Simulation.Params().Validate(); err != nil {
		return err
	}

	if c.Output.Prefix == "" {
		return fmt.Errorf("output prefix must not be empty")
	}
	if c.Output.Graph && c.Output.DotPath == "" {
		return fmt.Errorf("dot_path must be set when graph output is enabled")
	}

	if c.Logging.Level != "" && !logging.ValidLevel(c.Logging.Level) {
		return fmt.Errorf("invalid log level: %s (valid: info, debug, trace, or empty for default)", c.Logging.Level)
	}

	return nil
}

// applyEnvOverrides applies MIGSIM_* environment variables. Malformed
// numbers are errors.
func applyEnvOverrides(config *MigsimConfig) error {
	floats := []struct {
		key string
		dst *float64
	}{
		{"MIGSIM_BIRTH_RATE", &config.Simulation.BirthRate},
		{"MIGSIM_MIGRATION_PROBABILITY", &config.Simulation.MigrationProbability},
	}
	for _, f := range floats {
		if v := os.Getenv(f.key); v != "" {
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", f.key, v, err)
			}
			*f.dst = n
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"MIGSIM_GENERATIONS", &config.Simulation.Generations},
		{"MIGSIM_SITES", &config.Simulation.Sites},
		{"MIGSIM_RESCALE_ITERATIONS", &config.Simulation.RescaleIterations},
	}
	for _, i := range ints {
		if v := os.Getenv(i.key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				return fmt.Errorf("invalid %s %q: %w", i.key, v, err)
			}
			*i.dst = n
		}
	}

	if v := os.Getenv("MIGSIM_SEED"); v != "" {
		n, err := strconv.ParseUint(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid MIGSIM_SEED %q: %w", v, err)
		}
		config.Simulation.Seed = n
	}

	if v := os.Getenv("MIGSIM_OUT"); v != "" {
		config.Output.Prefix = v
	}
	if v := os.Getenv("MIGSIM_DOT_PATH"); v != "" {
		config.Output.DotPath = v
	}
	if v := os.Getenv("MIGSIM_DB"); v != "" {
		config.Store.Path = expandHome(v)
	}
	if v := os.Getenv("MIGSIM_LOG_LEVEL"); v != "" {
		config.Logging.Level = strings.ToLower(v)
	}
	return nil
}

// expandHome replaces a leading "~/" with the user's home directory.
func expandHome(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return path
	}
	return filepath.Join(homeDir, path[2:])
}
