package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/nvandessel/migsim/internal/config"
	"github.com/nvandessel/migsim/internal/logging"
	"github.com/spf13/cobra"
)

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Manage migsim configuration",
		Long: `View and modify migsim configuration settings.

Configuration is stored in ~/.migsim/config.yaml.

Examples:
  migsim config list                           # Show all settings
  migsim config get simulation.sites           # Get a specific setting
  migsim config set simulation.sites 8         # Set a setting
  migsim config set store.path ~/.migsim/runs.db`,
	}

	cmd.AddCommand(
		newConfigListCmd(),
		newConfigGetCmd(),
		newConfigSetCmd(),
	)

	return cmd
}

// loadConfigFor loads the file named by --config, or the default one.
// A missing file yields the defaults so that set can create it.
// Environment overrides are not applied; these commands manage the file.
func loadConfigFor(cmd *cobra.Command) (*config.MigsimConfig, string, error) {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		p, err := config.DefaultPath()
		if err != nil {
			return nil, "", fmt.Errorf("failed to get home directory: %w", err)
		}
		path = p
	}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		return config.Default(), path, nil
	}
	cfg, err := config.LoadFromFile(path)
	if err != nil {
		return nil, "", fmt.Errorf("failed to load config: %w", err)
	}
	return cfg, path, nil
}

func newConfigListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List all configuration settings",
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()

			cfg, path, err := loadConfigFor(cmd)
			if err != nil {
				return err
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(cfg)
			}

			fmt.Fprintf(out, "Configuration (%s):\n", path)
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Simulation Settings:")
			for _, key := range []string{
				"simulation.birth_rate",
				"simulation.migration_probability",
				"simulation.generations",
				"simulation.sites",
				"simulation.seed",
				"simulation.rescale_iterations",
			} {
				v, _ := getConfigValue(cfg, key)
				fmt.Fprintf(out, "  %-34s %v\n", key+":", v)
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Output Settings:")
			for _, key := range []string{"output.prefix", "output.tsv", "output.json_tree", "output.graph", "output.dot_path", "output.metrics_file"} {
				v, _ := getConfigValue(cfg, key)
				fmt.Fprintf(out, "  %-34s %v\n", key+":", valueOrDefault(fmt.Sprint(v), "(not set)"))
			}
			fmt.Fprintln(out)
			fmt.Fprintln(out, "Store and Logging:")
			fmt.Fprintf(out, "  %-34s %s\n", "store.path:", valueOrDefault(cfg.Store.Path, "(archiving disabled)"))
			fmt.Fprintf(out, "  %-34s %s\n", "logging.level:", valueOrDefault(cfg.Logging.Level, "info"))
			fmt.Fprintf(out, "  %-34s %s\n", "logging.trace_dir:", valueOrDefault(cfg.Logging.TraceDir, "(output directory)"))
			return nil
		},
	}
}

func newConfigGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <key>",
		Short: "Get a configuration value",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()
			key := args[0]

			cfg, _, err := loadConfigFor(cmd)
			if err != nil {
				return err
			}

			value, found := getConfigValue(cfg, key)
			if !found {
				return fmt.Errorf("unknown configuration key: %s", key)
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"key":   key,
					"value": value,
				})
			}
			fmt.Fprintf(out, "%s = %v\n", key, value)
			return nil
		},
	}
}

func newConfigSetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set <key> <value>",
		Short: "Set a configuration value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			jsonOut, _ := cmd.Flags().GetBool("json")
			out := cmd.OutOrStdout()
			key, value := args[0], args[1]

			cfg, path, err := loadConfigFor(cmd)
			if err != nil {
				return err
			}

			if err := setConfigValue(cfg, key, value); err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid value for %s: %w", key, err)
			}
			if err := cfg.Save(path); err != nil {
				return fmt.Errorf("failed to save config: %w", err)
			}

			if jsonOut {
				return json.NewEncoder(out).Encode(map[string]interface{}{
					"status": "updated",
					"key":    key,
					"value":  value,
				})
			}
			fmt.Fprintf(out, "Set %s = %s\n", key, value)
			return nil
		},
	}
}

// getConfigValue retrieves a configuration value by dot-notation key.
func getConfigValue(cfg *config.MigsimConfig, key string) (interface{}, bool) {
	switch key {
	case "simulation.birth_rate":
		return cfg.Simulation.BirthRate, true
	case "simulation.migration_probability":
		return cfg.Simulation.MigrationProbability, true
	case "simulation.generations":
		return cfg.Simulation.Generations, true
	case "simulation.sites":
		return cfg.Simulation.Sites, true
	case "simulation.seed":
		return cfg.Simulation.Seed, true
	case "simulation.rescale_iterations":
		return cfg.Simulation.RescaleIterations, true
	case "output.prefix":
		return cfg.Output.Prefix, true
	case "output.tsv":
		return cfg.Output.TSV, true
	case "output.json_tree":
		return cfg.Output.JSONTree, true
	case "output.graph":
		return cfg.Output.Graph, true
	case "output.dot_path":
		return cfg.Output.DotPath, true
	case "output.metrics_file":
		return cfg.Output.MetricsFile, true
	case "store.path":
		return cfg.Store.Path, true
	case "logging.level":
		return cfg.Logging.Level, true
	case "logging.trace_dir":
		return cfg.Logging.TraceDir, true
	default:
		return nil, false
	}
}

// setConfigValue sets a configuration value by dot-notation key.
func setConfigValue(cfg *config.MigsimConfig, key, value string) error {
	parseFloat := func(dst *float64) error {
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return fmt.Errorf("invalid number for %s: %s", key, value)
		}
		*dst = f
		return nil
	}
	parseInt := func(dst *int) error {
		n, err := strconv.Atoi(value)
		if err != nil {
			return fmt.Errorf("invalid integer for %s: %s", key, value)
		}
		*dst = n
		return nil
	}
	parseBool := func(dst *bool) error {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return fmt.Errorf("invalid boolean for %s: %s", key, value)
		}
		*dst = b
		return nil
	}

	switch key {
	case "simulation.birth_rate":
		return parseFloat(&cfg.Simulation.BirthRate)
	case "simulation.migration_probability":
		return parseFloat(&cfg.Simulation.MigrationProbability)
	case "simulation.generations":
		return parseInt(&cfg.Simulation.Generations)
	case "simulation.sites":
		return parseInt(&cfg.Simulation.Sites)
	case "simulation.seed":
		n, err := strconv.ParseUint(value, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid seed: %s", value)
		}
		cfg.Simulation.Seed = n
	case "simulation.rescale_iterations":
		return parseInt(&cfg.Simulation.RescaleIterations)
	case "output.prefix":
		cfg.Output.Prefix = value
	case "output.tsv":
		return parseBool(&cfg.Output.TSV)
	case "output.json_tree":
		return parseBool(&cfg.Output.JSONTree)
	case "output.graph":
		return parseBool(&cfg.Output.Graph)
	case "output.dot_path":
		cfg.Output.DotPath = value
	case "output.metrics_file":
		cfg.Output.MetricsFile = value
	case "store.path":
		cfg.Store.Path = value
	case "logging.level":
		if !logging.ValidLevel(value) {
			return fmt.Errorf("invalid log level: %s (valid: info, debug, trace)", value)
		}
		cfg.Logging.Level = strings.ToLower(value)
	case "logging.trace_dir":
		cfg.Logging.TraceDir = value
	default:
		return fmt.Errorf("unknown configuration key: %s", key)
	}
	return nil
}

// valueOrDefault returns the value if non-empty, otherwise the default.
func valueOrDefault(value, defaultValue string) string {
	if value == "" {
		return defaultValue
	}
	return value
}
