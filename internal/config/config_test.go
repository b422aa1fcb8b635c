package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// isolateHome points the home directory at a temporary dir and clears every
// MIGSIM_* variable.
func isolateHome(t *testing.T) string {
	t.Helper()
	home := t.TempDir()
	t.Setenv("HOME", home)
	t.Setenv("USERPROFILE", home)
	for _, kv := range os.Environ() {
		if key, _, ok := strings.Cut(kv, "="); ok && strings.HasPrefix(key, "MIGSIM_") {
			t.Setenv(key, "")
		}
	}
	return home
}

func TestDefault(t *testing.T) {
	config := Default()

	if config.Simulation.BirthRate != 0.2 {
		t.Errorf("expected BirthRate 0.2, got %v", config.Simulation.BirthRate)
	}
	if config.Simulation.MigrationProbability != 0.01 {
		t.Errorf("expected MigrationProbability 0.01, got %v", config.Simulation.MigrationProbability)
	}
	if config.Simulation.Generations != 10 || config.Simulation.Sites != 6 {
		t.Errorf("expected 10 generations over 6 sites, got %d over %d", config.Simulation.Generations, config.Simulation.Sites)
	}
	if config.Simulation.Seed != 42 {
		t.Errorf("expected Seed 42, got %d", config.Simulation.Seed)
	}
	if config.Simulation.RescaleIterations != 3 {
		t.Errorf("expected RescaleIterations 3, got %d", config.Simulation.RescaleIterations)
	}

	if config.Output.Prefix != "out" {
		t.Errorf("expected Prefix 'out', got '%s'", config.Output.Prefix)
	}
	if !config.Output.Graph || config.Output.TSV || config.Output.JSONTree {
		t.Errorf("unexpected output toggles: %+v", config.Output)
	}
	if config.Output.DotPath != "dot" {
		t.Errorf("expected DotPath 'dot', got '%s'", config.Output.DotPath)
	}
	if config.Store.Path != "" {
		t.Errorf("expected archiving disabled, got path '%s'", config.Store.Path)
	}
	if config.Logging.Level != "info" {
		t.Errorf("expected Logging.Level 'info', got '%s'", config.Logging.Level)
	}

	if err := config.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestLoadFromFile(t *testing.T) {
	home := isolateHome(t)
	configPath := filepath.Join(t.TempDir(), "config.yaml")

	configContent := `
simulation:
  birth_rate: 0.5
  sites: 4
  seed: 7
output:
  prefix: runs/a
  tsv: true
  graph: false
store:
  path: ~/archive/runs.db
logging:
  level: debug
`
	if err := os.WriteFile(configPath, []byte(configContent), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}

	config, err := LoadFromFile(configPath)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}

	if config.Simulation.BirthRate != 0.5 || config.Simulation.Sites != 4 || config.Simulation.Seed != 7 {
		t.Errorf("simulation section not loaded: %+v", config.Simulation)
	}
	// Absent keys keep defaults.
	if config.Simulation.Generations != 10 {
		t.Errorf("expected default Generations 10, got %d", config.Simulation.Generations)
	}
	if config.Simulation.MigrationProbability != 0.01 {
		t.Errorf("expected default MigrationProbability, got %v", config.Simulation.MigrationProbability)
	}
	if config.Output.Prefix != "runs/a" || !config.Output.TSV || config.Output.Graph {
		t.Errorf("output section not loaded: %+v", config.Output)
	}
	if want := filepath.Join(home, "archive", "runs.db"); config.Store.Path != want {
		t.Errorf("expected Store.Path %s, got %s", want, config.Store.Path)
	}
	if config.Logging.Level != "debug" {
		t.Errorf("expected Logging.Level 'debug', got '%s'", config.Logging.Level)
	}
}

func TestLoadFromFile_NotFound(t *testing.T) {
	if _, err := LoadFromFile("/nonexistent/path/config.yaml"); err == nil {
		t.Error("expected error for nonexistent file")
	}
}

func TestLoadFromFile_InvalidYAML(t *testing.T) {
	configPath := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(configPath, []byte("simulation: [\n"), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	if _, err := LoadFromFile(configPath); err == nil {
		t.Error("expected error for invalid YAML")
	}
}

func TestLoad_DefaultFile(t *testing.T) {
	home := isolateHome(t)
	dir := filepath.Join(home, ".migsim")
	if err := os.MkdirAll(dir, 0700); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("simulation:\n  generations: 4\n"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}

	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Simulation.Generations != 4 {
		t.Errorf("expected Generations 4 from file, got %d", config.Simulation.Generations)
	}
}

func TestLoad_NoFile(t *testing.T) {
	isolateHome(t)
	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if config.Simulation.Generations != 10 {
		t.Errorf("expected default Generations, got %d", config.Simulation.Generations)
	}
}

func TestEnvOverrides(t *testing.T) {
	home := isolateHome(t)
	t.Setenv("MIGSIM_BIRTH_RATE", "1.5")
	t.Setenv("MIGSIM_MIGRATION_PROBABILITY", "0.2")
	t.Setenv("MIGSIM_GENERATIONS", "3")
	t.Setenv("MIGSIM_SITES", "8")
	t.Setenv("MIGSIM_SEED", "18446744073709551615")
	t.Setenv("MIGSIM_RESCALE_ITERATIONS", "10")
	t.Setenv("MIGSIM_OUT", "sim")
	t.Setenv("MIGSIM_DOT_PATH", "/opt/graphviz/bin/dot")
	t.Setenv("MIGSIM_DB", "~/runs.db")
	t.Setenv("MIGSIM_LOG_LEVEL", "TRACE")

	config, err := Load()
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}

	s := config.Simulation
	if s.BirthRate != 1.5 || s.MigrationProbability != 0.2 || s.Generations != 3 || s.Sites != 8 || s.RescaleIterations != 10 {
		t.Errorf("simulation overrides not applied: %+v", s)
	}
	if s.Seed != 18446744073709551615 {
		t.Errorf("expected max uint64 seed, got %d", s.Seed)
	}
	if config.Output.Prefix != "sim" || config.Output.DotPath != "/opt/graphviz/bin/dot" {
		t.Errorf("output overrides not applied: %+v", config.Output)
	}
	if want := filepath.Join(home, "runs.db"); config.Store.Path != want {
		t.Errorf("expected Store.Path %s, got %s", want, config.Store.Path)
	}
	if config.Logging.Level != "trace" {
		t.Errorf("expected Logging.Level 'trace', got '%s'", config.Logging.Level)
	}
}

func TestEnvOverrides_Malformed(t *testing.T) {
	tests := []struct {
		key   string
		value string
	}{
		{"MIGSIM_BIRTH_RATE", "fast"},
		{"MIGSIM_GENERATIONS", "ten"},
		{"MIGSIM_SEED", "-1"},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			isolateHome(t)
			t.Setenv(tt.key, tt.value)
			_, err := Load()
			if err == nil || !strings.Contains(err.Error(), tt.key) {
				t.Errorf("expected error naming %s, got %v", tt.key, err)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*MigsimConfig)
		wantErr bool
	}{
		{"defaults", func(*MigsimConfig) {}, false},
		{"zero birth rate", func(c *MigsimConfig) { c.Simulation.BirthRate = 0 }, true},
		{"one site", func(c *MigsimConfig) { c.Simulation.Sites = 1 }, true},
		{"migration above one", func(c *MigsimConfig) { c.Simulation.MigrationProbability = 2 }, true},
		{"negative generations", func(c *MigsimConfig) { c.Simulation.Generations = -1 }, true},
		{"empty prefix", func(c *MigsimConfig) { c.Output.Prefix = "" }, true},
		{"graph without dot", func(c *MigsimConfig) { c.Output.DotPath = "" }, true},
		{"no graph no dot", func(c *MigsimConfig) { c.Output.Graph = false; c.Output.DotPath = "" }, false},
		{"bad log level", func(c *MigsimConfig) { c.Logging.Level = "verbose" }, true},
		{"empty log level", func(c *MigsimConfig) { c.Logging.Level = "" }, false},
		{"upper-case log level", func(c *MigsimConfig) { c.Logging.Level = "DEBUG" }, false},
		{"mixed-case log level", func(c *MigsimConfig) { c.Logging.Level = "Trace" }, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.mutate(c)
			err := c.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestSimulationConfig_Params(t *testing.T) {
	p := Default().Simulation.Params()
	if p.BirthRate != 0.2 || p.Generations != 10 || p.Sites != 6 || p.Seed != 42 || p.RescaleIterations != 3 {
		t.Errorf("unexpected params: %+v", p)
	}
}

func TestLoadWithFile(t *testing.T) {
	isolateHome(t)
	configPath := filepath.Join(t.TempDir(), "custom.yaml")
	if err := os.WriteFile(configPath, []byte("simulation:\n  sites: 3\n"), 0600); err != nil {
		t.Fatalf("failed to write config: %v", err)
	}
	t.Setenv("MIGSIM_SEED", "5")

	config, err := LoadWithFile(configPath)
	if err != nil {
		t.Fatalf("LoadWithFile failed: %v", err)
	}
	if config.Simulation.Sites != 3 {
		t.Errorf("expected Sites 3 from file, got %d", config.Simulation.Sites)
	}
	if config.Simulation.Seed != 5 {
		t.Errorf("expected env Seed 5 over file, got %d", config.Simulation.Seed)
	}
}

func TestSave_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	want := Default()
	want.Simulation.Sites = 9
	want.Output.JSONTree = true
	want.Store.Path = "/var/lib/migsim/runs.db"

	if err := want.Save(path); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	got, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("LoadFromFile failed: %v", err)
	}
	if got.Simulation != want.Simulation || got.Output != want.Output || got.Store != want.Store {
		t.Errorf("round trip mismatch:\n got %+v\nwant %+v", got, want)
	}
}
