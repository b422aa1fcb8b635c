package main

import (
	"bytes"
	"context"
	"os"
	"strings"
	"testing"
)

// isolateHome points HOME at a temp directory so tests never touch the real
// ~/.migsim/, and clears every MIGSIM_* variable.
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

// execute runs the root command with args and returns its stdout.
func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	root := newRootCmd()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNewRootCmd(t *testing.T) {
	root := newRootCmd()
	if root.Use != "migsim" {
		t.Errorf("Use = %q, want %q", root.Use, "migsim")
	}
	for _, name := range []string{"simulate", "version", "config", "runs"} {
		found := false
		for _, c := range root.Commands() {
			if c.Name() == name {
				found = true
			}
		}
		if !found {
			t.Errorf("root command missing subcommand %q", name)
		}
	}
	for _, flag := range []string{"json", "config"} {
		if root.PersistentFlags().Lookup(flag) == nil {
			t.Errorf("missing persistent flag --%s", flag)
		}
	}
}

func TestNewVersionCmd(t *testing.T) {
	cmd := newVersionCmd()
	if cmd.Use != "version" {
		t.Errorf("Use = %q, want %q", cmd.Use, "version")
	}
}

func TestVersionOutput(t *testing.T) {
	isolateHome(t)

	out, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version failed: %v", err)
	}
	if !strings.HasPrefix(out, "migsim version "+version) {
		t.Errorf("unexpected version output: %q", out)
	}

	out, err = execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version --json failed: %v", err)
	}
	if !strings.Contains(out, `"version":"`+version+`"`) {
		t.Errorf("unexpected json version output: %q", out)
	}
}

func TestSimulateFlagShorthands(t *testing.T) {
	cmd := newSimulateCmd()
	for short, long := range map[string]string{
		"b": "birth-rate",
		"m": "migration-probability",
		"g": "generations",
		"s": "sites",
		"r": "seed",
		"o": "out",
	} {
		f := cmd.Flags().ShorthandLookup(short)
		if f == nil {
			t.Errorf("missing shorthand -%s", short)
			continue
		}
		if f.Name != long {
			t.Errorf("-%s = --%s, want --%s", short, f.Name, long)
		}
	}
}
