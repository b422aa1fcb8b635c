package visualization

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"strings"
)

// DefaultDotPath is the Graphviz executable looked up on PATH.
const DefaultDotPath = "dot"

// ErrExternalToolFailure matches every error from an external renderer.
var ErrExternalToolFailure = errors.New("external tool failed")

// ExternalToolError reports a renderer that could not be started or exited
// with a non-zero status.
type ExternalToolError struct {
	Tool   string
	Err    error
	Stderr string
}

func (e *ExternalToolError) Error() string {
	msg := fmt.Sprintf("%s: %v", e.Tool, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

func (e *ExternalToolError) Unwrap() error { return e.Err }

// Is reports whether target is ErrExternalToolFailure.
func (e *ExternalToolError) Is(target error) bool { return target == ErrExternalToolFailure }

// DOTPath returns the DOT file written for output prefix out.
func DOTPath(out string) string { return out + "_mig_graph.dot" }

// PNGPath returns the PNG file rendered for output prefix out.
func PNGPath(out string) string { return out + "_migration_graph.png" }

// Renderer writes the migration graph as DOT and renders it with Graphviz.
type Renderer struct {
	// DotPath is the Graphviz executable; empty means DefaultDotPath.
	DotPath string
}

func (r Renderer) dotPath() string {
	if r.DotPath == "" {
		return DefaultDotPath
	}
	return r.DotPath
}

// WriteDOT writes the DOT encoding of g to DOTPath(out).
func (r Renderer) WriteDOT(g *MigrationGraph, out string) (string, error) {
	data, err := MarshalDOT(g)
	if err != nil {
		return "", err
	}
	path := DOTPath(out)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("failed to write dot file: %w", err)
	}
	return path, nil
}

// RenderPNG writes DOTPath(out) and runs `dot -Tpng` on it to produce
// PNGPath(out). The DOT file is kept when Graphviz fails.
func (r Renderer) RenderPNG(ctx context.Context, g *MigrationGraph, out string) (string, error) {
	dotFile, err := r.WriteDOT(g, out)
	if err != nil {
		return "", err
	}
	return r.Render(ctx, dotFile, out)
}

// Render runs Graphviz on an existing DOT file and returns PNGPath(out).
func (r Renderer) Render(ctx context.Context, dotFile, out string) (string, error) {
	png := PNGPath(out)
	tool := r.dotPath()
	cmd := exec.CommandContext(ctx, tool, "-Tpng", dotFile, "-o", png)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &ExternalToolError{Tool: tool, Err: err, Stderr: strings.TrimSpace(stderr.String())}
	}
	return png, nil
}

// RenderPNG renders g with the Graphviz executable on PATH.
func RenderPNG(ctx context.Context, g *MigrationGraph, out string) (string, error) {
	return Renderer{}.RenderPNG(ctx, g, out)
}
