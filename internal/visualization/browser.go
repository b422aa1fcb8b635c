package visualization

import (
	"fmt"
	"os/exec"
	"runtime"
)

// openCommand returns the desktop opener for path on goos.
func openCommand(goos, path string) (*exec.Cmd, error) {
	switch goos {
	case "linux":
		return exec.Command("xdg-open", path), nil
	case "darwin":
		return exec.Command("open", path), nil
	case "windows":
		return exec.Command("cmd", "/c", "start", "", path), nil
	default:
		return nil, fmt.Errorf("unsupported platform: %s", goos)
	}
}

// OpenFile opens a rendered graph in the user's default viewer without
// waiting for it to exit.
func OpenFile(path string) error {
	cmd, err := openCommand(runtime.GOOS, path)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return &ExternalToolError{Tool: cmd.Path, Err: err}
	}
	return nil
}
