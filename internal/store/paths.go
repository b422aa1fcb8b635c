package store

import (
	"fmt"
	"os"
	"path/filepath"
)

// DefaultDBName is the archive file name inside the global directory.
const DefaultDBName = "runs.db"

// GlobalMigsimPath returns ~/.migsim (%USERPROFILE%\.migsim on Windows).
func GlobalMigsimPath() (string, error) {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %w", err)
	}
	return filepath.Join(homeDir, ".migsim"), nil
}

// DefaultDBPath returns the archive path inside the global directory.
func DefaultDBPath() (string, error) {
	dir, err := GlobalMigsimPath()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, DefaultDBName), nil
}
