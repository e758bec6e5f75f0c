package storage

import (
	"fmt"
	"os"
)

// ScratchPrefix is the name prefix of per-request working directories.
const ScratchPrefix = "youcube-"

// NewScratchDir creates a fresh working directory under root (os.TempDir() when root
// is empty). The caller owns it and must remove it.
func NewScratchDir(root string) (string, error) {
	if root != "" {
		if err := os.MkdirAll(root, dirPerm); err != nil {
			return "", fmt.Errorf("creating scratch root: %w", err)
		}
	}
	dir, err := os.MkdirTemp(root, ScratchPrefix+"*")
	if err != nil {
		return "", fmt.Errorf("creating scratch directory: %w", err)
	}
	return dir, nil
}
