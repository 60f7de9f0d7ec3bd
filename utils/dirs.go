package utils

import (
	"fmt"
	"os"
)

// EnsureDirs creates every directory in paths (with parents, 0750).
func EnsureDirs(paths ...string) error {
	for _, dir := range paths {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return fmt.Errorf("create directory %s: %w", dir, err)
		}
	}
	return nil
}
