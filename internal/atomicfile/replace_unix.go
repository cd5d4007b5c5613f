//go:build !windows

package atomicfile

import (
	"fmt"
	"os"

	"github.com/hashicorp/go-hclog"
)

// Replace moves sourcePath over destPath. rename(2) is atomic on one filesystem.
func Replace(sourcePath, destPath string, logger hclog.Logger) error {
	logger.Trace("Replacing file", "source", sourcePath, "dest", destPath)

	if err := os.Rename(sourcePath, destPath); err != nil {
		return fmt.Errorf("failed to rename file: %w", err)
	}

	logger.Debug("✅ Replaced file", "dest", destPath)
	return nil
}
