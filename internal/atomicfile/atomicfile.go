// Package atomicfile writes files so that readers never observe partial
// content: data goes to a sibling temp file which then replaces the target.
package atomicfile

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
)

// WriteFile writes data to path through a temp file in the same directory.
func WriteFile(path string, data []byte, perm os.FileMode, logger hclog.Logger) error {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync %s: %w", tmpPath, err)
	}
	if err := tmp.Chmod(perm); err != nil {
		logger.Debug("⚠️ Failed to chmod temp file", "path", tmpPath, "error", err)
	}
	// Close before replacing; Windows refuses to move open files.
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}

	if err := Replace(tmpPath, path, logger); err != nil {
		os.Remove(tmpPath)
		return err
	}
	return nil
}
