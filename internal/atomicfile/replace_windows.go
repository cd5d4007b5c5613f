//go:build windows

package atomicfile

import (
	"fmt"
	"time"

	"github.com/hashicorp/go-hclog"
	"golang.org/x/sys/windows"
)

// Replace moves sourcePath over destPath with MoveFileEx, retrying with
// backoff while the target is locked.
func Replace(sourcePath, destPath string, logger hclog.Logger) error {
	logger.Trace("Replacing file", "source", sourcePath, "dest", destPath)

	fromPtr, err := windows.UTF16PtrFromString(sourcePath)
	if err != nil {
		return fmt.Errorf("failed to convert source path to UTF-16: %w", err)
	}
	toPtr, err := windows.UTF16PtrFromString(destPath)
	if err != nil {
		return fmt.Errorf("failed to convert dest path to UTF-16: %w", err)
	}

	var flags uint32 = windows.MOVEFILE_REPLACE_EXISTING | windows.MOVEFILE_WRITE_THROUGH

	maxAttempts := 3
	delay := 50 * time.Millisecond

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		err = windows.MoveFileEx(fromPtr, toPtr, flags)
		if err == nil {
			logger.Debug("✅ Replaced file", "dest", destPath, "attempt", attempt)
			return nil
		}
		if attempt == maxAttempts {
			break
		}
		logger.Debug("Retrying file replacement",
			"attempt", attempt,
			"next_delay_ms", delay.Milliseconds(),
			"error", err)
		time.Sleep(delay)
		delay *= 2
	}

	return fmt.Errorf("failed after %d attempts (file lock): %w", maxAttempts, err)
}
