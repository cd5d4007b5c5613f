// Package lock provides the named cross-process lock that serializes
// menubuilder runs, and a wait for a parent process to exit.
package lock

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/menubuilder/go/menubuilder/internal/xdgdirs"
	mberrors "github.com/provide-io/menubuilder/go/menubuilder/pkg/errors"
)

// DefaultName is the lock shared by every menubuilder process.
const DefaultName = "winemenubuilder_mutex"

// pollInterval paces WaitForProcessExit where the OS offers no wait handle.
var pollInterval = 100 * time.Millisecond

// Lock is a held named lock.
type Lock struct {
	name   string
	path   string
	logger hclog.Logger
	handle osHandle
}

// Path returns the lock file path ("" on Windows).
func (l *Lock) Path() string {
	return l.path
}

// Acquire blocks until the named lock is held. There is no timeout.
func Acquire(name string, logger hclog.Logger) (*Lock, error) {
	return AcquireIn(xdgdirs.RuntimeDir(), name, logger)
}

// AcquireIn is Acquire with an explicit directory for the lock file.
func AcquireIn(dir, name string, logger hclog.Logger) (*Lock, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	l := &Lock{
		name:   name,
		path:   filepath.Join(dir, name+".lock"),
		logger: logger,
	}

	logger.Debug("🔒 Waiting for lock", "name", name)
	if err := l.acquire(); err != nil {
		return nil, fmt.Errorf("failed to acquire lock %s: %w: %w", name, mberrors.ErrLocked, err)
	}
	logger.Debug("🔒 Acquired lock", "name", name, "pid", os.Getpid())
	return l, nil
}

// Release gives the lock up. It is safe to call more than once.
func (l *Lock) Release() {
	if l == nil {
		return
	}
	if err := l.release(); err != nil {
		l.logger.Debug("⚠️ Failed to release lock", "name", l.name, "error", err)
		return
	}
	l.logger.Debug("🔓 Released lock", "name", l.name)
}

// HolderPID reads the PID recorded in a lock file, or 0.
func HolderPID(path string) int {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(data)))
	if err != nil {
		return 0
	}
	return pid
}

// WaitForProcessExit blocks until pid has exited.
func WaitForProcessExit(pid int, logger hclog.Logger) error {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	if pid <= 0 {
		return fmt.Errorf("invalid pid %d", pid)
	}
	logger.Debug("⏳ Waiting for process exit", "pid", pid)
	if err := waitForExit(pid); err != nil {
		return fmt.Errorf("failed to wait for process %d: %w", pid, err)
	}
	logger.Debug("✅ Process exited", "pid", pid)
	return nil
}
