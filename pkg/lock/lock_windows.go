//go:build windows

package lock

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/windows"
)

type osHandle struct {
	mutex windows.Handle
}

// Mutex ownership is per thread, so the goroutine stays on its thread
// until release.
func (l *Lock) acquire() error {
	l.path = ""
	runtime.LockOSThread()
	name, err := windows.UTF16PtrFromString(l.name)
	if err != nil {
		runtime.UnlockOSThread()
		return err
	}
	mutex, err := windows.CreateMutex(nil, false, name)
	if err != nil && mutex == 0 {
		runtime.UnlockOSThread()
		return err
	}
	event, err := windows.WaitForSingleObject(mutex, windows.INFINITE)
	if err != nil {
		windows.CloseHandle(mutex)
		runtime.UnlockOSThread()
		return err
	}
	// An abandoned mutex is still owned by us.
	if event != windows.WAIT_OBJECT_0 && event != windows.WAIT_ABANDONED {
		windows.CloseHandle(mutex)
		runtime.UnlockOSThread()
		return fmt.Errorf("unexpected wait result %#x", event)
	}
	l.handle.mutex = mutex
	return nil
}

func (l *Lock) release() error {
	mutex := l.handle.mutex
	if mutex == 0 {
		return nil
	}
	l.handle.mutex = 0
	defer runtime.UnlockOSThread()
	releaseErr := windows.ReleaseMutex(mutex)
	closeErr := windows.CloseHandle(mutex)
	if releaseErr != nil {
		return releaseErr
	}
	return closeErr
}

// IsProcessRunning reports whether pid names a live process.
func IsProcessRunning(pid int) bool {
	process, err := windows.OpenProcess(windows.SYNCHRONIZE, false, uint32(pid))
	if err != nil {
		return false
	}
	defer windows.CloseHandle(process)
	event, err := windows.WaitForSingleObject(process, 0)
	return err == nil && event == uint32(windows.WAIT_TIMEOUT)
}

func waitForExit(pid int) error {
	process, err := windows.OpenProcess(windows.SYNCHRONIZE, false, uint32(pid))
	if err != nil {
		// Already gone.
		return nil
	}
	defer windows.CloseHandle(process)
	_, err = windows.WaitForSingleObject(process, windows.INFINITE)
	return err
}
