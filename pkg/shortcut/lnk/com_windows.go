//go:build windows

package lnk

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"

	"github.com/go-ole/go-ole"
	"github.com/go-ole/go-ole/oleutil"

	"github.com/provide-io/menubuilder/go/menubuilder/pkg/shortcut"
)

// COMLoader reads shortcuts through the WScript.Shell automation object.
// It sees what the Windows shell sees, including resolved advertised links,
// but cannot report ID lists or Darwin descriptors.
type COMLoader struct{}

// Load implements shortcut.Loader.
func (COMLoader) Load(path string) (*shortcut.Descriptor, error) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	if err := ole.CoInitializeEx(0, ole.COINIT_APARTMENTTHREADED|ole.COINIT_SPEED_OVER_MEMORY); err != nil {
		// S_FALSE: already initialised on this thread.
		if oleErr, ok := err.(*ole.OleError); !ok || oleErr.Code() != 1 {
			return nil, fmt.Errorf("failed to initialise COM: %w", err)
		}
	}
	defer ole.CoUninitialize()

	oleShellObject, err := oleutil.CreateObject("WScript.Shell")
	if err != nil {
		return nil, fmt.Errorf("failed to create WScript.Shell: %w", err)
	}
	defer oleShellObject.Release()

	wshell, err := oleShellObject.QueryInterface(ole.IID_IDispatch)
	if err != nil {
		return nil, err
	}
	defer wshell.Release()

	cs, err := oleutil.CallMethod(wshell, "CreateShortcut", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open shortcut %s: %w", path, err)
	}
	link := cs.ToIDispatch()
	defer link.Release()

	get := func(name string) string {
		v, err := oleutil.GetProperty(link, name)
		if err != nil {
			return ""
		}
		defer v.Clear()
		return v.ToString()
	}

	d := &shortcut.Descriptor{
		Target:      get("TargetPath"),
		Arguments:   get("Arguments"),
		WorkDir:     get("WorkingDirectory"),
		Description: get("Description"),
	}
	d.IconPath, d.IconIndex = splitIconLocation(get("IconLocation"))
	return d, nil
}

// splitIconLocation splits WScript's "path,index" form.
func splitIconLocation(location string) (string, int) {
	comma := strings.LastIndexByte(location, ',')
	if comma < 0 {
		return location, 0
	}
	index, err := strconv.Atoi(strings.TrimSpace(location[comma+1:]))
	if err != nil {
		return location, 0
	}
	return location[:comma], index
}
