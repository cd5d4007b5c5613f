//go:build !windows

package lnk

import "github.com/provide-io/menubuilder/go/menubuilder/pkg/shortcut"

// NativeLoader returns the loader best suited to the host.
func NativeLoader() shortcut.Loader {
	return Loader{}
}
