// Package errors holds the sentinel errors shared by the menubuilder packages.
// Call sites wrap them with fmt.Errorf and callers test with errors.Is.
package errors

import "errors"

var (
	// Icon container errors 🖼️
	ErrFormat      = errors.New("❌ malformed icon data")
	ErrNotFound    = errors.New("❌ icon resource not found")
	ErrOutOfMemory = errors.New("❌ icon resource too large")
	ErrEncode      = errors.New("❌ icon encode failed")
	ErrUnsupported = errors.New("❌ unsupported file type")

	// Filesystem errors 📂
	ErrIO     = errors.New("❌ i/o failure")
	ErrNoHome = errors.New("❌ home directory not found")

	// Coordination errors 🔒
	ErrLocked = errors.New("❌ menu lock unavailable")

	// Shortcut errors 🔗
	ErrInvalidShortcut = errors.New("❌ invalid shortcut file")
	ErrUnknownBackend  = errors.New("❌ unknown platform backend")
)
