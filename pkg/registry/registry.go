// Package registry reads Windows registry data from a Wine prefix and keeps
// menubuilder's own persisted state.
//
// Key paths use backslash separators and are matched case-insensitively.
// They are relative to the root of the file or hive they come from, so
// "Software\Classes\.txt" in user.reg means HKCU\Software\Classes\.txt.
package registry

import (
	"strings"
)

// ValueType is a registry value type as stored by Windows.
type ValueType uint32

const (
	TypeNone         ValueType = 0
	TypeString       ValueType = 1
	TypeExpandString ValueType = 2
	TypeBinary       ValueType = 3
	TypeDWord        ValueType = 4
	TypeMultiString  ValueType = 7
	TypeQWord        ValueType = 11
)

// Value is one decoded registry value.
type Value struct {
	Type    ValueType
	String  string
	Strings []string
	Uint    uint64
	Data    []byte
}

// Text returns the value as a string. Multi-strings are joined with spaces.
func (v Value) Text() string {
	switch v.Type {
	case TypeString, TypeExpandString:
		return v.String
	case TypeMultiString:
		return strings.Join(v.Strings, " ")
	}
	return v.String
}

// Reader is read access to one registry tree.
type Reader interface {
	// Subkeys lists the immediate children of path, in stored order.
	Subkeys(path string) ([]string, error)
	// Value returns the named value of path. The empty name is the default
	// value.
	Value(path, name string) (Value, bool)
}

// JoinPath joins key path elements with backslashes.
func JoinPath(elem ...string) string {
	parts := make([]string, 0, len(elem))
	for _, e := range elem {
		e = strings.Trim(e, `\`)
		if e != "" {
			parts = append(parts, e)
		}
	}
	return strings.Join(parts, `\`)
}

func splitPath(path string) []string {
	var parts []string
	for _, p := range strings.Split(path, `\`) {
		if p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}

func foldKey(path string) string {
	return strings.ToLower(JoinPath(splitPath(path)...))
}
