package registry

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"www.velocidex.com/golang/regparser"

	mberrors "github.com/provide-io/menubuilder/go/menubuilder/pkg/errors"
)

// Hive is a registry tree read from a binary regf hive file, such as an
// NTUSER.DAT or a SOFTWARE hive copied from a Windows installation.
type Hive struct {
	registry *regparser.Registry
	mount    []string
}

// OpenHive loads the hive at path. mount is the key path the hive's root
// stands for: "" for NTUSER.DAT, "Software" for a SOFTWARE hive.
func OpenHive(path, mount string) (*Hive, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read hive %s: %w", path, err)
	}
	return NewHive(data, mount)
}

// NewHive parses hive bytes.
func NewHive(data []byte, mount string) (h *Hive, err error) {
	// regparser panics on some truncated inputs.
	defer func() {
		if r := recover(); r != nil {
			h, err = nil, fmt.Errorf("failed to parse hive: %v: %w", r, mberrors.ErrFormat)
		}
	}()

	registry, err := regparser.NewRegistry(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse hive: %w: %w", mberrors.ErrFormat, err)
	}
	if registry.OpenKey("") == nil {
		return nil, fmt.Errorf("hive has no root key: %w", mberrors.ErrFormat)
	}
	return &Hive{registry: registry, mount: splitPath(mount)}, nil
}

func (h *Hive) open(path string) *regparser.CM_KEY_NODE {
	parts := splitPath(path)
	for _, m := range h.mount {
		if len(parts) == 0 || !strings.EqualFold(parts[0], m) {
			return nil
		}
		parts = parts[1:]
	}

	key := h.registry.OpenKey("")
	for _, part := range parts {
		var next *regparser.CM_KEY_NODE
		for _, sub := range key.Subkeys() {
			if strings.EqualFold(cleanName(sub.Name()), part) {
				next = sub
				break
			}
		}
		if next == nil {
			return nil
		}
		key = next
	}
	return key
}

// Subkeys implements Reader.
func (h *Hive) Subkeys(path string) ([]string, error) {
	key := h.open(path)
	if key == nil {
		return nil, fmt.Errorf("registry key %s: %w", path, mberrors.ErrNotFound)
	}
	var names []string
	for _, sub := range key.Subkeys() {
		names = append(names, cleanName(sub.Name()))
	}
	return names, nil
}

// Value implements Reader.
func (h *Hive) Value(path, name string) (Value, bool) {
	key := h.open(path)
	if key == nil {
		return Value{}, false
	}
	for _, val := range key.Values() {
		if !strings.EqualFold(cleanName(val.ValueName()), name) {
			continue
		}
		vd := val.ValueData()
		v := Value{Type: ValueType(val.Type()), Data: vd.Data, Uint: vd.Uint64}
		v.String = cleanName(vd.String)
		for _, s := range vd.MultiSz {
			v.Strings = append(v.Strings, cleanName(s))
		}
		return v, true
	}
	return Value{}, false
}

func cleanName(s string) string {
	return strings.TrimRight(s, "\x00")
}
