package xdg

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/menubuilder/go/menubuilder/internal/atomicfile"
)

// entry is a [Desktop Entry] group with keys kept in insertion order.
type entry struct {
	keys   []string
	values map[string]string
}

func newEntry(kind string) *entry {
	e := &entry{values: make(map[string]string)}
	e.SetRaw("Type", kind)
	return e
}

// Set stores value with desktop-entry string escaping applied.
func (e *entry) Set(key, value string) {
	e.SetRaw(key, escapeString(value))
}

// SetRaw stores value as-is.
func (e *entry) SetRaw(key, value string) {
	if _, ok := e.values[key]; !ok {
		e.keys = append(e.keys, key)
	}
	e.values[key] = value
}

func (e *entry) String() string {
	var b strings.Builder
	b.WriteString("[Desktop Entry]\n")
	for _, key := range e.keys {
		b.WriteString(key)
		b.WriteByte('=')
		b.WriteString(e.values[key])
		b.WriteByte('\n')
	}
	return b.String()
}

// Write commits the entry to path, creating parent directories.
func (e *entry) Write(path string, mode os.FileMode, logger hclog.Logger) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	return atomicfile.WriteFile(path, []byte(e.String()), mode, logger)
}

var stringEscaper = strings.NewReplacer(
	`\`, `\\`,
	"\n", `\n`,
	"\t", `\t`,
	"\r", `\r`,
)

func escapeString(value string) string {
	return stringEscaper.Replace(value)
}
