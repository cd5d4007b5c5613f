// Package iconcache records which icon conversions are already up to date.
package iconcache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/provide-io/menubuilder/go/menubuilder/internal/atomicfile"
)

// Marker describes one completed icon conversion.
type Marker struct {
	Timestamp     time.Time `json:"timestamp"`
	Identifier    string    `json:"identifier"`
	Source        string    `json:"source"`
	Index         int       `json:"index"`
	Name          string    `json:"name"`
	SourceSize    int64     `json:"source_size"`
	SourceModTime time.Time `json:"source_mod_time"`
	Outputs       []string  `json:"outputs"`
}

// Cache stores markers under a single directory.
type Cache struct {
	Dir string
}

// New returns a cache rooted at dir.
func New(dir string) *Cache {
	return &Cache{Dir: dir}
}

func (c *Cache) markerPath(identifier string) string {
	return filepath.Join(c.Dir, identifier+".converted.json")
}

// IsCurrent reports whether identifier was converted from the same source
// file, unchanged since, and all of its outputs still exist.
func (c *Cache) IsCurrent(identifier, source string, index int) bool {
	_, ok := c.Lookup(identifier, source, index)
	return ok
}

// Lookup returns the icon name recorded for a current conversion.
func (c *Cache) Lookup(identifier, source string, index int) (string, bool) {
	data, err := os.ReadFile(c.markerPath(identifier))
	if err != nil {
		return "", false
	}

	var marker Marker
	if err := json.Unmarshal(data, &marker); err != nil {
		return "", false
	}
	if !marker.current(source, index) {
		return "", false
	}
	return marker.Name, true
}

func (m *Marker) current(source string, index int) bool {
	if m.Source != source || m.Index != index {
		return false
	}

	info, err := os.Stat(source)
	if err != nil {
		return false
	}
	if info.Size() != m.SourceSize || !info.ModTime().Equal(m.SourceModTime) {
		return false
	}

	if len(m.Outputs) == 0 {
		return false
	}
	for _, output := range m.Outputs {
		if _, err := os.Stat(output); err != nil {
			return false
		}
	}
	return true
}

// MarkConverted records a successful conversion of source into outputs,
// published under name.
func (c *Cache) MarkConverted(identifier, source string, index int, name string, outputs []string) error {
	info, err := os.Stat(source)
	if err != nil {
		return fmt.Errorf("failed to stat icon source: %w", err)
	}

	marker := Marker{
		Timestamp:     time.Now().UTC(),
		Identifier:    identifier,
		Source:        source,
		Index:         index,
		Name:          name,
		SourceSize:    info.Size(),
		SourceModTime: info.ModTime(),
		Outputs:       outputs,
	}

	data, err := json.MarshalIndent(marker, "", "  ")
	if err != nil {
		return err
	}

	if err := os.MkdirAll(c.Dir, 0755); err != nil {
		return fmt.Errorf("failed to create icon cache: %w", err)
	}
	return atomicfile.WriteFile(c.markerPath(identifier), data, 0644, nil)
}

// Invalidate removes the marker for identifier, if any.
func (c *Cache) Invalidate(identifier string) error {
	err := os.Remove(c.markerPath(identifier))
	if err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
