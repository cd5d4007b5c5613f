package registry

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/menubuilder/go/menubuilder/internal/atomicfile"
)

// Association is the recorded state of one file-type association.
type Association struct {
	Extension    string `toml:"-"`
	MimeType     string `toml:"mime_type"`
	ProgID       string `toml:"prog_id"`
	AppName      string `toml:"app_name,omitempty"`
	OpenWithIcon string `toml:"open_with_icon,omitempty"`

	// Shadowed marks an extension whose mime/progId pair is launched
	// through another extension's entry.
	Shadowed bool `toml:"shadowed,omitempty"`
}

// Same reports whether the tracked fields of a and b match.
func (a Association) Same(b Association) bool {
	return a.MimeType == b.MimeType &&
		a.ProgID == b.ProgID &&
		a.AppName == b.AppName &&
		a.OpenWithIcon == b.OpenWithIcon &&
		a.Shadowed == b.Shadowed
}

type storeFile struct {
	MenuFiles            map[string]string      `toml:"menu_files"`
	FileOpenAssociations map[string]Association `toml:"file_open_associations"`
}

// Store persists the generated menu files and file associations.
type Store struct {
	path   string
	logger hclog.Logger
	data   storeFile
	dirty  bool
}

// OpenStore loads the store at path. A missing file is an empty store.
func OpenStore(path string, logger hclog.Logger) (*Store, error) {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	s := &Store{path: path, logger: logger}

	if _, err := toml.DecodeFile(path, &s.data); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to read state %s: %w", path, err)
	}
	if s.data.MenuFiles == nil {
		s.data.MenuFiles = make(map[string]string)
	}
	if s.data.FileOpenAssociations == nil {
		s.data.FileOpenAssociations = make(map[string]Association)
	}
	for ext, a := range s.data.FileOpenAssociations {
		a.Extension = ext
		s.data.FileOpenAssociations[ext] = a
	}
	logger.Debug("📖 Loaded state", "path", path,
		"menu_files", len(s.data.MenuFiles),
		"associations", len(s.data.FileOpenAssociations))
	return s, nil
}

// Path returns the backing file.
func (s *Store) Path() string {
	return s.path
}

// Save writes the store atomically if anything changed.
func (s *Store) Save() error {
	if !s.dirty {
		return nil
	}
	var buf bytes.Buffer
	if err := toml.NewEncoder(&buf).Encode(s.data); err != nil {
		return fmt.Errorf("failed to encode state: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0755); err != nil {
		return fmt.Errorf("failed to create state directory: %w", err)
	}
	if err := atomicfile.WriteFile(s.path, buf.Bytes(), 0644, s.logger); err != nil {
		return fmt.Errorf("failed to save state: %w", err)
	}
	s.dirty = false
	s.logger.Debug("💾 Saved state", "path", s.path)
	return nil
}

// ==================== Menu Files ====================

// SetMenuFile records that artifact was generated from the shortcut source.
func (s *Store) SetMenuFile(artifact, source string) {
	if s.data.MenuFiles[artifact] == source {
		return
	}
	s.data.MenuFiles[artifact] = source
	s.dirty = true
}

// RemoveMenuFile forgets artifact.
func (s *Store) RemoveMenuFile(artifact string) {
	if _, ok := s.data.MenuFiles[artifact]; !ok {
		return
	}
	delete(s.data.MenuFiles, artifact)
	s.dirty = true
}

// MenuFileSource returns the shortcut an artifact came from.
func (s *Store) MenuFileSource(artifact string) (string, bool) {
	source, ok := s.data.MenuFiles[artifact]
	return source, ok
}

// MenuFiles lists the recorded artifacts in sorted order.
func (s *Store) MenuFiles() []string {
	artifacts := make([]string, 0, len(s.data.MenuFiles))
	for artifact := range s.data.MenuFiles {
		artifacts = append(artifacts, artifact)
	}
	sort.Strings(artifacts)
	return artifacts
}

// ==================== Associations ====================

// Association returns the recorded association for ext.
func (s *Store) Association(ext string) (Association, bool) {
	ext = strings.ToLower(ext)
	a, ok := s.data.FileOpenAssociations[ext]
	if ok {
		a.Extension = ext
	}
	return a, ok
}

// SetAssociation records a.
func (s *Store) SetAssociation(a Association) {
	a.Extension = strings.ToLower(a.Extension)
	if old, ok := s.data.FileOpenAssociations[a.Extension]; ok && old.Same(a) {
		return
	}
	s.data.FileOpenAssociations[a.Extension] = a
	s.dirty = true
}

// RemoveAssociation forgets ext.
func (s *Store) RemoveAssociation(ext string) {
	ext = strings.ToLower(ext)
	if _, ok := s.data.FileOpenAssociations[ext]; !ok {
		return
	}
	delete(s.data.FileOpenAssociations, ext)
	s.dirty = true
}

// AssociationExtensions lists the recorded extensions in sorted order.
func (s *Store) AssociationExtensions() []string {
	exts := make([]string, 0, len(s.data.FileOpenAssociations))
	for ext := range s.data.FileOpenAssociations {
		exts = append(exts, ext)
	}
	sort.Strings(exts)
	return exts
}
