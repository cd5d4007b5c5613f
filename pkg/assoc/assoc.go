// Package assoc mirrors the prefix's file-type classes into the desktop's
// MIME and "open with" registrations, touching only what changed.
package assoc

import (
	"fmt"
	"strings"

	"github.com/hashicorp/go-hclog"

	"github.com/provide-io/menubuilder/go/menubuilder/pkg/platform"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/registry"
)

// Source answers file-type questions; *registry.ClassesSource implements it.
type Source interface {
	Extensions() ([]string, error)
	ProgID(ext string) string
	ContentType(ext string) string
	Executable(ext string) string
	FriendlyAppName(ext string) string
	FriendlyDocName(ext string) string
}

// IconFunc converts the icon of an executable and returns the name
// launchers refer to it by, or "" when there is none.
type IconFunc func(ext, executable string) string

var skippedExtensions = map[string]bool{
	".com": true,
	".exe": true,
	".msi": true,
}

var knownMimeTypes = map[string]string{
	".lnk": "application/x-ms-shortcut",
}

// Synchronizer reconciles Source with the backend and the persisted store.
type Synchronizer struct {
	Source  Source
	Store   *registry.Store
	Backend platform.Backend
	Ctx     *platform.Context
	Logger  hclog.Logger

	// Icons is optional.
	Icons IconFunc
}

// Sync writes new or changed associations, removes vanished ones and
// reports whether anything on disk changed.
func (s *Synchronizer) Sync() (bool, error) {
	logger := s.Logger
	if logger == nil {
		logger = hclog.NewNullLogger()
	}

	hooks := s.Backend.Associations()
	if hooks == nil {
		logger.Debug("⏭️ Backend has no file-type support", "backend", s.Backend.Name())
		return false, nil
	}

	exts, err := s.Source.Extensions()
	if err != nil {
		return false, fmt.Errorf("failed to list extensions: %w", err)
	}

	if err := hooks.RefreshInit(s.Ctx); err != nil {
		return false, fmt.Errorf("failed to initialise association refresh: %w", err)
	}

	changed := false
	present := make(map[string]struct{}, len(exts))
	seen := make(map[string]struct{})

	for _, ext := range exts {
		ext = strings.ToLower(ext)
		if skippedExtensions[ext] {
			continue
		}

		progID := s.Source.ProgID(ext)
		executable := s.Source.Executable(ext)
		if progID == "" || executable == "" {
			logger.Trace("⏭️ Skipping extension without open command", "ext", ext)
			continue
		}
		present[ext] = struct{}{}

		mime, wrote, err := s.resolveMimeType(hooks, ext)
		if err != nil {
			return changed, err
		}
		changed = changed || wrote

		a := registry.Association{
			Extension: ext,
			MimeType:  mime,
			ProgID:    progID,
			AppName:   s.Source.FriendlyAppName(ext),
		}

		// One launcher per mime/progId pair. Later extensions are recorded
		// as shadowed so they get their own entry once the owner goes away.
		key := mime + "=>" + progID
		if _, dup := seen[key]; dup {
			logger.Trace("⏭️ Duplicate association", "ext", ext, "key", key)
			a.Shadowed = true
			s.Store.SetAssociation(a)
			continue
		}
		seen[key] = struct{}{}

		if s.Icons != nil {
			a.OpenWithIcon = s.Icons(ext, executable)
		}

		if old, ok := s.Store.Association(ext); ok && old.Same(a) {
			continue
		}

		if err := hooks.WriteAssociationEntry(s.Ctx, &a); err != nil {
			return changed, fmt.Errorf("failed to write association for %s: %w", ext, err)
		}
		s.Store.SetAssociation(a)
		changed = true
		logger.Info("🔗 Updated association", "ext", ext, "mime", mime, "progid", progID)
	}

	for _, ext := range s.Store.AssociationExtensions() {
		if _, ok := present[ext]; ok {
			continue
		}
		if err := hooks.RemoveFileTypeAssociation(s.Ctx, ext); err != nil {
			return changed, fmt.Errorf("failed to remove association for %s: %w", ext, err)
		}
		s.Store.RemoveAssociation(ext)
		changed = true
		logger.Info("🗑️ Removed association", "ext", ext)
	}

	if err := s.Store.Save(); err != nil {
		return changed, fmt.Errorf("failed to save associations: %w", err)
	}

	if err := hooks.RefreshCleanup(s.Ctx, changed); err != nil {
		return changed, fmt.Errorf("failed to finish association refresh: %w", err)
	}
	return changed, nil
}

// resolveMimeType returns the MIME type for ext and whether a new MIME
// registration had to be written for it.
func (s *Synchronizer) resolveMimeType(hooks platform.AssociationHooks, ext string) (string, bool, error) {
	if mime, ok := hooks.MimeTypeForExtension(s.Ctx, ext); ok {
		return mime, false, nil
	}

	mime := s.Source.ContentType(ext)
	if mime == "" {
		mime = knownMimeTypes[ext]
	}
	if mime == "" {
		mime = "application/x-wine-extension-" + strings.TrimPrefix(ext, ".")
	}

	if old, ok := s.Store.Association(ext); ok && old.MimeType == mime {
		return mime, false, nil
	}

	if err := hooks.WriteMimeTypeEntry(s.Ctx, ext, mime, s.Source.FriendlyDocName(ext)); err != nil {
		return "", false, fmt.Errorf("failed to write MIME type for %s: %w", ext, err)
	}
	return mime, true, nil
}
