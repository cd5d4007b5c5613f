package xdg

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/provide-io/menubuilder/go/menubuilder/internal/atomicfile"
	"github.com/provide-io/menubuilder/go/menubuilder/internal/xdgdirs"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/platform"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/registry"
)

const sharedMimeInfoNS = "http://www.freedesktop.org/standards/shared-mime-info"

type mimeHooks struct{}

// glob is one "mime/type:pattern" line from a globs file.
type glob struct {
	mime    string
	pattern string
}

// RefreshInit loads the installed MIME globs.
func (mimeHooks) RefreshInit(ctx *platform.Context) error {
	s := stateOf(ctx)
	s.globs = loadGlobs(ctx, globDirs(s.dataHome))
	s.loaded = true
	return nil
}

// RefreshCleanup rebuilds the MIME and desktop caches after changes.
func (mimeHooks) RefreshCleanup(ctx *platform.Context, changed bool) error {
	if !changed {
		return nil
	}
	tools := [][]string{
		{"update-mime-database", ctx.Dir(DirMime)},
		{"update-desktop-database", ctx.Dir(DirApplications)},
	}
	for _, tool := range tools {
		if err := ctx.Runner.Run(tool[0], tool[1:]...); err != nil {
			ctx.Logger.Warn("⚠️ Cache refresh failed", "tool", tool[0], "error", err)
			continue
		}
		ctx.Logger.Debug("🔄 Refreshed cache", "tool", tool[0])
	}
	return nil
}

// MimeTypeForExtension matches "*<ext>" against the globs, exactly first and
// then ignoring case.
func (mimeHooks) MimeTypeForExtension(ctx *platform.Context, ext string) (string, bool) {
	s := stateOf(ctx)
	if !s.loaded {
		s.globs = loadGlobs(ctx, globDirs(s.dataHome))
		s.loaded = true
	}

	pattern := "*" + ext
	for _, g := range s.globs {
		if g.pattern == pattern {
			return g.mime, true
		}
	}
	for _, g := range s.globs {
		if strings.EqualFold(g.pattern, pattern) {
			return g.mime, true
		}
	}
	return "", false
}

func globDirs(dataHome string) []string {
	dirs := []string{dataHome}
	return append(dirs, xdgdirs.DataDirs()...)
}

func loadGlobs(ctx *platform.Context, dataDirs []string) []glob {
	var globs []glob
	for _, dir := range dataDirs {
		if dir == "" {
			continue
		}
		path := filepath.Join(dir, "mime", "globs")
		f, err := os.Open(path)
		if err != nil {
			continue
		}
		n := len(globs)
		globs = append(globs, parseGlobs(f)...)
		f.Close()
		ctx.Logger.Trace("🔍 Loaded MIME globs", "path", path, "count", len(globs)-n)
	}
	return globs
}

func parseGlobs(r io.Reader) []glob {
	var globs []glob
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || line[0] == '#' {
			continue
		}
		mime, pattern, ok := strings.Cut(line, ":")
		if !ok {
			continue
		}
		globs = append(globs, glob{mime: mime, pattern: pattern})
	}
	return globs
}

// ==================== Registrations ====================

type mimeInfoXML struct {
	XMLName xml.Name      `xml:"mime-info"`
	Xmlns   string        `xml:"xmlns,attr"`
	Types   []mimeTypeXML `xml:"mime-type"`
}

type mimeTypeXML struct {
	Type    string  `xml:"type,attr"`
	Glob    globXML `xml:"glob"`
	Comment string  `xml:"comment,omitempty"`
}

type globXML struct {
	Pattern string `xml:"pattern,attr"`
}

func extName(ext string) string {
	return strings.ToLower(strings.TrimPrefix(ext, "."))
}

func (mimeHooks) mimePackagePath(ctx *platform.Context, ext string) string {
	return filepath.Join(ctx.Dir(DirMimePackages), "x-wine-extension-"+extName(ext)+".xml")
}

func (mimeHooks) associationPath(ctx *platform.Context, ext string) string {
	return filepath.Join(ctx.Dir(DirApplications), "wine-extension-"+extName(ext)+".desktop")
}

// WriteMimeTypeEntry registers mime for files ending in ext.
func (h mimeHooks) WriteMimeTypeEntry(ctx *platform.Context, ext, mime, comment string) error {
	info := mimeInfoXML{
		Xmlns: sharedMimeInfoNS,
		Types: []mimeTypeXML{{
			Type:    mime,
			Glob:    globXML{Pattern: "*." + extName(ext)},
			Comment: comment,
		}},
	}

	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(info); err != nil {
		return fmt.Errorf("failed to encode MIME package for %s: %w", ext, err)
	}
	buf.WriteByte('\n')

	path := h.mimePackagePath(ctx, ext)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	if err := atomicfile.WriteFile(path, buf.Bytes(), 0644, ctx.Logger); err != nil {
		return fmt.Errorf("failed to write MIME package %s: %w", path, err)
	}
	ctx.Activate()
	ctx.Logger.Debug("📝 Wrote MIME type", "ext", ext, "mime", mime)
	return nil
}

// WriteAssociationEntry writes the hidden launcher that opens a.MimeType
// through the association's progId.
func (h mimeHooks) WriteAssociationEntry(ctx *platform.Context, a *registry.Association) error {
	e := newEntry("Application")
	e.Set("Name", a.AppName)
	e.Set("MimeType", a.MimeType+";")
	e.SetRaw("Exec", execLine(ctx, "start", "/ProgIDOpen", a.ProgID)+" %f")
	e.Set("NoDisplay", "true")
	e.Set("StartupNotify", "true")
	if a.OpenWithIcon != "" {
		e.Set("Icon", a.OpenWithIcon)
	}

	path := h.associationPath(ctx, a.Extension)
	if err := e.Write(path, 0644, ctx.Logger); err != nil {
		return fmt.Errorf("failed to write association %s: %w", path, err)
	}
	ctx.Activate()
	ctx.Logger.Debug("🔗 Wrote association", "ext", a.Extension, "mime", a.MimeType, "progid", a.ProgID)
	return nil
}

// RemoveFileTypeAssociation deletes the MIME package and launcher for ext.
func (h mimeHooks) RemoveFileTypeAssociation(ctx *platform.Context, ext string) error {
	for _, path := range []string{h.mimePackagePath(ctx, ext), h.associationPath(ctx, ext)} {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", path, err)
		}
	}
	ctx.Logger.Debug("🗑️ Removed association", "ext", ext)
	return nil
}

var _ platform.AssociationHooks = mimeHooks{}
