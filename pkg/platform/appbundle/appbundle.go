// Package appbundle writes macOS application bundles that launch Windows
// programs through wine.
package appbundle

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"howett.net/plist"

	"github.com/provide-io/menubuilder/go/menubuilder/internal/atomicfile"
	"github.com/provide-io/menubuilder/go/menubuilder/internal/xdgdirs"
	mberrors "github.com/provide-io/menubuilder/go/menubuilder/pkg/errors"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/icon"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/platform"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/prefix"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/shortcut"
)

// Directory roles stored in platform.Context.Dirs.
const (
	DirDesktop = "desktop"
	DirMenu    = "menu"
	DirIcons   = "icons"
)

const bundleIDPrefix = "org.winehq.wine."

// Backend implements platform.Backend for macOS.
type Backend struct{}

func init() {
	platform.Register(Backend{})
}

// Name returns "appbundle".
func (Backend) Name() string {
	return "appbundle"
}

// Init resolves ~/Applications/Wine, ~/Desktop and the icon cache.
func (Backend) Init(env *prefix.Prefix) (*platform.Context, error) {
	home := xdgdirs.Home()
	if home == "" {
		return nil, fmt.Errorf("failed to resolve bundle directories: %w", mberrors.ErrNoHome)
	}

	ctx := platform.NewContext(env, nil)
	ctx.Dirs[DirDesktop] = filepath.Join(home, "Desktop")
	ctx.Dirs[DirMenu] = filepath.Join(home, "Applications", "Wine")
	ctx.Dirs[DirIcons] = filepath.Join(xdgdirs.CacheRoot(), "icons")

	if err := xdgdirs.Ensure(
		xdgdirs.DirectorySpec{Path: ctx.Dirs[DirDesktop], Mode: 0755},
		xdgdirs.DirectorySpec{Path: ctx.Dirs[DirMenu], Mode: 0755},
		xdgdirs.DirectorySpec{Path: ctx.Dirs[DirIcons], Mode: 0700},
	); err != nil {
		return nil, fmt.Errorf("failed to create bundle directories: %w", err)
	}
	return ctx, nil
}

// BuildDesktopLink writes <Name>.app onto the desktop.
func (b Backend) BuildDesktopLink(ctx *platform.Context, link *platform.Link) error {
	return b.build(ctx, ctx.Dir(DirDesktop), link)
}

// BuildMenuLink writes <Name>.app under ~/Applications/Wine, nested by the
// shortcut's menu folders.
func (b Backend) BuildMenuLink(ctx *platform.Context, link *platform.Link) error {
	dir := filepath.Join(append([]string{ctx.Dir(DirMenu)}, link.MenuPath...)...)
	return b.build(ctx, dir, link)
}

func (Backend) build(ctx *platform.Context, dir string, link *platform.Link) error {
	path := filepath.Join(dir, link.Name+".app")
	ctx.Logger.Debug("📦 Writing app bundle", "path", path)

	// A stale bundle may hold files the new one does not write.
	if err := os.RemoveAll(path); err != nil {
		return fmt.Errorf("failed to replace bundle %s: %w", path, err)
	}
	if err := writeBundle(ctx, path, link); err != nil {
		if rmErr := os.RemoveAll(path); rmErr != nil {
			ctx.Logger.Warn("⚠️ Failed to remove partial bundle", "path", path, "error", rmErr)
		}
		return fmt.Errorf("failed to write bundle %s: %w", path, err)
	}

	ctx.Record(path, link.Source)
	ctx.Logger.Info("✅ Created app bundle", "path", path)
	return nil
}

// ==================== Bundle layout ====================

func writeBundle(ctx *platform.Context, path string, link *platform.Link) error {
	contents := filepath.Join(path, "Contents")
	macOS := filepath.Join(contents, "MacOS")
	resources := filepath.Join(contents, "Resources")
	lproj := filepath.Join(resources, "English.lproj")
	for _, dir := range []string{macOS, lproj} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return err
		}
	}

	iconFile := ""
	if link.Icon != "" {
		iconFile = link.Name + ".icns"
		if err := copyFile(link.Icon, filepath.Join(resources, iconFile)); err != nil {
			return fmt.Errorf("failed to copy icon: %w", err)
		}
	}

	info, err := infoPlist(link.Name, iconFile)
	if err != nil {
		return fmt.Errorf("failed to encode Info.plist: %w", err)
	}

	files := []struct {
		path string
		data []byte
		mode os.FileMode
	}{
		{filepath.Join(contents, "Info.plist"), info, 0644},
		{filepath.Join(contents, "PkgInfo"), []byte("APPL????"), 0644},
		{filepath.Join(macOS, link.Name), launcherScript(ctx, link), ctx.LauncherMode},
		{filepath.Join(lproj, "InfoPlist.strings"), infoPlistStrings(link.Name), 0644},
	}
	for _, f := range files {
		if err := atomicfile.WriteFile(f.path, f.data, f.mode, ctx.Logger); err != nil {
			return err
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(dst, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0644)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

// bundleID derives a reverse-DNS identifier from the bundle name.
func bundleID(name string) string {
	id := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '.', r == '-':
			return r
		}
		return '-'
	}, name)
	return bundleIDPrefix + id
}

// bundleInfo is the Info.plist dictionary of a generated bundle.
type bundleInfo struct {
	DevelopmentRegion     string `plist:"CFBundleDevelopmentRegion"`
	Executable            string `plist:"CFBundleExecutable"`
	IconFile              string `plist:"CFBundleIconFile,omitempty"`
	Identifier            string `plist:"CFBundleIdentifier"`
	InfoDictionaryVersion string `plist:"CFBundleInfoDictionaryVersion"`
	Name                  string `plist:"CFBundleName"`
	PackageType           string `plist:"CFBundlePackageType"`
	Signature             string `plist:"CFBundleSignature"`
	Version               string `plist:"CFBundleVersion"`
}

func infoPlist(name, iconFile string) ([]byte, error) {
	return plist.MarshalIndent(bundleInfo{
		DevelopmentRegion:     "English",
		Executable:            name,
		IconFile:              iconFile,
		Identifier:            bundleID(name),
		InfoDictionaryVersion: "6.0",
		Name:                  name,
		PackageType:           "APPL",
		Signature:             "????",
		Version:               "1.0",
	}, plist.XMLFormat, "\t")
}

func infoPlistStrings(name string) []byte {
	quoted := strings.NewReplacer(`\`, `\\`, `"`, `\"`).Replace(name)
	return []byte(fmt.Sprintf("CFBundleName = \"%s\";\nCFBundleDisplayName = \"%s\";\n", quoted, quoted))
}

// launcherScript runs the link's command through wine with the prefix set.
func launcherScript(ctx *platform.Context, link *platform.Link) []byte {
	var b strings.Builder
	b.WriteString("#!/bin/sh\n")
	if link.WorkDir != "" {
		fmt.Fprintf(&b, "cd %s || exit 1\n", shortcut.EscapeShell(link.WorkDir))
	}
	fmt.Fprintf(&b, "exec env WINEPREFIX=%s %s",
		shortcut.EscapeShell(ctx.Prefix.Root()),
		shortcut.EscapeArgs(ctx.Wine, shortcut.EscapeShell))
	if len(link.Args) > 0 {
		b.WriteByte(' ')
		b.WriteString(shortcut.EscapeArgs(link.Args, shortcut.EscapeShell))
	}
	b.WriteString(" \"$@\"\n")
	return []byte(b.String())
}

// ==================== Icons ====================

// WriteIcon converts the icon to ICNS in the icon cache and returns its path.
func (Backend) WriteIcon(ctx *platform.Context, req *platform.IconRequest) (string, error) {
	path := filepath.Join(ctx.Dir(DirIcons), req.Identifier+".icns")
	conv := icon.NewConverter(ctx.Logger)
	if err := conv.WriteFile(path, req.Source, conv.ConvertToICNS); err != nil {
		return "", fmt.Errorf("failed to write icon %s: %w", req.Identifier, err)
	}
	req.Outputs = append(req.Outputs, path)
	ctx.Activate()
	return path, nil
}

// Associations returns nil; bundles do not register file types.
func (Backend) Associations() platform.AssociationHooks {
	return nil
}
