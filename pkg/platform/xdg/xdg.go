// Package xdg writes freedesktop.org launchers, menus, icons and MIME
// registrations under the XDG base directories.
package xdg

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/provide-io/menubuilder/go/menubuilder/internal/xdgdirs"
	mberrors "github.com/provide-io/menubuilder/go/menubuilder/pkg/errors"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/icon"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/platform"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/prefix"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/shortcut"
)

// Directory roles stored in platform.Context.Dirs.
const (
	DirDesktop      = "desktop"
	DirApplications = "applications"
	DirWineApps     = "wineapps"
	DirDirectories  = "directories"
	DirMenus        = "menus"
	DirMime         = "mime"
	DirMimePackages = "mimepackages"
	DirIcons        = "icons"
)

// Backend implements platform.Backend for freedesktop desktops.
type Backend struct{}

func init() {
	platform.Register(Backend{})
}

// Name returns "xdg".
func (Backend) Name() string {
	return "xdg"
}

// Init resolves the XDG output directories and creates them.
func (Backend) Init(env *prefix.Prefix) (*platform.Context, error) {
	dataHome := xdgdirs.DataHome()
	configHome := xdgdirs.ConfigHome()
	desktop := xdgdirs.DesktopDir()
	if dataHome == "" || configHome == "" || desktop == "" {
		return nil, fmt.Errorf("failed to resolve XDG directories: %w", mberrors.ErrNoHome)
	}

	ctx := platform.NewContext(env, nil)
	ctx.Dirs[DirDesktop] = desktop
	ctx.Dirs[DirApplications] = filepath.Join(dataHome, "applications")
	ctx.Dirs[DirWineApps] = filepath.Join(dataHome, "applications", "wine")
	ctx.Dirs[DirDirectories] = filepath.Join(dataHome, "desktop-directories")
	ctx.Dirs[DirMenus] = filepath.Join(configHome, "menus", "applications-merged")
	ctx.Dirs[DirMime] = filepath.Join(dataHome, "mime")
	ctx.Dirs[DirMimePackages] = filepath.Join(dataHome, "mime", "packages")
	ctx.Dirs[DirIcons] = filepath.Join(dataHome, "icons", "hicolor")
	ctx.Data = &state{dataHome: dataHome}

	var specs []xdgdirs.DirectorySpec
	for _, role := range []string{DirDesktop, DirWineApps, DirDirectories, DirMenus, DirMimePackages, DirIcons} {
		specs = append(specs, xdgdirs.DirectorySpec{Path: ctx.Dirs[role], Mode: 0755})
	}
	if err := xdgdirs.Ensure(specs...); err != nil {
		return nil, fmt.Errorf("failed to create XDG directories: %w", err)
	}
	return ctx, nil
}

// state is the xdg-private part of a context.
type state struct {
	dataHome string
	globs    []glob
	loaded   bool
}

func stateOf(ctx *platform.Context) *state {
	if s, ok := ctx.Data.(*state); ok {
		return s
	}
	s := &state{dataHome: xdgdirs.DataHome()}
	ctx.Data = s
	return s
}

// ==================== Launchers ====================

// BuildDesktopLink writes <desktop>/<Name>.desktop.
func (Backend) BuildDesktopLink(ctx *platform.Context, link *platform.Link) error {
	path := filepath.Join(ctx.Dir(DirDesktop), link.Name+".desktop")
	ctx.Logger.Debug("🖥️ Writing desktop launcher", "path", path)
	if err := writeLauncher(ctx, path, link, ctx.LauncherMode); err != nil {
		return err
	}
	ctx.Record(path, link.Source)
	return nil
}

// BuildMenuLink writes the launcher under applications/wine, one
// .directory file per menu folder and the merged .menu file.
func (Backend) BuildMenuLink(ctx *platform.Context, link *platform.Link) error {
	parts := append(append([]string{}, link.MenuPath...), link.Name)
	path := filepath.Join(append([]string{ctx.Dir(DirWineApps)}, parts...)...) + ".desktop"
	id := "wine-" + strings.Join(parts, "-")

	ctx.Logger.Debug("📋 Writing menu launcher", "path", path, "id", id)
	if err := writeLauncher(ctx, path, link, 0644); err != nil {
		return err
	}

	menuPath := filepath.Join(ctx.Dir(DirMenus), id+".menu")
	if err := writeMenuFile(ctx, menuPath, link.MenuPath, id+".desktop"); err != nil {
		os.Remove(path)
		return err
	}

	ctx.Record(path, link.Source)
	ctx.Record(menuPath, link.Source)
	return nil
}

func writeLauncher(ctx *platform.Context, path string, link *platform.Link, mode os.FileMode) error {
	entry := newEntry("Application")
	entry.Set("Name", link.Name)
	entry.SetRaw("Exec", execLine(ctx, link.Args...))
	entry.Set("StartupNotify", "true")
	if link.Description != "" {
		entry.Set("Comment", link.Description)
	}
	if link.WorkDir != "" {
		entry.Set("Path", link.WorkDir)
	}
	if link.Icon != "" {
		entry.Set("Icon", link.Icon)
	}
	if link.WMClass != "" {
		entry.Set("StartupWMClass", link.WMClass)
	}

	if err := entry.Write(path, mode, ctx.Logger); err != nil {
		return fmt.Errorf("failed to write launcher %s: %w", path, err)
	}
	return nil
}

// execLine builds the Exec= value running args through wine in the prefix.
func execLine(ctx *platform.Context, args ...string) string {
	var b strings.Builder
	b.WriteString("env WINEPREFIX=\"")
	b.WriteString(ctx.Prefix.Root())
	b.WriteString("\" ")
	b.WriteString(shortcut.EscapeArgs(ctx.Wine, shortcut.EscapeExecArg))
	if len(args) > 0 {
		b.WriteByte(' ')
		b.WriteString(shortcut.EscapeArgs(args, shortcut.EscapeExecArg))
	}
	return b.String()
}

// ==================== Icons ====================

// WriteIcon writes one PNG per icon size into the hicolor theme and returns
// the theme icon name.
func (Backend) WriteIcon(ctx *platform.Context, req *platform.IconRequest) (string, error) {
	root := ctx.Dir(DirIcons)
	pathFor := func(size int) string {
		dim := fmt.Sprintf("%dx%d", size, size)
		return filepath.Join(root, dim, "apps", req.Identifier+".png")
	}

	files, err := icon.NewConverter(ctx.Logger).ConvertToPNGSet(req.Source, pathFor)
	if err != nil {
		return "", fmt.Errorf("failed to write icon %s: %w", req.Identifier, err)
	}
	for _, f := range files {
		req.Outputs = append(req.Outputs, f.Path)
	}
	ctx.Activate()
	ctx.Logger.Debug("🎨 Wrote theme icon", "name", req.Identifier, "sizes", len(files))
	return req.Identifier, nil
}

// Associations returns the MIME registration hooks.
func (Backend) Associations() platform.AssociationHooks {
	return mimeHooks{}
}
