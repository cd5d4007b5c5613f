package xdg

import (
	"bufio"
	"bytes"
	"encoding/xml"
	"image"
	"image/color"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tc-hib/winres"

	"github.com/provide-io/menubuilder/go/menubuilder/pkg/icon"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/platform"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/prefix"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/registry"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/shortcut"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/utils/shellparse"
)

type recordingRunner struct {
	calls []string
}

func (r *recordingRunner) Run(name string, args ...string) error {
	r.calls = append(r.calls, name)
	return nil
}

func newTestContext(t *testing.T) (*platform.Context, string) {
	t.Helper()
	root := t.TempDir()
	t.Setenv("HOME", root)
	t.Setenv("XDG_DATA_HOME", filepath.Join(root, "data"))
	t.Setenv("XDG_CONFIG_HOME", filepath.Join(root, "config"))
	t.Setenv("XDG_DESKTOP_DIR", filepath.Join(root, "Desktop"))
	t.Setenv("XDG_DATA_DIRS", filepath.Join(root, "system"))

	ctx, err := Backend{}.Init(prefix.New(filepath.Join(root, "wineprefix"), "tester"))
	require.NoError(t, err)
	ctx.Logger = hclog.New(&hclog.LoggerOptions{Name: "xdg-test", Level: hclog.Trace})
	ctx.Runner = &recordingRunner{}

	store, err := registry.OpenStore(filepath.Join(root, "state.toml"), ctx.Logger)
	require.NoError(t, err)
	ctx.Store = store
	return ctx, root
}

func readEntry(t *testing.T, path string) map[string]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	values := make(map[string]string)
	scanner := bufio.NewScanner(bytes.NewReader(data))
	require.True(t, scanner.Scan())
	require.Equal(t, "[Desktop Entry]", scanner.Text())
	for scanner.Scan() {
		key, value, ok := strings.Cut(scanner.Text(), "=")
		require.True(t, ok, "line %q", scanner.Text())
		values[key] = value
	}
	return values
}

func TestInit_CreatesDirectories(t *testing.T) {
	ctx, _ := newTestContext(t)
	for _, role := range []string{DirDesktop, DirWineApps, DirDirectories, DirMenus, DirMimePackages, DirIcons} {
		info, err := os.Stat(ctx.Dir(role))
		require.NoError(t, err, role)
		assert.True(t, info.IsDir(), role)
	}
	assert.Equal(t, platform.StateInitialized, ctx.State())
}

func TestBuildDesktopLink(t *testing.T) {
	ctx, root := newTestContext(t)
	link := &platform.Link{
		Name:        "My App",
		Location:    shortcut.Desktop,
		Source:      `C:\users\tester\Desktop\My App.lnk`,
		Args:        []string{`C:\Program Files\App\app.exe`, "--mode=fast", "it's"},
		WorkDir:     "/opt/app",
		Description: "Line one\nline two",
		Icon:        "1A2B_app.0",
		WMClass:     "app.exe",
	}
	require.NoError(t, Backend{}.BuildDesktopLink(ctx, link))

	path := filepath.Join(root, "Desktop", "My App.desktop")
	values := readEntry(t, path)
	assert.Equal(t, "Application", values["Type"])
	assert.Equal(t, "My App", values["Name"])
	assert.Equal(t, "true", values["StartupNotify"])
	assert.Equal(t, `Line one\nline two`, values["Comment"])
	assert.Equal(t, "/opt/app", values["Path"])
	assert.Equal(t, "1A2B_app.0", values["Icon"])
	assert.Equal(t, "app.exe", values["StartupWMClass"])

	args, err := shellparse.SplitExec(values["Exec"])
	require.NoError(t, err)
	want := append([]string{"env", "WINEPREFIX=" + ctx.Prefix.Root(), "wine"}, link.Args...)
	assert.Equal(t, want, args)

	src, ok := ctx.Store.MenuFileSource(path)
	assert.True(t, ok)
	assert.Equal(t, link.Source, src)
	assert.Equal(t, platform.StateActive, ctx.State())
}

func TestBuildMenuLink(t *testing.T) {
	ctx, root := newTestContext(t)
	link := &platform.Link{
		Name:     "App",
		Location: shortcut.StartMenu,
		MenuPath: []string{"Programs", "Vendor"},
		Source:   "/prefix/App.lnk",
		Args:     []string{`C:\app.exe`},
	}
	require.NoError(t, Backend{}.BuildMenuLink(ctx, link))

	desktopPath := filepath.Join(root, "data", "applications", "wine", "Programs", "Vendor", "App.desktop")
	assert.FileExists(t, desktopPath)

	for name, folder := range map[string]string{
		"wine-Programs.directory":        "Programs",
		"wine-Programs-Vendor.directory": "Vendor",
	} {
		values := readEntry(t, filepath.Join(root, "data", "desktop-directories", name))
		assert.Equal(t, "Directory", values["Type"])
		assert.Equal(t, folder, values["Name"])
	}

	menuPath := filepath.Join(root, "config", "menus", "applications-merged", "wine-Programs-Vendor-App.menu")
	data, err := os.ReadFile(menuPath)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(string(data), "<!DOCTYPE Menu"))

	body := data[bytes.Index(data, []byte("<Menu>")):]
	var menu menuXML
	require.NoError(t, xml.Unmarshal(body, &menu))
	assert.Equal(t, "Applications", menu.Name)
	require.Len(t, menu.Menus, 1)
	assert.Equal(t, "wine-Programs", menu.Menus[0].Name)
	require.Len(t, menu.Menus[0].Menus, 1)
	inner := menu.Menus[0].Menus[0]
	assert.Equal(t, "wine-Programs-Vendor", inner.Name)
	assert.Equal(t, "wine-Programs-Vendor.directory", inner.Directory)
	require.NotNil(t, inner.Include)
	assert.Equal(t, "wine-Programs-Vendor-App.desktop", inner.Include.Filename)

	// config/ sorts before data/.
	assert.Equal(t, []string{menuPath, desktopPath}, ctx.Store.MenuFiles())
}

func TestBuildMenuLink_URL(t *testing.T) {
	ctx, root := newTestContext(t)
	link := &platform.Link{
		Name: "Site",
		Args: []string{"start", "/unix", "/home/u/Site.url"},
	}
	require.NoError(t, Backend{}.BuildMenuLink(ctx, link))

	values := readEntry(t, filepath.Join(root, "data", "applications", "wine", "Site.desktop"))
	args, err := shellparse.SplitExec(values["Exec"])
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "/unix", "/home/u/Site.url"}, args[3:])
}

func TestMimeHooks(t *testing.T) {
	ctx, root := newTestContext(t)
	globs := "# comment\ntext/plain:*.txt\nimage/x-foo:*.FOO\n"
	require.NoError(t, os.MkdirAll(filepath.Join(root, "system", "mime"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "system", "mime", "globs"), []byte(globs), 0644))

	hooks := Backend{}.Associations()
	require.NotNil(t, hooks)
	require.NoError(t, hooks.RefreshInit(ctx))

	mime, ok := hooks.MimeTypeForExtension(ctx, ".txt")
	assert.True(t, ok)
	assert.Equal(t, "text/plain", mime)

	mime, ok = hooks.MimeTypeForExtension(ctx, ".foo")
	assert.True(t, ok, "case-insensitive fallback")
	assert.Equal(t, "image/x-foo", mime)

	_, ok = hooks.MimeTypeForExtension(ctx, ".bar")
	assert.False(t, ok)

	require.NoError(t, hooks.WriteMimeTypeEntry(ctx, ".bar", "application/x-wine-extension-bar", "Bar <Document>"))
	pkg := filepath.Join(root, "data", "mime", "packages", "x-wine-extension-bar.xml")
	data, err := os.ReadFile(pkg)
	require.NoError(t, err)
	var info mimeInfoXML
	require.NoError(t, xml.Unmarshal(data, &info))
	require.Len(t, info.Types, 1)
	assert.Equal(t, "application/x-wine-extension-bar", info.Types[0].Type)
	assert.Equal(t, "*.bar", info.Types[0].Glob.Pattern)
	assert.Equal(t, "Bar <Document>", info.Types[0].Comment)

	a := &registry.Association{Extension: ".bar", MimeType: "application/x-wine-extension-bar", ProgID: "Bar.Doc", AppName: "Bar Editor"}
	require.NoError(t, hooks.WriteAssociationEntry(ctx, a))
	desktop := filepath.Join(root, "data", "applications", "wine-extension-bar.desktop")
	values := readEntry(t, desktop)
	assert.Equal(t, "application/x-wine-extension-bar;", values["MimeType"])
	assert.Equal(t, "true", values["NoDisplay"])
	assert.Equal(t, "Bar Editor", values["Name"])
	args, err := shellparse.SplitExec(values["Exec"])
	require.NoError(t, err)
	assert.Equal(t, []string{"start", "/ProgIDOpen", "Bar.Doc", "%f"}, args[3:])

	require.NoError(t, hooks.RemoveFileTypeAssociation(ctx, ".bar"))
	assert.NoFileExists(t, pkg)
	assert.NoFileExists(t, desktop)
	require.NoError(t, hooks.RemoveFileTypeAssociation(ctx, ".bar"))

	runner := ctx.Runner.(*recordingRunner)
	require.NoError(t, hooks.RefreshCleanup(ctx, false))
	assert.Empty(t, runner.calls)
	require.NoError(t, hooks.RefreshCleanup(ctx, true))
	assert.Equal(t, []string{"update-mime-database", "update-desktop-database"}, runner.calls)
}

func testIcon(t *testing.T, sizes ...int) *icon.Source {
	t.Helper()
	var imgs []image.Image
	for _, size := range sizes {
		img := image.NewNRGBA(image.Rect(0, 0, size, size))
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				img.Set(x, y, color.NRGBA{R: 0x10, G: 0x80, B: 0xF0, A: 0xFF})
			}
		}
		imgs = append(imgs, img)
	}
	ico, err := winres.NewIconFromImages(imgs)
	require.NoError(t, err)
	rs := &winres.ResourceSet{}
	require.NoError(t, rs.SetIcon(winres.ID(1), ico))

	stream, err := icon.ExtractPE(rs, 0)
	require.NoError(t, err)
	dir, err := icon.ParseDirectory(stream)
	require.NoError(t, err)
	return &icon.Source{Kind: icon.KindPE, Stream: stream, Dir: dir}
}

func TestWriteIcon(t *testing.T) {
	ctx, root := newTestContext(t)

	req := &platform.IconRequest{Identifier: "ABCD_app.0", Source: testIcon(t, 16, 32)}
	name, err := Backend{}.WriteIcon(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, "ABCD_app.0", name)
	assert.Len(t, req.Outputs, 2)
	assert.FileExists(t, filepath.Join(root, "data", "icons", "hicolor", "16x16", "apps", "ABCD_app.0.png"))
	assert.FileExists(t, filepath.Join(root, "data", "icons", "hicolor", "32x32", "apps", "ABCD_app.0.png"))
}
