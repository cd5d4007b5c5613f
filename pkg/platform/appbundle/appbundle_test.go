package appbundle

import (
	"image"
	"image/color"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"testing"

	"github.com/hashicorp/go-hclog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tc-hib/winres"
	"howett.net/plist"

	"github.com/provide-io/menubuilder/go/menubuilder/pkg/icon"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/platform"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/prefix"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/registry"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/utils/shellparse"
)

func newTestContext(t *testing.T) (*platform.Context, string) {
	t.Helper()
	root := t.TempDir()
	t.Setenv("HOME", root)
	t.Setenv("MENUBUILDER_CACHE_DIR", filepath.Join(root, "cache"))

	ctx, err := Backend{}.Init(prefix.New(filepath.Join(root, "wine prefix"), "tester"))
	require.NoError(t, err)
	ctx.Logger = hclog.New(&hclog.LoggerOptions{Name: "appbundle-test", Level: hclog.Trace})

	store, err := registry.OpenStore(filepath.Join(root, "state.toml"), ctx.Logger)
	require.NoError(t, err)
	ctx.Store = store
	return ctx, root
}

func testIcon(t *testing.T, sizes ...int) *icon.Source {
	t.Helper()
	var imgs []image.Image
	for _, size := range sizes {
		img := image.NewNRGBA(image.Rect(0, 0, size, size))
		for y := 0; y < size; y++ {
			for x := 0; x < size; x++ {
				img.Set(x, y, color.NRGBA{R: 0xC0, G: 0x20, B: 0x20, A: 0xFF})
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

func readPlist(t *testing.T, path string) map[string]string {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var values map[string]string
	format, err := plist.Unmarshal(data, &values)
	require.NoError(t, err)
	require.Equal(t, plist.XMLFormat, format)
	return values
}

func TestBuildDesktopLink_WithIcon(t *testing.T) {
	ctx, root := newTestContext(t)

	req := &platform.IconRequest{Identifier: "ABCD_app.0", Source: testIcon(t, 16, 32)}
	iconPath, err := Backend{}.WriteIcon(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "cache", "icons", "ABCD_app.0.icns"), iconPath)
	assert.Equal(t, []string{iconPath}, req.Outputs)

	link := &platform.Link{
		Name:    "Tom & Jerry",
		Source:  "/prefix/Tom & Jerry.lnk",
		Args:    []string{`C:\Games\tj.exe`, "/window"},
		WorkDir: "/games dir",
		Icon:    iconPath,
	}
	require.NoError(t, Backend{}.BuildDesktopLink(ctx, link))

	bundle := filepath.Join(root, "Desktop", "Tom & Jerry.app")
	contents := filepath.Join(bundle, "Contents")

	plist := readPlist(t, filepath.Join(contents, "Info.plist"))
	assert.Equal(t, "Tom & Jerry", plist["CFBundleName"])
	assert.Equal(t, "Tom & Jerry", plist["CFBundleExecutable"])
	assert.Equal(t, "Tom & Jerry.icns", plist["CFBundleIconFile"])
	assert.Equal(t, "org.winehq.wine.Tom---Jerry", plist["CFBundleIdentifier"])
	assert.Equal(t, "APPL", plist["CFBundlePackageType"])

	pkgInfo, err := os.ReadFile(filepath.Join(contents, "PkgInfo"))
	require.NoError(t, err)
	assert.Equal(t, "APPL????", string(pkgInfo))

	assert.FileExists(t, filepath.Join(contents, "Resources", "Tom & Jerry.icns"))

	strs, err := os.ReadFile(filepath.Join(contents, "Resources", "English.lproj", "InfoPlist.strings"))
	require.NoError(t, err)
	assert.Contains(t, string(strs), `CFBundleDisplayName = "Tom & Jerry";`)

	launcher := filepath.Join(contents, "MacOS", "Tom & Jerry")
	info, err := os.Stat(launcher)
	require.NoError(t, err)
	if runtime.GOOS != "windows" {
		assert.Equal(t, os.FileMode(0755), info.Mode().Perm())
	}

	script, err := os.ReadFile(launcher)
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(script)), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t, "#!/bin/sh", lines[0])

	cd, err := shellparse.Split(lines[1])
	require.NoError(t, err)
	assert.Equal(t, []string{"cd", "/games dir", "||", "exit", "1"}, cd)

	exec, err := shellparse.Split(lines[2])
	require.NoError(t, err)
	want := []string{"exec", "env", "WINEPREFIX=" + ctx.Prefix.Root(), "wine", `C:\Games\tj.exe`, "/window", "$@"}
	assert.Equal(t, want, exec)

	src, ok := ctx.Store.MenuFileSource(bundle)
	assert.True(t, ok)
	assert.Equal(t, link.Source, src)
}

func TestBuildMenuLink_Nested(t *testing.T) {
	ctx, root := newTestContext(t)
	link := &platform.Link{
		Name:     "App",
		MenuPath: []string{"Programs", "Vendor"},
		Args:     []string{`C:\app.exe`},
	}
	require.NoError(t, Backend{}.BuildMenuLink(ctx, link))

	contents := filepath.Join(root, "Applications", "Wine", "Programs", "Vendor", "App.app", "Contents")
	plist := readPlist(t, filepath.Join(contents, "Info.plist"))
	_, hasIcon := plist["CFBundleIconFile"]
	assert.False(t, hasIcon)
	assert.FileExists(t, filepath.Join(contents, "MacOS", "App"))
}

func TestBuild_FailureRemovesBundle(t *testing.T) {
	ctx, root := newTestContext(t)
	link := &platform.Link{
		Name: "Broken",
		Args: []string{`C:\app.exe`},
		Icon: filepath.Join(root, "missing.icns"),
	}
	err := Backend{}.BuildDesktopLink(ctx, link)
	require.Error(t, err)
	assert.NoDirExists(t, filepath.Join(root, "Desktop", "Broken.app"))
	assert.Empty(t, ctx.Store.MenuFiles())
}

func TestAssociationsUnsupported(t *testing.T) {
	assert.Nil(t, Backend{}.Associations())
}

func TestInfoPlist(t *testing.T) {
	data, err := infoPlist(`<R&D> "Tools"`, "")
	require.NoError(t, err)
	assert.Contains(t, string(data), `<!DOCTYPE plist`)

	var values map[string]string
	_, err = plist.Unmarshal(data, &values)
	require.NoError(t, err)
	assert.Equal(t, `<R&D> "Tools"`, values["CFBundleName"])
	assert.Equal(t, "org.winehq.wine.-R-D---Tools-", values["CFBundleIdentifier"])
	assert.NotContains(t, values, "CFBundleIconFile")
	assert.Len(t, values, 8)
}
