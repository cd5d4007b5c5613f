package xdg

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/provide-io/menubuilder/go/menubuilder/internal/atomicfile"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/platform"
)

const menuDoctype = `<!DOCTYPE Menu PUBLIC "-//freedesktop//DTD Menu 1.0//EN"
"http://www.freedesktop.org/standards/menu-spec/menu-1.0.dtd">
`

type menuXML struct {
	XMLName   xml.Name    `xml:"Menu"`
	Name      string      `xml:"Name"`
	Directory string      `xml:"Directory,omitempty"`
	Include   *includeXML `xml:"Include,omitempty"`
	Menus     []*menuXML  `xml:"Menu"`
}

type includeXML struct {
	Filename string `xml:"Filename"`
}

// buildMenu nests one submenu per folder and includes desktopID in the
// innermost one.
func buildMenu(folders []string, desktopID string) *menuXML {
	root := &menuXML{Name: "Applications"}
	current := root
	for i := range folders {
		name := directoryName(folders[:i+1])
		sub := &menuXML{Name: name, Directory: name + ".directory"}
		current.Menus = append(current.Menus, sub)
		current = sub
	}
	current.Include = &includeXML{Filename: desktopID}
	return root
}

func directoryName(folders []string) string {
	return "wine-" + strings.Join(folders, "-")
}

func encodeMenu(menu *menuXML) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(menuDoctype)
	enc := xml.NewEncoder(&buf)
	enc.Indent("", "  ")
	if err := enc.Encode(menu); err != nil {
		return nil, err
	}
	buf.WriteByte('\n')
	return buf.Bytes(), nil
}

// writeMenuFile writes the merged menu for desktopID and any missing
// .directory files for its folders.
func writeMenuFile(ctx *platform.Context, path string, folders []string, desktopID string) error {
	for i, folder := range folders {
		dirPath := filepath.Join(ctx.Dir(DirDirectories), directoryName(folders[:i+1])+".directory")
		if _, err := os.Stat(dirPath); err == nil {
			continue
		}
		e := newEntry("Directory")
		e.Set("Name", folder)
		e.Set("Icon", "folder")
		if err := e.Write(dirPath, 0644, ctx.Logger); err != nil {
			return fmt.Errorf("failed to write menu directory %s: %w", dirPath, err)
		}
		ctx.Logger.Trace("📁 Wrote menu directory", "path", dirPath)
	}

	data, err := encodeMenu(buildMenu(folders, desktopID))
	if err != nil {
		return fmt.Errorf("failed to encode menu %s: %w", path, err)
	}
	if err := os.MkdirAll(ctx.Dir(DirMenus), 0755); err != nil {
		return err
	}
	if err := atomicfile.WriteFile(path, data, 0644, ctx.Logger); err != nil {
		return fmt.Errorf("failed to write menu %s: %w", path, err)
	}
	return nil
}
