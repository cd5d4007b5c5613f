package shortcut

import (
	"strings"

	"github.com/provide-io/menubuilder/go/menubuilder/pkg/prefix"
)

// Location is where a shortcut lives.
type Location int

const (
	Unknown Location = iota
	Desktop
	CommonDesktop
	StartMenu
	CommonStartMenu
	Startup
	CommonStartup
)

func (l Location) String() string {
	switch l {
	case Desktop:
		return "desktop"
	case CommonDesktop:
		return "common-desktop"
	case StartMenu:
		return "start-menu"
	case CommonStartMenu:
		return "common-start-menu"
	case Startup:
		return "startup"
	case CommonStartup:
		return "common-startup"
	}
	return "unknown"
}

// Eligible reports whether shortcuts in l get native artifacts.
func (l Location) Eligible() bool {
	switch l {
	case Desktop, CommonDesktop, StartMenu, CommonStartMenu:
		return true
	}
	return false
}

// IsDesktop reports whether l is one of the desktop folders.
func (l Location) IsDesktop() bool {
	return l == Desktop || l == CommonDesktop
}

// Startup folders sit inside the start menus, so they are checked first.
var folderOrder = []struct {
	folder   prefix.Folder
	location Location
}{
	{prefix.FolderStartup, Startup},
	{prefix.FolderCommonStartup, CommonStartup},
	{prefix.FolderDesktop, Desktop},
	{prefix.FolderCommonDesktop, CommonDesktop},
	{prefix.FolderStartMenu, StartMenu},
	{prefix.FolderCommonStartMenu, CommonStartMenu},
}

// LocateLink finds which special folder linkPath is in and returns the path
// below it, with backslash separators. linkPath may be a host path inside
// the prefix or a Windows path.
func LocateLink(p *prefix.Prefix, linkPath string) (Location, string) {
	winPath := linkPath
	if strings.HasPrefix(linkPath, "/") {
		mapped, ok := p.ToWindows(linkPath)
		if !ok {
			return Unknown, ""
		}
		winPath = mapped
	}

	for _, candidate := range folderOrder {
		if rest, ok := prefix.HasPathPrefix(winPath, p.SpecialFolder(candidate.folder)); ok {
			return candidate.location, rest
		}
	}
	return Unknown, ""
}
