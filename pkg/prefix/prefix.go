// Package prefix maps between a Wine prefix's Windows view and the host
// filesystem. It knows the special folders shortcuts are placed in and the
// environment used to expand %VAR% references inside shortcuts.
package prefix

import (
	"fmt"
	"os"
	"os/user"
	"path/filepath"
	"sort"
	"strings"

	mberrors "github.com/provide-io/menubuilder/go/menubuilder/pkg/errors"
)

// EnvPrefix names the prefix directory.
const EnvPrefix = "WINEPREFIX"

// Folder identifies a Windows special folder.
type Folder int

const (
	FolderDesktop Folder = iota
	FolderCommonDesktop
	FolderStartMenu
	FolderCommonStartMenu
	FolderStartup
	FolderCommonStartup
)

func (f Folder) String() string {
	switch f {
	case FolderDesktop:
		return "Desktop"
	case FolderCommonDesktop:
		return "CommonDesktop"
	case FolderStartMenu:
		return "StartMenu"
	case FolderCommonStartMenu:
		return "CommonStartMenu"
	case FolderStartup:
		return "Startup"
	case FolderCommonStartup:
		return "CommonStartup"
	}
	return fmt.Sprintf("Folder(%d)", int(f))
}

// Prefix is one Wine prefix.
type Prefix struct {
	root string
	user string
	env  map[string]string // keys upper-cased
}

// New returns the prefix rooted at root for the given Windows user name.
func New(root, userName string) *Prefix {
	p := &Prefix{
		root: filepath.Clean(root),
		user: userName,
		env:  make(map[string]string),
	}
	p.seedEnv()
	return p
}

// Discover locates the prefix from $WINEPREFIX or ~/.wine.
func Discover() (*Prefix, error) {
	root := os.Getenv(EnvPrefix)
	if root == "" {
		home, err := os.UserHomeDir()
		if err != nil || home == "" {
			return nil, fmt.Errorf("failed to locate wine prefix: %w", mberrors.ErrNoHome)
		}
		root = filepath.Join(home, ".wine")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve wine prefix %s: %w", root, err)
	}
	return New(abs, currentUser()), nil
}

func currentUser() string {
	if name := os.Getenv("USER"); name != "" {
		return name
	}
	if u, err := user.Current(); err == nil && u.Username != "" {
		return u.Username
	}
	return "wine"
}

// ==================== Host Paths ====================

// Root returns the prefix directory.
func (p *Prefix) Root() string {
	return p.root
}

// User returns the Windows user name.
func (p *Prefix) User() string {
	return p.user
}

// DriveC returns the host directory backing C:.
func (p *Prefix) DriveC() string {
	return filepath.Join(p.root, "drive_c")
}

// DosDevices returns the directory of drive letter symlinks.
func (p *Prefix) DosDevices() string {
	return filepath.Join(p.root, "dosdevices")
}

// SystemReg returns the machine registry file.
func (p *Prefix) SystemReg() string {
	return filepath.Join(p.root, "system.reg")
}

// UserReg returns the user registry file.
func (p *Prefix) UserReg() string {
	return filepath.Join(p.root, "user.reg")
}

// ==================== Windows Paths ====================

// UserProfile returns the Windows profile directory.
func (p *Prefix) UserProfile() string {
	return `C:\users\` + p.user
}

// SpecialFolder returns the Windows path of a special folder.
func (p *Prefix) SpecialFolder(f Folder) string {
	const (
		startMenu = `Microsoft\Windows\Start Menu`
		startup   = `Programs\Startup`
	)
	roaming := p.UserProfile() + `\AppData\Roaming`
	switch f {
	case FolderDesktop:
		return p.UserProfile() + `\Desktop`
	case FolderCommonDesktop:
		return `C:\users\Public\Desktop`
	case FolderStartMenu:
		return roaming + `\` + startMenu
	case FolderCommonStartMenu:
		return `C:\ProgramData\` + startMenu
	case FolderStartup:
		return roaming + `\` + startMenu + `\` + startup
	case FolderCommonStartup:
		return `C:\ProgramData\` + startMenu + `\` + startup
	}
	return ""
}

// ==================== Environment ====================

func (p *Prefix) seedEnv() {
	profile := p.UserProfile()
	defaults := map[string]string{
		"SystemDrive":        "C:",
		"SystemRoot":         `C:\windows`,
		"windir":             `C:\windows`,
		"ProgramFiles":       `C:\Program Files`,
		"ProgramFiles(x86)":  `C:\Program Files (x86)`,
		"CommonProgramFiles": `C:\Program Files\Common Files`,
		"ProgramData":        `C:\ProgramData`,
		"ALLUSERSPROFILE":    `C:\ProgramData`,
		"PUBLIC":             `C:\users\Public`,
		"USERNAME":           p.user,
		"USERPROFILE":        profile,
		"HOMEDRIVE":          "C:",
		"HOMEPATH":           strings.TrimPrefix(profile, "C:"),
		"APPDATA":            profile + `\AppData\Roaming`,
		"LOCALAPPDATA":       profile + `\AppData\Local`,
		"TEMP":               profile + `\AppData\Local\Temp`,
		"TMP":                profile + `\AppData\Local\Temp`,
	}
	for name, value := range defaults {
		p.SetEnv(name, value)
	}
}

// SetEnv sets a Windows environment variable. Names are case-insensitive.
func (p *Prefix) SetEnv(name, value string) {
	p.env[strings.ToUpper(name)] = value
}

// Getenv returns a Windows environment variable.
func (p *Prefix) Getenv(name string) (string, bool) {
	value, ok := p.env[strings.ToUpper(name)]
	return value, ok
}

// ExpandEnv replaces %NAME% references. Unknown names and lone '%' are kept.
func (p *Prefix) ExpandEnv(s string) string {
	if !strings.Contains(s, "%") {
		return s
	}
	var out strings.Builder
	for {
		start := strings.IndexByte(s, '%')
		if start < 0 {
			break
		}
		end := strings.IndexByte(s[start+1:], '%')
		if end < 0 {
			break
		}
		end += start + 1
		name := s[start+1 : end]
		if value, ok := p.Getenv(name); ok && name != "" {
			out.WriteString(s[:start])
			out.WriteString(value)
			s = s[end+1:]
			continue
		}
		// Keep the first '%' and rescan from the second.
		out.WriteString(s[:end])
		s = s[end:]
	}
	out.WriteString(s)
	return out.String()
}

// ==================== Path Mapping ====================

const unixNamespace = `\\?\unix`

// ToUnix maps a Windows path in this prefix to a host path. Host paths and
// \\?\unix\ paths pass through.
func (p *Prefix) ToUnix(winPath string) (string, error) {
	if strings.HasPrefix(winPath, "/") {
		return filepath.Clean(winPath), nil
	}
	if rest, ok := cutPrefixFold(winPath, unixNamespace); ok {
		return filepath.Clean(strings.ReplaceAll(rest, `\`, "/")), nil
	}
	if len(winPath) < 2 || winPath[1] != ':' || !isDriveLetter(winPath[0]) {
		return "", fmt.Errorf("failed to map %q: not an absolute windows path: %w", winPath, mberrors.ErrNotFound)
	}

	driveRoot, err := p.driveRoot(winPath[0])
	if err != nil {
		return "", err
	}

	rest := strings.Trim(strings.ReplaceAll(winPath[2:], `\`, "/"), "/")
	if rest == "" {
		return driveRoot, nil
	}
	return resolveCase(driveRoot, strings.Split(rest, "/")), nil
}

// ToWindows maps a host path to its Windows form, if some drive covers it.
func (p *Prefix) ToWindows(unixPath string) (string, bool) {
	abs, err := filepath.Abs(unixPath)
	if err != nil {
		return "", false
	}

	best, bestLetter := "", byte(0)
	for letter, root := range p.driveRoots() {
		if (root == "/" || isWithin(abs, root)) && len(root) > len(best) {
			best, bestLetter = root, letter
		}
	}
	if bestLetter == 0 {
		return "", false
	}

	rest := strings.TrimPrefix(strings.TrimPrefix(abs, best), "/")
	win := strings.ToUpper(string(bestLetter)) + `:\` + strings.ReplaceAll(rest, "/", `\`)
	return win, true
}

func (p *Prefix) driveRoot(letter byte) (string, error) {
	letter = toLower(letter)
	if root, ok := p.driveRoots()[letter]; ok {
		return root, nil
	}
	return "", fmt.Errorf("failed to map drive %c: %w", letter, mberrors.ErrNotFound)
}

// driveRoots reads dosdevices, falling back to drive_c for c: and / for z:
// when the prefix has no mapping for them.
func (p *Prefix) driveRoots() map[byte]string {
	roots := make(map[byte]string)
	entries, _ := os.ReadDir(p.DosDevices())
	for _, entry := range entries {
		name := strings.ToLower(entry.Name())
		if len(name) != 2 || name[1] != ':' || !isDriveLetter(name[0]) {
			continue
		}
		link := filepath.Join(p.DosDevices(), entry.Name())
		target, err := os.Readlink(link)
		if err != nil {
			continue
		}
		if !filepath.IsAbs(target) {
			target = filepath.Join(p.DosDevices(), target)
		}
		roots[name[0]] = filepath.Clean(target)
	}
	if _, ok := roots['c']; !ok {
		roots['c'] = p.DriveC()
	}
	if _, ok := roots['z']; !ok {
		roots['z'] = "/"
	}
	return roots
}

// resolveCase joins parts below base, matching each existing component
// case-insensitively the way Wine's file lookups do.
func resolveCase(base string, parts []string) string {
	current := base
	for i, part := range parts {
		candidate := filepath.Join(current, part)
		if _, err := os.Lstat(candidate); err == nil {
			current = candidate
			continue
		}
		entries, err := os.ReadDir(current)
		if err != nil {
			return filepath.Join(append([]string{current}, parts[i:]...)...)
		}
		names := make([]string, 0, len(entries))
		for _, entry := range entries {
			names = append(names, entry.Name())
		}
		sort.Strings(names)
		match := part
		for _, name := range names {
			if strings.EqualFold(name, part) {
				match = name
				break
			}
		}
		current = filepath.Join(current, match)
	}
	return current
}

// HasPathPrefix reports whether the Windows path lies inside dir, comparing
// case-insensitively on a path segment boundary. It returns the remainder
// below dir.
func HasPathPrefix(path, dir string) (string, bool) {
	path = strings.ReplaceAll(path, "/", `\`)
	dir = strings.TrimRight(strings.ReplaceAll(dir, "/", `\`), `\`)
	rest, ok := cutPrefixFold(path, dir)
	if !ok || !strings.HasPrefix(rest, `\`) {
		return "", false
	}
	return strings.TrimLeft(rest, `\`), true
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}

func isWithin(path, root string) bool {
	return path == root || strings.HasPrefix(path, strings.TrimRight(root, "/")+"/")
}

func isDriveLetter(c byte) bool {
	c = toLower(c)
	return c >= 'a' && c <= 'z'
}

func toLower(c byte) byte {
	if c >= 'A' && c <= 'Z' {
		return c + 'a' - 'A'
	}
	return c
}
