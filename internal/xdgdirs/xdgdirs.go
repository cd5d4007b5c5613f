// Package xdgdirs resolves the freedesktop base directories menubuilder
// writes into, plus its own cache and config locations.
package xdgdirs

import (
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// EnvCacheDir overrides the menubuilder cache root.
const EnvCacheDir = "MENUBUILDER_CACHE_DIR"

const appName = "menubuilder"

// Home returns the user's home directory, or "" when it cannot be determined.
func Home() string {
	if home := os.Getenv("HOME"); home != "" {
		return home
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return home
}

func fromEnv(name string, fallback ...string) string {
	if value := os.Getenv(name); value != "" && filepath.IsAbs(value) {
		return value
	}
	home := Home()
	if home == "" {
		return ""
	}
	return filepath.Join(append([]string{home}, fallback...)...)
}

// DataHome returns $XDG_DATA_HOME or ~/.local/share.
func DataHome() string {
	return fromEnv("XDG_DATA_HOME", ".local", "share")
}

// ConfigHome returns $XDG_CONFIG_HOME or ~/.config.
func ConfigHome() string {
	return fromEnv("XDG_CONFIG_HOME", ".config")
}

// DesktopDir returns $XDG_DESKTOP_DIR or ~/Desktop.
func DesktopDir() string {
	return fromEnv("XDG_DESKTOP_DIR", "Desktop")
}

// DataDirs returns $XDG_DATA_DIRS split on ':' or the freedesktop default.
func DataDirs() []string {
	value := os.Getenv("XDG_DATA_DIRS")
	if value == "" {
		return []string{"/usr/local/share", "/usr/share"}
	}
	var dirs []string
	for _, dir := range strings.Split(value, ":") {
		if dir != "" {
			dirs = append(dirs, dir)
		}
	}
	return dirs
}

// RuntimeDir returns $XDG_RUNTIME_DIR, falling back to the temp directory.
func RuntimeDir() string {
	if dir := os.Getenv("XDG_RUNTIME_DIR"); dir != "" {
		return dir
	}
	return os.TempDir()
}

// CacheRoot returns the menubuilder cache directory.
func CacheRoot() string {
	// Check environment variable first
	if cacheDir := os.Getenv(EnvCacheDir); cacheDir != "" {
		return cacheDir
	}

	// Use platform-specific defaults
	switch runtime.GOOS {
	case "darwin":
		if home := Home(); home != "" {
			return filepath.Join(home, "Library", "Caches", appName)
		}
	case "windows":
		if localAppData := os.Getenv("LOCALAPPDATA"); localAppData != "" {
			return filepath.Join(localAppData, appName, "cache")
		}
	default:
		if xdgCache := os.Getenv("XDG_CACHE_HOME"); xdgCache != "" {
			return filepath.Join(xdgCache, appName)
		}
		if home := Home(); home != "" {
			return filepath.Join(home, ".cache", appName)
		}
	}

	// Fallback to temp directory
	return filepath.Join(os.TempDir(), appName, "cache")
}

// ConfigFile returns the default config.toml location.
func ConfigFile() string {
	if dir := ConfigHome(); dir != "" {
		return filepath.Join(dir, appName, "config.toml")
	}
	return ""
}

// StateFile returns the default state store location.
func StateFile() string {
	if dir := DataHome(); dir != "" {
		return filepath.Join(dir, appName, "state.toml")
	}
	return filepath.Join(CacheRoot(), "state.toml")
}

// DirectorySpec is a directory to create with its mode.
type DirectorySpec struct {
	Path string
	Mode os.FileMode
}

// Ensure creates every directory in dirs.
func Ensure(dirs ...DirectorySpec) error {
	for _, dir := range dirs {
		mode := dir.Mode
		if mode == 0 {
			mode = 0755
		}
		if err := os.MkdirAll(dir.Path, mode); err != nil {
			return err
		}
	}
	return nil
}
