package menubuilder

import (
	"errors"
	"fmt"
	"io/fs"
	"os"

	"github.com/BurntSushi/toml"

	"github.com/provide-io/menubuilder/go/menubuilder/internal/xdgdirs"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/platform"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/prefix"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/utils/permissions"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/utils/shellparse"
)

// EnvBackend selects the backend when --backend is not given.
const EnvBackend = "MENUBUILDER_BACKEND"

// RegistryConfig names the files file-type classes are read from.
type RegistryConfig struct {
	System string `toml:"system"`
	User   string `toml:"user"`

	// Hive is a binary SOFTWARE hive read instead of System.
	Hive string `toml:"hive"`
}

// Config is the on-disk configuration.
type Config struct {
	Backend   string         `toml:"backend"`
	Wine      string         `toml:"wine"`
	StateFile string         `toml:"state_file"`
	Registry  RegistryConfig `toml:"registry"`

	// LauncherMode is the octal mode of executable launchers, e.g. "0755".
	LauncherMode string `toml:"launcher_mode"`
}

// LoadConfig reads path. An empty path means the default location, which
// may be missing; an explicit path must exist.
func LoadConfig(path string) (*Config, error) {
	cfg := &Config{}
	explicit := path != ""
	if !explicit {
		path = xdgdirs.ConfigFile()
	}
	if path == "" {
		return cfg, nil
	}

	if _, err := toml.DecodeFile(path, cfg); err != nil {
		if !explicit && errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to load config %s: %w", path, err)
	}
	return cfg, nil
}

// ResolveBackend picks the backend name from the flag, the environment, the
// config file and finally the native default, in that order.
func (c *Config) ResolveBackend(flag string) (name string, source string) {
	if flag != "" {
		return flag, "CLI --backend"
	}
	if env := os.Getenv(EnvBackend); env != "" {
		return env, EnvBackend
	}
	if c.Backend != "" {
		return c.Backend, "config"
	}
	return platform.DefaultName(), "default"
}

// WineCommand returns the configured wine command split into words.
func (c *Config) WineCommand() ([]string, error) {
	if c.Wine == "" {
		return []string{"wine"}, nil
	}
	words, err := shellparse.Split(c.Wine)
	if err != nil {
		return nil, fmt.Errorf("failed to parse wine command %q: %w", c.Wine, err)
	}
	if len(words) == 0 {
		return []string{"wine"}, nil
	}
	return words, nil
}

// LauncherFileMode parses LauncherMode, defaulting to 0755.
func (c *Config) LauncherFileMode() (os.FileMode, error) {
	mode, err := permissions.ParseMode(c.LauncherMode, permissions.DefaultLauncherMode)
	if err != nil {
		return 0, fmt.Errorf("failed to parse launcher_mode: %w", err)
	}
	if !permissions.IsExecutable(mode) {
		return 0, fmt.Errorf("launcher_mode %s is not executable by its owner", permissions.FormatMode(mode))
	}
	return mode, nil
}

// StatePath returns the state store location.
func (c *Config) StatePath() string {
	if c.StateFile != "" {
		return c.StateFile
	}
	return xdgdirs.StateFile()
}

// RegistryFiles returns the user and system registry files for p.
func (c *Config) RegistryFiles(p *prefix.Prefix) (user, system string) {
	user, system = c.Registry.User, c.Registry.System
	if user == "" {
		user = p.UserReg()
	}
	if system == "" {
		system = p.SystemReg()
	}
	return user, system
}
