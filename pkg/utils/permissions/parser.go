// Package permissions parses the octal file modes accepted in the config.
package permissions

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DefaultLauncherMode is the mode of generated launchers.
const DefaultLauncherMode os.FileMode = 0o755

// ParseMode parses an octal mode string such as "755", "0755" or "0o755".
// An empty string yields def.
func ParseMode(s string, def os.FileMode) (os.FileMode, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}

	digits := strings.TrimPrefix(strings.TrimPrefix(s, "0o"), "0O")
	val, err := strconv.ParseUint(digits, 8, 32)
	if err != nil || val > 0o777 {
		return def, fmt.Errorf("invalid file mode %q", s)
	}
	return os.FileMode(val), nil
}

// FormatMode formats mode as a zero-prefixed octal string.
func FormatMode(mode os.FileMode) string {
	return fmt.Sprintf("0%o", mode.Perm())
}

// IsExecutable reports whether the owner execute bit is set.
func IsExecutable(mode os.FileMode) bool {
	return mode&0o100 != 0
}
