package registry

import (
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/provide-io/menubuilder/go/menubuilder/pkg/utils/shellparse"
)

// ClassesKey is where file-type classes live below a user or machine root.
const ClassesKey = `Software\Classes`

// ClassesSource answers file-type questions from the merged view of
// HKCU\Software\Classes over HKLM\Software\Classes.
type ClassesSource struct {
	User    Reader
	Machine Reader
}

func (c *ClassesSource) readers() []Reader {
	var readers []Reader
	for _, r := range []Reader{c.User, c.Machine} {
		if r != nil {
			readers = append(readers, r)
		}
	}
	return readers
}

func (c *ClassesSource) value(key, name string) string {
	for _, r := range c.readers() {
		if v, ok := r.Value(JoinPath(ClassesKey, key), name); ok {
			if text := v.Text(); text != "" {
				return text
			}
		}
	}
	return ""
}

// Extensions lists every registered extension, lower-cased and sorted.
func (c *ClassesSource) Extensions() ([]string, error) {
	seen := make(map[string]struct{})
	var exts []string
	for _, r := range c.readers() {
		names, err := r.Subkeys(ClassesKey)
		if err != nil {
			continue
		}
		for _, name := range names {
			if !strings.HasPrefix(name, ".") || len(name) < 2 {
				continue
			}
			ext := strings.ToLower(name)
			if _, ok := seen[ext]; ok {
				continue
			}
			seen[ext] = struct{}{}
			exts = append(exts, ext)
		}
	}
	sort.Strings(exts)
	return exts, nil
}

// ProgID returns the class name registered for ext.
func (c *ClassesSource) ProgID(ext string) string {
	return c.value(ext, "")
}

// ContentType returns the "Content Type" hint for ext.
func (c *ClassesSource) ContentType(ext string) string {
	return strings.ToLower(c.value(ext, "Content Type"))
}

// OpenCommand returns the shell\open\command of ext's class.
func (c *ClassesSource) OpenCommand(ext string) string {
	progID := c.ProgID(ext)
	if progID == "" {
		return ""
	}
	return c.value(JoinPath(progID, `shell\open\command`), "")
}

// Executable returns the program named by ext's open command.
func (c *ClassesSource) Executable(ext string) string {
	command := c.OpenCommand(ext)
	if command == "" {
		return ""
	}
	return commandExecutable(command)
}

// FriendlyAppName names the application that opens ext, from the class's
// FriendlyAppName or else the executable's base name.
func (c *ClassesSource) FriendlyAppName(ext string) string {
	progID := c.ProgID(ext)
	if progID == "" {
		return ""
	}
	if name := c.value(JoinPath(progID, `shell\open`), "FriendlyAppName"); name != "" {
		return name
	}
	exe := c.Executable(ext)
	if exe == "" {
		return ""
	}
	base := path.Base(strings.ReplaceAll(exe, `\`, "/"))
	return strings.TrimSuffix(base, path.Ext(base))
}

// FriendlyDocName returns the class description used as MIME comment.
func (c *ClassesSource) FriendlyDocName(ext string) string {
	progID := c.ProgID(ext)
	if progID == "" {
		return ""
	}
	return c.value(progID, "")
}

// DefaultIcon returns the "path,index" icon registered for ext's class,
// falling back to the extension key itself.
func (c *ClassesSource) DefaultIcon(ext string) (string, int, bool) {
	icon := ""
	if progID := c.ProgID(ext); progID != "" {
		icon = c.value(JoinPath(progID, "DefaultIcon"), "")
	}
	if icon == "" {
		icon = c.value(JoinPath(ext, "DefaultIcon"), "")
	}
	if icon == "" {
		return "", 0, false
	}
	file, index := ParseIconLocation(icon)
	return file, index, file != ""
}

// ParseIconLocation splits `"C:\app.exe",-101` into its path and index.
func ParseIconLocation(location string) (string, int) {
	location = strings.TrimSpace(location)
	index := 0
	if comma := strings.LastIndexByte(location, ','); comma >= 0 {
		if n, err := strconv.Atoi(strings.TrimSpace(location[comma+1:])); err == nil {
			index = n
			location = location[:comma]
		}
	}
	return strings.Trim(strings.TrimSpace(location), `"`), index
}

// commandExecutable extracts the program from an open command such as
// `"C:\Program Files\App\app.exe" "%1"` or `notepad.exe %1`.
func commandExecutable(command string) string {
	command = strings.TrimSpace(command)
	if strings.HasPrefix(command, `"`) {
		if end := strings.IndexByte(command[1:], '"'); end >= 0 {
			return command[1 : end+1]
		}
	}
	// Backslashes are path separators here, not escapes.
	args, err := shellparse.Split(strings.ReplaceAll(command, `\`, `\\`))
	if err != nil || len(args) == 0 {
		fields := strings.Fields(command)
		if len(fields) == 0 {
			return ""
		}
		return fields[0]
	}
	return args[0]
}
