// Package urlfile parses Internet Shortcut (.url) files.
package urlfile

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"unicode/utf8"

	"golang.org/x/text/encoding/charmap"
	"gopkg.in/ini.v1"

	mberrors "github.com/provide-io/menubuilder/go/menubuilder/pkg/errors"
)

const section = "internetshortcut"

// Shortcut is the [InternetShortcut] section of a .url file.
type Shortcut struct {
	URL              string
	IconFile         string
	IconIndex        int
	WorkingDirectory string
}

// Load reads a .url file from disk.
func Load(path string) (*Shortcut, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()

	s, err := Parse(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return s, nil
}

// Parse reads .url content. Keys are case-insensitive and only the
// [InternetShortcut] section is used. Non-UTF-8 content is read as
// Windows-1252.
func Parse(r io.Reader) (*Shortcut, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimPrefix(data, []byte("\xEF\xBB\xBF"))
	if !utf8.Valid(data) {
		if decoded, err := charmap.Windows1252.NewDecoder().Bytes(data); err == nil {
			data = decoded
		}
	}

	cfg, err := ini.LoadSources(ini.LoadOptions{
		Insensitive:             true,
		IgnoreInlineComment:     true,
		IgnoreContinuation:      true,
		SkipUnrecognizableLines: true,
		KeyValueDelimiters:      "=",
	}, data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", mberrors.ErrInvalidShortcut, err)
	}

	sec, err := cfg.GetSection(section)
	if err != nil {
		return nil, fmt.Errorf("no [InternetShortcut] section: %w", mberrors.ErrInvalidShortcut)
	}
	s := &Shortcut{
		URL:              sec.Key("url").String(),
		IconFile:         sec.Key("iconfile").String(),
		IconIndex:        sec.Key("iconindex").MustInt(0),
		WorkingDirectory: sec.Key("workingdirectory").String(),
	}

	if s.URL == "" {
		return nil, fmt.Errorf("no URL in internet shortcut: %w", mberrors.ErrInvalidShortcut)
	}
	return s, nil
}
