// Package lnk parses Windows shell link (.lnk) files.
package lnk

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"os"
	"strings"

	"golang.org/x/text/encoding/charmap"
	"golang.org/x/text/encoding/unicode"

	mberrors "github.com/provide-io/menubuilder/go/menubuilder/pkg/errors"
	"github.com/provide-io/menubuilder/go/menubuilder/pkg/shortcut"
)

const headerSize = 0x4C

var linkCLSID = []byte{
	0x01, 0x14, 0x02, 0x00,
	0x00, 0x00, 0x00, 0x00,
	0xC0, 0x00, 0x00, 0x00,
	0x00, 0x00, 0x00, 0x46,
}

// LinkFlags from the shell link header.
const (
	HasLinkTargetIDList = 0x00000001
	HasLinkInfo         = 0x00000002
	HasName             = 0x00000004
	HasRelativePath     = 0x00000008
	HasWorkingDir       = 0x00000010
	HasArguments        = 0x00000020
	HasIconLocation     = 0x00000040
	IsUnicode           = 0x00000080
	HasExpString        = 0x00000200
	HasDarwinID         = 0x00001000
	HasExpIcon          = 0x00004000
)

// ExtraData block signatures.
const (
	sigEnvironment     = 0xA0000001
	sigDarwin          = 0xA0000006
	sigIconEnvironment = 0xA0000007
)

// Link is the parsed content of a shell link.
type Link struct {
	Flags       uint32
	IconIndex   int32
	ShowCommand uint32

	IDListPath string

	LocalBasePath    string
	CommonPathSuffix string

	Name         string
	RelativePath string
	WorkingDir   string
	Arguments    string
	IconLocation string

	EnvironmentTarget string
	DarwinID          string
	IconEnvironment   string
}

// TargetPath returns the best target: the environment block, then the
// link info path.
func (l *Link) TargetPath() string {
	if l.EnvironmentTarget != "" {
		return l.EnvironmentTarget
	}
	if l.LocalBasePath == "" {
		return ""
	}
	if l.CommonPathSuffix == "" {
		return l.LocalBasePath
	}
	if strings.HasSuffix(l.LocalBasePath, `\`) {
		return l.LocalBasePath + l.CommonPathSuffix
	}
	return l.LocalBasePath + `\` + l.CommonPathSuffix
}

// cursor reads little-endian fields from a byte slice and remembers the
// first out-of-range access.
type cursor struct {
	data []byte
	pos  int
	err  error
}

func (c *cursor) take(n int) []byte {
	if c.err != nil {
		return nil
	}
	if n < 0 || c.pos+n > len(c.data) {
		c.err = fmt.Errorf("read of %d bytes at %d past end %d: %w", n, c.pos, len(c.data), mberrors.ErrInvalidShortcut)
		return nil
	}
	b := c.data[c.pos : c.pos+n]
	c.pos += n
	return b
}

func (c *cursor) u16() uint16 {
	if b := c.take(2); b != nil {
		return binary.LittleEndian.Uint16(b)
	}
	return 0
}

func (c *cursor) u32() uint32 {
	if b := c.take(4); b != nil {
		return binary.LittleEndian.Uint32(b)
	}
	return 0
}

// Parse decodes a shell link.
func Parse(data []byte) (*Link, error) {
	c := &cursor{data: data}

	if c.u32() != headerSize {
		return nil, fmt.Errorf("bad header size: %w", mberrors.ErrInvalidShortcut)
	}
	if !bytes.Equal(c.take(16), linkCLSID) {
		return nil, fmt.Errorf("bad link CLSID: %w", mberrors.ErrInvalidShortcut)
	}

	l := &Link{}
	l.Flags = c.u32()
	c.take(4)  // file attributes
	c.take(24) // creation, access, write times
	c.take(4)  // file size
	l.IconIndex = int32(c.u32())
	l.ShowCommand = c.u32()
	c.take(2)  // hot key
	c.take(10) // reserved
	if c.err != nil {
		return nil, c.err
	}

	if l.Flags&HasLinkTargetIDList != 0 {
		size := int(c.u16())
		items := c.take(size)
		if c.err != nil {
			return nil, c.err
		}
		l.IDListPath = parseIDList(items)
	}

	if l.Flags&HasLinkInfo != 0 {
		if err := l.parseLinkInfo(c); err != nil {
			return nil, err
		}
	}

	wide := l.Flags&IsUnicode != 0
	for _, field := range []struct {
		flag uint32
		dst  *string
	}{
		{HasName, &l.Name},
		{HasRelativePath, &l.RelativePath},
		{HasWorkingDir, &l.WorkingDir},
		{HasArguments, &l.Arguments},
		{HasIconLocation, &l.IconLocation},
	} {
		if l.Flags&field.flag == 0 {
			continue
		}
		count := int(c.u16())
		if wide {
			*field.dst = decodeUTF16(c.take(count * 2))
		} else {
			*field.dst = decodeANSI(c.take(count))
		}
		if c.err != nil {
			return nil, c.err
		}
	}

	l.parseExtraData(c)
	return l, nil
}

func (l *Link) parseLinkInfo(c *cursor) error {
	start := c.pos
	size := int(c.u32())
	header := c.take(size - 4)
	if c.err != nil || size < 0x1C {
		return fmt.Errorf("bad link info: %w", mberrors.ErrInvalidShortcut)
	}
	info := c.data[start : start+size]

	headerLen := binary.LittleEndian.Uint32(header[0:])
	flags := binary.LittleEndian.Uint32(header[4:])
	localOff := binary.LittleEndian.Uint32(header[12:])
	suffixOff := binary.LittleEndian.Uint32(header[20:])

	// VolumeIDAndLocalBasePath
	if flags&0x1 != 0 {
		if headerLen >= 0x24 && size >= 0x24 {
			localUni := binary.LittleEndian.Uint32(info[28:])
			l.LocalBasePath = utf16zAt(info, localUni)
		}
		if l.LocalBasePath == "" {
			l.LocalBasePath = ansizAt(info, localOff)
		}
	}
	if headerLen >= 0x24 && size >= 0x24 {
		suffixUni := binary.LittleEndian.Uint32(info[32:])
		l.CommonPathSuffix = utf16zAt(info, suffixUni)
	}
	if l.CommonPathSuffix == "" {
		l.CommonPathSuffix = ansizAt(info, suffixOff)
	}
	return nil
}

func (l *Link) parseExtraData(c *cursor) {
	for c.err == nil && c.pos+8 <= len(c.data) {
		size := int(binary.LittleEndian.Uint32(c.data[c.pos:]))
		if size < 8 {
			return
		}
		block := c.take(size)
		if block == nil {
			return
		}
		signature := binary.LittleEndian.Uint32(block[4:])
		switch signature {
		case sigEnvironment, sigDarwin, sigIconEnvironment:
			if len(block) < 0x314 {
				continue
			}
			value := decodeUTF16(block[268:788])
			if value == "" {
				value = decodeANSI(block[8:268])
			}
			switch signature {
			case sigEnvironment:
				l.EnvironmentTarget = value
			case sigDarwin:
				l.DarwinID = value
			case sigIconEnvironment:
				l.IconEnvironment = value
			}
		}
	}
}

// Descriptor maps the link onto a shortcut descriptor.
func (l *Link) Descriptor() *shortcut.Descriptor {
	d := &shortcut.Descriptor{
		Target:        l.TargetPath(),
		Arguments:     l.Arguments,
		WorkDir:       l.WorkingDir,
		Description:   l.Name,
		IconPath:      l.IconLocation,
		IconIndex:     int(l.IconIndex),
		DarwinCommand: l.DarwinID,
		HasIDList:     l.Flags&HasLinkTargetIDList != 0,
		IDListPath:    l.IDListPath,
	}
	if l.IconEnvironment != "" {
		d.IconPath = l.IconEnvironment
	}
	return d
}

// Loader reads .lnk files from disk.
type Loader struct{}

// Load implements shortcut.Loader.
func (Loader) Load(path string) (*shortcut.Descriptor, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	l, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}
	return l.Descriptor(), nil
}

func decodeANSI(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	s, err := charmap.Windows1252.NewDecoder().Bytes(b)
	if err != nil {
		return string(b)
	}
	return string(s)
}

func decodeUTF16(b []byte) string {
	for i := 0; i+1 < len(b); i += 2 {
		if b[i] == 0 && b[i+1] == 0 {
			b = b[:i]
			break
		}
	}
	s, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(b)
	if err != nil {
		return ""
	}
	return string(s)
}

func ansizAt(b []byte, off uint32) string {
	if off == 0 || int(off) >= len(b) {
		return ""
	}
	return decodeANSI(b[off:])
}

func utf16zAt(b []byte, off uint32) string {
	if off == 0 || int(off) >= len(b) {
		return ""
	}
	return decodeUTF16(b[off:])
}
