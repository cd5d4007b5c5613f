// Package icon parses, extracts, selects and converts Windows icon resources.
//
// Icons come from .ico files, 16-bit NE executables and 32-bit PE modules.
// Every source is funnelled into a single in-memory ICO container which the
// selector inspects and the converter re-encodes as PNG or ICNS.
package icon

import (
	"bytes"
	"fmt"
	"io"

	mberrors "github.com/provide-io/menubuilder/go/menubuilder/pkg/errors"
)

const (
	// SizeOfDirHeader is ICONDIR: reserved, type, count.
	SizeOfDirHeader = 6
	// SizeOfDirEntry is ICONDIRENTRY in a file container.
	SizeOfDirEntry = 16
	// SizeOfGroupEntry is GRPICONDIRENTRY inside an RT_GROUP_ICON resource.
	SizeOfGroupEntry = 14

	// TypeIcon is the ICONDIR type for icons (2 is cursors).
	TypeIcon = 1

	maxContainerSize = 64 << 20
)

// DirEntry is one ICONDIRENTRY.
type DirEntry struct {
	Width       uint8 // 0 means 256
	Height      uint8 // 0 means 256
	ColorCount  uint8
	Reserved    uint8
	Planes      uint16
	BitCount    uint16
	BytesInRes  uint32
	ImageOffset uint32
}

// PixelWidth returns the effective width.
func (e DirEntry) PixelWidth() int {
	if e.Width == 0 {
		return 256
	}
	return int(e.Width)
}

// PixelHeight returns the effective height.
func (e DirEntry) PixelHeight() int {
	if e.Height == 0 {
		return 256
	}
	return int(e.Height)
}

// Directory is an ICONDIR header plus its entries.
type Directory struct {
	Reserved uint16
	Type     uint16
	Entries  []DirEntry
}

// ParseDirectory reads an icon directory from the current position of r.
// On success the stream is left just past the last entry.
func ParseDirectory(r io.ReadSeeker) (*Directory, error) {
	head := make([]byte, SizeOfDirHeader)
	if _, err := io.ReadFull(r, head); err != nil {
		return nil, fmt.Errorf("%w: short icon header: %v", mberrors.ErrFormat, err)
	}
	hr := newReader(head)
	reserved, _ := hr.U16()
	typ, _ := hr.U16()
	count, _ := hr.U16()
	if reserved != 0 {
		return nil, fmt.Errorf("%w: reserved field is %d", mberrors.ErrFormat, reserved)
	}
	if typ != TypeIcon {
		return nil, fmt.Errorf("%w: container type is %d", mberrors.ErrFormat, typ)
	}

	raw := make([]byte, int(count)*SizeOfDirEntry)
	if _, err := io.ReadFull(r, raw); err != nil {
		return nil, fmt.Errorf("%w: %d entries declared: %v", mberrors.ErrFormat, count, err)
	}

	dir := &Directory{Reserved: reserved, Type: typ, Entries: make([]DirEntry, 0, count)}
	er := newReader(raw)
	for i := 0; i < int(count); i++ {
		e, err := readDirEntry(er)
		if err != nil {
			return nil, err
		}
		dir.Entries = append(dir.Entries, e)
	}
	return dir, nil
}

func readDirEntry(r *reader) (DirEntry, error) {
	var e DirEntry
	var err error
	if e.Width, err = r.U8(); err != nil {
		return e, err
	}
	if e.Height, err = r.U8(); err != nil {
		return e, err
	}
	if e.ColorCount, err = r.U8(); err != nil {
		return e, err
	}
	if e.Reserved, err = r.U8(); err != nil {
		return e, err
	}
	if e.Planes, err = r.U16(); err != nil {
		return e, err
	}
	if e.BitCount, err = r.U16(); err != nil {
		return e, err
	}
	if e.BytesInRes, err = r.U32(); err != nil {
		return e, err
	}
	if e.ImageOffset, err = r.U32(); err != nil {
		return e, err
	}
	return e, nil
}

// ImageData returns the payload described by e, validated against the container.
func ImageData(stream io.ReadSeeker, e DirEntry) ([]byte, error) {
	if br, ok := stream.(*bytes.Reader); ok && br.Size() < int64(e.ImageOffset)+int64(e.BytesInRes) {
		return nil, fmt.Errorf("%w: image %d+%d past end of %d byte container",
			mberrors.ErrFormat, e.ImageOffset, e.BytesInRes, br.Size())
	}
	if e.BytesInRes > maxContainerSize {
		return nil, fmt.Errorf("%w: image of %d bytes", mberrors.ErrOutOfMemory, e.BytesInRes)
	}
	if _, err := stream.Seek(int64(e.ImageOffset), io.SeekStart); err != nil {
		return nil, fmt.Errorf("%w: seek to image: %v", mberrors.ErrIO, err)
	}
	buf := make([]byte, e.BytesInRes)
	if _, err := io.ReadFull(stream, buf); err != nil {
		return nil, fmt.Errorf("%w: truncated image payload: %v", mberrors.ErrFormat, err)
	}
	return buf, nil
}
