package icon

import (
	"bytes"
	"fmt"

	mberrors "github.com/provide-io/menubuilder/go/menubuilder/pkg/errors"
)

// RawImage is one icon image pulled out of a resource table together with
// the directory metadata that described it there.
type RawImage struct {
	Entry DirEntry
	Data  []byte
}

// Assemble writes images into a fresh ICO container and returns it rewound
// to offset 0. Entry offsets and sizes are rewritten for the new layout.
func Assemble(images []RawImage) (*bytes.Reader, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("%w: no icon images to assemble", mberrors.ErrNotFound)
	}
	if len(images) > 0xFFFF {
		return nil, fmt.Errorf("%w: %d images", mberrors.ErrFormat, len(images))
	}

	headerSize := SizeOfDirHeader + len(images)*SizeOfDirEntry
	total := headerSize
	for _, img := range images {
		total += len(img.Data)
		if total > maxContainerSize {
			return nil, fmt.Errorf("%w: container exceeds %d bytes", mberrors.ErrOutOfMemory, maxContainerSize)
		}
	}

	w, err := newWriter(total)
	if err != nil {
		return nil, err
	}
	if err := w.U16(0); err != nil {
		return nil, err
	}
	if err := w.U16(TypeIcon); err != nil {
		return nil, err
	}
	if err := w.U16(uint16(len(images))); err != nil {
		return nil, err
	}

	offset := uint32(headerSize)
	for _, img := range images {
		e := img.Entry
		e.BytesInRes = uint32(len(img.Data))
		e.ImageOffset = offset
		if err := writeDirEntry(w, e); err != nil {
			return nil, err
		}
		offset += e.BytesInRes
	}
	for _, img := range images {
		if err := w.Write(img.Data); err != nil {
			return nil, err
		}
	}

	return bytes.NewReader(w.Bytes()), nil
}

func writeDirEntry(w *writer, e DirEntry) error {
	for _, b := range []uint8{e.Width, e.Height, e.ColorCount, e.Reserved} {
		if err := w.U8(b); err != nil {
			return err
		}
	}
	if err := w.U16(e.Planes); err != nil {
		return err
	}
	if err := w.U16(e.BitCount); err != nil {
		return err
	}
	if err := w.U32(e.BytesInRes); err != nil {
		return err
	}
	return w.U32(e.ImageOffset)
}

// readGroupEntry reads a GRPICONDIRENTRY and returns the directory part plus
// the resource ID of the image it names.
func readGroupEntry(r *reader) (DirEntry, uint16, error) {
	var e DirEntry
	var err error
	if e.Width, err = r.U8(); err != nil {
		return e, 0, err
	}
	if e.Height, err = r.U8(); err != nil {
		return e, 0, err
	}
	if e.ColorCount, err = r.U8(); err != nil {
		return e, 0, err
	}
	if e.Reserved, err = r.U8(); err != nil {
		return e, 0, err
	}
	if e.Planes, err = r.U16(); err != nil {
		return e, 0, err
	}
	if e.BitCount, err = r.U16(); err != nil {
		return e, 0, err
	}
	if e.BytesInRes, err = r.U32(); err != nil {
		return e, 0, err
	}
	id, err := r.U16()
	if err != nil {
		return e, 0, err
	}
	return e, id, nil
}

// parseGroup reads an RT_GROUP_ICON payload.
func parseGroup(data []byte) ([]DirEntry, []uint16, error) {
	r := newReader(data)
	reserved, err := r.U16()
	if err != nil {
		return nil, nil, err
	}
	typ, err := r.U16()
	if err != nil {
		return nil, nil, err
	}
	count, err := r.U16()
	if err != nil {
		return nil, nil, err
	}
	if reserved != 0 || typ != TypeIcon {
		return nil, nil, fmt.Errorf("%w: group header reserved=%d type=%d", mberrors.ErrFormat, reserved, typ)
	}
	entries := make([]DirEntry, 0, count)
	ids := make([]uint16, 0, count)
	for i := 0; i < int(count); i++ {
		e, id, err := readGroupEntry(r)
		if err != nil {
			return nil, nil, err
		}
		entries = append(entries, e)
		ids = append(ids, id)
	}
	return entries, ids, nil
}
