package icon

import (
	"encoding/binary"
	"fmt"

	mberrors "github.com/provide-io/menubuilder/go/menubuilder/pkg/errors"
)

// reader is a bounds-checked little-endian cursor over an owned buffer.
type reader struct {
	data []byte
	pos  int
}

func newReader(data []byte) *reader {
	return &reader{data: data}
}

func (r *reader) Len() int {
	return len(r.data)
}

func (r *reader) Pos() int {
	return r.pos
}

// Seek moves the cursor to an absolute offset, which may equal the length.
func (r *reader) Seek(off int) error {
	if off < 0 || off > len(r.data) {
		return fmt.Errorf("%w: offset %d outside %d bytes", mberrors.ErrFormat, off, len(r.data))
	}
	r.pos = off
	return nil
}

func (r *reader) need(n int) error {
	if n < 0 || r.pos+n > len(r.data) || r.pos+n < r.pos {
		return fmt.Errorf("%w: need %d bytes at offset %d, have %d", mberrors.ErrFormat, n, r.pos, len(r.data)-r.pos)
	}
	return nil
}

func (r *reader) U8() (uint8, error) {
	if err := r.need(1); err != nil {
		return 0, err
	}
	v := r.data[r.pos]
	r.pos++
	return v, nil
}

func (r *reader) U16() (uint16, error) {
	if err := r.need(2); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint16(r.data[r.pos:])
	r.pos += 2
	return v, nil
}

func (r *reader) U32() (uint32, error) {
	if err := r.need(4); err != nil {
		return 0, err
	}
	v := binary.LittleEndian.Uint32(r.data[r.pos:])
	r.pos += 4
	return v, nil
}

// Bytes returns a sub-slice of the buffer without copying.
func (r *reader) Bytes(n int) ([]byte, error) {
	if err := r.need(n); err != nil {
		return nil, err
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

// Slice returns data[off:off+n] after validating the range.
func (r *reader) Slice(off, n int) ([]byte, error) {
	if off < 0 || n < 0 || off > len(r.data) || n > len(r.data)-off {
		return nil, fmt.Errorf("%w: range %d+%d outside %d bytes", mberrors.ErrFormat, off, n, len(r.data))
	}
	return r.data[off : off+n], nil
}

// writer is a bounds-checked cursor over a buffer allocated up front.
type writer struct {
	buf []byte
	pos int
}

func newWriter(size int) (*writer, error) {
	if size < 0 || size > maxContainerSize {
		return nil, fmt.Errorf("%w: %d bytes", mberrors.ErrOutOfMemory, size)
	}
	return &writer{buf: make([]byte, size)}, nil
}

func (w *writer) room(n int) error {
	if w.pos+n > len(w.buf) {
		return fmt.Errorf("%w: write of %d bytes at %d overflows %d", mberrors.ErrIO, n, w.pos, len(w.buf))
	}
	return nil
}

func (w *writer) U8(v uint8) error {
	if err := w.room(1); err != nil {
		return err
	}
	w.buf[w.pos] = v
	w.pos++
	return nil
}

func (w *writer) U16(v uint16) error {
	if err := w.room(2); err != nil {
		return err
	}
	binary.LittleEndian.PutUint16(w.buf[w.pos:], v)
	w.pos += 2
	return nil
}

func (w *writer) U32(v uint32) error {
	if err := w.room(4); err != nil {
		return err
	}
	binary.LittleEndian.PutUint32(w.buf[w.pos:], v)
	w.pos += 4
	return nil
}

func (w *writer) Write(p []byte) error {
	if err := w.room(len(p)); err != nil {
		return err
	}
	copy(w.buf[w.pos:], p)
	w.pos += len(p)
	return nil
}

func (w *writer) Bytes() []byte {
	return w.buf[:w.pos]
}
