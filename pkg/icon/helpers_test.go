package icon

import (
	"bytes"
	"encoding/binary"
	"image"
	"image/color"
	"image/png"
	"os"
	"testing"

	"github.com/hashicorp/go-hclog"
)

func testLogger(name string) hclog.Logger {
	return hclog.New(&hclog.LoggerOptions{
		Name:   name,
		Level:  hclog.Trace,
		Output: os.Stderr,
	})
}

func solidImage(size int, c color.NRGBA) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			img.SetNRGBA(x, y, c)
		}
	}
	return img
}

func pngBytes(t *testing.T, size int) []byte {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, solidImage(size, color.NRGBA{R: 0xC0, G: 0x20, B: 0x40, A: 0xFF})); err != nil {
		t.Fatalf("png.Encode: %v", err)
	}
	return buf.Bytes()
}

// dibBytes builds a 32 bpp BITMAPINFOHEADER image with an AND mask, as
// stored inside .ico files and RT_ICON resources.
func dibBytes(size int) []byte {
	var buf bytes.Buffer
	le := binary.LittleEndian
	binary.Write(&buf, le, uint32(40))
	binary.Write(&buf, le, int32(size))
	binary.Write(&buf, le, int32(size*2))
	binary.Write(&buf, le, uint16(1))
	binary.Write(&buf, le, uint16(32))
	binary.Write(&buf, le, uint32(0))
	binary.Write(&buf, le, uint32(size*size*4))
	binary.Write(&buf, le, [4]uint32{})
	for i := 0; i < size*size; i++ {
		buf.Write([]byte{0x40, 0x20, 0xC0, 0xFF})
	}
	maskRow := ((size + 31) / 32) * 4
	buf.Write(make([]byte, maskRow*size))
	return buf.Bytes()
}

type fakeEntry struct {
	width  int
	height int
	bpp    uint16
}

// directoryOf builds a directory without payloads for selector tests.
func directoryOf(entries ...fakeEntry) *Directory {
	dir := &Directory{Type: TypeIcon}
	for _, e := range entries {
		h := e.height
		if h == 0 {
			h = e.width
		}
		dir.Entries = append(dir.Entries, DirEntry{
			Width:    sizeByte(e.width),
			Height:   sizeByte(h),
			Planes:   1,
			BitCount: e.bpp,
		})
	}
	return dir
}

// icoWithPNGs assembles a real container with one PNG payload per size.
func icoWithPNGs(t *testing.T, sizes ...int) []byte {
	t.Helper()
	var images []RawImage
	for _, s := range sizes {
		images = append(images, RawImage{
			Entry: DirEntry{Width: sizeByte(s), Height: sizeByte(s), Planes: 1, BitCount: 32},
			Data:  pngBytes(t, s),
		})
	}
	r, err := Assemble(images)
	if err != nil {
		t.Fatalf("Assemble: %v", err)
	}
	data := make([]byte, r.Len())
	r.Read(data)
	return data
}
