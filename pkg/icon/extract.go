package icon

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image/png"
	"io"
	"os"

	"golang.org/x/image/bmp"

	mberrors "github.com/provide-io/menubuilder/go/menubuilder/pkg/errors"
)

var (
	pngSignature = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1A, '\n'}
	icoSignature = []byte{0, 0, TypeIcon, 0}
)

// Kind names the container an icon was pulled from.
type Kind string

const (
	KindICO Kind = "ico"
	KindPNG Kind = "png"
	KindBMP Kind = "bmp"
	KindNE  Kind = "ne"
	KindPE  Kind = "pe"
)

// Source is an assembled icon container and its parsed directory.
type Source struct {
	Kind   Kind
	Stream *bytes.Reader
	Dir    *Directory
}

// Rewind seeks the container back to offset 0.
func (s *Source) Rewind() {
	_, _ = s.Stream.Seek(0, io.SeekStart)
}

// Open reads path and extracts the icon selected by index.
func Open(path string, index int) (*Source, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", mberrors.ErrNotFound, path)
		}
		return nil, fmt.Errorf("%w: failed to read %s: %v", mberrors.ErrIO, path, err)
	}
	return Load(data, index)
}

// Load sniffs data and extracts the icon selected by index. Plain .ico, PNG
// and BMP files ignore the index.
func Load(data []byte, index int) (*Source, error) {
	var (
		stream *bytes.Reader
		kind   Kind
		err    error
	)
	switch {
	case bytes.HasPrefix(data, icoSignature):
		kind, stream = KindICO, bytes.NewReader(data)
	case bytes.HasPrefix(data, pngSignature):
		kind = KindPNG
		stream, err = wrapPNG(data)
	case bytes.HasPrefix(data, []byte("BM")):
		kind = KindBMP
		stream, err = wrapBMP(data)
	case bytes.HasPrefix(data, []byte("MZ")):
		kind, stream, err = extractModule(data, index)
	default:
		return nil, fmt.Errorf("%w: unrecognised icon source", mberrors.ErrUnsupported)
	}
	if err != nil {
		return nil, err
	}

	dir, err := ParseDirectory(stream)
	if err != nil {
		return nil, err
	}
	src := &Source{Kind: kind, Stream: stream, Dir: dir}
	src.Rewind()
	return src, nil
}

func extractModule(data []byte, index int) (Kind, *bytes.Reader, error) {
	if len(data) < offsetOfLfanew+4 {
		return "", nil, fmt.Errorf("%w: truncated MZ header", mberrors.ErrFormat)
	}
	lfanew := int(binary.LittleEndian.Uint32(data[offsetOfLfanew:]))
	if lfanew < 0 || lfanew > len(data)-4 {
		return "", nil, fmt.Errorf("%w: e_lfanew %d outside file", mberrors.ErrFormat, lfanew)
	}
	sig := data[lfanew : lfanew+4]
	switch {
	case sig[0] == 'N' && sig[1] == 'E':
		s, err := ExtractNE(data, index)
		return KindNE, s, err
	case bytes.Equal(sig, []byte{'P', 'E', 0, 0}):
		rs, err := LoadPE(bytes.NewReader(data))
		if err != nil {
			return KindPE, nil, err
		}
		s, err := ExtractPE(rs, index)
		return KindPE, s, err
	}
	return "", nil, fmt.Errorf("%w: MZ file without NE or PE header", mberrors.ErrUnsupported)
}

func sizeByte(n int) uint8 {
	if n >= 256 {
		return 0
	}
	return uint8(n)
}

// wrapPNG places a bare PNG in a one-entry container.
func wrapPNG(data []byte) (*bytes.Reader, error) {
	cfg, err := png.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: png header: %v", mberrors.ErrFormat, err)
	}
	entry := DirEntry{
		Width:    sizeByte(cfg.Width),
		Height:   sizeByte(cfg.Height),
		Planes:   1,
		BitCount: 32,
	}
	return Assemble([]RawImage{{Entry: entry, Data: data}})
}

// wrapBMP re-encodes a BMP file as a PNG entry so the converter only ever
// sees PNG or DIB payloads.
func wrapBMP(data []byte) (*bytes.Reader, error) {
	cfg, err := bmp.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: bmp header: %v", mberrors.ErrFormat, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > maxFrameSize || cfg.Height > maxFrameSize {
		return nil, fmt.Errorf("%w: bmp of %dx%d", mberrors.ErrFormat, cfg.Width, cfg.Height)
	}
	img, err := bmp.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: bmp: %v", mberrors.ErrFormat, err)
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return nil, fmt.Errorf("%w: bmp to png: %v", mberrors.ErrEncode, err)
	}
	return wrapPNG(buf.Bytes())
}
