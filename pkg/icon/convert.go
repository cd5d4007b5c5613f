package icon

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"image"
	"image/png"
	"io"
	"os"
	"path/filepath"

	"github.com/hashicorp/go-hclog"
	"github.com/jackmordaunt/icns/v3"
	"github.com/nfnt/resize"
	ico "github.com/sergeymakinen/go-ico"
	"golang.org/x/image/draw"

	"github.com/provide-io/menubuilder/go/menubuilder/internal/atomicfile"
	mberrors "github.com/provide-io/menubuilder/go/menubuilder/pkg/errors"
)

const (
	// OutputDPI is stamped into multi-frame encodes.
	OutputDPI = 96

	classicSize  = 64
	classicScale = 128

	// maxFrameSize bounds the dimensions a frame header may claim.
	maxFrameSize = 1024

	dibHeaderSize = 40
	biRGB         = 0
)

// DecodeFrame decodes entry i of src into canonical RGBA. PNG payloads are
// decoded directly, DIB payloads through a one-entry ICO.
func DecodeFrame(src *Source, i int) (*image.RGBA, error) {
	if i < 0 || i >= len(src.Dir.Entries) {
		return nil, fmt.Errorf("%w: frame %d of %d", mberrors.ErrNotFound, i, len(src.Dir.Entries))
	}
	e := src.Dir.Entries[i]
	data, err := ImageData(src.Stream, e)
	if err != nil {
		return nil, err
	}

	if err := checkFrame(data, e); err != nil {
		return nil, fmt.Errorf("%w: frame %d (%dx%d, %d bpp): %v",
			mberrors.ErrFormat, i, e.PixelWidth(), e.PixelHeight(), e.BitCount, err)
	}

	img, err := decodePayload(data, e)
	if err != nil {
		return nil, fmt.Errorf("%w: frame %d (%dx%d, %d bpp): %v",
			mberrors.ErrFormat, i, e.PixelWidth(), e.PixelHeight(), e.BitCount, err)
	}
	return toRGBA(img), nil
}

// decodePayload runs the image decoders on a checked payload. A decoder
// panic on malformed pixel data is reported as an error.
func decodePayload(data []byte, e DirEntry) (img image.Image, err error) {
	defer func() {
		if r := recover(); r != nil {
			img, err = nil, fmt.Errorf("decoder panic: %v", r)
		}
	}()
	if bytes.HasPrefix(data, pngSignature) {
		return png.Decode(bytes.NewReader(data))
	}
	single, err := Assemble([]RawImage{{Entry: e, Data: data}})
	if err != nil {
		return nil, err
	}
	return ico.Decode(single)
}

// checkFrame validates the size a PNG or DIB header claims against its
// directory entry and payload before anything is allocated for it.
func checkFrame(data []byte, e DirEntry) error {
	var w, h int
	if bytes.HasPrefix(data, pngSignature) {
		cfg, err := png.DecodeConfig(bytes.NewReader(data))
		if err != nil {
			return err
		}
		w, h = cfg.Width, cfg.Height
	} else {
		var err error
		if w, h, err = checkDIB(data); err != nil {
			return err
		}
	}

	if w <= 0 || h <= 0 || w > maxFrameSize || h > maxFrameSize {
		return fmt.Errorf("header claims %dx%d", w, h)
	}
	if !sizeMatches(e.Width, w) || !sizeMatches(e.Height, h) {
		return fmt.Errorf("header claims %dx%d, directory says %dx%d", w, h, e.PixelWidth(), e.PixelHeight())
	}
	return nil
}

// sizeMatches compares a directory size byte with a header size. A zero
// byte stands for 256 or more.
func sizeMatches(dirSize uint8, n int) bool {
	if dirSize == 0 {
		return n >= 256
	}
	return int(dirSize) == n
}

// checkDIB reads the BITMAPINFOHEADER of an icon image and makes sure an
// uncompressed pixel array fits in data. The height covers the XOR and
// AND masks, so the image height is half of it.
func checkDIB(data []byte) (int, int, error) {
	if len(data) < dibHeaderSize {
		return 0, 0, fmt.Errorf("DIB header truncated at %d bytes", len(data))
	}
	le := binary.LittleEndian
	hdrSize := int64(le.Uint32(data[0:]))
	w := int64(int32(le.Uint32(data[4:])))
	h := int64(int32(le.Uint32(data[8:])))
	bpp := int64(le.Uint16(data[14:]))
	compression := le.Uint32(data[16:])
	clrUsed := int64(le.Uint32(data[32:]))

	if hdrSize < dibHeaderSize || hdrSize > int64(len(data)) {
		return 0, 0, fmt.Errorf("DIB header size %d", hdrSize)
	}
	if h < 0 {
		h = -h
	}
	h /= 2
	if w <= 0 || h <= 0 || w > maxFrameSize || h > maxFrameSize {
		return int(w), int(h), nil
	}
	if compression != biRGB {
		return int(w), int(h), nil
	}

	var palette int64
	switch bpp {
	case 1, 4, 8:
		palette = int64(1) << bpp
		if clrUsed > 0 && clrUsed < palette {
			palette = clrUsed
		}
	case 16, 24, 32:
	default:
		return 0, 0, fmt.Errorf("DIB bit count %d", bpp)
	}
	stride := (w*bpp + 31) / 32 * 4
	need := hdrSize + palette*4 + stride*h
	if need > int64(len(data)) {
		return 0, 0, fmt.Errorf("DIB of %dx%d at %d bpp needs %d bytes, has %d", w, h, bpp, need, len(data))
	}
	return int(w), int(h), nil
}

func toRGBA(img image.Image) *image.RGBA {
	if rgba, ok := img.(*image.RGBA); ok && rgba.Bounds().Min == (image.Point{}) {
		return rgba
	}
	b := img.Bounds()
	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), img, b.Min, draw.Src)
	return dst
}

// upscaleClassic turns a 64px classic icon into a 128px frame with
// nearest-neighbor sampling. Other sizes pass through.
func upscaleClassic(img *image.RGBA) *image.RGBA {
	if img.Bounds().Dx() != classicSize || img.Bounds().Dy() != classicSize {
		return img
	}
	return toRGBA(resize.Resize(classicScale, classicScale, img, resize.NearestNeighbor))
}

// EncodePNG writes img as PNG. A positive dpi adds a pHYs chunk.
func EncodePNG(w io.Writer, img image.Image, dpi int) error {
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		return fmt.Errorf("%w: png: %v", mberrors.ErrEncode, err)
	}
	data := buf.Bytes()
	if dpi > 0 {
		data = withPhysChunk(data, dpi)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("%w: png write: %v", mberrors.ErrIO, err)
	}
	return nil
}

// withPhysChunk inserts a pHYs chunk right after IHDR.
func withPhysChunk(data []byte, dpi int) []byte {
	const ihdrEnd = 8 + 8 + 13 + 4
	if len(data) < ihdrEnd {
		return data
	}
	ppm := uint32(float64(dpi)/0.0254 + 0.5)

	chunk := make([]byte, 4+4+9+4)
	binary.BigEndian.PutUint32(chunk[0:], 9)
	copy(chunk[4:], "pHYs")
	binary.BigEndian.PutUint32(chunk[8:], ppm)
	binary.BigEndian.PutUint32(chunk[12:], ppm)
	chunk[16] = 1 // unit: metre
	binary.BigEndian.PutUint32(chunk[17:], crc32.ChecksumIEEE(chunk[4:17]))

	out := make([]byte, 0, len(data)+len(chunk))
	out = append(out, data[:ihdrEnd]...)
	out = append(out, chunk...)
	return append(out, data[ihdrEnd:]...)
}

// Converter turns assembled icon containers into native image files.
type Converter struct {
	Logger hclog.Logger
}

// NewConverter returns a Converter logging to logger.
func NewConverter(logger hclog.Logger) *Converter {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	return &Converter{Logger: logger}
}

// ConvertToPNG writes the single best frame of src as PNG.
func (c *Converter) ConvertToPNG(src *Source, w io.Writer) error {
	src.Rewind()
	best := SelectBest(src.Dir)
	if best < 0 {
		return fmt.Errorf("%w: empty icon directory", mberrors.ErrNotFound)
	}
	img, err := DecodeFrame(src, best)
	if err != nil {
		return err
	}
	c.Logger.Debug("🖼️ Encoding PNG", "index", best, "width", img.Bounds().Dx(), "bpp", src.Dir.Entries[best].BitCount)
	return EncodePNG(w, img, 0)
}

// ConvertToICNS writes every bucket winner of src into one ICNS container.
// Frames that fail to decode are logged and skipped.
func (c *Converter) ConvertToICNS(src *Source, w io.Writer) error {
	src.Rewind()
	indices := SelectBuckets(src.Dir)
	if len(indices) == 0 {
		return c.convertOddSizeToICNS(src, w)
	}

	var frames []image.Image
	for _, i := range indices {
		img, err := DecodeFrame(src, i)
		if err != nil {
			c.Logger.Warn("⚠️ Skipping icon frame", "index", i, "error", err)
			continue
		}
		frames = append(frames, upscaleClassic(img))
	}
	return EncodeICNS(w, frames, c.Logger)
}

// convertOddSizeToICNS handles containers without any bucket size by letting
// the icns encoder resample the best frame.
func (c *Converter) convertOddSizeToICNS(src *Source, w io.Writer) error {
	best := SelectBest(src.Dir)
	if best < 0 {
		return fmt.Errorf("%w: empty icon directory", mberrors.ErrNotFound)
	}
	img, err := DecodeFrame(src, best)
	if err != nil {
		return err
	}
	c.Logger.Debug("🖼️ Resampling odd-sized icon for ICNS", "width", img.Bounds().Dx(), "height", img.Bounds().Dy())
	if err := icns.NewEncoder(w).WithAlgorithm(icns.NearestNeighbor).Encode(img); err != nil {
		return fmt.Errorf("%w: icns: %v", mberrors.ErrEncode, err)
	}
	return nil
}

// PNGFile is one file written by ConvertToPNGSet.
type PNGFile struct {
	Size int
	Path string
}

// ConvertToPNGSet writes one PNG per distinct square size, using
// pathFor(size) as the destination. Sizes that fail are logged and skipped.
func (c *Converter) ConvertToPNGSet(src *Source, pathFor func(size int) string) ([]PNGFile, error) {
	src.Rewind()
	sizes := SelectPerSize(src.Dir)
	if len(sizes) == 0 {
		return nil, fmt.Errorf("%w: no square icon image", mberrors.ErrNotFound)
	}
	var written []PNGFile
	for _, si := range sizes {
		img, err := DecodeFrame(src, si.Index)
		if err != nil {
			c.Logger.Warn("⚠️ Skipping icon size", "size", si.Size, "error", err)
			continue
		}
		var buf bytes.Buffer
		if err := EncodePNG(&buf, img, OutputDPI); err != nil {
			c.Logger.Warn("⚠️ Skipping icon size", "size", si.Size, "error", err)
			continue
		}
		path := pathFor(si.Size)
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return written, fmt.Errorf("%w: %v", mberrors.ErrIO, err)
		}
		if err := atomicfile.WriteFile(path, buf.Bytes(), 0644, c.Logger); err != nil {
			return written, fmt.Errorf("%w: %v", mberrors.ErrIO, err)
		}
		written = append(written, PNGFile{Size: si.Size, Path: path})
	}
	if len(written) == 0 {
		return nil, fmt.Errorf("%w: no icon size could be written", mberrors.ErrEncode)
	}
	return written, nil
}

// WriteFile converts src with encode into a buffer and commits it to path
// in one step, so a failed encode never leaves a truncated file behind.
func (c *Converter) WriteFile(path string, src *Source, encode func(*Source, io.Writer) error) error {
	var buf bytes.Buffer
	if err := encode(src, &buf); err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("%w: %v", mberrors.ErrIO, err)
	}
	if err := atomicfile.WriteFile(path, buf.Bytes(), 0644, c.Logger); err != nil {
		return fmt.Errorf("%w: %v", mberrors.ErrIO, err)
	}
	c.Logger.Debug("✅ Wrote icon", "path", path, "bytes", buf.Len())
	return nil
}
