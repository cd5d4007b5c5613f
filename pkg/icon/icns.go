package icon

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"image"
	"io"

	"github.com/hashicorp/go-hclog"

	mberrors "github.com/provide-io/menubuilder/go/menubuilder/pkg/errors"
)

// icnsType describes how one frame size is stored in an ICNS container.
type icnsType struct {
	image string
	mask  string // empty for PNG-backed types
}

var icnsTypes = map[int]icnsType{
	16:  {image: "is32", mask: "s8mk"},
	32:  {image: "il32", mask: "l8mk"},
	48:  {image: "ih32", mask: "h8mk"},
	128: {image: "ic07"},
	256: {image: "ic08"},
	512: {image: "ic09"},
}

const icnsHeaderSize = 8

// EncodeICNS writes frames into an ICNS container, one element per frame.
// Frames of a size ICNS cannot hold are logged and skipped. The container
// is only written once every frame has been encoded.
func EncodeICNS(w io.Writer, frames []image.Image, logger hclog.Logger) error {
	if logger == nil {
		logger = hclog.NewNullLogger()
	}
	var body bytes.Buffer
	written := 0
	for _, img := range frames {
		size := img.Bounds().Dx()
		t, ok := icnsTypes[size]
		if !ok || img.Bounds().Dy() != size {
			logger.Warn("⚠️ Skipping frame with no ICNS slot", "width", size, "height", img.Bounds().Dy())
			continue
		}
		rgba := toRGBA(img)
		if t.mask == "" {
			var png bytes.Buffer
			if err := EncodePNG(&png, rgba, OutputDPI); err != nil {
				logger.Warn("⚠️ Skipping ICNS frame", "size", size, "error", err)
				continue
			}
			writeICNSElement(&body, t.image, png.Bytes())
		} else {
			rgb, mask := splitChannels(rgba)
			writeICNSElement(&body, t.image, rgb)
			writeICNSElement(&body, t.mask, mask)
		}
		logger.Trace("Added ICNS frame", "type", t.image, "size", size)
		written++
	}
	if written == 0 {
		return fmt.Errorf("%w: no frame could be encoded as ICNS", mberrors.ErrEncode)
	}

	header := make([]byte, icnsHeaderSize)
	copy(header, "icns")
	binary.BigEndian.PutUint32(header[4:], uint32(icnsHeaderSize+body.Len()))
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("%w: icns header: %v", mberrors.ErrEncode, err)
	}
	if _, err := w.Write(body.Bytes()); err != nil {
		return fmt.Errorf("%w: icns body: %v", mberrors.ErrEncode, err)
	}
	return nil
}

func writeICNSElement(buf *bytes.Buffer, typ string, data []byte) {
	var hdr [icnsHeaderSize]byte
	copy(hdr[:], typ)
	binary.BigEndian.PutUint32(hdr[4:], uint32(icnsHeaderSize+len(data)))
	buf.Write(hdr[:])
	buf.Write(data)
}

// splitChannels packs the red, green and blue planes one after another,
// each PackBits-compressed, and returns the raw alpha plane as the mask.
func splitChannels(img *image.RGBA) (rgb []byte, mask []byte) {
	b := img.Bounds()
	n := b.Dx() * b.Dy()
	planes := [3][]byte{make([]byte, 0, n), make([]byte, 0, n), make([]byte, 0, n)}
	mask = make([]byte, 0, n)
	for y := b.Min.Y; y < b.Max.Y; y++ {
		row := img.Pix[img.PixOffset(b.Min.X, y):]
		for x := 0; x < b.Dx(); x++ {
			px := row[x*4 : x*4+4]
			r, g, bl, a := px[0], px[1], px[2], px[3]
			if a != 0 && a != 0xFF {
				// RGBA is premultiplied; ICNS planes are not.
				r = uint8(uint16(r) * 0xFF / uint16(a))
				g = uint8(uint16(g) * 0xFF / uint16(a))
				bl = uint8(uint16(bl) * 0xFF / uint16(a))
			}
			planes[0] = append(planes[0], r)
			planes[1] = append(planes[1], g)
			planes[2] = append(planes[2], bl)
			mask = append(mask, a)
		}
	}
	for _, p := range planes {
		rgb = append(rgb, packBits(p)...)
	}
	return rgb, mask
}

// packBits is the ICNS flavour of PackBits: a control byte below 0x80 is
// followed by that many plus one literal bytes, a control byte of 0x80 or
// more repeats the next byte (control - 0x80 + 3) times.
func packBits(data []byte) []byte {
	var out []byte
	i := 0
	for i < len(data) {
		run := 1
		for i+run < len(data) && run < 130 && data[i+run] == data[i] {
			run++
		}
		if run >= 3 {
			out = append(out, byte(0x80+run-3), data[i])
			i += run
			continue
		}

		start := i
		for i < len(data) && i-start < 128 {
			if i+2 < len(data) && data[i] == data[i+1] && data[i] == data[i+2] {
				break
			}
			i++
		}
		out = append(out, byte(i-start-1))
		out = append(out, data[start:i]...)
	}
	return out
}
