package icon

import (
	"bytes"
	"encoding/binary"
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/tc-hib/winres"

	mberrors "github.com/provide-io/menubuilder/go/menubuilder/pkg/errors"
)

func resourceSetWithIcons(t *testing.T, groups map[winres.Identifier][]int) *winres.ResourceSet {
	t.Helper()
	rs := &winres.ResourceSet{}
	for id, sizes := range groups {
		var imgs []image.Image
		for _, s := range sizes {
			imgs = append(imgs, solidImage(s, color.NRGBA{R: 0x10, G: 0x80, B: 0xF0, A: 0xFF}))
		}
		icn, err := winres.NewIconFromImages(imgs)
		if err != nil {
			t.Fatalf("NewIconFromImages: %v", err)
		}
		if err := rs.SetIcon(id, icn); err != nil {
			t.Fatalf("SetIcon: %v", err)
		}
	}
	return rs
}

func TestExtractPE_ThreeSizes(t *testing.T) {
	logger := testLogger("pe_test")
	rs := resourceSetWithIcons(t, map[winres.Identifier][]int{
		winres.ID(1): {16, 32, 256},
	})

	stream, err := ExtractPE(rs, 0)
	if err != nil {
		t.Fatalf("ExtractPE() error = %v", err)
	}
	dir, err := ParseDirectory(stream)
	if err != nil {
		t.Fatalf("ParseDirectory() error = %v", err)
	}
	if len(dir.Entries) != 3 {
		t.Fatalf("entries = %d, want 3", len(dir.Entries))
	}

	src := &Source{Kind: KindPE, Stream: stream, Dir: dir}
	var out bytes.Buffer
	if err := NewConverter(logger).ConvertToICNS(src, &out); err != nil {
		t.Fatalf("ConvertToICNS() error = %v", err)
	}

	types := icnsElementTypes(t, out.Bytes())
	want := []string{"is32", "s8mk", "il32", "l8mk", "ic08"}
	if len(types) != len(want) {
		t.Fatalf("ICNS elements = %v, want %v", types, want)
	}
	for i := range want {
		if types[i] != want[i] {
			t.Errorf("element %d = %s, want %s", i, types[i], want[i])
		}
	}
}

func TestExtractPE_GroupSelection(t *testing.T) {
	rs := resourceSetWithIcons(t, map[winres.Identifier][]int{
		winres.Name("APPICON"): {48},
		winres.ID(7):           {16},
		winres.ID(3):           {32},
	})

	if n := CountPEGroups(rs); n != 3 {
		t.Fatalf("CountPEGroups() = %d, want 3", n)
	}

	tests := []struct {
		name  string
		index int
		width int
	}{
		{name: "names come first", index: 0, width: 48},
		{name: "then lowest ID", index: 1, width: 32},
		{name: "then next ID", index: 2, width: 16},
		{name: "negative index is resource ID", index: -7, width: 16},
		{name: "negative index other ID", index: -3, width: 32},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stream, err := ExtractPE(rs, tt.index)
			if err != nil {
				t.Fatalf("ExtractPE(%d) error = %v", tt.index, err)
			}
			dir, err := ParseDirectory(stream)
			if err != nil {
				t.Fatal(err)
			}
			if got := dir.Entries[0].PixelWidth(); got != tt.width {
				t.Errorf("ExtractPE(%d) width = %d, want %d", tt.index, got, tt.width)
			}
		})
	}

	for _, idx := range []int{3, -99} {
		if _, err := ExtractPE(rs, idx); !errors.Is(err, mberrors.ErrNotFound) {
			t.Errorf("ExtractPE(%d) error = %v, want ErrNotFound", idx, err)
		}
	}
}

func TestExtractPE_NoIcons(t *testing.T) {
	rs := &winres.ResourceSet{}
	if err := rs.Set(winres.RT_RCDATA, winres.ID(1), winres.LCIDNeutral, []byte("data")); err != nil {
		t.Fatal(err)
	}
	if _, err := ExtractPE(rs, 0); !errors.Is(err, mberrors.ErrNotFound) {
		t.Errorf("ExtractPE() error = %v, want ErrNotFound", err)
	}
}

// icnsElementTypes lists the element types of an ICNS container in order.
func icnsElementTypes(t *testing.T, data []byte) []string {
	t.Helper()
	if len(data) < 8 || string(data[:4]) != "icns" {
		t.Fatalf("missing icns magic")
	}
	if total := binary.BigEndian.Uint32(data[4:]); int(total) != len(data) {
		t.Fatalf("icns length field = %d, file is %d bytes", total, len(data))
	}
	var types []string
	for off := 8; off < len(data); {
		if off+8 > len(data) {
			t.Fatalf("truncated element header at %d", off)
		}
		size := int(binary.BigEndian.Uint32(data[off+4:]))
		if size < 8 || off+size > len(data) {
			t.Fatalf("bad element size %d at %d", size, off)
		}
		types = append(types, string(data[off:off+4]))
		off += size
	}
	return types
}
