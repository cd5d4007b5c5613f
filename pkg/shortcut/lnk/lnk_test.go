package lnk

import (
	"bytes"
	"encoding/binary"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"unicode/utf16"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	mberrors "github.com/provide-io/menubuilder/go/menubuilder/pkg/errors"
)

func put16(b *bytes.Buffer, v uint16) { binary.Write(b, binary.LittleEndian, v) }
func put32(b *bytes.Buffer, v uint32) { binary.Write(b, binary.LittleEndian, v) }

func wide(s string) []byte {
	var b bytes.Buffer
	for _, u := range utf16.Encode([]rune(s)) {
		put16(&b, u)
	}
	return b.Bytes()
}

func wideZ(s string) []byte {
	return append(wide(s), 0, 0)
}

func header(flags uint32, iconIndex int32) []byte {
	var b bytes.Buffer
	put32(&b, headerSize)
	b.Write(linkCLSID)
	put32(&b, flags)
	put32(&b, 0x20)           // attributes
	b.Write(make([]byte, 24)) // times
	put32(&b, 0)              // size
	put32(&b, uint32(iconIndex))
	put32(&b, 1) // SW_SHOWNORMAL
	put16(&b, 0)
	b.Write(make([]byte, 10))
	return b.Bytes()
}

func shellItem(data []byte) []byte {
	var b bytes.Buffer
	put16(&b, uint16(len(data)+2))
	b.Write(data)
	return b.Bytes()
}

// fileEntry builds a version 9 file entry item with a long name extension.
func fileEntry(itemType byte, primary, long string) []byte {
	var b bytes.Buffer
	b.WriteByte(itemType)
	b.WriteByte(0)
	b.Write(make([]byte, 4+4+2)) // size, modified, attributes
	b.WriteString(primary)
	b.WriteByte(0)
	if b.Len()%2 == 1 {
		b.WriteByte(0)
	}

	var ext bytes.Buffer
	put16(&ext, 0) // patched below
	put16(&ext, 9)
	put32(&ext, extensionSignature)
	ext.Write(make([]byte, 4+4)) // created, accessed
	put16(&ext, 0x2E)
	ext.Write(make([]byte, 2+8+8+2+4+4))
	ext.Write(wideZ(long))
	put16(&ext, 0x14)
	raw := ext.Bytes()
	binary.LittleEndian.PutUint16(raw, uint16(len(raw)))
	b.Write(raw)
	return b.Bytes()
}

func idList() []byte {
	var items bytes.Buffer
	root := append([]byte{0x1F, 0x50}, make([]byte, 16)...)
	items.Write(shellItem(root))
	volume := append([]byte{0x2F}, []byte("C:\\")...)
	volume = append(volume, make([]byte, 19)...)
	items.Write(shellItem(volume))
	items.Write(shellItem(fileEntry(0x31, "PROGRA~1", "Program Files")))
	items.Write(shellItem(fileEntry(0x32, "MYAPP~1.EXE", "My App.exe")))
	put16(&items, 0)

	var b bytes.Buffer
	put16(&b, uint16(items.Len()))
	b.Write(items.Bytes())
	return b.Bytes()
}

func linkInfo(base, suffix string) []byte {
	volumeID := []byte{0x11, 0, 0, 0, 3, 0, 0, 0, 0, 0, 0, 0, 0x10, 0, 0, 0, 0}
	localOff := 0x1C + len(volumeID)
	suffixOff := localOff + len(base) + 1
	size := suffixOff + len(suffix) + 1

	var b bytes.Buffer
	put32(&b, uint32(size))
	put32(&b, 0x1C)
	put32(&b, 1)
	put32(&b, 0x1C)
	put32(&b, uint32(localOff))
	put32(&b, 0)
	put32(&b, uint32(suffixOff))
	b.Write(volumeID)
	b.WriteString(base)
	b.WriteByte(0)
	b.WriteString(suffix)
	b.WriteByte(0)
	return b.Bytes()
}

func stringData(wideStrings bool, s string) []byte {
	var b bytes.Buffer
	if wideStrings {
		put16(&b, uint16(len(utf16.Encode([]rune(s)))))
		b.Write(wide(s))
	} else {
		put16(&b, uint16(len(s)))
		b.WriteString(s)
	}
	return b.Bytes()
}

func envBlock(signature uint32, value string) []byte {
	var b bytes.Buffer
	put32(&b, 0x314)
	put32(&b, signature)
	ansi := make([]byte, 260)
	copy(ansi, value)
	b.Write(ansi)
	uni := make([]byte, 520)
	copy(uni, wide(value))
	b.Write(uni)
	return b.Bytes()
}

func fullLink() []byte {
	flags := uint32(HasLinkTargetIDList | HasLinkInfo | HasName | HasWorkingDir |
		HasArguments | HasIconLocation | IsUnicode | HasExpIcon)

	var b bytes.Buffer
	b.Write(header(flags, -2))
	b.Write(idList())
	b.Write(linkInfo(`C:\Program Files\My App.exe`, ""))
	b.Write(stringData(true, "Launches My App"))
	b.Write(stringData(true, `C:\Program Files`))
	b.Write(stringData(true, "--fast --ü"))
	b.Write(stringData(true, `C:\old.ico`))
	b.Write(envBlock(sigIconEnvironment, `%SystemRoot%\app.ico`))
	put32(&b, 0)
	return b.Bytes()
}

func TestParse_Full(t *testing.T) {
	l, err := Parse(fullLink())
	require.NoError(t, err)

	assert.Equal(t, `C:\Program Files\My App.exe`, l.IDListPath)
	assert.Equal(t, `C:\Program Files\My App.exe`, l.TargetPath())
	assert.Equal(t, "Launches My App", l.Name)
	assert.Equal(t, `C:\Program Files`, l.WorkingDir)
	assert.Equal(t, "--fast --ü", l.Arguments)
	assert.Equal(t, `%SystemRoot%\app.ico`, l.IconEnvironment)
	assert.Equal(t, int32(-2), l.IconIndex)

	d := l.Descriptor()
	assert.Equal(t, `%SystemRoot%\app.ico`, d.IconPath)
	assert.Equal(t, -2, d.IconIndex)
	assert.True(t, d.HasIDList)
	assert.Equal(t, "Launches My App", d.Description)
}

func TestParse_ANSIAndDarwin(t *testing.T) {
	var b bytes.Buffer
	b.Write(header(HasArguments|HasDarwinID, 0))
	b.Write(stringData(false, "caf\xe9"))
	b.Write(envBlock(sigDarwin, "w_1^VX!!!!!!!!!MKKSkOffice>tW{~$4Q]c@II=l2xaTO5Z"))
	b.Write(envBlock(sigEnvironment, `%ProgramFiles%\Office\office.exe`))
	put32(&b, 0)

	l, err := Parse(b.Bytes())
	require.NoError(t, err)
	assert.Equal(t, "café", l.Arguments)
	assert.Equal(t, "w_1^VX!!!!!!!!!MKKSkOffice>tW{~$4Q]c@II=l2xaTO5Z", l.DarwinID)
	assert.Equal(t, `%ProgramFiles%\Office\office.exe`, l.TargetPath())
	assert.False(t, l.Descriptor().HasIDList)
}

func TestParse_Invalid(t *testing.T) {
	good := fullLink()
	badCLSID := append([]byte(nil), good...)
	badCLSID[4] = 0xFF

	tests := map[string][]byte{
		"empty":         nil,
		"wrong size":    append([]byte{0x4D, 0, 0, 0}, good[4:]...),
		"wrong clsid":   badCLSID,
		"truncated":     good[:headerSize+10],
		"short strings": good[:len(good)-0x314-30],
	}
	for name, data := range tests {
		t.Run(name, func(t *testing.T) {
			_, err := Parse(data)
			assert.True(t, errors.Is(err, mberrors.ErrInvalidShortcut), "got %v", err)
		})
	}
}

func TestLoader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "My App.lnk")
	require.NoError(t, os.WriteFile(path, fullLink(), 0644))

	d, err := Loader{}.Load(path)
	require.NoError(t, err)
	assert.Equal(t, `C:\Program Files\My App.exe`, d.Target)
	assert.Equal(t, "--fast --ü", d.Arguments)

	_, err = Loader{}.Load(filepath.Join(t.TempDir(), "missing.lnk"))
	assert.Error(t, err)
}
