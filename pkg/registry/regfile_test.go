package registry

import (
	"bytes"
	"errors"
	"reflect"
	"strings"
	"testing"

	"golang.org/x/text/encoding/unicode"

	mberrors "github.com/provide-io/menubuilder/go/menubuilder/pkg/errors"
)

const wineSystemReg = `WINE REGISTRY Version 2
;; All keys relative to \\Machine

#arch=win64

[Software\\Classes\\.txt] 1600000000
#time=1d6f0a1b2c3d4e5
@="txtfile"
"Content Type"="text/plain"

[Software\\Classes\\txtfile\\shell\\open\\command] 1600000000
@="C:\\windows\\notepad.exe %1"

[Software\\Classes\\Environment]
"Path"=str(2):"%SystemRoot%\\system32"
"Caf\xe9"="ok"
"Flags"=dword:0000002a
"Blob"=hex:01,02,\
  03,04
"Wide"=hex(2):25,00,41,00,25,00,00,00
"List"=hex(7):61,00,00,00,62,00,00,00,00,00
"Quoted"="say \"hi\"\tthen\\leave"
`

func TestParseRegFile_Wine(t *testing.T) {
	rf, err := ParseRegFile(strings.NewReader(wineSystemReg))
	if err != nil {
		t.Fatal(err)
	}

	if v, ok := rf.Value(`software\classes\.TXT`, ""); !ok || v.String != "txtfile" {
		t.Errorf("default value = %+v, %v", v, ok)
	}
	if v, _ := rf.Value(`Software\Classes\.txt`, "content type"); v.String != "text/plain" {
		t.Errorf("Content Type = %q", v.String)
	}
	if v, _ := rf.Value(`Software\Classes\txtfile\shell\open\command`, ""); v.String != `C:\windows\notepad.exe %1` {
		t.Errorf("command = %q", v.String)
	}

	env := `Software\Classes\Environment`
	tests := []struct {
		name string
		want Value
	}{
		{"Path", Value{Type: TypeExpandString, String: `%SystemRoot%\system32`}},
		{"Café", Value{Type: TypeString, String: "ok"}},
		{"Flags", Value{Type: TypeDWord, Uint: 42}},
		{"Blob", Value{Type: TypeBinary, Data: []byte{1, 2, 3, 4}}},
		{"Quoted", Value{Type: TypeString, String: "say \"hi\"\tthen\\leave"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := rf.Value(env, tt.name)
			if !ok {
				t.Fatalf("value %q missing", tt.name)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("value %q = %+v, want %+v", tt.name, got, tt.want)
			}
		})
	}

	if v, _ := rf.Value(env, "Wide"); v.Type != TypeExpandString || v.String != "%A%" {
		t.Errorf("hex(2) = %+v", v)
	}
	if v, _ := rf.Value(env, "List"); !reflect.DeepEqual(v.Strings, []string{"a", "b"}) {
		t.Errorf("hex(7) = %+v", v)
	}

	subkeys, err := rf.Subkeys(`Software\Classes`)
	if err != nil {
		t.Fatal(err)
	}
	if want := []string{".txt", "txtfile", "Environment"}; !reflect.DeepEqual(subkeys, want) {
		t.Errorf("Subkeys = %q, want %q", subkeys, want)
	}
	if _, err := rf.Subkeys(`Software\Missing`); !errors.Is(err, mberrors.ErrNotFound) {
		t.Errorf("missing key error = %v", err)
	}
}

func TestParseRegFile_RegeditUTF16(t *testing.T) {
	text := "Windows Registry Editor Version 5.00\r\n\r\n" +
		"[HKEY_CLASSES_ROOT\\.foo]\r\n@=\"App.Foo\"\r\n\r\n" +
		"[HKEY_CURRENT_USER\\Software\\Vendor]\r\n\"Name\"=\"x\"\r\n\"Name\"=-\r\n"
	encoded, err := unicode.UTF16(unicode.LittleEndian, unicode.UseBOM).NewEncoder().Bytes([]byte(text))
	if err != nil {
		t.Fatal(err)
	}

	rf, err := ParseRegFile(bytes.NewReader(encoded))
	if err != nil {
		t.Fatal(err)
	}
	if v, ok := rf.Value(`Software\Classes\.foo`, ""); !ok || v.String != "App.Foo" {
		t.Errorf("HKCR value = %+v, %v", v, ok)
	}
	if _, ok := rf.Value(`Software\Vendor`, "Name"); ok {
		t.Error("deleted value still present")
	}
}

func TestParseRegFile_Errors(t *testing.T) {
	inputs := []string{
		"[Software\\Broken\n",
		"[Key]\n\"unterminated=\"x\n",
		"[Key]\n\"bad\"=dword:zz\n",
		"[Key]\n\"bad\"=hex:0g\n",
		"[Key]\nnonsense\n",
	}
	for _, input := range inputs {
		if _, err := ParseRegFile(strings.NewReader(input)); !errors.Is(err, mberrors.ErrFormat) {
			t.Errorf("ParseRegFile(%q) error = %v, want ErrFormat", input, err)
		}
	}
}

func TestNewHive_Garbage(t *testing.T) {
	if _, err := NewHive([]byte("not a hive at all"), ""); !errors.Is(err, mberrors.ErrFormat) {
		t.Errorf("NewHive(garbage) error = %v, want ErrFormat", err)
	}
}
