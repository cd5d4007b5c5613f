package registry

import (
	"bufio"
	"bytes"
	"encoding/hex"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"unicode/utf16"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	mberrors "github.com/provide-io/menubuilder/go/menubuilder/pkg/errors"
)

// RegFile is a registry tree loaded from a text .reg file, either Wine's
// own system.reg/user.reg format or a regedit export.
type RegFile struct {
	keys map[string]*regKey
}

type regKey struct {
	name     string
	values   map[string]Value
	children []string
}

// LoadRegFile reads a .reg file from disk.
func LoadRegFile(path string) (*RegFile, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry file %s: %w", path, err)
	}
	defer file.Close()

	rf, err := ParseRegFile(file)
	if err != nil {
		return nil, fmt.Errorf("failed to parse registry file %s: %w", path, err)
	}
	return rf, nil
}

// ParseRegFile parses .reg text. UTF-16 input with a BOM is accepted.
func ParseRegFile(r io.Reader) (*RegFile, error) {
	decoded := transform.NewReader(r, unicode.BOMOverride(unicode.UTF8.NewDecoder()))

	rf := &RegFile{keys: map[string]*regKey{"": {values: map[string]Value{}}}}
	scanner := bufio.NewScanner(decoded)
	scanner.Buffer(make([]byte, 64*1024), 16*1024*1024)

	var current *regKey
	var pending strings.Builder
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimRight(scanner.Text(), "\r")

		// Hex data continues on the next line after a trailing backslash.
		if strings.HasSuffix(line, `\`) && isHexContinuation(pending.String()+line) {
			pending.WriteString(strings.TrimSuffix(line, `\`))
			continue
		}
		if pending.Len() > 0 {
			pending.WriteString(strings.TrimSpace(line))
			line = pending.String()
			pending.Reset()
		}

		trimmed := strings.TrimSpace(line)
		switch {
		case trimmed == "", trimmed[0] == ';', trimmed[0] == '#':
			continue
		case strings.HasPrefix(trimmed, "WINE REGISTRY"), strings.HasPrefix(trimmed, "REGEDIT"),
			strings.HasPrefix(trimmed, "Windows Registry Editor"):
			continue
		case trimmed[0] == '[':
			path, err := parseKeyHeader(trimmed)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if strings.HasPrefix(path, "-") {
				current = nil
				continue
			}
			current = rf.ensure(path)
		case current == nil:
			continue
		default:
			name, value, err := parseValueLine(trimmed)
			if err != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, err)
			}
			if value == nil {
				delete(current.values, strings.ToLower(name))
				continue
			}
			current.values[strings.ToLower(name)] = *value
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	return rf, nil
}

func isHexContinuation(s string) bool {
	_, data, ok := strings.Cut(s, "=")
	return ok && strings.HasPrefix(strings.TrimSpace(data), "hex")
}

// ensure returns the key at path, creating it and its parents.
func (rf *RegFile) ensure(path string) *regKey {
	parts := splitPath(path)
	parent := rf.keys[""]
	folded := ""
	for _, part := range parts {
		if folded == "" {
			folded = strings.ToLower(part)
		} else {
			folded += `\` + strings.ToLower(part)
		}
		key, ok := rf.keys[folded]
		if !ok {
			key = &regKey{name: part, values: map[string]Value{}}
			rf.keys[folded] = key
			parent.children = append(parent.children, part)
		}
		parent = key
	}
	return parent
}

// Subkeys implements Reader.
func (rf *RegFile) Subkeys(path string) ([]string, error) {
	key, ok := rf.keys[foldKey(path)]
	if !ok {
		return nil, fmt.Errorf("registry key %s: %w", path, mberrors.ErrNotFound)
	}
	return append([]string(nil), key.children...), nil
}

// Value implements Reader.
func (rf *RegFile) Value(path, name string) (Value, bool) {
	key, ok := rf.keys[foldKey(path)]
	if !ok {
		return Value{}, false
	}
	v, ok := key.values[strings.ToLower(name)]
	return v, ok
}

// parseKeyHeader reads "[Software\\Classes\\.txt] 1600000000".
func parseKeyHeader(line string) (string, error) {
	end := strings.LastIndexByte(line, ']')
	if end < 0 {
		return "", fmt.Errorf("unterminated key header %q: %w", line, mberrors.ErrFormat)
	}
	name := line[1:end]
	// Wine doubles backslashes in key names; regedit exports do not.
	if strings.Contains(name, `\\`) {
		name = strings.ReplaceAll(name, `\\`, `\`)
	}
	for _, root := range []string{"HKEY_CURRENT_USER", "HKEY_LOCAL_MACHINE", "HKEY_CLASSES_ROOT", "HKEY_USERS"} {
		if rest, ok := cutPrefixFold(name, root); ok {
			if root == "HKEY_CLASSES_ROOT" {
				rest = `Software\Classes` + rest
			}
			name = rest
			break
		}
	}
	return name, nil
}

// parseValueLine reads `"name"=data` or `@=data`. A nil value means delete.
func parseValueLine(line string) (string, *Value, error) {
	var name, rest string
	switch {
	case strings.HasPrefix(line, "@="):
		rest = line[2:]
	case line[0] == '"':
		n, consumed, err := unquote(line)
		if err != nil {
			return "", nil, err
		}
		name = n
		rest = strings.TrimSpace(line[consumed:])
		if !strings.HasPrefix(rest, "=") {
			return "", nil, fmt.Errorf("missing '=' after value name %q: %w", name, mberrors.ErrFormat)
		}
		rest = strings.TrimSpace(rest[1:])
	default:
		return "", nil, fmt.Errorf("unrecognised line %q: %w", line, mberrors.ErrFormat)
	}

	if rest == "-" {
		return name, nil, nil
	}
	value, err := parseData(rest)
	if err != nil {
		return "", nil, fmt.Errorf("value %q: %w", name, err)
	}
	return name, value, nil
}

func parseData(data string) (*Value, error) {
	switch {
	case strings.HasPrefix(data, `"`):
		s, _, err := unquote(data)
		if err != nil {
			return nil, err
		}
		return &Value{Type: TypeString, String: s}, nil

	case strings.HasPrefix(data, "str("):
		typ, body, err := parseTyped(data, "str(")
		if err != nil {
			return nil, err
		}
		s, _, err := unquote(body)
		if err != nil {
			return nil, err
		}
		v := &Value{Type: typ, String: s}
		if typ == TypeMultiString {
			v.Strings = strings.Split(strings.TrimRight(s, "\x00"), "\x00")
		}
		return v, nil

	case strings.HasPrefix(data, "dword:"):
		n, err := strconv.ParseUint(strings.TrimSpace(data[6:]), 16, 32)
		if err != nil {
			return nil, fmt.Errorf("bad dword %q: %w", data, mberrors.ErrFormat)
		}
		return &Value{Type: TypeDWord, Uint: n}, nil

	case strings.HasPrefix(data, "hex:"):
		raw, err := parseHexBytes(data[4:])
		if err != nil {
			return nil, err
		}
		return &Value{Type: TypeBinary, Data: raw}, nil

	case strings.HasPrefix(data, "hex("):
		typ, body, err := parseTyped(data, "hex(")
		if err != nil {
			return nil, err
		}
		raw, err := parseHexBytes(strings.TrimPrefix(body, ":"))
		if err != nil {
			return nil, err
		}
		return decodeTyped(typ, raw), nil
	}
	return nil, fmt.Errorf("unknown data %q: %w", data, mberrors.ErrFormat)
}

// parseTyped splits "hex(2):..." into (2, ":...") and `str(2):"..."` into
// (2, `"..."`).
func parseTyped(data, prefix string) (ValueType, string, error) {
	end := strings.IndexByte(data, ')')
	if end < 0 {
		return 0, "", fmt.Errorf("bad typed data %q: %w", data, mberrors.ErrFormat)
	}
	n, err := strconv.ParseUint(data[len(prefix):end], 16, 32)
	if err != nil {
		return 0, "", fmt.Errorf("bad type in %q: %w", data, mberrors.ErrFormat)
	}
	body := data[end+1:]
	if prefix == "str(" {
		body = strings.TrimPrefix(body, ":")
	}
	return ValueType(n), body, nil
}

func decodeTyped(typ ValueType, raw []byte) *Value {
	v := &Value{Type: typ, Data: raw}
	switch typ {
	case TypeString, TypeExpandString:
		v.String = strings.TrimRight(decodeUTF16(raw), "\x00")
	case TypeMultiString:
		s := strings.TrimRight(decodeUTF16(raw), "\x00")
		if s != "" {
			v.Strings = strings.Split(s, "\x00")
		}
	case TypeDWord:
		for i := min(len(raw), 4) - 1; i >= 0; i-- {
			v.Uint = v.Uint<<8 | uint64(raw[i])
		}
	case TypeQWord:
		for i := min(len(raw), 8) - 1; i >= 0; i-- {
			v.Uint = v.Uint<<8 | uint64(raw[i])
		}
	}
	return v
}

func decodeUTF16(raw []byte) string {
	decoded, err := unicode.UTF16(unicode.LittleEndian, unicode.IgnoreBOM).NewDecoder().Bytes(raw)
	if err != nil {
		return string(raw)
	}
	return string(decoded)
}

func parseHexBytes(s string) ([]byte, error) {
	s = strings.Map(func(r rune) rune {
		if r == ',' || r == ' ' || r == '\t' || r == '\\' {
			return -1
		}
		return r
	}, s)
	raw, err := hex.DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("bad hex data: %w", mberrors.ErrFormat)
	}
	return raw, nil
}

// unquote reads a quoted .reg string starting at s[0] and returns it with
// the number of bytes consumed. Wine writes non-ASCII characters as \xNNNN.
func unquote(s string) (string, int, error) {
	if len(s) == 0 || s[0] != '"' {
		return "", 0, fmt.Errorf("expected quoted string: %w", mberrors.ErrFormat)
	}
	var out bytes.Buffer
	for i := 1; i < len(s); i++ {
		c := s[i]
		switch c {
		case '"':
			return out.String(), i + 1, nil
		case '\\':
			i++
			if i >= len(s) {
				return "", 0, fmt.Errorf("trailing escape: %w", mberrors.ErrFormat)
			}
			switch s[i] {
			case 'n':
				out.WriteByte('\n')
			case 'r':
				out.WriteByte('\r')
			case 't':
				out.WriteByte('\t')
			case '0':
				out.WriteByte(0)
			case 'x':
				j := i + 1
				for j < len(s) && j < i+5 && isHexDigit(s[j]) {
					j++
				}
				n, err := strconv.ParseUint(s[i+1:j], 16, 16)
				if err != nil {
					return "", 0, fmt.Errorf("bad \\x escape: %w", mberrors.ErrFormat)
				}
				out.WriteString(string(utf16.Decode([]uint16{uint16(n)})))
				i = j - 1
			default:
				out.WriteByte(s[i])
			}
		default:
			out.WriteByte(c)
		}
	}
	return "", 0, fmt.Errorf("unterminated string: %w", mberrors.ErrFormat)
}

func isHexDigit(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func cutPrefixFold(s, prefix string) (string, bool) {
	if len(s) < len(prefix) || !strings.EqualFold(s[:len(prefix)], prefix) {
		return s, false
	}
	return s[len(prefix):], true
}
