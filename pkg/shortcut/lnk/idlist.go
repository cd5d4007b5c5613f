package lnk

import (
	"bytes"
	"encoding/binary"
	"strings"
)

const extensionSignature = 0xBEEF0004

// parseIDList rebuilds a Windows path from the volume and file entry shell
// items of a link target ID list. It returns "" when the list does not
// describe a filesystem path.
func parseIDList(items []byte) string {
	var volume string
	var parts []string

	for len(items) >= 2 {
		size := int(binary.LittleEndian.Uint16(items))
		if size == 0 {
			break
		}
		if size < 3 || size > len(items) {
			return ""
		}
		item := items[2:size]
		items = items[size:]

		switch class := item[0] & 0x70; {
		case class == 0x20:
			// Volume item: "C:\" at offset 1.
			volume = decodeANSI(item[1:])
		case class == 0x30:
			if name := fileEntryName(item); name != "" {
				parts = append(parts, name)
			}
		}
	}

	if volume == "" || len(parts) == 0 {
		return ""
	}
	if !strings.HasSuffix(volume, `\`) {
		volume += `\`
	}
	return volume + strings.Join(parts, `\`)
}

// fileEntryName returns the long name of a file entry item, falling back to
// its primary (8.3 or ANSI) name.
func fileEntryName(item []byte) string {
	// type, unknown, size(4), modified(4), attributes(2), primary name
	const nameOffset = 12
	if len(item) <= nameOffset {
		return ""
	}
	rest := item[nameOffset:]
	unicodeName := item[0]&0x04 != 0

	var primary string
	var consumed int
	if unicodeName {
		end := 0
		for end+1 < len(rest) && (rest[end] != 0 || rest[end+1] != 0) {
			end += 2
		}
		primary = decodeUTF16(rest[:end])
		consumed = end + 2
	} else {
		end := bytes.IndexByte(rest, 0)
		if end < 0 {
			return ""
		}
		primary = decodeANSI(rest[:end])
		consumed = end + 1
	}
	if consumed%2 == 1 {
		consumed++
	}
	if consumed > len(rest) {
		return primary
	}

	if long := extensionLongName(rest[consumed:]); long != "" {
		return long
	}
	return primary
}

// extensionLongName reads the Unicode long name from a 0xBEEF0004
// extension block.
func extensionLongName(ext []byte) string {
	if len(ext) < 8 {
		return ""
	}
	size := int(binary.LittleEndian.Uint16(ext))
	version := binary.LittleEndian.Uint16(ext[2:])
	if binary.LittleEndian.Uint32(ext[4:]) != extensionSignature || size > len(ext) {
		return ""
	}

	// size, version, signature, created, accessed, identifier
	off := 18
	if version >= 7 {
		off += 2 + 8 + 8 // reserved, file reference, reserved
	}
	if version >= 3 {
		off += 2 // long string size
	}
	if version >= 9 {
		off += 4
	}
	if version >= 8 {
		off += 4
	}
	if off >= size {
		return ""
	}
	return decodeUTF16(ext[off:size])
}
