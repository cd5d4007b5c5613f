package icon

import (
	"bytes"
	"fmt"

	mberrors "github.com/provide-io/menubuilder/go/menubuilder/pkg/errors"
)

// NE resource type IDs carry the 0x8000 "integer ID" flag.
const (
	neTypeIcon      = 0x8003
	neTypeGroupIcon = 0x800E
	neIntegerID     = 0x8000

	sizeOfNETypeInfo = 8
	sizeOfNENameInfo = 12

	offsetOfLfanew         = 0x3C
	offsetOfNEResourceTab  = 0x24
	sizeOfNEHeader         = 0x40
	maxNEAlignmentShift    = 24
	maxNEResourcesPerTable = 0x4000
)

// neResource is one NAMEINFO with its shifted offset and length resolved.
type neResource struct {
	ID     uint16
	Offset int
	Length int
}

// neTable holds the icon and group-icon resources of a 16-bit executable.
type neTable struct {
	Groups []neResource
	Icons  []neResource
}

// parseNETable walks the NE resource table. Every offset is checked against
// the file length before it is followed.
func parseNETable(data []byte) (*neTable, error) {
	r := newReader(data)
	if err := r.Seek(offsetOfLfanew); err != nil {
		return nil, err
	}
	lfanew, err := r.U32()
	if err != nil {
		return nil, err
	}
	hdr, err := r.Slice(int(lfanew), sizeOfNEHeader)
	if err != nil {
		return nil, fmt.Errorf("NE header: %w", err)
	}
	if hdr[0] != 'N' || hdr[1] != 'E' {
		return nil, fmt.Errorf("%w: missing NE signature", mberrors.ErrFormat)
	}
	hr := newReader(hdr)
	if err := hr.Seek(offsetOfNEResourceTab); err != nil {
		return nil, err
	}
	rsrcTab, err := hr.U16()
	if err != nil {
		return nil, err
	}
	if err := r.Seek(int(lfanew) + int(rsrcTab)); err != nil {
		return nil, fmt.Errorf("NE resource table: %w", err)
	}

	shift, err := r.U16()
	if err != nil {
		return nil, err
	}
	if shift > maxNEAlignmentShift {
		return nil, fmt.Errorf("%w: alignment shift %d", mberrors.ErrFormat, shift)
	}

	table := &neTable{}
	seen := 0
	for {
		typeID, err := r.U16()
		if err != nil {
			return nil, err
		}
		if typeID == 0 {
			break
		}
		count, err := r.U16()
		if err != nil {
			return nil, err
		}
		if _, err := r.U32(); err != nil {
			return nil, err
		}
		seen += int(count)
		if seen > maxNEResourcesPerTable {
			return nil, fmt.Errorf("%w: %d resources", mberrors.ErrFormat, seen)
		}
		for i := 0; i < int(count); i++ {
			raw, err := r.Bytes(sizeOfNENameInfo)
			if err != nil {
				return nil, err
			}
			nr := newReader(raw)
			off, _ := nr.U16()
			length, _ := nr.U16()
			_, _ = nr.U16()
			id, _ := nr.U16()

			res := neResource{
				ID:     id,
				Offset: int(off) << shift,
				Length: int(length) << shift,
			}
			if _, err := r.Slice(res.Offset, res.Length); err != nil {
				return nil, fmt.Errorf("NE resource %#x: %w", id, err)
			}
			switch typeID {
			case neTypeGroupIcon:
				table.Groups = append(table.Groups, res)
			case neTypeIcon:
				table.Icons = append(table.Icons, res)
			}
		}
	}
	return table, nil
}

// ExtractNE pulls the icon group selected by index out of a 16-bit
// executable. A non-negative index is the ordinal of the group in the
// resource table; a negative index names the group's resource ID.
func ExtractNE(data []byte, index int) (*bytes.Reader, error) {
	table, err := parseNETable(data)
	if err != nil {
		return nil, err
	}
	if len(table.Groups) == 0 || len(table.Icons) == 0 {
		return nil, fmt.Errorf("%w: no icon resources in NE file", mberrors.ErrNotFound)
	}

	var group *neResource
	if index >= 0 {
		if index < len(table.Groups) {
			group = &table.Groups[index]
		}
	} else {
		want := uint16(-index) | neIntegerID
		for i := range table.Groups {
			if table.Groups[i].ID == want {
				group = &table.Groups[i]
				break
			}
		}
	}
	if group == nil {
		return nil, fmt.Errorf("%w: NE icon group %d", mberrors.ErrNotFound, index)
	}

	payload := data[group.Offset : group.Offset+group.Length]
	entries, ids, err := parseGroup(payload)
	if err != nil {
		return nil, err
	}

	var images []RawImage
	for i, e := range entries {
		want := ids[i] | neIntegerID
		for _, icn := range table.Icons {
			if icn.ID != want {
				continue
			}
			n := icn.Length
			if e.BytesInRes != 0 && int(e.BytesInRes) < n {
				n = int(e.BytesInRes)
			}
			images = append(images, RawImage{Entry: e, Data: data[icn.Offset : icn.Offset+n]})
			break
		}
	}
	return Assemble(images)
}
