package icon

import (
	"bytes"
	"fmt"
	"io"

	"github.com/tc-hib/winres"

	mberrors "github.com/provide-io/menubuilder/go/menubuilder/pkg/errors"
)

// ResourceSource enumerates resources of one type in resource-directory
// order. *winres.ResourceSet satisfies it.
type ResourceSource interface {
	WalkType(typeID winres.Identifier, f func(resID winres.Identifier, langID uint16, data []byte) bool)
}

// LoadPE maps the resource section of a 32/64-bit module as data only.
func LoadPE(exe io.ReadSeeker) (*winres.ResourceSet, error) {
	rs, err := winres.LoadFromEXE(exe)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to load PE resources: %v", mberrors.ErrFormat, err)
	}
	return rs, nil
}

type peGroup struct {
	id   winres.Identifier
	data []byte
}

// groupIcons returns the first language of every RT_GROUP_ICON, names first
// and then IDs ascending.
func groupIcons(rs ResourceSource) []peGroup {
	var groups []peGroup
	var last winres.Identifier
	rs.WalkType(winres.RT_GROUP_ICON, func(resID winres.Identifier, _ uint16, data []byte) bool {
		if last != nil && resID == last {
			return true
		}
		last = resID
		groups = append(groups, peGroup{id: resID, data: data})
		return true
	})
	return groups
}

// iconImages returns the first language of every RT_ICON keyed by ID.
func iconImages(rs ResourceSource) map[winres.ID][]byte {
	images := make(map[winres.ID][]byte)
	rs.WalkType(winres.RT_ICON, func(resID winres.Identifier, _ uint16, data []byte) bool {
		id, ok := resID.(winres.ID)
		if !ok {
			return true
		}
		if _, dup := images[id]; !dup {
			images[id] = data
		}
		return true
	})
	return images
}

// ExtractPE re-assembles the icon group selected by index. A non-negative
// index is the ordinal of the group; a negative index is minus its
// resource ID.
func ExtractPE(rs ResourceSource, index int) (*bytes.Reader, error) {
	groups := groupIcons(rs)
	if len(groups) == 0 {
		return nil, fmt.Errorf("%w: no RT_GROUP_ICON resources", mberrors.ErrNotFound)
	}

	var group *peGroup
	if index >= 0 {
		if index < len(groups) {
			group = &groups[index]
		}
	} else {
		want := winres.ID(-index)
		for i := range groups {
			if id, ok := groups[i].id.(winres.ID); ok && id == want {
				group = &groups[i]
				break
			}
		}
	}
	if group == nil {
		return nil, fmt.Errorf("%w: icon group %d of %d", mberrors.ErrNotFound, index, len(groups))
	}

	entries, ids, err := parseGroup(group.data)
	if err != nil {
		return nil, err
	}
	images := iconImages(rs)

	var raw []RawImage
	for i, e := range entries {
		data, ok := images[winres.ID(ids[i])]
		if !ok {
			continue
		}
		raw = append(raw, RawImage{Entry: e, Data: data})
	}
	return Assemble(raw)
}

// CountPEGroups reports how many icon groups a module carries.
func CountPEGroups(rs ResourceSource) int {
	return len(groupIcons(rs))
}
