package icon

import "sort"

// NumBuckets is the number of canonical icon sizes.
const NumBuckets = 6

// BucketSizes are the canonical sizes in ascending bucket order.
var BucketSizes = [NumBuckets]int{16, 32, 48, 128, 256, 512}

const classicBucket = 2

// bucketForWidth maps a pixel width to its bucket. 64px icons share the 48
// bucket and are flagged as scaled.
func bucketForWidth(width int) (bucket int, scaled bool, ok bool) {
	switch width {
	case 16:
		return 0, false, true
	case 32:
		return 1, false, true
	case 48:
		return 2, false, true
	case 64:
		return classicBucket, true, true
	case 128:
		return 3, false, true
	case 256:
		return 4, false, true
	case 512:
		return 5, false, true
	}
	return 0, false, false
}

type slot struct {
	index  int
	bpp    uint16
	scaled bool
	taken  bool
}

// replaces reports whether a candidate takes over an occupied slot. An
// unscaled incumbent is never displaced by a scaled candidate. Otherwise
// the candidate wins on equal or higher depth, or when it replaces a
// scaled incumbent.
func (s slot) replaces(bpp uint16, scaled bool) bool {
	if !s.taken {
		return true
	}
	if scaled && !s.scaled {
		return false
	}
	return bpp >= s.bpp || (s.scaled && !scaled)
}

// SelectBuckets picks at most one entry per bucket and returns the winning
// entry indices in ascending bucket order.
func SelectBuckets(dir *Directory) []int {
	var slots [NumBuckets]slot
	for i, e := range dir.Entries {
		w, h := e.PixelWidth(), e.PixelHeight()
		if w != h {
			continue
		}
		b, scaled, ok := bucketForWidth(w)
		if !ok {
			continue
		}
		if slots[b].replaces(e.BitCount, scaled) {
			slots[b] = slot{index: i, bpp: e.BitCount, scaled: scaled, taken: true}
		}
	}

	if slots[classicBucket].taken && slots[classicBucket].scaled {
		for b := classicBucket + 1; b < NumBuckets; b++ {
			if slots[b].taken {
				slots[classicBucket] = slot{}
				break
			}
		}
	}

	var indices []int
	for _, s := range slots {
		if s.taken {
			indices = append(indices, s.index)
		}
	}
	return indices
}

// SelectBest returns the entry with the largest area, ties going to the
// deeper bit count. It returns -1 for an empty directory.
func SelectBest(dir *Directory) int {
	best := -1
	bestArea, bestBpp := 0, uint16(0)
	for i, e := range dir.Entries {
		area := e.PixelWidth() * e.PixelHeight()
		if best < 0 || area > bestArea || (area == bestArea && e.BitCount > bestBpp) {
			best, bestArea, bestBpp = i, area, e.BitCount
		}
	}
	return best
}

// SizedIndex pairs a square pixel size with the entry chosen for it.
type SizedIndex struct {
	Size  int
	Index int
}

// SelectPerSize picks the deepest entry for every distinct square size,
// smallest size first.
func SelectPerSize(dir *Directory) []SizedIndex {
	best := make(map[int]int)
	for i, e := range dir.Entries {
		w, h := e.PixelWidth(), e.PixelHeight()
		if w != h {
			continue
		}
		if cur, ok := best[w]; !ok || e.BitCount > dir.Entries[cur].BitCount {
			best[w] = i
		}
	}
	out := make([]SizedIndex, 0, len(best))
	for size, idx := range best {
		out = append(out, SizedIndex{Size: size, Index: idx})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Size < out[b].Size })
	return out
}
