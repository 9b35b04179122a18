package srcmap

import "sort"

// Hit is the result of resolving a page point back to the source.
type Hit struct {
	// Offset is the start offset of the matched entry's range.
	Offset int
	// Kind is the matched entry's content kind.
	Kind ContentKind
}

// Position is a rendered anchor for a source offset.
type Position struct {
	Page   int
	Region Rect
}

// Lookup resolves a point on a rendered page to a source position.
//
// Page is a hard filter: only entries on exactly that page are considered,
// even if the same point would hit a region on another page. Among the
// entries whose region contains the point, the one with the smallest region
// area wins: when regions nest (a word inside its paragraph), the smaller
// region is the more specific hit. Equal areas resolve to the entry with the
// earliest start offset, which keeps the result deterministic.
func (ix *Index) Lookup(page int, x, y float64) (Hit, bool) {
	best := -1
	for i, e := range ix.entries {
		if e.Page != page || !e.Region.Contains(x, y) {
			continue
		}
		if best < 0 || e.Region.Area() < ix.entries[best].Region.Area() {
			best = i
		}
	}
	if best < 0 {
		return Hit{}, false
	}
	return Hit{Offset: ix.entries[best].Start, Kind: ix.entries[best].Kind}, true
}

// SourceToRender resolves a source offset to a rendered anchor.
//
// It returns ok = false only for an empty index. An entry whose range
// contains the offset wins outright. When the offset falls in a gap (before
// the first entry, after the last, or in unmapped whitespace), the entry
// nearest in offset space supplies the anchor, so a live cursor always has
// some rendered position and the synchronized view never goes blank. Page
// plays no part in the distance; when two entries are equally near, the
// earlier one wins.
func (ix *Index) SourceToRender(offset int) (Position, bool) {
	if len(ix.entries) == 0 {
		return Position{}, false
	}

	// First entry starting past the offset; its predecessor is the only
	// candidate that can contain the offset.
	next := sort.Search(len(ix.entries), func(i int) bool {
		return ix.entries[i].Start > offset
	})

	if prev := next - 1; prev >= 0 && ix.entries[prev].contains(offset) {
		return anchor(ix.entries[prev]), true
	}

	switch {
	case next == 0:
		return anchor(ix.entries[0]), true
	case next == len(ix.entries):
		return anchor(ix.entries[next-1]), true
	}

	prev := ix.entries[next-1]
	nxt := ix.entries[next]
	if prev.distance(offset) <= nxt.distance(offset) {
		return anchor(prev), true
	}
	return anchor(nxt), true
}

func anchor(e Entry) Position {
	return Position{Page: e.Page, Region: e.Region}
}
