// Package srcmap defines the read contract over the source-to-render map the
// typesetting compiler produces on every successful compile: an immutable
// index of entries mapping half-open character-offset ranges in the document
// source to rectangular regions on rendered pages.
//
// The editor uses the index in both directions to keep a live cursor and its
// rendered position synchronized: Lookup resolves a click on a page to a
// source offset, SourceToRender resolves a cursor offset to a page region.
// An Index is never mutated after construction, so any number of readers may
// query it concurrently; each compile publishes a fresh Index through
// Published as a single atomic swap.
package srcmap

import (
	"fmt"
	"sort"
)

// ContentKind tags what a mapped region renders as.
type ContentKind uint8

const (
	KindText ContentKind = iota
	KindHeading
	KindMath
	KindCode
	KindFigure
	KindTable
	KindCitation
	KindListItem
	KindOther
)

var kindNames = map[ContentKind]string{
	KindText:     "text",
	KindHeading:  "heading",
	KindMath:     "math",
	KindCode:     "code",
	KindFigure:   "figure",
	KindTable:    "table",
	KindCitation: "citation",
	KindListItem: "list-item",
	KindOther:    "other",
}

// String returns the kind's stable textual name.
func (k ContentKind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return fmt.Sprintf("ContentKind(%d)", uint8(k))
}

// ParseContentKind parses the textual form produced by String. Unknown names
// parse as KindOther so that an index produced by a newer compiler still
// loads.
func ParseContentKind(s string) ContentKind {
	for k, name := range kindNames {
		if name == s {
			return k
		}
	}
	return KindOther
}

// MarshalText implements encoding.TextMarshaler.
func (k ContentKind) MarshalText() ([]byte, error) {
	return []byte(k.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (k *ContentKind) UnmarshalText(text []byte) error {
	*k = ParseContentKind(string(text))
	return nil
}

// Rect is an axis-aligned rectangle in a page's coordinate space.
// Containment is half-open: the left and top edges are inside, the right and
// bottom edges are not, so adjacent regions never both claim a shared edge.
type Rect struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Contains reports whether the point (x, y) lies inside the rectangle.
func (r Rect) Contains(x, y float64) bool {
	return x >= r.X && x < r.X+r.Width && y >= r.Y && y < r.Y+r.Height
}

// Area returns the rectangle's area. Used to prefer the most specific of
// several nested regions containing the same point.
func (r Rect) Area() float64 {
	return r.Width * r.Height
}

// Entry maps the half-open character-offset range [Start, End) of the source
// to a region on one rendered page. Offsets count characters (runes), not
// bytes, matching the editor's cursor coordinates.
type Entry struct {
	Start  int         `json:"start"`
	End    int         `json:"end"`
	Page   int         `json:"page"`
	Region Rect        `json:"region"`
	Kind   ContentKind `json:"kind"`
}

// contains reports whether the entry's offset range contains offset.
func (e Entry) contains(offset int) bool {
	return offset >= e.Start && offset < e.End
}

// distance returns how far offset lies from the entry's range in offset
// space: zero when contained, otherwise the gap to the nearest contained
// offset.
func (e Entry) distance(offset int) int {
	switch {
	case offset < e.Start:
		return e.Start - offset
	case offset >= e.End:
		return offset - (e.End - 1)
	default:
		return 0
	}
}

// Index is one compile's worth of entries, ordered by source offset.
// Entries are disjoint in offset space but need not cover every offset
// (whitespace between blocks is typically unmapped), and carry no page
// ordering guarantee. An Index is immutable once built.
type Index struct {
	entries []Entry
}

// NewIndex builds an Index from the compiler's entries. The input is copied
// and sorted by start offset; entries with an empty offset range are dropped.
// The caller's slice is never retained.
func NewIndex(entries []Entry) *Index {
	kept := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if e.End > e.Start {
			kept = append(kept, e)
		}
	}
	sort.SliceStable(kept, func(i, j int) bool { return kept[i].Start < kept[j].Start })
	return &Index{entries: kept}
}

// Len returns the number of entries.
func (ix *Index) Len() int { return len(ix.entries) }

// Entries returns a copy of the entries in offset order.
func (ix *Index) Entries() []Entry {
	out := make([]Entry, len(ix.entries))
	copy(out, ix.entries)
	return out
}
