package tilestore

import (
	"sort"

	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"

	"github.com/beetlebugorg/featureviz/internal/model"
)

// TileEntry is the indexed metadata of one tile file.
type TileEntry struct {
	Path     string
	Key      model.TileKey
	Features int
}

// GeoBound returns the geographic extent of the entry's tile.
func (e *TileEntry) GeoBound() orb.Bound {
	return e.Key.Tile.Bound()
}

// Bounds implements rtreego.Spatial.
func (e *TileEntry) Bounds() rtreego.Rect {
	return boundToRect(e.GeoBound())
}

func boundToRect(b orb.Bound) rtreego.Rect {
	const epsilon = 1e-9
	w, h := b.Max[0]-b.Min[0], b.Max[1]-b.Min[1]
	if w < epsilon {
		w = epsilon
	}
	if h < epsilon {
		h = epsilon
	}
	rect, _ := rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, []float64{w, h})
	return rect
}

// TileIndex answers spatial queries over indexed tiles with an R-tree.
type TileIndex struct {
	entries []*TileEntry
	byKey   map[string]*TileEntry
	rtree   *rtreego.Rtree
}

// NewTileIndex indexes entries. Entries with a key seen before are dropped.
func NewTileIndex(entries []*TileEntry) *TileIndex {
	idx := &TileIndex{
		byKey: make(map[string]*TileEntry, len(entries)),
		rtree: rtreego.NewTree(2, 25, 50),
	}
	for _, e := range entries {
		k := e.Key.String()
		if _, dup := idx.byKey[k]; dup {
			continue
		}
		idx.byKey[k] = e
		idx.entries = append(idx.entries, e)
		idx.rtree.Insert(e)
	}
	return idx
}

// Query returns the tiles intersecting b, most detailed zoom first and
// then by key.
func (idx *TileIndex) Query(b orb.Bound) []*TileEntry {
	var out []*TileEntry
	for _, s := range idx.rtree.SearchIntersect(boundToRect(b)) {
		out = append(out, s.(*TileEntry))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Key.Tile.Z != out[j].Key.Tile.Z {
			return out[i].Key.Tile.Z > out[j].Key.Tile.Z
		}
		return out[i].Key.String() < out[j].Key.String()
	})
	return out
}

// Entry returns the entry for a tile key string.
func (idx *TileIndex) Entry(key string) (*TileEntry, bool) {
	e, ok := idx.byKey[key]
	return e, ok
}

// Count returns the number of indexed tiles.
func (idx *TileIndex) Count() int {
	return len(idx.entries)
}

// All returns all entries in load order.
func (idx *TileIndex) All() []*TileEntry {
	return idx.entries
}

// Bound returns the union of all tile extents.
func (idx *TileIndex) Bound() orb.Bound {
	if len(idx.entries) == 0 {
		return orb.Bound{}
	}
	b := idx.entries[0].GeoBound()
	for _, e := range idx.entries[1:] {
		b = b.Union(e.GeoBound())
	}
	return b
}
