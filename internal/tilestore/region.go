package tilestore

import (
	"context"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/pkg/errors"
)

// Region selects the tiles covering a geographic area.
type Region struct {
	// Bounds is the area of interest. Tiles intersecting it are selected.
	Bounds orb.Bound

	// MinZoom and MaxZoom restrict the zoom levels. Zero disables the
	// respective bound.
	MinZoom maptile.Zoom
	MaxZoom maptile.Zoom

	// Layers restricts the selection to these layer ids. Empty selects all.
	Layers []string
}

func (r Region) accepts(e *TileEntry) bool {
	z := e.Key.Tile.Z
	if r.MinZoom > 0 && z < r.MinZoom {
		return false
	}
	if r.MaxZoom > 0 && z > r.MaxZoom {
		return false
	}
	if len(r.Layers) == 0 {
		return true
	}
	for _, l := range r.Layers {
		if l == e.Key.LayerID {
			return true
		}
	}
	return false
}

// Region returns the indexed tiles selected by r, most detailed first.
func (s *Store) Region(r Region) []*TileEntry {
	var out []*TileEntry
	for _, e := range s.index.Query(r.Bounds) {
		if r.accepts(e) {
			out = append(out, e)
		}
	}
	return out
}

// LoadRegion opens the tiles below root and returns the store together
// with the entries selected by r. It fails when no tile matches.
//
// The whole directory is indexed so that relation targets outside the
// region can still be located afterwards.
func LoadRegion(ctx context.Context, root string, r Region, opts LoadOptions) (*Store, []*TileEntry, error) {
	s, err := OpenDir(ctx, root, opts)
	if err != nil {
		return nil, nil, errors.Wrap(err, "open tiles")
	}
	entries := s.Region(r)
	if len(entries) == 0 {
		return nil, nil, errors.Errorf("no tile in %s matches region %v", root, r.Bounds)
	}
	return s, entries, nil
}
