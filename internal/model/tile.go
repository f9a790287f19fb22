// Package model holds the tile feature storage that visualization reads from.
//
// A TileFeatureLayer owns its features in storage order. Everything outside
// this package refers to features by FeatureRef (tile slot + feature index)
// rather than by pointer, so storage can be replaced without leaving
// dangling references.
package model

import (
	"strconv"
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// TileKey identifies one layer of one map for one tile.
type TileKey struct {
	MapID   string
	LayerID string
	Tile    maptile.Tile
}

// String returns "<mapId>/<layerId>/<packed tile id>". A tile outside the
// valid range yields "<mapId>/<layerId>/invalid", which ParseTileKey
// rejects.
func (k TileKey) String() string {
	code, err := EncodeTileID(k.Tile)
	if err != nil {
		return k.MapID + "/" + k.LayerID + "/invalid"
	}
	return k.MapID + "/" + k.LayerID + "/" + strconv.FormatUint(code, 10)
}

// MapLayerID returns "<mapId>/<layerId>".
func (k TileKey) MapLayerID() string {
	return k.MapID + "/" + k.LayerID
}

// ParseTileKey parses the output of TileKey.String. Map ids may contain '/'.
func ParseTileKey(s string) (TileKey, error) {
	last := strings.LastIndexByte(s, '/')
	if last < 0 {
		return TileKey{}, &ErrInvalidTileKey{Value: s, Reason: "missing tile id"}
	}
	code, err := strconv.ParseUint(s[last+1:], 10, 64)
	if err != nil {
		return TileKey{}, &ErrInvalidTileKey{Value: s, Reason: "tile id is not an unsigned integer"}
	}
	rest := s[:last]
	sep := strings.LastIndexByte(rest, '/')
	if sep < 0 {
		return TileKey{}, &ErrInvalidTileKey{Value: s, Reason: "missing layer id"}
	}
	tile, err := DecodeTileID(code)
	if err != nil {
		return TileKey{}, &ErrInvalidTileKey{Value: s, Reason: err.Error()}
	}
	return TileKey{
		MapID:   rest[:sep],
		LayerID: rest[sep+1:],
		Tile:    tile,
	}, nil
}

// FeatureRef is a stable handle to a feature: the slot of its tile in
// whatever registry holds the tiles, and the feature's storage index.
type FeatureRef struct {
	Tile  int
	Index int
}

// TileFeatureLayer is the feature storage of one tile.
//
// Access features via methods:
//   - Features() returns all features in storage order
//   - Feature(i) returns a feature by storage index
//   - Find(id) looks a feature up by identifier
//   - FeaturesInBounds(b) returns indices of features intersecting b
type TileFeatureLayer struct {
	key          TileKey
	features     []Feature
	byID         map[string]int
	spatialIndex *spatialIndex
}

// NewTileFeatureLayer takes ownership of features and indexes them.
func NewTileFeatureLayer(key TileKey, features []Feature) *TileFeatureLayer {
	l := &TileFeatureLayer{
		key:      key,
		features: features,
		byID:     make(map[string]int, len(features)),
	}
	for i := range features {
		s := features[i].ID.String()
		if _, dup := l.byID[s]; !dup {
			l.byID[s] = i
		}
	}
	l.buildSpatialIndex()
	return l
}

// Key returns the identity of this layer.
func (l *TileFeatureLayer) Key() TileKey { return l.key }

// Features returns all features in storage order.
func (l *TileFeatureLayer) Features() []Feature { return l.features }

// Len returns the number of features.
func (l *TileFeatureLayer) Len() int { return len(l.features) }

// Feature returns the feature at storage index i, or nil when out of range.
func (l *TileFeatureLayer) Feature(i int) *Feature {
	if i < 0 || i >= len(l.features) {
		return nil
	}
	return &l.features[i]
}

// Find returns the storage index of the feature with the given identifier.
func (l *TileFeatureLayer) Find(id FeatureID) (int, bool) {
	i, ok := l.byID[id.String()]
	return i, ok
}

// Bound returns the geographic extent of the layer's tile.
func (l *TileFeatureLayer) Bound() orb.Bound {
	return l.key.Tile.Bound()
}
