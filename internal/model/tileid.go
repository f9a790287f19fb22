package model

import (
	"fmt"
	"math/bits"

	"github.com/google/hilbert"
	"github.com/paulmach/orb/maptile"
	"github.com/pkg/errors"
)

const (
	maxTileZoom = 31

	// tile ids of all zoom levels up to maxTileZoom are below this
	tileCodeLimit = (1<<(2*(maxTileZoom+1)) - 1) / 3
)

// EncodeTileID packs a tile into a single integer: tiles of lower zoom
// levels come first, tiles within one level follow the Hilbert curve.
func EncodeTileID(t maptile.Tile) (uint64, error) {
	if t.Z > maxTileZoom {
		return 0, errors.Errorf("tile %d/%d/%d: zoom above %d", t.Z, t.X, t.Y, maxTileZoom)
	}
	h, err := hilbert.NewHilbert(1 << t.Z)
	if err != nil {
		return 0, errors.Wrapf(err, "tile %d/%d/%d", t.Z, t.X, t.Y)
	}
	tileCode, err := h.MapInverse(int(t.X), int(t.Y))
	if err != nil {
		return 0, errors.Wrapf(err, "tile %d/%d/%d", t.Z, t.X, t.Y)
	}

	tilesCount := (1<<(uint(t.Z)*2) - 1) / 3
	return uint64(tileCode + tilesCount), nil
}

// DecodeTileID reverses EncodeTileID.
func DecodeTileID(code uint64) (maptile.Tile, error) {
	if code >= tileCodeLimit {
		return maptile.Tile{}, &ErrInvalidTileKey{
			Value:  fmt.Sprint(code),
			Reason: fmt.Sprintf("tile id beyond zoom %d", maxTileZoom),
		}
	}
	z := (bits.Len64(3*code+1) - 1) / 2
	tilesCount := (1<<(z*2) - 1) / 3

	h, err := hilbert.NewHilbert(1 << z)
	if err != nil {
		return maptile.Tile{}, &ErrInvalidTileKey{Value: fmt.Sprint(code), Reason: err.Error()}
	}
	x, y, err := h.Map(int(code) - tilesCount)
	if err != nil {
		return maptile.Tile{}, &ErrInvalidTileKey{Value: fmt.Sprint(code), Reason: err.Error()}
	}
	return maptile.New(uint32(x), uint32(y), maptile.Zoom(z)), nil
}
