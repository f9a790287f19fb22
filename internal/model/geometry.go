package model

import (
	"strings"

	"github.com/paulmach/orb"
)

// GeometryType represents the type of a feature geometry.
type GeometryType uint8

const (
	// GeometryTypePoints is a set of one or more isolated positions.
	GeometryTypePoints GeometryType = iota

	// GeometryTypeLine is a polyline of at least two positions.
	GeometryTypeLine

	// GeometryTypePolygon is a single closed outer ring. The renderer
	// is responsible for triangulating it.
	GeometryTypePolygon

	// GeometryTypeMesh is an explicit triangle list; the number of
	// positions is a multiple of three.
	GeometryTypeMesh
)

// String returns the string representation of the geometry type.
func (g GeometryType) String() string {
	switch g {
	case GeometryTypePoints:
		return "point"
	case GeometryTypeLine:
		return "line"
	case GeometryTypePolygon:
		return "polygon"
	case GeometryTypeMesh:
		return "mesh"
	default:
		return "unknown"
	}
}

// ParseGeometryType parses the lower-case geometry names used by style documents.
func ParseGeometryType(s string) (GeometryType, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "point", "points":
		return GeometryTypePoints, true
	case "line":
		return GeometryTypeLine, true
	case "polygon":
		return GeometryTypePolygon, true
	case "mesh":
		return GeometryTypeMesh, true
	}
	return 0, false
}

// GeometryMask is a bit set of geometry types.
type GeometryMask uint8

// GeometryMaskAll contains every geometry type.
const GeometryMaskAll = GeometryMask(1<<GeometryTypePoints | 1<<GeometryTypeLine | 1<<GeometryTypePolygon | 1<<GeometryTypeMesh)

// MaskOf builds a mask from individual geometry types.
func MaskOf(types ...GeometryType) GeometryMask {
	var m GeometryMask
	for _, t := range types {
		m |= 1 << t
	}
	return m
}

// Has reports whether t is a member of the mask.
func (m GeometryMask) Has(t GeometryType) bool {
	return m&(1<<t) != 0
}

// Intersect returns the geometry types present in both masks.
func (m GeometryMask) Intersect(o GeometryMask) GeometryMask {
	return m & o
}

// Empty reports whether the mask has no members.
func (m GeometryMask) Empty() bool {
	return m == 0
}

// Types returns the members of the mask in GeometryType order.
func (m GeometryMask) Types() []GeometryType {
	var out []GeometryType
	for t := GeometryTypePoints; t <= GeometryTypeMesh; t++ {
		if m.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

// Geometry is one geometric primitive of a feature, attribute or relation.
//
// Coordinates follow the GeoJSON convention: [longitude, latitude] in WGS-84
// decimal degrees. Heights is optional; when present it has one entry per
// coordinate (meters above the ellipsoid).
type Geometry struct {
	Type        GeometryType
	Coordinates []orb.Point
	Heights     []float64
}

// Len returns the number of positions in the geometry.
func (g *Geometry) Len() int {
	return len(g.Coordinates)
}

// Height returns the height of position i, or 0 if the geometry is flat.
func (g *Geometry) Height(i int) float64 {
	if i < len(g.Heights) {
		return g.Heights[i]
	}
	return 0
}

// Bound returns the geographic bounding box of the geometry.
func (g *Geometry) Bound() orb.Bound {
	if len(g.Coordinates) == 0 {
		return orb.Bound{}
	}
	return orb.MultiPoint(g.Coordinates).Bound()
}

// Center returns a representative position of the geometry: the first
// point of a point set, the middle vertex of a line and the bounding
// box center of polygons and meshes. ok is false for empty geometries.
func (g *Geometry) Center() (p orb.Point, height float64, ok bool) {
	if len(g.Coordinates) == 0 {
		return orb.Point{}, 0, false
	}
	switch g.Type {
	case GeometryTypePoints:
		return g.Coordinates[0], g.Height(0), true
	case GeometryTypeLine:
		i := len(g.Coordinates) / 2
		return g.Coordinates[i], g.Height(i), true
	default:
		var sum float64
		for i := range g.Heights {
			sum += g.Heights[i]
		}
		if len(g.Heights) > 0 {
			height = sum / float64(len(g.Heights))
		}
		return g.Bound().Center(), height, true
	}
}

// Validate checks the structural rules for the geometry type.
func (g *Geometry) Validate() error {
	if len(g.Heights) != 0 && len(g.Heights) != len(g.Coordinates) {
		return &ErrInvalidGeometry{Type: g.Type, Reason: "height count does not match coordinate count"}
	}
	for _, c := range g.Coordinates {
		if c[1] < -90 || c[1] > 90 || c[0] < -180 || c[0] > 180 {
			return &ErrInvalidCoordinate{Lon: c[0], Lat: c[1]}
		}
	}
	switch g.Type {
	case GeometryTypeLine:
		if len(g.Coordinates) == 1 {
			return &ErrInvalidGeometry{Type: g.Type, Reason: "line needs at least two positions"}
		}
	case GeometryTypePolygon:
		if len(g.Coordinates) > 0 && len(g.Coordinates) < 3 {
			return &ErrInvalidGeometry{Type: g.Type, Reason: "polygon needs at least three positions"}
		}
	case GeometryTypeMesh:
		if len(g.Coordinates)%3 != 0 {
			return &ErrInvalidGeometry{Type: g.Type, Reason: "mesh position count is not a multiple of three"}
		}
	}
	return nil
}
