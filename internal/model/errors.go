package model

import (
	"fmt"
)

// ErrInvalidCoordinate indicates coordinate out of valid bounds
type ErrInvalidCoordinate struct {
	Lat, Lon float64
}

func (e *ErrInvalidCoordinate) Error() string {
	return fmt.Sprintf("invalid coordinate: lat=%f lon=%f (lat must be ±90, lon must be ±180)",
		e.Lat, e.Lon)
}

// ErrInvalidGeometry indicates a geometry that violates the rules of its type
type ErrInvalidGeometry struct {
	Type   GeometryType
	Reason string
}

func (e *ErrInvalidGeometry) Error() string {
	return fmt.Sprintf("invalid geometry (%v): %s", e.Type, e.Reason)
}

// ErrMissingFeatureType indicates a feature without a type name
type ErrMissingFeatureType struct {
	Index int
}

func (e *ErrMissingFeatureType) Error() string {
	return fmt.Sprintf("feature %d has no typeId", e.Index)
}

// ErrInvalidTileKey indicates a tile key string that cannot be parsed
type ErrInvalidTileKey struct {
	Value  string
	Reason string
}

func (e *ErrInvalidTileKey) Error() string {
	return fmt.Sprintf("invalid tile key %q: %s", e.Value, e.Reason)
}
