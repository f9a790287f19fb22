package model

import (
	"fmt"
	"strings"

	"github.com/paulmach/orb"
)

// KeyPart is one named component of a feature identifier.
type KeyPart struct {
	Name  string
	Value interface{}
}

// FeatureID identifies a feature by its type name and an ordered list of
// key parts, e.g. Road{tileId: 12, roadId: 4}.
type FeatureID struct {
	Type  string
	Parts []KeyPart
}

// NewFeatureID builds a FeatureID from alternating name/value arguments.
//
// Example:
//
//	id := model.NewFeatureID("Road", "areaId", 12, "roadId", 4)
func NewFeatureID(typeName string, nameValues ...interface{}) FeatureID {
	id := FeatureID{Type: typeName}
	for i := 0; i+1 < len(nameValues); i += 2 {
		id.Parts = append(id.Parts, KeyPart{Name: fmt.Sprint(nameValues[i]), Value: nameValues[i+1]})
	}
	return id
}

// String returns the canonical form "Type.name:value.name:value".
// Backslashes, dots and colons inside the type, names and values are
// escaped with a backslash, so two identifiers are equal iff their
// canonical forms are equal.
func (id FeatureID) String() string {
	var b strings.Builder
	keyEscaper.WriteString(&b, id.Type)
	for _, p := range id.Parts {
		b.WriteByte('.')
		keyEscaper.WriteString(&b, p.Name)
		b.WriteByte(':')
		keyEscaper.WriteString(&b, fmt.Sprint(normalizeKeyValue(p.Value)))
	}
	return b.String()
}

var keyEscaper = strings.NewReplacer(`\`, `\\`, `.`, `\.`, `:`, `\:`)

// Equal reports whether both identifiers name the same feature.
func (id FeatureID) Equal(o FeatureID) bool {
	return id.String() == o.String()
}

// normalizeKeyValue maps numerically equal values of different Go types to
// one representation, so 4, int64(4) and 4.0 (the JSON decoding) agree.
func normalizeKeyValue(v interface{}) interface{} {
	switch n := v.(type) {
	case int:
		return int64(n)
	case int32:
		return int64(n)
	case uint32:
		return int64(n)
	case uint64:
		return int64(n)
	case float64:
		if n == float64(int64(n)) {
			return int64(n)
		}
	case float32:
		if n == float32(int64(n)) {
			return int64(n)
		}
	}
	return v
}

// Direction describes along which direction of its feature an attribute applies.
// Values are bits so that style rules can express a mask.
type Direction uint8

const (
	DirectionPositive Direction = 1 << iota
	DirectionNegative
	DirectionNone

	DirectionBoth = DirectionPositive | DirectionNegative
	DirectionAny  = DirectionBoth | DirectionNone
)

// ParseDirection parses "positive", "negative", "both" and "none".
func ParseDirection(s string) (Direction, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "positive":
		return DirectionPositive, true
	case "negative":
		return DirectionNegative, true
	case "both", "complete":
		return DirectionBoth, true
	case "none", "":
		return DirectionNone, true
	}
	return 0, false
}

// Attribute is a named group of fields attached to a feature, optionally
// restricted to a part of the feature by its validity geometry.
type Attribute struct {
	Name      string
	Layer     string
	Direction Direction
	Fields    map[string]interface{}
	Validity  *Geometry
}

// Relation is a directed, named edge from its owning feature to a target
// feature which may live in another tile.
type Relation struct {
	Name           string
	Target         FeatureID
	SourceValidity *Geometry
	TargetValidity *Geometry
}

// Feature is a map entity with an identifier, geometry, fields,
// attributes and relations.
type Feature struct {
	ID         FeatureID
	Geometries []Geometry
	Properties map[string]interface{}
	Attributes []Attribute
	Relations  []Relation
}

// Type returns the feature's type name.
func (f *Feature) Type() string {
	return f.ID.Type
}

// Property returns a specific field value by name.
func (f *Feature) Property(name string) (interface{}, bool) {
	v, ok := f.Properties[name]
	return v, ok
}

// GeometryMask returns the set of geometry types the feature carries.
func (f *Feature) GeometryMask() GeometryMask {
	var m GeometryMask
	for i := range f.Geometries {
		if f.Geometries[i].Len() > 0 {
			m |= MaskOf(f.Geometries[i].Type)
		}
	}
	return m
}

// Bound returns the bounding box of all feature geometries.
func (f *Feature) Bound() orb.Bound {
	var b orb.Bound
	first := true
	for i := range f.Geometries {
		if f.Geometries[i].Len() == 0 {
			continue
		}
		gb := f.Geometries[i].Bound()
		if first {
			b = gb
			first = false
		} else {
			b = b.Union(gb)
		}
	}
	return b
}

// Center returns the center of the first non-empty geometry.
func (f *Feature) Center() (orb.Point, float64, bool) {
	for i := range f.Geometries {
		if p, h, ok := f.Geometries[i].Center(); ok {
			return p, h, true
		}
	}
	return orb.Point{}, 0, false
}
