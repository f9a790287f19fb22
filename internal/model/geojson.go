package model

import (
	"sort"

	json "github.com/goccy/go-json"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/maptile"
	"github.com/pkg/errors"
)

// Reserved feature property names. All other properties become feature fields.
const (
	propTypeID     = "typeId"
	propID         = "id"
	propRelations  = "relations"
	propAttributes = "attributes"
	propMeshes     = "meshes"
)

// DecodeGeoJSONTile parses a GeoJSON FeatureCollection into a layer.
//
// The collection's foreign members identify the tile:
//
//	{"type": "FeatureCollection", "mapId": "Tropico", "layerId": "Roads",
//	 "tile": {"x": 3, "y": 1, "z": 2}, "features": [...]}
//
// Each feature carries its type name and key parts in its properties:
//
//	"properties": {"typeId": "Road", "id": {"roadId": 7},
//	               "relations": [{"name": "next", "target": {"typeId": "Road", "id": {"roadId": 8}}}],
//	               "attributes": {"Speed": [{"name": "limit", "direction": "positive", "fields": {"kmh": 50}}]},
//	               "lanes": 2}
//
// A third position value is kept as the vertex height, for feature
// geometries, meshes and validity geometries alike.
func DecodeGeoJSONTile(data []byte) (*TileFeatureLayer, error) {
	fc, err := geojson.UnmarshalFeatureCollection(data)
	if err != nil {
		return nil, errors.Wrap(err, "parse feature collection")
	}
	key, err := tileKeyFromMembers(fc.ExtraMembers)
	if err != nil {
		return nil, err
	}

	// orb positions are 2D; heights come from a second, untyped pass.
	var raw struct {
		Features []struct {
			Geometry interface{} `json:"geometry"`
		} `json:"features"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.Wrap(err, "parse feature heights")
	}
	geoms := make([]interface{}, len(raw.Features))
	for i, f := range raw.Features {
		geoms[i] = f.Geometry
	}
	return toLayer(key, fc, geoms)
}

// FeatureCollectionToLayer converts a decoded collection into a layer with
// the given key. The orb collection holds no heights, so feature geometries
// come out 2D; meshes and validity geometries keep theirs.
func FeatureCollectionToLayer(key TileKey, fc *geojson.FeatureCollection) (*TileFeatureLayer, error) {
	return toLayer(key, fc, nil)
}

func toLayer(key TileKey, fc *geojson.FeatureCollection, rawGeoms []interface{}) (*TileFeatureLayer, error) {
	features := make([]Feature, 0, len(fc.Features))
	for i, f := range fc.Features {
		var rawGeom interface{}
		if i < len(rawGeoms) {
			rawGeom = rawGeoms[i]
		}
		feature, err := decodeFeature(i, f, rawGeom)
		if err != nil {
			return nil, errors.Wrapf(err, "feature %d", i)
		}
		features = append(features, feature)
	}
	return NewTileFeatureLayer(key, features), nil
}

func tileKeyFromMembers(members geojson.Properties) (TileKey, error) {
	var key TileKey
	key.MapID, _ = members["mapId"].(string)
	key.LayerID, _ = members["layerId"].(string)
	if key.MapID == "" || key.LayerID == "" {
		return TileKey{}, errors.New("feature collection lacks mapId/layerId members")
	}
	tile, ok := members["tile"].(map[string]interface{})
	if !ok {
		return TileKey{}, errors.New("feature collection lacks tile member")
	}
	x, okX := toFloat(tile["x"])
	y, okY := toFloat(tile["y"])
	z, okZ := toFloat(tile["z"])
	if !okX || !okY || !okZ || z < 0 || z > 30 {
		return TileKey{}, errors.Errorf("invalid tile member %v", tile)
	}
	if x < 0 || y < 0 || x >= float64(uint64(1)<<uint(z)) || y >= float64(uint64(1)<<uint(z)) {
		return TileKey{}, errors.Errorf("tile %v out of range for zoom %v", tile, z)
	}
	key.Tile = maptile.New(uint32(x), uint32(y), maptile.Zoom(z))
	return key, nil
}

func decodeFeature(index int, f *geojson.Feature, rawGeom interface{}) (Feature, error) {
	props := f.Properties
	typeName, _ := props[propTypeID].(string)
	if typeName == "" {
		return Feature{}, &ErrMissingFeatureType{Index: index}
	}

	feature := Feature{
		ID:         FeatureID{Type: typeName, Parts: keyParts(props[propID])},
		Properties: make(map[string]interface{}, len(props)),
	}
	if len(feature.ID.Parts) == 0 && f.ID != nil {
		feature.ID.Parts = []KeyPart{{Name: "id", Value: f.ID}}
	}

	if f.Geometry != nil {
		feature.Geometries = withHeights(fromOrb(f.Geometry), geometryHeights(rawGeom))
	}
	meshes, err := decodeMeshes(props[propMeshes])
	if err != nil {
		return Feature{}, err
	}
	feature.Geometries = append(feature.Geometries, meshes...)
	for i := range feature.Geometries {
		if err := feature.Geometries[i].Validate(); err != nil {
			return Feature{}, err
		}
	}

	if feature.Relations, err = decodeRelations(props[propRelations]); err != nil {
		return Feature{}, err
	}
	if feature.Attributes, err = decodeAttributes(props[propAttributes]); err != nil {
		return Feature{}, err
	}

	for k, v := range props {
		switch k {
		case propTypeID, propID, propRelations, propAttributes, propMeshes:
		default:
			feature.Properties[k] = v
		}
	}
	return feature, nil
}

// keyParts converts an id object into key parts sorted by name.
// JSON objects are unordered, so sorting gives a stable identifier.
func keyParts(v interface{}) []KeyPart {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	parts := make([]KeyPart, 0, len(names))
	for _, name := range names {
		parts = append(parts, KeyPart{Name: name, Value: m[name]})
	}
	return parts
}

// fromOrb flattens an orb geometry into feature geometries.
func fromOrb(g orb.Geometry) []Geometry {
	switch g := g.(type) {
	case orb.Point:
		return []Geometry{{Type: GeometryTypePoints, Coordinates: []orb.Point{g}}}
	case orb.MultiPoint:
		return []Geometry{{Type: GeometryTypePoints, Coordinates: append([]orb.Point(nil), g...)}}
	case orb.LineString:
		return []Geometry{{Type: GeometryTypeLine, Coordinates: append([]orb.Point(nil), g...)}}
	case orb.MultiLineString:
		out := make([]Geometry, 0, len(g))
		for _, ls := range g {
			out = append(out, Geometry{Type: GeometryTypeLine, Coordinates: append([]orb.Point(nil), ls...)})
		}
		return out
	case orb.Polygon:
		if len(g) == 0 {
			return nil
		}
		return []Geometry{polygonFromRing(g[0])}
	case orb.MultiPolygon:
		out := make([]Geometry, 0, len(g))
		for _, p := range g {
			if len(p) > 0 {
				out = append(out, polygonFromRing(p[0]))
			}
		}
		return out
	case orb.Collection:
		var out []Geometry
		for _, child := range g {
			out = append(out, fromOrb(child)...)
		}
		return out
	}
	return nil
}

// polygonFromRing drops the closing vertex that GeoJSON rings repeat.
func polygonFromRing(r orb.Ring) Geometry {
	pts := append([]orb.Point(nil), r...)
	if len(pts) > 1 && pts[0] == pts[len(pts)-1] {
		pts = pts[:len(pts)-1]
	}
	return Geometry{Type: GeometryTypePolygon, Coordinates: pts}
}

// geometryHeights returns the third position values of an untyped GeoJSON
// geometry, one slice per geometry in fromOrb order. A nil slice means the
// positions are 2D.
func geometryHeights(v interface{}) [][]float64 {
	m, ok := v.(map[string]interface{})
	if !ok {
		return nil
	}
	c := m["coordinates"]
	switch m["type"] {
	case "Point":
		return [][]float64{positionHeights([]interface{}{c})}
	case "MultiPoint", "LineString":
		return [][]float64{positionHeights(c)}
	case "MultiLineString":
		lines, _ := c.([]interface{})
		out := make([][]float64, 0, len(lines))
		for _, line := range lines {
			out = append(out, positionHeights(line))
		}
		return out
	case "Polygon":
		rings, _ := c.([]interface{})
		if len(rings) == 0 {
			return nil
		}
		return [][]float64{positionHeights(rings[0])}
	case "MultiPolygon":
		polys, _ := c.([]interface{})
		var out [][]float64
		for _, p := range polys {
			if rings, _ := p.([]interface{}); len(rings) > 0 {
				out = append(out, positionHeights(rings[0]))
			}
		}
		return out
	case "GeometryCollection":
		children, _ := m["geometries"].([]interface{})
		var out [][]float64
		for _, child := range children {
			out = append(out, geometryHeights(child)...)
		}
		return out
	}
	return nil
}

func positionHeights(v interface{}) []float64 {
	list, _ := v.([]interface{})
	hs := make([]float64, len(list))
	has := false
	for i, pos := range list {
		if coords, _ := pos.([]interface{}); len(coords) > 2 {
			hs[i], _ = toFloat(coords[2])
			has = true
		}
	}
	if !has {
		return nil
	}
	return hs
}

// withHeights attaches heights to geoms. Extra trailing heights, such as
// those of a dropped closing ring vertex, are cut off.
func withHeights(geoms []Geometry, heights [][]float64) []Geometry {
	if len(heights) != len(geoms) {
		return geoms
	}
	for i, h := range heights {
		n := len(geoms[i].Coordinates)
		if h == nil || len(h) < n {
			continue
		}
		geoms[i].Heights = h[:n]
	}
	return geoms
}

// decodeMeshes reads triangle lists: [[[lon, lat, h], [lon, lat, h], [lon, lat, h], ...], ...].
func decodeMeshes(v interface{}) ([]Geometry, error) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, nil
	}
	out := make([]Geometry, 0, len(list))
	for _, mesh := range list {
		positions, ok := mesh.([]interface{})
		if !ok {
			return nil, &ErrInvalidGeometry{Type: GeometryTypeMesh, Reason: "mesh is not a position list"}
		}
		g := Geometry{Type: GeometryTypeMesh}
		hasHeight := false
		for _, pos := range positions {
			coords, ok := pos.([]interface{})
			if !ok || len(coords) < 2 {
				return nil, &ErrInvalidGeometry{Type: GeometryTypeMesh, Reason: "position needs at least two numbers"}
			}
			lon, _ := toFloat(coords[0])
			lat, _ := toFloat(coords[1])
			var h float64
			if len(coords) > 2 {
				h, _ = toFloat(coords[2])
				hasHeight = true
			}
			g.Coordinates = append(g.Coordinates, orb.Point{lon, lat})
			g.Heights = append(g.Heights, h)
		}
		if !hasHeight {
			g.Heights = nil
		}
		out = append(out, g)
	}
	return out, nil
}

func decodeRelations(v interface{}) ([]Relation, error) {
	list, ok := v.([]interface{})
	if !ok {
		return nil, nil
	}
	out := make([]Relation, 0, len(list))
	for i, entry := range list {
		m, ok := entry.(map[string]interface{})
		if !ok {
			return nil, errors.Errorf("relation %d is not an object", i)
		}
		name, _ := m["name"].(string)
		target, _ := m["target"].(map[string]interface{})
		targetType, _ := target[propTypeID].(string)
		if name == "" || targetType == "" {
			return nil, errors.Errorf("relation %d needs name and target.typeId", i)
		}
		r := Relation{
			Name:   name,
			Target: FeatureID{Type: targetType, Parts: keyParts(target[propID])},
		}
		var err error
		if r.SourceValidity, err = decodeValidity(m["sourceValidity"]); err != nil {
			return nil, errors.Wrapf(err, "relation %d source validity", i)
		}
		if r.TargetValidity, err = decodeValidity(m["targetValidity"]); err != nil {
			return nil, errors.Wrapf(err, "relation %d target validity", i)
		}
		out = append(out, r)
	}
	return out, nil
}

func decodeAttributes(v interface{}) ([]Attribute, error) {
	layers, ok := v.(map[string]interface{})
	if !ok {
		return nil, nil
	}
	layerNames := make([]string, 0, len(layers))
	for name := range layers {
		layerNames = append(layerNames, name)
	}
	sort.Strings(layerNames)

	var out []Attribute
	for _, layer := range layerNames {
		list, ok := layers[layer].([]interface{})
		if !ok {
			return nil, errors.Errorf("attribute layer %q is not a list", layer)
		}
		for i, entry := range list {
			m, ok := entry.(map[string]interface{})
			if !ok {
				return nil, errors.Errorf("attribute %s[%d] is not an object", layer, i)
			}
			a := Attribute{Layer: layer, Direction: DirectionNone}
			a.Name, _ = m["name"].(string)
			if s, ok := m["direction"].(string); ok {
				d, ok := ParseDirection(s)
				if !ok {
					return nil, errors.Errorf("attribute %s[%d] has unknown direction %q", layer, i, s)
				}
				a.Direction = d
			}
			a.Fields, _ = m["fields"].(map[string]interface{})
			var err error
			if a.Validity, err = decodeValidity(m["validity"]); err != nil {
				return nil, errors.Wrapf(err, "attribute %s[%d] validity", layer, i)
			}
			out = append(out, a)
		}
	}
	return out, nil
}

// decodeValidity converts an embedded GeoJSON geometry object.
func decodeValidity(v interface{}) (*Geometry, error) {
	if v == nil {
		return nil, nil
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode validity")
	}
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return nil, errors.Wrap(err, "decode validity")
	}
	geoms := withHeights(fromOrb(g.Geometry()), geometryHeights(v))
	if len(geoms) == 0 {
		return nil, nil
	}
	return &geoms[0], nil
}

func toFloat(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	}
	return 0, false
}
