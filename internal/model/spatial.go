package model

import (
	"github.com/dhconnelly/rtreego"
	"github.com/paulmach/orb"
)

// spatialIndex provides O(log n) bounding box queries over a layer's features.
type spatialIndex struct {
	rtree *rtreego.Rtree
}

// indexedFeature wraps a feature index for R-tree storage.
type indexedFeature struct {
	index  int
	bounds orb.Bound
}

// Bounds implements rtreego.Spatial interface.
func (f *indexedFeature) Bounds() rtreego.Rect {
	return boundToRect(f.bounds)
}

// boundToRect converts a geographic bound to an R-tree rectangle.
// R-tree requires non-zero dimensions, so point features get a small extent
// (~11 meters at the equator).
func boundToRect(b orb.Bound) rtreego.Rect {
	const epsilon = 0.0001

	lonLength := b.Max[0] - b.Min[0]
	latLength := b.Max[1] - b.Min[1]
	if lonLength < epsilon {
		lonLength = epsilon
	}
	if latLength < epsilon {
		latLength = epsilon
	}

	rect, _ := rtreego.NewRect(rtreego.Point{b.Min[0], b.Min[1]}, []float64{lonLength, latLength})
	return rect
}

// buildSpatialIndex inserts every feature with geometry into an R-tree.
func (l *TileFeatureLayer) buildSpatialIndex() {
	if len(l.features) == 0 {
		return
	}

	// 2D, min=25 children, max=50 children
	rtree := rtreego.NewTree(2, 25, 50)
	for i := range l.features {
		if l.features[i].GeometryMask().Empty() {
			continue
		}
		rtree.Insert(&indexedFeature{index: i, bounds: l.features[i].Bound()})
	}
	l.spatialIndex = &spatialIndex{rtree: rtree}
}

// FeaturesInBounds returns the storage indices of all features whose
// geometry intersects the given bounding box, in storage order.
func (l *TileFeatureLayer) FeaturesInBounds(b orb.Bound) []int {
	if l.spatialIndex == nil || l.spatialIndex.rtree == nil {
		return l.featuresInBoundsLinear(b)
	}

	spatials := l.spatialIndex.rtree.SearchIntersect(boundToRect(b))
	hit := make([]bool, len(l.features))
	for _, s := range spatials {
		hit[s.(*indexedFeature).index] = true
	}

	result := make([]int, 0, len(spatials))
	for i, ok := range hit {
		if ok {
			result = append(result, i)
		}
	}
	return result
}

// featuresInBoundsLinear performs linear search when no spatial index exists.
func (l *TileFeatureLayer) featuresInBoundsLinear(b orb.Bound) []int {
	var result []int
	for i := range l.features {
		if l.features[i].GeometryMask().Empty() {
			continue
		}
		if b.Intersects(l.features[i].Bound()) {
			result = append(result, i)
		}
	}
	return result
}
