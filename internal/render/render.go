// Package render defines the boundary between the visualization engine and
// a renderer: primitive categories, appearance keys, the Backend that turns
// them into drawable primitives, and geographic to renderer coordinate
// conversion.
package render

import (
	"github.com/beetlebugorg/featureviz/internal/style"
)

// Category is one of the fixed primitive kinds the engine emits.
type Category uint8

const (
	CategoryLines Category = iota
	CategoryDashedLines
	CategoryArrowLines
	CategoryMeshes        // polygons, triangulated by the backend
	CategoryTrivialMeshes // explicit triangle lists
	CategoryGroundLines
	CategoryGroundDashedLines
	CategoryGroundArrowLines
	CategoryFlatMeshes
	CategoryPoints
	CategoryBillboards
	CategoryLabels

	numCategories
)

var categoryNames = [numCategories]string{
	CategoryLines:             "lines",
	CategoryDashedLines:       "dashedLines",
	CategoryArrowLines:        "arrowLines",
	CategoryMeshes:            "meshes",
	CategoryTrivialMeshes:     "trivialMeshes",
	CategoryGroundLines:       "groundLines",
	CategoryGroundDashedLines: "groundDashedLines",
	CategoryGroundArrowLines:  "groundArrowLines",
	CategoryFlatMeshes:        "flatMeshes",
	CategoryPoints:            "points",
	CategoryBillboards:        "billboards",
	CategoryLabels:            "labels",
}

// String returns the output name of the category.
func (c Category) String() string {
	if c < numCategories {
		return categoryNames[c]
	}
	return "unknown"
}

// Categories returns every category in output order.
func Categories() []Category {
	out := make([]Category, numCategories)
	for i := range out {
		out[i] = Category(i)
	}
	return out
}

// Ground returns the ground-clamped variant of a line or mesh category.
func (c Category) Ground() Category {
	switch c {
	case CategoryLines:
		return CategoryGroundLines
	case CategoryDashedLines:
		return CategoryGroundDashedLines
	case CategoryArrowLines:
		return CategoryGroundArrowLines
	case CategoryMeshes, CategoryTrivialMeshes:
		return CategoryFlatMeshes
	}
	return c
}

// AppearanceKey holds the rendering parameters that must be equal for two
// geometries to share one primitive. Fields a category does not key on are
// left zero: dashed lines key on all four fields, other lines and meshes on
// Color, and points, billboards and labels share a single zero key.
type AppearanceKey struct {
	Color       style.Color
	GapColor    style.Color
	DashLength  float64
	DashPattern uint16
}

// DashedKey is the key for dashed line primitives.
func DashedKey(color, gap style.Color, length float64, pattern uint16) AppearanceKey {
	return AppearanceKey{Color: color, GapColor: gap, DashLength: length, DashPattern: pattern}
}

// ColorKey is the key for solid line, arrow line and mesh primitives.
func ColorKey(color style.Color) AppearanceKey {
	return AppearanceKey{Color: color}
}

// Cartesian3 is a position in renderer space.
type Cartesian3 struct {
	X, Y, Z float64
}

// Item is one drawable instance added to a primitive.
type Item struct {
	// ID identifies the feature for picking; empty for unselectable items.
	ID       string
	Vertices []Cartesian3

	Color        style.Color
	Width        float64
	OutlineColor style.Color
	OutlineWidth float64
	NearFarScale *style.DistanceScale

	IconURL string

	// Text and Label are set for label items.
	Text  string
	Label *style.Label
}

// Primitive accumulates items that share a category and appearance key.
type Primitive interface {
	Add(item Item)
	Len() int
}

// Backend creates renderer primitives. Implementations decide what a
// primitive is; the engine only adds items and counts them.
type Backend interface {
	NewPrimitive(category Category, key AppearanceKey) Primitive
}
