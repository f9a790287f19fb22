package featureviz

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/beetlebugorg/featureviz/internal/batch"
	"github.com/beetlebugorg/featureviz/internal/expr"
	"github.com/beetlebugorg/featureviz/internal/metrics"
	"github.com/beetlebugorg/featureviz/internal/model"
	"github.com/beetlebugorg/featureviz/internal/pointmerge"
	"github.com/beetlebugorg/featureviz/internal/render"
	"github.com/beetlebugorg/featureviz/internal/style"
)

// Tile data.
type (
	TileFeatureLayer = model.TileFeatureLayer
	TileKey          = model.TileKey
	Feature          = model.Feature
	FeatureID        = model.FeatureID
)

// Styling.
type (
	RuleSet       = style.RuleSet
	Rule          = style.Rule
	HighlightMode = style.HighlightMode
	Evaluator     = expr.Evaluator
)

const (
	HighlightNone      = style.HighlightNone
	HighlightHover     = style.HighlightHover
	HighlightSelection = style.HighlightSelection
)

// Rendering.
type (
	Backend       = render.Backend
	Primitive     = render.Primitive
	Category      = render.Category
	AppearanceKey = render.AppearanceKey
	Converter     = render.Converter
	Batch         = batch.Batch
	Recorder      = render.Recorder
)

// Point merging.
type (
	MergeService = pointmerge.Service
	MergeCell    = pointmerge.Cell
	GridHash     = pointmerge.GridHash
)

// Metrics is a set of Prometheus counters that sessions report to.
type Metrics = metrics.Metrics

// NewMetrics creates session counters registered with reg. A nil reg
// leaves them unregistered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return metrics.New(reg)
}

// NewRecorder returns a Backend that keeps every item in memory.
func NewRecorder() *Recorder {
	return render.NewRecorder()
}

// DecodeGeoJSONTile decodes one tile layer from a GeoJSON feature collection.
func DecodeGeoJSONTile(data []byte) (*TileFeatureLayer, error) {
	return model.DecodeGeoJSONTile(data)
}
