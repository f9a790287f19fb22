package featureviz

import (
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/beetlebugorg/featureviz/internal/expr"
	"github.com/beetlebugorg/featureviz/internal/render"
	"github.com/beetlebugorg/featureviz/internal/style"
)

// SessionOptions configures a visualization session.
type SessionOptions struct {
	// Logger receives session diagnostics. Defaults to a no-op logger.
	Logger *zap.Logger

	// Metrics is optional; sessions sharing it report to the same counters.
	Metrics *Metrics

	// Evaluator evaluates filter and "-expression" attributes.
	// Defaults to a go-dfl evaluator.
	Evaluator Evaluator

	// Converter maps geographic positions to renderer space.
	// Defaults to Earth-centered, Earth-fixed coordinates.
	Converter Converter

	// Backend creates renderer primitives. Defaults to a fresh Recorder.
	Backend Backend

	// MergeService creates aggregates for point merge cells. When nil,
	// cells are still collected but carry no aggregate handle.
	MergeService MergeService

	// HighlightMode selects which rules take part: only rules declaring
	// this mode are matched.
	HighlightMode HighlightMode

	// Options overrides style option defaults by option id.
	Options map[string]bool

	// FeatureIDs restricts the primary tile to these features, given in
	// canonical FeatureID.String() form. Empty means all features.
	FeatureIDs []string

	// Bounds restricts the primary tile to features intersecting it.
	Bounds *orb.Bound
}

// DefaultSessionOptions returns default options.
func DefaultSessionOptions() SessionOptions {
	return SessionOptions{
		Logger:        zap.NewNop(),
		Metrics:       nil,
		Evaluator:     expr.NewDFL(),
		Converter:     render.ECEF{},
		Backend:       nil,
		MergeService:  nil,
		HighlightMode: style.HighlightNone,
	}
}
