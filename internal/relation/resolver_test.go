package relation

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest"

	"github.com/beetlebugorg/featureviz/internal/batch"
	"github.com/beetlebugorg/featureviz/internal/metrics"
	"github.com/beetlebugorg/featureviz/internal/model"
	"github.com/beetlebugorg/featureviz/internal/render"
	"github.com/beetlebugorg/featureviz/internal/style"
)

type graph struct {
	layers []*model.TileFeatureLayer
}

func (g *graph) Feature(ref model.FeatureRef) *model.Feature {
	if ref.Tile < 0 || ref.Tile >= len(g.layers) {
		return nil
	}
	return g.layers[ref.Tile].Feature(ref.Index)
}

func (g *graph) Locate(id model.FeatureID) (model.FeatureRef, bool) {
	for i, l := range g.layers {
		if idx, ok := l.Find(id); ok {
			return model.FeatureRef{Tile: i, Index: idx}, true
		}
	}
	return model.FeatureRef{}, false
}

var flat = render.ConverterFunc(func(p orb.Point, h float64) render.Cartesian3 {
	return render.Cartesian3{X: p[0], Y: p[1], Z: h}
})

var (
	red  = style.Color{R: 255, A: 255}
	blue = style.Color{B: 255, A: 255}
)

func node(name string, x float64, targets ...string) model.Feature {
	f := model.Feature{
		ID: model.NewFeatureID("Node", "name", name),
		Geometries: []model.Geometry{
			{Type: model.GeometryTypePoints, Coordinates: []orb.Point{{x, 0}}},
		},
	}
	for _, t := range targets {
		f.Relations = append(f.Relations, model.Relation{
			Name:   "next",
			Target: model.NewFeatureID("Node", "name", t),
		})
	}
	return f
}

func layer(x uint32, features ...model.Feature) *model.TileFeatureLayer {
	key := model.TileKey{MapID: "m", LayerID: "l", Tile: maptile.New(x, 0, 2)}
	return model.NewTileFeatureLayer(key, features)
}

type fixture struct {
	graph   *graph
	engine  *batch.Engine
	rec     *render.Recorder
	metrics *metrics.Metrics
}

func newFixture(t *testing.T, layers ...*model.TileFeatureLayer) *fixture {
	rec := render.NewRecorder()
	m := metrics.New(nil)
	return &fixture{
		graph:   &graph{layers: layers},
		engine:  batch.New(rec, flat, m, zaptest.NewLogger(t)),
		rec:     rec,
		metrics: m,
	}
}

func (fx *fixture) state(t *testing.T, r *style.Rule) *State {
	return NewState(r, fx.graph, fx.engine, &style.Env{}, fx.metrics, zaptest.NewLogger(t))
}

func (fx *fixture) items(category render.Category) []render.Item {
	var out []render.Item
	for _, b := range fx.engine.Collect() {
		if b.Category == category {
			out = append(out, b.Primitive.(*render.RecordedPrimitive).Items...)
		}
	}
	return out
}

func relationRule() *style.Rule {
	r := style.NewRule("rel")
	r.Aspect = style.AspectRelation
	r.Color = red
	return r
}

func TestTwoWayPairRendersOnce(t *testing.T) {
	fx := newFixture(t, layer(0, node("a", 0, "b"), node("b", 2, "a")))
	r := relationRule()
	r.RelationMergeTwoway = true
	r.Arrow = style.ArrowForward

	s := fx.state(t, r)
	s.Enqueue(model.FeatureRef{Tile: 0, Index: 0})
	s.Enqueue(model.FeatureRef{Tile: 0, Index: 1})
	s.PopulateAndRender(false)

	rels := s.Relations()
	if len(rels) != 2 {
		t.Fatalf("got %d relations, want 2", len(rels))
	}
	if !rels[0].TwoWay || !rels[1].TwoWay {
		t.Errorf("both relations should be two-way: %v, %v", rels[0].TwoWay, rels[1].TwoWay)
	}
	if !rels[0].Rendered || rels[1].Rendered {
		t.Errorf("rendered = %v, %v, want true, false", rels[0].Rendered, rels[1].Rendered)
	}
	if !rels[1].Merged() {
		t.Error("second relation should be merged into its twin")
	}
	if got := testutil.ToFloat64(fx.metrics.RelationsRendered); got != 1 {
		t.Errorf("RelationsRendered = %v, want 1", got)
	}

	// The surviving relation carries a double arrow: two halves from the middle.
	items := fx.items(render.CategoryArrowLines)
	if len(items) != 2 {
		t.Fatalf("got %d arrow items, want 2", len(items))
	}
	if diff := cmp.Diff([]render.Cartesian3{{X: 1}, {X: 0}}, items[0].Vertices); diff != "" {
		t.Errorf("first half mismatch (-want+got):\n%v", diff)
	}
	if diff := cmp.Diff([]render.Cartesian3{{X: 1}, {X: 2}}, items[1].Vertices); diff != "" {
		t.Errorf("second half mismatch (-want+got):\n%v", diff)
	}
}

func TestOneWayPairWithoutMerge(t *testing.T) {
	fx := newFixture(t, layer(0, node("a", 0, "b"), node("b", 2, "a")))
	s := fx.state(t, relationRule())
	s.Enqueue(model.FeatureRef{Tile: 0, Index: 0})
	s.Enqueue(model.FeatureRef{Tile: 0, Index: 1})
	s.PopulateAndRender(false)

	if got := len(fx.items(render.CategoryLines)); got != 2 {
		t.Errorf("got %d lines, want 2", got)
	}
	for i, r := range s.Relations() {
		if r.TwoWay || !r.Rendered {
			t.Errorf("relation %d: TwoWay = %v, Rendered = %v", i, r.TwoWay, r.Rendered)
		}
	}
}

func TestCycleTerminates(t *testing.T) {
	fx := newFixture(t, layer(0, node("a", 0, "b"), node("b", 2, "a")))
	r := relationRule()
	r.RelationRecursive = true
	r.RelationSourceStyle = style.NewRule("rel/source")
	r.RelationSourceStyle.Color = red
	r.RelationTargetStyle = style.NewRule("rel/target")
	r.RelationTargetStyle.Color = blue

	s := fx.state(t, r)
	if !s.Enqueue(model.FeatureRef{Tile: 0, Index: 0}) {
		t.Fatal("first Enqueue should succeed")
	}
	if s.Enqueue(model.FeatureRef{Tile: 0, Index: 0}) {
		t.Error("second Enqueue of the same feature should be ignored")
	}
	s.PopulateAndRender(false)
	s.PopulateAndRender(false)

	if got := len(s.Relations()); got != 2 {
		t.Fatalf("got %d relations, want 2", got)
	}
	if got := testutil.ToFloat64(fx.metrics.RelationsRendered); got != 2 {
		t.Errorf("RelationsRendered = %v, want 2", got)
	}

	colors := map[style.Color][]string{}
	for _, it := range fx.items(render.CategoryPoints) {
		colors[it.Color] = append(colors[it.Color], it.ID)
	}
	a, b := model.NewFeatureID("Node", "name", "a").String(), model.NewFeatureID("Node", "name", "b").String()
	sorted := cmpopts.SortSlices(func(x, y string) bool { return x < y })
	if diff := cmp.Diff([]string{a, b}, colors[red], sorted); diff != "" {
		t.Errorf("source styling should apply once per feature (-want+got):\n%v", diff)
	}
	if diff := cmp.Diff([]string{a, b}, colors[blue], sorted); diff != "" {
		t.Errorf("target styling should apply once per feature (-want+got):\n%v", diff)
	}
}

func TestExternalTarget(t *testing.T) {
	fx := newFixture(t, layer(0, node("a", 0, "c")))
	r := relationRule()
	r.RelationRecursive = true
	s := fx.state(t, r)
	s.Enqueue(model.FeatureRef{Tile: 0, Index: 0})
	s.PopulateAndRender(false)

	pending := s.Pending()
	if len(pending) != 1 {
		t.Fatalf("got %d pending relations, want 1", len(pending))
	}
	if pending[0].Target != nil {
		t.Errorf("pending target = %v, want nil", pending[0].Target)
	}
	if got := len(fx.engine.Collect()); got != 0 {
		t.Errorf("got %d batches before resolution, want 0", got)
	}

	// The target's tile arrives; the caller resolves the pending relation.
	fx.graph.layers = append(fx.graph.layers, layer(1, node("c", 4)))
	ref, ok := fx.graph.Locate(model.NewFeatureID("Node", "name", "c"))
	if !ok {
		t.Fatal("target not found in added tile")
	}
	s.Resolve(pending[0], ref)
	s.PopulateAndRender(true)
	if pending[0].Rendered {
		t.Error("flag-only pass must not render")
	}
	s.PopulateAndRender(false)

	if !pending[0].Rendered {
		t.Error("resolved relation should be rendered")
	}
	if got := len(s.Pending()); got != 0 {
		t.Errorf("got %d pending relations after resolution, want 0", got)
	}
	if got := len(fx.items(render.CategoryLines)); got != 1 {
		t.Errorf("got %d lines, want 1", got)
	}
	if s.Render(pending[0]) {
		t.Error("Render should be idempotent")
	}
	if got := len(fx.items(render.CategoryLines)); got != 1 {
		t.Errorf("got %d lines after second Render, want 1", got)
	}
}

func TestLineHeightOffsetAndEndMarkers(t *testing.T) {
	fx := newFixture(t, layer(0, node("a", 0, "b"), node("b", 2)))
	r := relationRule()
	r.RelationLineHeightOffset = 10
	r.RelationLineEndMarkers = style.NewRule("rel/end-markers")
	r.RelationLineEndMarkers.Color = blue

	s := fx.state(t, r)
	s.Enqueue(model.FeatureRef{Tile: 0, Index: 0})
	s.PopulateAndRender(false)

	lines := fx.items(render.CategoryLines)
	if len(lines) != 3 {
		t.Fatalf("got %d lines, want relation plus two markers", len(lines))
	}
	if diff := cmp.Diff([]render.Cartesian3{{X: 0, Z: 10}, {X: 2, Z: 10}}, lines[0].Vertices); diff != "" {
		t.Errorf("relation line mismatch (-want+got):\n%v", diff)
	}
	var markers [][]render.Cartesian3
	for _, l := range lines[1:] {
		if l.Color != blue {
			t.Errorf("marker color = %v, want %v", l.Color, blue)
		}
		markers = append(markers, l.Vertices)
	}
	want := [][]render.Cartesian3{
		{{X: 0}, {X: 0, Z: 10}},
		{{X: 2}, {X: 2, Z: 10}},
	}
	byX := cmpopts.SortSlices(func(a, b []render.Cartesian3) bool { return a[0].X < b[0].X })
	if diff := cmp.Diff(want, markers, byX); diff != "" {
		t.Errorf("end markers mismatch (-want+got):\n%v", diff)
	}
}

func TestRelationTypeFilter(t *testing.T) {
	f := node("a", 0, "b")
	f.Relations = append(f.Relations, model.Relation{Name: "other", Target: model.NewFeatureID("Node", "name", "b")})
	fx := newFixture(t, layer(0, f, node("b", 2)))
	r := relationRule()
	if err := r.SetRelationType("next"); err != nil {
		t.Fatalf("SetRelationType failed: %v", err)
	}

	s := fx.state(t, r)
	s.Enqueue(model.FeatureRef{Tile: 0, Index: 0})
	s.PopulateAndRender(false)
	rels := s.Relations()
	if len(rels) != 1 {
		t.Fatalf("got %d relations, want 1", len(rels))
	}
	if got := rels[0].Relation(fx.graph).Name; got != "next" {
		t.Errorf("relation name = %q, want next", got)
	}
}

func TestUnknownFeatureDoesNotPanic(t *testing.T) {
	fx := newFixture(t, layer(0, node("a", 0)))
	logger := zaptest.NewLogger(t, zaptest.WrapOptions(zap.Development()))
	s := NewState(relationRule(), fx.graph, fx.engine, &style.Env{}, fx.metrics, logger)

	if s.Enqueue(model.FeatureRef{Tile: 3, Index: 0}) {
		t.Error("Enqueue of an unknown feature should fail")
	}
	s.PopulateAndRender(false)
	if got := testutil.ToFloat64(fx.metrics.InvariantViolations); got != 1 {
		t.Errorf("InvariantViolations = %v, want 1", got)
	}
}
