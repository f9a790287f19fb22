package batch

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"go.uber.org/zap/zaptest"

	"github.com/beetlebugorg/featureviz/internal/model"
	"github.com/beetlebugorg/featureviz/internal/render"
	"github.com/beetlebugorg/featureviz/internal/style"
)

// flat maps lon/lat/height straight to X/Y/Z so expectations stay readable.
var flat = render.ConverterFunc(func(p orb.Point, h float64) render.Cartesian3 {
	return render.Cartesian3{X: p[0], Y: p[1], Z: h}
})

func c3(x, y float64) render.Cartesian3 { return render.Cartesian3{X: x, Y: y} }

func newEngine(t *testing.T) (*Engine, *render.Recorder) {
	rec := render.NewRecorder()
	return New(rec, flat, nil, zaptest.NewLogger(t)), rec
}

func line(pts ...orb.Point) *model.Geometry {
	return &model.Geometry{Type: model.GeometryTypeLine, Coordinates: pts}
}

var (
	red  = style.Color{R: 255, A: 255}
	blue = style.Color{B: 255, A: 255}
)

func TestSplitDoubleArrow(t *testing.T) {
	p0, p1, p2, p3, p4 := c3(0, 0), c3(1, 0), c3(2, 0), c3(3, 0), c3(4, 0)
	tests := []struct {
		name          string
		in            []render.Cartesian3
		first, second []render.Cartesian3
	}{
		{
			name:   "two points",
			in:     []render.Cartesian3{c3(0, 0), c3(2, 4)},
			first:  []render.Cartesian3{c3(1, 2), c3(0, 0)},
			second: []render.Cartesian3{c3(1, 2), c3(2, 4)},
		},
		{
			name:   "three points",
			in:     []render.Cartesian3{p0, p1, p2},
			first:  []render.Cartesian3{p1, p0},
			second: []render.Cartesian3{p1, p2},
		},
		{
			name:   "four points",
			in:     []render.Cartesian3{p0, p1, p2, p3},
			first:  []render.Cartesian3{p2, p1, p0},
			second: []render.Cartesian3{p2, p3},
		},
		{
			name:   "five points",
			in:     []render.Cartesian3{p0, p1, p2, p3, p4},
			first:  []render.Cartesian3{p2, p1, p0},
			second: []render.Cartesian3{p2, p3, p4},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			first, second := SplitDoubleArrow(tt.in)
			if diff := cmp.Diff(tt.first, first); diff != "" {
				t.Errorf("first half mismatch (-want+got):\n%v", diff)
			}
			if diff := cmp.Diff(tt.second, second); diff != "" {
				t.Errorf("second half mismatch (-want+got):\n%v", diff)
			}
		})
	}
}

func TestSplitDoubleArrowKeepsInput(t *testing.T) {
	in := []render.Cartesian3{c3(0, 0), c3(1, 0), c3(2, 0), c3(3, 0)}
	orig := append([]render.Cartesian3(nil), in...)
	SplitDoubleArrow(in)
	if diff := cmp.Diff(orig, in); diff != "" {
		t.Errorf("input modified (-want+got):\n%v", diff)
	}
}

func TestAppearanceKeyBatching(t *testing.T) {
	dashed := style.NewRule("0")
	dashed.Dashed = true
	otherGap := style.NewRule("1")
	otherGap.Dashed = true
	otherGap.GapColor = blue

	tests := []struct {
		name         string
		ruleA, ruleB style.Rule
		appA, appB   Appearance
		same         bool
	}{
		{"solid same color", *style.NewRule("0"), *style.NewRule("1"), Appearance{Color: red}, Appearance{Color: red}, true},
		{"solid other color", *style.NewRule("0"), *style.NewRule("1"), Appearance{Color: red}, Appearance{Color: blue}, false},
		{"dashed same", *dashed, *dashed, Appearance{Color: red}, Appearance{Color: red}, true},
		{"dashed other gap", *dashed, *otherGap, Appearance{Color: red}, Appearance{Color: red}, false},
		{"arrow same color", *style.NewRule("0"), *style.NewRule("1"), Appearance{Color: red, Arrow: style.ArrowForward}, Appearance{Color: red, Arrow: style.ArrowDouble}, true},
		{"arrow vs solid", *style.NewRule("0"), *style.NewRule("1"), Appearance{Color: red, Arrow: style.ArrowForward}, Appearance{Color: red}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, _ := newEngine(t)
			ruleA, ruleB := tt.ruleA, tt.ruleB
			e.AddGeometry("a", line(orb.Point{0, 0}, orb.Point{1, 1}), &ruleA, tt.appA, Offset{})
			e.AddGeometry("b", line(orb.Point{2, 2}, orb.Point{3, 3}), &ruleB, tt.appB, Offset{})
			batches := e.Collect()
			want := 2
			if tt.same {
				want = 1
			}
			if len(batches) != want {
				t.Errorf("got %d batches, want %d", len(batches), want)
			}
		})
	}
}

func TestDashedWithLength(t *testing.T) {
	e, _ := newEngine(t)
	a := style.NewRule("0")
	a.Dashed = true
	b := style.NewRule("1")
	b.Dashed = true
	b.DashLength = 8
	e.AddGeometry("a", line(orb.Point{0, 0}, orb.Point{1, 1}), a, Appearance{Color: red}, Offset{})
	e.AddGeometry("b", line(orb.Point{0, 0}, orb.Point{1, 1}), b, Appearance{Color: red}, Offset{})
	e.AddGeometry("c", line(orb.Point{0, 0}, orb.Point{1, 1}), b, Appearance{Color: red}, Offset{})

	batches := e.Collect()
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	if batches[0].Category != render.CategoryDashedLines {
		t.Errorf("category = %v, want dashed lines", batches[0].Category)
	}
	if batches[0].Primitive.Len() != 1 || batches[1].Primitive.Len() != 2 {
		t.Errorf("batch sizes = %d, %d, want 1, 2", batches[0].Primitive.Len(), batches[1].Primitive.Len())
	}
}

func TestZeroVertexGeometryDropped(t *testing.T) {
	e, rec := newEngine(t)
	r := style.NewRule("0")
	for _, typ := range []model.GeometryType{model.GeometryTypePoints, model.GeometryTypeLine, model.GeometryTypePolygon, model.GeometryTypeMesh} {
		e.AddGeometry("a", &model.Geometry{Type: typ}, r, Appearance{Color: red}, Offset{})
	}
	if got := len(e.Collect()); got != 0 {
		t.Errorf("got %d batches, want 0", got)
	}
	if got := len(rec.Primitives()); got != 0 {
		t.Errorf("got %d primitives for empty geometry, want 0", got)
	}
}

func TestGeometryMaskRespected(t *testing.T) {
	e, _ := newEngine(t)
	r := style.NewRule("0")
	r.Geometries = model.MaskOf(model.GeometryTypePoints)
	e.AddGeometry("a", line(orb.Point{0, 0}, orb.Point{1, 1}), r, Appearance{Color: red}, Offset{})
	if got := len(e.Collect()); got != 0 {
		t.Errorf("got %d batches for masked geometry, want 0", got)
	}
}

func TestCategories(t *testing.T) {
	e, _ := newEngine(t)
	r := style.NewRule("0")
	flatRule := style.NewRule("1")
	flatRule.Flat = true

	e.AddGeometry("pt", &model.Geometry{Type: model.GeometryTypePoints, Coordinates: []orb.Point{{0, 0}, {1, 1}}}, r, Appearance{Color: red}, Offset{})
	e.AddGeometry("icon", &model.Geometry{Type: model.GeometryTypePoints, Coordinates: []orb.Point{{0, 0}}}, r, Appearance{Color: red, IconURL: "sign.png"}, Offset{})
	e.AddGeometry("poly", &model.Geometry{Type: model.GeometryTypePolygon, Coordinates: []orb.Point{{0, 0}, {1, 0}, {1, 1}}}, r, Appearance{Color: red}, Offset{})
	e.AddGeometry("mesh", &model.Geometry{Type: model.GeometryTypeMesh, Coordinates: []orb.Point{{0, 0}, {1, 0}, {1, 1}}}, r, Appearance{Color: red}, Offset{})
	e.AddGeometry("ground", line(orb.Point{0, 0}, orb.Point{1, 1}), flatRule, Appearance{Color: red}, Offset{})
	e.AddGeometry("flatmesh", &model.Geometry{Type: model.GeometryTypeMesh, Coordinates: []orb.Point{{0, 0}, {1, 0}, {1, 1}}}, flatRule, Appearance{Color: red}, Offset{})

	got := map[string]int{}
	for _, b := range e.Collect() {
		got[b.Category.String()] += b.Primitive.Len()
	}
	want := map[string]int{
		"points":        2,
		"billboards":    1,
		"meshes":        1,
		"trivialMeshes": 1,
		"groundLines":   1,
		"flatMeshes":    1,
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("category counts mismatch (-want+got):\n%v", diff)
	}
}

func TestOffsetsAndSelectable(t *testing.T) {
	e, rec := newEngine(t)
	r := style.NewRule("0")
	r.VerticalOffset = 5
	r.Offset = [3]float64{0.5, 0, 1}
	r.Selectable = false

	e.AddGeometry("a", line(orb.Point{0, 0}, orb.Point{1, 0}), r, Appearance{Color: red}, Offset{0, 1, 0})

	prims := rec.Primitives()
	if len(prims) != 1 {
		t.Fatalf("got %d primitives, want 1", len(prims))
	}
	item := prims[0].Items[0]
	if item.ID != "" {
		t.Errorf("unselectable item has id %q", item.ID)
	}
	want := []render.Cartesian3{{X: 0.5, Y: 1, Z: 6}, {X: 1.5, Y: 1, Z: 6}}
	if diff := cmp.Diff(want, item.Vertices); diff != "" {
		t.Errorf("vertices mismatch (-want+got):\n%v", diff)
	}
}

func TestLabels(t *testing.T) {
	e, _ := newEngine(t)
	r := style.NewRule("0")
	r.Label.Text = "A1"

	e.AddGeometry("a", line(orb.Point{0, 0}, orb.Point{1, 0}, orb.Point{2, 0}), r, Appearance{Color: red, LabelText: "A1"}, Offset{})

	batches := e.Collect()
	if len(batches) != 2 {
		t.Fatalf("got %d batches, want 2", len(batches))
	}
	labels := batches[1]
	if labels.Category != render.CategoryLabels {
		t.Fatalf("category = %v, want labels", labels.Category)
	}
	item := labels.Primitive.(*render.RecordedPrimitive).Items[0]
	if item.Text != "A1" {
		t.Errorf("label text = %q, want A1", item.Text)
	}
	if diff := cmp.Diff([]render.Cartesian3{c3(1, 0)}, item.Vertices); diff != "" {
		t.Errorf("label anchor mismatch (-want+got):\n%v", diff)
	}
}

func TestAddLineDoubleArrow(t *testing.T) {
	e, _ := newEngine(t)
	r := style.NewRule("0")
	r.Geometries = model.MaskOf(model.GeometryTypePoints)

	e.AddLine("rel", orb.Point{0, 0}, orb.Point{2, 0}, 10, 10, r, Appearance{Color: red, Arrow: style.ArrowDouble})

	batches := e.Collect()
	if len(batches) != 1 || batches[0].Category != render.CategoryArrowLines {
		t.Fatalf("want a single arrow line batch, got %d batches", len(batches))
	}
	items := batches[0].Primitive.(*render.RecordedPrimitive).Items
	if len(items) != 2 {
		t.Fatalf("got %d items, want 2", len(items))
	}
	if diff := cmp.Diff([]render.Cartesian3{{X: 1, Z: 10}, {X: 0, Z: 10}}, items[0].Vertices); diff != "" {
		t.Errorf("first half mismatch (-want+got):\n%v", diff)
	}
	if diff := cmp.Diff([]render.Cartesian3{{X: 1, Z: 10}, {X: 2, Z: 10}}, items[1].Vertices); diff != "" {
		t.Errorf("second half mismatch (-want+got):\n%v", diff)
	}
}

func TestResolve(t *testing.T) {
	r := style.NewRule("0")
	r.Color = red
	r.Arrow = style.ArrowBackward
	r.IconURL = "x.png"
	app := Resolve(r, &style.Env{}, &model.Feature{ID: model.NewFeatureID("Road")}, nil)
	want := Appearance{Color: red, Arrow: style.ArrowBackward, IconURL: "x.png"}
	if diff := cmp.Diff(want, app); diff != "" {
		t.Errorf("appearance mismatch (-want+got):\n%v", diff)
	}
}
