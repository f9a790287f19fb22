package style

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/paulmach/orb"
	"go.uber.org/zap/zaptest"

	"github.com/beetlebugorg/featureviz/internal/expr"
	"github.com/beetlebugorg/featureviz/internal/model"
)

// fakeEvaluator answers expressions from a fixed table; unknown
// expressions fail.
type fakeEvaluator map[string]interface{}

func (f fakeEvaluator) Evaluate(expression string, _ expr.Context) (interface{}, error) {
	v, ok := f[expression]
	if !ok {
		return nil, errors.New("unknown expression " + expression)
	}
	return v, nil
}

func road(typeName string) *model.Feature {
	return &model.Feature{
		ID: model.NewFeatureID(typeName, "id", 1),
		Geometries: []model.Geometry{
			{Type: model.GeometryTypeLine, Coordinates: []orb.Point{{0, 0}, {1, 1}}},
		},
	}
}

func TestParseColor(t *testing.T) {
	tests := []struct {
		in      string
		want    Color
		wantErr bool
	}{
		{in: "red", want: Color{255, 0, 0, 255}},
		{in: "Orange", want: Color{255, 165, 0, 255}},
		{in: "#ff8000", want: Color{255, 128, 0, 255}},
		{in: "#fff", want: Color{255, 255, 255, 255}},
		{in: "0x00ff00", want: Color{0, 255, 0, 255}},
		{in: "00ffff", want: Color{0, 255, 255, 255}},
		{in: "#ff80", wantErr: true},
		{in: "notacolor", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseColor(tt.in)
			if tt.wantErr {
				var colorErr *ErrInvalidColor
				if !errors.As(err, &colorErr) {
					t.Fatalf("ParseColor(%q) error = %v, want *ErrInvalidColor", tt.in, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseColor(%q) failed: %v", tt.in, err)
			}
			if got != tt.want {
				t.Errorf("ParseColor(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestColorHex(t *testing.T) {
	if got := (Color{255, 128, 0, 255}).Hex(); got != "#ff8000" {
		t.Errorf("Hex() = %q", got)
	}
	if got := (Color{255, 128, 0, 255}).WithOpacity(0.5).Hex(); got != "#ff800080" {
		t.Errorf("Hex() with opacity = %q", got)
	}
}

const testStyle = `
name: Roads
options:
  - id: showLanes
    label: Show lanes
    default: true
  - id: debug
rules:
  - type: Road|Lane
    geometry: [line]
    color: orange
    width: 3
    first-of:
      - filter: isMotorway
        color: red
      - filter: isPrimary
        width: 5
  - type: Road
    aspect: relation
    relation-type: next|connected
    relation-recursive: true
    relation-merge-twoway: true
    arrow: double
    relation-source-style:
      color: green
      geometry: point
  - type: Sign
    geometry: point
    point-merge-grid-cell: [0.001, 0.001, 10]
    label-text-expression: signName
    mode: hover
`

func loadTestStyle(t *testing.T) *RuleSet {
	t.Helper()
	set, err := Parse([]byte(testStyle), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	return set
}

func TestLoad(t *testing.T) {
	set := loadTestStyle(t)

	if len(set.Warnings()) != 0 {
		t.Errorf("unexpected warnings: %v", set.Warnings())
	}
	if set.Name() != "Roads" {
		t.Errorf("Name() = %q", set.Name())
	}
	wantOptions := []Option{
		{ID: "showLanes", Label: "Show lanes", Default: true},
		{ID: "debug", Label: "debug"},
	}
	if diff := cmp.Diff(wantOptions, set.Options()); diff != "" {
		t.Errorf("Options() mismatch (-want+got):\n%v", diff)
	}
	if len(set.Rules()) != 3 {
		t.Fatalf("got %d rules, want 3", len(set.Rules()))
	}

	parent := set.Rules()[0]
	if parent.Geometries != model.MaskOf(model.GeometryTypeLine) || parent.Width != 3 {
		t.Errorf("parent = %+v", parent)
	}
	if len(parent.FirstOf) != 2 {
		t.Fatalf("got %d children, want 2", len(parent.FirstOf))
	}
	motorway, primary := parent.FirstOf[0], parent.FirstOf[1]
	if motorway.ID != "0/0" || primary.ID != "0/1" {
		t.Errorf("child ids = %q, %q", motorway.ID, primary.ID)
	}
	if motorway.Color != (Color{255, 0, 0, 255}) || motorway.Width != 3 {
		t.Errorf("motorway child should override color and inherit width: %+v", motorway)
	}
	if primary.Color != (Color{255, 165, 0, 255}) || primary.Width != 5 {
		t.Errorf("primary child should inherit color and override width: %+v", primary)
	}
	if primary.TypePattern != "" || primary.Filter != "isPrimary" {
		t.Errorf("primary child type/filter = %q/%q", primary.TypePattern, primary.Filter)
	}

	rel := set.Rules()[1]
	if rel.Aspect != AspectRelation || !rel.RelationRecursive || !rel.RelationMergeTwoway || rel.Arrow != ArrowDouble {
		t.Errorf("relation rule = %+v", rel)
	}
	if !rel.MatchesRelation("next") || rel.MatchesRelation("nextLane") {
		t.Error("relation-type should be a full match")
	}
	if src := rel.RelationSourceStyle; src == nil || src.Color != (Color{0, 128, 0, 255}) || src.ID != "1/source" {
		t.Errorf("relation source style = %+v", src)
	}

	sign := set.Rules()[2]
	if !sign.Mergeable() || *sign.PointMergeGridCell != [3]float64{0.001, 0.001, 10} {
		t.Errorf("sign merge cell = %v", sign.PointMergeGridCell)
	}
	if sign.Mode != HighlightHover {
		t.Errorf("sign mode = %v", sign.Mode)
	}

	if got := set.Rule("0/1"); got != primary {
		t.Errorf("Rule(0/1) = %+v", got)
	}
	if got := set.Rule("7"); got != nil {
		t.Errorf("Rule(7) = %+v, want nil", got)
	}
}

func TestLoadWarnings(t *testing.T) {
	doc := `
rules:
  - type: Road
    color: blurple
    width: [1, 2]
    arrow: sideways
    geometry: [line, blob]
    shiny: true
    dashed: true
`
	set, err := Parse([]byte(doc), zaptest.NewLogger(t))
	if err != nil {
		t.Fatalf("Parse failed: %v", err)
	}
	if len(set.Warnings()) != 5 {
		t.Fatalf("got %d warnings, want 5: %v", len(set.Warnings()), set.Warnings())
	}
	for _, w := range set.Warnings() {
		var warning *Warning
		if !errors.As(w, &warning) || warning.Rule != "0" {
			t.Errorf("warning %v is not a rule 0 *Warning", w)
		}
	}
	var colorErr *ErrInvalidColor
	if !errors.As(set.Warnings()[0], &colorErr) {
		t.Errorf("first warning = %v, want *ErrInvalidColor", set.Warnings()[0])
	}
	var shapeErr *ErrFieldShape
	if !errors.As(set.Warnings()[1], &shapeErr) || shapeErr.Field != "width" {
		t.Errorf("second warning = %v, want width shape error", set.Warnings()[1])
	}

	r := set.Rules()[0]
	if r.Color != White || r.Width != 1 || r.Arrow != ArrowNone || r.Geometries != model.GeometryMaskAll {
		t.Errorf("malformed fields should keep defaults: %+v", r)
	}
	if !r.Dashed {
		t.Error("valid fields after malformed ones should still load")
	}
}

func TestLoadErrors(t *testing.T) {
	for _, doc := range []string{"", "- a\n- b\n", "name: x\n", "rules: 3\n", "rules: [\n"} {
		if _, err := Parse([]byte(doc), nil); err == nil {
			t.Errorf("Parse(%q) should fail", doc)
		}
	}
}

func TestMatchFirstOf(t *testing.T) {
	set := loadTestStyle(t)
	tests := []struct {
		name   string
		eval   fakeEvaluator
		wantID string
	}{
		{"first child", fakeEvaluator{"isMotorway": true, "isPrimary": true}, "0/0"},
		{"second child", fakeEvaluator{"isMotorway": false, "isPrimary": true}, "0/1"},
		{"no child", fakeEvaluator{"isMotorway": false, "isPrimary": false}, ""},
		{"failing filter", fakeEvaluator{"isPrimary": true}, "0/1"},
		{"non-boolean filter", fakeEvaluator{"isMotorway": "yes", "isPrimary": 1.0}, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := &Env{Evaluator: tt.eval, Logger: zaptest.NewLogger(t)}
			var ids []string
			for _, m := range set.Match(road("Lane"), env) {
				ids = append(ids, m.Rule.ID)
			}
			var want []string
			if tt.wantID != "" {
				want = []string{tt.wantID}
			}
			if diff := cmp.Diff(want, ids); diff != "" {
				t.Errorf("matched rules mismatch (-want+got):\n%v", diff)
			}
		})
	}
}

func TestMatchTypeIsFullMatch(t *testing.T) {
	set := loadTestStyle(t)
	env := &Env{Evaluator: fakeEvaluator{"isMotorway": true}}

	if got := set.Match(road("RoadArea"), env); len(got) != 0 {
		t.Errorf("RoadArea should not match Road|Lane, got %d matches", len(got))
	}

	got := set.Match(road("Road"), env)
	if len(got) != 2 {
		t.Fatalf("Road should match the line rule and the relation rule, got %d", len(got))
	}
	if got[0].Geometries != model.MaskOf(model.GeometryTypeLine) {
		t.Errorf("line rule geometries = %b", got[0].Geometries)
	}
	if got[1].Rule.Aspect != AspectRelation {
		t.Errorf("second match aspect = %v", got[1].Rule.Aspect)
	}
}

func TestMatchHighlightMode(t *testing.T) {
	set := loadTestStyle(t)
	sign := &model.Feature{
		ID:         model.NewFeatureID("Sign", "id", 1),
		Geometries: []model.Geometry{{Type: model.GeometryTypePoints, Coordinates: []orb.Point{{0, 0}}}},
	}

	if got := set.Match(sign, &Env{Mode: HighlightNone}); len(got) != 0 {
		t.Errorf("hover rule matched in mode none")
	}
	if got := set.Match(sign, &Env{Mode: HighlightHover}); len(got) != 1 {
		t.Errorf("hover rule did not match in hover mode")
	}
}

func TestDeriveChild(t *testing.T) {
	parent := NewRule("2")
	if err := parent.SetTypePattern("Road"); err != nil {
		t.Fatal(err)
	}
	parent.Filter = "x"
	parent.Width = 7
	parent.Dashed = true
	parent.FirstOf = []*Rule{NewRule("2/0")}

	child := parent.DeriveChild("2/1")
	if child.TypePattern != "" || child.Filter != "" || child.FirstOf != nil {
		t.Errorf("child kept predicates: %+v", child)
	}
	if !child.MatchesType("Anything") {
		t.Error("child without pattern should accept every type")
	}
	if child.Width != 7 || !child.Dashed {
		t.Errorf("child lost inherited attributes: %+v", child)
	}
	if parent.TypePattern != "Road" || parent.Filter != "x" {
		t.Error("DeriveChild modified the parent")
	}
}

func TestInvalidPattern(t *testing.T) {
	err := NewRule("0").SetTypePattern("Road(")
	var patternErr *ErrInvalidPattern
	if !errors.As(err, &patternErr) || patternErr.Field != "type" {
		t.Errorf("SetTypePattern error = %v", err)
	}
}

func TestExpressionFallback(t *testing.T) {
	r := NewRule("0")
	r.Color = Color{1, 2, 3, 255}
	r.ColorExpression = "colorOf"
	r.Arrow = ArrowForward
	r.ArrowExpression = "arrowOf"
	r.Label.Text = "fallback"
	r.Label.TextExpression = "labelOf"
	f := road("Road")

	tests := []struct {
		name      string
		eval      fakeEvaluator
		wantColor Color
		wantArrow ArrowMode
		wantLabel string
	}{
		{"evaluated", fakeEvaluator{"colorOf": "blue", "arrowOf": "double", "labelOf": "A1"}, Color{0, 0, 255, 255}, ArrowDouble, "A1"},
		{"numeric", fakeEvaluator{"colorOf": float64(0x00ff00), "arrowOf": "none", "labelOf": 42.0}, Color{0, 255, 0, 255}, ArrowNone, "42"},
		{"errors", fakeEvaluator{}, Color{1, 2, 3, 255}, ArrowForward, "fallback"},
		{"wrong types", fakeEvaluator{"colorOf": true, "arrowOf": 3.0, "labelOf": []interface{}{}}, Color{1, 2, 3, 255}, ArrowForward, "fallback"},
		{"bad values", fakeEvaluator{"colorOf": "blurple", "arrowOf": "sideways", "labelOf": nil}, Color{1, 2, 3, 255}, ArrowForward, "fallback"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := &Env{Evaluator: tt.eval, Logger: zaptest.NewLogger(t)}
			if got := env.Color(r, f, nil); got != tt.wantColor {
				t.Errorf("Color = %v, want %v", got, tt.wantColor)
			}
			if got := env.Arrow(r, f, nil); got != tt.wantArrow {
				t.Errorf("Arrow = %v, want %v", got, tt.wantArrow)
			}
			if got := env.LabelText(r, f, nil); got != tt.wantLabel {
				t.Errorf("LabelText = %q, want %q", got, tt.wantLabel)
			}
		})
	}
}

func TestOpacity(t *testing.T) {
	r := NewRule("0")
	r.Color = Color{10, 20, 30, 255}
	r.Opacity = 0.5
	got := (&Env{}).Color(r, road("Road"), nil)
	if got != (Color{10, 20, 30, 128}) {
		t.Errorf("Color with opacity = %v", got)
	}
}

func TestVariables(t *testing.T) {
	set := loadTestStyle(t)
	got := set.Variables(map[string]bool{"debug": true, "unknown": true})
	want := map[string]interface{}{"showLanes": true, "debug": true}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("Variables mismatch (-want+got):\n%v", diff)
	}
}

func TestMatchAttribute(t *testing.T) {
	r := NewRule("0")
	r.Aspect = AspectAttribute
	if err := r.SetAttributeType("limit|advisory"); err != nil {
		t.Fatal(err)
	}
	if err := r.SetAttributeLayerType("Speed.*"); err != nil {
		t.Fatal(err)
	}
	r.AttributeMask = model.DirectionPositive
	r.AttributeValidityGeom = ValidityRequired
	r.AttributeFilter = "fast"

	validity := &model.Geometry{Type: model.GeometryTypeLine, Coordinates: []orb.Point{{0, 0}, {1, 0}}}
	base := model.Attribute{Name: "limit", Layer: "SpeedLayer", Direction: model.DirectionPositive, Validity: validity}
	f := road("Road")

	tests := []struct {
		name string
		mod  func(a *model.Attribute)
		eval fakeEvaluator
		want bool
	}{
		{"match", func(*model.Attribute) {}, fakeEvaluator{"fast": true}, true},
		{"name mismatch", func(a *model.Attribute) { a.Name = "limitX" }, fakeEvaluator{"fast": true}, false},
		{"layer mismatch", func(a *model.Attribute) { a.Layer = "Lanes" }, fakeEvaluator{"fast": true}, false},
		{"direction mismatch", func(a *model.Attribute) { a.Direction = model.DirectionNegative }, fakeEvaluator{"fast": true}, false},
		{"both directions overlap", func(a *model.Attribute) { a.Direction = model.DirectionBoth }, fakeEvaluator{"fast": true}, true},
		{"validity missing", func(a *model.Attribute) { a.Validity = nil }, fakeEvaluator{"fast": true}, false},
		{"filter false", func(*model.Attribute) {}, fakeEvaluator{"fast": false}, false},
		{"filter error", func(*model.Attribute) {}, fakeEvaluator{}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := base
			tt.mod(&a)
			if got := r.MatchAttribute(f, &a, &Env{Evaluator: tt.eval}); got != tt.want {
				t.Errorf("MatchAttribute = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLoadFile(t *testing.T) {
	if _, err := LoadFile("does/not/exist.yaml", nil); err == nil || !strings.Contains(err.Error(), "open style") {
		t.Errorf("LoadFile error = %v", err)
	}
}
