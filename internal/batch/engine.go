// Package batch accumulates styled geometry into as few renderer primitives
// as possible. Geometries whose appearance keys are equal share one
// primitive; a primitive is created when the first geometry needing it
// arrives.
package batch

import (
	"sort"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/beetlebugorg/featureviz/internal/metrics"
	"github.com/beetlebugorg/featureviz/internal/model"
	"github.com/beetlebugorg/featureviz/internal/render"
	"github.com/beetlebugorg/featureviz/internal/style"
)

// Appearance holds the style values of a rule resolved for one feature.
// Expression-valued attributes are evaluated once per feature by Resolve
// and reused for all of its geometries.
type Appearance struct {
	Color     style.Color
	Arrow     style.ArrowMode
	IconURL   string
	LabelText string
}

// Resolve evaluates the expression-valued attributes of r for a feature
// and optional attribute.
func Resolve(r *style.Rule, env *style.Env, f *model.Feature, a *model.Attribute) Appearance {
	app := Appearance{
		Color:   env.Color(r, f, a),
		Arrow:   env.Arrow(r, f, a),
		IconURL: env.IconURL(r, f, a),
	}
	if r.Label.Enabled() {
		app.LabelText = env.LabelText(r, f, a)
	}
	return app
}

// Offset shifts geometry before conversion: longitude and latitude in
// degrees, height in meters.
type Offset [3]float64

// Batch is one renderer primitive with its category and key.
type Batch struct {
	Category  render.Category
	Key       render.AppearanceKey
	Primitive render.Primitive
}

type batchKey struct {
	category render.Category
	key      render.AppearanceKey
}

// Engine routes geometries into batches. It is not safe for concurrent use.
type Engine struct {
	backend   render.Backend
	converter render.Converter
	metrics   *metrics.Metrics
	logger    *zap.Logger

	batches map[batchKey]*Batch
	order   []*Batch
}

// New returns an engine that creates primitives with backend and converts
// positions with converter. m may be nil.
func New(backend render.Backend, converter render.Converter, m *metrics.Metrics, logger *zap.Logger) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	if converter == nil {
		converter = render.ECEF{}
	}
	return &Engine{
		backend:   backend,
		converter: converter,
		metrics:   m,
		logger:    logger,
		batches:   make(map[batchKey]*Batch),
	}
}

// batch returns the batch for (category, key), creating it on first use.
func (e *Engine) batch(category render.Category, key render.AppearanceKey) *Batch {
	k := batchKey{category: category, key: key}
	if b, ok := e.batches[k]; ok {
		return b
	}
	b := &Batch{Category: category, Key: key, Primitive: e.backend.NewPrimitive(category, key)}
	e.batches[k] = b
	e.order = append(e.order, b)
	e.metrics.BatchCreated(category.String())
	e.logger.Debug("created batch",
		zap.Stringer("category", category),
		zap.Stringer("color", key.Color))
	return b
}

// Len returns the number of batches created so far, including empty ones.
func (e *Engine) Len() int {
	return len(e.order)
}

// Collect returns the non-empty batches grouped by category in category
// order, and in creation order within a category.
func (e *Engine) Collect() []*Batch {
	out := make([]*Batch, 0, len(e.order))
	for _, b := range e.order {
		if b.Primitive.Len() > 0 {
			out = append(out, b)
		}
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].Category < out[j].Category })
	return out
}

func (e *Engine) convert(g *model.Geometry, off Offset) []render.Cartesian3 {
	out := make([]render.Cartesian3, len(g.Coordinates))
	for i, c := range g.Coordinates {
		p := orb.Point{c[0] + off[0], c[1] + off[1]}
		out[i] = e.converter.ToCartesian(p, g.Height(i)+off[2])
	}
	return out
}

func ruleOffset(r *style.Rule, extra Offset) Offset {
	return Offset{
		r.Offset[0] + extra[0],
		r.Offset[1] + extra[1],
		r.Offset[2] + r.VerticalOffset + extra[2],
	}
}

func itemID(r *style.Rule, id string) string {
	if !r.Selectable {
		return ""
	}
	return id
}

// AddGeometry adds g for the feature identified by id if r styles
// geometries of its type. Geometries without positions are dropped.
func (e *Engine) AddGeometry(id string, g *model.Geometry, r *style.Rule, app Appearance, extra Offset) {
	if g.Len() == 0 || !r.SupportsGeometry(g.Type) {
		return
	}
	e.add(id, g, r, app, ruleOffset(r, extra))
}

// AddLine adds a line from a to b regardless of the rule's geometry
// types. Relation visualization uses it to connect endpoints.
func (e *Engine) AddLine(id string, a, b orb.Point, heightA, heightB float64, r *style.Rule, app Appearance) {
	g := &model.Geometry{
		Type:        model.GeometryTypeLine,
		Coordinates: []orb.Point{a, b},
		Heights:     []float64{heightA, heightB},
	}
	e.add(id, g, r, app, ruleOffset(r, Offset{}))
}

func (e *Engine) add(id string, g *model.Geometry, r *style.Rule, app Appearance, off Offset) {
	verts := e.convert(g, off)
	id = itemID(r, id)

	switch g.Type {
	case model.GeometryTypePoints:
		e.addPoints(id, verts, r, app)
	case model.GeometryTypeLine:
		if len(verts) < 2 {
			return
		}
		e.addPolyline(id, verts, r, app)
	case model.GeometryTypePolygon:
		if len(verts) < 3 {
			return
		}
		e.addMesh(render.CategoryMeshes, id, verts, r, app)
	case model.GeometryTypeMesh:
		if len(verts) < 3 {
			return
		}
		e.addMesh(render.CategoryTrivialMeshes, id, verts, r, app)
	}

	if app.LabelText != "" {
		if center, h, ok := g.Center(); ok {
			pos := e.converter.ToCartesian(orb.Point{center[0] + off[0], center[1] + off[1]}, h+off[2])
			e.AddLabel(id, pos, r, app.LabelText)
		}
	}
}

func (e *Engine) addPoints(id string, verts []render.Cartesian3, r *style.Rule, app Appearance) {
	category := render.CategoryPoints
	if app.IconURL != "" {
		category = render.CategoryBillboards
	}
	b := e.batch(category, render.AppearanceKey{})
	for _, v := range verts {
		b.Primitive.Add(render.Item{
			ID:           id,
			Vertices:     []render.Cartesian3{v},
			Color:        app.Color,
			Width:        r.Width,
			OutlineColor: r.OutlineColor,
			OutlineWidth: r.OutlineWidth,
			NearFarScale: r.NearFarScale,
			IconURL:      app.IconURL,
		})
	}
}

func (e *Engine) addPolyline(id string, verts []render.Cartesian3, r *style.Rule, app Appearance) {
	item := func(v []render.Cartesian3) render.Item {
		return render.Item{ID: id, Vertices: v, Color: app.Color, Width: r.Width}
	}

	var category render.Category
	var key render.AppearanceKey
	switch {
	case r.Dashed:
		category = render.CategoryDashedLines
		key = render.DashedKey(app.Color, r.GapColor, r.DashLength, r.DashPattern)
	case app.Arrow != style.ArrowNone:
		category = render.CategoryArrowLines
		key = render.ColorKey(app.Color)
	default:
		category = render.CategoryLines
		key = render.ColorKey(app.Color)
	}
	if r.Flat {
		category = category.Ground()
	}
	b := e.batch(category, key)

	if r.Dashed {
		b.Primitive.Add(item(verts))
		return
	}
	switch app.Arrow {
	case style.ArrowDouble:
		first, second := SplitDoubleArrow(verts)
		b.Primitive.Add(item(first))
		b.Primitive.Add(item(second))
	case style.ArrowBackward:
		b.Primitive.Add(item(reversed(verts)))
	default:
		b.Primitive.Add(item(verts))
	}
}

func (e *Engine) addMesh(category render.Category, id string, verts []render.Cartesian3, r *style.Rule, app Appearance) {
	if r.Flat {
		category = category.Ground()
	}
	e.batch(category, render.ColorKey(app.Color)).Primitive.Add(render.Item{
		ID:       id,
		Vertices: verts,
		Color:    app.Color,
	})
}

// AddLabel adds a label at a renderer-space position.
func (e *Engine) AddLabel(id string, pos render.Cartesian3, r *style.Rule, text string) {
	label := r.Label
	e.batch(render.CategoryLabels, render.AppearanceKey{}).Primitive.Add(render.Item{
		ID:       id,
		Vertices: []render.Cartesian3{pos},
		Text:     text,
		Label:    &label,
	})
}

// SplitDoubleArrow splits a polyline into two halves that both start at
// its middle, so that arrowheads drawn at their ends point outwards.
//
// For two points the middle is their mean. For longer lines it is the
// vertex at index len/2: the first half is the prefix up to and including
// it in reverse order, the second half is the suffix starting at it.
func SplitDoubleArrow(pts []render.Cartesian3) (first, second []render.Cartesian3) {
	switch len(pts) {
	case 0, 1:
		return pts, nil
	case 2:
		mid := render.Cartesian3{
			X: (pts[0].X + pts[1].X) / 2,
			Y: (pts[0].Y + pts[1].Y) / 2,
			Z: (pts[0].Z + pts[1].Z) / 2,
		}
		return []render.Cartesian3{mid, pts[0]}, []render.Cartesian3{mid, pts[1]}
	}
	m := len(pts) / 2
	first = reversed(pts[:m+1])
	second = append([]render.Cartesian3(nil), pts[m:]...)
	return first, second
}

func reversed(pts []render.Cartesian3) []render.Cartesian3 {
	out := make([]render.Cartesian3, len(pts))
	for i, p := range pts {
		out[len(pts)-1-i] = p
	}
	return out
}
