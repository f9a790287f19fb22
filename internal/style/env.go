package style

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/beetlebugorg/featureviz/internal/expr"
	"github.com/beetlebugorg/featureviz/internal/model"
)

// Env carries everything rule evaluation depends on beyond the rule and
// the feature: the expression evaluator, session variables and the
// highlight mode. It is passed explicitly to matching and style resolution.
//
// Expression failures never propagate. A filter that fails to evaluate, or
// evaluates to a non-boolean, does not match. An expression-valued attribute
// that fails, or yields the wrong type, falls back to its literal value.
type Env struct {
	Evaluator expr.Evaluator
	Variables map[string]interface{}
	Mode      HighlightMode
	Logger    *zap.Logger
}

func (e *Env) logger() *zap.Logger {
	if e.Logger == nil {
		return zap.NewNop()
	}
	return e.Logger
}

// Context returns the evaluation context for a feature and optional attribute.
func (e *Env) Context(f *model.Feature, a *model.Attribute) expr.Context {
	return expr.Context{Feature: f, Attribute: a, Variables: e.Variables}
}

func (e *Env) evaluate(field, expression string, f *model.Feature, a *model.Attribute) (interface{}, bool) {
	if e.Evaluator == nil {
		e.logger().Debug("no evaluator for expression", zap.String("field", field), zap.String("expression", expression))
		return nil, false
	}
	v, err := e.Evaluator.Evaluate(expression, e.Context(f, a))
	if err != nil {
		fields := []zap.Field{zap.String("field", field), zap.String("expression", expression), zap.Error(err)}
		if f != nil {
			fields = append(fields, zap.Stringer("feature", f.ID))
		}
		e.logger().Debug("expression failed", fields...)
		return nil, false
	}
	return v, true
}

func (e *Env) wrongType(field, expression string, v interface{}) {
	e.logger().Debug("expression result has wrong type",
		zap.String("field", field),
		zap.String("expression", expression),
		zap.String("type", fmt.Sprintf("%T", v)))
}

// Test evaluates a boolean filter expression.
func (e *Env) Test(field, expression string, f *model.Feature, a *model.Attribute) bool {
	v, ok := e.evaluate(field, expression, f, a)
	if !ok {
		return false
	}
	b, ok := expr.Bool(v)
	if !ok {
		e.wrongType(field, expression, v)
		return false
	}
	return b
}

// Color resolves the rule's color for a feature, with opacity applied.
func (e *Env) Color(r *Rule, f *model.Feature, a *model.Attribute) Color {
	c := r.Color
	if r.ColorExpression != "" {
		if v, ok := e.evaluate("color-expression", r.ColorExpression, f, a); ok {
			if parsed, ok := colorFromValue(v); ok {
				c = parsed
			} else {
				e.wrongType("color-expression", r.ColorExpression, v)
			}
		}
	}
	return c.WithOpacity(r.Opacity)
}

// colorFromValue accepts color strings and 0xRRGGBB integers.
func colorFromValue(v interface{}) (Color, bool) {
	if s, ok := expr.String(v); ok {
		c, err := ParseColor(s)
		return c, err == nil
	}
	if n, ok := expr.Number(v); ok && n >= 0 && n <= 0xffffff {
		rgb := uint32(n)
		return Color{R: uint8(rgb >> 16), G: uint8(rgb >> 8), B: uint8(rgb), A: 255}, true
	}
	return Color{}, false
}

// Arrow resolves the rule's arrow mode for a feature.
func (e *Env) Arrow(r *Rule, f *model.Feature, a *model.Attribute) ArrowMode {
	if r.ArrowExpression == "" {
		return r.Arrow
	}
	v, ok := e.evaluate("arrow-expression", r.ArrowExpression, f, a)
	if !ok {
		return r.Arrow
	}
	if s, ok := expr.String(v); ok {
		if mode, ok := ParseArrowMode(s); ok {
			return mode
		}
	}
	e.wrongType("arrow-expression", r.ArrowExpression, v)
	return r.Arrow
}

// IconURL resolves the rule's icon for a feature; empty means no icon.
func (e *Env) IconURL(r *Rule, f *model.Feature, a *model.Attribute) string {
	if r.IconURLExpression == "" {
		return r.IconURL
	}
	v, ok := e.evaluate("icon-url-expression", r.IconURLExpression, f, a)
	if !ok {
		return r.IconURL
	}
	if s, ok := expr.String(v); ok {
		return s
	}
	e.wrongType("icon-url-expression", r.IconURLExpression, v)
	return r.IconURL
}

// LabelText resolves the rule's label text for a feature; empty means no label.
func (e *Env) LabelText(r *Rule, f *model.Feature, a *model.Attribute) string {
	if r.Label.TextExpression == "" {
		return r.Label.Text
	}
	v, ok := e.evaluate("label-text-expression", r.Label.TextExpression, f, a)
	if !ok || v == nil {
		return r.Label.Text
	}
	switch v := v.(type) {
	case string:
		return v
	case bool, float64, float32, int, int64:
		return fmt.Sprint(v)
	}
	e.wrongType("label-text-expression", r.Label.TextExpression, v)
	return r.Label.Text
}
