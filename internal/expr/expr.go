// Package expr defines the expression evaluator used by style rules and a
// default implementation on top of the DFL filter language.
//
// Expressions see the current feature as the context value "@":
//
//	@typeId == 'Road' and @lanes > 1
//
// Style options and other session variables are available as "$name".
// When an attribute is being styled it is exposed as @attribute.
package expr

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/spatialcurrent/go-dfl/pkg/dfl"

	"github.com/beetlebugorg/featureviz/internal/model"
)

// Context binds an evaluation to the feature (and optionally the attribute)
// being styled. It is passed explicitly to every evaluation.
type Context struct {
	Feature   *model.Feature
	Attribute *model.Attribute
	Variables map[string]interface{}
}

// Evaluator evaluates expression strings against a Context.
type Evaluator interface {
	Evaluate(expression string, ctx Context) (interface{}, error)
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(expression string, ctx Context) (interface{}, error)

// Evaluate calls f.
func (f EvaluatorFunc) Evaluate(expression string, ctx Context) (interface{}, error) {
	return f(expression, ctx)
}

// ErrCompile is returned for expressions that do not parse.
type ErrCompile struct {
	Expression string
	Err        error
}

func (e *ErrCompile) Error() string {
	return "compile expression " + e.Expression + ": " + e.Err.Error()
}

func (e *ErrCompile) Unwrap() error { return e.Err }

// DFL evaluates expressions with github.com/spatialcurrent/go-dfl.
// Compiled expressions are cached; a DFL is safe for concurrent use.
type DFL struct {
	mu    sync.RWMutex
	nodes map[string]dfl.Node
}

// NewDFL returns an evaluator with an empty compile cache.
func NewDFL() *DFL {
	return &DFL{nodes: make(map[string]dfl.Node)}
}

// Evaluate compiles (once) and evaluates expression.
func (d *DFL) Evaluate(expression string, ctx Context) (interface{}, error) {
	node, err := d.compile(expression)
	if err != nil {
		return nil, err
	}
	vars := make(map[string]interface{}, len(ctx.Variables))
	for k, v := range ctx.Variables {
		vars[k] = v
	}
	_, value, err := node.Evaluate(vars, contextValue(ctx), dfl.DefaultFunctionMap, dfl.DefaultQuotes)
	if err != nil {
		return nil, errors.Wrapf(err, "evaluate %q", expression)
	}
	return value, nil
}

func (d *DFL) compile(expression string) (dfl.Node, error) {
	d.mu.RLock()
	node, ok := d.nodes[expression]
	d.mu.RUnlock()
	if ok {
		return node, nil
	}

	node, err := dfl.ParseCompile(expression)
	if err != nil {
		return nil, &ErrCompile{Expression: expression, Err: err}
	}
	d.mu.Lock()
	d.nodes[expression] = node
	d.mu.Unlock()
	return node, nil
}

// contextValue flattens the feature into the map that "@" refers to.
func contextValue(ctx Context) map[string]interface{} {
	out := map[string]interface{}{}
	if f := ctx.Feature; f != nil {
		out["typeId"] = f.Type()
		out["id"] = f.ID.String()
		out["properties"] = f.Properties
		for _, p := range f.ID.Parts {
			out[p.Name] = p.Value
		}
		for k, v := range f.Properties {
			if _, taken := out[k]; !taken {
				out[k] = v
			}
		}
	}
	if a := ctx.Attribute; a != nil {
		out["attribute"] = map[string]interface{}{
			"name":      a.Name,
			"layer":     a.Layer,
			"direction": directionName(a.Direction),
			"fields":    a.Fields,
		}
	}
	return out
}

func directionName(d model.Direction) string {
	switch d {
	case model.DirectionPositive:
		return "positive"
	case model.DirectionNegative:
		return "negative"
	case model.DirectionBoth:
		return "both"
	}
	return "none"
}

// Bool interprets an evaluation result as a filter outcome. ok is false
// when the value is not a boolean.
func Bool(v interface{}) (b bool, ok bool) {
	b, ok = v.(bool)
	return b, ok
}

// Number converts numeric evaluation results to float64.
func Number(v interface{}) (float64, bool) {
	switch n := v.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case int32:
		return float64(n), true
	case uint8:
		return float64(n), true
	}
	return 0, false
}

// String converts string evaluation results.
func String(v interface{}) (string, bool) {
	s, ok := v.(string)
	return s, ok
}
