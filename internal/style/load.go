package style

import (
	"io"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/beetlebugorg/featureviz/internal/model"
)

// LoadFile reads a YAML style document from path.
func LoadFile(path string, logger *zap.Logger) (*RuleSet, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "open style")
	}
	defer f.Close()
	return Load(f, logger)
}

// Load reads a YAML style document:
//
//	name: Roads
//	options:
//	  - id: showLanes
//	    label: Show lanes
//	    default: false
//	rules:
//	  - type: Road
//	    geometry: [line]
//	    color: orange
//	    first-of:
//	      - filter: $showLanes
//	        width: 4
//	      - width: 2
//
// Malformed fields are skipped: the field keeps its default, a Warning is
// logged and recorded in RuleSet.Warnings. Only an unreadable document or
// a missing rules list is an error.
func Load(r io.Reader, logger *zap.Logger) (*RuleSet, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, errors.Wrap(err, "read style")
	}
	return Parse(data, logger)
}

// Parse decodes a style document held in memory. See Load.
func Parse(data []byte, logger *zap.Logger) (*RuleSet, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.Wrap(err, "parse style")
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 || doc.Content[0].Kind != yaml.MappingNode {
		return nil, errors.New("style document is not a mapping")
	}
	root := doc.Content[0]

	l := &loader{logger: logger}
	set := &RuleSet{}
	var rulesNode *yaml.Node
	forEachPair(root, func(key string, value *yaml.Node) {
		switch key {
		case "name":
			set.name = value.Value
		case "rules":
			rulesNode = value
		case "options":
			set.options = l.options(value)
		}
	})
	if rulesNode == nil || rulesNode.Kind != yaml.SequenceNode {
		return nil, errors.New("style document has no rules list")
	}

	for i, n := range rulesNode.Content {
		id := strconv.Itoa(i)
		if n.Kind != yaml.MappingNode {
			l.warn(id, "rules", &ErrFieldShape{Field: "rules[" + id + "]", Want: "mapping"})
			continue
		}
		set.rules = append(set.rules, l.rule(n, NewRule(id)))
	}
	set.warnings = l.warnings
	return set, nil
}

type loader struct {
	logger   *zap.Logger
	warnings []error
}

func (l *loader) warn(ruleID, field string, err error) {
	w := &Warning{Rule: ruleID, Field: field, Err: err}
	l.warnings = append(l.warnings, w)
	l.logger.Warn("ignoring style field",
		zap.String("rule", ruleID),
		zap.String("field", field),
		zap.Error(err))
}

func forEachPair(n *yaml.Node, fn func(key string, value *yaml.Node)) {
	for i := 0; i+1 < len(n.Content); i += 2 {
		fn(n.Content[i].Value, n.Content[i+1])
	}
}

func (l *loader) options(n *yaml.Node) []Option {
	if n.Kind != yaml.SequenceNode {
		l.warn("", "options", &ErrFieldShape{Field: "options", Want: "list"})
		return nil
	}
	var out []Option
	for _, item := range n.Content {
		var o struct {
			ID      string `yaml:"id"`
			Label   string `yaml:"label"`
			Default bool   `yaml:"default"`
		}
		if err := item.Decode(&o); err != nil || o.ID == "" {
			l.warn("", "options", &ErrFieldShape{Field: "options", Want: "{id, label, default}"})
			continue
		}
		if o.Label == "" {
			o.Label = o.ID
		}
		out = append(out, Option{ID: o.ID, Label: o.Label, Default: o.Default})
	}
	return out
}

// rule applies the fields of n on top of base. first-of children are
// derived from the fully populated parent, whatever the key order.
func (l *loader) rule(n *yaml.Node, base *Rule) *Rule {
	r := base
	var firstOf *yaml.Node
	forEachPair(n, func(key string, value *yaml.Node) {
		if key == "first-of" {
			firstOf = value
			return
		}
		apply, ok := ruleFields[key]
		if !ok {
			l.warn(r.ID, key, &ErrUnknownValue{Field: "rule key", Value: key})
			return
		}
		if err := apply(l, r, value); err != nil {
			l.warn(r.ID, key, err)
		}
	})

	if firstOf == nil {
		return r
	}
	if firstOf.Kind != yaml.SequenceNode {
		l.warn(r.ID, "first-of", &ErrFieldShape{Field: "first-of", Want: "list of rules"})
		return r
	}
	children := make([]*Rule, 0, len(firstOf.Content))
	for i, c := range firstOf.Content {
		id := r.ID + "/" + strconv.Itoa(i)
		if c.Kind != yaml.MappingNode {
			l.warn(id, "first-of", &ErrFieldShape{Field: "first-of", Want: "mapping"})
			continue
		}
		children = append(children, l.rule(c, r.DeriveChild(id)))
	}
	r.FirstOf = children
	return r
}

type fieldFunc func(l *loader, r *Rule, n *yaml.Node) error

var ruleFields map[string]fieldFunc

func init() {
	ruleFields = map[string]fieldFunc{
		"type":     func(_ *loader, r *Rule, n *yaml.Node) error { return withString(n, "type", r.SetTypePattern) },
		"filter":   stringField("filter", func(r *Rule) *string { return &r.Filter }),
		"geometry": geometryField,
		"aspect": func(_ *loader, r *Rule, n *yaml.Node) error {
			return withString(n, "aspect", func(s string) error {
				switch s {
				case "feature":
					r.Aspect = AspectFeature
				case "relation":
					r.Aspect = AspectRelation
				case "attribute":
					r.Aspect = AspectAttribute
				default:
					return &ErrUnknownValue{Field: "aspect", Value: s}
				}
				return nil
			})
		},
		"mode": func(_ *loader, r *Rule, n *yaml.Node) error {
			return withString(n, "mode", func(s string) error {
				m, ok := ParseHighlightMode(s)
				if !ok {
					return &ErrUnknownValue{Field: "mode", Value: s}
				}
				r.Mode = m
				return nil
			})
		},
		"selectable":       boolField("selectable", func(r *Rule) *bool { return &r.Selectable }),
		"color":            colorField("color", func(r *Rule) *Color { return &r.Color }),
		"color-expression": stringField("color-expression", func(r *Rule) *string { return &r.ColorExpression }),
		"opacity":          floatField("opacity", func(r *Rule) *float64 { return &r.Opacity }),
		"width":            floatField("width", func(r *Rule) *float64 { return &r.Width }),
		"flat":             boolField("flat", func(r *Rule) *bool { return &r.Flat }),
		"outline-color":    colorField("outline-color", func(r *Rule) *Color { return &r.OutlineColor }),
		"outline-width":    floatField("outline-width", func(r *Rule) *float64 { return &r.OutlineWidth }),
		"near-far-scale":   distanceField("near-far-scale", func(r *Rule) **DistanceScale { return &r.NearFarScale }),
		"offset": func(_ *loader, r *Rule, n *yaml.Node) error {
			v, err := floats(n, "offset", 3)
			if err == nil {
				copy(r.Offset[:], v)
			}
			return err
		},
		"vertical-offset": floatField("vertical-offset", func(r *Rule) *float64 { return &r.VerticalOffset }),
		"dashed":          boolField("dashed", func(r *Rule) *bool { return &r.Dashed }),
		"dash-length":     floatField("dash-length", func(r *Rule) *float64 { return &r.DashLength }),
		"dash-pattern": func(_ *loader, r *Rule, n *yaml.Node) error {
			var v uint16
			if n.Kind != yaml.ScalarNode || n.Decode(&v) != nil {
				return &ErrFieldShape{Field: "dash-pattern", Want: "16-bit integer"}
			}
			r.DashPattern = v
			return nil
		},
		"gap-color": colorField("gap-color", func(r *Rule) *Color { return &r.GapColor }),
		"arrow": func(_ *loader, r *Rule, n *yaml.Node) error {
			return withString(n, "arrow", func(s string) error {
				m, ok := ParseArrowMode(s)
				if !ok {
					return &ErrUnknownValue{Field: "arrow", Value: s}
				}
				r.Arrow = m
				return nil
			})
		},
		"arrow-expression": stringField("arrow-expression", func(r *Rule) *string { return &r.ArrowExpression }),
		"point-merge-grid-cell": func(_ *loader, r *Rule, n *yaml.Node) error {
			v, err := floats(n, "point-merge-grid-cell", 3)
			if err != nil {
				return err
			}
			if v[0] <= 0 || v[1] <= 0 || v[2] <= 0 {
				return &ErrFieldShape{Field: "point-merge-grid-cell", Want: "three positive numbers"}
			}
			r.PointMergeGridCell = &[3]float64{v[0], v[1], v[2]}
			return nil
		},
		"icon-url":            stringField("icon-url", func(r *Rule) *string { return &r.IconURL }),
		"icon-url-expression": stringField("icon-url-expression", func(r *Rule) *string { return &r.IconURLExpression }),

		"relation-type": func(_ *loader, r *Rule, n *yaml.Node) error {
			return withString(n, "relation-type", r.SetRelationType)
		},
		"relation-recursive":          boolField("relation-recursive", func(r *Rule) *bool { return &r.RelationRecursive }),
		"relation-merge-twoway":       boolField("relation-merge-twoway", func(r *Rule) *bool { return &r.RelationMergeTwoway }),
		"relation-line-height-offset": floatField("relation-line-height-offset", func(r *Rule) *float64 { return &r.RelationLineHeightOffset }),
		"relation-source-style":       subStyleField("source", func(r *Rule) **Rule { return &r.RelationSourceStyle }),
		"relation-target-style":       subStyleField("target", func(r *Rule) **Rule { return &r.RelationTargetStyle }),
		"relation-line-end-markers":   subStyleField("end-markers", func(r *Rule) **Rule { return &r.RelationLineEndMarkers }),

		"attribute-type": func(_ *loader, r *Rule, n *yaml.Node) error {
			return withString(n, "attribute-type", r.SetAttributeType)
		},
		"attribute-layer-type": func(_ *loader, r *Rule, n *yaml.Node) error {
			return withString(n, "attribute-layer-type", r.SetAttributeLayerType)
		},
		"attribute-mask": func(_ *loader, r *Rule, n *yaml.Node) error {
			return withString(n, "attribute-mask", func(s string) error {
				d, ok := model.ParseDirection(s)
				if !ok {
					return &ErrUnknownValue{Field: "attribute-mask", Value: s}
				}
				r.AttributeMask = d
				return nil
			})
		},
		"attribute-validity-geom": func(_ *loader, r *Rule, n *yaml.Node) error {
			return withString(n, "attribute-validity-geom", func(s string) error {
				switch s {
				case "any":
					r.AttributeValidityGeom = ValidityAny
				case "required":
					r.AttributeValidityGeom = ValidityRequired
				case "none":
					r.AttributeValidityGeom = ValidityNone
				default:
					return &ErrUnknownValue{Field: "attribute-validity-geom", Value: s}
				}
				return nil
			})
		},
		"attribute-filter": stringField("attribute-filter", func(r *Rule) *string { return &r.AttributeFilter }),

		"label-text":               stringField("label-text", func(r *Rule) *string { return &r.Label.Text }),
		"label-text-expression":    stringField("label-text-expression", func(r *Rule) *string { return &r.Label.TextExpression }),
		"label-color":              colorField("label-color", func(r *Rule) *Color { return &r.Label.Color }),
		"label-outline-color":      colorField("label-outline-color", func(r *Rule) *Color { return &r.Label.OutlineColor }),
		"label-outline-width":      floatField("label-outline-width", func(r *Rule) *float64 { return &r.Label.OutlineWidth }),
		"label-font":               stringField("label-font", func(r *Rule) *string { return &r.Label.Font }),
		"label-background-color":   colorField("label-background-color", func(r *Rule) *Color { return &r.Label.BackgroundColor }),
		"label-horizontal-origin":  stringField("label-horizontal-origin", func(r *Rule) *string { return &r.Label.HorizontalOrigin }),
		"label-vertical-origin":    stringField("label-vertical-origin", func(r *Rule) *string { return &r.Label.VerticalOrigin }),
		"label-scale":              floatField("label-scale", func(r *Rule) *float64 { return &r.Label.Scale }),
		"translucency-by-distance": distanceField("translucency-by-distance", func(r *Rule) **DistanceScale { return &r.Label.TranslucencyByDistance }),
		"scale-by-distance":        distanceField("scale-by-distance", func(r *Rule) **DistanceScale { return &r.Label.ScaleByDistance }),
		"offset-scale-by-distance": distanceField("offset-scale-by-distance", func(r *Rule) **DistanceScale { return &r.Label.OffsetScaleByDistance }),
		"label-style": func(_ *loader, r *Rule, n *yaml.Node) error {
			return withString(n, "label-style", func(s string) error {
				switch s {
				case "FILL":
					r.Label.Style = LabelFill
				case "OUTLINE":
					r.Label.Style = LabelOutline
				case "FILL_AND_OUTLINE":
					r.Label.Style = LabelFillAndOutline
				default:
					return &ErrUnknownValue{Field: "label-style", Value: s}
				}
				return nil
			})
		},
		"label-background-padding": func(_ *loader, r *Rule, n *yaml.Node) error {
			v, err := floats(n, "label-background-padding", 2)
			if err == nil {
				copy(r.Label.BackgroundPadding[:], v)
			}
			return err
		},
		"label-pixel-offset": func(_ *loader, r *Rule, n *yaml.Node) error {
			v, err := floats(n, "label-pixel-offset", 2)
			if err == nil {
				copy(r.Label.PixelOffset[:], v)
			}
			return err
		},
		"label-eye-offset": func(_ *loader, r *Rule, n *yaml.Node) error {
			v, err := floats(n, "label-eye-offset", 3)
			if err == nil {
				copy(r.Label.EyeOffset[:], v)
			}
			return err
		},
	}
}

func withString(n *yaml.Node, field string, fn func(string) error) error {
	if n.Kind != yaml.ScalarNode {
		return &ErrFieldShape{Field: field, Want: "string"}
	}
	return fn(n.Value)
}

func stringField(field string, ptr func(*Rule) *string) fieldFunc {
	return func(_ *loader, r *Rule, n *yaml.Node) error {
		return withString(n, field, func(s string) error {
			*ptr(r) = s
			return nil
		})
	}
}

func boolField(field string, ptr func(*Rule) *bool) fieldFunc {
	return func(_ *loader, r *Rule, n *yaml.Node) error {
		var v bool
		if n.Kind != yaml.ScalarNode || n.Decode(&v) != nil {
			return &ErrFieldShape{Field: field, Want: "boolean"}
		}
		*ptr(r) = v
		return nil
	}
}

func floatField(field string, ptr func(*Rule) *float64) fieldFunc {
	return func(_ *loader, r *Rule, n *yaml.Node) error {
		var v float64
		if n.Kind != yaml.ScalarNode || n.Decode(&v) != nil {
			return &ErrFieldShape{Field: field, Want: "number"}
		}
		*ptr(r) = v
		return nil
	}
}

func colorField(field string, ptr func(*Rule) *Color) fieldFunc {
	return func(_ *loader, r *Rule, n *yaml.Node) error {
		return withString(n, field, func(s string) error {
			c, err := ParseColor(s)
			if err != nil {
				return err
			}
			*ptr(r) = c
			return nil
		})
	}
}

func distanceField(field string, ptr func(*Rule) **DistanceScale) fieldFunc {
	return func(_ *loader, r *Rule, n *yaml.Node) error {
		v, err := floats(n, field, 4)
		if err != nil {
			return err
		}
		d := DistanceScale{v[0], v[1], v[2], v[3]}
		*ptr(r) = &d
		return nil
	}
}

// subStyleField parses a nested rule that is used for relation endpoints.
// Sub-styles start from defaults; they do not inherit from the parent.
func subStyleField(suffix string, ptr func(*Rule) **Rule) fieldFunc {
	return func(l *loader, r *Rule, n *yaml.Node) error {
		if n.Kind != yaml.MappingNode {
			return &ErrFieldShape{Field: "relation-" + suffix, Want: "rule mapping"}
		}
		*ptr(r) = l.rule(n, NewRule(r.ID+"/"+suffix))
		return nil
	}
}

func floats(n *yaml.Node, field string, count int) ([]float64, error) {
	var v []float64
	if n.Kind != yaml.SequenceNode || n.Decode(&v) != nil || len(v) != count {
		return nil, &ErrFieldShape{Field: field, Want: strconv.Itoa(count) + " numbers"}
	}
	return v, nil
}

// geometryField accepts a single geometry name or a list of names.
func geometryField(_ *loader, r *Rule, n *yaml.Node) error {
	var names []string
	switch n.Kind {
	case yaml.ScalarNode:
		names = []string{n.Value}
	case yaml.SequenceNode:
		if n.Decode(&names) != nil {
			return &ErrFieldShape{Field: "geometry", Want: "list of geometry names"}
		}
	default:
		return &ErrFieldShape{Field: "geometry", Want: "geometry name or list"}
	}
	var mask model.GeometryMask
	for _, name := range names {
		t, ok := model.ParseGeometryType(name)
		if !ok {
			return &ErrUnknownValue{Field: "geometry", Value: name}
		}
		mask |= model.MaskOf(t)
	}
	r.Geometries = mask
	return nil
}
