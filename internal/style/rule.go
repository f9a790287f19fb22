package style

import (
	"regexp"

	"github.com/beetlebugorg/featureviz/internal/model"
)

// Aspect selects what part of a feature a rule visualizes.
type Aspect uint8

const (
	// AspectFeature styles the feature's own geometry.
	AspectFeature Aspect = iota
	// AspectRelation styles the feature's relations as lines between endpoints.
	AspectRelation
	// AspectAttribute styles each matching attribute of the feature.
	AspectAttribute
)

// String returns the style document name of the aspect.
func (a Aspect) String() string {
	switch a {
	case AspectRelation:
		return "relation"
	case AspectAttribute:
		return "attribute"
	default:
		return "feature"
	}
}

// HighlightMode gates rules by the interaction state they are meant for.
type HighlightMode uint8

const (
	HighlightNone HighlightMode = iota
	HighlightHover
	HighlightSelection
)

// String returns the style document name of the mode.
func (m HighlightMode) String() string {
	switch m {
	case HighlightHover:
		return "hover"
	case HighlightSelection:
		return "selection"
	default:
		return "none"
	}
}

// ParseHighlightMode parses "none", "hover" and "selection".
func ParseHighlightMode(s string) (HighlightMode, bool) {
	switch s {
	case "none", "":
		return HighlightNone, true
	case "hover":
		return HighlightHover, true
	case "selection":
		return HighlightSelection, true
	}
	return 0, false
}

// ArrowMode describes arrowheads drawn on lines.
type ArrowMode uint8

const (
	ArrowNone ArrowMode = iota
	ArrowForward
	ArrowBackward
	ArrowDouble
)

// ParseArrowMode parses "none", "forward", "backward" and "double".
func ParseArrowMode(s string) (ArrowMode, bool) {
	switch s {
	case "none", "":
		return ArrowNone, true
	case "forward":
		return ArrowForward, true
	case "backward":
		return ArrowBackward, true
	case "double":
		return ArrowDouble, true
	}
	return 0, false
}

// ValidityPolicy controls how attribute rules treat validity geometry.
type ValidityPolicy uint8

const (
	// ValidityAny matches attributes with or without validity geometry.
	ValidityAny ValidityPolicy = iota
	// ValidityRequired matches only attributes that carry validity geometry.
	ValidityRequired
	// ValidityNone matches only attributes without validity geometry.
	ValidityNone
)

// LabelStyle selects how label text is drawn.
type LabelStyle uint8

const (
	LabelFill LabelStyle = iota
	LabelOutline
	LabelFillAndOutline
)

// DistanceScale is a near/far interpolation: [near, nearValue, far, farValue].
type DistanceScale [4]float64

// Label holds the label-* fields of a rule.
type Label struct {
	Text                   string
	TextExpression         string
	Color                  Color
	OutlineColor           Color
	OutlineWidth           float64
	Font                   string
	Style                  LabelStyle
	BackgroundColor        Color
	BackgroundPadding      [2]float64
	HorizontalOrigin       string
	VerticalOrigin         string
	Scale                  float64
	PixelOffset            [2]float64
	EyeOffset              [3]float64
	TranslucencyByDistance *DistanceScale
	ScaleByDistance        *DistanceScale
	OffsetScaleByDistance  *DistanceScale
}

// Enabled reports whether the rule produces labels.
func (l *Label) Enabled() bool {
	return l.Text != "" || l.TextExpression != ""
}

// Rule is one node of the style rule tree.
//
// A rule is built once when its style document loads and is not modified
// afterwards. A rule with FirstOf children never styles a feature itself;
// the first matching child does.
type Rule struct {
	ID string // position in the document, e.g. "4" or "4/2"

	// Predicates.
	TypePattern string
	typeRe      *regexp.Regexp
	Filter      string
	Geometries  model.GeometryMask
	Aspect      Aspect
	Mode        HighlightMode
	Selectable  bool

	// Appearance.
	Color           Color
	ColorExpression string
	Opacity         float64
	Width           float64
	Flat            bool
	OutlineColor    Color
	OutlineWidth    float64
	NearFarScale    *DistanceScale
	Offset          [3]float64
	VerticalOffset  float64
	Dashed          bool
	DashLength      float64
	DashPattern     uint16
	GapColor        Color
	Arrow           ArrowMode
	ArrowExpression string

	// PointMergeGridCell is the merge cell size [lon, lat, height] in
	// degrees and meters, or nil when points are not merged.
	PointMergeGridCell *[3]float64
	IconURL            string
	IconURLExpression  string

	// Relation aspect.
	RelationType             string
	relationRe               *regexp.Regexp
	RelationRecursive        bool
	RelationMergeTwoway      bool
	RelationLineHeightOffset float64
	RelationSourceStyle      *Rule
	RelationTargetStyle      *Rule
	RelationLineEndMarkers   *Rule

	// Attribute aspect.
	AttributeType         string
	attributeRe           *regexp.Regexp
	AttributeLayerType    string
	attributeLayerRe      *regexp.Regexp
	AttributeMask         model.Direction
	AttributeValidityGeom ValidityPolicy
	AttributeFilter       string

	Label Label

	FirstOf []*Rule
}

// NewRule returns a rule with default values for every attribute.
func NewRule(id string) *Rule {
	return &Rule{
		ID:            id,
		Geometries:    model.GeometryMaskAll,
		Selectable:    true,
		Color:         White,
		Opacity:       1,
		Width:         1,
		OutlineColor:  Transparent,
		DashLength:    16,
		DashPattern:   255,
		GapColor:      Transparent,
		AttributeMask: model.DirectionAny,
		Label: Label{
			Color:             White,
			OutlineColor:      Black,
			OutlineWidth:      1,
			Font:              "24px Helvetica",
			BackgroundColor:   Color{42, 42, 42, 204},
			BackgroundPadding: [2]float64{7, 5},
			HorizontalOrigin:  "CENTER",
			VerticalOrigin:    "CENTER",
			Scale:             1,
		},
	}
}

// DeriveChild returns a copy of r that inherits every attribute except the
// type pattern and filter, which a child supplies itself. Children are
// not copied; relation sub-styles are shared.
func (r *Rule) DeriveChild(id string) *Rule {
	child := *r
	child.ID = id
	child.TypePattern = ""
	child.typeRe = nil
	child.Filter = ""
	child.FirstOf = nil
	return &child
}

// SetTypePattern compiles pattern as a full-match regular expression.
func (r *Rule) SetTypePattern(pattern string) error {
	re, err := compileFullMatch(pattern)
	if err != nil {
		return &ErrInvalidPattern{Field: "type", Pattern: pattern, Err: err}
	}
	r.TypePattern, r.typeRe = pattern, re
	return nil
}

// SetRelationType compiles the relation name pattern.
func (r *Rule) SetRelationType(pattern string) error {
	re, err := compileFullMatch(pattern)
	if err != nil {
		return &ErrInvalidPattern{Field: "relation-type", Pattern: pattern, Err: err}
	}
	r.RelationType, r.relationRe = pattern, re
	return nil
}

// SetAttributeType compiles the attribute name pattern.
func (r *Rule) SetAttributeType(pattern string) error {
	re, err := compileFullMatch(pattern)
	if err != nil {
		return &ErrInvalidPattern{Field: "attribute-type", Pattern: pattern, Err: err}
	}
	r.AttributeType, r.attributeRe = pattern, re
	return nil
}

// SetAttributeLayerType compiles the attribute layer name pattern.
func (r *Rule) SetAttributeLayerType(pattern string) error {
	re, err := compileFullMatch(pattern)
	if err != nil {
		return &ErrInvalidPattern{Field: "attribute-layer-type", Pattern: pattern, Err: err}
	}
	r.AttributeLayerType, r.attributeLayerRe = pattern, re
	return nil
}

func compileFullMatch(pattern string) (*regexp.Regexp, error) {
	return regexp.Compile("^(?:" + pattern + ")$")
}

// MatchesType reports whether typeName satisfies the type pattern.
// A rule without a pattern accepts every type.
func (r *Rule) MatchesType(typeName string) bool {
	return r.typeRe == nil || r.typeRe.MatchString(typeName)
}

// MatchesRelation reports whether a relation name satisfies relation-type.
func (r *Rule) MatchesRelation(name string) bool {
	return r.relationRe == nil || r.relationRe.MatchString(name)
}

// MatchesAttribute checks attribute-type, attribute-layer-type,
// attribute-mask and attribute-validity-geom. attribute-filter is an
// expression and is checked by Env.
func (r *Rule) MatchesAttribute(a *model.Attribute) bool {
	if r.attributeRe != nil && !r.attributeRe.MatchString(a.Name) {
		return false
	}
	if r.attributeLayerRe != nil && !r.attributeLayerRe.MatchString(a.Layer) {
		return false
	}
	if r.AttributeMask&a.Direction == 0 {
		return false
	}
	switch r.AttributeValidityGeom {
	case ValidityRequired:
		return a.Validity != nil
	case ValidityNone:
		return a.Validity == nil
	}
	return true
}

// SupportsGeometry reports whether the rule styles geometries of type t.
func (r *Rule) SupportsGeometry(t model.GeometryType) bool {
	return r.Geometries.Has(t)
}

// Mergeable reports whether the rule sends its points to the merge aggregator.
func (r *Rule) Mergeable() bool {
	return r.PointMergeGridCell != nil
}
