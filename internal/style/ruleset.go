package style

import (
	"strings"

	"github.com/beetlebugorg/featureviz/internal/model"
)

// Option is a named boolean toggle declared by a style document. Its value
// is visible to expressions as the variable $<ID>.
type Option struct {
	ID      string
	Label   string
	Default bool
}

// RuleSet is an ordered list of style rules plus the document's options.
// It is immutable once loaded and may be shared by any number of sessions.
type RuleSet struct {
	name     string
	rules    []*Rule
	options  []Option
	warnings []error
}

// NewRuleSet assembles a rule set from already built rules.
func NewRuleSet(name string, rules []*Rule, options []Option) *RuleSet {
	return &RuleSet{name: name, rules: rules, options: options}
}

// Name returns the style's declared name.
func (s *RuleSet) Name() string { return s.name }

// Rules returns the top-level rules in document order.
func (s *RuleSet) Rules() []*Rule { return s.rules }

// Options returns the declared options in document order.
func (s *RuleSet) Options() []Option { return s.options }

// Warnings returns the problems that were skipped while loading.
func (s *RuleSet) Warnings() []error { return s.warnings }

// Variables returns option values keyed by option id: the declared
// default unless overrides names the option.
func (s *RuleSet) Variables(overrides map[string]bool) map[string]interface{} {
	vars := make(map[string]interface{}, len(s.options))
	for _, o := range s.options {
		v := o.Default
		if ov, ok := overrides[o.ID]; ok {
			v = ov
		}
		vars[o.ID] = v
	}
	return vars
}

// Rule looks a rule up by its id, descending into first-of children.
func (s *RuleSet) Rule(id string) *Rule {
	return findRule(s.rules, id)
}

func findRule(rules []*Rule, id string) *Rule {
	for _, r := range rules {
		if r.ID == id {
			return r
		}
		if strings.HasPrefix(id, r.ID+"/") {
			return findRule(r.FirstOf, id)
		}
	}
	return nil
}

// Match is a rule that applies to a feature, with the subset of the
// feature's geometry types that the rule styles.
type Match struct {
	Rule       *Rule
	Geometries model.GeometryMask
}

// Match returns every rule that applies to f, in document order. For a
// first-of rule the first matching child is returned in its place; a
// first-of rule with no matching child does not match.
func (s *RuleSet) Match(f *model.Feature, env *Env) []Match {
	var out []Match
	for _, r := range s.rules {
		if eff := r.match(f, env); eff != nil {
			out = append(out, Match{Rule: eff, Geometries: eff.Geometries.Intersect(f.GeometryMask())})
		}
	}
	return out
}

func (r *Rule) match(f *model.Feature, env *Env) *Rule {
	if r.Mode != env.Mode {
		return nil
	}
	if !r.MatchesType(f.Type()) {
		return nil
	}
	if r.Filter != "" && !env.Test("filter", r.Filter, f, nil) {
		return nil
	}
	if len(r.FirstOf) == 0 {
		return r
	}
	for _, child := range r.FirstOf {
		if eff := child.match(f, env); eff != nil {
			return eff
		}
	}
	return nil
}

// MatchAttribute reports whether the attribute rule r applies to attribute
// a of feature f.
func (r *Rule) MatchAttribute(f *model.Feature, a *model.Attribute, env *Env) bool {
	if !r.MatchesAttribute(a) {
		return false
	}
	return r.AttributeFilter == "" || env.Test("attribute-filter", r.AttributeFilter, f, a)
}
