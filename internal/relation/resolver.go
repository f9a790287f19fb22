// Package relation visualizes feature-to-feature relations, following
// them recursively across tiles when a rule asks for it.
//
// A State tracks one relation rule. Features to explore are queued by
// FeatureRef; each explored feature contributes one RelationToVisualize
// per matching relation. Targets that live in a registered tile are
// resolved immediately. The others stay pending until the caller supplies
// their location through Resolve.
package relation

import (
	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/beetlebugorg/featureviz/internal/batch"
	"github.com/beetlebugorg/featureviz/internal/metrics"
	"github.com/beetlebugorg/featureviz/internal/model"
	"github.com/beetlebugorg/featureviz/internal/style"
)

// Graph gives access to the features of all registered tiles.
type Graph interface {
	// Feature returns the feature behind ref, or nil if ref is stale.
	Feature(ref model.FeatureRef) *model.Feature

	// Locate finds a feature in the registered tiles.
	Locate(id model.FeatureID) (model.FeatureRef, bool)
}

// RelationToVisualize is one relation of a source feature, with its target
// once known.
type RelationToVisualize struct {
	Source model.FeatureRef

	// RelationIndex indexes the source feature's relations.
	RelationIndex int

	// Target is nil while the target feature is not available.
	Target *model.FeatureRef

	// TwoWay is set when the reciprocal relation exists in the same group.
	TwoWay bool

	// Rendered is set once the relation has been turned into geometry.
	Rendered bool

	// twin is the reciprocal relation this one was merged into. A merged
	// relation is never rendered.
	twin *RelationToVisualize

	sourceID string
	targetID string
	name     string
}

// Relation returns the underlying relation from g.
func (r *RelationToVisualize) Relation(g Graph) *model.Relation {
	f := g.Feature(r.Source)
	if f == nil || r.RelationIndex >= len(f.Relations) {
		return nil
	}
	return &f.Relations[r.RelationIndex]
}

// Merged reports whether the relation was folded into its reciprocal twin.
func (r *RelationToVisualize) Merged() bool {
	return r.twin != nil
}

// Ready reports whether the relation can be rendered now.
func (r *RelationToVisualize) Ready() bool {
	return r.Target != nil && !r.Rendered && r.twin == nil
}

// State is the traversal state of one relation rule.
type State struct {
	rule    *style.Rule
	graph   Graph
	engine  *batch.Engine
	env     *style.Env
	metrics *metrics.Metrics
	logger  *zap.Logger

	relationsByFeature map[string][]*RelationToVisualize
	featureOrder       []string

	unexplored []model.FeatureRef
	queued     map[string]struct{}

	// visualized holds role-prefixed feature ids whose source, target or
	// end marker styling has been applied.
	visualized map[string]struct{}
}

// NewState returns the traversal state for rule r. env and m may be
// shared with other states.
func NewState(r *style.Rule, g Graph, engine *batch.Engine, env *style.Env, m *metrics.Metrics, logger *zap.Logger) *State {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &State{
		rule:               r,
		graph:              g,
		engine:             engine,
		env:                env,
		metrics:            m,
		logger:             logger.With(zap.String("rule", r.ID)),
		relationsByFeature: make(map[string][]*RelationToVisualize),
		queued:             make(map[string]struct{}),
		visualized:         make(map[string]struct{}),
	}
}

// Rule returns the relation rule this state belongs to.
func (s *State) Rule() *style.Rule {
	return s.rule
}

// Enqueue schedules a feature for exploration. Features that have been
// queued before are ignored, which keeps traversal of cyclic relation
// graphs finite.
func (s *State) Enqueue(ref model.FeatureRef) bool {
	f := s.graph.Feature(ref)
	if f == nil {
		s.invariantViolation("enqueue of unknown feature", ref)
		return false
	}
	key := f.ID.String()
	if _, ok := s.queued[key]; ok {
		return false
	}
	s.queued[key] = struct{}{}
	s.unexplored = append(s.unexplored, ref)
	return true
}

// PopulateAndRender explores all queued features and then renders every
// relation that is ready. With onlyUpdateFlags set, relations are
// recorded and two-way flags recomputed, but nothing is rendered.
func (s *State) PopulateAndRender(onlyUpdateFlags bool) {
	for len(s.unexplored) > 0 {
		ref := s.unexplored[0]
		s.unexplored = s.unexplored[1:]

		f := s.graph.Feature(ref)
		if f == nil {
			s.invariantViolation("queued feature vanished", ref)
			continue
		}
		for i := range f.Relations {
			if s.rule.MatchesRelation(f.Relations[i].Name) {
				s.addRelation(ref, f, i)
			}
		}
	}
	if onlyUpdateFlags {
		return
	}
	for _, id := range s.featureOrder {
		for _, r := range s.relationsByFeature[id] {
			if r.Ready() {
				s.Render(r)
			}
		}
	}
}

func (s *State) addRelation(ref model.FeatureRef, f *model.Feature, index int) {
	rel := &f.Relations[index]
	r := &RelationToVisualize{
		Source:        ref,
		RelationIndex: index,
		sourceID:      f.ID.String(),
		targetID:      rel.Target.String(),
		name:          rel.Name,
	}
	for _, existing := range s.relationsByFeature[r.sourceID] {
		if existing.RelationIndex == index && existing.Source == ref {
			return
		}
	}

	if s.rule.RelationMergeTwoway {
		for _, other := range s.relationsByFeature[r.targetID] {
			if other.targetID == r.sourceID && other.name == r.name && other.twin == nil && !other.TwoWay {
				other.TwoWay = true
				r.TwoWay = true
				r.twin = other
				break
			}
		}
	}

	if _, ok := s.relationsByFeature[r.sourceID]; !ok {
		s.featureOrder = append(s.featureOrder, r.sourceID)
	}
	s.relationsByFeature[r.sourceID] = append(s.relationsByFeature[r.sourceID], r)

	target, ok := s.graph.Locate(rel.Target)
	if !ok {
		if r.twin == nil {
			s.logger.Debug("relation target not loaded",
				zap.String("source", r.sourceID),
				zap.String("target", r.targetID))
		}
		return
	}
	s.Resolve(r, target)
}

// Resolve sets the target of r. With a recursive rule, the target is
// queued for exploration.
func (s *State) Resolve(r *RelationToVisualize, target model.FeatureRef) {
	r.Target = &target
	if s.rule.RelationRecursive {
		s.Enqueue(target)
	}
}

// Pending returns the relations whose target is not yet available, in
// exploration order. Relations merged into their twin are left out.
func (s *State) Pending() []*RelationToVisualize {
	var out []*RelationToVisualize
	for _, id := range s.featureOrder {
		for _, r := range s.relationsByFeature[id] {
			if r.Target == nil && r.twin == nil {
				out = append(out, r)
			}
		}
	}
	return out
}

// Relations returns all recorded relations in exploration order.
func (s *State) Relations() []*RelationToVisualize {
	var out []*RelationToVisualize
	for _, id := range s.featureOrder {
		out = append(out, s.relationsByFeature[id]...)
	}
	return out
}

// Render draws r if it is ready and reports whether it did. Calling it
// again for the same relation is a no-op.
func (s *State) Render(r *RelationToVisualize) bool {
	if !r.Ready() {
		return false
	}
	source := s.graph.Feature(r.Source)
	target := s.graph.Feature(*r.Target)
	if source == nil || target == nil {
		s.invariantViolation("relation endpoint vanished", r.Source)
		return false
	}
	rel := &source.Relations[r.RelationIndex]

	from, fromHeight, okFrom := anchor(rel.SourceValidity, source)
	to, toHeight, okTo := anchor(rel.TargetValidity, target)
	if !okFrom || !okTo {
		// Nothing to connect; the relation still counts as handled.
		r.Rendered = true
		return true
	}
	lift := s.rule.RelationLineHeightOffset

	app := batch.Resolve(s.rule, s.env, source, nil)
	if r.TwoWay && app.Arrow != style.ArrowNone {
		app.Arrow = style.ArrowDouble
	}
	s.engine.AddLine(r.sourceID, from, to, fromHeight+lift, toHeight+lift, s.rule, app)

	s.styleEndpoint("source", s.rule.RelationSourceStyle, source, from, fromHeight, lift)
	s.styleEndpoint("target", s.rule.RelationTargetStyle, target, to, toHeight, lift)

	r.Rendered = true
	s.metrics.RelationRendered()
	return true
}

func (s *State) styleEndpoint(role string, sub *style.Rule, f *model.Feature, at orb.Point, height, lift float64) {
	id := f.ID.String()
	if sub != nil && s.once(role+":"+id) {
		app := batch.Resolve(sub, s.env, f, nil)
		for i := range f.Geometries {
			s.engine.AddGeometry(id, &f.Geometries[i], sub, app, batch.Offset{})
		}
	}
	if m := s.rule.RelationLineEndMarkers; m != nil && lift != 0 && s.once("marker:"+id) {
		app := batch.Resolve(m, s.env, f, nil)
		s.engine.AddLine(id, at, at, height, height+lift, m, app)
	}
}

// anchor returns where a relation line attaches to a feature: the center
// of the relation's validity geometry if it has one, otherwise the center
// of the feature.
func anchor(validity *model.Geometry, f *model.Feature) (orb.Point, float64, bool) {
	if validity != nil {
		if p, h, ok := validity.Center(); ok {
			return p, h, true
		}
	}
	return f.Center()
}

func (s *State) once(key string) bool {
	if _, ok := s.visualized[key]; ok {
		return false
	}
	s.visualized[key] = struct{}{}
	return true
}

func (s *State) invariantViolation(msg string, ref model.FeatureRef) {
	s.metrics.InvariantViolation()
	s.logger.Error(msg,
		zap.Int("tile", ref.Tile),
		zap.Int("index", ref.Index))
}
