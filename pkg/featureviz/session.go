package featureviz

import (
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/beetlebugorg/featureviz/internal/batch"
	"github.com/beetlebugorg/featureviz/internal/model"
	"github.com/beetlebugorg/featureviz/internal/pointmerge"
	"github.com/beetlebugorg/featureviz/internal/relation"
	"github.com/beetlebugorg/featureviz/internal/render"
	"github.com/beetlebugorg/featureviz/internal/style"
)

// Session visualizes one primary tile with one rule set. Tiles added after
// the first only supply relation targets.
type Session struct {
	id      string
	rules   *RuleSet
	opts    SessionOptions
	logger  *zap.Logger
	env     *style.Env
	backend Backend
	engine  *batch.Engine
	merge   *pointmerge.Aggregator

	tiles     []*TileFeatureLayer
	tileSlots map[string]int

	states      []*relation.State
	stateByRule map[*Rule]*relation.State

	// requested holds every feature id handed out by ExternalReferences.
	requested    map[string]struct{}
	lastRequests []ExternalReferenceRequest

	ran bool
}

// NewSession creates a session applying rules. Zero-valued options fall
// back to their defaults.
func NewSession(rules *RuleSet, opts SessionOptions) *Session {
	defaults := DefaultSessionOptions()
	if opts.Logger == nil {
		opts.Logger = defaults.Logger
	}
	if opts.Evaluator == nil {
		opts.Evaluator = defaults.Evaluator
	}
	if opts.Converter == nil {
		opts.Converter = defaults.Converter
	}
	if opts.Backend == nil {
		opts.Backend = render.NewRecorder()
	}

	id := uuid.NewString()
	logger := opts.Logger.With(zap.String("session", id), zap.String("style", rules.Name()))

	return &Session{
		id:     id,
		rules:  rules,
		opts:   opts,
		logger: logger,
		env: &style.Env{
			Evaluator: opts.Evaluator,
			Variables: rules.Variables(opts.Options),
			Mode:      opts.HighlightMode,
			Logger:    logger,
		},
		backend:     opts.Backend,
		engine:      batch.New(opts.Backend, opts.Converter, opts.Metrics, logger),
		merge:       pointmerge.New(opts.MergeService, opts.Metrics, logger),
		tileSlots:   make(map[string]int),
		stateByRule: make(map[*Rule]*relation.State),
		requested:   make(map[string]struct{}),
	}
}

// ID returns the session's unique id, which also tags its log entries.
func (s *Session) ID() string {
	return s.id
}

// Backend returns the backend primitives are created with.
func (s *Session) Backend() Backend {
	return s.backend
}

// AddTileFeatureLayer registers a tile. The first tile is the one Run
// visualizes. Adding a tile whose key is already registered is a no-op.
func (s *Session) AddTileFeatureLayer(l *TileFeatureLayer) {
	key := l.Key().String()
	if _, ok := s.tileSlots[key]; ok {
		s.logger.Debug("tile already registered", zap.String("tile", key))
		return
	}
	s.tileSlots[key] = len(s.tiles)
	s.tiles = append(s.tiles, l)
	s.logger.Debug("registered tile",
		zap.String("tile", key),
		zap.Int("features", l.Len()),
		zap.Bool("primary", len(s.tiles) == 1))
}

// Feature implements relation.Graph.
func (s *Session) Feature(ref model.FeatureRef) *Feature {
	if ref.Tile < 0 || ref.Tile >= len(s.tiles) {
		return nil
	}
	return s.tiles[ref.Tile].Feature(ref.Index)
}

// Locate implements relation.Graph. Tiles are searched in registration
// order.
func (s *Session) Locate(id FeatureID) (model.FeatureRef, bool) {
	for slot, l := range s.tiles {
		if i, ok := l.Find(id); ok {
			return model.FeatureRef{Tile: slot, Index: i}, true
		}
	}
	return model.FeatureRef{}, false
}

// Run matches every rule against the features of the primary tile and
// emits their geometry. Relation targets that are not available locally
// are left for ExternalReferences. Problems with individual features or
// rules are logged and skipped.
func (s *Session) Run() error {
	if len(s.tiles) == 0 {
		return &ErrNoPrimaryTile{}
	}
	if s.ran {
		s.logger.Warn("session already ran")
		return nil
	}
	s.ran = true

	primary := s.tiles[0]
	allowed := s.allowList()

	indices := s.primaryFeatures(primary)
	for _, i := range indices {
		f := primary.Feature(i)
		if allowed != nil {
			if _, ok := allowed[f.ID.String()]; !ok {
				continue
			}
		}
		s.addFeature(model.FeatureRef{Tile: 0, Index: i}, f)
	}

	for _, st := range s.states {
		st.PopulateAndRender(false)
	}

	s.logger.Info("visualized tile",
		zap.String("tile", primary.Key().String()),
		zap.Int("features", len(indices)),
		zap.Int("batches", s.engine.Len()),
		zap.Int("mergeCells", s.merge.Len()),
		zap.Int("relationRules", len(s.states)))
	return nil
}

func (s *Session) primaryFeatures(l *TileFeatureLayer) []int {
	if s.opts.Bounds != nil {
		return l.FeaturesInBounds(*s.opts.Bounds)
	}
	out := make([]int, l.Len())
	for i := range out {
		out[i] = i
	}
	return out
}

func (s *Session) allowList() map[string]struct{} {
	if len(s.opts.FeatureIDs) == 0 {
		return nil
	}
	m := make(map[string]struct{}, len(s.opts.FeatureIDs))
	for _, id := range s.opts.FeatureIDs {
		m[id] = struct{}{}
	}
	return m
}

func (s *Session) addFeature(ref model.FeatureRef, f *Feature) {
	// Attributes of one feature are stacked across all matching rules.
	stack := 0
	for _, m := range s.rules.Match(f, s.env) {
		s.opts.Metrics.FeatureMatched()
		switch m.Rule.Aspect {
		case style.AspectRelation:
			s.state(m.Rule).Enqueue(ref)
		case style.AspectAttribute:
			stack = s.addAttributes(f, m.Rule, stack)
		default:
			s.addGeometries(f, m.Rule, m.Geometries)
		}
	}
}

// addGeometries emits the geometries of f whose type is in mask. Points
// of a mergeable rule go to the merge aggregator instead of a batch.
func (s *Session) addGeometries(f *Feature, r *Rule, mask model.GeometryMask) {
	id := f.ID.String()
	app := batch.Resolve(r, s.env, f, nil)
	for i := range f.Geometries {
		g := &f.Geometries[i]
		if !mask.Has(g.Type) {
			continue
		}
		if g.Type == model.GeometryTypePoints && r.Mergeable() {
			bucket := pointmerge.BucketID(s.tiles[0].Key().MapLayerID(), s.rules.Name(), r.ID)
			for j, p := range g.Coordinates {
				s.merge.AddPoint(id, p, g.Height(j), r, bucket)
			}
			continue
		}
		s.engine.AddGeometry(id, g, r, app, batch.Offset{})
	}
}

// addAttributes visualizes every attribute of f matched by r, shifting
// each by the rule offset times its running index. It returns the next
// index.
func (s *Session) addAttributes(f *Feature, r *Rule, next int) int {
	id := f.ID.String()
	for i := range f.Attributes {
		a := &f.Attributes[i]
		if !r.MatchAttribute(f, a, s.env) {
			continue
		}
		app := batch.Resolve(r, s.env, f, a)
		n := float64(next)
		extra := batch.Offset{r.Offset[0] * n, r.Offset[1] * n, r.Offset[2] * n}
		next++

		if a.Validity != nil {
			s.engine.AddGeometry(id, a.Validity, r, app, extra)
			continue
		}
		for j := range f.Geometries {
			s.engine.AddGeometry(id, &f.Geometries[j], r, app, extra)
		}
	}
	return next
}

func (s *Session) state(r *Rule) *relation.State {
	if st, ok := s.stateByRule[r]; ok {
		return st
	}
	st := relation.NewState(r, s, s.engine, s.env, s.opts.Metrics, s.logger)
	s.stateByRule[r] = st
	s.states = append(s.states, st)
	return st
}

// ExternalReferences returns a request for every relation target that is
// missing locally and has not been requested before in this session. The
// returned list is what the next ProcessResolvedExternalReferences call
// is correlated with.
func (s *Session) ExternalReferences() []ExternalReferenceRequest {
	var out []ExternalReferenceRequest
	for _, st := range s.states {
		for _, r := range st.Pending() {
			rel := r.Relation(s)
			if rel == nil {
				s.invariantViolation("pending relation without source")
				continue
			}
			key := rel.Target.String()
			if _, ok := s.requested[key]; ok {
				continue
			}
			s.requested[key] = struct{}{}
			s.opts.Metrics.ExternalReference()
			out = append(out, newRequest(rel.Target))
		}
	}
	s.lastRequests = out
	if len(out) > 0 {
		s.logger.Debug("external references requested", zap.Int("count", len(out)))
	}
	return out
}

// ProcessResolvedExternalReferences takes, for each request of the last
// ExternalReferences call, the candidate locations of its feature. The
// first candidate whose tile is registered and contains the feature is
// used; relations waiting for that feature are then rendered. With
// recursive rules, resolved targets are explored in turn, which may
// produce further external references.
//
// If resolutions is not as long as the request list, the overlapping
// prefix is processed and ErrResolutionMismatch is returned.
func (s *Session) ProcessResolvedExternalReferences(resolutions [][]Resolution) error {
	requests := s.lastRequests
	s.lastRequests = nil

	n := len(requests)
	if len(resolutions) < n {
		n = len(resolutions)
	}

	touched := make(map[*relation.State]struct{})
	for i := 0; i < n; i++ {
		ref, ok := s.resolve(resolutions[i])
		if !ok {
			s.logger.Debug("external reference unresolved",
				zap.Stringer("feature", requests[i].FeatureID()))
			continue
		}
		want := requests[i].FeatureID().String()
		for _, st := range s.states {
			for _, r := range st.Pending() {
				if rel := r.Relation(s); rel != nil && rel.Target.String() == want {
					st.Resolve(r, ref)
					touched[st] = struct{}{}
				}
			}
		}
	}

	for _, st := range s.states {
		if _, ok := touched[st]; ok {
			st.PopulateAndRender(true)
		}
	}
	for _, st := range s.states {
		if _, ok := touched[st]; ok {
			st.PopulateAndRender(false)
		}
	}

	if len(resolutions) != len(requests) {
		return &ErrResolutionMismatch{Requests: len(requests), Resolutions: len(resolutions)}
	}
	return nil
}

func (s *Session) resolve(candidates []Resolution) (model.FeatureRef, bool) {
	for _, c := range candidates {
		slot, ok := s.tileSlots[c.Tile]
		if !ok {
			continue
		}
		if i, ok := s.tiles[slot].Find(c.FeatureID()); ok {
			return model.FeatureRef{Tile: slot, Index: i}, true
		}
	}
	return model.FeatureRef{}, false
}

func (s *Session) invariantViolation(msg string) {
	s.opts.Metrics.InvariantViolation()
	s.logger.Error(msg)
}
