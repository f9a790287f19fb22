package featureviz

import (
	"github.com/beetlebugorg/featureviz/internal/pointmerge"
)

// Outputs is the result of a session.
type Outputs struct {
	// Batches holds the non-empty batches in category order.
	Batches []*Batch

	// MergedPoints maps a merge bucket id to its cells by grid hash.
	MergedPoints map[string]map[GridHash]*MergeCell

	// RelationsRendered and RelationsPending count relations drawn and
	// relations still waiting for an external target.
	RelationsRendered int
	RelationsPending  int
}

// Categories groups the batch primitives by category name.
func (o *Outputs) Categories() map[string][]Primitive {
	out := make(map[string][]Primitive)
	for _, b := range o.Batches {
		name := b.Category.String()
		out[name] = append(out[name], b.Primitive)
	}
	return out
}

// Aggregates maps a merge bucket id to the merge service handles by grid
// hash.
func (o *Outputs) Aggregates() map[string]map[GridHash]interface{} {
	out := make(map[string]map[GridHash]interface{}, len(o.MergedPoints))
	for bucket, cells := range o.MergedPoints {
		m := make(map[GridHash]interface{}, len(cells))
		for h, c := range cells {
			m[h] = c.Aggregate
		}
		out[bucket] = m
	}
	return out
}

// CollectOutputs returns the current batches, merge cells and relation
// counts. It may be called again after further external reference rounds.
func (s *Session) CollectOutputs() *Outputs {
	out := &Outputs{
		Batches:      s.engine.Collect(),
		MergedPoints: make(map[string]map[GridHash]*pointmerge.Cell),
	}
	for _, bucket := range s.merge.Buckets() {
		cells := make(map[GridHash]*pointmerge.Cell)
		for _, c := range s.merge.Cells(bucket) {
			cells[c.Hash] = c
		}
		out.MergedPoints[bucket] = cells
	}
	for _, st := range s.states {
		for _, r := range st.Relations() {
			switch {
			case r.Rendered:
				out.RelationsRendered++
			case r.Target == nil && !r.Merged():
				out.RelationsPending++
			}
		}
	}
	return out
}
