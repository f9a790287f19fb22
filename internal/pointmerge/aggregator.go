// Package pointmerge merges point features that fall into the same grid
// cell into one aggregate visualization, for rules that declare a
// point-merge grid cell size.
package pointmerge

import (
	"fmt"
	"math"

	"github.com/paulmach/orb"
	"go.uber.org/zap"

	"github.com/beetlebugorg/featureviz/internal/metrics"
	"github.com/beetlebugorg/featureviz/internal/style"
)

// GridHash identifies a merge cell: each coordinate divided by the cell
// size of its axis, truncated towards zero.
type GridHash struct {
	X, Y, Z int64
}

func (h GridHash) String() string {
	return fmt.Sprintf("%d:%d:%d", h.X, h.Y, h.Z)
}

// Hash returns the grid cell of a position. An axis with a non-positive
// cell size collapses to zero.
func Hash(p orb.Point, height float64, cell [3]float64) GridHash {
	axis := func(v, size float64) int64 {
		if size <= 0 {
			return 0
		}
		return int64(math.Trunc(v / size))
	}
	return GridHash{
		X: axis(p[0], cell[0]),
		Y: axis(p[1], cell[1]),
		Z: axis(height, cell[2]),
	}
}

// BucketID builds the identifier merge cells are grouped by: one bucket per
// map layer, style and rule.
func BucketID(mapLayerID, styleName, ruleID string) string {
	return mapLayerID + ":" + styleName + ":" + ruleID
}

// Cell is a set of merged point features.
type Cell struct {
	Bucket string
	Hash   GridHash

	// Position and Height are those of the first point added.
	Position orb.Point
	Height   float64

	// Rule styles the aggregate; its label and point parameters apply to
	// the merged visualization.
	Rule *style.Rule

	// FeatureIDs in insertion order, without duplicates.
	FeatureIDs []string

	// Aggregate is the merge service's handle for this cell.
	Aggregate interface{}

	members map[string]struct{}
}

// Len returns the number of merged features.
func (c *Cell) Len() int {
	return len(c.FeatureIDs)
}

// Contains reports whether featureID is a member of the cell.
func (c *Cell) Contains(featureID string) bool {
	_, ok := c.members[featureID]
	return ok
}

// Service creates renderer-side aggregates for new cells. The returned
// handle is opaque to this package.
type Service interface {
	NewAggregate(c *Cell) interface{}
}

// ServiceFunc adapts a function to Service.
type ServiceFunc func(c *Cell) interface{}

func (f ServiceFunc) NewAggregate(c *Cell) interface{} { return f(c) }

// Aggregator collects merge cells per bucket. It is not safe for
// concurrent use.
type Aggregator struct {
	service Service
	metrics *metrics.Metrics
	logger  *zap.Logger

	buckets map[string]map[GridHash]*Cell
	order   []string
	cells   map[string][]*Cell
}

// New returns an aggregator requesting aggregates from service. service
// may be nil, in which case cells carry no aggregate handle.
func New(service Service, m *metrics.Metrics, logger *zap.Logger) *Aggregator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		service: service,
		metrics: m,
		logger:  logger,
		buckets: make(map[string]map[GridHash]*Cell),
		cells:   make(map[string][]*Cell),
	}
}

// AddPoint adds a feature's point to its cell in bucket. Adding a feature
// that is already a member is a no-op. The merge service is asked for an
// aggregate only when the cell is created. Rules without a grid cell
// size are ignored and nil is returned.
func (a *Aggregator) AddPoint(featureID string, p orb.Point, height float64, r *style.Rule, bucket string) *Cell {
	if !r.Mergeable() {
		return nil
	}
	hash := Hash(p, height, *r.PointMergeGridCell)

	cells, ok := a.buckets[bucket]
	if !ok {
		cells = make(map[GridHash]*Cell)
		a.buckets[bucket] = cells
		a.order = append(a.order, bucket)
	}

	c, ok := cells[hash]
	if ok {
		if !c.Contains(featureID) {
			c.members[featureID] = struct{}{}
			c.FeatureIDs = append(c.FeatureIDs, featureID)
		}
		return c
	}

	c = &Cell{
		Bucket:     bucket,
		Hash:       hash,
		Position:   p,
		Height:     height,
		Rule:       r,
		FeatureIDs: []string{featureID},
		members:    map[string]struct{}{featureID: {}},
	}
	cells[hash] = c
	a.cells[bucket] = append(a.cells[bucket], c)
	if a.service != nil {
		c.Aggregate = a.service.NewAggregate(c)
	}
	a.metrics.MergeCellCreated()
	a.logger.Debug("created merge cell",
		zap.String("bucket", bucket),
		zap.Stringer("cell", hash))
	return c
}

// Buckets returns the bucket ids in creation order.
func (a *Aggregator) Buckets() []string {
	return a.order
}

// Cells returns the cells of bucket in creation order.
func (a *Aggregator) Cells(bucket string) []*Cell {
	return a.cells[bucket]
}

// Cell returns the cell of bucket at hash.
func (a *Aggregator) Cell(bucket string, hash GridHash) (*Cell, bool) {
	c, ok := a.buckets[bucket][hash]
	return c, ok
}

// Len returns the total number of cells.
func (a *Aggregator) Len() int {
	n := 0
	for _, cells := range a.cells {
		n += len(cells)
	}
	return n
}
