// Package metrics provides Prometheus counters for visualization sessions.
//
// Every method is safe to call on a nil *Metrics, so components can record
// unconditionally and callers that do not want metrics pass nil.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "featureviz"

// Metrics holds the counters shared by all sessions created with it.
type Metrics struct {
	// FeaturesMatched counts (feature, rule) matches.
	FeaturesMatched prometheus.Counter

	// BatchesCreated counts renderer primitives created, by category.
	BatchesCreated *prometheus.CounterVec

	// RelationsRendered counts relations converted into geometry.
	RelationsRendered prometheus.Counter

	// ExternalReferences counts distinct external reference requests.
	ExternalReferences prometheus.Counter

	// MergeCells counts merge cells created.
	MergeCells prometheus.Counter

	// InvariantViolations counts engine bookkeeping errors.
	InvariantViolations prometheus.Counter
}

// New creates the counters and registers them with reg. A nil reg leaves
// them unregistered.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		FeaturesMatched: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "features_matched_total",
			Help:      "Number of feature/style rule matches.",
		}),
		BatchesCreated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_created_total",
			Help:      "Number of renderer primitives created, by category.",
		}, []string{"category"}),
		RelationsRendered: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "relations_rendered_total",
			Help:      "Number of relations converted into geometry.",
		}),
		ExternalReferences: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "external_references_total",
			Help:      "Number of distinct external feature references requested.",
		}),
		MergeCells: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "merge_cells_total",
			Help:      "Number of point merge cells created.",
		}),
		InvariantViolations: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "invariant_violations_total",
			Help:      "Number of internal bookkeeping errors detected.",
		}),
	}
}

func (m *Metrics) FeatureMatched() {
	if m != nil {
		m.FeaturesMatched.Inc()
	}
}

func (m *Metrics) BatchCreated(category string) {
	if m != nil {
		m.BatchesCreated.WithLabelValues(category).Inc()
	}
}

func (m *Metrics) RelationRendered() {
	if m != nil {
		m.RelationsRendered.Inc()
	}
}

func (m *Metrics) ExternalReference() {
	if m != nil {
		m.ExternalReferences.Inc()
	}
}

func (m *Metrics) MergeCellCreated() {
	if m != nil {
		m.MergeCells.Inc()
	}
}

func (m *Metrics) InvariantViolation() {
	if m != nil {
		m.InvariantViolations.Inc()
	}
}
