// Package metrics exposes Prometheus counters for revision history activity.
//
// A nil *Recorder is valid and records nothing, so components can take an
// optional recorder without nil checks at every call site.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/roach88/classver/internal/model"
)

const namespace = "classver"

// Session outcomes, used as the "outcome" label of SessionsTotal.
const (
	OutcomeCommitted  = "committed"
	OutcomeFailed     = "failed"
	OutcomeRolledBack = "rolled_back"
)

// Recorder holds the counters of one process.
type Recorder struct {
	// RevisionsTotal counts committed revisions.
	// Labels: reason (created, updated, deleted, repaired, initialized)
	RevisionsTotal *prometheus.CounterVec

	// DiscardsTotal counts object-level discards of staged changes.
	DiscardsTotal prometheus.Counter

	// SessionsTotal counts finished transactions.
	// Labels: outcome (committed, failed, rolled_back)
	SessionsTotal *prometheus.CounterVec
}

// New creates the counters and registers them on reg.
// Panics if reg already holds counters with the same names.
func New(reg prometheus.Registerer) *Recorder {
	factory := promauto.With(reg)
	return &Recorder{
		RevisionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "revisions_total",
			Help:      "Total committed revisions by reason",
		}, []string{"reason"}),
		DiscardsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "discards_total",
			Help:      "Total discarded staged change sets",
		}),
		SessionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "sessions_total",
			Help:      "Total finished transactions by outcome",
		}, []string{"outcome"}),
	}
}

// RevisionCommitted records one new revision with reason r.
func (r *Recorder) RevisionCommitted(reason model.Reason) {
	if r == nil {
		return
	}
	r.RevisionsTotal.WithLabelValues(ReasonLabel(reason)).Inc()
}

// Discarded records one discarded change set.
func (r *Recorder) Discarded() {
	if r == nil {
		return
	}
	r.DiscardsTotal.Inc()
}

// SessionFinished records the outcome of one transaction.
func (r *Recorder) SessionFinished(outcome string) {
	if r == nil {
		return
	}
	r.SessionsTotal.WithLabelValues(outcome).Inc()
}

// ReasonLabel returns the lowercase label value for a reason.
func ReasonLabel(reason model.Reason) string {
	switch reason {
	case model.ReasonCreated:
		return "created"
	case model.ReasonUpdated:
		return "updated"
	case model.ReasonDeleted:
		return "deleted"
	case model.ReasonRepaired:
		return "repaired"
	case model.ReasonInitialized:
		return "initialized"
	}
	return "unknown"
}
