// Package metrics contains the prometheus infrastructure.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Submission outcomes.
const (
	OutcomeAccepted     = "accepted"
	OutcomeCorrected    = "corrected"
	OutcomeUnauthorized = "unauthorized"
	OutcomeInvalidPoint = "invalid_point"
	OutcomeRoundClosed  = "round_closed"
	OutcomeError        = "error"
)

// CeremonyMetrics instruments the ceremony state machine and the wallet.
type CeremonyMetrics struct {
	submissions     *prometheus.CounterVec
	roundsSealed    *prometheus.CounterVec
	completed       *prometheus.CounterVec
	reconstructions *prometheus.CounterVec
	deployments     *prometheus.CounterVec
}

// NewCeremonyMetrics creates the ceremony collectors, registering them once.
func NewCeremonyMetrics() *CeremonyMetrics {
	m := &CeremonyMetrics{
		submissions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mpecdh_submissions",
				Help: "How many values were submitted, partitioned by group and outcome.",
			},
			[]string{"group", "outcome"},
		),
		roundsSealed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mpecdh_rounds_sealed",
				Help: "How many rounds were sealed, partitioned by group.",
			},
			[]string{"group"},
		),
		completed: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mpecdh_ceremonies_completed",
				Help: "How many ceremony runs reached completion, partitioned by group.",
			},
			[]string{"group"},
		),
		reconstructions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mpecdh_reconstructions",
				Help: "How many reconstructions were requested, partitioned by status.",
			},
			[]string{"status"},
		),
		deployments: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "mpecdh_deployments",
				Help: "How many ceremony instances were deployed, partitioned by group.",
			},
			[]string{"group"},
		),
	}
	m.submissions = registerOnce(m.submissions).(*prometheus.CounterVec)
	m.roundsSealed = registerOnce(m.roundsSealed).(*prometheus.CounterVec)
	m.completed = registerOnce(m.completed).(*prometheus.CounterVec)
	m.reconstructions = registerOnce(m.reconstructions).(*prometheus.CounterVec)
	m.deployments = registerOnce(m.deployments).(*prometheus.CounterVec)
	return m
}

// Submissions returns the counter for submissions with the given outcome.
// A nil receiver returns a counter that is not registered anywhere.
func (m *CeremonyMetrics) Submissions(group, outcome string) prometheus.Counter {
	if m == nil {
		return discard
	}
	return m.submissions.WithLabelValues(group, outcome)
}

// RoundsSealed returns the counter of sealed rounds.
func (m *CeremonyMetrics) RoundsSealed(group string) prometheus.Counter {
	if m == nil {
		return discard
	}
	return m.roundsSealed.WithLabelValues(group)
}

// Completed returns the counter of completed runs.
func (m *CeremonyMetrics) Completed(group string) prometheus.Counter {
	if m == nil {
		return discard
	}
	return m.completed.WithLabelValues(group)
}

// Reconstructions returns the counter of reconstruction requests with the given status.
func (m *CeremonyMetrics) Reconstructions(status string) prometheus.Counter {
	if m == nil {
		return discard
	}
	return m.reconstructions.WithLabelValues(status)
}

// Deployments returns the counter of deployed instances.
func (m *CeremonyMetrics) Deployments(group string) prometheus.Counter {
	if m == nil {
		return discard
	}
	return m.deployments.WithLabelValues(group)
}

// discard absorbs observations when metrics are disabled.
var discard = prometheus.NewCounter(prometheus.CounterOpts{Name: "mpecdh_discarded"})
