// Copyright 2024 ChainSafe Systems (ON)
// SPDX-License-Identifier: LGPL-3.0-only

// Package metrics exposes the backing coordinator's Prometheus
// instrumentation, mirroring the counters and histograms the original
// node/core/backing subsystem tracks: candidates backed, statements
// signed, no-PoV fallbacks exhausted, and validation latency.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics is the set of instruments the coordinator updates as it
// handles Second/Statement/background-validation events. A nil
// *Metrics is valid and every method on it is a no-op, so collaborators
// that don't wire metrics in (e.g. unit tests) never need a stub.
type Metrics struct {
	candidatesBacked  prometheus.Counter
	statementsSigned  *prometheus.CounterVec
	noPoVExhausted    prometheus.Counter
	validationSeconds *prometheus.HistogramVec
}

// NewMetrics registers the backing coordinator's instruments against
// reg and returns the handle the coordinator reports through.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		candidatesBacked: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parachain",
			Subsystem: "backing",
			Name:      "candidates_backed_total",
			Help:      "Number of candidates that crossed their group's backing threshold.",
		}),
		statementsSigned: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "parachain",
			Subsystem: "backing",
			Name:      "statements_signed_total",
			Help:      "Number of statements this node has signed, by kind (seconded/valid).",
		}, []string{"kind"}),
		noPoVExhausted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "parachain",
			Subsystem: "backing",
			Name:      "no_pov_fallbacks_exhausted_total",
			Help:      "Number of Attest tasks that ran out of fallback validators without acquiring a PoV.",
		}),
		validationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "parachain",
			Subsystem: "backing",
			Name:      "validation_duration_seconds",
			Help:      "Wall-clock time spent in the background validation pipeline, by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
	}

	for _, c := range []prometheus.Collector{m.candidatesBacked, m.statementsSigned, m.noPoVExhausted, m.validationSeconds} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

// OnCandidateBacked records a candidate crossing its backing threshold.
func (m *Metrics) OnCandidateBacked() {
	if m == nil {
		return
	}
	m.candidatesBacked.Inc()
}

// OnStatementSigned records a locally signed statement, by kind.
func (m *Metrics) OnStatementSigned(seconded bool) {
	if m == nil {
		return
	}
	kind := "valid"
	if seconded {
		kind = "seconded"
	}
	m.statementsSigned.WithLabelValues(kind).Inc()
}

// OnNoPoVExhausted records an Attest task giving up after exhausting
// its fallback validator queue.
func (m *Metrics) OnNoPoVExhausted() {
	if m == nil {
		return
	}
	m.noPoVExhausted.Inc()
}

// OnValidationComplete records how long a background validation task
// took to reach outcome ("valid", "invalid", or "no-pov").
func (m *Metrics) OnValidationComplete(outcome string, seconds float64) {
	if m == nil {
		return
	}
	m.validationSeconds.WithLabelValues(outcome).Observe(seconds)
}
