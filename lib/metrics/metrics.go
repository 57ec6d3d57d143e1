// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "gondolin"

// Collector holds every gondolin metric on a custom registry.
type Collector struct {
	Registry *prometheus.Registry

	SecretsParseWarnings prometheus.Counter
	SecretsReads         *prometheus.CounterVec

	EgressRequests *prometheus.CounterVec
	EgressBlocks   *prometheus.CounterVec

	ExecActiveSessions prometheus.Gauge
	ExecBufferedBytes  prometheus.Gauge
	ExecDroppedFrames  prometheus.Counter
	ExecResults        *prometheus.CounterVec
}

// NewCollector creates a Collector with all metrics registered.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	m := &Collector{
		Registry: reg,

		SecretsParseWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "secrets",
			Name:      "parse_warnings_total",
			Help:      "Secrets file lines skipped or flagged while parsing.",
		}),
		SecretsReads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "secrets",
			Name:      "file_reads_total",
			Help:      "Secrets file reads by result.",
		}, []string{"result"}),

		EgressRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "egress",
			Name:      "requests_total",
			Help:      "Outbound requests inspected by outcome.",
		}, []string{"outcome"}),
		EgressBlocks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "egress",
			Name:      "blocks_total",
			Help:      "Outbound requests blocked by reason.",
		}, []string{"reason"}),

		ExecActiveSessions: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "exec",
			Name:      "active_sessions",
			Help:      "Remote exec sessions awaiting a result.",
		}),
		ExecBufferedBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "exec",
			Name:      "buffered_output_bytes",
			Help:      "Output bytes held for active remote exec sessions.",
		}),
		ExecDroppedFrames: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exec",
			Name:      "dropped_frames_total",
			Help:      "Data frames for sessions that are not active.",
		}),
		ExecResults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "exec",
			Name:      "results_total",
			Help:      "Remote exec sessions finished by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		m.SecretsParseWarnings,
		m.SecretsReads,
		m.EgressRequests,
		m.EgressBlocks,
		m.ExecActiveSessions,
		m.ExecBufferedBytes,
		m.ExecDroppedFrames,
		m.ExecResults,
	)

	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(m.Registry, promhttp.HandlerOpts{Registry: m.Registry})
}

// RecordParseWarnings adds n skipped or flagged secrets lines.
func (m *Collector) RecordParseWarnings(n int) {
	if m == nil || n == 0 {
		return
	}
	m.SecretsParseWarnings.Add(float64(n))
}

// RecordSecretsRead counts one secrets file read. result is "ok",
// "missing", or "error".
func (m *Collector) RecordSecretsRead(result string) {
	if m == nil {
		return
	}
	m.SecretsReads.WithLabelValues(result).Inc()
}

// RecordEgress counts one inspected request. An empty blockReason
// means the request was allowed.
func (m *Collector) RecordEgress(blockReason string) {
	if m == nil {
		return
	}
	if blockReason == "" {
		m.EgressRequests.WithLabelValues("allowed").Inc()
		return
	}
	m.EgressRequests.WithLabelValues("blocked").Inc()
	m.EgressBlocks.WithLabelValues(blockReason).Inc()
}

// ExecSessionStarted increments the active session gauge.
func (m *Collector) ExecSessionStarted() {
	if m == nil {
		return
	}
	m.ExecActiveSessions.Inc()
}

// ExecSessionFinished decrements the active session gauge, releases the
// session's buffered bytes, and counts the outcome.
func (m *Collector) ExecSessionFinished(outcome string, bufferedBytes int) {
	if m == nil {
		return
	}
	m.ExecActiveSessions.Dec()
	m.ExecBufferedBytes.Sub(float64(bufferedBytes))
	m.ExecResults.WithLabelValues(outcome).Inc()
}

// ExecOutputBuffered adds n bytes to the buffered output gauge.
func (m *Collector) ExecOutputBuffered(n int) {
	if m == nil {
		return
	}
	m.ExecBufferedBytes.Add(float64(n))
}

// ExecFrameDropped counts one frame for an inactive session.
func (m *Collector) ExecFrameDropped() {
	if m == nil {
		return
	}
	m.ExecDroppedFrames.Inc()
}
