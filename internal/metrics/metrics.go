// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Rasul Khiriev

// Package metrics exposes domain events as Prometheus collectors. [Metrics]
// implements service.Observer.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds every collector of phi-guard.
type Metrics struct {
	MutationsApplied   *prometheus.CounterVec
	AuditAppends       *prometheus.CounterVec
	ReviewItemsQueued  prometheus.Counter
	ReviewTransitions  *prometheus.CounterVec
	SecurityViolations prometheus.Counter
	KeyRotations       prometheus.Counter
	ResealedRecords    *prometheus.CounterVec
	DecryptionFailures *prometheus.CounterVec
	HTTPDuration       *prometheus.HistogramVec

	registry *prometheus.Registry
}

// New registers every collector on a fresh registry, together with the Go
// runtime and process collectors.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		MutationsApplied: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "phi_guard_mutations_applied_total",
			Help: "Committed mutations by entity type and action",
		}, []string{"entity", "action"}),
		AuditAppends: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "phi_guard_audit_records_total",
			Help: "Committed audit records by sensitivity",
		}, []string{"sensitive"}),
		ReviewItemsQueued: factory.NewCounter(prometheus.CounterOpts{
			Name: "phi_guard_review_items_queued_total",
			Help: "Anonymization results routed to human review",
		}),
		ReviewTransitions: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "phi_guard_review_transitions_total",
			Help: "Review item state transitions",
		}, []string{"from", "to"}),
		SecurityViolations: factory.NewCounter(prometheus.CounterOpts{
			Name: "phi_guard_security_violations_total",
			Help: "Rejected attempts to bypass anonymization",
		}),
		KeyRotations: factory.NewCounter(prometheus.CounterOpts{
			Name: "phi_guard_key_rotations_total",
			Help: "Completed encryption key rotations",
		}),
		ResealedRecords: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "phi_guard_records_resealed_total",
			Help: "Records processed by the re-encryption sweep",
		}, []string{"result"}),
		DecryptionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "phi_guard_decryption_failures_total",
			Help: "Failed field decryptions by reason",
		}, []string{"reason"}),
		HTTPDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "phi_guard_http_request_duration_seconds",
			Help:    "Duration of admin API requests",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}, []string{"route", "status"}),
		registry: reg,
	}
}

// Handler serves the registry in the Prometheus exposition format.
// Compression is left to the router middleware.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry, DisableCompression: true})
}

func (m *Metrics) MutationApplied(entity, action string) {
	m.MutationsApplied.WithLabelValues(entity, action).Inc()
}

func (m *Metrics) AuditAppended(sensitive bool) {
	m.AuditAppends.WithLabelValues(strconv.FormatBool(sensitive)).Inc()
}

func (m *Metrics) ReviewItemQueued() {
	m.ReviewItemsQueued.Inc()
}

func (m *Metrics) ReviewTransitioned(from, to string) {
	m.ReviewTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) SecurityViolation() {
	m.SecurityViolations.Inc()
}

func (m *Metrics) KeyRotated() {
	m.KeyRotations.Inc()
}

func (m *Metrics) RecordsResealed(migrated, failed int) {
	m.ResealedRecords.WithLabelValues("migrated").Add(float64(migrated))
	m.ResealedRecords.WithLabelValues("failed").Add(float64(failed))
}

func (m *Metrics) DecryptionFailed(reason string) {
	m.DecryptionFailures.WithLabelValues(reason).Inc()
}

// ObserveHTTP records the duration of one admin API request.
// Call with time.Now() at the start of the request.
func (m *Metrics) ObserveHTTP(route string, status int, start time.Time) {
	m.HTTPDuration.WithLabelValues(route, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
}
