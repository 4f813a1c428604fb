// Copyright 2026 The Bureau Authors
// SPDX-License-Identifier: Apache-2.0

package spanstream

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const (
	metricsNamespace = "spanstream"
	spanSubsystem    = "span"
	streamSubsystem  = "stream"
)

// Metrics are the streamer's supportability counters.
type Metrics struct {
	// Seen accumulates the buffer's seen count: every span offered,
	// including those later evicted.
	Seen prometheus.Counter

	// Dropped accumulates spans evicted by buffer overflow.
	Dropped prometheus.Counter

	// Sent counts spans accepted by Stream.Send.
	Sent prometheus.Counter

	// Queued is the buffer length at the last harvest.
	Queued prometheus.Gauge

	// StreamsOpened counts successful stream opens.
	StreamsOpened prometheus.Counter

	// ResponseErrors counts streams that ended with a non-OK status.
	// Labels: code (gRPC code name, e.g. Unavailable)
	ResponseErrors *prometheus.CounterVec
}

// NewMetrics creates the counters and registers them with registerer.
// Pass prometheus.NewRegistry() in tests to keep them isolated.
func NewMetrics(registerer prometheus.Registerer) *Metrics {
	factory := promauto.With(registerer)
	return &Metrics{
		Seen: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: spanSubsystem,
			Name:      "seen_total",
			Help:      "Spans offered to the stream buffer, including evicted ones.",
		}),
		Dropped: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: spanSubsystem,
			Name:      "dropped_total",
			Help:      "Spans evicted from the stream buffer on overflow.",
		}),
		Sent: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: spanSubsystem,
			Name:      "sent_total",
			Help:      "Spans written to a collector stream.",
		}),
		Queued: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: spanSubsystem,
			Name:      "queued",
			Help:      "Spans waiting in the stream buffer at the last harvest.",
		}),
		StreamsOpened: factory.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: streamSubsystem,
			Name:      "opened_total",
			Help:      "Collector streams opened.",
		}),
		ResponseErrors: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: streamSubsystem,
			Name:      "response_error_total",
			Help:      "Collector streams that ended with a non-OK status, by code.",
		}, []string{"code"}),
	}
}
