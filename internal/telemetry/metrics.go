/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package telemetry

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// APIRequestsTotal counts HTTP requests by method, endpoint and status.
	APIRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skald_api_requests_total",
		Help: "Total HTTP API requests.",
	}, []string{"method", "endpoint", "status"})

	// APIRequestDuration observes request latency.
	APIRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "skald_api_request_duration_seconds",
		Help:    "HTTP API request duration.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "endpoint", "status"})

	// APIActiveConnections tracks in-flight HTTP requests.
	APIActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "skald_api_active_connections",
		Help: "In-flight HTTP API requests.",
	})

	// LedgerTransitions counts subscription ledger mutations by action.
	LedgerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skald_ledger_transitions_total",
		Help: "Subscription ledger state transitions.",
	}, []string{"action"})

	// PlaybackFades counts volume ramps by direction.
	PlaybackFades = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "skald_playback_fades_total",
		Help: "Playback crossfade ramps executed.",
	}, []string{"direction"})

	// AnnouncementsStarted counts scheduled announcements that reached playback.
	AnnouncementsStarted = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skald_announcements_started_total",
		Help: "Scheduled announcements that started playing.",
	})

	// AnnouncementLoadFailures counts tracks that failed to load in time.
	AnnouncementLoadFailures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "skald_announcement_load_failures_total",
		Help: "Scheduled announcement tracks that failed to load.",
	})
)

// Handler exposes the metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
