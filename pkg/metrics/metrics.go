package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// AuthAttempts records authentication attempts by result (success|failure).
	AuthAttempts = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contextmeet_auth_attempts_total",
			Help: "Total number of authentication attempts",
		},
		[]string{"result"},
	)

	// ContextsGenerated counts meeting context generations by mode (model|fallback).
	ContextsGenerated = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contextmeet_contexts_generated_total",
			Help: "Total number of meeting contexts generated",
		},
		[]string{"mode"},
	)

	// NotificationsDelivered counts delivery attempts by channel (email|telegram) and result (sent|failed).
	NotificationsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contextmeet_notifications_delivered_total",
			Help: "Total number of notification delivery attempts",
		},
		[]string{"channel", "result"},
	)

	// CalendarSyncEvents counts events processed during calendar sync by outcome (created|updated|skipped).
	CalendarSyncEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "contextmeet_calendar_sync_events_total",
			Help: "Total number of calendar events processed during sync",
		},
		[]string{"outcome"},
	)

	// APILatency measures HTTP request latencies.
	APILatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "contextmeet_api_latency_seconds",
			Help:    "API endpoint latency",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)
)
