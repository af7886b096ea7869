package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Inbound webhook metrics
	RequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mention_relay_requests_total",
			Help: "Total number of inbound webhook requests by HTTP status",
		},
		[]string{"status"},
	)

	VerificationFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mention_relay_verification_failures_total",
			Help: "Total number of rejected signatures by reason",
		},
		[]string{"reason"},
	)

	EventsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mention_relay_events_total",
			Help: "Total number of authenticated events by kind",
		},
		[]string{"kind"},
	)

	// Dispatch metrics
	DegradedReplies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mention_relay_degraded_replies_total",
			Help: "Total number of apology replies substituted for an answer",
		},
		[]string{"cause"},
	)

	GenerationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "mention_relay_generation_duration_seconds",
			Help:    "Duration of generative backend calls in seconds",
			Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 20, 30, 60},
		},
	)

	DeliveriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "mention_relay_deliveries_total",
			Help: "Total number of replies posted to the chat platform by result",
		},
		[]string{"result"},
	)
)
