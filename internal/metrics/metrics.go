// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HTTP requests by route template, method and status class
	HTTPRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exquiz_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "status"},
	)

	HTTPDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "exquiz_http_request_duration_seconds",
			Help:    "Time spent serving HTTP requests",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)

	// Quiz deliveries; degraded is "true" when stored questions were unreadable
	QuizDeliveries = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exquiz_quiz_deliveries_total",
			Help: "Total number of quiz deliveries",
		},
		[]string{"degraded", "cached"},
	)

	ProctoringSessions = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exquiz_proctoring_sessions_total",
			Help: "Proctoring session transitions by resulting status",
		},
		[]string{"status"},
	)

	ProctoringViolations = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exquiz_proctoring_violations_total",
			Help: "Total number of logged proctoring violations",
		},
		[]string{"type", "severity"},
	)

	// Results by persistence path: queued, direct or worker
	ResultsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "exquiz_results_persisted_total",
			Help: "Quiz results accepted for persistence",
		},
		[]string{"path"},
	)

	MonitorSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "exquiz_monitor_subscribers_current",
			Help: "Current number of live proctoring monitor streams",
		},
	)
)
