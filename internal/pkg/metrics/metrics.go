package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ValidationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapguard_validations_total",
		Help: "The total number of intent validations processed",
	}, []string{"result"})

	ValidationRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapguard_validation_rejects_total",
		Help: "Total intent validation rejections",
	}, []string{"reason"})

	PollAttempts = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapguard_poll_attempts_total",
		Help: "Confirmation poll attempts by outcome",
	}, []string{"outcome"})

	RetriesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapguard_retries_total",
		Help: "Recovery retries by strategy",
	}, []string{"strategy"})

	SwapEvents = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapguard_swap_events_total",
		Help: "Swap lifecycle events recorded",
	}, []string{"kind"})

	ImpactSeverity = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "swapguard_impact_severity_total",
		Help: "Price impact analyses by severity bucket",
	}, []string{"severity"})

	LatencyBucket = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "swapguard_request_duration_seconds",
		Help:    "Request latency in seconds",
		Buckets: prometheus.DefBuckets,
	}, []string{"endpoint"})
)
