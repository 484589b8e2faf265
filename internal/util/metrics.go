package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	WebhooksReceivedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhooks_received_total",
		Help: "Total number of webhook deliveries received, by topic",
	}, []string{"topic"})

	WebhooksRejectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "webhooks_rejected_total",
		Help: "Total number of webhook deliveries rejected due to invalid signature",
	})

	WebhooksDuplicateTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhooks_duplicate_total",
		Help: "Total number of webhook deliveries skipped as duplicates",
	}, []string{"topic"})

	WebhooksFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "webhooks_failed_total",
		Help: "Total number of webhook deliveries that failed processing",
	}, []string{"topic", "reason"})

	CartsCreatedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "carts_created_total",
		Help: "Total number of abandoned cart records created, by source",
	}, []string{"source"})

	CartsRecoveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "carts_recovered_total",
		Help: "Total number of carts marked as recovered",
	})

	StaleUpdatesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cart_stale_updates_dropped_total",
		Help: "Total number of cart updates dropped for carrying a timestamp older than stored state",
	})

	SyncRunsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_sync_runs_total",
		Help: "Total number of reconciliation runs, by outcome",
	}, []string{"outcome"})

	SyncCheckoutsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cart_sync_checkouts_total",
		Help: "Total number of checkout snapshots seen during reconciliation, by disposition",
	}, []string{"disposition"})

	SyncLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "cart_sync_duration_seconds",
		Help:    "Duration of reconciliation runs",
		Buckets: prometheus.DefBuckets,
	})

	ActivitiesDroppedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "activities_dropped_total",
		Help: "Total number of activity events that could not be published",
	})

	HTTPRequestDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path", "status"})

	HTTPRequestsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "Total number of HTTP requests",
	}, []string{"method", "path", "status"})
)
