package util

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	ListingsCreatedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listings_created_total",
		Help: "Total number of listings created",
	})

	ListingsCreateFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "listings_create_failed_total",
		Help: "Total number of rejected listing creations",
	}, []string{"reason"})

	PurchasesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "purchases_total",
		Help: "Total number of settled purchases",
	})

	PurchasesFailedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "purchases_failed_total",
		Help: "Total number of failed purchase attempts",
	}, []string{"reason"})

	ListingsCollectedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "listings_collected_total",
		Help: "Total number of expired listings collected by their owner",
	})

	ReturnsRedeliveredTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "returns_redelivered_total",
		Help: "Total number of pending returns delivered by the outbox worker",
	})

	SettlementInconsistenciesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "settlement_inconsistencies_total",
		Help: "Total number of settlements needing manual reconciliation",
	})

	FallbackDepositsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "fallback_deposits_total",
		Help: "Total number of items deposited to the stash because a holding was full",
	})

	PurchaseSettlementLatency = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "purchase_settlement_latency_seconds",
		Help:    "Latency of purchase settlement after the listing delete",
		Buckets: prometheus.DefBuckets,
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
