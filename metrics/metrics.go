// Package metrics registers the Prometheus collectors for the HTTP surface
// and the order lifecycle counters. Everything is exposed on /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "http_requests_total",
		Help: "HTTP requests by method, path and status code.",
	}, []string{"method", "path", "status"})

	HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_request_duration_seconds",
		Help:    "HTTP request latency.",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "path"})

	OrdersFinalized = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_finalized_total",
		Help: "Orders promoted to completed after payment verification.",
	})

	OrdersRecovered = promauto.NewCounter(prometheus.CounterOpts{
		Name: "orders_recovered_total",
		Help: "Orders re-created from gateway records.",
	})

	PendingOrdersExpired = promauto.NewCounter(prometheus.CounterOpts{
		Name: "pending_orders_expired_total",
		Help: "Pending drafts purged past their TTL.",
	})

	DuplicateOrdersRemoved = promauto.NewCounter(prometheus.CounterOpts{
		Name: "duplicate_orders_removed_total",
		Help: "Duplicate order records removed by cleanup passes.",
	})

	StockRejections = promauto.NewCounter(prometheus.CounterOpts{
		Name: "inventory_stock_rejections_total",
		Help: "Inventory decrements refused for insufficient stock.",
	})
)
