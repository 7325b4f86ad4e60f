package websocket

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metric names carry the lmsr_feed_ prefix rather than the exchange
// name: this package backs a single market maker's price feed, not a
// multi-venue scanner, so the metric surface is scoped to what the
// quoting engine needs to know about its own book feed.
var (
	// ActiveConnections tracks active WebSocket connections.
	ActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lmsr_feed_active_connections",
		Help: "Number of active WebSocket connections to the CLOB feed",
	})

	// ReconnectAttemptsTotal tracks reconnection attempts.
	ReconnectAttemptsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lmsr_feed_reconnect_attempts_total",
		Help: "Total number of feed reconnection attempts",
	})

	// ReconnectFailuresTotal tracks reconnection failures.
	ReconnectFailuresTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lmsr_feed_reconnect_failures_total",
		Help: "Total number of feed reconnection failures",
	})

	// MessagesReceivedTotal tracks messages received by type.
	MessagesReceivedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmsr_feed_messages_received_total",
			Help: "Total number of book feed messages received",
		},
		[]string{"event_type"},
	)

	// MessageLatencySeconds tracks message processing latency.
	MessageLatencySeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lmsr_feed_message_latency_seconds",
		Help:    "Book feed message processing latency",
		Buckets: prometheus.DefBuckets,
	})

	// SubscriptionCount tracks active token subscriptions.
	SubscriptionCount = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lmsr_feed_subscription_count",
		Help: "Number of tokens currently subscribed on the book feed",
	})

	// MessagesDroppedTotal tracks messages dropped due to a full channel.
	MessagesDroppedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmsr_feed_messages_dropped_total",
			Help: "Total number of book feed messages dropped due to channel full",
		},
		[]string{"reason"},
	)

	// ConnectionDuration tracks WebSocket connection lifetime.
	ConnectionDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lmsr_feed_connection_duration_seconds",
		Help:    "Duration of feed connections before disconnect",
		Buckets: []float64{60, 300, 600, 1800, 3600, 7200, 14400, 28800, 43200, 86400},
	})

	// UnsubscriptionsTotal tracks token unsubscriptions.
	UnsubscriptionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "lmsr_feed_unsubscriptions_total",
		Help: "Total number of token unsubscriptions",
	})

	// FeedOutageSeconds tracks how long a shard's book went stale
	// between disconnect and a successful resubscribe. This is the
	// window during which any resting maker order on that shard's
	// tokens is unmanaged and must have been withdrawn.
	FeedOutageSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lmsr_feed_outage_seconds",
		Help:    "Duration of book feed outages from disconnect to restored subscription",
		Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60, 120, 300},
	})

	// QuoteWithdrawalsTotal counts tokens whose resting orders were
	// pulled because their feed shard went degraded.
	QuoteWithdrawalsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "lmsr_feed_quote_withdrawals_total",
			Help: "Total number of tokens withdrawn from quoting due to a degraded feed shard",
		},
		[]string{"manager_id"},
	)

	// ==============================
	// Pool-specific metrics
	// ==============================

	// PoolActiveConnections tracks active connections in the pool.
	PoolActiveConnections = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "lmsr_feed_pool_active_connections",
		Help: "Number of active connections in the book feed pool",
	})

	// PoolSubscriptionDistribution tracks distribution of subscriptions across pool connections.
	PoolSubscriptionDistribution = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "lmsr_feed_pool_subscription_distribution",
		Help:    "Distribution of token subscriptions across feed pool shards",
		Buckets: prometheus.LinearBuckets(0, 100, 10),
	})
)
