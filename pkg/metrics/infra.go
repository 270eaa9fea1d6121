package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// DatabaseMetrics tracks the pooled Postgres connection's health, usage,
// and query performance (C6).
type DatabaseMetrics struct {
	ConnectionsActive             prometheus.Gauge
	ConnectionsIdle               prometheus.Gauge
	ConnectionsTotal              prometheus.Counter
	ConnectionWaitDurationSeconds prometheus.Histogram
	QueryDurationSeconds          *prometheus.HistogramVec
	QueriesTotal                  *prometheus.CounterVec
	ErrorsTotal                   *prometheus.CounterVec
	RetryAttemptsTotal            *prometheus.CounterVec
}

// NewDatabaseMetrics creates the database connection-pool metrics.
func NewDatabaseMetrics(namespace string) *DatabaseMetrics {
	return &DatabaseMetrics{
		ConnectionsActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "database", Name: "connections_active",
			Help: "Number of active pooled database connections currently in use",
		}),
		ConnectionsIdle: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "database", Name: "connections_idle",
			Help: "Number of idle pooled database connections",
		}),
		ConnectionsTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "database", Name: "connections_total",
			Help: "Total number of database connections created",
		}),
		ConnectionWaitDurationSeconds: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "database", Name: "connection_wait_duration_seconds",
			Help:    "Time spent waiting for a connection from the pool",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}),
		QueryDurationSeconds: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "database", Name: "query_duration_seconds",
			Help:    "Duration of database operations",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"operation"}),
		QueriesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "database", Name: "queries_total",
			Help: "Total number of database operations executed",
		}, []string{"operation", "status"}),
		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "database", Name: "errors_total",
			Help: "Total number of database errors encountered",
		}, []string{"error_type"}),
		RetryAttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "database", Name: "retry_attempts_total",
			Help: "Total number of retry attempts against the database",
		}, []string{"outcome"}),
	}
}

// CacheMetrics tracks authz-cache and GraphQL response-cache effectiveness
// (C10/C9).
type CacheMetrics struct {
	HitsTotal      *prometheus.CounterVec
	MissesTotal    *prometheus.CounterVec
	ErrorsTotal    *prometheus.CounterVec
	EvictionsTotal *prometheus.CounterVec
	SizeEntries    *prometheus.GaugeVec
}

// NewCacheMetrics creates cache-layer metrics.
func NewCacheMetrics(namespace string) *CacheMetrics {
	return &CacheMetrics{
		HitsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "hits_total",
			Help: "Total number of cache hits",
		}, []string{"cache"}),
		MissesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "misses_total",
			Help: "Total number of cache misses",
		}, []string{"cache"}),
		ErrorsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "errors_total",
			Help: "Total number of cache errors",
		}, []string{"cache", "error_type"}),
		EvictionsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "cache", Name: "evictions_total",
			Help: "Total number of cache evictions",
		}, []string{"cache"}),
		SizeEntries: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "cache", Name: "size_entries",
			Help: "Current number of entries held by the cache",
		}, []string{"cache"}),
	}
}

// WriteQueueMetrics tracks the durable write-queue's depth, retry, and
// dead-letter behavior (C7).
type WriteQueueMetrics struct {
	Depth              prometheus.Gauge
	EnqueuedTotal       prometheus.Counter
	RepliedTotal        *prometheus.CounterVec
	DeadLetteredTotal   prometheus.Counter
	RetryAttemptsTotal  *prometheus.CounterVec
	PersistDurationSecs prometheus.Histogram
}

// NewWriteQueueMetrics creates write-queue metrics.
func NewWriteQueueMetrics(namespace string) *WriteQueueMetrics {
	return &WriteQueueMetrics{
		Depth: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "write_queue", Name: "depth",
			Help: "Current number of entries buffered in the write queue",
		}),
		EnqueuedTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "write_queue", Name: "enqueued_total",
			Help: "Total number of mutations buffered into the write queue",
		}),
		RepliedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "write_queue", Name: "replayed_total",
			Help: "Total number of write-queue entries replayed, by outcome",
		}, []string{"outcome"}),
		DeadLetteredTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "write_queue", Name: "dead_lettered_total",
			Help: "Total number of entries moved to the dead letter sink after exhausting retries",
		}),
		RetryAttemptsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "write_queue", Name: "retry_attempts_total",
			Help: "Total number of replay attempts, by outcome",
		}, []string{"outcome"}),
		PersistDurationSecs: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "write_queue", Name: "persist_duration_seconds",
			Help:    "Duration of the temp-file+rename snapshot persist operation",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}),
	}
}

// HealthMetrics tracks dependency health-check outcomes (C8).
type HealthMetrics struct {
	DependencyUp      *prometheus.GaugeVec
	CheckDurationSecs *prometheus.HistogramVec
	ChecksTotal       *prometheus.CounterVec
	SnapshotAgeSecs   prometheus.Gauge
}

// NewHealthMetrics creates health-supervisor metrics.
func NewHealthMetrics(namespace string) *HealthMetrics {
	return &HealthMetrics{
		DependencyUp: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "health", Name: "dependency_up",
			Help: "Whether a dependency's most recent health check succeeded (1) or not (0)",
		}, []string{"dependency"}),
		CheckDurationSecs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "health", Name: "check_duration_seconds",
			Help:    "Duration of a dependency health check",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0},
		}, []string{"dependency"}),
		ChecksTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "health", Name: "checks_total",
			Help: "Total number of dependency health checks performed",
		}, []string{"dependency", "outcome"}),
		SnapshotAgeSecs: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "health", Name: "snapshot_age_seconds",
			Help: "Age of the currently served health snapshot",
		}),
	}
}

// GraphQLMetrics tracks request-pipeline behavior: depth/complexity
// rejections, resolver timings, and dataloader batching (C9/C11).
type GraphQLMetrics struct {
	RequestsTotal       *prometheus.CounterVec
	RequestDurationSecs *prometheus.HistogramVec
	RejectedTotal       *prometheus.CounterVec
	ResolverDurationSecs *prometheus.HistogramVec
	DataloaderBatchSize prometheus.Histogram
	SubscribersActive   prometheus.Gauge
}

// NewGraphQLMetrics creates GraphQL pipeline metrics.
func NewGraphQLMetrics(namespace string) *GraphQLMetrics {
	return &GraphQLMetrics{
		RequestsTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "graphql", Name: "requests_total",
			Help: "Total number of GraphQL operations executed, by operation type and outcome",
		}, []string{"operation_type", "outcome"}),
		RequestDurationSecs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "graphql", Name: "request_duration_seconds",
			Help:    "Duration of a GraphQL operation end to end",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		}, []string{"operation_type"}),
		RejectedTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Subsystem: "graphql", Name: "rejected_total",
			Help: "Total number of GraphQL operations rejected before execution",
		}, []string{"reason"}),
		ResolverDurationSecs: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "graphql", Name: "resolver_duration_seconds",
			Help:    "Duration of an individual field resolver",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5},
		}, []string{"field"}),
		DataloaderBatchSize: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace, Subsystem: "graphql", Name: "dataloader_batch_size",
			Help:    "Number of keys coalesced into a single dataloader batch",
			Buckets: []float64{1, 2, 5, 10, 25, 50, 100, 250},
		}),
		SubscribersActive: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Subsystem: "graphql", Name: "subscribers_active",
			Help: "Number of active GraphQL subscription connections",
		}),
	}
}
