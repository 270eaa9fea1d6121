// Package metrics provides centralized Prometheus metrics management for
// docgraph.
//
// This package implements a category taxonomy for metrics:
//   - Database: pooled Postgres connection + query metrics
//   - Cache: authz-cache and GraphQL response-cache hit/miss metrics
//   - WriteQueue: durable write-queue depth/retry/dead-letter metrics
//   - Health: dependency health-check outcome metrics
//   - GraphQL: request depth/complexity/resolver metrics
//
// All metrics follow the naming convention:
// docgraph_<category>_<metric_name>_<unit>
package metrics

import "sync"

// MetricCategory represents the category of a metric.
type MetricCategory string

const (
	CategoryDatabase   MetricCategory = "database"
	CategoryCache      MetricCategory = "cache"
	CategoryWriteQueue MetricCategory = "write_queue"
	CategoryHealth     MetricCategory = "health"
	CategoryGraphQL    MetricCategory = "graphql"
)

// Registry is the central registry for all Prometheus metrics, with
// lazily-initialized category managers.
type Registry struct {
	namespace string

	database   *DatabaseMetrics
	cache      *CacheMetrics
	writeQueue *WriteQueueMetrics
	health     *HealthMetrics
	graphql    *GraphQLMetrics

	databaseOnce   sync.Once
	cacheOnce      sync.Once
	writeQueueOnce sync.Once
	healthOnce     sync.Once
	graphqlOnce    sync.Once
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the global singleton Registry, initialized once
// on first call.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry("docgraph")
	})
	return defaultRegistry
}

// NewRegistry creates a Registry scoped to the given Prometheus namespace.
func NewRegistry(namespace string) *Registry {
	if namespace == "" {
		namespace = "docgraph"
	}
	return &Registry{namespace: namespace}
}

// Database returns the database connection-pool metrics manager.
func (r *Registry) Database() *DatabaseMetrics {
	r.databaseOnce.Do(func() { r.database = NewDatabaseMetrics(r.namespace) })
	return r.database
}

// Cache returns the cache-layer metrics manager.
func (r *Registry) Cache() *CacheMetrics {
	r.cacheOnce.Do(func() { r.cache = NewCacheMetrics(r.namespace) })
	return r.cache
}

// WriteQueue returns the durable write-queue metrics manager.
func (r *Registry) WriteQueue() *WriteQueueMetrics {
	r.writeQueueOnce.Do(func() { r.writeQueue = NewWriteQueueMetrics(r.namespace) })
	return r.writeQueue
}

// Health returns the health-supervisor metrics manager.
func (r *Registry) Health() *HealthMetrics {
	r.healthOnce.Do(func() { r.health = NewHealthMetrics(r.namespace) })
	return r.health
}

// GraphQL returns the GraphQL request-pipeline metrics manager.
func (r *Registry) GraphQL() *GraphQLMetrics {
	r.graphqlOnce.Do(func() { r.graphql = NewGraphQLMetrics(r.namespace) })
	return r.graphql
}

// Namespace returns the configured Prometheus namespace.
func (r *Registry) Namespace() string {
	return r.namespace
}
