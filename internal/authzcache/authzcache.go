// Package authzcache implements the authorization decision cache (C10): a
// strictly per-subject, TTL-bounded cache in front of an external
// authorization collaborator, with an optional Redis-backed shared tier
// for multi-replica deployments.
package authzcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"hash/fnv"
	"log/slog"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/redis/go-redis/v9"

	"github.com/avolkov/docgraph/internal/apperrors"
	"github.com/avolkov/docgraph/pkg/metrics"
)

const metricsCacheLabel = "authz"

// Authorizer is the narrow interface the external authorization service
// is accessed through. Its relationship model is out of scope here.
type Authorizer interface {
	Check(ctx context.Context, subject, resource, action string) (allowed bool, err error)
}

// Decision is a cached authorization outcome.
type Decision struct {
	Subject   string    `json:"subject"`
	Resource  string    `json:"resource"`
	Action    string    `json:"action"`
	Allowed   bool      `json:"allowed"`
	FetchedAt time.Time `json:"fetched_at"`
}

func (d Decision) expired(ttl time.Duration) bool {
	return time.Since(d.FetchedAt) > ttl
}

// Config controls cache sizing, TTL, and outage behavior.
type Config struct {
	Enabled        bool
	TTL            time.Duration
	ShardCount     int
	ShardSize      int
	UseSharedTier  bool
	OutageBudget   time.Duration
	FailOpenReads  bool // reads fail open (allow) on outage; mutations always fail closed
}

// DefaultConfig matches spec defaults: 60s TTL, 16 shards of 1024 entries,
// 2s outage budget, fail-closed for both reads and mutations.
func DefaultConfig() Config {
	return Config{
		Enabled:       true,
		TTL:           60 * time.Second,
		ShardCount:    16,
		ShardSize:     1024,
		UseSharedTier: false,
		OutageBudget:  2 * time.Second,
		FailOpenReads: false,
	}
}

// Cache is a sharded, per-subject authorization decision cache.
type Cache struct {
	cfg        Config
	authorizer Authorizer
	logger     *slog.Logger
	cm         *metrics.CacheMetrics

	shards []*shard
	redis  *redis.Client
}

type shard struct {
	mu       sync.RWMutex
	subjects map[string]*lru.Cache[string, Decision]
	shardSize int
}

// New constructs a Cache. redisClient may be nil; it is only consulted
// when cfg.UseSharedTier is true.
func New(cfg Config, authorizer Authorizer, redisClient *redis.Client, logger *slog.Logger, cm *metrics.CacheMetrics) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if cm == nil {
		cm = metrics.DefaultRegistry().Cache()
	}
	if cfg.ShardCount <= 0 {
		cfg.ShardCount = 16
	}
	shards := make([]*shard, cfg.ShardCount)
	for i := range shards {
		shards[i] = &shard{subjects: make(map[string]*lru.Cache[string, Decision]), shardSize: cfg.ShardSize}
	}
	return &Cache{cfg: cfg, authorizer: authorizer, logger: logger, cm: cm, shards: shards, redis: redisClient}
}

func (c *Cache) shardFor(subject string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(subject))
	return c.shards[h.Sum32()%uint32(len(c.shards))]
}

func decisionKey(resource, action string) string {
	return resource + "\x00" + action
}

// Authorize returns the cached decision for (subject, resource, action),
// consulting the external authorizer on a miss or expiry. A decision for
// one subject is never visible to a lookup for a different subject: the
// subject is the shard-selection key and the per-subject LRU's only
// namespace, never folded into a shared key.
func (c *Cache) Authorize(ctx context.Context, subject, resource, action string, mutation bool) (bool, error) {
	if subject == "" {
		return false, apperrors.Unauthenticated()
	}

	if cached, ok := c.lookupLocal(subject, resource, action); ok {
		c.cm.HitsTotal.WithLabelValues(metricsCacheLabel).Inc()
		return cached.Allowed, nil
	}

	if c.cfg.UseSharedTier && c.redis != nil {
		if cached, ok := c.lookupShared(ctx, subject, resource, action); ok {
			c.cm.HitsTotal.WithLabelValues(metricsCacheLabel).Inc()
			c.storeLocal(subject, resource, action, cached)
			return cached.Allowed, nil
		}
	}

	c.cm.MissesTotal.WithLabelValues(metricsCacheLabel).Inc()

	budgetCtx, cancel := context.WithTimeout(ctx, c.cfg.OutageBudget)
	defer cancel()

	allowed, err := c.authorizer.Check(budgetCtx, subject, resource, action)
	if err != nil {
		c.cm.ErrorsTotal.WithLabelValues(metricsCacheLabel, classifyErr(err)).Inc()
		c.logger.Warn("authorization collaborator unavailable, applying outage policy",
			"subject", subject, "resource", resource, "action", action, "mutation", mutation, "error", err)
		if mutation || !c.cfg.FailOpenReads {
			return false, nil
		}
		return true, nil
	}

	decision := Decision{Subject: subject, Resource: resource, Action: action, Allowed: allowed, FetchedAt: time.Now().UTC()}
	c.storeLocal(subject, resource, action, decision)
	if c.cfg.UseSharedTier && c.redis != nil {
		c.storeShared(ctx, decision)
	}
	return allowed, nil
}

// RequireAuth enforces an authorization decision as taxonomy errors: nil
// on allow, Unauthenticated when subject is empty, Forbidden on deny.
func (c *Cache) RequireAuth(ctx context.Context, subject, resource, action string, mutation bool) error {
	if subject == "" {
		return apperrors.Unauthenticated()
	}
	allowed, err := c.Authorize(ctx, subject, resource, action, mutation)
	if err != nil {
		return err
	}
	if !allowed {
		return apperrors.Forbidden(fmt.Sprintf("subject is not authorized to %s %s", action, resource))
	}
	return nil
}

func (c *Cache) lookupLocal(subject, resource, action string) (Decision, bool) {
	s := c.shardFor(subject)
	s.mu.RLock()
	subjectCache, ok := s.subjects[subject]
	s.mu.RUnlock()
	if !ok {
		return Decision{}, false
	}
	decision, ok := subjectCache.Get(decisionKey(resource, action))
	if !ok || decision.expired(c.cfg.TTL) {
		return Decision{}, false
	}
	return decision, true
}

func (c *Cache) storeLocal(subject, resource, action string, decision Decision) {
	s := c.shardFor(subject)
	s.mu.Lock()
	subjectCache, ok := s.subjects[subject]
	if !ok {
		subjectCache, _ = lru.New[string, Decision](s.shardSize)
		s.subjects[subject] = subjectCache
	}
	s.mu.Unlock()
	subjectCache.Add(decisionKey(resource, action), decision)
	c.cm.SizeEntries.WithLabelValues(metricsCacheLabel).Set(float64(subjectCache.Len()))
}

func (c *Cache) redisKey(subject, resource, action string) string {
	return fmt.Sprintf("authz:%s:%s:%s", subject, resource, action)
}

func (c *Cache) lookupShared(ctx context.Context, subject, resource, action string) (Decision, bool) {
	val, err := c.redis.Get(ctx, c.redisKey(subject, resource, action)).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("shared authz cache lookup failed", "error", err)
		}
		return Decision{}, false
	}
	var decision Decision
	if err := json.Unmarshal([]byte(val), &decision); err != nil {
		return Decision{}, false
	}
	if decision.expired(c.cfg.TTL) {
		return Decision{}, false
	}
	return decision, true
}

func (c *Cache) storeShared(ctx context.Context, decision Decision) {
	data, err := json.Marshal(decision)
	if err != nil {
		return
	}
	if err := c.redis.Set(ctx, c.redisKey(decision.Subject, decision.Resource, decision.Action), data, c.cfg.TTL).Err(); err != nil {
		c.logger.Warn("shared authz cache write failed", "error", err)
	}
}

func classifyErr(err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return "timeout"
	}
	if errors.Is(err, context.Canceled) {
		return "canceled"
	}
	return "unavailable"
}
