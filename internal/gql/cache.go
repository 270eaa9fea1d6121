package gql

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/avolkov/docgraph/pkg/metrics"
)

// ResponseCache memoizes full GraphQL responses, keyed by operation text,
// sorted variables, and requesting subject so two subjects never observe
// each other's cached results even for an identical query string.
type ResponseCache struct {
	entries *lru.Cache[string, cachedResponse]
	ttl     time.Duration
	cm      *metrics.CacheMetrics
}

type cachedResponse struct {
	data      []byte
	storedAt  time.Time
}

// NewResponseCache builds a cache holding up to capacity entries, each
// valid for ttl. A zero ttl disables caching outright (every Get misses).
func NewResponseCache(capacity int, ttl time.Duration, cm *metrics.CacheMetrics) *ResponseCache {
	c, _ := lru.New[string, cachedResponse](capacity)
	return &ResponseCache{entries: c, ttl: ttl, cm: cm}
}

// Key derives a stable cache key from the operation text, its variables,
// and the requesting subject (empty string for anonymous).
func Key(query string, variables map[string]interface{}, subject string) string {
	h := sha256.New()
	h.Write([]byte(query))
	h.Write([]byte{0})
	h.Write([]byte(subject))
	h.Write([]byte{0})

	keys := make([]string, 0, len(variables))
	for k := range variables {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		h.Write([]byte(k))
		h.Write([]byte{'='})
		b, _ := json.Marshal(variables[k])
		h.Write(b)
		h.Write([]byte{';'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

const responseCacheLabel = "graphql_response"

func (c *ResponseCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.ttl <= 0 {
		return nil, false
	}
	entry, ok := c.entries.Get(key)
	if !ok {
		c.recordMiss()
		return nil, false
	}
	if time.Since(entry.storedAt) > c.ttl {
		c.entries.Remove(key)
		c.recordEviction()
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	return entry.data, true
}

func (c *ResponseCache) Set(key string, data []byte) {
	if c.ttl <= 0 {
		return
	}
	c.entries.Add(key, cachedResponse{data: data, storedAt: time.Now()})
	if c.cm != nil {
		c.cm.SizeEntries.WithLabelValues(responseCacheLabel).Set(float64(c.entries.Len()))
	}
}

func (c *ResponseCache) recordHit() {
	if c.cm != nil {
		c.cm.HitsTotal.WithLabelValues(responseCacheLabel).Inc()
	}
}

func (c *ResponseCache) recordMiss() {
	if c.cm != nil {
		c.cm.MissesTotal.WithLabelValues(responseCacheLabel).Inc()
	}
}

func (c *ResponseCache) recordEviction() {
	if c.cm != nil {
		c.cm.EvictionsTotal.WithLabelValues(responseCacheLabel).Inc()
	}
}
