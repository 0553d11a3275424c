// Package matchcache caches match results in Redis, keyed by the normalized
// query word set. Concurrent lookups for the same key are collapsed with
// singleflight, and a circuit breaker keeps an unhealthy Redis from slowing
// down direct engine reads.
package matchcache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/morphdex/morphdex/pkg/config"
	"github.com/morphdex/morphdex/pkg/metrics"
	pkgredis "github.com/morphdex/morphdex/pkg/redis"
	"github.com/morphdex/morphdex/pkg/resilience"
	"golang.org/x/sync/singleflight"
)

const keyPrefix = "match:"

type Cache struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	group   singleflight.Group
	breaker *resilience.CircuitBreaker
	logger  *slog.Logger
	metrics *metrics.Metrics
	hits    atomic.Int64
	misses  atomic.Int64
}

func New(client *pkgredis.Client, cfg config.RedisConfig, m *metrics.Metrics) *Cache {
	return &Cache{
		client:  client,
		cfg:     cfg,
		breaker: resilience.NewCircuitBreaker("match-cache", resilience.CircuitBreakerConfig{}),
		logger:  slog.Default().With("component", "match-cache"),
		metrics: m,
	}
}

// Get returns the cached id set for query, or false on a miss. Redis errors
// count against the circuit breaker and are reported as misses.
func (c *Cache) Get(ctx context.Context, query string) ([]int64, bool) {
	key := c.buildKey(query)
	var data string
	err := c.breaker.Execute(func() error {
		var getErr error
		data, getErr = c.client.Get(ctx, key)
		if getErr != nil && pkgredis.IsNilError(getErr) {
			data = ""
			return nil
		}
		return getErr
	})
	c.observeBreaker()
	if err != nil {
		c.logger.Debug("cache get failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	if data == "" {
		c.recordMiss()
		return nil, false
	}
	var ids []int64
	if err := json.Unmarshal([]byte(data), &ids); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.recordMiss()
		return nil, false
	}
	c.recordHit()
	return ids, true
}

// Set stores the id set for query with the configured TTL.
func (c *Cache) Set(ctx context.Context, query string, ids []int64) {
	key := c.buildKey(query)
	data, err := json.Marshal(ids)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	err = c.breaker.Execute(func() error {
		return c.client.Set(ctx, key, data, c.cfg.CacheTTL)
	})
	c.observeBreaker()
	if err != nil {
		c.logger.Debug("cache set failed", "key", key, "error", err)
	}
}

// GetOrCompute serves query from cache when possible, otherwise runs
// computeFn exactly once per key across concurrent callers and caches the
// result. The second return value reports a cache hit.
func (c *Cache) GetOrCompute(ctx context.Context, query string, computeFn func() ([]int64, error)) ([]int64, bool, error) {
	if ids, ok := c.Get(ctx, query); ok {
		return ids, true, nil
	}
	key := c.buildKey(query)
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if ids, ok := c.Get(ctx, query); ok {
			return ids, nil
		}
		ids, err := computeFn()
		if err != nil {
			return nil, err
		}
		// An Invalidate landing between computeFn and Set re-caches the
		// pre-invalidation result until the TTL expires. The TTL bounds
		// that staleness.
		c.Set(ctx, query, ids)
		return ids, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]int64), false, nil
}

// Invalidate drops every cached match result. Called after each index
// operation, since a replacement can shrink any query's result set.
func (c *Cache) Invalidate(ctx context.Context) error {
	var deleted int64
	err := c.breaker.Execute(func() error {
		var flushErr error
		deleted, flushErr = c.client.FlushByPattern(ctx, keyPrefix+"*")
		return flushErr
	})
	c.observeBreaker()
	if err != nil {
		return fmt.Errorf("invalidating match cache: %w", err)
	}
	c.logger.Debug("match cache invalidated", "keys_deleted", deleted)
	return nil
}

func (c *Cache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *Cache) recordHit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *Cache) recordMiss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}

func (c *Cache) observeBreaker() {
	if c.metrics != nil {
		c.metrics.CircuitBreakerState.WithLabelValues("match-cache").Set(float64(c.breaker.GetState()))
	}
}

// buildKey hashes the normalized query word set so that word order and
// repetition do not fragment the cache.
func (c *Cache) buildKey(query string) string {
	words := strings.Fields(strings.ToLower(query))
	sort.Strings(words)
	deduped := words[:0]
	var prev string
	for i, w := range words {
		if i > 0 && w == prev {
			continue
		}
		deduped = append(deduped, w)
		prev = w
	}
	hash := sha256.Sum256([]byte(strings.Join(deduped, " ")))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}
