package checker

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/EgorSmi/hack-fake-news/pkg/logger"
	"github.com/EgorSmi/hack-fake-news/pkg/metrics"
	"github.com/EgorSmi/hack-fake-news/pkg/redis"
)

// VerdictCache caches check results in Redis keyed by a hash of the
// submitted text. Concurrent checks of the same text are collapsed to a
// single pipeline run via singleflight; viral articles arrive in bursts.
//
// The cache is strictly an optimization: a Redis failure degrades to
// computing the verdict, never to failing the request.
type VerdictCache struct {
	client *redis.Client
	ttl    time.Duration
	group  singleflight.Group
	m      *metrics.Metrics
}

// NewVerdictCache creates a cache with the given TTL. client may be nil, in
// which case only singleflight deduplication applies.
func NewVerdictCache(client *redis.Client, ttl time.Duration, m *metrics.Metrics) *VerdictCache {
	return &VerdictCache{client: client, ttl: ttl, m: m}
}

// CacheStatus labels how a verdict was obtained.
type CacheStatus string

const (
	CacheHit    CacheStatus = "hit"
	CacheMiss   CacheStatus = "miss"
	CacheShared CacheStatus = "shared"
)

// GetOrCompute returns the cached verdict for text, or runs compute and
// caches its result. The bool-ish CacheStatus reports hit, miss, or shared
// (another in-flight request computed it).
func (c *VerdictCache) GetOrCompute(ctx context.Context, text string, compute func(context.Context) (*CheckResult, error)) (*CheckResult, CacheStatus, error) {
	key := cacheKey(text)
	log := logger.FromContext(ctx).With("component", "verdict-cache")

	if cached, ok := c.lookup(ctx, key, log); ok {
		c.countHit()
		return cached, CacheHit, nil
	}
	c.countMiss()

	result, err, shared := c.group.Do(key, func() (interface{}, error) {
		// The flight may serve waiters beyond the caller that started it, so
		// it must not die with that caller's context. Collaborator calls
		// carry their own per-call timeouts, keeping the detached compute
		// bounded.
		flightCtx := context.WithoutCancel(ctx)
		res, err := compute(flightCtx)
		if err != nil {
			return nil, err
		}
		c.store(flightCtx, key, res, log)
		return res, nil
	})
	if err != nil {
		return nil, CacheMiss, err
	}
	status := CacheMiss
	if shared {
		status = CacheShared
	}
	return result.(*CheckResult), status, nil
}

// Invalidate drops all cached verdicts, used after a snapshot reload since
// every verdict depends on the corpus.
func (c *VerdictCache) Invalidate(ctx context.Context) error {
	if c.client == nil {
		return nil
	}
	deleted, err := c.client.FlushByPattern(ctx, "verdict:*")
	if err != nil {
		return err
	}
	logger.FromContext(ctx).Info("verdict cache invalidated", "deleted", deleted)
	return nil
}

func (c *VerdictCache) lookup(ctx context.Context, key string, log *slog.Logger) (*CheckResult, bool) {
	if c.client == nil {
		return nil, false
	}
	raw, err := c.client.Get(ctx, key)
	if err != nil {
		if !redis.IsNilError(err) {
			log.Warn("verdict cache read failed", "error", err)
		}
		return nil, false
	}
	var result CheckResult
	if err := json.Unmarshal([]byte(raw), &result); err != nil {
		log.Warn("dropping undecodable cached verdict", "error", err)
		return nil, false
	}
	return &result, true
}

func (c *VerdictCache) store(ctx context.Context, key string, result *CheckResult, log *slog.Logger) {
	if c.client == nil {
		return
	}
	raw, err := json.Marshal(result)
	if err != nil {
		log.Warn("marshaling verdict for cache failed", "error", err)
		return
	}
	if err := c.client.Set(ctx, key, raw, c.ttl); err != nil {
		log.Warn("verdict cache write failed", "error", err)
	}
}

func cacheKey(text string) string {
	sum := sha256.Sum256([]byte(text))
	return "verdict:" + hex.EncodeToString(sum[:])
}

func (c *VerdictCache) countHit() {
	if c.m != nil {
		c.m.CacheHitsTotal.Inc()
	}
}

func (c *VerdictCache) countMiss() {
	if c.m != nil {
		c.m.CacheMissesTotal.Inc()
	}
}
