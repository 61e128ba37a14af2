package middleware

import (
	"hash/fnv"
	"sync"
	"time"

	"github.com/wattforge/ember/core"
)

// RateLimitConfig configures RateLimit. The token-bucket algorithm is
// grounded on bolt/middleware/ratelimit.go; the storage underneath it is
// this module's own sharded-map discipline (bucketTable below), the same
// fixed-shard-count idiom session.Store uses for sessions, rather than
// the teacher's single sync.Map plus a per-entry mutex (see DESIGN.md).
type RateLimitConfig struct {
	RequestsPerSecond int
	Burst             int
	KeyFunc           func(*core.Context) string
	ErrorHandler      func(*core.Context) error
	CleanupInterval   time.Duration
	MaxAge            time.Duration
}

// DefaultRateLimitConfig returns 100 req/s, burst 20, keyed by client IP
// headers (falling back to the connection's peer address when none are
// present).
func DefaultRateLimitConfig() RateLimitConfig {
	return RateLimitConfig{
		RequestsPerSecond: 100,
		Burst:             20,
		KeyFunc:           defaultKeyFunc,
		CleanupInterval:   time.Minute,
		MaxAge:            5 * time.Minute,
	}
}

func defaultKeyFunc(c *core.Context) string {
	if ip := c.GetHeader("X-Forwarded-For"); ip != "" {
		return ip
	}
	if ip := c.GetHeader("X-Real-IP"); ip != "" {
		return ip
	}
	return c.Request.PeerAddr
}

// RateLimit returns a token-bucket rate limiting middleware keyed per
// client (by default, by IP header).
func RateLimit(config RateLimitConfig) core.Middleware {
	return RateLimitWithConfig(config)
}

// RateLimitWithConfig returns rate limiting middleware with custom configuration.
func RateLimitWithConfig(config RateLimitConfig) core.Middleware {
	if config.RequestsPerSecond == 0 {
		config.RequestsPerSecond = 100
	}
	if config.Burst == 0 {
		config.Burst = 20
	}
	if config.KeyFunc == nil {
		config.KeyFunc = defaultKeyFunc
	}
	if config.CleanupInterval == 0 {
		config.CleanupInterval = time.Minute
	}
	if config.MaxAge == 0 {
		config.MaxAge = 5 * time.Minute
	}

	buckets := newBucketTable(float64(config.RequestsPerSecond), float64(config.Burst), config.CleanupInterval, config.MaxAge)
	go buckets.sweepLoop()

	return func(next core.Handler) core.Handler {
		return func(c *core.Context) error {
			if !buckets.allow(config.KeyFunc(c)) {
				if config.ErrorHandler != nil {
					return config.ErrorHandler(c)
				}
				c.Response.SetStatus("429")
				c.Response.SetHeader("Content-Type", "text/html")
				c.Response.Body = []byte("<h1>429: Rate limit exceeded</h1>")
				return nil
			}

			return next(c)
		}
	}
}

const bucketShardCount = 8

// bucketTable is a sharded per-key token-bucket store: bucketShardCount
// fixed shards, each guarded by its own mutex. A single shard lock
// covers both the map lookup/insert and the bucket's refill arithmetic
// for that key, rather than pairing a sync.Map with a second per-entry
// mutex the way a one-big-map limiter store would.
type bucketTable struct {
	shards          [bucketShardCount]*bucketShard
	rate            float64
	ceiling         float64
	cleanupInterval time.Duration
	maxAge          time.Duration
}

type bucketShard struct {
	mu      sync.Mutex
	buckets map[string]*tokenBucket
}

// tokenBucket is one client's refillable allowance plus the timestamp
// needed to evict it once idle past maxAge.
type tokenBucket struct {
	available    float64
	lastRefilled time.Time
	lastSeen     time.Time
}

func newBucketTable(rate, ceiling float64, cleanupInterval, maxAge time.Duration) *bucketTable {
	bt := &bucketTable{rate: rate, ceiling: ceiling, cleanupInterval: cleanupInterval, maxAge: maxAge}
	for i := range bt.shards {
		bt.shards[i] = &bucketShard{buckets: make(map[string]*tokenBucket)}
	}
	return bt
}

func (bt *bucketTable) shardFor(key string) *bucketShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return bt.shards[h.Sum32()%bucketShardCount]
}

// allow refills key's bucket for elapsed time, then consumes one token if
// available. A key seen for the first time starts at a full bucket.
func (bt *bucketTable) allow(key string) bool {
	shard := bt.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	now := time.Now()
	b, ok := shard.buckets[key]
	if !ok {
		b = &tokenBucket{available: bt.ceiling, lastRefilled: now}
		shard.buckets[key] = b
	}

	elapsed := now.Sub(b.lastRefilled).Seconds()
	b.available += elapsed * bt.rate
	if b.available > bt.ceiling {
		b.available = bt.ceiling
	}
	b.lastRefilled = now
	b.lastSeen = now

	if b.available < 1.0 {
		return false
	}
	b.available--
	return true
}

// sweepLoop periodically evicts buckets idle past maxAge.
func (bt *bucketTable) sweepLoop() {
	ticker := time.NewTicker(bt.cleanupInterval)
	defer ticker.Stop()

	for range ticker.C {
		now := time.Now()
		for _, shard := range bt.shards {
			shard.mu.Lock()
			for key, b := range shard.buckets {
				if now.Sub(b.lastSeen) > bt.maxAge {
					delete(shard.buckets, key)
				}
			}
			shard.mu.Unlock()
		}
	}
}
