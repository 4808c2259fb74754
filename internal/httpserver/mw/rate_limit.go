package mw

import (
	"math"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/MrSnakeDoc/shelf/internal/httpserver/apierr"
	"github.com/MrSnakeDoc/shelf/internal/logger"
	"github.com/MrSnakeDoc/shelf/internal/utils"
)

// RateLimitConfig configures a token bucket per client key.
type RateLimitConfig struct {
	Burst         int           // attempts available at once
	RefillPerMin  int           // attempts regained per minute
	MaxEntries    int           // sweep early once this many keys are tracked (0 = unbounded)
	SweepInterval time.Duration // how often idle buckets are dropped
	IdleTTL       time.Duration // a bucket unused this long is dropped
	TrustProxy    bool          // resolve IP from proxy headers when true
	Logger        logger.Logger

	// Key groups requests into buckets. Defaults to the client IP.
	Key func(r *http.Request) string
	Now func() time.Time
}

func (c *RateLimitConfig) setDefaults() {
	if c.SweepInterval <= 0 {
		c.SweepInterval = time.Minute
	}
	if c.IdleTTL <= 0 {
		c.IdleTTL = 15 * time.Minute
	}
	c.Burst = max(c.Burst, 1)
	c.RefillPerMin = max(c.RefillPerMin, 1)
	if c.Logger == nil {
		c.Logger = logger.Nop()
	}
	if c.Key == nil {
		trust := c.TrustProxy
		c.Key = func(r *http.Request) string { return utils.ClientIP(r, trust) }
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

type bucket struct {
	mu       sync.Mutex
	tokens   float64
	updated  time.Time
	lastSeen time.Time
}

// take refills the bucket for the time elapsed since the last call and spends
// one token if available. When refused it returns the seconds until the next
// token.
func (b *bucket) take(now time.Time, rate, capacity float64) (ok bool, remaining, retryAfter int) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if elapsed := now.Sub(b.updated).Seconds(); elapsed > 0 {
		b.tokens = math.Min(capacity, b.tokens+elapsed*rate)
		b.updated = now
	}
	b.lastSeen = now

	if b.tokens >= 1 {
		b.tokens--
		return true, int(b.tokens), 0
	}
	return false, 0, max(int(math.Ceil((1-b.tokens)/rate)), 1)
}

type limiter struct {
	cfg      RateLimitConfig
	rate     float64 // tokens per second
	capacity float64

	mu        sync.Mutex
	buckets   map[string]*bucket
	lastSweep time.Time
}

func newLimiter(cfg RateLimitConfig) *limiter {
	cfg.setDefaults()
	return &limiter{
		cfg:       cfg,
		rate:      float64(cfg.RefillPerMin) / 60.0,
		capacity:  float64(cfg.Burst),
		buckets:   make(map[string]*bucket, 64),
		lastSweep: cfg.Now(),
	}
}

// bucketFor returns the bucket of key, sweeping idle ones when due or when
// the table is full.
func (l *limiter) bucketFor(key string, now time.Time) *bucket {
	l.mu.Lock()
	defer l.mu.Unlock()

	full := l.cfg.MaxEntries > 0 && len(l.buckets) >= l.cfg.MaxEntries
	if full || now.Sub(l.lastSweep) >= l.cfg.SweepInterval {
		for k, b := range l.buckets {
			b.mu.Lock()
			idle := now.Sub(b.lastSeen) > l.cfg.IdleTTL
			b.mu.Unlock()
			if idle {
				delete(l.buckets, k)
			}
		}
		l.lastSweep = now
	}

	b := l.buckets[key]
	if b == nil {
		b = &bucket{tokens: l.capacity, updated: now, lastSeen: now}
		l.buckets[key] = b
	}
	return b
}

func (l *limiter) size() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.buckets)
}

// RateLimit answers 429 once a key has spent its burst.
func RateLimit(cfg RateLimitConfig) func(http.Handler) http.Handler {
	return newLimiter(cfg).middleware
}

func (l *limiter) middleware(next http.Handler) http.Handler {
	limit := strconv.Itoa(l.cfg.Burst)

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		now := l.cfg.Now()
		key := l.cfg.Key(r)

		ok, remaining, retry := l.bucketFor(key, now).take(now, l.rate, l.capacity)
		w.Header().Set("X-RateLimit-Limit", limit)
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		if !ok {
			l.cfg.Logger.Warn("rate limit exceeded",
				logger.String("key", key),
				logger.String("path", r.URL.Path),
				logger.Int("retry_after", retry))
			w.Header().Set("Retry-After", strconv.Itoa(retry))
			apierr.WriteStatus(w, http.StatusTooManyRequests, "too many attempts, retry later")
			return
		}
		next.ServeHTTP(w, r)
	})
}
