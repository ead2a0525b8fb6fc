package api

import (
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/axonops/fact-resolver/internal/config"
	"github.com/axonops/fact-resolver/internal/metrics"
)

// RateLimiter implements token bucket rate limiting with a per-minute refill.
type RateLimiter struct {
	config  config.RateLimitConfig
	metrics *metrics.Metrics
	mu      sync.Mutex
	global  *tokenBucket
	clients map[string]*tokenBucket
}

// tokenBucket implements the token bucket algorithm.
type tokenBucket struct {
	tokens     float64
	maxTokens  float64
	refillRate float64 // tokens per second
	lastRefill time.Time
	mu         sync.Mutex
}

// NewRateLimiter creates a new rate limiter. The configured requests per
// minute is both the bucket capacity and the refill budget per minute.
func NewRateLimiter(cfg config.RateLimitConfig, m *metrics.Metrics) *RateLimiter {
	rl := &RateLimiter{
		config:  cfg,
		metrics: m,
		clients: make(map[string]*tokenBucket),
	}

	if cfg.Enabled && !cfg.PerClient {
		rl.global = newTokenBucket(float64(cfg.RequestsPerMinute), float64(cfg.RequestsPerMinute)/60.0)
	}

	return rl
}

// newTokenBucket creates a new token bucket.
func newTokenBucket(maxTokens, refillRate float64) *tokenBucket {
	return &tokenBucket{
		tokens:     maxTokens,
		maxTokens:  maxTokens,
		refillRate: refillRate,
		lastRefill: time.Now(),
	}
}

// allow checks if a request is allowed and consumes a token if so.
func (tb *tokenBucket) allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	// Refill tokens
	now := time.Now()
	elapsed := now.Sub(tb.lastRefill).Seconds()
	tb.tokens += elapsed * tb.refillRate
	if tb.tokens > tb.maxTokens {
		tb.tokens = tb.maxTokens
	}
	tb.lastRefill = now

	// Check and consume token
	if tb.tokens >= 1 {
		tb.tokens--
		return true
	}

	return false
}

// remaining returns the number of remaining tokens.
func (tb *tokenBucket) remaining() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	return int(tb.tokens)
}

// Middleware returns HTTP middleware for rate limiting.
func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.config.Enabled {
			next.ServeHTTP(w, r)
			return
		}

		var bucket *tokenBucket
		key := "global"
		if rl.config.PerClient {
			key = getClientIP(r)
			bucket = rl.getClientBucket(key)
		} else {
			bucket = rl.global
		}

		// Set rate limit headers
		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.config.RequestsPerMinute))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(bucket.remaining()))

		if !bucket.allow() {
			if rl.metrics != nil {
				rl.metrics.RecordRateLimitHit(key)
			}
			w.Header().Set("Retry-After", "60")
			http.Error(w, "Rate limit exceeded", http.StatusTooManyRequests)
			return
		}

		next.ServeHTTP(w, r)
	})
}

// getClientBucket returns or creates the bucket for a client.
func (rl *RateLimiter) getClientBucket(key string) *tokenBucket {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	bucket, ok := rl.clients[key]
	if !ok {
		bucket = newTokenBucket(float64(rl.config.RequestsPerMinute), float64(rl.config.RequestsPerMinute)/60.0)
		rl.clients[key] = bucket
	}
	return bucket
}

// getClientIP extracts the client IP from the request.
func getClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if i := strings.IndexByte(xff, ','); i >= 0 {
			return strings.TrimSpace(xff[:i])
		}
		return strings.TrimSpace(xff)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
