// Package middleware provides HTTP middleware components for the linelot API.
package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	burstCapacityMultiplier int = 2
	defaultMaxKeys          int = 10000
	defaultPerMinute        int = 30

	rateLimiterCleanupInterval = 5 * time.Minute
	rateLimiterIdleTimeout     = 1 * time.Hour

	thresholdMultiplier float64 = 0.8
	thresholdPercentage int     = 80

	secondsPerMinute = 60.0
)

type (
	// RateLimiter rate-limits incoming requests keyed by caller identity
	// (spec §4.I: "token bucket per (tenant_id OR client_ip)").
	//
	// Implementations may use in-memory token buckets (single-node
	// deployment) or a distributed store (multi-node deployment); the
	// interface enables swapping one in without touching the middleware.
	RateLimiter interface {
		// Allow reports whether a request identified by key should
		// proceed. key is the tenant ID for authenticated requests, the
		// client IP otherwise.
		Allow(key string) bool
	}

	// InMemoryRateLimiter implements RateLimiter with a per-key token
	// bucket (golang.org/x/time/rate), grounded on the teacher's
	// per-plugin limiter map with idle-eviction cleanup, generalized
	// from a three-tier (global/plugin/unauthenticated) scheme to the
	// single per-key scheme spec §4.I/§5 calls for.
	InMemoryRateLimiter struct {
		perKey map[string]*keyLimiter
		mu     sync.RWMutex

		rps   rate.Limit
		burst int

		cleanupTicker *time.Ticker
		done          chan struct{}

		cleanupInterval time.Duration
		idleTimeout     time.Duration
		maxKeys         int
	}

	keyLimiter struct {
		limiter    *rate.Limiter
		lastAccess time.Time
		mu         sync.Mutex
	}
)

// NewInMemoryRateLimiter builds a limiter enforcing cfg.RequestsPerMinute
// per key, with idle per-key buckets evicted after cfg.IdleTimeout.
func NewInMemoryRateLimiter(cfg *Config) *InMemoryRateLimiter {
	perMinute := cfg.RequestsPerMinute
	if perMinute <= 0 {
		perMinute = defaultPerMinute
	}

	rps := rate.Limit(float64(perMinute) / secondsPerMinute)

	burst := cfg.Burst
	if burst <= 0 {
		burst = int(float64(rps)*burstCapacityMultiplier) + 1
	}

	maxKeys := cfg.MaxKeys
	if maxKeys <= 0 {
		maxKeys = defaultMaxKeys
	}

	rl := &InMemoryRateLimiter{
		perKey:          make(map[string]*keyLimiter),
		rps:             rps,
		burst:           burst,
		done:            make(chan struct{}),
		cleanupInterval: cfg.CleanupInterval,
		idleTimeout:     cfg.IdleTimeout,
		maxKeys:         maxKeys,
	}

	rl.startCleanup()

	return rl
}

// Allow implements RateLimiter.
func (rl *InMemoryRateLimiter) Allow(key string) bool {
	rl.mu.RLock()
	kl, ok := rl.perKey[key]
	rl.mu.RUnlock()

	if !ok {
		rl.mu.Lock()

		if kl, ok = rl.perKey[key]; !ok {
			kl = &keyLimiter{limiter: rate.NewLimiter(rl.rps, rl.burst), lastAccess: time.Now()}
			rl.perKey[key] = kl

			current := len(rl.perKey)
			if threshold := int(float64(rl.maxKeys) * thresholdMultiplier); current >= threshold {
				slog.Warn("rate limiter approaching max keys limit",
					"current_keys", current,
					"max_keys", rl.maxKeys,
					"threshold_percent", thresholdPercentage)
			}
		}

		rl.mu.Unlock()
	}

	kl.mu.Lock()
	kl.lastAccess = time.Now()
	kl.mu.Unlock()

	return kl.limiter.Allow()
}

// Close stops the cleanup goroutine.
func (rl *InMemoryRateLimiter) Close() {
	if rl.cleanupTicker != nil {
		rl.cleanupTicker.Stop()
	}

	close(rl.done)
}

func (rl *InMemoryRateLimiter) startCleanup() {
	interval := rl.cleanupInterval
	if interval == 0 {
		interval = rateLimiterCleanupInterval
	}

	rl.cleanupTicker = time.NewTicker(interval)

	go func() {
		for {
			select {
			case <-rl.cleanupTicker.C:
				rl.cleanup()
			case <-rl.done:
				return
			}
		}
	}()
}

func (rl *InMemoryRateLimiter) cleanup() {
	idleTimeout := rl.idleTimeout
	if idleTimeout == 0 {
		idleTimeout = rateLimiterIdleTimeout
	}

	now := time.Now()

	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, kl := range rl.perKey {
		kl.mu.Lock()
		lastAccess := kl.lastAccess
		kl.mu.Unlock()

		if now.Sub(lastAccess) > idleTimeout {
			delete(rl.perKey, key)
		}
	}
}

// RateLimit returns a middleware enforcing limiter against the caller's
// tenant ID (when AuthenticateTenant resolved one) or client IP
// otherwise. Violations get a 429 RFC 7807 response (spec §7).
func RateLimit(limiter RateLimiter, logger *slog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := rateLimitKey(r)

			if !limiter.Allow(key) {
				correlationID := GetCorrelationID(r.Context())
				detail := "Rate limit exceeded. Please retry after some time."

				if err := writeRFC7807Error(w, r, http.StatusTooManyRequests, detail, correlationID); err != nil {
					logger.Error("failed to write rate limit response",
						slog.String("correlation_id", correlationID),
						slog.String("error", err.Error()))

					http.Error(w, detail, http.StatusTooManyRequests)
				}

				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// rateLimitKey prefers the authenticated tenant ID over client IP, per
// spec §4.I's "(tenant_id OR client_ip)" key.
func rateLimitKey(r *http.Request) string {
	if tenantCtx, ok := GetTenantContext(r.Context()); ok && tenantCtx.TenantID != "" {
		return "tenant:" + tenantCtx.TenantID
	}

	return "ip:" + clientIP(r)
}

func clientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}

	return r.RemoteAddr
}
