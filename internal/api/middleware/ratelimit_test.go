package middleware

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

const testTenant = "test-tenant"

// TestRateLimiter_PerKeyLimitEnforced verifies the per-key token bucket
// rejects requests past its burst once the bucket is exhausted.
func TestRateLimiter_PerKeyLimitEnforced(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := NewInMemoryRateLimiter(&Config{RequestsPerMinute: 300, Burst: 5})
	defer rl.Close()

	successCount := 0

	for i := 0; i < 6; i++ {
		if rl.Allow(testTenant) {
			successCount++
		}
	}

	if successCount != 5 {
		t.Errorf("expected 5 successful requests, got %d", successCount)
	}
}

// TestRateLimiter_KeyIsolation verifies rate limits for different keys
// are tracked independently.
func TestRateLimiter_KeyIsolation(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := NewInMemoryRateLimiter(&Config{RequestsPerMinute: 300, Burst: 5})
	defer rl.Close()

	tenant1 := "tenant-1"
	tenant2 := "tenant-2"

	for i := 0; i < 5; i++ {
		if !rl.Allow(tenant1) {
			t.Errorf("tenant1 request %d should succeed", i+1)
		}
	}

	if rl.Allow(tenant1) {
		t.Error("tenant1 should be rate limited")
	}

	for i := 0; i < 5; i++ {
		if !rl.Allow(tenant2) {
			t.Errorf("tenant2 request %d should succeed", i+1)
		}
	}
}

// TestRateLimiter_ConcurrentAccess verifies the rate limiter is safe for
// concurrent use by multiple goroutines.
func TestRateLimiter_ConcurrentAccess(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := NewInMemoryRateLimiter(&Config{RequestsPerMinute: 6000})
	defer rl.Close()

	var wg sync.WaitGroup

	for i := 0; i < 10; i++ {
		wg.Add(1)

		go func(key string) {
			defer wg.Done()

			for j := 0; j < 10; j++ {
				_ = rl.Allow(key)
			}
		}(fmt.Sprintf("tenant-%d", i))
	}

	wg.Wait()
}

// TestRateLimiter_MemoryCleanup verifies stale key limiters are removed
// after the idle timeout.
func TestRateLimiter_MemoryCleanup(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := NewInMemoryRateLimiter(&Config{RequestsPerMinute: 6000, IdleTimeout: 100 * time.Millisecond})
	defer rl.Close()

	key := "stale-tenant"
	if !rl.Allow(key) {
		t.Fatal("first request should succeed")
	}

	rl.mu.RLock()
	_, exists := rl.perKey[key]
	rl.mu.RUnlock()

	if !exists {
		t.Fatal("key limiter should exist after first request")
	}

	time.Sleep(150 * time.Millisecond)
	rl.cleanup()

	rl.mu.RLock()
	_, exists = rl.perKey[key]
	rl.mu.RUnlock()

	if exists {
		t.Error("stale key limiter should have been removed after cleanup")
	}
}

// TestRateLimiter_CleanupPreservesActiveKeys verifies cleanup only
// removes idle keys and preserves recently active ones.
func TestRateLimiter_CleanupPreservesActiveKeys(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := NewInMemoryRateLimiter(&Config{RequestsPerMinute: 6000, IdleTimeout: 100 * time.Millisecond})
	defer rl.Close()

	staleKey := "stale-tenant"
	activeKey := "active-tenant"

	if !rl.Allow(staleKey) {
		t.Fatal("stale key first request should succeed")
	}

	if !rl.Allow(activeKey) {
		t.Fatal("active key first request should succeed")
	}

	time.Sleep(150 * time.Millisecond)

	if !rl.Allow(activeKey) {
		t.Fatal("active key should still be allowed")
	}

	rl.cleanup()

	rl.mu.RLock()
	_, staleExists := rl.perKey[staleKey]
	_, activeExists := rl.perKey[activeKey]
	rl.mu.RUnlock()

	if staleExists {
		t.Error("stale key should have been removed")
	}

	if !activeExists {
		t.Error("active key should have been preserved")
	}
}

// TestRateLimitMiddleware_RequestAllowed verifies requests under the
// rate limit proceed to the next handler.
func TestRateLimitMiddleware_RequestAllowed(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := NewInMemoryRateLimiter(&Config{RequestsPerMinute: 6000})
	defer rl.Close()

	logger := slog.New(slog.DiscardHandler)

	nextCalled := false
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		nextCalled = true

		w.WriteHeader(http.StatusOK)
	})

	handler := RateLimit(rl, logger)(nextHandler)

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if !nextCalled {
		t.Error("expected next handler to be called when rate limit not exceeded")
	}

	if rec.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", rec.Code)
	}
}

// TestRateLimitMiddleware_RequestBlocked verifies requests exceeding the
// rate limit are rejected with 429.
func TestRateLimitMiddleware_RequestBlocked(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := NewInMemoryRateLimiter(&Config{RequestsPerMinute: 60, Burst: 1})
	defer rl.Close()

	logger := slog.New(slog.DiscardHandler)

	nextCalled := false
	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		nextCalled = true

		w.WriteHeader(http.StatusOK)
	})

	handler := RateLimit(rl, logger)(nextHandler)

	req1 := httptest.NewRequest(http.MethodGet, "/test", nil)
	req1.RemoteAddr = "10.0.0.1:1234"
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req1)

	if rec1.Code != http.StatusOK {
		t.Errorf("first request should succeed, got status %d", rec1.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/test", nil)
	req2.RemoteAddr = "10.0.0.1:1234"
	rec2 := httptest.NewRecorder()
	nextCalled = false

	handler.ServeHTTP(rec2, req2)

	if nextCalled {
		t.Error("expected next handler NOT to be called when rate limit exceeded")
	}

	if rec2.Code != http.StatusTooManyRequests {
		t.Errorf("expected status 429, got %d", rec2.Code)
	}
}

// TestRateLimitMiddleware_RFC7807ErrorFormat verifies rate limit errors
// return RFC 7807 compliant responses.
func TestRateLimitMiddleware_RFC7807ErrorFormat(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := NewInMemoryRateLimiter(&Config{RequestsPerMinute: 60, Burst: 1})
	defer rl.Close()

	logger := slog.New(slog.DiscardHandler)

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := RateLimit(rl, logger)(nextHandler)

	req1 := httptest.NewRequest(http.MethodGet, "/test", nil)
	req1.RemoteAddr = "10.0.0.2:1234"
	rec1 := httptest.NewRecorder()
	handler.ServeHTTP(rec1, req1)

	req2 := httptest.NewRequest(http.MethodGet, "/import/jobs", nil)
	req2.RemoteAddr = "10.0.0.2:1234"
	rec2 := httptest.NewRecorder()
	handler.ServeHTTP(rec2, req2)

	contentType := rec2.Header().Get("Content-Type")
	if contentType != contentTypeProblemJSON {
		t.Errorf("expected Content-Type %s, got %s", contentTypeProblemJSON, contentType)
	}

	var problem map[string]interface{}
	if err := json.Unmarshal(rec2.Body.Bytes(), &problem); err != nil {
		t.Fatalf("failed to parse error response: %v", err)
	}

	if problem["type"] != "https://linelot.dev/problems/429" {
		t.Errorf("expected type https://linelot.dev/problems/429, got %v", problem["type"])
	}

	if problem["title"] != "Too Many Requests" {
		t.Errorf("expected title 'Too Many Requests', got %v", problem["title"])
	}

	if problem["status"] != float64(429) {
		t.Errorf("expected status 429, got %v", problem["status"])
	}

	if problem["instance"] != "/import/jobs" {
		t.Errorf("expected instance /import/jobs, got %v", problem["instance"])
	}
}

// TestRateLimitMiddleware_TenantVsIP verifies that a rate-limited IP does
// not block a differently-keyed authenticated tenant, and vice versa.
func TestRateLimitMiddleware_TenantVsIP(t *testing.T) {
	if !testing.Short() {
		t.Skip("skipping unit test in non-short mode")
	}

	rl := NewInMemoryRateLimiter(&Config{RequestsPerMinute: 60, Burst: 2})
	defer rl.Close()

	logger := slog.New(slog.DiscardHandler)

	nextHandler := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	handler := RateLimit(rl, logger)(nextHandler)

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "10.0.0.3:1234"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("unauthenticated request %d should succeed, got status %d", i+1, rec.Code)
		}
	}

	req := httptest.NewRequest(http.MethodGet, "/test", nil)
	req.RemoteAddr = "10.0.0.3:1234"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Errorf("3rd unauthenticated request should be rate limited, got status %d", rec.Code)
	}

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/test", nil)
		req.RemoteAddr = "10.0.0.3:1234"
		ctx := SetTenantContext(req.Context(), TenantContext{TenantID: testTenant})
		req = req.WithContext(ctx)

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Errorf("authenticated request %d should succeed, got status %d", i+1, rec.Code)
		}
	}
}
