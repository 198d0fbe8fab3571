package httpmiddleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func limitedHandler(t *testing.T, maxRequests int) http.Handler {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	mw := RateLimitWithCleanup(ctx, RateLimitConfig{
		Max:    maxRequests,
		Window: time.Minute,
	})
	return mw(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
}

func getAs(handler http.Handler, remoteAddr string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
	req.RemoteAddr = remoteAddr
	w := httptest.NewRecorder()
	handler.ServeHTTP(w, req)
	return w
}

func TestRateLimitAllowsUpToMax(t *testing.T) {
	handler := limitedHandler(t, 3)

	for i := range 3 {
		w := getAs(handler, "192.168.1.1:12345")
		assert.Equal(t, http.StatusOK, w.Code, "request %d should pass", i+1)
		assert.Equal(t, "3", w.Header().Get("X-RateLimit-Limit"))
		assert.NotEmpty(t, w.Header().Get("X-RateLimit-Reset"))
	}

	w := getAs(handler, "192.168.1.1:12345")
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "0", w.Header().Get("X-RateLimit-Remaining"))
	assert.NotEmpty(t, w.Header().Get("Retry-After"))

	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "rate limit exceeded", body["message"])
}

func TestRateLimitKeysByClientIP(t *testing.T) {
	handler := limitedHandler(t, 1)

	assert.Equal(t, http.StatusOK, getAs(handler, "10.0.0.1:1234").Code)
	assert.Equal(t, http.StatusOK, getAs(handler, "10.0.0.2:1234").Code)
	// Same client again, different source port.
	assert.Equal(t, http.StatusTooManyRequests, getAs(handler, "10.0.0.1:5678").Code)
}

func TestRateLimitUsesForwardedFor(t *testing.T) {
	handler := limitedHandler(t, 1)

	send := func(remoteAddr string) int {
		req := httptest.NewRequest(http.MethodGet, "/api/orders", nil)
		req.RemoteAddr = remoteAddr
		req.Header.Set("X-Forwarded-For", "203.0.113.50, 70.41.3.18")
		w := httptest.NewRecorder()
		handler.ServeHTTP(w, req)
		return w.Code
	}

	// Behind a proxy the first forwarded IP is the key, not RemoteAddr.
	assert.Equal(t, http.StatusOK, send("192.168.1.1:4444"))
	assert.Equal(t, http.StatusTooManyRequests, send("192.168.1.2:5555"))
}

func TestRateLimiterEvictsExpiredEntries(t *testing.T) {
	rl := newRateLimiter(RateLimitConfig{Max: 1, Window: time.Minute})

	now := time.Now()
	_, _, allowed := rl.allow("client-a", now)
	require.True(t, allowed)

	rl.cleanup(now.Add(3 * time.Minute))
	assert.Empty(t, rl.entries)
}
