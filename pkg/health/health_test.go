package health

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-faster/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func serve(t *testing.T, endpoint http.HandlerFunc, path string) (int, statusResponse) {
	t.Helper()

	w := httptest.NewRecorder()
	endpoint(w, httptest.NewRequest(http.MethodGet, path, nil))

	var body statusResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return w.Code, body
}

func TestLiveEndpoint(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, func(_ context.Context) error {
		return nil
	})

	code, body := serve(t, h.LiveEndpoint, "/livez")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok", body.Status)
}

func TestLiveEndpointFailureThreshold(t *testing.T) {
	h := New()
	h.AddLivenessCheck("postgres", time.Second, func(_ context.Context) error {
		return errors.New("connection refused")
	})
	c := h.livenessChecks[0]
	ctx := context.Background()

	// Checks flip unhealthy only after 3 consecutive failures.
	c.run(ctx)
	c.run(ctx)
	code, _ := serve(t, h.LiveEndpoint, "/livez")
	assert.Equal(t, http.StatusOK, code)

	c.run(ctx)
	code, body := serve(t, h.LiveEndpoint, "/livez")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Equal(t, "unhealthy", body.Status)
	assert.Equal(t, "connection refused", body.Checks["postgres"])
}

func TestCheckRecovers(t *testing.T) {
	failing := true
	h := New()
	h.AddLivenessCheck("flaky", time.Second, func(_ context.Context) error {
		if failing {
			return errors.New("down")
		}
		return nil
	})
	c := h.livenessChecks[0]
	ctx := context.Background()

	c.run(ctx)
	c.run(ctx)
	c.run(ctx)
	assert.False(t, c.isHealthy())

	failing = false
	c.run(ctx)
	assert.True(t, c.isHealthy())
}

func TestReadyEndpointGatedOnSetReady(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, func(_ context.Context) error {
		return nil
	})

	// Not ready until the app flips the gate after startup.
	code, body := serve(t, h.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "_readiness")

	h.SetReady(true)
	code, _ = serve(t, h.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusOK, code)

	h.SetReady(false)
	code, _ = serve(t, h.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
}

func TestReadyEndpointReportsFailingCheck(t *testing.T) {
	h := New()
	h.AddReadinessCheck("postgres", time.Second, func(_ context.Context) error {
		return nil
	})
	h.AddReadinessCheck("broker", time.Second, func(_ context.Context) error {
		return errors.New("unreachable")
	})
	h.SetReady(true)

	ctx := context.Background()
	for range 3 {
		h.readinessChecks[1].run(ctx)
	}

	code, body := serve(t, h.ReadyEndpoint, "/readyz")
	assert.Equal(t, http.StatusServiceUnavailable, code)
	assert.Contains(t, body.Checks, "broker")
	assert.NotContains(t, body.Checks, "postgres")
}

func TestStartStop(t *testing.T) {
	h := New()
	h.AddLivenessCheck("goroutines", time.Second, GoroutineCountCheck(100000))

	h.Start(context.Background(), 10*time.Millisecond)
	time.Sleep(30 * time.Millisecond)

	// Stop is idempotent.
	h.Stop()
	h.Stop()

	assert.True(t, h.livenessChecks[0].isHealthy())
}

func TestGoroutineCountCheck(t *testing.T) {
	assert.NoError(t, GoroutineCountCheck(100000)(context.Background()))

	err := GoroutineCountCheck(0)(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeds threshold")
}
