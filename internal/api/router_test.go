package api

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jebjergk/MIP-sub000/internal/api/handlers"
	"github.com/jebjergk/MIP-sub000/internal/contracts"
	"github.com/jebjergk/MIP-sub000/internal/training"
	"github.com/jebjergk/MIP-sub000/pkg/logger"
	"github.com/jebjergk/MIP-sub000/pkg/metrics"
)

type stubTraining struct{}

func (stubTraining) Status(context.Context, training.StatusQuery) (*contracts.TrainingStatusReport, error) {
	return &contracts.TrainingStatusReport{MinSignals: 40, Rows: []contracts.TrainingStatus{}}, nil
}

func (stubTraining) Timeline(context.Context, training.TimelineQuery) (*contracts.Timeline, error) {
	return &contracts.Timeline{Series: []contracts.TimelinePoint{}, Narrative: []string{}}, nil
}

type okPinger struct{}

func (okPinger) Ping(context.Context) error { return nil }

func newTestRouter(rec *metrics.Recorder, limiter *RateLimiter) http.Handler {
	log := logger.Nop()
	return NewRouter(RouterDeps{
		Training: handlers.NewTrainingHandler(stubTraining{}, log),
		Health:   handlers.NewHealthHandler(okPinger{}, nil, false, "test", log),
		Metrics:  rec,
		Limiter:  limiter,
		Logger:   log,
	})
}

func do(h http.Handler, target string, header map[string]string) *httptest.ResponseRecorder {
	return doFrom(h, "192.0.2.1:1234", target, header)
}

func doFrom(h http.Handler, remoteAddr, target string, header map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	req.RemoteAddr = remoteAddr
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRouterRoutes(t *testing.T) {
	r := newTestRouter(nil, nil)

	assert.Equal(t, http.StatusOK, do(r, "/health", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, "/api/training/status", nil).Code)
	assert.Equal(t, http.StatusOK, do(r, "/api/training/timeline?symbol=AAPL&market_type=STOCK&pattern_id=1", nil).Code)
	assert.Equal(t, http.StatusNotFound, do(r, "/metrics", nil).Code, "metrics disabled")
	assert.Equal(t, http.StatusNotFound, do(r, "/api/unknown", nil).Code)
}

func TestRouterRequestID(t *testing.T) {
	r := newTestRouter(nil, nil)

	generated := do(r, "/health", nil)
	assert.Len(t, generated.Header().Get(RequestIDHeader), 36)

	echoed := do(r, "/health", map[string]string{RequestIDHeader: "abc-123"})
	assert.Equal(t, "abc-123", echoed.Header().Get(RequestIDHeader))
}

func TestRouterExposesMetrics(t *testing.T) {
	rec := metrics.New()
	r := newTestRouter(rec, nil)

	require.Equal(t, http.StatusOK, do(r, "/api/training/status", nil).Code)

	scrape := do(r, "/metrics", nil)
	require.Equal(t, http.StatusOK, scrape.Code)
	body, err := io.ReadAll(scrape.Body)
	require.NoError(t, err)

	assert.Contains(t, string(body), `mip_http_requests_total{method="GET",route="/api/training/status",status="200"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}

func newTestLimiter(t *testing.T, rec *metrics.Recorder, trusted ...string) *RateLimiter {
	t.Helper()
	limiter, err := NewRateLimiter(nil, RateLimitOptions{
		RPS:            1,
		Burst:          1,
		TrustedProxies: trusted,
		MaxClients:     100,
		IdleTTL:        time.Minute,
	}, rec, logger.Nop())
	require.NoError(t, err)
	return limiter
}

func TestRouterRateLimitsAPIOnly(t *testing.T) {
	rec := metrics.New()
	r := newTestRouter(rec, newTestLimiter(t, rec))

	assert.Equal(t, http.StatusOK, doFrom(r, "198.51.100.1:5000", "/api/training/status", nil).Code)

	limited := doFrom(r, "198.51.100.1:5001", "/api/training/status", nil)
	assert.Equal(t, http.StatusTooManyRequests, limited.Code)
	assert.Equal(t, "1", limited.Header().Get("Retry-After"))

	// another client has its own bucket
	assert.Equal(t, http.StatusOK, doFrom(r, "198.51.100.2:5000", "/api/training/status", nil).Code)

	// health is outside the limited subrouter
	assert.Equal(t, http.StatusOK, doFrom(r, "198.51.100.1:5002", "/health", nil).Code)
}

func TestRouterIgnoresForwardedForFromUntrustedPeer(t *testing.T) {
	limiter := newTestLimiter(t, nil)
	r := newTestRouter(nil, limiter)

	allowed := 0
	for i := 0; i < 50; i++ {
		hdr := map[string]string{"X-Forwarded-For": fmt.Sprintf("203.0.113.%d", i)}
		if doFrom(r, "198.51.100.7:4000", "/api/training/status", hdr).Code == http.StatusOK {
			allowed++
		}
	}

	assert.Equal(t, 1, allowed, "rotating X-Forwarded-For must not mint new buckets")
	assert.Equal(t, 1, limiter.LocalClients())
}

func TestRouterHonoursForwardedForBehindTrustedProxy(t *testing.T) {
	r := newTestRouter(nil, newTestLimiter(t, nil, "10.0.0.0/8"))
	proxy := "10.1.2.3:443"

	a := map[string]string{"X-Forwarded-For": "203.0.113.5, 10.0.0.9"}
	b := map[string]string{"X-Forwarded-For": "203.0.113.6"}

	assert.Equal(t, http.StatusOK, doFrom(r, proxy, "/api/training/status", a).Code)
	assert.Equal(t, http.StatusTooManyRequests, doFrom(r, proxy, "/api/training/status", a).Code)
	assert.Equal(t, http.StatusOK, doFrom(r, proxy, "/api/training/status", b).Code)
}

func TestLocalLimitersAreBounded(t *testing.T) {
	limiter, err := NewRateLimiter(nil, RateLimitOptions{
		RPS: 1, Burst: 1, MaxClients: 10, IdleTTL: time.Minute,
	}, nil, logger.Nop())
	require.NoError(t, err)

	for i := 0; i < 1000; i++ {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = fmt.Sprintf("198.51.%d.%d:80", i/256, i%256)
		limiter.Allow(req)
	}
	assert.Equal(t, 10, limiter.LocalClients())
}

func TestNewRateLimiterRejectsBadProxy(t *testing.T) {
	_, err := NewRateLimiter(nil, RateLimitOptions{
		RPS: 1, Burst: 1, TrustedProxies: []string{"not-an-ip"}, MaxClients: 1, IdleTTL: time.Second,
	}, nil, logger.Nop())
	assert.Error(t, err)
}

func TestRecoveryMiddleware(t *testing.T) {
	h := recoveryMiddleware(logger.Nop())(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	}))

	rec := do(h, "/x", nil)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.JSONEq(t, `{"error":"Internal server error"}`, rec.Body.String())
}

func TestClientKey(t *testing.T) {
	l := newTestLimiter(t, nil, "10.0.0.0/8", "192.0.2.10")

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "198.51.100.3:5555"
	req.Header.Set("X-Forwarded-For", "203.0.113.5")
	assert.Equal(t, "198.51.100.3", l.clientKey(req), "untrusted peer")

	req.RemoteAddr = "192.0.2.10:5555"
	assert.Equal(t, "203.0.113.5", l.clientKey(req))

	req.Header.Set("X-Forwarded-For", "1.1.1.1, 203.0.113.5, 10.0.0.2")
	assert.Equal(t, "203.0.113.5", l.clientKey(req), "rightmost untrusted hop")

	req.Header.Set("X-Forwarded-For", "10.0.0.2")
	assert.Equal(t, "192.0.2.10", l.clientKey(req), "only proxies in the chain")
}
