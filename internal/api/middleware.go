package api

import (
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/hashicorp/golang-lru/v2/expirable"
	"golang.org/x/time/rate"

	"github.com/jebjergk/MIP-sub000/pkg/logger"
	"github.com/jebjergk/MIP-sub000/pkg/metrics"
	"github.com/jebjergk/MIP-sub000/pkg/redis"
)

// RequestIDHeader carries the request id in and out
const RequestIDHeader = "X-Request-ID"

// statusRecorder captures the status code and body size
type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int
}

func (w *statusRecorder) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

func recorderFor(w http.ResponseWriter) *statusRecorder {
	if rec, ok := w.(*statusRecorder); ok {
		return rec
	}
	return &statusRecorder{ResponseWriter: w, status: http.StatusOK}
}

// routeLabel prefers the matched mux template to keep label cardinality low
func routeLabel(r *http.Request) string {
	if route := mux.CurrentRoute(r); route != nil {
		if tpl, err := route.GetPathTemplate(); err == nil {
			return tpl
		}
	}
	return "unmatched"
}

// requestIDMiddleware reuses an incoming X-Request-ID or generates one
func requestIDMiddleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id := r.Header.Get(RequestIDHeader)
			if id == "" || len(id) > 64 {
				id = uuid.New().String()
			}
			w.Header().Set(RequestIDHeader, id)
			next.ServeHTTP(w, r.WithContext(logger.ContextWithRequestID(r.Context(), id)))
		})
	}
}

// loggingMiddleware logs HTTP requests
func loggingMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			rec := recorderFor(w)

			next.ServeHTTP(rec, r)

			entry := log.WithContext(r.Context()).WithFields(map[string]interface{}{
				"method":   r.Method,
				"path":     r.URL.Path,
				"query":    r.URL.RawQuery,
				"status":   rec.status,
				"bytes":    rec.written,
				"duration": time.Since(start).String(),
			})
			switch {
			case rec.status >= 500:
				entry.Error("HTTP request failed")
			case rec.status >= 400:
				entry.Warn("HTTP request rejected")
			default:
				entry.Debug("HTTP request")
			}
		})
	}
}

// recoveryMiddleware recovers from panics
func recoveryMiddleware(log *logger.Logger) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if err := recover(); err != nil {
					log.WithContext(r.Context()).WithFields(map[string]interface{}{
						"error": err,
						"path":  r.URL.Path,
					}).Error("Panic recovered")

					writeJSONError(w, http.StatusInternalServerError, "Internal server error")
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}

// metricsMiddleware records request count, latency and in-flight gauge
func metricsMiddleware(rec *metrics.Recorder) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			route := routeLabel(r)
			done := rec.HTTPStarted(route)
			start := time.Now()
			sr := recorderFor(w)

			next.ServeHTTP(sr, r)

			done()
			rec.RecordHTTP(route, r.Method, strconv.Itoa(sr.status), metrics.StatusClass(sr.status), time.Since(start).Seconds())
		})
	}
}

// =============================================================================
// Rate limiting
// =============================================================================

// RateLimitOptions configures the API limiter
type RateLimitOptions struct {
	RPS            float64
	Burst          int
	TrustedProxies []string // CIDRs or bare IPs allowed to set X-Forwarded-For
	MaxClients     int
	IdleTTL        time.Duration
}

// RateLimiter enforces per-client limits: through redis when it is enabled
// (shared across replicas), otherwise with in-process token buckets.
// Local buckets live in a bounded LRU and expire after IdleTTL.
type RateLimiter struct {
	shared  *redis.RateLimiter
	rps     float64
	burst   int
	trusted []*net.IPNet
	metrics *metrics.Recorder
	log     *logger.Logger

	mu    sync.Mutex
	local *expirable.LRU[string, *rate.Limiter]
}

// NewRateLimiter creates a limiter. shared may be nil.
func NewRateLimiter(shared *redis.RateLimiter, opts RateLimitOptions, rec *metrics.Recorder, log *logger.Logger) (*RateLimiter, error) {
	trusted, err := parseTrustedProxies(opts.TrustedProxies)
	if err != nil {
		return nil, err
	}
	if opts.MaxClients <= 0 || opts.IdleTTL <= 0 {
		return nil, fmt.Errorf("rate limiter needs MaxClients > 0 and IdleTTL > 0")
	}

	return &RateLimiter{
		shared:  shared,
		rps:     opts.RPS,
		burst:   opts.Burst,
		trusted: trusted,
		metrics: rec,
		log:     log,
		local:   expirable.NewLRU[string, *rate.Limiter](opts.MaxClients, nil, opts.IdleTTL),
	}, nil
}

// Allow reports whether the client may proceed and which backend decided
func (l *RateLimiter) Allow(r *http.Request) (bool, string) {
	key := l.clientKey(r)

	if l.shared != nil && l.shared.Enabled() {
		allowed, _, err := l.shared.Allow(r.Context(), redis.APIRateLimit(key, l.rps, l.burst))
		if err == nil {
			return allowed, "redis"
		}
		l.log.WithError(err).Warn("shared rate limit failed, using local limiter")
	}

	return l.localLimiter(key).Allow(), "local"
}

// LocalClients returns the number of tracked local buckets
func (l *RateLimiter) LocalClients() int {
	return l.local.Len()
}

func (l *RateLimiter) localLimiter(key string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	lim, ok := l.local.Get(key)
	if !ok {
		lim = rate.NewLimiter(rate.Limit(l.rps), l.burst)
		l.local.Add(key, lim)
	}
	return lim
}

// Middleware rejects over-limit requests with 429
func (l *RateLimiter) Middleware() mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			allowed, backend := l.Allow(r)
			if !allowed {
				l.metrics.RecordRateLimited(backend)
				w.Header().Set("Retry-After", "1")
				writeJSONError(w, http.StatusTooManyRequests, "Rate limit exceeded")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// clientKey is the peer address. X-Forwarded-For is read only when the peer
// is a trusted proxy, and then the rightmost untrusted hop wins.
func (l *RateLimiter) clientKey(r *http.Request) string {
	peer := remoteHost(r)
	if !l.isTrusted(peer) {
		return peer
	}

	hops := strings.Split(r.Header.Get("X-Forwarded-For"), ",")
	for i := len(hops) - 1; i >= 0; i-- {
		hop := strings.TrimSpace(hops[i])
		if hop == "" {
			continue
		}
		if !l.isTrusted(hop) {
			return hop
		}
	}
	return peer
}

func (l *RateLimiter) isTrusted(host string) bool {
	ip := net.ParseIP(host)
	if ip == nil {
		return false
	}
	for _, n := range l.trusted {
		if n.Contains(ip) {
			return true
		}
	}
	return false
}

func remoteHost(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func parseTrustedProxies(entries []string) ([]*net.IPNet, error) {
	nets := make([]*net.IPNet, 0, len(entries))
	for _, e := range entries {
		if !strings.Contains(e, "/") {
			ip := net.ParseIP(e)
			if ip == nil {
				return nil, fmt.Errorf("invalid trusted proxy %q", e)
			}
			bits := 128
			if ip.To4() != nil {
				ip, bits = ip.To4(), 32
			}
			nets = append(nets, &net.IPNet{IP: ip, Mask: net.CIDRMask(bits, bits)})
			continue
		}
		_, n, err := net.ParseCIDR(e)
		if err != nil {
			return nil, fmt.Errorf("invalid trusted proxy %q: %w", e, err)
		}
		nets = append(nets, n)
	}
	return nets, nil
}

func writeJSONError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error": message,
	})
}
