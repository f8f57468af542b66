package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Recorder owns every collector of the service on a private registry.
// A nil *Recorder is valid and records nothing (METRICS_ENABLED=false).
// ⭐ SSOT: 모든 메트릭은 여기서만 정의
type Recorder struct {
	registry *prometheus.Registry

	httpRequests  *prometheus.CounterVec
	httpDuration  *prometheus.HistogramVec
	httpInFlight  *prometheus.GaugeVec
	rateLimited   *prometheus.CounterVec
	cacheLookups  *prometheus.CounterVec
	auxFallbacks  *prometheus.CounterVec
	orderingFixes *prometheus.CounterVec
	buildDuration *prometheus.HistogramVec
	timelineSize  prometheus.Histogram
	breakerState  *prometheus.GaugeVec
	jobRuns       *prometheus.CounterVec
}

// New creates a recorder with Go runtime and process collectors attached
func New() *Recorder {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	f := promauto.With(reg)

	return &Recorder{
		registry: reg,
		httpRequests: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mip_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"route", "method", "status"}),
		httpDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mip_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		}, []string{"route", "method", "class"}),
		httpInFlight: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mip_http_in_flight_requests",
			Help: "Current number of in-flight HTTP requests",
		}, []string{"route"}),
		rateLimited: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mip_http_rate_limited_total",
			Help: "Requests rejected by the rate limiter",
		}, []string{"backend"}),
		cacheLookups: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mip_training_cache_lookups_total",
			Help: "Training response cache lookups by result",
		}, []string{"endpoint", "result"}),
		auxFallbacks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mip_training_aux_fallbacks_total",
			Help: "Auxiliary warehouse lookups that fell back to defaults",
		}, []string{"lookup"}),
		orderingFixes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mip_training_outcome_ordering_anomalies_total",
			Help: "Outcome series that arrived unsorted or with inconsistent counts",
		}, []string{"kind"}),
		buildDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "mip_training_build_duration_seconds",
			Help:    "Time spent computing training responses",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint"}),
		timelineSize: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "mip_training_timeline_outcomes",
			Help:    "Evaluated outcomes per timeline request",
			Buckets: []float64{0, 1, 5, 10, 25, 50, 100, 250, 500, 1000, 5000},
		}),
		breakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Name: "mip_breaker_state",
			Help: "Circuit breaker state (0 closed, 1 half-open, 2 open)",
		}, []string{"name"}),
		jobRuns: f.NewCounterVec(prometheus.CounterOpts{
			Name: "mip_scheduler_job_runs_total",
			Help: "Scheduled job runs by outcome",
		}, []string{"job", "status"}),
	}
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// Registry exposes the registry for tests and extra collectors
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// ============================================================================
// HTTP
// ============================================================================

// HTTPStarted marks a request in flight; call the returned func when done
func (r *Recorder) HTTPStarted(route string) func() {
	if r == nil {
		return func() {}
	}
	g := r.httpInFlight.WithLabelValues(route)
	g.Inc()
	return g.Dec
}

// RecordHTTP records one finished request
func (r *Recorder) RecordHTTP(route, method, status, class string, seconds float64) {
	if r == nil {
		return
	}
	r.httpRequests.WithLabelValues(route, method, status).Inc()
	r.httpDuration.WithLabelValues(route, method, class).Observe(seconds)
}

// RecordRateLimited counts a rejected request
func (r *Recorder) RecordRateLimited(backend string) {
	if r == nil {
		return
	}
	r.rateLimited.WithLabelValues(backend).Inc()
}

// ============================================================================
// Training
// ============================================================================

// RecordCacheLookup records a cache hit or miss for an endpoint
func (r *Recorder) RecordCacheLookup(endpoint string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(endpoint, result).Inc()
}

// RecordAuxFallback records an auxiliary lookup replaced by its default
func (r *Recorder) RecordAuxFallback(lookup string) {
	if r == nil {
		return
	}
	r.auxFallbacks.WithLabelValues(lookup).Inc()
}

// RecordOrderingAnomaly records an outcome series that needed repair
func (r *Recorder) RecordOrderingAnomaly(kind string) {
	if r == nil {
		return
	}
	r.orderingFixes.WithLabelValues(kind).Inc()
}

// ObserveBuild records how long an endpoint spent computing its response
func (r *Recorder) ObserveBuild(endpoint string, seconds float64) {
	if r == nil {
		return
	}
	r.buildDuration.WithLabelValues(endpoint).Observe(seconds)
}

// ObserveTimelineSize records the untruncated outcome count of a timeline
func (r *Recorder) ObserveTimelineSize(n int) {
	if r == nil {
		return
	}
	r.timelineSize.Observe(float64(n))
}

// ============================================================================
// Infrastructure
// ============================================================================

// SetBreakerState publishes a breaker state as 0/1/2
func (r *Recorder) SetBreakerState(name string, state int) {
	if r == nil {
		return
	}
	r.breakerState.WithLabelValues(name).Set(float64(state))
}

// RecordJobRun records a scheduler job outcome ("success" or "failed")
func (r *Recorder) RecordJobRun(job, status string) {
	if r == nil {
		return
	}
	r.jobRuns.WithLabelValues(job, status).Inc()
}

// StatusClass buckets an HTTP status code as 2xx/4xx/...
func StatusClass(code int) string {
	switch {
	case code >= 100 && code < 200:
		return "1xx"
	case code >= 200 && code < 300:
		return "2xx"
	case code >= 300 && code < 400:
		return "3xx"
	case code >= 400 && code < 500:
		return "4xx"
	default:
		return "5xx"
	}
}
