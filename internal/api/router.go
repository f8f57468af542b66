package api

import (
	"net/http"

	"github.com/gorilla/mux"

	"github.com/jebjergk/MIP-sub000/internal/api/handlers"
	"github.com/jebjergk/MIP-sub000/pkg/logger"
	"github.com/jebjergk/MIP-sub000/pkg/metrics"
)

// RouterDeps carries everything the router wires together.
// Metrics and Limiter may be nil.
type RouterDeps struct {
	Training *handlers.TrainingHandler
	Health   *handlers.HealthHandler
	Metrics  *metrics.Recorder
	Limiter  *RateLimiter
	Logger   *logger.Logger
}

// NewRouter creates and configures the HTTP router
// ⭐ SSOT: 라우팅 설정은 이 함수에서만
func NewRouter(deps RouterDeps) http.Handler {
	r := mux.NewRouter()

	// Health check
	r.HandleFunc("/health", deps.Health.Get).Methods(http.MethodGet)

	// Prometheus scrape endpoint
	if deps.Metrics != nil {
		r.Handle("/metrics", deps.Metrics.Handler()).Methods(http.MethodGet)
	}

	// API
	api := r.PathPrefix("/api").Subrouter()

	// Training endpoints
	api.HandleFunc("/training/status", deps.Training.GetStatus).Methods(http.MethodGet)
	api.HandleFunc("/training/timeline", deps.Training.GetTimeline).Methods(http.MethodGet)

	if deps.Limiter != nil {
		api.Use(deps.Limiter.Middleware())
	}

	// Apply middleware (outermost first)
	r.Use(requestIDMiddleware())
	r.Use(recoveryMiddleware(deps.Logger))
	r.Use(loggingMiddleware(deps.Logger))
	r.Use(metricsMiddleware(deps.Metrics))

	return r
}
