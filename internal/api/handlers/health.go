package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/jebjergk/MIP-sub000/pkg/logger"
)

// Pinger is anything whose connectivity can be checked
type Pinger interface {
	Ping(ctx context.Context) error
}

// HealthHandler reports liveness plus warehouse and redis reachability
type HealthHandler struct {
	warehouse Pinger
	cache     Pinger // nil or a disabled client = "disabled"
	cacheOn   bool
	version   string
	logger    *logger.Logger
}

// NewHealthHandler creates a health handler. cache may be nil.
func NewHealthHandler(warehouse Pinger, cache Pinger, cacheEnabled bool, version string, log *logger.Logger) *HealthHandler {
	return &HealthHandler{
		warehouse: warehouse,
		cache:     cache,
		cacheOn:   cacheEnabled && cache != nil,
		version:   version,
		logger:    log,
	}
}

// HealthResponse is the /health body
type HealthResponse struct {
	Status  string            `json:"status"`
	Service string            `json:"service"`
	Version string            `json:"version,omitempty"`
	Checks  map[string]string `json:"checks"`
}

// Get answers 200 when the warehouse is reachable, 503 otherwise.
// Redis is reported but never fails the check.
// GET /health
func (h *HealthHandler) Get(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
	defer cancel()

	resp := HealthResponse{
		Status:  "ok",
		Service: "mip-api",
		Version: h.version,
		Checks:  map[string]string{},
	}
	status := http.StatusOK

	if h.warehouse == nil {
		resp.Checks["warehouse"] = "not configured"
	} else if err := h.warehouse.Ping(ctx); err != nil {
		// 드라이버 에러는 로그에만 (호스트/계정 노출 방지)
		h.logger.WithContext(r.Context()).WithError(err).Warn("Health check: warehouse ping failed")
		resp.Checks["warehouse"] = "error"
		resp.Status = "degraded"
		status = http.StatusServiceUnavailable
	} else {
		resp.Checks["warehouse"] = "ok"
	}

	if !h.cacheOn {
		resp.Checks["redis"] = "disabled"
	} else if err := h.cache.Ping(ctx); err != nil {
		h.logger.WithContext(r.Context()).WithError(err).Warn("Health check: redis ping failed")
		resp.Checks["redis"] = "unreachable"
	} else {
		resp.Checks["redis"] = "ok"
	}

	respondJSON(w, status, resp)
}
