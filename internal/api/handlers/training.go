package handlers

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/jebjergk/MIP-sub000/internal/contracts"
	"github.com/jebjergk/MIP-sub000/internal/training"
	"github.com/jebjergk/MIP-sub000/pkg/logger"
)

// TrainingService is what the handler needs from training.Service
type TrainingService interface {
	Status(ctx context.Context, q training.StatusQuery) (*contracts.TrainingStatusReport, error)
	Timeline(ctx context.Context, q training.TimelineQuery) (*contracts.Timeline, error)
}

// TrainingHandler handles training analytics endpoints
// ⭐ SSOT: Training API 핸들러는 이 구조체에서만
type TrainingHandler struct {
	service TrainingService
	logger  *logger.Logger
}

// NewTrainingHandler creates a new training handler
func NewTrainingHandler(service TrainingService, log *logger.Logger) *TrainingHandler {
	return &TrainingHandler{
		service: service,
		logger:  log,
	}
}

type statusRequest struct {
	MarketType string `query:"market_type" validate:"omitempty,max=32"`
	Symbol     string `query:"symbol" validate:"omitempty,max=32"`
	PatternID  *int64 `query:"pattern_id" validate:"omitempty,gte=0"`
	MinSignals *int   `query:"min_signals" validate:"omitempty,gte=0"`
}

type timelineRequest struct {
	Symbol        string `query:"symbol" validate:"required,max=32"`
	MarketType    string `query:"market_type" validate:"required,max=32"`
	PatternID     *int64 `query:"pattern_id" validate:"required,gte=0"`
	HorizonBars   *int   `query:"horizon_bars" validate:"omitempty,gt=0"`
	RollingWindow *int   `query:"rolling_window" validate:"omitempty,gte=0"`
	MaxPoints     *int   `query:"max_points" validate:"omitempty,gte=0"`
}

// GetStatus returns maturity-scored aggregate rows
// GET /api/training/status?market_type=&symbol=&pattern_id=&min_signals=
func (h *TrainingHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r.URL.Query())
	req := statusRequest{
		MarketType: strings.ToUpper(p.str("market_type")),
		Symbol:     strings.ToUpper(p.str("symbol")),
		PatternID:  p.int64Ptr("pattern_id"),
		MinSignals: p.intPtr("min_signals"),
	}
	if errs := validateQuery(p, &req); errs != nil {
		respondValidation(w, errs)
		return
	}

	report, err := h.service.Status(r.Context(), training.StatusQuery{
		MarketType: req.MarketType,
		Symbol:     req.Symbol,
		PatternID:  req.PatternID,
		MinSignals: req.MinSignals,
	})
	if err != nil {
		h.fail(w, r, err, "Failed to compute training status")
		return
	}

	respondJSON(w, http.StatusOK, report)
}

// GetTimeline returns the training timeline of one symbol/pattern/horizon
// GET /api/training/timeline?symbol=&market_type=&pattern_id=&horizon_bars=&rolling_window=&max_points=
func (h *TrainingHandler) GetTimeline(w http.ResponseWriter, r *http.Request) {
	p := newQueryParser(r.URL.Query())
	req := timelineRequest{
		Symbol:        strings.ToUpper(p.str("symbol")),
		MarketType:    strings.ToUpper(p.str("market_type")),
		PatternID:     p.int64Ptr("pattern_id"),
		HorizonBars:   p.intPtr("horizon_bars"),
		RollingWindow: p.intPtr("rolling_window"),
		MaxPoints:     p.intPtr("max_points"),
	}
	if errs := validateQuery(p, &req); errs != nil {
		respondValidation(w, errs)
		return
	}

	timeline, err := h.service.Timeline(r.Context(), training.TimelineQuery{
		Symbol:        req.Symbol,
		MarketType:    req.MarketType,
		PatternID:     *req.PatternID,
		HorizonBars:   req.HorizonBars,
		RollingWindow: req.RollingWindow,
		MaxPoints:     req.MaxPoints,
	})
	if err != nil {
		h.fail(w, r, err, "Failed to build training timeline")
		return
	}

	respondJSON(w, http.StatusOK, timeline)
}

// fail maps service errors: invalid queries are the client's fault,
// everything else is a warehouse failure.
func (h *TrainingHandler) fail(w http.ResponseWriter, r *http.Request, err error, message string) {
	if errors.Is(err, training.ErrInvalidQuery) {
		respondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if errors.Is(err, context.Canceled) {
		h.logger.WithContext(r.Context()).Debug("client went away")
		return
	}

	h.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"path":  r.URL.Path,
		"query": r.URL.RawQuery,
	}).Error(message)
	respondError(w, http.StatusInternalServerError, message)
}
