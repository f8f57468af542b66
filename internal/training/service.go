package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"github.com/jebjergk/MIP-sub000/internal/contracts"
	"github.com/jebjergk/MIP-sub000/internal/trainingconfig"
	"github.com/jebjergk/MIP-sub000/pkg/breaker"
	"github.com/jebjergk/MIP-sub000/pkg/metrics"
	"github.com/jebjergk/MIP-sub000/pkg/redis"
)

// ErrInvalidQuery wraps every request-level validation failure
var ErrInvalidQuery = errors.New("invalid training query")

// Store is the warehouse surface the service reads.
// *Repository implements it.
type Store interface {
	ListAggregates(ctx context.Context, f StatusFilter) ([]contracts.AggregateRow, error)
	GetOutcomeSeries(ctx context.Context, key contracts.TimelineKey) ([]contracts.OutcomePoint, error)
	GetActiveGateParams(ctx context.Context) (*contracts.GateParams, error)
	GetPatternTrust(ctx context.Context, patternID int64, marketType string, horizonBars int) (*contracts.PatternTrustRow, error)
	GetPatternAggregate(ctx context.Context, patternID int64, marketType string, horizonBars int) (contracts.PatternAggregate, error)
	CountPendingEvaluations(ctx context.Context, key contracts.TimelineKey) (int, error)
	GetFirstSignalTS(ctx context.Context, key contracts.TimelineKey) (*time.Time, error)
}

// Auxiliary lookup names (breaker names and metric labels)
const (
	lookupGateParams   = "gate_params"
	lookupPatternTrust = "pattern_trust"
	lookupPending      = "pending_evaluations"
	lookupFirstSignal  = "first_signal_ts"
)

// StatusQuery filters the status listing. Nil/empty fields mean "any";
// a nil MinSignals uses the resolved gate params.
type StatusQuery struct {
	MarketType string
	Symbol     string
	PatternID  *int64
	MinSignals *int
}

// TimelineQuery selects one timeline. Nil options use the configured defaults.
type TimelineQuery struct {
	Symbol        string
	MarketType    string
	PatternID     int64
	HorizonBars   *int
	RollingWindow *int
	MaxPoints     *int
}

// Service training 분석 서비스
// ⭐ SSOT: status/timeline 응답 조립은 여기서만
type Service struct {
	store    Store
	cfg      *trainingconfig.Config
	cache    *redis.Cache
	cacheTTL time.Duration
	metrics  *metrics.Recorder
	breakers map[string]*breaker.Breaker
	log      zerolog.Logger
}

// NewService creates a service without cache or metrics
func NewService(store Store, cfg *trainingconfig.Config, log zerolog.Logger) *Service {
	s := &Service{
		store: store,
		cfg:   cfg,
		cache: redis.NewCache(redis.Disabled(), "mip"),
		log:   log.With().Str("component", "training.service").Logger(),
	}
	s.initBreakers()
	return s
}

// WithCache enables response caching
func (s *Service) WithCache(cache *redis.Cache, ttl time.Duration) *Service {
	s.cache = cache
	s.cacheTTL = ttl
	return s
}

// WithMetrics attaches a recorder; breakers are rebuilt so their state is published
func (s *Service) WithMetrics(rec *metrics.Recorder) *Service {
	s.metrics = rec
	s.initBreakers()
	return s
}

func (s *Service) initBreakers() {
	s.breakers = make(map[string]*breaker.Breaker)
	for _, name := range []string{lookupGateParams, lookupPatternTrust, lookupPending, lookupFirstSignal} {
		s.breakers[name] = breaker.New(breaker.DefaultSettings(name), s.metrics, s.log)
	}
}

// Config returns the training defaults in use
func (s *Service) Config() *trainingconfig.Config {
	return s.cfg
}

// =============================================================================
// Status
// =============================================================================

// Status scores every aggregate row matching q
func (s *Service) Status(ctx context.Context, q StatusQuery) (*contracts.TrainingStatusReport, error) {
	if q.MinSignals != nil && *q.MinSignals < 0 {
		return nil, fmt.Errorf("%w: min_signals must be >= 0", ErrInvalidQuery)
	}

	params := s.resolveGateParams(ctx)
	minSignals := params.MinSignals
	if q.MinSignals != nil {
		minSignals = *q.MinSignals
	}

	key := redis.TrainingStatusKey(q.MarketType, q.Symbol, q.PatternID, minSignals)
	var cached contracts.TrainingStatusReport
	if s.cacheGet(ctx, "status", key, &cached) {
		return &cached, nil
	}

	start := time.Now()
	rows, err := s.store.ListAggregates(ctx, StatusFilter{
		MarketType: q.MarketType,
		Symbol:     q.Symbol,
		PatternID:  q.PatternID,
	})
	if err != nil {
		return nil, fmt.Errorf("list aggregates: %w", err)
	}

	scored := ScoreRows(rows, minSignals)
	report := &contracts.TrainingStatusReport{
		MinSignals: minSignals,
		Count:      len(scored),
		Rows:       scored,
	}
	s.metrics.ObserveBuild("status", time.Since(start).Seconds())

	s.cacheSet(ctx, key, report)
	return report, nil
}

// WarmStatus recomputes the unfiltered status listing and overwrites its
// cache entry. Returns the number of rows scored.
func (s *Service) WarmStatus(ctx context.Context) (int, error) {
	params := s.resolveGateParams(ctx)

	rows, err := s.store.ListAggregates(ctx, StatusFilter{})
	if err != nil {
		return 0, fmt.Errorf("list aggregates: %w", err)
	}

	scored := ScoreRows(rows, params.MinSignals)
	report := &contracts.TrainingStatusReport{
		MinSignals: params.MinSignals,
		Count:      len(scored),
		Rows:       scored,
	}
	s.cacheSet(ctx, redis.TrainingStatusKey("", "", nil, params.MinSignals), report)
	return len(scored), nil
}

// =============================================================================
// Timeline
// =============================================================================

// Timeline builds the training timeline for one (symbol, market, pattern, horizon).
// Only the outcome series read can fail the request; auxiliary lookups
// degrade to defaults.
func (s *Service) Timeline(ctx context.Context, q TimelineQuery) (*contracts.Timeline, error) {
	key, rollingWindow, maxPoints, err := s.resolveTimelineQuery(q)
	if err != nil {
		return nil, err
	}

	// 임계값이 바뀌면 캐시 키도 바뀜
	params := s.resolveGateParams(ctx)
	cacheKey := timelineCacheKey(key, params, rollingWindow, maxPoints)
	var cached contracts.Timeline
	if s.cacheGet(ctx, "timeline", cacheKey, &cached) {
		return &cached, nil
	}

	start := time.Now()
	outcomes, err := s.store.GetOutcomeSeries(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("outcome series: %w", err)
	}

	in := TimelineInput{
		Key:                key,
		Outcomes:           outcomes,
		Params:             params,
		RollingWindow:      rollingWindow,
		MaxPoints:          maxPoints,
		FirstSignalTS:      s.firstSignalTS(ctx, key),
		PendingEvaluations: s.pendingEvaluations(ctx, key),
		PatternTrust:       s.patternTrust(ctx, key, params),
	}

	timeline, report := AssembleTimeline(in)
	s.logOrdering(key, report)

	s.metrics.ObserveTimelineSize(len(outcomes))
	s.metrics.ObserveBuild("timeline", time.Since(start).Seconds())

	s.log.Debug().
		Str("symbol", key.Symbol).
		Str("market_type", key.MarketType).
		Int64("pattern_id", key.PatternID).
		Int("horizon_bars", key.HorizonBars).
		Int("outcomes", len(outcomes)).
		Int("points", len(timeline.Series)).
		Msg("timeline built")

	s.cacheSet(ctx, cacheKey, &timeline)
	return &timeline, nil
}

func timelineCacheKey(key contracts.TimelineKey, params contracts.GateParams, rollingWindow, maxPoints int) string {
	return redis.TrainingTimelineKey(key.MarketType, key.Symbol, key.PatternID, key.HorizonBars,
		rollingWindow, maxPoints, params.Fingerprint())
}

func (s *Service) resolveTimelineQuery(q TimelineQuery) (contracts.TimelineKey, int, int, error) {
	t := s.cfg.Timeline

	if q.Symbol == "" || q.MarketType == "" {
		return contracts.TimelineKey{}, 0, 0, fmt.Errorf("%w: symbol and market_type are required", ErrInvalidQuery)
	}

	horizon := t.DefaultHorizonBars
	if q.HorizonBars != nil {
		horizon = *q.HorizonBars
	}
	if !s.cfg.HasHorizon(horizon) {
		return contracts.TimelineKey{}, 0, 0, fmt.Errorf("%w: horizon_bars %d not in %v", ErrInvalidQuery, horizon, s.cfg.Horizons)
	}

	rollingWindow := t.RollingWindow
	if q.RollingWindow != nil {
		rollingWindow = *q.RollingWindow
	}
	if rollingWindow < 0 || rollingWindow > t.MaxRollingWindow {
		return contracts.TimelineKey{}, 0, 0, fmt.Errorf("%w: rolling_window must be in [0, %d]", ErrInvalidQuery, t.MaxRollingWindow)
	}

	maxPoints := t.MaxPoints
	if q.MaxPoints != nil {
		maxPoints = *q.MaxPoints
	}
	if maxPoints < 0 || maxPoints > t.MaxPointsLimit {
		return contracts.TimelineKey{}, 0, 0, fmt.Errorf("%w: max_points must be in [0, %d]", ErrInvalidQuery, t.MaxPointsLimit)
	}

	key := contracts.TimelineKey{
		Symbol:      q.Symbol,
		MarketType:  q.MarketType,
		PatternID:   q.PatternID,
		HorizonBars: horizon,
	}
	return key, rollingWindow, maxPoints, nil
}

// =============================================================================
// Auxiliary lookups (never fail the request)
// =============================================================================

func (s *Service) resolveGateParams(ctx context.Context) contracts.GateParams {
	stored, err := breaker.Do(s.breakers[lookupGateParams], func() (*contracts.GateParams, error) {
		return s.store.GetActiveGateParams(ctx)
	})
	if err != nil {
		s.fallback(lookupGateParams, err)
		return s.cfg.Gate
	}

	params, fromStore := ResolveGateParams(stored, s.cfg.Gate)
	if !fromStore && stored != nil {
		s.log.Warn().Interface("stored", stored).Msg("active gate params invalid, using fallback")
		s.metrics.RecordAuxFallback(lookupGateParams)
	}
	return params
}

func (s *Service) pendingEvaluations(ctx context.Context, key contracts.TimelineKey) int {
	n, err := breaker.Do(s.breakers[lookupPending], func() (int, error) {
		return s.store.CountPendingEvaluations(ctx, key)
	})
	if err != nil {
		s.fallback(lookupPending, err)
		return 0
	}
	return n
}

func (s *Service) firstSignalTS(ctx context.Context, key contracts.TimelineKey) *time.Time {
	ts, err := breaker.Do(s.breakers[lookupFirstSignal], func() (*time.Time, error) {
		return s.store.GetFirstSignalTS(ctx, key)
	})
	if err != nil {
		s.fallback(lookupFirstSignal, err)
		return nil
	}
	return ts
}

// patternTrust reads the trust view and, unless it lists the pattern as
// trusted, the cross-symbol aggregate.
func (s *Service) patternTrust(ctx context.Context, key contracts.TimelineKey, params contracts.GateParams) contracts.PatternTrust {
	b := s.breakers[lookupPatternTrust]

	listed, err := breaker.Do(b, func() (*contracts.PatternTrustRow, error) {
		return s.store.GetPatternTrust(ctx, key.PatternID, key.MarketType, key.HorizonBars)
	})
	if err != nil {
		s.fallback(lookupPatternTrust, err)
		listed = nil
	}
	if listed != nil && listed.IsTrusted {
		return EvaluatePatternTrust(listed, contracts.PatternAggregate{}, params)
	}

	agg, err := breaker.Do(b, func() (contracts.PatternAggregate, error) {
		return s.store.GetPatternAggregate(ctx, key.PatternID, key.MarketType, key.HorizonBars)
	})
	if err != nil {
		s.fallback(lookupPatternTrust, err)
		return UnavailablePatternTrust()
	}
	return EvaluatePatternTrust(listed, agg, params)
}

func (s *Service) fallback(lookup string, err error) {
	s.metrics.RecordAuxFallback(lookup)
	s.log.Warn().Err(err).Str("lookup", lookup).Msg("auxiliary lookup failed, using default")
}

func (s *Service) logOrdering(key contracts.TimelineKey, r OrderingReport) {
	if r.Resorted {
		s.metrics.RecordOrderingAnomaly("resorted")
		s.log.Warn().
			Str("symbol", key.Symbol).
			Int64("pattern_id", key.PatternID).
			Msg("outcome series arrived out of order, re-sorted")
	}
	if r.CountMismatches > 0 {
		s.metrics.RecordOrderingAnomaly("count_mismatch")
		s.log.Warn().
			Str("symbol", key.Symbol).
			Int64("pattern_id", key.PatternID).
			Int("mismatches", r.CountMismatches).
			Msg("supplied evaluated counts disagree with position")
	}
}

// =============================================================================
// Cache
// =============================================================================

func (s *Service) cacheGet(ctx context.Context, endpoint, key string, dest interface{}) bool {
	if !s.cacheEnabled() {
		return false
	}
	found, err := s.cache.Get(ctx, key, dest)
	if err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache read failed")
		found = false
	}
	s.metrics.RecordCacheLookup(endpoint, found)
	return found
}

func (s *Service) cacheSet(ctx context.Context, key string, value interface{}) {
	if !s.cacheEnabled() {
		return
	}
	if err := s.cache.Set(ctx, key, value, s.cacheTTL); err != nil {
		s.log.Warn().Err(err).Str("key", key).Msg("cache write failed")
	}
}

func (s *Service) cacheEnabled() bool {
	return s.cache != nil && s.cache.Enabled() && s.cacheTTL > 0
}
