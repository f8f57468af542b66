package training

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jebjergk/MIP-sub000/internal/contracts"
)

// StatusFilter narrows the aggregate feed. Zero values mean "any".
type StatusFilter struct {
	MarketType string
	Symbol     string
	PatternID  *int64
}

// Repository training 데이터 저장소 (warehouse, read-only)
type Repository struct {
	pool    *pgxpool.Pool
	timeout time.Duration
}

// NewRepository 새 저장소 생성. timeout<=0 disables the per-query deadline.
func NewRepository(pool *pgxpool.Pool, timeout time.Duration) *Repository {
	return &Repository{pool: pool, timeout: timeout}
}

func (r *Repository) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if r.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, r.timeout)
}

// ListAggregates reads the aggregate feed, one row per
// (market_type, symbol, pattern_id, interval_minutes).
func (r *Repository) ListAggregates(ctx context.Context, f StatusFilter) ([]contracts.AggregateRow, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT r.market_type, r.symbol, r.pattern_id, r.interval_minutes,
			COUNT(DISTINCT r.recommendation_id) AS recs_total,
			COUNT(o.recommendation_id) FILTER (WHERE o.eval_status = 'SUCCESS') AS outcomes_total,
			COUNT(DISTINCT o.horizon_bars) FILTER (WHERE o.eval_status = 'SUCCESS') AS horizons_covered,
			(AVG(o.realized_return) FILTER (WHERE o.eval_status = 'SUCCESS' AND o.horizon_bars = 1))::float8  AS avg_return_h1,
			(AVG(o.realized_return) FILTER (WHERE o.eval_status = 'SUCCESS' AND o.horizon_bars = 3))::float8  AS avg_return_h3,
			(AVG(o.realized_return) FILTER (WHERE o.eval_status = 'SUCCESS' AND o.horizon_bars = 5))::float8  AS avg_return_h5,
			(AVG(o.realized_return) FILTER (WHERE o.eval_status = 'SUCCESS' AND o.horizon_bars = 10))::float8 AS avg_return_h10,
			(AVG(o.realized_return) FILTER (WHERE o.eval_status = 'SUCCESS' AND o.horizon_bars = 20))::float8 AS avg_return_h20
		FROM app.recommendation_log r
		LEFT JOIN app.recommendation_outcomes o ON o.recommendation_id = r.recommendation_id
		WHERE ($1::text = '' OR r.market_type = $1)
		  AND ($2::text = '' OR r.symbol = $2)
		  AND ($3::bigint IS NULL OR r.pattern_id = $3)
		GROUP BY r.market_type, r.symbol, r.pattern_id, r.interval_minutes
		ORDER BY r.market_type, r.symbol, r.pattern_id, r.interval_minutes`

	rows, err := r.pool.Query(ctx, query, f.MarketType, f.Symbol, f.PatternID)
	if err != nil {
		return nil, fmt.Errorf("query aggregates: %w", err)
	}

	maps, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, fmt.Errorf("scan aggregates: %w", err)
	}

	result := make([]contracts.AggregateRow, 0, len(maps))
	for _, m := range maps {
		result = append(result, AggregateRowFromMap(m))
	}
	return result, nil
}

// GetOutcomeSeries reads successfully evaluated outcomes with a realized
// return, ordered by (signal_ts, recommendation_id).
func (r *Repository) GetOutcomeSeries(ctx context.Context, key contracts.TimelineKey) ([]contracts.OutcomePoint, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT r.recommendation_id, r.signal_ts, o.entry_ts, o.exit_ts,
			o.realized_return::float8, o.hit_flag, o.eval_status,
			ROW_NUMBER() OVER (ORDER BY r.signal_ts, r.recommendation_id) AS evaluated_count
		FROM app.recommendation_log r
		JOIN app.recommendation_outcomes o ON o.recommendation_id = r.recommendation_id
		WHERE r.symbol = $1
		  AND r.market_type = $2
		  AND r.pattern_id = $3
		  AND o.horizon_bars = $4
		  AND o.eval_status = 'SUCCESS'
		  AND o.realized_return IS NOT NULL
		ORDER BY r.signal_ts, r.recommendation_id`

	rows, err := r.pool.Query(ctx, query, key.Symbol, key.MarketType, key.PatternID, key.HorizonBars)
	if err != nil {
		return nil, fmt.Errorf("query outcome series: %w", err)
	}
	defer rows.Close()

	var raw []contracts.OutcomeRow
	for rows.Next() {
		var o contracts.OutcomeRow
		var count int64
		if err := rows.Scan(
			&o.RecommendationID, &o.SignalTS, &o.EntryTS, &o.ExitTS,
			&o.RealizedReturn, &o.HitFlag, &o.EvalStatus, &count,
		); err != nil {
			return nil, fmt.Errorf("scan outcome: %w", err)
		}
		o.EvaluatedCount = int(count)
		raw = append(raw, o)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate outcomes: %w", err)
	}

	return OutcomePointsFromRows(raw), nil
}

// GetActiveGateParams returns the active threshold row, nil when none exists
func (r *Repository) GetActiveGateParams(ctx context.Context) (*contracts.GateParams, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT min_signals, min_signals_bootstrap, min_hit_rate::float8, min_avg_return::float8
		FROM app.training_gate_params
		WHERE is_active
		ORDER BY updated_at DESC
		LIMIT 1`

	var p contracts.GateParams
	err := r.pool.QueryRow(ctx, query).Scan(
		&p.MinSignals, &p.MinSignalsBootstrap, &p.MinHitRate, &p.MinAvgReturn,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query gate params: %w", err)
	}
	return &p, nil
}

// GetPatternTrust returns the trust view row, nil when the pattern is not listed
func (r *Repository) GetPatternTrust(ctx context.Context, patternID int64, marketType string, horizonBars int) (*contracts.PatternTrustRow, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT pattern_id, market_type, horizon_bars, is_trusted, n_signals,
			COALESCE(hit_rate, 0)::float8, COALESCE(avg_return, 0)::float8, COALESCE(confidence, '')
		FROM mart.v_trusted_pattern_snapshot
		WHERE pattern_id = $1 AND market_type = $2 AND horizon_bars = $3
		LIMIT 1`

	var row contracts.PatternTrustRow
	err := r.pool.QueryRow(ctx, query, patternID, marketType, horizonBars).Scan(
		&row.PatternID, &row.MarketType, &row.HorizonBars, &row.IsTrusted,
		&row.NSignals, &row.HitRate, &row.AvgReturn, &row.Confidence,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("query pattern trust: %w", err)
	}
	return &row, nil
}

// GetPatternAggregate computes the cross-symbol fallback for one
// (pattern, market, horizon) from raw successful outcomes.
func (r *Repository) GetPatternAggregate(ctx context.Context, patternID int64, marketType string, horizonBars int) (contracts.PatternAggregate, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT o.realized_return::float8, COALESCE(o.hit_flag, false)
		FROM app.recommendation_log r
		JOIN app.recommendation_outcomes o ON o.recommendation_id = r.recommendation_id
		WHERE r.pattern_id = $1
		  AND r.market_type = $2
		  AND o.horizon_bars = $3
		  AND o.eval_status = 'SUCCESS'
		  AND o.realized_return IS NOT NULL`

	rows, err := r.pool.Query(ctx, query, patternID, marketType, horizonBars)
	if err != nil {
		return contracts.PatternAggregate{}, fmt.Errorf("query pattern aggregate: %w", err)
	}
	defer rows.Close()

	var returns []float64
	var hits []bool
	for rows.Next() {
		var ret float64
		var hit bool
		if err := rows.Scan(&ret, &hit); err != nil {
			return contracts.PatternAggregate{}, fmt.Errorf("scan pattern aggregate: %w", err)
		}
		returns = append(returns, ret)
		hits = append(hits, hit)
	}
	if err := rows.Err(); err != nil {
		return contracts.PatternAggregate{}, fmt.Errorf("iterate pattern aggregate: %w", err)
	}

	return AggregateOutcomes(returns, hits), nil
}

// CountPendingEvaluations counts signals whose outcome at this horizon has
// not been evaluated yet (no row, or waiting for future bars).
func (r *Repository) CountPendingEvaluations(ctx context.Context, key contracts.TimelineKey) (int, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT COUNT(*)
		FROM app.recommendation_log r
		LEFT JOIN app.recommendation_outcomes o
			ON o.recommendation_id = r.recommendation_id AND o.horizon_bars = $4
		WHERE r.symbol = $1
		  AND r.market_type = $2
		  AND r.pattern_id = $3
		  AND (o.recommendation_id IS NULL OR o.eval_status IN ('PENDING', 'INSUFFICIENT_FUTURE_DATA'))`

	var n int64
	if err := r.pool.QueryRow(ctx, query, key.Symbol, key.MarketType, key.PatternID, key.HorizonBars).Scan(&n); err != nil {
		return 0, fmt.Errorf("count pending evaluations: %w", err)
	}
	return int(n), nil
}

// GetFirstSignalTS returns the earliest signal for (symbol, market, pattern),
// nil when the combination has never fired.
func (r *Repository) GetFirstSignalTS(ctx context.Context, key contracts.TimelineKey) (*time.Time, error) {
	ctx, cancel := r.withTimeout(ctx)
	defer cancel()

	query := `
		SELECT MIN(signal_ts)
		FROM app.recommendation_log
		WHERE symbol = $1 AND market_type = $2 AND pattern_id = $3`

	var ts *time.Time
	if err := r.pool.QueryRow(ctx, query, key.Symbol, key.MarketType, key.PatternID).Scan(&ts); err != nil {
		return nil, fmt.Errorf("query first signal: %w", err)
	}
	return ts, nil
}
