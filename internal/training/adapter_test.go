package training

import (
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jebjergk/MIP-sub000/internal/contracts"
)

func TestAggregateRowFromMap(t *testing.T) {
	row := AggregateRowFromMap(map[string]any{
		"market_type":      "STOCK",
		"SYMBOL":           "AAPL",
		"pattern_id":       int64(7),
		"INTERVAL_MINUTES": int32(1440),
		"recs_total":       "20",
		"OUTCOMES_TOTAL":   float64(30),
		"horizons_covered": uint64(2),
		"avg_return_h1":    0.0012,
		"AVG_RETURN_H20":   float32(-0.5),
		"avg_return_h5":    nil,
	})

	assert.Equal(t, "STOCK", row.MarketType)
	assert.Equal(t, "AAPL", row.Symbol)
	assert.Equal(t, int64(7), row.PatternID)
	assert.Equal(t, 1440, row.IntervalMinutes)
	assert.Equal(t, 20, row.RecsTotal)
	assert.Equal(t, 30, row.OutcomesTotal)
	assert.Equal(t, 2, row.HorizonsCovered)

	require.Len(t, row.AvgReturns, 2)
	assert.InDelta(t, 0.0012, *row.AvgReturns[1], 1e-12)
	assert.InDelta(t, -0.5, *row.AvgReturns[20], 1e-12)
	assert.NotContains(t, row.AvgReturns, 5)
}

func TestAggregateRowFromMapDefaultsToZero(t *testing.T) {
	row := AggregateRowFromMap(map[string]any{
		"recs_total":       "not a number",
		"outcomes_total":   math.NaN(),
		"horizons_covered": []int{1},
	})

	assert.Equal(t, 0, row.RecsTotal)
	assert.Equal(t, 0, row.OutcomesTotal)
	assert.Equal(t, 0, row.HorizonsCovered)
	assert.Nil(t, row.AvgReturns)

	m := ScoreMaturity(row.RecsTotal, row.OutcomesTotal, row.HorizonsCovered, 40)
	assert.Equal(t, contracts.StageInsufficient, m.Stage)
}

func TestOutcomePointsFromRows(t *testing.T) {
	ret := 0.01
	hit := true
	rows := []contracts.OutcomeRow{
		{RecommendationID: 1, SignalTS: baseTS, RealizedReturn: &ret, HitFlag: &hit, EvalStatus: "SUCCESS", EvaluatedCount: 1},
		{RecommendationID: 2, SignalTS: baseTS, RealizedReturn: nil, EvalStatus: "SUCCESS"},
		{RecommendationID: 3, SignalTS: baseTS, RealizedReturn: &ret, EvalStatus: "INSUFFICIENT_FUTURE_DATA"},
		{RecommendationID: 4, SignalTS: baseTS.Add(time.Hour), RealizedReturn: &ret, HitFlag: nil, EvalStatus: "success"},
	}

	points := OutcomePointsFromRows(rows)
	require.Len(t, points, 2)
	assert.Equal(t, int64(1), points[0].ID)
	assert.True(t, points[0].HitFlag)
	assert.Equal(t, int64(4), points[1].ID)
	assert.False(t, points[1].HitFlag)
}

func TestPrepareOutcomes(t *testing.T) {
	sorted := outcomesFrom(true, false, true)
	out, report := PrepareOutcomes(sorted)
	assert.False(t, report.Resorted)
	assert.Equal(t, 0, report.CountMismatches)
	assert.Equal(t, sorted, out)

	// same timestamp, ordered by id
	tied := []contracts.OutcomePoint{
		{ID: 9, SignalTS: baseTS, EvaluatedCount: 2},
		{ID: 4, SignalTS: baseTS, EvaluatedCount: 1},
	}
	out, report = PrepareOutcomes(tied)
	assert.True(t, report.Resorted)
	assert.Equal(t, int64(4), out[0].ID)
	assert.Equal(t, 0, report.CountMismatches)

	skewed := outcomesFrom(true, true)
	skewed[1].EvaluatedCount = 5
	_, report = PrepareOutcomes(skewed)
	assert.Equal(t, 1, report.CountMismatches)
}

func TestResolveGateParams(t *testing.T) {
	fallback := contracts.DefaultGateParams()

	got, fromStore := ResolveGateParams(nil, fallback)
	assert.False(t, fromStore)
	assert.Equal(t, fallback, got)

	stored := contracts.GateParams{MinSignals: 30, MinSignalsBootstrap: 3, MinHitRate: 0.6, MinAvgReturn: 0.001}
	got, fromStore = ResolveGateParams(&stored, fallback)
	assert.True(t, fromStore)
	assert.Equal(t, stored, got)

	invalid := contracts.GateParams{MinSignals: 30, MinHitRate: 1.4}
	got, fromStore = ResolveGateParams(&invalid, fallback)
	assert.False(t, fromStore)
	assert.Equal(t, fallback, got)
}
