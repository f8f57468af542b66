package training

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jebjergk/MIP-sub000/internal/contracts"
	"github.com/jebjergk/MIP-sub000/internal/trainingconfig"
	"github.com/jebjergk/MIP-sub000/pkg/metrics"
	"github.com/jebjergk/MIP-sub000/pkg/redis"
)

// fakeStore is an in-memory Store with injectable failures
type fakeStore struct {
	aggregates []contracts.AggregateRow
	outcomes   []contracts.OutcomePoint
	gate       *contracts.GateParams
	trustRow   *contracts.PatternTrustRow
	aggregate  contracts.PatternAggregate
	pending    int
	firstTS    *time.Time

	aggregatesErr error
	outcomesErr   error
	gateErr       error
	trustErr      error
	aggregateErr  error
	pendingErr    error
	firstTSErr    error

	gateCalls      int
	aggregateCalls int
	lastFilter     StatusFilter
}

func (f *fakeStore) ListAggregates(_ context.Context, filter StatusFilter) ([]contracts.AggregateRow, error) {
	f.lastFilter = filter
	return f.aggregates, f.aggregatesErr
}

func (f *fakeStore) GetOutcomeSeries(_ context.Context, _ contracts.TimelineKey) ([]contracts.OutcomePoint, error) {
	return f.outcomes, f.outcomesErr
}

func (f *fakeStore) GetActiveGateParams(_ context.Context) (*contracts.GateParams, error) {
	f.gateCalls++
	return f.gate, f.gateErr
}

func (f *fakeStore) GetPatternTrust(_ context.Context, _ int64, _ string, _ int) (*contracts.PatternTrustRow, error) {
	return f.trustRow, f.trustErr
}

func (f *fakeStore) GetPatternAggregate(_ context.Context, _ int64, _ string, _ int) (contracts.PatternAggregate, error) {
	f.aggregateCalls++
	return f.aggregate, f.aggregateErr
}

func (f *fakeStore) CountPendingEvaluations(_ context.Context, _ contracts.TimelineKey) (int, error) {
	return f.pending, f.pendingErr
}

func (f *fakeStore) GetFirstSignalTS(_ context.Context, _ contracts.TimelineKey) (*time.Time, error) {
	return f.firstTS, f.firstTSErr
}

func newTestService(store Store) *Service {
	return NewService(store, trainingconfig.Default(), zerolog.Nop()).WithMetrics(metrics.New())
}

func intPtr(v int) *int { return &v }

func TestServiceStatusUsesStoredMinSignals(t *testing.T) {
	store := &fakeStore{
		aggregates: []contracts.AggregateRow{{
			AggregateKey: contracts.AggregateKey{MarketType: "STOCK", Symbol: "AAPL", PatternID: 3},
			RecsTotal:    20, OutcomesTotal: 100, HorizonsCovered: 5,
		}},
		gate: &contracts.GateParams{MinSignals: 20, MinSignalsBootstrap: 2, MinHitRate: 0.5, MinAvgReturn: 0},
	}
	svc := newTestService(store)

	pattern := int64(3)
	report, err := svc.Status(context.Background(), StatusQuery{MarketType: "STOCK", PatternID: &pattern})
	require.NoError(t, err)

	assert.Equal(t, 20, report.MinSignals)
	require.Equal(t, 1, report.Count)
	assert.Equal(t, 100.0, report.Rows[0].MaturityScore)
	assert.Equal(t, "STOCK", store.lastFilter.MarketType)
	assert.Equal(t, &pattern, store.lastFilter.PatternID)
}

func TestServiceStatusQueryOverridesMinSignals(t *testing.T) {
	store := &fakeStore{
		aggregates: []contracts.AggregateRow{{RecsTotal: 20, OutcomesTotal: 30, HorizonsCovered: 2}},
	}
	svc := newTestService(store)

	report, err := svc.Status(context.Background(), StatusQuery{MinSignals: intPtr(40)})
	require.NoError(t, err)
	assert.Equal(t, 40, report.MinSignals)
	assert.Equal(t, 39.0, report.Rows[0].MaturityScore)
	assert.Equal(t, contracts.StageWarmingUp, report.Rows[0].MaturityStage)

	_, err = svc.Status(context.Background(), StatusQuery{MinSignals: intPtr(-1)})
	assert.ErrorIs(t, err, ErrInvalidQuery)
}

func TestServiceStatusPrimaryFailure(t *testing.T) {
	store := &fakeStore{aggregatesErr: errors.New("warehouse down")}
	svc := newTestService(store)

	_, err := svc.Status(context.Background(), StatusQuery{})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidQuery)
}

func TestServiceStatusGateLookupFailureUsesFallback(t *testing.T) {
	store := &fakeStore{
		aggregates: []contracts.AggregateRow{{RecsTotal: 40, OutcomesTotal: 200, HorizonsCovered: 5}},
		gateErr:    errors.New("relation does not exist"),
	}
	svc := newTestService(store)

	report, err := svc.Status(context.Background(), StatusQuery{})
	require.NoError(t, err)
	assert.Equal(t, contracts.DefaultGateParams().MinSignals, report.MinSignals)
}

func TestServiceGateBreakerOpensAfterRepeatedFailures(t *testing.T) {
	store := &fakeStore{gateErr: errors.New("timeout")}
	svc := newTestService(store)

	for i := 0; i < 5; i++ {
		_, err := svc.Status(context.Background(), StatusQuery{})
		require.NoError(t, err)
	}
	assert.Equal(t, 3, store.gateCalls)
}

func TestServiceTimeline(t *testing.T) {
	since := baseTS.AddDate(0, 0, -3)
	store := &fakeStore{
		outcomes:  outcomesFrom(repeatHits(25, true)...),
		pending:   2,
		firstTS:   &since,
		aggregate: contracts.PatternAggregate{NSignals: 25, HitRate: fp(1), AvgReturn: fp(0.01)},
	}
	svc := newTestService(store)

	tl, err := svc.Timeline(context.Background(), TimelineQuery{Symbol: "AAPL", MarketType: "STOCK", PatternID: 7})
	require.NoError(t, err)

	assert.Equal(t, 5, tl.HorizonBars)
	assert.Equal(t, contracts.DefaultGateParams(), tl.Thresholds)
	assert.Equal(t, 2, tl.PendingEvaluations)
	require.Len(t, tl.Series, 25)
	assert.Equal(t, contracts.EventEnteredWatch, tl.Series[4].Event)

	assert.Equal(t, TrustSourceAggregate, tl.PatternTrust.Source)
	assert.Equal(t, "not trusted: n_signals 25 < 40", tl.PatternTrust.Reason)

	assert.Equal(t, "Observing since 2023-12-29.", tl.Narrative[0])
	assert.Equal(t, "2 signals are waiting for future bars before they can be evaluated.", tl.Narrative[len(tl.Narrative)-1])
}

func TestServiceTimelineOptions(t *testing.T) {
	store := &fakeStore{outcomes: outcomesFrom(repeatHits(30, true)...)}
	svc := newTestService(store)

	tl, err := svc.Timeline(context.Background(), TimelineQuery{
		Symbol: "EURUSD", MarketType: "FX", PatternID: 2,
		HorizonBars: intPtr(20), RollingWindow: intPtr(0), MaxPoints: intPtr(3),
	})
	require.NoError(t, err)
	assert.Equal(t, 20, tl.HorizonBars)
	require.Len(t, tl.Series, 3)
	assert.Equal(t, 28, tl.Series[0].EvaluatedCount)
}

func TestServiceTimelineTrustedViewSkipsAggregate(t *testing.T) {
	store := &fakeStore{
		outcomes: outcomesFrom(true),
		trustRow: &contracts.PatternTrustRow{IsTrusted: true, NSignals: 80, HitRate: 0.6, AvgReturn: 0.003, Confidence: "MEDIUM"},
	}
	svc := newTestService(store)

	tl, err := svc.Timeline(context.Background(), TimelineQuery{Symbol: "AAPL", MarketType: "STOCK", PatternID: 7})
	require.NoError(t, err)
	assert.True(t, tl.PatternTrust.Trusted)
	assert.Equal(t, TrustSourceView, tl.PatternTrust.Source)
	assert.Equal(t, 0, store.aggregateCalls)
}

func TestServiceTimelineAuxiliaryFailuresDegrade(t *testing.T) {
	boom := errors.New("permission denied for view")
	store := &fakeStore{
		outcomes:     outcomesFrom(true, false),
		gateErr:      boom,
		trustErr:     boom,
		aggregateErr: boom,
		pendingErr:   boom,
		firstTSErr:   boom,
	}
	svc := newTestService(store)

	tl, err := svc.Timeline(context.Background(), TimelineQuery{Symbol: "AAPL", MarketType: "STOCK", PatternID: 7})
	require.NoError(t, err)

	assert.Equal(t, contracts.DefaultGateParams(), tl.Thresholds)
	assert.Equal(t, 0, tl.PendingEvaluations)
	assert.Equal(t, TrustSourceUnavailable, tl.PatternTrust.Source)
	assert.Len(t, tl.Series, 2)
	assert.Equal(t, "First outcome evaluated for the signal of 2024-01-01.", tl.Narrative[0])
}

func TestServiceTimelineTrustViewFailureStillUsesAggregate(t *testing.T) {
	store := &fakeStore{
		outcomes:  outcomesFrom(true),
		trustErr:  errors.New("view missing"),
		aggregate: contracts.PatternAggregate{NSignals: 3, HitRate: fp(1), AvgReturn: fp(0.01)},
	}
	svc := newTestService(store)

	tl, err := svc.Timeline(context.Background(), TimelineQuery{Symbol: "AAPL", MarketType: "STOCK", PatternID: 7})
	require.NoError(t, err)
	assert.Equal(t, TrustSourceAggregate, tl.PatternTrust.Source)
	assert.Equal(t, 3, tl.PatternTrust.NSignals)
}

func TestServiceTimelineEmptySeries(t *testing.T) {
	svc := newTestService(&fakeStore{})

	tl, err := svc.Timeline(context.Background(), TimelineQuery{Symbol: "AAPL", MarketType: "STOCK", PatternID: 7})
	require.NoError(t, err)
	assert.Empty(t, tl.Series)
	assert.Equal(t, []string{StillObservingMessage}, tl.Narrative)
}

func TestServiceTimelinePrimaryFailure(t *testing.T) {
	svc := newTestService(&fakeStore{outcomesErr: errors.New("statement timeout")})

	_, err := svc.Timeline(context.Background(), TimelineQuery{Symbol: "AAPL", MarketType: "STOCK", PatternID: 7})
	require.Error(t, err)
	assert.NotErrorIs(t, err, ErrInvalidQuery)
}

func TestServiceTimelineResolvesGateBeforeCacheLookup(t *testing.T) {
	store := &fakeStore{outcomesErr: errors.New("statement timeout")}
	svc := newTestService(store)

	_, err := svc.Timeline(context.Background(), TimelineQuery{Symbol: "AAPL", MarketType: "STOCK", PatternID: 7})
	require.Error(t, err)
	assert.Equal(t, 1, store.gateCalls)
}

func TestTimelineCacheKeyTracksGateParams(t *testing.T) {
	key := contracts.TimelineKey{Symbol: "AAPL", MarketType: "STOCK", PatternID: 7, HorizonBars: 5}
	base := contracts.DefaultGateParams()

	stricter := base
	stricter.MinHitRate = 0.6
	bootstrap := base
	bootstrap.MinSignalsBootstrap = 10

	k := timelineCacheKey(key, base, 20, 200)
	assert.Equal(t, "training:timeline:STOCK:AAPL:7:5:w20:n200:g40/5/0.55/0.0005", k)
	assert.Equal(t, k, timelineCacheKey(key, contracts.DefaultGateParams(), 20, 200))
	assert.NotEqual(t, k, timelineCacheKey(key, stricter, 20, 200))
	assert.NotEqual(t, k, timelineCacheKey(key, bootstrap, 20, 200))
}

func TestServiceTimelineInvalidQueries(t *testing.T) {
	svc := newTestService(&fakeStore{})

	tests := []struct {
		name string
		q    TimelineQuery
	}{
		{"missing symbol", TimelineQuery{MarketType: "STOCK", PatternID: 1}},
		{"missing market", TimelineQuery{Symbol: "AAPL", PatternID: 1}},
		{"unknown horizon", TimelineQuery{Symbol: "AAPL", MarketType: "STOCK", HorizonBars: intPtr(7)}},
		{"negative window", TimelineQuery{Symbol: "AAPL", MarketType: "STOCK", RollingWindow: intPtr(-1)}},
		{"window above cap", TimelineQuery{Symbol: "AAPL", MarketType: "STOCK", RollingWindow: intPtr(501)}},
		{"points above cap", TimelineQuery{Symbol: "AAPL", MarketType: "STOCK", MaxPoints: intPtr(5001)}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.Timeline(context.Background(), tt.q)
			assert.ErrorIs(t, err, ErrInvalidQuery)
		})
	}
}

func TestServiceInvalidStoredGateParamsFallBack(t *testing.T) {
	store := &fakeStore{
		outcomes: outcomesFrom(true),
		gate:     &contracts.GateParams{MinSignals: 10, MinHitRate: 3},
	}
	svc := newTestService(store)

	tl, err := svc.Timeline(context.Background(), TimelineQuery{Symbol: "AAPL", MarketType: "STOCK", PatternID: 7})
	require.NoError(t, err)
	assert.Equal(t, contracts.DefaultGateParams(), tl.Thresholds)
}

func TestServiceWarmStatus(t *testing.T) {
	store := &fakeStore{
		aggregates: []contracts.AggregateRow{{RecsTotal: 1}, {RecsTotal: 2}},
	}
	svc := newTestService(store).WithCache(redis.NewCache(redis.Disabled(), "mip"), time.Minute)

	n, err := svc.WarmStatus(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, StatusFilter{}, store.lastFilter)

	store.aggregatesErr = errors.New("down")
	_, err = svc.WarmStatus(context.Background())
	assert.Error(t, err)
}
