package training

import (
	"context"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jebjergk/MIP-sub000/internal/contracts"
)

func newTestRepository(t *testing.T) *Repository {
	t.Helper()

	url := os.Getenv("DATABASE_URL")
	if url == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
	}

	pool, err := pgxpool.New(context.Background(), url)
	require.NoError(t, err)
	t.Cleanup(pool.Close)

	return NewRepository(pool, 10*time.Second)
}

func skipIfNoSchema(t *testing.T, err error) {
	t.Helper()
	if err != nil && strings.Contains(err.Error(), "does not exist") {
		t.Skipf("warehouse schema not installed: %v", err)
	}
}

func TestRepositoryReadsWarehouse(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	rows, err := repo.ListAggregates(ctx, StatusFilter{MarketType: "STOCK"})
	skipIfNoSchema(t, err)
	require.NoError(t, err)
	for _, r := range rows {
		assert.Equal(t, "STOCK", r.MarketType)
		assert.GreaterOrEqual(t, r.RecsTotal, 0)
	}

	key := contracts.TimelineKey{Symbol: "__none__", MarketType: "STOCK", PatternID: -1, HorizonBars: 5}

	series, err := repo.GetOutcomeSeries(ctx, key)
	require.NoError(t, err)
	assert.Empty(t, series)

	ts, err := repo.GetFirstSignalTS(ctx, key)
	require.NoError(t, err)
	assert.Nil(t, ts)

	pending, err := repo.CountPendingEvaluations(ctx, key)
	require.NoError(t, err)
	assert.Equal(t, 0, pending)

	agg, err := repo.GetPatternAggregate(ctx, -1, "STOCK", 5)
	require.NoError(t, err)
	assert.Equal(t, 0, agg.NSignals)
}
