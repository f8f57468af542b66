package training

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/jebjergk/MIP-sub000/internal/contracts"
)

func TestBuildNarrativeMilestones(t *testing.T) {
	params := contracts.GateParams{MinSignals: 5, MinSignalsBootstrap: 2, MinHitRate: 0.55, MinAvgReturn: 0.0005}
	series := BuildTimeline(outcomesFrom(false, false, false, true, true, true, true, false, false, false), params, 0, 0)
	since := time.Date(2023, 12, 20, 9, 0, 0, 0, time.UTC)

	got := BuildNarrative(series, &since, 2, params)

	assert.Equal(t, []string{
		"Observing since 2023-12-20.",
		"First outcome evaluated for the signal of 2024-01-01.",
		"Reached minimum evidence (5 outcomes) on 2024-01-05.",
		"First entered TRUSTED on 2024-01-07 with a rolling hit rate of 57.1%.",
		"First miss streak (3+ consecutive misses) on 2024-01-03.",
		"Currently WATCH after 10 evaluated outcomes (rolling hit rate 40.0%, avg return -0.20%).",
		"2 signals are waiting for future bars before they can be evaluated.",
	}, got)
}

func TestBuildNarrativeMinimal(t *testing.T) {
	params := contracts.DefaultGateParams()
	series := BuildTimeline(outcomesFrom(true, true), params, 20, 0)

	got := BuildNarrative(series, nil, 0, params)

	assert.Equal(t, []string{
		"First outcome evaluated for the signal of 2024-01-01.",
		"Currently UNTRUSTED after 2 evaluated outcomes (rolling hit rate 100.0%, avg return +1.00%).",
	}, got)
}

func TestBuildNarrativeEmpty(t *testing.T) {
	params := contracts.DefaultGateParams()

	assert.Equal(t, []string{StillObservingMessage}, BuildNarrative(nil, nil, 0, params))
	assert.Equal(t, []string{
		StillObservingMessage,
		"1 signal is waiting for future bars before they can be evaluated.",
	}, BuildNarrative(nil, nil, 1, params))
}

func TestFormatHelpers(t *testing.T) {
	v := 0.123
	r := -0.0042

	assert.Equal(t, "12.3%", formatPct(&v))
	assert.Equal(t, "n/a", formatPct(nil))
	assert.Equal(t, "-0.42%", formatReturnPct(&r))
	assert.Equal(t, "n/a", formatReturnPct(nil))
}
