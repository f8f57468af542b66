package training

import (
	"github.com/jebjergk/MIP-sub000/internal/contracts"
)

// missStreakThreshold is the consecutive-miss count that raises MISS_STREAK
const missStreakThreshold = 3

// ClassifyState maps the current counts and rolling stats onto a trust state.
// It does not look at the previous state: a point may re-enter TRUSTED as soon
// as its stats qualify again.
func ClassifyState(evaluatedCount int, hitRate, avgReturn *float64, params contracts.GateParams) contracts.TrustState {
	if evaluatedCount < params.MinSignalsBootstrap {
		return contracts.StateUntrusted
	}

	if evaluatedCount >= params.MinSignals &&
		hitRate != nil && *hitRate >= params.MinHitRate &&
		avgReturn != nil && *avgReturn > params.MinAvgReturn {
		return contracts.StateTrusted
	}

	return contracts.StateWatch
}

// DetectEvent picks at most one event for step i. Rules are evaluated in
// priority order and the first match wins.
func DetectEvent(
	i, evaluatedCount int,
	prev, cur contracts.TrustState,
	params contracts.GateParams,
	recentMisses int,
) contracts.TimelineEvent {
	if i == 0 {
		return contracts.EventFirstOutcome
	}

	if evaluatedCount == params.MinSignals {
		return contracts.EventMinSignalsReached
	}

	if cur != prev {
		switch {
		case cur == contracts.StateTrusted:
			return contracts.EventEnteredTrusted
		case cur == contracts.StateWatch && prev == contracts.StateUntrusted:
			return contracts.EventEnteredWatch
		case cur == contracts.StateWatch && prev == contracts.StateTrusted:
			return contracts.EventDroppedFromTrusted
		}
	}

	if recentMisses >= missStreakThreshold {
		return contracts.EventMissStreak
	}

	return contracts.EventNone
}
