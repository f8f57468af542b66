package training

import (
	"time"

	"github.com/jebjergk/MIP-sub000/internal/contracts"
)

// =============================================================================
// Training Timeline Builder
// =============================================================================

// BuildTimeline replays an ordered outcome sequence left to right and returns
// one point per outcome, truncated to the most recent maxPoints.
// Statistics always see the full history; truncation only affects the output.
// maxPoints <= 0 disables truncation.
func BuildTimeline(
	outcomes []contracts.OutcomePoint,
	params contracts.GateParams,
	rollingWindow, maxPoints int,
) []contracts.TimelinePoint {
	series := make([]contracts.TimelinePoint, 0, len(outcomes))
	window := NewRollingWindow(rollingWindow)

	prev := contracts.StateUntrusted
	recentMisses := 0

	for i, o := range outcomes {
		window.Add(o.RealizedReturn, o.HitFlag)
		if o.HitFlag {
			recentMisses = 0
		} else {
			recentMisses++
		}

		count := i + 1
		hitRate, avgReturn := window.Stats()
		state := ClassifyState(count, hitRate, avgReturn, params)
		event := DetectEvent(i, count, prev, state, params, recentMisses)

		series = append(series, contracts.TimelinePoint{
			SignalTS:         o.SignalTS,
			EntryTS:          o.EntryTS,
			ExitTS:           o.ExitTS,
			RealizedReturn:   o.RealizedReturn,
			HitFlag:          o.HitFlag,
			EvaluatedCount:   count,
			RollingHitRate:   hitRate,
			RollingAvgReturn: avgReturn,
			State:            state,
			Event:            event,
		})
		prev = state
	}

	return TailPoints(series, maxPoints)
}

// TailPoints keeps the last maxPoints entries in order. maxPoints <= 0 keeps all.
func TailPoints(series []contracts.TimelinePoint, maxPoints int) []contracts.TimelinePoint {
	if maxPoints > 0 && len(series) > maxPoints {
		return series[len(series)-maxPoints:]
	}
	return series
}

// TimelineInput bundles everything one timeline build consumes.
// All auxiliary values are already resolved by the caller.
type TimelineInput struct {
	Key                contracts.TimelineKey
	Outcomes           []contracts.OutcomePoint
	Params             contracts.GateParams
	RollingWindow      int
	MaxPoints          int
	FirstSignalTS      *time.Time
	PendingEvaluations int
	PatternTrust       contracts.PatternTrust
}

// AssembleTimeline builds the series and narrative and wraps them in the
// response shape. The narrative reads the full series so milestones older
// than the truncated output are still reported.
func AssembleTimeline(in TimelineInput) (contracts.Timeline, OrderingReport) {
	outcomes, report := PrepareOutcomes(in.Outcomes)
	full := BuildTimeline(outcomes, in.Params, in.RollingWindow, 0)

	return contracts.Timeline{
		TimelineKey:        in.Key,
		Thresholds:         in.Params,
		PatternTrust:       in.PatternTrust,
		PendingEvaluations: in.PendingEvaluations,
		Series:             TailPoints(full, in.MaxPoints),
		Narrative:          BuildNarrative(full, in.FirstSignalTS, in.PendingEvaluations, in.Params),
	}, report
}
