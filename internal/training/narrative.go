package training

import (
	"fmt"
	"time"

	"github.com/jebjergk/MIP-sub000/internal/contracts"
)

const narrativeDate = "2006-01-02"

// StillObservingMessage is the single bullet of an empty timeline
const StillObservingMessage = "Still observing: no outcomes have been evaluated for this pattern yet."

// BuildNarrative turns a finished series into at most six milestone bullets,
// plus one bullet for pending evaluations when there are any.
func BuildNarrative(
	series []contracts.TimelinePoint,
	firstSignalTS *time.Time,
	pending int,
	params contracts.GateParams,
) []string {
	narrative := make([]string, 0, 7)

	if len(series) == 0 {
		narrative = append(narrative, StillObservingMessage)
		return appendPending(narrative, pending)
	}

	if firstSignalTS != nil {
		narrative = append(narrative, fmt.Sprintf("Observing since %s.", firstSignalTS.Format(narrativeDate)))
	}

	first := series[0]
	narrative = append(narrative, fmt.Sprintf("First outcome evaluated for the signal of %s.", first.SignalTS.Format(narrativeDate)))

	if p, ok := firstWithEvent(series, contracts.EventMinSignalsReached); ok {
		narrative = append(narrative, fmt.Sprintf("Reached minimum evidence (%d outcomes) on %s.",
			params.MinSignals, p.SignalTS.Format(narrativeDate)))
	}

	if p, ok := firstWithState(series, contracts.StateTrusted); ok {
		narrative = append(narrative, fmt.Sprintf("First entered TRUSTED on %s with a rolling hit rate of %s.",
			p.SignalTS.Format(narrativeDate), formatPct(p.RollingHitRate)))
	}

	if p, ok := firstWithEvent(series, contracts.EventMissStreak); ok {
		narrative = append(narrative, fmt.Sprintf("First miss streak (%d+ consecutive misses) on %s.",
			missStreakThreshold, p.SignalTS.Format(narrativeDate)))
	}

	last := series[len(series)-1]
	narrative = append(narrative, fmt.Sprintf("Currently %s after %d evaluated outcomes (rolling hit rate %s, avg return %s).",
		last.State, last.EvaluatedCount, formatPct(last.RollingHitRate), formatReturnPct(last.RollingAvgReturn)))

	return appendPending(narrative, pending)
}

func appendPending(narrative []string, pending int) []string {
	if pending <= 0 {
		return narrative
	}
	noun := "signals are"
	if pending == 1 {
		noun = "signal is"
	}
	return append(narrative, fmt.Sprintf("%d %s waiting for future bars before they can be evaluated.", pending, noun))
}

func firstWithEvent(series []contracts.TimelinePoint, event contracts.TimelineEvent) (contracts.TimelinePoint, bool) {
	for _, p := range series {
		if p.Event == event {
			return p, true
		}
	}
	return contracts.TimelinePoint{}, false
}

// firstWithState finds the first TRUSTED point; a series whose first point is
// already TRUSTED carries FIRST_OUTCOME instead of ENTERED_TRUSTED.
func firstWithState(series []contracts.TimelinePoint, state contracts.TrustState) (contracts.TimelinePoint, bool) {
	for _, p := range series {
		if p.State == state {
			return p, true
		}
	}
	return contracts.TimelinePoint{}, false
}

func formatPct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%.1f%%", *v*100)
}

func formatReturnPct(v *float64) string {
	if v == nil {
		return "n/a"
	}
	return fmt.Sprintf("%+.2f%%", *v*100)
}
