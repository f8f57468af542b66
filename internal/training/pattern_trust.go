package training

import (
	"fmt"
	"strings"

	"gonum.org/v1/gonum/stat"

	"github.com/jebjergk/MIP-sub000/internal/contracts"
)

// Pattern trust sources
const (
	TrustSourceView        = "view"
	TrustSourceAggregate   = "aggregate"
	TrustSourceUnavailable = "unavailable"
)

// EvaluatePatternTrust resolves the pattern-level trust decoration.
// A trusted row from the trust view wins. Otherwise the cross-symbol aggregate
// is checked against every threshold and each unmet one is listed.
func EvaluatePatternTrust(listed *contracts.PatternTrustRow, agg contracts.PatternAggregate, params contracts.GateParams) contracts.PatternTrust {
	if listed != nil && listed.IsTrusted {
		hr, ar := listed.HitRate, listed.AvgReturn
		return contracts.PatternTrust{
			Trusted:    true,
			Source:     TrustSourceView,
			NSignals:   listed.NSignals,
			HitRate:    &hr,
			AvgReturn:  &ar,
			Confidence: listed.Confidence,
		}
	}

	return contracts.PatternTrust{
		Trusted:   false,
		Source:    TrustSourceAggregate,
		NSignals:  agg.NSignals,
		HitRate:   agg.HitRate,
		AvgReturn: agg.AvgReturn,
		Reason:    UntrustedReason(agg, params),
	}
}

// UntrustedReason lists every threshold the aggregate misses.
// The three checks are independent; none short-circuits the others.
func UntrustedReason(agg contracts.PatternAggregate, params contracts.GateParams) string {
	var unmet []string

	if agg.NSignals < params.MinSignals {
		unmet = append(unmet, fmt.Sprintf("n_signals %d < %d", agg.NSignals, params.MinSignals))
	}

	switch {
	case agg.HitRate == nil:
		unmet = append(unmet, fmt.Sprintf("hit_rate unavailable (need >= %.2f)", params.MinHitRate))
	case *agg.HitRate < params.MinHitRate:
		unmet = append(unmet, fmt.Sprintf("hit_rate %.3f < %.2f", *agg.HitRate, params.MinHitRate))
	}

	switch {
	case agg.AvgReturn == nil:
		unmet = append(unmet, fmt.Sprintf("avg_return unavailable (need > %.4f)", params.MinAvgReturn))
	case *agg.AvgReturn <= params.MinAvgReturn:
		unmet = append(unmet, fmt.Sprintf("avg_return %.4f <= %.4f", *agg.AvgReturn, params.MinAvgReturn))
	}

	if len(unmet) == 0 {
		return "meets all thresholds but is not yet promoted in the trust snapshot"
	}
	return "not trusted: " + strings.Join(unmet, "; ")
}

// UnavailablePatternTrust is the decoration used when neither the trust view
// nor the aggregate fallback could be read.
func UnavailablePatternTrust() contracts.PatternTrust {
	return contracts.PatternTrust{
		Trusted: false,
		Source:  TrustSourceUnavailable,
		Reason:  "pattern trust lookup unavailable",
	}
}

// AggregateOutcomes summarizes raw outcomes into the cross-symbol fallback.
// Hit rate and average return stay nil when there are no outcomes.
func AggregateOutcomes(returns []float64, hits []bool) contracts.PatternAggregate {
	agg := contracts.PatternAggregate{NSignals: len(returns)}
	if len(returns) == 0 {
		return agg
	}

	hitValues := make([]float64, len(hits))
	for i, h := range hits {
		if h {
			hitValues[i] = 1
		}
	}

	avg := stat.Mean(returns, nil)
	agg.AvgReturn = &avg
	if len(hitValues) > 0 {
		hr := stat.Mean(hitValues, nil)
		agg.HitRate = &hr
	}
	return agg
}
