package training

import (
	"fmt"
	"math"

	"github.com/jebjergk/MIP-sub000/internal/contracts"
)

// =============================================================================
// Maturity Scorer
// =============================================================================

// Component caps (sum = 100)
const (
	samplePoints   = 30.0
	coveragePoints = 40.0
	horizonPoints  = 30.0
)

// Stage band lower bounds (inclusive)
const (
	warmingUpFloor = 25.0
	learningFloor  = 50.0
	confidentFloor = 75.0
)

// Maturity is the derived confidence of one (market, symbol, pattern) row
type Maturity struct {
	Score      float64                      `json:"maturity_score"`
	Stage      contracts.MaturityStage      `json:"maturity_stage"`
	Reasons    []string                     `json:"reasons"`
	Components contracts.MaturityComponents `json:"components"`
}

// ScoreMaturity computes the 0-100 maturity score from aggregate counts.
// ⭐ SSOT: maturity 점수/단계 계산은 여기서만
func ScoreMaturity(recsTotal, outcomesTotal, horizonsCovered, minSignals int) Maturity {
	recs := max(recsTotal, 0)
	outcomes := max(outcomesTotal, 0)
	horizons := min(max(horizonsCovered, 0), contracts.MaxHorizons)

	sampleRatio := 1.0
	if minSignals > 0 {
		sampleRatio = math.Min(1, float64(recs)/float64(minSignals))
	}

	possible := recs * contracts.MaxHorizons
	coverageRatio := 0.0
	if possible > 0 {
		coverageRatio = math.Min(1, float64(outcomes)/float64(possible))
	}

	sample := samplePoints * sampleRatio
	coverage := coveragePoints * coverageRatio
	horizon := horizonPoints * float64(horizons) / contracts.MaxHorizons

	// stage는 반올림 전 합계로 결정, 반올림은 표시용
	raw := math.Min(100, sample+coverage+horizon)
	stage := StageForScore(raw)

	c := contracts.MaturityComponents{
		Sample:   round2(sample),
		Coverage: round2(coverage),
		Horizons: round2(horizon),
	}
	score := round2(raw)

	return Maturity{
		Score:      score,
		Stage:      stage,
		Components: c,
		Reasons: []string{
			sampleReason(recs, minSignals, c.Sample),
			coverageReason(outcomes, possible, c.Coverage),
			horizonReason(horizons, c.Horizons),
			overallReason(score, stage),
		},
	}
}

// StageForScore maps a total score onto its maturity band
func StageForScore(score float64) contracts.MaturityStage {
	switch {
	case score < warmingUpFloor:
		return contracts.StageInsufficient
	case score < learningFloor:
		return contracts.StageWarmingUp
	case score < confidentFloor:
		return contracts.StageLearning
	default:
		return contracts.StageConfident
	}
}

// ScoreRows decorates aggregate rows with maturity score, stage and reasons
func ScoreRows(rows []contracts.AggregateRow, minSignals int) []contracts.TrainingStatus {
	out := make([]contracts.TrainingStatus, 0, len(rows))
	for _, row := range rows {
		m := ScoreMaturity(row.RecsTotal, row.OutcomesTotal, row.HorizonsCovered, minSignals)
		out = append(out, contracts.TrainingStatus{
			AggregateRow:  row,
			MaturityScore: m.Score,
			MaturityStage: m.Stage,
			Reasons:       m.Reasons,
			Components:    m.Components,
		})
	}
	return out
}

func sampleReason(recs, minSignals int, pts float64) string {
	if minSignals <= 0 {
		return fmt.Sprintf("Sample: %d recommendations, no minimum configured (%.1f/%.0f pts).", recs, pts, samplePoints)
	}
	if recs >= minSignals {
		return fmt.Sprintf("Sample: %d recommendations meets the minimum of %d (%.1f/%.0f pts).", recs, minSignals, pts, samplePoints)
	}
	return fmt.Sprintf("Sample: %d of %d recommendations needed (%.1f/%.0f pts).", recs, minSignals, pts, samplePoints)
}

func coverageReason(outcomes, possible int, pts float64) string {
	if possible == 0 {
		return fmt.Sprintf("Coverage: no recommendations to evaluate yet (%.1f/%.0f pts).", pts, coveragePoints)
	}
	return fmt.Sprintf("Coverage: %d of %d possible outcomes evaluated (%.1f/%.0f pts).", outcomes, possible, pts, coveragePoints)
}

func horizonReason(horizons int, pts float64) string {
	return fmt.Sprintf("Horizons: %d of %d evaluation horizons have outcomes (%.1f/%.0f pts).", horizons, contracts.MaxHorizons, pts, horizonPoints)
}

func overallReason(score float64, stage contracts.MaturityStage) string {
	var summary string
	switch stage {
	case contracts.StageInsufficient:
		summary = "not enough evidence to judge this pattern yet"
	case contracts.StageWarmingUp:
		summary = "early evidence is accumulating"
	case contracts.StageLearning:
		summary = "evidence is meaningful but still maturing"
	default:
		summary = "evidence is broad enough to rely on"
	}
	return fmt.Sprintf("Overall %.1f/100 (%s): %s.", score, stage, summary)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
