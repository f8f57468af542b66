package contracts

import (
	"fmt"
	"time"
)

// MaxHorizons is the number of evaluation horizons every recommendation is
// scored against (1, 3, 5, 10, 20 bars).
const MaxHorizons = 5

// DefaultHorizons lists the evaluation horizons in bars
var DefaultHorizons = []int{1, 3, 5, 10, 20}

// MaturityStage 학습 성숙도 단계
type MaturityStage string

const (
	StageInsufficient MaturityStage = "INSUFFICIENT"
	StageWarmingUp    MaturityStage = "WARMING_UP"
	StageLearning     MaturityStage = "LEARNING"
	StageConfident    MaturityStage = "CONFIDENT"
)

// TrustState is the per-point trust classification of a pattern on a symbol
type TrustState string

const (
	StateUntrusted TrustState = "UNTRUSTED"
	StateWatch     TrustState = "WATCH"
	StateTrusted   TrustState = "TRUSTED"
)

// TimelineEvent marks a notable transition on a timeline point
type TimelineEvent string

const (
	EventNone               TimelineEvent = ""
	EventFirstOutcome       TimelineEvent = "FIRST_OUTCOME"
	EventMinSignalsReached  TimelineEvent = "MIN_SIGNALS_REACHED"
	EventEnteredTrusted     TimelineEvent = "ENTERED_TRUSTED"
	EventEnteredWatch       TimelineEvent = "ENTERED_WATCH"
	EventDroppedFromTrusted TimelineEvent = "DROPPED_FROM_TRUSTED"
	EventMissStreak         TimelineEvent = "MISS_STREAK"
)

// =============================================================================
// Gate Parameters
// =============================================================================

// GateParams 상태 분류 임계값
// ⭐ SSOT: 한 번의 timeline 빌드 동안 불변
type GateParams struct {
	MinSignals          int     `json:"min_signals" yaml:"min_signals"`
	MinSignalsBootstrap int     `json:"min_signals_bootstrap" yaml:"min_signals_bootstrap"`
	MinHitRate          float64 `json:"min_hit_rate" yaml:"min_hit_rate"`
	MinAvgReturn        float64 `json:"min_avg_return" yaml:"min_avg_return"`
}

// DefaultGateParams returns the thresholds used when the parameter store has
// no active row.
func DefaultGateParams() GateParams {
	return GateParams{
		MinSignals:          40,
		MinSignalsBootstrap: 5,
		MinHitRate:          0.55,
		MinAvgReturn:        0.0005,
	}
}

// Fingerprint identifies a threshold set in cache keys
func (g GateParams) Fingerprint() string {
	return fmt.Sprintf("%d/%d/%g/%g", g.MinSignals, g.MinSignalsBootstrap, g.MinHitRate, g.MinAvgReturn)
}

// Validate checks that the thresholds are usable for classification
func (g GateParams) Validate() error {
	if g.MinSignals < 0 {
		return fmt.Errorf("min_signals must be >= 0, got %d", g.MinSignals)
	}
	if g.MinSignalsBootstrap < 0 {
		return fmt.Errorf("min_signals_bootstrap must be >= 0, got %d", g.MinSignalsBootstrap)
	}
	if g.MinHitRate < 0 || g.MinHitRate > 1 {
		return fmt.Errorf("min_hit_rate must be in [0, 1], got %v", g.MinHitRate)
	}
	return nil
}

// =============================================================================
// Aggregate feed (training status)
// =============================================================================

// AggregateKey identifies one aggregate row
type AggregateKey struct {
	MarketType      string `json:"market_type"`
	Symbol          string `json:"symbol"`
	PatternID       int64  `json:"pattern_id"`
	IntervalMinutes int    `json:"interval_minutes"`
}

// AggregateRow carries the counts the maturity scorer reads.
// AvgReturns is passthrough only (keyed by horizon bars, nil = no outcomes).
type AggregateRow struct {
	AggregateKey
	RecsTotal       int              `json:"recs_total"`
	OutcomesTotal   int              `json:"outcomes_total"`
	HorizonsCovered int              `json:"horizons_covered"`
	AvgReturns      map[int]*float64 `json:"avg_returns,omitempty"`
}

// MaturityComponents is the per-component breakdown of a maturity score
type MaturityComponents struct {
	Sample   float64 `json:"sample"`
	Coverage float64 `json:"coverage"`
	Horizons float64 `json:"horizons"`
}

// TrainingStatus is an aggregate row decorated with its derived maturity
type TrainingStatus struct {
	AggregateRow
	MaturityScore float64            `json:"maturity_score"`
	MaturityStage MaturityStage      `json:"maturity_stage"`
	Reasons       []string           `json:"reasons"`
	Components    MaturityComponents `json:"components"`
}

// TrainingStatusReport is the status listing response
type TrainingStatusReport struct {
	MinSignals int              `json:"min_signals"`
	Count      int              `json:"count"`
	Rows       []TrainingStatus `json:"rows"`
}

// =============================================================================
// Outcome feed (training timeline)
// =============================================================================

// OutcomeRow is one raw row of the outcome feed before filtering
type OutcomeRow struct {
	RecommendationID int64
	SignalTS         time.Time
	EntryTS          *time.Time
	ExitTS           *time.Time
	RealizedReturn   *float64
	HitFlag          *bool
	EvalStatus       string
	EvaluatedCount   int // running count from the source, 0 if absent
}

// OutcomePoint is one successfully evaluated outcome
type OutcomePoint struct {
	ID             int64      `json:"id"`
	SignalTS       time.Time  `json:"signal_ts"`
	EntryTS        *time.Time `json:"entry_ts,omitempty"`
	ExitTS         *time.Time `json:"exit_ts,omitempty"`
	RealizedReturn float64    `json:"realized_return"`
	HitFlag        bool       `json:"hit_flag"`
	EvaluatedCount int        `json:"-"`
}

// TimelinePoint is one derived point of the training timeline
type TimelinePoint struct {
	SignalTS         time.Time     `json:"signal_ts"`
	EntryTS          *time.Time    `json:"entry_ts,omitempty"`
	ExitTS           *time.Time    `json:"exit_ts,omitempty"`
	RealizedReturn   float64       `json:"realized_return"`
	HitFlag          bool          `json:"hit_flag"`
	EvaluatedCount   int           `json:"evaluated_count"`
	RollingHitRate   *float64      `json:"rolling_hit_rate"`
	RollingAvgReturn *float64      `json:"rolling_avg_return"`
	State            TrustState    `json:"state"`
	Event            TimelineEvent `json:"event,omitempty"`
}

// TimelineKey identifies one timeline
type TimelineKey struct {
	Symbol      string `json:"symbol"`
	MarketType  string `json:"market_type"`
	PatternID   int64  `json:"pattern_id"`
	HorizonBars int    `json:"horizon_bars"`
}

// =============================================================================
// Pattern trust
// =============================================================================

// PatternTrustRow is a row of the aggregate trust view
type PatternTrustRow struct {
	PatternID   int64   `json:"pattern_id"`
	MarketType  string  `json:"market_type"`
	HorizonBars int     `json:"horizon_bars"`
	IsTrusted   bool    `json:"is_trusted"`
	NSignals    int     `json:"n_signals"`
	HitRate     float64 `json:"hit_rate"`
	AvgReturn   float64 `json:"avg_return"`
	Confidence  string  `json:"confidence"`
}

// PatternAggregate is the cross-symbol fallback computed from raw outcomes
type PatternAggregate struct {
	NSignals  int      `json:"n_signals"`
	HitRate   *float64 `json:"hit_rate"`
	AvgReturn *float64 `json:"avg_return"`
}

// PatternTrust is the decoration attached to a timeline
type PatternTrust struct {
	Trusted    bool     `json:"trusted"`
	Source     string   `json:"source"` // "view", "aggregate", "unavailable"
	NSignals   int      `json:"n_signals"`
	HitRate    *float64 `json:"hit_rate"`
	AvgReturn  *float64 `json:"avg_return"`
	Confidence string   `json:"confidence,omitempty"`
	Reason     string   `json:"reason,omitempty"`
}

// Timeline is the UI-ready training timeline response
type Timeline struct {
	TimelineKey
	Thresholds         GateParams      `json:"thresholds"`
	PatternTrust       PatternTrust    `json:"pattern_trust"`
	PendingEvaluations int             `json:"pending_evaluations"`
	Series             []TimelinePoint `json:"series"`
	Narrative          []string        `json:"narrative"`
}
