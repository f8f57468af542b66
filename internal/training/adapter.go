package training

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"strings"

	"github.com/jebjergk/MIP-sub000/internal/contracts"
)

// =============================================================================
// Input adapter
// Raw rows are normalized here once; the core only sees typed values.
// =============================================================================

const evalStatusSuccess = "SUCCESS"

// AggregateRowFromMap builds a typed aggregate row from a loosely keyed map.
// Each field is read from its snake_case key or the upper-case form; missing
// or non-numeric counts become 0.
func AggregateRowFromMap(m map[string]any) contracts.AggregateRow {
	row := contracts.AggregateRow{
		AggregateKey: contracts.AggregateKey{
			MarketType:      lookupString(m, "market_type"),
			Symbol:          lookupString(m, "symbol"),
			PatternID:       int64(lookupInt(m, "pattern_id")),
			IntervalMinutes: lookupInt(m, "interval_minutes"),
		},
		RecsTotal:       lookupInt(m, "recs_total"),
		OutcomesTotal:   lookupInt(m, "outcomes_total"),
		HorizonsCovered: lookupInt(m, "horizons_covered"),
	}

	for _, h := range contracts.DefaultHorizons {
		if v, ok := lookupFloat(m, fmt.Sprintf("avg_return_h%d", h)); ok {
			if row.AvgReturns == nil {
				row.AvgReturns = make(map[int]*float64)
			}
			row.AvgReturns[h] = &v
		}
	}
	return row
}

// OutcomePointsFromRows keeps only successfully evaluated rows that have a
// realized return. A missing hit flag counts as a miss.
func OutcomePointsFromRows(rows []contracts.OutcomeRow) []contracts.OutcomePoint {
	points := make([]contracts.OutcomePoint, 0, len(rows))
	for _, r := range rows {
		if !strings.EqualFold(r.EvalStatus, evalStatusSuccess) || r.RealizedReturn == nil {
			continue
		}
		points = append(points, contracts.OutcomePoint{
			ID:             r.RecommendationID,
			SignalTS:       r.SignalTS,
			EntryTS:        r.EntryTS,
			ExitTS:         r.ExitTS,
			RealizedReturn: *r.RealizedReturn,
			HitFlag:        r.HitFlag != nil && *r.HitFlag,
			EvaluatedCount: r.EvaluatedCount,
		})
	}
	return points
}

// OrderingReport describes what PrepareOutcomes had to correct
type OrderingReport struct {
	Resorted        bool `json:"resorted"`
	CountMismatches int  `json:"count_mismatches"`
}

// PrepareOutcomes enforces non-decreasing (signal_ts, id) order. The input is
// never mutated: an out-of-order sequence is stably sorted into a copy.
// Supplied running counts that disagree with the position are counted; the
// builder always uses the position.
func PrepareOutcomes(points []contracts.OutcomePoint) ([]contracts.OutcomePoint, OrderingReport) {
	var report OrderingReport

	out := points
	if !sort.SliceIsSorted(points, func(i, j int) bool { return outcomeLess(points[i], points[j]) }) {
		out = make([]contracts.OutcomePoint, len(points))
		copy(out, points)
		sort.SliceStable(out, func(i, j int) bool { return outcomeLess(out[i], out[j]) })
		report.Resorted = true
	}

	for i, p := range out {
		if p.EvaluatedCount != 0 && p.EvaluatedCount != i+1 {
			report.CountMismatches++
		}
	}
	return out, report
}

func outcomeLess(a, b contracts.OutcomePoint) bool {
	if !a.SignalTS.Equal(b.SignalTS) {
		return a.SignalTS.Before(b.SignalTS)
	}
	return a.ID < b.ID
}

// ResolveGateParams returns the stored thresholds when present and valid,
// otherwise the fallback.
func ResolveGateParams(stored *contracts.GateParams, fallback contracts.GateParams) (contracts.GateParams, bool) {
	if stored == nil || stored.Validate() != nil {
		return fallback, false
	}
	return *stored, true
}

// =============================================================================
// map lookups
// =============================================================================

func lookup(m map[string]any, key string) (any, bool) {
	if v, ok := m[key]; ok && v != nil {
		return v, true
	}
	if v, ok := m[strings.ToUpper(key)]; ok && v != nil {
		return v, true
	}
	return nil, false
}

func lookupString(m map[string]any, key string) string {
	v, ok := lookup(m, key)
	if !ok {
		return ""
	}
	switch s := v.(type) {
	case string:
		return s
	case fmt.Stringer:
		return s.String()
	default:
		return fmt.Sprint(v)
	}
}

func lookupInt(m map[string]any, key string) int {
	f, ok := lookupFloat(m, key)
	if !ok {
		return 0
	}
	return int(f)
}

func lookupFloat(m map[string]any, key string) (float64, bool) {
	v, ok := lookup(m, key)
	if !ok {
		return 0, false
	}

	var f float64
	switch n := v.(type) {
	case int:
		f = float64(n)
	case int32:
		f = float64(n)
	case int64:
		f = float64(n)
	case uint32:
		f = float64(n)
	case uint64:
		f = float64(n)
	case float32:
		f = float64(n)
	case float64:
		f = n
	case string:
		parsed, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return 0, false
		}
		f = parsed
	default:
		return 0, false
	}

	if math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}
