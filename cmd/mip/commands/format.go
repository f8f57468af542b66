package commands

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/jebjergk/MIP-sub000/internal/contracts"
)

// ═══════════════════════════════════════════════════════════
// Common Formatting Utilities
// 모든 커맨드가 동일한 출력 포맷을 사용하도록 통일
// ═══════════════════════════════════════════════════════════

const (
	doubleLine = "═══════════════════════════════════════════════════════════"
	singleLine = "───────────────────────────────────────────────────────────"
)

// PrintSeparator prints a visual separator
func PrintSeparator() {
	fmt.Println(singleLine)
}

// PrintDoubleSeparator prints a double-line separator
func PrintDoubleSeparator() {
	fmt.Println(doubleLine)
}

// PrintSuccess prints a success message
func PrintSuccess(message string) {
	fmt.Printf("✅ %s\n", message)
}

// PrintError prints an error message
func PrintError(message string) {
	fmt.Printf("❌ %s\n", message)
}

// PrintList prints a bulleted list
func PrintList(items []string) {
	for _, item := range items {
		fmt.Printf("   • %s\n", item)
	}
}

// PrintKeyValue prints key-value pairs
func PrintKeyValue(key string, value string, keyWidth int) {
	fmt.Printf("   %-*s : %s\n", keyWidth, key, value)
}

// PrintTableHeader prints a table header
func PrintTableHeader(columns []string, widths []int) {
	fmt.Println(formatRow(columns, widths))

	totalWidth := 0
	for i, width := range widths {
		totalWidth += width
		if i < len(widths)-1 {
			totalWidth += 2 // spacing
		}
	}
	fmt.Println(strings.Repeat("─", totalWidth))
}

// PrintTableRow prints a table row
func PrintTableRow(values []string, widths []int) {
	fmt.Println(formatRow(values, widths))
}

// formatRow pads by rune count so "─" and Hangul do not skew columns
func formatRow(values []string, widths []int) string {
	var b strings.Builder
	for i, val := range values {
		b.WriteString(val)
		if pad := widths[i] - utf8.RuneCountInString(val); pad > 0 && i < len(values)-1 {
			b.WriteString(strings.Repeat(" ", pad))
		}
		if i < len(values)-1 {
			b.WriteString("  ")
		}
	}
	return b.String()
}

// ═══════════════════════════════════════════════════════════
// Training tables
// ═══════════════════════════════════════════════════════════

var (
	statusColumns = []string{"MARKET", "SYMBOL", "PATTERN", "INT", "RECS", "OUTC", "HZN", "SCORE", "STAGE"}
	statusWidths  = []int{8, 10, 7, 4, 6, 6, 3, 6, 12}

	timelineColumns = []string{"#", "SIGNAL", "RET", "HIT", "ROLL HIT", "ROLL AVG", "STATE", "EVENT"}
	timelineWidths  = []int{5, 16, 8, 3, 8, 8, 9, 20}
)

func statusRow(s contracts.TrainingStatus) []string {
	return []string{
		s.MarketType,
		s.Symbol,
		fmt.Sprint(s.PatternID),
		fmt.Sprint(s.IntervalMinutes),
		fmt.Sprint(s.RecsTotal),
		fmt.Sprint(s.OutcomesTotal),
		fmt.Sprint(s.HorizonsCovered),
		fmt.Sprintf("%.1f", s.MaturityScore),
		string(s.MaturityStage),
	}
}

func timelineRow(p contracts.TimelinePoint) []string {
	hit := "✗"
	if p.HitFlag {
		hit = "✓"
	}
	return []string{
		fmt.Sprint(p.EvaluatedCount),
		p.SignalTS.UTC().Format("2006-01-02 15:04"),
		fmtPct(p.RealizedReturn),
		hit,
		fmtOptPct(p.RollingHitRate),
		fmtOptPct(p.RollingAvgReturn),
		string(p.State),
		string(p.Event),
	}
}

func printStatusTable(rows []contracts.TrainingStatus) {
	PrintTableHeader(statusColumns, statusWidths)
	for _, r := range rows {
		PrintTableRow(statusRow(r), statusWidths)
	}
}

func printTimelineTable(series []contracts.TimelinePoint) {
	PrintTableHeader(timelineColumns, timelineWidths)
	for _, p := range series {
		PrintTableRow(timelineRow(p), timelineWidths)
	}
}

func fmtPct(v float64) string {
	return fmt.Sprintf("%.2f%%", v*100)
}

func fmtOptPct(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmtPct(*v)
}
