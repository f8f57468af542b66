package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/jebjergk/MIP-sub000/internal/training"
)

// trainingCmd groups the training analytics commands
var trainingCmd = &cobra.Command{
	Use:   "training",
	Short: "Training 성숙도 / 타임라인 조회",
	Long: `Warehouse에서 직접 training 상태를 계산해 출력합니다.

Subcommands:
  status    - 성숙도 점수 목록
  timeline  - 한 종목/패턴/호라이즌의 학습 타임라인

Example:
  go run ./cmd/mip training status --market-type STOCK
  go run ./cmd/mip training timeline --symbol AAPL --market-type STOCK --pattern-id 3 --horizon 5`,
}

var (
	trainingStatusCmd = &cobra.Command{
		Use:   "status",
		Short: "성숙도 점수 목록",
		RunE:  runTrainingStatus,
	}

	trainingTimelineCmd = &cobra.Command{
		Use:   "timeline",
		Short: "학습 타임라인",
		RunE:  runTrainingTimeline,
	}
)

var (
	// Shared flags
	tMarketType string
	tSymbol     string
	tPatternID  int64
	tJSON       bool

	// status
	tMinSignals int

	// timeline
	tHorizon   int
	tWindow    int
	tMaxPoints int
)

func init() {
	rootCmd.AddCommand(trainingCmd)
	trainingCmd.AddCommand(trainingStatusCmd)
	trainingCmd.AddCommand(trainingTimelineCmd)

	for _, c := range []*cobra.Command{trainingStatusCmd, trainingTimelineCmd} {
		c.Flags().StringVar(&tMarketType, "market-type", "", "market type (STOCK, ETF, FX, ...)")
		c.Flags().StringVar(&tSymbol, "symbol", "", "symbol")
		c.Flags().Int64Var(&tPatternID, "pattern-id", -1, "pattern id")
		c.Flags().BoolVar(&tJSON, "json", false, "print the raw JSON response")
	}

	trainingStatusCmd.Flags().IntVar(&tMinSignals, "min-signals", -1, "override min_signals (default: active gate params)")

	trainingTimelineCmd.Flags().IntVar(&tHorizon, "horizon", 0, "horizon bars (default from training config)")
	trainingTimelineCmd.Flags().IntVar(&tWindow, "window", -1, "rolling window, 0 = unbounded")
	trainingTimelineCmd.Flags().IntVar(&tMaxPoints, "max-points", -1, "max points, 0 = all")
	_ = trainingTimelineCmd.MarkFlagRequired("symbol")
	_ = trainingTimelineCmd.MarkFlagRequired("market-type")
	_ = trainingTimelineCmd.MarkFlagRequired("pattern-id")
}

func runTrainingStatus(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	q := training.StatusQuery{MarketType: tMarketType, Symbol: tSymbol}
	if cmd.Flags().Changed("pattern-id") {
		q.PatternID = &tPatternID
	}
	if cmd.Flags().Changed("min-signals") {
		q.MinSignals = &tMinSignals
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	start := time.Now()
	report, err := a.training.Status(ctx, q)
	if err != nil {
		return fmt.Errorf("training status: %w", err)
	}

	if tJSON {
		return printJSON(report)
	}

	PrintDoubleSeparator()
	fmt.Printf("  Training Status (min_signals=%d)\n", report.MinSignals)
	PrintSeparator()
	printStatusTable(report.Rows)
	fmt.Println()
	PrintSuccess(fmt.Sprintf("%d rows in %.2fs", report.Count, time.Since(start).Seconds()))
	return nil
}

func runTrainingTimeline(cmd *cobra.Command, args []string) error {
	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	q := training.TimelineQuery{
		Symbol:     tSymbol,
		MarketType: tMarketType,
		PatternID:  tPatternID,
	}
	if cmd.Flags().Changed("horizon") {
		q.HorizonBars = &tHorizon
	}
	if cmd.Flags().Changed("window") {
		q.RollingWindow = &tWindow
	}
	if cmd.Flags().Changed("max-points") {
		q.MaxPoints = &tMaxPoints
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()

	tl, err := a.training.Timeline(ctx, q)
	if err != nil {
		return fmt.Errorf("training timeline: %w", err)
	}

	if tJSON {
		return printJSON(tl)
	}

	PrintDoubleSeparator()
	fmt.Printf("  %s / %s / pattern %d / %d bars\n", tl.MarketType, tl.Symbol, tl.PatternID, tl.HorizonBars)
	PrintSeparator()
	PrintKeyValue("Pattern trust", fmt.Sprintf("%v (%s)", tl.PatternTrust.Trusted, tl.PatternTrust.Source), 14)
	PrintKeyValue("Pending", fmt.Sprint(tl.PendingEvaluations), 14)
	PrintKeyValue("Thresholds", fmt.Sprintf("n>=%d hit>=%s avg>=%s",
		tl.Thresholds.MinSignals, fmtPct(tl.Thresholds.MinHitRate), fmtPct(tl.Thresholds.MinAvgReturn)), 14)
	fmt.Println()

	printTimelineTable(tl.Series)
	fmt.Println()
	fmt.Println("Narrative:")
	PrintList(tl.Narrative)
	return nil
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
