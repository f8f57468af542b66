package commands

import (
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/jebjergk/MIP-sub000/internal/scheduler"
	"github.com/jebjergk/MIP-sub000/internal/scheduler/jobs"
)

// schedulerCmd represents the scheduler command
var schedulerCmd = &cobra.Command{
	Use:   "scheduler",
	Short: "스케줄러 관리",
	Long: `스케줄러를 시작하거나 작업을 즉시 실행합니다.

Subcommands:
  start   - 스케줄러 시작
  list    - 등록된 작업 목록
  run     - 특정 작업 즉시 실행 (동기)

Example:
  go run ./cmd/mip scheduler start
  go run ./cmd/mip scheduler run training_status_warm`,
}

var (
	schedulerStartCmd = &cobra.Command{
		Use:   "start",
		Short: "스케줄러 시작",
		Long: `스케줄러를 시작하고 등록된 모든 작업을 스케줄합니다.

등록되는 작업:
- training_status_warm: TRAINING_WARM_SCHEDULE (status 캐시 워밍)
- warehouse_health: 1분마다 (풀 상태 로그)

METRICS_ENABLED이면 --metrics-addr에서 /metrics를 노출합니다.
스케줄러는 Ctrl+C로 종료할 수 있습니다.`,
		RunE: runScheduler,
	}

	schedulerListCmd = &cobra.Command{
		Use:   "list",
		Short: "등록된 작업 목록",
		RunE:  listJobs,
	}

	schedulerRunCmd = &cobra.Command{
		Use:   "run [job_name]",
		Short: "특정 작업 즉시 실행",
		Args:  cobra.ExactArgs(1),
		RunE:  runJob,
	}
)

var schedulerMetricsAddr string

func init() {
	rootCmd.AddCommand(schedulerCmd)
	schedulerCmd.AddCommand(schedulerStartCmd)
	schedulerCmd.AddCommand(schedulerListCmd)
	schedulerCmd.AddCommand(schedulerRunCmd)

	schedulerStartCmd.Flags().StringVar(&schedulerMetricsAddr, "metrics-addr", ":9109", "metrics listen address")
}

func runScheduler(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler()
	if err != nil {
		return err
	}
	defer a.Close()

	var metricsSrv *http.Server
	if a.metrics != nil {
		mux := http.NewServeMux()
		mux.Handle("/metrics", a.metrics.Handler())
		metricsSrv = &http.Server{Addr: schedulerMetricsAddr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
		go func() {
			if err := metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				a.log.WithError(err).Error("Metrics server failed")
			}
		}()
	}

	sched.Start()

	PrintSuccess("Scheduler started")
	fmt.Println("\nRegistered jobs:")
	PrintList(sched.GetAllJobs())
	fmt.Println("\nPress Ctrl+C to stop")

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, os.Interrupt, syscall.SIGTERM)
	<-quit

	sched.Stop()
	if metricsSrv != nil {
		_ = metricsSrv.Close()
	}
	return nil
}

func listJobs(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler()
	if err != nil {
		return err
	}
	defer a.Close()

	fmt.Println("Registered jobs:")
	for name, st := range sched.GetJobStats() {
		PrintKeyValue(name, st.Schedule, 22)
	}
	return nil
}

func runJob(cmd *cobra.Command, args []string) error {
	a, sched, err := initScheduler()
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := sched.RunJobSync(args[0])
	if err != nil {
		return fmt.Errorf("run job: %w", err)
	}
	if !result.Success {
		PrintError(fmt.Sprintf("%s failed after %d attempts: %s", result.JobName, result.Attempts, result.Error))
		return fmt.Errorf("job %s failed", result.JobName)
	}

	PrintSuccess(fmt.Sprintf("%s completed in %.2fs", result.JobName, result.Duration.Seconds()))
	return nil
}

func initScheduler() (*app, *scheduler.Scheduler, error) {
	a, err := newApp()
	if err != nil {
		return nil, nil, err
	}

	sched := scheduler.New(a.log, a.metrics, scheduler.DefaultOptions())

	for _, job := range []scheduler.Job{
		jobs.NewTrainingStatusWarmJob(a.training, a.cfg.Training.WarmSchedule, a.log),
		jobs.NewWarehouseHealthJob(a.db, a.log),
	} {
		if err := sched.AddJob(job); err != nil {
			a.Close()
			return nil, nil, fmt.Errorf("register job: %w", err)
		}
	}

	return a, sched, nil
}
