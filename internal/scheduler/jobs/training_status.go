package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/jebjergk/MIP-sub000/pkg/logger"
)

// StatusWarmer recomputes and caches the unfiltered status listing
type StatusWarmer interface {
	WarmStatus(ctx context.Context) (int, error)
}

// TrainingStatusWarmJob keeps the default training status listing hot in redis
// ⭐ SSOT: Training status 캐시 워밍은 이 Job에서만
type TrainingStatusWarmJob struct {
	warmer   StatusWarmer
	schedule string
	logger   *logger.Logger
}

// NewTrainingStatusWarmJob creates a new warm job with a cron spec (with seconds)
func NewTrainingStatusWarmJob(warmer StatusWarmer, schedule string, log *logger.Logger) *TrainingStatusWarmJob {
	return &TrainingStatusWarmJob{
		warmer:   warmer,
		schedule: schedule,
		logger:   log,
	}
}

// Name returns the job name
func (j *TrainingStatusWarmJob) Name() string {
	return "training_status_warm"
}

// Schedule returns the configured cron schedule
func (j *TrainingStatusWarmJob) Schedule() string {
	return j.schedule
}

// Run executes the warm-up
func (j *TrainingStatusWarmJob) Run(ctx context.Context) error {
	start := time.Now()

	rows, err := j.warmer.WarmStatus(ctx)
	if err != nil {
		return fmt.Errorf("warm training status: %w", err)
	}

	j.logger.WithFields(map[string]interface{}{
		"rows":     rows,
		"duration": time.Since(start).String(),
	}).Info("Training status cache warmed")

	return nil
}
