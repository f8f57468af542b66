package jobs

import (
	"context"
	"fmt"

	"github.com/jebjergk/MIP-sub000/pkg/database"
	"github.com/jebjergk/MIP-sub000/pkg/logger"
)

// WarehouseChecker reports warehouse reachability and pool usage
type WarehouseChecker interface {
	HealthCheck(ctx context.Context) (*database.HealthStatus, error)
}

// WarehouseHealthJob logs warehouse pool statistics periodically
type WarehouseHealthJob struct {
	db     WarehouseChecker
	logger *logger.Logger
}

// NewWarehouseHealthJob creates a new warehouse health job
func NewWarehouseHealthJob(db WarehouseChecker, log *logger.Logger) *WarehouseHealthJob {
	return &WarehouseHealthJob{
		db:     db,
		logger: log,
	}
}

// Name returns the job name
func (j *WarehouseHealthJob) Name() string {
	return "warehouse_health"
}

// Schedule returns the cron schedule (every minute)
func (j *WarehouseHealthJob) Schedule() string {
	return "0 * * * * *"
}

// Run pings the warehouse; a failed ping fails the run
func (j *WarehouseHealthJob) Run(ctx context.Context) error {
	status, err := j.db.HealthCheck(ctx)
	if err != nil {
		return fmt.Errorf("warehouse unreachable: %w", err)
	}

	entry := j.logger.WithFields(map[string]interface{}{
		"response_time":  status.ResponseTime.String(),
		"acquired_conns": status.Stats.AcquiredConns,
		"idle_conns":     status.Stats.IdleConns,
		"max_conns":      status.Stats.MaxConns,
	})
	// 풀이 가득 차면 경고
	if status.Stats.MaxConns > 0 && status.Stats.AcquiredConns >= status.Stats.MaxConns {
		entry.Warn("Warehouse pool exhausted")
		return nil
	}
	entry.Debug("Warehouse healthy")

	return nil
}
