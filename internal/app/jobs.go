/**
 * @description
 * Scheduled job implementations for the investment-service.
 */
package app

import (
	"context"
	"log/slog"
	"time"

	"github.com/coinharbor/investment-service/internal/domain"
)

// AccrualRunner defines the accrual operation needed by the jobs.
type AccrualRunner interface {
	RunAccrualTick(ctx context.Context, now time.Time) (domain.AccrualResult, error)
}

// Jobs contains the logic for all scheduled tasks.
type Jobs struct {
	accrual AccrualRunner
	logger  *slog.Logger
}

// NewJobs creates a new Jobs runner.
func NewJobs(accrual AccrualRunner, logger *slog.Logger) *Jobs {
	return &Jobs{
		accrual: accrual,
		logger:  logger,
	}
}

// RunAccrual executes one interest accrual tick over all active investments.
func (j *Jobs) RunAccrual() {
	j.logger.Info("starting interest accrual job")
	ctx := context.Background()

	result, err := j.accrual.RunAccrualTick(ctx, time.Now().UTC())
	if err != nil {
		j.logger.Error("interest accrual job failed", "error", err)
		return
	}

	j.logger.Info("interest accrual job finished",
		"processed", result.ProcessedCount,
		"skipped", result.SkippedCount,
		"conflicts", result.ConflictCount,
	)
}
