/**
 * @description
 * This file contains the accrual engine: the logic behind the per-minute tick
 * that credits interest onto active investments.
 *
 * Key features:
 * - A PostgreSQL advisory lock guarantees at most one tick runs at a time
 *   across all service instances; an overlapping tick skips cleanly.
 * - Interest is prorated over whole elapsed periods only. The quotient is
 *   rounded exactly once, so sixty one-minute ticks and a single sixty-minute
 *   tick credit the same interest up to terminal rounding.
 * - Each investment is applied with an optimistic compare-and-swap on
 *   last_accrued_at; a concurrent mutation triggers a re-read and recompute
 *   rather than a double credit.
 * - One failing row never aborts the sweep. Failures are logged and counted.
 *
 * @dependencies
 * - context, errors, log/slog, time: Standard Go libraries.
 * - internal/domain, internal/money, internal/store: Models and data access.
 */

package app

import (
	"context"
	"errors"
	"time"

	"github.com/coinharbor/investment-service/internal/domain"
	"github.com/coinharbor/investment-service/internal/money"
	"github.com/coinharbor/investment-service/internal/store"
)

// rateDenominatorPerMinute converts a monthly percentage rate into a
// per-minute fraction: the 100 removes the percent, the 43200 is the number
// of minutes in the 30-day accrual month.
const rateDenominatorPerMinute = 100 * 30 * 24 * 60

// RunAccrualTick sweeps all active investments and credits the interest owed
// for the whole periods elapsed since each one last accrued. It returns a
// summary of what happened; a skipped tick (lock held elsewhere) returns a
// zero result and no error.
func (s *Service) RunAccrualTick(ctx context.Context, now time.Time) (domain.AccrualResult, error) {
	result := domain.AccrualResult{
		TotalAccrued:   money.Zero(),
		TotalRemainder: money.Zero(),
	}

	acquired, err := s.repo.TryAcquireAccrualLock(ctx)
	if err != nil {
		return result, err
	}
	if !acquired {
		s.logger.Info("accrual tick skipped, another run holds the lock")
		return result, nil
	}
	defer func() {
		if err := s.repo.ReleaseAccrualLock(ctx); err != nil {
			s.logger.Error("failed to release accrual lock", "error", err)
		}
	}()

	investments, err := s.repo.ListActiveInvestments(ctx)
	if err != nil {
		return result, err
	}

	now = now.UTC()
	for i := range investments {
		inv := investments[i]
		applied, remainder, err := s.accrueInvestment(ctx, &inv, now)
		switch {
		case err != nil:
			result.ConflictCount++
			s.logger.Error("accrual failed for investment", "investment_id", inv.ID, "error", err)
		case applied == nil:
			result.SkippedCount++
		default:
			result.ProcessedCount++
			result.TotalAccrued = result.TotalAccrued.Add(*applied)
			result.TotalRemainder = result.TotalRemainder.Add(remainder)
		}
	}

	s.logger.Info("accrual tick complete",
		"processed", result.ProcessedCount,
		"skipped", result.SkippedCount,
		"conflicts", result.ConflictCount,
		"total_accrued", result.TotalAccrued.String(),
	)
	return result, nil
}

// accrueInvestment computes and applies the interest owed to one investment.
// A nil applied amount with a nil error means nothing was due. The
// compare-and-swap on last_accrued_at is retried a bounded number of times,
// recomputing from a fresh read each time.
func (s *Service) accrueInvestment(ctx context.Context, inv *domain.Investment, now time.Time) (*money.Amount, money.Amount, error) {
	var lastErr error
	for attempt := 0; attempt < s.accrualMaxRetries; attempt++ {
		periods := wholePeriods(inv.LastAccruedAt, now, s.accrualPeriod)
		if periods <= 0 {
			return nil, money.Zero(), nil
		}

		delta, remainder := money.Prorate(inv.Principal, inv.RateMonthly, periods, rateDenominatorPerMinute)
		newLastAccruedAt := inv.LastAccruedAt.Add(time.Duration(periods) * s.accrualPeriod)

		err := s.repo.ApplyAccrual(ctx, inv.ID, inv.LastAccruedAt, newLastAccruedAt, delta)
		if err == nil {
			return &delta, remainder, nil
		}
		if errors.Is(err, store.ErrInvestmentNotActive) || errors.Is(err, store.ErrInvestmentNotFound) {
			// Closed or frozen between listing and apply; nothing owed.
			return nil, money.Zero(), nil
		}
		if !errors.Is(err, store.ErrStaleAccrual) {
			return nil, money.Zero(), err
		}

		lastErr = err
		fresh, ferr := s.repo.FindInvestmentByID(ctx, inv.ID)
		if ferr != nil {
			if errors.Is(ferr, store.ErrInvestmentNotFound) {
				return nil, money.Zero(), nil
			}
			return nil, money.Zero(), ferr
		}
		if fresh.Status != domain.InvestmentStatusActive {
			return nil, money.Zero(), nil
		}
		*inv = *fresh
	}
	return nil, money.Zero(), lastErr
}

// wholePeriods returns the count of full periods between from and now,
// discarding any fractional tail.
func wholePeriods(from, now time.Time, period time.Duration) int64 {
	elapsed := now.Sub(from)
	if elapsed < period {
		return 0
	}
	return int64(elapsed / period)
}
