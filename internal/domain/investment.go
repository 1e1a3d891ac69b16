/**
 * @description
 * This file defines the Investment ledger record, the central entity of the
 * service. An investment tracks one user's capital originating from one
 * confirmed deposit, the interest accrued on it over time, and the portion of
 * its value reserved against pending withdrawals.
 *
 * @notes
 * - All currency fields use money.Amount (fixed-point decimal, scale 8) to
 *   avoid floating-point drift over repeated accrual.
 * - The drawdown rules (interest consumed before principal) live here so the
 *   database layer and in-memory test doubles share one implementation.
 */

package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/coinharbor/investment-service/internal/money"
)

// Investment status values.
const (
	InvestmentStatusActive = "active"
	InvestmentStatusFrozen = "frozen"
	InvestmentStatusClosed = "closed"
)

// ErrDrawdownExceedsBalance is returned when a drawdown would take the
// investment's total value below zero.
var ErrDrawdownExceedsBalance = errors.New("drawdown exceeds investment balance")

// Investment is the authoritative ledger record for one user's invested
// capital. It maps directly to the `investments` table.
type Investment struct {
	ID              uuid.UUID    `json:"id"`
	UserID          uuid.UUID    `json:"user_id"`
	DepositID       uuid.UUID    `json:"deposit_id"`
	Principal       money.Amount `json:"principal"`
	RateMonthly     money.Amount `json:"rate_monthly"` // percent per 30-day month
	AccruedInterest money.Amount `json:"accrued_interest"`
	LockedAmount    money.Amount `json:"locked_amount"`
	Status          string       `json:"status"`
	OpenedAt        time.Time    `json:"opened_at"`
	LastAccruedAt   time.Time    `json:"last_accrued_at"`
	ClosedAt        *time.Time   `json:"closed_at,omitempty"`
	CreatedAt       time.Time    `json:"created_at"`
	UpdatedAt       time.Time    `json:"updated_at"`
}

// Balance returns principal + accrued interest.
func (i *Investment) Balance() money.Amount {
	return i.Principal.Add(i.AccruedInterest)
}

// Available returns the amount a user may request to withdraw right now:
// principal + accrued interest - locked amount.
func (i *Investment) Available() money.Amount {
	return i.Balance().Sub(i.LockedAmount)
}

// IsClosed reports whether the investment is in its terminal state.
func (i *Investment) IsClosed() bool {
	return i.Status == InvestmentStatusClosed
}

// Drawdown debits the investment by amount, consuming accrued interest before
// principal. It does not touch the locked amount; releasing the reservation
// is the caller's responsibility. Returns ErrDrawdownExceedsBalance when the
// amount exceeds principal + accrued interest.
func (i *Investment) Drawdown(amount money.Amount) error {
	if amount.GreaterThan(i.Balance()) {
		return ErrDrawdownExceedsBalance
	}
	if amount.Cmp(i.AccruedInterest) <= 0 {
		i.AccruedInterest = i.AccruedInterest.Sub(amount)
		return nil
	}
	fromPrincipal := amount.Sub(i.AccruedInterest)
	i.AccruedInterest = money.Zero()
	i.Principal = i.Principal.Sub(fromPrincipal)
	return nil
}

// AdjustInvestmentRequest carries an admin's partial edit of an investment.
// Nil fields are left untouched.
type AdjustInvestmentRequest struct {
	RateMonthly  *money.Amount `json:"rate_monthly,omitempty"`
	Status       *string       `json:"status,omitempty"`
	LockedAmount *money.Amount `json:"locked_amount,omitempty"`
}

// AccrualResult summarizes one accrual tick.
type AccrualResult struct {
	ProcessedCount int          `json:"processed_count"`
	SkippedCount   int          `json:"skipped_count"`
	ConflictCount  int          `json:"conflict_count"`
	TotalAccrued   money.Amount `json:"total_accrued"`
	// TotalRemainder is the sum of per-investment rounding remainders that
	// were not credited this tick. Reported for observability; the time-based
	// carry in last_accrued_at is what prevents systematic under-accrual.
	TotalRemainder money.Amount `json:"total_remainder"`
}
