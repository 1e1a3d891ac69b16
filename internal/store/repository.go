/**
 * @description
 * This file defines the `Repository` interface, the contract for all data
 * access the service performs. Defining an interface decouples the business
 * logic from PostgreSQL and lets tests substitute in-memory doubles.
 *
 * The atomic multi-row operations (promotion, withdrawal request/settlement,
 * accrual apply) are modeled as single repository methods so that every
 * implementation must provide them as one indivisible step.
 *
 * @dependencies
 * - context, time: Standard Go libraries.
 * - github.com/google/uuid: Entity identifiers.
 * - internal/domain, internal/money: Domain models and amounts.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/coinharbor/investment-service/internal/domain"
	"github.com/coinharbor/investment-service/internal/money"
)

var (
	ErrDepositNotFound       = errors.New("deposit not found")
	ErrInvestmentNotFound    = errors.New("investment not found")
	ErrWithdrawalNotFound    = errors.New("withdrawal not found")
	ErrAlreadyProcessed      = errors.New("entity already processed")
	ErrInvestmentExists      = errors.New("investment already exists for deposit")
	ErrInvestmentNotActive   = errors.New("investment is not active")
	ErrInsufficientAvailable = errors.New("insufficient available balance")
	ErrLockExceedsBalance    = errors.New("locked amount exceeds investment balance")
	ErrStaleAccrual          = errors.New("accrual base is stale")
	ErrSettlementConflict    = errors.New("settlement conflicts with current investment state")
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Deposits
	FindDepositByID(ctx context.Context, depositID uuid.UUID) (*domain.Deposit, error)
	ListDepositsByStatus(ctx context.Context, status string, limit, offset int) ([]domain.Deposit, error)
	// PromoteDeposit confirms a pending deposit and opens the given
	// investment in one transaction. Fails with ErrAlreadyProcessed if the
	// deposit is no longer pending, ErrInvestmentExists if an investment
	// already references it.
	PromoteDeposit(ctx context.Context, depositID uuid.UUID, inv *domain.Investment, note *string) error
	RejectDeposit(ctx context.Context, depositID uuid.UUID, note string) error

	// Profiles
	FindProfileByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error)

	// Investments
	FindInvestmentByID(ctx context.Context, investmentID uuid.UUID) (*domain.Investment, error)
	ListInvestmentsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Investment, error)
	ListActiveInvestments(ctx context.Context) ([]domain.Investment, error)
	// AdjustInvestment applies an admin edit (rate, status, locked amount)
	// in one transaction: every requested field commits or none does. A
	// locked amount above principal + accrued_interest fails the whole edit
	// with ErrLockExceedsBalance. Closing an already-closed investment with
	// no other edits is a no-op so admin retries are harmless; any other
	// edit of a closed investment fails with ErrInvestmentNotActive.
	AdjustInvestment(ctx context.Context, investmentID uuid.UUID, req domain.AdjustInvestmentRequest) (*domain.Investment, error)
	// ApplyAccrual credits interestDelta and advances last_accrued_at, but
	// only if the row's last_accrued_at still equals expectedLastAccruedAt
	// (optimistic compare-and-swap). Returns ErrStaleAccrual when the base
	// moved, ErrInvestmentNotActive when the row left the active state.
	ApplyAccrual(ctx context.Context, investmentID uuid.UUID, expectedLastAccruedAt, newLastAccruedAt time.Time, interestDelta money.Amount) error

	// Accrual tick mutual exclusion across overlapping runs.
	TryAcquireAccrualLock(ctx context.Context) (bool, error)
	ReleaseAccrualLock(ctx context.Context) error

	// Withdrawals
	FindWithdrawalByID(ctx context.Context, withdrawalID uuid.UUID) (*domain.Withdrawal, error)
	ListWithdrawalsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Withdrawal, error)
	ListWithdrawalsByStatus(ctx context.Context, status string, limit, offset int) ([]domain.Withdrawal, error)
	// CreateWithdrawalWithLock inserts the withdrawal and raises the target
	// investment's locked_amount by its amount in one transaction, failing
	// with ErrInsufficientAvailable when the unlocked balance cannot cover
	// it. This reservation is what makes concurrent requests safe.
	CreateWithdrawalWithLock(ctx context.Context, wd *domain.Withdrawal) error
	// ApproveWithdrawalAndDebit settles a requested withdrawal: debits the
	// investment interest-first, releases the reservation, records the fee
	// and note, and closes the investment when fully drawn down.
	ApproveWithdrawalAndDebit(ctx context.Context, withdrawalID uuid.UUID, networkFee money.Amount, note *string) (*domain.Withdrawal, *domain.Investment, error)
	// RejectWithdrawalAndRelease releases the reservation without any debit.
	RejectWithdrawalAndRelease(ctx context.Context, withdrawalID uuid.UUID, note string) (*domain.Withdrawal, error)
	// MarkWithdrawalSent records external payout completion; no ledger effect.
	MarkWithdrawalSent(ctx context.Context, withdrawalID uuid.UUID) (*domain.Withdrawal, error)
}
