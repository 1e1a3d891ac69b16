/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository`
 * interface. It contains all SQL for the deposits, investments, withdrawals,
 * profiles and ledger_entries tables.
 *
 * Concurrency discipline:
 * - Every multi-row mutation runs in a transaction and takes `FOR UPDATE` row
 *   locks on the investment involved, so per-investment mutations are
 *   linearizable.
 * - Accrual uses an optimistic compare-and-swap on last_accrued_at instead of
 *   holding locks across the whole tick; a stale base surfaces as
 *   ErrStaleAccrual and the engine retries that row.
 * - Overlapping accrual ticks are excluded by a session advisory lock.
 *
 * @dependencies
 * - github.com/jackc/pgx/v5: The PostgreSQL driver.
 * - internal/domain, internal/money: Domain models and amounts.
 */

package store

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/coinharbor/investment-service/internal/domain"
	"github.com/coinharbor/investment-service/internal/money"
)

// accrualAdvisoryLockKey identifies the accrual tick in pg_advisory locks.
// Arbitrary but stable; must not collide with other jobs on the database.
const accrualAdvisoryLockKey = int64(824_6710_01)

const investmentColumns = `
	id, user_id, deposit_id, principal, rate_monthly, accrued_interest,
	locked_amount, status, opened_at, last_accrued_at, closed_at,
	created_at, updated_at`

const withdrawalColumns = `
	id, investment_id, user_id, amount, network_fee, status, admin_note,
	created_at, updated_at`

// PostgresRepository is a concrete implementation of the Repository interface.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

func scanInvestment(row pgx.Row) (*domain.Investment, error) {
	var inv domain.Investment
	err := row.Scan(
		&inv.ID, &inv.UserID, &inv.DepositID, &inv.Principal, &inv.RateMonthly,
		&inv.AccruedInterest, &inv.LockedAmount, &inv.Status, &inv.OpenedAt,
		&inv.LastAccruedAt, &inv.ClosedAt, &inv.CreatedAt, &inv.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrInvestmentNotFound
		}
		return nil, err
	}
	return &inv, nil
}

func scanWithdrawal(row pgx.Row) (*domain.Withdrawal, error) {
	var wd domain.Withdrawal
	err := row.Scan(
		&wd.ID, &wd.InvestmentID, &wd.UserID, &wd.Amount, &wd.NetworkFee,
		&wd.Status, &wd.AdminNote, &wd.CreatedAt, &wd.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrWithdrawalNotFound
		}
		return nil, err
	}
	return &wd, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// FindDepositByID retrieves a deposit by its id.
func (r *PostgresRepository) FindDepositByID(ctx context.Context, depositID uuid.UUID) (*domain.Deposit, error) {
	var d domain.Deposit
	query := `SELECT id, user_id, amount, status, admin_note, created_at, updated_at FROM deposits WHERE id = $1`
	err := r.db.QueryRow(ctx, query, depositID).Scan(
		&d.ID, &d.UserID, &d.Amount, &d.Status, &d.AdminNote, &d.CreatedAt, &d.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrDepositNotFound
		}
		return nil, err
	}
	return &d, nil
}

// ListDepositsByStatus returns deposits in a given status, newest first.
func (r *PostgresRepository) ListDepositsByStatus(ctx context.Context, status string, limit, offset int) ([]domain.Deposit, error) {
	query := `
		SELECT id, user_id, amount, status, admin_note, created_at, updated_at
		FROM deposits
		WHERE status = $1
		ORDER BY created_at DESC
		LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deposits []domain.Deposit
	for rows.Next() {
		var d domain.Deposit
		if err := rows.Scan(&d.ID, &d.UserID, &d.Amount, &d.Status, &d.AdminNote, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, err
		}
		deposits = append(deposits, d)
	}
	return deposits, rows.Err()
}

// PromoteDeposit confirms a pending deposit and opens the investment in a
// single transaction: no investment without a confirmed deposit, and vice
// versa.
func (r *PostgresRepository) PromoteDeposit(ctx context.Context, depositID uuid.UUID, inv *domain.Investment, note *string) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	// Lock the deposit row and re-check its status under the lock. This is
	// the guard against a double-approval race.
	var status string
	err = tx.QueryRow(ctx, `SELECT status FROM deposits WHERE id = $1 FOR UPDATE`, depositID).Scan(&status)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrDepositNotFound
		}
		return err
	}
	if status != domain.DepositStatusPending {
		return ErrAlreadyProcessed
	}

	// The unique index on investments.deposit_id is the idempotency backstop
	// should the status check ever be bypassed.
	_, err = tx.Exec(ctx, `
		INSERT INTO investments (
			id, user_id, deposit_id, principal, rate_monthly, accrued_interest,
			locked_amount, status, opened_at, last_accrued_at, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, 0, 0, $6, $7, $7, NOW(), NOW())`,
		inv.ID, inv.UserID, inv.DepositID, inv.Principal, inv.RateMonthly,
		inv.Status, inv.OpenedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrInvestmentExists
		}
		return err
	}

	_, err = tx.Exec(ctx, `
		UPDATE deposits SET status = $2, admin_note = COALESCE($3, admin_note), updated_at = NOW()
		WHERE id = $1`,
		depositID, domain.DepositStatusConfirmed, note,
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ledger_entries (id, investment_id, kind, amount, created_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		uuid.New(), inv.ID, domain.LedgerEntryDeposit, inv.Principal,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// RejectDeposit marks a pending deposit rejected with the mandatory note.
func (r *PostgresRepository) RejectDeposit(ctx context.Context, depositID uuid.UUID, note string) error {
	result, err := r.db.Exec(ctx, `
		UPDATE deposits SET status = $2, admin_note = $3, updated_at = NOW()
		WHERE id = $1 AND status = $4`,
		depositID, domain.DepositStatusRejected, note, domain.DepositStatusPending,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		// Distinguish missing from already processed.
		var exists bool
		if err := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM deposits WHERE id = $1)`, depositID).Scan(&exists); err != nil {
			return err
		}
		if !exists {
			return ErrDepositNotFound
		}
		return ErrAlreadyProcessed
	}
	return nil
}

// FindProfileByUserID returns the per-user rate configuration.
func (r *PostgresRepository) FindProfileByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	var p domain.Profile
	err := r.db.QueryRow(ctx, `SELECT user_id, monthly_percentage FROM profiles WHERE user_id = $1`, userID).
		Scan(&p.UserID, &p.MonthlyRate)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// A missing profile row is not an error; the default rate applies.
			return &domain.Profile{UserID: userID}, nil
		}
		return nil, err
	}
	return &p, nil
}

// FindInvestmentByID retrieves an investment by its id.
func (r *PostgresRepository) FindInvestmentByID(ctx context.Context, investmentID uuid.UUID) (*domain.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE id = $1`
	return scanInvestment(r.db.QueryRow(ctx, query, investmentID))
}

// ListInvestmentsByUserID returns a user's investments, newest first.
func (r *PostgresRepository) ListInvestmentsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE user_id = $1 ORDER BY opened_at DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvestments(rows)
}

// ListActiveInvestments returns every investment eligible for accrual.
func (r *PostgresRepository) ListActiveInvestments(ctx context.Context) ([]domain.Investment, error) {
	query := `SELECT ` + investmentColumns + ` FROM investments WHERE status = $1 ORDER BY opened_at`
	rows, err := r.db.Query(ctx, query, domain.InvestmentStatusActive)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvestments(rows)
}

func collectInvestments(rows pgx.Rows) ([]domain.Investment, error) {
	var investments []domain.Investment
	for rows.Next() {
		var inv domain.Investment
		err := rows.Scan(
			&inv.ID, &inv.UserID, &inv.DepositID, &inv.Principal, &inv.RateMonthly,
			&inv.AccruedInterest, &inv.LockedAmount, &inv.Status, &inv.OpenedAt,
			&inv.LastAccruedAt, &inv.ClosedAt, &inv.CreatedAt, &inv.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		investments = append(investments, inv)
	}
	return investments, rows.Err()
}

// AdjustInvestment applies an admin edit in a single transaction. The row is
// locked first and every requested field is validated against the locked
// state before the one UPDATE, so a failing field can never leave an earlier
// field committed.
func (r *PostgresRepository) AdjustInvestment(ctx context.Context, investmentID uuid.UUID, req domain.AdjustInvestmentRequest) (*domain.Investment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + investmentColumns + ` FROM investments WHERE id = $1 FOR UPDATE`
	inv, err := scanInvestment(tx.QueryRow(ctx, query, investmentID))
	if err != nil {
		return nil, err
	}
	if inv.IsClosed() {
		if req.RateMonthly == nil && req.LockedAmount == nil &&
			req.Status != nil && *req.Status == domain.InvestmentStatusClosed {
			// Closing again is a no-op, tolerating admin retries.
			return inv, nil
		}
		return nil, ErrInvestmentNotActive
	}

	if req.RateMonthly != nil {
		// Takes effect on the next accrual tick, never retroactively.
		inv.RateMonthly = *req.RateMonthly
	}
	if req.LockedAmount != nil {
		if req.LockedAmount.GreaterThan(inv.Balance()) {
			return nil, ErrLockExceedsBalance
		}
		inv.LockedAmount = *req.LockedAmount
	}
	if req.Status != nil {
		inv.Status = *req.Status
		if *req.Status == domain.InvestmentStatusClosed {
			now := time.Now().UTC()
			inv.ClosedAt = &now
		}
	}

	_, err = tx.Exec(ctx, `
		UPDATE investments
		SET rate_monthly = $2, locked_amount = $3, status = $4, closed_at = $5,
		    updated_at = NOW()
		WHERE id = $1`,
		inv.ID, inv.RateMonthly, inv.LockedAmount, inv.Status, inv.ClosedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}
	return inv, nil
}

// ApplyAccrual is the optimistic compare-and-swap at the core of the accrual
// engine. last_accrued_at doubles as the row version: the update applies only
// if the base the engine computed from is still current.
func (r *PostgresRepository) ApplyAccrual(ctx context.Context, investmentID uuid.UUID, expectedLastAccruedAt, newLastAccruedAt time.Time, interestDelta money.Amount) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	result, err := tx.Exec(ctx, `
		UPDATE investments
		SET accrued_interest = accrued_interest + $4,
		    last_accrued_at = $3,
		    updated_at = NOW()
		WHERE id = $1 AND status = $5 AND last_accrued_at = $2`,
		investmentID, expectedLastAccruedAt, newLastAccruedAt, interestDelta,
		domain.InvestmentStatusActive,
	)
	if err != nil {
		return err
	}
	if result.RowsAffected() == 0 {
		var status string
		err := tx.QueryRow(ctx, `SELECT status FROM investments WHERE id = $1`, investmentID).Scan(&status)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrInvestmentNotFound
			}
			return err
		}
		if status != domain.InvestmentStatusActive {
			return ErrInvestmentNotActive
		}
		return ErrStaleAccrual
	}

	if !interestDelta.IsZero() {
		_, err = tx.Exec(ctx, `
			INSERT INTO ledger_entries (id, investment_id, kind, amount, created_at)
			VALUES ($1, $2, $3, $4, NOW())`,
			uuid.New(), investmentID, domain.LedgerEntryAccrual, interestDelta,
		)
		if err != nil {
			return err
		}
	}

	return tx.Commit(ctx)
}

// TryAcquireAccrualLock takes the session advisory lock guarding the accrual
// tick. Returns false without blocking when another tick holds it.
func (r *PostgresRepository) TryAcquireAccrualLock(ctx context.Context) (bool, error) {
	var acquired bool
	err := r.db.QueryRow(ctx, `SELECT pg_try_advisory_lock($1)`, accrualAdvisoryLockKey).Scan(&acquired)
	if err != nil {
		return false, err
	}
	return acquired, nil
}

// ReleaseAccrualLock releases the advisory lock taken by TryAcquireAccrualLock.
func (r *PostgresRepository) ReleaseAccrualLock(ctx context.Context) error {
	_, err := r.db.Exec(ctx, `SELECT pg_advisory_unlock($1)`, accrualAdvisoryLockKey)
	return err
}

// FindWithdrawalByID retrieves a withdrawal by its id.
func (r *PostgresRepository) FindWithdrawalByID(ctx context.Context, withdrawalID uuid.UUID) (*domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1`
	return scanWithdrawal(r.db.QueryRow(ctx, query, withdrawalID))
}

// ListWithdrawalsByUserID returns a user's withdrawals, newest first.
func (r *PostgresRepository) ListWithdrawalsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE user_id = $1 ORDER BY created_at DESC`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWithdrawals(rows)
}

// ListWithdrawalsByStatus returns withdrawals in a given status, oldest
// first so admins work the queue in order.
func (r *PostgresRepository) ListWithdrawalsByStatus(ctx context.Context, status string, limit, offset int) ([]domain.Withdrawal, error) {
	query := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE status = $1 ORDER BY created_at LIMIT $2 OFFSET $3`
	rows, err := r.db.Query(ctx, query, status, limit, offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectWithdrawals(rows)
}

func collectWithdrawals(rows pgx.Rows) ([]domain.Withdrawal, error) {
	var withdrawals []domain.Withdrawal
	for rows.Next() {
		var wd domain.Withdrawal
		err := rows.Scan(
			&wd.ID, &wd.InvestmentID, &wd.UserID, &wd.Amount, &wd.NetworkFee,
			&wd.Status, &wd.AdminNote, &wd.CreatedAt, &wd.UpdatedAt,
		)
		if err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, wd)
	}
	return withdrawals, rows.Err()
}

// CreateWithdrawalWithLock reserves funds and records the request in one
// transaction. The investment row lock serializes concurrent requests, so two
// individually-valid requests cannot both pass validation against the same
// unlocked balance.
func (r *PostgresRepository) CreateWithdrawalWithLock(ctx context.Context, wd *domain.Withdrawal) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	query := `SELECT ` + investmentColumns + ` FROM investments WHERE id = $1 FOR UPDATE`
	inv, err := scanInvestment(tx.QueryRow(ctx, query, wd.InvestmentID))
	if err != nil {
		return err
	}
	if inv.UserID != wd.UserID {
		// Do not leak other users' investment ids.
		return ErrInvestmentNotFound
	}
	if inv.Status != domain.InvestmentStatusActive {
		return ErrInvestmentNotActive
	}
	if wd.Amount.GreaterThan(inv.Available()) {
		return ErrInsufficientAvailable
	}

	_, err = tx.Exec(ctx, `
		UPDATE investments SET locked_amount = locked_amount + $2, updated_at = NOW()
		WHERE id = $1`,
		wd.InvestmentID, wd.Amount,
	)
	if err != nil {
		return err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO withdrawals (id, investment_id, user_id, amount, network_fee, status, created_at, updated_at)
		VALUES ($1, $2, $3, $4, 0, $5, NOW(), NOW())`,
		wd.ID, wd.InvestmentID, wd.UserID, wd.Amount, domain.WithdrawalStatusRequested,
	)
	if err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// ApproveWithdrawalAndDebit settles a requested withdrawal atomically:
// interest-first debit, reservation release, optional closure. Any invariant
// violation rolls the transaction back, leaving the ledger untouched.
func (r *PostgresRepository) ApproveWithdrawalAndDebit(ctx context.Context, withdrawalID uuid.UUID, networkFee money.Amount, note *string) (*domain.Withdrawal, *domain.Investment, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer tx.Rollback(ctx)

	wdQuery := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1 FOR UPDATE`
	wd, err := scanWithdrawal(tx.QueryRow(ctx, wdQuery, withdrawalID))
	if err != nil {
		return nil, nil, err
	}
	if wd.Status != domain.WithdrawalStatusRequested {
		return nil, nil, ErrAlreadyProcessed
	}

	invQuery := `SELECT ` + investmentColumns + ` FROM investments WHERE id = $1 FOR UPDATE`
	inv, err := scanInvestment(tx.QueryRow(ctx, invQuery, wd.InvestmentID))
	if err != nil {
		return nil, nil, err
	}
	if inv.IsClosed() {
		return nil, nil, ErrInvestmentNotActive
	}

	if err := inv.Drawdown(wd.Amount); err != nil {
		// The reservation should have prevented this; surface it as a
		// conflict the admin resolves after refreshing state.
		return nil, nil, ErrSettlementConflict
	}
	inv.LockedAmount = inv.LockedAmount.Sub(wd.Amount)
	if inv.LockedAmount.IsNegative() {
		inv.LockedAmount = money.Zero()
	}

	fullyWithdrawn := inv.Balance().Cmp(money.Zero()) <= 0
	if fullyWithdrawn {
		now := time.Now().UTC()
		inv.Status = domain.InvestmentStatusClosed
		inv.ClosedAt = &now
	}

	_, err = tx.Exec(ctx, `
		UPDATE investments
		SET principal = $2, accrued_interest = $3, locked_amount = $4,
		    status = $5, closed_at = $6, updated_at = NOW()
		WHERE id = $1`,
		inv.ID, inv.Principal, inv.AccruedInterest, inv.LockedAmount,
		inv.Status, inv.ClosedAt,
	)
	if err != nil {
		return nil, nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE withdrawals
		SET status = $2, network_fee = $3, admin_note = COALESCE($4, admin_note), updated_at = NOW()
		WHERE id = $1`,
		wd.ID, domain.WithdrawalStatusApproved, networkFee, note,
	)
	if err != nil {
		return nil, nil, err
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO ledger_entries (id, investment_id, kind, amount, created_at)
		VALUES ($1, $2, $3, $4, NOW())`,
		uuid.New(), inv.ID, domain.LedgerEntryWithdrawal, money.Zero().Sub(wd.Amount),
	)
	if err != nil {
		return nil, nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, nil, err
	}

	wd.Status = domain.WithdrawalStatusApproved
	wd.NetworkFee = networkFee
	if note != nil {
		wd.AdminNote = note
	}
	return wd, inv, nil
}

// RejectWithdrawalAndRelease releases the reservation without debiting.
func (r *PostgresRepository) RejectWithdrawalAndRelease(ctx context.Context, withdrawalID uuid.UUID, note string) (*domain.Withdrawal, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback(ctx)

	wdQuery := `SELECT ` + withdrawalColumns + ` FROM withdrawals WHERE id = $1 FOR UPDATE`
	wd, err := scanWithdrawal(tx.QueryRow(ctx, wdQuery, withdrawalID))
	if err != nil {
		return nil, err
	}
	if wd.Status != domain.WithdrawalStatusRequested {
		return nil, ErrAlreadyProcessed
	}

	// GREATEST guards against a reservation that was already trimmed by an
	// admin locked_amount edit.
	_, err = tx.Exec(ctx, `
		UPDATE investments
		SET locked_amount = GREATEST(locked_amount - $2, 0), updated_at = NOW()
		WHERE id = $1`,
		wd.InvestmentID, wd.Amount,
	)
	if err != nil {
		return nil, err
	}

	_, err = tx.Exec(ctx, `
		UPDATE withdrawals SET status = $2, admin_note = $3, updated_at = NOW()
		WHERE id = $1`,
		wd.ID, domain.WithdrawalStatusRejected, note,
	)
	if err != nil {
		return nil, err
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, err
	}

	wd.Status = domain.WithdrawalStatusRejected
	wd.AdminNote = &note
	return wd, nil
}

// MarkWithdrawalSent records that the external payout completed.
func (r *PostgresRepository) MarkWithdrawalSent(ctx context.Context, withdrawalID uuid.UUID) (*domain.Withdrawal, error) {
	query := `
		UPDATE withdrawals SET status = $2, updated_at = NOW()
		WHERE id = $1 AND status = $3
		RETURNING ` + withdrawalColumns
	wd, err := scanWithdrawal(r.db.QueryRow(ctx, query, withdrawalID, domain.WithdrawalStatusSent, domain.WithdrawalStatusApproved))
	if err != nil {
		if errors.Is(err, ErrWithdrawalNotFound) {
			// Distinguish missing from wrong state.
			var exists bool
			if scanErr := r.db.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM withdrawals WHERE id = $1)`, withdrawalID).Scan(&exists); scanErr != nil {
				return nil, scanErr
			}
			if exists {
				return nil, ErrAlreadyProcessed
			}
		}
		return nil, err
	}
	return wd, nil
}
