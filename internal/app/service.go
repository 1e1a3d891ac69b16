/**
 * @description
 * This file contains the core business logic for the investment-service. The
 * `Service` struct owns the deposit promotion, investment ledger edits, and
 * the withdrawal coordination flows, delegating atomic persistence to the
 * repository and publishing audit events for every state change.
 *
 * Key features:
 * - Validation happens before any mutation; validation failures never leave
 *   partial state behind.
 * - Withdrawal settlement debits accrued interest before principal and closes
 *   the investment when fully drawn down.
 * - Audit publication is fire-and-forget: a broker failure is logged and
 *   never rolls back or blocks the primary operation.
 *
 * @dependencies
 * - context, errors, log/slog, time: Standard Go libraries.
 * - github.com/google/uuid: Entity identifiers.
 * - internal/domain, internal/money, internal/store: Models and data access.
 * - pkg/rabbitmq: Audit event publication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/coinharbor/investment-service/internal/domain"
	"github.com/coinharbor/investment-service/internal/money"
	"github.com/coinharbor/investment-service/internal/store"
	"github.com/coinharbor/investment-service/pkg/rabbitmq"
)

var (
	ErrInvalidAmount      = errors.New("amount must be greater than zero")
	ErrInvalidRate        = errors.New("rate must be between 0 and 100")
	ErrInvalidStatus      = errors.New("invalid investment status")
	ErrInvalidLockedValue = errors.New("locked amount must not be negative")
	ErrMissingNote        = errors.New("a note is required when rejecting")
	ErrRateLimited        = errors.New("too many withdrawal requests")
)

var maxRate = money.FromInt(100)

// RateLimiter is the distributed rate limiter consumed on withdrawal
// creation. A nil limiter disables limiting (fail-open).
type RateLimiter interface {
	ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (count int, retryAfterSeconds int, err error)
}

// Service provides the core business logic for the investment platform.
type Service struct {
	repo                     store.Repository
	events                   rabbitmq.Publisher
	logger                   *slog.Logger
	rateLimiter              RateLimiter
	defaultMonthlyRate       money.Amount
	accrualPeriod            time.Duration
	accrualMaxRetries        int
	withdrawalLimitPerMinute int
}

// NewService creates a new investment service instance.
func NewService(repo store.Repository, events rabbitmq.Publisher, logger *slog.Logger, defaultMonthlyRate money.Amount, accrualPeriod time.Duration, accrualMaxRetries int) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	if accrualPeriod <= 0 {
		accrualPeriod = time.Minute
	}
	if accrualMaxRetries <= 0 {
		accrualMaxRetries = 3
	}
	return &Service{
		repo:               repo,
		events:             events,
		logger:             logger,
		defaultMonthlyRate: defaultMonthlyRate,
		accrualPeriod:      accrualPeriod,
		accrualMaxRetries:  accrualMaxRetries,
	}
}

// SetWithdrawalRateLimiter installs the distributed limiter applied to
// withdrawal creation.
func (s *Service) SetWithdrawalRateLimiter(limiter RateLimiter, perMinute int) {
	s.rateLimiter = limiter
	s.withdrawalLimitPerMinute = perMinute
}

// ApproveDeposit promotes a pending deposit into an active investment at the
// user's configured monthly rate (platform default when unset). The
// promotion and the deposit confirmation commit together or not at all.
func (s *Service) ApproveDeposit(ctx context.Context, depositID, adminID uuid.UUID, note *string) (*domain.Investment, error) {
	deposit, err := s.repo.FindDepositByID(ctx, depositID)
	if err != nil {
		return nil, err
	}
	if deposit.Status != domain.DepositStatusPending {
		return nil, store.ErrAlreadyProcessed
	}

	rate := s.defaultMonthlyRate
	profile, err := s.repo.FindProfileByUserID(ctx, deposit.UserID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile for deposit owner: %w", err)
	}
	if profile.MonthlyRate != nil {
		rate = *profile.MonthlyRate
	}

	now := time.Now().UTC()
	inv := &domain.Investment{
		ID:            uuid.New(),
		UserID:        deposit.UserID,
		DepositID:     deposit.ID,
		Principal:     deposit.Amount,
		RateMonthly:   rate,
		Status:        domain.InvestmentStatusActive,
		OpenedAt:      now,
		LastAccruedAt: now,
	}

	if err := s.repo.PromoteDeposit(ctx, depositID, inv, note); err != nil {
		if errors.Is(err, store.ErrInvestmentExists) {
			// The deposit was promoted by a concurrent approval.
			return nil, store.ErrAlreadyProcessed
		}
		return nil, err
	}

	s.publishAudit(ctx, adminID, "deposit.approved", "deposit", depositID, map[string]interface{}{
		"investment_id": inv.ID.String(),
		"principal":     inv.Principal.String(),
		"rate_monthly":  inv.RateMonthly.String(),
	})
	return inv, nil
}

// RejectDeposit marks a pending deposit rejected. The note is mandatory.
func (s *Service) RejectDeposit(ctx context.Context, depositID, adminID uuid.UUID, note string) error {
	if strings.TrimSpace(note) == "" {
		return ErrMissingNote
	}
	if err := s.repo.RejectDeposit(ctx, depositID, note); err != nil {
		return err
	}
	s.publishAudit(ctx, adminID, "deposit.rejected", "deposit", depositID, map[string]interface{}{
		"note": note,
	})
	return nil
}

// RequestWithdrawal reserves funds on an active investment and records the
// withdrawal in the requested state. The reservation is what prevents two
// concurrent requests from double-spending the same available balance.
func (s *Service) RequestWithdrawal(ctx context.Context, investmentID, userID uuid.UUID, amount money.Amount) (*domain.Withdrawal, error) {
	if !amount.IsPositive() {
		return nil, ErrInvalidAmount
	}

	if s.rateLimiter != nil && s.withdrawalLimitPerMinute > 0 {
		count, _, err := s.rateLimiter.ConsumeRateLimit(ctx, "withdrawal_request", userID.String(), s.withdrawalLimitPerMinute, time.Minute)
		if err != nil {
			// Fail open: a limiter outage must not block withdrawals.
			s.logger.Warn("withdrawal rate limiter unavailable", "user_id", userID, "error", err)
		} else if count > s.withdrawalLimitPerMinute {
			return nil, ErrRateLimited
		}
	}

	wd := &domain.Withdrawal{
		ID:           uuid.New(),
		InvestmentID: investmentID,
		UserID:       userID,
		Amount:       amount,
		Status:       domain.WithdrawalStatusRequested,
	}
	if err := s.repo.CreateWithdrawalWithLock(ctx, wd); err != nil {
		return nil, err
	}

	s.publishAudit(ctx, userID, "withdrawal.requested", "withdrawal", wd.ID, map[string]interface{}{
		"investment_id": investmentID.String(),
		"amount":        amount.String(),
	})
	return wd, nil
}

// ApproveWithdrawal settles a requested withdrawal: the investment is debited
// interest-first, the reservation released, and the investment closed when
// nothing remains. The network fee only affects the externally sent amount.
func (s *Service) ApproveWithdrawal(ctx context.Context, withdrawalID, adminID uuid.UUID, networkFee *money.Amount, note *string) (*domain.Withdrawal, error) {
	fee := money.Zero()
	if networkFee != nil {
		if networkFee.IsNegative() {
			return nil, ErrInvalidAmount
		}
		fee = *networkFee
	}

	wd, inv, err := s.repo.ApproveWithdrawalAndDebit(ctx, withdrawalID, fee, note)
	if err != nil {
		return nil, err
	}

	s.publishAudit(ctx, adminID, "withdrawal.approved", "withdrawal", withdrawalID, map[string]interface{}{
		"investment_id":     inv.ID.String(),
		"amount":            wd.Amount.String(),
		"network_fee":       fee.String(),
		"investment_closed": inv.IsClosed(),
	})
	return wd, nil
}

// RejectWithdrawal releases the reservation without any debit. The note is
// mandatory.
func (s *Service) RejectWithdrawal(ctx context.Context, withdrawalID, adminID uuid.UUID, note string) (*domain.Withdrawal, error) {
	if strings.TrimSpace(note) == "" {
		return nil, ErrMissingNote
	}
	wd, err := s.repo.RejectWithdrawalAndRelease(ctx, withdrawalID, note)
	if err != nil {
		return nil, err
	}
	s.publishAudit(ctx, adminID, "withdrawal.rejected", "withdrawal", withdrawalID, map[string]interface{}{
		"note": note,
	})
	return wd, nil
}

// MarkWithdrawalSent records completion of the external payout.
func (s *Service) MarkWithdrawalSent(ctx context.Context, withdrawalID, adminID uuid.UUID) (*domain.Withdrawal, error) {
	wd, err := s.repo.MarkWithdrawalSent(ctx, withdrawalID)
	if err != nil {
		return nil, err
	}
	s.publishAudit(ctx, adminID, "withdrawal.sent", "withdrawal", withdrawalID, nil)
	return wd, nil
}

// AdjustInvestment applies an admin's partial edit: rate, status, or locked
// amount. All inputs are validated up front and the repository applies the
// whole edit in one transaction, so a rejected field never leaves another
// field committed.
func (s *Service) AdjustInvestment(ctx context.Context, investmentID, adminID uuid.UUID, req domain.AdjustInvestmentRequest) (*domain.Investment, error) {
	if req.RateMonthly != nil {
		if req.RateMonthly.IsNegative() || req.RateMonthly.GreaterThan(maxRate) {
			return nil, ErrInvalidRate
		}
	}
	if req.Status != nil {
		switch *req.Status {
		case domain.InvestmentStatusActive, domain.InvestmentStatusFrozen, domain.InvestmentStatusClosed:
		default:
			return nil, ErrInvalidStatus
		}
	}
	if req.LockedAmount != nil && req.LockedAmount.IsNegative() {
		return nil, ErrInvalidLockedValue
	}

	inv, err := s.repo.AdjustInvestment(ctx, investmentID, req)
	if err != nil {
		return nil, err
	}

	s.publishAudit(ctx, adminID, "investment.adjusted", "investment", investmentID, map[string]interface{}{
		"rate_changed":   req.RateMonthly != nil,
		"status_changed": req.Status != nil,
		"lock_changed":   req.LockedAmount != nil,
	})
	return inv, nil
}

// ListInvestments returns a user's investments.
func (s *Service) ListInvestments(ctx context.Context, userID uuid.UUID) ([]domain.Investment, error) {
	return s.repo.ListInvestmentsByUserID(ctx, userID)
}

// ListWithdrawals returns a user's withdrawals.
func (s *Service) ListWithdrawals(ctx context.Context, userID uuid.UUID) ([]domain.Withdrawal, error) {
	return s.repo.ListWithdrawalsByUserID(ctx, userID)
}

// ListDepositsByStatus returns deposits for the admin queue.
func (s *Service) ListDepositsByStatus(ctx context.Context, status string, limit, offset int) ([]domain.Deposit, error) {
	return s.repo.ListDepositsByStatus(ctx, status, limit, offset)
}

// ListWithdrawalsByStatus returns withdrawals for the admin queue.
func (s *Service) ListWithdrawalsByStatus(ctx context.Context, status string, limit, offset int) ([]domain.Withdrawal, error) {
	return s.repo.ListWithdrawalsByStatus(ctx, status, limit, offset)
}

// publishAudit emits an audit event. Failures are logged, never propagated:
// audit recording must not block or roll back the primary operation.
func (s *Service) publishAudit(ctx context.Context, actorID uuid.UUID, action, entityType string, entityID uuid.UUID, metadata map[string]interface{}) {
	if s.events == nil {
		return
	}
	event := rabbitmq.AuditEvent{
		ActorID:    actorID,
		Action:     action,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   metadata,
		Timestamp:  time.Now().UTC(),
	}
	if err := s.events.PublishAuditEvent(ctx, event); err != nil {
		s.logger.Warn("audit event publish failed", "action", action, "entity_id", entityID, "error", err)
	}
}
