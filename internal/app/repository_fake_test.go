package app

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/coinharbor/investment-service/internal/domain"
	"github.com/coinharbor/investment-service/internal/money"
	"github.com/coinharbor/investment-service/internal/store"
)

// memRepo is an in-memory store.Repository. A single mutex stands in for the
// database transactions, so the multi-row operations stay atomic under
// concurrent use.
type memRepo struct {
	mu sync.Mutex

	deposits    map[uuid.UUID]*domain.Deposit
	profiles    map[uuid.UUID]*domain.Profile
	investments map[uuid.UUID]*domain.Investment
	withdrawals map[uuid.UUID]*domain.Withdrawal

	investmentByDeposit map[uuid.UUID]uuid.UUID
	ledger              []domain.LedgerEntry

	accrualLockHeld bool

	// applyAccrualHook runs at the top of ApplyAccrual while the lock is not
	// yet taken; tests use it to interleave a conflicting write.
	applyAccrualHook func()
	// failAccrualFor makes ApplyAccrual fail with the given error for one
	// investment, to exercise per-row failure isolation.
	failAccrualFor map[uuid.UUID]error
}

func newMemRepo() *memRepo {
	return &memRepo{
		deposits:            make(map[uuid.UUID]*domain.Deposit),
		profiles:            make(map[uuid.UUID]*domain.Profile),
		investments:         make(map[uuid.UUID]*domain.Investment),
		withdrawals:         make(map[uuid.UUID]*domain.Withdrawal),
		investmentByDeposit: make(map[uuid.UUID]uuid.UUID),
		failAccrualFor:      make(map[uuid.UUID]error),
	}
}

func (m *memRepo) addDeposit(d domain.Deposit) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.deposits[d.ID] = &d
}

func (m *memRepo) addProfile(p domain.Profile) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.profiles[p.UserID] = &p
}

func (m *memRepo) addInvestment(inv domain.Investment) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.investments[inv.ID] = &inv
}

func (m *memRepo) getInvestment(id uuid.UUID) domain.Investment {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.investments[id]
}

func (m *memRepo) FindDepositByID(ctx context.Context, depositID uuid.UUID) (*domain.Deposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deposits[depositID]
	if !ok {
		return nil, store.ErrDepositNotFound
	}
	copied := *d
	return &copied, nil
}

func (m *memRepo) ListDepositsByStatus(ctx context.Context, status string, limit, offset int) ([]domain.Deposit, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Deposit
	for _, d := range m.deposits {
		if d.Status == status {
			out = append(out, *d)
		}
	}
	return out, nil
}

func (m *memRepo) PromoteDeposit(ctx context.Context, depositID uuid.UUID, inv *domain.Investment, note *string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deposits[depositID]
	if !ok {
		return store.ErrDepositNotFound
	}
	if d.Status != domain.DepositStatusPending {
		return store.ErrAlreadyProcessed
	}
	if _, exists := m.investmentByDeposit[depositID]; exists {
		return store.ErrInvestmentExists
	}
	copied := *inv
	copied.AccruedInterest = money.Zero()
	copied.LockedAmount = money.Zero()
	m.investments[copied.ID] = &copied
	m.investmentByDeposit[depositID] = copied.ID
	d.Status = domain.DepositStatusConfirmed
	d.AdminNote = note
	m.ledger = append(m.ledger, domain.LedgerEntry{
		ID:           uuid.New(),
		InvestmentID: copied.ID,
		Kind:         domain.LedgerEntryDeposit,
		Amount:       copied.Principal,
		CreatedAt:    time.Now().UTC(),
	})
	return nil
}

func (m *memRepo) RejectDeposit(ctx context.Context, depositID uuid.UUID, note string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	d, ok := m.deposits[depositID]
	if !ok {
		return store.ErrDepositNotFound
	}
	if d.Status != domain.DepositStatusPending {
		return store.ErrAlreadyProcessed
	}
	d.Status = domain.DepositStatusRejected
	d.AdminNote = &note
	return nil
}

func (m *memRepo) FindProfileByUserID(ctx context.Context, userID uuid.UUID) (*domain.Profile, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, ok := m.profiles[userID]; ok {
		copied := *p
		return &copied, nil
	}
	return &domain.Profile{UserID: userID}, nil
}

func (m *memRepo) FindInvestmentByID(ctx context.Context, investmentID uuid.UUID) (*domain.Investment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.investments[investmentID]
	if !ok {
		return nil, store.ErrInvestmentNotFound
	}
	copied := *inv
	return &copied, nil
}

func (m *memRepo) ListInvestmentsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Investment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Investment
	for _, inv := range m.investments {
		if inv.UserID == userID {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (m *memRepo) ListActiveInvestments(ctx context.Context) ([]domain.Investment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Investment
	for _, inv := range m.investments {
		if inv.Status == domain.InvestmentStatusActive {
			out = append(out, *inv)
		}
	}
	return out, nil
}

func (m *memRepo) AdjustInvestment(ctx context.Context, investmentID uuid.UUID, req domain.AdjustInvestmentRequest) (*domain.Investment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.investments[investmentID]
	if !ok {
		return nil, store.ErrInvestmentNotFound
	}
	if inv.Status == domain.InvestmentStatusClosed {
		if req.RateMonthly == nil && req.LockedAmount == nil &&
			req.Status != nil && *req.Status == domain.InvestmentStatusClosed {
			copied := *inv
			return &copied, nil
		}
		return nil, store.ErrInvestmentNotActive
	}

	// Validate everything against the current row before mutating anything.
	if req.LockedAmount != nil && req.LockedAmount.GreaterThan(inv.Balance()) {
		return nil, store.ErrLockExceedsBalance
	}

	if req.RateMonthly != nil {
		inv.RateMonthly = *req.RateMonthly
	}
	if req.LockedAmount != nil {
		inv.LockedAmount = *req.LockedAmount
	}
	if req.Status != nil {
		inv.Status = *req.Status
		if *req.Status == domain.InvestmentStatusClosed {
			now := time.Now().UTC()
			inv.ClosedAt = &now
		}
	}
	copied := *inv
	return &copied, nil
}

func (m *memRepo) ApplyAccrual(ctx context.Context, investmentID uuid.UUID, expectedLastAccruedAt, newLastAccruedAt time.Time, interestDelta money.Amount) error {
	if m.applyAccrualHook != nil {
		m.applyAccrualHook()
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if err, ok := m.failAccrualFor[investmentID]; ok {
		return err
	}
	inv, ok := m.investments[investmentID]
	if !ok {
		return store.ErrInvestmentNotFound
	}
	if inv.Status != domain.InvestmentStatusActive {
		return store.ErrInvestmentNotActive
	}
	if !inv.LastAccruedAt.Equal(expectedLastAccruedAt) {
		return store.ErrStaleAccrual
	}
	inv.AccruedInterest = inv.AccruedInterest.Add(interestDelta)
	inv.LastAccruedAt = newLastAccruedAt
	if !interestDelta.IsZero() {
		m.ledger = append(m.ledger, domain.LedgerEntry{
			ID:           uuid.New(),
			InvestmentID: investmentID,
			Kind:         domain.LedgerEntryAccrual,
			Amount:       interestDelta,
			CreatedAt:    time.Now().UTC(),
		})
	}
	return nil
}

func (m *memRepo) TryAcquireAccrualLock(ctx context.Context) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.accrualLockHeld {
		return false, nil
	}
	m.accrualLockHeld = true
	return true, nil
}

func (m *memRepo) ReleaseAccrualLock(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.accrualLockHeld = false
	return nil
}

func (m *memRepo) FindWithdrawalByID(ctx context.Context, withdrawalID uuid.UUID) (*domain.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wd, ok := m.withdrawals[withdrawalID]
	if !ok {
		return nil, store.ErrWithdrawalNotFound
	}
	copied := *wd
	return &copied, nil
}

func (m *memRepo) ListWithdrawalsByUserID(ctx context.Context, userID uuid.UUID) ([]domain.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Withdrawal
	for _, wd := range m.withdrawals {
		if wd.UserID == userID {
			out = append(out, *wd)
		}
	}
	return out, nil
}

func (m *memRepo) ListWithdrawalsByStatus(ctx context.Context, status string, limit, offset int) ([]domain.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []domain.Withdrawal
	for _, wd := range m.withdrawals {
		if wd.Status == status {
			out = append(out, *wd)
		}
	}
	return out, nil
}

func (m *memRepo) CreateWithdrawalWithLock(ctx context.Context, wd *domain.Withdrawal) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	inv, ok := m.investments[wd.InvestmentID]
	if !ok || inv.UserID != wd.UserID {
		return store.ErrInvestmentNotFound
	}
	if inv.Status != domain.InvestmentStatusActive {
		return store.ErrInvestmentNotActive
	}
	if wd.Amount.GreaterThan(inv.Available()) {
		return store.ErrInsufficientAvailable
	}
	inv.LockedAmount = inv.LockedAmount.Add(wd.Amount)
	now := time.Now().UTC()
	wd.NetworkFee = money.Zero()
	wd.Status = domain.WithdrawalStatusRequested
	wd.CreatedAt = now
	wd.UpdatedAt = now
	copied := *wd
	m.withdrawals[wd.ID] = &copied
	return nil
}

func (m *memRepo) ApproveWithdrawalAndDebit(ctx context.Context, withdrawalID uuid.UUID, networkFee money.Amount, note *string) (*domain.Withdrawal, *domain.Investment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wd, ok := m.withdrawals[withdrawalID]
	if !ok {
		return nil, nil, store.ErrWithdrawalNotFound
	}
	if wd.Status != domain.WithdrawalStatusRequested {
		return nil, nil, store.ErrAlreadyProcessed
	}
	inv, ok := m.investments[wd.InvestmentID]
	if !ok {
		return nil, nil, store.ErrInvestmentNotFound
	}
	if inv.Status == domain.InvestmentStatusClosed {
		return nil, nil, store.ErrInvestmentNotActive
	}
	if err := inv.Drawdown(wd.Amount); err != nil {
		return nil, nil, store.ErrSettlementConflict
	}
	released := inv.LockedAmount.Sub(wd.Amount)
	if released.IsNegative() {
		released = money.Zero()
	}
	inv.LockedAmount = released
	if !inv.Balance().IsPositive() {
		now := time.Now().UTC()
		inv.Status = domain.InvestmentStatusClosed
		inv.ClosedAt = &now
	}
	wd.Status = domain.WithdrawalStatusApproved
	wd.NetworkFee = networkFee
	wd.AdminNote = note
	m.ledger = append(m.ledger, domain.LedgerEntry{
		ID:           uuid.New(),
		InvestmentID: inv.ID,
		Kind:         domain.LedgerEntryWithdrawal,
		Amount:       money.Zero().Sub(wd.Amount),
		CreatedAt:    time.Now().UTC(),
	})
	wdCopy := *wd
	invCopy := *inv
	return &wdCopy, &invCopy, nil
}

func (m *memRepo) RejectWithdrawalAndRelease(ctx context.Context, withdrawalID uuid.UUID, note string) (*domain.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wd, ok := m.withdrawals[withdrawalID]
	if !ok {
		return nil, store.ErrWithdrawalNotFound
	}
	if wd.Status != domain.WithdrawalStatusRequested {
		return nil, store.ErrAlreadyProcessed
	}
	if inv, ok := m.investments[wd.InvestmentID]; ok {
		released := inv.LockedAmount.Sub(wd.Amount)
		if released.IsNegative() {
			released = money.Zero()
		}
		inv.LockedAmount = released
	}
	wd.Status = domain.WithdrawalStatusRejected
	wd.AdminNote = &note
	copied := *wd
	return &copied, nil
}

func (m *memRepo) MarkWithdrawalSent(ctx context.Context, withdrawalID uuid.UUID) (*domain.Withdrawal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	wd, ok := m.withdrawals[withdrawalID]
	if !ok {
		return nil, store.ErrWithdrawalNotFound
	}
	if wd.Status != domain.WithdrawalStatusApproved {
		return nil, store.ErrAlreadyProcessed
	}
	wd.Status = domain.WithdrawalStatusSent
	copied := *wd
	return &copied, nil
}
