package app

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/coinharbor/investment-service/internal/domain"
	"github.com/coinharbor/investment-service/internal/money"
	"github.com/coinharbor/investment-service/internal/store"
)

func newTestService(repo store.Repository) *Service {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewService(repo, nil, logger, money.MustNew("5.0"), time.Minute, 3)
}

func seedActiveInvestment(repo *memRepo, principal, interest string) domain.Investment {
	now := time.Now().UTC()
	inv := domain.Investment{
		ID:              uuid.New(),
		UserID:          uuid.New(),
		DepositID:       uuid.New(),
		Principal:       money.MustNew(principal),
		RateMonthly:     money.MustNew("5.0"),
		AccruedInterest: money.MustNew(interest),
		LockedAmount:    money.Zero(),
		Status:          domain.InvestmentStatusActive,
		OpenedAt:        now,
		LastAccruedAt:   now,
	}
	repo.addInvestment(inv)
	return inv
}

func TestApproveDepositUsesDefaultRate(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	deposit := domain.Deposit{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Amount: money.MustNew("1000"),
		Status: domain.DepositStatusPending,
	}
	repo.addDeposit(deposit)

	inv, err := svc.ApproveDeposit(context.Background(), deposit.ID, uuid.New(), nil)
	if err != nil {
		t.Fatalf("ApproveDeposit returned error: %v", err)
	}
	if !inv.RateMonthly.Equal(money.MustNew("5.0")) {
		t.Fatalf("expected default rate 5.0, got %s", inv.RateMonthly)
	}
	if !inv.Principal.Equal(deposit.Amount) {
		t.Fatalf("expected principal %s, got %s", deposit.Amount, inv.Principal)
	}
	if inv.Status != domain.InvestmentStatusActive {
		t.Fatalf("expected active investment, got %s", inv.Status)
	}
	if !inv.AccruedInterest.IsZero() || !inv.LockedAmount.IsZero() {
		t.Fatal("expected zero interest and zero lock on a new investment")
	}
}

func TestApproveDepositPrefersProfileRate(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	userID := uuid.New()
	rate := money.MustNew("7.5")
	repo.addProfile(domain.Profile{UserID: userID, MonthlyRate: &rate})
	deposit := domain.Deposit{
		ID:     uuid.New(),
		UserID: userID,
		Amount: money.MustNew("250"),
		Status: domain.DepositStatusPending,
	}
	repo.addDeposit(deposit)

	inv, err := svc.ApproveDeposit(context.Background(), deposit.ID, uuid.New(), nil)
	if err != nil {
		t.Fatalf("ApproveDeposit returned error: %v", err)
	}
	if !inv.RateMonthly.Equal(rate) {
		t.Fatalf("expected profile rate %s, got %s", rate, inv.RateMonthly)
	}
}

func TestApproveDepositIsIdempotent(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	deposit := domain.Deposit{
		ID:     uuid.New(),
		UserID: uuid.New(),
		Amount: money.MustNew("100"),
		Status: domain.DepositStatusPending,
	}
	repo.addDeposit(deposit)

	if _, err := svc.ApproveDeposit(context.Background(), deposit.ID, uuid.New(), nil); err != nil {
		t.Fatalf("first approval returned error: %v", err)
	}
	_, err := svc.ApproveDeposit(context.Background(), deposit.ID, uuid.New(), nil)
	if !errors.Is(err, store.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed on second approval, got %v", err)
	}
	if len(repo.investments) != 1 {
		t.Fatalf("expected exactly one investment, got %d", len(repo.investments))
	}
}

func TestRejectDepositRequiresNote(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	err := svc.RejectDeposit(context.Background(), uuid.New(), uuid.New(), "   ")
	if !errors.Is(err, ErrMissingNote) {
		t.Fatalf("expected ErrMissingNote, got %v", err)
	}
}

func TestRequestWithdrawalReservesFunds(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	inv := seedActiveInvestment(repo, "500", "0")

	wd, err := svc.RequestWithdrawal(context.Background(), inv.ID, inv.UserID, money.MustNew("200"))
	if err != nil {
		t.Fatalf("RequestWithdrawal returned error: %v", err)
	}
	if wd.Status != domain.WithdrawalStatusRequested {
		t.Fatalf("expected requested status, got %s", wd.Status)
	}

	got := repo.getInvestment(inv.ID)
	if !got.LockedAmount.Equal(money.MustNew("200")) {
		t.Fatalf("expected locked amount 200, got %s", got.LockedAmount)
	}
	if !got.Available().Equal(money.MustNew("300")) {
		t.Fatalf("expected available 300, got %s", got.Available())
	}
}

func TestRequestWithdrawalRejectsNonPositiveAmount(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	inv := seedActiveInvestment(repo, "500", "0")

	if _, err := svc.RequestWithdrawal(context.Background(), inv.ID, inv.UserID, money.Zero()); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for zero, got %v", err)
	}
	if _, err := svc.RequestWithdrawal(context.Background(), inv.ID, inv.UserID, money.MustNew("-5")); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount for negative, got %v", err)
	}
}

func TestRequestWithdrawalInsufficientAvailable(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	inv := seedActiveInvestment(repo, "100", "0")

	if _, err := svc.RequestWithdrawal(context.Background(), inv.ID, inv.UserID, money.MustNew("60")); err != nil {
		t.Fatalf("first request returned error: %v", err)
	}
	_, err := svc.RequestWithdrawal(context.Background(), inv.ID, inv.UserID, money.MustNew("60"))
	if !errors.Is(err, store.ErrInsufficientAvailable) {
		t.Fatalf("expected ErrInsufficientAvailable, got %v", err)
	}
}

func TestConcurrentWithdrawalsCannotDoubleSpend(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	inv := seedActiveInvestment(repo, "500", "0")

	const attempts = 10
	var wg sync.WaitGroup
	results := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.RequestWithdrawal(context.Background(), inv.ID, inv.UserID, money.MustNew("100"))
			results <- err
		}()
	}
	wg.Wait()
	close(results)

	succeeded := 0
	for err := range results {
		if err == nil {
			succeeded++
		} else if !errors.Is(err, store.ErrInsufficientAvailable) {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	if succeeded != 5 {
		t.Fatalf("expected exactly 5 successful reservations of 100 from 500, got %d", succeeded)
	}

	got := repo.getInvestment(inv.ID)
	if !got.LockedAmount.Equal(money.MustNew("500")) {
		t.Fatalf("expected locked amount 500, got %s", got.LockedAmount)
	}
	if !got.Available().IsZero() {
		t.Fatalf("expected zero available, got %s", got.Available())
	}
}

func TestApproveWithdrawalFullBalanceClosesInvestment(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	inv := seedActiveInvestment(repo, "500", "20")

	wd, err := svc.RequestWithdrawal(context.Background(), inv.ID, inv.UserID, money.MustNew("520"))
	if err != nil {
		t.Fatalf("RequestWithdrawal returned error: %v", err)
	}

	approved, err := svc.ApproveWithdrawal(context.Background(), wd.ID, uuid.New(), nil, nil)
	if err != nil {
		t.Fatalf("ApproveWithdrawal returned error: %v", err)
	}
	if approved.Status != domain.WithdrawalStatusApproved {
		t.Fatalf("expected approved status, got %s", approved.Status)
	}

	got := repo.getInvestment(inv.ID)
	if got.Status != domain.InvestmentStatusClosed {
		t.Fatalf("expected closed investment, got %s", got.Status)
	}
	if !got.Principal.IsZero() || !got.AccruedInterest.IsZero() {
		t.Fatalf("expected zero principal and interest, got %s / %s", got.Principal, got.AccruedInterest)
	}
	if !got.LockedAmount.IsZero() {
		t.Fatalf("expected zero lock after settlement, got %s", got.LockedAmount)
	}
	if got.ClosedAt == nil {
		t.Fatal("expected closed_at to be set")
	}
}

func TestApproveWithdrawalDebitsInterestFirst(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	inv := seedActiveInvestment(repo, "500", "20")

	wd, err := svc.RequestWithdrawal(context.Background(), inv.ID, inv.UserID, money.MustNew("10"))
	if err != nil {
		t.Fatalf("RequestWithdrawal returned error: %v", err)
	}
	if _, err := svc.ApproveWithdrawal(context.Background(), wd.ID, uuid.New(), nil, nil); err != nil {
		t.Fatalf("ApproveWithdrawal returned error: %v", err)
	}

	got := repo.getInvestment(inv.ID)
	if !got.AccruedInterest.Equal(money.MustNew("10")) {
		t.Fatalf("expected interest 10 after interest-first debit, got %s", got.AccruedInterest)
	}
	if !got.Principal.Equal(money.MustNew("500")) {
		t.Fatalf("expected principal untouched at 500, got %s", got.Principal)
	}
	if got.Status != domain.InvestmentStatusActive {
		t.Fatalf("expected investment to stay active, got %s", got.Status)
	}
}

func TestApproveWithdrawalRejectsNegativeFee(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	fee := money.MustNew("-1")

	_, err := svc.ApproveWithdrawal(context.Background(), uuid.New(), uuid.New(), &fee, nil)
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
}

func TestApproveWithdrawalTwiceFails(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	inv := seedActiveInvestment(repo, "100", "0")

	wd, err := svc.RequestWithdrawal(context.Background(), inv.ID, inv.UserID, money.MustNew("50"))
	if err != nil {
		t.Fatalf("RequestWithdrawal returned error: %v", err)
	}
	if _, err := svc.ApproveWithdrawal(context.Background(), wd.ID, uuid.New(), nil, nil); err != nil {
		t.Fatalf("first approval returned error: %v", err)
	}
	_, err = svc.ApproveWithdrawal(context.Background(), wd.ID, uuid.New(), nil, nil)
	if !errors.Is(err, store.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed, got %v", err)
	}
}

func TestApproveWithdrawalConflictsWhenBalanceShrank(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	inv := seedActiveInvestment(repo, "100", "0")

	wd, err := svc.RequestWithdrawal(context.Background(), inv.ID, inv.UserID, money.MustNew("80"))
	if err != nil {
		t.Fatalf("RequestWithdrawal returned error: %v", err)
	}

	// Shrink the balance underneath the reservation, as a concurrent
	// correction would.
	repo.mu.Lock()
	repo.investments[inv.ID].Principal = money.MustNew("10")
	repo.mu.Unlock()

	_, err = svc.ApproveWithdrawal(context.Background(), wd.ID, uuid.New(), nil, nil)
	if !errors.Is(err, store.ErrSettlementConflict) {
		t.Fatalf("expected ErrSettlementConflict, got %v", err)
	}

	// The failed settlement must leave the withdrawal open for a retry
	// after the admin refreshes state.
	got, err := repo.FindWithdrawalByID(context.Background(), wd.ID)
	if err != nil {
		t.Fatalf("FindWithdrawalByID returned error: %v", err)
	}
	if got.Status != domain.WithdrawalStatusRequested {
		t.Fatalf("expected withdrawal still requested, got %s", got.Status)
	}
}

func TestRejectWithdrawalReleasesReservation(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	inv := seedActiveInvestment(repo, "300", "0")

	wd, err := svc.RequestWithdrawal(context.Background(), inv.ID, inv.UserID, money.MustNew("120"))
	if err != nil {
		t.Fatalf("RequestWithdrawal returned error: %v", err)
	}

	rejected, err := svc.RejectWithdrawal(context.Background(), wd.ID, uuid.New(), "suspicious destination")
	if err != nil {
		t.Fatalf("RejectWithdrawal returned error: %v", err)
	}
	if rejected.Status != domain.WithdrawalStatusRejected {
		t.Fatalf("expected rejected status, got %s", rejected.Status)
	}

	got := repo.getInvestment(inv.ID)
	if !got.LockedAmount.IsZero() {
		t.Fatalf("expected lock released, got %s", got.LockedAmount)
	}
	if !got.Available().Equal(money.MustNew("300")) {
		t.Fatalf("expected full available restored, got %s", got.Available())
	}
	if !got.Balance().Equal(money.MustNew("300")) {
		t.Fatalf("expected balance untouched, got %s", got.Balance())
	}
}

func TestRejectWithdrawalRequiresNote(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)

	_, err := svc.RejectWithdrawal(context.Background(), uuid.New(), uuid.New(), "")
	if !errors.Is(err, ErrMissingNote) {
		t.Fatalf("expected ErrMissingNote, got %v", err)
	}
}

func TestMarkWithdrawalSentRequiresApproved(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	inv := seedActiveInvestment(repo, "100", "0")

	wd, err := svc.RequestWithdrawal(context.Background(), inv.ID, inv.UserID, money.MustNew("40"))
	if err != nil {
		t.Fatalf("RequestWithdrawal returned error: %v", err)
	}

	if _, err := svc.MarkWithdrawalSent(context.Background(), wd.ID, uuid.New()); !errors.Is(err, store.ErrAlreadyProcessed) {
		t.Fatalf("expected ErrAlreadyProcessed before approval, got %v", err)
	}

	if _, err := svc.ApproveWithdrawal(context.Background(), wd.ID, uuid.New(), nil, nil); err != nil {
		t.Fatalf("ApproveWithdrawal returned error: %v", err)
	}
	sent, err := svc.MarkWithdrawalSent(context.Background(), wd.ID, uuid.New())
	if err != nil {
		t.Fatalf("MarkWithdrawalSent returned error: %v", err)
	}
	if sent.Status != domain.WithdrawalStatusSent {
		t.Fatalf("expected sent status, got %s", sent.Status)
	}
}

func TestAdjustInvestmentValidatesInput(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	inv := seedActiveInvestment(repo, "100", "0")

	badRate := money.MustNew("101")
	if _, err := svc.AdjustInvestment(context.Background(), inv.ID, uuid.New(), domain.AdjustInvestmentRequest{RateMonthly: &badRate}); !errors.Is(err, ErrInvalidRate) {
		t.Fatalf("expected ErrInvalidRate, got %v", err)
	}

	badStatus := "paused"
	if _, err := svc.AdjustInvestment(context.Background(), inv.ID, uuid.New(), domain.AdjustInvestmentRequest{Status: &badStatus}); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}

	badLock := money.MustNew("-1")
	if _, err := svc.AdjustInvestment(context.Background(), inv.ID, uuid.New(), domain.AdjustInvestmentRequest{LockedAmount: &badLock}); !errors.Is(err, ErrInvalidLockedValue) {
		t.Fatalf("expected ErrInvalidLockedValue, got %v", err)
	}
}

func TestAdjustInvestmentUpdatesRateAndLock(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	inv := seedActiveInvestment(repo, "100", "0")

	rate := money.MustNew("3.25")
	lock := money.MustNew("40")
	got, err := svc.AdjustInvestment(context.Background(), inv.ID, uuid.New(), domain.AdjustInvestmentRequest{RateMonthly: &rate, LockedAmount: &lock})
	if err != nil {
		t.Fatalf("AdjustInvestment returned error: %v", err)
	}
	if !got.RateMonthly.Equal(rate) {
		t.Fatalf("expected rate %s, got %s", rate, got.RateMonthly)
	}
	if !got.LockedAmount.Equal(lock) {
		t.Fatalf("expected lock %s, got %s", lock, got.LockedAmount)
	}
}

func TestAdjustInvestmentLockCannotExceedBalance(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	inv := seedActiveInvestment(repo, "100", "5")

	lock := money.MustNew("106")
	_, err := svc.AdjustInvestment(context.Background(), inv.ID, uuid.New(), domain.AdjustInvestmentRequest{LockedAmount: &lock})
	if !errors.Is(err, store.ErrLockExceedsBalance) {
		t.Fatalf("expected ErrLockExceedsBalance, got %v", err)
	}
}

func TestAdjustInvestmentIsAllOrNothing(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	inv := seedActiveInvestment(repo, "500", "20")

	// A combined edit where the lock is invalid must not commit the rate.
	rate := money.MustNew("9")
	lock := money.MustNew("100000")
	_, err := svc.AdjustInvestment(context.Background(), inv.ID, uuid.New(), domain.AdjustInvestmentRequest{RateMonthly: &rate, LockedAmount: &lock})
	if !errors.Is(err, store.ErrLockExceedsBalance) {
		t.Fatalf("expected ErrLockExceedsBalance, got %v", err)
	}

	got := repo.getInvestment(inv.ID)
	if !got.RateMonthly.Equal(money.MustNew("5.0")) {
		t.Fatalf("expected rate unchanged at 5.0 after failed edit, got %s", got.RateMonthly)
	}
	if !got.LockedAmount.IsZero() {
		t.Fatalf("expected lock unchanged at 0 after failed edit, got %s", got.LockedAmount)
	}

	// Same for a combined edit where the status is invalid: validation
	// happens before any write, so the lock must not commit either.
	goodLock := money.MustNew("50")
	badStatus := "paused"
	_, err = svc.AdjustInvestment(context.Background(), inv.ID, uuid.New(), domain.AdjustInvestmentRequest{LockedAmount: &goodLock, Status: &badStatus})
	if !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	got = repo.getInvestment(inv.ID)
	if !got.LockedAmount.IsZero() {
		t.Fatalf("expected lock unchanged after invalid status, got %s", got.LockedAmount)
	}
}

func TestAdjustInvestmentCloses(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	inv := seedActiveInvestment(repo, "100", "0")

	closed := domain.InvestmentStatusClosed
	got, err := svc.AdjustInvestment(context.Background(), inv.ID, uuid.New(), domain.AdjustInvestmentRequest{Status: &closed})
	if err != nil {
		t.Fatalf("AdjustInvestment returned error: %v", err)
	}
	if got.Status != domain.InvestmentStatusClosed {
		t.Fatalf("expected closed status, got %s", got.Status)
	}
	if got.ClosedAt == nil {
		t.Fatal("expected closed_at to be set")
	}
}

type stubRateLimiter struct {
	count int
	err   error
}

func (s *stubRateLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	if s.err != nil {
		return 0, 0, s.err
	}
	s.count++
	return s.count, 60, nil
}

func TestRequestWithdrawalRateLimited(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	svc.SetWithdrawalRateLimiter(&stubRateLimiter{}, 2)
	inv := seedActiveInvestment(repo, "1000", "0")

	for i := 0; i < 2; i++ {
		if _, err := svc.RequestWithdrawal(context.Background(), inv.ID, inv.UserID, money.MustNew("1")); err != nil {
			t.Fatalf("request %d returned error: %v", i+1, err)
		}
	}
	_, err := svc.RequestWithdrawal(context.Background(), inv.ID, inv.UserID, money.MustNew("1"))
	if !errors.Is(err, ErrRateLimited) {
		t.Fatalf("expected ErrRateLimited on third request, got %v", err)
	}
}

func TestRequestWithdrawalFailsOpenOnLimiterError(t *testing.T) {
	repo := newMemRepo()
	svc := newTestService(repo)
	svc.SetWithdrawalRateLimiter(&stubRateLimiter{err: errors.New("redis down")}, 1)
	inv := seedActiveInvestment(repo, "1000", "0")

	if _, err := svc.RequestWithdrawal(context.Background(), inv.ID, inv.UserID, money.MustNew("1")); err != nil {
		t.Fatalf("expected limiter outage to fail open, got %v", err)
	}
}
