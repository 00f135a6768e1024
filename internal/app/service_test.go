package app

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/zerthyx/ledger-service/internal/domain"
	"github.com/zerthyx/ledger-service/internal/store"
)

type withdrawalRepoStub struct {
	store.Repository

	createErr    error
	created      *domain.WithdrawalRequest
	createCalled bool
	lastAmount   float64
}

func (s *withdrawalRepoStub) CreateWithdrawal(ctx context.Context, userID uuid.UUID, amount float64, walletAddress, blockchain string, now time.Time) (*domain.WithdrawalRequest, error) {
	s.createCalled = true
	s.lastAmount = amount
	if s.createErr != nil {
		return nil, s.createErr
	}
	if s.created != nil {
		return s.created, nil
	}
	return &domain.WithdrawalRequest{
		ID:            uuid.New(),
		UserID:        userID,
		Amount:        amount,
		WalletAddress: walletAddress,
		Blockchain:    blockchain,
		Status:        domain.StatusPending,
	}, nil
}

func TestRequestWithdrawal_Validation(t *testing.T) {
	tests := []struct {
		name    string
		payload domain.CreateWithdrawalPayload
		repoErr error
		wantErr error
	}{
		{
			name:    "amount below minimum",
			payload: domain.CreateWithdrawalPayload{Amount: 9.99, WalletAddress: "TXyz", Blockchain: "TRC20"},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "amount above maximum",
			payload: domain.CreateWithdrawalPayload{Amount: 5000.01, WalletAddress: "TXyz", Blockchain: "TRC20"},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "zero amount",
			payload: domain.CreateWithdrawalPayload{Amount: 0, WalletAddress: "TXyz", Blockchain: "TRC20"},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "missing wallet address",
			payload: domain.CreateWithdrawalPayload{Amount: 50, WalletAddress: "   ", Blockchain: "TRC20"},
			wantErr: ErrMissingAddress,
		},
		{
			name:    "insufficient balance surfaces",
			payload: domain.CreateWithdrawalPayload{Amount: 50, WalletAddress: "TXyz", Blockchain: "TRC20"},
			repoErr: store.ErrInsufficientBalance,
			wantErr: store.ErrInsufficientBalance,
		},
		{
			name:    "daily limit surfaces",
			payload: domain.CreateWithdrawalPayload{Amount: 50, WalletAddress: "TXyz", Blockchain: "TRC20"},
			repoErr: store.ErrDailyWithdrawalLimit,
			wantErr: store.ErrDailyWithdrawalLimit,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &withdrawalRepoStub{createErr: tt.repoErr}
			svc := NewService(repo, nil, 1000, time.Hour, 24, 5)

			_, err := svc.RequestWithdrawal(context.Background(), uuid.New(), tt.payload)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if tt.repoErr == nil && repo.createCalled {
				t.Fatal("expected repository to be skipped on validation failure")
			}
		})
	}
}

func TestRequestWithdrawal_BoundaryAmountsAccepted(t *testing.T) {
	for _, amount := range []float64{MinWithdrawalAmount, MaxWithdrawalAmount} {
		repo := &withdrawalRepoStub{}
		svc := NewService(repo, nil, 1000, time.Hour, 24, 5)

		withdrawal, err := svc.RequestWithdrawal(context.Background(), uuid.New(), domain.CreateWithdrawalPayload{
			Amount:        amount,
			WalletAddress: "TXyzWalletAddress",
			Blockchain:    "TRC20",
		})
		if err != nil {
			t.Fatalf("expected amount %.2f to be accepted, got %v", amount, err)
		}
		if withdrawal.Status != domain.StatusPending {
			t.Fatalf("expected pending status, got %q", withdrawal.Status)
		}
		if repo.lastAmount != amount {
			t.Fatalf("expected amount %.2f forwarded to repository, got %.2f", amount, repo.lastAmount)
		}
	}
}

type blockedRateLimiter struct {
	retryAfter int
}

func (l *blockedRateLimiter) ConsumeRateLimit(ctx context.Context, scope, subject string, limit int, window time.Duration) (int, int, error) {
	return limit + 1, l.retryAfter, nil
}

func TestRequestWithdrawal_RateLimited(t *testing.T) {
	repo := &withdrawalRepoStub{}
	svc := NewService(repo, nil, 1000, time.Hour, 24, 5)
	svc.ConfigureRateLimits(5, 30)
	svc.SetRateLimiter(&blockedRateLimiter{retryAfter: 42})

	_, err := svc.RequestWithdrawal(context.Background(), uuid.New(), domain.CreateWithdrawalPayload{
		Amount:        50,
		WalletAddress: "TXyzWalletAddress",
		Blockchain:    "TRC20",
	})

	var rateLimited *RateLimitedError
	if !errors.As(err, &rateLimited) {
		t.Fatalf("expected RateLimitedError, got %v", err)
	}
	if rateLimited.RetryAfterSeconds != 42 {
		t.Fatalf("expected retry after 42s, got %d", rateLimited.RetryAfterSeconds)
	}
	if repo.createCalled {
		t.Fatal("expected repository to be skipped when rate limited")
	}
}

type depositRepoStub struct {
	store.Repository

	createCalled bool
}

func (s *depositRepoStub) CreateDepositRequest(ctx context.Context, req *domain.DepositRequest) error {
	s.createCalled = true
	req.ID = uuid.New()
	req.Status = domain.StatusPending
	return nil
}

func TestRequestDeposit_Validation(t *testing.T) {
	tests := []struct {
		name    string
		payload domain.CreateDepositPayload
		wantErr error
	}{
		{
			name:    "zero amount",
			payload: domain.CreateDepositPayload{Amount: 0, Blockchain: "TRC20", DepositAddress: "TXyz"},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "negative amount",
			payload: domain.CreateDepositPayload{Amount: -10, Blockchain: "TRC20", DepositAddress: "TXyz"},
			wantErr: ErrInvalidAmount,
		},
		{
			name:    "missing blockchain",
			payload: domain.CreateDepositPayload{Amount: 100, Blockchain: " ", DepositAddress: "TXyz"},
			wantErr: ErrMissingAddress,
		},
		{
			name:    "missing deposit address",
			payload: domain.CreateDepositPayload{Amount: 100, Blockchain: "TRC20", DepositAddress: ""},
			wantErr: ErrMissingAddress,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &depositRepoStub{}
			svc := NewService(repo, nil, 1000, time.Hour, 24, 5)

			_, err := svc.RequestDeposit(context.Background(), uuid.New(), tt.payload)
			if !errors.Is(err, tt.wantErr) {
				t.Fatalf("expected error %v, got %v", tt.wantErr, err)
			}
			if repo.createCalled {
				t.Fatal("expected repository to be skipped on validation failure")
			}
		})
	}
}

func TestRequestDeposit_Accepted(t *testing.T) {
	repo := &depositRepoStub{}
	svc := NewService(repo, nil, 1000, time.Hour, 24, 5)

	deposit, err := svc.RequestDeposit(context.Background(), uuid.New(), domain.CreateDepositPayload{
		Amount:          250,
		Blockchain:      "TRC20",
		DepositAddress:  "TXyzDepositAddress",
		TransactionHash: "  0xabc  ",
	})
	if err != nil {
		t.Fatalf("expected deposit to be accepted, got %v", err)
	}
	if deposit.Status != domain.StatusPending {
		t.Fatalf("expected pending status, got %q", deposit.Status)
	}
	if deposit.TransactionHash != "0xabc" {
		t.Fatalf("expected trimmed transaction hash, got %q", deposit.TransactionHash)
	}
}

type walletRepoStub struct {
	store.Repository

	wallet *domain.Wallet
}

func (s *walletRepoStub) EnsureWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	copied := *s.wallet
	return &copied, nil
}

func TestGetWalletState_AccruesWithoutPersisting(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	lastUpdate := now.Add(-1 * time.Hour)
	stored := &domain.Wallet{
		ID:                 uuid.New(),
		UserID:             uuid.New(),
		TotalDeposit:       1000,
		DailyEarnings:      0.5,
		TotalProfit:        3,
		LastEarningsUpdate: &lastUpdate,
		IsActive:           true,
	}
	repo := &walletRepoStub{wallet: stored}
	svc := NewService(repo, nil, 1000, time.Hour, 24, 5)
	svc.SetClock(func() time.Time { return now })

	wallet, err := svc.GetWalletState(context.Background(), stored.UserID)
	if err != nil {
		t.Fatalf("GetWalletState returned error: %v", err)
	}

	wantAccrued := 1000 * domain.DailyRate / 86400 * 3600
	if math.Abs(wallet.DailyEarnings-(0.5+wantAccrued)) > 1e-9 {
		t.Fatalf("expected daily earnings %.9f, got %.9f", 0.5+wantAccrued, wallet.DailyEarnings)
	}
	if !wallet.LastEarningsUpdate.Equal(now) {
		t.Fatalf("expected returned checkpoint at %v, got %v", now, wallet.LastEarningsUpdate)
	}
	// The stored wallet must keep its original checkpoint.
	if !stored.LastEarningsUpdate.Equal(lastUpdate) {
		t.Fatal("expected stored wallet checkpoint to be untouched")
	}
	if stored.DailyEarnings != 0.5 {
		t.Fatalf("expected stored daily earnings untouched, got %.9f", stored.DailyEarnings)
	}
}

type sweepRepoStub struct {
	store.Repository

	userIDs  []uuid.UUID
	failFor  uuid.UUID
	flushed  []uuid.UUID
	flushErr error
}

func (s *sweepRepoStub) ListActiveWalletUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	return s.userIDs, nil
}

func (s *sweepRepoStub) FlushEarnings(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.Wallet, error) {
	if userID == s.failFor {
		return nil, s.flushErr
	}
	s.flushed = append(s.flushed, userID)
	return &domain.Wallet{UserID: userID}, nil
}

func TestTransferDailyEarnings_IsolatesWalletFailures(t *testing.T) {
	first := uuid.New()
	second := uuid.New()
	third := uuid.New()
	repo := &sweepRepoStub{
		userIDs:  []uuid.UUID{first, second, third},
		failFor:  second,
		flushErr: errors.New("deadlock detected"),
	}
	svc := NewService(repo, nil, 1000, time.Hour, 24, 5)

	result, err := svc.TransferDailyEarnings(context.Background())
	if err != nil {
		t.Fatalf("TransferDailyEarnings returned error: %v", err)
	}
	if result.WalletsProcessed != 2 {
		t.Fatalf("expected 2 wallets processed, got %d", result.WalletsProcessed)
	}
	if result.WalletsFailed != 1 {
		t.Fatalf("expected 1 wallet failed, got %d", result.WalletsFailed)
	}
	if len(result.Errors) != 1 {
		t.Fatalf("expected 1 error entry, got %d", len(result.Errors))
	}
	if len(repo.flushed) != 2 || repo.flushed[0] != first || repo.flushed[1] != third {
		t.Fatalf("expected remaining wallets to be flushed in order, got %v", repo.flushed)
	}
}

type settlementRepoStub struct {
	store.Repository

	batch      *domain.DepositBatch
	withdrawal *domain.WithdrawalRequest
}

func (s *settlementRepoStub) ApproveDeposit(ctx context.Context, depositID uuid.UUID, now time.Time) (*domain.DepositBatch, error) {
	return s.batch, nil
}

func (s *settlementRepoStub) ApproveWithdrawal(ctx context.Context, withdrawalID uuid.UUID, now time.Time) (*domain.WithdrawalRequest, error) {
	return s.withdrawal, nil
}

type recordingPublisher struct {
	exchanges   []string
	routingKeys []string
	publishErr  error
}

func (p *recordingPublisher) Publish(ctx context.Context, exchange, routingKey string, body interface{}) error {
	p.exchanges = append(p.exchanges, exchange)
	p.routingKeys = append(p.routingKeys, routingKey)
	return p.publishErr
}

func (p *recordingPublisher) Close() {}

func TestApproveDeposit_PublishesEvent(t *testing.T) {
	userID := uuid.New()
	repo := &settlementRepoStub{
		batch: &domain.DepositBatch{
			ID:           uuid.New(),
			UserID:       userID,
			BatchNumber:  1,
			Amount:       500,
			MaturityDate: time.Now().Add(45 * 24 * time.Hour),
		},
	}
	publisher := &recordingPublisher{}
	svc := NewService(repo, publisher, 1000, time.Hour, 24, 5)

	batch, err := svc.ApproveDeposit(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("ApproveDeposit returned error: %v", err)
	}
	if batch.UserID != userID {
		t.Fatalf("expected batch for user %s, got %s", userID, batch.UserID)
	}
	if len(publisher.routingKeys) != 1 || publisher.routingKeys[0] != "deposit.approved" {
		t.Fatalf("expected one deposit.approved event, got %v", publisher.routingKeys)
	}
}

func TestApproveWithdrawal_PublishFailureIsNotFatal(t *testing.T) {
	repo := &settlementRepoStub{
		withdrawal: &domain.WithdrawalRequest{
			ID:            uuid.New(),
			UserID:        uuid.New(),
			Amount:        100,
			WalletAddress: "TXyz",
			Blockchain:    "TRC20",
			Status:        domain.StatusApproved,
		},
	}
	publisher := &recordingPublisher{publishErr: errors.New("channel closed")}
	svc := NewService(repo, publisher, 1000, time.Hour, 24, 5)

	withdrawal, err := svc.ApproveWithdrawal(context.Background(), uuid.New())
	if err != nil {
		t.Fatalf("expected settlement to succeed despite publish failure, got %v", err)
	}
	if withdrawal.Status != domain.StatusApproved {
		t.Fatalf("expected approved status, got %q", withdrawal.Status)
	}
	if len(publisher.routingKeys) != 1 || publisher.routingKeys[0] != "withdrawal.approved" {
		t.Fatalf("expected one withdrawal.approved event, got %v", publisher.routingKeys)
	}
}
