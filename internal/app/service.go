/**
 * @description
 * This file contains the core business logic for the ledger-service. The `Service`
 * struct orchestrates the accrual/maturity/withdrawal engine, coordinating between
 * the database repository, the event producer, and the periodic sweeps.
 *
 * Key features:
 * - Read-time reconciliation of accrued earnings without persisting.
 * - Withdrawal request validation (bounds, reconciled balance, daily limit).
 * - Admin settlement of deposits and withdrawals with event publication.
 * - Per-wallet failure isolation in the earnings transfer sweep.
 *
 * @dependencies
 * - context, errors, fmt, log, time: Standard Go libraries.
 * - github.com/google/uuid: For UUID handling.
 * - internal/domain, internal/store: For domain models and data access.
 * - internal/metrics, pkg/rabbitmq: For instrumentation and event publication.
 */

package app

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/zerthyx/ledger-service/internal/domain"
	"github.com/zerthyx/ledger-service/internal/metrics"
	"github.com/zerthyx/ledger-service/internal/store"
	"github.com/zerthyx/ledger-service/pkg/rabbitmq"
)

// Withdrawal bounds in USDT.
const (
	MinWithdrawalAmount = 10
	MaxWithdrawalAmount = 5000
)

var (
	ErrInvalidAmount  = errors.New("invalid amount")
	ErrMissingAddress = errors.New("missing wallet address")
)

// Clock returns the current time; swapped out in tests.
type Clock func() time.Time

// Service provides the core business logic for the wallet ledger.
type Service struct {
	repo          store.Repository
	eventProducer rabbitmq.Publisher
	now           Clock

	miningPointsPerClaim int64
	miningCooldown       time.Duration
	miningDailyClaimCap  int
	referralRewardAmount float64

	rateLimiter          RateLimiter
	withdrawalRateLimit  int
	miningClaimRateLimit int
}

// NewService creates a new ledger service instance.
func NewService(repo store.Repository, producer rabbitmq.Publisher, miningPointsPerClaim int64, miningCooldown time.Duration, miningDailyClaimCap int, referralRewardAmount float64) *Service {
	return &Service{
		repo:                 repo,
		eventProducer:        producer,
		now:                  time.Now,
		miningPointsPerClaim: miningPointsPerClaim,
		miningCooldown:       miningCooldown,
		miningDailyClaimCap:  miningDailyClaimCap,
		referralRewardAmount: referralRewardAmount,
	}
}

// SetClock overrides the service's time source. Intended for tests.
func (s *Service) SetClock(clock Clock) {
	if clock != nil {
		s.now = clock
	}
}

// GetWalletState returns the wallet with earnings reconciled to now. The
// reconciliation is read-only: the stored checkpoint is untouched, so the
// next flush still credits the full elapsed window.
func (s *Service) GetWalletState(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	wallet, err := s.repo.EnsureWallet(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	reconciled := domain.Reconcile(wallet, s.now())
	return &reconciled, nil
}

// GetNftSummary returns the read-only batch projection for the user.
func (s *Service) GetNftSummary(ctx context.Context, userID uuid.UUID) (*domain.NftSummary, error) {
	return s.repo.GetNftSummary(ctx, userID)
}

// RequestDeposit records a user's pending deposit for admin review.
func (s *Service) RequestDeposit(ctx context.Context, userID uuid.UUID, payload domain.CreateDepositPayload) (*domain.DepositRequest, error) {
	if payload.Amount <= 0 {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(payload.Blockchain) == "" || strings.TrimSpace(payload.DepositAddress) == "" {
		return nil, ErrMissingAddress
	}

	req := &domain.DepositRequest{
		UserID:          userID,
		Amount:          payload.Amount,
		Blockchain:      payload.Blockchain,
		DepositAddress:  payload.DepositAddress,
		TransactionHash: strings.TrimSpace(payload.TransactionHash),
	}
	if err := s.repo.CreateDepositRequest(ctx, req); err != nil {
		return nil, err
	}
	log.Printf("level=info component=ledger msg=\"deposit requested\" user_id=%s amount=%.2f blockchain=%s", userID, req.Amount, req.Blockchain)
	return req, nil
}

// ListDeposits returns the caller's deposit requests.
func (s *Service) ListDeposits(ctx context.Context, userID uuid.UUID) ([]domain.DepositRequest, error) {
	return s.repo.ListDepositsByUser(ctx, userID)
}

// ApproveDeposit settles a pending deposit: opens a batch, raises the
// principal, and activates the wallet. Only pending deposits transition.
func (s *Service) ApproveDeposit(ctx context.Context, depositID uuid.UUID) (*domain.DepositBatch, error) {
	batch, err := s.repo.ApproveDeposit(ctx, depositID, s.now())
	if err != nil {
		return nil, err
	}
	metrics.DepositsApproved.Inc()
	log.Printf("level=info component=ledger msg=\"deposit approved\" deposit_id=%s user_id=%s batch=%d amount=%.2f maturity=%s",
		depositID, batch.UserID, batch.BatchNumber, batch.Amount, batch.MaturityDate.Format(time.RFC3339))
	s.publish(ctx, "deposit.approved", rabbitmq.DepositApprovedEvent{
		DepositID:    depositID,
		UserID:       batch.UserID,
		Amount:       batch.Amount,
		BatchNumber:  batch.BatchNumber,
		MaturityDate: batch.MaturityDate,
		Timestamp:    s.now(),
	})
	return batch, nil
}

// RejectDeposit marks a pending deposit rejected with no side effects.
func (s *Service) RejectDeposit(ctx context.Context, depositID uuid.UUID, notes *string) error {
	return s.repo.RejectDeposit(ctx, depositID, notes)
}

// RequestWithdrawal validates bounds and delegates the balance check, the
// daily-limit check, and the insert to a single repository transaction.
func (s *Service) RequestWithdrawal(ctx context.Context, userID uuid.UUID, payload domain.CreateWithdrawalPayload) (*domain.WithdrawalRequest, error) {
	if payload.Amount < MinWithdrawalAmount || payload.Amount > MaxWithdrawalAmount {
		return nil, ErrInvalidAmount
	}
	if strings.TrimSpace(payload.WalletAddress) == "" {
		return nil, ErrMissingAddress
	}
	if err := s.consumeRateLimit(ctx, "withdrawal_request", userID.String(), s.withdrawalRateLimit); err != nil {
		return nil, err
	}

	withdrawal, err := s.repo.CreateWithdrawal(ctx, userID, payload.Amount, payload.WalletAddress, payload.Blockchain, s.now())
	if err != nil {
		return nil, err
	}
	log.Printf("level=info component=ledger msg=\"withdrawal requested\" user_id=%s amount=%.2f blockchain=%s", userID, payload.Amount, payload.Blockchain)
	return withdrawal, nil
}

// ListWithdrawals returns the caller's withdrawal requests.
func (s *Service) ListWithdrawals(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawalRequest, error) {
	return s.repo.ListWithdrawalsByUser(ctx, userID)
}

// ApproveWithdrawal settles a pending withdrawal: flush, then debit.
func (s *Service) ApproveWithdrawal(ctx context.Context, withdrawalID uuid.UUID) (*domain.WithdrawalRequest, error) {
	withdrawal, err := s.repo.ApproveWithdrawal(ctx, withdrawalID, s.now())
	if err != nil {
		return nil, err
	}
	metrics.WithdrawalsApproved.Inc()
	metrics.WithdrawalAmountTotal.Add(withdrawal.Amount)
	log.Printf("level=info component=ledger msg=\"withdrawal approved\" withdrawal_id=%s user_id=%s amount=%.2f", withdrawalID, withdrawal.UserID, withdrawal.Amount)
	s.publish(ctx, "withdrawal.approved", rabbitmq.WithdrawalApprovedEvent{
		WithdrawalID:  withdrawalID,
		UserID:        withdrawal.UserID,
		Amount:        withdrawal.Amount,
		WalletAddress: withdrawal.WalletAddress,
		Blockchain:    withdrawal.Blockchain,
		Timestamp:     s.now(),
	})
	return withdrawal, nil
}

// RejectWithdrawal marks a pending withdrawal rejected; no balance mutation.
func (s *Service) RejectWithdrawal(ctx context.Context, withdrawalID uuid.UUID, notes *string) error {
	return s.repo.RejectWithdrawal(ctx, withdrawalID, notes)
}

// SweepResult summarizes one run of the earnings transfer sweep.
type SweepResult struct {
	WalletsProcessed int      `json:"wallets_processed"`
	WalletsFailed    int      `json:"wallets_failed"`
	Errors           []string `json:"errors,omitempty"`
}

// TransferDailyEarnings flushes accrued earnings into realized profit for
// every active wallet. Each wallet is an independent unit: one wallet's
// persistence failure does not stop the others, and the failed unit can be
// retried on the next run.
func (s *Service) TransferDailyEarnings(ctx context.Context) (*SweepResult, error) {
	start := s.now()
	userIDs, err := s.repo.ListActiveWalletUserIDs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list active wallets: %w", err)
	}

	result := &SweepResult{}
	for _, userID := range userIDs {
		if _, err := s.repo.FlushEarnings(ctx, userID, s.now()); err != nil {
			result.WalletsFailed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", userID, err))
			log.Printf("level=error component=sweep msg=\"earnings flush failed\" user_id=%s err=%v", userID, err)
			continue
		}
		result.WalletsProcessed++
	}

	metrics.SweepDuration.WithLabelValues("earnings").Observe(time.Since(start).Seconds())
	metrics.SweepWalletsProcessed.Add(float64(result.WalletsProcessed))
	log.Printf("level=info component=sweep msg=\"earnings transfer complete\" processed=%d failed=%d", result.WalletsProcessed, result.WalletsFailed)
	return result, nil
}

// RunMaturitySweep marks every batch past its 45-day boundary as matured.
func (s *Service) RunMaturitySweep(ctx context.Context) (int64, error) {
	start := s.now()
	matured, err := s.repo.MarkMaturedBatches(ctx, s.now())
	if err != nil {
		return 0, err
	}
	metrics.SweepDuration.WithLabelValues("maturity").Observe(time.Since(start).Seconds())
	metrics.BatchesMatured.Add(float64(matured))
	if matured > 0 {
		log.Printf("level=info component=sweep msg=\"batches matured\" count=%d", matured)
	}
	return matured, nil
}

// RunSweeps runs both periodic sweeps; used by the background ticker.
func (s *Service) RunSweeps(ctx context.Context) {
	if _, err := s.TransferDailyEarnings(ctx); err != nil {
		log.Printf("level=error component=sweep msg=\"earnings sweep failed\" err=%v", err)
	}
	if _, err := s.RunMaturitySweep(ctx); err != nil {
		log.Printf("level=error component=sweep msg=\"maturity sweep failed\" err=%v", err)
	}
}

// GetAdminStats returns the aggregate snapshot for the admin dashboard.
func (s *Service) GetAdminStats(ctx context.Context) (*domain.AdminStats, error) {
	return s.repo.GetAdminStats(ctx)
}

func (s *Service) publish(ctx context.Context, routingKey string, body interface{}) {
	if s.eventProducer == nil {
		return
	}
	if err := s.eventProducer.Publish(ctx, rabbitmq.LedgerExchange, routingKey, body); err != nil {
		// Event delivery is best effort; settlement already committed.
		log.Printf("level=warn component=ledger msg=\"event publish failed\" routing_key=%s err=%v", routingKey, err)
	}
}
