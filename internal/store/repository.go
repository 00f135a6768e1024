/**
 * @description
 * This file defines the `Repository` interface, which specifies the contract for all
 * data access operations required by the ledger-service. By defining an interface,
 * we decouple the application's business logic from the specific database implementation
 * (e.g., PostgreSQL), making the code more modular and easier to test.
 *
 * Every method that mutates balances is atomic: the PostgreSQL implementation
 * performs the read-modify-write inside a single transaction with row-level
 * locks, so two concurrent settlements against the same wallet serialize and
 * the second committer observes the first one's write.
 */

package store

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/zerthyx/ledger-service/internal/domain"
)

// Repository defines the set of methods for interacting with the database.
type Repository interface {
	// Wallet and accrual methods
	GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	EnsureWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error)
	// FlushEarnings reconciles accrued earnings to now and folds them into
	// total_profit, zeroing daily_earnings in the same transaction.
	FlushEarnings(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.Wallet, error)
	ListActiveWalletUserIDs(ctx context.Context) ([]uuid.UUID, error)

	// Deposit request and batch methods
	CreateDepositRequest(ctx context.Context, req *domain.DepositRequest) error
	ListDepositsByUser(ctx context.Context, userID uuid.UUID) ([]domain.DepositRequest, error)
	// ApproveDeposit transitions a pending deposit to approved, opens a new
	// deposit batch, and raises the wallet principal, all in one transaction.
	ApproveDeposit(ctx context.Context, depositID uuid.UUID, now time.Time) (*domain.DepositBatch, error)
	RejectDeposit(ctx context.Context, depositID uuid.UUID, notes *string) error
	GetNftSummary(ctx context.Context, userID uuid.UUID) (*domain.NftSummary, error)
	MarkMaturedBatches(ctx context.Context, now time.Time) (int64, error)

	// Withdrawal methods
	// CreateWithdrawal performs the reconciled-balance check, the
	// one-per-calendar-day check, the insert, and the wallet stamp as a
	// single atomic unit.
	CreateWithdrawal(ctx context.Context, userID uuid.UUID, amount float64, walletAddress, blockchain string, now time.Time) (*domain.WithdrawalRequest, error)
	ListWithdrawalsByUser(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawalRequest, error)
	// ApproveWithdrawal flushes reconciled earnings into total_profit and
	// then debits the withdrawn amount, in one transaction.
	ApproveWithdrawal(ctx context.Context, withdrawalID uuid.UUID, now time.Time) (*domain.WithdrawalRequest, error)
	RejectWithdrawal(ctx context.Context, withdrawalID uuid.UUID, notes *string) error

	// Mining methods
	GetMiningWallet(ctx context.Context, userID uuid.UUID) (*domain.MiningWallet, error)
	GetLatestMiningSession(ctx context.Context, userID uuid.UUID) (*domain.MiningSession, error)
	ProcessMiningClaim(ctx context.Context, userID uuid.UUID, params MiningClaimParams) (*domain.MiningClaimResult, error)
	ResetDailyMiningStats(ctx context.Context, today time.Time) (int64, error)

	// Task methods
	ListActiveTasksWithState(ctx context.Context, userID uuid.UUID) ([]domain.TaskWithState, error)
	CompleteTask(ctx context.Context, userID, taskID uuid.UUID, now time.Time) (*domain.UserTask, error)

	// Referral methods
	GetOrCreateReferralCode(ctx context.Context, userID uuid.UUID) (string, error)
	GetReferralOverview(ctx context.Context, userID uuid.UUID) (*domain.ReferralOverview, error)
	AddReferralReward(ctx context.Context, referrerID, referredID uuid.UUID, amount float64, now time.Time) error

	// Admin methods
	GetAdminStats(ctx context.Context) (*domain.AdminStats, error)
}

// MiningClaimParams carries the claim policy evaluated inside the atomic
// claim transaction.
type MiningClaimParams struct {
	Now            time.Time
	PointsPerClaim int64
	Cooldown       time.Duration
	DailyClaimCap  int
}
