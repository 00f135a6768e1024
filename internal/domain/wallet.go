/**
 * @description
 * This file defines the core domain models for the ledger-service.
 * These structs represent the main entities and data transfer objects (DTOs)
 * used throughout the service's business logic, database interactions, and API layers.
 *
 * @notes
 * - Monetary amounts are USDT values stored as float64 (double precision in
 *   PostgreSQL). Accrued earnings are a continuous function of elapsed
 *   wall-clock time, so integer minor units cannot represent them; reads a
 *   second apart must differ by the per-second increment.
 * - Using distinct types for API requests and database models keeps the
 *   web layer and the persistence layer decoupled.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// Request lifecycle states shared by deposits and withdrawals. A request
// transitions out of pending exactly once.
const (
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusRejected = "rejected"
)

// MaturityPeriod is the holding period of a deposit batch. Each approved
// deposit runs its own 45-day clock independent of the user's other batches.
const MaturityPeriod = 45 * 24 * time.Hour

// Wallet is the per-user aggregate balance record. This struct maps directly
// to the `user_wallets` table.
//
// DailyEarnings is the accrued-but-unflushed profit since LastEarningsUpdate;
// TotalProfit is realized, withdrawable profit. The stored DailyEarnings is a
// checkpoint — callers that need the current value must reconcile it against
// wall-clock time (see Reconcile).
type Wallet struct {
	ID                 uuid.UUID  `json:"id"`
	UserID             uuid.UUID  `json:"user_id"`
	TotalDeposit       float64    `json:"total_deposit"`
	DailyEarnings      float64    `json:"daily_earnings"`
	TotalProfit        float64    `json:"total_profit"`
	LastEarningsUpdate *time.Time `json:"last_earnings_update,omitempty"`
	NftMaturityDate    *time.Time `json:"nft_maturity_date,omitempty"`
	IsActive           bool       `json:"is_active"`
	LastWithdrawalDate *time.Time `json:"last_withdrawal_date,omitempty"`
	DepositBatchCount  int        `json:"deposit_batch_count"`
	FirstDepositDate   *time.Time `json:"first_deposit_date,omitempty"`
	LatestDepositDate  *time.Time `json:"latest_deposit_date,omitempty"`
	CreatedAt          time.Time  `json:"created_at"`
	UpdatedAt          time.Time  `json:"updated_at"`
}

// DepositBatch is one approved deposit's independent principal and maturity
// clock. Maps to the `nft_deposits` table.
type DepositBatch struct {
	ID           uuid.UUID `json:"id"`
	UserID       uuid.UUID `json:"user_id"`
	DepositID    uuid.UUID `json:"deposit_id"`
	BatchNumber  int       `json:"batch_number"`
	Amount       float64   `json:"amount"`
	DepositDate  time.Time `json:"deposit_date"`
	MaturityDate time.Time `json:"maturity_date"`
	IsMatured    bool      `json:"is_matured"`
	IsWithdrawn  bool      `json:"is_withdrawn"`
	CreatedAt    time.Time `json:"created_at"`
}

// DepositRequest is a user-submitted deposit awaiting admin review. The
// transaction hash is free text supplied by the user and is not verified
// on-chain. Maps to the `deposits` table.
type DepositRequest struct {
	ID              uuid.UUID `json:"id"`
	UserID          uuid.UUID `json:"user_id"`
	Amount          float64   `json:"amount"`
	Blockchain      string    `json:"blockchain"`
	DepositAddress  string    `json:"deposit_address"`
	TransactionHash string    `json:"transaction_hash,omitempty"`
	Status          string    `json:"status"`
	AdminNotes      *string   `json:"admin_notes,omitempty"`
	CreatedAt       time.Time `json:"created_at"`
	UpdatedAt       time.Time `json:"updated_at"`
}

// WithdrawalRequest maps to the `withdrawals` table.
type WithdrawalRequest struct {
	ID            uuid.UUID  `json:"id"`
	UserID        uuid.UUID  `json:"user_id"`
	Amount        float64    `json:"amount"`
	WalletAddress string     `json:"wallet_address"`
	Blockchain    string     `json:"blockchain"`
	Status        string     `json:"status"`
	AdminNotes    *string    `json:"admin_notes,omitempty"`
	ApprovedAt    *time.Time `json:"approved_at,omitempty"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// NftSummary is the read-only projection over a user's deposit batches used
// by the dashboard countdown. It is derived purely from `nft_deposits` and
// never mutates state.
type NftSummary struct {
	TotalDeposits    float64        `json:"total_deposits"`
	MaturedAmount    float64        `json:"matured_amount"`
	PendingAmount    float64        `json:"pending_amount"`
	NextMaturityDate *time.Time     `json:"next_maturity_date,omitempty"`
	Batches          []DepositBatch `json:"batches"`
}

// CreateDepositPayload is the DTO for incoming deposit request API calls.
type CreateDepositPayload struct {
	Amount          float64 `json:"amount"`
	Blockchain      string  `json:"blockchain"`
	DepositAddress  string  `json:"deposit_address"`
	TransactionHash string  `json:"transaction_hash"`
}

// CreateWithdrawalPayload is the DTO for incoming withdrawal request API calls.
type CreateWithdrawalPayload struct {
	Amount        float64 `json:"amount"`
	WalletAddress string  `json:"wallet_address"`
	Blockchain    string  `json:"blockchain"`
}

// AdminStats is the aggregate snapshot served to the admin dashboard.
type AdminStats struct {
	TotalUsers              int64   `json:"total_users"`
	ActiveWallets           int64   `json:"active_wallets"`
	TotalDeposited          float64 `json:"total_deposited"`
	TotalRealizedProfit     float64 `json:"total_realized_profit"`
	PendingDepositCount     int64   `json:"pending_deposit_count"`
	PendingDepositAmount    float64 `json:"pending_deposit_amount"`
	PendingWithdrawalCount  int64   `json:"pending_withdrawal_count"`
	PendingWithdrawalAmount float64 `json:"pending_withdrawal_amount"`
	ApprovedWithdrawalSum   float64 `json:"approved_withdrawal_sum"`
}
