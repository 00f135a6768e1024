/**
 * @description
 * This file provides the PostgreSQL implementation of the `Repository` interface
 * for the wallet ledger: accrual flushes, deposit approval with batch creation,
 * withdrawal settlement, and the maturity sweep.
 *
 * Each balance mutation follows the same shape: BEGIN, lock the rows involved
 * with SELECT ... FOR UPDATE, recompute from the locked state, write, COMMIT.
 * A concurrent mutation of the same wallet blocks on the row lock and re-reads
 * the committed balance, so no update can be lost to a stale read.
 *
 * @dependencies
 * - context, errors, fmt, time: Standard Go libraries.
 * - github.com/jackc/pgx/v5: The PostgreSQL driver for database operations.
 * - internal/domain: Domain models and the pure accrual arithmetic.
 */

package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/zerthyx/ledger-service/internal/domain"
)

var (
	ErrWalletNotFound          = errors.New("wallet not found")
	ErrDepositNotFound         = errors.New("deposit not found")
	ErrWithdrawalNotFound      = errors.New("withdrawal not found")
	ErrRequestNotPending       = errors.New("request is not pending")
	ErrInsufficientBalance     = errors.New("insufficient balance")
	ErrDailyWithdrawalLimit    = errors.New("daily withdrawal limit reached")
	ErrClaimNotReady           = errors.New("mining claim not yet available")
	ErrDailyClaimLimit         = errors.New("daily mining claim limit reached")
	ErrTaskNotFound            = errors.New("task not found")
	ErrTaskNotActive           = errors.New("task is not active")
	ErrTaskAlreadyCompleted    = errors.New("task already completed")
	ErrReferralNotFound        = errors.New("referral not found")
	ErrReferralAlreadyRewarded = errors.New("referral reward already paid")
)

// PostgresRepository is a concrete implementation of the Repository interface for PostgreSQL.
type PostgresRepository struct {
	db *pgxpool.Pool
}

// NewPostgresRepository creates a new instance of PostgresRepository.
func NewPostgresRepository(db *pgxpool.Pool) *PostgresRepository {
	return &PostgresRepository{db: db}
}

const walletColumns = `
	id, user_id, total_deposit, daily_earnings, total_profit,
	last_earnings_update, nft_maturity_date, is_active, last_withdrawal_date,
	deposit_batch_count, first_deposit_date, latest_deposit_date,
	created_at, updated_at
`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanWallet(row rowScanner) (*domain.Wallet, error) {
	var w domain.Wallet
	err := row.Scan(
		&w.ID, &w.UserID, &w.TotalDeposit, &w.DailyEarnings, &w.TotalProfit,
		&w.LastEarningsUpdate, &w.NftMaturityDate, &w.IsActive, &w.LastWithdrawalDate,
		&w.DepositBatchCount, &w.FirstDepositDate, &w.LatestDepositDate,
		&w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetWallet retrieves a user's wallet without reconciling or mutating it.
func (r *PostgresRepository) GetWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM user_wallets WHERE user_id = $1`
	w, err := scanWallet(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return w, nil
}

// EnsureWallet creates an empty wallet row for the user if one does not exist
// yet and returns the current row.
func (r *PostgresRepository) EnsureWallet(ctx context.Context, userID uuid.UUID) (*domain.Wallet, error) {
	insert := `
		INSERT INTO user_wallets (user_id)
		VALUES ($1)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, insert, userID); err != nil {
		return nil, fmt.Errorf("failed to ensure wallet: %w", err)
	}
	return r.GetWallet(ctx, userID)
}

func ensureWalletTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) error {
	_, err := tx.Exec(ctx, `INSERT INTO user_wallets (user_id) VALUES ($1) ON CONFLICT (user_id) DO NOTHING`, userID)
	return err
}

func lockWalletTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.Wallet, error) {
	query := `SELECT ` + walletColumns + ` FROM user_wallets WHERE user_id = $1 FOR UPDATE`
	w, err := scanWallet(tx.QueryRow(ctx, query, userID))
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWalletNotFound
		}
		return nil, err
	}
	return w, nil
}

// FlushEarnings reconciles accrued earnings to now and moves them into
// total_profit, resetting the daily_earnings checkpoint. Running it twice in
// immediate succession credits no more than the single elapsed-time increment
// because the second run observes the advanced checkpoint.
func (r *PostgresRepository) FlushEarnings(ctx context.Context, userID uuid.UUID, now time.Time) (*domain.Wallet, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	w, err := lockWalletTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	reconciled := domain.ReconciledEarnings(w, now)
	update := `
		UPDATE user_wallets
		SET total_profit = total_profit + $2,
		    daily_earnings = 0,
		    last_earnings_update = $3,
		    updated_at = $3
		WHERE user_id = $1
		RETURNING ` + walletColumns
	updated, err := scanWallet(tx.QueryRow(ctx, update, userID, reconciled, now))
	if err != nil {
		return nil, fmt.Errorf("failed to flush earnings: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit earnings flush: %w", err)
	}
	return updated, nil
}

// ListActiveWalletUserIDs returns the users whose wallets are currently accruing.
func (r *PostgresRepository) ListActiveWalletUserIDs(ctx context.Context) ([]uuid.UUID, error) {
	rows, err := r.db.Query(ctx, `SELECT user_id FROM user_wallets WHERE is_active = TRUE AND total_deposit > 0 ORDER BY created_at`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// CreateDepositRequest inserts a pending deposit for admin review.
func (r *PostgresRepository) CreateDepositRequest(ctx context.Context, req *domain.DepositRequest) error {
	query := `
		INSERT INTO deposits (user_id, amount, blockchain, deposit_address, transaction_screenshot, status)
		VALUES ($1, $2, $3, $4, $5, 'pending')
		RETURNING id, status, created_at, updated_at
	`
	err := r.db.QueryRow(ctx, query,
		req.UserID, req.Amount, req.Blockchain, req.DepositAddress, req.TransactionHash,
	).Scan(&req.ID, &req.Status, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create deposit request: %w", err)
	}
	return nil
}

// ListDepositsByUser retrieves a user's deposit requests, newest first.
func (r *PostgresRepository) ListDepositsByUser(ctx context.Context, userID uuid.UUID) ([]domain.DepositRequest, error) {
	query := `
		SELECT id, user_id, amount, blockchain, deposit_address,
		       COALESCE(transaction_screenshot, '') AS transaction_screenshot,
		       status, admin_notes, created_at, updated_at
		FROM deposits
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var deposits []domain.DepositRequest
	for rows.Next() {
		var d domain.DepositRequest
		if err := rows.Scan(
			&d.ID, &d.UserID, &d.Amount, &d.Blockchain, &d.DepositAddress,
			&d.TransactionHash, &d.Status, &d.AdminNotes, &d.CreatedAt, &d.UpdatedAt,
		); err != nil {
			return nil, err
		}
		deposits = append(deposits, d)
	}
	return deposits, rows.Err()
}

// ApproveDeposit transitions a pending deposit to approved, opens a new
// deposit batch with its own 45-day maturity clock, and raises the wallet
// principal. Accrued earnings are reconciled at the old principal before it
// increases, so the elapsed window is never charged at the new rate.
func (r *PostgresRepository) ApproveDeposit(ctx context.Context, depositID uuid.UUID, now time.Time) (*domain.DepositBatch, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		depositUserID uuid.UUID
		amount        float64
		status        string
	)
	lockQuery := `SELECT user_id, amount, status FROM deposits WHERE id = $1 FOR UPDATE`
	if err := tx.QueryRow(ctx, lockQuery, depositID).Scan(&depositUserID, &amount, &status); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrDepositNotFound
		}
		return nil, fmt.Errorf("failed to lock deposit: %w", err)
	}
	if status != domain.StatusPending {
		return nil, ErrRequestNotPending
	}

	if err := ensureWalletTx(ctx, tx, depositUserID); err != nil {
		return nil, fmt.Errorf("failed to ensure wallet: %w", err)
	}
	wallet, err := lockWalletTx(ctx, tx, depositUserID)
	if err != nil {
		return nil, err
	}

	reconciled := domain.ReconciledEarnings(wallet, now)
	maturity := now.Add(domain.MaturityPeriod)
	batch := &domain.DepositBatch{
		UserID:       depositUserID,
		DepositID:    depositID,
		BatchNumber:  wallet.DepositBatchCount + 1,
		Amount:       amount,
		DepositDate:  now,
		MaturityDate: maturity,
	}

	insertBatch := `
		INSERT INTO nft_deposits (user_id, deposit_id, batch_number, amount, deposit_date, maturity_date)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id, created_at
	`
	if err := tx.QueryRow(ctx, insertBatch,
		batch.UserID, batch.DepositID, batch.BatchNumber, batch.Amount, batch.DepositDate, batch.MaturityDate,
	).Scan(&batch.ID, &batch.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to create deposit batch: %w", err)
	}

	updateWallet := `
		UPDATE user_wallets
		SET total_deposit = total_deposit + $2,
		    daily_earnings = $3,
		    last_earnings_update = $4,
		    is_active = TRUE,
		    deposit_batch_count = $5,
		    first_deposit_date = COALESCE(first_deposit_date, $4),
		    latest_deposit_date = $4,
		    nft_maturity_date = COALESCE(nft_maturity_date, $6),
		    updated_at = $4
		WHERE user_id = $1
	`
	if _, err := tx.Exec(ctx, updateWallet,
		depositUserID, amount, reconciled, now, batch.BatchNumber, maturity,
	); err != nil {
		return nil, fmt.Errorf("failed to update wallet principal: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE deposits SET status = 'approved', updated_at = $2 WHERE id = $1`,
		depositID, now,
	); err != nil {
		return nil, fmt.Errorf("failed to mark deposit approved: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit deposit approval: %w", err)
	}
	return batch, nil
}

// RejectDeposit marks a pending deposit rejected with no balance side effects.
func (r *PostgresRepository) RejectDeposit(ctx context.Context, depositID uuid.UUID, notes *string) error {
	result, err := r.db.Exec(ctx,
		`UPDATE deposits SET status = 'rejected', admin_notes = COALESCE($2, admin_notes), updated_at = NOW() WHERE id = $1 AND status = 'pending'`,
		depositID, notes,
	)
	if err != nil {
		return fmt.Errorf("failed to reject deposit: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.classifyMissingRequest(ctx, "deposits", depositID, ErrDepositNotFound)
	}
	return nil
}

// classifyMissingRequest distinguishes an unknown id from an already-settled
// request after a guarded status transition touched no rows.
func (r *PostgresRepository) classifyMissingRequest(ctx context.Context, table string, id uuid.UUID, notFound error) error {
	var status string
	err := r.db.QueryRow(ctx, `SELECT status FROM `+table+` WHERE id = $1`, id).Scan(&status)
	if err != nil {
		if err == pgx.ErrNoRows {
			return notFound
		}
		return err
	}
	return ErrRequestNotPending
}

// GetNftSummary aggregates a user's deposit batches for display. Purely a
// read; batch maturity flags are only advanced by the sweep.
func (r *PostgresRepository) GetNftSummary(ctx context.Context, userID uuid.UUID) (*domain.NftSummary, error) {
	query := `
		SELECT id, user_id, deposit_id, batch_number, amount, deposit_date,
		       maturity_date, is_matured, is_withdrawn, created_at
		FROM nft_deposits
		WHERE user_id = $1
		ORDER BY batch_number
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	summary := &domain.NftSummary{Batches: []domain.DepositBatch{}}
	for rows.Next() {
		var b domain.DepositBatch
		if err := rows.Scan(
			&b.ID, &b.UserID, &b.DepositID, &b.BatchNumber, &b.Amount, &b.DepositDate,
			&b.MaturityDate, &b.IsMatured, &b.IsWithdrawn, &b.CreatedAt,
		); err != nil {
			return nil, err
		}
		summary.TotalDeposits += b.Amount
		if b.IsMatured {
			summary.MaturedAmount += b.Amount
		} else {
			summary.PendingAmount += b.Amount
			if summary.NextMaturityDate == nil || b.MaturityDate.Before(*summary.NextMaturityDate) {
				maturity := b.MaturityDate
				summary.NextMaturityDate = &maturity
			}
		}
		summary.Batches = append(summary.Batches, b)
	}
	return summary, rows.Err()
}

// MarkMaturedBatches flags every batch whose maturity date has passed.
// Idempotent: already-matured batches are excluded by the predicate.
func (r *PostgresRepository) MarkMaturedBatches(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.Exec(ctx,
		`UPDATE nft_deposits SET is_matured = TRUE, updated_at = $1 WHERE is_matured = FALSE AND maturity_date <= $1`,
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to mark matured batches: %w", err)
	}
	return result.RowsAffected(), nil
}

// CreateWithdrawal validates the reconciled balance and the one-per-calendar-day
// rule, inserts the pending request, and stamps last_withdrawal_date — all
// under the wallet row lock, so two concurrent requests cannot both pass the
// daily-limit check.
func (r *PostgresRepository) CreateWithdrawal(ctx context.Context, userID uuid.UUID, amount float64, walletAddress, blockchain string, now time.Time) (*domain.WithdrawalRequest, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	wallet, err := lockWalletTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}

	if amount > domain.AvailableBalance(wallet, now) {
		return nil, ErrInsufficientBalance
	}
	if wallet.LastWithdrawalDate != nil && domain.SameCalendarDay(*wallet.LastWithdrawalDate, now) {
		return nil, ErrDailyWithdrawalLimit
	}

	withdrawal := &domain.WithdrawalRequest{
		UserID:        userID,
		Amount:        amount,
		WalletAddress: walletAddress,
		Blockchain:    blockchain,
	}
	insert := `
		INSERT INTO withdrawals (user_id, amount, wallet_address, blockchain, status)
		VALUES ($1, $2, $3, $4, 'pending')
		RETURNING id, status, created_at, updated_at
	`
	if err := tx.QueryRow(ctx, insert,
		userID, amount, walletAddress, blockchain,
	).Scan(&withdrawal.ID, &withdrawal.Status, &withdrawal.CreatedAt, &withdrawal.UpdatedAt); err != nil {
		return nil, fmt.Errorf("failed to create withdrawal request: %w", err)
	}

	if _, err := tx.Exec(ctx,
		`UPDATE user_wallets SET last_withdrawal_date = $2, updated_at = $2 WHERE user_id = $1`,
		userID, now,
	); err != nil {
		return nil, fmt.Errorf("failed to stamp withdrawal date: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit withdrawal request: %w", err)
	}
	return withdrawal, nil
}

// ListWithdrawalsByUser retrieves a user's withdrawal requests, newest first.
func (r *PostgresRepository) ListWithdrawalsByUser(ctx context.Context, userID uuid.UUID) ([]domain.WithdrawalRequest, error) {
	query := `
		SELECT id, user_id, amount, wallet_address, blockchain, status,
		       admin_notes, approved_at, created_at, updated_at
		FROM withdrawals
		WHERE user_id = $1
		ORDER BY created_at DESC
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var withdrawals []domain.WithdrawalRequest
	for rows.Next() {
		var w domain.WithdrawalRequest
		if err := rows.Scan(
			&w.ID, &w.UserID, &w.Amount, &w.WalletAddress, &w.Blockchain, &w.Status,
			&w.AdminNotes, &w.ApprovedAt, &w.CreatedAt, &w.UpdatedAt,
		); err != nil {
			return nil, err
		}
		withdrawals = append(withdrawals, w)
	}
	return withdrawals, rows.Err()
}

// ApproveWithdrawal settles an approved withdrawal: flush reconciled earnings
// into total_profit first, then debit the withdrawn amount. Flushing before
// debiting keeps earnings accrued since the last checkpoint instead of
// forfeiting whatever exceeds the withdrawn amount. The debit clamps at zero.
func (r *PostgresRepository) ApproveWithdrawal(ctx context.Context, withdrawalID uuid.UUID, now time.Time) (*domain.WithdrawalRequest, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		withdrawalUserID uuid.UUID
		amount           float64
		status           string
	)
	lockQuery := `SELECT user_id, amount, status FROM withdrawals WHERE id = $1 FOR UPDATE`
	if err := tx.QueryRow(ctx, lockQuery, withdrawalID).Scan(&withdrawalUserID, &amount, &status); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrWithdrawalNotFound
		}
		return nil, fmt.Errorf("failed to lock withdrawal: %w", err)
	}
	if status != domain.StatusPending {
		return nil, ErrRequestNotPending
	}

	wallet, err := lockWalletTx(ctx, tx, withdrawalUserID)
	if err != nil {
		return nil, err
	}

	// Flush, then debit.
	flushed := wallet.TotalProfit + domain.ReconciledEarnings(wallet, now)
	newProfit := flushed - amount
	if newProfit < 0 {
		newProfit = 0
	}

	updateWallet := `
		UPDATE user_wallets
		SET total_profit = $2,
		    daily_earnings = 0,
		    last_earnings_update = $3,
		    updated_at = $3
		WHERE user_id = $1
	`
	if _, err := tx.Exec(ctx, updateWallet, withdrawalUserID, newProfit, now); err != nil {
		return nil, fmt.Errorf("failed to debit wallet: %w", err)
	}

	withdrawal := &domain.WithdrawalRequest{}
	updateStatus := `
		UPDATE withdrawals
		SET status = 'approved', approved_at = $2, updated_at = $2
		WHERE id = $1
		RETURNING id, user_id, amount, wallet_address, blockchain, status,
		          admin_notes, approved_at, created_at, updated_at
	`
	if err := tx.QueryRow(ctx, updateStatus, withdrawalID, now).Scan(
		&withdrawal.ID, &withdrawal.UserID, &withdrawal.Amount, &withdrawal.WalletAddress,
		&withdrawal.Blockchain, &withdrawal.Status, &withdrawal.AdminNotes,
		&withdrawal.ApprovedAt, &withdrawal.CreatedAt, &withdrawal.UpdatedAt,
	); err != nil {
		return nil, fmt.Errorf("failed to mark withdrawal approved: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit withdrawal approval: %w", err)
	}
	return withdrawal, nil
}

// RejectWithdrawal marks a pending withdrawal rejected; no balance mutation.
func (r *PostgresRepository) RejectWithdrawal(ctx context.Context, withdrawalID uuid.UUID, notes *string) error {
	result, err := r.db.Exec(ctx,
		`UPDATE withdrawals SET status = 'rejected', admin_notes = COALESCE($2, admin_notes), updated_at = NOW() WHERE id = $1 AND status = 'pending'`,
		withdrawalID, notes,
	)
	if err != nil {
		return fmt.Errorf("failed to reject withdrawal: %w", err)
	}
	if result.RowsAffected() == 0 {
		return r.classifyMissingRequest(ctx, "withdrawals", withdrawalID, ErrWithdrawalNotFound)
	}
	return nil
}

// GetAdminStats aggregates the dashboard snapshot in one round trip.
func (r *PostgresRepository) GetAdminStats(ctx context.Context) (*domain.AdminStats, error) {
	query := `
		SELECT
			(SELECT COUNT(*) FROM user_wallets),
			(SELECT COUNT(*) FROM user_wallets WHERE is_active = TRUE),
			(SELECT COALESCE(SUM(total_deposit), 0) FROM user_wallets),
			(SELECT COALESCE(SUM(total_profit), 0) FROM user_wallets),
			(SELECT COUNT(*) FROM deposits WHERE status = 'pending'),
			(SELECT COALESCE(SUM(amount), 0) FROM deposits WHERE status = 'pending'),
			(SELECT COUNT(*) FROM withdrawals WHERE status = 'pending'),
			(SELECT COALESCE(SUM(amount), 0) FROM withdrawals WHERE status = 'pending'),
			(SELECT COALESCE(SUM(amount), 0) FROM withdrawals WHERE status = 'approved')
	`
	var stats domain.AdminStats
	err := r.db.QueryRow(ctx, query).Scan(
		&stats.TotalUsers, &stats.ActiveWallets, &stats.TotalDeposited, &stats.TotalRealizedProfit,
		&stats.PendingDepositCount, &stats.PendingDepositAmount,
		&stats.PendingWithdrawalCount, &stats.PendingWithdrawalAmount,
		&stats.ApprovedWithdrawalSum,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to load admin stats: %w", err)
	}
	return &stats, nil
}
