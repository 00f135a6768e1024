/**
 * @description
 * PostgreSQL implementation of the point-economy methods: mining claims,
 * social task completion, and referral rewards. The claim and completion
 * paths reuse the same lock-then-recompute transaction shape as the wallet
 * ledger so cooldown and once-only rules hold under concurrent requests.
 */

package store

import (
	"context"
	"crypto/rand"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/zerthyx/ledger-service/internal/domain"
)

const miningWalletColumns = `
	id, user_id, total_points, today_points, today_claims, last_reset_date,
	created_at, updated_at
`

func scanMiningWallet(row rowScanner) (*domain.MiningWallet, error) {
	var w domain.MiningWallet
	err := row.Scan(
		&w.ID, &w.UserID, &w.TotalPoints, &w.TodayPoints, &w.TodayClaims,
		&w.LastResetDate, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &w, nil
}

// GetMiningWallet returns the user's mining wallet, creating an empty one on
// first access.
func (r *PostgresRepository) GetMiningWallet(ctx context.Context, userID uuid.UUID) (*domain.MiningWallet, error) {
	insert := `
		INSERT INTO mining_wallets (user_id, last_reset_date)
		VALUES ($1, CURRENT_DATE)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := r.db.Exec(ctx, insert, userID); err != nil {
		return nil, fmt.Errorf("failed to ensure mining wallet: %w", err)
	}
	query := `SELECT ` + miningWalletColumns + ` FROM mining_wallets WHERE user_id = $1`
	w, err := scanMiningWallet(r.db.QueryRow(ctx, query, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to load mining wallet: %w", err)
	}
	return w, nil
}

// GetLatestMiningSession returns the user's most recent claim, or nil when
// they have never claimed.
func (r *PostgresRepository) GetLatestMiningSession(ctx context.Context, userID uuid.UUID) (*domain.MiningSession, error) {
	query := `
		SELECT id, user_id, last_claim_time, next_available_time, points_earned,
		       session_count, session_date, created_at
		FROM mining_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var s domain.MiningSession
	err := r.db.QueryRow(ctx, query, userID).Scan(
		&s.ID, &s.UserID, &s.LastClaimTime, &s.NextAvailableTime, &s.PointsEarned,
		&s.SessionCount, &s.SessionDate, &s.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, err
	}
	return &s, nil
}

// ProcessMiningClaim atomically validates the cooldown and the daily cap,
// records a session, and credits the mining wallet. The wallet row lock is
// the serialization point for concurrent claims by the same user.
func (r *PostgresRepository) ProcessMiningClaim(ctx context.Context, userID uuid.UUID, params MiningClaimParams) (*domain.MiningClaimResult, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	insert := `
		INSERT INTO mining_wallets (user_id, last_reset_date)
		VALUES ($1, $2::date)
		ON CONFLICT (user_id) DO NOTHING
	`
	if _, err := tx.Exec(ctx, insert, userID, params.Now); err != nil {
		return nil, fmt.Errorf("failed to ensure mining wallet: %w", err)
	}

	lockQuery := `SELECT ` + miningWalletColumns + ` FROM mining_wallets WHERE user_id = $1 FOR UPDATE`
	wallet, err := scanMiningWallet(tx.QueryRow(ctx, lockQuery, userID))
	if err != nil {
		return nil, fmt.Errorf("failed to lock mining wallet: %w", err)
	}

	// Roll the per-day counters when the stored reset date is behind today.
	todayPoints := wallet.TodayPoints
	todayClaims := wallet.TodayClaims
	if !domain.SameCalendarDay(wallet.LastResetDate, params.Now) {
		todayPoints = 0
		todayClaims = 0
	}

	latest, err := latestSessionTx(ctx, tx, userID)
	if err != nil {
		return nil, err
	}
	if latest != nil && latest.NextAvailableTime.After(params.Now) {
		return nil, ErrClaimNotReady
	}
	if params.DailyClaimCap > 0 && todayClaims >= params.DailyClaimCap {
		return nil, ErrDailyClaimLimit
	}

	sessionCount := 1
	if latest != nil && domain.SameCalendarDay(latest.SessionDate, params.Now) {
		sessionCount = latest.SessionCount + 1
	}

	session := &domain.MiningSession{
		UserID:            userID,
		LastClaimTime:     params.Now,
		NextAvailableTime: params.Now.Add(params.Cooldown),
		PointsEarned:      params.PointsPerClaim,
		SessionCount:      sessionCount,
		SessionDate:       params.Now,
	}
	insertSession := `
		INSERT INTO mining_sessions (user_id, last_claim_time, next_available_time, points_earned, session_count, session_date)
		VALUES ($1, $2, $3, $4, $5, $2::date)
		RETURNING id, session_date, created_at
	`
	if err := tx.QueryRow(ctx, insertSession,
		userID, session.LastClaimTime, session.NextAvailableTime, session.PointsEarned, session.SessionCount,
	).Scan(&session.ID, &session.SessionDate, &session.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to record mining session: %w", err)
	}

	updateWallet := `
		UPDATE mining_wallets
		SET total_points = total_points + $2,
		    today_points = $3,
		    today_claims = $4,
		    last_reset_date = $5::date,
		    updated_at = $5
		WHERE user_id = $1
		RETURNING ` + miningWalletColumns
	updated, err := scanMiningWallet(tx.QueryRow(ctx, updateWallet,
		userID, params.PointsPerClaim, todayPoints+params.PointsPerClaim, todayClaims+1, params.Now,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to credit mining wallet: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit mining claim: %w", err)
	}

	return &domain.MiningClaimResult{
		PointsEarned:  params.PointsPerClaim,
		NextAvailable: session.NextAvailableTime,
		Wallet:        updated,
		Session:       session,
	}, nil
}

func latestSessionTx(ctx context.Context, tx pgx.Tx, userID uuid.UUID) (*domain.MiningSession, error) {
	query := `
		SELECT id, user_id, last_claim_time, next_available_time, points_earned,
		       session_count, session_date, created_at
		FROM mining_sessions
		WHERE user_id = $1
		ORDER BY created_at DESC
		LIMIT 1
	`
	var s domain.MiningSession
	err := tx.QueryRow(ctx, query, userID).Scan(
		&s.ID, &s.UserID, &s.LastClaimTime, &s.NextAvailableTime, &s.PointsEarned,
		&s.SessionCount, &s.SessionDate, &s.CreatedAt,
	)
	if err != nil {
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to load latest mining session: %w", err)
	}
	return &s, nil
}

// ResetDailyMiningStats rolls the per-day counters for every wallet whose
// reset date is behind today. Idempotent within a day.
func (r *PostgresRepository) ResetDailyMiningStats(ctx context.Context, today time.Time) (int64, error) {
	result, err := r.db.Exec(ctx,
		`UPDATE mining_wallets SET today_points = 0, today_claims = 0, last_reset_date = $1::date, updated_at = $1 WHERE last_reset_date < $1::date`,
		today,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to reset daily mining stats: %w", err)
	}
	return result.RowsAffected(), nil
}

// ListActiveTasksWithState returns all active tasks joined with the caller's
// most recent completion of each.
func (r *PostgresRepository) ListActiveTasksWithState(ctx context.Context, userID uuid.UUID) ([]domain.TaskWithState, error) {
	query := `
		SELECT t.id, t.title, t.description, t.category, t.platform, t.task_type,
		       t.external_url, t.reward_points, t.verification_type, t.is_recurring,
		       t.is_active, t.created_at,
		       ut.id, ut.status, ut.points_earned, ut.completion_date, ut.created_at
		FROM tasks t
		LEFT JOIN LATERAL (
			SELECT id, status, points_earned, completion_date, created_at
			FROM user_tasks
			WHERE task_id = t.id AND user_id = $1
			ORDER BY created_at DESC
			LIMIT 1
		) ut ON TRUE
		WHERE t.is_active = TRUE
		ORDER BY t.created_at
	`
	rows, err := r.db.Query(ctx, query, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var tasks []domain.TaskWithState
	for rows.Next() {
		var (
			item         domain.TaskWithState
			utID         *uuid.UUID
			utStatus     *string
			utPoints     *int64
			utCompletion *time.Time
			utCreatedAt  *time.Time
		)
		if err := rows.Scan(
			&item.Task.ID, &item.Task.Title, &item.Task.Description, &item.Task.Category,
			&item.Task.Platform, &item.Task.TaskType, &item.Task.ExternalURL,
			&item.Task.RewardPoints, &item.Task.VerificationType, &item.Task.IsRecurring,
			&item.Task.IsActive, &item.Task.CreatedAt,
			&utID, &utStatus, &utPoints, &utCompletion, &utCreatedAt,
		); err != nil {
			return nil, err
		}
		if utID != nil {
			item.Completion = &domain.UserTask{
				ID:             *utID,
				UserID:         userID,
				TaskID:         item.Task.ID,
				Status:         *utStatus,
				PointsEarned:   *utPoints,
				CompletionDate: utCompletion,
				CreatedAt:      *utCreatedAt,
			}
		}
		tasks = append(tasks, item)
	}
	return tasks, rows.Err()
}

// CompleteTask records a task completion. Auto-verified tasks credit mining
// points in the same transaction; manual ones are held for review with no
// points until approved. The task row lock serializes concurrent completions
// so a non-recurring task cannot be completed twice.
func (r *PostgresRepository) CompleteTask(ctx context.Context, userID, taskID uuid.UUID, now time.Time) (*domain.UserTask, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		rewardPoints     int64
		verificationType string
		isRecurring      bool
		isActive         bool
	)
	lockQuery := `SELECT reward_points, verification_type, is_recurring, is_active FROM tasks WHERE id = $1 FOR UPDATE`
	if err := tx.QueryRow(ctx, lockQuery, taskID).Scan(&rewardPoints, &verificationType, &isRecurring, &isActive); err != nil {
		if err == pgx.ErrNoRows {
			return nil, ErrTaskNotFound
		}
		return nil, fmt.Errorf("failed to lock task: %w", err)
	}
	if !isActive {
		return nil, ErrTaskNotActive
	}

	if !isRecurring {
		var count int
		if err := tx.QueryRow(ctx,
			`SELECT COUNT(*) FROM user_tasks WHERE user_id = $1 AND task_id = $2`,
			userID, taskID,
		).Scan(&count); err != nil {
			return nil, fmt.Errorf("failed to check prior completions: %w", err)
		}
		if count > 0 {
			return nil, ErrTaskAlreadyCompleted
		}
	}

	completion := &domain.UserTask{
		UserID: userID,
		TaskID: taskID,
		Status: domain.TaskStatusPendingVerification,
	}
	if verificationType == domain.VerificationAuto {
		completion.Status = domain.TaskStatusCompleted
		completion.PointsEarned = rewardPoints
		completion.CompletionDate = &now
	}

	insert := `
		INSERT INTO user_tasks (user_id, task_id, status, points_earned, completion_date)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id, created_at
	`
	if err := tx.QueryRow(ctx, insert,
		completion.UserID, completion.TaskID, completion.Status, completion.PointsEarned, completion.CompletionDate,
	).Scan(&completion.ID, &completion.CreatedAt); err != nil {
		return nil, fmt.Errorf("failed to record task completion: %w", err)
	}

	if completion.PointsEarned > 0 {
		ensure := `
			INSERT INTO mining_wallets (user_id, last_reset_date)
			VALUES ($1, $2::date)
			ON CONFLICT (user_id) DO NOTHING
		`
		if _, err := tx.Exec(ctx, ensure, userID, now); err != nil {
			return nil, fmt.Errorf("failed to ensure mining wallet: %w", err)
		}
		credit := `
			UPDATE mining_wallets
			SET total_points = total_points + $2, updated_at = $3
			WHERE user_id = $1
		`
		if _, err := tx.Exec(ctx, credit, userID, completion.PointsEarned, now); err != nil {
			return nil, fmt.Errorf("failed to credit task points: %w", err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("failed to commit task completion: %w", err)
	}
	return completion, nil
}

const referralCodeChars = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

func generateReferralCode() (string, error) {
	buf := make([]byte, 8)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("failed to generate referral code: %w", err)
	}
	for i := range buf {
		buf[i] = referralCodeChars[int(buf[i])%len(referralCodeChars)]
	}
	return string(buf), nil
}

// GetOrCreateReferralCode returns the user's referral code, minting one on
// first access. The code lives on a referrer-owned row with no referred user.
func (r *PostgresRepository) GetOrCreateReferralCode(ctx context.Context, userID uuid.UUID) (string, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var code string
	err = tx.QueryRow(ctx,
		`SELECT referral_code FROM referrals WHERE referrer_id = $1 ORDER BY created_at LIMIT 1`,
		userID,
	).Scan(&code)
	if err == nil {
		return code, tx.Commit(ctx)
	}
	if err != pgx.ErrNoRows {
		return "", fmt.Errorf("failed to load referral code: %w", err)
	}

	code, err = generateReferralCode()
	if err != nil {
		return "", err
	}
	if _, err := tx.Exec(ctx,
		`INSERT INTO referrals (referrer_id, referral_code, status) VALUES ($1, $2, 'pending')`,
		userID, code,
	); err != nil {
		return "", fmt.Errorf("failed to create referral code: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return "", fmt.Errorf("failed to commit referral code: %w", err)
	}
	return code, nil
}

// GetReferralOverview returns the caller's code plus aggregate referral stats.
func (r *PostgresRepository) GetReferralOverview(ctx context.Context, userID uuid.UUID) (*domain.ReferralOverview, error) {
	code, err := r.GetOrCreateReferralCode(ctx, userID)
	if err != nil {
		return nil, err
	}

	query := `
		SELECT COUNT(*) FILTER (WHERE referred_id IS NOT NULL),
		       COUNT(*) FILTER (WHERE status = 'qualified'),
		       COALESCE(SUM(reward_amount) FILTER (WHERE reward_paid), 0)
		FROM referrals
		WHERE referrer_id = $1
	`
	overview := &domain.ReferralOverview{ReferralCode: code}
	if err := r.db.QueryRow(ctx, query, userID).Scan(
		&overview.TotalReferrals, &overview.QualifiedCount, &overview.TotalEarnings,
	); err != nil {
		return nil, fmt.Errorf("failed to load referral stats: %w", err)
	}
	return overview, nil
}

// AddReferralReward marks the referral qualified and credits the referrer's
// realized profit, exactly once per referred user.
func (r *PostgresRepository) AddReferralReward(ctx context.Context, referrerID, referredID uuid.UUID, amount float64, now time.Time) error {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	var (
		referralID uuid.UUID
		rewardPaid bool
	)
	lockQuery := `SELECT id, reward_paid FROM referrals WHERE referrer_id = $1 AND referred_id = $2 FOR UPDATE`
	if err := tx.QueryRow(ctx, lockQuery, referrerID, referredID).Scan(&referralID, &rewardPaid); err != nil {
		if err == pgx.ErrNoRows {
			return ErrReferralNotFound
		}
		return fmt.Errorf("failed to lock referral: %w", err)
	}
	if rewardPaid {
		return ErrReferralAlreadyRewarded
	}

	update := `
		UPDATE referrals
		SET status = 'qualified', reward_amount = $2, reward_paid = TRUE,
		    qualification_date = $3, updated_at = $3
		WHERE id = $1
	`
	if _, err := tx.Exec(ctx, update, referralID, amount, now); err != nil {
		return fmt.Errorf("failed to mark referral qualified: %w", err)
	}

	if err := ensureWalletTx(ctx, tx, referrerID); err != nil {
		return fmt.Errorf("failed to ensure referrer wallet: %w", err)
	}
	if _, err := tx.Exec(ctx,
		`UPDATE user_wallets SET total_profit = total_profit + $2, updated_at = $3 WHERE user_id = $1`,
		referrerID, amount, now,
	); err != nil {
		return fmt.Errorf("failed to credit referral reward: %w", err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit referral reward: %w", err)
	}
	return nil
}
