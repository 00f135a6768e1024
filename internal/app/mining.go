/**
 * @description
 * Service methods for the point economy: mining claims, social tasks, and
 * referral rewards. Claims are funneled through the distributed rate limiter
 * before the repository enforces the cooldown and daily cap atomically.
 */

package app

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"
	"github.com/zerthyx/ledger-service/internal/domain"
	"github.com/zerthyx/ledger-service/internal/metrics"
	"github.com/zerthyx/ledger-service/internal/store"
	"github.com/zerthyx/ledger-service/pkg/rabbitmq"
)

// MiningStatus is the caller-facing mining view: wallet counters plus the
// latest session for the countdown timer.
type MiningStatus struct {
	Wallet        *domain.MiningWallet  `json:"wallet"`
	LatestSession *domain.MiningSession `json:"latest_session,omitempty"`
	CanClaim      bool                  `json:"can_claim"`
}

// GetMiningStatus returns the user's mining wallet and latest session.
func (s *Service) GetMiningStatus(ctx context.Context, userID uuid.UUID) (*MiningStatus, error) {
	wallet, err := s.repo.GetMiningWallet(ctx, userID)
	if err != nil {
		return nil, err
	}
	session, err := s.repo.GetLatestMiningSession(ctx, userID)
	if err != nil {
		return nil, err
	}

	status := &MiningStatus{Wallet: wallet, LatestSession: session, CanClaim: true}
	if session != nil && session.NextAvailableTime.After(s.now()) {
		status.CanClaim = false
	}
	return status, nil
}

// ClaimMining performs a gamified mining claim for the user.
func (s *Service) ClaimMining(ctx context.Context, userID uuid.UUID) (*domain.MiningClaimResult, error) {
	if err := s.consumeRateLimit(ctx, "mining_claim", userID.String(), s.miningClaimRateLimit); err != nil {
		return nil, err
	}

	result, err := s.repo.ProcessMiningClaim(ctx, userID, store.MiningClaimParams{
		Now:            s.now(),
		PointsPerClaim: s.miningPointsPerClaim,
		Cooldown:       s.miningCooldown,
		DailyClaimCap:  s.miningDailyClaimCap,
	})
	if err != nil {
		return nil, err
	}

	metrics.MiningClaims.Inc()
	log.Printf("level=info component=mining msg=\"claim processed\" user_id=%s points=%d next_available=%s",
		userID, result.PointsEarned, result.NextAvailable.Format("2006-01-02T15:04:05Z07:00"))
	s.publish(ctx, "mining.claimed", rabbitmq.MiningClaimedEvent{
		UserID:       userID,
		PointsEarned: result.PointsEarned,
		Timestamp:    s.now(),
	})
	return result, nil
}

// ResetDailyMiningStats rolls every mining wallet's per-day counters.
func (s *Service) ResetDailyMiningStats(ctx context.Context) (int64, error) {
	reset, err := s.repo.ResetDailyMiningStats(ctx, s.now())
	if err != nil {
		return 0, err
	}
	log.Printf("level=info component=mining msg=\"daily stats reset\" wallets=%d", reset)
	return reset, nil
}

// ListTasks returns active tasks with the caller's completion state.
func (s *Service) ListTasks(ctx context.Context, userID uuid.UUID) ([]domain.TaskWithState, error) {
	return s.repo.ListActiveTasksWithState(ctx, userID)
}

// CompleteTask records a task completion for the user. Auto-verified tasks
// credit points immediately; manual ones wait for admin review.
func (s *Service) CompleteTask(ctx context.Context, userID, taskID uuid.UUID) (*domain.UserTask, error) {
	completion, err := s.repo.CompleteTask(ctx, userID, taskID, s.now())
	if err != nil {
		return nil, err
	}
	log.Printf("level=info component=tasks msg=\"task completion recorded\" user_id=%s task_id=%s status=%s points=%d",
		userID, taskID, completion.Status, completion.PointsEarned)
	return completion, nil
}

// GetReferralOverview returns the caller's referral code and stats.
func (s *Service) GetReferralOverview(ctx context.Context, userID uuid.UUID) (*domain.ReferralOverview, error) {
	return s.repo.GetReferralOverview(ctx, userID)
}

// AddReferralReward credits the configured reward to the referrer once the
// referred user qualifies. Admin-triggered; amount <= 0 uses the default.
func (s *Service) AddReferralReward(ctx context.Context, referrerID, referredID uuid.UUID, amount float64) error {
	if amount <= 0 {
		amount = s.referralRewardAmount
	}
	if amount <= 0 {
		return fmt.Errorf("referral reward amount not configured: %w", ErrInvalidAmount)
	}
	if err := s.repo.AddReferralReward(ctx, referrerID, referredID, amount, s.now()); err != nil {
		return err
	}
	log.Printf("level=info component=referrals msg=\"referral reward credited\" referrer_id=%s referred_id=%s amount=%.2f",
		referrerID, referredID, amount)
	return nil
}
