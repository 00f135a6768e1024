/**
 * @description
 * Domain models for the point economy: gamified mining claims, social tasks,
 * and referral rewards. Points are integers and never convert to balance
 * fields directly; only referral rewards touch the wallet ledger.
 */

package domain

import (
	"time"

	"github.com/google/uuid"
)

// MiningWallet tracks a user's point balance and per-day claim counters.
// Maps to the `mining_wallets` table.
type MiningWallet struct {
	ID            uuid.UUID `json:"id"`
	UserID        uuid.UUID `json:"user_id"`
	TotalPoints   int64     `json:"total_points"`
	TodayPoints   int64     `json:"today_points"`
	TodayClaims   int       `json:"today_claims"`
	LastResetDate time.Time `json:"last_reset_date"`
	CreatedAt     time.Time `json:"created_at"`
	UpdatedAt     time.Time `json:"updated_at"`
}

// MiningSession records one successful claim and the time the next claim
// becomes available. Maps to the `mining_sessions` table.
type MiningSession struct {
	ID                uuid.UUID `json:"id"`
	UserID            uuid.UUID `json:"user_id"`
	LastClaimTime     time.Time `json:"last_claim_time"`
	NextAvailableTime time.Time `json:"next_available_time"`
	PointsEarned      int64     `json:"points_earned"`
	SessionCount      int       `json:"session_count"`
	SessionDate       time.Time `json:"session_date"`
	CreatedAt         time.Time `json:"created_at"`
}

// MiningClaimResult is returned to the client after a successful claim.
type MiningClaimResult struct {
	PointsEarned  int64          `json:"points_earned"`
	NextAvailable time.Time      `json:"next_available_time"`
	Wallet        *MiningWallet  `json:"wallet"`
	Session       *MiningSession `json:"session"`
}

// Task verification modes. Auto-verified tasks credit points immediately;
// manual ones hold the completion for admin review.
const (
	VerificationAuto   = "auto"
	VerificationManual = "manual"
)

// Task is an admin-curated social task. Maps to the `tasks` table.
type Task struct {
	ID               uuid.UUID `json:"id"`
	Title            string    `json:"title"`
	Description      *string   `json:"description,omitempty"`
	Category         string    `json:"category"`
	Platform         string    `json:"platform"`
	TaskType         string    `json:"task_type"`
	ExternalURL      *string   `json:"external_url,omitempty"`
	RewardPoints     int64     `json:"reward_points"`
	VerificationType string    `json:"verification_type"`
	IsRecurring      bool      `json:"is_recurring"`
	IsActive         bool      `json:"is_active"`
	CreatedAt        time.Time `json:"created_at"`
}

// UserTask completion states.
const (
	TaskStatusCompleted           = "completed"
	TaskStatusPendingVerification = "pending_verification"
)

// UserTask records one user's completion of a task. Maps to `user_tasks`.
type UserTask struct {
	ID             uuid.UUID  `json:"id"`
	UserID         uuid.UUID  `json:"user_id"`
	TaskID         uuid.UUID  `json:"task_id"`
	Status         string     `json:"status"`
	PointsEarned   int64      `json:"points_earned"`
	CompletionDate *time.Time `json:"completion_date,omitempty"`
	CreatedAt      time.Time  `json:"created_at"`
}

// TaskWithState is a task joined with the caller's completion, for listing.
type TaskWithState struct {
	Task       Task      `json:"task"`
	Completion *UserTask `json:"completion,omitempty"`
}

// Referral lifecycle: pending on signup, qualified once the referred user's
// first deposit is approved and the reward has been credited.
const (
	ReferralStatusPending   = "pending"
	ReferralStatusQualified = "qualified"
)

// Referral maps to the `referrals` table.
type Referral struct {
	ID                  uuid.UUID  `json:"id"`
	ReferrerID          uuid.UUID  `json:"referrer_id"`
	ReferredID          *uuid.UUID `json:"referred_id,omitempty"`
	ReferralCode        string     `json:"referral_code"`
	Status              string     `json:"status"`
	RewardAmount        float64    `json:"reward_amount"`
	RewardPaid          bool       `json:"reward_paid"`
	SignupDate          *time.Time `json:"signup_date,omitempty"`
	QualificationDate   *time.Time `json:"qualification_date,omitempty"`
	QualificationAmount float64    `json:"qualification_amount"`
	CreatedAt           time.Time  `json:"created_at"`
}

// ReferralOverview is the caller-facing view: their code plus aggregate stats.
type ReferralOverview struct {
	ReferralCode   string  `json:"referral_code"`
	TotalReferrals int     `json:"total_referrals"`
	QualifiedCount int     `json:"qualified_count"`
	TotalEarnings  float64 `json:"total_earnings"`
}
