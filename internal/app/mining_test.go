package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/zerthyx/ledger-service/internal/domain"
	"github.com/zerthyx/ledger-service/internal/store"
)

type miningRepoStub struct {
	store.Repository

	wallet  *domain.MiningWallet
	session *domain.MiningSession

	claimErr    error
	claimParams store.MiningClaimParams
	claimCalled bool
}

func (s *miningRepoStub) GetMiningWallet(ctx context.Context, userID uuid.UUID) (*domain.MiningWallet, error) {
	return s.wallet, nil
}

func (s *miningRepoStub) GetLatestMiningSession(ctx context.Context, userID uuid.UUID) (*domain.MiningSession, error) {
	return s.session, nil
}

func (s *miningRepoStub) ProcessMiningClaim(ctx context.Context, userID uuid.UUID, params store.MiningClaimParams) (*domain.MiningClaimResult, error) {
	s.claimCalled = true
	s.claimParams = params
	if s.claimErr != nil {
		return nil, s.claimErr
	}
	return &domain.MiningClaimResult{
		PointsEarned:  params.PointsPerClaim,
		NextAvailable: params.Now.Add(params.Cooldown),
		Wallet:        s.wallet,
	}, nil
}

func TestClaimMining_ForwardsConfiguredPolicy(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)
	repo := &miningRepoStub{wallet: &domain.MiningWallet{UserID: uuid.New()}}
	svc := NewService(repo, nil, 1500, 30*time.Minute, 12, 5)
	svc.SetClock(func() time.Time { return now })

	result, err := svc.ClaimMining(context.Background(), repo.wallet.UserID)
	if err != nil {
		t.Fatalf("ClaimMining returned error: %v", err)
	}
	if result.PointsEarned != 1500 {
		t.Fatalf("expected 1500 points, got %d", result.PointsEarned)
	}
	if repo.claimParams.PointsPerClaim != 1500 {
		t.Fatalf("expected points per claim 1500, got %d", repo.claimParams.PointsPerClaim)
	}
	if repo.claimParams.Cooldown != 30*time.Minute {
		t.Fatalf("expected 30m cooldown, got %s", repo.claimParams.Cooldown)
	}
	if repo.claimParams.DailyClaimCap != 12 {
		t.Fatalf("expected daily cap 12, got %d", repo.claimParams.DailyClaimCap)
	}
	if !repo.claimParams.Now.Equal(now) {
		t.Fatalf("expected claim timestamp %v, got %v", now, repo.claimParams.Now)
	}
}

func TestClaimMining_CooldownErrorSurfaces(t *testing.T) {
	repo := &miningRepoStub{claimErr: store.ErrClaimNotReady}
	svc := NewService(repo, nil, 1000, time.Hour, 24, 5)

	_, err := svc.ClaimMining(context.Background(), uuid.New())
	if !errors.Is(err, store.ErrClaimNotReady) {
		t.Fatalf("expected ErrClaimNotReady, got %v", err)
	}
}

func TestClaimMining_RateLimitedSkipsRepository(t *testing.T) {
	repo := &miningRepoStub{}
	svc := NewService(repo, nil, 1000, time.Hour, 24, 5)
	svc.ConfigureRateLimits(5, 30)
	svc.SetRateLimiter(&blockedRateLimiter{retryAfter: 7})

	_, err := svc.ClaimMining(context.Background(), uuid.New())

	var rateLimited *RateLimitedError
	if !errors.As(err, &rateLimited) {
		t.Fatalf("expected RateLimitedError, got %v", err)
	}
	if repo.claimCalled {
		t.Fatal("expected repository to be skipped when rate limited")
	}
}

func TestGetMiningStatus_CanClaim(t *testing.T) {
	now := time.Date(2025, 6, 1, 9, 0, 0, 0, time.UTC)

	tests := []struct {
		name      string
		session   *domain.MiningSession
		wantClaim bool
	}{
		{
			name:      "no session yet",
			session:   nil,
			wantClaim: true,
		},
		{
			name:      "cooldown still running",
			session:   &domain.MiningSession{NextAvailableTime: now.Add(10 * time.Minute)},
			wantClaim: false,
		},
		{
			name:      "cooldown elapsed",
			session:   &domain.MiningSession{NextAvailableTime: now.Add(-1 * time.Minute)},
			wantClaim: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &miningRepoStub{
				wallet:  &domain.MiningWallet{UserID: uuid.New()},
				session: tt.session,
			}
			svc := NewService(repo, nil, 1000, time.Hour, 24, 5)
			svc.SetClock(func() time.Time { return now })

			status, err := svc.GetMiningStatus(context.Background(), repo.wallet.UserID)
			if err != nil {
				t.Fatalf("GetMiningStatus returned error: %v", err)
			}
			if status.CanClaim != tt.wantClaim {
				t.Fatalf("expected CanClaim=%t, got %t", tt.wantClaim, status.CanClaim)
			}
		})
	}
}

type referralRepoStub struct {
	store.Repository

	rewardErr    error
	lastAmount   float64
	rewardCalled bool
}

func (s *referralRepoStub) AddReferralReward(ctx context.Context, referrerID, referredID uuid.UUID, amount float64, now time.Time) error {
	s.rewardCalled = true
	s.lastAmount = amount
	return s.rewardErr
}

func TestAddReferralReward_DefaultsToConfiguredAmount(t *testing.T) {
	repo := &referralRepoStub{}
	svc := NewService(repo, nil, 1000, time.Hour, 24, 7.5)

	if err := svc.AddReferralReward(context.Background(), uuid.New(), uuid.New(), 0); err != nil {
		t.Fatalf("AddReferralReward returned error: %v", err)
	}
	if repo.lastAmount != 7.5 {
		t.Fatalf("expected configured default 7.5, got %.2f", repo.lastAmount)
	}
}

func TestAddReferralReward_ExplicitAmountWins(t *testing.T) {
	repo := &referralRepoStub{}
	svc := NewService(repo, nil, 1000, time.Hour, 24, 7.5)

	if err := svc.AddReferralReward(context.Background(), uuid.New(), uuid.New(), 12); err != nil {
		t.Fatalf("AddReferralReward returned error: %v", err)
	}
	if repo.lastAmount != 12 {
		t.Fatalf("expected explicit amount 12, got %.2f", repo.lastAmount)
	}
}

func TestAddReferralReward_UnconfiguredAmountFails(t *testing.T) {
	repo := &referralRepoStub{}
	svc := NewService(repo, nil, 1000, time.Hour, 24, 0)

	err := svc.AddReferralReward(context.Background(), uuid.New(), uuid.New(), 0)
	if !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("expected ErrInvalidAmount, got %v", err)
	}
	if repo.rewardCalled {
		t.Fatal("expected repository to be skipped without a reward amount")
	}
}

func TestAddReferralReward_AlreadyRewardedSurfaces(t *testing.T) {
	repo := &referralRepoStub{rewardErr: store.ErrReferralAlreadyRewarded}
	svc := NewService(repo, nil, 1000, time.Hour, 24, 5)

	err := svc.AddReferralReward(context.Background(), uuid.New(), uuid.New(), 5)
	if !errors.Is(err, store.ErrReferralAlreadyRewarded) {
		t.Fatalf("expected ErrReferralAlreadyRewarded, got %v", err)
	}
}
