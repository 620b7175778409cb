// Package referral tracks pending referrals and releases the bonus once
// the referred account crosses the activity threshold.
package referral

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taskrewards/server/internal/model"
	"github.com/taskrewards/server/internal/repo"
	"github.com/taskrewards/server/internal/violation"
)

const (
	// BonusCents is paid to both referrer and referred, exactly once.
	BonusCents int64 = 100
	// TasksRequired is the completed-task threshold for approval.
	TasksRequired = 3
)

var (
	// ErrUnknownCode means the supplied referral code resolves to no user.
	ErrUnknownCode = errors.New("referral code not recognized")
	// ErrSelfReferral means the code belongs to the signing-up user itself.
	ErrSelfReferral = errors.New("self-referral is not allowed")
	// ErrSameDevice means referrer and referred share a device fingerprint.
	ErrSameDevice = errors.New("referral from the referrer's own device is not allowed")
)

// Status is the referral progress reported to the referred user.
type Status struct {
	Exists      bool
	Approved    bool
	TasksNeeded int
}

// Service owns the no-referral -> pending -> approved state machine.
type Service struct {
	users      repo.UserRepo
	referrals  repo.ReferralRepo
	violations *violation.Reporter
	now        func() time.Time
}

// NewService creates a Service. now may be nil for the real clock.
func NewService(users repo.UserRepo, referrals repo.ReferralRepo, violations *violation.Reporter, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{users: users, referrals: referrals, violations: violations, now: now}
}

// CreateFromSignup records a pending referral for a freshly created user.
// Self-referrals and same-device referrals are rejected, reported as
// violations against the new account, and leave no referral record.
func (s *Service) CreateFromSignup(ctx context.Context, newUser model.User, code string) error {
	referrer, err := s.users.GetByReferralCode(ctx, code)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return ErrUnknownCode
		}
		return fmt.Errorf("resolve referral code: %w", err)
	}

	if referrer.ID == newUser.ID {
		s.violations.Report(ctx, newUser.ID, model.ViolationSelfReferral,
			"signup used the account's own referral code", "referral")
		return ErrSelfReferral
	}
	if newUser.Fingerprint != "" && referrer.Fingerprint == newUser.Fingerprint {
		s.violations.Report(ctx, newUser.ID, model.ViolationSelfReferral,
			"referred signup shares the referrer's device fingerprint", "referral")
		return ErrSameDevice
	}

	err = s.referrals.Create(ctx, model.Referral{
		ID:             uuid.New(),
		ReferrerID:     referrer.ID,
		ReferredUserID: newUser.ID,
		Status:         model.ReferralPending,
		JoinedAt:       s.now(),
	})
	if err != nil {
		return fmt.Errorf("create referral: %w", err)
	}
	return nil
}

// CheckEligibility is polled after login and after every completed task.
// At the threshold it approves the referral and pays both parties; once
// approved it stays approved and repeat calls pay nothing.
func (s *Service) CheckEligibility(ctx context.Context, referredUserID uuid.UUID) (Status, error) {
	ref, err := s.referrals.GetByReferredUser(ctx, referredUserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return Status{}, nil
		}
		return Status{}, fmt.Errorf("load referral: %w", err)
	}

	if ref.Status == model.ReferralApproved {
		return Status{Exists: true, Approved: true}, nil
	}

	user, err := s.users.GetByID(ctx, referredUserID)
	if err != nil {
		return Status{}, fmt.Errorf("load referred user: %w", err)
	}

	if user.CompletedTasks < TasksRequired {
		return Status{Exists: true, TasksNeeded: TasksRequired - user.CompletedTasks}, nil
	}

	// The repo transition is guarded on pending, so a concurrent or repeat
	// approval pays at most once.
	if _, err := s.referrals.Approve(ctx, ref.ID, BonusCents, s.now()); err != nil {
		return Status{}, fmt.Errorf("approve referral: %w", err)
	}
	return Status{Exists: true, Approved: true}, nil
}

// ListForReferrer returns the user's outbound referrals.
func (s *Service) ListForReferrer(ctx context.Context, referrerID uuid.UUID) ([]model.Referral, error) {
	return s.referrals.ListByReferrer(ctx, referrerID)
}
