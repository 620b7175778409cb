package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/asaskevich/govalidator"
	"github.com/google/uuid"
	"github.com/taskrewards/server/internal/crypto"
	"github.com/taskrewards/server/internal/model"
	"github.com/taskrewards/server/internal/referral"
	"github.com/taskrewards/server/internal/repo"
	"github.com/taskrewards/server/internal/violation"
)

const (
	minPasswordLength  = 8
	referralCodeLength = 8
)

var (
	ErrInvalidEmail     = errors.New("invalid email address")
	ErrPasswordTooShort = errors.New("password must be at least 8 characters")
	ErrEmailTaken       = errors.New("email already registered")
	// ErrInvalidCredentials covers both unknown email and wrong password so
	// callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrAccountBanned      = errors.New("account is banned")
	ErrAccountSuspended   = errors.New("account is suspended")
	// ErrDeviceRegistered enforces one account per device fingerprint.
	ErrDeviceRegistered = errors.New("device already has a registered account")
	// ErrMissingFingerprint rejects signups without a device fingerprint;
	// the one-account-per-device rule needs one to hold.
	ErrMissingFingerprint = errors.New("device fingerprint is required")
)

// AccountService handles signup and login and hands out session tokens.
type AccountService struct {
	users      repo.UserRepo
	sessions   *SessionService
	referrals  *referral.Service
	violations *violation.Reporter
	now        func() time.Time
}

// NewAccountService creates an AccountService. now may be nil for the real
// clock.
func NewAccountService(
	users repo.UserRepo,
	sessions *SessionService,
	referrals *referral.Service,
	violations *violation.Reporter,
	now func() time.Time,
) *AccountService {
	if now == nil {
		now = time.Now
	}
	return &AccountService{
		users:      users,
		sessions:   sessions,
		referrals:  referrals,
		violations: violations,
		now:        now,
	}
}

// Signup creates an account with zero balance and earnings, a fresh
// referral code, and an immediate session. The fingerprint comes from the
// device fingerprint collaborator; a fingerprint already bound to an
// account rejects the signup and flags the existing account.
func (s *AccountService) Signup(ctx context.Context, email, password, fingerprint, referralCode string) (model.User, string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if !govalidator.IsEmail(email) {
		return model.User{}, "", ErrInvalidEmail
	}
	if len(password) < minPasswordLength {
		return model.User{}, "", ErrPasswordTooShort
	}
	fingerprint = strings.TrimSpace(fingerprint)
	if fingerprint == "" {
		return model.User{}, "", ErrMissingFingerprint
	}

	if existing, err := s.users.GetByFingerprint(ctx, fingerprint); err == nil {
		s.violations.Report(ctx, existing.ID, model.ViolationDeviceReuse,
			"signup attempted from a device already bound to this account", "auth")
		return model.User{}, "", ErrDeviceRegistered
	} else if !errors.Is(err, repo.ErrNotFound) {
		return model.User{}, "", fmt.Errorf("check fingerprint: %w", err)
	}

	record, err := crypto.HashPassword(password)
	if err != nil {
		return model.User{}, "", fmt.Errorf("hash password: %w", err)
	}
	code, err := crypto.RandomID(referralCodeLength)
	if err != nil {
		return model.User{}, "", fmt.Errorf("generate referral code: %w", err)
	}

	now := s.now()
	user := model.User{
		ID:             uuid.New(),
		Email:          email,
		PasswordRecord: record,
		Fingerprint:    fingerprint,
		ReferralCode:   strings.ToUpper(code),
		ReferredBy:     strings.TrimSpace(referralCode),
		Status:         model.StatusActive,
		CreatedAt:      now,
		LastLoginAt:    now,
	}

	if err := s.users.Create(ctx, user); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return model.User{}, "", ErrEmailTaken
		}
		return model.User{}, "", fmt.Errorf("create user: %w", err)
	}

	if user.ReferredBy != "" {
		// A rejected referral (unknown code, self, same device) leaves the
		// account itself standing; integrity failures were already reported.
		if err := s.referrals.CreateFromSignup(ctx, user, user.ReferredBy); err != nil {
			log.Printf("auth: referral for new user %s not created: %v", user.ID, err)
		}
	}

	token, err := s.sessions.Issue(user)
	if err != nil {
		return model.User{}, "", fmt.Errorf("issue session: %w", err)
	}
	return user, token, nil
}

// Login authenticates by email and password. Unknown email and wrong
// password are indistinguishable to the caller. Banned accounts are
// rejected permanently; suspended accounts carry their reason. The
// referral machine is polled as part of every login.
func (s *AccountService) Login(ctx context.Context, email, password string) (model.User, string, referral.Status, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	user, err := s.users.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			return model.User{}, "", referral.Status{}, ErrInvalidCredentials
		}
		return model.User{}, "", referral.Status{}, fmt.Errorf("look up user: %w", err)
	}
	if !crypto.VerifyPassword(password, user.PasswordRecord) {
		return model.User{}, "", referral.Status{}, ErrInvalidCredentials
	}

	switch user.Status {
	case model.StatusBanned:
		return model.User{}, "", referral.Status{}, ErrAccountBanned
	case model.StatusSuspended:
		return model.User{}, "", referral.Status{}, fmt.Errorf("%w: %s", ErrAccountSuspended, user.SuspensionReason)
	}

	now := s.now()
	if err := s.users.SetLastLogin(ctx, user.ID, now); err != nil {
		return model.User{}, "", referral.Status{}, fmt.Errorf("update last login: %w", err)
	}
	user.LastLoginAt = now

	token, err := s.sessions.Issue(user)
	if err != nil {
		return model.User{}, "", referral.Status{}, fmt.Errorf("issue session: %w", err)
	}

	refStatus, err := s.referrals.CheckEligibility(ctx, user.ID)
	if err != nil {
		log.Printf("auth: referral check for user %s failed: %v", user.ID, err)
	}

	return user, token, refStatus, nil
}
