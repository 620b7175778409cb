package repo

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/taskrewards/server/internal/model"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate is returned on unique-constraint conflicts (email,
	// referral code, device fingerprint).
	ErrDuplicate = errors.New("duplicate record")
)

// UserRepo defines user account persistence.
type UserRepo interface {
	Create(ctx context.Context, u model.User) error
	GetByID(ctx context.Context, id uuid.UUID) (model.User, error)
	GetByEmail(ctx context.Context, email string) (model.User, error)
	GetByReferralCode(ctx context.Context, code string) (model.User, error)
	GetByFingerprint(ctx context.Context, fingerprint string) (model.User, error)
	SetLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error
	SetStatus(ctx context.Context, id uuid.UUID, status model.AccountStatus, reason string) error
	// Suspend sets status to suspended only if the account is currently
	// active; reports whether a transition happened.
	Suspend(ctx context.Context, id uuid.UUID, reason string) (bool, error)
	// AddSuspiciousFlag increments the flag counter and returns the new value.
	AddSuspiciousFlag(ctx context.Context, id uuid.UUID) (int, error)
	SetBalance(ctx context.Context, id uuid.UUID, cents int64) error
	// AdjustBalance applies a signed delta, flooring the balance at zero,
	// and returns the new balance. Positive deltas also raise total-earned
	// so that balance <= total-earned keeps holding.
	AdjustBalance(ctx context.Context, id uuid.UUID, deltaCents int64) (int64, error)
}

// TaskRepo defines the per-user, per-day task ledger.
type TaskRepo interface {
	// ApplyReward atomically appends a task record and updates the user's
	// balance, total-earned and completed-task counter. A credit without a
	// ledger entry (or vice versa) must be impossible. Returns the updated
	// user.
	ApplyReward(ctx context.Context, userID uuid.UUID, t model.TaskType, rewardCents int64, day string, at time.Time) (model.User, error)
	// CountsForDay returns the aggregate and per-type task counts for the
	// user on the given calendar day.
	CountsForDay(ctx context.Context, userID uuid.UUID, day string) (total int, perType map[model.TaskType]int, err error)
	// LastAdAt returns the time of the user's most recent ad task, if any.
	LastAdAt(ctx context.Context, userID uuid.UUID) (time.Time, bool, error)
}

// ReferralRepo defines referral edge persistence.
type ReferralRepo interface {
	Create(ctx context.Context, r model.Referral) error
	GetByReferredUser(ctx context.Context, referredUserID uuid.UUID) (model.Referral, error)
	ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]model.Referral, error)
	// Approve transitions the referral to approved and credits the bonus to
	// both parties, all atomically and only if the referral is still
	// pending. Reports whether the transition happened; a repeat call is a
	// no-op returning false.
	Approve(ctx context.Context, id uuid.UUID, bonusCents int64, at time.Time) (bool, error)
}

// ViolationRepo is the append-only violation ledger.
type ViolationRepo interface {
	Append(ctx context.Context, v model.Violation) error
	ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Violation, error)
}

// AdminLogRepo is the append-only admin action audit trail.
type AdminLogRepo interface {
	Append(ctx context.Context, e model.AdminLogEntry) error
}
