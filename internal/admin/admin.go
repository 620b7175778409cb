// Package admin implements privileged administrative mutations with a
// mandatory audit trail.
package admin

import (
	"context"
	"crypto/subtle"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/taskrewards/server/internal/crypto"
	"github.com/taskrewards/server/internal/model"
	"github.com/taskrewards/server/internal/repo"
)

// Supported admin actions.
const (
	ActionBan           = "ban"
	ActionSuspend       = "suspend"
	ActionUnsuspend     = "unsuspend"
	ActionResetBalance  = "reset_balance"
	ActionAdjustBalance = "adjust_balance"
)

var (
	ErrBadSecret     = errors.New("invalid admin secret")
	ErrUnknownAction = errors.New("unknown admin action")
	// ErrBanPermanent guards the terminal ban state: a banned account can
	// never be revived, not even through unsuspend.
	ErrBanPermanent = errors.New("banned accounts cannot be unsuspended")
)

// Params carries action-specific parameters.
type Params struct {
	AmountCents int64  `json:"amount_cents,omitempty"`
	Reason      string `json:"reason,omitempty"`
}

// Result reports the target's state after a successful action.
type Result struct {
	Action          string
	Status          model.AccountStatus
	NewBalanceCents int64
}

// Service executes admin actions. The secret is held only as a SHA-256
// hash and compared in constant time; every invocation, wrong-secret
// attempts included, is appended to the audit trail.
type Service struct {
	users      repo.UserRepo
	logs       repo.AdminLogRepo
	secretHash []byte
	now        func() time.Time
}

// NewService creates a Service. now may be nil for the real clock.
func NewService(users repo.UserRepo, logs repo.AdminLogRepo, adminSecret string, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{
		users:      users,
		logs:       logs,
		secretHash: crypto.Hash([]byte(adminSecret)),
		now:        now,
	}
}

// Do authenticates the secret and executes the action against the target.
func (s *Service) Do(ctx context.Context, secret, action string, target uuid.UUID, params Params) (Result, error) {
	authorized := subtle.ConstantTimeCompare(crypto.Hash([]byte(secret)), s.secretHash) == 1

	res, err := s.execute(ctx, authorized, action, target, params)
	s.audit(ctx, action, target, params, err == nil)
	return res, err
}

func (s *Service) execute(ctx context.Context, authorized bool, action string, target uuid.UUID, params Params) (Result, error) {
	if !authorized {
		return Result{}, ErrBadSecret
	}

	switch action {
	case ActionBan:
		if err := s.users.SetStatus(ctx, target, model.StatusBanned, "banned by administrator"); err != nil {
			return Result{}, err
		}
		return Result{Action: action, Status: model.StatusBanned}, nil

	case ActionSuspend:
		reason := params.Reason
		if reason == "" {
			reason = "suspended by administrator"
		}
		if err := s.users.SetStatus(ctx, target, model.StatusSuspended, reason); err != nil {
			return Result{}, err
		}
		return Result{Action: action, Status: model.StatusSuspended}, nil

	case ActionUnsuspend:
		user, err := s.users.GetByID(ctx, target)
		if err != nil {
			return Result{}, err
		}
		if user.Status == model.StatusBanned {
			return Result{}, ErrBanPermanent
		}
		if err := s.users.SetStatus(ctx, target, model.StatusActive, ""); err != nil {
			return Result{}, err
		}
		return Result{Action: action, Status: model.StatusActive}, nil

	case ActionResetBalance:
		if err := s.users.SetBalance(ctx, target, 0); err != nil {
			return Result{}, err
		}
		return Result{Action: action, NewBalanceCents: 0}, nil

	case ActionAdjustBalance:
		balance, err := s.users.AdjustBalance(ctx, target, params.AmountCents)
		if err != nil {
			return Result{}, err
		}
		return Result{Action: action, NewBalanceCents: balance}, nil

	default:
		return Result{}, fmt.Errorf("%w: %q", ErrUnknownAction, action)
	}
}

// audit appends to the admin action log. Audit failures are logged but do
// not fail the action.
func (s *Service) audit(ctx context.Context, action string, target uuid.UUID, params Params, success bool) {
	paramsJSON, _ := json.Marshal(params)
	err := s.logs.Append(ctx, model.AdminLogEntry{
		ID:           uuid.New(),
		Action:       action,
		TargetUserID: target,
		Params:       string(paramsJSON),
		Success:      success,
		CreatedAt:    s.now(),
	})
	if err != nil {
		log.Printf("admin: audit append for action %q failed: %v", action, err)
	}
}
