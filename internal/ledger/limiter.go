// Package ledger enforces the per-user, per-day task quotas over the
// append-only task ledger.
package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taskrewards/server/internal/model"
	"github.com/taskrewards/server/internal/repo"
)

const (
	// MaxDailyTasks caps rewarded tasks across all types per calendar day.
	MaxDailyTasks = 10
	// AdCooldown is the minimum gap between two rewarded ad watches.
	AdCooldown = 60 * time.Second
)

// perTypeDailyLimits caps rewarded tasks per type per calendar day.
var perTypeDailyLimits = map[model.TaskType]int{
	model.TaskDailyLogin: 1,
	model.TaskSpin:       5,
	model.TaskScratch:    3,
	model.TaskQuiz:       2,
}

// PerTypeDailyLimit returns the per-day cap for t, or 0 if the type is
// uncapped (ads are limited only by cooldown and the aggregate cap).
func PerTypeDailyLimit(t model.TaskType) int {
	return perTypeDailyLimits[t]
}

// Day returns the calendar date of t in the server's authoritative clock
// (UTC). Client clocks never participate in day-boundary decisions.
func Day(t time.Time) string {
	return t.UTC().Format("2006-01-02")
}

// Decision is the outcome of a quota check.
type Decision struct {
	Allowed     bool
	Reason      string
	Remaining   int   // aggregate tasks still claimable today
	WaitSeconds int64 // for ad cooldown denials
}

// Limiter evaluates the quota rules against the task ledger. Checks read
// the current state only; callers that act on a Decision must hold the
// user's lock across check and append (see reward.Engine).
type Limiter struct {
	tasks repo.TaskRepo
	now   func() time.Time
}

// NewLimiter creates a Limiter. now may be nil for the real clock.
func NewLimiter(tasks repo.TaskRepo, now func() time.Time) *Limiter {
	if now == nil {
		now = time.Now
	}
	return &Limiter{tasks: tasks, now: now}
}

// Check evaluates the rules in order: aggregate daily cap, per-type daily
// cap, then the ad cooldown.
func (l *Limiter) Check(ctx context.Context, userID uuid.UUID, t model.TaskType) (Decision, error) {
	now := l.now()
	total, perType, err := l.tasks.CountsForDay(ctx, userID, Day(now))
	if err != nil {
		return Decision{}, fmt.Errorf("count tasks for day: %w", err)
	}

	if total >= MaxDailyTasks {
		return Decision{Reason: fmt.Sprintf("daily limit of %d tasks reached", MaxDailyTasks)}, nil
	}

	if limit := perTypeDailyLimits[t]; limit > 0 && perType[t] >= limit {
		return Decision{
			Reason: fmt.Sprintf("daily %s limit reached (%d of %d used)", t, perType[t], limit),
		}, nil
	}

	if t == model.TaskAd {
		lastAd, ok, err := l.tasks.LastAdAt(ctx, userID)
		if err != nil {
			return Decision{}, fmt.Errorf("query last ad: %w", err)
		}
		if ok {
			if elapsed := now.Sub(lastAd); elapsed < AdCooldown {
				wait := int64((AdCooldown - elapsed + time.Second - 1) / time.Second)
				return Decision{
					Reason:      fmt.Sprintf("ad cooldown active, wait %d seconds", wait),
					WaitSeconds: wait,
				}, nil
			}
		}
	}

	return Decision{Allowed: true, Remaining: MaxDailyTasks - total}, nil
}
