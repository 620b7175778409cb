// Package reward maps verified, quota-cleared claims to monetary credits.
package reward

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log"
	"math/big"
	"strconv"
	"time"

	"github.com/taskrewards/server/internal/claims"
	"github.com/taskrewards/server/internal/ledger"
	"github.com/taskrewards/server/internal/metrics"
	"github.com/taskrewards/server/internal/model"
	"github.com/taskrewards/server/internal/referral"
	"github.com/taskrewards/server/internal/repo"
	"github.com/taskrewards/server/internal/violation"
)

// Reward parameters, in cents.
const (
	DailyLoginRewardCents int64 = 50
	QuizPerQuestionCents  int64 = 20
	MaxQuizQuestions            = 5
	AdRewardCents         int64 = 25
	MinAdWatchMillis      int64 = 5000
)

// Wheel and scratch prize tables. The outcome is drawn server-side with
// crypto/rand; a prize embedded in the client payload is never honored.
var (
	SpinPrizesCents    = []int64{5, 10, 25, 50, 100, 250}
	ScratchPrizesCents = []int64{0, 10, 20, 50, 150}
)

var (
	ErrUserNotFound     = errors.New("user not found")
	ErrAccountNotActive = errors.New("account is not active")
	ErrQuotaExceeded    = errors.New("task quota exceeded")
	ErrAdNotWatched     = errors.New("ad was not watched long enough")
	ErrBadPayload       = errors.New("invalid task payload")
)

// Result is returned on a successful claim so the client can render the
// authoritative balance; a client-supplied balance is never trusted.
type Result struct {
	TaskType            model.TaskType
	RewardCents         int64
	NewBalanceCents     int64
	TotalEarnedCents    int64
	CompletedTasks      int
	TasksRemainingToday int
	Referral            referral.Status
}

// Engine runs the claim pipeline: verify envelope, re-check quotas, load
// the user, compute the reward, credit atomically, then poll the referral
// machine. Each step is a hard gate; the first failure short-circuits.
type Engine struct {
	users      repo.UserRepo
	tasks      repo.TaskRepo
	verifier   *claims.Verifier
	limiter    *ledger.Limiter
	violations *violation.Reporter
	referrals  *referral.Service
	locks      *ledger.UserLocks
	now        func() time.Time
}

// NewEngine creates an Engine. now may be nil for the real clock.
func NewEngine(
	users repo.UserRepo,
	tasks repo.TaskRepo,
	verifier *claims.Verifier,
	limiter *ledger.Limiter,
	violations *violation.Reporter,
	referrals *referral.Service,
	now func() time.Time,
) *Engine {
	if now == nil {
		now = time.Now
	}
	return &Engine{
		users:      users,
		tasks:      tasks,
		verifier:   verifier,
		limiter:    limiter,
		violations: violations,
		referrals:  referrals,
		locks:      ledger.NewUserLocks(),
		now:        now,
	}
}

// Claim processes one signed task claim.
func (e *Engine) Claim(ctx context.Context, env claims.Envelope) (Result, error) {
	if err := e.verifier.Verify(env); err != nil {
		// A bad envelope is adversarial until proven otherwise.
		e.violations.Report(ctx, env.UserID, model.ViolationInvalidSignature,
			fmt.Sprintf("%s task claim rejected: %v", env.TaskType, err), "reward engine")
		metrics.ClaimsDenied.WithLabelValues("invalid_envelope").Inc()
		return Result{}, err
	}
	if !env.TaskType.Valid() {
		metrics.ClaimsDenied.WithLabelValues("bad_payload").Inc()
		return Result{}, fmt.Errorf("%w: unknown task type %q", ErrBadPayload, env.TaskType)
	}

	// Limits are re-checked and applied under the user's lock; an earlier
	// advisory check must not be trusted across the gap.
	unlock := e.locks.Lock(env.UserID)
	defer unlock()

	dec, err := e.limiter.Check(ctx, env.UserID, env.TaskType)
	if err != nil {
		return Result{}, err
	}
	if !dec.Allowed {
		metrics.ClaimsDenied.WithLabelValues("quota").Inc()
		return Result{}, fmt.Errorf("%w: %s", ErrQuotaExceeded, dec.Reason)
	}

	user, err := e.users.GetByID(ctx, env.UserID)
	if err != nil {
		if errors.Is(err, repo.ErrNotFound) {
			metrics.ClaimsDenied.WithLabelValues("user_not_found").Inc()
			return Result{}, ErrUserNotFound
		}
		return Result{}, err
	}
	if user.Status != model.StatusActive {
		metrics.ClaimsDenied.WithLabelValues("account_not_active").Inc()
		return Result{}, fmt.Errorf("%w: %s", ErrAccountNotActive, user.Status)
	}

	rewardCents, err := computeReward(env.TaskType, env.Payload)
	if err != nil {
		metrics.ClaimsDenied.WithLabelValues("bad_payload").Inc()
		return Result{}, err
	}

	now := e.now()
	updated, err := e.tasks.ApplyReward(ctx, env.UserID, env.TaskType, rewardCents, ledger.Day(now), now)
	if err != nil {
		return Result{}, fmt.Errorf("apply reward: %w", err)
	}
	metrics.ClaimsAccepted.WithLabelValues(string(env.TaskType)).Inc()

	// Referral progress is advisory; a failure here must not undo the claim.
	refStatus, err := e.referrals.CheckEligibility(ctx, env.UserID)
	if err != nil {
		log.Printf("reward: referral check for user %s failed: %v", env.UserID, err)
	}

	return Result{
		TaskType:            env.TaskType,
		RewardCents:         rewardCents,
		NewBalanceCents:     updated.BalanceCents,
		TotalEarnedCents:    updated.TotalEarnedCents,
		CompletedTasks:      updated.CompletedTasks,
		TasksRemainingToday: dec.Remaining - 1,
		Referral:            refStatus,
	}, nil
}

// computeReward maps a task type and its payload to a credit. The switch is
// exhaustive over model.TaskType; a new type without a case fails closed.
func computeReward(t model.TaskType, payload map[string]string) (int64, error) {
	switch t {
	case model.TaskDailyLogin:
		return DailyLoginRewardCents, nil
	case model.TaskSpin:
		return drawPrize(SpinPrizesCents)
	case model.TaskScratch:
		return drawPrize(ScratchPrizesCents)
	case model.TaskQuiz:
		correct, err := strconv.Atoi(payload["correctAnswers"])
		if err != nil || correct < 0 || correct > MaxQuizQuestions {
			return 0, fmt.Errorf("%w: correctAnswers out of range", ErrBadPayload)
		}
		return int64(correct) * QuizPerQuestionCents, nil
	case model.TaskAd:
		watched, err := strconv.ParseInt(payload["adWatchDuration"], 10, 64)
		if err != nil || watched < 0 {
			return 0, fmt.Errorf("%w: adWatchDuration missing", ErrBadPayload)
		}
		if watched < MinAdWatchMillis {
			return 0, ErrAdNotWatched
		}
		return AdRewardCents, nil
	default:
		return 0, fmt.Errorf("%w: unknown task type %q", ErrBadPayload, t)
	}
}

// drawPrize picks a prize uniformly with crypto/rand.
func drawPrize(table []int64) (int64, error) {
	idx, err := rand.Int(rand.Reader, big.NewInt(int64(len(table))))
	if err != nil {
		return 0, fmt.Errorf("draw prize: %w", err)
	}
	return table[idx.Int64()], nil
}
