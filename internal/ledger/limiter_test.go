package ledger

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/taskrewards/server/internal/model"
	"github.com/taskrewards/server/internal/repo"
)

func seedUser(t *testing.T, store *repo.Memory) uuid.UUID {
	t.Helper()
	id := uuid.New()
	err := store.Users().Create(context.Background(), model.User{
		ID:           id,
		Email:        "limits@example.com",
		ReferralCode: "LIMITTEST",
		Status:       model.StatusActive,
	})
	require.NoError(t, err)
	return id
}

func TestCheck_perTypeLimit(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	userID := seedUser(t, store)
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewLimiter(store.Tasks(), func() time.Time { return now })

	for i := 0; i < 5; i++ {
		dec, err := limiter.Check(ctx, userID, model.TaskSpin)
		require.NoError(t, err)
		require.True(t, dec.Allowed, "spin %d should be allowed", i+1)
		_, err = store.Tasks().ApplyReward(ctx, userID, model.TaskSpin, 25, Day(now), now)
		require.NoError(t, err)
	}

	dec, err := limiter.Check(ctx, userID, model.TaskSpin)
	require.NoError(t, err)
	require.False(t, dec.Allowed, "6th spin must be denied")
	require.Contains(t, dec.Reason, "spin", "denial should name the per-type quota")

	// Other types are unaffected by the spin quota.
	dec, err = limiter.Check(ctx, userID, model.TaskQuiz)
	require.NoError(t, err)
	require.True(t, dec.Allowed)
}

func TestCheck_aggregateLimit(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	userID := seedUser(t, store)
	now := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	limiter := NewLimiter(store.Tasks(), func() time.Time { return now })

	// Fill the whole daily budget with ads (no per-type cap on ads).
	for i := 0; i < MaxDailyTasks; i++ {
		at := now.Add(time.Duration(i) * 2 * time.Minute)
		_, err := store.Tasks().ApplyReward(ctx, userID, model.TaskAd, 25, Day(at), at)
		require.NoError(t, err)
	}

	for _, taskType := range []model.TaskType{model.TaskSpin, model.TaskQuiz, model.TaskAd} {
		dec, err := limiter.Check(ctx, userID, taskType)
		require.NoError(t, err)
		require.False(t, dec.Allowed, "11th task (%s) must be denied", taskType)
		require.Contains(t, dec.Reason, "daily limit")
	}
}

func TestCheck_dailyLoginOncePerDay(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	userID := seedUser(t, store)
	now := time.Date(2024, 6, 1, 23, 50, 0, 0, time.UTC)
	current := now
	limiter := NewLimiter(store.Tasks(), func() time.Time { return current })

	_, err := store.Tasks().ApplyReward(ctx, userID, model.TaskDailyLogin, 50, Day(current), current)
	require.NoError(t, err)

	dec, err := limiter.Check(ctx, userID, model.TaskDailyLogin)
	require.NoError(t, err)
	require.False(t, dec.Allowed)

	// The next calendar day starts with an empty ledger; no sweep needed.
	current = now.Add(20 * time.Minute)
	dec, err = limiter.Check(ctx, userID, model.TaskDailyLogin)
	require.NoError(t, err)
	require.True(t, dec.Allowed)
}

func TestCheck_adCooldown(t *testing.T) {
	ctx := context.Background()
	store := repo.NewMemory()
	userID := seedUser(t, store)
	watched := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	current := watched
	limiter := NewLimiter(store.Tasks(), func() time.Time { return current })

	_, err := store.Tasks().ApplyReward(ctx, userID, model.TaskAd, 25, Day(watched), watched)
	require.NoError(t, err)

	current = watched.Add(20 * time.Second)
	dec, err := limiter.Check(ctx, userID, model.TaskAd)
	require.NoError(t, err)
	require.False(t, dec.Allowed)
	require.EqualValues(t, 40, dec.WaitSeconds)
	require.True(t, strings.Contains(dec.Reason, "40"), "reason should carry the wait: %q", dec.Reason)

	current = watched.Add(61 * time.Second)
	dec, err = limiter.Check(ctx, userID, model.TaskAd)
	require.NoError(t, err)
	require.True(t, dec.Allowed)
}

func TestDay_utcBoundary(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	// 02:30 local on June 2nd is still June 1st in UTC.
	local := time.Date(2024, 6, 2, 2, 30, 0, 0, loc)
	require.Equal(t, "2024-06-01", Day(local))
}
