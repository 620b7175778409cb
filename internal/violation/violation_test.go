package violation

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/taskrewards/server/internal/model"
	"github.com/taskrewards/server/internal/repo"
)

func newTestReporter(t *testing.T) (*Reporter, *repo.Memory, uuid.UUID) {
	t.Helper()
	store := repo.NewMemory()
	userID := uuid.New()
	err := store.Users().Create(context.Background(), model.User{
		ID:           userID,
		Email:        "flagged@example.com",
		ReferralCode: "FLAGGED1",
		Status:       model.StatusActive,
	})
	require.NoError(t, err)
	return NewReporter(store.Users(), store.Violations(), nil), store, userID
}

func TestReport_suspendsAtThreshold(t *testing.T) {
	ctx := context.Background()
	reporter, store, userID := newTestReporter(t)

	for i := 0; i < SuspensionThreshold-1; i++ {
		reporter.Report(ctx, userID, model.ViolationRapidClicking, "burst of 30 clicks", "click-flood tracker")
		u, err := store.Users().GetByID(ctx, userID)
		require.NoError(t, err)
		require.Equal(t, model.StatusActive, u.Status, "account must stay active below the threshold")
	}

	reporter.Report(ctx, userID, model.ViolationDevTools, "devtools opened", "tamper detector")

	u, err := store.Users().GetByID(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, model.StatusSuspended, u.Status)
	require.NotEmpty(t, u.SuspensionReason)
	require.Equal(t, SuspensionThreshold, u.SuspiciousFlags)

	records, err := store.Violations().ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, records, SuspensionThreshold)
}

func TestReport_sixthViolationDoesNotDoubleSuspend(t *testing.T) {
	ctx := context.Background()
	reporter, store, userID := newTestReporter(t)

	for i := 0; i < SuspensionThreshold; i++ {
		reporter.Report(ctx, userID, model.ViolationTamper, "script injection", "tamper detector")
	}
	u, err := store.Users().GetByID(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, model.StatusSuspended, u.Status)
	reasonAfterFive := u.SuspensionReason

	// The 6th violation still appends, but the suspension is untouched.
	reporter.Report(ctx, userID, model.ViolationIframeEmbed, "served inside iframe", "iframe detector")

	u, err = store.Users().GetByID(ctx, userID)
	require.NoError(t, err)
	require.Equal(t, model.StatusSuspended, u.Status)
	require.Equal(t, reasonAfterFive, u.SuspensionReason)
	require.Equal(t, SuspensionThreshold+1, u.SuspiciousFlags)

	records, err := store.Violations().ListByUser(ctx, userID)
	require.NoError(t, err)
	require.Len(t, records, SuspensionThreshold+1)
}

func TestReport_unknownUserDoesNotPanic(t *testing.T) {
	reporter, _, _ := newTestReporter(t)
	// Fire-and-forget: a bogus user ID is logged, never surfaced.
	reporter.Report(context.Background(), uuid.New(), model.ViolationTamper, "detail", "test")
}
