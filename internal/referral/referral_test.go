package referral

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"github.com/taskrewards/server/internal/ledger"
	"github.com/taskrewards/server/internal/model"
	"github.com/taskrewards/server/internal/repo"
	"github.com/taskrewards/server/internal/violation"
)

type fixture struct {
	store    *repo.Memory
	service  *Service
	referrer model.User
	referred model.User
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	ctx := context.Background()
	store := repo.NewMemory()

	referrer := model.User{
		ID:           uuid.New(),
		Email:        "referrer@example.com",
		Fingerprint:  "fp-referrer",
		ReferralCode: "REFCODE1",
		Status:       model.StatusActive,
	}
	referred := model.User{
		ID:           uuid.New(),
		Email:        "referred@example.com",
		Fingerprint:  "fp-referred",
		ReferralCode: "REFCODE2",
		ReferredBy:   "REFCODE1",
		Status:       model.StatusActive,
	}
	require.NoError(t, store.Users().Create(ctx, referrer))
	require.NoError(t, store.Users().Create(ctx, referred))

	reporter := violation.NewReporter(store.Users(), store.Violations(), nil)
	service := NewService(store.Users(), store.Referrals(), reporter, nil)
	return &fixture{store: store, service: service, referrer: referrer, referred: referred}
}

func (f *fixture) completeTasks(t *testing.T, n int) {
	t.Helper()
	ctx := context.Background()
	now := time.Now()
	for i := 0; i < n; i++ {
		_, err := f.store.Tasks().ApplyReward(ctx, f.referred.ID, model.TaskSpin, 25, ledger.Day(now), now)
		require.NoError(t, err)
	}
}

func TestCreateFromSignup_pending(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	require.NoError(t, f.service.CreateFromSignup(ctx, f.referred, "REFCODE1"))

	ref, err := f.store.Referrals().GetByReferredUser(ctx, f.referred.ID)
	require.NoError(t, err)
	require.Equal(t, model.ReferralPending, ref.Status)
	require.Equal(t, f.referrer.ID, ref.ReferrerID)
	require.Nil(t, ref.ApprovedAt)
}

func TestCreateFromSignup_unknownCode(t *testing.T) {
	f := newFixture(t)
	err := f.service.CreateFromSignup(context.Background(), f.referred, "NOSUCH99")
	require.ErrorIs(t, err, ErrUnknownCode)
}

func TestCreateFromSignup_sameDeviceRejectedAndReported(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	clone := f.referred
	clone.Fingerprint = f.referrer.Fingerprint
	err := f.service.CreateFromSignup(ctx, clone, "REFCODE1")
	require.ErrorIs(t, err, ErrSameDevice)

	_, err = f.store.Referrals().GetByReferredUser(ctx, clone.ID)
	require.True(t, errors.Is(err, repo.ErrNotFound), "no referral record may be created")

	records, err := f.store.Violations().ListByUser(ctx, clone.ID)
	require.NoError(t, err)
	require.Len(t, records, 1)
	require.Equal(t, model.ViolationSelfReferral, records[0].Type)
}

func TestCheckEligibility_progression(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.service.CreateFromSignup(ctx, f.referred, "REFCODE1"))

	st, err := f.service.CheckEligibility(ctx, f.referred.ID)
	require.NoError(t, err)
	require.True(t, st.Exists)
	require.False(t, st.Approved)
	require.Equal(t, TasksRequired, st.TasksNeeded)

	f.completeTasks(t, 2)
	st, err = f.service.CheckEligibility(ctx, f.referred.ID)
	require.NoError(t, err)
	require.Equal(t, 1, st.TasksNeeded)
}

func TestCheckEligibility_approvesAndPaysBothOnce(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	require.NoError(t, f.service.CreateFromSignup(ctx, f.referred, "REFCODE1"))
	f.completeTasks(t, TasksRequired)

	st, err := f.service.CheckEligibility(ctx, f.referred.ID)
	require.NoError(t, err)
	require.True(t, st.Approved)

	referrer, _ := f.store.Users().GetByID(ctx, f.referrer.ID)
	referred, _ := f.store.Users().GetByID(ctx, f.referred.ID)
	require.Equal(t, BonusCents, referrer.BalanceCents)
	require.Equal(t, BonusCents, referrer.TotalEarnedCents)
	// Referred already earned 3 task rewards of 25 on top of the bonus.
	require.Equal(t, BonusCents+75, referred.BalanceCents)

	// Re-invocation reports approved without paying again.
	st, err = f.service.CheckEligibility(ctx, f.referred.ID)
	require.NoError(t, err)
	require.True(t, st.Approved)

	referrer, _ = f.store.Users().GetByID(ctx, f.referrer.ID)
	referred, _ = f.store.Users().GetByID(ctx, f.referred.ID)
	require.Equal(t, BonusCents, referrer.BalanceCents, "bonus must not be paid twice")
	require.Equal(t, BonusCents+75, referred.BalanceCents, "bonus must not be paid twice")
}

func TestCheckEligibility_noReferral(t *testing.T) {
	f := newFixture(t)
	st, err := f.service.CheckEligibility(context.Background(), f.referred.ID)
	require.NoError(t, err)
	require.False(t, st.Exists)
}
