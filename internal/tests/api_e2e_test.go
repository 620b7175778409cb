package tests

import (
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHealthAndMetrics(t *testing.T) {
	ts := newTestServer(t)

	var health map[string]string
	status := ts.doJSON(t, http.MethodGet, "/health", "", nil, &health)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, "ok", health["status"])

	resp, err := ts.Server.Client().Get(ts.BaseURL() + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestSignupLoginSession(t *testing.T) {
	ts := newTestServer(t)

	token, user := ts.signup(t, "alice@example.com", "fp-alice", "")
	assert.Equal(t, "active", user["status"])
	assert.EqualValues(t, 0, user["balance_cents"])
	assert.NotEmpty(t, user["referral_code"])

	var session struct {
		Valid bool           `json:"valid"`
		User  map[string]any `json:"user"`
	}
	status := ts.doJSON(t, http.MethodGet, "/auth/session", token, nil, &session)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, session.Valid)
	assert.Equal(t, "alice@example.com", session.User["email"])

	status = ts.doJSON(t, http.MethodGet, "/auth/session", "not-a-token", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	var loginResp struct {
		Token string         `json:"token"`
		User  map[string]any `json:"user"`
	}
	status = ts.doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "hunter2hunter2",
	}, &loginResp)
	assert.Equal(t, http.StatusOK, status)
	assert.NotEmpty(t, loginResp.Token)

	var errResp map[string]string
	status = ts.doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong-password",
	}, &errResp)
	assert.Equal(t, http.StatusUnauthorized, status)
	assert.Equal(t, "invalid credentials", errResp["error"])

	// Same fingerprint cannot register twice.
	status = ts.doJSON(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"email":              "alice2@example.com",
		"password":           "hunter2hunter2",
		"device_fingerprint": "fp-alice",
	}, nil)
	assert.Equal(t, http.StatusConflict, status)
}

func TestClaimRewards(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.signup(t, "bob@example.com", "fp-bob", "")

	status, body := ts.claim(t, token, "daily_login", nil)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 50, body["reward_cents"])
	assert.EqualValues(t, 50, body["new_balance_cents"])
	assert.EqualValues(t, 1, body["completed_tasks"])

	// Second login claim the same day is over quota.
	status, _ = ts.claim(t, token, "daily_login", nil)
	assert.Equal(t, http.StatusTooManyRequests, status)

	// A new day resets the quota.
	ts.Clock.Advance(24 * time.Hour)
	status, _ = ts.claim(t, token, "daily_login", nil)
	assert.Equal(t, http.StatusOK, status)

	status, body = ts.claim(t, token, "quiz", map[string]string{"correctAnswers": "4"})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 80, body["reward_cents"])

	status, _ = ts.claim(t, token, "quiz", map[string]string{"correctAnswers": "9"})
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = ts.claim(t, token, "ad", map[string]string{"adWatchDuration": "6000"})
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 25, body["reward_cents"])

	// A second ad inside the cooldown window is rejected.
	status, _ = ts.claim(t, token, "ad", map[string]string{"adWatchDuration": "6000"})
	assert.Equal(t, http.StatusTooManyRequests, status)

	// Too short a watch earns nothing.
	ts.Clock.Advance(2 * time.Minute)
	status, _ = ts.claim(t, token, "ad", map[string]string{"adWatchDuration": "1000"})
	assert.Equal(t, http.StatusBadRequest, status)

	// Spin prizes come from the server-side table regardless of what the
	// client submits.
	status, body = ts.claim(t, token, "spin", map[string]string{"prize": "999999"})
	require.Equal(t, http.StatusOK, status)
	prize := int64(body["reward_cents"].(float64))
	assert.Contains(t, []int64{5, 10, 25, 50, 100, 250}, prize)
}

func TestDailyAggregateLimit(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.signup(t, "carol@example.com", "fp-carol", "")

	plan := []struct {
		taskType string
		payload  map[string]string
	}{
		{"daily_login", nil},
		{"spin", nil},
		{"spin", nil},
		{"spin", nil},
		{"spin", nil},
		{"spin", nil},
		{"scratch", nil},
		{"scratch", nil},
		{"scratch", nil},
		{"quiz", map[string]string{"correctAnswers": "2"}},
	}
	for i, step := range plan {
		status, _ := ts.claim(t, token, step.taskType, step.payload)
		require.Equal(t, http.StatusOK, status, "claim %d (%s)", i, step.taskType)
	}

	var limits struct {
		Allowed   bool   `json:"allowed"`
		Reason    string `json:"reason"`
		Remaining int    `json:"remaining"`
	}
	status := ts.doJSON(t, http.MethodGet, "/tasks/limits?type=quiz", token, nil, &limits)
	assert.Equal(t, http.StatusOK, status)
	assert.False(t, limits.Allowed)
	assert.Equal(t, 0, limits.Remaining)

	status, body := ts.claim(t, token, "quiz", map[string]string{"correctAnswers": "2"})
	assert.Equal(t, http.StatusTooManyRequests, status)
	assert.Contains(t, body["error"], "daily limit")

	ts.Clock.Advance(24 * time.Hour)
	status, _ = ts.claim(t, token, "quiz", map[string]string{"correctAnswers": "2"})
	assert.Equal(t, http.StatusOK, status)
}

func TestReferralLifecycle(t *testing.T) {
	ts := newTestServer(t)

	referrerToken, referrerUser := ts.signup(t, "dave@example.com", "fp-dave", "")
	code := referrerUser["referral_code"].(string)

	referredToken, _ := ts.signup(t, "erin@example.com", "fp-erin", code)

	var elig struct {
		Referral struct {
			Exists      bool `json:"exists"`
			Approved    bool `json:"approved"`
			TasksNeeded int  `json:"tasks_needed"`
		} `json:"referral"`
		ReferredUsers []map[string]any `json:"referred_users"`
	}
	status := ts.doJSON(t, http.MethodGet, "/referrals/eligibility", referredToken, nil, &elig)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, elig.Referral.Exists)
	assert.False(t, elig.Referral.Approved)
	assert.Equal(t, 3, elig.Referral.TasksNeeded)

	// The referrer sees the pending referral on their side.
	status = ts.doJSON(t, http.MethodGet, "/referrals/eligibility", referrerToken, nil, &elig)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, elig.Referral.Exists)
	require.Len(t, elig.ReferredUsers, 1)
	assert.Equal(t, "pending", elig.ReferredUsers[0]["status"])

	// Three completed tasks approve the referral and pay both sides.
	status, _ = ts.claim(t, referredToken, "daily_login", nil)
	require.Equal(t, http.StatusOK, status)
	status, _ = ts.claim(t, referredToken, "spin", nil)
	require.Equal(t, http.StatusOK, status)
	status, body := ts.claim(t, referredToken, "quiz", map[string]string{"correctAnswers": "5"})
	require.Equal(t, http.StatusOK, status)

	referral := body["referral"].(map[string]any)
	assert.True(t, referral["approved"].(bool))

	var session struct {
		User map[string]any `json:"user"`
	}
	status = ts.doJSON(t, http.MethodGet, "/auth/session", referrerToken, nil, &session)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 100, session.User["balance_cents"])

	status = ts.doJSON(t, http.MethodGet, "/referrals/eligibility", referredToken, nil, &elig)
	require.Equal(t, http.StatusOK, status)
	assert.True(t, elig.Referral.Approved)
}

func TestUnknownReferralCodeIgnored(t *testing.T) {
	ts := newTestServer(t)

	token, _ := ts.signup(t, "frank@example.com", "fp-frank", "NOSUCHCD")

	var elig struct {
		Referral struct {
			Exists bool `json:"exists"`
		} `json:"referral"`
	}
	status := ts.doJSON(t, http.MethodGet, "/referrals/eligibility", token, nil, &elig)
	require.Equal(t, http.StatusOK, status)
	assert.False(t, elig.Referral.Exists)
}

func TestViolationSuspension(t *testing.T) {
	ts := newTestServer(t)
	token, _ := ts.signup(t, "grace@example.com", "fp-grace", "")

	for i := 0; i < 5; i++ {
		status := ts.doJSON(t, http.MethodPost, "/violations/report", token, map[string]string{
			"type":   "rapid_clicking",
			"detail": "click storm",
		}, nil)
		require.Equal(t, http.StatusAccepted, status)
	}

	// Fifth flag crossed the threshold: no more earning.
	status, _ := ts.claim(t, token, "daily_login", nil)
	assert.Equal(t, http.StatusForbidden, status)

	var errResp map[string]string
	status = ts.doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "grace@example.com",
		"password": "hunter2hunter2",
	}, &errResp)
	assert.Equal(t, http.StatusForbidden, status)

	// Unknown signal types are rejected at the boundary.
	status = ts.doJSON(t, http.MethodPost, "/violations/report", token, map[string]string{
		"type": "made_up_signal",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestAdminActions(t *testing.T) {
	ts := newTestServer(t)
	token, user := ts.signup(t, "heidi@example.com", "fp-heidi", "")
	userID := user["id"].(string)

	status, _ := ts.claim(t, token, "daily_login", nil)
	require.Equal(t, http.StatusOK, status)

	// Wrong secret never mutates.
	status = ts.doJSON(t, http.MethodPost, "/admin/action", "", map[string]any{
		"secret":         "wrong",
		"action":         "reset_balance",
		"target_user_id": userID,
	}, nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	var session struct {
		User map[string]any `json:"user"`
	}
	ts.doJSON(t, http.MethodGet, "/auth/session", token, nil, &session)
	assert.EqualValues(t, 50, session.User["balance_cents"])

	var result map[string]any
	status = ts.doJSON(t, http.MethodPost, "/admin/action", "", map[string]any{
		"secret":         testAdminSecret,
		"action":         "adjust_balance",
		"target_user_id": userID,
		"params":         map[string]any{"amount_cents": -20},
	}, &result)
	require.Equal(t, http.StatusOK, status)
	assert.EqualValues(t, 30, result["new_balance_cents"])

	status = ts.doJSON(t, http.MethodPost, "/admin/action", "", map[string]any{
		"secret":         testAdminSecret,
		"action":         "suspend",
		"target_user_id": userID,
		"params":         map[string]any{"reason": "manual review"},
	}, &result)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, "suspended", result["status"])

	status, _ = ts.claim(t, token, "spin", nil)
	assert.Equal(t, http.StatusForbidden, status)

	status = ts.doJSON(t, http.MethodPost, "/admin/action", "", map[string]any{
		"secret":         testAdminSecret,
		"action":         "unsuspend",
		"target_user_id": userID,
	}, &result)
	require.Equal(t, http.StatusOK, status)

	status, _ = ts.claim(t, token, "spin", nil)
	assert.Equal(t, http.StatusOK, status)

	status = ts.doJSON(t, http.MethodPost, "/admin/action", "", map[string]any{
		"secret":         testAdminSecret,
		"action":         "ban",
		"target_user_id": userID,
	}, &result)
	require.Equal(t, http.StatusOK, status)

	var errResp map[string]string
	status = ts.doJSON(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "heidi@example.com",
		"password": "hunter2hunter2",
	}, &errResp)
	assert.Equal(t, http.StatusForbidden, status)
	assert.Equal(t, "account is banned", errResp["error"])

	// A ban is terminal; unsuspend cannot undo it.
	status = ts.doJSON(t, http.MethodPost, "/admin/action", "", map[string]any{
		"secret":         testAdminSecret,
		"action":         "unsuspend",
		"target_user_id": userID,
	}, nil)
	assert.Equal(t, http.StatusConflict, status)

	status = ts.doJSON(t, http.MethodPost, "/admin/action", "", map[string]any{
		"secret":         testAdminSecret,
		"action":         "explode",
		"target_user_id": userID,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, status)
}
