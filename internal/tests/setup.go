// Package tests contains end-to-end tests that exercise the full HTTP
// surface against the in-memory store.
package tests

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/taskrewards/server/internal/admin"
	"github.com/taskrewards/server/internal/auth"
	"github.com/taskrewards/server/internal/claims"
	httpserver "github.com/taskrewards/server/internal/http"
	"github.com/taskrewards/server/internal/http/handlers"
	"github.com/taskrewards/server/internal/ledger"
	"github.com/taskrewards/server/internal/referral"
	"github.com/taskrewards/server/internal/repo"
	"github.com/taskrewards/server/internal/reward"
	"github.com/taskrewards/server/internal/violation"
)

const (
	testJWTSecret   = "test-jwt-secret"
	testClaimSecret = "test-claim-secret"
	testAdminSecret = "test-admin-secret"
)

// clock is a controllable time source shared by every service under test.
type clock struct {
	mu sync.Mutex
	t  time.Time
}

func newClock() *clock {
	return &clock{t: time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)}
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// testServer wires the full application over the in-memory store.
type testServer struct {
	Server *httptest.Server
	Mem    *repo.Memory
	Clock  *clock
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()

	mem := repo.NewMemory()
	clk := newClock()

	violationReporter := violation.NewReporter(mem.Users(), mem.Violations(), clk.Now)
	referralService := referral.NewService(mem.Users(), mem.Referrals(), violationReporter, clk.Now)
	sessionService := auth.NewSessionService(testJWTSecret, clk.Now)
	accountService := auth.NewAccountService(mem.Users(), sessionService, referralService, violationReporter, clk.Now)
	limiter := ledger.NewLimiter(mem.Tasks(), clk.Now)
	signer := claims.NewSigner(testClaimSecret, clk.Now)
	verifier := claims.NewVerifier(testClaimSecret, clk.Now)
	engine := reward.NewEngine(mem.Users(), mem.Tasks(), verifier, limiter, violationReporter, referralService, clk.Now)
	adminService := admin.NewService(mem.Users(), mem.AdminLogs(), testAdminSecret, clk.Now)

	authHandler := handlers.NewAuthHandler(accountService)
	rewardsHandler := handlers.NewRewardsHandler(signer, engine, limiter, referralService, violationReporter)
	adminHandler := handlers.NewAdminHandler(adminService)

	router := httpserver.NewRouter(authHandler, rewardsHandler, adminHandler, sessionService, mem.Users())

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testServer{Server: srv, Mem: mem, Clock: clk}
}

func (ts *testServer) BaseURL() string {
	return ts.Server.URL
}

// doJSON sends a JSON request and decodes the JSON response body into out.
// Returns the status code.
func (ts *testServer) doJSON(t *testing.T, method, path, token string, body any, out any) int {
	t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, ts.BaseURL()+path, reader)
	require.NoError(t, err)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := ts.Server.Client().Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	if out != nil {
		require.NoError(t, json.Unmarshal(raw, out), "response body: %s", raw)
	}
	return resp.StatusCode
}

// signup registers a user and returns their session token plus the user
// object from the response.
func (ts *testServer) signup(t *testing.T, email, fingerprint, referralCode string) (string, map[string]any) {
	t.Helper()

	var resp struct {
		Token string         `json:"token"`
		User  map[string]any `json:"user"`
	}
	status := ts.doJSON(t, http.MethodPost, "/auth/signup", "", map[string]string{
		"email":              email,
		"password":           "hunter2hunter2",
		"device_fingerprint": fingerprint,
		"referral_code":      referralCode,
	}, &resp)
	require.Equal(t, http.StatusCreated, status)
	require.NotEmpty(t, resp.Token)
	return resp.Token, resp.User
}

// claim submits a reward claim and returns the status code and decoded body.
func (ts *testServer) claim(t *testing.T, token, taskType string, payload map[string]string) (int, map[string]any) {
	t.Helper()

	var body map[string]any
	status := ts.doJSON(t, http.MethodPost, "/rewards/claim", token, map[string]any{
		"task_type": taskType,
		"payload":   payload,
	}, &body)
	return status, body
}
