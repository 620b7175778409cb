package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/taskrewards/server/internal/auth"
	"github.com/taskrewards/server/internal/middleware"
)

// AuthHandler handles signup, login and session verification.
type AuthHandler struct {
	accounts      *auth.AccountService
	signupLimiter *middleware.RateLimiter
	loginLimiter  *middleware.RateLimiter
}

// NewAuthHandler creates a new auth handler with per-IP limiters for the
// unauthenticated surface.
func NewAuthHandler(accounts *auth.AccountService) *AuthHandler {
	return &AuthHandler{
		accounts:      accounts,
		signupLimiter: middleware.NewRateLimiter(10*time.Minute, 10),
		loginLimiter:  middleware.NewRateLimiter(10*time.Minute, 20),
	}
}

// signupRequest is the request body for POST /auth/signup.
type signupRequest struct {
	Email             string `json:"email"`
	Password          string `json:"password"`
	DeviceFingerprint string `json:"device_fingerprint"`
	ReferralCode      string `json:"referral_code,omitempty"`
}

// sessionResponse is the JSON response for signup and login.
type sessionResponse struct {
	Token     string            `json:"token"`
	TokenType string            `json:"token_type"`
	User      userResponse      `json:"user"`
	Referral  *referralResponse `json:"referral,omitempty"`
}

// HandleSignup handles POST /auth/signup.
func (h *AuthHandler) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var req signupRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if !h.signupLimiter.Allow(middleware.GetIPKey(r)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	user, token, err := h.accounts.Signup(r.Context(), req.Email, req.Password, req.DeviceFingerprint, req.ReferralCode)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidEmail),
			errors.Is(err, auth.ErrPasswordTooShort),
			errors.Is(err, auth.ErrMissingFingerprint):
			respondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, auth.ErrEmailTaken),
			errors.Is(err, auth.ErrDeviceRegistered):
			respondWithError(w, http.StatusConflict, err.Error())
		default:
			logMaskedEmail(req.Email, "signup failed", err)
			respondWithError(w, http.StatusInternalServerError, "signup failed")
		}
		return
	}

	respondWithJSON(w, http.StatusCreated, sessionResponse{
		Token:     token,
		TokenType: "bearer",
		User:      toUserResponse(user),
	})
}

// loginRequest is the request body for POST /auth/login.
type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// HandleLogin handles POST /auth/login.
func (h *AuthHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(req.Email) == "" || req.Password == "" {
		respondWithError(w, http.StatusBadRequest, "email and password are required")
		return
	}

	if !h.loginLimiter.Allow(middleware.GetIPKey(r)) {
		respondWithError(w, http.StatusTooManyRequests, "rate limit exceeded")
		return
	}

	user, token, refStatus, err := h.accounts.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrInvalidCredentials):
			respondWithError(w, http.StatusUnauthorized, "invalid credentials")
		case errors.Is(err, auth.ErrAccountBanned):
			respondWithError(w, http.StatusForbidden, "account is banned")
		case errors.Is(err, auth.ErrAccountSuspended):
			respondWithError(w, http.StatusForbidden, err.Error())
		default:
			logMaskedEmail(req.Email, "login failed", err)
			respondWithError(w, http.StatusInternalServerError, "login failed")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, sessionResponse{
		Token:     token,
		TokenType: "bearer",
		User:      toUserResponse(user),
		Referral: &referralResponse{
			Exists:      refStatus.Exists,
			Approved:    refStatus.Approved,
			TasksNeeded: refStatus.TasksNeeded,
		},
	})
}

// HandleSession handles GET /auth/session (protected). A valid token has
// already been verified by the middleware; this just echoes the identity.
func (h *AuthHandler) HandleSession(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok || user == nil {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}
	respondWithJSON(w, http.StatusOK, map[string]any{
		"valid": true,
		"user":  toUserResponse(*user),
	})
}

// logMaskedEmail logs a failure with the email masked.
func logMaskedEmail(email, msg string, err error) {
	log.Printf("%s for %s: %v", msg, maskEmail(email), err)
}

// maskEmail masks the local part of an address (e.g. al***@example.com).
func maskEmail(email string) string {
	local, domain, ok := strings.Cut(email, "@")
	if !ok || len(local) < 3 {
		return "***"
	}
	return local[:2] + "***@" + domain
}
