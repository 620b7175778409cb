package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/taskrewards/server/internal/claims"
	"github.com/taskrewards/server/internal/ledger"
	"github.com/taskrewards/server/internal/middleware"
	"github.com/taskrewards/server/internal/model"
	"github.com/taskrewards/server/internal/referral"
	"github.com/taskrewards/server/internal/reward"
	"github.com/taskrewards/server/internal/violation"
)

// RewardsHandler handles quota checks, reward claims, referral progress
// and violation ingestion.
type RewardsHandler struct {
	signer     *claims.Signer
	engine     *reward.Engine
	limiter    *ledger.Limiter
	referrals  *referral.Service
	violations *violation.Reporter
}

// NewRewardsHandler creates a new rewards handler.
func NewRewardsHandler(
	signer *claims.Signer,
	engine *reward.Engine,
	limiter *ledger.Limiter,
	referrals *referral.Service,
	violations *violation.Reporter,
) *RewardsHandler {
	return &RewardsHandler{
		signer:     signer,
		engine:     engine,
		limiter:    limiter,
		referrals:  referrals,
		violations: violations,
	}
}

// HandleCheckLimits handles GET /tasks/limits?type= (protected).
func (h *RewardsHandler) HandleCheckLimits(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	taskType := model.TaskType(r.URL.Query().Get("type"))
	if !taskType.Valid() {
		respondWithError(w, http.StatusBadRequest, "unknown task type")
		return
	}

	dec, err := h.limiter.Check(r.Context(), user.ID, taskType)
	if err != nil {
		log.Printf("limit check for user %s failed: %v", user.ID, err)
		respondWithError(w, http.StatusServiceUnavailable, "limit check temporarily unavailable")
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"allowed":      dec.Allowed,
		"reason":       dec.Reason,
		"remaining":    dec.Remaining,
		"wait_seconds": dec.WaitSeconds,
	})
}

// claimRequest is the request body for POST /rewards/claim. The client
// submits only the raw task outcome; the envelope is built and signed in
// this trusted process, never client-side.
type claimRequest struct {
	TaskType model.TaskType    `json:"task_type"`
	Payload  map[string]string `json:"payload,omitempty"`
}

// claimResponse is the JSON response for a successful claim.
type claimResponse struct {
	TaskType            string           `json:"task_type"`
	RewardCents         int64            `json:"reward_cents"`
	NewBalanceCents     int64            `json:"new_balance_cents"`
	TotalEarnedCents    int64            `json:"total_earned_cents"`
	CompletedTasks      int              `json:"completed_tasks"`
	TasksRemainingToday int              `json:"tasks_remaining_today"`
	Referral            referralResponse `json:"referral"`
}

// HandleClaim handles POST /rewards/claim (protected).
func (h *RewardsHandler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req claimRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !req.TaskType.Valid() {
		respondWithError(w, http.StatusBadRequest, "unknown task type")
		return
	}

	env, err := h.signer.Build(user.ID, req.TaskType, req.Payload)
	if err != nil {
		log.Printf("countersign claim for user %s failed: %v", user.ID, err)
		respondWithError(w, http.StatusInternalServerError, "claim could not be processed")
		return
	}

	res, err := h.engine.Claim(r.Context(), env)
	if err != nil {
		h.respondClaimError(w, err)
		return
	}

	respondWithJSON(w, http.StatusOK, claimResponse{
		TaskType:            string(res.TaskType),
		RewardCents:         res.RewardCents,
		NewBalanceCents:     res.NewBalanceCents,
		TotalEarnedCents:    res.TotalEarnedCents,
		CompletedTasks:      res.CompletedTasks,
		TasksRemainingToday: res.TasksRemainingToday,
		Referral: referralResponse{
			Exists:      res.Referral.Exists,
			Approved:    res.Referral.Approved,
			TasksNeeded: res.Referral.TasksNeeded,
		},
	})
}

func (h *RewardsHandler) respondClaimError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, claims.ErrBadSignature),
		errors.Is(err, claims.ErrClaimExpired),
		errors.Is(err, claims.ErrNonceReplayed):
		respondWithError(w, http.StatusUnauthorized, err.Error())
	case errors.Is(err, reward.ErrQuotaExceeded):
		respondWithError(w, http.StatusTooManyRequests, err.Error())
	case errors.Is(err, reward.ErrAdNotWatched),
		errors.Is(err, reward.ErrBadPayload):
		respondWithError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, reward.ErrUserNotFound):
		respondWithError(w, http.StatusNotFound, "user not found")
	case errors.Is(err, reward.ErrAccountNotActive):
		respondWithError(w, http.StatusForbidden, err.Error())
	default:
		log.Printf("claim failed: %v", err)
		respondWithError(w, http.StatusServiceUnavailable, "claim temporarily unavailable")
	}
}

// HandleReferralEligibility handles GET /referrals/eligibility (protected).
func (h *RewardsHandler) HandleReferralEligibility(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	status, err := h.referrals.CheckEligibility(r.Context(), user.ID)
	if err != nil {
		log.Printf("referral eligibility for user %s failed: %v", user.ID, err)
		respondWithError(w, http.StatusServiceUnavailable, "referral check temporarily unavailable")
		return
	}

	outbound, err := h.referrals.ListForReferrer(r.Context(), user.ID)
	if err != nil {
		log.Printf("list referrals for user %s failed: %v", user.ID, err)
		respondWithError(w, http.StatusServiceUnavailable, "referral check temporarily unavailable")
		return
	}
	referred := make([]map[string]any, 0, len(outbound))
	for _, ref := range outbound {
		referred = append(referred, map[string]any{
			"referred_user_id": ref.ReferredUserID.String(),
			"status":           string(ref.Status),
			"joined_at":        ref.JoinedAt,
		})
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"referral": referralResponse{
			Exists:      status.Exists,
			Approved:    status.Approved,
			TasksNeeded: status.TasksNeeded,
		},
		"referred_users": referred,
	})
}

// violationReportRequest is the request body for POST /violations/report.
type violationReportRequest struct {
	Type   model.ViolationType `json:"type"`
	Detail string              `json:"detail"`
	Source string              `json:"source"`
}

// reportableViolations are the signal types external anti-abuse
// collaborators may ingest; engine-internal types cannot be injected.
var reportableViolations = map[model.ViolationType]bool{
	model.ViolationRapidClicking: true,
	model.ViolationDevTools:      true,
	model.ViolationIframeEmbed:   true,
	model.ViolationTamper:        true,
}

// HandleReportViolation handles POST /violations/report (protected). The
// report itself never fails: ingestion is fire-and-forget.
func (h *RewardsHandler) HandleReportViolation(w http.ResponseWriter, r *http.Request) {
	user, ok := middleware.GetUser(r.Context())
	if !ok {
		respondWithError(w, http.StatusUnauthorized, "unauthorized")
		return
	}

	var req violationReportRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if !reportableViolations[req.Type] {
		respondWithError(w, http.StatusBadRequest, "unknown violation type")
		return
	}

	source := req.Source
	if source == "" {
		source = "client"
	}
	h.violations.Report(r.Context(), user.ID, req.Type, req.Detail, source)

	respondWithJSON(w, http.StatusAccepted, map[string]string{"message": "recorded"})
}
