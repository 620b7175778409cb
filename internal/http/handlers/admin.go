package handlers

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/google/uuid"
	"github.com/taskrewards/server/internal/admin"
	"github.com/taskrewards/server/internal/repo"
)

// AdminHandler exposes privileged account mutations.
type AdminHandler struct {
	actions *admin.Service
}

// NewAdminHandler creates a new admin handler.
func NewAdminHandler(actions *admin.Service) *AdminHandler {
	return &AdminHandler{actions: actions}
}

// adminActionRequest is the request body for POST /admin/action.
type adminActionRequest struct {
	Secret       string       `json:"secret"`
	Action       string       `json:"action"`
	TargetUserID string       `json:"target_user_id"`
	Params       admin.Params `json:"params"`
}

// HandleAction handles POST /admin/action.
func (h *AdminHandler) HandleAction(w http.ResponseWriter, r *http.Request) {
	var req adminActionRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	target, err := uuid.Parse(req.TargetUserID)
	if err != nil {
		respondWithError(w, http.StatusBadRequest, "invalid target user id")
		return
	}

	res, err := h.actions.Do(r.Context(), req.Secret, req.Action, target, req.Params)
	if err != nil {
		switch {
		case errors.Is(err, admin.ErrBadSecret):
			respondWithError(w, http.StatusUnauthorized, "invalid admin secret")
		case errors.Is(err, admin.ErrUnknownAction):
			respondWithError(w, http.StatusBadRequest, err.Error())
		case errors.Is(err, admin.ErrBanPermanent):
			respondWithError(w, http.StatusConflict, err.Error())
		case errors.Is(err, repo.ErrNotFound):
			respondWithError(w, http.StatusNotFound, "user not found")
		default:
			log.Printf("admin action %q failed: %v", req.Action, err)
			respondWithError(w, http.StatusInternalServerError, "admin action failed")
		}
		return
	}

	respondWithJSON(w, http.StatusOK, map[string]any{
		"action":            res.Action,
		"target_user_id":    target.String(),
		"status":            string(res.Status),
		"new_balance_cents": res.NewBalanceCents,
	})
}
