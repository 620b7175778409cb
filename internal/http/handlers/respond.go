package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/taskrewards/server/internal/model"
)

// userResponse is the user object in API responses. Password records,
// fingerprints and flag counters never leave the trust boundary.
type userResponse struct {
	ID               string `json:"id"`
	Email            string `json:"email"`
	BalanceCents     int64  `json:"balance_cents"`
	TotalEarnedCents int64  `json:"total_earned_cents"`
	ReferralCode     string `json:"referral_code"`
	Status           string `json:"status"`
	CompletedTasks   int    `json:"completed_tasks"`
}

func toUserResponse(u model.User) userResponse {
	return userResponse{
		ID:               u.ID.String(),
		Email:            u.Email,
		BalanceCents:     u.BalanceCents,
		TotalEarnedCents: u.TotalEarnedCents,
		ReferralCode:     u.ReferralCode,
		Status:           string(u.Status),
		CompletedTasks:   u.CompletedTasks,
	}
}

// referralResponse reports referral progress to the referred user.
type referralResponse struct {
	Exists      bool `json:"exists"`
	Approved    bool `json:"approved"`
	TasksNeeded int  `json:"tasks_needed,omitempty"`
}

func respondWithJSON(w http.ResponseWriter, statusCode int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	_ = json.NewEncoder(w).Encode(payload)
}

// respondWithError sends a JSON error response. Only the stable message is
// exposed; internal error detail stays in the server log.
func respondWithError(w http.ResponseWriter, statusCode int, message string) {
	respondWithJSON(w, statusCode, map[string]string{"error": message})
}
