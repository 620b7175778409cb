// Package violation records abuse signals and escalates repeat offenders
// to automatic suspension.
package violation

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/taskrewards/server/internal/metrics"
	"github.com/taskrewards/server/internal/model"
	"github.com/taskrewards/server/internal/repo"
)

// SuspensionThreshold is the suspicious-flag count at which an account is
// suspended. Reversible only through an admin action.
const SuspensionThreshold = 5

// Reporter appends violation records and applies the suspension policy.
// Any component, and external anti-abuse collaborators via the HTTP
// surface, may report.
type Reporter struct {
	users   repo.UserRepo
	records repo.ViolationRepo
	now     func() time.Time
}

// NewReporter creates a Reporter. now may be nil for the real clock.
func NewReporter(users repo.UserRepo, records repo.ViolationRepo, now func() time.Time) *Reporter {
	if now == nil {
		now = time.Now
	}
	return &Reporter{users: users, records: records, now: now}
}

// Report is fire-and-forget: it never fails the triggering operation.
// Storage errors are logged and swallowed. Crossing the threshold suspends
// the account once; further violations still append but do not re-suspend.
func (r *Reporter) Report(ctx context.Context, userID uuid.UUID, vtype model.ViolationType, detail, reportedBy string) {
	metrics.ViolationsReported.WithLabelValues(string(vtype)).Inc()

	err := r.records.Append(ctx, model.Violation{
		ID:        uuid.New(),
		UserID:    userID,
		Type:      vtype,
		Detail:    detail,
		Context:   reportedBy,
		CreatedAt: r.now(),
	})
	if err != nil {
		log.Printf("violation: append %s for user %s failed: %v", vtype, userID, err)
		return
	}

	flags, err := r.users.AddSuspiciousFlag(ctx, userID)
	if err != nil {
		log.Printf("violation: flag user %s failed: %v", userID, err)
		return
	}
	if flags < SuspensionThreshold {
		return
	}

	suspended, err := r.users.Suspend(ctx, userID, "too many suspicious activities detected")
	if err != nil {
		log.Printf("violation: suspend user %s failed: %v", userID, err)
		return
	}
	if suspended {
		metrics.Suspensions.Inc()
		log.Printf("violation: user %s suspended after %d flags", userID, flags)
	}
}
