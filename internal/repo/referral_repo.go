package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/taskrewards/server/internal/model"
)

// PgReferralRepo is the PostgreSQL implementation of ReferralRepo.
type PgReferralRepo struct {
	db *sql.DB
}

// NewPgReferralRepo creates a new PgReferralRepo instance.
func NewPgReferralRepo(db *sql.DB) *PgReferralRepo {
	return &PgReferralRepo{db: db}
}

func (r *PgReferralRepo) Create(ctx context.Context, ref model.Referral) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO referrals (id, referrer_id, referred_user_id, status, joined_at)
		VALUES ($1, $2, $3, $4, $5)
	`, ref.ID, ref.ReferrerID, ref.ReferredUserID, string(ref.Status), ref.JoinedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert referral: %w", err)
	}
	return nil
}

func (r *PgReferralRepo) GetByReferredUser(ctx context.Context, referredUserID uuid.UUID) (model.Referral, error) {
	row := r.db.QueryRowContext(ctx, `
		SELECT id, referrer_id, referred_user_id, status, joined_at, approved_at
		FROM referrals
		WHERE referred_user_id = $1
	`, referredUserID)
	return scanReferral(row.Scan)
}

func (r *PgReferralRepo) ListByReferrer(ctx context.Context, referrerID uuid.UUID) ([]model.Referral, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, referrer_id, referred_user_id, status, joined_at, approved_at
		FROM referrals
		WHERE referrer_id = $1
		ORDER BY joined_at
	`, referrerID)
	if err != nil {
		return nil, fmt.Errorf("list referrals: %w", err)
	}
	defer rows.Close()

	var out []model.Referral
	for rows.Next() {
		ref, err := scanReferral(rows.Scan)
		if err != nil {
			return nil, err
		}
		out = append(out, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate referrals: %w", err)
	}
	return out, nil
}

// Approve transitions pending -> approved and pays the bonus to both
// parties in one transaction. The WHERE status = 'pending' guard makes the
// transition, and therefore the payout, happen at most once.
func (r *PgReferralRepo) Approve(ctx context.Context, id uuid.UUID, bonusCents int64, at time.Time) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	var referrerStr, referredStr string
	err = tx.QueryRowContext(ctx, `
		UPDATE referrals SET status = $2, approved_at = $3
		WHERE id = $1 AND status = $4
		RETURNING referrer_id, referred_user_id
	`, id, string(model.ReferralApproved), at, string(model.ReferralPending)).
		Scan(&referrerStr, &referredStr)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			// Already approved (or gone); nothing to pay.
			return false, nil
		}
		return false, fmt.Errorf("approve referral: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE users SET
			balance_cents = balance_cents + $3,
			total_earned_cents = total_earned_cents + $3
		WHERE id = ANY(ARRAY[$1, $2]::uuid[])
	`, referrerStr, referredStr, bonusCents)
	if err != nil {
		return false, fmt.Errorf("pay referral bonus: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("commit: %w", err)
	}
	return true, nil
}

func scanReferral(scan func(...any) error) (model.Referral, error) {
	var ref model.Referral
	var idStr, referrerStr, referredStr, status string
	var approvedAt sql.NullTime
	err := scan(&idStr, &referrerStr, &referredStr, &status, &ref.JoinedAt, &approvedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Referral{}, ErrNotFound
		}
		return model.Referral{}, fmt.Errorf("scan referral: %w", err)
	}
	ref.ID, _ = uuid.Parse(idStr)
	ref.ReferrerID, _ = uuid.Parse(referrerStr)
	ref.ReferredUserID, _ = uuid.Parse(referredStr)
	ref.Status = model.ReferralStatus(status)
	if approvedAt.Valid {
		t := approvedAt.Time
		ref.ApprovedAt = &t
	}
	return ref, nil
}
