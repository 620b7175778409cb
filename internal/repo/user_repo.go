package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
	"github.com/taskrewards/server/internal/model"
)

// PgUserRepo is the PostgreSQL implementation of UserRepo.
type PgUserRepo struct {
	db *sql.DB
}

// NewPgUserRepo creates a new PgUserRepo instance.
func NewPgUserRepo(db *sql.DB) *PgUserRepo {
	return &PgUserRepo{db: db}
}

const userColumns = `
	id, email, password_record, fingerprint, balance_cents, total_earned_cents,
	referral_code, COALESCE(referred_by, ''), status, completed_tasks,
	suspicious_flags, COALESCE(suspension_reason, ''), created_at, last_login_at
`

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	var idStr, status string
	err := row.Scan(
		&idStr,
		&u.Email,
		&u.PasswordRecord,
		&u.Fingerprint,
		&u.BalanceCents,
		&u.TotalEarnedCents,
		&u.ReferralCode,
		&u.ReferredBy,
		&status,
		&u.CompletedTasks,
		&u.SuspiciousFlags,
		&u.SuspensionReason,
		&u.CreatedAt,
		&u.LastLoginAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.User{}, ErrNotFound
		}
		return model.User{}, fmt.Errorf("query user: %w", err)
	}
	u.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.User{}, fmt.Errorf("parse user ID: %w", err)
	}
	u.Status = model.AccountStatus(status)
	return u, nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

func (r *PgUserRepo) Create(ctx context.Context, u model.User) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO users (
			id, email, password_record, fingerprint, balance_cents,
			total_earned_cents, referral_code, referred_by, status,
			completed_tasks, suspicious_flags, created_at, last_login_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10, $11, $12, $13)
	`, u.ID, u.Email, u.PasswordRecord, u.Fingerprint, u.BalanceCents,
		u.TotalEarnedCents, u.ReferralCode, u.ReferredBy, string(u.Status),
		u.CompletedTasks, u.SuspiciousFlags, u.CreatedAt, u.LastLoginAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *PgUserRepo) GetByID(ctx context.Context, id uuid.UUID) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
	return scanUser(row)
}

func (r *PgUserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE email = $1`, email)
	return scanUser(row)
}

func (r *PgUserRepo) GetByReferralCode(ctx context.Context, code string) (model.User, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE referral_code = $1`, code)
	return scanUser(row)
}

func (r *PgUserRepo) GetByFingerprint(ctx context.Context, fingerprint string) (model.User, error) {
	if fingerprint == "" {
		return model.User{}, ErrNotFound
	}
	row := r.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE fingerprint = $1`, fingerprint)
	return scanUser(row)
}

func (r *PgUserRepo) SetLastLogin(ctx context.Context, id uuid.UUID, at time.Time) error {
	return r.exec(ctx, `UPDATE users SET last_login_at = $2 WHERE id = $1`, id, at)
}

func (r *PgUserRepo) SetStatus(ctx context.Context, id uuid.UUID, status model.AccountStatus, reason string) error {
	return r.exec(ctx, `
		UPDATE users SET status = $2, suspension_reason = NULLIF($3, '') WHERE id = $1
	`, id, string(status), reason)
}

func (r *PgUserRepo) Suspend(ctx context.Context, id uuid.UUID, reason string) (bool, error) {
	result, err := r.db.ExecContext(ctx, `
		UPDATE users SET status = $2, suspension_reason = $3
		WHERE id = $1 AND status = $4
	`, id, string(model.StatusSuspended), reason, string(model.StatusActive))
	if err != nil {
		return false, fmt.Errorf("suspend user: %w", err)
	}
	n, _ := result.RowsAffected()
	return n > 0, nil
}

func (r *PgUserRepo) AddSuspiciousFlag(ctx context.Context, id uuid.UUID) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `
		UPDATE users SET suspicious_flags = suspicious_flags + 1
		WHERE id = $1
		RETURNING suspicious_flags
	`, id).Scan(&count)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("add suspicious flag: %w", err)
	}
	return count, nil
}

func (r *PgUserRepo) SetBalance(ctx context.Context, id uuid.UUID, cents int64) error {
	return r.exec(ctx, `UPDATE users SET balance_cents = $2 WHERE id = $1`, id, cents)
}

// AdjustBalance floors the balance at zero. Positive deltas also raise
// total_earned_cents so balance <= total_earned keeps holding.
func (r *PgUserRepo) AdjustBalance(ctx context.Context, id uuid.UUID, deltaCents int64) (int64, error) {
	var balance int64
	err := r.db.QueryRowContext(ctx, `
		UPDATE users SET
			balance_cents = GREATEST(balance_cents + $2, 0),
			total_earned_cents = total_earned_cents + GREATEST($2, 0)
		WHERE id = $1
		RETURNING balance_cents
	`, id, deltaCents).Scan(&balance)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return 0, ErrNotFound
		}
		return 0, fmt.Errorf("adjust balance: %w", err)
	}
	return balance, nil
}

func (r *PgUserRepo) exec(ctx context.Context, query string, args ...any) error {
	result, err := r.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update user: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
