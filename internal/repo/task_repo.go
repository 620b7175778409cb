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

// PgTaskRepo is the PostgreSQL implementation of TaskRepo.
type PgTaskRepo struct {
	db *sql.DB
}

// NewPgTaskRepo creates a new PgTaskRepo instance.
func NewPgTaskRepo(db *sql.DB) *PgTaskRepo {
	return &PgTaskRepo{db: db}
}

// ApplyReward appends the task record and credits the user in one
// transaction. An advisory xact lock on the user ID serializes concurrent
// claims for the same user at the storage layer as well; the lock is
// released on COMMIT/ROLLBACK.
func (r *PgTaskRepo) ApplyReward(ctx context.Context, userID uuid.UUID, t model.TaskType, rewardCents int64, day string, at time.Time) (model.User, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return model.User{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(2, hashtext($1))`, userID.String())
	if err != nil {
		return model.User{}, fmt.Errorf("advisory lock: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO task_records (id, user_id, task_type, reward_cents, task_day, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, uuid.New(), userID, string(t), rewardCents, day, at)
	if err != nil {
		return model.User{}, fmt.Errorf("insert task record: %w", err)
	}

	var u model.User
	var idStr, status string
	err = tx.QueryRowContext(ctx, `
		UPDATE users SET
			balance_cents = balance_cents + $2,
			total_earned_cents = total_earned_cents + $2,
			completed_tasks = completed_tasks + 1
		WHERE id = $1
		RETURNING `+userColumns+`
	`, userID, rewardCents).Scan(
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
		return model.User{}, fmt.Errorf("credit reward: %w", err)
	}
	u.ID, err = uuid.Parse(idStr)
	if err != nil {
		return model.User{}, fmt.Errorf("parse user ID: %w", err)
	}
	u.Status = model.AccountStatus(status)

	if err := tx.Commit(); err != nil {
		return model.User{}, fmt.Errorf("commit: %w", err)
	}
	return u, nil
}

// CountsForDay returns the aggregate and per-type counts for one calendar day.
func (r *PgTaskRepo) CountsForDay(ctx context.Context, userID uuid.UUID, day string) (int, map[model.TaskType]int, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT task_type, COUNT(*)
		FROM task_records
		WHERE user_id = $1 AND task_day = $2
		GROUP BY task_type
	`, userID, day)
	if err != nil {
		return 0, nil, fmt.Errorf("count tasks: %w", err)
	}
	defer rows.Close()

	total := 0
	perType := make(map[model.TaskType]int)
	for rows.Next() {
		var taskType string
		var count int
		if err := rows.Scan(&taskType, &count); err != nil {
			return 0, nil, fmt.Errorf("scan task count: %w", err)
		}
		perType[model.TaskType(taskType)] = count
		total += count
	}
	if err := rows.Err(); err != nil {
		return 0, nil, fmt.Errorf("iterate task counts: %w", err)
	}
	return total, perType, nil
}

// LastAdAt returns the time of the user's most recent ad task.
func (r *PgTaskRepo) LastAdAt(ctx context.Context, userID uuid.UUID) (time.Time, bool, error) {
	var at time.Time
	err := r.db.QueryRowContext(ctx, `
		SELECT created_at FROM task_records
		WHERE user_id = $1 AND task_type = $2
		ORDER BY created_at DESC
		LIMIT 1
	`, userID, string(model.TaskAd)).Scan(&at)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return time.Time{}, false, nil
		}
		return time.Time{}, false, fmt.Errorf("query last ad: %w", err)
	}
	return at, true, nil
}
