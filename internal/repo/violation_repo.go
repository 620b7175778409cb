package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/taskrewards/server/internal/model"
)

// PgViolationRepo is the PostgreSQL implementation of ViolationRepo.
type PgViolationRepo struct {
	db *sql.DB
}

// NewPgViolationRepo creates a new PgViolationRepo instance.
func NewPgViolationRepo(db *sql.DB) *PgViolationRepo {
	return &PgViolationRepo{db: db}
}

func (r *PgViolationRepo) Append(ctx context.Context, v model.Violation) error {
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO violations (id, user_id, violation_type, detail, context, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, v.ID, v.UserID, string(v.Type), v.Detail, v.Context, v.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert violation: %w", err)
	}
	return nil
}

func (r *PgViolationRepo) ListByUser(ctx context.Context, userID uuid.UUID) ([]model.Violation, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, violation_type, detail, context, created_at
		FROM violations
		WHERE user_id = $1
		ORDER BY created_at
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("list violations: %w", err)
	}
	defer rows.Close()

	var out []model.Violation
	for rows.Next() {
		var v model.Violation
		var idStr, userStr, vtype string
		if err := rows.Scan(&idStr, &userStr, &vtype, &v.Detail, &v.Context, &v.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan violation: %w", err)
		}
		v.ID, _ = uuid.Parse(idStr)
		v.UserID, _ = uuid.Parse(userStr)
		v.Type = model.ViolationType(vtype)
		out = append(out, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate violations: %w", err)
	}
	return out, nil
}
