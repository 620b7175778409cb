package repo

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"
	"github.com/taskrewards/server/internal/model"
)

// PgAdminLogRepo is the PostgreSQL implementation of AdminLogRepo.
type PgAdminLogRepo struct {
	db *sql.DB
}

// NewPgAdminLogRepo creates a new PgAdminLogRepo instance.
func NewPgAdminLogRepo(db *sql.DB) *PgAdminLogRepo {
	return &PgAdminLogRepo{db: db}
}

func (r *PgAdminLogRepo) Append(ctx context.Context, e model.AdminLogEntry) error {
	var target any
	if e.TargetUserID != uuid.Nil {
		target = e.TargetUserID
	}
	_, err := r.db.ExecContext(ctx, `
		INSERT INTO admin_actions (id, action, target_user_id, params, success, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, e.ID, e.Action, target, e.Params, e.Success, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert admin action: %w", err)
	}
	return nil
}
