package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuskit/timetable-api/internal/models"
)

const undoColumns = `id, entity_type, entity_id, snapshot, metadata, requested_by, created_at, expires_at`

// UndoRepository persists short-lived undo ledger records.
type UndoRepository struct {
	db *sqlx.DB
}

// NewUndoRepository creates a new undo repository.
func NewUndoRepository(db *sqlx.DB) *UndoRepository {
	return &UndoRepository{db: db}
}

// Create stores a new ledger record.
func (r *UndoRepository) Create(ctx context.Context, op *models.UndoOperation) error {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO undo_operations (id, entity_type, entity_id, snapshot, metadata, requested_by, created_at, expires_at)
		VALUES (:id, :entity_type, :entity_id, :snapshot, :metadata, :requested_by, :created_at, :expires_at)`
	if _, err := r.db.NamedExecContext(ctx, query, op); err != nil {
		return fmt.Errorf("create undo operation: %w", err)
	}
	return nil
}

// GetByID loads a ledger record.
func (r *UndoRepository) GetByID(ctx context.Context, id string) (*models.UndoOperation, error) {
	var op models.UndoOperation
	if err := r.db.GetContext(ctx, &op, `SELECT `+undoColumns+` FROM undo_operations WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &op, nil
}

// Delete consumes a ledger record. Returns sql.ErrNoRows when already gone,
// which is how exactly-once undo is enforced under concurrent callers.
func (r *UndoRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM undo_operations WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete undo operation: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("delete undo operation: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeleteExpired sweeps records past their TTL, returning the purge count.
func (r *UndoRepository) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM undo_operations WHERE expires_at < $1`, now)
	if err != nil {
		return 0, fmt.Errorf("delete expired undo operations: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("delete expired undo operations: %w", err)
	}
	return rows, nil
}
