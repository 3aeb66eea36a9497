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

const bulkOpColumns = `id, kind, requested_by, status, progress, params, results, error_message, cancel_requested, created_at, started_at, finished_at`

// BulkOperationRepository persists bulk operation tracking records.
type BulkOperationRepository struct {
	db *sqlx.DB
}

// NewBulkOperationRepository creates a new bulk operation repository.
func NewBulkOperationRepository(db *sqlx.DB) *BulkOperationRepository {
	return &BulkOperationRepository{db: db}
}

// Create stores a new tracking record in PENDING state.
func (r *BulkOperationRepository) Create(ctx context.Context, op *models.BulkOperation) error {
	if op.ID == "" {
		op.ID = uuid.NewString()
	}
	if op.CreatedAt.IsZero() {
		op.CreatedAt = time.Now().UTC()
	}
	if op.Status == "" {
		op.Status = models.BulkStatusPending
	}

	const query = `INSERT INTO bulk_operations (id, kind, requested_by, status, progress, params, results, error_message, cancel_requested, created_at, started_at, finished_at)
		VALUES (:id, :kind, :requested_by, :status, :progress, :params, :results, :error_message, :cancel_requested, :created_at, :started_at, :finished_at)`
	if _, err := r.db.NamedExecContext(ctx, query, op); err != nil {
		return fmt.Errorf("create bulk operation: %w", err)
	}
	return nil
}

// GetByID loads a tracking record.
func (r *BulkOperationRepository) GetByID(ctx context.Context, id string) (*models.BulkOperation, error) {
	var op models.BulkOperation
	if err := r.db.GetContext(ctx, &op, `SELECT `+bulkOpColumns+` FROM bulk_operations WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &op, nil
}

// ListByRequester returns recent operations submitted by a user.
func (r *BulkOperationRepository) ListByRequester(ctx context.Context, requestedBy string, limit int) ([]models.BulkOperation, error) {
	if limit <= 0 || limit > 100 {
		limit = 50
	}
	query := fmt.Sprintf(`SELECT %s FROM bulk_operations WHERE requested_by = $1 ORDER BY created_at DESC LIMIT %d`, bulkOpColumns, limit)
	var ops []models.BulkOperation
	if err := r.db.SelectContext(ctx, &ops, query, requestedBy); err != nil {
		return nil, fmt.Errorf("list bulk operations: %w", err)
	}
	return ops, nil
}

// MarkRunning flips a PENDING record to RUNNING.
func (r *BulkOperationRepository) MarkRunning(ctx context.Context, id string) error {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx, `UPDATE bulk_operations SET status = $1, started_at = $2 WHERE id = $3 AND status = $4`,
		models.BulkStatusRunning, now, id, models.BulkStatusPending)
	if err != nil {
		return fmt.Errorf("mark bulk operation running: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("mark bulk operation running: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// UpdateProgress records chunk completion.
func (r *BulkOperationRepository) UpdateProgress(ctx context.Context, id string, progress int) error {
	if _, err := r.db.ExecContext(ctx, `UPDATE bulk_operations SET progress = $1 WHERE id = $2`, progress, id); err != nil {
		return fmt.Errorf("update bulk operation progress: %w", err)
	}
	return nil
}

// MarkTerminal writes the final status, results, and error message. Records
// already terminal are left untouched.
func (r *BulkOperationRepository) MarkTerminal(ctx context.Context, id string, status models.BulkOperationStatus, progress int, results models.BulkResults, errMessage *string) error {
	if !status.Terminal() {
		return fmt.Errorf("status %s is not terminal", status)
	}
	now := time.Now().UTC()
	const query = `UPDATE bulk_operations SET status = $1, progress = $2, results = $3, error_message = $4, finished_at = $5
		WHERE id = $6 AND status IN ('PENDING', 'RUNNING')`
	if _, err := r.db.ExecContext(ctx, query, status, progress, results, errMessage, now, id); err != nil {
		return fmt.Errorf("mark bulk operation terminal: %w", err)
	}
	return nil
}

// FailStranded marks every non-terminal record FAILED with the given
// message. Run at startup: the in-process queue does not survive a restart,
// so a PENDING or RUNNING record from a previous run can never finish.
func (r *BulkOperationRepository) FailStranded(ctx context.Context, message string) (int64, error) {
	now := time.Now().UTC()
	result, err := r.db.ExecContext(ctx,
		`UPDATE bulk_operations SET status = $1, error_message = $2, finished_at = $3 WHERE status IN ('PENDING', 'RUNNING')`,
		models.BulkStatusFailed, message, now)
	if err != nil {
		return 0, fmt.Errorf("fail stranded bulk operations: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("fail stranded bulk operations: %w", err)
	}
	return rows, nil
}

// RequestCancel flags a live operation for cooperative cancellation.
func (r *BulkOperationRepository) RequestCancel(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE bulk_operations SET cancel_requested = TRUE WHERE id = $1 AND status IN ('PENDING', 'RUNNING')`, id)
	if err != nil {
		return fmt.Errorf("request bulk operation cancel: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("request bulk operation cancel: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// CancelRequested reads the cancellation flag; the engine consults it
// between transactional chunks, never inside one.
func (r *BulkOperationRepository) CancelRequested(ctx context.Context, id string) (bool, error) {
	var requested bool
	if err := r.db.GetContext(ctx, &requested, `SELECT cancel_requested FROM bulk_operations WHERE id = $1`, id); err != nil {
		return false, fmt.Errorf("read bulk operation cancel flag: %w", err)
	}
	return requested, nil
}
