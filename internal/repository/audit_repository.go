package repository

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/campuskit/timetable-api/internal/models"
)

// AuditRepository persists the engine's attribution trail.
type AuditRepository struct {
	db *sqlx.DB
}

// NewAuditRepository creates a new audit repository.
func NewAuditRepository(db *sqlx.DB) *AuditRepository {
	return &AuditRepository{db: db}
}

// CreateAuditLog stores one audit record.
func (r *AuditRepository) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.CreatedAt.IsZero() {
		log.CreatedAt = time.Now().UTC()
	}

	const query = `INSERT INTO audit_logs (id, user_id, action, resource, resource_id, old_values, new_values, created_at)
		VALUES (:id, :user_id, :action, :resource, :resource_id, :old_values, :new_values, :created_at)`
	if _, err := r.db.NamedExecContext(ctx, query, log); err != nil {
		return fmt.Errorf("create audit log: %w", err)
	}
	return nil
}
