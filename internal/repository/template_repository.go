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

const templateColumns = `id, name, batch_id, subject_id, faculty_id, time_slot_id, day_of_week, pattern, start_date, end_date, ends_when, total_hours, active, created_by, created_at, updated_at`

// TemplateRepository provides persistence for timetable templates.
type TemplateRepository struct {
	db *sqlx.DB
}

// NewTemplateRepository creates a new template repository.
func NewTemplateRepository(db *sqlx.DB) *TemplateRepository {
	return &TemplateRepository{db: db}
}

// List returns active templates, optionally scoped to a batch.
func (r *TemplateRepository) List(ctx context.Context, batchID string) ([]models.TimetableTemplate, error) {
	query := `SELECT ` + templateColumns + ` FROM timetable_templates WHERE active = TRUE`
	var args []interface{}
	if batchID != "" {
		query += " AND batch_id = $1"
		args = append(args, batchID)
	}
	query += " ORDER BY created_at DESC"
	var templates []models.TimetableTemplate
	if err := r.db.SelectContext(ctx, &templates, query, args...); err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	return templates, nil
}

// FindByID loads a template by id.
func (r *TemplateRepository) FindByID(ctx context.Context, id string) (*models.TimetableTemplate, error) {
	var template models.TimetableTemplate
	if err := r.db.GetContext(ctx, &template, `SELECT `+templateColumns+` FROM timetable_templates WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &template, nil
}

// Create stores a new template.
func (r *TemplateRepository) Create(ctx context.Context, template *models.TimetableTemplate) error {
	if template.ID == "" {
		template.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if template.CreatedAt.IsZero() {
		template.CreatedAt = now
	}
	template.UpdatedAt = now

	const query = `INSERT INTO timetable_templates (id, name, batch_id, subject_id, faculty_id, time_slot_id, day_of_week, pattern, start_date, end_date, ends_when, total_hours, active, created_by, created_at, updated_at)
		VALUES (:id, :name, :batch_id, :subject_id, :faculty_id, :time_slot_id, :day_of_week, :pattern, :start_date, :end_date, :ends_when, :total_hours, :active, :created_by, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, template); err != nil {
		return fmt.Errorf("create template: %w", err)
	}
	return nil
}

// Deactivate retires a template; generated entries keep their template id
// and outlive it.
func (r *TemplateRepository) Deactivate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE timetable_templates SET active = FALSE, updated_at = $1 WHERE id = $2 AND active = TRUE`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("deactivate template: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate template: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
