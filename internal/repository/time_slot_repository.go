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

const timeSlotColumns = `id, name, start_minute, end_minute, sort_order, active, created_at, updated_at`

// TimeSlotRepository provides persistence for configured time slots.
type TimeSlotRepository struct {
	db *sqlx.DB
}

// NewTimeSlotRepository creates a new time slot repository.
func NewTimeSlotRepository(db *sqlx.DB) *TimeSlotRepository {
	return &TimeSlotRepository{db: db}
}

// List returns slots ordered by configured sort order.
func (r *TimeSlotRepository) List(ctx context.Context, activeOnly bool) ([]models.TimeSlot, error) {
	query := `SELECT ` + timeSlotColumns + ` FROM time_slots`
	if activeOnly {
		query += " WHERE active = TRUE"
	}
	query += " ORDER BY sort_order ASC"
	var slots []models.TimeSlot
	if err := r.db.SelectContext(ctx, &slots, query); err != nil {
		return nil, fmt.Errorf("list time slots: %w", err)
	}
	return slots, nil
}

// FindByID loads a slot by id.
func (r *TimeSlotRepository) FindByID(ctx context.Context, id string) (*models.TimeSlot, error) {
	var slot models.TimeSlot
	if err := r.db.GetContext(ctx, &slot, `SELECT `+timeSlotColumns+` FROM time_slots WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &slot, nil
}

// Create stores a new slot.
func (r *TimeSlotRepository) Create(ctx context.Context, slot *models.TimeSlot) error {
	if slot.ID == "" {
		slot.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if slot.CreatedAt.IsZero() {
		slot.CreatedAt = now
	}
	slot.UpdatedAt = now

	const query = `INSERT INTO time_slots (id, name, start_minute, end_minute, sort_order, active, created_at, updated_at)
		VALUES (:id, :name, :start_minute, :end_minute, :sort_order, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, slot); err != nil {
		return fmt.Errorf("create time slot: %w", err)
	}
	return nil
}

// Deactivate retires a slot. Slots referenced by entries are never deleted.
func (r *TimeSlotRepository) Deactivate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE time_slots SET active = FALSE, updated_at = $1 WHERE id = $2 AND active = TRUE`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("deactivate time slot: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate time slot: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}
