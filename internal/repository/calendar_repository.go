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

const holidayColumns = `id, date, name, type, department_id, recurring, active, created_at, updated_at`
const examPeriodColumns = `id, name, start_date, end_date, blocks_regular_classes, department_id, active, created_at, updated_at`

// CalendarRepository provides persistence for holidays and exam periods.
type CalendarRepository struct {
	db *sqlx.DB
}

// NewCalendarRepository creates a new calendar repository.
func NewCalendarRepository(db *sqlx.DB) *CalendarRepository {
	return &CalendarRepository{db: db}
}

// HolidaysOn returns active holidays falling on the given date for a
// department: exact-date matches plus recurring holidays matching month/day,
// where the holiday is either global or scoped to the department.
func (r *CalendarRepository) HolidaysOn(ctx context.Context, date time.Time, departmentID string) ([]models.Holiday, error) {
	const query = `SELECT ` + holidayColumns + ` FROM holidays
		WHERE active = TRUE
		  AND (department_id IS NULL OR department_id = $1)
		  AND (date = $2 OR (recurring = TRUE AND EXTRACT(MONTH FROM date) = $3 AND EXTRACT(DAY FROM date) = $4))
		ORDER BY date ASC`
	var holidays []models.Holiday
	if err := r.db.SelectContext(ctx, &holidays, query, departmentID, date, int(date.Month()), date.Day()); err != nil {
		return nil, fmt.Errorf("holidays on date: %w", err)
	}
	return holidays, nil
}

// BlockingExamPeriod returns the first active exam period covering the date
// for the department with blocks_regular_classes set, or nil.
func (r *CalendarRepository) BlockingExamPeriod(ctx context.Context, date time.Time, departmentID string) (*models.ExamPeriod, error) {
	const query = `SELECT ` + examPeriodColumns + ` FROM exam_periods
		WHERE active = TRUE
		  AND blocks_regular_classes = TRUE
		  AND (department_id IS NULL OR department_id = $1)
		  AND start_date <= $2 AND end_date >= $2
		ORDER BY start_date ASC
		LIMIT 1`
	var period models.ExamPeriod
	if err := r.db.GetContext(ctx, &period, query, departmentID, date); err != nil {
		if err == sql.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("blocking exam period: %w", err)
	}
	return &period, nil
}

// ListHolidays returns holidays overlapping a date range.
func (r *CalendarRepository) ListHolidays(ctx context.Context, from, to *time.Time) ([]models.Holiday, error) {
	query := `SELECT ` + holidayColumns + ` FROM holidays WHERE active = TRUE`
	var args []interface{}
	if from != nil {
		query += fmt.Sprintf(" AND date >= $%d", len(args)+1)
		args = append(args, *from)
	}
	if to != nil {
		query += fmt.Sprintf(" AND date <= $%d", len(args)+1)
		args = append(args, *to)
	}
	query += " ORDER BY date ASC"
	var holidays []models.Holiday
	if err := r.db.SelectContext(ctx, &holidays, query, args...); err != nil {
		return nil, fmt.Errorf("list holidays: %w", err)
	}
	return holidays, nil
}

// FindHolidayByID loads a holiday regardless of active flag.
func (r *CalendarRepository) FindHolidayByID(ctx context.Context, id string) (*models.Holiday, error) {
	var holiday models.Holiday
	if err := r.db.GetContext(ctx, &holiday, `SELECT `+holidayColumns+` FROM holidays WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &holiday, nil
}

// CreateHoliday stores a new holiday. A pre-set ID is preserved for undo
// restores.
func (r *CalendarRepository) CreateHoliday(ctx context.Context, holiday *models.Holiday) error {
	if holiday.ID == "" {
		holiday.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if holiday.CreatedAt.IsZero() {
		holiday.CreatedAt = now
	}
	holiday.UpdatedAt = now

	const query = `INSERT INTO holidays (id, date, name, type, department_id, recurring, active, created_at, updated_at)
		VALUES (:id, :date, :name, :type, :department_id, :recurring, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, holiday); err != nil {
		return fmt.Errorf("create holiday: %w", err)
	}
	return nil
}

// DeactivateHoliday soft-deletes a holiday.
func (r *CalendarRepository) DeactivateHoliday(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE holidays SET active = FALSE, updated_at = $1 WHERE id = $2 AND active = TRUE`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("deactivate holiday: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate holiday: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ReactivateHoliday restores a soft-deleted holiday under its original id.
func (r *CalendarRepository) ReactivateHoliday(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE holidays SET active = TRUE, updated_at = $1 WHERE id = $2 AND active = FALSE`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("reactivate holiday: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reactivate holiday: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// ListExamPeriods returns exam periods overlapping a date range.
func (r *CalendarRepository) ListExamPeriods(ctx context.Context, from, to *time.Time) ([]models.ExamPeriod, error) {
	query := `SELECT ` + examPeriodColumns + ` FROM exam_periods WHERE active = TRUE`
	var args []interface{}
	if from != nil {
		query += fmt.Sprintf(" AND end_date >= $%d", len(args)+1)
		args = append(args, *from)
	}
	if to != nil {
		query += fmt.Sprintf(" AND start_date <= $%d", len(args)+1)
		args = append(args, *to)
	}
	query += " ORDER BY start_date ASC"
	var periods []models.ExamPeriod
	if err := r.db.SelectContext(ctx, &periods, query, args...); err != nil {
		return nil, fmt.Errorf("list exam periods: %w", err)
	}
	return periods, nil
}

// CreateExamPeriod stores a new exam period.
func (r *CalendarRepository) CreateExamPeriod(ctx context.Context, period *models.ExamPeriod) error {
	if period.ID == "" {
		period.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if period.CreatedAt.IsZero() {
		period.CreatedAt = now
	}
	period.UpdatedAt = now

	const query = `INSERT INTO exam_periods (id, name, start_date, end_date, blocks_regular_classes, department_id, active, created_at, updated_at)
		VALUES (:id, :name, :start_date, :end_date, :blocks_regular_classes, :department_id, :active, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, period); err != nil {
		return fmt.Errorf("create exam period: %w", err)
	}
	return nil
}
