package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/campuskit/timetable-api/internal/models"
)

// ErrDuplicateEntry is returned when an insert trips one of the partial
// unique indexes guarding batch/faculty double-booking. The indexes are the
// concurrency safety net behind the application-level conflict detector.
var ErrDuplicateEntry = errors.New("timetable entry violates uniqueness constraint")

const entryColumns = `id, batch_id, subject_id, faculty_id, custom_title, custom_color, time_slot_id, day_of_week, date, entry_type, active, notes, template_id, created_by, created_at, updated_at`

// TimetableEntryRepository provides persistence for timetable entries.
type TimetableEntryRepository struct {
	db *sqlx.DB
}

// NewTimetableEntryRepository creates a new entry repository.
func NewTimetableEntryRepository(db *sqlx.DB) *TimetableEntryRepository {
	return &TimetableEntryRepository{db: db}
}

// BeginTxx starts a transaction scoped to one logical operation.
func (r *TimetableEntryRepository) BeginTxx(ctx context.Context) (*sqlx.Tx, error) {
	return r.db.BeginTxx(ctx, nil)
}

// List returns entries with optional filtering and pagination.
func (r *TimetableEntryRepository) List(ctx context.Context, filter models.EntryFilter) ([]models.TimetableEntry, int, error) {
	base := "FROM timetable_entries WHERE 1=1"
	var conditions []string
	var args []interface{}

	if filter.BatchID != "" {
		conditions = append(conditions, fmt.Sprintf("batch_id = $%d", len(args)+1))
		args = append(args, filter.BatchID)
	}
	if filter.FacultyID != "" {
		conditions = append(conditions, fmt.Sprintf("faculty_id = $%d", len(args)+1))
		args = append(args, filter.FacultyID)
	}
	if filter.TimeSlot != "" {
		conditions = append(conditions, fmt.Sprintf("time_slot_id = $%d", len(args)+1))
		args = append(args, filter.TimeSlot)
	}
	if filter.DayOfWeek != "" {
		conditions = append(conditions, fmt.Sprintf("day_of_week = $%d", len(args)+1))
		args = append(args, filter.DayOfWeek)
	}
	if filter.DateFrom != nil {
		conditions = append(conditions, fmt.Sprintf("date >= $%d", len(args)+1))
		args = append(args, *filter.DateFrom)
	}
	if filter.DateTo != nil {
		conditions = append(conditions, fmt.Sprintf("date <= $%d", len(args)+1))
		args = append(args, *filter.DateTo)
	}
	if filter.EntryType != "" {
		conditions = append(conditions, fmt.Sprintf("entry_type = $%d", len(args)+1))
		args = append(args, filter.EntryType)
	}
	if filter.Active != nil {
		conditions = append(conditions, fmt.Sprintf("active = $%d", len(args)+1))
		args = append(args, *filter.Active)
	}

	if len(conditions) > 0 {
		base += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	size := filter.PageSize
	if size <= 0 || size > 200 {
		size = 50
	}
	offset := (page - 1) * size

	query := fmt.Sprintf("SELECT %s %s ORDER BY day_of_week ASC, date ASC NULLS FIRST, created_at ASC LIMIT %d OFFSET %d", entryColumns, base, size, offset)
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, 0, fmt.Errorf("list timetable entries: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", base)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count timetable entries: %w", err)
	}

	return entries, total, nil
}

// FindByID loads an entry regardless of active flag.
func (r *TimetableEntryRepository) FindByID(ctx context.Context, id string) (*models.TimetableEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_entries WHERE id = $1", entryColumns)
	var entry models.TimetableEntry
	if err := r.db.GetContext(ctx, &entry, query, id); err != nil {
		return nil, err
	}
	return &entry, nil
}

// FindBatchOccupants returns active entries holding (batch, slot, day, date).
func (r *TimetableEntryRepository) FindBatchOccupants(ctx context.Context, batchID, timeSlotID, dayOfWeek string, date *time.Time) ([]models.TimetableEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_entries WHERE active = TRUE AND batch_id = $1 AND time_slot_id = $2 AND day_of_week = $3 AND %s", entryColumns, dateCondition(date, 4))
	args := []interface{}{batchID, timeSlotID, dayOfWeek}
	if date != nil {
		args = append(args, *date)
	}
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("find batch occupants: %w", err)
	}
	return entries, nil
}

// FindFacultyOccupants returns active entries holding (faculty, slot, day, date).
func (r *TimetableEntryRepository) FindFacultyOccupants(ctx context.Context, facultyID, timeSlotID, dayOfWeek string, date *time.Time) ([]models.TimetableEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_entries WHERE active = TRUE AND faculty_id = $1 AND time_slot_id = $2 AND day_of_week = $3 AND %s", entryColumns, dateCondition(date, 4))
	args := []interface{}{facultyID, timeSlotID, dayOfWeek}
	if date != nil {
		args = append(args, *date)
	}
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("find faculty occupants: %w", err)
	}
	return entries, nil
}

func dateCondition(date *time.Time, position int) string {
	if date == nil {
		return "date IS NULL"
	}
	return fmt.Sprintf("date = $%d", position)
}

// ListActiveByBatch returns active entries for a batch, optionally bounded
// to a date range (recurring entries without a date are always included when
// no range is given).
func (r *TimetableEntryRepository) ListActiveByBatch(ctx context.Context, batchID string, from, to *time.Time) ([]models.TimetableEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_entries WHERE active = TRUE AND batch_id = $1", entryColumns)
	args := []interface{}{batchID}
	if from != nil {
		query += fmt.Sprintf(" AND date >= $%d", len(args)+1)
		args = append(args, *from)
	}
	if to != nil {
		query += fmt.Sprintf(" AND date <= $%d", len(args)+1)
		args = append(args, *to)
	}
	query += " ORDER BY day_of_week ASC, date ASC NULLS FIRST"
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list entries by batch: %w", err)
	}
	return entries, nil
}

// ListActiveByFaculty returns active entries assigned to a faculty member at
// or after the effective date, optionally scoped to specific batches.
func (r *TimetableEntryRepository) ListActiveByFaculty(ctx context.Context, facultyID string, effective *time.Time, batchIDs []string) ([]models.TimetableEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_entries WHERE active = TRUE AND faculty_id = $1", entryColumns)
	args := []interface{}{facultyID}
	if effective != nil {
		query += fmt.Sprintf(" AND (date IS NULL OR date >= $%d)", len(args)+1)
		args = append(args, *effective)
	}
	if len(batchIDs) > 0 {
		query += fmt.Sprintf(" AND batch_id = ANY($%d)", len(args)+1)
		args = append(args, pq.Array(batchIDs))
	}
	query += " ORDER BY day_of_week ASC, date ASC NULLS FIRST"
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list entries by faculty: %w", err)
	}
	return entries, nil
}

// ListActiveDated returns active entries whose date falls inside [from, to],
// optionally scoped to specific batches. Recurring entries are excluded.
func (r *TimetableEntryRepository) ListActiveDated(ctx context.Context, from, to time.Time, batchIDs []string) ([]models.TimetableEntry, error) {
	query := fmt.Sprintf("SELECT %s FROM timetable_entries WHERE active = TRUE AND date >= $1 AND date <= $2", entryColumns)
	args := []interface{}{from, to}
	if len(batchIDs) > 0 {
		query += fmt.Sprintf(" AND batch_id = ANY($%d)", len(args)+1)
		args = append(args, pq.Array(batchIDs))
	}
	query += " ORDER BY date ASC, batch_id ASC, time_slot_id ASC"
	var entries []models.TimetableEntry
	if err := r.db.SelectContext(ctx, &entries, query, args...); err != nil {
		return nil, fmt.Errorf("list dated entries: %w", err)
	}
	return entries, nil
}

// Create stores a new entry. A pre-set ID is preserved, which the undo
// ledger relies on to restore deleted entries under their original id.
func (r *TimetableEntryRepository) Create(ctx context.Context, entry *models.TimetableEntry) error {
	return r.insert(ctx, r.db, entry)
}

// CreateWithTx stores a new entry inside an existing transaction.
func (r *TimetableEntryRepository) CreateWithTx(ctx context.Context, tx *sqlx.Tx, entry *models.TimetableEntry) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	return r.insert(ctx, tx, entry)
}

// BulkCreateWithTx inserts many entries using an existing transaction.
func (r *TimetableEntryRepository) BulkCreateWithTx(ctx context.Context, tx *sqlx.Tx, entries []models.TimetableEntry) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	for i := range entries {
		if err := r.insert(ctx, tx, &entries[i]); err != nil {
			return err
		}
	}
	return nil
}

func (r *TimetableEntryRepository) insert(ctx context.Context, exec sqlx.ExtContext, entry *models.TimetableEntry) error {
	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = now
	}
	entry.UpdatedAt = now

	const query = `INSERT INTO timetable_entries (id, batch_id, subject_id, faculty_id, custom_title, custom_color, time_slot_id, day_of_week, date, entry_type, active, notes, template_id, created_by, created_at, updated_at)
		VALUES (:id, :batch_id, :subject_id, :faculty_id, :custom_title, :custom_color, :time_slot_id, :day_of_week, :date, :entry_type, :active, :notes, :template_id, :created_by, :created_at, :updated_at)`
	if _, err := sqlx.NamedExecContext(ctx, exec, query, entry); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("insert timetable entry: %w", ErrDuplicateEntry)
		}
		return fmt.Errorf("insert timetable entry: %w", err)
	}
	return nil
}

// Update modifies an entry record.
func (r *TimetableEntryRepository) Update(ctx context.Context, entry *models.TimetableEntry) error {
	entry.UpdatedAt = time.Now().UTC()
	const query = `UPDATE timetable_entries SET batch_id = :batch_id, subject_id = :subject_id, faculty_id = :faculty_id, custom_title = :custom_title, custom_color = :custom_color, time_slot_id = :time_slot_id, day_of_week = :day_of_week, date = :date, entry_type = :entry_type, active = :active, notes = :notes, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, entry); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("update timetable entry: %w", ErrDuplicateEntry)
		}
		return fmt.Errorf("update timetable entry: %w", err)
	}
	return nil
}

// ReplaceFacultyWithTx reassigns the faculty on the given entries.
func (r *TimetableEntryRepository) ReplaceFacultyWithTx(ctx context.Context, tx *sqlx.Tx, entryIDs []string, newFacultyID string) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	if len(entryIDs) == 0 {
		return nil
	}
	const query = `UPDATE timetable_entries SET faculty_id = $1, updated_at = $2 WHERE id = ANY($3)`
	if _, err := tx.ExecContext(ctx, query, newFacultyID, time.Now().UTC(), pq.Array(entryIDs)); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("replace faculty: %w", ErrDuplicateEntry)
		}
		return fmt.Errorf("replace faculty: %w", err)
	}
	return nil
}

// MoveDateWithTx retargets a dated entry onto a new date.
func (r *TimetableEntryRepository) MoveDateWithTx(ctx context.Context, tx *sqlx.Tx, entryID string, newDate time.Time, newDay string) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	const query = `UPDATE timetable_entries SET date = $1, day_of_week = $2, updated_at = $3 WHERE id = $4`
	if _, err := tx.ExecContext(ctx, query, newDate, newDay, time.Now().UTC(), entryID); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("move entry date: %w", ErrDuplicateEntry)
		}
		return fmt.Errorf("move entry date: %w", err)
	}
	return nil
}

// Deactivate soft-deletes an entry; rows are never hard-deleted so the undo
// ledger can restore them.
func (r *TimetableEntryRepository) Deactivate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE timetable_entries SET active = FALSE, updated_at = $1 WHERE id = $2 AND active = TRUE`, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("deactivate timetable entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("deactivate timetable entry: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// DeactivateWithTx soft-deletes an entry inside an existing transaction.
// Used when an override-mode bulk run supersedes a conflicting entry.
func (r *TimetableEntryRepository) DeactivateWithTx(ctx context.Context, tx *sqlx.Tx, id string) error {
	if tx == nil {
		return fmt.Errorf("nil transaction provided")
	}
	if _, err := tx.ExecContext(ctx, `UPDATE timetable_entries SET active = FALSE, updated_at = $1 WHERE id = $2 AND active = TRUE`, time.Now().UTC(), id); err != nil {
		return fmt.Errorf("deactivate timetable entry: %w", err)
	}
	return nil
}

// Reactivate restores a soft-deleted entry under its original id.
func (r *TimetableEntryRepository) Reactivate(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE timetable_entries SET active = TRUE, updated_at = $1 WHERE id = $2 AND active = FALSE`, time.Now().UTC(), id)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("reactivate timetable entry: %w", ErrDuplicateEntry)
		}
		return fmt.Errorf("reactivate timetable entry: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("reactivate timetable entry: %w", err)
	}
	if rows == 0 {
		return sql.ErrNoRows
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
