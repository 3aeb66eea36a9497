package repository

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/timetable-api/internal/models"
)

// BatchRepository reads batch reference data.
type BatchRepository struct {
	db *sqlx.DB
}

// NewBatchRepository creates a new batch repository.
func NewBatchRepository(db *sqlx.DB) *BatchRepository {
	return &BatchRepository{db: db}
}

// FindByID loads a batch by id.
func (r *BatchRepository) FindByID(ctx context.Context, id string) (*models.Batch, error) {
	var batch models.Batch
	if err := r.db.GetContext(ctx, &batch, `SELECT id, name, program_id, semester, active, created_at, updated_at FROM batches WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &batch, nil
}

// DepartmentID resolves the owning department of a batch through its program.
func (r *BatchRepository) DepartmentID(ctx context.Context, batchID string) (string, error) {
	const query = `SELECT p.department_id FROM batches b JOIN programs p ON p.id = b.program_id WHERE b.id = $1`
	var departmentID string
	if err := r.db.GetContext(ctx, &departmentID, query, batchID); err != nil {
		return "", err
	}
	return departmentID, nil
}

// SubjectRepository reads subject reference data.
type SubjectRepository struct {
	db *sqlx.DB
}

// NewSubjectRepository creates a new subject repository.
func NewSubjectRepository(db *sqlx.DB) *SubjectRepository {
	return &SubjectRepository{db: db}
}

// FindByID loads a subject by id.
func (r *SubjectRepository) FindByID(ctx context.Context, id string) (*models.Subject, error) {
	var subject models.Subject
	if err := r.db.GetContext(ctx, &subject, `SELECT id, name, code, credits, active, created_at, updated_at FROM subjects WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &subject, nil
}

// FacultyRepository reads faculty reference data.
type FacultyRepository struct {
	db *sqlx.DB
}

// NewFacultyRepository creates a new faculty repository.
func NewFacultyRepository(db *sqlx.DB) *FacultyRepository {
	return &FacultyRepository{db: db}
}

// FindByID loads a faculty member by id.
func (r *FacultyRepository) FindByID(ctx context.Context, id string) (*models.Faculty, error) {
	var faculty models.Faculty
	if err := r.db.GetContext(ctx, &faculty, `SELECT id, full_name, email, department_id, active, created_at, updated_at FROM faculty WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &faculty, nil
}

// ListActiveIDs returns the ids of active faculty, used by validation passes.
func (r *FacultyRepository) ListActiveIDs(ctx context.Context) ([]string, error) {
	var ids []string
	if err := r.db.SelectContext(ctx, &ids, `SELECT id FROM faculty WHERE active = TRUE`); err != nil {
		return nil, fmt.Errorf("list active faculty ids: %w", err)
	}
	return ids, nil
}
