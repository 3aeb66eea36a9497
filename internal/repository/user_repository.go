package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/campuskit/timetable-api/internal/models"
)

// UserRepository reads platform accounts for authentication.
type UserRepository struct {
	db *sqlx.DB
}

// NewUserRepository creates a new user repository.
func NewUserRepository(db *sqlx.DB) *UserRepository {
	return &UserRepository{db: db}
}

// FindByEmail loads a user by email.
func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT id, email, password_hash, full_name, role, active, created_at, updated_at FROM users WHERE email = $1`, email); err != nil {
		return nil, err
	}
	return &user, nil
}

// FindByID loads a user by id.
func (r *UserRepository) FindByID(ctx context.Context, id string) (*models.User, error) {
	var user models.User
	if err := r.db.GetContext(ctx, &user, `SELECT id, email, password_hash, full_name, role, active, created_at, updated_at FROM users WHERE id = $1`, id); err != nil {
		return nil, err
	}
	return &user, nil
}
