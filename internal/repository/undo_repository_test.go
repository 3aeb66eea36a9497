package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"
	"time"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/timetable-api/internal/models"
)

func newUndoRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestUndoRepositoryCreateAndGet(t *testing.T) {
	db, mock, cleanup := newUndoRepoMock(t)
	defer cleanup()

	repo := NewUndoRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("INSERT INTO undo_operations")).
		WillReturnResult(sqlmock.NewResult(1, 1))

	op := &models.UndoOperation{
		EntityType:  models.UndoEntityTimetableEntry,
		EntityID:    "entry-1",
		Snapshot:    []byte(`{"id":"entry-1"}`),
		Metadata:    models.UndoMetadata{"batch_id": "batch-1"},
		RequestedBy: "user-1",
		ExpiresAt:   time.Now().Add(5 * time.Minute),
	}
	require.NoError(t, repo.Create(context.Background(), op))
	require.NotEmpty(t, op.ID, "create assigns an id")

	rows := sqlmock.NewRows([]string{"id", "entity_type", "entity_id", "snapshot", "metadata", "requested_by", "created_at", "expires_at"}).
		AddRow(op.ID, "timetable_entry", "entry-1", []byte(`{"id":"entry-1"}`), []byte(`{"batch_id":"batch-1"}`), "user-1", time.Now(), op.ExpiresAt)
	mock.ExpectQuery(regexp.QuoteMeta("SELECT id, entity_type, entity_id")).
		WithArgs(op.ID).
		WillReturnRows(rows)

	found, err := repo.GetByID(context.Background(), op.ID)
	require.NoError(t, err)
	require.Equal(t, "entry-1", found.EntityID)
	require.Equal(t, models.UndoEntityTimetableEntry, found.EntityType)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUndoRepositoryDeleteConsumesExactlyOnce(t *testing.T) {
	db, mock, cleanup := newUndoRepoMock(t)
	defer cleanup()

	repo := NewUndoRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM undo_operations WHERE id")).
		WithArgs("undo-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Delete(context.Background(), "undo-1"))

	// The second consumer loses the race and must see sql.ErrNoRows.
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM undo_operations WHERE id")).
		WithArgs("undo-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	err := repo.Delete(context.Background(), "undo-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestUndoRepositoryDeleteExpiredReturnsPurgeCount(t *testing.T) {
	db, mock, cleanup := newUndoRepoMock(t)
	defer cleanup()

	repo := NewUndoRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM undo_operations WHERE expires_at")).
		WillReturnResult(sqlmock.NewResult(0, 3))

	purged, err := repo.DeleteExpired(context.Background(), time.Now())
	require.NoError(t, err)
	require.EqualValues(t, 3, purged)
	require.NoError(t, mock.ExpectationsWereMet())
}
