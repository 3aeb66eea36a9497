package repository

import (
	"context"
	"database/sql"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"
)

func newEntryRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestTimetableEntryRepositoryDeactivate(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()

	repo := NewTimetableEntryRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_entries SET active = FALSE")).
		WithArgs(sqlmock.AnyArg(), "entry-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	require.NoError(t, repo.Deactivate(context.Background(), "entry-1"))
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableEntryRepositoryDeactivateMissingOrInactive(t *testing.T) {
	db, mock, cleanup := newEntryRepoMock(t)
	defer cleanup()

	repo := NewTimetableEntryRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE timetable_entries SET active = FALSE")).
		WithArgs(sqlmock.AnyArg(), "entry-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := repo.Deactivate(context.Background(), "entry-1")
	require.ErrorIs(t, err, sql.ErrNoRows)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestTimetableEntryRepositoryDeactivateWithTxRequiresTx(t *testing.T) {
	db, _, cleanup := newEntryRepoMock(t)
	defer cleanup()

	repo := NewTimetableEntryRepository(db)
	require.Error(t, repo.DeactivateWithTx(context.Background(), nil, "entry-1"))
}
