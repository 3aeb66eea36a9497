package repository

import (
	"context"
	"regexp"
	"testing"

	sqlmock "github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/timetable-api/internal/models"
)

func newBulkOpRepoMock(t *testing.T) (*sqlx.DB, sqlmock.Sqlmock, func()) {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	require.NoError(t, err)
	return sqlx.NewDb(db, "sqlmock"), mock, func() { db.Close() }
}

func TestBulkOperationRepositoryFailStrandedCountsUpdatedRows(t *testing.T) {
	db, mock, cleanup := newBulkOpRepoMock(t)
	defer cleanup()

	repo := NewBulkOperationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bulk_operations SET status")).
		WithArgs(models.BulkStatusFailed, "interrupted by service restart", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 2))

	count, err := repo.FailStranded(context.Background(), "interrupted by service restart")
	require.NoError(t, err)
	require.EqualValues(t, 2, count)
	require.NoError(t, mock.ExpectationsWereMet())
}

func TestBulkOperationRepositoryFailStrandedNoLeftovers(t *testing.T) {
	db, mock, cleanup := newBulkOpRepoMock(t)
	defer cleanup()

	repo := NewBulkOperationRepository(db)
	mock.ExpectExec(regexp.QuoteMeta("UPDATE bulk_operations SET status")).
		WithArgs(models.BulkStatusFailed, "interrupted by service restart", sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 0))

	count, err := repo.FailStranded(context.Background(), "interrupted by service restart")
	require.NoError(t, err)
	require.Zero(t, count)
	require.NoError(t, mock.ExpectationsWereMet())
}
