package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/timetable-api/internal/models"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
)

func TestUndoServiceClampsTTLToCap(t *testing.T) {
	ledger := newLedgerStub()
	service := NewUndoService(ledger, &entryRestorerStub{}, &holidayRestorerStub{}, nil, 5*time.Minute, nil)

	id, err := service.RecordDeletion(context.Background(), models.UndoEntityTimetableEntry, "entry-1", []byte(`{}`), nil, time.Hour, "user-1")
	require.NoError(t, err)

	op := ledger.records[id]
	require.NotNil(t, op)
	assert.Equal(t, 5*time.Minute, op.ExpiresAt.Sub(op.CreatedAt))
}

func TestUndoServiceRoundTripRestoresAndConsumes(t *testing.T) {
	ledger := newLedgerStub()
	entries := &entryRestorerStub{}
	service := NewUndoService(ledger, entries, &holidayRestorerStub{}, nil, 5*time.Minute, nil)

	deleted := lessonEntry("batch-1", "slot-1", "MONDAY", nil)
	deleted.ID = "entry-1"
	snapshot, err := json.Marshal(deleted)
	require.NoError(t, err)

	id, err := service.RecordDeletion(context.Background(), models.UndoEntityTimetableEntry, "entry-1", snapshot,
		models.UndoMetadata{"batch_id": "batch-1"}, time.Minute, "user-1")
	require.NoError(t, err)

	result, err := service.Undo(context.Background(), id, "user-1")
	require.NoError(t, err)
	assert.Equal(t, models.UndoEntityTimetableEntry, result.EntityType)
	assert.Equal(t, "entry-1", result.EntityID)
	assert.Equal(t, "batch-1", result.Metadata["batch_id"])

	require.NotNil(t, entries.created, "missing row is re-created under the original id")
	assert.Equal(t, "entry-1", entries.created.ID)
	assert.True(t, entries.created.Active)

	// The record is consumed; a second undo finds nothing.
	_, err = service.Undo(context.Background(), id, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUndoServiceRestoresInPlaceWhenRowStillExists(t *testing.T) {
	ledger := newLedgerStub()
	existing := lessonEntry("batch-1", "slot-1", "MONDAY", nil)
	existing.ID = "entry-1"
	existing.Active = false
	entries := &entryRestorerStub{existing: &existing}
	service := NewUndoService(ledger, entries, &holidayRestorerStub{}, nil, 5*time.Minute, nil)

	snapshot, err := json.Marshal(existing)
	require.NoError(t, err)
	id, err := service.RecordDeletion(context.Background(), models.UndoEntityTimetableEntry, "entry-1", snapshot, nil, time.Minute, "user-1")
	require.NoError(t, err)

	_, err = service.Undo(context.Background(), id, "user-1")
	require.NoError(t, err)
	require.NotNil(t, entries.updated)
	assert.True(t, entries.updated.Active)
	assert.Nil(t, entries.created)
}

func TestUndoServiceRejectsWrongRequester(t *testing.T) {
	ledger := newLedgerStub()
	service := NewUndoService(ledger, &entryRestorerStub{}, &holidayRestorerStub{}, nil, 5*time.Minute, nil)

	id, err := service.RecordDeletion(context.Background(), models.UndoEntityTimetableEntry, "entry-1", []byte(`{}`), nil, time.Minute, "owner")
	require.NoError(t, err)

	_, err = service.Undo(context.Background(), id, "someone-else")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestUndoServiceExpiredRecordIsGoneAndPurged(t *testing.T) {
	ledger := newLedgerStub()
	service := NewUndoService(ledger, &entryRestorerStub{}, &holidayRestorerStub{}, nil, 5*time.Minute, nil)

	id, err := service.RecordDeletion(context.Background(), models.UndoEntityTimetableEntry, "entry-1", []byte(`{}`), nil, time.Minute, "user-1")
	require.NoError(t, err)
	ledger.records[id].ExpiresAt = time.Now().UTC().Add(-time.Second)

	_, err = service.Undo(context.Background(), id, "user-1")
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrExpired.Code, appErr.Code)
	assert.Nil(t, ledger.records[id], "expired record is purged on access")
}

func TestUndoServiceUnsupportedEntityType(t *testing.T) {
	ledger := newLedgerStub()
	service := NewUndoService(ledger, &entryRestorerStub{}, &holidayRestorerStub{}, nil, 5*time.Minute, nil)

	id, err := service.RecordDeletion(context.Background(), models.UndoEntityType("exam_period"), "period-1", []byte(`{}`), nil, time.Minute, "user-1")
	require.NoError(t, err)

	_, err = service.Undo(context.Background(), id, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotImplemented.Code, appErrors.FromError(err).Code)
}

func TestUndoServiceRestoresHoliday(t *testing.T) {
	ledger := newLedgerStub()
	holidays := &holidayRestorerStub{}
	service := NewUndoService(ledger, &entryRestorerStub{}, holidays, nil, 5*time.Minute, nil)

	holiday := models.Holiday{ID: "hol-1", Name: "Founders Day", Type: models.HolidayTypeUniversity}
	snapshot, err := json.Marshal(holiday)
	require.NoError(t, err)
	id, err := service.RecordDeletion(context.Background(), models.UndoEntityHoliday, "hol-1", snapshot, nil, time.Minute, "user-1")
	require.NoError(t, err)

	_, err = service.Undo(context.Background(), id, "user-1")
	require.NoError(t, err)
	require.NotNil(t, holidays.created)
	assert.Equal(t, "hol-1", holidays.created.ID)
	assert.True(t, holidays.created.Active)
}

// --- Fixtures ---

type ledgerStub struct {
	records map[string]*models.UndoOperation
	nextID  int
}

func newLedgerStub() *ledgerStub {
	return &ledgerStub{records: map[string]*models.UndoOperation{}}
}

func (l *ledgerStub) Create(_ context.Context, op *models.UndoOperation) error {
	if op.ID == "" {
		l.nextID++
		op.ID = fmt.Sprintf("undo-%d", l.nextID)
	}
	copied := *op
	l.records[op.ID] = &copied
	return nil
}

func (l *ledgerStub) GetByID(_ context.Context, id string) (*models.UndoOperation, error) {
	op, ok := l.records[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *op
	return &copied, nil
}

func (l *ledgerStub) Delete(_ context.Context, id string) error {
	if _, ok := l.records[id]; !ok {
		return sql.ErrNoRows
	}
	delete(l.records, id)
	return nil
}

func (l *ledgerStub) DeleteExpired(_ context.Context, now time.Time) (int64, error) {
	var purged int64
	for id, op := range l.records {
		if op.Expired(now) {
			delete(l.records, id)
			purged++
		}
	}
	return purged, nil
}

type entryRestorerStub struct {
	existing *models.TimetableEntry
	created  *models.TimetableEntry
	updated  *models.TimetableEntry
}

func (s *entryRestorerStub) FindByID(_ context.Context, id string) (*models.TimetableEntry, error) {
	if s.existing != nil && s.existing.ID == id {
		copied := *s.existing
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *entryRestorerStub) Create(_ context.Context, entry *models.TimetableEntry) error {
	copied := *entry
	s.created = &copied
	return nil
}

func (s *entryRestorerStub) Update(_ context.Context, entry *models.TimetableEntry) error {
	copied := *entry
	s.updated = &copied
	return nil
}

type holidayRestorerStub struct {
	existing    *models.Holiday
	created     *models.Holiday
	reactivated string
}

func (s *holidayRestorerStub) FindHolidayByID(_ context.Context, id string) (*models.Holiday, error) {
	if s.existing != nil && s.existing.ID == id {
		copied := *s.existing
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *holidayRestorerStub) CreateHoliday(_ context.Context, holiday *models.Holiday) error {
	copied := *holiday
	s.created = &copied
	return nil
}

func (s *holidayRestorerStub) ReactivateHoliday(_ context.Context, id string) error {
	s.reactivated = id
	return nil
}
