package service

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/timetable-api/internal/dto"
	"github.com/campuskit/timetable-api/internal/models"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
)

func TestEntryServiceCreatePersistsCleanEntry(t *testing.T) {
	store := newEntryStoreStub()
	service := newEntryServiceFixture(store, &occupancyStub{}, &calendarFactsStub{})

	resp, report, err := service.Create(context.Background(), createLessonRequest("batch-1", nil), "user-1")
	require.NoError(t, err)
	require.NotNil(t, resp)
	assert.False(t, report.HasErrors)
	assert.Empty(t, resp.Warnings)
	require.NotNil(t, store.created)
	assert.Equal(t, "batch-1", store.created.BatchID)
	assert.Equal(t, "MONDAY", store.created.DayOfWeek)
	assert.True(t, store.created.Active)
	assert.Equal(t, "user-1", store.created.CreatedBy)
}

func TestEntryServiceCreateRejectsBlockingConflictWithReport(t *testing.T) {
	stored := lessonEntry("batch-1", "slot-1", "MONDAY", nil)
	stored.ID = "existing"
	store := newEntryStoreStub()
	service := newEntryServiceFixture(store, &occupancyStub{batch: []models.TimetableEntry{stored}}, &calendarFactsStub{})

	_, report, err := service.Create(context.Background(), createLessonRequest("batch-1", nil), "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	require.NotNil(t, report, "rejection carries the full conflict report")
	assert.True(t, report.HasErrors)
	assert.Nil(t, store.created, "nothing persisted on rejection")
}

func TestEntryServiceCreateAcceptsWarningsAndReturnsThem(t *testing.T) {
	date := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)
	calendar := &calendarFactsStub{holidays: map[string][]models.Holiday{
		"2025-08-15": {{Name: "Independence Day"}},
	}}
	store := newEntryStoreStub()
	service := newEntryServiceFixture(store, &occupancyStub{}, calendar)

	req := createLessonRequest("batch-1", &date)
	req.DayOfWeek = "FRIDAY"
	resp, _, err := service.Create(context.Background(), req, "user-1")
	require.NoError(t, err)
	require.Len(t, resp.Warnings, 1)
	assert.Equal(t, models.ConflictHolidayScheduling, resp.Warnings[0].Type)
	assert.NotNil(t, store.created, "warnings do not block persistence")
}

func TestEntryServiceCreateRejectsDateDayMismatch(t *testing.T) {
	date := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC) // a Friday
	service := newEntryServiceFixture(newEntryStoreStub(), &occupancyStub{}, &calendarFactsStub{})

	req := createLessonRequest("batch-1", &date)
	req.DayOfWeek = "MONDAY"
	_, _, err := service.Create(context.Background(), req, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEntryServiceCreateRequiresExactlyOneAssignment(t *testing.T) {
	service := newEntryServiceFixture(newEntryStoreStub(), &occupancyStub{}, &calendarFactsStub{})

	req := createLessonRequest("batch-1", nil)
	req.Event = &dto.EventPayload{Title: "Guest Lecture"}
	_, _, err := service.Create(context.Background(), req, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestEntryServiceUpdateIgnoresOwnStoredPosition(t *testing.T) {
	stored := lessonEntry("batch-1", "slot-1", "MONDAY", nil)
	stored.ID = "entry-1"
	store := newEntryStoreStub()
	store.existing = &stored
	// The stored occupancy index still contains the entry's current row.
	service := newEntryServiceFixture(store, &occupancyStub{batch: []models.TimetableEntry{stored}}, &calendarFactsStub{})

	notes := "room changed"
	resp, _, err := service.Update(context.Background(), "entry-1", dto.UpdateEntryRequest{Notes: &notes}, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "room changed", resp.Entry.Notes)
	require.NotNil(t, store.updated)
}

func TestEntryServiceDeleteReturnsUndoHandle(t *testing.T) {
	stored := lessonEntry("batch-1", "slot-1", "MONDAY", nil)
	stored.ID = "entry-1"
	store := newEntryStoreStub()
	store.existing = &stored
	recorder := &undoRecorderStub{id: "undo-1"}
	service := NewEntryService(store, referenceOKStub{}, NewConflictService(&occupancyStub{}, &calendarFactsStub{}, nil, nil),
		recorder, nil, nil, 2*time.Minute, nil)

	resp, err := service.Delete(context.Background(), "entry-1", 0, "user-1")
	require.NoError(t, err)
	assert.Equal(t, "undo-1", resp.UndoID)
	assert.Equal(t, 120, resp.ExpiresInSeconds)
	assert.Equal(t, "entry-1", store.deactivated)
	assert.Equal(t, models.UndoEntityTimetableEntry, recorder.entityType)
	assert.Equal(t, "user-1", recorder.requester)
}

func TestEntryServiceDeleteHonoursRequestedUndoWindow(t *testing.T) {
	stored := lessonEntry("batch-1", "slot-1", "MONDAY", nil)
	stored.ID = "entry-1"
	store := newEntryStoreStub()
	store.existing = &stored
	recorder := &undoRecorderStub{id: "undo-1"}
	service := NewEntryService(store, referenceOKStub{}, NewConflictService(&occupancyStub{}, &calendarFactsStub{}, nil, nil),
		recorder, nil, nil, 2*time.Minute, nil)

	resp, err := service.Delete(context.Background(), "entry-1", 45, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 45, resp.ExpiresInSeconds)
	assert.Equal(t, 45*time.Second, recorder.ttl)
}

func TestEntryServiceDeleteClampsOversizedUndoWindow(t *testing.T) {
	stored := lessonEntry("batch-1", "slot-1", "MONDAY", nil)
	stored.ID = "entry-1"
	store := newEntryStoreStub()
	store.existing = &stored
	recorder := &undoRecorderStub{id: "undo-1"}
	service := NewEntryService(store, referenceOKStub{}, NewConflictService(&occupancyStub{}, &calendarFactsStub{}, nil, nil),
		recorder, nil, nil, 2*time.Minute, nil)

	resp, err := service.Delete(context.Background(), "entry-1", 3600, "user-1")
	require.NoError(t, err)
	assert.Equal(t, 120, resp.ExpiresInSeconds)
	assert.Equal(t, 2*time.Minute, recorder.ttl)
}

func TestEntryServiceDeleteUnknownEntry(t *testing.T) {
	service := newEntryServiceFixture(newEntryStoreStub(), &occupancyStub{}, &calendarFactsStub{})

	_, err := service.Delete(context.Background(), "missing", 0, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestEntryServiceValidateEntriesCatchesInternalConflicts(t *testing.T) {
	service := newEntryServiceFixture(newEntryStoreStub(), &occupancyStub{}, &calendarFactsStub{})

	payload := createLessonRequest("batch-1", nil).EntryPayload
	report, err := service.ValidateEntries(context.Background(), dto.ValidateEntriesRequest{
		Entries: []dto.EntryPayload{payload, payload},
	}, "user-1")
	require.NoError(t, err)
	assert.True(t, report.HasErrors)
	require.Len(t, report.Results, 2)
	assert.NotEmpty(t, report.Results[1].Conflicts)
}

// --- Fixtures ---

func newEntryServiceFixture(store *entryStoreStub, occupancy *occupancyStub, calendar *calendarFactsStub) *EntryService {
	detector := NewConflictService(occupancy, calendar, nil, nil)
	return NewEntryService(store, referenceOKStub{}, detector, &undoRecorderStub{}, nil, nil, 2*time.Minute, nil)
}

func createLessonRequest(batchID string, date *time.Time) dto.CreateEntryRequest {
	return dto.CreateEntryRequest{EntryPayload: dto.EntryPayload{
		BatchID:    batchID,
		TimeSlotID: "slot-1",
		DayOfWeek:  "MONDAY",
		Date:       date,
		Lesson:     &dto.LessonPayload{SubjectID: "subj-1", FacultyID: "fac-1"},
	}}
}

type entryStoreStub struct {
	existing    *models.TimetableEntry
	created     *models.TimetableEntry
	updated     *models.TimetableEntry
	deactivated string
}

func newEntryStoreStub() *entryStoreStub {
	return &entryStoreStub{}
}

func (s *entryStoreStub) List(_ context.Context, _ models.EntryFilter) ([]models.TimetableEntry, int, error) {
	if s.existing == nil {
		return nil, 0, nil
	}
	return []models.TimetableEntry{*s.existing}, 1, nil
}

func (s *entryStoreStub) FindByID(_ context.Context, id string) (*models.TimetableEntry, error) {
	if s.existing != nil && s.existing.ID == id {
		copied := *s.existing
		return &copied, nil
	}
	return nil, sql.ErrNoRows
}

func (s *entryStoreStub) Create(_ context.Context, entry *models.TimetableEntry) error {
	copied := *entry
	s.created = &copied
	return nil
}

func (s *entryStoreStub) Update(_ context.Context, entry *models.TimetableEntry) error {
	copied := *entry
	s.updated = &copied
	return nil
}

func (s *entryStoreStub) Deactivate(_ context.Context, id string) error {
	if s.existing == nil || s.existing.ID != id {
		return sql.ErrNoRows
	}
	s.deactivated = id
	return nil
}

type referenceOKStub struct{}

func (referenceOKStub) BatchExists(_ context.Context, _ string) error    { return nil }
func (referenceOKStub) SubjectExists(_ context.Context, _ string) error  { return nil }
func (referenceOKStub) FacultyExists(_ context.Context, _ string) error  { return nil }
func (referenceOKStub) TimeSlotExists(_ context.Context, _ string) error { return nil }

type undoRecorderStub struct {
	id         string
	entityType models.UndoEntityType
	entityID   string
	requester  string
	ttl        time.Duration
}

func (s *undoRecorderStub) RecordDeletion(_ context.Context, entityType models.UndoEntityType, entityID string, _ []byte, _ models.UndoMetadata, ttl time.Duration, requester string) (string, error) {
	s.entityType = entityType
	s.entityID = entityID
	s.requester = requester
	s.ttl = ttl
	if s.id == "" {
		return "undo-stub", nil
	}
	return s.id, nil
}
