package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/timetable-api/internal/models"
)

func TestConflictServiceCleanProposalHasEmptyResults(t *testing.T) {
	detector := NewConflictService(&occupancyStub{}, &calendarFactsStub{}, nil, nil)

	report, err := detector.CheckEntries(context.Background(), []models.TimetableEntry{
		lessonEntry("batch-1", "slot-1", "MONDAY", nil),
	}, CheckOptions{})
	require.NoError(t, err)
	assert.False(t, report.HasErrors)
	assert.False(t, report.HasWarnings)
	require.Len(t, report.Results, 1)
	assert.Empty(t, report.Results[0].Conflicts)
}

func TestConflictServiceDetectsStoredBatchDoubleBooking(t *testing.T) {
	stored := lessonEntry("batch-1", "slot-1", "MONDAY", nil)
	stored.ID = "existing"
	detector := NewConflictService(&occupancyStub{batch: []models.TimetableEntry{stored}}, &calendarFactsStub{}, nil, nil)

	report, err := detector.CheckEntries(context.Background(), []models.TimetableEntry{
		lessonEntry("batch-1", "slot-1", "MONDAY", nil),
	}, CheckOptions{})
	require.NoError(t, err)
	assert.True(t, report.HasErrors)
	require.Len(t, report.Results[0].Conflicts, 1)
	conflict := report.Results[0].Conflicts[0]
	assert.Equal(t, models.ConflictBatchDoubleBooking, conflict.Type)
	assert.Equal(t, models.SeverityError, conflict.Severity)
	require.Len(t, conflict.Entries, 1)
	assert.Equal(t, "existing", conflict.Entries[0].ID)
}

func TestConflictServiceIgnoreListExcludesOwnRow(t *testing.T) {
	stored := lessonEntry("batch-1", "slot-1", "MONDAY", nil)
	stored.ID = "self"
	detector := NewConflictService(&occupancyStub{batch: []models.TimetableEntry{stored}}, &calendarFactsStub{}, nil, nil)

	moved := stored
	report, err := detector.CheckEntries(context.Background(), []models.TimetableEntry{moved}, Ignoring("self"))
	require.NoError(t, err)
	assert.False(t, report.HasErrors)
}

func TestConflictServiceCatchesIntraRequestDuplicates(t *testing.T) {
	detector := NewConflictService(&occupancyStub{}, &calendarFactsStub{}, nil, nil)

	first := lessonEntry("batch-1", "slot-1", "MONDAY", nil)
	second := lessonEntry("batch-1", "slot-1", "MONDAY", nil)
	report, err := detector.CheckEntries(context.Background(), []models.TimetableEntry{first, second}, CheckOptions{})
	require.NoError(t, err)
	assert.True(t, report.HasErrors)
	assert.Empty(t, report.Results[0].Conflicts, "first entry carries no conflict")
	require.Len(t, report.Results[1].Conflicts, 1)
	conflict := report.Results[1].Conflicts[0]
	assert.Equal(t, models.ConflictInternalBatch, conflict.Type)
	require.NotNil(t, conflict.WithIndex)
	assert.Equal(t, 0, *conflict.WithIndex)
}

func TestConflictServiceCatchesIntraRequestFacultyClash(t *testing.T) {
	detector := NewConflictService(&occupancyStub{}, &calendarFactsStub{}, nil, nil)

	first := lessonEntry("batch-1", "slot-1", "MONDAY", nil)
	second := lessonEntry("batch-2", "slot-1", "MONDAY", nil)
	report, err := detector.CheckEntries(context.Background(), []models.TimetableEntry{first, second}, CheckOptions{})
	require.NoError(t, err)
	require.Len(t, report.Results[1].Conflicts, 1)
	assert.Equal(t, models.ConflictInternalFaculty, report.Results[1].Conflicts[0].Type)
}

func TestConflictServiceHolidayIsWarningOnly(t *testing.T) {
	date := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)
	calendar := &calendarFactsStub{holidays: map[string][]models.Holiday{
		"2025-08-15": {{Name: "Independence Day"}},
	}}
	detector := NewConflictService(&occupancyStub{}, calendar, nil, nil)

	report, err := detector.CheckEntries(context.Background(), []models.TimetableEntry{
		lessonEntry("batch-1", "slot-1", "FRIDAY", &date),
	}, CheckOptions{})
	require.NoError(t, err)
	assert.False(t, report.HasErrors)
	assert.True(t, report.HasWarnings)
	require.Len(t, report.Results[0].Conflicts, 1)
	assert.Equal(t, models.ConflictHolidayScheduling, report.Results[0].Conflicts[0].Type)
	assert.Equal(t, models.SeverityWarning, report.Results[0].Conflicts[0].Severity)
}

func TestConflictServiceExamPeriodBlocksRegularButNotMakeup(t *testing.T) {
	date := time.Date(2025, 12, 1, 0, 0, 0, 0, time.UTC)
	calendar := &calendarFactsStub{examPeriod: &models.ExamPeriod{Name: "Winter Exams", BlocksRegularClasses: true}}
	detector := NewConflictService(&occupancyStub{}, calendar, nil, nil)

	regular := lessonEntry("batch-1", "slot-1", "MONDAY", &date)
	makeup := lessonEntry("batch-2", "slot-2", "MONDAY", &date)
	makeup.EntryType = models.EntryTypeMakeup

	report, err := detector.CheckEntries(context.Background(), []models.TimetableEntry{regular, makeup}, CheckOptions{})
	require.NoError(t, err)
	require.Len(t, report.Results[0].Conflicts, 1)
	assert.Equal(t, models.SeverityError, report.Results[0].Conflicts[0].Severity)
	require.Len(t, report.Results[1].Conflicts, 1)
	assert.Equal(t, models.SeverityWarning, report.Results[1].Conflicts[0].Severity)
	assert.True(t, report.HasErrors)
	assert.True(t, report.HasWarnings)
}

func TestConflictServiceSkipCalendarSuppressesCalendarChecks(t *testing.T) {
	date := time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC)
	calendar := &calendarFactsStub{holidays: map[string][]models.Holiday{
		"2025-08-15": {{Name: "Independence Day"}},
	}}
	detector := NewConflictService(&occupancyStub{}, calendar, nil, nil)

	report, err := detector.CheckEntries(context.Background(), []models.TimetableEntry{
		lessonEntry("batch-1", "slot-1", "FRIDAY", &date),
	}, CheckOptions{SkipCalendar: true})
	require.NoError(t, err)
	assert.False(t, report.HasWarnings)
	assert.Empty(t, report.Results[0].Conflicts)
}

// --- Fixtures ---

func lessonEntry(batchID, slotID, day string, date *time.Time) models.TimetableEntry {
	subject := "subj-1"
	faculty := "fac-1"
	return models.TimetableEntry{
		ID:         batchID + "-" + slotID + "-" + day,
		BatchID:    batchID,
		SubjectID:  &subject,
		FacultyID:  &faculty,
		TimeSlotID: slotID,
		DayOfWeek:  day,
		Date:       date,
		EntryType:  models.EntryTypeRegular,
		Active:     true,
	}
}

type occupancyStub struct {
	batch   []models.TimetableEntry
	faculty []models.TimetableEntry
}

func (s *occupancyStub) FindBatchOccupants(_ context.Context, batchID, timeSlotID, dayOfWeek string, date *time.Time) ([]models.TimetableEntry, error) {
	matched := make([]models.TimetableEntry, 0, len(s.batch))
	for _, e := range s.batch {
		if e.BatchID == batchID && e.TimeSlotID == timeSlotID && e.DayOfWeek == dayOfWeek {
			matched = append(matched, e)
		}
	}
	_ = date
	return matched, nil
}

func (s *occupancyStub) FindFacultyOccupants(_ context.Context, facultyID, timeSlotID, dayOfWeek string, date *time.Time) ([]models.TimetableEntry, error) {
	matched := make([]models.TimetableEntry, 0, len(s.faculty))
	for _, e := range s.faculty {
		if e.FacultyID != nil && *e.FacultyID == facultyID && e.TimeSlotID == timeSlotID && e.DayOfWeek == dayOfWeek {
			matched = append(matched, e)
		}
	}
	_ = date
	return matched, nil
}

type calendarFactsStub struct {
	holidays   map[string][]models.Holiday
	examPeriod *models.ExamPeriod
}

func (s *calendarFactsStub) HolidaysOn(_ context.Context, date time.Time, _ string) ([]models.Holiday, error) {
	return s.holidays[date.Format("2006-01-02")], nil
}

func (s *calendarFactsStub) BlockingExamPeriod(_ context.Context, date time.Time, _ string) (*models.ExamPeriod, error) {
	if s.examPeriod == nil {
		return nil, nil
	}
	if !s.examPeriod.StartDate.IsZero() {
		if date.Before(s.examPeriod.StartDate) || date.After(s.examPeriod.EndDate) {
			return nil, nil
		}
	}
	return s.examPeriod, nil
}
