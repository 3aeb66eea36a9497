package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/timetable-api/internal/models"
)

func TestRecurrenceServiceHoursCompleteStopsExactly(t *testing.T) {
	generator := NewRecurrenceService(oneHourSlotStub{}, &calendarFactsStub{}, 0, nil)

	hours := 30.0
	tmpl := weeklyTemplate("MONDAY", time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC))
	tmpl.EndsWhen = models.EndConditionHoursComplete
	tmpl.TotalHours = &hours

	result, err := generator.Generate(context.Background(), tmpl, "", "user-1")
	require.NoError(t, err)
	assert.Len(t, result.Drafts, 30)
	assert.Equal(t, 30.0, result.TotalHours)
	assert.False(t, result.CapReached)
}

func TestRecurrenceServiceSkipsHolidayMondays(t *testing.T) {
	calendar := &calendarFactsStub{holidays: map[string][]models.Holiday{
		"2025-08-25": {{Name: "Summer Bank Holiday"}},
	}}
	generator := NewRecurrenceService(oneHourSlotStub{}, calendar, 0, nil)

	end := time.Date(2025, 10, 31, 0, 0, 0, 0, time.UTC)
	tmpl := weeklyTemplate("MONDAY", time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC))
	tmpl.EndsWhen = models.EndConditionSpecificDate
	tmpl.EndDate = &end

	result, err := generator.Generate(context.Background(), tmpl, "", "user-1")
	require.NoError(t, err)
	assert.Len(t, result.Drafts, 12, "13 Mondays in range minus the holiday")
	require.Len(t, result.Skipped, 1)
	assert.Equal(t, time.Date(2025, 8, 25, 0, 0, 0, 0, time.UTC), result.Skipped[0].Date)
	assert.Equal(t, "holiday: Summer Bank Holiday", result.Skipped[0].Reason)
	for _, draft := range result.Drafts {
		assert.NotEqual(t, "2025-08-25", draft.Date.Format("2006-01-02"))
	}
}

func TestRecurrenceServiceDraftsCarryTemplateProvenance(t *testing.T) {
	generator := NewRecurrenceService(oneHourSlotStub{}, &calendarFactsStub{}, 0, nil)

	hours := 2.0
	tmpl := weeklyTemplate("MONDAY", time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC))
	tmpl.EndsWhen = models.EndConditionHoursComplete
	tmpl.TotalHours = &hours

	result, err := generator.Generate(context.Background(), tmpl, "other-batch", "user-1")
	require.NoError(t, err)
	require.Len(t, result.Drafts, 2)
	draft := result.Drafts[0]
	assert.Equal(t, "other-batch", draft.BatchID, "target batch overrides the template's own")
	assert.NotEmpty(t, draft.ID)
	require.NotNil(t, draft.TemplateID)
	assert.Equal(t, tmpl.ID, *draft.TemplateID)
	assert.Equal(t, models.EntryTypeRegular, draft.EntryType)
	require.NotNil(t, draft.SubjectID)
	assert.Equal(t, tmpl.SubjectID, *draft.SubjectID)
	assert.Equal(t, "user-1", draft.CreatedBy)
}

func TestRecurrenceServiceMismatchedDayHitsCap(t *testing.T) {
	generator := NewRecurrenceService(oneHourSlotStub{}, &calendarFactsStub{}, 20, nil)

	hours := 10.0
	// Weekly stepping from a Monday can never land on a Tuesday.
	tmpl := weeklyTemplate("TUESDAY", time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC))
	tmpl.EndsWhen = models.EndConditionHoursComplete
	tmpl.TotalHours = &hours

	result, err := generator.Generate(context.Background(), tmpl, "", "user-1")
	require.NoError(t, err)
	assert.Empty(t, result.Drafts)
	assert.True(t, result.CapReached)
}

func TestRecurrenceServiceCapCountsOnlyMatchingDays(t *testing.T) {
	generator := NewRecurrenceService(oneHourSlotStub{}, &calendarFactsStub{}, 5, nil)

	hours := 100.0
	// Daily stepping visits six mismatched days for every Monday; only the
	// Mondays count toward the cap.
	tmpl := weeklyTemplate("MONDAY", time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC))
	tmpl.Pattern = models.RecurrenceDaily
	tmpl.EndsWhen = models.EndConditionHoursComplete
	tmpl.TotalHours = &hours

	result, err := generator.Generate(context.Background(), tmpl, "", "user-1")
	require.NoError(t, err)
	require.Len(t, result.Drafts, 5)
	assert.True(t, result.CapReached)
	assert.Equal(t, time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC), *result.Drafts[0].Date)
	assert.Equal(t, time.Date(2025, 9, 1, 0, 0, 0, 0, time.UTC), *result.Drafts[4].Date)
}

func TestRecurrenceServiceRejectsInvalidTemplate(t *testing.T) {
	generator := NewRecurrenceService(oneHourSlotStub{}, &calendarFactsStub{}, 0, nil)

	tmpl := weeklyTemplate("MONDAY", time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC))
	tmpl.EndsWhen = models.EndConditionHoursComplete
	// HOURS_COMPLETE without a positive target is a misconfiguration.
	tmpl.TotalHours = nil

	_, err := generator.Generate(context.Background(), tmpl, "", "user-1")
	require.Error(t, err)
}

// --- Fixtures ---

func weeklyTemplate(day string, start time.Time) *models.TimetableTemplate {
	return &models.TimetableTemplate{
		ID:         "tmpl-1",
		Name:       "Algorithms weekly",
		BatchID:    "batch-1",
		SubjectID:  "subj-1",
		FacultyID:  "fac-1",
		TimeSlotID: "slot-1",
		DayOfWeek:  day,
		Pattern:    models.RecurrenceWeekly,
		StartDate:  start,
		Active:     true,
		CreatedBy:  "user-1",
	}
}

type oneHourSlotStub struct{}

func (oneHourSlotStub) FindByID(_ context.Context, id string) (*models.TimeSlot, error) {
	return &models.TimeSlot{ID: id, Name: "P1", StartMinute: 540, EndMinute: 600, Active: true}, nil
}
