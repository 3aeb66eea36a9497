package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuskit/timetable-api/internal/models"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
)

// iterationCap bounds a single expansion run. Misconfigured templates (an end
// date before the start, an unreachable hours target) stop here instead of
// looping forever; hitting it is surfaced as CapReached, not an error. Only
// dates matching the template's day of week count toward the cap; mismatch
// advances are bounded separately so a weekly template whose start date never
// lands on its day cannot spin.
const (
	defaultIterationCap = 100
	mismatchRunCap      = 366
)

type timeSlotFinder interface {
	FindByID(ctx context.Context, id string) (*models.TimeSlot, error)
}

// SkippedDate records a candidate date the generator visited but did not emit.
type SkippedDate struct {
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
}

// GenerationResult is the outcome of expanding one template for one batch.
type GenerationResult struct {
	Drafts     []models.TimetableEntry `json:"drafts"`
	Skipped    []SkippedDate           `json:"skipped,omitempty"`
	TotalHours float64                 `json:"total_hours"`
	CapReached bool                    `json:"cap_reached"`
}

// RecurrenceService expands timetable templates into dated entry drafts.
// Drafts are candidates only; callers pass them through conflict detection
// before persisting.
type RecurrenceService struct {
	slots        timeSlotFinder
	calendar     calendarFacts
	iterationCap int
	logger       *zap.Logger
}

// NewRecurrenceService constructs the generator.
func NewRecurrenceService(slots timeSlotFinder, calendar calendarFacts, iterationCap int, logger *zap.Logger) *RecurrenceService {
	if iterationCap <= 0 {
		iterationCap = defaultIterationCap
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RecurrenceService{slots: slots, calendar: calendar, iterationCap: iterationCap, logger: logger}
}

// Generate expands the template into dated drafts for the given batch. The
// batch may differ from the template's own when a template is applied to
// other batches; calendar facts are resolved against the target batch.
func (s *RecurrenceService) Generate(ctx context.Context, tmpl *models.TimetableTemplate, batchID, createdBy string) (*GenerationResult, error) {
	if err := tmpl.Validate(); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}
	if batchID == "" {
		batchID = tmpl.BatchID
	}

	slot, err := s.slots.FindByID(ctx, tmpl.TimeSlotID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrReference, fmt.Sprintf("time slot %s not found", tmpl.TimeSlotID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slot")
	}
	slotHours := slot.DurationHours()

	result := &GenerationResult{Drafts: make([]models.TimetableEntry, 0, 16)}
	current := dateOnly(tmpl.StartDate)

	cycles := 0
	mismatches := 0
	for {
		if cycles >= s.iterationCap || mismatches >= mismatchRunCap {
			result.CapReached = true
			s.logger.Warn("template expansion hit iteration cap",
				zap.String("template_id", tmpl.ID),
				zap.Int("cap", s.iterationCap),
				zap.Int("generated", len(result.Drafts)))
			break
		}
		if tmpl.EndDate != nil && current.After(dateOnly(*tmpl.EndDate)) {
			break
		}
		if tmpl.EndsWhen == models.EndConditionHoursComplete && result.TotalHours >= *tmpl.TotalHours {
			break
		}

		if models.DayNameOf(current) != tmpl.DayOfWeek {
			mismatches++
			current = s.step(tmpl.Pattern, current)
			continue
		}
		mismatches = 0
		cycles++

		skip, reason, err := s.calendarBlocks(ctx, current, batchID)
		if err != nil {
			return nil, err
		}
		if skip {
			result.Skipped = append(result.Skipped, SkippedDate{Date: current, Reason: reason})
			current = s.step(tmpl.Pattern, current)
			continue
		}

		result.Drafts = append(result.Drafts, s.draft(tmpl, batchID, createdBy, current))
		result.TotalHours += slotHours
		current = s.step(tmpl.Pattern, current)
	}

	return result, nil
}

func (s *RecurrenceService) step(pattern models.RecurrencePattern, from time.Time) time.Time {
	switch pattern {
	case models.RecurrenceDaily:
		return from.AddDate(0, 0, 1)
	case models.RecurrenceWeekly:
		return from.AddDate(0, 0, 7)
	case models.RecurrenceMonthly:
		return from.AddDate(0, 1, 0)
	}
	return from.AddDate(0, 0, 1)
}

func (s *RecurrenceService) calendarBlocks(ctx context.Context, date time.Time, batchID string) (bool, string, error) {
	holidays, err := s.calendar.HolidaysOn(ctx, date, batchID)
	if err != nil {
		return false, "", err
	}
	if len(holidays) > 0 {
		return true, fmt.Sprintf("holiday: %s", holidays[0].Name), nil
	}
	period, err := s.calendar.BlockingExamPeriod(ctx, date, batchID)
	if err != nil {
		return false, "", err
	}
	if period != nil {
		return true, fmt.Sprintf("exam period: %s", period.Name), nil
	}
	return false, "", nil
}

func (s *RecurrenceService) draft(tmpl *models.TimetableTemplate, batchID, createdBy string, date time.Time) models.TimetableEntry {
	d := date
	subject := tmpl.SubjectID
	faculty := tmpl.FacultyID
	templateID := tmpl.ID
	return models.TimetableEntry{
		ID:         uuid.NewString(),
		BatchID:    batchID,
		SubjectID:  &subject,
		FacultyID:  &faculty,
		TimeSlotID: tmpl.TimeSlotID,
		DayOfWeek:  tmpl.DayOfWeek,
		Date:       &d,
		EntryType:  models.EntryTypeRegular,
		Active:     true,
		Notes:      fmt.Sprintf("generated from template %s", tmpl.Name),
		TemplateID: &templateID,
		CreatedBy:  createdBy,
	}
}

func dateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
