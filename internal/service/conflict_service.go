package service

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campuskit/timetable-api/internal/models"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
)

type occupancyFinder interface {
	FindBatchOccupants(ctx context.Context, batchID, timeSlotID, dayOfWeek string, date *time.Time) ([]models.TimetableEntry, error)
	FindFacultyOccupants(ctx context.Context, facultyID, timeSlotID, dayOfWeek string, date *time.Time) ([]models.TimetableEntry, error)
}

type calendarFacts interface {
	HolidaysOn(ctx context.Context, date time.Time, batchID string) ([]models.Holiday, error)
	BlockingExamPeriod(ctx context.Context, date time.Time, batchID string) (*models.ExamPeriod, error)
}

// CheckOptions tunes a detection pass. IgnoreEntryIDs excludes stored entries
// from double-booking matches; used when the proposal modifies those rows in
// place (updates, faculty replacement, rescheduling) so an entry never
// conflicts with its own current position.
type CheckOptions struct {
	IgnoreEntryIDs map[string]struct{}
	SkipCalendar   bool
}

// Ignoring builds CheckOptions that exclude the given stored entry ids.
func Ignoring(ids ...string) CheckOptions {
	ignore := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		ignore[id] = struct{}{}
	}
	return CheckOptions{IgnoreEntryIDs: ignore}
}

// ConflictService runs every proposed entry through three detection passes:
// stored occupancy (batch seat and faculty availability), intra-proposal
// collisions between entries of the same request, and calendar facts
// (holidays and blocking exam periods). It never mutates anything.
type ConflictService struct {
	entries  occupancyFinder
	calendar calendarFacts
	metrics  *MetricsService
	logger   *zap.Logger
}

// NewConflictService constructs the detector.
func NewConflictService(entries occupancyFinder, calendar calendarFacts, metrics *MetricsService, logger *zap.Logger) *ConflictService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConflictService{entries: entries, calendar: calendar, metrics: metrics, logger: logger}
}

// CheckEntries detects conflicts for an ordered list of proposed entries.
// Results preserve request order, one element per proposed entry. A proposal
// with zero conflicts still gets a Results element with an empty Conflicts
// slice so callers can index results by request position.
func (s *ConflictService) CheckEntries(ctx context.Context, proposed []models.TimetableEntry, opts CheckOptions) (*models.ConflictReport, error) {
	start := time.Now()
	report := &models.ConflictReport{Results: make([]models.EntryConflicts, 0, len(proposed))}
	tally := make(map[[2]string]int)

	for i, entry := range proposed {
		conflicts, err := s.checkOne(ctx, entry, proposed[:i], i, opts)
		if err != nil {
			return nil, err
		}
		for _, c := range conflicts {
			tally[[2]string{string(c.Type), string(c.Severity)}]++
			switch c.Severity {
			case models.SeverityError:
				report.HasErrors = true
			case models.SeverityWarning:
				report.HasWarnings = true
			}
		}
		report.Results = append(report.Results, models.EntryConflicts{Index: i, Entry: entry, Conflicts: conflicts})
	}

	s.metrics.ObserveConflictCheck(time.Since(start), tally)
	return report, nil
}

func (s *ConflictService) checkOne(ctx context.Context, entry models.TimetableEntry, earlier []models.TimetableEntry, index int, opts CheckOptions) ([]models.ConflictInfo, error) {
	conflicts := make([]models.ConflictInfo, 0, 2)

	occupants, err := s.entries.FindBatchOccupants(ctx, entry.BatchID, entry.TimeSlotID, entry.DayOfWeek, entry.Date)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check batch occupancy")
	}
	if blockers := filterIgnored(occupants, opts.IgnoreEntryIDs); len(blockers) > 0 {
		conflicts = append(conflicts, models.ConflictInfo{
			Type:     models.ConflictBatchDoubleBooking,
			Severity: models.SeverityError,
			Message:  fmt.Sprintf("batch %s already has an entry at %s on %s", entry.BatchID, entry.TimeSlotID, occupancyDate(entry)),
			Entries:  blockers,
		})
	}

	if entry.FacultyID != nil {
		booked, err := s.entries.FindFacultyOccupants(ctx, *entry.FacultyID, entry.TimeSlotID, entry.DayOfWeek, entry.Date)
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check faculty availability")
		}
		if blockers := filterIgnored(booked, opts.IgnoreEntryIDs); len(blockers) > 0 {
			conflicts = append(conflicts, models.ConflictInfo{
				Type:     models.ConflictFaculty,
				Severity: models.SeverityError,
				Message:  fmt.Sprintf("faculty %s is already booked at %s on %s", *entry.FacultyID, entry.TimeSlotID, occupancyDate(entry)),
				Entries:  blockers,
			})
		}
	}

	for j := range earlier {
		if entry.SameOccupancy(earlier[j]) {
			withIndex := j
			conflicts = append(conflicts, models.ConflictInfo{
				Type:      models.ConflictInternalBatch,
				Severity:  models.SeverityError,
				Message:   fmt.Sprintf("duplicates entry at position %d in the same request", j),
				WithIndex: &withIndex,
			})
		} else if entry.SameFacultyOccupancy(earlier[j]) {
			withIndex := j
			conflicts = append(conflicts, models.ConflictInfo{
				Type:      models.ConflictInternalFaculty,
				Severity:  models.SeverityError,
				Message:   fmt.Sprintf("books the same faculty as entry at position %d in the same request", j),
				WithIndex: &withIndex,
			})
		}
	}

	if entry.Date != nil && !opts.SkipCalendar {
		calendarConflicts, err := s.checkCalendar(ctx, entry)
		if err != nil {
			return nil, err
		}
		conflicts = append(conflicts, calendarConflicts...)
	}

	return conflicts, nil
}

func (s *ConflictService) checkCalendar(ctx context.Context, entry models.TimetableEntry) ([]models.ConflictInfo, error) {
	conflicts := make([]models.ConflictInfo, 0, 1)

	holidays, err := s.calendar.HolidaysOn(ctx, *entry.Date, entry.BatchID)
	if err != nil {
		return nil, err
	}
	for i := range holidays {
		holiday := holidays[i]
		conflicts = append(conflicts, models.ConflictInfo{
			Type:     models.ConflictHolidayScheduling,
			Severity: models.SeverityWarning,
			Message:  fmt.Sprintf("%s falls on %s", holiday.Name, entry.Date.Format("2006-01-02")),
			Holiday:  &holiday,
		})
	}

	period, err := s.calendar.BlockingExamPeriod(ctx, *entry.Date, entry.BatchID)
	if err != nil {
		return nil, err
	}
	if period != nil {
		severity := models.SeverityWarning
		if entry.EntryType == models.EntryTypeRegular {
			severity = models.SeverityError
		}
		conflicts = append(conflicts, models.ConflictInfo{
			Type:       models.ConflictExamPeriod,
			Severity:   severity,
			Message:    fmt.Sprintf("%s blocks regular classes on %s", period.Name, entry.Date.Format("2006-01-02")),
			ExamPeriod: period,
		})
	}

	return conflicts, nil
}

func filterIgnored(entries []models.TimetableEntry, ignore map[string]struct{}) []models.TimetableEntry {
	if len(ignore) == 0 {
		return entries
	}
	kept := entries[:0:0]
	for _, e := range entries {
		if _, skip := ignore[e.ID]; !skip {
			kept = append(kept, e)
		}
	}
	return kept
}

func occupancyDate(entry models.TimetableEntry) string {
	if entry.Date != nil {
		return entry.Date.Format("2006-01-02")
	}
	return "recurring " + entry.DayOfWeek
}
