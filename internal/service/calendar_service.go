package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuskit/timetable-api/internal/models"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
)

type calendarRepository interface {
	HolidaysOn(ctx context.Context, date time.Time, departmentID string) ([]models.Holiday, error)
	BlockingExamPeriod(ctx context.Context, date time.Time, departmentID string) (*models.ExamPeriod, error)
	ListHolidays(ctx context.Context, from, to *time.Time) ([]models.Holiday, error)
	FindHolidayByID(ctx context.Context, id string) (*models.Holiday, error)
	CreateHoliday(ctx context.Context, holiday *models.Holiday) error
	DeactivateHoliday(ctx context.Context, id string) error
	ListExamPeriods(ctx context.Context, from, to *time.Time) ([]models.ExamPeriod, error)
	CreateExamPeriod(ctx context.Context, period *models.ExamPeriod) error
}

type departmentResolver interface {
	DepartmentID(ctx context.Context, batchID string) (string, error)
}

type undoRecorder interface {
	RecordDeletion(ctx context.Context, entityType models.UndoEntityType, entityID string, snapshot []byte, metadata models.UndoMetadata, ttl time.Duration, requester string) (string, error)
}

// CalendarService is the read side every scheduling decision consults:
// which holidays fall on a date and whether an exam period blocks it.
// Lookups are department-scoped through the batch's program and served
// through an optional read-through cache.
type CalendarService struct {
	repo      calendarRepository
	batches   departmentResolver
	cache     *CacheService
	undo      undoRecorder
	validator *validator.Validate
	logger    *zap.Logger
}

// NewCalendarService constructs the service.
func NewCalendarService(repo calendarRepository, batches departmentResolver, cache *CacheService, undo undoRecorder, validate *validator.Validate, logger *zap.Logger) *CalendarService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &CalendarService{repo: repo, batches: batches, cache: cache, undo: undo, validator: validate, logger: logger}
}

type cachedFacts struct {
	Holidays    []models.Holiday   `json:"holidays"`
	ExamBlocked bool               `json:"exam_blocked"`
	ExamPeriod  *models.ExamPeriod `json:"exam_period,omitempty"`
}

// HolidaysOn returns the holidays applying to the batch on the given date.
func (s *CalendarService) HolidaysOn(ctx context.Context, date time.Time, batchID string) ([]models.Holiday, error) {
	facts, err := s.factsFor(ctx, date, batchID)
	if err != nil {
		return nil, err
	}
	return facts.Holidays, nil
}

// BlockingExamPeriod returns the exam period blocking regular classes on the
// given date for the batch, or nil when none applies.
func (s *CalendarService) BlockingExamPeriod(ctx context.Context, date time.Time, batchID string) (*models.ExamPeriod, error) {
	facts, err := s.factsFor(ctx, date, batchID)
	if err != nil {
		return nil, err
	}
	if !facts.ExamBlocked {
		return nil, nil
	}
	return facts.ExamPeriod, nil
}

func (s *CalendarService) factsFor(ctx context.Context, date time.Time, batchID string) (*cachedFacts, error) {
	departmentID, err := s.batches.DepartmentID(ctx, batchID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrReference, fmt.Sprintf("batch %s not found", batchID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve batch department")
	}

	key := fmt.Sprintf("calfacts:%s:%s", departmentID, date.Format("2006-01-02"))
	var facts cachedFacts
	if hit, _ := s.cache.Get(ctx, key, &facts); hit {
		return &facts, nil
	}

	holidays, err := s.repo.HolidaysOn(ctx, date, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load holidays")
	}
	period, err := s.repo.BlockingExamPeriod(ctx, date, departmentID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load exam periods")
	}

	facts = cachedFacts{Holidays: holidays, ExamBlocked: period != nil, ExamPeriod: period}
	s.cache.Set(ctx, key, facts)
	return &facts, nil
}

// CalendarRangeRequest bounds calendar listings.
type CalendarRangeRequest struct {
	From *time.Time `json:"from"`
	To   *time.Time `json:"to"`
}

// ListHolidays returns holidays overlapping the range.
func (s *CalendarService) ListHolidays(ctx context.Context, req CalendarRangeRequest) ([]models.Holiday, error) {
	holidays, err := s.repo.ListHolidays(ctx, req.From, req.To)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list holidays")
	}
	return holidays, nil
}

// CreateHolidayRequest describes the create payload.
type CreateHolidayRequest struct {
	Date         time.Time          `json:"date" validate:"required"`
	Name         string             `json:"name" validate:"required"`
	Type         models.HolidayType `json:"type" validate:"required"`
	DepartmentID *string            `json:"department_id"`
	Recurring    bool               `json:"recurring"`
}

// CreateHoliday registers a new holiday and invalidates cached facts.
func (s *CalendarService) CreateHoliday(ctx context.Context, req CreateHolidayRequest, actorID string) (*models.Holiday, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid holiday payload")
	}
	if !models.ValidHolidayType(req.Type) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "type must be NATIONAL, UNIVERSITY, DEPARTMENT, or LOCAL")
	}
	if req.Type == models.HolidayTypeDepartment && (req.DepartmentID == nil || *req.DepartmentID == "") {
		return nil, appErrors.Clone(appErrors.ErrValidation, "department_id is required for DEPARTMENT holidays")
	}
	holiday := &models.Holiday{
		Date:         req.Date,
		Name:         req.Name,
		Type:         req.Type,
		DepartmentID: req.DepartmentID,
		Recurring:    req.Recurring,
		Active:       true,
	}
	if err := s.repo.CreateHoliday(ctx, holiday); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create holiday")
	}
	s.cache.InvalidatePattern(ctx, "calfacts:*")
	return holiday, nil
}

// DeleteHoliday soft-deletes a holiday and records an undo snapshot.
func (s *CalendarService) DeleteHoliday(ctx context.Context, id string, ttl time.Duration, actorID string) (string, error) {
	holiday, err := s.repo.FindHolidayByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "holiday not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load holiday")
	}
	if !holiday.Active {
		return "", appErrors.Clone(appErrors.ErrNotFound, "holiday not found")
	}

	snapshot, err := marshalSnapshot(holiday)
	if err != nil {
		return "", err
	}

	if err := s.repo.DeactivateHoliday(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrNotFound, "holiday not found")
		}
		return "", appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to deactivate holiday")
	}
	s.cache.InvalidatePattern(ctx, "calfacts:*")

	undoID, err := s.undo.RecordDeletion(ctx, models.UndoEntityHoliday, id, snapshot, models.UndoMetadata{"name": holiday.Name}, ttl, actorID)
	if err != nil {
		s.logger.Warn("failed to record holiday undo", zap.String("holiday_id", id), zap.Error(err))
		return "", nil
	}
	return undoID, nil
}

// ListExamPeriods returns exam periods overlapping the range.
func (s *CalendarService) ListExamPeriods(ctx context.Context, req CalendarRangeRequest) ([]models.ExamPeriod, error) {
	periods, err := s.repo.ListExamPeriods(ctx, req.From, req.To)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exam periods")
	}
	return periods, nil
}

// CreateExamPeriodRequest describes the create payload.
type CreateExamPeriodRequest struct {
	Name                 string    `json:"name" validate:"required"`
	StartDate            time.Time `json:"start_date" validate:"required"`
	EndDate              time.Time `json:"end_date" validate:"required"`
	BlocksRegularClasses bool      `json:"blocks_regular_classes"`
	DepartmentID         *string   `json:"department_id"`
}

// CreateExamPeriod registers a new exam period and invalidates cached facts.
func (s *CalendarService) CreateExamPeriod(ctx context.Context, req CreateExamPeriodRequest, actorID string) (*models.ExamPeriod, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid exam period payload")
	}
	if req.EndDate.Before(req.StartDate) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "end_date must be on or after start_date")
	}
	period := &models.ExamPeriod{
		Name:                 req.Name,
		StartDate:            req.StartDate,
		EndDate:              req.EndDate,
		BlocksRegularClasses: req.BlocksRegularClasses,
		DepartmentID:         req.DepartmentID,
		Active:               true,
	}
	if err := s.repo.CreateExamPeriod(ctx, period); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create exam period")
	}
	s.cache.InvalidatePattern(ctx, "calfacts:*")
	return period, nil
}
