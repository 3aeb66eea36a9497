package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/campuskit/timetable-api/internal/dto"
	"github.com/campuskit/timetable-api/internal/models"
	"github.com/campuskit/timetable-api/internal/repository"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
)

type entryStore interface {
	List(ctx context.Context, filter models.EntryFilter) ([]models.TimetableEntry, int, error)
	FindByID(ctx context.Context, id string) (*models.TimetableEntry, error)
	Create(ctx context.Context, entry *models.TimetableEntry) error
	Update(ctx context.Context, entry *models.TimetableEntry) error
	Deactivate(ctx context.Context, id string) error
}

type referenceChecker interface {
	BatchExists(ctx context.Context, id string) error
	SubjectExists(ctx context.Context, id string) error
	FacultyExists(ctx context.Context, id string) error
	TimeSlotExists(ctx context.Context, id string) error
}

type auditor interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

// EntryService owns single-entry CRUD. Every create and update runs through
// the conflict detector; errors block, warnings are returned to the caller
// alongside the persisted entry. Deletions are soft and recorded in the undo
// ledger.
type EntryService struct {
	store     entryStore
	refs      referenceChecker
	detector  *ConflictService
	undo      undoRecorder
	audit     auditor
	validator *validator.Validate
	undoTTL   time.Duration
	logger    *zap.Logger
}

// NewEntryService constructs the service.
func NewEntryService(store entryStore, refs referenceChecker, detector *ConflictService, undo undoRecorder, audit auditor, validate *validator.Validate, undoTTL time.Duration, logger *zap.Logger) *EntryService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if undoTTL <= 0 {
		undoTTL = 5 * time.Minute
	}
	return &EntryService{store: store, refs: refs, detector: detector, undo: undo, audit: audit, validator: validate, undoTTL: undoTTL, logger: logger}
}

// List returns entries matching the filter along with pagination metadata.
func (s *EntryService) List(ctx context.Context, query dto.EntryListQuery) ([]models.TimetableEntry, *models.Pagination, error) {
	filter, err := filterFromQuery(query)
	if err != nil {
		return nil, nil, err
	}
	entries, total, err := s.store.List(ctx, filter)
	if err != nil {
		return nil, nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list timetable entries")
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	return entries, pagination, nil
}

// Get loads one entry by id.
func (s *EntryService) Get(ctx context.Context, id string) (*models.TimetableEntry, error) {
	entry, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entry")
	}
	return entry, nil
}

// Create validates, conflict-checks, and persists a single entry. Blocking
// conflicts reject the request with the full report attached; warnings are
// accepted and returned.
func (s *EntryService) Create(ctx context.Context, req dto.CreateEntryRequest, actorID string) (*dto.EntryResponse, *models.ConflictReport, error) {
	entry, err := s.entryFromPayload(ctx, req.EntryPayload, actorID)
	if err != nil {
		return nil, nil, err
	}

	report, err := s.detector.CheckEntries(ctx, []models.TimetableEntry{*entry}, CheckOptions{})
	if err != nil {
		return nil, nil, err
	}
	if report.HasErrors {
		return nil, report, appErrors.Clone(appErrors.ErrConflict, "entry conflicts with the existing timetable")
	}

	if err := s.store.Create(ctx, entry); err != nil {
		return nil, nil, storageError(err, "failed to create timetable entry")
	}
	s.recordAudit(ctx, actorID, models.AuditActionEntryCreate, "timetable_entry", entry.ID)

	return &dto.EntryResponse{Entry: entry, Warnings: report.Results[0].Conflicts}, report, nil
}

// ValidateEntries runs conflict detection over the proposed entries without
// persisting anything.
func (s *EntryService) ValidateEntries(ctx context.Context, req dto.ValidateEntriesRequest, actorID string) (*models.ConflictReport, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid validation payload")
	}
	proposed := make([]models.TimetableEntry, 0, len(req.Entries))
	for i, payload := range req.Entries {
		entry, err := s.entryFromPayload(ctx, payload, actorID)
		if err != nil {
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("entry %d: %s", i, appErrors.FromError(err).Message))
		}
		proposed = append(proposed, *entry)
	}
	return s.detector.CheckEntries(ctx, proposed, CheckOptions{})
}

// Update applies the changed fields and re-checks the resulting entry,
// ignoring the entry's own stored position during detection.
func (s *EntryService) Update(ctx context.Context, id string, req dto.UpdateEntryRequest, actorID string) (*dto.EntryResponse, *models.ConflictReport, error) {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return nil, nil, err
	}
	if !entry.Active {
		return nil, nil, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
	}

	if req.TimeSlotID != nil {
		entry.TimeSlotID = *req.TimeSlotID
	}
	if req.DayOfWeek != nil {
		entry.DayOfWeek = strings.ToUpper(*req.DayOfWeek)
	}
	if req.Date != nil {
		d := dateOnly(*req.Date)
		entry.Date = &d
	}
	if req.EntryType != nil {
		entry.EntryType = models.EntryType(strings.ToUpper(*req.EntryType))
	}
	if req.Notes != nil {
		entry.Notes = *req.Notes
	}
	if req.Lesson != nil || req.Event != nil {
		assignment := models.EntryAssignment{}
		if req.Lesson != nil {
			assignment.Lesson = &models.LessonAssignment{SubjectID: req.Lesson.SubjectID, FacultyID: req.Lesson.FacultyID}
		}
		if req.Event != nil {
			assignment.Event = &models.EventAssignment{Title: req.Event.Title, Color: req.Event.Color}
		}
		if !assignment.Valid() {
			return nil, nil, appErrors.Clone(appErrors.ErrValidation, "exactly one of lesson or event must be set")
		}
		entry.ApplyAssignment(assignment)
	}
	if err := s.checkEntryShape(ctx, entry); err != nil {
		return nil, nil, err
	}

	report, err := s.detector.CheckEntries(ctx, []models.TimetableEntry{*entry}, Ignoring(entry.ID))
	if err != nil {
		return nil, nil, err
	}
	if report.HasErrors {
		return nil, report, appErrors.Clone(appErrors.ErrConflict, "updated entry conflicts with the existing timetable")
	}

	if err := s.store.Update(ctx, entry); err != nil {
		return nil, nil, storageError(err, "failed to update timetable entry")
	}
	s.recordAudit(ctx, actorID, models.AuditActionEntryUpdate, "timetable_entry", entry.ID)

	return &dto.EntryResponse{Entry: entry, Warnings: report.Results[0].Conflicts}, report, nil
}

// Delete soft-deactivates the entry and records an undo snapshot. The undo
// window is caller-chosen in seconds, clamped to the configured cap; zero
// means "use the cap". The undo id is empty when snapshotting failed; the
// deletion itself still stands.
func (s *EntryService) Delete(ctx context.Context, id string, ttlSeconds int, actorID string) (*dto.DeleteEntryResponse, error) {
	entry, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !entry.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
	}

	snapshot, err := marshalSnapshot(entry)
	if err != nil {
		return nil, err
	}

	if err := s.store.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "timetable entry not found")
		}
		return nil, storageError(err, "failed to deactivate timetable entry")
	}
	s.recordAudit(ctx, actorID, models.AuditActionEntryDelete, "timetable_entry", id)

	metadata := models.UndoMetadata{"batch_id": entry.BatchID, "day_of_week": entry.DayOfWeek}
	if entry.CustomTitle != nil {
		metadata["title"] = *entry.CustomTitle
	}
	ttl := clampUndoTTL(ttlSeconds, s.undoTTL)
	undoID, err := s.undo.RecordDeletion(ctx, models.UndoEntityTimetableEntry, id, snapshot, metadata, ttl, actorID)
	if err != nil {
		s.logger.Warn("failed to record entry undo", zap.String("entry_id", id), zap.Error(err))
		return &dto.DeleteEntryResponse{}, nil
	}
	return &dto.DeleteEntryResponse{UndoID: undoID, ExpiresInSeconds: int(ttl.Seconds())}, nil
}

// entryFromPayload builds and reference-checks a draft entry.
func (s *EntryService) entryFromPayload(ctx context.Context, payload dto.EntryPayload, actorID string) (*models.TimetableEntry, error) {
	if err := s.validator.Struct(payload); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid entry payload")
	}

	entry := &models.TimetableEntry{
		ID:         uuid.NewString(),
		BatchID:    payload.BatchID,
		TimeSlotID: payload.TimeSlotID,
		DayOfWeek:  strings.ToUpper(payload.DayOfWeek),
		EntryType:  models.EntryTypeRegular,
		Active:     true,
		Notes:      payload.Notes,
		CreatedBy:  actorID,
	}
	if payload.EntryType != "" {
		entry.EntryType = models.EntryType(strings.ToUpper(payload.EntryType))
	}
	if payload.Date != nil {
		d := dateOnly(*payload.Date)
		entry.Date = &d
	}

	assignment := models.EntryAssignment{}
	if payload.Lesson != nil {
		assignment.Lesson = &models.LessonAssignment{SubjectID: payload.Lesson.SubjectID, FacultyID: payload.Lesson.FacultyID}
	}
	if payload.Event != nil {
		assignment.Event = &models.EventAssignment{Title: payload.Event.Title, Color: payload.Event.Color}
	}
	if !assignment.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, "exactly one of lesson or event must be set")
	}
	entry.ApplyAssignment(assignment)

	if err := s.checkEntryShape(ctx, entry); err != nil {
		return nil, err
	}
	return entry, nil
}

func (s *EntryService) checkEntryShape(ctx context.Context, entry *models.TimetableEntry) error {
	if !models.ValidDay(entry.DayOfWeek) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%q is not a valid day of week", entry.DayOfWeek))
	}
	if !models.ValidEntryType(entry.EntryType) {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%q is not a valid entry type", entry.EntryType))
	}
	if entry.Date != nil && models.DayNameOf(*entry.Date) != entry.DayOfWeek {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("date %s is not a %s", entry.Date.Format("2006-01-02"), entry.DayOfWeek))
	}

	if err := s.refs.BatchExists(ctx, entry.BatchID); err != nil {
		return referenceError(err, "batch", entry.BatchID)
	}
	if err := s.refs.TimeSlotExists(ctx, entry.TimeSlotID); err != nil {
		return referenceError(err, "time slot", entry.TimeSlotID)
	}
	if entry.SubjectID != nil {
		if err := s.refs.SubjectExists(ctx, *entry.SubjectID); err != nil {
			return referenceError(err, "subject", *entry.SubjectID)
		}
	}
	if entry.FacultyID != nil {
		if err := s.refs.FacultyExists(ctx, *entry.FacultyID); err != nil {
			return referenceError(err, "faculty", *entry.FacultyID)
		}
	}
	return nil
}

func (s *EntryService) recordAudit(ctx context.Context, actorID string, action models.AuditAction, resource, resourceID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{Action: action, Resource: resource, ResourceID: &resourceID}
	if actorID != "" {
		log.UserID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", string(action)), zap.Error(err))
	}
}

func filterFromQuery(query dto.EntryListQuery) (models.EntryFilter, error) {
	filter := models.EntryFilter{
		BatchID:   query.BatchID,
		FacultyID: query.FacultyID,
		TimeSlot:  query.TimeSlot,
		DayOfWeek: strings.ToUpper(query.DayOfWeek),
		EntryType: models.EntryType(strings.ToUpper(query.EntryType)),
		Page:      query.Page,
		PageSize:  query.PageSize,
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	if filter.PageSize <= 0 || filter.PageSize > 200 {
		filter.PageSize = 50
	}
	if query.DateFrom != "" {
		from, err := time.Parse("2006-01-02", query.DateFrom)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "dateFrom must be YYYY-MM-DD")
		}
		filter.DateFrom = &from
	}
	if query.DateTo != "" {
		to, err := time.Parse("2006-01-02", query.DateTo)
		if err != nil {
			return filter, appErrors.Clone(appErrors.ErrValidation, "dateTo must be YYYY-MM-DD")
		}
		filter.DateTo = &to
	}
	if query.Active != "" {
		active := query.Active == "true"
		filter.Active = &active
	}
	return filter, nil
}

func storageError(err error, message string) error {
	if errors.Is(err, repository.ErrDuplicateEntry) {
		return appErrors.Clone(appErrors.ErrConflict, "an active entry already occupies that slot")
	}
	return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, message)
}

func referenceError(err error, kind, id string) error {
	if errors.Is(err, sql.ErrNoRows) {
		return appErrors.Clone(appErrors.ErrReference, fmt.Sprintf("%s %s not found", kind, id))
	}
	return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, fmt.Sprintf("failed to resolve %s", kind))
}
