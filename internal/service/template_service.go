package service

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuskit/timetable-api/internal/dto"
	"github.com/campuskit/timetable-api/internal/models"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
)

type templateStore interface {
	List(ctx context.Context, batchID string) ([]models.TimetableTemplate, error)
	FindByID(ctx context.Context, id string) (*models.TimetableTemplate, error)
	Create(ctx context.Context, template *models.TimetableTemplate) error
	Deactivate(ctx context.Context, id string) error
}

// CreateTemplateRequest describes a new recurrence template.
type CreateTemplateRequest struct {
	Name       string     `json:"name" validate:"required"`
	BatchID    string     `json:"batchId" validate:"required"`
	SubjectID  string     `json:"subjectId" validate:"required"`
	FacultyID  string     `json:"facultyId" validate:"required"`
	TimeSlotID string     `json:"timeSlotId" validate:"required"`
	DayOfWeek  string     `json:"dayOfWeek" validate:"required"`
	Pattern    string     `json:"pattern" validate:"required"`
	StartDate  time.Time  `json:"startDate" validate:"required"`
	EndDate    *time.Time `json:"endDate"`
	EndsWhen   string     `json:"endsWhen" validate:"required"`
	TotalHours *float64   `json:"totalHours"`
}

// TemplateService manages recurrence templates and their previews.
type TemplateService struct {
	store     templateStore
	refs      referenceChecker
	generator *RecurrenceService
	detector  *ConflictService
	audit     auditor
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTemplateService constructs the service.
func NewTemplateService(store templateStore, refs referenceChecker, generator *RecurrenceService, detector *ConflictService, audit auditor, validate *validator.Validate, logger *zap.Logger) *TemplateService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TemplateService{store: store, refs: refs, generator: generator, detector: detector, audit: audit, validator: validate, logger: logger}
}

// List returns templates, optionally scoped to a batch.
func (s *TemplateService) List(ctx context.Context, batchID string) ([]models.TimetableTemplate, error) {
	templates, err := s.store.List(ctx, batchID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list templates")
	}
	return templates, nil
}

// Get loads one template.
func (s *TemplateService) Get(ctx context.Context, id string) (*models.TimetableTemplate, error) {
	tmpl, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	return tmpl, nil
}

// Create validates and stores a new template.
func (s *TemplateService) Create(ctx context.Context, req CreateTemplateRequest, actorID string) (*models.TimetableTemplate, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template payload")
	}

	tmpl := &models.TimetableTemplate{
		Name:       req.Name,
		BatchID:    req.BatchID,
		SubjectID:  req.SubjectID,
		FacultyID:  req.FacultyID,
		TimeSlotID: req.TimeSlotID,
		DayOfWeek:  strings.ToUpper(req.DayOfWeek),
		Pattern:    models.RecurrencePattern(strings.ToUpper(req.Pattern)),
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		EndsWhen:   models.EndCondition(strings.ToUpper(req.EndsWhen)),
		TotalHours: req.TotalHours,
		Active:     true,
		CreatedBy:  actorID,
	}
	if err := tmpl.Validate(); err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, err.Error())
	}

	if err := s.refs.BatchExists(ctx, tmpl.BatchID); err != nil {
		return nil, referenceError(err, "batch", tmpl.BatchID)
	}
	if err := s.refs.SubjectExists(ctx, tmpl.SubjectID); err != nil {
		return nil, referenceError(err, "subject", tmpl.SubjectID)
	}
	if err := s.refs.FacultyExists(ctx, tmpl.FacultyID); err != nil {
		return nil, referenceError(err, "faculty", tmpl.FacultyID)
	}
	if err := s.refs.TimeSlotExists(ctx, tmpl.TimeSlotID); err != nil {
		return nil, referenceError(err, "time slot", tmpl.TimeSlotID)
	}

	if err := s.store.Create(ctx, tmpl); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create template")
	}
	s.recordAudit(ctx, actorID, models.AuditActionTemplateCreate, tmpl.ID)
	return tmpl, nil
}

// Preview expands the template against its own batch and reports conflicts
// without persisting anything.
func (s *TemplateService) Preview(ctx context.Context, id, actorID string) (*dto.TemplatePreviewResponse, error) {
	tmpl, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	result, err := s.generator.Generate(ctx, tmpl, tmpl.BatchID, actorID)
	if err != nil {
		return nil, err
	}

	resp := &dto.TemplatePreviewResponse{
		Drafts:     result.Drafts,
		TotalHours: result.TotalHours,
		CapReached: result.CapReached,
	}
	for _, sk := range result.Skipped {
		resp.Skipped = append(resp.Skipped, dto.SkippedDate{Date: sk.Date, Reason: sk.Reason})
	}

	if len(result.Drafts) > 0 {
		report, err := s.detector.CheckEntries(ctx, result.Drafts, CheckOptions{})
		if err != nil {
			return nil, err
		}
		resp.Report = report
	}
	return resp, nil
}

// Delete deactivates a template. Entries generated from it are unaffected.
func (s *TemplateService) Delete(ctx context.Context, id, actorID string) error {
	if err := s.store.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "template not found")
		}
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to deactivate template")
	}
	s.recordAudit(ctx, actorID, models.AuditActionTemplateDelete, id)
	return nil
}

func (s *TemplateService) recordAudit(ctx context.Context, actorID string, action models.AuditAction, templateID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{Action: action, Resource: "timetable_template", ResourceID: &templateID}
	if actorID != "" {
		log.UserID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", string(action)), zap.Error(err))
	}
}
