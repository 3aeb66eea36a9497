package service

import (
	"context"
	"database/sql"
	"errors"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/campuskit/timetable-api/internal/models"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
)

type timeSlotStore interface {
	List(ctx context.Context, activeOnly bool) ([]models.TimeSlot, error)
	FindByID(ctx context.Context, id string) (*models.TimeSlot, error)
	Create(ctx context.Context, slot *models.TimeSlot) error
	Deactivate(ctx context.Context, id string) error
}

// CreateTimeSlotRequest describes the create payload.
type CreateTimeSlotRequest struct {
	Name        string `json:"name" validate:"required"`
	StartMinute int    `json:"startMinute" validate:"min=0,max=1439"`
	EndMinute   int    `json:"endMinute" validate:"min=1,max=1440"`
	SortOrder   int    `json:"sortOrder"`
}

// TimeSlotService manages the fixed grid of teaching periods. Slots are
// immutable once referenced by entries except for deactivation.
type TimeSlotService struct {
	store     timeSlotStore
	validator *validator.Validate
	logger    *zap.Logger
}

// NewTimeSlotService constructs the service.
func NewTimeSlotService(store timeSlotStore, validate *validator.Validate, logger *zap.Logger) *TimeSlotService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TimeSlotService{store: store, validator: validate, logger: logger}
}

// List returns time slots in sort order.
func (s *TimeSlotService) List(ctx context.Context, activeOnly bool) ([]models.TimeSlot, error) {
	slots, err := s.store.List(ctx, activeOnly)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list time slots")
	}
	return slots, nil
}

// Get loads one slot.
func (s *TimeSlotService) Get(ctx context.Context, id string) (*models.TimeSlot, error) {
	slot, err := s.store.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "time slot not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load time slot")
	}
	return slot, nil
}

// Create stores a new slot.
func (s *TimeSlotService) Create(ctx context.Context, req CreateTimeSlotRequest) (*models.TimeSlot, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid time slot payload")
	}
	if req.EndMinute <= req.StartMinute {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endMinute must be after startMinute")
	}
	slot := &models.TimeSlot{
		Name:        req.Name,
		StartMinute: req.StartMinute,
		EndMinute:   req.EndMinute,
		SortOrder:   req.SortOrder,
		Active:      true,
	}
	if err := s.store.Create(ctx, slot); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create time slot")
	}
	return slot, nil
}

// Deactivate retires a slot. Entries referencing it remain valid.
func (s *TimeSlotService) Deactivate(ctx context.Context, id string) error {
	if err := s.store.Deactivate(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "time slot not found")
		}
		return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to deactivate time slot")
	}
	return nil
}
