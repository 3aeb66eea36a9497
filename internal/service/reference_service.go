package service

import (
	"context"

	"github.com/campuskit/timetable-api/internal/models"
)

type batchFinder interface {
	FindByID(ctx context.Context, id string) (*models.Batch, error)
}

type subjectFinder interface {
	FindByID(ctx context.Context, id string) (*models.Subject, error)
}

type facultyFinder interface {
	FindByID(ctx context.Context, id string) (*models.Faculty, error)
}

// ReferenceService answers existence checks for the academic entities entries
// point at. Lookup errors pass through unchanged so callers can distinguish
// a missing row from a storage failure.
type ReferenceService struct {
	batches  batchFinder
	subjects subjectFinder
	faculty  facultyFinder
	slots    timeSlotFinder
}

// NewReferenceService constructs the service.
func NewReferenceService(batches batchFinder, subjects subjectFinder, faculty facultyFinder, slots timeSlotFinder) *ReferenceService {
	return &ReferenceService{batches: batches, subjects: subjects, faculty: faculty, slots: slots}
}

// BatchExists resolves the batch id.
func (s *ReferenceService) BatchExists(ctx context.Context, id string) error {
	_, err := s.batches.FindByID(ctx, id)
	return err
}

// SubjectExists resolves the subject id.
func (s *ReferenceService) SubjectExists(ctx context.Context, id string) error {
	_, err := s.subjects.FindByID(ctx, id)
	return err
}

// FacultyExists resolves the faculty id.
func (s *ReferenceService) FacultyExists(ctx context.Context, id string) error {
	_, err := s.faculty.FindByID(ctx, id)
	return err
}

// TimeSlotExists resolves the time slot id.
func (s *ReferenceService) TimeSlotExists(ctx context.Context, id string) error {
	_, err := s.slots.FindByID(ctx, id)
	return err
}
