package dto

import (
	"time"

	"github.com/campuskit/timetable-api/internal/models"
)

// LessonPayload assigns a subject/faculty pair to an entry.
type LessonPayload struct {
	SubjectID string `json:"subjectId" validate:"required"`
	FacultyID string `json:"facultyId" validate:"required"`
}

// EventPayload assigns a custom titled event to an entry.
type EventPayload struct {
	Title string `json:"title" validate:"required"`
	Color string `json:"color"`
}

// EntryPayload is one proposed timetable entry. Exactly one of Lesson or
// Event must be set.
type EntryPayload struct {
	BatchID    string         `json:"batchId" validate:"required"`
	TimeSlotID string         `json:"timeSlotId" validate:"required"`
	DayOfWeek  string         `json:"dayOfWeek" validate:"required"`
	Date       *time.Time     `json:"date"`
	EntryType  string         `json:"entryType"`
	Notes      string         `json:"notes"`
	Lesson     *LessonPayload `json:"lesson,omitempty"`
	Event      *EventPayload  `json:"event,omitempty"`
}

// CreateEntryRequest creates a single timetable entry.
type CreateEntryRequest struct {
	EntryPayload
}

// ValidateEntriesRequest runs conflict detection over proposed entries
// without persisting anything.
type ValidateEntriesRequest struct {
	Entries []EntryPayload `json:"entries" validate:"required,min=1,dive"`
}

// UpdateEntryRequest moves or reassigns an existing entry. Nil fields are
// left unchanged.
type UpdateEntryRequest struct {
	TimeSlotID *string        `json:"timeSlotId"`
	DayOfWeek  *string        `json:"dayOfWeek"`
	Date       *time.Time     `json:"date"`
	EntryType  *string        `json:"entryType"`
	Notes      *string        `json:"notes"`
	Lesson     *LessonPayload `json:"lesson,omitempty"`
	Event      *EventPayload  `json:"event,omitempty"`
}

// EntryListQuery filters timetable entry listings.
type EntryListQuery struct {
	BatchID   string `form:"batchId"`
	FacultyID string `form:"facultyId"`
	TimeSlot  string `form:"timeSlotId"`
	DayOfWeek string `form:"dayOfWeek"`
	DateFrom  string `form:"dateFrom"`
	DateTo    string `form:"dateTo"`
	EntryType string `form:"entryType"`
	Active    string `form:"active"`
	Page      int    `form:"page"`
	PageSize  int    `form:"pageSize"`
}

// EntryResponse wraps a created/updated entry together with any
// warning-severity conflicts that were accepted.
type EntryResponse struct {
	Entry    *models.TimetableEntry `json:"entry"`
	Warnings []models.ConflictInfo  `json:"warnings,omitempty"`
}

// DeleteEntryResponse returns the undo handle for a deletion.
type DeleteEntryResponse struct {
	UndoID           string `json:"undoId,omitempty"`
	ExpiresInSeconds int    `json:"expiresInSeconds,omitempty"`
}
