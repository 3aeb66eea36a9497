package models

import "time"

// EntryType classifies a timetable entry.
type EntryType string

const (
	EntryTypeRegular EntryType = "REGULAR"
	EntryTypeMakeup  EntryType = "MAKEUP"
	EntryTypeExtra   EntryType = "EXTRA"
	EntryTypeExam    EntryType = "EXAM"
)

// ValidEntryType reports whether t is a recognised entry type.
func ValidEntryType(t EntryType) bool {
	switch t {
	case EntryTypeRegular, EntryTypeMakeup, EntryTypeExtra, EntryTypeExam:
		return true
	}
	return false
}

// TimetableEntry is one scheduled occurrence for a batch at a time slot.
// Exactly one of (SubjectID+FacultyID) or CustomTitle is populated; the
// EntryAssignment variant enforces this at the service boundary and the
// database check constraint enforces it at rest. A nil Date means a weekly
// recurring entry; a concrete Date means a dated instance.
type TimetableEntry struct {
	ID          string     `db:"id" json:"id"`
	BatchID     string     `db:"batch_id" json:"batch_id"`
	SubjectID   *string    `db:"subject_id" json:"subject_id,omitempty"`
	FacultyID   *string    `db:"faculty_id" json:"faculty_id,omitempty"`
	CustomTitle *string    `db:"custom_title" json:"custom_title,omitempty"`
	CustomColor *string    `db:"custom_color" json:"custom_color,omitempty"`
	TimeSlotID  string     `db:"time_slot_id" json:"time_slot_id"`
	DayOfWeek   string     `db:"day_of_week" json:"day_of_week"`
	Date        *time.Time `db:"date" json:"date,omitempty"`
	EntryType   EntryType  `db:"entry_type" json:"entry_type"`
	Active      bool       `db:"active" json:"active"`
	Notes       string     `db:"notes" json:"notes"`
	TemplateID  *string    `db:"template_id" json:"template_id,omitempty"`
	CreatedBy   string     `db:"created_by" json:"created_by"`
	CreatedAt   time.Time  `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time  `db:"updated_at" json:"updated_at"`
}

// LessonAssignment carries the subject/faculty pair of a regular lesson.
type LessonAssignment struct {
	SubjectID string `json:"subject_id" validate:"required"`
	FacultyID string `json:"faculty_id" validate:"required"`
}

// EventAssignment carries the title/color of a custom batch event.
type EventAssignment struct {
	Title string `json:"title" validate:"required"`
	Color string `json:"color"`
}

// EntryAssignment is the tagged variant an entry is built from: exactly one
// of Lesson or Event is set.
type EntryAssignment struct {
	Lesson *LessonAssignment `json:"lesson,omitempty"`
	Event  *EventAssignment  `json:"event,omitempty"`
}

// Valid reports whether exactly one variant is populated.
func (a EntryAssignment) Valid() bool {
	return (a.Lesson != nil) != (a.Event != nil)
}

// Assignment reconstructs the tagged variant from a stored row.
func (e TimetableEntry) Assignment() EntryAssignment {
	if e.CustomTitle != nil {
		ev := EventAssignment{Title: *e.CustomTitle}
		if e.CustomColor != nil {
			ev.Color = *e.CustomColor
		}
		return EntryAssignment{Event: &ev}
	}
	var lesson LessonAssignment
	if e.SubjectID != nil {
		lesson.SubjectID = *e.SubjectID
	}
	if e.FacultyID != nil {
		lesson.FacultyID = *e.FacultyID
	}
	return EntryAssignment{Lesson: &lesson}
}

// ApplyAssignment writes the variant back onto the flat row, clearing the
// other arm.
func (e *TimetableEntry) ApplyAssignment(a EntryAssignment) {
	if a.Lesson != nil {
		subject := a.Lesson.SubjectID
		faculty := a.Lesson.FacultyID
		e.SubjectID = &subject
		e.FacultyID = &faculty
		e.CustomTitle = nil
		e.CustomColor = nil
		return
	}
	if a.Event != nil {
		title := a.Event.Title
		e.CustomTitle = &title
		if a.Event.Color != "" {
			color := a.Event.Color
			e.CustomColor = &color
		} else {
			e.CustomColor = nil
		}
		e.SubjectID = nil
		e.FacultyID = nil
	}
}

// SameOccupancy reports whether two entries claim the same batch seat:
// identical (batch, slot, day, date).
func (e TimetableEntry) SameOccupancy(other TimetableEntry) bool {
	return e.BatchID == other.BatchID &&
		e.TimeSlotID == other.TimeSlotID &&
		e.DayOfWeek == other.DayOfWeek &&
		sameDate(e.Date, other.Date)
}

// SameFacultyOccupancy reports whether two entries book the same faculty
// member at the same (slot, day, date). False when either has no faculty.
func (e TimetableEntry) SameFacultyOccupancy(other TimetableEntry) bool {
	if e.FacultyID == nil || other.FacultyID == nil {
		return false
	}
	return *e.FacultyID == *other.FacultyID &&
		e.TimeSlotID == other.TimeSlotID &&
		e.DayOfWeek == other.DayOfWeek &&
		sameDate(e.Date, other.Date)
}

func sameDate(a, b *time.Time) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// EntryFilter describes query params for listing timetable entries.
type EntryFilter struct {
	BatchID   string
	FacultyID string
	TimeSlot  string
	DayOfWeek string
	DateFrom  *time.Time
	DateTo    *time.Time
	EntryType EntryType
	Active    *bool
	Page      int
	PageSize  int
}
