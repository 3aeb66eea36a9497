package models

import "time"

// RecurrencePattern controls how the generator steps between candidate dates.
type RecurrencePattern string

const (
	RecurrenceDaily   RecurrencePattern = "DAILY"
	RecurrenceWeekly  RecurrencePattern = "WEEKLY"
	RecurrenceMonthly RecurrencePattern = "MONTHLY"
)

// EndCondition determines when generation stops.
type EndCondition string

const (
	EndConditionSemesterEnd   EndCondition = "SEMESTER_END"
	EndConditionHoursComplete EndCondition = "HOURS_COMPLETE"
	EndConditionSpecificDate  EndCondition = "SPECIFIC_DATE"
)

// TimetableTemplate is a rule that expands into dated timetable entries.
// Generated entries note their template id but may outlive the template.
type TimetableTemplate struct {
	ID         string            `db:"id" json:"id"`
	Name       string            `db:"name" json:"name"`
	BatchID    string            `db:"batch_id" json:"batch_id"`
	SubjectID  string            `db:"subject_id" json:"subject_id"`
	FacultyID  string            `db:"faculty_id" json:"faculty_id"`
	TimeSlotID string            `db:"time_slot_id" json:"time_slot_id"`
	DayOfWeek  string            `db:"day_of_week" json:"day_of_week"`
	Pattern    RecurrencePattern `db:"pattern" json:"pattern"`
	StartDate  time.Time         `db:"start_date" json:"start_date"`
	EndDate    *time.Time        `db:"end_date" json:"end_date,omitempty"`
	EndsWhen   EndCondition      `db:"ends_when" json:"ends_when"`
	TotalHours *float64          `db:"total_hours" json:"total_hours,omitempty"`
	Active     bool              `db:"active" json:"active"`
	CreatedBy  string            `db:"created_by" json:"created_by"`
	CreatedAt  time.Time         `db:"created_at" json:"created_at"`
	UpdatedAt  time.Time         `db:"updated_at" json:"updated_at"`
}

// Validate enforces the cross-field rules the schema cannot express.
func (t TimetableTemplate) Validate() error {
	switch t.Pattern {
	case RecurrenceDaily, RecurrenceWeekly, RecurrenceMonthly:
	default:
		return errField("pattern must be DAILY, WEEKLY, or MONTHLY")
	}
	if !ValidDay(t.DayOfWeek) {
		return errField("day_of_week is not a valid day name")
	}
	switch t.EndsWhen {
	case EndConditionSemesterEnd:
		if t.EndDate == nil {
			return errField("end_date is required for SEMESTER_END")
		}
	case EndConditionHoursComplete:
		if t.TotalHours == nil || *t.TotalHours <= 0 {
			return errField("total_hours must be positive for HOURS_COMPLETE")
		}
	case EndConditionSpecificDate:
		if t.EndDate == nil {
			return errField("end_date is required for SPECIFIC_DATE")
		}
	default:
		return errField("ends_when must be SEMESTER_END, HOURS_COMPLETE, or SPECIFIC_DATE")
	}
	return nil
}

type fieldError string

func (e fieldError) Error() string { return string(e) }

func errField(msg string) error { return fieldError(msg) }
