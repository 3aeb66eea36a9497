package models

import "time"

// TimeSlot is a configured teaching period. Slots referenced by entries are
// never deleted, only deactivated.
type TimeSlot struct {
	ID          string    `db:"id" json:"id"`
	Name        string    `db:"name" json:"name"`
	StartMinute int       `db:"start_minute" json:"start_minute"`
	EndMinute   int       `db:"end_minute" json:"end_minute"`
	SortOrder   int       `db:"sort_order" json:"sort_order"`
	Active      bool      `db:"active" json:"active"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}

// DurationMinutes returns the slot length in minutes.
func (s TimeSlot) DurationMinutes() int {
	return s.EndMinute - s.StartMinute
}

// DurationHours returns the slot length in fractional hours, used by the
// recurrence generator's hours accounting.
func (s TimeSlot) DurationHours() float64 {
	return float64(s.DurationMinutes()) / 60.0
}
