package models

import "time"

// HolidayType classifies holiday scope.
type HolidayType string

const (
	HolidayTypeNational   HolidayType = "NATIONAL"
	HolidayTypeUniversity HolidayType = "UNIVERSITY"
	HolidayTypeDepartment HolidayType = "DEPARTMENT"
	HolidayTypeLocal      HolidayType = "LOCAL"
)

// ValidHolidayType reports whether t is a recognised holiday type.
func ValidHolidayType(t HolidayType) bool {
	switch t {
	case HolidayTypeNational, HolidayTypeUniversity, HolidayTypeDepartment, HolidayTypeLocal:
		return true
	}
	return false
}

// Holiday is a calendar fact the scheduling engine reads but never writes
// during conflict checks. DepartmentID nil means university-wide. Recurring
// holidays match on month and day regardless of year.
type Holiday struct {
	ID           string      `db:"id" json:"id"`
	Date         time.Time   `db:"date" json:"date"`
	Name         string      `db:"name" json:"name"`
	Type         HolidayType `db:"type" json:"type"`
	DepartmentID *string     `db:"department_id" json:"department_id,omitempty"`
	Recurring    bool        `db:"recurring" json:"recurring"`
	Active       bool        `db:"active" json:"active"`
	CreatedAt    time.Time   `db:"created_at" json:"created_at"`
	UpdatedAt    time.Time   `db:"updated_at" json:"updated_at"`
}

// AppliesTo reports whether the holiday covers the given department.
func (h Holiday) AppliesTo(departmentID string) bool {
	return h.DepartmentID == nil || *h.DepartmentID == departmentID
}

// ExamPeriod is a date range during which regular scheduling may be blocked.
type ExamPeriod struct {
	ID                   string    `db:"id" json:"id"`
	Name                 string    `db:"name" json:"name"`
	StartDate            time.Time `db:"start_date" json:"start_date"`
	EndDate              time.Time `db:"end_date" json:"end_date"`
	BlocksRegularClasses bool      `db:"blocks_regular_classes" json:"blocks_regular_classes"`
	DepartmentID         *string   `db:"department_id" json:"department_id,omitempty"`
	Active               bool      `db:"active" json:"active"`
	CreatedAt            time.Time `db:"created_at" json:"created_at"`
	UpdatedAt            time.Time `db:"updated_at" json:"updated_at"`
}

// Covers reports whether the period contains the given date (inclusive).
func (p ExamPeriod) Covers(date time.Time) bool {
	d := date.Truncate(24 * time.Hour)
	return !d.Before(p.StartDate.Truncate(24*time.Hour)) && !d.After(p.EndDate.Truncate(24*time.Hour))
}

// AppliesTo reports whether the period covers the given department.
func (p ExamPeriod) AppliesTo(departmentID string) bool {
	return p.DepartmentID == nil || *p.DepartmentID == departmentID
}
