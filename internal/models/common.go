package models

import "time"

// Pagination describes page metadata returned alongside list payloads.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"page_size"`
	TotalCount int `json:"total_count"`
}

// DayOfWeek names follow the uppercase convention used across the schema.
var dayNameIndex = map[string]int{
	"MONDAY":    1,
	"TUESDAY":   2,
	"WEDNESDAY": 3,
	"THURSDAY":  4,
	"FRIDAY":    5,
	"SATURDAY":  6,
	"SUNDAY":    7,
}

var dayIndexName = map[int]string{
	1: "MONDAY",
	2: "TUESDAY",
	3: "WEDNESDAY",
	4: "THURSDAY",
	5: "FRIDAY",
	6: "SATURDAY",
	7: "SUNDAY",
}

// DayIndex resolves an uppercase day name to ISO weekday (Monday=1).
// Returns 0 for unknown names.
func DayIndex(name string) int {
	return dayNameIndex[name]
}

// DayName resolves an ISO weekday index to its uppercase name.
func DayName(index int) string {
	return dayIndexName[index]
}

// DayNameOf resolves a calendar date to its uppercase day name.
func DayNameOf(t time.Time) string {
	index := int(t.Weekday())
	if index == 0 {
		index = 7
	}
	return dayIndexName[index]
}

// ValidDay reports whether the given name is a recognised day of week.
func ValidDay(name string) bool {
	_, ok := dayNameIndex[name]
	return ok
}
