package models

// ConflictType is the closed set of conflict classifications.
type ConflictType string

const (
	ConflictBatchDoubleBooking ConflictType = "BATCH_DOUBLE_BOOKING"
	ConflictFaculty            ConflictType = "FACULTY_CONFLICT"
	ConflictInternalBatch      ConflictType = "INTERNAL_BATCH_CONFLICT"
	ConflictInternalFaculty    ConflictType = "INTERNAL_FACULTY_CONFLICT"
	ConflictHolidayScheduling  ConflictType = "HOLIDAY_SCHEDULING"
	ConflictExamPeriod         ConflictType = "EXAM_PERIOD_CONFLICT"
	ConflictModuleOverlap      ConflictType = "MODULE_OVERLAP"
)

// ConflictSeverity distinguishes blocking errors from informational warnings.
type ConflictSeverity string

const (
	SeverityError   ConflictSeverity = "error"
	SeverityWarning ConflictSeverity = "warning"
)

// ConflictInfo is one detected conflict with its structured detail payload.
// The payload fields populated depend on Type: double-booking variants carry
// Entries, calendar variants carry Holiday or ExamPeriod, internal variants
// carry WithIndex (the earlier request position collided with).
type ConflictInfo struct {
	Type       ConflictType     `json:"type"`
	Severity   ConflictSeverity `json:"severity"`
	Message    string           `json:"message"`
	Entries    []TimetableEntry `json:"entries,omitempty"`
	Holiday    *Holiday         `json:"holiday,omitempty"`
	ExamPeriod *ExamPeriod      `json:"exam_period,omitempty"`
	WithIndex  *int             `json:"with_index,omitempty"`
}

// EntryConflicts pairs a proposed entry (by request position) with its
// detected conflicts.
type EntryConflicts struct {
	Index     int            `json:"index"`
	Entry     TimetableEntry `json:"entry"`
	Conflicts []ConflictInfo `json:"conflicts"`
}

// Valid reports whether the entry has no error-severity conflicts.
func (e EntryConflicts) Valid() bool {
	for _, c := range e.Conflicts {
		if c.Severity == SeverityError {
			return false
		}
	}
	return true
}

// ConflictReport aggregates detection results for an ordered proposal list.
type ConflictReport struct {
	Results     []EntryConflicts `json:"results"`
	HasErrors   bool             `json:"has_errors"`
	HasWarnings bool             `json:"has_warnings"`
}

// ValidEntries returns the entries with zero error-severity conflicts, in
// request order.
func (r ConflictReport) ValidEntries() []TimetableEntry {
	valid := make([]TimetableEntry, 0, len(r.Results))
	for _, res := range r.Results {
		if res.Valid() {
			valid = append(valid, res.Entry)
		}
	}
	return valid
}

// ErrorCount returns the number of entries carrying at least one error.
func (r ConflictReport) ErrorCount() int {
	count := 0
	for _, res := range r.Results {
		if !res.Valid() {
			count++
		}
	}
	return count
}
