package dto

import (
	"time"

	"github.com/campuskit/timetable-api/internal/models"
)

// BulkOptions is the options bag shared by all four bulk operation kinds.
type BulkOptions struct {
	DryRun           bool                  `json:"dryRun"`
	ValidateOnly     bool                  `json:"validateOnly"`
	ConflictPolicy   models.ConflictPolicy `json:"conflictPolicy"`
	ExcludeWeekends  bool                  `json:"excludeWeekends"`
	RespectBlackouts bool                  `json:"respectBlackouts"`
	UndoTTLSeconds   int                   `json:"undoTtlSeconds"`
}

// CloneRequest copies active entries from one batch into another.
type CloneRequest struct {
	SourceBatchID   string      `json:"sourceBatchId" validate:"required"`
	TargetBatchID   string      `json:"targetBatchId" validate:"required"`
	DateFrom        *time.Time  `json:"dateFrom"`
	DateTo          *time.Time  `json:"dateTo"`
	PreserveFaculty bool        `json:"preserveFaculty"`
	Options         BulkOptions `json:"options"`
}

// FacultyReplaceRequest reassigns entries from one faculty member to another.
type FacultyReplaceRequest struct {
	CurrentFacultyID string      `json:"currentFacultyId" validate:"required"`
	NewFacultyID     string      `json:"newFacultyId" validate:"required"`
	BatchIDs         []string    `json:"batchIds"`
	EffectiveDate    *time.Time  `json:"effectiveDate"`
	Options          BulkOptions `json:"options"`
}

// RescheduleMoveType selects how source dates map onto the target range.
const (
	MoveTypeShift = "shift"
	MoveTypeMap   = "map"
)

// RescheduleRequest moves dated entries from one date range to another.
type RescheduleRequest struct {
	SourceStart time.Time   `json:"sourceStart" validate:"required"`
	SourceEnd   time.Time   `json:"sourceEnd" validate:"required"`
	TargetStart time.Time   `json:"targetStart" validate:"required"`
	TargetEnd   time.Time   `json:"targetEnd" validate:"required"`
	BatchIDs    []string    `json:"batchIds"`
	MoveType    string      `json:"moveType" validate:"required,oneof=shift map"`
	Options     BulkOptions `json:"options"`
}

// TemplateApplyRequest expands a template into each target batch.
type TemplateApplyRequest struct {
	TemplateID     string      `json:"templateId" validate:"required"`
	TargetBatchIDs []string    `json:"targetBatchIds" validate:"required,min=1"`
	Options        BulkOptions `json:"options"`
}

// BulkPreview is the projected result set returned by dry-run and
// validate-only calls. Nothing in it has been persisted.
type BulkPreview struct {
	Projected []models.TimetableEntry `json:"projected,omitempty"`
	Items     []models.BulkItemResult `json:"items,omitempty"`
	Report    *models.ConflictReport  `json:"report,omitempty"`
}

// BulkSubmitResponse acknowledges a submitted bulk operation. Preview is set
// only for dry-run and validate-only calls, OperationID only for real runs.
type BulkSubmitResponse struct {
	OperationID string                     `json:"operationId,omitempty"`
	Status      models.BulkOperationStatus `json:"status,omitempty"`
	Preview     *BulkPreview               `json:"preview,omitempty"`
}

// TemplatePreviewResponse returns the expansion of a template without
// persisting anything.
type TemplatePreviewResponse struct {
	Drafts     []models.TimetableEntry `json:"drafts"`
	Skipped    []SkippedDate           `json:"skipped,omitempty"`
	TotalHours float64                 `json:"totalHours"`
	CapReached bool                    `json:"capReached"`
	Report     *models.ConflictReport  `json:"report,omitempty"`
}

// SkippedDate mirrors a generator skip for API payloads.
type SkippedDate struct {
	Date   time.Time `json:"date"`
	Reason string    `json:"reason"`
}
