package models

import "time"

// AuditAction names the recorded engine actions.
type AuditAction string

const (
	AuditActionEntryCreate    AuditAction = "ENTRY_CREATE"
	AuditActionEntryUpdate    AuditAction = "ENTRY_UPDATE"
	AuditActionEntryDelete    AuditAction = "ENTRY_DELETE"
	AuditActionBulkSubmit     AuditAction = "BULK_SUBMIT"
	AuditActionBulkCancel     AuditAction = "BULK_CANCEL"
	AuditActionUndo           AuditAction = "UNDO"
	AuditActionHolidayCreate  AuditAction = "HOLIDAY_CREATE"
	AuditActionHolidayDelete  AuditAction = "HOLIDAY_DELETE"
	AuditActionTemplateCreate AuditAction = "TEMPLATE_CREATE"
	AuditActionTemplateDelete AuditAction = "TEMPLATE_DELETE"
)

// AuditLog attributes an engine mutation to a principal.
type AuditLog struct {
	ID         string      `db:"id" json:"id"`
	UserID     *string     `db:"user_id" json:"user_id,omitempty"`
	Action     AuditAction `db:"action" json:"action"`
	Resource   string      `db:"resource" json:"resource"`
	ResourceID *string     `db:"resource_id" json:"resource_id,omitempty"`
	OldValues  []byte      `db:"old_values" json:"old_values,omitempty"`
	NewValues  []byte      `db:"new_values" json:"new_values,omitempty"`
	CreatedAt  time.Time   `db:"created_at" json:"created_at"`
}
