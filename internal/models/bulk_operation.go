package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// BulkOperationKind enumerates the four supported bulk mutations.
type BulkOperationKind string

const (
	BulkKindClone          BulkOperationKind = "CLONE"
	BulkKindFacultyReplace BulkOperationKind = "FACULTY_REPLACE"
	BulkKindReschedule     BulkOperationKind = "RESCHEDULE"
	BulkKindTemplateApply  BulkOperationKind = "TEMPLATE_APPLY"
)

// BulkOperationStatus captures the lifecycle of a tracked operation.
type BulkOperationStatus string

const (
	BulkStatusPending   BulkOperationStatus = "PENDING"
	BulkStatusRunning   BulkOperationStatus = "RUNNING"
	BulkStatusCompleted BulkOperationStatus = "COMPLETED"
	BulkStatusFailed    BulkOperationStatus = "FAILED"
	BulkStatusCancelled BulkOperationStatus = "CANCELLED"
)

// Terminal reports whether the status is final.
func (s BulkOperationStatus) Terminal() bool {
	switch s {
	case BulkStatusCompleted, BulkStatusFailed, BulkStatusCancelled:
		return true
	}
	return false
}

// ConflictPolicy decides what happens to entries carrying blocking conflicts.
type ConflictPolicy string

const (
	PolicyStop     ConflictPolicy = "STOP"
	PolicySkip     ConflictPolicy = "SKIP"
	PolicyOverride ConflictPolicy = "OVERRIDE"
)

// ValidConflictPolicy reports whether p is recognised. Empty means default.
func ValidConflictPolicy(p ConflictPolicy) bool {
	switch p {
	case "", PolicyStop, PolicySkip, PolicyOverride:
		return true
	}
	return false
}

// BulkItemResult records the fate of one projected entry.
type BulkItemResult struct {
	Index     int            `json:"index"`
	EntryID   string         `json:"entry_id,omitempty"`
	Outcome   string         `json:"outcome"` // created | updated | skipped | forced | dropped
	Reason    string         `json:"reason,omitempty"`
	Conflicts []ConflictInfo `json:"conflicts,omitempty"`
}

// BulkOperation is the persisted audit record of a bulk mutation. Status is
// polled via normal reads so progress survives process restarts.
type BulkOperation struct {
	ID              string              `db:"id" json:"id"`
	Kind            BulkOperationKind   `db:"kind" json:"kind"`
	RequestedBy     string              `db:"requested_by" json:"requested_by"`
	Status          BulkOperationStatus `db:"status" json:"status"`
	Progress        int                 `db:"progress" json:"progress"`
	Params          BulkParams          `db:"params" json:"params"`
	Results         BulkResults         `db:"results" json:"results"`
	ErrorMessage    *string             `db:"error_message" json:"error_message,omitempty"`
	CancelRequested bool                `db:"cancel_requested" json:"cancel_requested"`
	CreatedAt       time.Time           `db:"created_at" json:"created_at"`
	StartedAt       *time.Time          `db:"started_at" json:"started_at,omitempty"`
	FinishedAt      *time.Time          `db:"finished_at" json:"finished_at,omitempty"`
}

// BulkParams stores the submitted request as JSONB for auditability.
type BulkParams map[string]any

// Value marshals params for persistence.
func (p BulkParams) Value() (driver.Value, error) {
	if p == nil {
		p = BulkParams{}
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal bulk params: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB payloads into the params map.
func (p *BulkParams) Scan(value interface{}) error {
	return scanJSON(value, p, "BulkParams")
}

// BulkResults stores per-item outcomes as JSONB.
type BulkResults []BulkItemResult

// Value marshals results for persistence.
func (r BulkResults) Value() (driver.Value, error) {
	if r == nil {
		r = BulkResults{}
	}
	data, err := json.Marshal(r)
	if err != nil {
		return nil, fmt.Errorf("marshal bulk results: %w", err)
	}
	return data, nil
}

// Scan unmarshals JSONB payloads into the results slice.
func (r *BulkResults) Scan(value interface{}) error {
	return scanJSON(value, r, "BulkResults")
}

func scanJSON(value interface{}, dest interface{}, label string) error {
	if value == nil {
		return nil
	}
	var data []byte
	switch v := value.(type) {
	case []byte:
		data = v
	case string:
		data = []byte(v)
	default:
		return fmt.Errorf("unsupported type %T for %s", value, label)
	}
	if len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("unmarshal %s: %w", label, err)
	}
	return nil
}
