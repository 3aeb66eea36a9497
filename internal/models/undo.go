package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// UndoEntityType names the entity kinds the ledger can restore.
type UndoEntityType string

const (
	UndoEntityTimetableEntry UndoEntityType = "timetable_entry"
	UndoEntityHoliday        UndoEntityType = "holiday"
)

// UndoOperation is a short-lived pre-mutation snapshot. It is consumed by
// exactly one successful undo and swept once expired.
type UndoOperation struct {
	ID          string         `db:"id" json:"id"`
	EntityType  UndoEntityType `db:"entity_type" json:"entity_type"`
	EntityID    string         `db:"entity_id" json:"entity_id"`
	Snapshot    UndoSnapshot   `db:"snapshot" json:"snapshot"`
	Metadata    UndoMetadata   `db:"metadata" json:"metadata"`
	RequestedBy string         `db:"requested_by" json:"requested_by"`
	CreatedAt   time.Time      `db:"created_at" json:"created_at"`
	ExpiresAt   time.Time      `db:"expires_at" json:"expires_at"`
}

// Expired reports whether the record is past its TTL at the given instant.
func (u UndoOperation) Expired(now time.Time) bool {
	return now.After(u.ExpiresAt)
}

// UndoSnapshot holds the full prior field values as JSONB.
type UndoSnapshot []byte

// Value passes the raw JSON through for persistence.
func (s UndoSnapshot) Value() (driver.Value, error) {
	if len(s) == 0 {
		return []byte("{}"), nil
	}
	if !json.Valid(s) {
		return nil, fmt.Errorf("undo snapshot is not valid JSON")
	}
	return []byte(s), nil
}

// Scan captures the stored JSON bytes.
func (s *UndoSnapshot) Scan(value interface{}) error {
	if value == nil {
		*s = nil
		return nil
	}
	switch v := value.(type) {
	case []byte:
		*s = append((*s)[:0], v...)
	case string:
		*s = UndoSnapshot(v)
	default:
		return fmt.Errorf("unsupported type %T for UndoSnapshot", value)
	}
	return nil
}

// UndoMetadata carries display hints for undo toasts (name, related ids).
type UndoMetadata map[string]string

// Value marshals metadata for persistence.
func (m UndoMetadata) Value() (driver.Value, error) {
	if m == nil {
		m = UndoMetadata{}
	}
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("marshal undo metadata: %w", err)
	}
	return data, nil
}

// Scan unmarshals metadata from JSONB.
func (m *UndoMetadata) Scan(value interface{}) error {
	return scanJSON(value, m, "UndoMetadata")
}
