package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/campuskit/timetable-api/internal/models"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
)

type undoLedger interface {
	Create(ctx context.Context, op *models.UndoOperation) error
	GetByID(ctx context.Context, id string) (*models.UndoOperation, error)
	Delete(ctx context.Context, id string) error
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

type entryRestorer interface {
	FindByID(ctx context.Context, id string) (*models.TimetableEntry, error)
	Create(ctx context.Context, entry *models.TimetableEntry) error
	Update(ctx context.Context, entry *models.TimetableEntry) error
}

type holidayRestorer interface {
	FindHolidayByID(ctx context.Context, id string) (*models.Holiday, error)
	CreateHoliday(ctx context.Context, holiday *models.Holiday) error
	ReactivateHoliday(ctx context.Context, id string) error
}

// UndoResult reports a successful reversal.
type UndoResult struct {
	EntityType models.UndoEntityType `json:"entity_type"`
	EntityID   string                `json:"entity_id"`
	Metadata   models.UndoMetadata   `json:"metadata,omitempty"`
}

// UndoService is the ledger of reversible deletions. Records are consumed by
// exactly one successful undo, scoped to the requester who created them, and
// swept once their TTL passes. Only timetable entries and holidays have
// restore handlers; every other entity type fails loudly.
type UndoService struct {
	ledger   undoLedger
	entries  entryRestorer
	holidays holidayRestorer
	metrics  *MetricsService
	ttlCap   time.Duration
	logger   *zap.Logger
}

// NewUndoService constructs the service. ttlCap bounds caller-chosen expiries.
func NewUndoService(ledger undoLedger, entries entryRestorer, holidays holidayRestorer, metrics *MetricsService, ttlCap time.Duration, logger *zap.Logger) *UndoService {
	if ttlCap <= 0 {
		ttlCap = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UndoService{ledger: ledger, entries: entries, holidays: holidays, metrics: metrics, ttlCap: ttlCap, logger: logger}
}

// RecordDeletion captures a pre-mutation snapshot and returns the ledger id.
// The TTL is clamped to the configured cap.
func (s *UndoService) RecordDeletion(ctx context.Context, entityType models.UndoEntityType, entityID string, snapshot []byte, metadata models.UndoMetadata, ttl time.Duration, requester string) (string, error) {
	if ttl <= 0 || ttl > s.ttlCap {
		ttl = s.ttlCap
	}
	now := time.Now().UTC()
	op := &models.UndoOperation{
		EntityType:  entityType,
		EntityID:    entityID,
		Snapshot:    models.UndoSnapshot(snapshot),
		Metadata:    metadata,
		RequestedBy: requester,
		CreatedAt:   now,
		ExpiresAt:   now.Add(ttl),
	}
	if err := s.ledger.Create(ctx, op); err != nil {
		return "", appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to record undo snapshot")
	}
	return op.ID, nil
}

// Undo reverses the recorded deletion. The ledger record is deleted on
// success; a lost delete race means another call already consumed it and the
// caller gets NotFound.
func (s *UndoService) Undo(ctx context.Context, undoID, requester string) (*UndoResult, error) {
	op, err := s.ledger.GetByID(ctx, undoID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordUndo("not_found")
			return nil, appErrors.Clone(appErrors.ErrNotFound, "undo operation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load undo operation")
	}
	if op.RequestedBy != requester {
		s.metrics.RecordUndo("not_found")
		return nil, appErrors.Clone(appErrors.ErrNotFound, "undo operation not found")
	}
	if op.Expired(time.Now().UTC()) {
		if err := s.ledger.Delete(ctx, undoID); err != nil && !errors.Is(err, sql.ErrNoRows) {
			s.logger.Warn("failed to purge expired undo record", zap.String("undo_id", undoID), zap.Error(err))
		}
		s.metrics.RecordUndo("expired")
		return nil, appErrors.Clone(appErrors.ErrExpired, "undo window has expired")
	}

	switch op.EntityType {
	case models.UndoEntityTimetableEntry:
		err = s.restoreEntry(ctx, op)
	case models.UndoEntityHoliday:
		err = s.restoreHoliday(ctx, op)
	default:
		s.metrics.RecordUndo("unsupported")
		return nil, appErrors.Clone(appErrors.ErrNotImplemented, fmt.Sprintf("undo for entity type %q is not implemented", op.EntityType))
	}
	if err != nil {
		s.metrics.RecordUndo("failed")
		return nil, err
	}

	if err := s.ledger.Delete(ctx, undoID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			s.metrics.RecordUndo("not_found")
			return nil, appErrors.Clone(appErrors.ErrNotFound, "undo operation already consumed")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to consume undo record")
	}

	s.metrics.RecordUndo("restored")
	s.logger.Info("undo applied",
		zap.String("undo_id", undoID),
		zap.String("entity_type", string(op.EntityType)),
		zap.String("entity_id", op.EntityID))
	return &UndoResult{EntityType: op.EntityType, EntityID: op.EntityID, Metadata: op.Metadata}, nil
}

// restoreEntry writes the snapshot back under the original id so references
// to the entry stay valid. A row modified in place is updated; a missing row
// is re-created.
func (s *UndoService) restoreEntry(ctx context.Context, op *models.UndoOperation) error {
	var entry models.TimetableEntry
	if err := json.Unmarshal(op.Snapshot, &entry); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "undo snapshot is corrupt")
	}
	entry.ID = op.EntityID
	entry.Active = true

	_, err := s.entries.FindByID(ctx, op.EntityID)
	switch {
	case err == nil:
		if err := s.entries.Update(ctx, &entry); err != nil {
			return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to restore timetable entry")
		}
	case errors.Is(err, sql.ErrNoRows):
		if err := s.entries.Create(ctx, &entry); err != nil {
			return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to restore timetable entry")
		}
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load timetable entry")
	}
	return nil
}

func (s *UndoService) restoreHoliday(ctx context.Context, op *models.UndoOperation) error {
	_, err := s.holidays.FindHolidayByID(ctx, op.EntityID)
	switch {
	case err == nil:
		if err := s.holidays.ReactivateHoliday(ctx, op.EntityID); err != nil {
			return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to restore holiday")
		}
	case errors.Is(err, sql.ErrNoRows):
		var holiday models.Holiday
		if err := json.Unmarshal(op.Snapshot, &holiday); err != nil {
			return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "undo snapshot is corrupt")
		}
		holiday.ID = op.EntityID
		holiday.Active = true
		if err := s.holidays.CreateHoliday(ctx, &holiday); err != nil {
			return appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to restore holiday")
		}
	default:
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load holiday")
	}
	return nil
}

// StartSweeper launches the periodic purge of expired, unconsumed records.
// It stops when the context is cancelled.
func (s *UndoService) StartSweeper(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				purged, err := s.ledger.DeleteExpired(context.Background(), time.Now().UTC())
				if err != nil {
					s.logger.Warn("undo sweep failed", zap.Error(err))
					continue
				}
				if purged > 0 {
					s.logger.Debug("undo sweep purged expired records", zap.Int64("count", purged))
				}
			}
		}
	}()
}

// clampUndoTTL resolves a caller-requested expiry in seconds against the
// configured cap. Zero or negative means "use the cap"; anything above the
// cap is clamped down to it.
func clampUndoTTL(requestedSeconds int, limit time.Duration) time.Duration {
	if requestedSeconds <= 0 {
		return limit
	}
	requested := time.Duration(requestedSeconds) * time.Second
	if requested > limit {
		return limit
	}
	return requested
}

func marshalSnapshot(v interface{}) ([]byte, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to snapshot entity")
	}
	return data, nil
}
