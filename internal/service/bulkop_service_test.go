package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/campuskit/timetable-api/internal/dto"
	"github.com/campuskit/timetable-api/internal/models"
	"github.com/campuskit/timetable-api/pkg/config"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
)

func TestBulkOpServiceCloneDryRunProjectsWithoutPersisting(t *testing.T) {
	f := newBulkFixture(t, &occupancyStub{}, &calendarFactsStub{}, config.BulkOpsConfig{})
	f.entries.byBatch = []models.TimetableEntry{
		lessonEntry("batch-src", "slot-1", "MONDAY", nil),
		lessonEntry("batch-src", "slot-2", "MONDAY", nil),
	}

	resp, err := f.service.Clone(context.Background(), dto.CloneRequest{
		SourceBatchID:   "batch-src",
		TargetBatchID:   "batch-tgt",
		PreserveFaculty: true,
		Options:         dto.BulkOptions{DryRun: true},
	}, "user-1")
	require.NoError(t, err)
	assert.Empty(t, resp.OperationID)
	require.NotNil(t, resp.Preview)
	require.Len(t, resp.Preview.Projected, 2)
	for _, projected := range resp.Preview.Projected {
		assert.Equal(t, "batch-tgt", projected.BatchID)
		assert.NotEqual(t, "batch-src-slot-1-MONDAY", projected.ID)
	}
	assert.Empty(t, f.ops.ops, "dry run must not create an operation record")
}

func TestBulkOpServiceCloneValidateOnlyReturnsReportOnly(t *testing.T) {
	f := newBulkFixture(t, &occupancyStub{}, &calendarFactsStub{}, config.BulkOpsConfig{})
	f.entries.byBatch = []models.TimetableEntry{lessonEntry("batch-src", "slot-1", "MONDAY", nil)}

	resp, err := f.service.Clone(context.Background(), dto.CloneRequest{
		SourceBatchID:   "batch-src",
		TargetBatchID:   "batch-tgt",
		PreserveFaculty: true,
		Options:         dto.BulkOptions{ValidateOnly: true},
	}, "user-1")
	require.NoError(t, err)
	require.NotNil(t, resp.Preview)
	require.NotNil(t, resp.Preview.Report)
	assert.Empty(t, resp.Preview.Projected)
	assert.Empty(t, resp.Preview.Items)
}

func TestBulkOpServiceCloneStopPolicyRejectsWithPreview(t *testing.T) {
	blocker := lessonEntry("batch-tgt", "slot-1", "MONDAY", nil)
	f := newBulkFixture(t, &occupancyStub{batch: []models.TimetableEntry{blocker}}, &calendarFactsStub{}, config.BulkOpsConfig{})
	f.entries.byBatch = []models.TimetableEntry{
		lessonEntry("batch-src", "slot-1", "MONDAY", nil),
		lessonEntry("batch-src", "slot-2", "MONDAY", nil),
	}

	resp, err := f.service.Clone(context.Background(), dto.CloneRequest{
		SourceBatchID:   "batch-src",
		TargetBatchID:   "batch-tgt",
		PreserveFaculty: true,
	}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, "1 of 2 entries conflict; no changes were made", appErrors.FromError(err).Message)
	require.NotNil(t, resp.Preview)
	assert.Len(t, resp.Preview.Items, 2)
	assert.Empty(t, f.ops.ops, "stop policy must not create an operation record")
}

func TestBulkOpServiceCloneConvertsLessonsWhenFacultyNotPreserved(t *testing.T) {
	f := newBulkFixture(t, &occupancyStub{}, &calendarFactsStub{}, config.BulkOpsConfig{})
	f.entries.byBatch = []models.TimetableEntry{lessonEntry("batch-src", "slot-1", "MONDAY", nil)}

	resp, err := f.service.Clone(context.Background(), dto.CloneRequest{
		SourceBatchID: "batch-src",
		TargetBatchID: "batch-tgt",
		Options:       dto.BulkOptions{DryRun: true},
	}, "user-1")
	require.NoError(t, err)
	require.Len(t, resp.Preview.Projected, 1)
	projected := resp.Preview.Projected[0]
	assert.Nil(t, projected.SubjectID)
	assert.Nil(t, projected.FacultyID)
	require.NotNil(t, projected.CustomTitle)
	assert.Equal(t, "Mathematics (unassigned)", *projected.CustomTitle)
}

func TestBulkOpServiceCloneRejectsSameSourceAndTarget(t *testing.T) {
	f := newBulkFixture(t, &occupancyStub{}, &calendarFactsStub{}, config.BulkOpsConfig{})

	_, err := f.service.Clone(context.Background(), dto.CloneRequest{
		SourceBatchID: "batch-1",
		TargetBatchID: "batch-1",
	}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBulkOpServiceRejectsDryRunCombinedWithValidateOnly(t *testing.T) {
	f := newBulkFixture(t, &occupancyStub{}, &calendarFactsStub{}, config.BulkOpsConfig{})

	_, err := f.service.Clone(context.Background(), dto.CloneRequest{
		SourceBatchID: "batch-src",
		TargetBatchID: "batch-tgt",
		Options:       dto.BulkOptions{DryRun: true, ValidateOnly: true},
	}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBulkOpServiceCloneRejectsOversizedProjection(t *testing.T) {
	f := newBulkFixture(t, &occupancyStub{}, &calendarFactsStub{}, config.BulkOpsConfig{MaxBatchSize: 1})
	f.entries.byBatch = []models.TimetableEntry{
		lessonEntry("batch-src", "slot-1", "MONDAY", nil),
		lessonEntry("batch-src", "slot-2", "MONDAY", nil),
	}

	_, err := f.service.Clone(context.Background(), dto.CloneRequest{
		SourceBatchID:   "batch-src",
		TargetBatchID:   "batch-tgt",
		PreserveFaculty: true,
		Options:         dto.BulkOptions{DryRun: true},
	}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestBulkOpServiceSkipPolicyMarksConflictedItems(t *testing.T) {
	blocker := lessonEntry("batch-tgt", "slot-1", "MONDAY", nil)
	f := newBulkFixture(t, &occupancyStub{batch: []models.TimetableEntry{blocker}}, &calendarFactsStub{}, config.BulkOpsConfig{})
	f.entries.byBatch = []models.TimetableEntry{
		lessonEntry("batch-src", "slot-1", "MONDAY", nil),
		lessonEntry("batch-src", "slot-2", "MONDAY", nil),
	}

	resp, err := f.service.Clone(context.Background(), dto.CloneRequest{
		SourceBatchID:   "batch-src",
		TargetBatchID:   "batch-tgt",
		PreserveFaculty: true,
		Options:         dto.BulkOptions{DryRun: true, ConflictPolicy: models.PolicySkip},
	}, "user-1")
	require.NoError(t, err)
	require.Len(t, resp.Preview.Items, 2)
	assert.Equal(t, "skipped", resp.Preview.Items[0].Outcome)
	assert.Equal(t, "blocking conflicts under skip policy", resp.Preview.Items[0].Reason)
	assert.Empty(t, resp.Preview.Items[1].Outcome)
}

func TestBulkOpServiceOverridePolicyForcesConflictedItems(t *testing.T) {
	blocker := lessonEntry("batch-tgt", "slot-1", "MONDAY", nil)
	f := newBulkFixture(t, &occupancyStub{batch: []models.TimetableEntry{blocker}}, &calendarFactsStub{}, config.BulkOpsConfig{})
	f.entries.byBatch = []models.TimetableEntry{lessonEntry("batch-src", "slot-1", "MONDAY", nil)}

	resp, err := f.service.Clone(context.Background(), dto.CloneRequest{
		SourceBatchID:   "batch-src",
		TargetBatchID:   "batch-tgt",
		PreserveFaculty: true,
		Options:         dto.BulkOptions{DryRun: true, ConflictPolicy: models.PolicyOverride},
	}, "user-1")
	require.NoError(t, err)
	require.Len(t, resp.Preview.Items, 1)
	assert.Equal(t, "forced", resp.Preview.Items[0].Outcome)
	require.NotEmpty(t, resp.Preview.Items[0].Conflicts)
}

func TestBulkOpServiceSubmitMarksFailedWhenQueueUnavailable(t *testing.T) {
	// Start is never called, so dispatch must fail and the record must land
	// in a terminal status.
	f := newBulkFixture(t, &occupancyStub{}, &calendarFactsStub{}, config.BulkOpsConfig{})
	f.entries.byBatch = []models.TimetableEntry{lessonEntry("batch-src", "slot-1", "MONDAY", nil)}

	_, err := f.service.Clone(context.Background(), dto.CloneRequest{
		SourceBatchID:   "batch-src",
		TargetBatchID:   "batch-tgt",
		PreserveFaculty: true,
	}, "user-1")
	require.Error(t, err)
	require.NotNil(t, f.ops.terminal)
	assert.Equal(t, models.BulkStatusFailed, f.ops.terminal.status)
	require.NotNil(t, f.ops.terminal.errMessage)
	assert.Equal(t, "background queue unavailable", *f.ops.terminal.errMessage)
}

func TestBulkOpServiceExecuteCommitsAllItems(t *testing.T) {
	f := newBulkFixture(t, &occupancyStub{}, &calendarFactsStub{}, config.BulkOpsConfig{})
	f.ops.seed("op-1", models.BulkStatusPending)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	plan := execPlan{OperationID: "op-1", Kind: models.BulkKindClone, RequestedBy: "user-1", Items: []workItem{
		{Index: 0, Action: actionCreate, Entry: lessonEntry("batch-tgt", "slot-1", "MONDAY", nil)},
		{Index: 1, Action: actionCreate, Entry: lessonEntry("batch-tgt", "slot-2", "MONDAY", nil)},
	}}
	f.service.execute(context.Background(), plan)

	require.NotNil(t, f.ops.terminal)
	assert.Equal(t, models.BulkStatusCompleted, f.ops.terminal.status)
	assert.Equal(t, 100, f.ops.terminal.progress)
	require.Len(t, f.ops.terminal.results, 2)
	assert.Equal(t, "created", f.ops.terminal.results[0].Outcome)
	assert.Equal(t, "created", f.ops.terminal.results[1].Outcome)
	assert.Len(t, f.entries.created, 2)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestBulkOpServiceExecuteCancelsBetweenChunks(t *testing.T) {
	f := newBulkFixture(t, &occupancyStub{}, &calendarFactsStub{}, config.BulkOpsConfig{ChunkSize: 1})
	f.ops.seed("op-1", models.BulkStatusPending)
	f.ops.cancelAt = 2
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	plan := execPlan{OperationID: "op-1", Kind: models.BulkKindClone, RequestedBy: "user-1", Items: []workItem{
		{Index: 0, Action: actionCreate, Entry: lessonEntry("batch-tgt", "slot-1", "MONDAY", nil)},
		{Index: 1, Action: actionCreate, Entry: lessonEntry("batch-tgt", "slot-2", "MONDAY", nil)},
	}}
	f.service.execute(context.Background(), plan)

	require.NotNil(t, f.ops.terminal)
	assert.Equal(t, models.BulkStatusCancelled, f.ops.terminal.status)
	assert.Equal(t, 50, f.ops.terminal.progress)
	for _, result := range f.ops.terminal.results {
		assert.Equal(t, "skipped", result.Outcome)
		assert.Equal(t, "operation CANCELLED before commit", result.Reason)
	}
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestBulkOpServiceExecuteFailureRollsBackEverything(t *testing.T) {
	f := newBulkFixture(t, &occupancyStub{}, &calendarFactsStub{}, config.BulkOpsConfig{})
	f.ops.seed("op-1", models.BulkStatusPending)
	f.entries.failCreateAt = 2
	f.mock.ExpectBegin()
	f.mock.ExpectRollback()

	plan := execPlan{OperationID: "op-1", Kind: models.BulkKindClone, RequestedBy: "user-1", Items: []workItem{
		{Index: 0, Action: actionCreate, Entry: lessonEntry("batch-tgt", "slot-1", "MONDAY", nil)},
		{Index: 1, Action: actionCreate, Entry: lessonEntry("batch-tgt", "slot-2", "MONDAY", nil)},
	}}
	f.service.execute(context.Background(), plan)

	require.NotNil(t, f.ops.terminal)
	assert.Equal(t, models.BulkStatusFailed, f.ops.terminal.status)
	require.NotNil(t, f.ops.terminal.errMessage)
	assert.Equal(t, "insert failed", *f.ops.terminal.errMessage)
	for _, result := range f.ops.terminal.results {
		assert.Equal(t, "skipped", result.Outcome)
		assert.Equal(t, "operation FAILED before commit", result.Reason)
	}
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestBulkOpServiceRescheduleMapDropsOverflowPositions(t *testing.T) {
	f := newBulkFixture(t, &occupancyStub{}, &calendarFactsStub{}, config.BulkOpsConfig{})
	monday := time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC)
	tuesday := time.Date(2025, 8, 5, 0, 0, 0, 0, time.UTC)
	f.entries.dated = []models.TimetableEntry{
		lessonEntry("batch-1", "slot-1", "MONDAY", &monday),
		lessonEntry("batch-1", "slot-1", "TUESDAY", &tuesday),
	}

	// The target window is Saturday through Monday; with weekends excluded
	// only one eligible date remains, so the second source date overflows.
	resp, err := f.service.Reschedule(context.Background(), dto.RescheduleRequest{
		SourceStart: monday,
		SourceEnd:   tuesday,
		TargetStart: time.Date(2025, 8, 9, 0, 0, 0, 0, time.UTC),
		TargetEnd:   time.Date(2025, 8, 11, 0, 0, 0, 0, time.UTC),
		MoveType:    dto.MoveTypeMap,
		Options:     dto.BulkOptions{DryRun: true, ExcludeWeekends: true},
	}, "user-1")
	require.NoError(t, err)
	require.Len(t, resp.Preview.Projected, 1)
	require.NotNil(t, resp.Preview.Projected[0].Date)
	assert.Equal(t, time.Date(2025, 8, 11, 0, 0, 0, 0, time.UTC), *resp.Preview.Projected[0].Date)
	assert.Equal(t, "MONDAY", resp.Preview.Projected[0].DayOfWeek)

	require.Len(t, resp.Preview.Items, 2)
	assert.Empty(t, resp.Preview.Items[0].Outcome)
	assert.Equal(t, "dropped", resp.Preview.Items[1].Outcome)
	assert.Equal(t, "target range has no eligible date at this position", resp.Preview.Items[1].Reason)
}

func TestBulkOpServiceRescheduleShiftSkipsBlackedOutTargets(t *testing.T) {
	monday := time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC)
	calendar := &calendarFactsStub{holidays: map[string][]models.Holiday{
		"2025-08-11": {{Name: "Founders Day"}},
	}}
	f := newBulkFixture(t, &occupancyStub{}, calendar, config.BulkOpsConfig{})
	f.entries.dated = []models.TimetableEntry{lessonEntry("batch-1", "slot-1", "MONDAY", &monday)}

	resp, err := f.service.Reschedule(context.Background(), dto.RescheduleRequest{
		SourceStart: monday,
		SourceEnd:   time.Date(2025, 8, 8, 0, 0, 0, 0, time.UTC),
		TargetStart: time.Date(2025, 8, 11, 0, 0, 0, 0, time.UTC),
		TargetEnd:   time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC),
		MoveType:    dto.MoveTypeShift,
		Options:     dto.BulkOptions{DryRun: true, RespectBlackouts: true},
	}, "user-1")
	require.NoError(t, err)
	require.Len(t, resp.Preview.Items, 1)
	assert.Equal(t, "skipped", resp.Preview.Items[0].Outcome)
	assert.Equal(t, "target date is a holiday: Founders Day", resp.Preview.Items[0].Reason)
}

func TestBulkOpServiceOverridePolicySkipsIntraRequestDuplicates(t *testing.T) {
	f := newBulkFixture(t, &occupancyStub{}, &calendarFactsStub{}, config.BulkOpsConfig{})
	f.entries.byBatch = []models.TimetableEntry{
		lessonEntry("batch-src", "slot-1", "MONDAY", nil),
		lessonEntry("batch-src", "slot-1", "MONDAY", nil),
	}

	// Both sources project onto the same target position. The duplicate has
	// no stored entry to supersede, so forcing it would only fail at commit.
	resp, err := f.service.Clone(context.Background(), dto.CloneRequest{
		SourceBatchID:   "batch-src",
		TargetBatchID:   "batch-tgt",
		PreserveFaculty: true,
		Options:         dto.BulkOptions{DryRun: true, ConflictPolicy: models.PolicyOverride},
	}, "user-1")
	require.NoError(t, err)
	require.Len(t, resp.Preview.Items, 2)
	assert.Empty(t, resp.Preview.Items[0].Outcome)
	assert.Equal(t, "skipped", resp.Preview.Items[1].Outcome)
	assert.Equal(t, "duplicates entry 0 of this request", resp.Preview.Items[1].Reason)
}

func TestBulkOpServiceExecuteFinalizesAfterShutdownSignal(t *testing.T) {
	f := newBulkFixture(t, &occupancyStub{}, &calendarFactsStub{}, config.BulkOpsConfig{})
	f.ops.seed("op-1", models.BulkStatusPending)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	plan := execPlan{OperationID: "op-1", Kind: models.BulkKindClone, RequestedBy: "user-1", Items: []workItem{
		{Index: 0, Action: actionCreate, Entry: lessonEntry("batch-tgt", "slot-1", "MONDAY", nil)},
	}}
	f.service.execute(ctx, plan)

	// MarkTerminal rejects a dead context; the record still lands FAILED
	// because finalisation detaches from the worker context.
	require.NotNil(t, f.ops.terminal)
	assert.Equal(t, models.BulkStatusFailed, f.ops.terminal.status)
	require.NotNil(t, f.ops.terminal.errMessage)
	assert.Contains(t, *f.ops.terminal.errMessage, "context canceled")
}

func TestBulkOpServiceRecoverStrandedFailsLeftoverRecords(t *testing.T) {
	f := newBulkFixture(t, &occupancyStub{}, &calendarFactsStub{}, config.BulkOpsConfig{})
	f.ops.seed("op-1", models.BulkStatusPending)
	f.ops.seed("op-2", models.BulkStatusRunning)
	f.ops.seed("op-3", models.BulkStatusCompleted)

	count, err := f.service.RecoverStranded(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)
	assert.Equal(t, models.BulkStatusFailed, f.ops.ops["op-1"].Status)
	assert.Equal(t, models.BulkStatusFailed, f.ops.ops["op-2"].Status)
	assert.Equal(t, models.BulkStatusCompleted, f.ops.ops["op-3"].Status)
	require.NotNil(t, f.ops.ops["op-1"].ErrorMessage)
	assert.Equal(t, "interrupted by service restart", *f.ops.ops["op-1"].ErrorMessage)
}

func TestBulkOpServiceExecuteRecordsSupersessionUndoWithPlanTTL(t *testing.T) {
	f := newBulkFixture(t, &occupancyStub{}, &calendarFactsStub{}, config.BulkOpsConfig{})
	f.ops.seed("op-1", models.BulkStatusPending)
	f.mock.ExpectBegin()
	f.mock.ExpectCommit()

	victim := lessonEntry("batch-tgt", "slot-1", "MONDAY", nil)
	victim.ID = "victim-1"
	forced := workItem{
		Index:     0,
		Action:    actionCreate,
		Entry:     lessonEntry("batch-tgt", "slot-1", "MONDAY", nil),
		Outcome:   outcomeForced,
		Supersede: []string{"victim-1"},
		Conflicts: []models.ConflictInfo{{
			Type:     models.ConflictBatchDoubleBooking,
			Severity: models.SeverityError,
			Entries:  []models.TimetableEntry{victim},
		}},
	}
	plan := execPlan{OperationID: "op-1", Kind: models.BulkKindClone, RequestedBy: "user-1", UndoTTL: 90 * time.Second, Items: []workItem{forced}}
	f.service.execute(context.Background(), plan)

	require.NotNil(t, f.ops.terminal)
	assert.Equal(t, models.BulkStatusCompleted, f.ops.terminal.status)
	assert.Equal(t, []string{"victim-1"}, f.entries.deactivated)
	assert.Equal(t, "victim-1", f.undo.entityID)
	assert.Equal(t, 90*time.Second, f.undo.ttl)
	assert.Equal(t, "user-1", f.undo.requester)
	assert.NoError(t, f.mock.ExpectationsWereMet())
}

func TestBulkOpServiceRescheduleShiftDetectsSlotHeldBySkippedEntry(t *testing.T) {
	stayMonday := time.Date(2025, 8, 4, 0, 0, 0, 0, time.UTC)
	moveMonday := time.Date(2025, 8, 11, 0, 0, 0, 0, time.UTC)
	staying := lessonEntry("batch-1", "slot-1", "MONDAY", &stayMonday)
	staying.ID = "staying"
	moving := lessonEntry("batch-1", "slot-1", "MONDAY", &moveMonday)
	moving.ID = "moving"

	// Shifting back one week sends "staying" onto a holiday, so it keeps its
	// original slot, and sends "moving" onto that exact slot.
	calendar := &calendarFactsStub{holidays: map[string][]models.Holiday{
		"2025-07-28": {{Name: "Summer Break"}},
	}}
	f := newBulkFixture(t, &occupancyStub{batch: []models.TimetableEntry{staying, moving}}, calendar, config.BulkOpsConfig{})
	f.entries.dated = []models.TimetableEntry{staying, moving}

	_, err := f.service.Reschedule(context.Background(), dto.RescheduleRequest{
		SourceStart: stayMonday,
		SourceEnd:   time.Date(2025, 8, 15, 0, 0, 0, 0, time.UTC),
		TargetStart: time.Date(2025, 7, 28, 0, 0, 0, 0, time.UTC),
		TargetEnd:   time.Date(2025, 8, 8, 0, 0, 0, 0, time.UTC),
		MoveType:    dto.MoveTypeShift,
		Options:     dto.BulkOptions{RespectBlackouts: true},
	}, "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
	assert.Equal(t, "1 of 1 entries conflict; no changes were made", appErrors.FromError(err).Message)
}

func TestBulkOpServiceCancelRejectsTerminalOperation(t *testing.T) {
	f := newBulkFixture(t, &occupancyStub{}, &calendarFactsStub{}, config.BulkOpsConfig{})
	f.ops.seed("op-1", models.BulkStatusCompleted)

	_, err := f.service.Cancel(context.Background(), "op-1", "user-1")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErrors.FromError(err).Code)
}

// --- Fixtures ---

type bulkFixture struct {
	service *BulkOpService
	entries *bulkEntryStoreStub
	ops     *opStoreStub
	undo    *undoRecorderStub
	mock    sqlmock.Sqlmock
}

func newBulkFixture(t *testing.T, occupancy *occupancyStub, calendar *calendarFactsStub, cfg config.BulkOpsConfig) *bulkFixture {
	t.Helper()
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	entries := &bulkEntryStoreStub{db: sqlx.NewDb(db, "sqlmock")}
	ops := &opStoreStub{ops: map[string]*models.BulkOperation{}}
	undo := &undoRecorderStub{}
	detector := NewConflictService(occupancy, calendar, nil, nil)
	svc := NewBulkOpService(entries, ops, failingTemplateStub{}, bulkSubjectStub{}, referenceOKStub{},
		detector, nil, calendar, undo, nil, nil, nil, cfg, time.Minute, nil)
	return &bulkFixture{service: svc, entries: entries, ops: ops, undo: undo, mock: mock}
}

type bulkEntryStoreStub struct {
	db *sqlx.DB

	byBatch   []models.TimetableEntry
	byFaculty []models.TimetableEntry
	dated     []models.TimetableEntry

	created      []models.TimetableEntry
	deactivated  []string
	createCalls  int
	failCreateAt int
}

func (s *bulkEntryStoreStub) BeginTxx(ctx context.Context) (*sqlx.Tx, error) {
	return s.db.BeginTxx(ctx, nil)
}

func (s *bulkEntryStoreStub) ListActiveByBatch(_ context.Context, _ string, _, _ *time.Time) ([]models.TimetableEntry, error) {
	return s.byBatch, nil
}

func (s *bulkEntryStoreStub) ListActiveByFaculty(_ context.Context, _ string, _ *time.Time, _ []string) ([]models.TimetableEntry, error) {
	return s.byFaculty, nil
}

func (s *bulkEntryStoreStub) ListActiveDated(_ context.Context, _, _ time.Time, _ []string) ([]models.TimetableEntry, error) {
	return s.dated, nil
}

func (s *bulkEntryStoreStub) CreateWithTx(_ context.Context, _ *sqlx.Tx, entry *models.TimetableEntry) error {
	s.createCalls++
	if s.failCreateAt > 0 && s.createCalls == s.failCreateAt {
		return errors.New("insert failed")
	}
	s.created = append(s.created, *entry)
	return nil
}

func (s *bulkEntryStoreStub) ReplaceFacultyWithTx(_ context.Context, _ *sqlx.Tx, _ []string, _ string) error {
	return nil
}

func (s *bulkEntryStoreStub) MoveDateWithTx(_ context.Context, _ *sqlx.Tx, _ string, _ time.Time, _ string) error {
	return nil
}

func (s *bulkEntryStoreStub) DeactivateWithTx(_ context.Context, _ *sqlx.Tx, id string) error {
	s.deactivated = append(s.deactivated, id)
	return nil
}

type terminalRecord struct {
	status     models.BulkOperationStatus
	progress   int
	results    models.BulkResults
	errMessage *string
}

type opStoreStub struct {
	ops      map[string]*models.BulkOperation
	next     int
	terminal *terminalRecord

	cancelAt    int
	cancelCalls int
}

func (s *opStoreStub) seed(id string, status models.BulkOperationStatus) {
	s.ops[id] = &models.BulkOperation{ID: id, Status: status}
}

func (s *opStoreStub) Create(_ context.Context, op *models.BulkOperation) error {
	s.next++
	if op.ID == "" {
		op.ID = fmt.Sprintf("op-%d", s.next)
	}
	copied := *op
	s.ops[op.ID] = &copied
	return nil
}

func (s *opStoreStub) GetByID(_ context.Context, id string) (*models.BulkOperation, error) {
	op, ok := s.ops[id]
	if !ok {
		return nil, sql.ErrNoRows
	}
	copied := *op
	return &copied, nil
}

func (s *opStoreStub) ListByRequester(_ context.Context, _ string, _ int) ([]models.BulkOperation, error) {
	list := make([]models.BulkOperation, 0, len(s.ops))
	for _, op := range s.ops {
		list = append(list, *op)
	}
	return list, nil
}

func (s *opStoreStub) MarkRunning(_ context.Context, id string) error {
	op, ok := s.ops[id]
	if !ok || op.Status != models.BulkStatusPending {
		return sql.ErrNoRows
	}
	op.Status = models.BulkStatusRunning
	return nil
}

func (s *opStoreStub) UpdateProgress(_ context.Context, id string, progress int) error {
	if op, ok := s.ops[id]; ok {
		op.Progress = progress
	}
	return nil
}

func (s *opStoreStub) MarkTerminal(ctx context.Context, id string, status models.BulkOperationStatus, progress int, results models.BulkResults, errMessage *string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.terminal = &terminalRecord{status: status, progress: progress, results: results, errMessage: errMessage}
	if op, ok := s.ops[id]; ok {
		op.Status = status
		op.Progress = progress
	}
	return nil
}

func (s *opStoreStub) RequestCancel(_ context.Context, id string) error {
	if op, ok := s.ops[id]; ok {
		op.CancelRequested = true
	}
	return nil
}

func (s *opStoreStub) CancelRequested(_ context.Context, _ string) (bool, error) {
	s.cancelCalls++
	return s.cancelAt > 0 && s.cancelCalls >= s.cancelAt, nil
}

func (s *opStoreStub) FailStranded(_ context.Context, message string) (int64, error) {
	var count int64
	for _, op := range s.ops {
		if op.Status == models.BulkStatusPending || op.Status == models.BulkStatusRunning {
			op.Status = models.BulkStatusFailed
			msg := message
			op.ErrorMessage = &msg
			count++
		}
	}
	return count, nil
}

type failingTemplateStub struct{}

func (failingTemplateStub) FindByID(_ context.Context, _ string) (*models.TimetableTemplate, error) {
	return nil, sql.ErrNoRows
}

type bulkSubjectStub struct{}

func (bulkSubjectStub) FindByID(_ context.Context, _ string) (*models.Subject, error) {
	return &models.Subject{ID: "subj-1", Name: "Mathematics"}, nil
}
