package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"go.uber.org/zap"

	"github.com/campuskit/timetable-api/internal/dto"
	"github.com/campuskit/timetable-api/internal/models"
	"github.com/campuskit/timetable-api/pkg/config"
	appErrors "github.com/campuskit/timetable-api/pkg/errors"
	"github.com/campuskit/timetable-api/pkg/jobs"
)

const (
	actionCreate         = "create"
	actionReplaceFaculty = "replaceFaculty"
	actionMoveDate       = "moveDate"

	outcomeCreated = "created"
	outcomeUpdated = "updated"
	outcomeSkipped = "skipped"
	outcomeForced  = "forced"
	outcomeDropped = "dropped"
)

type entryBulkStore interface {
	BeginTxx(ctx context.Context) (*sqlx.Tx, error)
	ListActiveByBatch(ctx context.Context, batchID string, from, to *time.Time) ([]models.TimetableEntry, error)
	ListActiveByFaculty(ctx context.Context, facultyID string, effective *time.Time, batchIDs []string) ([]models.TimetableEntry, error)
	ListActiveDated(ctx context.Context, from, to time.Time, batchIDs []string) ([]models.TimetableEntry, error)
	CreateWithTx(ctx context.Context, tx *sqlx.Tx, entry *models.TimetableEntry) error
	ReplaceFacultyWithTx(ctx context.Context, tx *sqlx.Tx, entryIDs []string, newFacultyID string) error
	MoveDateWithTx(ctx context.Context, tx *sqlx.Tx, entryID string, newDate time.Time, newDay string) error
	DeactivateWithTx(ctx context.Context, tx *sqlx.Tx, id string) error
}

type bulkOperationStore interface {
	Create(ctx context.Context, op *models.BulkOperation) error
	GetByID(ctx context.Context, id string) (*models.BulkOperation, error)
	ListByRequester(ctx context.Context, requestedBy string, limit int) ([]models.BulkOperation, error)
	MarkRunning(ctx context.Context, id string) error
	UpdateProgress(ctx context.Context, id string, progress int) error
	MarkTerminal(ctx context.Context, id string, status models.BulkOperationStatus, progress int, results models.BulkResults, errMessage *string) error
	RequestCancel(ctx context.Context, id string) error
	CancelRequested(ctx context.Context, id string) (bool, error)
	FailStranded(ctx context.Context, message string) (int64, error)
}

type templateFinder interface {
	FindByID(ctx context.Context, id string) (*models.TimetableTemplate, error)
}

// workItem is one planned mutation inside a bulk run.
type workItem struct {
	Index     int                   `json:"index"`
	Action    string                `json:"action"`
	Entry     models.TimetableEntry `json:"entry"`
	Outcome   string                `json:"outcome"`
	Reason    string                `json:"reason,omitempty"`
	Conflicts []models.ConflictInfo `json:"conflicts,omitempty"`
	Supersede []string              `json:"supersede,omitempty"`
}

// execPlan is the job payload carrying a fully resolved bulk run.
type execPlan struct {
	OperationID string
	Kind        models.BulkOperationKind
	RequestedBy string
	UndoTTL     time.Duration
	Items       []workItem
}

// BulkOpService orchestrates the four bulk mutations. Every kind follows the
// same protocol: validate, project the resulting entries, run them through
// the conflict detector, honour dry-run/validate-only short circuits, then
// execute the surviving items inside a single transaction dispatched to the
// background queue. The persisted BulkOperation record is the source of
// truth for polling; it always reaches a terminal status.
type BulkOpService struct {
	entries   entryBulkStore
	ops       bulkOperationStore
	templates templateFinder
	subjects  subjectFinder
	refs      referenceChecker
	detector  *ConflictService
	generator *RecurrenceService
	calendar  calendarFacts
	undo      undoRecorder
	audit     auditor
	metrics   *MetricsService
	validator *validator.Validate
	logger    *zap.Logger

	queue     *jobs.Queue
	maxBatch  int
	chunkSize int
	retention int
	undoTTL   time.Duration
}

// NewBulkOpService constructs the engine and its background queue. Call
// Start before submitting operations and Stop on shutdown.
func NewBulkOpService(
	entries entryBulkStore,
	ops bulkOperationStore,
	templates templateFinder,
	subjects subjectFinder,
	refs referenceChecker,
	detector *ConflictService,
	generator *RecurrenceService,
	calendar calendarFacts,
	undo undoRecorder,
	audit auditor,
	metrics *MetricsService,
	validate *validator.Validate,
	cfg config.BulkOpsConfig,
	undoTTL time.Duration,
	logger *zap.Logger,
) *BulkOpService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &BulkOpService{
		entries:   entries,
		ops:       ops,
		templates: templates,
		subjects:  subjects,
		refs:      refs,
		detector:  detector,
		generator: generator,
		calendar:  calendar,
		undo:      undo,
		audit:     audit,
		metrics:   metrics,
		validator: validate,
		logger:    logger,
		maxBatch:  cfg.MaxBatchSize,
		chunkSize: cfg.ChunkSize,
		retention: cfg.RetentionLimit,
		undoTTL:   undoTTL,
	}
	if s.maxBatch <= 0 {
		s.maxBatch = 500
	}
	if s.chunkSize <= 0 {
		s.chunkSize = 50
	}
	s.queue = jobs.NewQueue("bulk-operations", s.handleJob, jobs.QueueConfig{
		Workers:    cfg.Workers,
		BufferSize: cfg.QueueBuffer,
		MaxRetries: 1,
		Logger:     logger,
	})
	return s
}

// Start launches the background workers.
func (s *BulkOpService) Start(ctx context.Context) {
	s.queue.Start(ctx)
}

// RecoverStranded fails any PENDING or RUNNING record left over from a
// previous process. Queued plans do not survive a restart, so those records
// would otherwise never reach a terminal status.
func (s *BulkOpService) RecoverStranded(ctx context.Context) (int64, error) {
	count, err := s.ops.FailStranded(ctx, "interrupted by service restart")
	if err != nil {
		return 0, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to recover stranded bulk operations")
	}
	if count > 0 {
		s.logger.Warn("failed stranded bulk operations from a previous run", zap.Int64("count", count))
	}
	return count, nil
}

// Stop drains the background workers.
func (s *BulkOpService) Stop() {
	s.queue.Stop()
}

// Clone copies active entries from one batch into another.
func (s *BulkOpService) Clone(ctx context.Context, req dto.CloneRequest, actorID string) (*dto.BulkSubmitResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid clone payload")
	}
	if req.SourceBatchID == req.TargetBatchID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "source and target batch must differ")
	}
	if err := s.checkPolicy(req.Options); err != nil {
		return nil, err
	}
	if err := s.refs.BatchExists(ctx, req.SourceBatchID); err != nil {
		return nil, referenceError(err, "batch", req.SourceBatchID)
	}
	if err := s.refs.BatchExists(ctx, req.TargetBatchID); err != nil {
		return nil, referenceError(err, "batch", req.TargetBatchID)
	}

	source, err := s.entries.ListActiveByBatch(ctx, req.SourceBatchID, req.DateFrom, req.DateTo)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load source batch entries")
	}
	if len(source) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "source batch has no active entries in the given range")
	}

	items := make([]workItem, 0, len(source))
	for i, src := range source {
		clone := src
		clone.ID = uuid.NewString()
		clone.BatchID = req.TargetBatchID
		clone.TemplateID = nil
		clone.CreatedBy = actorID
		clone.CreatedAt = time.Time{}
		if !req.PreserveFaculty && clone.SubjectID != nil {
			title, err := s.subjectTitle(ctx, *clone.SubjectID)
			if err != nil {
				return nil, err
			}
			clone.ApplyAssignment(models.EntryAssignment{Event: &models.EventAssignment{Title: title}})
		}
		items = append(items, workItem{Index: i, Action: actionCreate, Entry: clone})
	}

	return s.submit(ctx, models.BulkKindClone, items, nil, req.Options, bulkParams(req), actorID)
}

// FacultyReplace reassigns matching entries from one faculty member to another.
func (s *BulkOpService) FacultyReplace(ctx context.Context, req dto.FacultyReplaceRequest, actorID string) (*dto.BulkSubmitResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid faculty replace payload")
	}
	if req.CurrentFacultyID == req.NewFacultyID {
		return nil, appErrors.Clone(appErrors.ErrValidation, "current and new faculty must differ")
	}
	if err := s.checkPolicy(req.Options); err != nil {
		return nil, err
	}
	if err := s.refs.FacultyExists(ctx, req.CurrentFacultyID); err != nil {
		return nil, referenceError(err, "faculty", req.CurrentFacultyID)
	}
	if err := s.refs.FacultyExists(ctx, req.NewFacultyID); err != nil {
		return nil, referenceError(err, "faculty", req.NewFacultyID)
	}
	for _, batchID := range req.BatchIDs {
		if err := s.refs.BatchExists(ctx, batchID); err != nil {
			return nil, referenceError(err, "batch", batchID)
		}
	}

	matched, err := s.entries.ListActiveByFaculty(ctx, req.CurrentFacultyID, req.EffectiveDate, req.BatchIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load faculty entries")
	}
	if len(matched) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no active entries match the given faculty and scope")
	}

	newFaculty := req.NewFacultyID
	ignore := make([]string, 0, len(matched))
	items := make([]workItem, 0, len(matched))
	for i, src := range matched {
		updated := src
		updated.FacultyID = &newFaculty
		ignore = append(ignore, src.ID)
		items = append(items, workItem{Index: i, Action: actionReplaceFaculty, Entry: updated})
	}

	return s.submit(ctx, models.BulkKindFacultyReplace, items, ignore, req.Options, bulkParams(req), actorID)
}

// Reschedule moves dated entries from the source range into the target range.
func (s *BulkOpService) Reschedule(ctx context.Context, req dto.RescheduleRequest, actorID string) (*dto.BulkSubmitResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid reschedule payload")
	}
	if req.SourceEnd.Before(req.SourceStart) || req.TargetEnd.Before(req.TargetStart) {
		return nil, appErrors.Clone(appErrors.ErrValidation, "range end must be on or after range start")
	}
	if err := s.checkPolicy(req.Options); err != nil {
		return nil, err
	}
	for _, batchID := range req.BatchIDs {
		if err := s.refs.BatchExists(ctx, batchID); err != nil {
			return nil, referenceError(err, "batch", batchID)
		}
	}

	matched, err := s.entries.ListActiveDated(ctx, dateOnly(req.SourceStart), dateOnly(req.SourceEnd), req.BatchIDs)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load dated entries")
	}
	if len(matched) == 0 {
		return nil, appErrors.Clone(appErrors.ErrValidation, "no dated entries fall inside the source range")
	}

	var items []workItem
	var ignore []string
	switch req.MoveType {
	case dto.MoveTypeShift:
		items, ignore, err = s.projectShift(ctx, req, matched)
	case dto.MoveTypeMap:
		items, ignore, err = s.projectMap(ctx, req, matched)
	default:
		return nil, appErrors.Clone(appErrors.ErrValidation, "moveType must be shift or map")
	}
	if err != nil {
		return nil, err
	}

	return s.submit(ctx, models.BulkKindReschedule, items, ignore, req.Options, bulkParams(req), actorID)
}

// TemplateApply expands a template into each target batch and persists the
// resulting valid drafts.
func (s *BulkOpService) TemplateApply(ctx context.Context, req dto.TemplateApplyRequest, actorID string) (*dto.BulkSubmitResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid template apply payload")
	}
	if err := s.checkPolicy(req.Options); err != nil {
		return nil, err
	}

	tmpl, err := s.templates.FindByID(ctx, req.TemplateID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrReference, fmt.Sprintf("template %s not found", req.TemplateID))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load template")
	}
	if !tmpl.Active {
		return nil, appErrors.Clone(appErrors.ErrReference, fmt.Sprintf("template %s is inactive", req.TemplateID))
	}

	items := make([]workItem, 0, 32)
	index := 0
	for _, batchID := range req.TargetBatchIDs {
		if err := s.refs.BatchExists(ctx, batchID); err != nil {
			return nil, referenceError(err, "batch", batchID)
		}
		result, err := s.generator.Generate(ctx, tmpl, batchID, actorID)
		if err != nil {
			return nil, err
		}
		for _, draft := range result.Drafts {
			items = append(items, workItem{Index: index, Action: actionCreate, Entry: draft})
			index++
		}
		for _, skipped := range result.Skipped {
			items = append(items, workItem{
				Index:   index,
				Action:  actionCreate,
				Entry:   models.TimetableEntry{BatchID: batchID, Date: &skipped.Date},
				Outcome: outcomeDropped,
				Reason:  skipped.Reason,
			})
			index++
		}
		if result.CapReached {
			s.logger.Warn("template expansion capped during bulk apply",
				zap.String("template_id", tmpl.ID), zap.String("batch_id", batchID))
		}
	}

	return s.submit(ctx, models.BulkKindTemplateApply, items, nil, req.Options, bulkParams(req), actorID)
}

// GetOperation returns the tracked record for polling.
func (s *BulkOpService) GetOperation(ctx context.Context, id, requesterID string) (*models.BulkOperation, error) {
	op, err := s.ops.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "bulk operation not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bulk operation")
	}
	return op, nil
}

// ListOperations returns the requester's recent operations.
func (s *BulkOpService) ListOperations(ctx context.Context, requesterID string) ([]models.BulkOperation, error) {
	limit := s.retention
	if limit <= 0 {
		limit = 50
	}
	list, err := s.ops.ListByRequester(ctx, requesterID, limit)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list bulk operations")
	}
	return list, nil
}

// Cancel requests cooperative cancellation. The flag is consulted between
// transactional chunks; an operation already terminal is rejected.
func (s *BulkOpService) Cancel(ctx context.Context, id, requesterID string) (*models.BulkOperation, error) {
	op, err := s.GetOperation(ctx, id, requesterID)
	if err != nil {
		return nil, err
	}
	if op.Status.Terminal() {
		return nil, appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("operation is already %s", op.Status))
	}
	if err := s.ops.RequestCancel(ctx, id); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to request cancellation")
	}
	s.recordAudit(ctx, requesterID, models.AuditActionBulkCancel, "bulk_operation", id)
	return s.GetOperation(ctx, id, requesterID)
}

// submit runs the shared detect / short-circuit / enqueue protocol.
func (s *BulkOpService) submit(ctx context.Context, kind models.BulkOperationKind, items []workItem, ignoreIDs []string, opts dto.BulkOptions, params models.BulkParams, actorID string) (*dto.BulkSubmitResponse, error) {
	if len(items) > s.maxBatch {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("operation projects %d entries, exceeding the limit of %d", len(items), s.maxBatch))
	}

	policy := opts.ConflictPolicy
	if policy == "" {
		policy = models.PolicyStop
	}

	// Pre-dropped items (map overflow, generator skips) never reach detection.
	checkable := make([]int, 0, len(items))
	proposed := make([]models.TimetableEntry, 0, len(items))
	for i := range items {
		if items[i].Outcome == "" {
			checkable = append(checkable, i)
			proposed = append(proposed, items[i].Entry)
		}
	}

	report, err := s.detector.CheckEntries(ctx, proposed, Ignoring(ignoreIDs...))
	if err != nil {
		return nil, err
	}
	for pos, itemIdx := range checkable {
		items[itemIdx].Conflicts = report.Results[pos].Conflicts
	}

	if opts.ValidateOnly {
		return &dto.BulkSubmitResponse{Preview: &dto.BulkPreview{Report: report}}, nil
	}

	if report.HasErrors && policy == models.PolicyStop {
		return &dto.BulkSubmitResponse{Preview: &dto.BulkPreview{Report: report, Items: itemResults(items)}},
			appErrors.Clone(appErrors.ErrConflict, fmt.Sprintf("%d of %d entries conflict; no changes were made", report.ErrorCount(), len(proposed)))
	}

	// Resolve per-item fate under the chosen policy.
	for pos, itemIdx := range checkable {
		if report.Results[pos].Valid() {
			continue
		}
		item := &items[itemIdx]
		switch policy {
		case models.PolicySkip:
			item.Outcome = outcomeSkipped
			item.Reason = "blocking conflicts under skip policy"
		case models.PolicyOverride:
			// Duplicates within the same request have no stored entry to
			// supersede; forcing both would only trip the unique index at
			// commit. The first occurrence wins, later ones are skipped.
			if reason, dup := intraRequestDuplicate(item.Conflicts); dup {
				item.Outcome = outcomeSkipped
				item.Reason = reason
				continue
			}
			item.Outcome = outcomeForced
			for _, c := range item.Conflicts {
				if c.Severity != models.SeverityError {
					continue
				}
				for _, blocker := range c.Entries {
					item.Supersede = append(item.Supersede, blocker.ID)
				}
			}
		}
	}

	if opts.DryRun {
		return &dto.BulkSubmitResponse{Preview: &dto.BulkPreview{
			Projected: proposed,
			Items:     itemResults(items),
			Report:    report,
		}}, nil
	}

	op := &models.BulkOperation{
		Kind:        kind,
		RequestedBy: actorID,
		Status:      models.BulkStatusPending,
		Params:      params,
	}
	if err := s.ops.Create(ctx, op); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrStorage.Code, appErrors.ErrStorage.Status, "failed to create bulk operation record")
	}
	s.recordAudit(ctx, actorID, models.AuditActionBulkSubmit, "bulk_operation", op.ID)

	plan := execPlan{
		OperationID: op.ID,
		Kind:        kind,
		RequestedBy: actorID,
		UndoTTL:     clampUndoTTL(opts.UndoTTLSeconds, s.undoTTL),
		Items:       items,
	}
	if err := s.queue.Enqueue(jobs.Job{ID: op.ID, Type: string(kind), Payload: plan}); err != nil {
		msg := "background queue unavailable"
		_ = s.ops.MarkTerminal(ctx, op.ID, models.BulkStatusFailed, 0, nil, &msg)
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to dispatch bulk operation")
	}

	return &dto.BulkSubmitResponse{OperationID: op.ID, Status: models.BulkStatusPending}, nil
}

func (s *BulkOpService) handleJob(ctx context.Context, job jobs.Job) error {
	plan, ok := job.Payload.(execPlan)
	if !ok {
		s.logger.Error("bulk job carried an unexpected payload", zap.String("job_id", job.ID))
		return nil
	}
	s.execute(ctx, plan)
	return nil
}

// execute applies the plan inside one transaction. Skipped and dropped items
// are excluded from the transaction's scope up front; everything else
// persists together or not at all.
func (s *BulkOpService) execute(ctx context.Context, plan execPlan) {
	start := time.Now()
	if err := s.ops.MarkRunning(ctx, plan.OperationID); err != nil {
		s.logger.Warn("bulk operation not in a runnable state", zap.String("operation_id", plan.OperationID), zap.Error(err))
		return
	}

	pending := make([]int, 0, len(plan.Items))
	for i := range plan.Items {
		if plan.Items[i].Outcome == "" || plan.Items[i].Outcome == outcomeForced {
			pending = append(pending, i)
		}
	}

	tx, err := s.entries.BeginTxx(ctx)
	if err != nil {
		s.finish(ctx, plan, models.BulkStatusFailed, 0, start, err)
		return
	}

	processed := 0
	for chunkStart := 0; chunkStart < len(pending); chunkStart += s.chunkSize {
		cancelled, err := s.ops.CancelRequested(ctx, plan.OperationID)
		if err != nil {
			s.logger.Warn("failed to read cancel flag", zap.String("operation_id", plan.OperationID), zap.Error(err))
		}
		if cancelled {
			_ = tx.Rollback()
			s.finish(ctx, plan, models.BulkStatusCancelled, progressPercent(processed, len(pending)), start, nil)
			return
		}

		chunkEnd := chunkStart + s.chunkSize
		if chunkEnd > len(pending) {
			chunkEnd = len(pending)
		}
		for _, itemIdx := range pending[chunkStart:chunkEnd] {
			if err := s.applyItem(ctx, tx, &plan.Items[itemIdx]); err != nil {
				_ = tx.Rollback()
				s.finish(ctx, plan, models.BulkStatusFailed, progressPercent(processed, len(pending)), start, err)
				return
			}
			processed++
		}
		if err := s.ops.UpdateProgress(ctx, plan.OperationID, progressPercent(processed, len(pending))); err != nil {
			s.logger.Warn("failed to update progress", zap.String("operation_id", plan.OperationID), zap.Error(err))
		}
	}

	if err := tx.Commit(); err != nil {
		s.finish(ctx, plan, models.BulkStatusFailed, progressPercent(processed, len(pending)), start, err)
		return
	}
	s.finish(ctx, plan, models.BulkStatusCompleted, 100, start, nil)
}

func (s *BulkOpService) applyItem(ctx context.Context, tx *sqlx.Tx, item *workItem) error {
	// Forced items first retire the entries they collide with; the freed
	// slots carry undo snapshots so the supersession is reversible.
	for _, blockedID := range item.Supersede {
		if err := s.entries.DeactivateWithTx(ctx, tx, blockedID); err != nil {
			return err
		}
	}

	switch item.Action {
	case actionCreate:
		if err := s.entries.CreateWithTx(ctx, tx, &item.Entry); err != nil {
			return err
		}
		if item.Outcome == "" {
			item.Outcome = outcomeCreated
		}
	case actionReplaceFaculty:
		if item.Entry.FacultyID == nil {
			return fmt.Errorf("replace item %d has no faculty", item.Index)
		}
		if err := s.entries.ReplaceFacultyWithTx(ctx, tx, []string{item.Entry.ID}, *item.Entry.FacultyID); err != nil {
			return err
		}
		if item.Outcome == "" {
			item.Outcome = outcomeUpdated
		}
	case actionMoveDate:
		if item.Entry.Date == nil {
			return fmt.Errorf("move item %d has no date", item.Index)
		}
		if err := s.entries.MoveDateWithTx(ctx, tx, item.Entry.ID, *item.Entry.Date, item.Entry.DayOfWeek); err != nil {
			return err
		}
		if item.Outcome == "" {
			item.Outcome = outcomeUpdated
		}
	default:
		return fmt.Errorf("unknown bulk action %q", item.Action)
	}
	return nil
}

func (s *BulkOpService) finish(ctx context.Context, plan execPlan, status models.BulkOperationStatus, progress int, start time.Time, cause error) {
	// The worker context dies with the process signal; finalisation must
	// still land so the record reaches a terminal status.
	ctx = context.WithoutCancel(ctx)

	var errMessage *string
	if cause != nil {
		msg := cause.Error()
		errMessage = &msg
		s.logger.Error("bulk operation failed",
			zap.String("operation_id", plan.OperationID),
			zap.String("kind", string(plan.Kind)),
			zap.Error(cause))
	}

	results := itemResults(plan.Items)
	if status != models.BulkStatusCompleted {
		// A rolled back run persisted nothing; report planned outcomes as
		// not applied.
		for i := range results {
			if results[i].Outcome == outcomeCreated || results[i].Outcome == outcomeUpdated || results[i].Outcome == outcomeForced {
				results[i].Outcome = outcomeSkipped
				results[i].Reason = fmt.Sprintf("operation %s before commit", status)
			}
		}
	}

	if err := s.ops.MarkTerminal(ctx, plan.OperationID, status, progress, results, errMessage); err != nil {
		s.logger.Error("failed to finalise bulk operation", zap.String("operation_id", plan.OperationID), zap.Error(err))
	}

	if status == models.BulkStatusCompleted && s.undo != nil {
		s.recordSupersededUndo(ctx, plan)
	}

	s.metrics.RecordBulkOperation(string(plan.Kind), string(status), time.Since(start))
	if status == models.BulkStatusCompleted {
		tally := map[string]int{}
		for _, r := range results {
			tally[r.Outcome]++
		}
		for outcome, count := range tally {
			s.metrics.RecordBulkItems(string(plan.Kind), outcome, count)
		}
	}
}

// recordSupersededUndo snapshots entries that a forced run deactivated.
func (s *BulkOpService) recordSupersededUndo(ctx context.Context, plan execPlan) {
	for _, item := range plan.Items {
		for _, blockedID := range item.Supersede {
			snapshot := s.supersededSnapshot(item, blockedID)
			if snapshot == nil {
				continue
			}
			metadata := models.UndoMetadata{"operation_id": plan.OperationID, "superseded_by": item.Entry.ID}
			ttl := plan.UndoTTL
			if ttl <= 0 {
				ttl = s.undoTTL
			}
			if _, err := s.undo.RecordDeletion(ctx, models.UndoEntityTimetableEntry, blockedID, snapshot, metadata, ttl, plan.RequestedBy); err != nil {
				s.logger.Warn("failed to record supersession undo", zap.String("entry_id", blockedID), zap.Error(err))
			}
		}
	}
}

func (s *BulkOpService) supersededSnapshot(item workItem, blockedID string) []byte {
	for _, c := range item.Conflicts {
		for _, blocked := range c.Entries {
			if blocked.ID == blockedID {
				data, err := json.Marshal(blocked)
				if err != nil {
					return nil
				}
				return data
			}
		}
	}
	return nil
}

// projectShift applies a constant day offset to every matched entry.
func (s *BulkOpService) projectShift(ctx context.Context, req dto.RescheduleRequest, matched []models.TimetableEntry) ([]workItem, []string, error) {
	offset := int(dateOnly(req.TargetStart).Sub(dateOnly(req.SourceStart)).Hours() / 24)
	items := make([]workItem, 0, len(matched))
	ignore := make([]string, 0, len(matched))

	for i, src := range matched {
		moved := src
		newDate := dateOnly(src.Date.AddDate(0, 0, offset))
		moved.Date = &newDate
		moved.DayOfWeek = models.DayNameOf(newDate)

		item := workItem{Index: i, Action: actionMoveDate, Entry: moved}
		if reason, blocked, err := s.targetBlocked(ctx, newDate, src.BatchID, req.Options); err != nil {
			return nil, nil, err
		} else if blocked {
			item.Outcome = outcomeSkipped
			item.Reason = reason
		} else {
			// A skipped entry stays where it is, so its slot must still
			// count as occupied during detection.
			ignore = append(ignore, src.ID)
		}
		items = append(items, item)
	}
	return items, ignore, nil
}

// projectMap re-projects each source date onto the same ordinal position in
// the target range. Mapping is computed per batch; entries whose ordinal has
// no eligible target date are dropped with a recorded reason.
func (s *BulkOpService) projectMap(ctx context.Context, req dto.RescheduleRequest, matched []models.TimetableEntry) ([]workItem, []string, error) {
	byBatch := make(map[string][]int)
	for i, entry := range matched {
		byBatch[entry.BatchID] = append(byBatch[entry.BatchID], i)
	}
	batchIDs := make([]string, 0, len(byBatch))
	for batchID := range byBatch {
		batchIDs = append(batchIDs, batchID)
	}
	sort.Strings(batchIDs)

	items := make([]workItem, len(matched))
	ignore := make([]string, 0, len(matched))

	for _, batchID := range batchIDs {
		indices := byBatch[batchID]

		sourceDates := make([]time.Time, 0, len(indices))
		seen := map[string]bool{}
		for _, i := range indices {
			key := matched[i].Date.Format("2006-01-02")
			if !seen[key] {
				seen[key] = true
				sourceDates = append(sourceDates, dateOnly(*matched[i].Date))
			}
		}
		sort.Slice(sourceDates, func(a, b int) bool { return sourceDates[a].Before(sourceDates[b]) })

		targetDates, err := s.eligibleTargetDates(ctx, req, batchID)
		if err != nil {
			return nil, nil, err
		}

		mapping := make(map[string]*time.Time, len(sourceDates))
		for ordinal, src := range sourceDates {
			if ordinal < len(targetDates) {
				d := targetDates[ordinal]
				mapping[src.Format("2006-01-02")] = &d
			} else {
				mapping[src.Format("2006-01-02")] = nil
			}
		}

		for _, i := range indices {
			src := matched[i]
			target := mapping[src.Date.Format("2006-01-02")]
			if target == nil {
				// Dropped entries keep their original slots occupied, so
				// they stay visible to detection.
				items[i] = workItem{
					Index:   i,
					Action:  actionMoveDate,
					Entry:   src,
					Outcome: outcomeDropped,
					Reason:  "target range has no eligible date at this position",
				}
				continue
			}
			ignore = append(ignore, src.ID)
			moved := src
			moved.Date = target
			moved.DayOfWeek = models.DayNameOf(*target)
			items[i] = workItem{Index: i, Action: actionMoveDate, Entry: moved}
		}
	}
	return items, ignore, nil
}

// eligibleTargetDates walks the target range in order, honouring the weekend
// and blackout exclusions.
func (s *BulkOpService) eligibleTargetDates(ctx context.Context, req dto.RescheduleRequest, batchID string) ([]time.Time, error) {
	dates := make([]time.Time, 0, 16)
	for d := dateOnly(req.TargetStart); !d.After(dateOnly(req.TargetEnd)); d = d.AddDate(0, 0, 1) {
		_, blocked, err := s.targetBlocked(ctx, d, batchID, req.Options)
		if err != nil {
			return nil, err
		}
		if blocked {
			continue
		}
		dates = append(dates, d)
	}
	return dates, nil
}

func (s *BulkOpService) targetBlocked(ctx context.Context, date time.Time, batchID string, opts dto.BulkOptions) (string, bool, error) {
	if opts.ExcludeWeekends {
		switch date.Weekday() {
		case time.Saturday, time.Sunday:
			return "target date falls on a weekend", true, nil
		}
	}
	if opts.RespectBlackouts {
		holidays, err := s.calendar.HolidaysOn(ctx, date, batchID)
		if err != nil {
			return "", false, err
		}
		if len(holidays) > 0 {
			return fmt.Sprintf("target date is a holiday: %s", holidays[0].Name), true, nil
		}
		period, err := s.calendar.BlockingExamPeriod(ctx, date, batchID)
		if err != nil {
			return "", false, err
		}
		if period != nil {
			return fmt.Sprintf("target date is inside exam period: %s", period.Name), true, nil
		}
	}
	return "", false, nil
}

func (s *BulkOpService) subjectTitle(ctx context.Context, subjectID string) (string, error) {
	subject, err := s.subjects.FindByID(ctx, subjectID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", appErrors.Clone(appErrors.ErrReference, fmt.Sprintf("subject %s not found", subjectID))
		}
		return "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to resolve subject")
	}
	return subject.Name + " (unassigned)", nil
}

func (s *BulkOpService) checkPolicy(opts dto.BulkOptions) error {
	if !models.ValidConflictPolicy(opts.ConflictPolicy) {
		return appErrors.Clone(appErrors.ErrValidation, "conflictPolicy must be STOP, SKIP, or OVERRIDE")
	}
	if opts.DryRun && opts.ValidateOnly {
		return appErrors.Clone(appErrors.ErrValidation, "dryRun and validateOnly are mutually exclusive")
	}
	return nil
}

func (s *BulkOpService) recordAudit(ctx context.Context, actorID string, action models.AuditAction, resource, resourceID string) {
	if s.audit == nil {
		return
	}
	log := &models.AuditLog{Action: action, Resource: resource, ResourceID: &resourceID}
	if actorID != "" {
		log.UserID = &actorID
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to write audit log", zap.String("action", string(action)), zap.Error(err))
	}
}

// intraRequestDuplicate reports whether the item collides with an earlier
// entry of the same request. Such a collision cannot be overridden: there is
// no stored entry to supersede.
func intraRequestDuplicate(conflicts []models.ConflictInfo) (string, bool) {
	for _, c := range conflicts {
		if c.Severity != models.SeverityError {
			continue
		}
		if c.Type == models.ConflictInternalBatch || c.Type == models.ConflictInternalFaculty {
			if c.WithIndex != nil {
				return fmt.Sprintf("duplicates entry %d of this request", *c.WithIndex), true
			}
			return "duplicates an earlier entry of this request", true
		}
	}
	return "", false
}

func itemResults(items []workItem) models.BulkResults {
	results := make(models.BulkResults, 0, len(items))
	for _, item := range items {
		results = append(results, models.BulkItemResult{
			Index:     item.Index,
			EntryID:   item.Entry.ID,
			Outcome:   item.Outcome,
			Reason:    item.Reason,
			Conflicts: item.Conflicts,
		})
	}
	return results
}

func progressPercent(done, total int) int {
	if total == 0 {
		return 100
	}
	return done * 100 / total
}

func bulkParams(req any) models.BulkParams {
	data, err := json.Marshal(req)
	if err != nil {
		return models.BulkParams{}
	}
	params := models.BulkParams{}
	if err := json.Unmarshal(data, &params); err != nil {
		return models.BulkParams{}
	}
	return params
}
