// package tasks implements the reconciliation of source lists into destination lists.
//
// The core abstraction is Engine, which orchestrates extraction, snapshots, reconciliation, upserts and batched mutation.
// Operations emit progress updates via channels for non-blocking status reporting to CLI/UI layers.
package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/rostersync/internal/models"
	"github.com/desertthunder/rostersync/internal/services"
	"github.com/desertthunder/rostersync/internal/shared"
)

// Fatal error types, as reported to the administrator.
const (
	SourceErrorType      = "MonClub API Error"
	DestinationErrorType = "Brevo API Error"
	UnexpectedErrorType  = "Unexpected Error"
)

// ErrorType classifies a run-aborting error.
func ErrorType(err error) string {
	var apiErr *services.APIError
	switch {
	case errors.Is(err, shared.ErrSourceAuth), errors.Is(err, shared.ErrSourceLists):
		return SourceErrorType
	case errors.Is(err, shared.ErrFolderNotFound), errors.As(err, &apiErr):
		return DestinationErrorType
	default:
		return UnexpectedErrorType
	}
}

// Options configures an [Engine].
type Options struct {
	FolderName string   // destination folder holding the synced lists
	ListPrefix string   // prepended to source list names
	PageSize   int      // snapshot page size
	BatchSize  int      // membership batch size
	ListFilter []string // source list names to sync; empty means all
}

// OptionsFromConfig builds [Options] from the sync section of the config.
func OptionsFromConfig(cfg shared.SyncConfig) Options {
	return Options{
		FolderName: cfg.FolderName,
		ListPrefix: cfg.ListPrefix,
		PageSize:   cfg.PageSize,
		BatchSize:  cfg.BatchSize,
	}
}

// RunRecorder persists finished runs. Recording errors are logged and never fail a run.
type RunRecorder interface {
	RecordRun(run *models.SyncRun) error
}

// ListPlan is the reconciliation of one list computed without applying it.
type ListPlan struct {
	Report          models.ReconciliationReport
	DestinationName string
	Exists          bool // the destination list already exists
	ToAdd           []string
	ToRemove        []string
	Extract         ExtractStats
}

// DiffResult contains the plans of a dry run.
type DiffResult struct {
	Plans []ListPlan
	Run   *models.SyncRun
}

// Engine reconciles source lists into destination lists, one list at a time.
type Engine struct {
	source   services.SourceRegistry
	dest     services.Destination
	opts     Options
	logger   *log.Logger
	recorder RunRecorder

	snapshots *SnapshotReader
	mutator   *BatchMutator
	upserter  *Upserter
}

// NewEngine creates an engine over the given services.
func NewEngine(source services.SourceRegistry, dest services.Destination, opts Options, logger *log.Logger) *Engine {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	if opts.FolderName == "" {
		opts.FolderName = "MonClub"
	}
	snapshots := NewSnapshotReader(dest, opts.PageSize, logger)
	return &Engine{
		source:    source,
		dest:      dest,
		opts:      opts,
		logger:    logger,
		snapshots: snapshots,
		mutator:   NewBatchMutator(dest, snapshots, opts.BatchSize, logger),
		upserter:  NewUpserter(dest, logger),
	}
}

// WithRecorder sets the recorder finished runs are handed to.
func (e *Engine) WithRecorder(r RunRecorder) *Engine {
	e.recorder = r
	return e
}

// DestinationName returns the destination list name for a source list.
func (e *Engine) DestinationName(sourceName string) string {
	return e.opts.ListPrefix + sourceName
}

// sendProgress sends a progress update through the channel without blocking.
func (e *Engine) sendProgress(progress chan<- ProgressUpdate, update ProgressUpdate) {
	if progress == nil {
		return
	}
	select {
	case progress <- update:
	default:
	}
}

// sourceList is a top-level list with its extracted members.
type sourceList struct {
	list    models.SourceList
	members *models.MemberSet
	stats   ExtractStats
	err     error
}

// Run performs a full sync of every selected list.
//
// Only source authentication, the top-level list fetch, and a missing destination folder
// abort the run; every other failure is confined to its list, batch or contact.
// The returned run is never nil and holds the reports gathered so far, even on error.
func (e *Engine) Run(ctx context.Context, progress chan<- ProgressUpdate) (*models.SyncRun, error) {
	run := models.NewSyncRun(time.Now(), false)

	reports, err := e.run(ctx, progress)
	if err != nil {
		e.logger.Error("sync aborted", "type", ErrorType(err), "err", err)
		run.Fail(time.Now(), ErrorType(err), err, reports)
	} else {
		run.Complete(time.Now(), reports)
		s := run.Summary()
		e.logger.Info("sync completed", "lists", s.TotalLists, "synced", s.SyncedCount, "failed", s.FailedCount, "duration", run.Duration())
	}

	e.record(run)
	e.sendProgress(progress, completeUpdate(run))
	return run, err
}

func (e *Engine) run(ctx context.Context, progress chan<- ProgressUpdate) ([]models.ReconciliationReport, error) {
	lists, err := e.loadSource(ctx, progress)
	if err != nil {
		return nil, err
	}

	e.sendProgress(progress, resolveFolderUpdate(e.opts.FolderName))
	folderID, found, err := e.dest.FindFolder(ctx, e.opts.FolderName)
	if err != nil {
		return nil, fmt.Errorf("failed to look up folder %q: %w", e.opts.FolderName, err)
	}
	if !found {
		return nil, fmt.Errorf("%w: %q", shared.ErrFolderNotFound, e.opts.FolderName)
	}

	total := len(lists)
	reports := make([]models.ReconciliationReport, 0, total)
	for i, sl := range lists {
		if err := ctx.Err(); err != nil {
			return reports, fmt.Errorf("sync interrupted after %d of %d lists: %w", i, total, err)
		}

		report := e.syncList(ctx, progress, i+1, total, sl, folderID)
		reports = append(reports, report)
		e.sendProgress(progress, listDoneUpdate(i+1, total, report))
	}
	if err := ctx.Err(); err != nil {
		return reports, fmt.Errorf("sync interrupted after %d of %d lists: %w", total, total, err)
	}
	return reports, nil
}

// loadSource authenticates, selects the top-level lists and extracts their members.
// A member fetch failure is kept on its list rather than returned.
func (e *Engine) loadSource(ctx context.Context, progress chan<- ProgressUpdate) ([]sourceList, error) {
	e.sendProgress(progress, authenticateUpdate(e.source.Name()))
	if err := e.source.Authenticate(ctx); err != nil {
		if !errors.Is(err, shared.ErrSourceAuth) {
			err = fmt.Errorf("%w: %w", shared.ErrSourceAuth, err)
		}
		return nil, err
	}

	e.sendProgress(progress, fetchListsUpdate(e.source.Name()))
	all, err := e.source.FetchLists(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", shared.ErrSourceLists, err)
	}

	selected, err := e.selectLists(all)
	if err != nil {
		return nil, err
	}
	e.sendProgress(progress, foundListsUpdate(len(selected)))

	lists := make([]sourceList, 0, len(selected))
	for i, l := range selected {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("sync interrupted while fetching members: %w", err)
		}

		e.sendProgress(progress, fetchMembersUpdate(i+1, len(selected), l.Name))
		sl := sourceList{list: l}

		records, err := e.source.FetchMembers(ctx, l.ID)
		if err != nil {
			e.logger.Warn("failed to fetch members", "list", l.Name, "err", err)
			sl.err = err
			lists = append(lists, sl)
			continue
		}

		sl.members, sl.stats = ExtractMembers(records)
		e.logger.Debug("extracted members", "list", l.Name, "records", sl.stats.Records,
			"contacts", sl.stats.Contacts, "skipped", sl.stats.Skipped, "duplicates", sl.stats.Duplicates)
		lists = append(lists, sl)
	}
	return lists, nil
}

// selectLists keeps top-level lists with an ID and a name, narrowed by the list filter.
func (e *Engine) selectLists(all []models.SourceList) ([]models.SourceList, error) {
	var lists []models.SourceList
	for _, l := range all {
		if l.TopLevel() && l.ID != "" && strings.TrimSpace(l.Name) != "" {
			lists = append(lists, l)
		}
	}

	if len(e.opts.ListFilter) == 0 {
		return lists, nil
	}

	var filtered []models.SourceList
	for _, name := range e.opts.ListFilter {
		matched := false
		for _, l := range lists {
			if strings.EqualFold(strings.TrimSpace(l.Name), strings.TrimSpace(name)) {
				filtered = append(filtered, l)
				matched = true
				break
			}
		}
		if !matched {
			e.logger.Warn("no top-level source list matches filter", "name", name)
		}
	}
	if len(filtered) == 0 {
		return nil, fmt.Errorf("%w: no source list matches %s", shared.ErrListNotFound, strings.Join(e.opts.ListFilter, ", "))
	}
	return filtered, nil
}

// syncList reconciles and applies one list. Failures end up in the report.
func (e *Engine) syncList(ctx context.Context, progress chan<- ProgressUpdate, step, total int, sl sourceList, folderID int64) models.ReconciliationReport {
	name := sl.list.Name
	destName := e.DestinationName(name)
	logger := e.logger.With("list", name)

	report := models.ReconciliationReport{ListName: name, SourceListID: sl.list.ID}
	fail := func(err error) models.ReconciliationReport {
		logger.Error("list failed", "err", err)
		report.Status = models.ListFailed
		report.Error = err.Error()
		return report
	}

	if sl.err != nil {
		return fail(fmt.Errorf("failed to fetch members: %w", sl.err))
	}
	if sl.members.Len() == 0 {
		logger.Info("no members, skipping")
		report.Status = models.ListSkipped
		return report
	}

	e.sendProgress(progress, resolveListUpdate(step, total, destName))
	listID, found, err := e.dest.FindList(ctx, destName)
	if err != nil {
		return fail(fmt.Errorf("failed to find list %q: %w", destName, err))
	}
	if !found {
		listID, err = e.dest.CreateList(ctx, destName, folderID)
		if err != nil {
			return fail(fmt.Errorf("failed to create list %q: %w", destName, err))
		}
		logger.Info("created destination list", "name", destName, "id", listID)
	}
	report.ListID = listID

	e.sendProgress(progress, snapshotUpdate(step, total, destName))
	current, err := e.snapshots.Snapshot(ctx, listID)
	if err != nil {
		return fail(err)
	}

	plan := Reconcile(sl.members.Emails(), current)
	report.Added = plan.ToAdd.Len()
	report.Removed = plan.ToRemove.Len()
	report.InBoth = plan.InBoth.Len()
	report.TotalAfter = current.Len() - report.Removed + report.Added

	toAdd := make([]string, 0, plan.ToAdd.Len())
	for _, c := range sl.members.Contacts() {
		if plan.ToAdd.Has(c.Email) {
			toAdd = append(toAdd, c.Email)
		}
	}

	if len(toAdd) > 0 {
		e.sendProgress(progress, upsertUpdate(step, total, destName, len(toAdd)))
		for _, email := range toAdd {
			if ctx.Err() != nil {
				report.UpsertsFailed++
				continue
			}
			c, _ := sl.members.Get(email)
			if res := e.upserter.Upsert(ctx, c); !res.Done() {
				report.UpsertsFailed++
			}
		}

		e.sendProgress(progress, addMembersUpdate(step, total, destName, len(toAdd)))
		added := e.mutator.Add(ctx, listID, toAdd)
		report.AddBatchesFailed = added.Failed()
		report.AlreadyPresent = added.Skipped
	}

	if plan.ToRemove.Len() > 0 {
		toRemove := plan.ToRemove.Sorted()
		e.sendProgress(progress, removeMembersUpdate(step, total, destName, len(toRemove)))
		removed := e.mutator.Remove(ctx, listID, toRemove)
		report.RemoveBatchesFailed = removed.Failed()
	}

	// Mutations issued on a canceled context did not land.
	if err := ctx.Err(); err != nil {
		return fail(fmt.Errorf("interrupted while applying changes: %w", err))
	}

	report.Status = models.ListSynced
	logger.Info("list synced", "added", report.Added, "removed", report.Removed, "in_both", report.InBoth,
		"total_after", report.TotalAfter, "upserts_failed", report.UpsertsFailed,
		"add_batches_failed", report.AddBatchesFailed, "remove_batches_failed", report.RemoveBatchesFailed)
	return report
}

// Diff computes the reconciliation of every selected list without mutating the destination.
//
// A destination list that does not exist yet has an empty current set. No folder is required.
func (e *Engine) Diff(ctx context.Context, progress chan<- ProgressUpdate) (*DiffResult, error) {
	run := models.NewSyncRun(time.Now(), true)
	result := &DiffResult{Run: run}

	lists, err := e.loadSource(ctx, progress)
	if err != nil {
		run.Fail(time.Now(), ErrorType(err), err, nil)
		e.record(run)
		return result, err
	}

	interrupted := func(reports []models.ReconciliationReport) (*DiffResult, error) {
		err := fmt.Errorf("diff interrupted: %w", ctx.Err())
		run.Fail(time.Now(), ErrorType(err), err, reports)
		e.record(run)
		return result, err
	}

	reports := make([]models.ReconciliationReport, 0, len(lists))
	for i, sl := range lists {
		if ctx.Err() != nil {
			return interrupted(reports)
		}

		plan := e.planList(ctx, progress, i+1, len(lists), sl)
		result.Plans = append(result.Plans, plan)
		reports = append(reports, plan.Report)
		e.sendProgress(progress, listDoneUpdate(i+1, len(lists), plan.Report))
	}
	if ctx.Err() != nil {
		return interrupted(reports)
	}

	run.Complete(time.Now(), reports)
	e.record(run)
	e.sendProgress(progress, completeUpdate(run))
	return result, nil
}

func (e *Engine) planList(ctx context.Context, progress chan<- ProgressUpdate, step, total int, sl sourceList) ListPlan {
	destName := e.DestinationName(sl.list.Name)
	plan := ListPlan{
		DestinationName: destName,
		Extract:         sl.stats,
		Report:          models.ReconciliationReport{ListName: sl.list.Name, SourceListID: sl.list.ID},
	}
	fail := func(err error) ListPlan {
		plan.Report.Status = models.ListFailed
		plan.Report.Error = err.Error()
		return plan
	}

	if sl.err != nil {
		return fail(fmt.Errorf("failed to fetch members: %w", sl.err))
	}
	if sl.members.Len() == 0 {
		plan.Report.Status = models.ListSkipped
		return plan
	}

	e.sendProgress(progress, resolveListUpdate(step, total, destName))
	listID, found, err := e.dest.FindList(ctx, destName)
	if err != nil {
		return fail(fmt.Errorf("failed to find list %q: %w", destName, err))
	}

	current := models.NewEmailSet()
	if found {
		plan.Exists = true
		plan.Report.ListID = listID
		e.sendProgress(progress, snapshotUpdate(step, total, destName))
		if current, err = e.snapshots.Snapshot(ctx, listID); err != nil {
			return fail(err)
		}
	}

	r := Reconcile(sl.members.Emails(), current)
	plan.ToAdd = r.ToAdd.Sorted()
	plan.ToRemove = r.ToRemove.Sorted()
	plan.Report.Added = r.ToAdd.Len()
	plan.Report.Removed = r.ToRemove.Len()
	plan.Report.InBoth = r.InBoth.Len()
	plan.Report.TotalAfter = current.Len() - plan.Report.Removed + plan.Report.Added
	plan.Report.Status = models.ListPlanned
	return plan
}

func (e *Engine) record(run *models.SyncRun) {
	if e.recorder == nil {
		return
	}
	if err := e.recorder.RecordRun(run); err != nil {
		e.logger.Warn("failed to record run", "err", err)
	}
}
