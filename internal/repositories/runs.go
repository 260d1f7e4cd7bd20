package repositories

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/desertthunder/rostersync/internal/models"
	"github.com/desertthunder/rostersync/internal/shared"
)

// RunRepository implements models.Repository[*models.SyncRun] for run history.
//
// A run's list reports are stored in list_reports and written together with the run.
type RunRepository struct {
	db *sql.DB
}

// NewRunRepository creates a new RunRepository with the given database connection
func NewRunRepository(db *sql.DB) *RunRepository {
	return &RunRepository{db: db}
}

const runColumns = `
	id, sequence, status, dry_run, total_lists, synced_count, failed_count,
	error_type, error_message, started_at, finished_at, created_at, updated_at, deleted_at
`

const reportColumns = `
	source_list_id, list_name, destination_list_id, status, added, removed, in_both,
	total_after, upserts_failed, add_batches_failed, remove_batches_failed,
	already_present, error_message
`

// Create inserts a new run and its reports with generated ID and sequence
func (r *RunRepository) Create(run *models.SyncRun) error {
	sequence, err := NextSequence(r.db, "sync_runs")
	if err != nil {
		return fmt.Errorf("failed to generate sequence: %w", err)
	}

	run.SetID(shared.GenerateID())
	run.SetSequence(sequence)

	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	summary := run.Summary()
	query := `
		INSERT INTO sync_runs (
			id, sequence, status, dry_run, total_lists, synced_count, failed_count,
			error_type, error_message, started_at, finished_at, created_at, updated_at
		)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err = tx.Exec(query,
		run.ID(),
		sequence,
		string(run.Status()),
		run.DryRun(),
		summary.TotalLists,
		summary.SyncedCount,
		summary.FailedCount,
		nullString(run.ErrorType()),
		nullString(run.ErrorMessage()),
		run.StartedAt(),
		run.FinishedAt(),
		run.CreatedAt(),
		run.UpdatedAt(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert sync run: %w", err)
	}

	if err := insertReports(tx, run.ID(), run.Reports()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync run: %w", err)
	}
	return nil
}

// Get retrieves a run with its reports by ID, excluding soft-deleted runs
func (r *RunRepository) Get(id string) (*models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs WHERE id = ? AND deleted_at IS NULL`
	return r.getWithReports(r.db.QueryRow(query, id))
}

// GetBySequence retrieves a run with its reports by its sequence number
func (r *RunRepository) GetBySequence(sequence int) (*models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs WHERE sequence = ? AND deleted_at IS NULL`
	return r.getWithReports(r.db.QueryRow(query, sequence))
}

// Latest retrieves the most recent run with its reports
func (r *RunRepository) Latest() (*models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs WHERE deleted_at IS NULL ORDER BY sequence DESC LIMIT 1`
	return r.getWithReports(r.db.QueryRow(query))
}

func (r *RunRepository) getWithReports(row *sql.Row) (*models.SyncRun, error) {
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, shared.ErrRunNotFound
	}
	if err != nil {
		return nil, err
	}

	reports, err := r.Reports(run.ID())
	if err != nil {
		return nil, err
	}
	run.SetReports(reports)
	return run, nil
}

// Reports retrieves the list reports of a run in their original order
func (r *RunRepository) Reports(runID string) ([]models.ReconciliationReport, error) {
	query := `SELECT ` + reportColumns + ` FROM list_reports WHERE run_id = ? ORDER BY position ASC`

	rows, err := r.db.Query(query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query list reports: %w", err)
	}
	defer rows.Close()

	var reports []models.ReconciliationReport
	for rows.Next() {
		var (
			rep          models.ReconciliationReport
			status       string
			errorMessage sql.NullString
		)
		err := rows.Scan(
			&rep.SourceListID, &rep.ListName, &rep.ListID, &status, &rep.Added, &rep.Removed, &rep.InBoth,
			&rep.TotalAfter, &rep.UpsertsFailed, &rep.AddBatchesFailed, &rep.RemoveBatchesFailed,
			&rep.AlreadyPresent, &errorMessage,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan list report: %w", err)
		}
		rep.Status = models.ListStatus(status)
		rep.Error = errorMessage.String
		reports = append(reports, rep)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return reports, nil
}

// Update modifies an existing run and replaces its reports
func (r *RunRepository) Update(run *models.SyncRun) error {
	if err := run.Validate(); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	now := time.Now()
	run.SetUpdatedAt(now)

	tx, err := r.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	summary := run.Summary()
	query := `
		UPDATE sync_runs
		SET status = ?, total_lists = ?, synced_count = ?, failed_count = ?,
			error_type = ?, error_message = ?, finished_at = ?, updated_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`
	result, err := tx.Exec(query,
		string(run.Status()),
		summary.TotalLists,
		summary.SyncedCount,
		summary.FailedCount,
		nullString(run.ErrorType()),
		nullString(run.ErrorMessage()),
		run.FinishedAt(),
		now,
		run.ID(),
	)
	if err != nil {
		return fmt.Errorf("failed to update sync run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, run.ID())
	}

	if _, err := tx.Exec(`DELETE FROM list_reports WHERE run_id = ?`, run.ID()); err != nil {
		return fmt.Errorf("failed to clear list reports: %w", err)
	}
	if err := insertReports(tx, run.ID(), run.Reports()); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit sync run: %w", err)
	}
	return nil
}

// Delete soft-deletes a run by ID
func (r *RunRepository) Delete(id string) error {
	query := `
		UPDATE sync_runs
		SET deleted_at = ?
		WHERE id = ? AND deleted_at IS NULL
	`

	result, err := r.db.Exec(query, time.Now(), id)
	if err != nil {
		return fmt.Errorf("failed to delete sync run: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", shared.ErrRunNotFound, id)
	}
	return nil
}

// List retrieves runs matching the given criteria, newest first, without their reports.
//
// Supported criteria: "status" (string), "dry_run" (bool) and "limit" (int).
func (r *RunRepository) List(criteria map[string]any) ([]*models.SyncRun, error) {
	query := `SELECT ` + runColumns + ` FROM sync_runs WHERE deleted_at IS NULL`
	args := []any{}

	if status, ok := criteria["status"].(string); ok && status != "" {
		query += " AND status = ?"
		args = append(args, status)
	}

	if dryRun, ok := criteria["dry_run"].(bool); ok {
		query += " AND dry_run = ?"
		args = append(args, dryRun)
	}

	query += " ORDER BY sequence DESC"

	if limit, ok := criteria["limit"].(int); ok && limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := r.db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query sync runs: %w", err)
	}
	defer rows.Close()

	var runs []*models.SyncRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}
	return runs, nil
}

// RecordRun stores a finished run, creating it on first sight and updating it afterwards.
func (r *RunRepository) RecordRun(run *models.SyncRun) error {
	if run.ID() == "" {
		return r.Create(run)
	}
	return r.Update(run)
}

func insertReports(tx *sql.Tx, runID string, reports []models.ReconciliationReport) error {
	if len(reports) == 0 {
		return nil
	}

	stmt, err := tx.Prepare(`
		INSERT INTO list_reports (id, run_id, position, ` + reportColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare list report insert: %w", err)
	}
	defer stmt.Close()

	for i, rep := range reports {
		_, err := stmt.Exec(
			shared.GenerateID(), runID, i,
			rep.SourceListID, rep.ListName, rep.ListID, string(rep.Status), rep.Added, rep.Removed, rep.InBoth,
			rep.TotalAfter, rep.UpsertsFailed, rep.AddBatchesFailed, rep.RemoveBatchesFailed,
			rep.AlreadyPresent, nullString(rep.Error),
		)
		if err != nil {
			return fmt.Errorf("failed to insert list report %q: %w", rep.ListName, err)
		}
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

// scanRun scans a sync_runs row into a [models.SyncRun]
func scanRun(row scanner) (*models.SyncRun, error) {
	var (
		id           string
		sequence     int
		status       string
		dryRun       bool
		summary      models.SyncSummary
		errorType    sql.NullString
		errorMessage sql.NullString
		startedAt    time.Time
		finishedAt   sql.NullTime
		createdAt    time.Time
		updatedAt    time.Time
		deletedAt    sql.NullTime
	)

	err := row.Scan(
		&id, &sequence, &status, &dryRun, &summary.TotalLists, &summary.SyncedCount, &summary.FailedCount,
		&errorType, &errorMessage, &startedAt, &finishedAt, &createdAt, &updatedAt, &deletedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, err
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan sync run: %w", err)
	}

	run := models.NewSyncRun(startedAt, dryRun)
	run.SetID(id)
	run.SetSequence(sequence)
	run.SetStatus(models.RunStatus(status))
	run.SetSummary(summary)
	run.SetError(errorType.String, errorMessage.String)
	run.SetCreatedAt(createdAt)
	run.SetUpdatedAt(updatedAt)
	if finishedAt.Valid {
		run.SetFinishedAt(&finishedAt.Time)
	}
	if deletedAt.Valid {
		run.SetDeletedAt(&deletedAt.Time)
	}
	return run, nil
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
