package models

import (
	"fmt"
	"time"
)

// Model defines the base interface for all persistent models.
type Model interface {
	ID() string           // ID returns the unique identifier for this model
	CreatedAt() time.Time // CreatedAt returns when this model was created
	UpdatedAt() time.Time // UpdatedAt returns when this model was last updated
	Validate() error      // Validate checks if the model's data is valid and returns an error if not
}

// Repository defines the interface for data access operations.
type Repository[T Model] interface {
	Create(model T) error
	Get(id string) (T, error)
	Update(model T) error
	Delete(id string) error
	List(criteria map[string]any) ([]T, error)
}

// RunStatus is the lifecycle state of a [SyncRun].
type RunStatus string

const (
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
)

// SyncRun is the audit record of one sync invocation.
type SyncRun struct {
	id           string
	sequence     int
	status       RunStatus
	dryRun       bool
	summary      SyncSummary
	errorType    string
	errorMessage string
	startedAt    time.Time
	finishedAt   *time.Time
	createdAt    time.Time
	updatedAt    time.Time
	deletedAt    *time.Time
	reports      []ReconciliationReport
}

// NewSyncRun creates a running [SyncRun] that started at startedAt.
func NewSyncRun(startedAt time.Time, dryRun bool) *SyncRun {
	now := time.Now()
	return &SyncRun{
		status:    RunRunning,
		dryRun:    dryRun,
		startedAt: startedAt,
		createdAt: now,
		updatedAt: now,
	}
}

func (r *SyncRun) ID() string { return r.id }
func (r *SyncRun) Sequence() int { return r.sequence }
func (r *SyncRun) Status() RunStatus { return r.status }
func (r *SyncRun) DryRun() bool { return r.dryRun }
func (r *SyncRun) Summary() SyncSummary { return r.summary }
func (r *SyncRun) ErrorType() string { return r.errorType }
func (r *SyncRun) ErrorMessage() string { return r.errorMessage }
func (r *SyncRun) StartedAt() time.Time { return r.startedAt }
func (r *SyncRun) FinishedAt() *time.Time { return r.finishedAt }
func (r *SyncRun) CreatedAt() time.Time { return r.createdAt }
func (r *SyncRun) UpdatedAt() time.Time { return r.updatedAt }
func (r *SyncRun) DeletedAt() *time.Time { return r.deletedAt }
func (r *SyncRun) Reports() []ReconciliationReport { return r.reports }
func (r *SyncRun) SetID(id string) { r.id = id }
func (r *SyncRun) SetSequence(seq int) { r.sequence = seq }
func (r *SyncRun) SetStatus(s RunStatus) { r.status = s }
func (r *SyncRun) SetSummary(s SyncSummary) { r.summary = s }
func (r *SyncRun) SetCreatedAt(t time.Time) { r.createdAt = t }
func (r *SyncRun) SetUpdatedAt(t time.Time) { r.updatedAt = t }
func (r *SyncRun) SetDeletedAt(t *time.Time) { r.deletedAt = t }
func (r *SyncRun) SetFinishedAt(t *time.Time) { r.finishedAt = t }
func (r *SyncRun) SetReports(rs []ReconciliationReport) { r.reports = rs }
func (r *SyncRun) SetError(errType, message string) { r.errorType, r.errorMessage = errType, message }

// Duration returns the elapsed time of a finished run, or zero while it is running.
func (r *SyncRun) Duration() time.Duration {
	if r.finishedAt == nil {
		return 0
	}
	return r.finishedAt.Sub(r.startedAt)
}

// Complete marks the run finished with the given reports.
func (r *SyncRun) Complete(at time.Time, reports []ReconciliationReport) {
	r.status = RunCompleted
	r.reports = reports
	r.summary = Summarize(reports)
	r.finishedAt = &at
}

// Fail marks the run aborted. Reports gathered before the failure are kept.
func (r *SyncRun) Fail(at time.Time, errType string, err error, reports []ReconciliationReport) {
	r.status = RunFailed
	r.reports = reports
	r.summary = Summarize(reports)
	r.errorType = errType
	if err != nil {
		r.errorMessage = err.Error()
	}
	r.finishedAt = &at
}

// Validate checks the run's required fields.
func (r *SyncRun) Validate() error {
	if r.id == "" {
		return fmt.Errorf("sync run id is required")
	}
	switch r.status {
	case RunRunning, RunCompleted, RunFailed:
	default:
		return fmt.Errorf("invalid sync run status %q", r.status)
	}
	if r.startedAt.IsZero() {
		return fmt.Errorf("sync run start time is required")
	}
	if r.finishedAt != nil && r.finishedAt.Before(r.startedAt) {
		return fmt.Errorf("sync run finished before it started")
	}
	return nil
}
