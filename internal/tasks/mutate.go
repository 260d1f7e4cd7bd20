package tasks

import (
	"context"
	"io"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/rostersync/internal/services"
)

// DefaultBatchSize is the most emails the destination accepts per membership call.
const DefaultBatchSize = 150

// ExistenceChecker answers a cheap, best-effort "is this email already in the list" query.
type ExistenceChecker interface {
	Contains(ctx context.Context, listID int64, email string) bool
}

// BatchFailure is one membership call that did not succeed.
type BatchFailure struct {
	Index  int // zero-based batch position
	Emails []string
	Err    error
}

// BatchResult is the best-effort outcome of a batched mutation.
type BatchResult struct {
	Batches   int
	Succeeded int
	Applied   int // emails sent in successful batches
	Skipped   int // emails dropped by the existence pre-filter
	Failures  []BatchFailure
}

// Failed returns the number of failed batches.
func (r BatchResult) Failed() int { return len(r.Failures) }

// BatchMutator applies list membership changes in size-bounded batches.
type BatchMutator struct {
	lists     services.ListMutator
	checker   ExistenceChecker
	batchSize int
	logger    *log.Logger
}

// NewBatchMutator creates a mutator. A nil checker disables the addition pre-filter.
func NewBatchMutator(lists services.ListMutator, checker ExistenceChecker, batchSize int, logger *log.Logger) *BatchMutator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &BatchMutator{lists: lists, checker: checker, batchSize: batchSize, logger: logger}
}

// Add adds emails to the list. Emails the checker already finds in the list are skipped.
func (m *BatchMutator) Add(ctx context.Context, listID int64, emails []string) BatchResult {
	pending := emails
	skipped := 0
	if m.checker != nil {
		pending = make([]string, 0, len(emails))
		for _, e := range emails {
			if ctx.Err() == nil && m.checker.Contains(ctx, listID, e) {
				m.logger.Debug("already in list", "list", listID, "email", e)
				skipped++
				continue
			}
			pending = append(pending, e)
		}
	}

	res := m.apply(ctx, listID, pending, "add", m.lists.AddToList)
	res.Skipped = skipped
	return res
}

// Remove removes emails from the list. There is no pre-filter.
func (m *BatchMutator) Remove(ctx context.Context, listID int64, emails []string) BatchResult {
	return m.apply(ctx, listID, emails, "remove", m.lists.RemoveFromList)
}

type mutation func(ctx context.Context, listID int64, emails []string) error

// apply issues one call per batch. A failed batch is recorded and the rest still run.
// Once ctx is done no further calls are made and the remaining batches fail with its error.
func (m *BatchMutator) apply(ctx context.Context, listID int64, emails []string, op string, call mutation) BatchResult {
	batches := Batches(emails, m.batchSize)
	res := BatchResult{Batches: len(batches)}

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			res.Failures = append(res.Failures, BatchFailure{Index: i, Emails: batch, Err: err})
			continue
		}

		if err := call(ctx, listID, batch); err != nil {
			m.logger.Warn("batch failed", "op", op, "list", listID, "batch", i+1, "of", len(batches), "size", len(batch), "err", err)
			res.Failures = append(res.Failures, BatchFailure{Index: i, Emails: batch, Err: err})
			continue
		}

		m.logger.Debug("batch applied", "op", op, "list", listID, "batch", i+1, "of", len(batches), "size", len(batch))
		res.Succeeded++
		res.Applied += len(batch)
	}
	return res
}

// Batches splits emails into consecutive chunks of at most size.
func Batches(emails []string, size int) [][]string {
	if size <= 0 {
		size = DefaultBatchSize
	}
	out := make([][]string, 0, (len(emails)+size-1)/size)
	for start := 0; start < len(emails); start += size {
		end := min(start+size, len(emails))
		out = append(out, emails[start:end])
	}
	return out
}
