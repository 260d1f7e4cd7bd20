package tasks

import (
	"context"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/rostersync/internal/models"
	"github.com/desertthunder/rostersync/internal/services"
	"github.com/desertthunder/rostersync/internal/shared"
)

// DefaultPageSize is the largest page the destination returns for list contacts.
const DefaultPageSize = 500

// SnapshotReader reads the current membership of destination lists.
type SnapshotReader struct {
	reader   services.ListReader
	pageSize int
	logger   *log.Logger
}

// NewSnapshotReader creates a reader paging pageSize contacts at a time. A non-positive size uses [DefaultPageSize].
func NewSnapshotReader(reader services.ListReader, pageSize int, logger *log.Logger) *SnapshotReader {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &SnapshotReader{reader: reader, pageSize: pageSize, logger: logger}
}

// Snapshot returns every email in the list.
//
// Paging stops on a short or empty page. Any page error fails the whole snapshot;
// a partial set is never returned.
func (s *SnapshotReader) Snapshot(ctx context.Context, listID int64) (models.EmailSet, error) {
	emails := models.NewEmailSet()

	for offset, pages := 0, 1; ; offset, pages = offset+s.pageSize, pages+1 {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("%w: list %d: %w", shared.ErrSnapshotFailed, listID, err)
		}

		page, err := s.reader.ListContacts(ctx, listID, s.pageSize, offset)
		if err != nil {
			return nil, fmt.Errorf("%w: list %d at offset %d: %w", shared.ErrSnapshotFailed, listID, offset, err)
		}

		for _, c := range page {
			emails.Add(c.Email)
		}

		if len(page) < s.pageSize {
			s.logger.Debug("snapshot read", "list", listID, "pages", pages, "emails", emails.Len())
			return emails, nil
		}
	}
}

// Contains reports whether email is on the first page of the list.
//
// It never pages, so on lists longer than one page it can miss members. A read error
// counts as absent.
func (s *SnapshotReader) Contains(ctx context.Context, listID int64, email string) bool {
	page, err := s.reader.ListContacts(ctx, listID, s.pageSize, 0)
	if err != nil {
		s.logger.Debug("existence check failed", "list", listID, "email", email, "err", err)
		return false
	}

	key := shared.NormalizeEmail(email)
	for _, c := range page {
		if shared.NormalizeEmail(c.Email) == key {
			return true
		}
	}
	return false
}
