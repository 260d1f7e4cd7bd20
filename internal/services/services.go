// package services defines the clients for the source registry and the destination contact service
//
// MonClub (source), Brevo (destination)
package services

import (
	"context"
	"encoding/json"

	"github.com/desertthunder/rostersync/internal/models"
)

// SourceRegistry is the authoritative membership system.
type SourceRegistry interface {
	// Authenticate logs in with the configured credentials.
	// Every other call fails with [shared.ErrNotAuthenticated] until it succeeds.
	Authenticate(ctx context.Context) error

	// FetchLists returns every list of the club, nested ones included.
	FetchLists(ctx context.Context) ([]models.SourceList, error)

	// FetchMembers returns the raw member records of a list.
	// Records are left undecoded so malformed entries can be skipped one by one.
	FetchMembers(ctx context.Context, listID string) ([]json.RawMessage, error)

	// Name returns the name of the service (e.g., "MonClub")
	Name() string
}

// ListReader pages through the contacts of a destination list.
type ListReader interface {
	ListContacts(ctx context.Context, listID int64, limit, offset int) ([]models.ContactInfo, error)
}

// ListMutator changes destination list membership. Both calls are size bounded by the caller.
type ListMutator interface {
	AddToList(ctx context.Context, listID int64, emails []string) error
	RemoveFromList(ctx context.Context, listID int64, emails []string) error
}

// ContactStore manages destination contact records independently of lists.
type ContactStore interface {
	// CreateContact returns the new contact ID, or an error matching [shared.ErrConflict] if it exists.
	CreateContact(ctx context.Context, email string, attrs models.ContactAttributes) (int64, error)
	UpdateContact(ctx context.Context, email string, attrs models.ContactAttributes) error
	// GetContact returns an error matching [shared.ErrNotFound] for unknown addresses.
	GetContact(ctx context.Context, email string) (*models.ContactInfo, error)
}

// ListDirectory finds and creates destination lists and folders.
type ListDirectory interface {
	Lists(ctx context.Context) ([]models.DestinationList, error)
	FindList(ctx context.Context, name string) (int64, bool, error)
	CreateList(ctx context.Context, name string, folderID int64) (int64, error)
	FindFolder(ctx context.Context, name string) (int64, bool, error)
}

// Destination is the full destination contact service.
type Destination interface {
	ListReader
	ListMutator
	ContactStore
	ListDirectory
	Name() string
}

// Mailer sends transactional email.
type Mailer interface {
	SendEmail(ctx context.Context, msg EmailMessage) error
}

// EmailMessage is a transactional email with both text and HTML bodies.
type EmailMessage struct {
	SenderName  string
	SenderEmail string
	To          []string
	Subject     string
	HTML        string
	Text        string
}
