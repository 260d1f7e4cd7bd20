package tasks

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/charmbracelet/log"

	"github.com/desertthunder/rostersync/internal/models"
	"github.com/desertthunder/rostersync/internal/services"
	"github.com/desertthunder/rostersync/internal/shared"
)

// UpsertOutcome tags how an upsert ended.
type UpsertOutcome int

const (
	UpsertCreated  UpsertOutcome = iota // created with the given attributes
	UpsertUpdated                       // already existed, attributes updated
	UpsertVerified                      // a step failed but the contact was found afterwards
	UpsertFailed                        // the contact could not be confirmed
)

func (o UpsertOutcome) String() string {
	switch o {
	case UpsertCreated:
		return "created"
	case UpsertUpdated:
		return "updated"
	case UpsertVerified:
		return "verified"
	case UpsertFailed:
		return "failed"
	default:
		return ""
	}
}

// UpsertResult is the tagged result of [Upserter.Upsert].
//
// ID is set unless the outcome is [UpsertFailed]. When the destination did not return a
// readable identifier it holds the email instead.
type UpsertResult struct {
	Email   string
	Outcome UpsertOutcome
	ID      string
	Err     error // set only for UpsertFailed
}

// Done reports whether the contact is known to exist.
func (r UpsertResult) Done() bool { return r.Outcome != UpsertFailed }

type upsertState int

const (
	stateCreate upsertState = iota
	stateUpdate
	stateFetchIdentifier
	stateVerify
)

// Upserter makes sure a contact exists in the destination with current attributes.
type Upserter struct {
	contacts services.ContactStore
	logger   *log.Logger
}

// NewUpserter creates an upserter over contacts.
func NewUpserter(contacts services.ContactStore, logger *log.Logger) *Upserter {
	if logger == nil {
		logger = log.New(io.Discard)
	}
	return &Upserter{contacts: contacts, logger: logger}
}

// Upsert runs the create, update-on-conflict, verify sequence for one contact.
//
//	Create          -> Done | UpdateAttempt (conflict) | VerifyAttempt (other error)
//	UpdateAttempt   -> FetchIdentifier | VerifyAttempt
//	FetchIdentifier -> Done (email as ID when the lookup fails)
//	VerifyAttempt   -> Done | Failed
//
// It never returns an error; failures are reported in the result.
func (u *Upserter) Upsert(ctx context.Context, c models.Contact) UpsertResult {
	email := c.Email
	attrs := c.Attributes()

	var cause error
	state := stateCreate
	for {
		switch state {
		case stateCreate:
			id, err := u.contacts.CreateContact(ctx, email, attrs)
			switch {
			case err == nil:
				return UpsertResult{Email: email, Outcome: UpsertCreated, ID: models.ContactInfo{ID: id}.Identifier(email)}
			case errors.Is(err, shared.ErrConflict):
				u.logger.Debug("contact exists, updating", "email", email)
				state = stateUpdate
			default:
				u.logger.Debug("create failed, verifying", "email", email, "err", err)
				cause = err
				state = stateVerify
			}

		case stateUpdate:
			if err := u.contacts.UpdateContact(ctx, email, attrs); err != nil {
				u.logger.Debug("update failed, verifying", "email", email, "err", err)
				cause = err
				state = stateVerify
				continue
			}
			state = stateFetchIdentifier

		case stateFetchIdentifier:
			info, err := u.contacts.GetContact(ctx, email)
			if err != nil {
				return UpsertResult{Email: email, Outcome: UpsertUpdated, ID: email}
			}
			return UpsertResult{Email: email, Outcome: UpsertUpdated, ID: info.Identifier(email)}

		case stateVerify:
			info, err := u.contacts.GetContact(ctx, email)
			if err != nil {
				u.logger.Warn("upsert failed", "email", email, "err", cause)
				return UpsertResult{
					Email:   email,
					Outcome: UpsertFailed,
					Err:     fmt.Errorf("upsert %s: %w", email, errors.Join(cause, err)),
				}
			}
			return UpsertResult{Email: email, Outcome: UpsertVerified, ID: info.Identifier(email)}
		}
	}
}
