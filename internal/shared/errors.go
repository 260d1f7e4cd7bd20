package shared

import "fmt"

var (
	ErrNotImplemented = fmt.Errorf("not implemented")

	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Source registry errors. These abort a run.
	ErrSourceAuth       = fmt.Errorf("source registry authentication failed")
	ErrSourceLists      = fmt.Errorf("failed to fetch source lists")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")

	// Source registry errors scoped to a single list
	ErrSourceMembers = fmt.Errorf("failed to fetch source members")

	// Destination errors
	ErrFolderNotFound = fmt.Errorf("destination folder not found")
	ErrListNotFound   = fmt.Errorf("destination list not found")
	ErrSnapshotFailed = fmt.Errorf("failed to read destination list")

	// API and transport errors, matched with errors.Is against *services.APIError
	ErrAPIRequest   = fmt.Errorf("API request failed")
	ErrConflict     = fmt.Errorf("resource already exists")
	ErrNotFound     = fmt.Errorf("resource not found")
	ErrUnauthorized = fmt.Errorf("unauthorized")
	ErrRateLimited  = fmt.Errorf("rate limited")

	// Persistence errors
	ErrRunNotFound = fmt.Errorf("sync run not found")

	// Input validation errors
	ErrInvalidInput    = fmt.Errorf("invalid input")
	ErrMissingArgument = fmt.Errorf("missing required argument")
	ErrInvalidArgument = fmt.Errorf("invalid argument")
	ErrInvalidFlag     = fmt.Errorf("invalid flag value")
)
