// Package services defines the interfaces for the two remote systems a sync talks to and implements them for MonClub and Brevo.
//
// # Source Registry
//
// [SourceRegistry] is the authoritative membership system. [MonClubService] implements it.
//
// MonClub logs in with email, password and club ID. The session token is produced by an
// [oauth2.TokenSource] and cached with [oauth2.ReuseTokenSource], so a long run renews it
// without the caller noticing. The token is sent raw in the Authorization header.
//
// Member records are returned undecoded ([encoding/json.RawMessage]). Decoding and
// validation happen in the extractor so a malformed record costs only itself.
//
// # Destination
//
// [Destination] groups the narrower [ListReader], [ListMutator], [ContactStore] and [ListDirectory]
// interfaces. Reconciliation steps depend on the narrow ones. [BrevoService] implements all of them
// plus [Mailer].
//
// # Transport
//
// Both services share [APIClient]:
//   - a [golang.org/x/time/rate] limiter is waited on before every request
//   - 429, 502, 503 and 504 responses are retried with linear backoff
//   - every request has the configured timeout
//
// # Error Handling
//
// Non-2xx responses become [*APIError], which matches the shared sentinels with [errors.Is]:
//   - [shared.ErrConflict] : 409, or Brevo's 400 duplicate_parameter
//   - [shared.ErrNotFound] : 404
//   - [shared.ErrUnauthorized] : 401 and 403
//   - [shared.ErrRateLimited] : 429
//   - [shared.ErrAPIRequest] : any status
//
// MonClub login failures wrap [shared.ErrSourceAuth]; member fetches wrap [shared.ErrSourceMembers].
package services
