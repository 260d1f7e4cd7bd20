// Package models defines domain entities and persistence interfaces for the rostersync membership reconciliation tool.
//
// The package contains two categories of types:
//
// 1. Data Transfer Objects (DTOs): Lightweight structs describing data read from or written to the two services
//   - [SourceList] : A membership list in the source registry
//   - [SourceMember] : A decoded member record with its [SecondaryRecord] guardians
//   - [Contact] : An addressable person, keyed by normalized email
//   - [ContactInfo] : A contact as the destination service reports it
//   - [DestinationList] and [Folder] : Destination list layout
//   - [ReconciliationReport] and [SyncSummary] : Per-list and per-run outcomes
//
// 2. Persistent Entities: Database-backed audit records
//   - [SyncRun] : One invocation of the sync, with its list reports
//
// Set types ([EmailSet], [MemberSet]) hold the two sides of a reconciliation.
// Identity is always the normalized email, see [shared.NormalizeEmail].
//
// All persistent entities implement the Model interface providing ID generation, timestamps, validation, and soft delete support.
// The Repository[T] interface defines standard CRUD operations for database access.
package models
