// Package tasks reconciles source membership lists into destination contact lists with real-time progress reporting.
//
// # Pipeline
//
// Each list goes through five steps, leaves first:
//
//  1. [ExtractMembers] : flattens raw member records and their tutors into a deduplicated [models.MemberSet]
//     - emails are trimmed and lowercased, blank ones dropped
//     - tutor names split on the first whitespace run
//     - malformed records are skipped and counted
//
//  2. [SnapshotReader] : reads the full current membership of a destination list
//     - pages until a short or empty page
//     - any page error fails the whole snapshot
//     - [SnapshotReader.Contains] is a first-page-only existence check
//
//  3. [Reconcile] : pure set difference into to-add, to-remove and in-both
//
//  4. [Upserter] : create, update on conflict, verify, as an explicit state machine returning [UpsertResult]
//
//  5. [BatchMutator] : applies additions then removals in fixed-size batches
//     - a failed batch never blocks the following ones
//     - additions are pre-filtered through the existence check
//
// # Engine
//
// [Engine.Run] drives the pipeline over every top-level source list, one at a time.
// Only source authentication, the source list fetch and a missing destination folder abort a run.
// Everything else is counted in the list's [models.ReconciliationReport].
//
// [Engine.Diff] computes the same plans without touching the destination.
//
// # Progress Reporting
//
// Operations send [ProgressUpdate] values on an optional channel. Sends use select with default so a slow
// consumer never blocks a sync.
//
// # Run History
//
// The optional [RunRecorder] receives every finished run. Recording errors are logged and ignored.
package tasks
