// Package repositories implements SQLite persistence for the sync run history.
//
// Run history is an audit trail: the engine never reads it back to decide what to do.
// Each run is a sync_runs row, with one list_reports row per reconciled list.
// Runs support soft deletes via deleted_at timestamps and deleted runs are excluded from queries.
//
// Key Implementations:
//   - [RunRepository] : run and list report persistence, lookups by UUID or sequence number
//
// [RunRepository.RecordRun] satisfies the engine's run recorder, creating a run the first time it is seen.
//
// Sequence numbers provide stable, human-readable ordering (e.g., run #42) independent of UUIDs and creation timestamps.
// The [NextSequence] function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
