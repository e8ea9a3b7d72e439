// Package repositories implements SQLite persistence for the run journal.
//
// [RunRepository] records each sync run in sync_runs and its per-tour outcomes
// in sync_outcomes. The journal is only written by a sync and read by the
// history commands; it never decides which tours are transferred.
//
// Runs carry a human-readable number alongside their UUID. The [NextSequence]
// function atomically increments per-table sequence counters in dedicated sequence tables.
package repositories
