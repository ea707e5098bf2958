// Package repositories implements SQLite persistence for the offline engine.
//
// Key Implementations:
//   - [AggregateRepository] : named JSON documents holding the desired offline state, written whole and last-write-wins
//   - [PassRepository] : reconciliation pass history with status and outcome counts
//
// [NextSequence] atomically increments per-table sequence counters in dedicated sequence tables,
// giving passes a stable ordering independent of their UUIDs.
package repositories
