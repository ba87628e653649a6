// Package sync is the heart of the calendar synchronization engine.
//
// Event builders map CRM facts (tasks, birthdays, important dates,
// follow-ups) to calendar event payloads. The Syncer consults the mapping
// ledger to decide between create, in-place update, and delete, so repeated
// syncs of the same fact converge on exactly one external event, and runs
// the full reconciliation pass with partial-failure accounting. The Detector
// diffs collection snapshots and batches changes behind a debounce window
// before dispatching them sequentially.
//
// The engine is deliberately single-writer per user: the external calendar
// and the ledger would race on mapping creation if two syncs for the same id
// ran in parallel.
package sync
