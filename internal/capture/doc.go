// Package capture implements the capture lifecycle and its conversion into
// tasks.
//
// # Lifecycle
//
// A capture starts in the inbox. From there it can be trashed (and later
// restored or permanently deleted) or processed into a task, which is
// terminal. Pin and snooze are flags layered on top of the status, not
// transitions; trashing clears the pin. All transitions are idempotent:
// repeating one succeeds and preserves the original timestamp.
//
// # Processing
//
// ProcessToTask creates the task and marks the capture processed inside a
// single store transaction. The processed mark is a conditional write that
// re-checks status=inbox, so concurrent conversions of the same capture
// produce exactly one task.
//
// # Cascade
//
// Deleting a task that came from a capture trashes the capture in the same
// transaction, keeping the pair consistent.
package capture
