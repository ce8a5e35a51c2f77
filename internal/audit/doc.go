// Package audit records dispatch history in SQLite.
//
// Two tables are written:
//   - action_log: one row per submitted action, accepted or rejected
//   - delivery_log: one row per frame the dispatcher dropped or requeued
//
// History is write-only from the dispatcher's point of view. Nothing here is
// read back into the queue, so pending work is still lost on restart.
//
// Recorder implements dispatcher.Observer. It buffers outcomes on a channel
// and writes them from its own goroutine so the dispatch loop never waits
// on the database.
package audit
