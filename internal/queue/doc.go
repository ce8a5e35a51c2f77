// Package queue implements the priority command queue that sits between
// producers and the plant dispatcher.
//
// The queue keeps one FIFO sequence per priority level. Pop always serves
// the oldest item of the highest non-empty level, so HIGH work is drained
// before MEDIUM, and MEDIUM before LOW.
//
// # Starvation
//
// Priority is strict and there is no aging. A steady stream of HIGH items
// delays queued LOW items indefinitely. Producers that need fairness must
// pace themselves; the queue will not.
//
// # Thread Safety
//
// Push, PushAll, PushFront and Len may be called from any number of
// goroutines. Pop is designed for a single consumer but is safe for
// several.
package queue
