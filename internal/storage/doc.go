// Package storage persists the scheduler's audit trail: one row per
// dispatched, cancelled or breaker-halted job. The queue itself is never
// persisted; a restart starts empty, matching the in-world semantics of a
// server reboot.
package storage
