// Package queue is the command-scheduling core of the server: it decides
// when a queued unit of work (a parsed command belonging to a connected
// player or an in-world automaton) actually runs.
//
// # Model
//
// All deferred work is a queue entry: actor, cause, command text, positional
// arguments, a private register snapshot, and scheduling metadata. Entries
// live in exactly one of four queues:
//
//   - the player immediate queue (strict FIFO),
//   - the object immediate queue (strict FIFO, merged behind the player
//     queue at the next tick so automata can never starve human input),
//   - the deferred queue (kept sorted by wake time, FIFO on ties),
//   - the semaphore queue (unordered; entries may carry a timeout).
//
// Every active entry is addressable through a small-integer PID.
//
// # Driving the scheduler
//
// The server heartbeat calls RunSecond once per simulated second (merge +
// promote), then RunTop with a drain budget (execute). NextDue tells the
// heartbeat how long it may sleep. Execution hands each entry to the
// external command evaluator; the evaluator may re-enter the scheduler to
// enqueue further work.
//
// # Accounting
//
// Admission charges a currency cost (with an occasional one-unit surcharge)
// and counts outstanding work per owner. A ceiling breach is treated as a
// runaway automaton: all of the owner's jobs are halted and the owner is
// marked non-executing. Exactly one refund and one outstanding decrement
// happen per admitted entry, whether it is dispatched, cancelled, or drained.
//
// The scheduler is single-threaded-cooperative: one mutex serializes all
// operations, and it is released around evaluator calls, so "concurrency"
// is interleaving of pending entries, never parallel execution.
package queue
