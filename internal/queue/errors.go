package queue

import "errors"

var (
	// Admission failures. The actor's owner is also told through the
	// notifier where the original server did so.
	ErrHalted   = errors.New("actor is halted")
	ErrNoFunds  = errors.New("not enough money to queue command")
	ErrRunaway  = errors.New("too many commands queued; owner halted")
	ErrFull     = errors.New("scheduler full: no free PID")
	ErrDisabled = errors.New("dequeueing is disabled")

	// Lookup / permission failures on PID-addressed operations.
	ErrNoSuchPID     = errors.New("no such active queue entry")
	ErrAlreadyHalted = errors.New("queue entry already halted")
	ErrPermission    = errors.New("permission denied")

	// Reschedule on a semaphore entry that has no timeout; the semaphore
	// queue is unordered so only timed entries carry a wake time.
	ErrNoTimeout = errors.New("semaphore entry has no wait time")

	// CancelMatching with both an owner filter and an actor filter set.
	ErrBadFilter = errors.New("cannot filter by both owner and actor")
)
