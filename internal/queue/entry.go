package queue

import (
	"mudq/internal/world"
)

// qkind tags which queue an entry is currently linked into. An entry being
// executed (popped but not yet destroyed) is in qNone.
type qkind int

const (
	qNone qkind = iota
	qPlayer
	qObject
	qDeferred
	qSemaphore
)

func (k qkind) String() string {
	switch k {
	case qPlayer:
		return "player"
	case qObject:
		return "object"
	case qDeferred:
		return "deferred"
	case qSemaphore:
		return "semaphore"
	default:
		return "none"
	}
}

// DefaultSlot is the semaphore slot used when a waiter does not name one.
const DefaultSlot = 1

// entry is one unit of deferred work. Invariant: an entry is linked into at
// most one queue at a time, and has exactly one registry mapping while
// active; moving it between queues unlinks then relinks, never duplicates.
type entry struct {
	pid   int
	actor world.Ref
	// owner is captured at admission so accounting can settle even if the
	// actor is destroyed while the entry is queued.
	owner   world.Ref
	cause   world.Ref
	command string
	args    []string
	regs    *world.Registers // exclusively owned snapshot, nil = empty

	// wake is the absolute unix second this entry becomes due; 0 means
	// not time-gated. For semaphore entries a nonzero wake is a timeout.
	wake int64

	// semTarget/semSlot identify the semaphore being waited on;
	// semTarget == world.Nothing when not semaphore-gated.
	semTarget world.Ref
	semSlot   int

	// cancelled marks a tombstone: the entry stays linked (immediate
	// queues are swept lazily at drain time) but will never execute.
	cancelled bool

	// released is set once the enqueue cost has been settled and the
	// owner's outstanding count decremented. Guards double refunds when
	// cancellation and dispatch race over the same entry.
	released bool

	where qkind
	seq   uint64 // arrival order; tie-break for equal wake times
}

// dueBefore orders the deferred queue: by wake time, arrival order on ties.
func (e *entry) dueBefore(other *entry) bool {
	if e.wake != other.wake {
		return e.wake < other.wake
	}
	return e.seq < other.seq
}
