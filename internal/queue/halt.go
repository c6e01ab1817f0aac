package queue

import (
	"fmt"

	"mudq/internal/eventbus"
	"mudq/internal/telemetry"
	"mudq/internal/world"
)

// matchLocked implements the shared owner/actor filter for cancellation and
// listing. Tombstones and entries whose actor no longer exists never match.
func (s *Scheduler) matchLocked(e *entry, owner, actor world.Ref) bool {
	if e.cancelled || !s.store.Valid(e.actor) {
		return false
	}
	if owner != world.Nothing && s.store.Owner(e.actor) != owner {
		return false
	}
	if actor != world.Nothing && e.actor != actor {
		return false
	}
	return true
}

// CancelMatching halts every queued entry matching the filter. Exactly one
// of owner and actor may be set; both world.Nothing halts everything.
// Immediate-queue entries become tombstones swept at drain time; deferred
// and semaphore entries are destroyed on the spot. Every halted entry is
// refunded. Returns the number halted.
func (s *Scheduler) CancelMatching(owner, actor world.Ref) (int, error) {
	if owner != world.Nothing && actor != world.Nothing {
		return 0, ErrBadFilter
	}
	s.mu.Lock()
	n := s.haltMatchingLocked(owner, actor)
	s.publishDepthsLocked()
	s.mu.Unlock()
	return n, nil
}

func (s *Scheduler) haltMatchingLocked(owner, actor world.Ref) int {
	n := 0

	// Immediate queues are visited every tick, so lazy removal is cheap:
	// tombstone in place, the drain sweeps the husk.
	for _, q := range [][]*entry{s.player, s.object} {
		for _, e := range q {
			if s.matchLocked(e, owner, actor) {
				n++
				s.releaseLocked(e, true)
				e.cancelled = true
			}
		}
	}

	// The deferred and semaphore queues are only visited when something is
	// due, so their entries go away immediately.
	keep := s.deferred[:0]
	for _, e := range s.deferred {
		if s.matchLocked(e, owner, actor) {
			n++
			e.where = qNone
			s.releaseLocked(e, true)
			s.destroyLocked(e)
		} else {
			keep = append(keep, e)
		}
	}
	s.deferred = keep

	keepSem := s.sem[:0]
	for _, e := range s.sem {
		if s.matchLocked(e, owner, actor) {
			n++
			s.store.SemAdd(e.semTarget, e.semSlot, -1)
			e.where = qNone
			s.releaseLocked(e, true)
			s.destroyLocked(e)
		} else {
			keepSem = append(keepSem, e)
		}
	}
	s.sem = keepSem

	if n > 0 {
		telemetry.Cancelled.Add(float64(n))
	}
	return n
}

// CancelByPID halts a single entry on behalf of canceller, who must control
// the entry's actor or hold the halt-anything privilege. An entry already
// tombstoned, or currently being executed, reports ErrAlreadyHalted.
func (s *Scheduler) CancelByPID(canceller world.Ref, pid int) error {
	s.mu.Lock()
	e := s.pids.lookup(pid)
	if e == nil {
		s.mu.Unlock()
		return ErrNoSuchPID
	}
	if e.cancelled {
		s.mu.Unlock()
		return ErrAlreadyHalted
	}
	if !s.store.Controls(canceller, e.actor) && !s.store.CanHalt(canceller) {
		s.mu.Unlock()
		return ErrPermission
	}

	actor := e.actor
	switch e.where {
	case qPlayer, qObject:
		s.releaseLocked(e, true)
		e.cancelled = true
	case qDeferred:
		s.unlinkLocked(e)
		s.releaseLocked(e, true)
		s.destroyLocked(e)
	case qSemaphore:
		s.store.SemAdd(e.semTarget, e.semSlot, -1)
		s.unlinkLocked(e)
		s.releaseLocked(e, true)
		s.destroyLocked(e)
	default:
		// Popped for execution and not yet tombstoned; unreachable while
		// the drain holds the lock, but fail closed anyway.
		s.mu.Unlock()
		return ErrAlreadyHalted
	}

	telemetry.Cancelled.Inc()
	s.publishDepthsLocked()
	s.mu.Unlock()

	s.publish(eventbus.Event{Type: EventCancelled, Data: Cancelled{PID: pid, Actor: actor, By: canceller}})
	s.notify(canceller, fmt.Sprintf("Halted queue entry PID %d.", pid))
	return nil
}

// RescheduleMode selects how Reschedule interprets its value.
type RescheduleMode int

const (
	// RescheduleAbsolute sets the wake time to value (a unix second).
	// Negative values mean "now".
	RescheduleAbsolute RescheduleMode = iota
	// RescheduleRelative adds value to the current wake time, clamped so the
	// entry never lands in the past.
	RescheduleRelative
)

// Reschedule rewrites the wake time of a timed entry. Deferred entries are
// re-inserted so the queue stays sorted, tie-breaking as fresh arrivals.
// Semaphore entries keep their place (that queue is unordered) but must
// already carry a timeout. Entries in the immediate queues are due now and
// cannot be pushed back.
func (s *Scheduler) Reschedule(requester world.Ref, pid int, mode RescheduleMode, value int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	e := s.pids.lookup(pid)
	if e == nil {
		return ErrNoSuchPID
	}
	if e.cancelled {
		return ErrAlreadyHalted
	}
	if !s.store.Controls(requester, e.actor) && !s.store.CanHalt(requester) {
		return ErrPermission
	}
	timed := e.where == qDeferred || (e.where == qSemaphore && e.wake != 0)
	if !timed {
		return ErrNoTimeout
	}

	now := s.now().Unix()
	switch mode {
	case RescheduleAbsolute:
		if value < 0 {
			value = now
		}
		e.wake = value
	case RescheduleRelative:
		e.wake += value
		if e.wake < now {
			e.wake = now
		}
	}

	if e.where == qDeferred {
		s.unlinkLocked(e)
		s.seq++
		e.seq = s.seq
		s.insertDeferredLocked(e)
	}
	return nil
}
