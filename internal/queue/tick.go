package queue

import (
	"time"

	"mudq/internal/eventbus"
	"mudq/internal/telemetry"
	"mudq/internal/world"
	"mudq/pkg/logx"
)

// RunSecond is the per-tick promote step. It merges the object immediate
// queue onto the tail of the player queue, moves due deferred entries to
// the immediate queues, and expires timed-out semaphore waits. It never
// executes anything; RunTop does that.
func (s *Scheduler) RunSecond() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.dequeue {
		return
	}

	// Automata run one merge behind human input: their entries sit in the
	// object queue until this tick folds them behind everything players
	// already had queued.
	if len(s.object) > 0 {
		for _, e := range s.object {
			e.where = qPlayer
		}
		s.player = append(s.player, s.object...)
		s.object = nil
	}

	now := s.now().Unix()

	// The deferred queue is sorted, so due entries are a prefix.
	for len(s.deferred) > 0 && s.deferred[0].wake <= now {
		e := s.deferred[0]
		s.deferred = s.deferred[1:]
		e.where = qNone
		s.giveLocked(e)
	}

	// Timed semaphore waits expire independently of being notified. Expiry
	// withdraws the wait: the slot counter drops by one and the entry runs.
	if len(s.sem) > 0 {
		keep := s.sem[:0]
		for _, e := range s.sem {
			if e.wake != 0 && e.wake <= now {
				s.store.SemAdd(e.semTarget, e.semSlot, -1)
				e.semTarget = world.Nothing
				e.where = qNone
				s.giveLocked(e)
			} else {
				keep = append(keep, e)
			}
		}
		s.sem = keep
	}

	s.publishDepthsLocked()
}

// RunTop drains up to budget entries from the head of the player immediate
// queue, handing each to the command evaluator. Tombstones and entries whose
// actor has vanished consume budget but do not execute. Returns the number
// of entries consumed; fewer than budget means the queue emptied.
func (s *Scheduler) RunTop(budget int) int {
	s.mu.Lock()
	if !s.dequeue {
		s.mu.Unlock()
		return 0
	}
	count := 0
	for count < budget && len(s.player) > 0 {
		e := s.player[0]
		s.player = s.player[1:]
		e.where = qNone
		count++

		if e.cancelled || !s.store.Valid(e.actor) || s.store.Gone(e.actor) {
			// Cancelled entries settled their refund when cancelled; a
			// vanished actor forfeits the cost but still frees the quota.
			s.releaseLocked(e, false)
			s.destroyLocked(e)
			continue
		}

		s.releaseLocked(e, true)
		// Tombstone while running so a re-entrant cancel-by-PID reports
		// "already halted" instead of settling this entry a second time.
		e.cancelled = true

		if s.store.IsHalted(e.actor) {
			s.destroyLocked(e)
			continue
		}

		actor, cause, command := e.actor, e.cause, e.command
		args, regs, pid := e.args, e.regs, e.pid

		s.mu.Unlock()
		start := time.Now()
		err := s.dispatch(actor, cause, command, args, regs)
		took := time.Since(start)
		telemetry.Dispatched.Inc()
		if err != nil {
			telemetry.EvaluatorFailures.Inc()
			s.log.Warn("queued command failed",
				logx.Int("pid", pid),
				logx.Int("actor", int(actor)),
				logx.Err(err))
		}
		s.publish(eventbus.Event{Type: EventDispatched, Data: Dispatch{
			PID:     pid,
			Actor:   actor,
			Cause:   cause,
			Command: command,
			Took:    took,
			Err:     errString(err),
		}})
		s.mu.Lock()
		s.destroyLocked(e)
	}
	s.publishDepthsLocked()
	s.mu.Unlock()
	return count
}

// NextDue tells the heartbeat how many seconds it may sleep: 0 when the
// player queue has work, 1 when only the object queue does (it merges on the
// next tick), otherwise one second less than the nearest wake time so the
// promote tick lands just before the entry is due.
func (s *Scheduler) NextDue() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.player) > 0 {
		return 0
	}
	if len(s.object) > 0 {
		return 1
	}
	now := s.now().Unix()
	min := int64(1000)
	if len(s.deferred) > 0 {
		d := s.deferred[0].wake - now
		if d <= 2 {
			return 1
		}
		if d < min {
			min = d
		}
	}
	for _, e := range s.sem {
		if e.wake == 0 {
			continue
		}
		d := e.wake - now
		if d <= 2 {
			return 1
		}
		if d < min {
			min = d
		}
	}
	return int(min) - 1
}

// QueueKick force-runs up to n entries right now, lifting the execution
// gate for the duration if an operator had closed it.
func (s *Scheduler) QueueKick(n int) int {
	s.mu.Lock()
	was := s.dequeue
	s.dequeue = true
	s.mu.Unlock()

	ran := s.RunTop(n)

	s.mu.Lock()
	s.dequeue = was
	s.mu.Unlock()
	return ran
}

// QueueWarp shifts every timed wait by seconds into the past (a positive
// warp makes work due sooner, a negative one pushes it out) and runs a
// promote pass. Semaphore timeouts are floored at one so a warped timeout
// still reads as timed rather than untimed.
func (s *Scheduler) QueueWarp(seconds int64) {
	s.mu.Lock()
	for _, e := range s.deferred {
		e.wake -= seconds
	}
	for _, e := range s.sem {
		if e.wake == 0 {
			continue
		}
		e.wake -= seconds
		if e.wake <= 0 {
			e.wake = 1
		}
	}
	was := s.dequeue
	s.dequeue = true
	s.mu.Unlock()

	s.RunSecond()

	s.mu.Lock()
	s.dequeue = was
	s.mu.Unlock()
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
