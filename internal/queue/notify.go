package queue

import (
	"mudq/internal/telemetry"
	"mudq/internal/world"
)

// NotifyMode selects what Notify does with matching waiters.
type NotifyMode int

const (
	// NotifySignal releases up to count waiters, oldest first, into the
	// immediate queues and decrements the slot counter by the full count.
	NotifySignal NotifyMode = iota
	// NotifyDrain discards every matching waiter with a refund and zeroes
	// the slot counter.
	NotifyDrain
)

// Notify satisfies or drains waits on the (target, slot) semaphore and
// returns how many entries were released or discarded.
//
// A slot of 0 is the wildcard: it matches waiters on any slot of the target,
// while the counter adjustment lands on DefaultSlot. A named slot whose
// counter is not positive has no recorded demand, so no waiters are scanned;
// the counter still moves, and a counter driven negative lets that many
// future waits on the slot run without blocking.
func (s *Scheduler) Notify(target world.Ref, slot int, mode NotifyMode, count int) int {
	if count <= 0 {
		count = 1
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	pending := 1
	if slot != 0 {
		pending = s.store.SemCount(target, slot)
	}

	moved := 0
	if pending > 0 {
		keep := s.sem[:0]
		for _, e := range s.sem {
			match := e.semTarget == target && (slot == 0 || e.semSlot == slot)
			if match && (mode == NotifyDrain || moved < count) {
				moved++
				e.where = qNone
				if mode == NotifySignal {
					s.giveLocked(e)
				} else {
					s.releaseLocked(e, true)
					s.destroyLocked(e)
					telemetry.Cancelled.Inc()
				}
			} else {
				keep = append(keep, e)
			}
		}
		s.sem = keep
	}

	effSlot := slot
	if effSlot == 0 {
		effSlot = DefaultSlot
	}
	if mode == NotifySignal {
		s.store.SemAdd(target, effSlot, -count)
		telemetry.SemaphoreSignals.Add(float64(moved))
	} else {
		s.store.SemClear(target, effSlot)
	}

	s.publishDepthsLocked()
	if moved > 0 && mode == NotifySignal {
		s.signalWake()
	}
	return moved
}
