package queue

import (
	"fmt"

	"mudq/internal/world"
)

// Verbosity selects how much detail ListQueues returns per entry.
type Verbosity int

const (
	// Brief lists matching entries without their arguments.
	Brief Verbosity = iota
	// Summary returns counts only.
	Summary
	// Long adds arguments and the causing object to every entry.
	Long
)

// EntryInfo is the listing view of one queue entry.
type EntryInfo struct {
	PID       int
	Actor     string
	Cause     string   // Long only
	Command   string
	Args      []string // Long only
	Remaining int64    // seconds until due; 0 when not time-gated
	Semaphore string   // target display name; empty when not semaphore-gated
	Slot      int
}

// QueueInfo summarizes one of the four queues.
type QueueInfo struct {
	Name       string
	Total      int // every linked entry, live or not
	Matched    int // live entries passing the filter
	Tombstones int // cancelled entries awaiting the drain sweep
	Entries    []EntryInfo
}

// Listing is a filtered snapshot of the whole scheduler.
type Listing struct {
	Player    QueueInfo
	Object    QueueInfo
	Deferred  QueueInfo
	Semaphore QueueInfo
}

// Totals renders the one-line footer of a queue listing. showDeleted adds
// tombstone counts, which only privileged viewers should see.
func (l Listing) Totals(showDeleted bool) string {
	if showDeleted {
		return fmt.Sprintf("Totals: Player...%d/%d[%ddel]  Object...%d/%d[%ddel]  Wait...%d/%d  Semaphore...%d/%d",
			l.Player.Matched, l.Player.Total, l.Player.Tombstones,
			l.Object.Matched, l.Object.Total, l.Object.Tombstones,
			l.Deferred.Matched, l.Deferred.Total,
			l.Semaphore.Matched, l.Semaphore.Total)
	}
	return fmt.Sprintf("Totals: Player...%d/%d  Object...%d/%d  Wait...%d/%d  Semaphore...%d/%d",
		l.Player.Matched, l.Player.Total,
		l.Object.Matched, l.Object.Total,
		l.Deferred.Matched, l.Deferred.Total,
		l.Semaphore.Matched, l.Semaphore.Total)
}

// ListQueues snapshots the scheduler under the same owner/actor filter rules
// as CancelMatching. Visibility policy (who may pass which filters) belongs
// to the caller.
func (s *Scheduler) ListQueues(owner, actor world.Ref, v Verbosity) (Listing, error) {
	if owner != world.Nothing && actor != world.Nothing {
		return Listing{}, ErrBadFilter
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now().Unix()
	return Listing{
		Player:    s.listLocked("Player", s.player, owner, actor, v, now),
		Object:    s.listLocked("Object", s.object, owner, actor, v, now),
		Deferred:  s.listLocked("Wait", s.deferred, owner, actor, v, now),
		Semaphore: s.listLocked("Semaphore", s.sem, owner, actor, v, now),
	}, nil
}

func (s *Scheduler) listLocked(name string, q []*entry, owner, actor world.Ref, v Verbosity, now int64) QueueInfo {
	qi := QueueInfo{Name: name, Total: len(q)}
	for _, e := range q {
		if e.cancelled {
			qi.Tombstones++
			continue
		}
		if !s.matchLocked(e, owner, actor) {
			continue
		}
		qi.Matched++
		if v == Summary {
			continue
		}
		info := EntryInfo{
			PID:     e.pid,
			Actor:   s.store.Name(e.actor),
			Command: e.command,
		}
		if e.wake > 0 {
			info.Remaining = e.wake - now
		}
		if e.semTarget != world.Nothing {
			info.Semaphore = s.store.Name(e.semTarget)
			info.Slot = e.semSlot
		}
		if v == Long {
			info.Args = append([]string(nil), e.args...)
			info.Cause = s.store.Name(e.cause)
		}
		qi.Entries = append(qi.Entries, info)
	}
	return qi
}
