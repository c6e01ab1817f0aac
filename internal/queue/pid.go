package queue

// pidRegistry is the dense namespace of small-integer job identifiers.
// Every active entry has exactly one mapping here, whichever queue holds
// it; the mapping is removed only when the entry is destroyed, so a
// cancelled-but-unswept entry stays addressable.
type pidRegistry struct {
	max    int
	cursor int
	byPID  map[int]*entry
}

func newPIDRegistry(max int) *pidRegistry {
	return &pidRegistry{max: max, cursor: 1, byPID: make(map[int]*entry)}
}

// allocate scans forward from the rolling cursor, wrapping at the ceiling
// and re-checking membership so an id still outstanding is never reissued.
// Returns 0 when a full wrap finds no free id (the scheduler is saturated).
func (r *pidRegistry) allocate() int {
	pid := r.cursor
	for i := 0; i < r.max; i++ {
		if pid > r.max {
			pid = 1
		}
		if _, taken := r.byPID[pid]; taken {
			pid++
			continue
		}
		r.cursor = pid + 1
		return pid
	}
	return 0
}

func (r *pidRegistry) register(pid int, e *entry) { r.byPID[pid] = e }

func (r *pidRegistry) unregister(pid int) { delete(r.byPID, pid) }

func (r *pidRegistry) lookup(pid int) *entry {
	if pid < 1 || pid > r.max {
		return nil
	}
	return r.byPID[pid]
}

func (r *pidRegistry) active() int { return len(r.byPID) }
