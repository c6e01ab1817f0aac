package world

// Registers is a snapshot of the named-variable state a queued command runs
// under: the numbered scratch registers (%q0..) plus named extensions.
//
// A snapshot handed to the scheduler is cloned at enqueue time and owned
// exclusively by the queue entry until dispatch; callers may keep mutating
// their own copy freely.
type Registers struct {
	Q     []string
	Named map[string]string
}

// Clone returns a deep copy. Clone of nil is nil, which dispatch treats as
// "run with empty registers".
func (r *Registers) Clone() *Registers {
	if r == nil {
		return nil
	}
	cp := &Registers{}
	if len(r.Q) > 0 {
		cp.Q = make([]string, len(r.Q))
		copy(cp.Q, r.Q)
	}
	if len(r.Named) > 0 {
		cp.Named = make(map[string]string, len(r.Named))
		for k, v := range r.Named {
			cp.Named[k] = v
		}
	}
	return cp
}

// Empty reports whether the snapshot carries no bindings.
func (r *Registers) Empty() bool {
	return r == nil || (len(r.Q) == 0 && len(r.Named) == 0)
}
