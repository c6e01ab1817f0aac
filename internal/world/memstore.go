package world

import (
	"fmt"
	"sync"
)

// Kind classifies an object for queue-priority purposes.
type Kind int

const (
	KindPlayer Kind = iota
	KindThing
)

// Object is one entry in the in-memory reference store.
type Object struct {
	Name    string
	Kind    Kind
	Owner   Ref // players own themselves
	Wizard  bool
	Halted  bool
	Gone    bool
	Balance int

	sems map[int]int
}

// MemStore is an in-memory Store used by tests and the demo daemon. The real
// server backs this interface with its attribute database.
type MemStore struct {
	mu          sync.Mutex
	objects     map[Ref]*Object
	next        Ref
	playerQuota int
}

// NewMemStore creates an empty store. playerQuota is the fixed outstanding
// ceiling for unprivileged owners.
func NewMemStore(playerQuota int) *MemStore {
	if playerQuota <= 0 {
		playerQuota = 100
	}
	return &MemStore{objects: map[Ref]*Object{}, playerQuota: playerQuota}
}

// Add inserts obj and returns its new reference.
func (s *MemStore) Add(obj Object) Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	ref := s.next
	s.next++
	if obj.Kind == KindPlayer {
		obj.Owner = ref
	}
	cp := obj
	cp.sems = map[int]int{}
	s.objects[ref] = &cp
	return ref
}

// AddPlayer is shorthand for adding a self-owned player object.
func (s *MemStore) AddPlayer(name string, balance int) Ref {
	return s.Add(Object{Name: name, Kind: KindPlayer, Balance: balance})
}

// AddThing is shorthand for adding an automaton owned by owner.
func (s *MemStore) AddThing(name string, owner Ref) Ref {
	return s.Add(Object{Name: name, Kind: KindThing, Owner: owner})
}

func (s *MemStore) get(ref Ref) *Object {
	if !ref.Valid() {
		return nil
	}
	return s.objects[ref]
}

func (s *MemStore) Valid(ref Ref) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.get(ref) != nil
}

func (s *MemStore) Gone(ref Ref) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.get(ref)
	return o == nil || o.Gone
}

func (s *MemStore) IsPlayer(ref Ref) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.get(ref)
	return o != nil && o.Kind == KindPlayer
}

func (s *MemStore) Owner(ref Ref) Ref {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.get(ref)
	if o == nil {
		return Nothing
	}
	return o.Owner
}

func (s *MemStore) Name(ref Ref) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.get(ref)
	if o == nil {
		return fmt.Sprintf("#%d", int(ref))
	}
	return fmt.Sprintf("%s(#%d)", o.Name, int(ref))
}

func (s *MemStore) Controls(actor, target Ref) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, t := s.get(actor), s.get(target)
	if a == nil || t == nil {
		return false
	}
	return a.Wizard || a.Owner == t.Owner
}

func (s *MemStore) CanHalt(ref Ref) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.get(ref)
	return o != nil && o.Wizard
}

func (s *MemStore) CanSeeQueue(ref Ref) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.get(ref)
	return o != nil && o.Wizard
}

func (s *MemStore) IsHalted(ref Ref) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.get(ref)
	return o != nil && o.Halted
}

func (s *MemStore) SetHalted(ref Ref, halted bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o := s.get(ref); o != nil {
		o.Halted = halted
	}
}

func (s *MemStore) SetGone(ref Ref, gone bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o := s.get(ref); o != nil {
		o.Gone = gone
	}
}

func (s *MemStore) Balance(ref Ref) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.get(ref)
	if o == nil {
		return 0
	}
	return o.Balance
}

func (s *MemStore) Charge(ref Ref, amount int) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.get(ref)
	if o == nil || o.Balance < amount {
		return false
	}
	o.Balance -= amount
	return true
}

func (s *MemStore) Credit(ref Ref, amount int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o := s.get(ref); o != nil {
		o.Balance += amount
	}
}

// QueueCeiling: wizards may keep one job per database object plus one;
// everyone else gets the fixed player quota.
func (s *MemStore) QueueCeiling(owner Ref) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.get(owner)
	if o != nil && o.Wizard {
		return len(s.objects) + 1
	}
	return s.playerQuota
}

func (s *MemStore) SemCount(target Ref, slot int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.get(target)
	if o == nil {
		return 0
	}
	return o.sems[slot]
}

func (s *MemStore) SemAdd(target Ref, slot, delta int) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	o := s.get(target)
	if o == nil {
		return 0
	}
	n := o.sems[slot] + delta
	if n == 0 {
		delete(o.sems, slot)
	} else {
		o.sems[slot] = n
	}
	return n
}

func (s *MemStore) SemClear(target Ref, slot int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if o := s.get(target); o != nil {
		delete(o.sems, slot)
	}
}
