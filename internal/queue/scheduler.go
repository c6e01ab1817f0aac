package queue

import (
	"fmt"
	"math/rand"
	"sort"
	"sync"
	"time"

	"mudq/internal/eventbus"
	"mudq/internal/telemetry"
	"mudq/internal/world"
	"mudq/pkg/logx"
)

// Config holds the scheduler's admission knobs. The zero value disables
// charging; MaxPID falls back to a sane ceiling.
type Config struct {
	// WaitCost is the currency debited from the actor's owner per enqueue
	// and refunded when the entry is dispatched or cancelled.
	WaitCost int `json:"waitCost" yaml:"waitCost"`

	// SurchargeFrequency makes one in this many enqueues cost one extra,
	// never-refunded unit, a slow sink on queue-heavy economies. 0 disables.
	SurchargeFrequency int `json:"surchargeFrequency" yaml:"surchargeFrequency"`

	// MaxPID bounds the job-id namespace and therefore total queued work.
	MaxPID int `json:"maxPid" yaml:"maxPid"`
}

func (c Config) withDefaults() Config {
	if c.WaitCost < 0 {
		c.WaitCost = 0
	}
	if c.SurchargeFrequency < 0 {
		c.SurchargeFrequency = 0
	}
	if c.MaxPID <= 0 {
		c.MaxPID = 8192
	}
	return c
}

// Scheduler owns the four queues, the PID registry and per-owner accounting.
// One mutex serializes every operation; it is released around evaluator
// calls so queued commands may re-enter the scheduler.
type Scheduler struct {
	mu sync.Mutex

	cfg   Config
	store world.Store
	eval  world.Evaluator
	notif world.Notifier
	log   logx.Logger
	bus   eventbus.Bus

	now  func() time.Time
	roll func(n int) int // uniform [0, n); the surcharge dice

	player   []*entry
	object   []*entry
	deferred []*entry // sorted by dueBefore
	sem      []*entry

	pids *pidRegistry
	seq  uint64

	// outstanding counts admitted-but-unsettled entries per owner. Incremented
	// at admission, decremented exactly once per entry in releaseLocked.
	outstanding map[world.Ref]int

	// dequeue gates RunSecond/RunTop; operators can freeze the scheduler
	// while leaving enqueueing live.
	dequeue bool

	// wakeCh carries a best-effort "new work arrived" signal so a sleeping
	// heartbeat can cut its idle timer short.
	wakeCh chan struct{}
}

// New builds a Scheduler over the given object store and command evaluator.
func New(cfg Config, store world.Store, eval world.Evaluator, notif world.Notifier, log logx.Logger) *Scheduler {
	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	c := cfg.withDefaults()
	return &Scheduler{
		cfg:         c,
		store:       store,
		eval:        eval,
		notif:       notif,
		log:         log.With(logx.String("component", "queue")),
		now:         time.Now,
		roll:        rng.Intn,
		pids:        newPIDRegistry(c.MaxPID),
		outstanding: make(map[world.Ref]int),
		dequeue:     true,
		wakeCh:      make(chan struct{}, 1),
	}
}

// Apply updates the hot admission knobs at runtime. MaxPID is structural
// (the registry is sized by it) and keeps its boot value.
func (s *Scheduler) Apply(cfg Config) {
	s.mu.Lock()
	c := cfg.withDefaults()
	s.cfg.WaitCost = c.WaitCost
	s.cfg.SurchargeFrequency = c.SurchargeFrequency
	s.mu.Unlock()
}

// SetClock replaces the time source. Tests drive simulated seconds with it.
func (s *Scheduler) SetClock(now func() time.Time) {
	s.mu.Lock()
	s.now = now
	s.mu.Unlock()
}

// SetRand replaces the surcharge dice. Tests make the surcharge deterministic.
func (s *Scheduler) SetRand(roll func(n int) int) {
	s.mu.Lock()
	s.roll = roll
	s.mu.Unlock()
}

// SetBus attaches an event bus for job lifecycle events. Optional.
func (s *Scheduler) SetBus(bus eventbus.Bus) {
	s.mu.Lock()
	s.bus = bus
	s.mu.Unlock()
}

// SetDequeue opens or closes the execution gate. While closed, RunSecond and
// RunTop are no-ops: nothing merges, promotes or executes, but enqueueing,
// cancellation and semaphore notification keep working.
func (s *Scheduler) SetDequeue(enabled bool) {
	s.mu.Lock()
	s.dequeue = enabled
	s.mu.Unlock()
}

// DequeueEnabled reports the state of the execution gate.
func (s *Scheduler) DequeueEnabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dequeue
}

// Outstanding returns the owner's admitted-but-unsettled entry count.
func (s *Scheduler) Outstanding(owner world.Ref) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.outstanding[owner]
}

// Depths returns the current length of each queue, tombstones included.
func (s *Scheduler) Depths() (player, object, deferred, semaphore int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.player), len(s.object), len(s.deferred), len(s.sem)
}

func (s *Scheduler) notify(target world.Ref, message string) {
	if s.notif != nil && target.Valid() {
		s.notif.Notify(target, message)
	}
}

func (s *Scheduler) publish(e eventbus.Event) {
	if s.bus != nil {
		s.bus.Publish(e)
	}
}

// Wake returns a channel that receives a signal when new work is admitted.
// The heartbeat uses it to cut a long idle sleep short.
func (s *Scheduler) Wake() <-chan struct{} { return s.wakeCh }

func (s *Scheduler) signalWake() {
	select {
	case s.wakeCh <- struct{}{}:
	default:
	}
}

func (s *Scheduler) publishDepthsLocked() {
	telemetry.SetDepths(len(s.player), len(s.object), len(s.deferred), len(s.sem))
}

// admitLocked runs admission control and, on success, returns a registered
// entry not yet linked into any queue. A failed admission has no net side
// effect on the store beyond the notifications it sends.
func (s *Scheduler) admitLocked(actor, cause world.Ref, command string, args []string, regs *world.Registers) (*entry, error) {
	if s.store.IsHalted(actor) {
		telemetry.AdmissionRejects.Inc()
		return nil, ErrHalted
	}
	owner := s.store.Owner(actor)

	cost := s.cfg.WaitCost
	if cost > 0 && s.cfg.SurchargeFrequency > 0 && s.roll(s.cfg.SurchargeFrequency) == 0 {
		cost++
	}
	if cost > 0 && !s.store.Charge(owner, cost) {
		s.notify(owner, "Not enough money to queue command.")
		telemetry.AdmissionRejects.Inc()
		return nil, ErrNoFunds
	}

	if s.outstanding[owner]+1 > s.store.QueueCeiling(owner) {
		// Runaway breaker: a ceiling breach means an automaton is queueing
		// faster than the drain can keep up. Refund, halt everything the
		// owner has queued, and stop the actor from executing further.
		if cost > 0 {
			s.store.Credit(owner, cost)
		}
		s.notify(owner, "Run away objects: too many commands queued.  Halted.")
		halted := s.haltMatchingLocked(owner, world.Nothing)
		s.store.SetHalted(actor, true)
		telemetry.RunawayBreaker.Inc()
		telemetry.AdmissionRejects.Inc()
		s.log.Warn("runaway breaker tripped",
			logx.Int("owner", int(owner)),
			logx.Int("actor", int(actor)),
			logx.Int("halted", halted))
		s.publish(eventbus.Event{Type: EventRunaway, Data: Runaway{Owner: owner, Actor: actor, Halted: halted}})
		return nil, ErrRunaway
	}

	pid := s.pids.allocate()
	if pid == 0 {
		if cost > 0 {
			s.store.Credit(owner, cost)
		}
		s.notify(owner, "Could not queue command. The queue is full.")
		telemetry.AdmissionRejects.Inc()
		return nil, ErrFull
	}

	s.outstanding[owner]++
	s.seq++
	e := &entry{
		pid:       pid,
		actor:     actor,
		owner:     owner,
		cause:     cause,
		command:   command,
		args:      append([]string(nil), args...),
		regs:      regs.Clone(),
		semTarget: world.Nothing,
		seq:       s.seq,
	}
	s.pids.register(pid, e)
	telemetry.EnqueueCounter.Inc()
	return e, nil
}

// giveLocked links an entry into the immediate queue matching its actor kind
// and clears any residual wake time.
func (s *Scheduler) giveLocked(e *entry) {
	e.wake = 0
	if s.store.IsPlayer(e.actor) {
		e.where = qPlayer
		s.player = append(s.player, e)
	} else {
		e.where = qObject
		s.object = append(s.object, e)
	}
}

// insertDeferredLocked places an entry into the deferred queue keeping it
// sorted; equal wake times preserve arrival order.
func (s *Scheduler) insertDeferredLocked(e *entry) {
	i := sort.Search(len(s.deferred), func(i int) bool {
		return e.dueBefore(s.deferred[i])
	})
	s.deferred = append(s.deferred, nil)
	copy(s.deferred[i+1:], s.deferred[i:])
	s.deferred[i] = e
	e.where = qDeferred
}

func removeEntry(q []*entry, e *entry) []*entry {
	for i, x := range q {
		if x == e {
			return append(q[:i], q[i+1:]...)
		}
	}
	return q
}

func (s *Scheduler) unlinkLocked(e *entry) {
	switch e.where {
	case qPlayer:
		s.player = removeEntry(s.player, e)
	case qObject:
		s.object = removeEntry(s.object, e)
	case qDeferred:
		s.deferred = removeEntry(s.deferred, e)
	case qSemaphore:
		s.sem = removeEntry(s.sem, e)
	}
	e.where = qNone
}

// releaseLocked settles accounting exactly once per entry: the owner's
// outstanding count drops, and when refund is true the enqueue cost comes
// back. The surcharge unit, when one was levied, is never returned.
func (s *Scheduler) releaseLocked(e *entry, refund bool) {
	if e.released {
		return
	}
	e.released = true
	if n := s.outstanding[e.owner]; n > 1 {
		s.outstanding[e.owner] = n - 1
	} else {
		delete(s.outstanding, e.owner)
	}
	if refund && s.cfg.WaitCost > 0 {
		s.store.Credit(e.owner, s.cfg.WaitCost)
	}
}

// destroyLocked unlinks the entry, frees its PID and drops owned state.
// Callers must have settled accounting through releaseLocked first.
func (s *Scheduler) destroyLocked(e *entry) {
	s.unlinkLocked(e)
	s.pids.unregister(e.pid)
	e.args = nil
	e.regs = nil
}

// EnqueueNow admits a command for execution on the next drain.
func (s *Scheduler) EnqueueNow(actor, cause world.Ref, command string, args []string, regs *world.Registers) (int, error) {
	return s.EnqueueAfter(actor, cause, 0, command, args, regs)
}

// EnqueueAfter admits a command that becomes due delay seconds from now.
// A delay of zero or less behaves like EnqueueNow; even then the command
// goes through the queue rather than running inline.
func (s *Scheduler) EnqueueAfter(actor, cause world.Ref, delay int64, command string, args []string, regs *world.Registers) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.admitLocked(actor, cause, command, args, regs)
	if err != nil {
		return 0, err
	}
	if delay > 0 {
		e.wake = s.now().Unix() + delay
		if e.wake <= 0 {
			// Absurd delays saturate instead of wrapping into the past.
			e.wake = int64(^uint64(0) >> 1)
		}
		s.insertDeferredLocked(e)
	} else {
		s.giveLocked(e)
	}
	s.publishDepthsLocked()
	s.signalWake()
	return e.pid, nil
}

// EnqueueOnSemaphore admits a command gated on the (target, slot) semaphore.
// slot <= 0 means DefaultSlot. timeout > 0 arms an expiry in seconds, after
// which the command runs even though it was never notified. If the slot's
// counter was at or below zero before this wait (an earlier notify
// over-satisfied demand), the command skips the wait and is queued to run
// immediately; the counter adjustment still happens.
func (s *Scheduler) EnqueueOnSemaphore(actor, cause, target world.Ref, slot int, timeout int64, command string, args []string, regs *world.Registers) (int, error) {
	if slot <= 0 {
		slot = DefaultSlot
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	e, err := s.admitLocked(actor, cause, command, args, regs)
	if err != nil {
		return 0, err
	}
	if s.store.SemAdd(target, slot, 1) <= 0 {
		s.giveLocked(e)
	} else {
		e.semTarget = target
		e.semSlot = slot
		if timeout > 0 {
			e.wake = s.now().Unix() + timeout
		}
		e.where = qSemaphore
		s.sem = append(s.sem, e)
	}
	s.publishDepthsLocked()
	s.signalWake()
	return e.pid, nil
}

// dispatch invokes the evaluator with a panic guard so one record's failure
// can never take down the drain loop behind it.
func (s *Scheduler) dispatch(actor, cause world.Ref, command string, args []string, regs *world.Registers) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("evaluator panic: %v", r)
		}
	}()
	return s.eval.Evaluate(actor, cause, command, args, regs)
}
