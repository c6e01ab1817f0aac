package world

// Ref is a database reference: the small-integer identity of an in-world
// object (player, thing, room, ...). The scheduler never interprets a Ref
// beyond equality and the Store queries below.
type Ref int

// Nothing is the invalid/absent reference.
const Nothing Ref = -1

// Valid reports whether r can refer to a live object at all. Store.Valid
// additionally checks that the object actually exists.
func (r Ref) Valid() bool { return r >= 0 }

// Store is the object/attribute database the scheduler charges, queries and
// annotates. Its internals (persistence, attribute inheritance, locks) are
// another subsystem's problem.
type Store interface {
	// Valid reports whether ref names an existing object.
	Valid(ref Ref) bool
	// Gone reports whether ref is mid-destruction and must not run commands.
	Gone(ref Ref) bool
	// IsPlayer distinguishes human actors from in-world automata.
	IsPlayer(ref Ref) bool
	// Owner resolves the billing/quota entity for an actor.
	Owner(ref Ref) Ref
	// Name returns a display name for queue listings.
	Name(ref Ref) string

	// Controls reports whether actor may manipulate target's jobs.
	Controls(actor, target Ref) bool
	// CanHalt reports halt-anything privilege.
	CanHalt(ref Ref) bool
	// CanSeeQueue reports see-all-queues privilege.
	CanSeeQueue(ref Ref) bool

	IsHalted(ref Ref) bool
	SetHalted(ref Ref, halted bool)

	Balance(ref Ref) int
	// Charge debits amount and reports whether ref could afford it.
	// A failed Charge debits nothing.
	Charge(ref Ref, amount int) bool
	Credit(ref Ref, amount int)

	// QueueCeiling is the maximum outstanding job count for an owner.
	// Privileged owners scale with database size; others get a fixed quota.
	QueueCeiling(owner Ref) int

	// SemCount reads the waiter counter stored on target under slot.
	SemCount(target Ref, slot int) int
	// SemAdd adjusts the counter by delta and returns the new value.
	SemAdd(target Ref, slot, delta int) int
	// SemClear zeroes the counter (semaphore drain).
	SemClear(target Ref, slot int)
}

// Evaluator executes one queued command. It may call back into the scheduler
// to enqueue further work; the scheduler releases its own lock around
// Evaluate so such re-entry is safe.
type Evaluator interface {
	Evaluate(actor, cause Ref, command string, args []string, regs *Registers) error
}

// EvaluatorFunc adapts a function to the Evaluator interface.
type EvaluatorFunc func(actor, cause Ref, command string, args []string, regs *Registers) error

func (f EvaluatorFunc) Evaluate(actor, cause Ref, command string, args []string, regs *Registers) error {
	return f(actor, cause, command, args, regs)
}

// Notifier delivers human-readable text to an actor's session. Admission
// failures, halt counts and queue listings are reported through it.
type Notifier interface {
	Notify(target Ref, message string)
}

// NotifierFunc adapts a function to the Notifier interface.
type NotifierFunc func(target Ref, message string)

func (f NotifierFunc) Notify(target Ref, message string) { f(target, message) }
