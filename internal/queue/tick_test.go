package queue

import (
	"errors"
	"reflect"
	"testing"

	"mudq/internal/world"
)

func TestDeferredRunsInWakeOrder(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	alice := h.store.AddPlayer("Alice", 0)

	// Enqueued 5s, 1s, 3s; must run 1s, 3s, 5s.
	h.s.EnqueueAfter(alice, alice, 5, "five", nil, nil)
	h.s.EnqueueAfter(alice, alice, 1, "one", nil, nil)
	h.s.EnqueueAfter(alice, alice, 3, "three", nil, nil)

	for i := 0; i < 6; i++ {
		h.tick(10)
	}
	want := []string{"one", "three", "five"}
	if got := h.rec.commands(); !reflect.DeepEqual(got, want) {
		t.Fatalf("ran = %v, want %v", got, want)
	}
}

func TestDeferredTiesKeepArrivalOrder(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	alice := h.store.AddPlayer("Alice", 0)

	h.s.EnqueueAfter(alice, alice, 2, "first", nil, nil)
	h.s.EnqueueAfter(alice, alice, 2, "second", nil, nil)
	h.s.EnqueueAfter(alice, alice, 2, "third", nil, nil)

	for i := 0; i < 3; i++ {
		h.tick(10)
	}
	want := []string{"first", "second", "third"}
	if got := h.rec.commands(); !reflect.DeepEqual(got, want) {
		t.Fatalf("ran = %v, want %v", got, want)
	}
}

func TestDeferredQueueStaysSorted(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	alice := h.store.AddPlayer("Alice", 0)

	for _, delay := range []int64{30, 5, 20, 5, 60, 1} {
		if _, err := h.s.EnqueueAfter(alice, alice, delay, "x", nil, nil); err != nil {
			t.Fatalf("EnqueueAfter(%d): %v", delay, err)
		}
	}
	h.s.mu.Lock()
	defer h.s.mu.Unlock()
	for i := 1; i < len(h.s.deferred); i++ {
		prev, cur := h.s.deferred[i-1], h.s.deferred[i]
		if cur.dueBefore(prev) {
			t.Fatalf("deferred[%d] (wake %d, seq %d) due before deferred[%d] (wake %d, seq %d)",
				i, cur.wake, cur.seq, i-1, prev.wake, prev.seq)
		}
	}
}

func TestNextDue(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	alice := h.store.AddPlayer("Alice", 0)
	bot := h.store.AddThing("Bot", alice)

	if got := h.s.NextDue(); got != 999 {
		t.Fatalf("idle NextDue = %d, want 999", got)
	}

	h.s.EnqueueAfter(alice, alice, 60, "later", nil, nil)
	if got := h.s.NextDue(); got != 59 {
		t.Fatalf("NextDue with 60s wait = %d, want 59", got)
	}

	h.s.EnqueueAfter(alice, alice, 2, "soon", nil, nil)
	if got := h.s.NextDue(); got != 1 {
		t.Fatalf("NextDue with imminent wait = %d, want 1", got)
	}

	h.s.EnqueueNow(bot, bot, "bot", nil, nil)
	if got := h.s.NextDue(); got != 1 {
		t.Fatalf("NextDue with object work = %d, want 1", got)
	}

	h.s.EnqueueNow(alice, alice, "now", nil, nil)
	if got := h.s.NextDue(); got != 0 {
		t.Fatalf("NextDue with player work = %d, want 0", got)
	}
}

func TestRunTopHonorsBudget(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	alice := h.store.AddPlayer("Alice", 0)
	for i := 0; i < 5; i++ {
		h.s.EnqueueNow(alice, alice, "cmd", nil, nil)
	}

	if ran := h.s.RunTop(3); ran != 3 {
		t.Fatalf("RunTop(3) = %d, want 3", ran)
	}
	if got := len(h.rec.commands()); got != 3 {
		t.Fatalf("executed %d, want 3", got)
	}
	if ran := h.s.RunTop(10); ran != 2 {
		t.Fatalf("RunTop(10) on remainder = %d, want 2", ran)
	}
}

func TestTombstonesConsumeBudgetWithoutRunning(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{WaitCost: 10})
	alice := h.store.AddPlayer("Alice", 100)
	for i := 0; i < 3; i++ {
		h.s.EnqueueNow(alice, alice, "cmd", nil, nil)
	}
	if _, err := h.s.CancelMatching(world.Nothing, alice); err != nil {
		t.Fatalf("CancelMatching: %v", err)
	}
	if got := h.store.Balance(alice); got != 100 {
		t.Fatalf("balance after cancel = %d, want 100", got)
	}

	ran := h.s.RunTop(10)
	if ran != 3 {
		t.Fatalf("RunTop = %d, want 3 (tombstones count)", ran)
	}
	if got := h.rec.commands(); len(got) != 0 {
		t.Fatalf("tombstones executed: %v", got)
	}
	if got := h.store.Balance(alice); got != 100 {
		t.Fatalf("tombstone sweep double-refunded: balance = %d", got)
	}
}

func TestVanishedActorForfeitsCost(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{WaitCost: 10})
	alice := h.store.AddPlayer("Alice", 100)
	bot := h.store.AddThing("Bot", alice)

	h.s.EnqueueNow(bot, bot, "cmd", nil, nil)
	h.store.SetGone(bot, true)

	h.tick(10)
	if got := h.rec.commands(); len(got) != 0 {
		t.Fatalf("gone actor executed: %v", got)
	}
	if got := h.store.Balance(alice); got != 90 {
		t.Fatalf("gone actor refunded: balance = %d, want 90", got)
	}
	if got := h.s.Outstanding(alice); got != 0 {
		t.Fatalf("outstanding = %d, want 0", got)
	}
}

func TestHaltedAtDrainIsSkippedButRefunded(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{WaitCost: 10})
	alice := h.store.AddPlayer("Alice", 100)

	h.s.EnqueueNow(alice, alice, "cmd", nil, nil)
	h.store.SetHalted(alice, true)

	h.s.RunTop(10)
	if got := h.rec.commands(); len(got) != 0 {
		t.Fatalf("halted actor executed: %v", got)
	}
	if got := h.store.Balance(alice); got != 100 {
		t.Fatalf("balance = %d, want 100", got)
	}
}

func TestEvaluatorMayReenter(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	alice := h.store.AddPlayer("Alice", 0)

	h.s.eval = world.EvaluatorFunc(func(actor, cause world.Ref, command string, _ []string, _ *world.Registers) error {
		h.rec.ran = append(h.rec.ran, command)
		if command == "parent" {
			if _, err := h.s.EnqueueNow(actor, cause, "child", nil, nil); err != nil {
				t.Errorf("re-entrant enqueue: %v", err)
			}
		}
		return nil
	})

	h.s.EnqueueNow(alice, alice, "parent", nil, nil)
	h.s.RunTop(10)
	want := []string{"parent", "child"}
	if got := h.rec.commands(); !reflect.DeepEqual(got, want) {
		t.Fatalf("ran = %v, want %v", got, want)
	}
}

func TestEvaluatorPanicIsContained(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	alice := h.store.AddPlayer("Alice", 0)

	h.s.eval = world.EvaluatorFunc(func(_, _ world.Ref, command string, _ []string, _ *world.Registers) error {
		if command == "boom" {
			panic("evaluator bug")
		}
		h.rec.ran = append(h.rec.ran, command)
		return nil
	})

	h.s.EnqueueNow(alice, alice, "boom", nil, nil)
	h.s.EnqueueNow(alice, alice, "after", nil, nil)
	if ran := h.s.RunTop(10); ran != 2 {
		t.Fatalf("RunTop = %d, want 2", ran)
	}
	if got := h.rec.commands(); !reflect.DeepEqual(got, []string{"after"}) {
		t.Fatalf("ran = %v, want [after]", got)
	}
}

func TestDequeueGateFreezesExecution(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	alice := h.store.AddPlayer("Alice", 0)

	h.s.SetDequeue(false)
	h.s.EnqueueAfter(alice, alice, 1, "later", nil, nil)
	h.s.EnqueueNow(alice, alice, "now", nil, nil)

	for i := 0; i < 5; i++ {
		h.tick(10)
	}
	if got := h.rec.commands(); len(got) != 0 {
		t.Fatalf("gated scheduler ran: %v", got)
	}

	h.s.SetDequeue(true)
	h.tick(10)
	if got := len(h.rec.commands()); got != 2 {
		t.Fatalf("executed %d after reopening, want 2", got)
	}
}

func TestQueueKickBypassesClosedGate(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	alice := h.store.AddPlayer("Alice", 0)

	h.s.SetDequeue(false)
	h.s.EnqueueNow(alice, alice, "one", nil, nil)
	h.s.EnqueueNow(alice, alice, "two", nil, nil)

	if ran := h.s.QueueKick(1); ran != 1 {
		t.Fatalf("QueueKick = %d, want 1", ran)
	}
	if got := h.rec.commands(); !reflect.DeepEqual(got, []string{"one"}) {
		t.Fatalf("ran = %v, want [one]", got)
	}
	if h.s.DequeueEnabled() {
		t.Fatal("gate reopened by kick")
	}
}

func TestQueueWarpPullsWaitsForward(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	alice := h.store.AddPlayer("Alice", 0)

	h.s.EnqueueAfter(alice, alice, 600, "warped", nil, nil)
	h.tick(10)
	if got := h.rec.commands(); len(got) != 0 {
		t.Fatalf("ran before warp: %v", got)
	}

	h.s.QueueWarp(600)
	h.s.RunTop(10)
	if got := h.rec.commands(); !reflect.DeepEqual(got, []string{"warped"}) {
		t.Fatalf("ran = %v, want [warped]", got)
	}
}

func TestRescheduleMovesDeferredEntry(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	alice := h.store.AddPlayer("Alice", 0)

	slow, _ := h.s.EnqueueAfter(alice, alice, 100, "slow", nil, nil)
	h.s.EnqueueAfter(alice, alice, 3, "fast", nil, nil)

	// Pull the 100s entry in front of the 3s one.
	if err := h.s.Reschedule(alice, slow, RescheduleAbsolute, h.clock.now().Unix()+1); err != nil {
		t.Fatalf("Reschedule: %v", err)
	}
	for i := 0; i < 4; i++ {
		h.tick(10)
	}
	want := []string{"slow", "fast"}
	if got := h.rec.commands(); !reflect.DeepEqual(got, want) {
		t.Fatalf("ran = %v, want %v", got, want)
	}
}

func TestRescheduleRejectsUntimedEntries(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	alice := h.store.AddPlayer("Alice", 0)
	sem := h.store.AddThing("Gate", alice)

	immediate, _ := h.s.EnqueueNow(alice, alice, "now", nil, nil)
	if err := h.s.Reschedule(alice, immediate, RescheduleRelative, 10); !errors.Is(err, ErrNoTimeout) {
		t.Fatalf("immediate reschedule err = %v, want ErrNoTimeout", err)
	}

	waiter, _ := h.s.EnqueueOnSemaphore(alice, alice, sem, 0, 0, "gated", nil, nil)
	if err := h.s.Reschedule(alice, waiter, RescheduleRelative, 10); !errors.Is(err, ErrNoTimeout) {
		t.Fatalf("untimed semaphore reschedule err = %v, want ErrNoTimeout", err)
	}

	timed, _ := h.s.EnqueueOnSemaphore(alice, alice, sem, 0, 60, "timed", nil, nil)
	if err := h.s.Reschedule(alice, timed, RescheduleRelative, 60); err != nil {
		t.Fatalf("timed semaphore reschedule: %v", err)
	}
}
