package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSemaphoreWaitAndSignal(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	alice := h.store.AddPlayer("Alice", 0)
	gate := h.store.AddThing("Gate", alice)

	_, err := h.s.EnqueueOnSemaphore(alice, alice, gate, 0, 0, "gated", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, h.store.SemCount(gate, DefaultSlot))

	// Not due, not notified: nothing runs.
	for i := 0; i < 3; i++ {
		h.tick(10)
	}
	assert.Empty(t, h.rec.commands())

	moved := h.s.Notify(gate, 0, NotifySignal, 1)
	assert.Equal(t, 1, moved)
	assert.Equal(t, 0, h.store.SemCount(gate, DefaultSlot))

	h.s.RunTop(10)
	assert.Equal(t, []string{"gated"}, h.rec.commands())
}

func TestSemaphoreSignalReleasesOldestFirst(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	alice := h.store.AddPlayer("Alice", 0)
	gate := h.store.AddThing("Gate", alice)

	for _, cmd := range []string{"first", "second", "third"} {
		_, err := h.s.EnqueueOnSemaphore(alice, alice, gate, 0, 0, cmd, nil, nil)
		require.NoError(t, err)
	}

	assert.Equal(t, 2, h.s.Notify(gate, 0, NotifySignal, 2))
	h.s.RunTop(10)
	assert.Equal(t, []string{"first", "second"}, h.rec.commands())
	assert.Equal(t, 1, h.store.SemCount(gate, DefaultSlot))
}

func TestOverNotifyLetsFutureWaitsPass(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	alice := h.store.AddPlayer("Alice", 0)
	gate := h.store.AddThing("Gate", alice)

	// Signal with nobody waiting drives the counter negative by the full
	// requested count.
	h.s.Notify(gate, 0, NotifySignal, 2)
	assert.Equal(t, -2, h.store.SemCount(gate, DefaultSlot))

	// The next wait consumes one credit and runs without blocking.
	_, err := h.s.EnqueueOnSemaphore(alice, alice, gate, 0, 0, "prepaid", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, -1, h.store.SemCount(gate, DefaultSlot))

	h.s.RunTop(10)
	assert.Equal(t, []string{"prepaid"}, h.rec.commands())
}

func TestNamedSlotsAreIndependent(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	alice := h.store.AddPlayer("Alice", 0)
	gate := h.store.AddThing("Gate", alice)

	_, err := h.s.EnqueueOnSemaphore(alice, alice, gate, 7, 0, "slot-7", nil, nil)
	require.NoError(t, err)
	_, err = h.s.EnqueueOnSemaphore(alice, alice, gate, 9, 0, "slot-9", nil, nil)
	require.NoError(t, err)

	// Signalling slot 9 must not release the slot-7 waiter.
	assert.Equal(t, 1, h.s.Notify(gate, 9, NotifySignal, 1))
	h.s.RunTop(10)
	assert.Equal(t, []string{"slot-9"}, h.rec.commands())
	assert.Equal(t, 1, h.store.SemCount(gate, 7))
}

func TestWildcardSlotMatchesEverything(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	alice := h.store.AddPlayer("Alice", 0)
	gate := h.store.AddThing("Gate", alice)

	_, err := h.s.EnqueueOnSemaphore(alice, alice, gate, 7, 0, "slot-7", nil, nil)
	require.NoError(t, err)
	_, err = h.s.EnqueueOnSemaphore(alice, alice, gate, 9, 0, "slot-9", nil, nil)
	require.NoError(t, err)

	assert.Equal(t, 2, h.s.Notify(gate, 0, NotifySignal, 2))
	h.s.RunTop(10)
	assert.ElementsMatch(t, []string{"slot-7", "slot-9"}, h.rec.commands())
}

func TestSemaphoreDrainRefundsWaiters(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{WaitCost: 10})
	alice := h.store.AddPlayer("Alice", 100)
	gate := h.store.AddThing("Gate", alice)

	for i := 0; i < 3; i++ {
		_, err := h.s.EnqueueOnSemaphore(alice, alice, gate, 0, 0, "gated", nil, nil)
		require.NoError(t, err)
	}
	require.Equal(t, 70, h.store.Balance(alice))

	assert.Equal(t, 3, h.s.Notify(gate, 0, NotifyDrain, 1))
	assert.Equal(t, 100, h.store.Balance(alice))
	assert.Equal(t, 0, h.s.Outstanding(alice))
	assert.Equal(t, 0, h.store.SemCount(gate, DefaultSlot))

	h.tick(10)
	assert.Empty(t, h.rec.commands())
}

func TestSemaphoreTimeoutExpires(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	alice := h.store.AddPlayer("Alice", 0)
	gate := h.store.AddThing("Gate", alice)

	_, err := h.s.EnqueueOnSemaphore(alice, alice, gate, 0, 3, "timed-out", nil, nil)
	require.NoError(t, err)

	h.tick(10)
	h.tick(10)
	assert.Empty(t, h.rec.commands(), "ran before the timeout")

	h.tick(10)
	assert.Equal(t, []string{"timed-out"}, h.rec.commands())
	// Expiry withdraws the wait from the slot counter.
	assert.Equal(t, 0, h.store.SemCount(gate, DefaultSlot))
}

func TestSignalledEntrySkipsExpiredTimeout(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	alice := h.store.AddPlayer("Alice", 0)
	gate := h.store.AddThing("Gate", alice)

	_, err := h.s.EnqueueOnSemaphore(alice, alice, gate, 0, 60, "gated", nil, nil)
	require.NoError(t, err)

	h.s.Notify(gate, 0, NotifySignal, 1)
	h.s.RunTop(10)
	require.Equal(t, []string{"gated"}, h.rec.commands())

	// The timeout sweep must not trip over the already-released entry.
	h.clock.advance(120)
	h.s.RunSecond()
	h.s.RunTop(10)
	assert.Equal(t, []string{"gated"}, h.rec.commands())
	assert.Equal(t, 0, h.store.SemCount(gate, DefaultSlot))
}
