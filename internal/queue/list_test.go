package queue

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mudq/internal/world"
)

func TestListQueuesVerbosity(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	alice := h.store.AddPlayer("Alice", 0)
	bot := h.store.AddThing("Bot", alice)
	gate := h.store.AddThing("Gate", alice)

	h.s.EnqueueNow(alice, alice, "look", []string{"here"}, nil)
	h.s.EnqueueNow(bot, alice, "patrol", nil, nil)
	h.s.EnqueueAfter(alice, alice, 60, "later", nil, nil)
	h.s.EnqueueOnSemaphore(bot, bot, gate, 3, 0, "gated", nil, nil)

	summ, err := h.s.ListQueues(world.Nothing, world.Nothing, Summary)
	require.NoError(t, err)
	assert.Equal(t, 1, summ.Player.Matched)
	assert.Equal(t, 1, summ.Object.Matched)
	assert.Equal(t, 1, summ.Deferred.Matched)
	assert.Equal(t, 1, summ.Semaphore.Matched)
	assert.Empty(t, summ.Player.Entries, "summary carries no entries")

	brief, err := h.s.ListQueues(world.Nothing, world.Nothing, Brief)
	require.NoError(t, err)
	require.Len(t, brief.Player.Entries, 1)
	assert.Equal(t, "look", brief.Player.Entries[0].Command)
	assert.Nil(t, brief.Player.Entries[0].Args, "brief omits arguments")
	assert.Equal(t, int64(60), brief.Deferred.Entries[0].Remaining)
	assert.Equal(t, "Gate(#2)", brief.Semaphore.Entries[0].Semaphore)
	assert.Equal(t, 3, brief.Semaphore.Entries[0].Slot)

	long, err := h.s.ListQueues(world.Nothing, world.Nothing, Long)
	require.NoError(t, err)
	require.Len(t, long.Player.Entries, 1)
	assert.Equal(t, []string{"here"}, long.Player.Entries[0].Args)
	assert.Equal(t, "Alice(#0)", long.Object.Entries[0].Cause)
}

func TestListQueuesFilters(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	alice := h.store.AddPlayer("Alice", 0)
	bob := h.store.AddPlayer("Bob", 0)
	bot := h.store.AddThing("AliceBot", alice)

	h.s.EnqueueNow(alice, alice, "a", nil, nil)
	h.s.EnqueueNow(bot, bot, "b", nil, nil)
	h.s.EnqueueNow(bob, bob, "c", nil, nil)

	byOwner, err := h.s.ListQueues(alice, world.Nothing, Summary)
	require.NoError(t, err)
	assert.Equal(t, 1, byOwner.Player.Matched)
	assert.Equal(t, 1, byOwner.Object.Matched)

	byActor, err := h.s.ListQueues(world.Nothing, bob, Summary)
	require.NoError(t, err)
	assert.Equal(t, 1, byActor.Player.Matched)
	assert.Equal(t, 0, byActor.Object.Matched)

	_, err = h.s.ListQueues(alice, bob, Summary)
	assert.ErrorIs(t, err, ErrBadFilter)
}

func TestListQueuesCountsTombstones(t *testing.T) {
	t.Parallel()
	h := newHarness(t, Config{})
	alice := h.store.AddPlayer("Alice", 0)

	h.s.EnqueueNow(alice, alice, "a", nil, nil)
	h.s.EnqueueNow(alice, alice, "b", nil, nil)
	pid, err := h.s.EnqueueNow(alice, alice, "c", nil, nil)
	require.NoError(t, err)
	require.NoError(t, h.s.CancelByPID(alice, pid))

	l, err := h.s.ListQueues(world.Nothing, world.Nothing, Summary)
	require.NoError(t, err)
	assert.Equal(t, 3, l.Player.Total)
	assert.Equal(t, 2, l.Player.Matched)
	assert.Equal(t, 1, l.Player.Tombstones)

	assert.Equal(t, "Totals: Player...2/3[1del]  Object...0/0[0del]  Wait...0/0  Semaphore...0/0", l.Totals(true))
	assert.Equal(t, "Totals: Player...2/3  Object...0/0  Wait...0/0  Semaphore...0/0", l.Totals(false))
}
