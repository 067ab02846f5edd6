package combat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/grimholt/skirmish/internal/game/combat"
)

// TestNewTurnOrder verifies construction and duplicate rejection.
func TestNewTurnOrder(t *testing.T) {
	order, err := combat.NewTurnOrder([]string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, 3, order.Len())

	id, ok := order.CombatantAt(1)
	require.True(t, ok)
	assert.Equal(t, "b", id)

	_, err = combat.NewTurnOrder([]string{"a", "a"})
	assert.Error(t, err, "duplicate combatants must be rejected")

	_, err = combat.NewTurnOrder(nil)
	assert.Error(t, err, "empty order must be rejected")
}

// TestFromSlots verifies persisted slots must be a contiguous run from 0.
func TestFromSlots(t *testing.T) {
	_, err := combat.FromSlots([]combat.Slot{
		{Index: 0, CombatantID: "a"},
		{Index: 2, CombatantID: "b"},
	})
	assert.Error(t, err, "gap in indices must be rejected")

	order, err := combat.FromSlots([]combat.Slot{
		{Index: 0, CombatantID: "a"},
		{Index: 1, CombatantID: "b"},
	})
	require.NoError(t, err)
	assert.Equal(t, 2, order.Len())
}

// TestCombatantAt_OutOfRange verifies index bounds.
func TestCombatantAt_OutOfRange(t *testing.T) {
	order, err := combat.NewTurnOrder([]string{"a"})
	require.NoError(t, err)
	_, ok := order.CombatantAt(-1)
	assert.False(t, ok)
	_, ok = order.CombatantAt(1)
	assert.False(t, ok)
}

// TestNextAliveIndex_SkipsDead verifies dead slots are skipped, wrapping.
func TestNextAliveIndex_SkipsDead(t *testing.T) {
	order, err := combat.NewTurnOrder([]string{"a", "b", "c", "d"})
	require.NoError(t, err)

	alive := map[string]bool{"a": true, "b": false, "c": false, "d": true}
	aliveFn := func(id string) bool { return alive[id] }

	assert.Equal(t, 3, order.NextAliveIndex(0, aliveFn), "b and c are dead, next is d")
	assert.Equal(t, 0, order.NextAliveIndex(3, aliveFn), "wraps back to a")
}

// TestNextAliveIndex_NobodyElseAlive verifies the starting index is returned
// unchanged when no other combatant lives.
func TestNextAliveIndex_NobodyElseAlive(t *testing.T) {
	order, err := combat.NewTurnOrder([]string{"a", "b", "c"})
	require.NoError(t, err)

	aliveFn := func(id string) bool { return id == "b" }
	assert.Equal(t, 1, order.NextAliveIndex(1, aliveFn))

	noneFn := func(string) bool { return false }
	assert.Equal(t, 2, order.NextAliveIndex(2, noneFn))
}

// TestNextAliveIndex_Closure_Property verifies the turn-order closure
// property: the returned index is always present in the order, and equals
// the start only when no other combatant is alive.
func TestNextAliveIndex_Closure_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		n := rapid.IntRange(1, 12).Draw(rt, "n")
		ids := make([]string, n)
		for i := range ids {
			ids[i] = string(rune('a' + i))
		}
		order, err := combat.NewTurnOrder(ids)
		require.NoError(rt, err)

		aliveSet := make(map[string]bool, n)
		for _, id := range ids {
			aliveSet[id] = rapid.Bool().Draw(rt, "alive_"+id)
		}
		from := rapid.IntRange(0, n-1).Draw(rt, "from")

		next := order.NextAliveIndex(from, func(id string) bool { return aliveSet[id] })

		_, ok := order.CombatantAt(next)
		assert.True(rt, ok, "returned index must be present in the order")

		otherAlive := false
		for i, id := range ids {
			if i != from && aliveSet[id] {
				otherAlive = true
			}
		}
		if !otherAlive {
			assert.Equal(rt, from, next, "without another living combatant the index is unchanged")
		} else {
			nextID, _ := order.CombatantAt(next)
			assert.True(rt, aliveSet[nextID], "advanced index must point at a living combatant")
		}
	})
}
