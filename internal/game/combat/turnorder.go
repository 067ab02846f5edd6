package combat

import "fmt"

// Slot binds one turn index to one combatant for the life of the combat.
type Slot struct {
	Index       int
	CombatantID string
}

// TurnOrder is the fixed cyclic sequence deciding whose turn is next.
// The cycle length never changes after creation; dead combatants are
// skipped, not removed.
type TurnOrder struct {
	slots []Slot
}

// NewTurnOrder builds a TurnOrder from an ordered list of combatant IDs.
//
// Precondition: ids must be non-empty and free of duplicates.
// Postcondition: Len() == len(ids); slot i maps to ids[i].
func NewTurnOrder(ids []string) (TurnOrder, error) {
	if len(ids) == 0 {
		return TurnOrder{}, fmt.Errorf("turn order: no combatants")
	}
	seen := make(map[string]bool, len(ids))
	slots := make([]Slot, len(ids))
	for i, id := range ids {
		if seen[id] {
			return TurnOrder{}, fmt.Errorf("turn order: combatant %q appears twice", id)
		}
		seen[id] = true
		slots[i] = Slot{Index: i, CombatantID: id}
	}
	return TurnOrder{slots: slots}, nil
}

// FromSlots rebuilds a TurnOrder from persisted slots, which must already be
// ordered by index starting at zero.
//
// Postcondition: Returns an error when the slots are empty or the indices
// are not a contiguous run from 0.
func FromSlots(slots []Slot) (TurnOrder, error) {
	if len(slots) == 0 {
		return TurnOrder{}, fmt.Errorf("turn order: no slots")
	}
	for i, s := range slots {
		if s.Index != i {
			return TurnOrder{}, fmt.Errorf("turn order: slot %d has index %d", i, s.Index)
		}
	}
	cp := make([]Slot, len(slots))
	copy(cp, slots)
	return TurnOrder{slots: cp}, nil
}

// Len returns the fixed cycle length.
func (o TurnOrder) Len() int { return len(o.slots) }

// Slots returns a copy of the underlying slots.
func (o TurnOrder) Slots() []Slot {
	cp := make([]Slot, len(o.slots))
	copy(cp, o.slots)
	return cp
}

// CombatantAt resolves the combatant ID occupying index.
//
// Postcondition: Returns (id, true) when 0 <= index < Len(), ("", false)
// otherwise.
func (o TurnOrder) CombatantAt(index int) (string, bool) {
	if index < 0 || index >= len(o.slots) {
		return "", false
	}
	return o.slots[index].CombatantID, true
}

// NextAliveIndex scans forward from the slot after `from`, wrapping around
// the cycle, and returns the first index whose combatant satisfies alive.
// When no other combatant in the cycle is alive, `from` is returned
// unchanged.
//
// Precondition: 0 <= from < Len(); alive must be non-nil.
// Postcondition: The returned index is always present in the order.
func (o TurnOrder) NextAliveIndex(from int, alive func(combatantID string) bool) int {
	n := len(o.slots)
	for step := 1; step <= n; step++ {
		idx := (from + step) % n
		if idx == from {
			break
		}
		if alive(o.slots[idx].CombatantID) {
			return idx
		}
	}
	return from
}
