package scripting

import lua "github.com/yuin/gopher-lua"

// RegisterModules registers the arena.* Lua table into L. Scripts use it to
// reach back into the game:
//
//	arena.announce(msg)                                     -- narration broadcast
//	arena.apply_status(id, kind, stacks, duration[, amount]) -- status on the boss
//
// apply_status records a StatusRequest for the caller of CallPhaseHook to
// apply; the optional amount is the kind-specific magnitude (per-tick HP
// for over-time kinds, bonus fraction for vulnerability).
//
// Precondition: L must be from NewSandboxedState.
// Postcondition: arena global is defined in L.
func (m *Manager) RegisterModules(L *lua.LState) {
	arena := L.NewTable()

	L.SetField(arena, "announce", L.NewFunction(func(L *lua.LState) int {
		msg := L.CheckString(1)
		if m.Announce != nil {
			m.Announce(msg)
		}
		return 0
	}))

	// Runs while CallPhaseHook holds m.mu, so pending needs no extra lock.
	L.SetField(arena, "apply_status", L.NewFunction(func(L *lua.LState) int {
		m.pending = append(m.pending, StatusRequest{
			ID:       L.CheckString(1),
			Kind:     L.CheckString(2),
			Stacks:   L.CheckInt(3),
			Duration: L.CheckInt(4),
			Amount:   float64(L.OptNumber(5, 0)),
		})
		L.Push(lua.LTrue)
		return 1
	}))

	L.SetGlobal("arena", arena)
}
