package boss

import (
	"github.com/grimholt/skirmish/internal/game/combat"
	"github.com/grimholt/skirmish/internal/game/rng"
)

// Advance computes the boss's new phase from its current HP fraction: the
// new phase is the maximum phase among threshold rows whose hp_below_pct is
// >= the fraction, and never below the current phase — transitions are
// one-directional.
//
// Precondition: tmpl must have passed Validate; hpFrac in [0, 1] (callers
// use Combatant.HPFraction, which treats hp_max <= 0 as 1).
// Postcondition: newPhase >= inst.CurrentPhase; changed == (newPhase !=
// inst.CurrentPhase). The instance itself is not mutated; the caller
// persists the change before selecting an action.
func Advance(inst *Instance, hpFrac float64, tmpl *Template) (newPhase int, changed bool) {
	newPhase = inst.CurrentPhase
	for _, p := range tmpl.Phases {
		if p.HPBelowPct >= hpFrac && p.Phase > newPhase {
			newPhase = p.Phase
		}
	}
	return newPhase, newPhase != inst.CurrentPhase
}

// SelectSkill picks a skill uniformly from the active phase's pool using
// the deterministic RNG. An empty or missing pool falls back to the
// baseline skill.
//
// Postcondition: Returns a non-empty skill id; identical (seed, label,
// phase) always selects the same skill.
func SelectSkill(seed int64, label string, tmpl *Template, phase int) string {
	p := tmpl.PhaseFor(phase)
	if p == nil || len(p.SkillPool) == 0 {
		return combat.BaselineSkillID
	}
	id, err := rng.Pick(seed, label, p.SkillPool)
	if err != nil {
		return combat.BaselineSkillID
	}
	return id
}

// ShouldEnrage reports whether the boss enrages on this turn: the template
// marks an enrage turn, the session has reached it, and the boss has not
// already enraged.
func ShouldEnrage(inst *Instance, tmpl *Template, turn int) bool {
	return tmpl.EnrageTurn > 0 && turn >= tmpl.EnrageTurn && !inst.Enraged
}

// EnrageMultiplier is the flat damage multiplier an enraged boss applies on
// top of its skill multiplier.
const EnrageMultiplier = 1.5
