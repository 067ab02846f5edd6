package combat

import (
	"math"

	"github.com/grimholt/skirmish/internal/game/rng"
)

// DamageInput bundles everything the resolver needs to compute one hit.
type DamageInput struct {
	AttackerLevel int
	Offense       int
	Mobility      int
	Utility       int
	WeaponPower   int
	// Multiplier is the skill multiplier, already adjusted for execute
	// bonuses and enrage.
	Multiplier float64
	// Mitigation is the target's combined resist+armor at roll time.
	Mitigation int
	// SpreadPct is the bounded random spread, e.g. 0.15 for ±15%.
	SpreadPct float64
}

// DamageRoll is the full audit trail for a single damage computation.
// FinalDamage is what the caller feeds into Combatant.ApplyDamage.
type DamageRoll struct {
	Label       string  `json:"label"`
	Base        int     `json:"base"`
	Multiplier  float64 `json:"multiplier"`
	Mitigated   int     `json:"mitigated"`
	SpreadPct   int     `json:"spread_pct"` // signed, in whole percent
	FinalDamage int     `json:"final_damage"`
}

// ResolveDamage computes final damage for one hit: a base power from the
// attacker's stats and weapon, the skill multiplier, a mitigation subtraction
// from the target's resist+armor, then a bounded deterministic spread keyed
// by (seed, label).
//
// Precondition: label must be built via rng.Label from stable components.
// Postcondition: FinalDamage >= 0; identical inputs yield identical rolls.
func ResolveDamage(in DamageInput, seed int64, label string) DamageRoll {
	base := in.AttackerLevel*2 + in.Offense*3 + in.Mobility + in.Utility + in.WeaponPower*2
	if base < 0 {
		base = 0
	}

	mult := in.Multiplier
	if mult <= 0 {
		mult = 1
	}
	scaled := float64(base) * mult

	// Mitigation subtracts at half weight so heavily armored targets are
	// hard, not untouchable.
	mitigated := int(math.Floor(scaled - float64(in.Mitigation)/2))
	if mitigated < 0 {
		mitigated = 0
	}

	spread := 0
	if in.SpreadPct > 0 {
		bound := int(math.Round(in.SpreadPct * 100))
		spread = rng.NextInt(seed, label, -bound, bound)
	}

	final := int(math.Floor(float64(mitigated) * (1 + float64(spread)/100)))
	if final < 0 {
		final = 0
	}

	return DamageRoll{
		Label:       label,
		Base:        base,
		Multiplier:  mult,
		Mitigated:   mitigated,
		SpreadPct:   spread,
		FinalDamage: final,
	}
}
