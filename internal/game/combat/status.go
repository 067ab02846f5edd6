package combat

// StatusKind enumerates the effect kinds the tick processor understands.
// Unknown kinds are carried but ignored safely (they still expire).
type StatusKind string

const (
	StatusDamageOverTime StatusKind = "damage_over_time"
	StatusHealOverTime   StatusKind = "heal_over_time"
	StatusVulnerable     StatusKind = "vulnerable"
	StatusStunned        StatusKind = "stunned"
)

// StatusEffect is one applied effect on a combatant. The Data map carries
// kind-specific numbers (e.g. "amount" for ticks, "bonus_pct" for
// vulnerability); never assume shape beyond the declared fields.
type StatusEffect struct {
	ID          string             `json:"id"`
	Kind        StatusKind         `json:"kind"`
	ExpiresTurn int                `json:"expires_turn"`
	Stacks      int                `json:"stacks"`
	Source      string             `json:"source"` // combatant or skill id that applied it
	Data        map[string]float64 `json:"data,omitempty"`
}

// amount returns the per-tick magnitude scaled by stacks.
func (e StatusEffect) amount() int {
	stacks := e.Stacks
	if stacks < 1 {
		stacks = 1
	}
	return int(e.Data["amount"]) * stacks
}

// TickResult reports what one start- or end-of-turn tick did to a combatant.
type TickResult struct {
	Damage  int      `json:"damage"`
	Healing int      `json:"healing"`
	Expired []string `json:"expired,omitempty"`
	Died    bool     `json:"died"`
}

// TickStart runs the start-of-turn hook on c: expires statuses whose
// ExpiresTurn <= turn, then applies damage-over-time. If the combatant dies
// from a tick, the engine must skip action resolution for this turn.
//
// Precondition: c must be non-nil.
// Postcondition: Died == true iff c was alive before and HP reached 0.
func TickStart(c *Combatant, turn int) TickResult {
	wasAlive := c.Alive
	res := expireStatuses(c, turn)
	for _, e := range c.Statuses {
		if e.Kind == StatusDamageOverTime {
			_, hpLoss := c.ApplyDamage(e.amount())
			res.Damage += hpLoss
		}
	}
	res.Died = wasAlive && !c.Alive
	return res
}

// TickEnd runs the end-of-turn hook on c: expires statuses whose
// ExpiresTurn <= turn, then applies heal-over-time.
//
// Precondition: c must be non-nil.
// Postcondition: HP <= MaxHP; dead combatants are not healed.
func TickEnd(c *Combatant, turn int) TickResult {
	res := expireStatuses(c, turn)
	for _, e := range c.Statuses {
		if e.Kind == StatusHealOverTime {
			res.Healing += c.Heal(e.amount())
		}
	}
	return res
}

// expireStatuses removes every status with ExpiresTurn <= turn and returns
// their ids. A non-positive ExpiresTurn means the status never expires on
// its own.
func expireStatuses(c *Combatant, turn int) TickResult {
	var res TickResult
	kept := c.Statuses[:0]
	for _, e := range c.Statuses {
		if e.ExpiresTurn > 0 && e.ExpiresTurn <= turn {
			res.Expired = append(res.Expired, e.ID)
			continue
		}
		kept = append(kept, e)
	}
	c.Statuses = kept
	return res
}

// ApplyStatus adds or refreshes a status on c. Re-applying the same id adds
// stacks and extends the expiry to the later turn.
//
// Precondition: effect.ID must be non-empty.
func ApplyStatus(c *Combatant, effect StatusEffect) {
	if effect.Stacks < 1 {
		effect.Stacks = 1
	}
	for i := range c.Statuses {
		if c.Statuses[i].ID == effect.ID {
			c.Statuses[i].Stacks += effect.Stacks
			if effect.ExpiresTurn > c.Statuses[i].ExpiresTurn {
				c.Statuses[i].ExpiresTurn = effect.ExpiresTurn
			}
			return
		}
	}
	c.Statuses = append(c.Statuses, effect)
}

// HasStatus reports whether c currently carries the status kind.
func HasStatus(c *Combatant, kind StatusKind) bool {
	for _, e := range c.Statuses {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// DamageTakenMultiplier returns the product of all vulnerability bonuses on
// the target, applied by the engine on top of the resolver's roll.
//
// Postcondition: Returns >= 1 when no vulnerability is present.
func DamageTakenMultiplier(c *Combatant) float64 {
	mult := 1.0
	for _, e := range c.Statuses {
		if e.Kind != StatusVulnerable {
			continue
		}
		stacks := e.Stacks
		if stacks < 1 {
			stacks = 1
		}
		mult *= 1 + e.Data["bonus_pct"]*float64(stacks)
	}
	return mult
}
