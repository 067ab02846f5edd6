// Package combat implements the combatant model, turn order, damage
// resolution, status effects, and skills for the Grimholt combat engine.
package combat

// Kind distinguishes the participant categories inside one combat session.
type Kind string

const (
	KindPlayer Kind = "player"
	KindNPC    Kind = "npc"
	KindSummon Kind = "summon"
)

// PlayerSide reports whether this kind fights on the players' side.
// Summons are player-allied.
//
// Postcondition: Returns true iff k is KindPlayer or KindSummon.
func (k Kind) PlayerSide() bool {
	return k == KindPlayer || k == KindSummon
}

// Valid reports whether k is one of the three known kinds.
func (k Kind) Valid() bool {
	return k == KindPlayer || k == KindNPC || k == KindSummon
}

// Stats holds the six combat statistics shared by all combatants.
type Stats struct {
	Offense  int
	Defense  int
	Control  int
	Support  int
	Mobility int
	Utility  int
}

// Combatant represents one participant in a combat session — a player, an
// NPC, or a player-allied summon. Combatants are never deleted during a
// combat; death only clears the Alive flag.
type Combatant struct {
	ID          string
	SessionID   string
	Kind        Kind
	PlayerID    string // empty for NPCs
	CharacterID string // empty for NPCs and unlinked summons
	Name        string
	Level       int
	Stats       Stats
	WeaponPower int
	Armor       int
	Resist      int
	HP          int
	MaxHP       int
	Power       int
	MaxPower    int
	X           int
	Y           int
	Alive       bool
	Statuses    []StatusEffect
}

// HPFraction returns HP/MaxHP for phase-threshold and execute-skill rules.
// A non-positive MaxHP is treated as full health.
//
// Postcondition: Returns a value in [0, 1].
func (c *Combatant) HPFraction() float64 {
	if c.MaxHP <= 0 {
		return 1
	}
	frac := float64(c.HP) / float64(c.MaxHP)
	if frac < 0 {
		return 0
	}
	if frac > 1 {
		return 1
	}
	return frac
}

// ApplyDamage applies raw damage with armor absorbing first: armor soaks up
// to its current value and is consumed; the remainder reduces HP, floored at
// zero. Alive is recomputed from the resulting HP.
//
// Precondition: raw must be >= 0.
// Postcondition: absorbed == min(armor, raw); hpLoss == raw - absorbed;
// Armor >= 0; 0 <= HP <= MaxHP; Alive == (HP > 0).
func (c *Combatant) ApplyDamage(raw int) (absorbed, hpLoss int) {
	if raw < 0 {
		raw = 0
	}
	absorbed = raw
	if absorbed > c.Armor {
		absorbed = c.Armor
	}
	c.Armor -= absorbed
	hpLoss = raw - absorbed
	c.HP -= hpLoss
	if c.HP < 0 {
		// hpLoss never exceeds what the target had left.
		hpLoss += c.HP
		c.HP = 0
	}
	c.Alive = c.HP > 0
	return absorbed, hpLoss
}

// Heal restores HP up to MaxHP. Healing never resurrects: a combatant at
// zero HP stays not-alive.
//
// Precondition: amount must be >= 0.
// Postcondition: HP <= MaxHP; Alive is unchanged for dead combatants.
func (c *Combatant) Heal(amount int) int {
	if amount < 0 || !c.Alive {
		return 0
	}
	before := c.HP
	c.HP += amount
	if c.HP > c.MaxHP {
		c.HP = c.MaxHP
	}
	return c.HP - before
}

// SpendPower deducts cost from the resource pool if enough remains.
//
// Postcondition: Returns true and deducts iff Power >= cost; Power >= 0.
func (c *Combatant) SpendPower(cost int) bool {
	if cost < 0 || c.Power < cost {
		return false
	}
	c.Power -= cost
	return true
}

// Mitigation returns the combined resist+armor value fed to the damage
// resolver. Armor consumption itself happens in ApplyDamage, after the roll.
func (c *Combatant) Mitigation() int {
	return c.Resist + c.Armor
}

// OpponentsOf returns the living members of the side opposing c.
//
// Postcondition: Every returned combatant is Alive and on the other side.
func OpponentsOf(c *Combatant, all []*Combatant) []*Combatant {
	var out []*Combatant
	for _, other := range all {
		if other.Alive && other.Kind.PlayerSide() != c.Kind.PlayerSide() {
			out = append(out, other)
		}
	}
	return out
}

// AliveCounts returns the number of living player-side and NPC-side
// combatants.
func AliveCounts(all []*Combatant) (players, npcs int) {
	for _, c := range all {
		if !c.Alive {
			continue
		}
		if c.Kind.PlayerSide() {
			players++
		} else {
			npcs++
		}
	}
	return players, npcs
}
