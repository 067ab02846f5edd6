package combat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"

	"github.com/grimholt/skirmish/internal/game/combat"
)

func newCombatant(kind combat.Kind, hp, armor int) *combat.Combatant {
	return &combat.Combatant{
		ID:    "c1",
		Kind:  kind,
		Name:  "Test",
		HP:    hp,
		MaxHP: hp,
		Armor: armor,
		Alive: hp > 0,
	}
}

// TestApplyDamage_ArmorAbsorbsFirst verifies the absorption order: armor
// soaks min(armor, raw), the remainder reduces HP.
func TestApplyDamage_ArmorAbsorbsFirst(t *testing.T) {
	c := newCombatant(combat.KindPlayer, 100, 10)
	absorbed, hpLoss := c.ApplyDamage(25)
	assert.Equal(t, 10, absorbed)
	assert.Equal(t, 15, hpLoss)
	assert.Equal(t, 0, c.Armor)
	assert.Equal(t, 85, c.HP)
	assert.True(t, c.Alive)
}

// TestApplyDamage_FullyAbsorbed verifies a hit entirely soaked by armor
// leaves HP untouched.
func TestApplyDamage_FullyAbsorbed(t *testing.T) {
	c := newCombatant(combat.KindNPC, 50, 30)
	absorbed, hpLoss := c.ApplyDamage(20)
	assert.Equal(t, 20, absorbed)
	assert.Equal(t, 0, hpLoss)
	assert.Equal(t, 10, c.Armor)
	assert.Equal(t, 50, c.HP)
}

// TestApplyDamage_Lethal verifies HP floors at zero and Alive flips.
func TestApplyDamage_Lethal(t *testing.T) {
	c := newCombatant(combat.KindNPC, 30, 0)
	_, hpLoss := c.ApplyDamage(80)
	assert.Equal(t, 30, hpLoss, "hpLoss reports only what the target had left")
	assert.Equal(t, 0, c.HP)
	assert.False(t, c.Alive)
}

// TestApplyDamage_Property verifies the armor absorption contract for
// arbitrary values: absorbed = min(A, D), armor' = A - absorbed, and the
// alive/HP invariants hold afterwards.
func TestApplyDamage_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		maxHP := rapid.IntRange(1, 500).Draw(rt, "maxHP")
		hp := rapid.IntRange(1, maxHP).Draw(rt, "hp")
		armor := rapid.IntRange(0, 200).Draw(rt, "armor")
		raw := rapid.IntRange(0, 700).Draw(rt, "raw")

		c := &combat.Combatant{Kind: combat.KindNPC, HP: hp, MaxHP: maxHP, Armor: armor, Alive: true}
		absorbed, hpLoss := c.ApplyDamage(raw)

		wantAbsorbed := raw
		if wantAbsorbed > armor {
			wantAbsorbed = armor
		}
		assert.Equal(rt, wantAbsorbed, absorbed)
		assert.Equal(rt, armor-wantAbsorbed, c.Armor)
		assert.GreaterOrEqual(rt, hpLoss, 0, "HP loss is never negative")
		assert.GreaterOrEqual(rt, c.HP, 0)
		assert.LessOrEqual(rt, c.HP, c.MaxHP)
		assert.Equal(rt, c.HP > 0, c.Alive, "alive iff hp > 0")
	})
}

// TestHeal_NeverResurrects verifies healing a dead combatant is a no-op.
func TestHeal_NeverResurrects(t *testing.T) {
	c := newCombatant(combat.KindPlayer, 40, 0)
	c.ApplyDamage(40)
	assert.False(t, c.Alive)
	assert.Equal(t, 0, c.Heal(25))
	assert.Equal(t, 0, c.HP)
	assert.False(t, c.Alive)
}

// TestHeal_CapsAtMax verifies overheal is clamped.
func TestHeal_CapsAtMax(t *testing.T) {
	c := newCombatant(combat.KindPlayer, 100, 0)
	c.ApplyDamage(30)
	assert.Equal(t, 30, c.Heal(50))
	assert.Equal(t, 100, c.HP)
}

// TestSpendPower verifies the resource pool accounting.
func TestSpendPower(t *testing.T) {
	c := newCombatant(combat.KindPlayer, 10, 0)
	c.Power = 5
	assert.True(t, c.SpendPower(3))
	assert.Equal(t, 2, c.Power)
	assert.False(t, c.SpendPower(3), "insufficient power must not deduct")
	assert.Equal(t, 2, c.Power)
}

// TestHPFraction verifies the hp_max <= 0 convention.
func TestHPFraction(t *testing.T) {
	c := &combat.Combatant{HP: 35, MaxHP: 100}
	assert.InDelta(t, 0.35, c.HPFraction(), 1e-9)

	degenerate := &combat.Combatant{HP: 10, MaxHP: 0}
	assert.Equal(t, 1.0, degenerate.HPFraction(), "non-positive max HP counts as full health")
}

// TestOpponentsOf verifies summons fight on the player side.
func TestOpponentsOf(t *testing.T) {
	player := &combat.Combatant{ID: "p", Kind: combat.KindPlayer, HP: 10, Alive: true}
	summon := &combat.Combatant{ID: "s", Kind: combat.KindSummon, HP: 10, Alive: true}
	npc := &combat.Combatant{ID: "n", Kind: combat.KindNPC, HP: 10, Alive: true}
	deadNPC := &combat.Combatant{ID: "d", Kind: combat.KindNPC, HP: 0, Alive: false}
	all := []*combat.Combatant{player, summon, npc, deadNPC}

	opps := combat.OpponentsOf(player, all)
	assert.Len(t, opps, 1)
	assert.Equal(t, "n", opps[0].ID)

	opps = combat.OpponentsOf(npc, all)
	assert.Len(t, opps, 2, "both player and summon oppose the NPC")
}

// TestAliveCounts verifies side tallies.
func TestAliveCounts(t *testing.T) {
	all := []*combat.Combatant{
		{Kind: combat.KindPlayer, Alive: true},
		{Kind: combat.KindSummon, Alive: true},
		{Kind: combat.KindNPC, Alive: false},
		{Kind: combat.KindNPC, Alive: true},
	}
	players, npcs := combat.AliveCounts(all)
	assert.Equal(t, 2, players)
	assert.Equal(t, 1, npcs)
}
