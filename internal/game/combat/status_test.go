package combat_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grimholt/skirmish/internal/game/combat"
)

// TestTickStart_DamageOverTime verifies DoT applies at the start hook and
// respects armor absorption.
func TestTickStart_DamageOverTime(t *testing.T) {
	c := newCombatant(combat.KindPlayer, 100, 5)
	c.Statuses = []combat.StatusEffect{{
		ID: "burning", Kind: combat.StatusDamageOverTime,
		ExpiresTurn: 10, Stacks: 2, Data: map[string]float64{"amount": 4},
	}}

	res := combat.TickStart(c, 3)
	// 8 raw: 5 absorbed by armor, 3 to HP.
	assert.Equal(t, 3, res.Damage)
	assert.Equal(t, 97, c.HP)
	assert.Equal(t, 0, c.Armor)
	assert.False(t, res.Died)
}

// TestTickStart_DeathFromTick verifies a lethal start tick reports Died so
// the engine can skip action resolution.
func TestTickStart_DeathFromTick(t *testing.T) {
	c := newCombatant(combat.KindNPC, 3, 0)
	c.Statuses = []combat.StatusEffect{{
		ID: "poison", Kind: combat.StatusDamageOverTime,
		ExpiresTurn: 10, Stacks: 1, Data: map[string]float64{"amount": 5},
	}}

	res := combat.TickStart(c, 1)
	assert.True(t, res.Died)
	assert.False(t, c.Alive)
	assert.Equal(t, 0, c.HP)
}

// TestTick_Expiry verifies statuses with expires_turn <= current turn are
// removed before effects apply.
func TestTick_Expiry(t *testing.T) {
	c := newCombatant(combat.KindPlayer, 100, 0)
	c.Statuses = []combat.StatusEffect{
		{ID: "old_burn", Kind: combat.StatusDamageOverTime, ExpiresTurn: 3, Data: map[string]float64{"amount": 50}},
		{ID: "fresh_burn", Kind: combat.StatusDamageOverTime, ExpiresTurn: 9, Data: map[string]float64{"amount": 2}},
	}

	res := combat.TickStart(c, 5)
	assert.Equal(t, []string{"old_burn"}, res.Expired)
	assert.Equal(t, 2, res.Damage, "expired status must not tick")
	assert.Len(t, c.Statuses, 1)
}

// TestTickEnd_HealOverTime verifies HoT applies at the end hook and caps at
// max HP.
func TestTickEnd_HealOverTime(t *testing.T) {
	c := newCombatant(combat.KindPlayer, 100, 0)
	c.ApplyDamage(10)
	c.Statuses = []combat.StatusEffect{{
		ID: "regen", Kind: combat.StatusHealOverTime,
		ExpiresTurn: 10, Stacks: 1, Data: map[string]float64{"amount": 25},
	}}

	res := combat.TickEnd(c, 2)
	assert.Equal(t, 10, res.Healing)
	assert.Equal(t, 100, c.HP)
}

// TestTick_UnknownKindIgnored verifies the fallback branch: unknown effect
// kinds are carried and expire, but never change state.
func TestTick_UnknownKindIgnored(t *testing.T) {
	c := newCombatant(combat.KindPlayer, 50, 0)
	c.Statuses = []combat.StatusEffect{{
		ID: "future_mechanic", Kind: combat.StatusKind("phase_lock"),
		ExpiresTurn: 4, Data: map[string]float64{"amount": 99},
	}}

	res := combat.TickStart(c, 2)
	assert.Zero(t, res.Damage)
	assert.Equal(t, 50, c.HP)
	require.Len(t, c.Statuses, 1)

	res = combat.TickStart(c, 4)
	assert.Equal(t, []string{"future_mechanic"}, res.Expired)
	assert.Empty(t, c.Statuses)
}

// TestApplyStatus_StacksAndExtends verifies re-application adds stacks and
// keeps the later expiry.
func TestApplyStatus_StacksAndExtends(t *testing.T) {
	c := newCombatant(combat.KindNPC, 50, 0)
	combat.ApplyStatus(c, combat.StatusEffect{ID: "exposed", Kind: combat.StatusVulnerable, ExpiresTurn: 4, Stacks: 1})
	combat.ApplyStatus(c, combat.StatusEffect{ID: "exposed", Kind: combat.StatusVulnerable, ExpiresTurn: 7, Stacks: 1})

	require.Len(t, c.Statuses, 1)
	assert.Equal(t, 2, c.Statuses[0].Stacks)
	assert.Equal(t, 7, c.Statuses[0].ExpiresTurn)
}

// TestDamageTakenMultiplier verifies vulnerability scaling by stacks.
func TestDamageTakenMultiplier(t *testing.T) {
	c := newCombatant(combat.KindPlayer, 50, 0)
	assert.Equal(t, 1.0, combat.DamageTakenMultiplier(c))

	combat.ApplyStatus(c, combat.StatusEffect{
		ID: "exposed", Kind: combat.StatusVulnerable,
		ExpiresTurn: 9, Stacks: 2, Data: map[string]float64{"bonus_pct": 0.1},
	})
	assert.InDelta(t, 1.2, combat.DamageTakenMultiplier(c), 1e-9)
}

// TestHasStatus verifies kind lookup.
func TestHasStatus(t *testing.T) {
	c := newCombatant(combat.KindPlayer, 50, 0)
	assert.False(t, combat.HasStatus(c, combat.StatusStunned))
	combat.ApplyStatus(c, combat.StatusEffect{ID: "daze", Kind: combat.StatusStunned, ExpiresTurn: 3})
	assert.True(t, combat.HasStatus(c, combat.StatusStunned))
}
