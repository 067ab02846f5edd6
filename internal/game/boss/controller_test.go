package boss_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/grimholt/skirmish/internal/game/boss"
	"github.com/grimholt/skirmish/internal/game/combat"
)

func twoPhaseTemplate() *boss.Template {
	return &boss.Template{
		ID:   "gravewarden",
		Name: "The Gravewarden",
		Phases: []boss.Phase{
			{Phase: 1, HPBelowPct: 1.0, SkillPool: []string{"claw", "slam"}},
			{Phase: 2, HPBelowPct: 0.4, SkillPool: []string{"soul_rend", "grave_call"}},
		},
	}
}

// TestAdvance_CrossesThreshold: a boss at 35% HP with a
// {phase:2, hp_below_pct:0.4} threshold advances from phase 1 to 2.
func TestAdvance_CrossesThreshold(t *testing.T) {
	inst := &boss.Instance{CombatantID: "b1", TemplateID: "gravewarden", CurrentPhase: 1}
	newPhase, changed := boss.Advance(inst, 0.35, twoPhaseTemplate())
	assert.True(t, changed)
	assert.Equal(t, 2, newPhase)
}

// TestAdvance_AboveThreshold verifies no change while HP stays above the
// next threshold.
func TestAdvance_AboveThreshold(t *testing.T) {
	inst := &boss.Instance{CurrentPhase: 1}
	newPhase, changed := boss.Advance(inst, 0.41, twoPhaseTemplate())
	assert.False(t, changed)
	assert.Equal(t, 1, newPhase)
}

// TestAdvance_NeverRegresses verifies the one-directional rule: a healed
// boss stays in its reached phase.
func TestAdvance_NeverRegresses(t *testing.T) {
	inst := &boss.Instance{CurrentPhase: 2}
	newPhase, changed := boss.Advance(inst, 0.95, twoPhaseTemplate())
	assert.False(t, changed)
	assert.Equal(t, 2, newPhase)
}

// TestAdvance_Monotonic_Property verifies phase monotonicity across an
// arbitrary sequence of HP fractions.
func TestAdvance_Monotonic_Property(t *testing.T) {
	tmpl := &boss.Template{
		ID: "p",
		Phases: []boss.Phase{
			{Phase: 1, HPBelowPct: 1.0},
			{Phase: 2, HPBelowPct: 0.66},
			{Phase: 3, HPBelowPct: 0.33},
		},
	}
	rapid.Check(t, func(rt *rapid.T) {
		inst := &boss.Instance{CurrentPhase: 1}
		fracs := rapid.SliceOfN(rapid.Float64Range(0, 1), 1, 20).Draw(rt, "fracs")
		prev := inst.CurrentPhase
		for _, f := range fracs {
			newPhase, _ := boss.Advance(inst, f, tmpl)
			assert.GreaterOrEqual(rt, newPhase, prev, "phase must never regress")
			inst.CurrentPhase = newPhase
			prev = newPhase
		}
	})
}

// TestSelectSkill_FromActivePool verifies selection is deterministic and
// restricted to the active phase's pool.
func TestSelectSkill_FromActivePool(t *testing.T) {
	tmpl := twoPhaseTemplate()
	got := boss.SelectSkill(42, "boss_skill:s1:4:b1", tmpl, 2)
	assert.Contains(t, []string{"soul_rend", "grave_call"}, got)
	assert.Equal(t, got, boss.SelectSkill(42, "boss_skill:s1:4:b1", tmpl, 2))
}

// TestSelectSkill_EmptyPoolFallsBack verifies the baseline fallback.
func TestSelectSkill_EmptyPoolFallsBack(t *testing.T) {
	tmpl := &boss.Template{
		ID:     "quiet",
		Phases: []boss.Phase{{Phase: 1, HPBelowPct: 1.0}},
	}
	assert.Equal(t, combat.BaselineSkillID, boss.SelectSkill(1, "x", tmpl, 1))
	assert.Equal(t, combat.BaselineSkillID, boss.SelectSkill(1, "x", tmpl, 99), "unknown phase falls back too")
}

// TestShouldEnrage verifies the enrage trigger fires once.
func TestShouldEnrage(t *testing.T) {
	tmpl := &boss.Template{ID: "e", EnrageTurn: 10, Phases: []boss.Phase{{Phase: 1, HPBelowPct: 1}}}
	inst := &boss.Instance{}
	assert.False(t, boss.ShouldEnrage(inst, tmpl, 9))
	assert.True(t, boss.ShouldEnrage(inst, tmpl, 10))
	inst.Enraged = true
	assert.False(t, boss.ShouldEnrage(inst, tmpl, 11))

	never := &boss.Template{ID: "n", Phases: []boss.Phase{{Phase: 1, HPBelowPct: 1}}}
	assert.False(t, boss.ShouldEnrage(&boss.Instance{}, never, 100))
}

// TestLoadTemplates verifies YAML loading and validation.
func TestLoadTemplates(t *testing.T) {
	dir := t.TempDir()
	good := `id: gravewarden
name: The Gravewarden
enrage_turn: 20
phases:
  - phase: 1
    hp_below_pct: 1.0
    skill_pool: [claw, slam]
  - phase: 2
    hp_below_pct: 0.4
    skill_pool: [soul_rend]
    lua_hook: on_soul_phase
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "gravewarden.yaml"), []byte(good), 0o644))

	reg, err := boss.LoadTemplates(dir)
	require.NoError(t, err)

	tmpl, ok := reg.Get("gravewarden")
	require.True(t, ok)
	assert.Equal(t, 20, tmpl.EnrageTurn)
	require.Len(t, tmpl.Phases, 2)
	assert.Equal(t, "on_soul_phase", tmpl.Phases[1].LuaHook)
}

// TestTemplate_Validate covers the invariants.
func TestTemplate_Validate(t *testing.T) {
	cases := []struct {
		name    string
		tmpl    boss.Template
		wantErr string
	}{
		{"no id", boss.Template{Phases: []boss.Phase{{Phase: 1, HPBelowPct: 1}}}, "id must not be empty"},
		{"no phases", boss.Template{ID: "x"}, "at least one phase"},
		{"bad pct", boss.Template{ID: "x", Phases: []boss.Phase{{Phase: 1, HPBelowPct: 1.2}}}, "hp_below_pct"},
		{"non-increasing", boss.Template{ID: "x", Phases: []boss.Phase{{Phase: 2, HPBelowPct: 1}, {Phase: 2, HPBelowPct: 0.5}}}, "strictly increasing"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.tmpl.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
		})
	}
}
