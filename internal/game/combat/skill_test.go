package combat_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/grimholt/skirmish/internal/game/combat"
)

// TestEffectiveMultiplier_Execute verifies the execute rule: targets below
// the threshold take the bonus multiplier.
func TestEffectiveMultiplier_Execute(t *testing.T) {
	s := &combat.Skill{ID: "reaper", Multiplier: 1.2, ExecuteBelowPct: 0.4, ExecuteBonus: 0.8}
	assert.InDelta(t, 1.2, s.EffectiveMultiplier(0.41), 1e-9)
	assert.InDelta(t, 2.0, s.EffectiveMultiplier(0.39), 1e-9)
	assert.InDelta(t, 1.2, s.EffectiveMultiplier(0.4), 1e-9, "threshold is exclusive")
}

// TestSkillRegistry_Baseline verifies the registry always resolves the
// baseline skill.
func TestSkillRegistry_Baseline(t *testing.T) {
	reg := combat.NewSkillRegistry()
	s, ok := reg.Get(combat.BaselineSkillID)
	require.True(t, ok)
	assert.Equal(t, 1.0, s.Multiplier)

	fallback := reg.GetOrBaseline("no_such_skill")
	assert.Equal(t, combat.BaselineSkillID, fallback.ID)
}

// TestSkill_Validate covers the definition invariants.
func TestSkill_Validate(t *testing.T) {
	cases := []struct {
		name    string
		skill   combat.Skill
		wantErr string
	}{
		{"missing id", combat.Skill{Multiplier: 1}, "id must not be empty"},
		{"bad multiplier", combat.Skill{ID: "x", Multiplier: 0}, "multiplier must be > 0"},
		{"negative cost", combat.Skill{ID: "x", Multiplier: 1, PowerCost: -1}, "power_cost must be >= 0"},
		{"bad execute pct", combat.Skill{ID: "x", Multiplier: 1, ExecuteBelowPct: 1.5}, "execute_below_pct"},
		{"status missing id", combat.Skill{ID: "x", Multiplier: 1, AppliesStatus: &combat.AppliedStatus{}}, "applies_status.id"},
		{"valid", combat.Skill{ID: "x", Multiplier: 1.5}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.skill.Validate()
			if tc.wantErr == "" {
				assert.NoError(t, err)
			} else {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tc.wantErr)
			}
		})
	}
}

// TestLoadSkills verifies YAML loading with strict field checking.
func TestLoadSkills(t *testing.T) {
	dir := t.TempDir()
	good := `id: cleave
name: Cleave
multiplier: 1.4
power_cost: 10
multi_target: true
applies_status:
  id: exposed
  kind: vulnerable
  duration_turns: 2
  stacks: 1
  data:
    bonus_pct: 0.15
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "cleave.yaml"), []byte(good), 0o644))

	reg, err := combat.LoadSkills(dir)
	require.NoError(t, err)

	s, ok := reg.Get("cleave")
	require.True(t, ok)
	assert.True(t, s.MultiTarget)
	assert.Equal(t, 10, s.PowerCost)
	require.NotNil(t, s.AppliesStatus)
	assert.Equal(t, combat.StatusVulnerable, s.AppliesStatus.Kind)
}

// TestLoadSkills_RejectsUnknownFields verifies KnownFields is enforced.
func TestLoadSkills_RejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	bad := "id: typo\nmultiplier: 1.0\nmulitplier_typo: 2.0\n"
	require.NoError(t, os.WriteFile(filepath.Join(dir, "bad.yaml"), []byte(bad), 0o644))

	_, err := combat.LoadSkills(dir)
	assert.Error(t, err)
}
