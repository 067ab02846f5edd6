package combat

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// BaselineSkillID is the fixed fallback skill used when an NPC has no pool
// entry, or a boss phase's pool is empty.
const BaselineSkillID = "basic_strike"

// AppliedStatus describes the status effect a skill inflicts on its targets.
type AppliedStatus struct {
	ID            string             `yaml:"id"`
	Kind          StatusKind         `yaml:"kind"`
	DurationTurns int                `yaml:"duration_turns"`
	Stacks        int                `yaml:"stacks"`
	Data          map[string]float64 `yaml:"data"`
}

// Skill is the static definition of a combat skill, loaded from YAML.
type Skill struct {
	ID          string  `yaml:"id"`
	Name        string  `yaml:"name"`
	Multiplier  float64 `yaml:"multiplier"`
	PowerCost   int     `yaml:"power_cost"`
	MultiTarget bool    `yaml:"multi_target"`
	// ExecuteBelowPct > 0 marks an execute skill: targets below this HP
	// fraction take ExecuteBonus extra multiplier.
	ExecuteBelowPct float64        `yaml:"execute_below_pct"`
	ExecuteBonus    float64        `yaml:"execute_bonus"`
	AppliesStatus   *AppliedStatus `yaml:"applies_status"`
}

// EffectiveMultiplier returns the skill multiplier adjusted for the target's
// current HP fraction (execute rule).
//
// Postcondition: Returns >= Multiplier.
func (s *Skill) EffectiveMultiplier(targetHPFrac float64) float64 {
	mult := s.Multiplier
	if mult <= 0 {
		mult = 1
	}
	if s.ExecuteBelowPct > 0 && targetHPFrac < s.ExecuteBelowPct {
		mult += s.ExecuteBonus
	}
	return mult
}

// Validate checks the skill definition invariants.
func (s *Skill) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("skill: id must not be empty")
	}
	if s.Multiplier <= 0 {
		return fmt.Errorf("skill %q: multiplier must be > 0, got %f", s.ID, s.Multiplier)
	}
	if s.PowerCost < 0 {
		return fmt.Errorf("skill %q: power_cost must be >= 0, got %d", s.ID, s.PowerCost)
	}
	if s.ExecuteBelowPct < 0 || s.ExecuteBelowPct > 1 {
		return fmt.Errorf("skill %q: execute_below_pct must be in [0, 1], got %f", s.ID, s.ExecuteBelowPct)
	}
	if s.AppliesStatus != nil && s.AppliesStatus.ID == "" {
		return fmt.Errorf("skill %q: applies_status.id must not be empty", s.ID)
	}
	return nil
}

// SkillRegistry holds all known skills keyed by ID.
type SkillRegistry struct {
	skills map[string]*Skill
}

// NewSkillRegistry creates a registry pre-seeded with the baseline skill so
// lookups of BaselineSkillID always succeed.
func NewSkillRegistry() *SkillRegistry {
	r := &SkillRegistry{skills: make(map[string]*Skill)}
	r.Register(DefaultBaseline())
	return r
}

// DefaultBaseline returns the built-in basic strike definition.
func DefaultBaseline() *Skill {
	return &Skill{ID: BaselineSkillID, Name: "Basic Strike", Multiplier: 1.0}
}

// Register adds s to the registry, overwriting any existing entry.
//
// Precondition: s must not be nil and s.ID must not be empty.
func (r *SkillRegistry) Register(s *Skill) {
	r.skills[s.ID] = s
}

// Get returns the skill for id, or (nil, false) if not found.
func (r *SkillRegistry) Get(id string) (*Skill, bool) {
	s, ok := r.skills[id]
	return s, ok
}

// GetOrBaseline returns the skill for id, falling back to the baseline
// skill for unknown ids.
func (r *SkillRegistry) GetOrBaseline(id string) *Skill {
	if s, ok := r.skills[id]; ok {
		return s
	}
	return r.skills[BaselineSkillID]
}

// All returns a snapshot slice of all registered skills.
func (r *SkillRegistry) All() []*Skill {
	out := make([]*Skill, 0, len(r.skills))
	for _, s := range r.skills {
		out = append(out, s)
	}
	return out
}

// LoadSkills reads every *.yaml file in dir, parses each as a Skill, and
// returns a populated registry.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil registry, or an error if any file fails
// to parse or validate.
func LoadSkills(dir string) (*SkillRegistry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading skill dir %q: %w", dir, err)
	}
	reg := NewSkillRegistry()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var s Skill
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&s); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("validating %q: %w", path, err)
		}
		reg.Register(&s)
	}
	return reg, nil
}
