// Package boss implements boss phase templates and the phase controller
// that advances a boss through its HP-gated behaviour stages.
package boss

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"
)

// Phase is one behaviour stage of a boss, entered once the boss's HP
// fraction drops to or below HPBelowPct.
type Phase struct {
	Phase      int      `yaml:"phase"`
	HPBelowPct float64  `yaml:"hp_below_pct"`
	SkillPool  []string `yaml:"skill_pool"`
	// LuaHook names the script function invoked on entering this phase;
	// empty means no hook.
	LuaHook string `yaml:"lua_hook"`
}

// Template is the static definition of a boss, loaded from YAML.
type Template struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
	// EnrageTurn > 0 enrages the boss once the session reaches that turn.
	EnrageTurn int     `yaml:"enrage_turn"`
	Phases     []Phase `yaml:"phases"`
}

// Validate checks the template invariants: at least one phase, strictly
// increasing phase numbers, and thresholds in (0, 1].
func (t *Template) Validate() error {
	if t.ID == "" {
		return fmt.Errorf("boss template: id must not be empty")
	}
	if len(t.Phases) == 0 {
		return fmt.Errorf("boss template %q: at least one phase required", t.ID)
	}
	for i, p := range t.Phases {
		if p.Phase < 1 {
			return fmt.Errorf("boss template %q: phase[%d] number must be >= 1, got %d", t.ID, i, p.Phase)
		}
		if p.HPBelowPct <= 0 || p.HPBelowPct > 1 {
			return fmt.Errorf("boss template %q: phase[%d] hp_below_pct must be in (0, 1], got %f", t.ID, i, p.HPBelowPct)
		}
		if i > 0 && p.Phase <= t.Phases[i-1].Phase {
			return fmt.Errorf("boss template %q: phase numbers must be strictly increasing", t.ID)
		}
	}
	return nil
}

// PhaseFor returns the phase definition with the given number, or nil.
func (t *Template) PhaseFor(phase int) *Phase {
	for i := range t.Phases {
		if t.Phases[i].Phase == phase {
			return &t.Phases[i]
		}
	}
	return nil
}

// Instance links a boss-flagged combatant to its template's phase state.
// CurrentPhase is monotonically non-decreasing within a single combat.
type Instance struct {
	CombatantID  string
	TemplateID   string
	CurrentPhase int
	Enraged      bool
}

// Registry holds all known boss templates keyed by ID.
type Registry struct {
	templates map[string]*Template
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{templates: make(map[string]*Template)}
}

// Register adds tmpl to the registry, overwriting any existing entry.
//
// Precondition: tmpl must not be nil and tmpl.ID must not be empty.
func (r *Registry) Register(tmpl *Template) {
	r.templates[tmpl.ID] = tmpl
}

// Get returns the template for id, or (nil, false) if not found.
func (r *Registry) Get(id string) (*Template, bool) {
	t, ok := r.templates[id]
	return t, ok
}

// All returns the registered templates sorted by ID.
func (r *Registry) All() []*Template {
	out := make([]*Template, 0, len(r.templates))
	for _, t := range r.templates {
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// LoadTemplates reads every *.yaml file in dir, parses each as a Template,
// and returns a populated Registry.
//
// Precondition: dir must be a readable directory.
// Postcondition: Returns a non-nil Registry, or an error if any file fails
// to parse or validate.
func LoadTemplates(dir string) (*Registry, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading boss template dir %q: %w", dir, err)
	}
	reg := NewRegistry()
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".yaml") {
			continue
		}
		path := filepath.Join(dir, e.Name())
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading %q: %w", path, err)
		}
		var tmpl Template
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&tmpl); err != nil {
			return nil, fmt.Errorf("parsing %q: %w", path, err)
		}
		if err := tmpl.Validate(); err != nil {
			return nil, fmt.Errorf("validating %q: %w", path, err)
		}
		reg.Register(&tmpl)
	}
	return reg, nil
}
