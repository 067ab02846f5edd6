package scripting

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	lua "github.com/yuin/gopher-lua"
	"go.uber.org/zap"
)

// globalBossID is the reserved key for shared scripts loaded via LoadGlobal.
// CallPhaseHook falls back to this VM when no template VM is found.
const globalBossID = "__global__"

// StatusRequest is one arena.apply_status call recorded while a hook ran.
// The caller decides whether and how to apply it; scripts never mutate
// combat state directly.
type StatusRequest struct {
	ID       string
	Kind     string
	Stacks   int
	Duration int
	// Amount is the kind-specific magnitude: per-tick HP for over-time
	// kinds, bonus fraction for vulnerability. Zero when the script
	// omitted it.
	Amount float64
}

// Manager owns one sandboxed LState per boss template and dispatches phase
// entry hooks.
//
// Manager is safe for concurrent CallPhaseHook after all LoadBoss calls
// complete. Each template's LState is single-threaded; the mutex serializes
// calls into the same VM.
type Manager struct {
	mu      sync.Mutex
	states  map[string]*lua.LState
	cancels map[string]func()
	logger  *zap.Logger

	// pending collects arena.apply_status calls made by the hook currently
	// executing. Only touched with mu held.
	pending []StatusRequest

	// Announce is injected after construction. nil = no-op.
	Announce func(msg string)
}

// NewManager creates a Manager.
//
// Precondition: logger must be non-nil.
// Postcondition: Returns a non-nil Manager with an empty template map.
func NewManager(logger *zap.Logger) *Manager {
	return &Manager{
		states:  make(map[string]*lua.LState),
		cancels: make(map[string]func()),
		logger:  logger,
	}
}

// LoadBoss creates a sandboxed VM for templateID, registers the arena.*
// modules, then executes every *.lua file in scriptDir in lexicographic
// order.
//
// Precondition: templateID must be non-empty; scriptDir must be a readable
// directory.
// Postcondition: Template VM is registered; returns error on Lua load
// failure.
func (m *Manager) LoadBoss(templateID, scriptDir string, instLimit int) error {
	return m.loadInto(templateID, scriptDir, instLimit)
}

// LoadGlobal creates the "__global__" VM for shared scripts accessible as a
// CallPhaseHook fallback from any boss.
func (m *Manager) LoadGlobal(scriptDir string, instLimit int) error {
	return m.loadInto(globalBossID, scriptDir, instLimit)
}

// LoadDir loads one VM per subdirectory of root, keyed by the subdirectory
// name. Lua files directly under root feed the global VM.
func (m *Manager) LoadDir(root string, instLimit int) error {
	entries, err := os.ReadDir(root)
	if err != nil {
		return fmt.Errorf("scripting: reading script root %q: %w", root, err)
	}
	hasGlobal := false
	for _, e := range entries {
		if e.IsDir() {
			if err := m.loadInto(e.Name(), filepath.Join(root, e.Name()), instLimit); err != nil {
				return err
			}
			continue
		}
		if filepath.Ext(e.Name()) == ".lua" {
			hasGlobal = true
		}
	}
	if hasGlobal {
		return m.LoadGlobal(root, instLimit)
	}
	return nil
}

func (m *Manager) loadInto(key, scriptDir string, instLimit int) error {
	L, cancel := NewSandboxedState(instLimit)
	m.RegisterModules(L)

	entries, err := os.ReadDir(scriptDir)
	if err != nil {
		cancel()
		L.Close()
		return fmt.Errorf("scripting: reading script dir %q for %q: %w", scriptDir, key, err)
	}

	var luaFiles []string
	for _, e := range entries {
		if !e.IsDir() && filepath.Ext(e.Name()) == ".lua" {
			luaFiles = append(luaFiles, filepath.Join(scriptDir, e.Name()))
		}
	}
	sort.Strings(luaFiles)

	for _, path := range luaFiles {
		if err := L.DoFile(path); err != nil {
			cancel()
			L.Close()
			return fmt.Errorf("scripting: loading %q for %q: %w", path, key, err)
		}
	}

	m.mu.Lock()
	if old, ok := m.states[key]; ok {
		if oldCancel := m.cancels[key]; oldCancel != nil {
			oldCancel()
		}
		old.Close()
	}
	m.states[key] = L
	m.cancels[key] = cancel
	m.mu.Unlock()
	return nil
}

// CallPhaseHook calls the named Lua global function in templateID's VM with
// (phase, hpFraction) and returns the status requests the hook recorded via
// arena.apply_status. If the template has no VM, the __global__ VM is tried
// as a fallback. A missing VM or hook is a silent no-op. Lua runtime errors
// are logged at Warn level and returned alongside any requests recorded
// before the error; the caller decides what to apply.
//
// Precondition: hook must be non-empty.
func (m *Manager) CallPhaseHook(templateID, hook string, phase int, hpFraction float64) ([]StatusRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	L, ok := m.states[templateID]
	if !ok {
		L = m.states[globalBossID]
	}
	if L == nil {
		m.logger.Debug("scripting: no VM for boss template",
			zap.String("template_id", templateID),
			zap.String("hook", hook),
		)
		return nil, nil
	}

	fn := L.GetGlobal(hook)
	if fn == lua.LNil {
		return nil, nil
	}

	m.pending = nil
	err := L.CallByParam(lua.P{
		Fn:      fn,
		NRet:    0,
		Protect: true,
	}, lua.LNumber(phase), lua.LNumber(hpFraction))
	requests := m.pending
	m.pending = nil

	if err != nil {
		m.logger.Warn("scripting: Lua runtime error",
			zap.String("template_id", templateID),
			zap.String("hook", hook),
			zap.Error(err),
		)
		return requests, fmt.Errorf("scripting: hook %q on %q: %w", hook, templateID, err)
	}
	return requests, nil
}

// Close tears down every VM. Call on shutdown.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key, L := range m.states {
		if cancel := m.cancels[key]; cancel != nil {
			cancel()
		}
		L.Close()
	}
	m.states = make(map[string]*lua.LState)
	m.cancels = make(map[string]func())
}
