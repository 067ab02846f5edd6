// Package memstore provides an in-memory implementation of the engine's
// storage interfaces. It backs unit tests and the single-process dev server;
// production uses the postgres package.
package memstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/grimholt/skirmish/internal/game/boss"
	"github.com/grimholt/skirmish/internal/game/combat"
	"github.com/grimholt/skirmish/internal/game/engine"
)

// Store holds all combat state behind a single mutex. All returned values
// are deep copies so callers can never mutate stored state without going
// through an Update method.
type Store struct {
	mu sync.Mutex

	sessions   map[string]*engine.CombatSession
	turnOrders map[string][]combat.Slot // sessionID -> ordered slots
	combatants map[string]*combat.Combatant
	events     map[string][]*engine.ActionEvent // sessionID -> ordered log
	nextSeq    map[string]int64
	bosses     map[string]*boss.Instance // combatantID -> instance

	experience  map[string]int                // characterID -> total
	inventories map[string][]*engine.LootItem // characterID -> items
	reputations map[string]*engine.FactionReputation
	repEvents   []*engine.ReputationEvent
	memories    []*engine.MemoryEntry
	boards      map[string]*engine.Board
}

// New returns an empty Store.
func New() *Store {
	return &Store{
		sessions:    make(map[string]*engine.CombatSession),
		turnOrders:  make(map[string][]combat.Slot),
		combatants:  make(map[string]*combat.Combatant),
		events:      make(map[string][]*engine.ActionEvent),
		nextSeq:     make(map[string]int64),
		bosses:      make(map[string]*boss.Instance),
		experience:  make(map[string]int),
		inventories: make(map[string][]*engine.LootItem),
		reputations: make(map[string]*engine.FactionReputation),
		boards:      make(map[string]*engine.Board),
	}
}

var _ engine.SettlementStore = (*Store)(nil)

func copySession(s *engine.CombatSession) *engine.CombatSession {
	cp := *s
	if s.EndedAt != nil {
		t := *s.EndedAt
		cp.EndedAt = &t
	}
	return &cp
}

func copyCombatant(c *combat.Combatant) *combat.Combatant {
	cp := *c
	cp.Statuses = make([]combat.StatusEffect, len(c.Statuses))
	copy(cp.Statuses, c.Statuses)
	for i, st := range c.Statuses {
		if st.Data != nil {
			d := make(map[string]float64, len(st.Data))
			for k, v := range st.Data {
				d[k] = v
			}
			cp.Statuses[i].Data = d
		}
	}
	return &cp
}

// PutSession seeds a session. Test setup helper.
func (s *Store) PutSession(sess *engine.CombatSession) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[sess.ID] = copySession(sess)
}

func (s *Store) GetSession(ctx context.Context, sessionID string) (*engine.CombatSession, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sess, ok := s.sessions[sessionID]
	if !ok {
		return nil, fmt.Errorf("session %q: %w", sessionID, engine.ErrSessionNotFound)
	}
	return copySession(sess), nil
}

func (s *Store) UpdateSession(ctx context.Context, session *engine.CombatSession) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sessions[session.ID]; !ok {
		return fmt.Errorf("session %q: %w", session.ID, engine.ErrSessionNotFound)
	}
	cp := copySession(session)
	cp.UpdatedAt = time.Now().UTC()
	s.sessions[session.ID] = cp
	return nil
}

// PutTurnOrder seeds a session's turn order. Test setup helper.
func (s *Store) PutTurnOrder(sessionID string, order combat.TurnOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.turnOrders[sessionID] = order.Slots()
}

func (s *Store) GetTurnOrder(ctx context.Context, sessionID string) (combat.TurnOrder, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slots, ok := s.turnOrders[sessionID]
	if !ok {
		return combat.TurnOrder{}, nil
	}
	return combat.FromSlots(slots)
}

// PutCombatant seeds a combatant. Test setup helper.
func (s *Store) PutCombatant(c *combat.Combatant) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.combatants[c.ID] = copyCombatant(c)
}

func (s *Store) GetCombatant(ctx context.Context, combatantID string) (*combat.Combatant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.combatants[combatantID]
	if !ok {
		return nil, fmt.Errorf("combatant %q: %w", combatantID, engine.ErrCombatantNotFound)
	}
	return copyCombatant(c), nil
}

func (s *Store) ListCombatants(ctx context.Context, sessionID string) ([]*combat.Combatant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*combat.Combatant
	for _, c := range s.combatants {
		if c.SessionID == sessionID {
			out = append(out, copyCombatant(c))
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) UpdateCombatant(ctx context.Context, c *combat.Combatant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.combatants[c.ID]; !ok {
		return fmt.Errorf("combatant %q: %w", c.ID, engine.ErrCombatantNotFound)
	}
	s.combatants[c.ID] = copyCombatant(c)
	return nil
}

func (s *Store) AppendEvent(ctx context.Context, ev *engine.ActionEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq[ev.SessionID]++
	ev.Seq = s.nextSeq[ev.SessionID]
	cp := *ev
	s.events[ev.SessionID] = append(s.events[ev.SessionID], &cp)
	return nil
}

func (s *Store) ListEvents(ctx context.Context, sessionID string, afterSeq int64) ([]*engine.ActionEvent, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*engine.ActionEvent
	for _, ev := range s.events[sessionID] {
		if ev.Seq > afterSeq {
			cp := *ev
			out = append(out, &cp)
		}
	}
	return out, nil
}

// PutBossInstance seeds boss phase state. Test setup helper.
func (s *Store) PutBossInstance(inst *boss.Instance) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *inst
	s.bosses[inst.CombatantID] = &cp
}

func (s *Store) GetBossInstance(ctx context.Context, combatantID string) (*boss.Instance, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	inst, ok := s.bosses[combatantID]
	if !ok {
		return nil, fmt.Errorf("combatant %q: %w", combatantID, engine.ErrNoBossInstance)
	}
	cp := *inst
	return &cp, nil
}

func (s *Store) UpdateBossInstance(ctx context.Context, inst *boss.Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.bosses[inst.CombatantID]; !ok {
		return fmt.Errorf("combatant %q: %w", inst.CombatantID, engine.ErrNoBossInstance)
	}
	cp := *inst
	s.bosses[inst.CombatantID] = &cp
	return nil
}

func (s *Store) AddExperience(ctx context.Context, characterID string, amount int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.experience[characterID] += amount
	return nil
}

// Experience returns the accumulated experience for a character. Test
// inspection helper.
func (s *Store) Experience(characterID string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.experience[characterID]
}

func (s *Store) GrantItem(ctx context.Context, characterID string, item *engine.LootItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	if item.Bonuses != nil {
		cp.Bonuses = make(map[string]int, len(item.Bonuses))
		for k, v := range item.Bonuses {
			cp.Bonuses[k] = v
		}
	}
	s.inventories[characterID] = append(s.inventories[characterID], &cp)
	return nil
}

// Inventory returns the items granted to a character. Test inspection
// helper.
func (s *Store) Inventory(characterID string) []*engine.LootItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*engine.LootItem, len(s.inventories[characterID]))
	copy(out, s.inventories[characterID])
	return out
}

func repKey(campaignID, factionID, playerID string) string {
	return campaignID + "/" + factionID + "/" + playerID
}

func (s *Store) GetReputation(ctx context.Context, campaignID, factionID, playerID string) (*engine.FactionReputation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rep, ok := s.reputations[repKey(campaignID, factionID, playerID)]
	if !ok {
		return nil, fmt.Errorf("reputation %s/%s/%s: %w", campaignID, factionID, playerID, engine.ErrReputationNotFound)
	}
	cp := *rep
	return &cp, nil
}

func (s *Store) AppendReputationEvent(ctx context.Context, ev *engine.ReputationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ev
	s.repEvents = append(s.repEvents, &cp)
	return nil
}

func (s *Store) UpsertReputation(ctx context.Context, rep *engine.FactionReputation) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *rep
	cp.UpdatedAt = time.Now().UTC()
	s.reputations[repKey(rep.CampaignID, rep.FactionID, rep.PlayerID)] = &cp
	return nil
}

func (s *Store) AppendMemory(ctx context.Context, entry *engine.MemoryEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *entry
	s.memories = append(s.memories, &cp)
	return nil
}

// Memories returns all recorded memory entries. Test inspection helper.
func (s *Store) Memories() []*engine.MemoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]*engine.MemoryEntry, len(s.memories))
	copy(out, s.memories)
	return out
}

// PutBoard seeds a board. Test setup helper.
func (s *Store) PutBoard(b *engine.Board) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *b
	s.boards[b.ID] = &cp
}

func (s *Store) ListBoards(ctx context.Context, campaignID string) ([]*engine.Board, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []*engine.Board
	for _, b := range s.boards {
		if b.CampaignID == campaignID {
			cp := *b
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UpdatedAt.After(out[j].UpdatedAt) })
	return out, nil
}

func (s *Store) UpdateBoard(ctx context.Context, b *engine.Board) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.boards[b.ID]; !ok {
		return fmt.Errorf("board %q: %w", b.ID, engine.ErrBoardNotFound)
	}
	cp := *b
	cp.UpdatedAt = time.Now().UTC()
	s.boards[b.ID] = &cp
	return nil
}
