package engine

import (
	"context"

	"github.com/grimholt/skirmish/internal/game/boss"
	"github.com/grimholt/skirmish/internal/game/combat"
)

// CombatStore is the only path through which the engine touches persistent
// state. Implementations must return the package sentinels for missing
// rows; any other error is treated as a fatal persistence failure for the
// current call.
//
// All reads the engine performs happen at the start of a step and are never
// cached across steps, so a concurrent resolver or player action is
// detected by the next reload.
type CombatStore interface {
	// GetSession returns the session or ErrSessionNotFound.
	GetSession(ctx context.Context, sessionID string) (*CombatSession, error)
	// UpdateSession persists the turn pointer, turn count, and status.
	UpdateSession(ctx context.Context, session *CombatSession) error

	// GetTurnOrder returns the session's fixed cycle, ordered by index.
	GetTurnOrder(ctx context.Context, sessionID string) (combat.TurnOrder, error)

	// GetCombatant returns one combatant or ErrCombatantNotFound.
	GetCombatant(ctx context.Context, combatantID string) (*combat.Combatant, error)
	// ListCombatants returns every combatant in the session, ordered by ID
	// so iteration order is deterministic.
	ListCombatants(ctx context.Context, sessionID string) ([]*combat.Combatant, error)
	// UpdateCombatant persists hp, armor, power, alive flag, and statuses.
	UpdateCombatant(ctx context.Context, c *combat.Combatant) error

	// AppendEvent appends to the immutable log and assigns ev.Seq.
	AppendEvent(ctx context.Context, ev *ActionEvent) error
	// ListEvents returns events with Seq > afterSeq in ascending order.
	ListEvents(ctx context.Context, sessionID string, afterSeq int64) ([]*ActionEvent, error)

	// GetBossInstance returns the phase state for a boss-flagged combatant,
	// or ErrNoBossInstance for ordinary combatants.
	GetBossInstance(ctx context.Context, combatantID string) (*boss.Instance, error)
	// UpdateBossInstance persists phase and enrage state.
	UpdateBossInstance(ctx context.Context, inst *boss.Instance) error
}

// SettlementStore extends the engine's view with the reward/consequence
// operations only the settlement pass needs. The Postgres and in-memory
// stores implement both interfaces with one struct.
type SettlementStore interface {
	CombatStore

	// AddExperience grants experience to a linked character.
	AddExperience(ctx context.Context, characterID string, amount int) error
	// GrantItem adds a generated loot item to a character's inventory.
	GrantItem(ctx context.Context, characterID string, item *LootItem) error

	// GetReputation returns the aggregate or ErrReputationNotFound.
	GetReputation(ctx context.Context, campaignID, factionID, playerID string) (*FactionReputation, error)
	// AppendReputationEvent records the delta; always called before
	// UpsertReputation.
	AppendReputationEvent(ctx context.Context, ev *ReputationEvent) error
	// UpsertReputation writes the clamped aggregate.
	UpsertReputation(ctx context.Context, rep *FactionReputation) error

	// AppendMemory records a long-term narrative memory entry.
	AppendMemory(ctx context.Context, entry *MemoryEntry) error

	// ListBoards returns the campaign's boards, most recently updated
	// first.
	ListBoards(ctx context.Context, campaignID string) ([]*Board, error)
	// UpdateBoard persists board status, reason, and outcome payload.
	UpdateBoard(ctx context.Context, b *Board) error
}

// LootItem is a generated item granted during settlement.
type LootItem struct {
	ID     string
	Name   string
	Rarity string
	Slot   string
	Power  int
	// Bonuses maps stat names to slot-appropriate bonuses.
	Bonuses map[string]int
}

// Settler runs the end-of-combat settlement pass exactly once per session.
// The engine invokes it inside the same resolution call that detects a
// zero-living side.
type Settler interface {
	Settle(ctx context.Context, session *CombatSession, combatants []*combat.Combatant) error
}
