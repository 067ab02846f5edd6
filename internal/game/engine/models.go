// Package engine implements the deterministic combat turn resolution state
// machine: it advances discrete turns of an active combat session, decides
// what non-player actors do, applies damage and consequences, detects boss
// phase transitions, and hands finished combats to the settlement engine.
//
// The engine holds no in-memory combat state across calls; every step
// reloads from the CombatStore and flushes all mutations before the turn
// pointer advances.
package engine

import "time"

// SessionStatus is the lifecycle state of a combat session.
type SessionStatus string

const (
	SessionActive SessionStatus = "active"
	SessionEnded  SessionStatus = "ended"
)

// CombatSession is one active or ended encounter. TurnIndex points into the
// session's turn order; TurnCount is the global discrete turn number,
// starting at 1, used for status expiry and enrage timing.
//
// Invariant: while active, TurnIndex references an existing combatant via
// the turn order. The transition to ended happens exactly once.
type CombatSession struct {
	ID         string
	CampaignID string
	Seed       int64
	Status     SessionStatus
	TurnIndex  int
	TurnCount  int
	UpdatedAt  time.Time
	EndedAt    *time.Time
}

// FactionReputation is the clamped aggregate standing of one player with
// one faction inside a campaign.
type FactionReputation struct {
	CampaignID string
	FactionID  string
	PlayerID   string
	Score      int
	UpdatedAt  time.Time
}

// ReputationScoreMin and ReputationScoreMax bound the aggregate score.
const (
	ReputationScoreMin = -1000
	ReputationScoreMax = 1000
)

// ClampScore clamps a reputation score into the allowed range.
func ClampScore(score int) int {
	if score < ReputationScoreMin {
		return ReputationScoreMin
	}
	if score > ReputationScoreMax {
		return ReputationScoreMax
	}
	return score
}

// ReputationEvent is one append-only reputation delta, always recorded
// before the aggregate is upserted.
type ReputationEvent struct {
	ID         string
	CampaignID string
	FactionID  string
	PlayerID   string
	Delta      int
	Reason     string
	CreatedAt  time.Time
}

// MemoryEntry is a long-term narrative memory row consumed by the
// dungeon-master narration layer.
type MemoryEntry struct {
	ID         string
	CampaignID string
	PlayerID   string
	Kind       string // "triumph" | "setback"
	Text       string
	CreatedAt  time.Time
}

// BoardType enumerates the broader game-state containers a campaign moves
// through.
type BoardType string

const (
	BoardTown    BoardType = "town"
	BoardTravel  BoardType = "travel"
	BoardDungeon BoardType = "dungeon"
	BoardCombat  BoardType = "combat"
)

// Board is one game-state container. A combat session is embedded in a
// combat board; settlement archives it and reactivates the most recent
// non-combat board.
type Board struct {
	ID         string
	CampaignID string
	Type       BoardType
	Status     string // "active" | "archived"
	Reason     string
	Outcome    []byte // JSON payload recorded on transition
	UpdatedAt  time.Time
}

// BoardActive and BoardArchived are the board lifecycle states.
const (
	BoardActive   = "active"
	BoardArchived = "archived"
)
