package engine

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/grimholt/skirmish/internal/game/combat"
)

// EventType identifies one kind of append-only combat log record.
type EventType string

const (
	EventTurnStart     EventType = "turn_start"
	EventTurnEnd       EventType = "turn_end"
	EventSkillUsed     EventType = "skill_used"
	EventDamage        EventType = "damage"
	EventStatusApplied EventType = "status_applied"
	EventStatusExpired EventType = "status_expired"
	EventDeath         EventType = "death"
	EventPhaseShift    EventType = "phase_shift"
	EventEnrage        EventType = "enrage"
	EventXPGain        EventType = "xp_gain"
	EventLootDrop      EventType = "loot_drop"
	EventReputation    EventType = "reputation"
	EventCombatEnd     EventType = "combat_end"
)

// ActionEvent is one immutable record in the combat history log — the sole
// source of truth for narration and replay. Seq is assigned by the store on
// append and orders the log.
type ActionEvent struct {
	ID        string          `json:"id"`
	Seq       int64           `json:"seq"`
	SessionID string          `json:"session_id"`
	TurnIndex int             `json:"turn_index"`
	ActorID   string          `json:"actor_id,omitempty"`
	Type      EventType       `json:"type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// NewEvent builds an ActionEvent with a marshalled payload. Payload structs
// marshal deterministically, which the replay determinism property depends
// on.
//
// Precondition: payload must be JSON-marshallable.
func NewEvent(sessionID string, turn int, actorID string, typ EventType, payload any) (*ActionEvent, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshalling %s payload: %w", typ, err)
	}
	return &ActionEvent{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		TurnIndex: turn,
		ActorID:   actorID,
		Type:      typ,
		Payload:   raw,
		CreatedAt: time.Now().UTC(),
	}, nil
}

// TurnMarkerPayload accompanies turn_start and turn_end events.
type TurnMarkerPayload struct {
	TurnIndex   int    `json:"turn_index"`
	TurnCount   int    `json:"turn_count"`
	CombatantID string `json:"combatant_id"`
	Name        string `json:"name"`
}

// SkillUsedPayload accompanies skill_used events.
type SkillUsedPayload struct {
	SkillID   string   `json:"skill_id"`
	SkillName string   `json:"skill_name"`
	TargetIDs []string `json:"target_ids"`
	PowerCost int      `json:"power_cost"`
}

// DamagePayload accompanies damage events. TickSource is set when the
// damage came from a status tick rather than a skill.
type DamagePayload struct {
	TargetID   string            `json:"target_id"`
	Roll       *combat.DamageRoll `json:"roll,omitempty"`
	TickSource string            `json:"tick_source,omitempty"`
	Absorbed   int               `json:"absorbed"`
	HPLoss     int               `json:"hp_loss"`
	TargetHP   int               `json:"target_hp"`
	TargetArmor int              `json:"target_armor"`
}

// StatusPayload accompanies status_applied and status_expired events.
type StatusPayload struct {
	TargetID string               `json:"target_id"`
	Status   *combat.StatusEffect `json:"status,omitempty"`
	Expired  []string             `json:"expired,omitempty"`
}

// DeathPayload accompanies death events.
type DeathPayload struct {
	CombatantID string `json:"combatant_id"`
	Name        string `json:"name"`
	Kind        string `json:"kind"`
}

// PhaseShiftPayload accompanies phase_shift events.
type PhaseShiftPayload struct {
	BossID     string  `json:"boss_id"`
	Phase      int     `json:"phase"`
	HPFraction float64 `json:"hp_fraction"`
}

// EnragePayload accompanies enrage events.
type EnragePayload struct {
	BossID     string  `json:"boss_id"`
	Turn       int     `json:"turn"`
	Multiplier float64 `json:"multiplier"`
}

// CombatEndPayload accompanies combat_end events.
type CombatEndPayload struct {
	Won              bool `json:"won"`
	SurvivingPlayers int  `json:"surviving_players"`
	SurvivingNPCs    int  `json:"surviving_npcs"`
	TurnCount        int  `json:"turn_count"`
}

// XPGainPayload accompanies xp_gain events.
type XPGainPayload struct {
	CharacterID string `json:"character_id"`
	Amount      int    `json:"amount"`
}

// LootDropPayload accompanies loot_drop events.
type LootDropPayload struct {
	CharacterID string `json:"character_id"`
	ItemID      string `json:"item_id"`
	ItemName    string `json:"item_name"`
	Rarity      string `json:"rarity"`
	Slot        string `json:"slot"`
	Power       int    `json:"power"`
}

// ReputationPayload accompanies reputation events.
type ReputationPayload struct {
	PlayerID  string `json:"player_id"`
	FactionID string `json:"faction_id"`
	Delta     int    `json:"delta"`
	Score     int    `json:"score"`
}
