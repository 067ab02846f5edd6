// Package settlement runs the end-of-combat consequence pass: it marks the
// session ended, awards experience and loot to surviving characters, adjusts
// faction reputation, records narrative memories, and transitions the
// campaign back to its most recent non-combat board.
//
// Settlement runs exactly once per session. The ended-session guard makes a
// repeated invocation a no-op, so a crash between the engine detecting the
// end and the settlement completing is recovered by simply advancing again.
package settlement

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/grimholt/skirmish/internal/game/combat"
	"github.com/grimholt/skirmish/internal/game/engine"
)

// Config holds the settlement tunables.
type Config struct {
	// BaseXP is the experience awarded per defeated NPC before scaling.
	BaseXP int
	// BossXPMultiplier scales the award when the encounter held a boss.
	BossXPMultiplier float64
	// FactionID names the faction whose standing shifts with combat
	// outcomes. Empty disables reputation adjustment.
	FactionID string
	// WinReputation and LossReputation are the per-player deltas.
	WinReputation  int
	LossReputation int
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		BaseXP:           50,
		BossXPMultiplier: 3,
		WinReputation:    10,
		LossReputation:   -5,
	}
}

// Engine is the settlement pass. It satisfies the combat engine's Settler
// interface.
type Engine struct {
	store  engine.SettlementStore
	logger *zap.Logger
	cfg    Config
}

// New creates a settlement Engine.
//
// Precondition: store and logger must be non-nil.
func New(store engine.SettlementStore, logger *zap.Logger, cfg Config) *Engine {
	if cfg.BaseXP <= 0 {
		cfg.BaseXP = DefaultConfig().BaseXP
	}
	if cfg.BossXPMultiplier <= 0 {
		cfg.BossXPMultiplier = DefaultConfig().BossXPMultiplier
	}
	return &Engine{store: store, logger: logger, cfg: cfg}
}

var _ engine.Settler = (*Engine)(nil)

// Settle closes out a finished combat. The session transition to ended and
// the combat_end event are mandatory: their failure fails the call. Rewards
// and consequences after that point are best-effort — each failure is
// logged and the rest of the pass continues, since a half-settled combat
// must still count as settled.
//
// Precondition: one side of the combat has no living members.
// Postcondition: session.Status == SessionEnded; calling Settle again on
// the same session is a no-op.
func (e *Engine) Settle(ctx context.Context, sess *engine.CombatSession, combatants []*combat.Combatant) error {
	if sess.Status == engine.SessionEnded {
		return nil
	}

	players, npcs := combat.AliveCounts(combatants)
	won := players > 0 && npcs == 0

	now := time.Now().UTC()
	sess.Status = engine.SessionEnded
	sess.EndedAt = &now
	if err := e.store.UpdateSession(ctx, sess); err != nil {
		return fmt.Errorf("marking session %q ended: %w", sess.ID, err)
	}

	if err := e.emit(ctx, sess, engine.EventCombatEnd, engine.CombatEndPayload{
		Won:              won,
		SurvivingPlayers: players,
		SurvivingNPCs:    npcs,
		TurnCount:        sess.TurnCount,
	}); err != nil {
		return err
	}

	e.logger.Info("settling combat",
		zap.String("session_id", sess.ID),
		zap.Bool("won", won),
		zap.Int("surviving_players", players),
		zap.Int("surviving_npcs", npcs),
	)

	if won {
		e.awardRewards(ctx, sess, combatants)
	}
	e.adjustReputation(ctx, sess, combatants, won)
	e.recordMemories(ctx, sess, combatants, won)
	e.transitionBoard(ctx, sess, won, players, npcs)

	return nil
}

// xpPerCharacter computes the award each surviving character receives:
// base XP per defeated NPC, scaled up for boss encounters, split across the
// surviving player-side combatants.
func (e *Engine) xpPerCharacter(ctx context.Context, combatants []*combat.Combatant) int {
	defeated := 0
	bossPresent := false
	survivors := 0
	for _, c := range combatants {
		if c.Kind.PlayerSide() {
			if c.Alive {
				survivors++
			}
			continue
		}
		if !c.Alive {
			defeated++
			if _, err := e.store.GetBossInstance(ctx, c.ID); err == nil {
				bossPresent = true
			}
		}
	}
	if defeated == 0 || survivors == 0 {
		return 0
	}
	total := float64(e.cfg.BaseXP * defeated)
	if bossPresent {
		total *= e.cfg.BossXPMultiplier
	}
	return int(total) / survivors
}

// awardRewards grants XP and one loot drop to every surviving linked
// character. Best-effort per character.
func (e *Engine) awardRewards(ctx context.Context, sess *engine.CombatSession, combatants []*combat.Combatant) {
	xp := e.xpPerCharacter(ctx, combatants)
	if xp <= 0 {
		return
	}

	for _, c := range combatants {
		if !c.Alive || c.Kind != combat.KindPlayer || c.CharacterID == "" {
			continue
		}

		if err := e.store.AddExperience(ctx, c.CharacterID, xp); err != nil {
			e.logger.Warn("xp grant failed",
				zap.String("session_id", sess.ID),
				zap.String("character_id", c.CharacterID),
				zap.Error(err))
		} else {
			e.emitBestEffort(ctx, sess, engine.EventXPGain, engine.XPGainPayload{
				CharacterID: c.CharacterID, Amount: xp,
			})
		}

		item, err := rollLoot(sess.Seed, sess.ID, c.CharacterID, xp)
		if err != nil {
			e.logger.Warn("loot roll failed",
				zap.String("session_id", sess.ID),
				zap.String("character_id", c.CharacterID),
				zap.Error(err))
			continue
		}
		if err := e.store.GrantItem(ctx, c.CharacterID, item); err != nil {
			e.logger.Warn("loot grant failed",
				zap.String("session_id", sess.ID),
				zap.String("character_id", c.CharacterID),
				zap.Error(err))
			continue
		}
		e.emitBestEffort(ctx, sess, engine.EventLootDrop, engine.LootDropPayload{
			CharacterID: c.CharacterID,
			ItemID:      item.ID,
			ItemName:    item.Name,
			Rarity:      item.Rarity,
			Slot:        item.Slot,
			Power:       item.Power,
		})
	}
}

// adjustReputation shifts player standing with the configured faction. On a
// won combat only surviving players earn the positive delta; a loss costs
// every participating player. The delta event is always recorded before the
// aggregate upsert; the aggregate is clamped.
func (e *Engine) adjustReputation(ctx context.Context, sess *engine.CombatSession, combatants []*combat.Combatant, won bool) {
	if e.cfg.FactionID == "" {
		return
	}
	delta := e.cfg.LossReputation
	reason := "combat_lost"
	if won {
		delta = e.cfg.WinReputation
		reason = "combat_won"
	}
	if delta == 0 {
		return
	}

	for _, c := range combatants {
		if c.Kind != combat.KindPlayer || c.PlayerID == "" {
			continue
		}
		if won && !c.Alive {
			continue
		}

		ev := &engine.ReputationEvent{
			ID:         uuid.New().String(),
			CampaignID: sess.CampaignID,
			FactionID:  e.cfg.FactionID,
			PlayerID:   c.PlayerID,
			Delta:      delta,
			Reason:     reason,
			CreatedAt:  time.Now().UTC(),
		}
		if err := e.store.AppendReputationEvent(ctx, ev); err != nil {
			e.logger.Warn("reputation event failed",
				zap.String("session_id", sess.ID),
				zap.String("player_id", c.PlayerID),
				zap.Error(err))
			continue
		}

		score := 0
		rep, err := e.store.GetReputation(ctx, sess.CampaignID, e.cfg.FactionID, c.PlayerID)
		if err == nil {
			score = rep.Score
		}
		score = engine.ClampScore(score + delta)
		if err := e.store.UpsertReputation(ctx, &engine.FactionReputation{
			CampaignID: sess.CampaignID,
			FactionID:  e.cfg.FactionID,
			PlayerID:   c.PlayerID,
			Score:      score,
		}); err != nil {
			e.logger.Warn("reputation upsert failed",
				zap.String("session_id", sess.ID),
				zap.String("player_id", c.PlayerID),
				zap.Error(err))
			continue
		}
		e.emitBestEffort(ctx, sess, engine.EventReputation, engine.ReputationPayload{
			PlayerID:  c.PlayerID,
			FactionID: e.cfg.FactionID,
			Delta:     delta,
			Score:     score,
		})
	}
}

// recordMemories appends memory entries feeding the dungeon-master
// narration layer: a triumph for each surviving player on a win, a setback
// for every participating player on a loss.
func (e *Engine) recordMemories(ctx context.Context, sess *engine.CombatSession, combatants []*combat.Combatant, won bool) {
	kind, text := "setback", "The party fell in battle."
	if won {
		kind, text = "triumph", "The party prevailed in battle."
	}
	for _, c := range combatants {
		if c.Kind != combat.KindPlayer || c.PlayerID == "" {
			continue
		}
		if won && !c.Alive {
			continue
		}
		entry := &engine.MemoryEntry{
			ID:         uuid.New().String(),
			CampaignID: sess.CampaignID,
			PlayerID:   c.PlayerID,
			Kind:       kind,
			Text:       text,
			CreatedAt:  time.Now().UTC(),
		}
		if err := e.store.AppendMemory(ctx, entry); err != nil {
			e.logger.Warn("memory append failed",
				zap.String("session_id", sess.ID),
				zap.String("player_id", c.PlayerID),
				zap.Error(err))
		}
	}
}

// boardOutcome is the JSON payload recorded on the archived combat board.
type boardOutcome struct {
	SessionID        string `json:"session_id"`
	Won              bool   `json:"won"`
	SurvivingPlayers int    `json:"surviving_players"`
	SurvivingNPCs    int    `json:"surviving_npcs"`
	TurnCount        int    `json:"turn_count"`
}

// transitionBoard archives the campaign's active combat board with the
// outcome payload and reactivates the most recently updated non-combat
// board.
func (e *Engine) transitionBoard(ctx context.Context, sess *engine.CombatSession, won bool, players, npcs int) {
	boards, err := e.store.ListBoards(ctx, sess.CampaignID)
	if err != nil {
		e.logger.Warn("board listing failed",
			zap.String("campaign_id", sess.CampaignID), zap.Error(err))
		return
	}

	outcome, err := json.Marshal(boardOutcome{
		SessionID:        sess.ID,
		Won:              won,
		SurvivingPlayers: players,
		SurvivingNPCs:    npcs,
		TurnCount:        sess.TurnCount,
	})
	if err != nil {
		e.logger.Warn("board outcome marshal failed", zap.Error(err))
		return
	}

	var nextActive *engine.Board
	for _, b := range boards {
		if b.Type == engine.BoardCombat && b.Status == engine.BoardActive {
			b.Status = engine.BoardArchived
			b.Reason = "combat_settled"
			b.Outcome = outcome
			if err := e.store.UpdateBoard(ctx, b); err != nil {
				e.logger.Warn("board archive failed",
					zap.String("board_id", b.ID), zap.Error(err))
			}
			continue
		}
		// Boards arrive most recently updated first.
		if b.Type != engine.BoardCombat && nextActive == nil {
			nextActive = b
		}
	}

	if nextActive == nil {
		return
	}
	if nextActive.Status != engine.BoardActive {
		nextActive.Status = engine.BoardActive
		nextActive.Reason = "combat_settled"
		if err := e.store.UpdateBoard(ctx, nextActive); err != nil {
			e.logger.Warn("board activation failed",
				zap.String("board_id", nextActive.ID), zap.Error(err))
		}
	}
}

// emit appends one settlement event; failure fails the settle.
func (e *Engine) emit(ctx context.Context, sess *engine.CombatSession, typ engine.EventType, payload any) error {
	ev, err := engine.NewEvent(sess.ID, sess.TurnCount, "", typ, payload)
	if err != nil {
		return err
	}
	if err := e.store.AppendEvent(ctx, ev); err != nil {
		return fmt.Errorf("appending %s event: %w", typ, err)
	}
	return nil
}

// emitBestEffort appends one event and only logs on failure.
func (e *Engine) emitBestEffort(ctx context.Context, sess *engine.CombatSession, typ engine.EventType, payload any) {
	if err := e.emit(ctx, sess, typ, payload); err != nil {
		e.logger.Warn("settlement event append failed",
			zap.String("session_id", sess.ID),
			zap.String("type", string(typ)),
			zap.Error(err))
	}
}
