package engine

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/grimholt/skirmish/internal/game/combat"
)

// UseSkillResult reports the outcome of one player-initiated turn.
type UseSkillResult struct {
	// Ended is true when the action (or the actor's own status ticks)
	// finished the combat.
	Ended bool `json:"ended"`
	// ActorDied is true when the actor died from its start-of-turn tick
	// before acting; the action itself was not resolved.
	ActorDied bool `json:"actor_died"`
	// Stunned is true when the actor's action was forfeited by a stun.
	Stunned bool `json:"stunned"`
	// CurrentTurnIndex is the session's turn pointer after the call.
	CurrentTurnIndex int `json:"current_turn_index"`
	// NextActorCombatantID identifies the combatant whose turn is next.
	NextActorCombatantID string `json:"next_actor_combatant_id,omitempty"`
}

// UseSkill resolves one player turn: the named skill against the named
// target (ignored for multi-target skills). All validation happens before
// any state is mutated, then the turn runs the same tick/act/tick sequence
// a non-player turn does.
//
// Precondition: the session's current turn slot must name actorID.
// Postcondition: On success the turn pointer has advanced (or the session
// ended); on a validation error no state was changed.
func (e *Engine) UseSkill(ctx context.Context, campaignID, sessionID, actorID, skillID, targetID string) (*UseSkillResult, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading session %q: %w", sessionID, err)
	}
	if campaignID != "" && sess.CampaignID != campaignID {
		return nil, fmt.Errorf("session %q: %w", sessionID, ErrWrongCampaign)
	}
	if sess.Status != SessionActive {
		return nil, fmt.Errorf("session %q: %w", sessionID, ErrSessionEnded)
	}

	order, err := e.store.GetTurnOrder(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading turn order for %q: %w", sessionID, err)
	}
	if order.Len() == 0 {
		return nil, fmt.Errorf("session %q: %w", sessionID, ErrEmptyTurnOrder)
	}
	slotID, ok := order.CombatantAt(sess.TurnIndex)
	if !ok {
		return nil, fmt.Errorf("session %q index %d: %w", sessionID, sess.TurnIndex, ErrTurnSlotInvalid)
	}
	if slotID != actorID {
		return nil, fmt.Errorf("combatant %q at index %d: %w", slotID, sess.TurnIndex, ErrNotYourTurn)
	}

	all, err := e.store.ListCombatants(ctx, sessionID)
	if err != nil {
		return nil, fmt.Errorf("loading combatants for %q: %w", sessionID, err)
	}
	byID := make(map[string]*combat.Combatant, len(all))
	for _, c := range all {
		byID[c.ID] = c
	}
	actor, ok := byID[actorID]
	if !ok {
		return nil, fmt.Errorf("session %q actor %q: %w", sessionID, actorID, ErrActorMissing)
	}
	if actor.Kind != combat.KindPlayer {
		return nil, fmt.Errorf("combatant %q: %w", actorID, ErrNotAPlayer)
	}
	if !actor.Alive {
		return nil, fmt.Errorf("combatant %q: %w", actorID, ErrActorDead)
	}

	skill, ok := e.skills.Get(skillID)
	if !ok {
		return nil, fmt.Errorf("skill %q: %w", skillID, ErrUnknownSkill)
	}
	if actor.Power < skill.PowerCost {
		return nil, fmt.Errorf("skill %q costs %d, have %d: %w", skillID, skill.PowerCost, actor.Power, ErrInsufficientPower)
	}

	opponents := combat.OpponentsOf(actor, all)
	var targets []*combat.Combatant
	if skill.MultiTarget {
		targets = opponents
	} else {
		tgt, ok := byID[targetID]
		if !ok || !tgt.Alive || tgt.Kind.PlayerSide() == actor.Kind.PlayerSide() {
			return nil, fmt.Errorf("target %q: %w", targetID, ErrTargetInvalid)
		}
		targets = []*combat.Combatant{tgt}
	}

	// Validation is complete; mutation begins here.
	turn := sess.TurnCount

	if err := e.runStartTick(ctx, sess, actor, turn); err != nil {
		return nil, err
	}
	if !actor.Alive {
		sr, err := e.finishTurn(ctx, sess, order, byID, actor, all, turn)
		if err != nil {
			return nil, err
		}
		return &UseSkillResult{
			Ended:                sr.ended,
			ActorDied:            true,
			CurrentTurnIndex:     sr.turnIndex,
			NextActorCombatantID: sr.actorID,
		}, nil
	}

	stunned := combat.HasStatus(actor, combat.StatusStunned)
	if stunned {
		e.logger.Debug("player stunned, action forfeited",
			zap.String("session_id", sess.ID), zap.String("actor_id", actor.ID))
	} else if len(targets) > 0 {
		if err := e.resolveSkill(ctx, sess, turn, actor, skill, targets, false); err != nil {
			return nil, err
		}
	}

	if err := e.runEndTick(ctx, sess, actor, turn); err != nil {
		return nil, err
	}

	sr, err := e.finishTurn(ctx, sess, order, byID, actor, all, turn)
	if err != nil {
		return nil, err
	}
	return &UseSkillResult{
		Ended:                sr.ended,
		Stunned:              stunned,
		CurrentTurnIndex:     sr.turnIndex,
		NextActorCombatantID: sr.actorID,
	}, nil
}

// finishTurn closes out a turn after the actor has acted (or failed to):
// either the combat ends and settlement runs, or the pointer advances.
func (e *Engine) finishTurn(ctx context.Context, sess *CombatSession, order combat.TurnOrder, byID map[string]*combat.Combatant, actor *combat.Combatant, all []*combat.Combatant, turn int) (stepResult, error) {
	players, npcs := combat.AliveCounts(all)
	if players == 0 || npcs == 0 {
		return e.endCombat(ctx, sess, all)
	}
	return e.advancePointer(ctx, sess, order, byID, actor, turn)
}
