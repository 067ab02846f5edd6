package engine

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"go.uber.org/zap"

	"github.com/grimholt/skirmish/internal/game/boss"
	"github.com/grimholt/skirmish/internal/game/combat"
	"github.com/grimholt/skirmish/internal/game/rng"
	"github.com/grimholt/skirmish/internal/scripting"
)

// PhaseHooks dispatches boss phase entry hooks to the scripting layer and
// returns the status applications the hook requested. Hook errors are
// best-effort: logged and swallowed, never aborting resolution.
type PhaseHooks interface {
	CallPhaseHook(templateID, hook string, phase int, hpFraction float64) ([]scripting.StatusRequest, error)
}

// Config holds the engine's tunables.
type Config struct {
	// MaxSteps is the hard cap on the per-call step budget.
	MaxSteps int
	// SpreadPct is the bounded random damage spread, e.g. 0.15 for ±15%.
	SpreadPct float64
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{MaxSteps: 10, SpreadPct: 0.15}
}

// Engine drives discrete combat turns. It is stateless between calls; all
// state lives in the CombatStore.
type Engine struct {
	store   CombatStore
	skills  *combat.SkillRegistry
	bosses  *boss.Registry
	settler Settler
	hooks   PhaseHooks
	logger  *zap.Logger
	cfg     Config
}

// New creates an Engine.
//
// Precondition: store, skills, bosses, settler, and logger must be non-nil;
// hooks may be nil (phase hooks are skipped).
// Postcondition: Returns a non-nil Engine with defaulted config values.
func New(store CombatStore, skills *combat.SkillRegistry, bosses *boss.Registry, settler Settler, hooks PhaseHooks, logger *zap.Logger, cfg Config) *Engine {
	if cfg.MaxSteps <= 0 {
		cfg.MaxSteps = DefaultConfig().MaxSteps
	}
	if cfg.SpreadPct <= 0 {
		cfg.SpreadPct = DefaultConfig().SpreadPct
	}
	return &Engine{
		store:   store,
		skills:  skills,
		bosses:  bosses,
		settler: settler,
		hooks:   hooks,
		logger:  logger,
		cfg:     cfg,
	}
}

// AdvanceResult reports why a resolution call stopped.
type AdvanceResult struct {
	// Ticks is the number of turns actually resolved in this call.
	Ticks int `json:"ticks"`
	// Ended is true when the session is (or already was) ended.
	Ended bool `json:"ended"`
	// RequiresPlayerAction is true when the current actor is a player;
	// the engine never chooses an action on a player's behalf.
	RequiresPlayerAction bool `json:"requires_player_action"`
	// CurrentTurnIndex is the session's turn pointer after the call.
	CurrentTurnIndex int `json:"current_turn_index"`
	// NextActorCombatantID identifies the combatant whose turn it is.
	NextActorCombatantID string `json:"next_actor_combatant_id,omitempty"`
}

// Advance resolves up to maxSteps discrete turns of the session. Each step
// reloads state from the store, so concurrent mutations are detected at
// step boundaries. Any persistence or structural error aborts the whole
// call; nothing is retried.
//
// Precondition: 1 <= maxSteps <= cfg.MaxSteps.
// Postcondition: The turn pointer only advances after every mutation of the
// current turn has been persisted (mutate-then-advance).
func (e *Engine) Advance(ctx context.Context, campaignID, sessionID string, maxSteps int) (*AdvanceResult, error) {
	if maxSteps < 1 || maxSteps > e.cfg.MaxSteps {
		return nil, fmt.Errorf("%w: got %d, max %d", ErrInvalidStepBudget, maxSteps, e.cfg.MaxSteps)
	}

	result := &AdvanceResult{}
	for i := 0; i < maxSteps; i++ {
		sr, err := e.step(ctx, campaignID, sessionID)
		if err != nil {
			return nil, err
		}
		if sr.ticked {
			result.Ticks++
		}
		result.Ended = sr.ended
		result.RequiresPlayerAction = sr.awaiting
		result.CurrentTurnIndex = sr.turnIndex
		result.NextActorCombatantID = sr.actorID
		if sr.ended || sr.awaiting {
			break
		}
	}

	e.logger.Debug("advance finished",
		zap.String("session_id", sessionID),
		zap.Int("ticks", result.Ticks),
		zap.Bool("ended", result.Ended),
		zap.Bool("requires_player_action", result.RequiresPlayerAction),
	)
	return result, nil
}

// stepResult is the outcome of one discrete turn attempt.
type stepResult struct {
	ticked    bool
	ended     bool
	awaiting  bool
	turnIndex int
	actorID   string
}

// step resolves one discrete turn: load, tick, act, tick, detect end,
// advance.
func (e *Engine) step(ctx context.Context, campaignID, sessionID string) (stepResult, error) {
	sess, err := e.store.GetSession(ctx, sessionID)
	if err != nil {
		return stepResult{}, fmt.Errorf("loading session %q: %w", sessionID, err)
	}
	if campaignID != "" && sess.CampaignID != campaignID {
		return stepResult{}, fmt.Errorf("session %q: %w", sessionID, ErrWrongCampaign)
	}
	if sess.Status != SessionActive {
		return stepResult{ended: true, turnIndex: sess.TurnIndex}, nil
	}

	order, err := e.store.GetTurnOrder(ctx, sessionID)
	if err != nil {
		return stepResult{}, fmt.Errorf("loading turn order for %q: %w", sessionID, err)
	}
	if order.Len() == 0 {
		return stepResult{}, fmt.Errorf("session %q: %w", sessionID, ErrEmptyTurnOrder)
	}

	actorID, ok := order.CombatantAt(sess.TurnIndex)
	if !ok {
		return stepResult{}, fmt.Errorf("session %q index %d: %w", sessionID, sess.TurnIndex, ErrTurnSlotInvalid)
	}

	all, err := e.store.ListCombatants(ctx, sessionID)
	if err != nil {
		return stepResult{}, fmt.Errorf("loading combatants for %q: %w", sessionID, err)
	}
	byID := make(map[string]*combat.Combatant, len(all))
	for _, c := range all {
		byID[c.ID] = c
	}
	actor, ok := byID[actorID]
	if !ok {
		return stepResult{}, fmt.Errorf("session %q actor %q: %w", sessionID, actorID, ErrActorMissing)
	}

	// The engine never chooses an action on a player's behalf.
	if actor.Alive && actor.Kind == combat.KindPlayer {
		return stepResult{awaiting: true, turnIndex: sess.TurnIndex, actorID: actorID}, nil
	}

	turn := sess.TurnCount

	if !actor.Alive {
		return e.advancePointer(ctx, sess, order, byID, actor, turn)
	}

	if err := e.runStartTick(ctx, sess, actor, turn); err != nil {
		return stepResult{}, err
	}
	if !actor.Alive {
		// Died from the start tick: no action this turn, but the death may
		// still have ended the combat.
		return e.finishTurn(ctx, sess, order, byID, actor, all, turn)
	}

	opponents := combat.OpponentsOf(actor, all)
	if len(opponents) == 0 {
		return e.endCombat(ctx, sess, all)
	}

	if combat.HasStatus(actor, combat.StatusStunned) {
		e.logger.Debug("actor stunned, action skipped",
			zap.String("session_id", sess.ID), zap.String("actor_id", actor.ID))
	} else {
		skill, targets, enraged, err := e.chooseAction(ctx, sess, actor, opponents, turn)
		if err != nil {
			return stepResult{}, err
		}
		if err := e.resolveSkill(ctx, sess, turn, actor, skill, targets, enraged); err != nil {
			return stepResult{}, err
		}
	}

	if err := e.runEndTick(ctx, sess, actor, turn); err != nil {
		return stepResult{}, err
	}

	return e.finishTurn(ctx, sess, order, byID, actor, all, turn)
}

// chooseAction picks the skill and target set for a non-player actor. Boss
// actors run the phase controller first; ordinary NPCs use the baseline
// skill against a seeded uniform target.
func (e *Engine) chooseAction(ctx context.Context, sess *CombatSession, actor *combat.Combatant, opponents []*combat.Combatant, turn int) (*combat.Skill, []*combat.Combatant, bool, error) {
	turnStr := strconv.Itoa(turn)

	target, err := rng.Pick(sess.Seed, rng.Label("target", sess.ID, turnStr, actor.ID), opponents)
	if err != nil {
		return nil, nil, false, fmt.Errorf("picking target: %w", err)
	}

	skill := e.skills.GetOrBaseline(combat.BaselineSkillID)
	enraged := false

	inst, err := e.store.GetBossInstance(ctx, actor.ID)
	switch {
	case errors.Is(err, ErrNoBossInstance):
		// Ordinary NPC.
	case err != nil:
		return nil, nil, false, fmt.Errorf("loading boss instance for %q: %w", actor.ID, err)
	default:
		tmpl, ok := e.bosses.Get(inst.TemplateID)
		if !ok {
			return nil, nil, false, fmt.Errorf("boss template %q not registered", inst.TemplateID)
		}

		hpFrac := actor.HPFraction()
		if newPhase, changed := boss.Advance(inst, hpFrac, tmpl); changed {
			inst.CurrentPhase = newPhase
			if err := e.store.UpdateBossInstance(ctx, inst); err != nil {
				return nil, nil, false, fmt.Errorf("persisting boss phase: %w", err)
			}
			if err := e.emit(ctx, sess, turn, actor.ID, EventPhaseShift, PhaseShiftPayload{
				BossID: actor.ID, Phase: newPhase, HPFraction: hpFrac,
			}); err != nil {
				return nil, nil, false, err
			}
			e.callPhaseHook(ctx, sess, actor, turn, tmpl, newPhase, hpFrac)
		}

		if boss.ShouldEnrage(inst, tmpl, turn) {
			inst.Enraged = true
			if err := e.store.UpdateBossInstance(ctx, inst); err != nil {
				return nil, nil, false, fmt.Errorf("persisting boss enrage: %w", err)
			}
			if err := e.emit(ctx, sess, turn, actor.ID, EventEnrage, EnragePayload{
				BossID: actor.ID, Turn: turn, Multiplier: boss.EnrageMultiplier,
			}); err != nil {
				return nil, nil, false, err
			}
		}
		enraged = inst.Enraged

		skillID := boss.SelectSkill(sess.Seed, rng.Label("boss_skill", sess.ID, turnStr, actor.ID), tmpl, inst.CurrentPhase)
		skill = e.skills.GetOrBaseline(skillID)
	}

	// NPCs that cannot afford a skill fall back to the baseline rather
	// than skipping their turn.
	if skill.PowerCost > 0 && actor.Power < skill.PowerCost {
		skill = e.skills.GetOrBaseline(combat.BaselineSkillID)
	}

	targets := []*combat.Combatant{target}
	if skill.MultiTarget {
		targets = opponents
	}
	return skill, targets, enraged, nil
}

// callPhaseHook dispatches the phase's Lua hook and applies any statuses it
// requested to the boss. Hook errors and per-status persistence failures
// are logged and swallowed; resolution continues either way.
func (e *Engine) callPhaseHook(ctx context.Context, sess *CombatSession, actor *combat.Combatant, turn int, tmpl *boss.Template, phase int, hpFrac float64) {
	if e.hooks == nil {
		return
	}
	p := tmpl.PhaseFor(phase)
	if p == nil || p.LuaHook == "" {
		return
	}
	requests, err := e.hooks.CallPhaseHook(tmpl.ID, p.LuaHook, phase, hpFrac)
	if err != nil {
		e.logger.Warn("boss phase hook failed",
			zap.String("template_id", tmpl.ID),
			zap.String("hook", p.LuaHook),
			zap.Int("phase", phase),
			zap.Error(err),
		)
	}

	for _, req := range requests {
		if req.ID == "" {
			continue
		}
		eff := combat.StatusEffect{
			ID:          req.ID,
			Kind:        combat.StatusKind(req.Kind),
			ExpiresTurn: turn + req.Duration,
			Stacks:      req.Stacks,
			Source:      "script:" + tmpl.ID,
			Data:        statusDataFor(combat.StatusKind(req.Kind), req.Amount),
		}
		combat.ApplyStatus(actor, eff)
		if err := e.store.UpdateCombatant(ctx, actor); err != nil {
			e.logger.Warn("persisting hook status failed",
				zap.String("session_id", sess.ID),
				zap.String("actor_id", actor.ID),
				zap.String("status_id", req.ID),
				zap.Error(err))
			continue
		}
		if err := e.emit(ctx, sess, turn, actor.ID, EventStatusApplied, StatusPayload{
			TargetID: actor.ID, Status: &eff,
		}); err != nil {
			e.logger.Warn("hook status event failed",
				zap.String("session_id", sess.ID),
				zap.String("status_id", req.ID),
				zap.Error(err))
		}
	}
}

// statusDataFor maps a script-supplied magnitude onto the data key the
// status kind reads.
func statusDataFor(kind combat.StatusKind, amount float64) map[string]float64 {
	if amount == 0 {
		return nil
	}
	switch kind {
	case combat.StatusVulnerable:
		return map[string]float64{"bonus_pct": amount}
	default:
		return map[string]float64{"amount": amount}
	}
}

// resolveSkill spends the actor's power, emits skill_used, and applies the
// skill to every target: damage roll, armor absorption, HP reduction,
// optional status, death detection. Every mutated combatant is persisted
// before the corresponding event is appended.
func (e *Engine) resolveSkill(ctx context.Context, sess *CombatSession, turn int, actor *combat.Combatant, skill *combat.Skill, targets []*combat.Combatant, enraged bool) error {
	turnStr := strconv.Itoa(turn)

	actor.SpendPower(skill.PowerCost)
	if err := e.store.UpdateCombatant(ctx, actor); err != nil {
		return fmt.Errorf("persisting actor power: %w", err)
	}

	targetIDs := make([]string, len(targets))
	for i, t := range targets {
		targetIDs[i] = t.ID
	}
	if err := e.emit(ctx, sess, turn, actor.ID, EventSkillUsed, SkillUsedPayload{
		SkillID: skill.ID, SkillName: skill.Name, TargetIDs: targetIDs, PowerCost: skill.PowerCost,
	}); err != nil {
		return err
	}

	for _, tgt := range targets {
		mult := skill.EffectiveMultiplier(tgt.HPFraction())
		if enraged {
			mult *= boss.EnrageMultiplier
		}

		roll := combat.ResolveDamage(combat.DamageInput{
			AttackerLevel: actor.Level,
			Offense:       actor.Stats.Offense,
			Mobility:      actor.Stats.Mobility,
			Utility:       actor.Stats.Utility,
			WeaponPower:   actor.WeaponPower,
			Multiplier:    mult,
			Mitigation:    tgt.Mitigation(),
			SpreadPct:     e.cfg.SpreadPct,
		}, sess.Seed, rng.Label("damage", sess.ID, turnStr, actor.ID, tgt.ID))

		raw := int(float64(roll.FinalDamage) * combat.DamageTakenMultiplier(tgt))
		absorbed, hpLoss := tgt.ApplyDamage(raw)

		if err := e.store.UpdateCombatant(ctx, tgt); err != nil {
			return fmt.Errorf("persisting target %q: %w", tgt.ID, err)
		}
		if err := e.emit(ctx, sess, turn, actor.ID, EventDamage, DamagePayload{
			TargetID: tgt.ID, Roll: &roll, Absorbed: absorbed, HPLoss: hpLoss,
			TargetHP: tgt.HP, TargetArmor: tgt.Armor,
		}); err != nil {
			return err
		}

		e.logger.Debug("damage resolved",
			zap.String("session_id", sess.ID),
			zap.String("actor_id", actor.ID),
			zap.String("target_id", tgt.ID),
			zap.String("skill_id", skill.ID),
			zap.Int("final_damage", roll.FinalDamage),
			zap.Int("absorbed", absorbed),
			zap.Int("target_hp", tgt.HP),
		)

		if skill.AppliesStatus != nil && tgt.Alive {
			eff := combat.StatusEffect{
				ID:          skill.AppliesStatus.ID,
				Kind:        skill.AppliesStatus.Kind,
				ExpiresTurn: turn + skill.AppliesStatus.DurationTurns,
				Stacks:      skill.AppliesStatus.Stacks,
				Source:      skill.ID,
				Data:        skill.AppliesStatus.Data,
			}
			combat.ApplyStatus(tgt, eff)
			if err := e.store.UpdateCombatant(ctx, tgt); err != nil {
				return fmt.Errorf("persisting target status %q: %w", tgt.ID, err)
			}
			if err := e.emit(ctx, sess, turn, actor.ID, EventStatusApplied, StatusPayload{
				TargetID: tgt.ID, Status: &eff,
			}); err != nil {
				return err
			}
		}

		if !tgt.Alive {
			if err := e.emit(ctx, sess, turn, actor.ID, EventDeath, DeathPayload{
				CombatantID: tgt.ID, Name: tgt.Name, Kind: string(tgt.Kind),
			}); err != nil {
				return err
			}
		}
	}
	return nil
}

// runStartTick applies the start-of-turn status hook to the actor and
// persists the outcome.
func (e *Engine) runStartTick(ctx context.Context, sess *CombatSession, actor *combat.Combatant, turn int) error {
	tick := combat.TickStart(actor, turn)
	if err := e.store.UpdateCombatant(ctx, actor); err != nil {
		return fmt.Errorf("persisting actor after start tick: %w", err)
	}
	if err := e.emitTickEvents(ctx, sess, turn, actor, tick, "start"); err != nil {
		return err
	}
	return nil
}

// runEndTick applies the end-of-turn status hook to the actor and persists
// the outcome.
func (e *Engine) runEndTick(ctx context.Context, sess *CombatSession, actor *combat.Combatant, turn int) error {
	tick := combat.TickEnd(actor, turn)
	if err := e.store.UpdateCombatant(ctx, actor); err != nil {
		return fmt.Errorf("persisting actor after end tick: %w", err)
	}
	return e.emitTickEvents(ctx, sess, turn, actor, tick, "end")
}

// emitTickEvents appends status_expired / damage / death events produced by
// a tick.
func (e *Engine) emitTickEvents(ctx context.Context, sess *CombatSession, turn int, actor *combat.Combatant, tick combat.TickResult, hook string) error {
	if len(tick.Expired) > 0 {
		if err := e.emit(ctx, sess, turn, actor.ID, EventStatusExpired, StatusPayload{
			TargetID: actor.ID, Expired: tick.Expired,
		}); err != nil {
			return err
		}
	}
	if tick.Damage > 0 {
		if err := e.emit(ctx, sess, turn, actor.ID, EventDamage, DamagePayload{
			TargetID: actor.ID, TickSource: hook + "_tick",
			HPLoss: tick.Damage, TargetHP: actor.HP, TargetArmor: actor.Armor,
		}); err != nil {
			return err
		}
	}
	if tick.Died {
		if err := e.emit(ctx, sess, turn, actor.ID, EventDeath, DeathPayload{
			CombatantID: actor.ID, Name: actor.Name, Kind: string(actor.Kind),
		}); err != nil {
			return err
		}
	}
	return nil
}

// advancePointer computes the next living actor, persists the new turn
// pointer, and emits the turn_end/turn_start pair. The session row is the
// last write of the step (mutate-then-advance).
func (e *Engine) advancePointer(ctx context.Context, sess *CombatSession, order combat.TurnOrder, byID map[string]*combat.Combatant, actor *combat.Combatant, turn int) (stepResult, error) {
	aliveFn := func(id string) bool {
		c, ok := byID[id]
		return ok && c.Alive
	}
	next := order.NextAliveIndex(sess.TurnIndex, aliveFn)
	nextID, _ := order.CombatantAt(next)
	nextActor := byID[nextID]

	if err := e.emit(ctx, sess, turn, actor.ID, EventTurnEnd, TurnMarkerPayload{
		TurnIndex: sess.TurnIndex, TurnCount: turn, CombatantID: actor.ID, Name: actor.Name,
	}); err != nil {
		return stepResult{}, err
	}
	nextName := ""
	if nextActor != nil {
		nextName = nextActor.Name
	}
	if err := e.emit(ctx, sess, turn+1, nextID, EventTurnStart, TurnMarkerPayload{
		TurnIndex: next, TurnCount: turn + 1, CombatantID: nextID, Name: nextName,
	}); err != nil {
		return stepResult{}, err
	}

	sess.TurnIndex = next
	sess.TurnCount = turn + 1
	if err := e.store.UpdateSession(ctx, sess); err != nil {
		return stepResult{}, fmt.Errorf("advancing turn pointer: %w", err)
	}

	return stepResult{ticked: true, turnIndex: next, actorID: nextID}, nil
}

// endCombat hands the session to the settlement engine. Settlement runs
// exactly once: it marks the session ended, so a repeated advance observes
// the ended status and stops without re-settling.
func (e *Engine) endCombat(ctx context.Context, sess *CombatSession, all []*combat.Combatant) (stepResult, error) {
	if err := e.settler.Settle(ctx, sess, all); err != nil {
		return stepResult{}, fmt.Errorf("settling session %q: %w", sess.ID, err)
	}
	e.logger.Info("combat ended",
		zap.String("session_id", sess.ID),
		zap.Int("turn_count", sess.TurnCount),
	)
	return stepResult{ticked: true, ended: true, turnIndex: sess.TurnIndex}, nil
}

// emit appends one event to the immutable log.
func (e *Engine) emit(ctx context.Context, sess *CombatSession, turn int, actorID string, typ EventType, payload any) error {
	ev, err := NewEvent(sess.ID, turn, actorID, typ, payload)
	if err != nil {
		return err
	}
	if err := e.store.AppendEvent(ctx, ev); err != nil {
		return fmt.Errorf("appending %s event: %w", typ, err)
	}
	return nil
}
