package engine

import "errors"

// Not-found sentinels returned by CombatStore implementations.
var (
	ErrSessionNotFound   = errors.New("combat session not found")
	ErrCombatantNotFound = errors.New("combatant not found")
	ErrNoBossInstance    = errors.New("combatant has no boss instance")
	ErrReputationNotFound = errors.New("faction reputation not found")
	ErrBoardNotFound     = errors.New("board not found")
)

// Structural-integrity sentinels. These mean the stored state was corrupted
// by something outside the engine's control; the call aborts and nothing is
// guessed or repaired.
var (
	ErrEmptyTurnOrder  = errors.New("turn order is empty")
	ErrTurnSlotInvalid = errors.New("current turn index not present in turn order")
	ErrActorMissing    = errors.New("turn actor not found among combatants")
)

// Validation sentinels for caller mistakes.
var (
	ErrInvalidStepBudget = errors.New("step budget must be between 1 and the configured maximum")
	ErrSessionEnded      = errors.New("combat session already ended")
	ErrWrongCampaign     = errors.New("combat session does not belong to campaign")
	ErrNotYourTurn       = errors.New("it is not this combatant's turn")
	ErrNotAPlayer        = errors.New("acting combatant is not player-controlled")
	ErrActorDead         = errors.New("acting combatant is not alive")
	ErrTargetInvalid     = errors.New("target is not a living opponent")
	ErrInsufficientPower = errors.New("not enough power for this skill")
	ErrUnknownSkill      = errors.New("unknown skill")
)

// IsStructural reports whether err is one of the fatal data-integrity
// sentinels that must never be retried or silently repaired.
func IsStructural(err error) bool {
	return errors.Is(err, ErrEmptyTurnOrder) ||
		errors.Is(err, ErrTurnSlotInvalid) ||
		errors.Is(err, ErrActorMissing)
}

// IsValidation reports whether err is a caller-correctable validation
// error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidStepBudget) ||
		errors.Is(err, ErrWrongCampaign) ||
		errors.Is(err, ErrNotYourTurn) ||
		errors.Is(err, ErrNotAPlayer) ||
		errors.Is(err, ErrActorDead) ||
		errors.Is(err, ErrTargetInvalid) ||
		errors.Is(err, ErrInsufficientPower) ||
		errors.Is(err, ErrUnknownSkill)
}
