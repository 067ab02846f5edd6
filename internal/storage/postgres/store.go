package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/grimholt/skirmish/internal/game/combat"
	"github.com/grimholt/skirmish/internal/game/engine"
)

// Store implements the combat and settlement storage interfaces on top of
// PostgreSQL. One Store serves all sessions; pgx pools the connections.
type Store struct {
	db *pgxpool.Pool
}

// NewStore creates a Store backed by the given pool.
//
// Precondition: pool must be a valid, open connection pool.
func NewStore(pool *Pool) *Store {
	return &Store{db: pool.DB()}
}

var _ engine.SettlementStore = (*Store)(nil)

// GetSession retrieves a combat session by ID.
//
// Postcondition: Returns the session or engine.ErrSessionNotFound.
func (s *Store) GetSession(ctx context.Context, sessionID string) (*engine.CombatSession, error) {
	var sess engine.CombatSession
	err := s.db.QueryRow(ctx, `
		SELECT id, campaign_id, seed, status, turn_index, turn_count, updated_at, ended_at
		FROM combat_sessions WHERE id = $1`,
		sessionID,
	).Scan(
		&sess.ID, &sess.CampaignID, &sess.Seed, &sess.Status,
		&sess.TurnIndex, &sess.TurnCount, &sess.UpdatedAt, &sess.EndedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("session %q: %w", sessionID, engine.ErrSessionNotFound)
		}
		return nil, fmt.Errorf("querying session: %w", err)
	}
	return &sess, nil
}

// CreateSession inserts a new combat session.
//
// Precondition: session.ID and session.CampaignID must be non-empty.
func (s *Store) CreateSession(ctx context.Context, session *engine.CombatSession) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO combat_sessions (id, campaign_id, seed, status, turn_index, turn_count, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, NOW())`,
		session.ID, session.CampaignID, session.Seed, session.Status,
		session.TurnIndex, session.TurnCount,
	)
	if err != nil {
		return fmt.Errorf("inserting session: %w", err)
	}
	return nil
}

// UpdateSession persists the turn pointer, turn count, status, and end time.
//
// Postcondition: Returns engine.ErrSessionNotFound if no row was updated.
func (s *Store) UpdateSession(ctx context.Context, session *engine.CombatSession) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE combat_sessions
		SET status = $2, turn_index = $3, turn_count = $4, ended_at = $5, updated_at = NOW()
		WHERE id = $1`,
		session.ID, session.Status, session.TurnIndex, session.TurnCount, session.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("session %q: %w", session.ID, engine.ErrSessionNotFound)
	}
	return nil
}

// GetTurnOrder loads the session's fixed cycle ordered by index.
func (s *Store) GetTurnOrder(ctx context.Context, sessionID string) (combat.TurnOrder, error) {
	rows, err := s.db.Query(ctx, `
		SELECT idx, combatant_id FROM turn_order_slots
		WHERE session_id = $1 ORDER BY idx ASC`,
		sessionID,
	)
	if err != nil {
		return combat.TurnOrder{}, fmt.Errorf("querying turn order: %w", err)
	}
	defer rows.Close()

	var slots []combat.Slot
	for rows.Next() {
		var slot combat.Slot
		if err := rows.Scan(&slot.Index, &slot.CombatantID); err != nil {
			return combat.TurnOrder{}, fmt.Errorf("scanning turn order slot: %w", err)
		}
		slots = append(slots, slot)
	}
	if err := rows.Err(); err != nil {
		return combat.TurnOrder{}, fmt.Errorf("reading turn order rows: %w", err)
	}
	if len(slots) == 0 {
		return combat.TurnOrder{}, nil
	}
	return combat.FromSlots(slots)
}

// PutTurnOrder replaces the session's turn order. Called once at encounter
// setup; the cycle is immutable afterwards.
func (s *Store) PutTurnOrder(ctx context.Context, sessionID string, order combat.TurnOrder) error {
	tx, err := s.db.Begin(ctx)
	if err != nil {
		return fmt.Errorf("beginning turn order tx: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM turn_order_slots WHERE session_id = $1`, sessionID); err != nil {
		return fmt.Errorf("clearing turn order: %w", err)
	}
	for _, slot := range order.Slots() {
		if _, err := tx.Exec(ctx, `
			INSERT INTO turn_order_slots (session_id, idx, combatant_id)
			VALUES ($1, $2, $3)`,
			sessionID, slot.Index, slot.CombatantID,
		); err != nil {
			return fmt.Errorf("inserting turn order slot %d: %w", slot.Index, err)
		}
	}
	return tx.Commit(ctx)
}

const combatantColumns = `
	id, session_id, kind, player_id, character_id, name, level,
	offense, defense, control, support, mobility, utility,
	weapon_power, armor, resist, hp, max_hp, power, max_power,
	x, y, alive, statuses`

func scanCombatant(row pgx.Row) (*combat.Combatant, error) {
	var c combat.Combatant
	var statuses []byte
	if err := row.Scan(
		&c.ID, &c.SessionID, &c.Kind, &c.PlayerID, &c.CharacterID, &c.Name, &c.Level,
		&c.Stats.Offense, &c.Stats.Defense, &c.Stats.Control,
		&c.Stats.Support, &c.Stats.Mobility, &c.Stats.Utility,
		&c.WeaponPower, &c.Armor, &c.Resist, &c.HP, &c.MaxHP, &c.Power, &c.MaxPower,
		&c.X, &c.Y, &c.Alive, &statuses,
	); err != nil {
		return nil, err
	}
	if len(statuses) > 0 {
		if err := json.Unmarshal(statuses, &c.Statuses); err != nil {
			return nil, fmt.Errorf("decoding statuses for %q: %w", c.ID, err)
		}
	}
	return &c, nil
}

// GetCombatant retrieves one combatant by ID.
//
// Postcondition: Returns the combatant or engine.ErrCombatantNotFound.
func (s *Store) GetCombatant(ctx context.Context, combatantID string) (*combat.Combatant, error) {
	row := s.db.QueryRow(ctx,
		`SELECT `+combatantColumns+` FROM combatants WHERE id = $1`, combatantID)
	c, err := scanCombatant(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("combatant %q: %w", combatantID, engine.ErrCombatantNotFound)
		}
		return nil, fmt.Errorf("querying combatant: %w", err)
	}
	return c, nil
}

// ListCombatants returns every combatant in the session ordered by ID, so
// iteration order is deterministic across calls and processes.
func (s *Store) ListCombatants(ctx context.Context, sessionID string) ([]*combat.Combatant, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+combatantColumns+` FROM combatants WHERE session_id = $1 ORDER BY id ASC`,
		sessionID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing combatants: %w", err)
	}
	defer rows.Close()

	var out []*combat.Combatant
	for rows.Next() {
		c, err := scanCombatant(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning combatant row: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// CreateCombatant inserts a new combatant.
func (s *Store) CreateCombatant(ctx context.Context, c *combat.Combatant) error {
	statuses, err := json.Marshal(c.Statuses)
	if err != nil {
		return fmt.Errorf("encoding statuses: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO combatants (`+combatantColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24)`,
		c.ID, c.SessionID, c.Kind, c.PlayerID, c.CharacterID, c.Name, c.Level,
		c.Stats.Offense, c.Stats.Defense, c.Stats.Control,
		c.Stats.Support, c.Stats.Mobility, c.Stats.Utility,
		c.WeaponPower, c.Armor, c.Resist, c.HP, c.MaxHP, c.Power, c.MaxPower,
		c.X, c.Y, c.Alive, statuses,
	)
	if err != nil {
		return fmt.Errorf("inserting combatant: %w", err)
	}
	return nil
}

// UpdateCombatant persists the mutable combat state of one combatant.
//
// Postcondition: Returns engine.ErrCombatantNotFound if no row was updated.
func (s *Store) UpdateCombatant(ctx context.Context, c *combat.Combatant) error {
	statuses, err := json.Marshal(c.Statuses)
	if err != nil {
		return fmt.Errorf("encoding statuses: %w", err)
	}
	tag, err := s.db.Exec(ctx, `
		UPDATE combatants
		SET armor = $2, hp = $3, power = $4, x = $5, y = $6, alive = $7, statuses = $8
		WHERE id = $1`,
		c.ID, c.Armor, c.HP, c.Power, c.X, c.Y, c.Alive, statuses,
	)
	if err != nil {
		return fmt.Errorf("updating combatant: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("combatant %q: %w", c.ID, engine.ErrCombatantNotFound)
	}
	return nil
}
