package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/grimholt/skirmish/internal/game/boss"
	"github.com/grimholt/skirmish/internal/game/engine"
)

// AppendEvent appends one record to the immutable combat log. The sequence
// number is assigned by the database and written back into ev.Seq.
//
// Postcondition: ev.Seq > 0 on success; the log is append-only, existing
// rows are never touched.
func (s *Store) AppendEvent(ctx context.Context, ev *engine.ActionEvent) error {
	err := s.db.QueryRow(ctx, `
		INSERT INTO action_events (id, session_id, turn_index, actor_id, type, payload, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING seq`,
		ev.ID, ev.SessionID, ev.TurnIndex, ev.ActorID, ev.Type, []byte(ev.Payload), ev.CreatedAt,
	).Scan(&ev.Seq)
	if err != nil {
		return fmt.Errorf("inserting action event: %w", err)
	}
	return nil
}

// ListEvents returns the session's events with seq > afterSeq in ascending
// sequence order.
func (s *Store) ListEvents(ctx context.Context, sessionID string, afterSeq int64) ([]*engine.ActionEvent, error) {
	rows, err := s.db.Query(ctx, `
		SELECT seq, id, session_id, turn_index, actor_id, type, payload, created_at
		FROM action_events
		WHERE session_id = $1 AND seq > $2
		ORDER BY seq ASC`,
		sessionID, afterSeq,
	)
	if err != nil {
		return nil, fmt.Errorf("listing action events: %w", err)
	}
	defer rows.Close()

	var out []*engine.ActionEvent
	for rows.Next() {
		var ev engine.ActionEvent
		var payload []byte
		if err := rows.Scan(
			&ev.Seq, &ev.ID, &ev.SessionID, &ev.TurnIndex,
			&ev.ActorID, &ev.Type, &payload, &ev.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning action event row: %w", err)
		}
		ev.Payload = payload
		out = append(out, &ev)
	}
	return out, rows.Err()
}

// GetBossInstance returns the phase state for a boss-flagged combatant.
//
// Postcondition: Returns engine.ErrNoBossInstance for ordinary combatants.
func (s *Store) GetBossInstance(ctx context.Context, combatantID string) (*boss.Instance, error) {
	var inst boss.Instance
	err := s.db.QueryRow(ctx, `
		SELECT combatant_id, template_id, current_phase, enraged
		FROM boss_instances WHERE combatant_id = $1`,
		combatantID,
	).Scan(&inst.CombatantID, &inst.TemplateID, &inst.CurrentPhase, &inst.Enraged)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("combatant %q: %w", combatantID, engine.ErrNoBossInstance)
		}
		return nil, fmt.Errorf("querying boss instance: %w", err)
	}
	return &inst, nil
}

// CreateBossInstance links a combatant to a boss template at encounter
// setup.
func (s *Store) CreateBossInstance(ctx context.Context, inst *boss.Instance) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO boss_instances (combatant_id, template_id, current_phase, enraged)
		VALUES ($1, $2, $3, $4)`,
		inst.CombatantID, inst.TemplateID, inst.CurrentPhase, inst.Enraged,
	)
	if err != nil {
		return fmt.Errorf("inserting boss instance: %w", err)
	}
	return nil
}

// UpdateBossInstance persists phase and enrage state.
func (s *Store) UpdateBossInstance(ctx context.Context, inst *boss.Instance) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE boss_instances SET current_phase = $2, enraged = $3
		WHERE combatant_id = $1`,
		inst.CombatantID, inst.CurrentPhase, inst.Enraged,
	)
	if err != nil {
		return fmt.Errorf("updating boss instance: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("combatant %q: %w", inst.CombatantID, engine.ErrNoBossInstance)
	}
	return nil
}
