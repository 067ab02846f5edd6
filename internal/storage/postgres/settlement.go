package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/grimholt/skirmish/internal/game/engine"
)

// AddExperience adds to a character's accumulated experience.
//
// Precondition: amount must be >= 0.
func (s *Store) AddExperience(ctx context.Context, characterID string, amount int) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE characters SET experience = experience + $2, updated_at = NOW()
		WHERE id = $1`,
		characterID, amount,
	)
	if err != nil {
		return fmt.Errorf("adding experience: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("character %q not found", characterID)
	}
	return nil
}

// GrantItem inserts a generated loot item into a character's inventory.
func (s *Store) GrantItem(ctx context.Context, characterID string, item *engine.LootItem) error {
	bonuses, err := json.Marshal(item.Bonuses)
	if err != nil {
		return fmt.Errorf("encoding item bonuses: %w", err)
	}
	_, err = s.db.Exec(ctx, `
		INSERT INTO items (id, character_id, name, rarity, slot, power, bonuses)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		item.ID, characterID, item.Name, item.Rarity, item.Slot, item.Power, bonuses,
	)
	if err != nil {
		return fmt.Errorf("inserting item: %w", err)
	}
	return nil
}

// GetReputation returns the aggregate faction standing for one player.
//
// Postcondition: Returns engine.ErrReputationNotFound when no row exists.
func (s *Store) GetReputation(ctx context.Context, campaignID, factionID, playerID string) (*engine.FactionReputation, error) {
	var rep engine.FactionReputation
	err := s.db.QueryRow(ctx, `
		SELECT campaign_id, faction_id, player_id, score, updated_at
		FROM faction_reputation
		WHERE campaign_id = $1 AND faction_id = $2 AND player_id = $3`,
		campaignID, factionID, playerID,
	).Scan(&rep.CampaignID, &rep.FactionID, &rep.PlayerID, &rep.Score, &rep.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("reputation %s/%s/%s: %w",
				campaignID, factionID, playerID, engine.ErrReputationNotFound)
		}
		return nil, fmt.Errorf("querying reputation: %w", err)
	}
	return &rep, nil
}

// AppendReputationEvent records one reputation delta. Append-only.
func (s *Store) AppendReputationEvent(ctx context.Context, ev *engine.ReputationEvent) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO reputation_events (id, campaign_id, faction_id, player_id, delta, reason, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		ev.ID, ev.CampaignID, ev.FactionID, ev.PlayerID, ev.Delta, ev.Reason, ev.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting reputation event: %w", err)
	}
	return nil
}

// UpsertReputation writes the clamped aggregate standing.
func (s *Store) UpsertReputation(ctx context.Context, rep *engine.FactionReputation) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO faction_reputation (campaign_id, faction_id, player_id, score, updated_at)
		VALUES ($1, $2, $3, $4, NOW())
		ON CONFLICT (campaign_id, faction_id, player_id)
		DO UPDATE SET score = EXCLUDED.score, updated_at = NOW()`,
		rep.CampaignID, rep.FactionID, rep.PlayerID, rep.Score,
	)
	if err != nil {
		return fmt.Errorf("upserting reputation: %w", err)
	}
	return nil
}

// AppendMemory records one long-term narrative memory entry.
func (s *Store) AppendMemory(ctx context.Context, entry *engine.MemoryEntry) error {
	_, err := s.db.Exec(ctx, `
		INSERT INTO memories (id, campaign_id, player_id, kind, text, created_at)
		VALUES ($1, $2, $3, $4, $5, $6)`,
		entry.ID, entry.CampaignID, entry.PlayerID, entry.Kind, entry.Text, entry.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("inserting memory: %w", err)
	}
	return nil
}

// ListBoards returns the campaign's boards, most recently updated first.
func (s *Store) ListBoards(ctx context.Context, campaignID string) ([]*engine.Board, error) {
	rows, err := s.db.Query(ctx, `
		SELECT id, campaign_id, type, status, reason, outcome, updated_at
		FROM boards WHERE campaign_id = $1
		ORDER BY updated_at DESC`,
		campaignID,
	)
	if err != nil {
		return nil, fmt.Errorf("listing boards: %w", err)
	}
	defer rows.Close()

	var out []*engine.Board
	for rows.Next() {
		var b engine.Board
		if err := rows.Scan(
			&b.ID, &b.CampaignID, &b.Type, &b.Status, &b.Reason, &b.Outcome, &b.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("scanning board row: %w", err)
		}
		out = append(out, &b)
	}
	return out, rows.Err()
}

// UpdateBoard persists board status, reason, and outcome payload.
//
// Postcondition: Returns engine.ErrBoardNotFound if no row was updated.
func (s *Store) UpdateBoard(ctx context.Context, b *engine.Board) error {
	tag, err := s.db.Exec(ctx, `
		UPDATE boards SET status = $2, reason = $3, outcome = $4, updated_at = NOW()
		WHERE id = $1`,
		b.ID, b.Status, b.Reason, b.Outcome,
	)
	if err != nil {
		return fmt.Errorf("updating board: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("board %q: %w", b.ID, engine.ErrBoardNotFound)
	}
	return nil
}
