package settlement_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/grimholt/skirmish/internal/game/boss"
	"github.com/grimholt/skirmish/internal/game/combat"
	"github.com/grimholt/skirmish/internal/game/engine"
	"github.com/grimholt/skirmish/internal/game/settlement"
	"github.com/grimholt/skirmish/internal/storage/memstore"
)

func testConfig() settlement.Config {
	return settlement.Config{
		BaseXP: 50, BossXPMultiplier: 3, FactionID: "ironpact",
		WinReputation: 10, LossReputation: -5,
	}
}

func seedSession(store *memstore.Store) *engine.CombatSession {
	sess := &engine.CombatSession{
		ID: "sess-1", CampaignID: "camp-1", Seed: 7,
		Status: engine.SessionActive, TurnCount: 9,
	}
	store.PutSession(sess)
	return sess
}

func playerCombatant(id, playerID, charID string, alive bool) *combat.Combatant {
	return &combat.Combatant{
		ID: id, SessionID: "sess-1", Kind: combat.KindPlayer,
		PlayerID: playerID, CharacterID: charID, Name: id,
		HP: 10, MaxHP: 20, Alive: alive,
	}
}

func npcCombatant(id string, alive bool) *combat.Combatant {
	return &combat.Combatant{
		ID: id, SessionID: "sess-1", Kind: combat.KindNPC, Name: id,
		MaxHP: 20, Alive: alive,
	}
}

func TestSettle_WinAwardsXPLootReputationAndMemory(t *testing.T) {
	store := memstore.New()
	sess := seedSession(store)
	combatants := []*combat.Combatant{
		playerCombatant("c-a", "p-a", "ch-a", true),
		playerCombatant("c-b", "p-b", "ch-b", true),
		npcCombatant("c-n1", false),
		npcCombatant("c-n2", false),
	}
	for _, c := range combatants {
		store.PutCombatant(c)
	}

	s := settlement.New(store, zap.NewNop(), testConfig())
	require.NoError(t, s.Settle(context.Background(), sess, combatants))

	assert.Equal(t, engine.SessionEnded, sess.Status)
	require.NotNil(t, sess.EndedAt)

	// 50 XP per defeated NPC, split across two survivors.
	assert.Equal(t, 50, store.Experience("ch-a"))
	assert.Equal(t, 50, store.Experience("ch-b"))

	for _, charID := range []string{"ch-a", "ch-b"} {
		items := store.Inventory(charID)
		require.Len(t, items, 1, "character %s", charID)
		assert.NotEmpty(t, items[0].Name)
		assert.Equal(t, settlement.RarityMagical, items[0].Rarity)
		assert.Positive(t, items[0].Power)
		assert.NotEmpty(t, items[0].Bonuses)
	}

	for _, playerID := range []string{"p-a", "p-b"} {
		rep, err := store.GetReputation(context.Background(), "camp-1", "ironpact", playerID)
		require.NoError(t, err)
		assert.Equal(t, 10, rep.Score)
	}

	memories := store.Memories()
	require.Len(t, memories, 2)
	for _, m := range memories {
		assert.Equal(t, "triumph", m.Kind)
	}
}

func TestSettle_WinSkipsFallenPlayers(t *testing.T) {
	store := memstore.New()
	sess := seedSession(store)
	combatants := []*combat.Combatant{
		playerCombatant("c-a", "p-a", "ch-a", true),
		playerCombatant("c-b", "p-b", "ch-b", false),
		npcCombatant("c-n1", false),
	}
	for _, c := range combatants {
		store.PutCombatant(c)
	}

	s := settlement.New(store, zap.NewNop(), testConfig())
	require.NoError(t, s.Settle(context.Background(), sess, combatants))

	// The survivor takes the whole award; the fallen player gets nothing.
	assert.Equal(t, 50, store.Experience("ch-a"))
	assert.Zero(t, store.Experience("ch-b"))
	assert.Empty(t, store.Inventory("ch-b"))

	rep, err := store.GetReputation(context.Background(), "camp-1", "ironpact", "p-a")
	require.NoError(t, err)
	assert.Equal(t, 10, rep.Score)

	_, err = store.GetReputation(context.Background(), "camp-1", "ironpact", "p-b")
	assert.ErrorIs(t, err, engine.ErrReputationNotFound,
		"fallen player must not earn reputation on a won combat")

	memories := store.Memories()
	require.Len(t, memories, 1)
	assert.Equal(t, "triumph", memories[0].Kind)
	assert.Equal(t, "p-a", memories[0].PlayerID)
}

func TestSettle_LossSkipsRewards(t *testing.T) {
	store := memstore.New()
	sess := seedSession(store)
	combatants := []*combat.Combatant{
		playerCombatant("c-a", "p-a", "ch-a", false),
		npcCombatant("c-n1", true),
	}
	for _, c := range combatants {
		store.PutCombatant(c)
	}

	s := settlement.New(store, zap.NewNop(), testConfig())
	require.NoError(t, s.Settle(context.Background(), sess, combatants))

	assert.Zero(t, store.Experience("ch-a"))
	assert.Empty(t, store.Inventory("ch-a"))

	rep, err := store.GetReputation(context.Background(), "camp-1", "ironpact", "p-a")
	require.NoError(t, err)
	assert.Equal(t, -5, rep.Score)

	memories := store.Memories()
	require.Len(t, memories, 1)
	assert.Equal(t, "setback", memories[0].Kind)
}

func TestSettle_SecondCallIsNoOp(t *testing.T) {
	store := memstore.New()
	sess := seedSession(store)
	combatants := []*combat.Combatant{
		playerCombatant("c-a", "p-a", "ch-a", true),
		npcCombatant("c-n1", false),
	}
	for _, c := range combatants {
		store.PutCombatant(c)
	}

	s := settlement.New(store, zap.NewNop(), testConfig())
	require.NoError(t, s.Settle(context.Background(), sess, combatants))
	require.NoError(t, s.Settle(context.Background(), sess, combatants))

	evs, err := store.ListEvents(context.Background(), "sess-1", 0)
	require.NoError(t, err)
	ends := 0
	for _, ev := range evs {
		if ev.Type == engine.EventCombatEnd {
			ends++
		}
	}
	assert.Equal(t, 1, ends)
	assert.Equal(t, 50, store.Experience("ch-a"))
}

func TestSettle_BossKillScalesXPAndRarity(t *testing.T) {
	store := memstore.New()
	sess := seedSession(store)
	bossNPC := npcCombatant("c-boss", false)
	combatants := []*combat.Combatant{
		playerCombatant("c-a", "p-a", "ch-a", true),
		bossNPC,
	}
	for _, c := range combatants {
		store.PutCombatant(c)
	}
	store.PutBossInstance(&boss.Instance{
		CombatantID: "c-boss", TemplateID: "gravelord", CurrentPhase: 2,
	})

	s := settlement.New(store, zap.NewNop(), testConfig())
	require.NoError(t, s.Settle(context.Background(), sess, combatants))

	// 50 base * 1 defeated * 3 boss multiplier, one survivor.
	assert.Equal(t, 150, store.Experience("ch-a"))

	items := store.Inventory("ch-a")
	require.Len(t, items, 1)
	assert.Equal(t, settlement.RarityLegendary, items[0].Rarity)
}

func TestSettle_ReputationClampsAtBounds(t *testing.T) {
	store := memstore.New()
	sess := seedSession(store)
	combatants := []*combat.Combatant{
		playerCombatant("c-a", "p-a", "ch-a", true),
		npcCombatant("c-n1", false),
	}
	for _, c := range combatants {
		store.PutCombatant(c)
	}
	require.NoError(t, store.UpsertReputation(context.Background(), &engine.FactionReputation{
		CampaignID: "camp-1", FactionID: "ironpact", PlayerID: "p-a",
		Score: engine.ReputationScoreMax - 3,
	}))

	s := settlement.New(store, zap.NewNop(), testConfig())
	require.NoError(t, s.Settle(context.Background(), sess, combatants))

	rep, err := store.GetReputation(context.Background(), "camp-1", "ironpact", "p-a")
	require.NoError(t, err)
	assert.Equal(t, engine.ReputationScoreMax, rep.Score)
}

func TestSettle_TransitionsBoards(t *testing.T) {
	store := memstore.New()
	sess := seedSession(store)
	combatants := []*combat.Combatant{
		playerCombatant("c-a", "p-a", "ch-a", true),
		npcCombatant("c-n1", false),
	}
	for _, c := range combatants {
		store.PutCombatant(c)
	}

	earlier := time.Now().UTC().Add(-time.Hour)
	store.PutBoard(&engine.Board{
		ID: "b-town", CampaignID: "camp-1", Type: engine.BoardTown,
		Status: engine.BoardArchived, UpdatedAt: earlier,
	})
	store.PutBoard(&engine.Board{
		ID: "b-combat", CampaignID: "camp-1", Type: engine.BoardCombat,
		Status: engine.BoardActive, UpdatedAt: earlier.Add(time.Minute),
	})

	s := settlement.New(store, zap.NewNop(), testConfig())
	require.NoError(t, s.Settle(context.Background(), sess, combatants))

	boards, err := store.ListBoards(context.Background(), "camp-1")
	require.NoError(t, err)
	byID := make(map[string]*engine.Board, len(boards))
	for _, b := range boards {
		byID[b.ID] = b
	}

	require.Contains(t, byID, "b-combat")
	assert.Equal(t, engine.BoardArchived, byID["b-combat"].Status)
	assert.Equal(t, "combat_settled", byID["b-combat"].Reason)
	assert.NotEmpty(t, byID["b-combat"].Outcome)

	require.Contains(t, byID, "b-town")
	assert.Equal(t, engine.BoardActive, byID["b-town"].Status)
}

func TestSettle_NoRewardWithoutDefeatedNPCs(t *testing.T) {
	store := memstore.New()
	sess := seedSession(store)
	// Only players remain; nothing was defeated (e.g. NPCs fled via script).
	combatants := []*combat.Combatant{
		playerCombatant("c-a", "p-a", "ch-a", true),
	}
	for _, c := range combatants {
		store.PutCombatant(c)
	}

	s := settlement.New(store, zap.NewNop(), testConfig())
	require.NoError(t, s.Settle(context.Background(), sess, combatants))

	assert.Zero(t, store.Experience("ch-a"))
	assert.Empty(t, store.Inventory("ch-a"))
}
