package settlement

import (
	"github.com/google/uuid"

	"github.com/grimholt/skirmish/internal/game/engine"
	"github.com/grimholt/skirmish/internal/game/rng"
)

// Rarity tiers in ascending order of power.
const (
	RarityMagical   = "magical"
	RarityUnique    = "unique"
	RarityLegendary = "legendary"
)

// lootSlots are the equipment slots an item can roll into.
var lootSlots = []string{"weapon", "head", "chest", "hands", "feet", "trinket"}

// slotBonuses maps each slot to the stats its items may carry. Weapons lean
// offensive; armor pieces lean defensive.
var slotBonuses = map[string][]string{
	"weapon":  {"offense", "mobility"},
	"head":    {"defense", "utility"},
	"chest":   {"defense", "support"},
	"hands":   {"offense", "control"},
	"feet":    {"mobility", "defense"},
	"trinket": {"utility", "support", "control"},
}

var rarityPrefixes = map[string][]string{
	RarityMagical:   {"Gleaming", "Runed", "Keen", "Warded"},
	RarityUnique:    {"Stormforged", "Duskwoven", "Emberbound", "Hallowed"},
	RarityLegendary: {"Worldrender", "Kingsbane", "Dawnbreaker", "Nightveil"},
}

var slotNouns = map[string][]string{
	"weapon":  {"Blade", "Maul", "Spear", "Bow"},
	"head":    {"Helm", "Crown", "Hood"},
	"chest":   {"Cuirass", "Robe", "Hauberk"},
	"hands":   {"Gauntlets", "Grips", "Bracers"},
	"feet":    {"Greaves", "Striders", "Boots"},
	"trinket": {"Charm", "Idol", "Band"},
}

// rarityForXP maps a per-character experience award to a loot rarity tier.
// Bigger fights drop better gear.
func rarityForXP(xp int) string {
	switch {
	case xp >= 150:
		return RarityLegendary
	case xp >= 75:
		return RarityUnique
	default:
		return RarityMagical
	}
}

// rarityPowerRange returns the [min, max] item power roll for a rarity.
func rarityPowerRange(rarity string) (int, int) {
	switch rarity {
	case RarityLegendary:
		return 40, 60
	case RarityUnique:
		return 20, 39
	default:
		return 5, 19
	}
}

// rollLoot deterministically generates one item for a character. All rolls
// key off (seed, "loot:<session>:<character>:<facet>") so a settlement
// replayed from the same state produces the same drop.
func rollLoot(seed int64, sessionID, characterID string, xp int) (*engine.LootItem, error) {
	rarity := rarityForXP(xp)

	slot, err := rng.Pick(seed, rng.Label("loot", sessionID, characterID, "slot"), lootSlots)
	if err != nil {
		return nil, err
	}
	prefix, err := rng.Pick(seed, rng.Label("loot", sessionID, characterID, "prefix"), rarityPrefixes[rarity])
	if err != nil {
		return nil, err
	}
	noun, err := rng.Pick(seed, rng.Label("loot", sessionID, characterID, "noun"), slotNouns[slot])
	if err != nil {
		return nil, err
	}

	lo, hi := rarityPowerRange(rarity)
	power := rng.NextInt(seed, rng.Label("loot", sessionID, characterID, "power"), lo, hi)

	bonuses := make(map[string]int)
	for _, stat := range slotBonuses[slot] {
		bonuses[stat] = rng.NextInt(seed, rng.Label("loot", sessionID, characterID, "bonus", stat), 1, power/4+1)
	}

	return &engine.LootItem{
		ID:      uuid.New().String(),
		Name:    prefix + " " + noun,
		Rarity:  rarity,
		Slot:    slot,
		Power:   power,
		Bonuses: bonuses,
	}, nil
}
