package rng_test

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"pgregory.net/rapid"

	"github.com/grimholt/skirmish/internal/game/rng"
)

// TestNextInt_Deterministic verifies the core contract: identical
// (seed, label, min, max) always yields the identical value.
func TestNextInt_Deterministic(t *testing.T) {
	a := rng.NextInt(42, "damage:s1:3:c1:c2", 1, 100)
	b := rng.NextInt(42, "damage:s1:3:c1:c2", 1, 100)
	assert.Equal(t, a, b, "same seed+label must produce the same roll")
}

// TestNextInt_LabelIndependence verifies that distinct labels under the same
// seed do not produce lock-stepped streams.
func TestNextInt_LabelIndependence(t *testing.T) {
	same := 0
	for i := 0; i < 100; i++ {
		a := rng.NextInt(7, fmt.Sprintf("target:%d", i), 0, 999)
		b := rng.NextInt(7, fmt.Sprintf("spread:%d", i), 0, 999)
		if a == b {
			same++
		}
	}
	// 100 pairs over 1000 values collide ~0.1 times on average.
	assert.Less(t, same, 10, "distinct labels must look independent")
}

// TestNextInt_Range_Property verifies NextInt stays in [min, max] and is
// deterministic for arbitrary inputs.
func TestNextInt_Range_Property(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		seed := rapid.Int64().Draw(rt, "seed")
		label := rapid.StringMatching(`[a-z0-9:]{1,40}`).Draw(rt, "label")
		min := rapid.IntRange(-1000, 1000).Draw(rt, "min")
		max := rapid.IntRange(min, min+2000).Draw(rt, "max")

		v := rng.NextInt(seed, label, min, max)
		assert.GreaterOrEqual(rt, v, min)
		assert.LessOrEqual(rt, v, max)
		assert.Equal(rt, v, rng.NextInt(seed, label, min, max),
			"NextInt must be a pure function of (seed, label, min, max)")
	})
}

// TestNextInt_PanicsOnInvertedRange verifies the precondition min <= max.
func TestNextInt_PanicsOnInvertedRange(t *testing.T) {
	assert.Panics(t, func() { rng.NextInt(1, "x", 5, 4) })
}

// TestPick_Deterministic verifies Pick returns a member of the candidate
// list and the same member on every call.
func TestPick_Deterministic(t *testing.T) {
	candidates := []string{"claw", "bite", "tail_sweep"}
	got, err := rng.Pick(99, "boss_skill:s1:4", candidates)
	require.NoError(t, err)
	assert.Contains(t, candidates, got)

	again, err := rng.Pick(99, "boss_skill:s1:4", candidates)
	require.NoError(t, err)
	assert.Equal(t, got, again)
}

// TestPick_EmptyCandidates verifies the empty-list error contract.
func TestPick_EmptyCandidates(t *testing.T) {
	_, err := rng.Pick(1, "boss_skill:s1:4", []string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "empty candidate list")
}

// TestStream_Intn_Bounds verifies rejection sampling stays in [0, n).
func TestStream_Intn_Bounds(t *testing.T) {
	s := rng.NewStream(123, "bounds")
	for i := 0; i < 1000; i++ {
		v := s.Intn(7)
		assert.GreaterOrEqual(t, v, 0)
		assert.Less(t, v, 7)
	}
}

// TestStream_SeedSensitivity verifies that changing only the seed changes
// the stream.
func TestStream_SeedSensitivity(t *testing.T) {
	a := rng.NewStream(1, "roll")
	b := rng.NewStream(2, "roll")
	diff := false
	for i := 0; i < 8; i++ {
		if a.Next64() != b.Next64() {
			diff = true
			break
		}
	}
	assert.True(t, diff, "different seeds must diverge")
}

// TestLabel verifies canonical label construction.
func TestLabel(t *testing.T) {
	assert.Equal(t, "damage:s1:3:c1:c2", rng.Label("damage", "s1", "3", "c1", "c2"))
	assert.Panics(t, func() { rng.Label() })
}
