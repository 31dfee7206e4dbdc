package database

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestVenues_Value(t *testing.T) {
	tests := []struct {
		name     string
		venues   Venues
		expected string
	}{
		{"Nil venues", nil, "[]"},
		{"Empty venues", Venues{}, "[]"},
		{"Single venue", Venues{{ID: "park-1", Name: "Central Bark"}}, `[{"id":"park-1","name":"Central Bark"}]`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			value, err := tt.venues.Value()
			require.NoError(t, err)
			assert.JSONEq(t, tt.expected, string(value.([]byte)))
		})
	}
}

func TestJSONColumns_Scan(t *testing.T) {
	var venues Venues
	require.NoError(t, venues.Scan([]byte(`[{"id":"v1","name":"Beach"}]`)))
	assert.Equal(t, Venues{{ID: "v1", Name: "Beach"}}, venues)

	var reasons StringList
	require.NoError(t, reasons.Scan(`["Same breed","Similar energy levels"]`))
	assert.Equal(t, StringList{"Same breed", "Similar energy levels"}, reasons)

	var meta Metadata
	require.NoError(t, meta.Scan(nil))
	assert.Nil(t, meta)

	var loc PlaydateLocation
	err := loc.Scan(42)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "cannot scan int into PlaydateLocation")
}

func TestPairKey_IsOrderIndependent(t *testing.T) {
	assert.Equal(t, "a:b", PairKey("a", "b"))
	assert.Equal(t, PairKey("dog-9", "dog-1"), PairKey("dog-1", "dog-9"))
}

func TestMatchStatus_IsTerminal(t *testing.T) {
	tests := []struct {
		status   MatchStatus
		terminal bool
	}{
		{MatchPending, false},
		{MatchActive, false},
		{MatchDeclined, true},
		{MatchExpired, true},
		{MatchCancelled, true},
	}
	for _, tt := range tests {
		t.Run(string(tt.status), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.status.IsTerminal())
		})
	}
}

func TestMatch_Sides(t *testing.T) {
	m := &Match{Owner1ID: "o1", Owner2ID: "o2", Dog1ID: "d1", Dog2ID: "d2"}

	owner, dog := m.OtherSide("o1")
	assert.Equal(t, "o2", owner)
	assert.Equal(t, "d2", dog)

	owner, dog = m.OtherSide("o2")
	assert.Equal(t, "o1", owner)
	assert.Equal(t, "d1", dog)

	assert.Equal(t, "d2", m.DogOf("o2"))
	assert.True(t, m.HasParticipant("o1"))
	assert.False(t, m.HasParticipant("o3"))
	assert.False(t, m.HasParticipant(""))
}

func TestSwipeDirection(t *testing.T) {
	assert.True(t, SwipeLike.IsPositive())
	assert.True(t, SwipeSuperLike.IsPositive())
	assert.False(t, SwipePass.IsPositive())
	assert.False(t, SwipeDirection("maybe").Valid())
}

func TestTimeSlot_Contains(t *testing.T) {
	start := time.Date(2026, 5, 4, 10, 0, 0, 0, time.UTC)
	slot := TimeSlot{Start: start, End: start.Add(2 * time.Hour)}

	assert.True(t, slot.Contains(start))
	assert.True(t, slot.Contains(start.Add(time.Hour)))
	assert.False(t, slot.Contains(start.Add(2*time.Hour)))
	assert.False(t, slot.Contains(start.Add(-time.Minute)))
}
