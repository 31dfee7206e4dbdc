package services

import (
	"context"
	"testing"
	"time"

	"github.com/pawmatch/pawmatch/internal/database"
	apperrors "github.com/pawmatch/pawmatch/internal/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatchLifecycle_ExpiryFor(t *testing.T) {
	l := NewMatchLifecycle(database.NewMemoryStore(), 0, nil)

	tests := []struct {
		matchType database.MatchType
		expected  time.Duration
	}{
		{database.MatchTypeStandard, DefaultMatchExpiry},
		{database.MatchTypeNearby, DefaultMatchExpiry},
		{database.MatchTypeSamePark, DefaultMatchExpiry},
		{database.MatchTypeSuperLike, 2 * DefaultMatchExpiry},
		{database.MatchTypePerfectMatch, 2 * DefaultMatchExpiry},
	}
	for _, tt := range tests {
		t.Run(string(tt.matchType), func(t *testing.T) {
			assert.Equal(t, tt.expected, l.ExpiryFor(tt.matchType))
		})
	}
}

func TestMatchLifecycle_Get(t *testing.T) {
	env := newTestEnv(t)

	_, err := env.lifecycle.Get(context.Background(), "missing")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeMatchNotFound))
	assert.True(t, apperrors.IsErrorType(err, apperrors.ErrorTypeNotFound))
}

func TestMatchLifecycle_Accept(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.pendingMatch(t)

	_, err := env.lifecycle.Accept(ctx, m.ID, m.Owner1ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotAParticipant), "the initiating side cannot accept")

	_, err = env.lifecycle.Accept(ctx, m.ID, "stranger")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotAParticipant))

	env.advance(time.Hour)
	accepted, err := env.lifecycle.Accept(ctx, m.ID, m.Owner2ID)
	require.NoError(t, err)
	assert.Equal(t, database.MatchActive, accepted.Status)
	assert.Equal(t, env.now, accepted.LastInteractionAt)
	assert.True(t, IsActive(accepted, env.now))

	_, err = env.lifecycle.Accept(ctx, m.ID, m.Owner2ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestMatchLifecycle_DeclineIsTerminal(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.pendingMatch(t)

	declined, err := env.lifecycle.Decline(ctx, m.ID, m.Owner2ID)
	require.NoError(t, err)
	assert.Equal(t, database.MatchDeclined, declined.Status)

	for _, op := range []func() (*database.Match, error){
		func() (*database.Match, error) { return env.lifecycle.Accept(ctx, m.ID, m.Owner2ID) },
		func() (*database.Match, error) { return env.lifecycle.Cancel(ctx, m.ID, m.Owner1ID) },
	} {
		_, err := op()
		assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
	}

	// A declined match still occupies the pair.
	again := env.swipe(t, "owner-a", "dog-a", "dog-b", database.SwipeLike)
	require.NotNil(t, again.Match)
	assert.Equal(t, m.ID, again.Match.ID)
}

func TestMatchLifecycle_Cancel(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	pending := env.pendingMatch(t)
	_, err := env.lifecycle.Cancel(ctx, pending.ID, pending.Owner1ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition), "only active matches can be cancelled")

	active, err := env.lifecycle.Accept(ctx, pending.ID, pending.Owner2ID)
	require.NoError(t, err)

	_, err = env.lifecycle.Cancel(ctx, active.ID, "stranger")
	assert.True(t, apperrors.HasCode(err, apperrors.CodeNotAParticipant))

	cancelled, err := env.lifecycle.Cancel(ctx, active.ID, active.Owner1ID)
	require.NoError(t, err)
	assert.Equal(t, database.MatchCancelled, cancelled.Status)

	// Cancelling frees the pair for a fresh match.
	res := env.swipe(t, "owner-a", "dog-a", "dog-b", database.SwipeLike)
	require.NotNil(t, res.Match)
	assert.True(t, res.MatchCreated)
	assert.NotEqual(t, active.ID, res.Match.ID)
	assert.Equal(t, 2, env.store.CountMatches("dog-a", "dog-b"))
}

func TestMatchLifecycle_LazyExpiry(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.pendingMatch(t)

	env.advance(DefaultMatchExpiry)

	got, err := env.lifecycle.Get(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, database.MatchExpired, got.Status)

	stored, err := env.store.GetMatchByID(ctx, m.ID)
	require.NoError(t, err)
	assert.Equal(t, database.MatchExpired, stored.Status, "expiry is persisted on read")

	_, err = env.lifecycle.Accept(ctx, m.ID, m.Owner2ID)
	assert.True(t, apperrors.HasCode(err, apperrors.CodeInvalidTransition))
}

func TestMatchLifecycle_ActiveMatchExpires(t *testing.T) {
	env := newTestEnv(t)
	m := env.activeMatch(t)

	assert.True(t, IsActive(m, env.now))
	assert.False(t, IsActive(m, m.ExpiresAt))
	assert.False(t, IsActive(nil, env.now))
}

func TestMatchLifecycle_Touch(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	m := env.activeMatch(t)

	env.advance(time.Hour)
	require.NoError(t, env.lifecycle.Touch(ctx, m.ID))

	stored, _ := env.store.GetMatchByID(ctx, m.ID)
	assert.Equal(t, env.now, stored.LastInteractionAt)
}

func TestMatchLifecycle_ExpireStale(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	env.addDog(t, labrador("dog-c", "owner-c", 40.7, -74.0))
	env.addDog(t, labrador("dog-d", "owner-d", 40.7, -74.0))

	stale := env.pendingMatch(t)
	env.swipe(t, "owner-c", "dog-c", "dog-d", database.SwipeSuperLike)
	fresh := env.swipe(t, "owner-d", "dog-d", "dog-c", database.SwipeLike).Match
	require.NotNil(t, fresh)

	env.advance(DefaultMatchExpiry + time.Minute)

	n, err := env.lifecycle.ExpireStale(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, _ := env.store.GetMatchByID(ctx, stale.ID)
	assert.Equal(t, database.MatchExpired, got.Status)
	got, _ = env.store.GetMatchByID(ctx, fresh.ID)
	assert.Equal(t, database.MatchPending, got.Status, "super likes stay open twice as long")

	n, err = env.lifecycle.ExpireStale(ctx, 100)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}
