package session

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pawmatch/pawmatch/internal/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type memorySnapshots struct {
	mu      sync.Mutex
	data    map[string][]byte
	saveErr error
}

func newMemorySnapshots() *memorySnapshots {
	return &memorySnapshots{data: make(map[string][]byte)}
}

func (s *memorySnapshots) SaveSnapshot(_ context.Context, id string, v interface{}) error {
	if s.saveErr != nil {
		return s.saveErr
	}
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[id] = b
	return nil
}

func (s *memorySnapshots) LoadSnapshot(_ context.Context, id string, dest interface{}) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	b, ok := s.data[id]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(b, dest)
}

func (s *memorySnapshots) DeleteSnapshot(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.data, id)
	return nil
}

func newContext(sessionID string) *PlaydateNegotiationContext {
	return &PlaydateNegotiationContext{
		SessionID:    sessionID,
		Match:        &database.Match{ID: "m1", Owner1ID: "u1", Owner2ID: "u2", Dog1ID: "d1", Dog2ID: "d2"},
		InitiatorID:  "u1",
		OtherDog:     &database.DogProfile{ID: "d2", Name: "Rex"},
		Participants: []string{"u1", "u2"},
	}
}

func TestContext_StatusAndMissing(t *testing.T) {
	c := newContext("s")
	assert.Equal(t, StatusBothPending, c.Status())
	assert.Equal(t, []string{"time", "location"}, c.Missing())

	now := time.Now()
	c.ProposedTime = &now
	assert.Equal(t, StatusLocationPending, c.Status())

	c.Location = &database.PlaydateLocation{Name: "Park"}
	assert.Equal(t, StatusReady, c.Status())
	assert.Empty(t, c.Missing())

	c.ProposedTime = nil
	assert.Equal(t, StatusTimePending, c.Status())
	assert.Equal(t, "u2", c.ReceiverID())
}

func TestContext_CloneIsDeep(t *testing.T) {
	c := newContext("s")
	c.Location = &database.PlaydateLocation{Name: "Park"}

	cp := c.Clone()
	cp.Location.Name = "Beach"
	cp.Match.Status = database.MatchCancelled
	cp.Participants[0] = "someone"

	assert.Equal(t, "Park", c.Location.Name)
	assert.Empty(t, c.Match.Status)
	assert.Equal(t, "u1", c.Participants[0])
}

func TestManager_OpenGetClear(t *testing.T) {
	m := NewManager(0, nil)
	ctx := context.Background()

	_, ok := m.Get(ctx, "s1")
	assert.False(t, ok)

	opened := m.Open(ctx, newContext("s1"))
	assert.NotEmpty(t, opened.Token)

	got, ok := m.Get(ctx, "s1")
	require.True(t, ok)
	assert.Equal(t, opened.Token, got.Token)
	assert.Equal(t, 1, m.ActiveCount())

	m.Clear(ctx, "s1")
	m.Clear(ctx, "s1")
	_, ok = m.Get(ctx, "s1")
	assert.False(t, ok)
}

func TestManager_SecondOpenReplaces(t *testing.T) {
	m := NewManager(0, nil)
	ctx := context.Background()

	first := m.Open(ctx, newContext("s1"))
	now := time.Now()
	first.ProposedTime = &now

	replacement := newContext("s1")
	replacement.InitiatorID = "u2"
	m.Open(ctx, replacement)

	assert.False(t, m.Save(ctx, first), "writes from a replaced context are rejected")

	got, ok := m.Get(ctx, "s1")
	require.True(t, ok)
	assert.Equal(t, "u2", got.InitiatorID)
	assert.Nil(t, got.ProposedTime)
	assert.Equal(t, 1, m.ActiveCount())
}

func TestManager_SaveAfterClearIsRejected(t *testing.T) {
	m := NewManager(0, nil)
	ctx := context.Background()

	c := m.Open(ctx, newContext("s1"))
	m.Clear(ctx, "s1")

	assert.False(t, m.Save(ctx, c))
	assert.Equal(t, 0, m.ActiveCount())
}

func TestManager_TakeClaimsOnce(t *testing.T) {
	snaps := newMemorySnapshots()
	m := NewManager(0, snaps)
	ctx := context.Background()

	c := m.Open(ctx, newContext("s1"))
	stale := c.Clone()

	assert.True(t, m.Take(ctx, c))
	assert.False(t, m.Take(ctx, stale), "a second claim on the same context loses")
	assert.False(t, m.Save(ctx, stale))
	_, ok := m.Get(ctx, "s1")
	assert.False(t, ok, "the snapshot goes with the claim")
	assert.Equal(t, 0, m.ActiveCount())
}

func TestManager_TakeRejectsReplacedContext(t *testing.T) {
	m := NewManager(0, nil)
	ctx := context.Background()

	first := m.Open(ctx, newContext("s1"))
	m.Open(ctx, newContext("s1"))

	assert.False(t, m.Take(ctx, first))
	assert.Equal(t, 1, m.ActiveCount())
}

func TestManager_Reinstate(t *testing.T) {
	m := NewManager(0, nil)
	ctx := context.Background()

	c := m.Open(ctx, newContext("s1"))
	require.True(t, m.Take(ctx, c))
	require.True(t, m.Reinstate(ctx, c))

	got, ok := m.Get(ctx, "s1")
	require.True(t, ok)
	assert.Equal(t, c.Token, got.Token)

	require.True(t, m.Take(ctx, got))
	m.Open(ctx, newContext("s1"))
	assert.False(t, m.Reinstate(ctx, got), "a reopened session is not overwritten")
}

func TestManager_GetReturnsCopy(t *testing.T) {
	m := NewManager(0, nil)
	ctx := context.Background()
	m.Open(ctx, newContext("s1"))

	got, _ := m.Get(ctx, "s1")
	got.Location = &database.PlaydateLocation{Name: "Park"}

	again, _ := m.Get(ctx, "s1")
	assert.Nil(t, again.Location)
}

func TestManager_Expiry(t *testing.T) {
	m := NewManager(time.Minute, nil)
	now := time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC)
	m.now = func() time.Time { return now }
	ctx := context.Background()

	m.Open(ctx, newContext("s1"))
	m.Open(ctx, newContext("s2"))

	now = now.Add(2 * time.Minute)
	_, ok := m.Get(ctx, "s1")
	assert.False(t, ok)

	assert.Equal(t, 1, m.CleanupExpired())
	assert.Equal(t, 0, m.ActiveCount())
}

func TestManager_RestoresFromSnapshot(t *testing.T) {
	snaps := newMemorySnapshots()
	ctx := context.Background()

	first := NewManager(0, snaps)
	opened := first.Open(ctx, newContext("s1"))
	loc := &database.PlaydateLocation{Name: "Central Bark", Address: "1 Park Ave"}
	opened.Location = loc
	require.True(t, first.Save(ctx, opened))

	// A second process sharing the snapshot store picks the session up.
	second := NewManager(0, snaps)
	got, ok := second.Get(ctx, "s1")
	require.True(t, ok)
	assert.Equal(t, opened.Token, got.Token)
	require.NotNil(t, got.Location)
	assert.Equal(t, "Central Bark", got.Location.Name)
	assert.Equal(t, "Rex", got.OtherDog.Name)

	second.Clear(ctx, "s1")
	_, ok = first.restore(ctx, "s1")
	assert.False(t, ok)
}

func TestManager_SnapshotFailureDoesNotBlock(t *testing.T) {
	snaps := newMemorySnapshots()
	snaps.saveErr = errors.New("redis down")
	m := NewManager(0, snaps)
	ctx := context.Background()

	m.Open(ctx, newContext("s1"))
	_, ok := m.Get(ctx, "s1")
	assert.True(t, ok)
}

func TestManager_ConcurrentSessions(t *testing.T) {
	m := NewManager(0, nil)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i%26))
			c := m.Open(ctx, newContext(id))
			now := time.Now()
			c.ProposedTime = &now
			m.Save(ctx, c)
			m.Get(ctx, id)
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 26, m.ActiveCount())
}
