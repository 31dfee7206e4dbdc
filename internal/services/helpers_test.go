package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pawmatch/pawmatch/internal/database"
	"github.com/pawmatch/pawmatch/internal/scoring"
	"github.com/pawmatch/pawmatch/internal/session"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockNotificationSink is a mock implementation of interfaces.NotificationSink
type MockNotificationSink struct {
	mock.Mock
}

func (m *MockNotificationSink) SendMatchNotification(ctx context.Context, userID, title, message string, data map[string]string) error {
	args := m.Called(ctx, userID, title, message, data)
	return args.Error(0)
}

func (m *MockNotificationSink) SendPlaydateRequestNotification(ctx context.Context, userID, requestID, otherDogName string) error {
	args := m.Called(ctx, userID, requestID, otherDogName)
	return args.Error(0)
}

// MockLocationValidator is a mock implementation of interfaces.LocationValidator
type MockLocationValidator struct {
	mock.Mock
}

func (m *MockLocationValidator) Validate(ctx context.Context, loc database.PlaydateLocation) error {
	args := m.Called(ctx, loc)
	return args.Error(0)
}

// MockPairLocker is a mock implementation of interfaces.PairLocker
type MockPairLocker struct {
	mock.Mock
}

func (m *MockPairLocker) AcquirePairLock(ctx context.Context, pairKey string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, pairKey, ttl)
	return args.Bool(0), args.Error(1)
}

func (m *MockPairLocker) ReleasePairLock(ctx context.Context, pairKey string) error {
	args := m.Called(ctx, pairKey)
	return args.Error(0)
}

// failingSwipeStore rejects every swipe write
type failingSwipeStore struct {
	*database.MemoryStore
}

func (f failingSwipeStore) InsertSwipe(context.Context, *database.Swipe) error {
	return errors.New("connection reset")
}

// fakeLimiter allows a fixed number of calls per key
type fakeLimiter struct {
	mu     sync.Mutex
	limit  int
	counts map[string]int
}

func newFakeLimiter(limit int) *fakeLimiter {
	return &fakeLimiter{limit: limit, counts: make(map[string]int)}
}

func (f *fakeLimiter) Allow(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.counts[key]++
	return f.counts[key] <= f.limit
}

func (f *fakeLimiter) Limit() int            { return f.limit }
func (f *fakeLimiter) Window() time.Duration { return time.Minute }

type testEnv struct {
	store         *database.MemoryStore
	notifier      *MockNotificationSink
	locations     *MockLocationValidator
	lifecycle     *MatchLifecycle
	swipes        *SwipeService
	conversations *ConversationService
	playdates     *PlaydateService
	sessions      *session.Manager

	mu  sync.Mutex
	now time.Time
}

func (e *testEnv) clock() time.Time {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.now
}

func (e *testEnv) advance(d time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.now = e.now.Add(d)
}

// newTestEnv wires every service against one memory store with a fixed clock
// on Monday 2 June 2025, 10:00 UTC
func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	env := &testEnv{
		store:     database.NewMemoryStore(),
		notifier:  new(MockNotificationSink),
		locations: new(MockLocationValidator),
		now:       time.Date(2025, 6, 2, 10, 0, 0, 0, time.UTC),
	}
	env.notifier.On("SendMatchNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()
	env.notifier.On("SendPlaydateRequestNotification", mock.Anything, mock.Anything, mock.Anything, mock.Anything).Return(nil).Maybe()

	env.lifecycle = NewMatchLifecycle(env.store, 0, nil)
	env.lifecycle.now = env.clock

	env.swipes = NewSwipeService(env.store, env.store, env.store, env.lifecycle,
		scoring.NewScorer(scoring.DefaultWeights(), scoring.DefaultMatchThreshold), nil, env.notifier, nil)
	env.swipes.now = env.clock

	env.conversations = NewConversationService(env.lifecycle, env.store, env.store, env.notifier, nil, nil)
	env.conversations.now = env.clock

	env.sessions = session.NewManager(0, nil)
	env.playdates = NewPlaydateService(env.lifecycle, env.store, env.sessions, env.locations,
		env.store, env.store, env.store, env.notifier, nil)
	env.playdates.now = env.clock

	env.addDog(t, labrador("dog-a", "owner-a", 40.7128, -74.0060))
	env.addDog(t, labrador("dog-b", "owner-b", 40.7130, -74.0062))
	return env
}

func ptr[T any](v T) *T { return &v }

func labrador(id, owner string, lat, lng float64) *database.DogProfile {
	return &database.DogProfile{
		ID:          id,
		OwnerID:     owner,
		Name:        "Lab " + id,
		Breed:       "Labrador",
		EnergyLevel: database.LevelHigh,
		Size:        database.SizeMedium,
		Latitude:    ptr(lat),
		Longitude:   ptr(lng),
	}
}

func (e *testEnv) addDog(t *testing.T, dog *database.DogProfile) {
	t.Helper()
	require.NoError(t, e.store.UpsertDog(context.Background(), dog))
}

func (e *testEnv) swipe(t *testing.T, owner, from, to string, dir database.SwipeDirection) *SwipeResult {
	t.Helper()
	res, err := e.swipes.RecordSwipe(context.Background(), SwipeCommand{
		SwiperOwnerID: owner,
		SwiperDogID:   from,
		SwipedDogID:   to,
		Direction:     dir,
	})
	require.NoError(t, err)
	return res
}

// pendingMatch creates the dog-a/dog-b match through mutual likes. owner-a is the receiver.
func (e *testEnv) pendingMatch(t *testing.T) *database.Match {
	t.Helper()
	e.swipe(t, "owner-a", "dog-a", "dog-b", database.SwipeLike)
	res := e.swipe(t, "owner-b", "dog-b", "dog-a", database.SwipeLike)
	require.NotNil(t, res.Match)
	return res.Match
}

func (e *testEnv) activeMatch(t *testing.T) *database.Match {
	t.Helper()
	m := e.pendingMatch(t)
	active, err := e.lifecycle.Accept(context.Background(), m.ID, m.Owner2ID)
	require.NoError(t, err)
	return active
}
