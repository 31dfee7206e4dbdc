// Package session holds in-progress playdate negotiations, one per caller session.
package session

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pawmatch/pawmatch/internal/database"
	"github.com/pawmatch/pawmatch/internal/telemetry"
)

// Status is derived from which parts of a negotiation are still missing
type Status string

const (
	StatusBothPending     Status = "both_pending"
	StatusLocationPending Status = "location_pending"
	StatusTimePending     Status = "time_pending"
	StatusReady           Status = "ready"
)

// PlaydateNegotiationContext is the working state of one negotiation
type PlaydateNegotiationContext struct {
	SessionID    string                     `json:"session_id"`
	Token        string                     `json:"token"`
	Match        *database.Match            `json:"match"`
	InitiatorID  string                     `json:"initiator_id"`
	OtherDog     *database.DogProfile       `json:"other_dog"`
	Location     *database.PlaydateLocation `json:"location,omitempty"`
	ProposedTime *time.Time                 `json:"proposed_time,omitempty"`
	Participants []string                   `json:"participants"`
	StartedAt    time.Time                  `json:"started_at"`
	UpdatedAt    time.Time                  `json:"updated_at"`
	ExpiresAt    time.Time                  `json:"expires_at"`
}

func (c *PlaydateNegotiationContext) Status() Status {
	switch {
	case c.Location == nil && c.ProposedTime == nil:
		return StatusBothPending
	case c.Location == nil:
		return StatusLocationPending
	case c.ProposedTime == nil:
		return StatusTimePending
	}
	return StatusReady
}

// Missing names the fields still needed before the negotiation can finalize
func (c *PlaydateNegotiationContext) Missing() []string {
	var missing []string
	if c.ProposedTime == nil {
		missing = append(missing, "time")
	}
	if c.Location == nil {
		missing = append(missing, "location")
	}
	return missing
}

// ReceiverID is the participant who did not start the negotiation
func (c *PlaydateNegotiationContext) ReceiverID() string {
	if c.Match == nil {
		return ""
	}
	other, _ := c.Match.OtherSide(c.InitiatorID)
	return other
}

// Clone returns a deep copy. Callers mutate clones and hand them back through Save.
func (c *PlaydateNegotiationContext) Clone() *PlaydateNegotiationContext {
	out := *c
	if c.Match != nil {
		m := *c.Match
		out.Match = &m
	}
	if c.OtherDog != nil {
		d := *c.OtherDog
		out.OtherDog = &d
	}
	if c.Location != nil {
		l := *c.Location
		out.Location = &l
	}
	if c.ProposedTime != nil {
		t := *c.ProposedTime
		out.ProposedTime = &t
	}
	out.Participants = append([]string(nil), c.Participants...)
	return &out
}

// Snapshotter mirrors contexts outside the process so a restart can resume them
type Snapshotter interface {
	SaveSnapshot(ctx context.Context, sessionID string, v interface{}) error
	LoadSnapshot(ctx context.Context, sessionID string, dest interface{}) (bool, error)
	DeleteSnapshot(ctx context.Context, sessionID string) error
}

// Manager keeps negotiation contexts keyed by session ID
type Manager struct {
	mu        sync.RWMutex
	sessions  map[string]*PlaydateNegotiationContext
	ttl       time.Duration
	snapshots Snapshotter
	now       func() time.Time
}

// NewManager creates a manager. A zero ttl keeps contexts until they are
// cleared or replaced. snapshots may be nil.
func NewManager(ttl time.Duration, snapshots Snapshotter) *Manager {
	return &Manager{
		sessions:  make(map[string]*PlaydateNegotiationContext),
		ttl:       ttl,
		snapshots: snapshots,
		now:       time.Now,
	}
}

// Open stores a fresh context for c.SessionID, replacing any prior one
func (m *Manager) Open(ctx context.Context, c *PlaydateNegotiationContext) *PlaydateNegotiationContext {
	now := m.now()
	stored := c.Clone()
	stored.Token = uuid.New().String()
	stored.StartedAt = now
	stored.UpdatedAt = now
	if m.ttl > 0 {
		stored.ExpiresAt = now.Add(m.ttl)
	}

	m.mu.Lock()
	m.sessions[stored.SessionID] = stored
	m.mu.Unlock()

	m.mirror(ctx, stored)
	return stored.Clone()
}

// Get returns a copy of the session's context. A context missing from memory
// is restored from the snapshot store when one is configured.
func (m *Manager) Get(ctx context.Context, sessionID string) (*PlaydateNegotiationContext, bool) {
	m.mu.RLock()
	c, ok := m.sessions[sessionID]
	m.mu.RUnlock()

	if ok && !m.expired(c) {
		return c.Clone(), true
	}
	if ok {
		m.Clear(ctx, sessionID)
		return nil, false
	}
	return m.restore(ctx, sessionID)
}

// Save writes c back if it still belongs to the live context of its session.
// It reports false when the session was cleared or replaced in the meantime.
func (m *Manager) Save(ctx context.Context, c *PlaydateNegotiationContext) bool {
	stored := c.Clone()
	stored.UpdatedAt = m.now()
	if m.ttl > 0 {
		stored.ExpiresAt = stored.UpdatedAt.Add(m.ttl)
	}

	m.mu.Lock()
	current, ok := m.sessions[stored.SessionID]
	if !ok || current.Token != stored.Token {
		m.mu.Unlock()
		return false
	}
	m.sessions[stored.SessionID] = stored
	m.mu.Unlock()

	m.mirror(ctx, stored)
	return true
}

// Clear drops the session's context. Clearing an absent session is a no-op.
func (m *Manager) Clear(ctx context.Context, sessionID string) {
	m.mu.Lock()
	delete(m.sessions, sessionID)
	m.mu.Unlock()

	m.dropSnapshot(ctx, sessionID)
}

func (m *Manager) dropSnapshot(ctx context.Context, sessionID string) {
	if m.snapshots == nil {
		return
	}
	if err := m.snapshots.DeleteSnapshot(ctx, sessionID); err != nil {
		telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
			"operation":  "negotiation_snapshot_delete",
			"session_id": sessionID,
		}).WithError(err).Warn("Failed to delete negotiation snapshot")
	}
}

// Take removes c's session if it is still the live context c was read from.
// Only one of several concurrent callers holding the same context wins.
func (m *Manager) Take(ctx context.Context, c *PlaydateNegotiationContext) bool {
	m.mu.Lock()
	current, ok := m.sessions[c.SessionID]
	if !ok || current.Token != c.Token {
		m.mu.Unlock()
		return false
	}
	delete(m.sessions, c.SessionID)
	m.mu.Unlock()

	m.dropSnapshot(ctx, c.SessionID)
	return true
}

// Reinstate puts back a context removed by Take unless the session was reopened since
func (m *Manager) Reinstate(ctx context.Context, c *PlaydateNegotiationContext) bool {
	stored := c.Clone()

	m.mu.Lock()
	if _, ok := m.sessions[stored.SessionID]; ok {
		m.mu.Unlock()
		return false
	}
	m.sessions[stored.SessionID] = stored
	m.mu.Unlock()

	m.mirror(ctx, stored)
	return true
}

// CleanupExpired removes expired contexts and returns how many were dropped
func (m *Manager) CleanupExpired() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	removed := 0
	for id, c := range m.sessions {
		if m.expired(c) {
			delete(m.sessions, id)
			removed++
		}
	}
	return removed
}

// StartCleanupRoutine sweeps expired contexts until ctx is done
func (m *Manager) StartCleanupRoutine(ctx context.Context, interval time.Duration) {
	if m.ttl <= 0 || interval <= 0 {
		return
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				m.CleanupExpired()
			}
		}
	}()
}

// ActiveCount returns the number of contexts held in memory
func (m *Manager) ActiveCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.sessions)
}

func (m *Manager) expired(c *PlaydateNegotiationContext) bool {
	return !c.ExpiresAt.IsZero() && m.now().After(c.ExpiresAt)
}

func (m *Manager) mirror(ctx context.Context, c *PlaydateNegotiationContext) {
	if m.snapshots == nil {
		return
	}
	if err := m.snapshots.SaveSnapshot(ctx, c.SessionID, c); err != nil {
		telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
			"operation":  "negotiation_snapshot_save",
			"session_id": c.SessionID,
		}).WithError(err).Warn("Failed to mirror negotiation snapshot")
	}
}

func (m *Manager) restore(ctx context.Context, sessionID string) (*PlaydateNegotiationContext, bool) {
	if m.snapshots == nil {
		return nil, false
	}

	var c PlaydateNegotiationContext
	found, err := m.snapshots.LoadSnapshot(ctx, sessionID, &c)
	if err != nil {
		telemetry.GetContextualLogger(ctx).WithFields(map[string]interface{}{
			"operation":  "negotiation_snapshot_load",
			"session_id": sessionID,
		}).WithError(err).Warn("Failed to load negotiation snapshot")
		return nil, false
	}
	if !found || c.SessionID != sessionID || m.expired(&c) {
		return nil, false
	}

	m.mu.Lock()
	// A concurrent Open wins over the restored copy.
	if current, ok := m.sessions[sessionID]; ok {
		m.mu.Unlock()
		return current.Clone(), true
	}
	m.sessions[sessionID] = &c
	m.mu.Unlock()

	return c.Clone(), true
}
