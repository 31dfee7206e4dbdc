package database

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is an in-process implementation of every store contract.
// Records are copied on the way in and out so callers never share state with the store.
type MemoryStore struct {
	mu            sync.RWMutex
	dogs          map[string]*DogProfile
	swipes        []*Swipe
	matches       map[string]*Match
	livePairs     map[string]string // pair key -> match id
	conversations map[string]*Conversation
	convByMatch   map[string]string
	messages      map[string][]*Message
	playdates     map[string]*PlaydateRequest
	availability  map[string][]TimeSlot
	contacts      map[string]*OwnerContact
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		dogs:          make(map[string]*DogProfile),
		matches:       make(map[string]*Match),
		livePairs:     make(map[string]string),
		conversations: make(map[string]*Conversation),
		convByMatch:   make(map[string]string),
		messages:      make(map[string][]*Message),
		playdates:     make(map[string]*PlaydateRequest),
		availability:  make(map[string][]TimeSlot),
		contacts:      make(map[string]*OwnerContact),
	}
}

func (m *MemoryStore) GetDogByID(_ context.Context, id string) (*DogProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	dog, ok := m.dogs[id]
	if !ok {
		return nil, nil
	}
	cp := *dog
	return &cp, nil
}

func (m *MemoryStore) UpsertDog(_ context.Context, dog *DogProfile) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	now := time.Now().UTC()
	if dog.CreatedAt.IsZero() {
		dog.CreatedAt = now
	}
	dog.UpdatedAt = now
	cp := *dog
	m.dogs[dog.ID] = &cp
	return nil
}

func (m *MemoryStore) ListCandidates(_ context.Context, excludeOwnerID string, limit int) ([]*DogProfile, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*DogProfile, 0, len(m.dogs))
	for _, dog := range m.dogs {
		if dog.OwnerID == excludeOwnerID {
			continue
		}
		cp := *dog
		out = append(out, &cp)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

// SetAvailability replaces the published free windows of userID
func (m *MemoryStore) SetAvailability(userID string, slots []TimeSlot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.availability[userID] = append([]TimeSlot(nil), slots...)
}

func (m *MemoryStore) GetAvailabilityWindow(_ context.Context, userID string, weekStart time.Time) ([]TimeSlot, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	weekEnd := weekStart.AddDate(0, 0, 7)
	var out []TimeSlot
	for _, slot := range m.availability[userID] {
		if !slot.Start.Before(weekStart) && slot.Start.Before(weekEnd) {
			out = append(out, slot)
		}
	}
	return out, nil
}

func (m *MemoryStore) InsertSwipe(_ context.Context, swipe *Swipe) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *swipe
	m.swipes = append(m.swipes, &cp)
	return nil
}

func (m *MemoryStore) FindReciprocalSwipe(_ context.Context, swiperDogID, swipedDogID string) (*Swipe, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	// Swipes are appended in arrival order, so the last hit is the latest.
	for i := len(m.swipes) - 1; i >= 0; i-- {
		s := m.swipes[i]
		if s.SwiperDogID != swipedDogID || s.SwipedDogID != swiperDogID {
			continue
		}
		if !s.Direction.IsPositive() {
			return nil, nil
		}
		cp := *s
		return &cp, nil
	}
	return nil, nil
}

func (m *MemoryStore) ListPositiveSwipesSince(_ context.Context, since time.Time, limit int) ([]*Swipe, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Swipe
	for _, s := range m.swipes {
		if s.CreatedAt.Before(since) || !s.Direction.IsPositive() {
			continue
		}
		cp := *s
		out = append(out, &cp)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// InsertMatchIfAbsent checks and claims the pair key under one write lock
func (m *MemoryStore) InsertMatchIfAbsent(_ context.Context, match *Match) (*Match, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.livePairs[match.PairKey]; ok {
		cp := cloneMatch(m.matches[id])
		return cp, false, nil
	}
	m.matches[match.ID] = cloneMatch(match)
	m.livePairs[match.PairKey] = match.ID
	return cloneMatch(match), true, nil
}

func (m *MemoryStore) GetMatchByID(_ context.Context, id string) (*Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	match, ok := m.matches[id]
	if !ok {
		return nil, nil
	}
	return cloneMatch(match), nil
}

func (m *MemoryStore) FindMatchByPair(_ context.Context, dogA, dogB string) (*Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.livePairs[PairKey(dogA, dogB)]
	if !ok {
		return nil, nil
	}
	return cloneMatch(m.matches[id]), nil
}

func (m *MemoryStore) FindLatestCancelledMatch(_ context.Context, dogA, dogB string) (*Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := PairKey(dogA, dogB)
	var latest *Match
	for _, match := range m.matches {
		if match.PairKey != key || match.Status != MatchCancelled {
			continue
		}
		if latest == nil || match.LastInteractionAt.After(latest.LastInteractionAt) {
			latest = match
		}
	}
	if latest == nil {
		return nil, nil
	}
	return cloneMatch(latest), nil
}

func (m *MemoryStore) UpdateMatch(_ context.Context, match *Match) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.matches[match.ID]
	if !ok {
		return fmt.Errorf("failed to update match: %s does not exist", match.ID)
	}
	stored.Status = match.Status
	stored.LastInteractionAt = match.LastInteractionAt
	stored.ExpiresAt = match.ExpiresAt
	stored.ConversationID = cloneString(match.ConversationID)
	if stored.Status == MatchCancelled && m.livePairs[stored.PairKey] == stored.ID {
		delete(m.livePairs, stored.PairKey)
	}
	return nil
}

func (m *MemoryStore) ListExpirableMatches(_ context.Context, now time.Time, limit int) ([]*Match, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var out []*Match
	for _, match := range m.matches {
		if match.Status.IsTerminal() || match.ExpiresAt.After(now) {
			continue
		}
		out = append(out, cloneMatch(match))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ExpiresAt.Before(out[j].ExpiresAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) FindConversationByMatch(_ context.Context, matchID string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	id, ok := m.convByMatch[matchID]
	if !ok {
		return nil, nil
	}
	return cloneConversation(m.conversations[id]), nil
}

func (m *MemoryStore) GetConversation(_ context.Context, id string) (*Conversation, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	conv, ok := m.conversations[id]
	if !ok {
		return nil, nil
	}
	return cloneConversation(conv), nil
}

func (m *MemoryStore) CreateConversation(_ context.Context, conv *Conversation) (*Conversation, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if id, ok := m.convByMatch[conv.MatchID]; ok {
		return cloneConversation(m.conversations[id]), false, nil
	}
	m.conversations[conv.ID] = cloneConversation(conv)
	m.convByMatch[conv.MatchID] = conv.ID
	return cloneConversation(conv), true, nil
}

func (m *MemoryStore) AppendMessage(_ context.Context, msg *Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[msg.ConversationID]
	if !ok {
		return fmt.Errorf("failed to append message: conversation %s does not exist", msg.ConversationID)
	}
	for _, existing := range m.messages[msg.ConversationID] {
		if existing.ID == msg.ID {
			return nil
		}
	}
	cp := *msg
	m.messages[msg.ConversationID] = append(m.messages[msg.ConversationID], &cp)
	at := msg.CreatedAt
	conv.LastMessage = msg.Body
	conv.LastMessageAt = &at
	conv.HasUnread = true
	return nil
}

func (m *MemoryStore) ListMessages(_ context.Context, conversationID string, before time.Time, limit int) ([]*Message, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msgs := m.messages[conversationID]
	if !before.IsZero() {
		end := len(msgs)
		for end > 0 && !msgs[end-1].CreatedAt.Before(before) {
			end--
		}
		msgs = msgs[:end]
	}
	if limit > 0 && len(msgs) > limit {
		msgs = msgs[len(msgs)-limit:]
	}
	out := make([]*Message, 0, len(msgs))
	for _, msg := range msgs {
		cp := *msg
		out = append(out, &cp)
	}
	return out, nil
}

func (m *MemoryStore) SetPlaydateStatus(_ context.Context, conversationID string, status PlaydateStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	conv, ok := m.conversations[conversationID]
	if !ok {
		return fmt.Errorf("failed to set playdate status: conversation %s does not exist", conversationID)
	}
	conv.PlaydateStatus = status
	return nil
}

func (m *MemoryStore) CreatePlaydateRequest(_ context.Context, req *PlaydateRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.playdates[req.ID]; exists {
		return fmt.Errorf("failed to create playdate request: %s already exists", req.ID)
	}
	cp := *req
	cp.TimeSlots = append(TimeSlots(nil), req.TimeSlots...)
	m.playdates[req.ID] = &cp
	return nil
}

func (m *MemoryStore) GetPlaydateRequest(_ context.Context, id string) (*PlaydateRequest, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	req, ok := m.playdates[id]
	if !ok {
		return nil, nil
	}
	cp := *req
	cp.TimeSlots = append(TimeSlots(nil), req.TimeSlots...)
	return &cp, nil
}

func (m *MemoryStore) UpdatePlaydateRequest(_ context.Context, req *PlaydateRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.playdates[req.ID]; !ok {
		return fmt.Errorf("failed to update playdate request: %s does not exist", req.ID)
	}
	cp := *req
	cp.TimeSlots = append(TimeSlots(nil), req.TimeSlots...)
	m.playdates[req.ID] = &cp
	return nil
}

func (m *MemoryStore) GetContact(_ context.Context, userID string) (*OwnerContact, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	c, ok := m.contacts[userID]
	if !ok {
		return nil, nil
	}
	return cloneContact(c), nil
}

func (m *MemoryStore) UpsertContact(_ context.Context, contact *OwnerContact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	contact.UpdatedAt = time.Now().UTC()
	m.contacts[contact.UserID] = cloneContact(contact)
	return nil
}

// CountMatches returns how many matches exist for the pair regardless of status
func (m *MemoryStore) CountMatches(dogA, dogB string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	key := PairKey(dogA, dogB)
	n := 0
	for _, match := range m.matches {
		if match.PairKey == key {
			n++
		}
	}
	return n
}

// CountConversations returns the number of conversations stored for matchID
func (m *MemoryStore) CountConversations(matchID string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for _, conv := range m.conversations {
		if conv.MatchID == matchID {
			n++
		}
	}
	return n
}

// CountPlaydateRequests returns the number of stored playdate requests
func (m *MemoryStore) CountPlaydateRequests() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.playdates)
}

func cloneMatch(match *Match) *Match {
	cp := *match
	cp.Reasons = append(StringList(nil), match.Reasons...)
	cp.ConversationID = cloneString(match.ConversationID)
	return &cp
}

func cloneConversation(conv *Conversation) *Conversation {
	cp := *conv
	cp.Participants = append(StringList(nil), conv.Participants...)
	if conv.LastMessageAt != nil {
		at := *conv.LastMessageAt
		cp.LastMessageAt = &at
	}
	return &cp
}

func cloneString(s *string) *string {
	if s == nil {
		return nil
	}
	v := *s
	return &v
}

func cloneContact(c *OwnerContact) *OwnerContact {
	cp := *c
	if c.TelegramChatID != nil {
		id := *c.TelegramChatID
		cp.TelegramChatID = &id
	}
	return &cp
}
