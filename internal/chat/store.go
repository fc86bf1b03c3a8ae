package chat

import (
	"sort"
	"sync"
	"time"

	"pricebot/internal/domain"
)

// Store keeps live conversations in memory. Nothing survives a restart.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Conversation
}

// NewStore creates an empty conversation store
func NewStore() *Store {
	return &Store{sessions: make(map[string]*Conversation)}
}

// Create opens a new conversation owned by ownerID
func (s *Store) Create(ownerID string, now time.Time) *Conversation {
	conv := NewConversation(ownerID, now)

	s.mu.Lock()
	s.sessions[conv.ID] = conv
	s.mu.Unlock()

	return conv
}

// Get returns the conversation if it exists and belongs to ownerID
func (s *Store) Get(ownerID, id string) (*Conversation, error) {
	s.mu.RLock()
	conv, ok := s.sessions[id]
	s.mu.RUnlock()

	if !ok || conv.OwnerID != ownerID {
		return nil, ErrSessionNotFound
	}
	return conv, nil
}

// Delete removes a conversation owned by ownerID
func (s *Store) Delete(ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	conv, ok := s.sessions[id]
	if !ok || conv.OwnerID != ownerID {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	return nil
}

// Sweep evicts conversations with no message since cutoff and returns how
// many were removed. A conversation in the middle of a turn is kept.
func (s *Store) Sweep(cutoff time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	removed := 0
	for id, conv := range s.sessions {
		if !conv.LastActive().Before(cutoff) {
			continue
		}
		if !conv.sending.TryLock() {
			continue
		}
		conv.sending.Unlock()
		delete(s.sessions, id)
		removed++
	}
	return removed
}

// Len reports how many conversations are live
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sessions)
}

// Summary is an overview of one conversation for the admin panel
type Summary struct {
	ID           string            `json:"id"`
	OwnerID      string            `json:"owner_id"`
	CreatedAt    time.Time         `json:"created_at"`
	MessageCount int               `json:"message_count"`
	PendingKind  domain.ActionKind `json:"pending_kind,omitempty"`
}

// Summaries lists every conversation, oldest first
func (s *Store) Summaries() []Summary {
	s.mu.RLock()
	convs := make([]*Conversation, 0, len(s.sessions))
	for _, c := range s.sessions {
		convs = append(convs, c)
	}
	s.mu.RUnlock()

	out := make([]Summary, 0, len(convs))
	for _, c := range convs {
		snap := c.Snapshot()
		sum := Summary{
			ID:           snap.ID,
			OwnerID:      snap.OwnerID,
			CreatedAt:    snap.CreatedAt,
			MessageCount: len(snap.Messages),
		}
		if snap.Pending != nil {
			sum.PendingKind = snap.Pending.Kind
		}
		out = append(out, sum)
	}

	// ULIDs sort by creation time
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}
