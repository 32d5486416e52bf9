package memory

import (
	"context"
	"sync"

	"github.com/kirillkom/domain-router/internal/core/domain"
)

// ConversationStore keeps turns in process memory. Each conversation has
// its own lock; the outer lock only guards the map of entries.
type ConversationStore struct {
	mu      sync.Mutex
	entries map[string]*conversation
}

type conversation struct {
	mu    sync.Mutex
	turns []domain.Turn
}

func NewConversationStore() *ConversationStore {
	return &ConversationStore{entries: make(map[string]*conversation)}
}

func (s *ConversationStore) entry(id string, create bool) *conversation {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.entries[id]
	if !ok && create {
		c = &conversation{}
		s.entries[id] = c
	}
	return c
}

func (s *ConversationStore) Append(_ context.Context, conversationID string, turn domain.Turn) error {
	c := s.entry(conversationID, true)
	c.mu.Lock()
	defer c.mu.Unlock()
	c.turns = append(c.turns, turn)
	return nil
}

func (s *ConversationStore) History(_ context.Context, conversationID string) ([]domain.Turn, error) {
	c := s.entry(conversationID, false)
	if c == nil {
		return []domain.Turn{}, nil
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.Turn, len(c.turns))
	copy(out, c.turns)
	return out, nil
}
