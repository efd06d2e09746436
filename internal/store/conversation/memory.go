package conversation

import (
	"context"
	"sync"
	"time"

	"github.com/campusmind/portal/backend/internal/model/chat"
)

// MemoryStore keeps conversations in process memory.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string][]chat.Message
	now      func() time.Time
}

// NewMemoryStore bootstraps an empty in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		messages: make(map[string][]chat.Message),
		now:      time.Now,
	}
}

// Append implements Store.
func (s *MemoryStore) Append(_ context.Context, userID string, msg chat.Message) (chat.Message, error) {
	msg, err := prepare(userID, msg, s.now)
	if err != nil {
		return chat.Message{}, err
	}

	s.mu.Lock()
	s.messages[msg.UserID] = append(s.messages[msg.UserID], msg)
	s.mu.Unlock()
	return msg, nil
}

// List implements Store. Unknown users have an empty history.
func (s *MemoryStore) List(_ context.Context, userID string) ([]chat.Message, error) {
	s.mu.RLock()
	messages := s.messages[ownerKey(userID)]
	copied := make([]chat.Message, len(messages))
	copy(copied, messages)
	s.mu.RUnlock()

	sortByTimestamp(copied)
	return copied, nil
}
