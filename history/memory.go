package history

import (
	"context"
	"sync"
)

// MemoryStore keeps conversation history in process memory. It is
// thread-safe and suitable for development, testing, and single-instance
// deployments. For distributed deployments, use RedisStore.
type MemoryStore struct {
	mu       sync.RWMutex
	messages map[string][]Message
}

// NewMemoryStore creates a new in-memory history store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{messages: make(map[string][]Message)}
}

// Append adds a message to the session's history.
func (s *MemoryStore) Append(_ context.Context, sessionID string, msg Message) error {
	if sessionID == "" {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.messages[sessionID] = append(s.messages[sessionID], msg)
	return nil
}

// Page returns one page of the session's history. A session with no
// recorded history yields an empty page with total zero.
func (s *MemoryStore) Page(_ context.Context, sessionID string, page, pageSize int) ([]Message, int, error) {
	if sessionID == "" {
		return nil, 0, ErrInvalidID
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	msgs := s.messages[sessionID]
	total := len(msgs)
	start, end := pageBounds(total, page, pageSize)

	items := make([]Message, end-start)
	copy(items, msgs[start:end])
	return items, total, nil
}

// Clear removes the session's history.
func (s *MemoryStore) Clear(_ context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidID
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.messages, sessionID)
	return nil
}
