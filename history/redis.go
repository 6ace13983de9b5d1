package history

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const defaultRedisTTL = 24 * time.Hour

// RedisStore is a Redis-backed history store. Each session's history lives
// in one list key, JSON-serialized per message, with TTL-based cleanup.
// Suitable for deployments where the admin surface runs on a different
// instance than the engine.
type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// RedisOption configures a RedisStore.
type RedisOption func(*RedisStore)

// WithTTL sets the time-to-live applied to each session's history key.
// Default is 24 hours. Set to 0 for no expiration.
func WithTTL(ttl time.Duration) RedisOption {
	return func(s *RedisStore) {
		s.ttl = ttl
	}
}

// WithPrefix sets the key prefix for Redis keys. Default is "avatarchat".
func WithPrefix(prefix string) RedisOption {
	return func(s *RedisStore) {
		s.prefix = prefix
	}
}

// NewRedisStore creates a new Redis-backed history store.
//
// Example:
//
//	store := NewRedisStore(
//	    redis.NewClient(&redis.Options{Addr: "localhost:6379"}),
//	    WithTTL(6 * time.Hour),
//	)
func NewRedisStore(client *redis.Client, opts ...RedisOption) *RedisStore {
	store := &RedisStore{
		client: client,
		ttl:    defaultRedisTTL,
		prefix: "avatarchat",
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

func (s *RedisStore) key(sessionID string) string {
	return s.prefix + ":history:" + sessionID
}

// Append adds a message to the session's history list and refreshes the TTL.
func (s *RedisStore) Append(ctx context.Context, sessionID string, msg Message) error {
	if sessionID == "" {
		return ErrInvalidID
	}
	data, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("marshal message: %w", err)
	}

	key := s.key(sessionID)
	pipe := s.client.Pipeline()
	pipe.RPush(ctx, key, data)
	if s.ttl > 0 {
		pipe.Expire(ctx, key, s.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis rpush failed: %w", err)
	}
	return nil
}

// Page returns one page of the session's history.
func (s *RedisStore) Page(ctx context.Context, sessionID string, page, pageSize int) ([]Message, int, error) {
	if sessionID == "" {
		return nil, 0, ErrInvalidID
	}
	key := s.key(sessionID)

	count, err := s.client.LLen(ctx, key).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis llen failed: %w", err)
	}
	total := int(count)

	start, end := pageBounds(total, page, pageSize)
	if start == end {
		return []Message{}, total, nil
	}

	raw, err := s.client.LRange(ctx, key, int64(start), int64(end-1)).Result()
	if err != nil {
		return nil, 0, fmt.Errorf("redis lrange failed: %w", err)
	}

	items := make([]Message, 0, len(raw))
	for _, entry := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(entry), &msg); err != nil {
			return nil, 0, fmt.Errorf("unmarshal message: %w", err)
		}
		items = append(items, msg)
	}
	return items, total, nil
}

// Clear removes the session's history key.
func (s *RedisStore) Clear(ctx context.Context, sessionID string) error {
	if sessionID == "" {
		return ErrInvalidID
	}
	if err := s.client.Del(ctx, s.key(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis del failed: %w", err)
	}
	return nil
}
