package history

import (
	"context"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// storeUnderTest builds each Store implementation against the same suite.
func storesUnderTest(t *testing.T) map[string]Store {
	t.Helper()

	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	return map[string]Store{
		"memory": NewMemoryStore(),
		"redis":  NewRedisStore(client, WithPrefix("test")),
	}
}

func seed(t *testing.T, store Store, sessionID string, n int) {
	t.Helper()
	ctx := context.Background()
	for i := 0; i < n; i++ {
		role := "human"
		if i%2 == 1 {
			role = "avatar"
		}
		require.NoError(t, store.Append(ctx, sessionID, Message{
			Role:      role,
			Content:   string(rune('a' + i)),
			Timestamp: int64(1000 + i),
		}))
	}
}

func TestStore_Pagination(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, store, "s1", 7)

			tests := []struct {
				name      string
				page      int
				pageSize  int
				wantLen   int
				wantFirst string
			}{
				{"first page", 1, 3, 3, "a"},
				{"middle page", 2, 3, 3, "d"},
				{"short last page", 3, 3, 1, "g"},
				{"out of range", 4, 3, 0, ""},
				{"zero page", 0, 3, 0, ""},
				{"huge page size", 1, 100, 7, "a"},
			}
			for _, tt := range tests {
				t.Run(tt.name, func(t *testing.T) {
					items, total, err := store.Page(ctx, "s1", tt.page, tt.pageSize)
					require.NoError(t, err)
					assert.Equal(t, 7, total)
					assert.Len(t, items, tt.wantLen)
					if tt.wantLen > 0 {
						assert.Equal(t, tt.wantFirst, items[0].Content)
					}
				})
			}
		})
	}
}

func TestStore_EmptySession(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			items, total, err := store.Page(context.Background(), "missing", 1, 20)
			require.NoError(t, err)
			assert.Zero(t, total)
			assert.Empty(t, items)
		})
	}
}

func TestStore_Clear(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, store, "s1", 3)
			require.NoError(t, store.Clear(ctx, "s1"))

			_, total, err := store.Page(ctx, "s1", 1, 20)
			require.NoError(t, err)
			assert.Zero(t, total)
		})
	}
}

func TestStore_InvalidID(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			assert.ErrorIs(t, store.Append(ctx, "", Message{}), ErrInvalidID)
			_, _, err := store.Page(ctx, "", 1, 20)
			assert.ErrorIs(t, err, ErrInvalidID)
			assert.ErrorIs(t, store.Clear(ctx, ""), ErrInvalidID)
		})
	}
}

func TestStore_RolesRoundTrip(t *testing.T) {
	for name, store := range storesUnderTest(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			seed(t, store, "s1", 2)

			items, _, err := store.Page(ctx, "s1", 1, 2)
			require.NoError(t, err)
			require.Len(t, items, 2)
			assert.Equal(t, "human", items[0].Role)
			assert.Equal(t, "avatar", items[1].Role)
			assert.Equal(t, int64(1000), items[0].Timestamp)
		})
	}
}
