package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NimbusAI/avatarchat/types"
)

func item(t types.ChatDataType) *types.ChatData {
	return &types.ChatData{Source: types.SourceClient, Type: t}
}

func TestChatQueue_FIFO(t *testing.T) {
	q := newChatQueue()
	first := item(types.DataMicAudio)
	second := item(types.DataMicAudio)
	q.put(first)
	q.put(second)

	got, err := q.get(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Same(t, first, got)

	got, err = q.get(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Same(t, second, got)
	assert.Zero(t, q.depth())
}

func TestChatQueue_TimeoutReturnsNoData(t *testing.T) {
	q := newChatQueue()

	start := time.Now()
	got, err := q.get(context.Background(), 50*time.Millisecond)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Nil(t, got)
	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond)
	assert.Less(t, elapsed, 500*time.Millisecond)
}

func TestChatQueue_WaiterReceivesLatePut(t *testing.T) {
	q := newChatQueue()
	want := item(types.DataHumanText)

	done := make(chan *types.ChatData, 1)
	go func() {
		got, _ := q.get(context.Background(), time.Second)
		done <- got
	}()

	time.Sleep(20 * time.Millisecond)
	q.put(want)

	select {
	case got := <-done:
		assert.Same(t, want, got)
	case <-time.After(time.Second):
		t.Fatal("waiter never woke up")
	}
}

func TestChatQueue_BlockingGetHonorsCancellation(t *testing.T) {
	q := newChatQueue()
	ctx, cancel := context.WithCancel(context.Background())

	errCh := make(chan error, 1)
	go func() {
		_, err := q.get(ctx, 0)
		errCh <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("cancellation did not unblock get")
	}

	// Queue state is intact: a later put/get pair still works.
	want := item(types.DataMicAudio)
	q.put(want)
	got, err := q.get(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Same(t, want, got)
}

func TestChatQueue_NoItemLostOrDoubledUnderRace(t *testing.T) {
	// Hammer concurrent timed gets against puts; every item must be
	// delivered exactly once.
	q := newChatQueue()
	const n = 200

	var mu sync.Mutex
	seen := make(map[*types.ChatData]int)

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				got, err := q.get(context.Background(), 5*time.Millisecond)
				if err != nil {
					return
				}
				if got == nil {
					mu.Lock()
					total := len(seen)
					mu.Unlock()
					if total == n {
						return
					}
					continue
				}
				mu.Lock()
				seen[got]++
				mu.Unlock()
			}
		}()
	}

	for i := 0; i < n; i++ {
		q.put(item(types.DataMicAudio))
		if i%10 == 0 {
			time.Sleep(time.Millisecond)
		}
	}
	wg.Wait()

	assert.Len(t, seen, n)
	for _, count := range seen {
		assert.Equal(t, 1, count)
	}
	assert.Zero(t, q.depth())
}

func TestChatQueue_Clear(t *testing.T) {
	q := newChatQueue()
	q.put(item(types.DataMicAudio))
	q.put(item(types.DataMicAudio))

	assert.Equal(t, 2, q.clear())
	assert.Zero(t, q.depth())

	got, err := q.get(context.Background(), 10*time.Millisecond)
	require.NoError(t, err)
	assert.Nil(t, got)
}
