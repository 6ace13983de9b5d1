package session

import (
	"context"
	"sync"
	"time"

	"github.com/NimbusAI/avatarchat/types"
)

// chatQueue is an unbounded FIFO queue of ChatData items with rendezvous
// hand-off to waiting readers. Producers are assumed paced by the transport
// layer; bounded-memory installs should put a drop policy in front of Put.
//
// The waiter hand-off guarantees exactly one outcome per Get even when a
// timeout fires concurrently with an arrival: an item delivered to an
// abandoned waiter is recovered and either returned or re-queued at the
// front, never lost or double-delivered.
type chatQueue struct {
	mu      sync.Mutex
	items   []*types.ChatData
	waiters []chan *types.ChatData
}

func newChatQueue() *chatQueue {
	return &chatQueue{}
}

// put appends an item, handing it directly to the oldest waiter if any.
func (q *chatQueue) put(data *types.ChatData) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if len(q.waiters) > 0 {
		w := q.waiters[0]
		q.waiters = q.waiters[1:]
		// Waiter channels are buffered with capacity one and removed under
		// the same lock, so this send never blocks.
		w <- data
		return
	}
	q.items = append(q.items, data)
}

// get dequeues the next item. With timeout > 0 a miss returns (nil, nil)
// after roughly the timeout. With timeout <= 0 it blocks until an item
// arrives or ctx is canceled; cancellation returns ctx.Err() and leaves the
// queue state intact.
func (q *chatQueue) get(ctx context.Context, timeout time.Duration) (*types.ChatData, error) {
	q.mu.Lock()
	if len(q.items) > 0 {
		data := q.items[0]
		q.items = q.items[1:]
		q.mu.Unlock()
		return data, nil
	}

	w := make(chan *types.ChatData, 1)
	q.waiters = append(q.waiters, w)
	q.mu.Unlock()

	var timerC <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		timerC = timer.C
	}

	select {
	case data := <-w:
		return data, nil
	case <-timerC:
		if data, ok := q.abandon(w); ok {
			return data, nil
		}
		return nil, nil
	case <-ctx.Done():
		if data, ok := q.abandon(w); ok {
			// The item raced the cancellation; push it back so it is
			// neither lost nor double-delivered.
			q.requeueFront(data)
		}
		return nil, ctx.Err()
	}
}

// abandon removes w from the waiter list and drains any item that was
// handed to it concurrently.
func (q *chatQueue) abandon(w chan *types.ChatData) (*types.ChatData, bool) {
	q.mu.Lock()
	for i, waiter := range q.waiters {
		if waiter == w {
			q.waiters = append(q.waiters[:i], q.waiters[i+1:]...)
			break
		}
	}
	q.mu.Unlock()

	select {
	case data := <-w:
		return data, true
	default:
		return nil, false
	}
}

func (q *chatQueue) requeueFront(data *types.ChatData) {
	q.mu.Lock()
	q.items = append([]*types.ChatData{data}, q.items...)
	q.mu.Unlock()
}

// depth returns the number of queued items.
func (q *chatQueue) depth() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// clear drains all queued items and returns how many were released.
func (q *chatQueue) clear() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.items = nil
	return n
}
