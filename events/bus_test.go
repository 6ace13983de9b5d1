package events

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/NimbusAI/avatarchat/types"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not reached in time")
}

func TestSignalBus_SubscribeByType(t *testing.T) {
	bus := NewSignalBus()

	var mu sync.Mutex
	var got []types.ChatSignal
	bus.Subscribe(types.SignalInterrupt, func(sig types.ChatSignal) {
		mu.Lock()
		defer mu.Unlock()
		got = append(got, sig)
	})

	bus.Publish(types.ChatSignal{Type: types.SignalInterrupt, SessionID: "s1"})
	bus.Publish(types.ChatSignal{Type: types.SignalStop, SessionID: "s1"})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 1
	})

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, types.SignalInterrupt, got[0].Type)
	assert.Equal(t, "s1", got[0].SessionID)
}

func TestSignalBus_SubscribeAll(t *testing.T) {
	bus := NewSignalBus()

	var mu sync.Mutex
	count := 0
	bus.SubscribeAll(func(types.ChatSignal) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})

	bus.Publish(types.ChatSignal{Type: types.SignalInterrupt})
	bus.Publish(types.ChatSignal{Type: types.SignalStop})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return count == 2
	})
}

func TestSignalBus_Unsubscribe(t *testing.T) {
	bus := NewSignalBus()

	var mu sync.Mutex
	removed, kept := 0, 0
	unsubscribe := bus.Subscribe(types.SignalStop, func(types.ChatSignal) {
		mu.Lock()
		defer mu.Unlock()
		removed++
	})
	bus.Subscribe(types.SignalStop, func(types.ChatSignal) {
		mu.Lock()
		defer mu.Unlock()
		kept++
	})

	unsubscribe()
	unsubscribe() // repeated removal is harmless

	bus.Publish(types.ChatSignal{Type: types.SignalStop})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return kept == 1
	})
	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, removed)
}

func TestSignalBus_PanickingListenerIsContained(t *testing.T) {
	bus := NewSignalBus()

	bus.Subscribe(types.SignalStop, func(types.ChatSignal) {
		panic("listener bug")
	})

	var mu sync.Mutex
	delivered := false
	bus.Subscribe(types.SignalStop, func(types.ChatSignal) {
		mu.Lock()
		defer mu.Unlock()
		delivered = true
	})

	bus.Publish(types.ChatSignal{Type: types.SignalStop})

	waitFor(t, func() bool {
		mu.Lock()
		defer mu.Unlock()
		return delivered
	})
}

func TestSignalBus_Clear(t *testing.T) {
	bus := NewSignalBus()

	var mu sync.Mutex
	count := 0
	bus.SubscribeAll(func(types.ChatSignal) {
		mu.Lock()
		defer mu.Unlock()
		count++
	})
	bus.Clear()

	bus.Publish(types.ChatSignal{Type: types.SignalStop})
	time.Sleep(50 * time.Millisecond)

	mu.Lock()
	defer mu.Unlock()
	assert.Zero(t, count)
}
