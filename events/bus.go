// Package events provides a lightweight pub/sub bus for out-of-band chat
// signals. Session delegates pass signals through it; they are notification
// paths, not queues.
package events

import (
	"sync"

	"github.com/NimbusAI/avatarchat/types"
)

// Listener is a function that handles signals.
type Listener func(types.ChatSignal)

// entry wraps a listener so subscriptions can be removed by identity.
type entry struct {
	fn Listener
}

// SignalBus distributes chat signals to listeners.
type SignalBus struct {
	mu              sync.RWMutex
	listeners       map[types.ChatSignalType][]*entry
	globalListeners []*entry
}

// NewSignalBus creates a new signal bus.
func NewSignalBus() *SignalBus {
	return &SignalBus{
		listeners: make(map[types.ChatSignalType][]*entry),
	}
}

// Subscribe registers a listener for a specific signal type. The returned
// function removes the subscription; per-session listeners must call it on
// teardown or they accumulate for the process lifetime.
func (b *SignalBus) Subscribe(sigType types.ChatSignalType, listener Listener) func() {
	e := &entry{fn: listener}
	b.mu.Lock()
	b.listeners[sigType] = append(b.listeners[sigType], e)
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		b.listeners[sigType] = removeEntry(b.listeners[sigType], e)
		b.mu.Unlock()
	}
}

// SubscribeAll registers a listener for all signal types. The returned
// function removes the subscription.
func (b *SignalBus) SubscribeAll(listener Listener) func() {
	e := &entry{fn: listener}
	b.mu.Lock()
	b.globalListeners = append(b.globalListeners, e)
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		b.globalListeners = removeEntry(b.globalListeners, e)
		b.mu.Unlock()
	}
}

func removeEntry(entries []*entry, target *entry) []*entry {
	for i, e := range entries {
		if e == target {
			return append(entries[:i], entries[i+1:]...)
		}
	}
	return entries
}

// Publish sends a signal to all registered listeners asynchronously.
// A panicking listener never takes down the routing path.
func (b *SignalBus) Publish(sig types.ChatSignal) {
	b.mu.RLock()
	specificListeners := make([]Listener, 0, len(b.listeners[sig.Type]))
	for _, e := range b.listeners[sig.Type] {
		specificListeners = append(specificListeners, e.fn)
	}
	globalListeners := make([]Listener, 0, len(b.globalListeners))
	for _, e := range b.globalListeners {
		globalListeners = append(globalListeners, e.fn)
	}
	b.mu.RUnlock()

	go func() {
		for _, listener := range specificListeners {
			safeInvoke(listener, sig)
		}
		for _, listener := range globalListeners {
			safeInvoke(listener, sig)
		}
	}()
}

// Clear removes all listeners (primarily for tests).
func (b *SignalBus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.listeners = make(map[types.ChatSignalType][]*entry)
	b.globalListeners = nil
}

func safeInvoke(listener Listener, sig types.ChatSignal) {
	defer func() { _ = recover() }()
	listener(sig)
}
