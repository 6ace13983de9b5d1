package session

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/NimbusAI/avatarchat/events"
)

func makeSession(id string) *Session {
	return New(NewContext(id), NewDelegate(id, events.NewSignalBus()), nil)
}

func TestRegistry_AddFindRemove(t *testing.T) {
	reg := NewRegistry()

	s := makeSession("s1")
	assert.True(t, reg.Add(s))
	assert.False(t, reg.Add(s), "duplicate id rejected")

	found, ok := reg.Find("s1")
	require.True(t, ok)
	assert.Same(t, s, found)

	_, ok = reg.Find("missing")
	assert.False(t, ok)

	removed, ok := reg.Remove("s1")
	require.True(t, ok)
	assert.Same(t, s, removed)
	assert.Zero(t, reg.Len())

	_, ok = reg.Remove("s1")
	assert.False(t, ok)
}

func TestRegistry_ListNewestFirst(t *testing.T) {
	reg := NewRegistry()

	older := makeSession("older")
	time.Sleep(5 * time.Millisecond)
	newer := makeSession("newer")

	require.True(t, reg.Add(older))
	require.True(t, reg.Add(newer))

	list := reg.List()
	require.Len(t, list, 2)
	assert.Equal(t, "newer", list[0].ID())
	assert.Equal(t, "older", list[1].ID())
}

func TestRegistry_ConcurrentReadersAndWriters(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := string(rune('a' + i))
			s := makeSession(id)
			reg.Add(s)
			for j := 0; j < 100; j++ {
				reg.Find(id)
				reg.List()
				reg.Len()
			}
			reg.Remove(id)
		}(i)
	}
	wg.Wait()

	assert.Zero(t, reg.Len())
}

func TestSession_RecordLookupAndHistoryProvider(t *testing.T) {
	s := New(NewContext("s1"), NewDelegate("s1", events.NewSignalBus()), []*HandlerRecord{
		{Name: "rtc_client"},
	})

	r, ok := s.Record("rtc_client")
	require.True(t, ok)
	assert.Equal(t, "rtc_client", r.Name)

	_, ok = s.Record("missing")
	assert.False(t, ok)

	_, ok = s.HistoryProvider()
	assert.False(t, ok, "no handler context exposes history")
}
